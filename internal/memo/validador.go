package memo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"gestornomina/internal/model"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// ErrEmpleadoNoEncontrado is what an EmpleadoLookup returns for unknown ids.
var ErrEmpleadoNoEncontrado = model.ErrEmpleadoNoEncontrado

// EmpleadoLookup resolves employee ids against the roster.
type EmpleadoLookup interface {
	FindByID(ctx context.Context, id int) (*model.Empleado, error)
}

// Validacion is a parse result confirmed against the roster.
type Validacion struct {
	Resultado
	Empleado *model.Empleado
}

// Validador checks that a parsed id belongs to a registered employee.
type Validador struct {
	Empleados EmpleadoLookup
	Parser    *Parser
}

func NewValidador(empleados EmpleadoLookup, parser *Parser) *Validador {
	return &Validador{Empleados: empleados, Parser: parser}
}

// Validar looks up r.EmpleadoID. An unknown id is a Fallo; a first name that
// does not match the registered one is only an advisory, the id wins.
// The error return is reserved for lookup failures other than "not found".
func (v *Validador) Validar(ctx context.Context, r Resultado) (Validacion, *Fallo, error) {
	emp, err := v.Empleados.FindByID(ctx, r.EmpleadoID)
	if errors.Is(err, ErrEmpleadoNoEncontrado) {
		return Validacion{}, &Fallo{
			Motivo:     fmt.Sprintf("empleado %d no encontrado", r.EmpleadoID),
			Sugerencia: v.sugerencia(),
		}, nil
	}
	if err != nil {
		return Validacion{}, nil, err
	}

	out := Validacion{Resultado: r, Empleado: emp}
	out.Advertencias = append([]string(nil), r.Advertencias...)
	if r.Nombre != "" && !MismoNombre(r.Nombre, emp.PrimerNombre()) {
		out.Advertencias = append(out.Advertencias, fmt.Sprintf(
			"el nombre %q no coincide con el empleado %d (%s); se usa el id",
			r.Nombre, emp.ID, emp.Nombre))
	}
	return out, nil, nil
}

func (v *Validador) sugerencia() string {
	p := v.Parser
	if p == nil {
		p = NewParser()
	}
	return fmt.Sprintf("formato esperado: E%d-<id> <detalle>", p.anio())
}

// MismoNombre compares two names ignoring case and accents ("Andrés" == "andres").
func MismoNombre(a, b string) bool {
	return strings.EqualFold(sinAcentos(a), sinAcentos(b))
}

func sinAcentos(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, strings.TrimSpace(s))
	if err != nil {
		return s
	}
	return out
}
