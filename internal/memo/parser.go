// Package memo associates free-text cash-drawer memos with employees.
//
// Recognizers run in order and the first match wins:
//
//	E<year>-<id> anywhere in the text       canonical
//	id : <id> <name> ...  at the start      legacy
//	<id> <name> ...       at the start      legacy, 1 ≤ id ≤ 999
//
// A memo that matches none of them yields a Fallo carrying the canonical
// format for the current year, so the operator can fix the memo in the POS.
package memo

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Formato identifies which recognizer matched.
type Formato string

const (
	FormatoCanonico  Formato = "canonico"
	FormatoLegacyID  Formato = "legacy_id"
	FormatoLegacyNum Formato = "legacy_numero"
)

// Resultado is a successful parse.
type Resultado struct {
	EmpleadoID int
	// Nombre is the first name written after the id in legacy memos.
	Nombre       string
	Detalle      string
	Formato      Formato
	Advertencias []string
}

// Fallo is a parse or validation failure. It is a value: callers route the
// record to the "unassociated" or "error" bucket and keep going.
type Fallo struct {
	Motivo     string
	Sugerencia string
}

var (
	reCodigo   = regexp.MustCompile(`(?i)\bE(\d{4})-(\d+)\b`)
	reLegacyID = regexp.MustCompile(`(?is)^id\s*:\s*(\d+)\s+(\p{L}+)(.*)$`)
	reLegacyN  = regexp.MustCompile(`(?s)^(\d{1,3})\s+(\p{L}+)(.*)$`)
	reEspacios = regexp.MustCompile(`\s+`)
)

// palabrasReservadas are words that follow an amount or an admin note, never
// a first name ("20 mil", "15 pesos", "3 cajas").
var palabrasReservadas = map[string]bool{
	"mil": true, "k": true, "pesos": true, "peso": true, "cop": true, "usd": true,
	"dolares": true, "dólares": true, "lucas": true, "kg": true, "kilos": true,
	"g": true, "gr": true, "lb": true, "und": true, "unidades": true, "unid": true,
	"x": true, "cajas": true, "caja": true, "base": true, "cambio": true,
	"adelanto": true, "anticipo": true, "prestamo": true, "préstamo": true,
	"pago": true, "pagos": true, "gasto": true, "gastos": true, "compra": true,
	"compras": true, "proveedor": true, "propina": true, "propinas": true,
	"domicilio": true, "domicilios": true, "retiro": true, "nomina": true,
	"nómina": true, "sueldo": true, "factura": true, "dias": true, "días": true,
	"horas": true, "hrs": true,
}

// Parser is safe for concurrent use.
type Parser struct {
	// Now returns the current time; the year drives the suggested code.
	Now func() time.Time
}

func NewParser() *Parser { return &Parser{Now: time.Now} }

// Codigo renders the canonical employee code, e.g. E2025-19.
func Codigo(year, empleadoID int) string {
	return fmt.Sprintf("E%d-%d", year, empleadoID)
}

func (p *Parser) anio() int {
	if p.Now == nil {
		return time.Now().Year()
	}
	return p.Now().Year()
}

// CodigoActual renders the code for empleadoID using the current year.
func (p *Parser) CodigoActual(empleadoID int) string {
	return Codigo(p.anio(), empleadoID)
}

// Parse extracts the employee id and detail from memo.
func (p *Parser) Parse(memo string) (Resultado, *Fallo) {
	texto := strings.TrimSpace(memo)
	if texto == "" {
		return Resultado{}, p.fallo("comentario vacío")
	}

	if loc := reCodigo.FindStringSubmatchIndex(texto); loc != nil {
		id, err := strconv.Atoi(texto[loc[4]:loc[5]])
		if err == nil && id > 0 {
			detalle := limpiar(texto[:loc[0]] + " " + texto[loc[1]:])
			return Resultado{EmpleadoID: id, Detalle: detalle, Formato: FormatoCanonico}, nil
		}
	}

	if m := reLegacyID.FindStringSubmatch(texto); m != nil {
		id, err := strconv.Atoi(m[1])
		if err == nil && id > 0 {
			return p.legacy(id, m[2], m[3], FormatoLegacyID), nil
		}
	}

	if m := reLegacyN.FindStringSubmatch(texto); m != nil {
		id, _ := strconv.Atoi(m[1])
		if id >= 1 && id <= 999 && !palabrasReservadas[strings.ToLower(m[2])] {
			return p.legacy(id, m[2], m[3], FormatoLegacyNum), nil
		}
	}

	return Resultado{}, p.fallo("no se encontró un código de empleado")
}

func (p *Parser) legacy(id int, nombre, resto string, f Formato) Resultado {
	return Resultado{
		EmpleadoID: id,
		Nombre:     nombre,
		Detalle:    limpiar(resto),
		Formato:    f,
		Advertencias: []string{
			fmt.Sprintf("formato antiguo: use %s al inicio del comentario", p.CodigoActual(id)),
		},
	}
}

func (p *Parser) fallo(motivo string) *Fallo {
	return &Fallo{
		Motivo:     motivo,
		Sugerencia: fmt.Sprintf("formato esperado: E%d-<id> <detalle>", p.anio()),
	}
}

func limpiar(s string) string {
	return strings.Trim(reEspacios.ReplaceAllString(s, " "), " :;,.-")
}
