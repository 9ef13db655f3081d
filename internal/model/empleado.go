package model

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

// Empleado is owned by the roster system; this service only reads it.
// Estado: "ACTIVO" | "INACTIVO"
type Empleado struct {
	ID            int             `gorm:"primaryKey"`
	Nombre        string          `gorm:"not null"`
	SueldoMensual decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	// TipoPago: "quincenal" | "semanal" | "mensual"
	TipoPago string `gorm:"type:varchar(20);not null;default:'quincenal'"`
	// FudoCustomerID is the POS house account the employee consumes against.
	FudoCustomerID *string `gorm:"type:varchar(64);column:fudo_customer_id"`
	FudoUserID     *string `gorm:"type:varchar(64);column:fudo_user_id"`
	Estado         string  `gorm:"type:varchar(20);not null;default:'ACTIVO'"`
}

func (Empleado) TableName() string { return "empleados" }

// PrimerNombre returns the first word of the registered name.
func (e *Empleado) PrimerNombre() string {
	fields := strings.Fields(e.Nombre)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

func (e *Empleado) TieneCuentaPOS() bool {
	return e.FudoCustomerID != nil && *e.FudoCustomerID != ""
}

func (e *Empleado) Activo() bool { return e.Estado == EmpleadoActivo }

const (
	EmpleadoActivo   = "ACTIVO"
	EmpleadoInactivo = "INACTIVO"
)

// ErrEmpleadoNoEncontrado is returned by roster lookups for unknown ids.
var ErrEmpleadoNoEncontrado = errors.New("empleado no encontrado")
