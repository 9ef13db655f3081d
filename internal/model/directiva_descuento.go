package model

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Discount directives.
const (
	DirectivaCompleto = "completo"
	DirectivaParcial  = "parcial"
	DirectivaDiferir  = "diferir"
)

// DirectivaDescuento says how much of one movement a payroll period discounts.
// completo: MontoADescontar == Movimiento.Monto
// parcial:  0 < MontoADescontar < Movimiento.Monto
// diferir:  MontoADescontar == 0, the movement stays pending
type DirectivaDescuento struct {
	ID              uuid.UUID       `gorm:"type:uuid;primaryKey"`
	NominaID        uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_directiva_nomina_movimiento,priority:1"`
	MovimientoID    uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_directiva_nomina_movimiento,priority:2;index"`
	Directiva       string          `gorm:"type:varchar(20);not null;default:'completo'"`
	MontoADescontar decimal.Decimal `gorm:"type:decimal(12,2);not null"`

	Movimiento *Movimiento `gorm:"foreignKey:MovimientoID"`
}

func (DirectivaDescuento) TableName() string { return "directivas_descuento" }

func (d *DirectivaDescuento) BeforeCreate(_ *gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}

// DirectivaValida reports whether s names a known directive.
func DirectivaValida(s string) bool {
	switch s {
	case DirectivaCompleto, DirectivaParcial, DirectivaDiferir:
		return true
	}
	return false
}
