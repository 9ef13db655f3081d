package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Movement kinds. Consumo and adelanto are debts owed by the employee;
// abono is a credit against the house account.
const (
	TipoConsumo  = "consumo"
	TipoAdelanto = "adelanto"
	TipoAbono    = "abono"
)

// Movimiento is one debit or credit in an employee's running balance.
// Once Descontado is true the amount is frozen and NominaID points to the
// payroll period that settled it.
//
// At most one of the Fudo* references is set; each is unique so that a POS
// record is ingested at most once.
type Movimiento struct {
	ID          uuid.UUID       `gorm:"type:uuid;primaryKey"`
	EmpleadoID  int             `gorm:"not null;index:idx_movimientos_empleado_fecha,priority:1"`
	Fecha       time.Time       `gorm:"not null;index:idx_movimientos_empleado_fecha,priority:2"`
	Tipo        string          `gorm:"type:varchar(20);not null"`
	Monto       decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Descripcion string
	// MontoOriginal keeps the POS amount once an operator adjusts Monto.
	MontoOriginal *decimal.Decimal `gorm:"type:decimal(12,2)"`
	Descontado    bool             `gorm:"not null;default:false;index"`
	NominaID      *uuid.UUID       `gorm:"type:uuid;index"`

	FudoSaleID        *string `gorm:"type:varchar(64);uniqueIndex"`
	FudoPaymentID     *string `gorm:"type:varchar(64);uniqueIndex"`
	FudoTransactionID *string `gorm:"type:varchar(64);uniqueIndex"`

	// MovimientoOrigenID links the carried-over remainder of a partially
	// discounted movement to the movement it came from.
	MovimientoOrigenID *uuid.UUID `gorm:"type:uuid"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (Movimiento) TableName() string { return "movimientos" }

func (m *Movimiento) BeforeCreate(_ *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

// DesdePOS reports whether the movement was ingested from the POS.
func (m *Movimiento) DesdePOS() bool {
	return m.FudoSaleID != nil || m.FudoPaymentID != nil || m.FudoTransactionID != nil
}

// Descontable reports whether the movement can be discounted from pay.
func (m *Movimiento) Descontable() bool {
	return m.Tipo == TipoConsumo || m.Tipo == TipoAdelanto
}

// ClaveExterna returns the POS dedup key, or "" for manual movements.
func (m *Movimiento) ClaveExterna() string {
	switch {
	case m.FudoSaleID != nil:
		return *m.FudoSaleID
	case m.FudoPaymentID != nil:
		return *m.FudoPaymentID
	case m.FudoTransactionID != nil:
		return *m.FudoTransactionID
	}
	return ""
}
