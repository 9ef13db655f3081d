package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Nomina is one payroll period for one employee.
// Lifecycle: open (Liquidada=false) → settled (terminal). Every monetary
// field is frozen once Liquidada is true.
type Nomina struct {
	ID             uuid.UUID       `gorm:"type:uuid;primaryKey"`
	EmpleadoID     int             `gorm:"not null;index"`
	PeriodoInicio  time.Time       `gorm:"type:date;not null"`
	PeriodoFin     time.Time       `gorm:"type:date;not null"`
	DiasTrabajados int             `gorm:"not null"`
	MontoBase      decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Propinas       decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	Bonos          decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	Deducciones    decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	// TotalDescuentos = Σ MontoADescontar of non-deferred directives
	TotalDescuentos decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	TotalPagar      decimal.Decimal `gorm:"type:decimal(12,2);not null"`

	Liquidada   bool `gorm:"not null;default:false;index"`
	LiquidadaAt *time.Time
	// ReferenciaPOS is the id of the reconciling house-account transaction.
	ReferenciaPOS     *string         `gorm:"type:varchar(64);column:referencia_pos"`
	MontoReportadoPOS decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0;column:monto_reportado_pos"`
	ErrorPOS          *string         `gorm:"column:error_pos"`

	CreatedAt time.Time
	UpdatedAt time.Time

	Directivas []DirectivaDescuento `gorm:"foreignKey:NominaID;constraint:OnDelete:CASCADE"`
}

func (Nomina) TableName() string { return "nominas" }

func (n *Nomina) BeforeCreate(_ *gorm.DB) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	return nil
}

// Bruto is base + tips + bonuses.
func (n *Nomina) Bruto() decimal.Decimal {
	return n.MontoBase.Add(n.Propinas).Add(n.Bonos)
}

// Recalcular re-derives TotalDescuentos and TotalPagar from the directives.
func (n *Nomina) Recalcular() {
	total := decimal.Zero
	for _, d := range n.Directivas {
		if d.Directiva != DirectivaDiferir {
			total = total.Add(d.MontoADescontar)
		}
	}
	n.TotalDescuentos = total
	n.TotalPagar = n.Bruto().Sub(n.Deducciones).Sub(total)
}

// Contiene reports whether t, seen in loc, falls on a calendar day inside
// the period (both ends inclusive). Period bounds are plain dates.
func (n *Nomina) Contiene(t time.Time, loc *time.Location) bool {
	if loc == nil {
		loc = time.UTC
	}
	d := DiaCalendario(t.In(loc))
	return d >= DiaCalendario(n.PeriodoInicio) && d <= DiaCalendario(n.PeriodoFin)
}

// DiasPeriodo is the inclusive length of the period in days.
func (n *Nomina) DiasPeriodo() int {
	a := Fecha(n.PeriodoInicio)
	b := Fecha(n.PeriodoFin)
	return int(b.Sub(a).Hours()/24) + 1
}

// DiaCalendario encodes t's date as yyyymmdd for ordering comparisons.
func DiaCalendario(t time.Time) int {
	y, m, d := t.Date()
	return y*10000 + int(m)*100 + d
}

// Fecha returns t's calendar date as midnight UTC.
func Fecha(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
