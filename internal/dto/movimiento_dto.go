package dto

import "github.com/shopspring/decimal"

// ─── Request DTOs ────────────────────────────────────────────────────────────

type CrearMovimientoRequest struct {
	EmpleadoID  int             `json:"empleado_id" validate:"required,min=1"`
	Tipo        string          `json:"tipo"        validate:"required,oneof=consumo adelanto abono"`
	Monto       decimal.Decimal `json:"monto"       validate:"required,gt=0"`
	Descripcion string          `json:"descripcion" validate:"max=500"`
	Fecha       string          `json:"fecha"       validate:"omitempty,datetime=2006-01-02"`
}

// ActualizarMovimientoRequest: nil fields are left unchanged.
type ActualizarMovimientoRequest struct {
	Monto       *decimal.Decimal `json:"monto"`
	Descripcion *string          `json:"descripcion" validate:"omitempty,max=500"`
	Fecha       *string          `json:"fecha"       validate:"omitempty,datetime=2006-01-02"`
}

type AjustarMontoRequest struct {
	NuevoMonto decimal.Decimal `json:"nuevo_monto" validate:"required,gt=0"`
	Motivo     string          `json:"motivo"      validate:"max=300"`
}

type DescuentoPorcentajeRequest struct {
	// Porcentaje defaults to 15 (staff discount) when omitted.
	Porcentaje decimal.Decimal `json:"porcentaje" validate:"omitempty,gt=0,lt=100"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type MovimientoResponse struct {
	ID                 string           `json:"id"`
	EmpleadoID         int              `json:"empleado_id"`
	Fecha              string           `json:"fecha"`
	Tipo               string           `json:"tipo"`
	Monto              decimal.Decimal  `json:"monto"`
	MontoOriginal      *decimal.Decimal `json:"monto_original,omitempty"`
	Descripcion        string           `json:"descripcion"`
	Descontado         bool             `json:"descontado"`
	NominaID           *string          `json:"nomina_id,omitempty"`
	Origen             string           `json:"origen"` // pos | manual | arrastre
	ReferenciaExterna  string           `json:"referencia_externa,omitempty"`
	MovimientoOrigenID *string          `json:"movimiento_origen_id,omitempty"`
}

type AjusteMontoResponse struct {
	Success       bool            `json:"success"`
	MovimientoID  string          `json:"movimiento_id"`
	MontoOriginal decimal.Decimal `json:"monto_original"`
	MontoAnterior decimal.Decimal `json:"monto_anterior"`
	MontoNuevo    decimal.Decimal `json:"monto_nuevo"`
	Descuento     decimal.Decimal `json:"descuento"`
	Porcentaje    decimal.Decimal `json:"porcentaje"`
	Motivo        string          `json:"motivo,omitempty"`
}

type SaldoResponse struct {
	EmpleadoID int             `json:"empleado_id"`
	Consumos   decimal.Decimal `json:"consumos"`
	Adelantos  decimal.Decimal `json:"adelantos"`
	Abonos     decimal.Decimal `json:"abonos"`
	Saldo      decimal.Decimal `json:"saldo"`
	Pendientes int             `json:"pendientes"`
	// POS house-account balance, when the employee is linked and the POS answered.
	SaldoPOS *decimal.Decimal `json:"saldo_pos,omitempty"`
	ErrorPOS string           `json:"error_pos,omitempty"`
}
