package dto

import "github.com/shopspring/decimal"

// ─── Request DTOs ────────────────────────────────────────────────────────────

type AbrirNominaRequest struct {
	EmpleadoID    int    `json:"empleado_id"    validate:"required,min=1"`
	PeriodoInicio string `json:"periodo_inicio" validate:"required,datetime=2006-01-02"`
	PeriodoFin    string `json:"periodo_fin"    validate:"required,datetime=2006-01-02"`
	// DiasTrabajados defaults to the period length, capped at 30.
	DiasTrabajados *int            `json:"dias_trabajados" validate:"omitempty,min=0,max=31"`
	Propinas       decimal.Decimal `json:"propinas"        validate:"min=0"`
	Bonos          decimal.Decimal `json:"bonos"           validate:"min=0"`
	Deducciones    decimal.Decimal `json:"deducciones"     validate:"min=0"`
}

type ActualizarNominaRequest struct {
	DiasTrabajados *int             `json:"dias_trabajados" validate:"omitempty,min=0,max=31"`
	Propinas       *decimal.Decimal `json:"propinas"`
	Bonos          *decimal.Decimal `json:"bonos"`
	Deducciones    *decimal.Decimal `json:"deducciones"`
}

// DirectivaItem is validated per entry by the service so that one bad entry
// does not reject the whole batch.
type DirectivaItem struct {
	MovimientoID string           `json:"movimiento_id"`
	Directiva    string           `json:"directiva"`
	Monto        *decimal.Decimal `json:"monto"`
}

type ModificarDirectivasRequest struct {
	Directivas []DirectivaItem `json:"directivas" validate:"required,min=1"`
}

// Global budget orders.
const (
	OrdenAntiguosPrimero  = "antiguos_primero"
	OrdenRecientesPrimero = "recientes_primero"
)

type PresupuestoGlobalRequest struct {
	MontoMaximo decimal.Decimal `json:"monto_maximo" validate:"min=0"`
	Orden       string          `json:"orden"        validate:"omitempty,oneof=antiguos_primero recientes_primero"`
}

type AgregarMovimientosRequest struct {
	MovimientoIDs []string `json:"movimiento_ids" validate:"required,min=1"`
	// Directiva defaults to completo.
	Directiva string           `json:"directiva"`
	Monto     *decimal.Decimal `json:"monto"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type DirectivaResponse struct {
	ID              string          `json:"id"`
	MovimientoID    string          `json:"movimiento_id"`
	Tipo            string          `json:"tipo"`
	Fecha           string          `json:"fecha"`
	Descripcion     string          `json:"descripcion"`
	MontoMovimiento decimal.Decimal `json:"monto_movimiento"`
	Directiva       string          `json:"directiva"`
	MontoADescontar decimal.Decimal `json:"monto_a_descontar"`
	MontoPendiente  decimal.Decimal `json:"monto_pendiente"`
}

type NominaResponse struct {
	ID                string              `json:"id"`
	EmpleadoID        int                 `json:"empleado_id"`
	PeriodoInicio     string              `json:"periodo_inicio"`
	PeriodoFin        string              `json:"periodo_fin"`
	DiasTrabajados    int                 `json:"dias_trabajados"`
	MontoBase         decimal.Decimal     `json:"monto_base"`
	Propinas          decimal.Decimal     `json:"propinas"`
	Bonos             decimal.Decimal     `json:"bonos"`
	Bruto             decimal.Decimal     `json:"bruto"`
	Deducciones       decimal.Decimal     `json:"deducciones"`
	TotalDescuentos   decimal.Decimal     `json:"total_descuentos"`
	TotalPagar        decimal.Decimal     `json:"total_pagar"`
	Liquidada         bool                `json:"liquidada"`
	LiquidadaAt       *string             `json:"liquidada_at,omitempty"`
	ReferenciaPOS     *string             `json:"referencia_pos,omitempty"`
	MontoReportadoPOS decimal.Decimal     `json:"monto_reportado_pos"`
	ErrorPOS          *string             `json:"error_pos,omitempty"`
	Directivas        []DirectivaResponse `json:"directivas"`
	// Consistente is false when movements are settled to this period while
	// the period itself is not.
	Consistente bool `json:"consistente"`
}

type ItemResultado struct {
	MovimientoID string          `json:"movimiento_id"`
	Success      bool            `json:"success"`
	Directiva    string          `json:"directiva,omitempty"`
	Monto        decimal.Decimal `json:"monto"`
	Error        string          `json:"error,omitempty"`
}

type ConfiguracionResponse struct {
	Success    bool            `json:"success"`
	Resultados []ItemResultado `json:"resultados"`
	Nomina     *NominaResponse `json:"nomina"`
}

type SaldoArrastrado struct {
	MovimientoOrigenID string          `json:"movimiento_origen_id"`
	MovimientoID       string          `json:"movimiento_id"`
	Monto              decimal.Decimal `json:"monto"`
}

// Posting outcomes.
const (
	PublicacionPublicada = "publicada"
	PublicacionFallida   = "fallida"
	PublicacionOmitida   = "omitida"
)

type PublicacionPOS struct {
	Estado     string          `json:"estado"`
	Monto      decimal.Decimal `json:"monto"`
	Referencia *string         `json:"referencia,omitempty"`
	Motivo     string          `json:"motivo,omitempty"`
	Error      string          `json:"error,omitempty"`
}

type LiquidacionResponse struct {
	Success            bool              `json:"success"`
	NominaID           string            `json:"nomina_id"`
	EmpleadoID         int               `json:"empleado_id"`
	Bruto              decimal.Decimal   `json:"bruto"`
	Deducciones        decimal.Decimal   `json:"deducciones"`
	DescuentoConsumos  decimal.Decimal   `json:"descuento_consumos"`
	DescuentoAdelantos decimal.Decimal   `json:"descuento_adelantos"`
	TotalDescontado    decimal.Decimal   `json:"total_descontado"`
	AbonosAplicados    decimal.Decimal   `json:"abonos_aplicados"`
	MontoAPagar        decimal.Decimal   `json:"monto_a_pagar"`
	Arrastres          []SaldoArrastrado `json:"arrastres"`
	Publicacion        PublicacionPOS    `json:"publicacion_pos"`
	LiquidadaAt        string            `json:"liquidada_at"`
}

type Inconsistencia struct {
	MovimientoID string          `json:"movimiento_id"`
	EmpleadoID   int             `json:"empleado_id"`
	NominaID     string          `json:"nomina_id"`
	Monto        decimal.Decimal `json:"monto"`
}

type ConsistenciaResponse struct {
	Success         bool             `json:"success"`
	Inconsistencias []Inconsistencia `json:"inconsistencias"`
	Reparados       int64            `json:"reparados"`
}
