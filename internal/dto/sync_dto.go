package dto

import "github.com/shopspring/decimal"

// ─── Request DTOs ────────────────────────────────────────────────────────────

type SyncConsumosRequest struct {
	// Desde limits the sales considered; empty → full history.
	Desde string `json:"desde" validate:"omitempty,datetime=2006-01-02"`
}

type SyncAdelantosRequest struct {
	Desde string `json:"desde" validate:"omitempty,datetime=2006-01-02"`
	Hasta string `json:"hasta" validate:"omitempty,datetime=2006-01-02"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type SyncConsumosResponse struct {
	Success        bool            `json:"success"`
	EmpleadoID     int             `json:"empleado_id"`
	NuevosConsumos int             `json:"nuevos_consumos"`
	NuevosAbonos   int             `json:"nuevos_abonos"`
	Duplicados     int             `json:"duplicados"`
	Errores        []string        `json:"errores"`
	SaldoPendiente decimal.Decimal `json:"saldo_pendiente"`
}

type SyncEmpleadoError struct {
	EmpleadoID int    `json:"empleado_id"`
	Error      string `json:"error"`
}

type SyncTodosResponse struct {
	Success             bool                   `json:"success"`
	EmpleadosProcesados int                    `json:"empleados_procesados"`
	ConsumosNuevos      int                    `json:"consumos_nuevos"`
	AbonosNuevos        int                    `json:"abonos_nuevos"`
	Duplicados          int                    `json:"duplicados"`
	Resultados          []SyncConsumosResponse `json:"resultados"`
	Errores             []SyncEmpleadoError    `json:"errores"`
}

// Audit states for one cash-drawer event.
const (
	AdelantoCreado     = "creado"
	AdelantoDuplicado  = "duplicado"
	AdelantoSinAsociar = "sin_asociar"
	AdelantoError      = "error"
)

type AdelantoAuditoria struct {
	Referencia   string          `json:"referencia"`
	Fecha        string          `json:"fecha"`
	Monto        decimal.Decimal `json:"monto"`
	Comentario   string          `json:"comentario"`
	Estado       string          `json:"estado"`
	EmpleadoID   *int            `json:"empleado_id,omitempty"`
	MovimientoID *string         `json:"movimiento_id,omitempty"`
	Motivo       string          `json:"motivo,omitempty"`
	Sugerencia   string          `json:"sugerencia,omitempty"`
	Advertencias []string        `json:"advertencias,omitempty"`
}

type SyncAdelantosResponse struct {
	Success    bool                `json:"success"`
	Desde      string              `json:"desde"`
	Hasta      string              `json:"hasta"`
	Procesados int                 `json:"procesados"`
	Creados    int                 `json:"creados"`
	Duplicados int                 `json:"duplicados"`
	SinAsociar int                 `json:"sin_asociar"`
	Errores    int                 `json:"errores"`
	Auditoria  []AdelantoAuditoria `json:"auditoria"`
}
