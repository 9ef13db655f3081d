package service

import (
	"context"
	"time"

	"gestornomina/internal/dto"
	"gestornomina/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const layoutFecha = "2006-01-02"

// runTx executes fn inside a GORM transaction when db is available,
// or calls fn(nil) directly when db is nil (unit test mode).
func runTx(ctx context.Context, db *gorm.DB, fn func(tx *gorm.DB) error) error {
	if db == nil {
		return fn(nil)
	}
	return db.WithContext(ctx).Transaction(fn)
}

// parseFecha reads a yyyy-mm-dd calendar date as midnight UTC.
func parseFecha(field, s string) (time.Time, error) {
	t, err := time.Parse(layoutFecha, s)
	if err != nil {
		return time.Time{}, invalido(field, "fecha inválida, use AAAA-MM-DD")
	}
	return t, nil
}

// parseFechaLocal reads a calendar date as a local instant at the given clock hour.
func parseFechaLocal(field, s string, loc *time.Location, hour int) (time.Time, error) {
	t, err := time.ParseInLocation(layoutFecha, s, loc)
	if err != nil {
		return time.Time{}, invalido(field, "fecha inválida, use AAAA-MM-DD")
	}
	return t.Add(time.Duration(hour) * time.Hour), nil
}

func parseID(field, s string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, invalido(field, "identificador inválido")
	}
	return id, nil
}

func strPtr(s string) *string { return &s }

func uuidStr(id *uuid.UUID) *string {
	if id == nil {
		return nil
	}
	s := id.String()
	return &s
}

// ── Conversions ───────────────────────────────────────────────────────────────

func movimientoToResponse(m *model.Movimiento, loc *time.Location) dto.MovimientoResponse {
	origen := "manual"
	switch {
	case m.DesdePOS():
		origen = "pos"
	case m.MovimientoOrigenID != nil:
		origen = "arrastre"
	}
	return dto.MovimientoResponse{
		ID:                 m.ID.String(),
		EmpleadoID:         m.EmpleadoID,
		Fecha:              m.Fecha.In(loc).Format(time.RFC3339),
		Tipo:               m.Tipo,
		Monto:              m.Monto,
		MontoOriginal:      m.MontoOriginal,
		Descripcion:        m.Descripcion,
		Descontado:         m.Descontado,
		NominaID:           uuidStr(m.NominaID),
		Origen:             origen,
		ReferenciaExterna:  m.ClaveExterna(),
		MovimientoOrigenID: uuidStr(m.MovimientoOrigenID),
	}
}

func nominaToResponse(n *model.Nomina, loc *time.Location, consistente bool) *dto.NominaResponse {
	resp := &dto.NominaResponse{
		ID:                n.ID.String(),
		EmpleadoID:        n.EmpleadoID,
		PeriodoInicio:     n.PeriodoInicio.Format(layoutFecha),
		PeriodoFin:        n.PeriodoFin.Format(layoutFecha),
		DiasTrabajados:    n.DiasTrabajados,
		MontoBase:         n.MontoBase,
		Propinas:          n.Propinas,
		Bonos:             n.Bonos,
		Bruto:             n.Bruto(),
		Deducciones:       n.Deducciones,
		TotalDescuentos:   n.TotalDescuentos,
		TotalPagar:        n.TotalPagar,
		Liquidada:         n.Liquidada,
		ReferenciaPOS:     n.ReferenciaPOS,
		MontoReportadoPOS: n.MontoReportadoPOS,
		ErrorPOS:          n.ErrorPOS,
		Directivas:        make([]dto.DirectivaResponse, 0, len(n.Directivas)),
		Consistente:       consistente,
	}
	if n.LiquidadaAt != nil {
		resp.LiquidadaAt = strPtr(n.LiquidadaAt.In(loc).Format(time.RFC3339))
	}
	for _, d := range n.Directivas {
		dr := dto.DirectivaResponse{
			ID:              d.ID.String(),
			MovimientoID:    d.MovimientoID.String(),
			Directiva:       d.Directiva,
			MontoADescontar: d.MontoADescontar,
		}
		if m := d.Movimiento; m != nil {
			dr.Tipo = m.Tipo
			dr.Fecha = m.Fecha.In(loc).Format(layoutFecha)
			dr.Descripcion = m.Descripcion
			dr.MontoMovimiento = m.Monto
			dr.MontoPendiente = m.Monto.Sub(d.MontoADescontar)
		}
		resp.Directivas = append(resp.Directivas, dr)
	}
	return resp
}
