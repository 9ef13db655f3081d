package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gestornomina/internal/dto"
	"gestornomina/internal/infra"
	"gestornomina/internal/model"
	"gestornomina/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type LiquidacionService interface {
	Liquidar(ctx context.Context, id uuid.UUID) (*dto.LiquidacionResponse, error)
	ReintentarPublicacion(ctx context.Context, id uuid.UUID) (*dto.PublicacionPOS, error)
	VerificarConsistencia(ctx context.Context, reparar bool) (*dto.ConsistenciaResponse, error)
}

type liquidacionService struct {
	nominas     repository.NominaRepository
	movimientos repository.MovimientoRepository
	empleados   repository.EmpleadoRepository
	pos         POS // nil disables posting
	loc         *time.Location
	now         func() time.Time
}

func NewLiquidacionService(
	nominas repository.NominaRepository,
	movimientos repository.MovimientoRepository,
	empleados repository.EmpleadoRepository,
	pos POS,
	loc *time.Location,
) LiquidacionService {
	if loc == nil {
		loc = time.UTC
	}
	return &liquidacionService{
		nominas:     nominas,
		movimientos: movimientos,
		empleados:   empleados,
		pos:         pos,
		loc:         loc,
		now:         time.Now,
	}
}

// ── Liquidar ──────────────────────────────────────────────────────────────────
// OPEN → SETTLED in one transaction:
//   1. every non-deferred directive settles its movement to this period
//   2. a parcial directive leaves an unsettled remainder movement behind
//   3. abonos dated inside the period are settled with it, up to the
//      discounted consumption; the excess is carried forward
//   4. the period is frozen
// The reconciling POS posting happens after commit; its failure is recorded
// on the period and never undoes the settlement.

func (s *liquidacionService) Liquidar(ctx context.Context, id uuid.UUID) (*dto.LiquidacionResponse, error) {
	// roster read stays outside the transaction
	previa, err := s.nominas.FindByID(ctx, nil, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, noEncontrado("nómina", id)
	}
	if err != nil {
		return nil, err
	}
	emp, err := s.empleados.FindByID(ctx, previa.EmpleadoID)
	if errors.Is(err, model.ErrEmpleadoNoEncontrado) {
		return nil, noEncontrado("empleado", previa.EmpleadoID)
	}
	if err != nil {
		return nil, err
	}

	resp := &dto.LiquidacionResponse{
		NominaID:           id.String(),
		EmpleadoID:         emp.ID,
		DescuentoConsumos:  decimal.Zero,
		DescuentoAdelantos: decimal.Zero,
		AbonosAplicados:    decimal.Zero,
		Arrastres:          []dto.SaldoArrastrado{},
	}
	var n *model.Nomina

	err = runTx(ctx, s.nominas.DB(), func(tx *gorm.DB) error {
		var err error
		n, err = s.nominas.FindByID(ctx, tx, id)
		if err != nil {
			return err
		}
		if n.Liquidada {
			return conflicto("nómina", id, "ya fue liquidada")
		}

		var ids []uuid.UUID
		for _, d := range n.Directivas {
			if d.Directiva == model.DirectivaDiferir {
				continue
			}
			m := d.Movimiento
			if m == nil {
				return conflicto("nómina", id, "una directiva apunta a un movimiento inexistente")
			}
			ids = append(ids, m.ID)
			switch m.Tipo {
			case model.TipoConsumo:
				resp.DescuentoConsumos = resp.DescuentoConsumos.Add(d.MontoADescontar)
			case model.TipoAdelanto:
				resp.DescuentoAdelantos = resp.DescuentoAdelantos.Add(d.MontoADescontar)
			}
			if d.Directiva == model.DirectivaParcial {
				resto, err := s.arrastrar(ctx, tx, n, m, d.MontoADescontar)
				if err != nil {
					return err
				}
				resp.Arrastres = append(resp.Arrastres, dto.SaldoArrastrado{
					MovimientoOrigenID: m.ID.String(),
					MovimientoID:       resto.ID.String(),
					Monto:              resto.Monto,
				})
			}
		}

		afectados, err := s.movimientos.MarcarDescontados(ctx, tx, ids, n.ID)
		if err != nil {
			return err
		}
		if afectados != int64(len(ids)) {
			return conflicto("nómina", id, "uno o más movimientos ya fueron descontados en otra nómina")
		}

		abonos, err := s.movimientos.ListPendientes(ctx, tx, n.EmpleadoID, model.TipoAbono)
		if err != nil {
			return err
		}
		// in-window credits offset the discounted consumption; any excess is
		// carried to the next period instead of being settled away
		cupo := resp.DescuentoConsumos
		var abonoIDs []uuid.UUID
		for i := range abonos {
			a := &abonos[i]
			if !n.Contiene(a.Fecha, s.loc) {
				continue
			}
			aplicado := decimal.Min(a.Monto, cupo)
			cupo = cupo.Sub(aplicado)
			abonoIDs = append(abonoIDs, a.ID)
			resp.AbonosAplicados = resp.AbonosAplicados.Add(aplicado)
			if aplicado.LessThan(a.Monto) {
				resto, err := s.arrastrar(ctx, tx, n, a, aplicado)
				if err != nil {
					return err
				}
				resp.Arrastres = append(resp.Arrastres, dto.SaldoArrastrado{
					MovimientoOrigenID: a.ID.String(),
					MovimientoID:       resto.ID.String(),
					Monto:              resto.Monto,
				})
			}
		}
		if _, err := s.movimientos.MarcarDescontados(ctx, tx, abonoIDs, n.ID); err != nil {
			return err
		}

		// advances never post to the POS; credits already live in the POS balance
		reportar := resp.DescuentoConsumos.Sub(resp.AbonosAplicados)

		ahora := s.now()
		n.Recalcular()
		n.Liquidada = true
		n.LiquidadaAt = &ahora
		n.MontoReportadoPOS = reportar
		return s.nominas.Update(ctx, tx, n)
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, noEncontrado("nómina", id)
		}
		return nil, err
	}

	resp.Bruto = n.Bruto()
	resp.Deducciones = n.Deducciones
	resp.TotalDescontado = n.TotalDescuentos
	resp.MontoAPagar = n.TotalPagar
	resp.LiquidadaAt = n.LiquidadaAt.In(s.loc).Format(time.RFC3339)
	resp.Success = true

	log.Info().
		Int("empleado_id", emp.ID).
		Str("nomina_id", id.String()).
		Str("total_descontado", resp.TotalDescontado.String()).
		Str("monto_a_pagar", resp.MontoAPagar.String()).
		Int("arrastres", len(resp.Arrastres)).
		Msg("nómina liquidada")

	pub, _ := s.publicar(ctx, n, emp)
	resp.Publicacion = *pub
	return resp, nil
}

// arrastrar creates the unsettled remainder of a partially discounted
// movement, dated the day after the period so the next period picks it up.
func (s *liquidacionService) arrastrar(ctx context.Context, tx *gorm.DB, n *model.Nomina, m *model.Movimiento, descontado decimal.Decimal) (*model.Movimiento, error) {
	y, mo, d := n.PeriodoFin.Date()
	origen := m.ID
	resto := &model.Movimiento{
		EmpleadoID:         m.EmpleadoID,
		Fecha:              time.Date(y, mo, d+1, 12, 0, 0, 0, s.loc),
		Tipo:               m.Tipo,
		Monto:              m.Monto.Sub(descontado),
		Descripcion:        "Saldo pendiente: " + m.Descripcion,
		MovimientoOrigenID: &origen,
	}
	if err := s.movimientos.Create(ctx, tx, resto); err != nil {
		return nil, err
	}
	return resto, nil
}

// ── Publicación en el POS ─────────────────────────────────────────────────────

func (s *liquidacionService) publicar(ctx context.Context, n *model.Nomina, emp *model.Empleado) (*dto.PublicacionPOS, error) {
	pub := &dto.PublicacionPOS{Monto: n.MontoReportadoPOS}
	switch {
	case !n.MontoReportadoPOS.IsPositive():
		pub.Estado, pub.Motivo = dto.PublicacionOmitida, "no hay consumos que reportar"
		return pub, nil
	case !emp.TieneCuentaPOS():
		pub.Estado, pub.Motivo = dto.PublicacionOmitida, "el empleado no tiene cuenta corriente en el POS"
		return pub, nil
	case s.pos == nil:
		pub.Estado, pub.Motivo = dto.PublicacionOmitida, "integración con el POS deshabilitada"
		return pub, nil
	}

	comentario := fmt.Sprintf("Descuento nómina %s a %s - %s",
		n.PeriodoInicio.Format(layoutFecha), n.PeriodoFin.Format(layoutFecha), emp.Nombre)
	ref, err := s.pos.CrearTransaccion(ctx, infra.TransaccionPOSRequest{
		CustomerID: *emp.FudoCustomerID,
		Monto:      n.MontoReportadoPOS,
		Comentario: comentario,
	})
	if err != nil {
		msg := err.Error()
		log.Warn().Err(err).
			Str("nomina_id", n.ID.String()).
			Str("monto", n.MontoReportadoPOS.String()).
			Msg("no se pudo publicar la liquidación en el POS; reintentar luego")
		if gerr := s.nominas.GuardarPublicacion(ctx, n.ID, nil, &msg); gerr != nil {
			log.Error().Err(gerr).Str("nomina_id", n.ID.String()).Msg("no se pudo guardar el error de publicación")
		}
		pub.Estado, pub.Error = dto.PublicacionFallida, msg
		return pub, externo("crear transacción", err)
	}

	if err := s.nominas.GuardarPublicacion(ctx, n.ID, &ref, nil); err != nil {
		// the POS has the posting; a retry would duplicate it
		log.Error().Err(err).Str("nomina_id", n.ID.String()).Str("referencia", ref).
			Msg("publicación hecha pero no registrada")
	}
	n.ReferenciaPOS, n.ErrorPOS = &ref, nil
	pub.Estado, pub.Referencia = dto.PublicacionPublicada, &ref
	log.Info().Str("nomina_id", n.ID.String()).Str("referencia", ref).Msg("liquidación publicada en el POS")
	return pub, nil
}

// ReintentarPublicacion posts a settled period whose earlier posting failed.
// A period that already has a reference is returned as is.
func (s *liquidacionService) ReintentarPublicacion(ctx context.Context, id uuid.UUID) (*dto.PublicacionPOS, error) {
	n, err := s.nominas.FindByID(ctx, nil, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, noEncontrado("nómina", id)
	}
	if err != nil {
		return nil, err
	}
	if !n.Liquidada {
		return nil, conflicto("nómina", id, "no está liquidada")
	}
	if n.ReferenciaPOS != nil {
		return &dto.PublicacionPOS{
			Estado:     dto.PublicacionPublicada,
			Monto:      n.MontoReportadoPOS,
			Referencia: n.ReferenciaPOS,
		}, nil
	}
	emp, err := s.empleados.FindByID(ctx, n.EmpleadoID)
	if errors.Is(err, model.ErrEmpleadoNoEncontrado) {
		return nil, noEncontrado("empleado", n.EmpleadoID)
	}
	if err != nil {
		return nil, err
	}
	pub, err := s.publicar(ctx, n, emp)
	if err == nil && pub.Estado == dto.PublicacionOmitida && n.ErrorPOS != nil {
		// nothing left to post; stop the background retry from picking it up
		if gerr := s.nominas.GuardarPublicacion(ctx, n.ID, nil, nil); gerr != nil {
			return nil, gerr
		}
	}
	return pub, err
}

// ── Consistencia ──────────────────────────────────────────────────────────────

// VerificarConsistencia lists movements settled to a period that is not
// settled (or no longer exists) and, with reparar, returns them to pending.
func (s *liquidacionService) VerificarConsistencia(ctx context.Context, reparar bool) (*dto.ConsistenciaResponse, error) {
	movs, err := s.movimientos.ListHuerfanos(ctx)
	if err != nil {
		return nil, err
	}
	resp := &dto.ConsistenciaResponse{Inconsistencias: make([]dto.Inconsistencia, 0, len(movs))}
	ids := make([]uuid.UUID, 0, len(movs))
	for _, m := range movs {
		inc := dto.Inconsistencia{MovimientoID: m.ID.String(), EmpleadoID: m.EmpleadoID, Monto: m.Monto}
		if m.NominaID != nil {
			inc.NominaID = m.NominaID.String()
		}
		resp.Inconsistencias = append(resp.Inconsistencias, inc)
		ids = append(ids, m.ID)
	}
	if reparar && len(ids) > 0 {
		if resp.Reparados, err = s.movimientos.Revertir(ctx, ids); err != nil {
			return nil, err
		}
		log.Warn().Int64("reparados", resp.Reparados).Msg("movimientos huérfanos devueltos a pendientes")
	}
	resp.Success = len(resp.Inconsistencias) == 0 || (reparar && resp.Reparados == int64(len(ids)))
	return resp, nil
}
