package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gestornomina/internal/dto"
	"gestornomina/internal/infra"
	"gestornomina/internal/memo"
	"gestornomina/internal/model"
	"gestornomina/internal/repository"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// POS is the subset of the FUDO client the services depend on.
type POS interface {
	ListarVentas(ctx context.Context, customerID string) ([]infra.VentaPOS, error)
	ListarTransacciones(ctx context.Context, customerID string) ([]infra.TransaccionPOS, error)
	ListarMovimientosCaja(ctx context.Context, desde, hasta time.Time) ([]infra.MovimientoCajaPOS, error)
	CrearTransaccion(ctx context.Context, req infra.TransaccionPOSRequest) (string, error)
	SaldoCuenta(ctx context.Context, customerID string) (decimal.Decimal, error)
}

type SyncService interface {
	SincronizarConsumos(ctx context.Context, empleadoID int, req dto.SyncConsumosRequest) (*dto.SyncConsumosResponse, error)
	SincronizarTodosConsumos(ctx context.Context) (*dto.SyncTodosResponse, error)
	SincronizarAdelantos(ctx context.Context, req dto.SyncAdelantosRequest) (*dto.SyncAdelantosResponse, error)
}

// SyncConfig carries the POS conventions of the restaurant.
type SyncConfig struct {
	// MetodoCuentaCorriente is the payment-method code (or name) of house-account payments.
	MetodoCuentaCorriente string
	DiasAdelantos         int
	Location              *time.Location
}

type syncService struct {
	empleados   repository.EmpleadoRepository
	movimientos repository.MovimientoRepository
	nominas     repository.NominaRepository
	pos         POS
	validador   *memo.Validador
	parser      *memo.Parser
	cfg         SyncConfig
	now         func() time.Time
}

func NewSyncService(
	empleados repository.EmpleadoRepository,
	movimientos repository.MovimientoRepository,
	nominas repository.NominaRepository,
	pos POS,
	validador *memo.Validador,
	cfg SyncConfig,
) SyncService {
	if cfg.MetodoCuentaCorriente == "" {
		cfg.MetodoCuentaCorriente = "cta-cte"
	}
	if cfg.DiasAdelantos <= 0 {
		cfg.DiasAdelantos = 7
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	// the validador may be shared; its parser is read, never replaced
	parser := validador.Parser
	if parser == nil {
		parser = memo.NewParser()
	}
	now := parser.Now
	if now == nil {
		now = time.Now
	}
	return &syncService{
		empleados:   empleados,
		movimientos: movimientos,
		nominas:     nominas,
		pos:         pos,
		validador:   validador,
		parser:      parser,
		cfg:         cfg,
		now:         now,
	}
}

// ── Consumos y abonos ─────────────────────────────────────────────────────────
// One consumo per sale (dedup on the sale id) for the house-account part of
// the sale, one abono per positive account transaction (dedup on the
// transaction id). Existing movements are never updated.

func (s *syncService) SincronizarConsumos(ctx context.Context, empleadoID int, req dto.SyncConsumosRequest) (*dto.SyncConsumosResponse, error) {
	emp, err := s.empleados.FindByID(ctx, empleadoID)
	if errors.Is(err, model.ErrEmpleadoNoEncontrado) {
		return nil, noEncontrado("empleado", empleadoID)
	}
	if err != nil {
		return nil, err
	}
	if !emp.TieneCuentaPOS() {
		return nil, invalido("empleado_id", "el empleado no tiene cuenta corriente vinculada en el POS")
	}

	var desde time.Time
	if req.Desde != "" {
		if desde, err = parseFechaLocal("desde", req.Desde, s.cfg.Location, 0); err != nil {
			return nil, err
		}
	}

	cuenta := *emp.FudoCustomerID
	ventas, err := s.pos.ListarVentas(ctx, cuenta)
	if err != nil {
		return nil, externo("listar ventas", err)
	}

	resp := &dto.SyncConsumosResponse{EmpleadoID: emp.ID, Errores: []string{}}

	for _, v := range ventas {
		if !desde.IsZero() && v.Fecha.Before(desde) {
			continue
		}
		monto := s.montoCuentaCorriente(v)
		if !monto.IsPositive() {
			continue
		}
		ref := v.ID
		mov := &model.Movimiento{
			EmpleadoID:  emp.ID,
			Fecha:       v.Fecha,
			Tipo:        model.TipoConsumo,
			Monto:       monto,
			Descripcion: fmt.Sprintf("Consumo POS venta #%s", v.ID),
			FudoSaleID:  &ref,
		}
		switch nuevo, err := s.insertar(ctx, repository.ClaveVenta, ref, mov); {
		case err != nil:
			resp.Errores = append(resp.Errores, fmt.Sprintf("venta %s: %v", ref, err))
		case nuevo:
			resp.NuevosConsumos++
		default:
			resp.Duplicados++
		}
	}

	if err := s.sincronizarAbonos(ctx, emp, desde, resp); err != nil {
		resp.Errores = append(resp.Errores, err.Error())
	}

	pend, err := s.movimientos.ListPendientes(ctx, nil, emp.ID, model.TipoConsumo, model.TipoAbono)
	if err != nil {
		return nil, err
	}
	saldo := decimal.Zero
	for _, m := range pend {
		if m.Tipo == model.TipoAbono {
			saldo = saldo.Sub(m.Monto)
		} else {
			saldo = saldo.Add(m.Monto)
		}
	}
	resp.SaldoPendiente = saldo
	resp.Success = len(resp.Errores) == 0

	log.Info().
		Int("empleado_id", emp.ID).
		Int("nuevos_consumos", resp.NuevosConsumos).
		Int("nuevos_abonos", resp.NuevosAbonos).
		Int("duplicados", resp.Duplicados).
		Int("errores", len(resp.Errores)).
		Str("saldo_pendiente", saldo.String()).
		Msg("sync: consumos sincronizados")
	return resp, nil
}

func (s *syncService) sincronizarAbonos(ctx context.Context, emp *model.Empleado, desde time.Time, resp *dto.SyncConsumosResponse) error {
	txs, err := s.pos.ListarTransacciones(ctx, *emp.FudoCustomerID)
	if err != nil {
		return externo("listar transacciones", err)
	}
	propias, err := s.nominas.ReferenciasPOS(ctx)
	if err != nil {
		return err
	}
	for _, t := range txs {
		if !t.Monto.IsPositive() {
			continue
		}
		// payroll postings made by this service are already settled here
		if _, ok := propias[t.ID]; ok {
			continue
		}
		if !desde.IsZero() && t.Fecha.Before(desde) {
			continue
		}
		ref := t.ID
		desc := "Abono POS"
		if c := strings.TrimSpace(t.Comentario); c != "" {
			desc += ": " + c
		}
		mov := &model.Movimiento{
			EmpleadoID:        emp.ID,
			Fecha:             t.Fecha,
			Tipo:              model.TipoAbono,
			Monto:             t.Monto,
			Descripcion:       desc,
			FudoTransactionID: &ref,
		}
		switch nuevo, err := s.insertar(ctx, repository.ClaveTransaccion, ref, mov); {
		case err != nil:
			resp.Errores = append(resp.Errores, fmt.Sprintf("transacción %s: %v", ref, err))
		case nuevo:
			resp.NuevosAbonos++
		default:
			resp.Duplicados++
		}
	}
	return nil
}

// montoCuentaCorriente sums the non-cancelled house-account payments of a sale.
func (s *syncService) montoCuentaCorriente(v infra.VentaPOS) decimal.Decimal {
	total := decimal.Zero
	for _, p := range v.Pagos {
		if p.Cancelado {
			continue
		}
		if strings.EqualFold(p.MetodoCodigo, s.cfg.MetodoCuentaCorriente) ||
			strings.EqualFold(p.MetodoNombre, s.cfg.MetodoCuentaCorriente) {
			total = total.Add(p.Monto)
		}
	}
	return total
}

// insertar creates mov unless its dedup key already exists. A unique-index
// violation from a concurrent run counts as a duplicate.
func (s *syncService) insertar(ctx context.Context, clave repository.ClaveExterna, ref string, mov *model.Movimiento) (bool, error) {
	existe, err := s.movimientos.ExisteClave(ctx, clave, ref)
	if err != nil {
		return false, err
	}
	if existe {
		return false, nil
	}
	if err := s.movimientos.Create(ctx, nil, mov); err != nil {
		if repository.EsDuplicado(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *syncService) SincronizarTodosConsumos(ctx context.Context) (*dto.SyncTodosResponse, error) {
	emps, err := s.empleados.ListConCuentaPOS(ctx)
	if err != nil {
		return nil, err
	}
	out := &dto.SyncTodosResponse{
		Resultados: make([]dto.SyncConsumosResponse, 0, len(emps)),
		Errores:    []dto.SyncEmpleadoError{},
	}
	for _, e := range emps {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		r, err := s.SincronizarConsumos(ctx, e.ID, dto.SyncConsumosRequest{})
		out.EmpleadosProcesados++
		if err != nil {
			log.Warn().Err(err).Int("empleado_id", e.ID).Msg("sync: consumos fallidos")
			out.Errores = append(out.Errores, dto.SyncEmpleadoError{EmpleadoID: e.ID, Error: err.Error()})
			continue
		}
		out.ConsumosNuevos += r.NuevosConsumos
		out.AbonosNuevos += r.NuevosAbonos
		out.Duplicados += r.Duplicados
		out.Resultados = append(out.Resultados, *r)
		if !r.Success {
			out.Errores = append(out.Errores, dto.SyncEmpleadoError{EmpleadoID: e.ID, Error: strings.Join(r.Errores, "; ")})
		}
	}
	out.Success = len(out.Errores) == 0
	return out, nil
}

// ── Adelantos de caja ─────────────────────────────────────────────────────────
// Cash-drawer outflows whose memo names an employee become adelantos.

func (s *syncService) SincronizarAdelantos(ctx context.Context, req dto.SyncAdelantosRequest) (*dto.SyncAdelantosResponse, error) {
	loc := s.cfg.Location
	hasta := s.now().In(loc)
	if req.Hasta != "" {
		h, err := parseFechaLocal("hasta", req.Hasta, loc, 0)
		if err != nil {
			return nil, err
		}
		hasta = h.AddDate(0, 0, 1).Add(-time.Nanosecond)
	}
	desde := hasta.AddDate(0, 0, -s.cfg.DiasAdelantos)
	if req.Desde != "" {
		d, err := parseFechaLocal("desde", req.Desde, loc, 0)
		if err != nil {
			return nil, err
		}
		desde = d
	}
	if desde.After(hasta) {
		return nil, invalido("desde", "la fecha inicial es posterior a la final")
	}

	eventos, err := s.pos.ListarMovimientosCaja(ctx, desde, hasta)
	if err != nil {
		return nil, externo("listar movimientos de caja", err)
	}

	resp := &dto.SyncAdelantosResponse{
		Desde:     desde.Format(time.RFC3339),
		Hasta:     hasta.Format(time.RFC3339),
		Auditoria: []dto.AdelantoAuditoria{},
	}
	for _, ev := range eventos {
		if !ev.EsEgreso() {
			continue
		}
		resp.Procesados++
		a := s.procesarAdelanto(ctx, ev)
		switch a.Estado {
		case dto.AdelantoCreado:
			resp.Creados++
		case dto.AdelantoDuplicado:
			resp.Duplicados++
		case dto.AdelantoSinAsociar:
			resp.SinAsociar++
		default:
			resp.Errores++
			log.Warn().Str("referencia", ev.ID).Str("motivo", a.Motivo).Msg("sync: adelanto no registrado")
		}
		resp.Auditoria = append(resp.Auditoria, a)
	}
	resp.Success = resp.Errores == 0

	log.Info().
		Int("procesados", resp.Procesados).
		Int("creados", resp.Creados).
		Int("duplicados", resp.Duplicados).
		Int("sin_asociar", resp.SinAsociar).
		Int("errores", resp.Errores).
		Msg("sync: adelantos sincronizados")
	return resp, nil
}

func (s *syncService) procesarAdelanto(ctx context.Context, ev infra.MovimientoCajaPOS) dto.AdelantoAuditoria {
	monto := ev.Monto.Abs()
	a := dto.AdelantoAuditoria{
		Referencia: ev.ID,
		Fecha:      ev.Fecha.In(s.cfg.Location).Format(time.RFC3339),
		Monto:      monto,
		Comentario: ev.Comentario,
	}

	r, fallo := s.parser.Parse(ev.Comentario)
	if fallo != nil {
		a.Estado, a.Motivo, a.Sugerencia = dto.AdelantoSinAsociar, fallo.Motivo, fallo.Sugerencia
		return a
	}
	id := r.EmpleadoID
	a.EmpleadoID = &id

	v, fallo, err := s.validador.Validar(ctx, r)
	switch {
	case err != nil:
		a.Estado, a.Motivo = dto.AdelantoError, err.Error()
		return a
	case fallo != nil:
		a.Estado, a.Motivo, a.Sugerencia = dto.AdelantoError, fallo.Motivo, fallo.Sugerencia
		return a
	}
	a.Advertencias = v.Advertencias

	if !monto.IsPositive() {
		a.Estado, a.Motivo = dto.AdelantoError, "monto cero"
		return a
	}

	ref := ev.ID
	desc := v.Detalle
	if desc == "" {
		desc = "Adelanto de caja"
	}
	mov := &model.Movimiento{
		EmpleadoID:    v.Empleado.ID,
		Fecha:         ev.Fecha,
		Tipo:          model.TipoAdelanto,
		Monto:         monto,
		Descripcion:   desc,
		FudoPaymentID: &ref,
	}
	nuevo, err := s.insertar(ctx, repository.ClavePago, ref, mov)
	switch {
	case err != nil:
		a.Estado, a.Motivo = dto.AdelantoError, err.Error()
	case nuevo:
		a.Estado = dto.AdelantoCreado
		a.MovimientoID = strPtr(mov.ID.String())
	default:
		a.Estado = dto.AdelantoDuplicado
	}
	return a
}
