package service

import (
	"context"
	"errors"
	"sort"
	"time"

	"gestornomina/internal/dto"
	"gestornomina/internal/model"
	"gestornomina/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const diasMes = 30

type NominaService interface {
	Abrir(ctx context.Context, req dto.AbrirNominaRequest) (*dto.NominaResponse, error)
	Actualizar(ctx context.Context, id uuid.UUID, req dto.ActualizarNominaRequest) (*dto.NominaResponse, error)
	Eliminar(ctx context.Context, id uuid.UUID) error
	Detalle(ctx context.Context, id uuid.UUID) (*dto.NominaResponse, error)
	ListarPorEmpleado(ctx context.Context, empleadoID int) ([]dto.NominaResponse, error)

	ModificarDirectivas(ctx context.Context, id uuid.UUID, req dto.ModificarDirectivasRequest) (*dto.ConfiguracionResponse, error)
	AplicarPresupuestoGlobal(ctx context.Context, id uuid.UUID, req dto.PresupuestoGlobalRequest) (*dto.ConfiguracionResponse, error)
	AgregarMovimientos(ctx context.Context, id uuid.UUID, req dto.AgregarMovimientosRequest) (*dto.ConfiguracionResponse, error)
}

type nominaService struct {
	repo        repository.NominaRepository
	movimientos repository.MovimientoRepository
	empleados   repository.EmpleadoRepository
	loc         *time.Location
}

func NewNominaService(
	repo repository.NominaRepository,
	movimientos repository.MovimientoRepository,
	empleados repository.EmpleadoRepository,
	loc *time.Location,
) NominaService {
	if loc == nil {
		loc = time.UTC
	}
	return &nominaService{repo: repo, movimientos: movimientos, empleados: empleados, loc: loc}
}

// MontoBase is round(salary × days / 30) in whole currency units.
func MontoBase(sueldo decimal.Decimal, dias int) decimal.Decimal {
	return sueldo.Mul(decimal.NewFromInt(int64(dias))).Div(decimal.NewFromInt(diasMes)).Round(0)
}

// abierta loads a period that can still be configured.
func (s *nominaService) abierta(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*model.Nomina, error) {
	n, err := s.repo.FindByID(ctx, tx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, noEncontrado("nómina", id)
	}
	if err != nil {
		return nil, err
	}
	if n.Liquidada {
		return nil, conflicto("nómina", id, "ya fue liquidada")
	}
	return n, nil
}

func (s *nominaService) respuesta(ctx context.Context, n *model.Nomina) (*dto.NominaResponse, error) {
	consistente := true
	if !n.Liquidada {
		huerfanos, err := s.movimientos.ContarDescontadosPorNomina(ctx, n.ID)
		if err != nil {
			return nil, err
		}
		consistente = huerfanos == 0
	}
	return nominaToResponse(n, s.loc, consistente), nil
}

func noNegativo(field string, v decimal.Decimal) error {
	if v.IsNegative() {
		return invalido(field, "no puede ser negativo")
	}
	return nil
}

// ── Abrir ─────────────────────────────────────────────────────────────────────
// Creates the period and one completo directive per unsettled consumo or
// adelanto dated inside it that no other open period has claimed.

func (s *nominaService) Abrir(ctx context.Context, req dto.AbrirNominaRequest) (*dto.NominaResponse, error) {
	inicio, err := parseFecha("periodo_inicio", req.PeriodoInicio)
	if err != nil {
		return nil, err
	}
	fin, err := parseFecha("periodo_fin", req.PeriodoFin)
	if err != nil {
		return nil, err
	}
	if fin.Before(inicio) {
		return nil, invalido("periodo_fin", "el fin del periodo es anterior al inicio")
	}
	for f, v := range map[string]decimal.Decimal{"propinas": req.Propinas, "bonos": req.Bonos, "deducciones": req.Deducciones} {
		if err := noNegativo(f, v); err != nil {
			return nil, err
		}
	}

	emp, err := s.empleados.FindByID(ctx, req.EmpleadoID)
	if errors.Is(err, model.ErrEmpleadoNoEncontrado) {
		return nil, noEncontrado("empleado", req.EmpleadoID)
	}
	if err != nil {
		return nil, err
	}
	if !emp.SueldoMensual.IsPositive() {
		return nil, invalido("sueldo_mensual", "el empleado no tiene un sueldo mensual válido")
	}

	n := &model.Nomina{
		EmpleadoID:    emp.ID,
		PeriodoInicio: inicio,
		PeriodoFin:    fin,
		Propinas:      req.Propinas,
		Bonos:         req.Bonos,
		Deducciones:   req.Deducciones,
	}
	n.DiasTrabajados = min(n.DiasPeriodo(), diasMes)
	if req.DiasTrabajados != nil {
		if *req.DiasTrabajados < 0 {
			return nil, invalido("dias_trabajados", "no puede ser negativo")
		}
		n.DiasTrabajados = *req.DiasTrabajados
	}
	n.MontoBase = MontoBase(emp.SueldoMensual, n.DiasTrabajados)

	err = runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		libres, err := s.movimientos.ListPendientesLibres(ctx, tx, emp.ID)
		if err != nil {
			return err
		}
		for _, m := range libres {
			if !n.Contiene(m.Fecha, s.loc) {
				continue
			}
			n.Directivas = append(n.Directivas, model.DirectivaDescuento{
				MovimientoID:    m.ID,
				Directiva:       model.DirectivaCompleto,
				MontoADescontar: m.Monto,
			})
		}
		n.Recalcular()
		if err := s.repo.Create(ctx, tx, n); err != nil {
			return err
		}
		n, err = s.repo.FindByID(ctx, tx, n.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Int("empleado_id", n.EmpleadoID).
		Str("nomina_id", n.ID.String()).
		Int("movimientos", len(n.Directivas)).
		Str("monto_base", n.MontoBase.String()).
		Str("total_pagar", n.TotalPagar.String()).
		Msg("nómina abierta")
	return s.respuesta(ctx, n)
}

// ── Actualizar / Eliminar / Consultas ─────────────────────────────────────────

func (s *nominaService) Actualizar(ctx context.Context, id uuid.UUID, req dto.ActualizarNominaRequest) (*dto.NominaResponse, error) {
	var n *model.Nomina
	var sueldo decimal.Decimal
	// a settled period reports the conflict before any input error
	actual, err := s.abierta(ctx, nil, id)
	if err != nil {
		return nil, err
	}
	if req.DiasTrabajados != nil && *req.DiasTrabajados < 0 {
		return nil, invalido("dias_trabajados", "no puede ser negativo")
	}
	for f, v := range map[string]*decimal.Decimal{"propinas": req.Propinas, "bonos": req.Bonos, "deducciones": req.Deducciones} {
		if v != nil {
			if err := noNegativo(f, *v); err != nil {
				return nil, err
			}
		}
	}
	if req.DiasTrabajados != nil {
		emp, err := s.empleados.FindByID(ctx, actual.EmpleadoID)
		if err != nil {
			return nil, err
		}
		sueldo = emp.SueldoMensual
	}

	err = runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		var err error
		if n, err = s.abierta(ctx, tx, id); err != nil {
			return err
		}
		if req.DiasTrabajados != nil {
			n.DiasTrabajados = *req.DiasTrabajados
			n.MontoBase = MontoBase(sueldo, n.DiasTrabajados)
		}
		if req.Propinas != nil {
			n.Propinas = *req.Propinas
		}
		if req.Bonos != nil {
			n.Bonos = *req.Bonos
		}
		if req.Deducciones != nil {
			n.Deducciones = *req.Deducciones
		}
		n.Recalcular()
		return s.repo.Update(ctx, tx, n)
	})
	if err != nil {
		return nil, err
	}
	log.Info().Str("nomina_id", id.String()).Str("total_pagar", n.TotalPagar.String()).Msg("nómina actualizada")
	return s.respuesta(ctx, n)
}

func (s *nominaService) Eliminar(ctx context.Context, id uuid.UUID) error {
	err := runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		if _, err := s.abierta(ctx, tx, id); err != nil {
			return err
		}
		return s.repo.Delete(ctx, tx, id)
	})
	if err == nil {
		log.Info().Str("nomina_id", id.String()).Msg("nómina eliminada")
	}
	return err
}

func (s *nominaService) Detalle(ctx context.Context, id uuid.UUID) (*dto.NominaResponse, error) {
	n, err := s.repo.FindByID(ctx, nil, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, noEncontrado("nómina", id)
	}
	if err != nil {
		return nil, err
	}
	return s.respuesta(ctx, n)
}

func (s *nominaService) ListarPorEmpleado(ctx context.Context, empleadoID int) ([]dto.NominaResponse, error) {
	if _, err := s.empleados.FindByID(ctx, empleadoID); err != nil {
		if errors.Is(err, model.ErrEmpleadoNoEncontrado) {
			return nil, noEncontrado("empleado", empleadoID)
		}
		return nil, err
	}
	ns, err := s.repo.ListPorEmpleado(ctx, empleadoID)
	if err != nil {
		return nil, err
	}
	out := make([]dto.NominaResponse, 0, len(ns))
	for i := range ns {
		out = append(out, *nominaToResponse(&ns[i], s.loc, true))
	}
	return out, nil
}

// ── Directivas ────────────────────────────────────────────────────────────────

func (s *nominaService) ModificarDirectivas(ctx context.Context, id uuid.UUID, req dto.ModificarDirectivasRequest) (*dto.ConfiguracionResponse, error) {
	resp := &dto.ConfiguracionResponse{Resultados: make([]dto.ItemResultado, 0, len(req.Directivas))}
	var n *model.Nomina

	err := runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		var err error
		if n, err = s.abierta(ctx, tx, id); err != nil {
			return err
		}
		porMovimiento := make(map[uuid.UUID]*model.DirectivaDescuento, len(n.Directivas))
		for i := range n.Directivas {
			porMovimiento[n.Directivas[i].MovimientoID] = &n.Directivas[i]
		}

		cambiadas := make(map[uuid.UUID]*model.DirectivaDescuento)
		for _, it := range req.Directivas {
			r := dto.ItemResultado{MovimientoID: it.MovimientoID, Directiva: it.Directiva}
			d, monto, err := resolverItem(it, porMovimiento)
			if err != nil {
				r.Error = err.Error()
				resp.Resultados = append(resp.Resultados, r)
				continue
			}
			d.Directiva = it.Directiva
			d.MontoADescontar = monto
			cambiadas[d.ID] = d
			r.Success, r.Monto = true, monto
			resp.Resultados = append(resp.Resultados, r)
		}

		ds := make([]model.DirectivaDescuento, 0, len(cambiadas))
		for _, d := range cambiadas {
			ds = append(ds, *d)
		}
		if err := s.repo.SaveDirectivas(ctx, tx, ds); err != nil {
			return err
		}
		n.Recalcular()
		return s.repo.Update(ctx, tx, n)
	})
	if err != nil {
		return nil, err
	}
	return s.cerrarConfiguracion(ctx, n, resp, "directivas modificadas")
}

func resolverItem(it dto.DirectivaItem, porMovimiento map[uuid.UUID]*model.DirectivaDescuento) (*model.DirectivaDescuento, decimal.Decimal, error) {
	movID, err := parseID("movimiento_id", it.MovimientoID)
	if err != nil {
		return nil, decimal.Zero, err
	}
	d, ok := porMovimiento[movID]
	if !ok || d.Movimiento == nil {
		return nil, decimal.Zero, noEncontrado("directiva para el movimiento", movID)
	}
	monto, err := montoDirectiva(it.Directiva, d.Movimiento.Monto, it.Monto)
	return d, monto, err
}

// AplicarPresupuestoGlobal re-derives every directive from a single budget:
// movements are taken in date order (ties by id), those that fit become
// completo, the first that does not fit takes the remainder as parcial and
// the rest are deferred.
func (s *nominaService) AplicarPresupuestoGlobal(ctx context.Context, id uuid.UUID, req dto.PresupuestoGlobalRequest) (*dto.ConfiguracionResponse, error) {
	orden := req.Orden
	if orden == "" {
		orden = dto.OrdenAntiguosPrimero
	}

	var n *model.Nomina
	resp := &dto.ConfiguracionResponse{}
	err := runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		var err error
		// a settled period reports the conflict before any input error
		if n, err = s.abierta(ctx, tx, id); err != nil {
			return err
		}
		if req.MontoMaximo.IsNegative() {
			return invalido("monto_maximo", "no puede ser negativo")
		}
		if orden != dto.OrdenAntiguosPrimero && orden != dto.OrdenRecientesPrimero {
			return invalido("orden", "use antiguos_primero o recientes_primero")
		}
		AsignarPresupuesto(n.Directivas, req.MontoMaximo, orden)
		resp.Resultados = make([]dto.ItemResultado, 0, len(n.Directivas))
		for _, d := range n.Directivas {
			resp.Resultados = append(resp.Resultados, dto.ItemResultado{
				MovimientoID: d.MovimientoID.String(),
				Success:      true,
				Directiva:    d.Directiva,
				Monto:        d.MontoADescontar,
			})
		}
		if err := s.repo.SaveDirectivas(ctx, tx, n.Directivas); err != nil {
			return err
		}
		n.Recalcular()
		return s.repo.Update(ctx, tx, n)
	})
	if err != nil {
		return nil, err
	}
	return s.cerrarConfiguracion(ctx, n, resp, "presupuesto global aplicado")
}

// AsignarPresupuesto applies the greedy budget walk to ds in place.
// Directives without a loaded movement are deferred.
func AsignarPresupuesto(ds []model.DirectivaDescuento, presupuesto decimal.Decimal, orden string) {
	idx := make([]int, len(ds))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		ma, mb := ds[idx[a]].Movimiento, ds[idx[b]].Movimiento
		if ma == nil || mb == nil {
			return mb == nil && ma != nil
		}
		if !ma.Fecha.Equal(mb.Fecha) {
			if orden == dto.OrdenRecientesPrimero {
				return ma.Fecha.After(mb.Fecha)
			}
			return ma.Fecha.Before(mb.Fecha)
		}
		return ma.ID.String() < mb.ID.String()
	})

	restante := presupuesto
	for _, i := range idx {
		d := &ds[i]
		m := d.Movimiento
		switch {
		case m == nil || !restante.IsPositive():
			d.Directiva, d.MontoADescontar = model.DirectivaDiferir, decimal.Zero
		case m.Monto.LessThanOrEqual(restante):
			d.Directiva, d.MontoADescontar = model.DirectivaCompleto, m.Monto
			restante = restante.Sub(m.Monto)
		default:
			d.Directiva, d.MontoADescontar = model.DirectivaParcial, restante
			restante = decimal.Zero
		}
	}
}

// AgregarMovimientos attaches movements the period did not pick up at open
// time (late POS syncs, deferred movements from earlier periods).
func (s *nominaService) AgregarMovimientos(ctx context.Context, id uuid.UUID, req dto.AgregarMovimientosRequest) (*dto.ConfiguracionResponse, error) {
	directiva := req.Directiva
	if directiva == "" {
		directiva = model.DirectivaCompleto
	}

	var n *model.Nomina
	resp := &dto.ConfiguracionResponse{Resultados: make([]dto.ItemResultado, 0, len(req.MovimientoIDs))}
	err := runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		var err error
		if n, err = s.abierta(ctx, tx, id); err != nil {
			return err
		}
		if !model.DirectivaValida(directiva) {
			return invalido("directiva", "directiva inválida: use completo, parcial o diferir")
		}
		enNomina := make(map[uuid.UUID]bool, len(n.Directivas))
		for _, d := range n.Directivas {
			enNomina[d.MovimientoID] = true
		}

		var nuevas []model.DirectivaDescuento
		for _, raw := range req.MovimientoIDs {
			r := dto.ItemResultado{MovimientoID: raw, Directiva: directiva}
			d, err := s.adjuntar(ctx, tx, n, raw, directiva, req.Monto, enNomina)
			if err != nil {
				r.Error = err.Error()
				resp.Resultados = append(resp.Resultados, r)
				continue
			}
			enNomina[d.MovimientoID] = true
			nuevas = append(nuevas, *d)
			r.Success, r.Monto = true, d.MontoADescontar
			resp.Resultados = append(resp.Resultados, r)
		}
		if err := s.repo.CreateDirectivas(ctx, tx, nuevas); err != nil {
			return err
		}
		n.Directivas = append(n.Directivas, nuevas...)
		n.Recalcular()
		if err := s.repo.Update(ctx, tx, n); err != nil {
			return err
		}
		n, err = s.repo.FindByID(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return s.cerrarConfiguracion(ctx, n, resp, "movimientos agregados a la nómina")
}

func (s *nominaService) adjuntar(ctx context.Context, tx *gorm.DB, n *model.Nomina, raw, directiva string, monto *decimal.Decimal, enNomina map[uuid.UUID]bool) (*model.DirectivaDescuento, error) {
	movID, err := parseID("movimiento_id", raw)
	if err != nil {
		return nil, err
	}
	m, err := s.movimientos.FindByID(ctx, tx, movID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, noEncontrado("movimiento", movID)
	}
	if err != nil {
		return nil, err
	}
	switch {
	case m.EmpleadoID != n.EmpleadoID:
		return nil, invalido("movimiento_id", "el movimiento no pertenece al empleado de la nómina")
	case m.Descontado:
		return nil, conflicto("movimiento", movID, "ya fue descontado")
	case !m.Descontable():
		return nil, invalido("movimiento_id", "los abonos no se descuentan de la nómina")
	case enNomina[movID]:
		return nil, conflicto("movimiento", movID, "ya está en esta nómina")
	}
	otras, err := s.repo.DirectivasDeMovimiento(ctx, tx, movID, true)
	if err != nil {
		return nil, err
	}
	if len(otras) > 0 {
		return nil, conflicto("movimiento", movID, "ya está asociado a otra nómina abierta")
	}
	valor, err := montoDirectiva(directiva, m.Monto, monto)
	if err != nil {
		return nil, err
	}
	return &model.DirectivaDescuento{
		NominaID:        n.ID,
		MovimientoID:    movID,
		Directiva:       directiva,
		MontoADescontar: valor,
		Movimiento:      m,
	}, nil
}

func (s *nominaService) cerrarConfiguracion(ctx context.Context, n *model.Nomina, resp *dto.ConfiguracionResponse, msg string) (*dto.ConfiguracionResponse, error) {
	resp.Success = true
	fallidos := 0
	for _, r := range resp.Resultados {
		if !r.Success {
			resp.Success = false
			fallidos++
		}
	}
	nr, err := s.respuesta(ctx, n)
	if err != nil {
		return nil, err
	}
	resp.Nomina = nr
	log.Info().
		Str("nomina_id", n.ID.String()).
		Int("items", len(resp.Resultados)).
		Int("fallidos", fallidos).
		Str("total_descuentos", n.TotalDescuentos.String()).
		Str("total_pagar", n.TotalPagar.String()).
		Msg(msg)
	return resp, nil
}
