package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"gestornomina/internal/dto"
	"gestornomina/internal/model"
	"gestornomina/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// DescuentoEmpleados is the staff discount applied to consumos by default.
var DescuentoEmpleados = decimal.NewFromInt(15)

type MovimientoService interface {
	Crear(ctx context.Context, req dto.CrearMovimientoRequest) (*dto.MovimientoResponse, error)
	Actualizar(ctx context.Context, id uuid.UUID, req dto.ActualizarMovimientoRequest) (*dto.MovimientoResponse, error)
	Eliminar(ctx context.Context, id uuid.UUID) error
	AjustarMonto(ctx context.Context, id uuid.UUID, req dto.AjustarMontoRequest) (*dto.AjusteMontoResponse, error)
	AplicarDescuentoPorcentaje(ctx context.Context, id uuid.UUID, porcentaje decimal.Decimal) (*dto.AjusteMontoResponse, error)
	Saldo(ctx context.Context, empleadoID int, conPOS bool) (*dto.SaldoResponse, error)
	ListarPorEmpleado(ctx context.Context, empleadoID int, soloPendientes bool) ([]dto.MovimientoResponse, error)
}

type movimientoService struct {
	repo      repository.MovimientoRepository
	nominas   repository.NominaRepository
	empleados repository.EmpleadoRepository
	pos       POS // optional, only for the POS balance view
	loc       *time.Location
	now       func() time.Time
}

func NewMovimientoService(
	repo repository.MovimientoRepository,
	nominas repository.NominaRepository,
	empleados repository.EmpleadoRepository,
	pos POS,
	loc *time.Location,
) MovimientoService {
	if loc == nil {
		loc = time.UTC
	}
	return &movimientoService{repo: repo, nominas: nominas, empleados: empleados, pos: pos, loc: loc, now: time.Now}
}

func (s *movimientoService) empleado(ctx context.Context, id int) (*model.Empleado, error) {
	emp, err := s.empleados.FindByID(ctx, id)
	if errors.Is(err, model.ErrEmpleadoNoEncontrado) {
		return nil, noEncontrado("empleado", id)
	}
	return emp, err
}

func (s *movimientoService) buscar(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*model.Movimiento, error) {
	m, err := s.repo.FindByID(ctx, tx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, noEncontrado("movimiento", id)
	}
	if err != nil {
		return nil, err
	}
	if m.Descontado {
		return nil, conflicto("movimiento", id, "ya fue descontado en una nómina liquidada")
	}
	return m, nil
}

// ── Crear ─────────────────────────────────────────────────────────────────────

func (s *movimientoService) Crear(ctx context.Context, req dto.CrearMovimientoRequest) (*dto.MovimientoResponse, error) {
	if !req.Monto.IsPositive() {
		return nil, invalido("monto", "debe ser mayor que cero")
	}
	switch req.Tipo {
	case model.TipoConsumo, model.TipoAdelanto, model.TipoAbono:
	default:
		return nil, invalido("tipo", "use consumo, adelanto o abono")
	}
	if _, err := s.empleado(ctx, req.EmpleadoID); err != nil {
		return nil, err
	}

	fecha := s.now()
	if req.Fecha != "" {
		f, err := parseFechaLocal("fecha", req.Fecha, s.loc, 12)
		if err != nil {
			return nil, err
		}
		fecha = f
	}

	m := &model.Movimiento{
		EmpleadoID:  req.EmpleadoID,
		Fecha:       fecha,
		Tipo:        req.Tipo,
		Monto:       req.Monto,
		Descripcion: strings.TrimSpace(req.Descripcion),
	}
	if err := s.repo.Create(ctx, nil, m); err != nil {
		return nil, err
	}
	log.Info().Int("empleado_id", m.EmpleadoID).Str("movimiento_id", m.ID.String()).
		Str("tipo", m.Tipo).Str("monto", m.Monto.String()).Msg("movimiento creado")
	resp := movimientoToResponse(m, s.loc)
	return &resp, nil
}

// ── Actualizar / Eliminar ─────────────────────────────────────────────────────
// Movements imported from the POS keep their date and cannot be deleted;
// their amount only changes through AjustarMonto.

func (s *movimientoService) Actualizar(ctx context.Context, id uuid.UUID, req dto.ActualizarMovimientoRequest) (*dto.MovimientoResponse, error) {
	var out *model.Movimiento
	err := runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		m, err := s.buscar(ctx, tx, id)
		if err != nil {
			return err
		}
		montoCambio := false
		if req.Monto != nil && !req.Monto.Equal(m.Monto) {
			if m.DesdePOS() {
				return conflicto("movimiento", id, "el monto de un movimiento del POS se ajusta con ajustar-monto")
			}
			if !req.Monto.IsPositive() {
				return invalido("monto", "debe ser mayor que cero")
			}
			m.Monto = *req.Monto
			montoCambio = true
		}
		if req.Fecha != nil {
			if m.DesdePOS() {
				return conflicto("movimiento", id, "la fecha de un movimiento del POS no se puede cambiar")
			}
			f, err := parseFechaLocal("fecha", *req.Fecha, s.loc, 12)
			if err != nil {
				return err
			}
			m.Fecha = f
		}
		if req.Descripcion != nil {
			m.Descripcion = strings.TrimSpace(*req.Descripcion)
		}
		if err := s.repo.Update(ctx, tx, m); err != nil {
			return err
		}
		if montoCambio {
			if err := realinearDirectivas(ctx, tx, s.nominas, m); err != nil {
				return err
			}
		}
		out = m
		return nil
	})
	if err != nil {
		return nil, err
	}
	resp := movimientoToResponse(out, s.loc)
	return &resp, nil
}

func (s *movimientoService) Eliminar(ctx context.Context, id uuid.UUID) error {
	return runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		m, err := s.buscar(ctx, tx, id)
		if err != nil {
			return err
		}
		if m.DesdePOS() {
			return conflicto("movimiento", id, "los movimientos del POS no se pueden eliminar")
		}
		todas, err := s.nominas.DirectivasDeMovimiento(ctx, tx, id, false)
		if err != nil {
			return err
		}
		abiertas, err := s.nominas.DirectivasDeMovimiento(ctx, tx, id, true)
		if err != nil {
			return err
		}
		if len(todas) > len(abiertas) {
			return conflicto("movimiento", id, "está referenciado por una nómina liquidada")
		}
		ids := make([]uuid.UUID, 0, len(abiertas))
		nominaIDs := make([]uuid.UUID, 0, len(abiertas))
		for _, d := range abiertas {
			ids = append(ids, d.ID)
			nominaIDs = append(nominaIDs, d.NominaID)
		}
		if err := s.nominas.DeleteDirectivas(ctx, tx, ids); err != nil {
			return err
		}
		if err := s.repo.Delete(ctx, tx, id); err != nil {
			return err
		}
		if err := recalcularNominas(ctx, tx, s.nominas, nominaIDs); err != nil {
			return err
		}
		log.Info().Str("movimiento_id", id.String()).Int("empleado_id", m.EmpleadoID).Msg("movimiento eliminado")
		return nil
	})
}

// ── Ajustes de monto ──────────────────────────────────────────────────────────
// Only unsettled consumos. The first adjustment stores the POS amount in
// MontoOriginal; later ones are bounded by it.

func (s *movimientoService) AjustarMonto(ctx context.Context, id uuid.UUID, req dto.AjustarMontoRequest) (*dto.AjusteMontoResponse, error) {
	return s.ajustar(ctx, id, strings.TrimSpace(req.Motivo), func(original decimal.Decimal) (decimal.Decimal, error) {
		if !req.NuevoMonto.IsPositive() {
			return decimal.Zero, invalido("nuevo_monto", "debe ser mayor que cero")
		}
		if req.NuevoMonto.GreaterThan(original) {
			return decimal.Zero, invalido("nuevo_monto", "no puede superar el monto original ("+original.String()+")")
		}
		return req.NuevoMonto, nil
	})
}

func (s *movimientoService) AplicarDescuentoPorcentaje(ctx context.Context, id uuid.UUID, porcentaje decimal.Decimal) (*dto.AjusteMontoResponse, error) {
	if porcentaje.IsZero() {
		porcentaje = DescuentoEmpleados
	}
	if !porcentaje.IsPositive() || porcentaje.GreaterThanOrEqual(decimal.NewFromInt(100)) {
		return nil, invalido("porcentaje", "debe estar entre 0 y 100")
	}
	motivo := "descuento empleados " + porcentaje.String() + "%"
	return s.ajustar(ctx, id, motivo, func(original decimal.Decimal) (decimal.Decimal, error) {
		factor := decimal.NewFromInt(100).Sub(porcentaje).Div(decimal.NewFromInt(100))
		nuevo := original.Mul(factor).Round(0)
		if !nuevo.IsPositive() {
			return decimal.Zero, invalido("porcentaje", "el monto resultante debe ser mayor que cero")
		}
		return nuevo, nil
	})
}

func (s *movimientoService) ajustar(ctx context.Context, id uuid.UUID, motivo string, calc func(original decimal.Decimal) (decimal.Decimal, error)) (*dto.AjusteMontoResponse, error) {
	var resp *dto.AjusteMontoResponse
	err := runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		m, err := s.buscar(ctx, tx, id)
		if err != nil {
			return err
		}
		if m.Tipo != model.TipoConsumo {
			return invalido("tipo", "solo se puede ajustar el monto de un consumo")
		}
		original := m.Monto
		if m.MontoOriginal != nil {
			original = *m.MontoOriginal
		}
		nuevo, err := calc(original)
		if err != nil {
			return err
		}
		anterior := m.Monto
		if m.MontoOriginal == nil {
			o := original
			m.MontoOriginal = &o
		}
		m.Monto = nuevo
		if err := s.repo.Update(ctx, tx, m); err != nil {
			return err
		}
		if err := realinearDirectivas(ctx, tx, s.nominas, m); err != nil {
			return err
		}

		descuento := original.Sub(nuevo)
		resp = &dto.AjusteMontoResponse{
			Success:       true,
			MovimientoID:  m.ID.String(),
			MontoOriginal: original,
			MontoAnterior: anterior,
			MontoNuevo:    nuevo,
			Descuento:     descuento,
			Porcentaje:    descuento.Div(original).Mul(decimal.NewFromInt(100)).Round(2),
			Motivo:        motivo,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Info().Str("movimiento_id", resp.MovimientoID).Str("monto_anterior", resp.MontoAnterior.String()).
		Str("monto_nuevo", resp.MontoNuevo.String()).Str("motivo", motivo).Msg("monto ajustado")
	return resp, nil
}

// ── Consultas ─────────────────────────────────────────────────────────────────

func (s *movimientoService) Saldo(ctx context.Context, empleadoID int, conPOS bool) (*dto.SaldoResponse, error) {
	emp, err := s.empleado(ctx, empleadoID)
	if err != nil {
		return nil, err
	}
	pend, err := s.repo.ListPendientes(ctx, nil, empleadoID)
	if err != nil {
		return nil, err
	}
	resp := &dto.SaldoResponse{
		EmpleadoID: empleadoID,
		Consumos:   decimal.Zero,
		Adelantos:  decimal.Zero,
		Abonos:     decimal.Zero,
		Pendientes: len(pend),
	}
	for _, m := range pend {
		switch m.Tipo {
		case model.TipoConsumo:
			resp.Consumos = resp.Consumos.Add(m.Monto)
		case model.TipoAdelanto:
			resp.Adelantos = resp.Adelantos.Add(m.Monto)
		case model.TipoAbono:
			resp.Abonos = resp.Abonos.Add(m.Monto)
		}
	}
	resp.Saldo = resp.Consumos.Add(resp.Adelantos).Sub(resp.Abonos)

	if conPOS && s.pos != nil && emp.TieneCuentaPOS() {
		saldo, err := s.pos.SaldoCuenta(ctx, *emp.FudoCustomerID)
		if err != nil {
			log.Warn().Err(err).Int("empleado_id", empleadoID).Msg("saldo POS no disponible")
			resp.ErrorPOS = err.Error()
		} else {
			resp.SaldoPOS = &saldo
		}
	}
	return resp, nil
}

func (s *movimientoService) ListarPorEmpleado(ctx context.Context, empleadoID int, soloPendientes bool) ([]dto.MovimientoResponse, error) {
	if _, err := s.empleado(ctx, empleadoID); err != nil {
		return nil, err
	}
	movs, err := s.repo.ListPorEmpleado(ctx, empleadoID, soloPendientes)
	if err != nil {
		return nil, err
	}
	out := make([]dto.MovimientoResponse, 0, len(movs))
	for i := range movs {
		out = append(out, movimientoToResponse(&movs[i], s.loc))
	}
	return out, nil
}
