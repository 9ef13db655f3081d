package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"gestornomina/internal/infra"
	"gestornomina/internal/memo"
	"gestornomina/internal/model"
	"gestornomina/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ── In-memory POS ─────────────────────────────────────────────────────────────

type fakePOS struct {
	mu            sync.Mutex
	ventas        map[string][]infra.VentaPOS
	transacciones map[string][]infra.TransaccionPOS
	caja          []infra.MovimientoCajaPOS
	saldo         decimal.Decimal
	crearErr      error
	listarErr     error
	creadas       []infra.TransaccionPOSRequest
}

func newFakePOS() *fakePOS {
	return &fakePOS{
		ventas:        map[string][]infra.VentaPOS{},
		transacciones: map[string][]infra.TransaccionPOS{},
	}
}

func (f *fakePOS) ListarVentas(_ context.Context, customerID string) ([]infra.VentaPOS, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listarErr != nil {
		return nil, f.listarErr
	}
	return f.ventas[customerID], nil
}

func (f *fakePOS) ListarTransacciones(_ context.Context, customerID string) ([]infra.TransaccionPOS, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.transacciones[customerID], nil
}

func (f *fakePOS) ListarMovimientosCaja(_ context.Context, desde, hasta time.Time) ([]infra.MovimientoCajaPOS, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listarErr != nil {
		return nil, f.listarErr
	}
	var out []infra.MovimientoCajaPOS
	for _, m := range f.caja {
		if !m.Fecha.Before(desde) && !m.Fecha.After(hasta) {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakePOS) CrearTransaccion(_ context.Context, req infra.TransaccionPOSRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.crearErr != nil {
		return "", f.crearErr
	}
	f.creadas = append(f.creadas, req)
	ref := fmt.Sprintf("tx-%d", len(f.creadas))
	// the posting shows up as a positive house-account transaction
	f.transacciones[req.CustomerID] = append(f.transacciones[req.CustomerID], infra.TransaccionPOS{
		ID: ref, Monto: req.Monto, Comentario: req.Comentario, Fecha: time.Now(),
	})
	return ref, nil
}

func (f *fakePOS) SaldoCuenta(_ context.Context, _ string) (decimal.Decimal, error) {
	return f.saldo, nil
}

func ventaCuentaCorriente(id string, fecha time.Time, monto int64) infra.VentaPOS {
	return infra.VentaPOS{
		ID:    id,
		Fecha: fecha,
		Pagos: []infra.PagoPOS{{ID: "p-" + id, Monto: decimal.NewFromInt(monto), MetodoCodigo: "cta-cte"}},
	}
}

// ── Store and services ────────────────────────────────────────────────────────

var errPOSCaido = errors.New("connection refused")

type entorno struct {
	db          *gorm.DB
	pos         *fakePOS
	movRepo     repository.MovimientoRepository
	nominaRepo  repository.NominaRepository
	empRepo     repository.EmpleadoRepository
	sync        SyncService
	movimientos MovimientoService
	nominas     NominaService
	liquidacion LiquidacionService
	ahora       time.Time
}

var reloj = time.Date(2025, 3, 20, 15, 0, 0, 0, time.UTC)

func newEntorno(t *testing.T) *entorno {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, infra.RunMigrations(db))

	e := &entorno{
		db:         db,
		pos:        newFakePOS(),
		movRepo:    repository.NewMovimientoRepository(db),
		nominaRepo: repository.NewNominaRepository(db),
		empRepo:    repository.NewEmpleadoRepository(db),
		ahora:      reloj,
	}
	parser := &memo.Parser{Now: func() time.Time { return e.ahora }}
	e.sync = NewSyncService(e.empRepo, e.movRepo, e.nominaRepo, e.pos,
		memo.NewValidador(e.empRepo, parser), SyncConfig{MetodoCuentaCorriente: "cta-cte", DiasAdelantos: 7})
	e.movimientos = NewMovimientoService(e.movRepo, e.nominaRepo, e.empRepo, e.pos, time.UTC)
	e.nominas = NewNominaService(e.nominaRepo, e.movRepo, e.empRepo, time.UTC)
	e.liquidacion = NewLiquidacionService(e.nominaRepo, e.movRepo, e.empRepo, e.pos, time.UTC)
	return e
}

func (e *entorno) empleado(t *testing.T, id int, nombre string, sueldo int64, cuenta string) *model.Empleado {
	t.Helper()
	emp := &model.Empleado{
		ID:            id,
		Nombre:        nombre,
		SueldoMensual: decimal.NewFromInt(sueldo),
		TipoPago:      "quincenal",
		Estado:        model.EmpleadoActivo,
	}
	if cuenta != "" {
		emp.FudoCustomerID = &cuenta
	}
	require.NoError(t, e.db.Create(emp).Error)
	return emp
}

func (e *entorno) movimiento(t *testing.T, empleadoID int, tipo string, monto int64, fecha time.Time) *model.Movimiento {
	t.Helper()
	m := &model.Movimiento{
		EmpleadoID:  empleadoID,
		Fecha:       fecha,
		Tipo:        tipo,
		Monto:       decimal.NewFromInt(monto),
		Descripcion: tipo + " de prueba",
	}
	require.NoError(t, e.movRepo.Create(context.Background(), nil, m))
	return m
}

func (e *entorno) recargar(t *testing.T, id uuid.UUID) *model.Movimiento {
	t.Helper()
	m, err := e.movRepo.FindByID(context.Background(), nil, id)
	require.NoError(t, err)
	return m
}

func dia(d int) time.Time { return time.Date(2025, 3, d, 12, 0, 0, 0, time.UTC) }

func dec(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func decPtr(v int64) *decimal.Decimal { d := decimal.NewFromInt(v); return &d }

func intPtr(v int) *int { return &v }

// requireDec compares decimals by value.
func requireDec(t *testing.T, want int64, got decimal.Decimal, msgAndArgs ...any) {
	t.Helper()
	require.Truef(t, got.Equal(decimal.NewFromInt(want)), "want %d, got %s %v", want, got, msgAndArgs)
}
