package service

import (
	"context"
	"testing"

	"gestornomina/internal/dto"
	"gestornomina/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func abrir(t *testing.T, e *entorno, empleadoID int, inicio, fin string, dias *int) *dto.NominaResponse {
	t.Helper()
	n, err := e.nominas.Abrir(context.Background(), dto.AbrirNominaRequest{
		EmpleadoID: empleadoID, PeriodoInicio: inicio, PeriodoFin: fin, DiasTrabajados: dias,
	})
	require.NoError(t, err)
	return n
}

// assertPagable checks totalPayable = gross − deductions − Σ non-deferred discounts.
func assertPagable(t *testing.T, n *dto.NominaResponse) {
	t.Helper()
	total := decimal.Zero
	for _, d := range n.Directivas {
		if d.Directiva != model.DirectivaDiferir {
			total = total.Add(d.MontoADescontar)
		}
	}
	assert.True(t, n.TotalDescuentos.Equal(total), "total_descuentos %s != %s", n.TotalDescuentos, total)
	want := n.Bruto.Sub(n.Deducciones).Sub(total)
	assert.True(t, n.TotalPagar.Equal(want), "total_pagar %s != %s", n.TotalPagar, want)
}

func TestMontoBase(t *testing.T) {
	requireDec(t, 650_000, MontoBase(dec(1_300_000), 15))
	requireDec(t, 1_300_000, MontoBase(dec(1_300_000), 30))
	requireDec(t, 333_333, MontoBase(dec(1_000_000), 10))
	requireDec(t, 0, MontoBase(dec(1_000_000), 0))
}

func TestAbrir_CalculaBaseYReuneMovimientos(t *testing.T) {
	e := newEntorno(t)
	ctx := context.Background()
	e.empleado(t, 19, "Kevin Rojas", 1_300_000, "")
	c1 := e.movimiento(t, 19, model.TipoConsumo, 20_000, dia(3))
	a1 := e.movimiento(t, 19, model.TipoAdelanto, 50_000, dia(10))
	e.movimiento(t, 19, model.TipoAbono, 5_000, dia(4))         // credits are not discounted
	e.movimiento(t, 19, model.TipoConsumo, 7_000, dia(16))       // out of range
	e.movimiento(t, 19, model.TipoConsumo, 9_000, dia(1).AddDate(0, -1, 0))

	n, err := e.nominas.Abrir(ctx, dto.AbrirNominaRequest{
		EmpleadoID:     19,
		PeriodoInicio:  "2025-03-01",
		PeriodoFin:     "2025-03-15",
		DiasTrabajados: intPtr(15),
		Propinas:       dec(40_000),
		Bonos:          dec(10_000),
		Deducciones:    dec(30_000),
	})
	require.NoError(t, err)

	requireDec(t, 650_000, n.MontoBase)
	requireDec(t, 700_000, n.Bruto)
	require.Len(t, n.Directivas, 2)
	assert.Equal(t, c1.ID.String(), n.Directivas[0].MovimientoID)
	assert.Equal(t, a1.ID.String(), n.Directivas[1].MovimientoID)
	for _, d := range n.Directivas {
		assert.Equal(t, model.DirectivaCompleto, d.Directiva)
		assert.True(t, d.MontoADescontar.Equal(d.MontoMovimiento))
	}
	requireDec(t, 70_000, n.TotalDescuentos)
	requireDec(t, 600_000, n.TotalPagar)
	assert.True(t, n.Consistente)
	assertPagable(t, n)
}

func TestAbrir_DiasPorDefecto(t *testing.T) {
	e := newEntorno(t)
	e.empleado(t, 1, "Ana", 1_200_000, "")

	n := abrir(t, e, 1, "2025-03-16", "2025-03-31", nil)
	assert.Equal(t, 16, n.DiasTrabajados)
	requireDec(t, 640_000, n.MontoBase)

	n = abrir(t, e, 1, "2025-01-01", "2025-01-31", nil)
	assert.Equal(t, 30, n.DiasTrabajados, "capped at 30")
}

func TestAbrir_Validaciones(t *testing.T) {
	e := newEntorno(t)
	ctx := context.Background()
	e.empleado(t, 1, "Sin Sueldo", 0, "")
	e.empleado(t, 2, "Ana", 1_000_000, "")

	_, err := e.nominas.Abrir(ctx, dto.AbrirNominaRequest{EmpleadoID: 1, PeriodoInicio: "2025-03-01", PeriodoFin: "2025-03-15"})
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "sueldo_mensual", ve.Field)

	_, err = e.nominas.Abrir(ctx, dto.AbrirNominaRequest{EmpleadoID: 2, PeriodoInicio: "2025-03-15", PeriodoFin: "2025-03-01"})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = e.nominas.Abrir(ctx, dto.AbrirNominaRequest{EmpleadoID: 2, PeriodoInicio: "2025-03-01", PeriodoFin: "2025-03-15", Bonos: dec(-1)})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = e.nominas.Abrir(ctx, dto.AbrirNominaRequest{EmpleadoID: 99, PeriodoInicio: "2025-03-01", PeriodoFin: "2025-03-15"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAbrir_NoReclamaMovimientosDeOtraNominaAbierta(t *testing.T) {
	e := newEntorno(t)
	e.empleado(t, 1, "Ana", 1_200_000, "")
	e.movimiento(t, 1, model.TipoConsumo, 10_000, dia(5))

	first := abrir(t, e, 1, "2025-03-01", "2025-03-15", nil)
	require.Len(t, first.Directivas, 1)

	second := abrir(t, e, 1, "2025-03-01", "2025-03-15", nil)
	assert.Empty(t, second.Directivas)

	// once the first is deleted the movement is free again
	require.NoError(t, e.nominas.Eliminar(context.Background(), uuid.MustParse(first.ID)))
	third := abrir(t, e, 1, "2025-03-01", "2025-03-15", nil)
	assert.Len(t, third.Directivas, 1)
}

func TestModificarDirectivas(t *testing.T) {
	e := newEntorno(t)
	ctx := context.Background()
	e.empleado(t, 1, "Ana", 1_200_000, "")
	c1 := e.movimiento(t, 1, model.TipoConsumo, 20_000, dia(2))
	c2 := e.movimiento(t, 1, model.TipoConsumo, 15_000, dia(3))
	a1 := e.movimiento(t, 1, model.TipoAdelanto, 50_000, dia(4))
	n := abrir(t, e, 1, "2025-03-01", "2025-03-15", nil)
	id := uuid.MustParse(n.ID)

	resp, err := e.nominas.ModificarDirectivas(ctx, id, dto.ModificarDirectivasRequest{Directivas: []dto.DirectivaItem{
		{MovimientoID: c1.ID.String(), Directiva: model.DirectivaParcial, Monto: decPtr(5_000)},
		{MovimientoID: c2.ID.String(), Directiva: model.DirectivaDiferir},
		{MovimientoID: a1.ID.String(), Directiva: model.DirectivaParcial, Monto: decPtr(50_000)}, // not < amount
		{MovimientoID: uuid.NewString(), Directiva: model.DirectivaCompleto},
		{MovimientoID: c1.ID.String(), Directiva: "mitad"},
	}})
	require.NoError(t, err)
	assert.False(t, resp.Success)
	require.Len(t, resp.Resultados, 5)
	assert.True(t, resp.Resultados[0].Success)
	assert.True(t, resp.Resultados[1].Success)
	assert.False(t, resp.Resultados[2].Success)
	assert.Contains(t, resp.Resultados[2].Error, "menor")
	assert.False(t, resp.Resultados[3].Success)
	assert.False(t, resp.Resultados[4].Success)

	byMov := map[string]dto.DirectivaResponse{}
	for _, d := range resp.Nomina.Directivas {
		byMov[d.MovimientoID] = d
	}
	assert.Equal(t, model.DirectivaParcial, byMov[c1.ID.String()].Directiva)
	requireDec(t, 5_000, byMov[c1.ID.String()].MontoADescontar)
	requireDec(t, 15_000, byMov[c1.ID.String()].MontoPendiente)
	assert.Equal(t, model.DirectivaDiferir, byMov[c2.ID.String()].Directiva)
	requireDec(t, 0, byMov[c2.ID.String()].MontoADescontar)
	assert.Equal(t, model.DirectivaCompleto, byMov[a1.ID.String()].Directiva, "failed entry leaves the directive untouched")
	requireDec(t, 55_000, resp.Nomina.TotalDescuentos)
	assertPagable(t, resp.Nomina)
}

func TestModificarDirectivas_CotaParcial(t *testing.T) {
	e := newEntorno(t)
	ctx := context.Background()
	e.empleado(t, 1, "Ana", 1_200_000, "")
	m := e.movimiento(t, 1, model.TipoConsumo, 10_000, dia(2))
	n := abrir(t, e, 1, "2025-03-01", "2025-03-15", nil)
	id := uuid.MustParse(n.ID)

	for _, monto := range []int64{10_000, 10_001, 50_000, 0, -5} {
		r, err := e.nominas.ModificarDirectivas(ctx, id, dto.ModificarDirectivasRequest{Directivas: []dto.DirectivaItem{
			{MovimientoID: m.ID.String(), Directiva: model.DirectivaParcial, Monto: decPtr(monto)},
		}})
		require.NoError(t, err)
		assert.False(t, r.Success, "monto %d must be rejected", monto)
		requireDec(t, 10_000, r.Nomina.TotalDescuentos)
	}
	for _, monto := range []int64{1, 5_000, 9_999} {
		r, err := e.nominas.ModificarDirectivas(ctx, id, dto.ModificarDirectivasRequest{Directivas: []dto.DirectivaItem{
			{MovimientoID: m.ID.String(), Directiva: model.DirectivaParcial, Monto: decPtr(monto)},
		}})
		require.NoError(t, err)
		assert.True(t, r.Success)
		requireDec(t, monto, r.Nomina.Directivas[0].MontoADescontar)
		assertPagable(t, r.Nomina)
	}
}

func TestPresupuestoGlobal(t *testing.T) {
	e := newEntorno(t)
	ctx := context.Background()
	e.empleado(t, 1, "Ana", 1_200_000, "")
	c1 := e.movimiento(t, 1, model.TipoConsumo, 20_000, dia(2))
	c2 := e.movimiento(t, 1, model.TipoConsumo, 15_000, dia(5))
	n := abrir(t, e, 1, "2025-03-01", "2025-03-15", nil)
	id := uuid.MustParse(n.ID)

	req := dto.PresupuestoGlobalRequest{MontoMaximo: dec(25_000), Orden: dto.OrdenAntiguosPrimero}
	r1, err := e.nominas.AplicarPresupuestoGlobal(ctx, id, req)
	require.NoError(t, err)
	require.Len(t, r1.Nomina.Directivas, 2)

	d1, d2 := r1.Nomina.Directivas[0], r1.Nomina.Directivas[1]
	assert.Equal(t, c1.ID.String(), d1.MovimientoID)
	assert.Equal(t, model.DirectivaCompleto, d1.Directiva)
	requireDec(t, 20_000, d1.MontoADescontar)
	assert.Equal(t, c2.ID.String(), d2.MovimientoID)
	assert.Equal(t, model.DirectivaParcial, d2.Directiva)
	requireDec(t, 5_000, d2.MontoADescontar)
	assertPagable(t, r1.Nomina)

	r2, err := e.nominas.AplicarPresupuestoGlobal(ctx, id, req)
	require.NoError(t, err)
	assert.Equal(t, r1.Nomina.Directivas, r2.Nomina.Directivas, "same budget twice yields the same directives")

	r3, err := e.nominas.AplicarPresupuestoGlobal(ctx, id, dto.PresupuestoGlobalRequest{MontoMaximo: dec(25_000), Orden: dto.OrdenRecientesPrimero})
	require.NoError(t, err)
	byMov := map[string]dto.DirectivaResponse{}
	for _, d := range r3.Nomina.Directivas {
		byMov[d.MovimientoID] = d
	}
	assert.Equal(t, model.DirectivaCompleto, byMov[c2.ID.String()].Directiva)
	assert.Equal(t, model.DirectivaParcial, byMov[c1.ID.String()].Directiva)
	requireDec(t, 10_000, byMov[c1.ID.String()].MontoADescontar)

	r4, err := e.nominas.AplicarPresupuestoGlobal(ctx, id, dto.PresupuestoGlobalRequest{MontoMaximo: dec(0)})
	require.NoError(t, err)
	for _, d := range r4.Nomina.Directivas {
		assert.Equal(t, model.DirectivaDiferir, d.Directiva)
	}
	requireDec(t, 0, r4.Nomina.TotalDescuentos)
}

func TestAsignarPresupuesto_EmpateOrdenaPorID(t *testing.T) {
	a := &model.Movimiento{ID: uuid.MustParse("00000000-0000-0000-0000-00000000000a"), Fecha: dia(2), Monto: dec(10)}
	b := &model.Movimiento{ID: uuid.MustParse("00000000-0000-0000-0000-00000000000b"), Fecha: dia(2), Monto: dec(10)}
	ds := []model.DirectivaDescuento{
		{MovimientoID: b.ID, Movimiento: b},
		{MovimientoID: a.ID, Movimiento: a},
	}
	AsignarPresupuesto(ds, dec(15), dto.OrdenRecientesPrimero)
	assert.Equal(t, model.DirectivaParcial, ds[0].Directiva)
	requireDec(t, 5, ds[0].MontoADescontar)
	assert.Equal(t, model.DirectivaCompleto, ds[1].Directiva)
}

func TestAgregarMovimientos(t *testing.T) {
	e := newEntorno(t)
	ctx := context.Background()
	e.empleado(t, 1, "Ana", 1_200_000, "")
	e.empleado(t, 2, "Beto", 1_200_000, "")
	n := abrir(t, e, 1, "2025-03-01", "2025-03-15", nil)
	id := uuid.MustParse(n.ID)

	tardio := e.movimiento(t, 1, model.TipoConsumo, 8_000, dia(1).AddDate(0, -1, 0))
	grande := e.movimiento(t, 1, model.TipoAdelanto, 30_000, dia(20))
	ajeno := e.movimiento(t, 2, model.TipoConsumo, 1_000, dia(3))
	abono := e.movimiento(t, 1, model.TipoAbono, 1_000, dia(3))

	r, err := e.nominas.AgregarMovimientos(ctx, id, dto.AgregarMovimientosRequest{
		MovimientoIDs: []string{tardio.ID.String(), ajeno.ID.String(), abono.ID.String(), tardio.ID.String(), "x"},
	})
	require.NoError(t, err)
	assert.False(t, r.Success)
	assert.True(t, r.Resultados[0].Success)
	assert.False(t, r.Resultados[1].Success)
	assert.False(t, r.Resultados[2].Success)
	assert.False(t, r.Resultados[3].Success, "already attached")
	assert.False(t, r.Resultados[4].Success)
	require.Len(t, r.Nomina.Directivas, 1)
	requireDec(t, 8_000, r.Nomina.TotalDescuentos)

	r, err = e.nominas.AgregarMovimientos(ctx, id, dto.AgregarMovimientosRequest{
		MovimientoIDs: []string{grande.ID.String()}, Directiva: model.DirectivaParcial, Monto: decPtr(30_000),
	})
	require.NoError(t, err)
	assert.False(t, r.Success)

	r, err = e.nominas.AgregarMovimientos(ctx, id, dto.AgregarMovimientosRequest{
		MovimientoIDs: []string{grande.ID.String()}, Directiva: model.DirectivaParcial, Monto: decPtr(10_000),
	})
	require.NoError(t, err)
	assert.True(t, r.Success)
	requireDec(t, 18_000, r.Nomina.TotalDescuentos)
	assertPagable(t, r.Nomina)

	// a second open period cannot claim it
	otra := abrir(t, e, 1, "2025-04-01", "2025-04-15", nil)
	r, err = e.nominas.AgregarMovimientos(ctx, uuid.MustParse(otra.ID), dto.AgregarMovimientosRequest{
		MovimientoIDs: []string{grande.ID.String()},
	})
	require.NoError(t, err)
	assert.False(t, r.Success)
	assert.Contains(t, r.Resultados[0].Error, "otra nómina abierta")

	_, err = e.nominas.AgregarMovimientos(ctx, id, dto.AgregarMovimientosRequest{
		MovimientoIDs: []string{grande.ID.String()}, Directiva: "todo",
	})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestActualizarNomina(t *testing.T) {
	e := newEntorno(t)
	ctx := context.Background()
	e.empleado(t, 1, "Ana", 1_200_000, "")
	e.movimiento(t, 1, model.TipoConsumo, 10_000, dia(2))
	n := abrir(t, e, 1, "2025-03-01", "2025-03-15", nil)

	up, err := e.nominas.Actualizar(ctx, uuid.MustParse(n.ID), dto.ActualizarNominaRequest{
		DiasTrabajados: intPtr(10),
		Propinas:       decPtr(25_000),
		Deducciones:    decPtr(5_000),
	})
	require.NoError(t, err)
	requireDec(t, 400_000, up.MontoBase)
	requireDec(t, 425_000, up.Bruto)
	requireDec(t, 410_000, up.TotalPagar)
	assertPagable(t, up)

	_, err = e.nominas.Actualizar(ctx, uuid.MustParse(n.ID), dto.ActualizarNominaRequest{Bonos: decPtr(-1)})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestNominaLiquidada_RechazaConfiguracion(t *testing.T) {
	e := newEntorno(t)
	ctx := context.Background()
	e.empleado(t, 1, "Ana", 1_200_000, "")
	m := e.movimiento(t, 1, model.TipoConsumo, 10_000, dia(2))
	libre := e.movimiento(t, 1, model.TipoConsumo, 3_000, dia(20))
	n := abrir(t, e, 1, "2025-03-01", "2025-03-15", nil)
	id := uuid.MustParse(n.ID)

	_, err := e.liquidacion.Liquidar(ctx, id)
	require.NoError(t, err)
	antes, err := e.nominas.Detalle(ctx, id)
	require.NoError(t, err)

	_, err = e.nominas.ModificarDirectivas(ctx, id, dto.ModificarDirectivasRequest{Directivas: []dto.DirectivaItem{
		{MovimientoID: m.ID.String(), Directiva: model.DirectivaDiferir},
	}})
	assert.ErrorIs(t, err, ErrConflict)
	_, err = e.nominas.AplicarPresupuestoGlobal(ctx, id, dto.PresupuestoGlobalRequest{MontoMaximo: dec(0)})
	assert.ErrorIs(t, err, ErrConflict)
	_, err = e.nominas.AgregarMovimientos(ctx, id, dto.AgregarMovimientosRequest{MovimientoIDs: []string{libre.ID.String()}})
	assert.ErrorIs(t, err, ErrConflict)
	_, err = e.nominas.Actualizar(ctx, id, dto.ActualizarNominaRequest{Propinas: decPtr(1)})
	assert.ErrorIs(t, err, ErrConflict)
	assert.ErrorIs(t, e.nominas.Eliminar(ctx, id), ErrConflict)

	// malformed input on a settled period is still a conflict
	_, err = e.nominas.AplicarPresupuestoGlobal(ctx, id, dto.PresupuestoGlobalRequest{MontoMaximo: dec(-1)})
	assert.ErrorIs(t, err, ErrConflict)
	assert.NotErrorIs(t, err, ErrValidation)
	_, err = e.nominas.AplicarPresupuestoGlobal(ctx, id, dto.PresupuestoGlobalRequest{MontoMaximo: dec(5), Orden: "al_azar"})
	assert.ErrorIs(t, err, ErrConflict)
	_, err = e.nominas.AgregarMovimientos(ctx, id, dto.AgregarMovimientosRequest{
		MovimientoIDs: []string{libre.ID.String()}, Directiva: "todo",
	})
	assert.ErrorIs(t, err, ErrConflict)
	_, err = e.nominas.Actualizar(ctx, id, dto.ActualizarNominaRequest{DiasTrabajados: intPtr(-3)})
	assert.ErrorIs(t, err, ErrConflict)
	_, err = e.nominas.Actualizar(ctx, id, dto.ActualizarNominaRequest{Bonos: decPtr(-1)})
	assert.ErrorIs(t, err, ErrConflict)

	despues, err := e.nominas.Detalle(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, antes, despues)
	assertPagable(t, despues)
}

func TestEliminarNomina(t *testing.T) {
	e := newEntorno(t)
	ctx := context.Background()
	e.empleado(t, 1, "Ana", 1_200_000, "")
	e.movimiento(t, 1, model.TipoConsumo, 10_000, dia(2))
	n := abrir(t, e, 1, "2025-03-01", "2025-03-15", nil)
	id := uuid.MustParse(n.ID)

	require.NoError(t, e.nominas.Eliminar(ctx, id))
	_, err := e.nominas.Detalle(ctx, id)
	assert.ErrorIs(t, err, ErrNotFound)

	var directivas int64
	require.NoError(t, e.db.Model(&model.DirectivaDescuento{}).Where("nomina_id = ?", id).Count(&directivas).Error)
	assert.Zero(t, directivas)

	assert.ErrorIs(t, e.nominas.Eliminar(ctx, id), ErrNotFound)
}
