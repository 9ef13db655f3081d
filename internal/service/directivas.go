package service

import (
	"context"

	"gestornomina/internal/model"
	"gestornomina/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// montoDirectiva resolves how much of a movement a directive discounts.
// parcial needs 0 < pedido < monto.
func montoDirectiva(directiva string, monto decimal.Decimal, pedido *decimal.Decimal) (decimal.Decimal, error) {
	switch directiva {
	case model.DirectivaCompleto:
		return monto, nil
	case model.DirectivaDiferir:
		return decimal.Zero, nil
	case model.DirectivaParcial:
		if pedido == nil || !pedido.IsPositive() {
			return decimal.Zero, invalido("monto", "un descuento parcial requiere un monto mayor que cero")
		}
		if pedido.GreaterThanOrEqual(monto) {
			return decimal.Zero, invalido("monto", "un descuento parcial debe ser menor que el monto del movimiento ("+monto.String()+")")
		}
		return *pedido, nil
	}
	return decimal.Zero, invalido("directiva", "directiva inválida: use completo, parcial o diferir")
}

// realinearDirectivas keeps the open directives of mov coherent after its
// amount changed, then recomputes the affected periods.
func realinearDirectivas(ctx context.Context, tx *gorm.DB, nominas repository.NominaRepository, mov *model.Movimiento) error {
	ds, err := nominas.DirectivasDeMovimiento(ctx, tx, mov.ID, true)
	if err != nil {
		return err
	}
	if len(ds) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, 0, len(ds))
	for i := range ds {
		d := &ds[i]
		switch d.Directiva {
		case model.DirectivaCompleto:
			d.MontoADescontar = mov.Monto
		case model.DirectivaParcial:
			if d.MontoADescontar.GreaterThanOrEqual(mov.Monto) {
				d.Directiva = model.DirectivaCompleto
				d.MontoADescontar = mov.Monto
			}
		}
		ids = append(ids, d.NominaID)
	}
	if err := nominas.SaveDirectivas(ctx, tx, ds); err != nil {
		return err
	}
	return recalcularNominas(ctx, tx, nominas, ids)
}

// recalcularNominas re-derives totals of each period from its directives.
func recalcularNominas(ctx context.Context, tx *gorm.DB, nominas repository.NominaRepository, ids []uuid.UUID) error {
	vistos := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		if vistos[id] {
			continue
		}
		vistos[id] = true
		n, err := nominas.FindByID(ctx, tx, id)
		if err != nil {
			return err
		}
		n.Recalcular()
		if err := nominas.Update(ctx, tx, n); err != nil {
			return err
		}
	}
	return nil
}
