package repository

import (
	"context"
	"fmt"

	"gestornomina/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ClaveExterna names the column holding a POS dedup key.
type ClaveExterna string

const (
	ClaveVenta       ClaveExterna = "fudo_sale_id"
	ClavePago        ClaveExterna = "fudo_payment_id"
	ClaveTransaccion ClaveExterna = "fudo_transaction_id"
)

func (c ClaveExterna) valida() bool {
	switch c {
	case ClaveVenta, ClavePago, ClaveTransaccion:
		return true
	}
	return false
}

type MovimientoRepository interface {
	Create(ctx context.Context, tx *gorm.DB, m *model.Movimiento) error
	FindByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*model.Movimiento, error)
	FindByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]model.Movimiento, error)
	Update(ctx context.Context, tx *gorm.DB, m *model.Movimiento) error
	Delete(ctx context.Context, tx *gorm.DB, id uuid.UUID) error
	ExisteClave(ctx context.Context, clave ClaveExterna, valor string) (bool, error)
	ListPorEmpleado(ctx context.Context, empleadoID int, soloPendientes bool) ([]model.Movimiento, error)
	ListPendientes(ctx context.Context, tx *gorm.DB, empleadoID int, tipos ...string) ([]model.Movimiento, error)
	ListPendientesLibres(ctx context.Context, tx *gorm.DB, empleadoID int) ([]model.Movimiento, error)
	MarcarDescontados(ctx context.Context, tx *gorm.DB, ids []uuid.UUID, nominaID uuid.UUID) (int64, error)
	ContarDescontadosPorNomina(ctx context.Context, nominaID uuid.UUID) (int64, error)
	ListHuerfanos(ctx context.Context) ([]model.Movimiento, error)
	Revertir(ctx context.Context, ids []uuid.UUID) (int64, error)
	DB() *gorm.DB
}

type movimientoRepo struct{ db *gorm.DB }

func NewMovimientoRepository(db *gorm.DB) MovimientoRepository { return &movimientoRepo{db: db} }

func (r *movimientoRepo) DB() *gorm.DB { return r.db }

func (r *movimientoRepo) Create(ctx context.Context, tx *gorm.DB, m *model.Movimiento) error {
	return on(r.db, tx).WithContext(ctx).Create(m).Error
}

func (r *movimientoRepo) FindByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*model.Movimiento, error) {
	var m model.Movimiento
	err := on(r.db, tx).WithContext(ctx).Where("id = ?", id).First(&m).Error
	return &m, err
}

func (r *movimientoRepo) FindByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]model.Movimiento, error) {
	var out []model.Movimiento
	if len(ids) == 0 {
		return out, nil
	}
	err := on(r.db, tx).WithContext(ctx).Where("id IN ?", ids).Find(&out).Error
	return out, err
}

func (r *movimientoRepo) Update(ctx context.Context, tx *gorm.DB, m *model.Movimiento) error {
	return on(r.db, tx).WithContext(ctx).Save(m).Error
}

// Delete removes an unsettled movement. Settled rows are left untouched.
func (r *movimientoRepo) Delete(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
	return on(r.db, tx).WithContext(ctx).
		Where("id = ? AND descontado = ?", id, false).
		Delete(&model.Movimiento{}).Error
}

func (r *movimientoRepo) ExisteClave(ctx context.Context, clave ClaveExterna, valor string) (bool, error) {
	if !clave.valida() {
		return false, fmt.Errorf("clave externa desconocida: %q", clave)
	}
	var n int64
	err := r.db.WithContext(ctx).Model(&model.Movimiento{}).
		Where(string(clave)+" = ?", valor).
		Count(&n).Error
	return n > 0, err
}

func (r *movimientoRepo) ListPorEmpleado(ctx context.Context, empleadoID int, soloPendientes bool) ([]model.Movimiento, error) {
	q := r.db.WithContext(ctx).Where("empleado_id = ?", empleadoID)
	if soloPendientes {
		q = q.Where("descontado = ?", false)
	}
	var out []model.Movimiento
	err := q.Order("fecha DESC, id ASC").Find(&out).Error
	return out, err
}

// ListPendientes returns the employee's unsettled movements, optionally
// restricted to the given kinds, oldest first.
func (r *movimientoRepo) ListPendientes(ctx context.Context, tx *gorm.DB, empleadoID int, tipos ...string) ([]model.Movimiento, error) {
	q := on(r.db, tx).WithContext(ctx).
		Where("empleado_id = ? AND descontado = ?", empleadoID, false)
	if len(tipos) > 0 {
		q = q.Where("tipo IN ?", tipos)
	}
	var out []model.Movimiento
	err := q.Order("fecha ASC, id ASC").Find(&out).Error
	return out, err
}

// ListPendientesLibres returns unsettled debts (consumo, adelanto) that no
// open payroll period has claimed yet.
func (r *movimientoRepo) ListPendientesLibres(ctx context.Context, tx *gorm.DB, empleadoID int) ([]model.Movimiento, error) {
	db := on(r.db, tx).WithContext(ctx)
	adjuntos := db.Session(&gorm.Session{NewDB: true}).
		Table("directivas_descuento AS d").
		Select("d.movimiento_id").
		Joins("JOIN nominas n ON n.id = d.nomina_id").
		Where("n.liquidada = ?", false)

	var out []model.Movimiento
	err := db.
		Where("empleado_id = ? AND descontado = ?", empleadoID, false).
		Where("tipo IN ?", []string{model.TipoConsumo, model.TipoAdelanto}).
		Where("id NOT IN (?)", adjuntos).
		Order("fecha ASC, id ASC").
		Find(&out).Error
	return out, err
}

// MarcarDescontados settles the given movements to nominaID. Only rows that
// are still unsettled are touched; the caller compares the affected count
// against len(ids) to detect movements settled elsewhere.
func (r *movimientoRepo) MarcarDescontados(ctx context.Context, tx *gorm.DB, ids []uuid.UUID, nominaID uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := on(r.db, tx).WithContext(ctx).Model(&model.Movimiento{}).
		Where("id IN ? AND descontado = ?", ids, false).
		Updates(map[string]any{"descontado": true, "nomina_id": nominaID})
	return res.RowsAffected, res.Error
}

func (r *movimientoRepo) ContarDescontadosPorNomina(ctx context.Context, nominaID uuid.UUID) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.Movimiento{}).
		Where("nomina_id = ? AND descontado = ?", nominaID, true).
		Count(&n).Error
	return n, err
}

// ListHuerfanos finds movements settled to a period that never finished
// settling.
func (r *movimientoRepo) ListHuerfanos(ctx context.Context) ([]model.Movimiento, error) {
	db := r.db.WithContext(ctx)
	abiertas := db.Session(&gorm.Session{NewDB: true}).
		Model(&model.Nomina{}).Select("id").Where("liquidada = ?", false)

	var out []model.Movimiento
	err := db.
		Where("descontado = ? AND nomina_id IS NOT NULL", true).
		Where("(nomina_id IN (?) OR nomina_id NOT IN (?))", abiertas,
			db.Session(&gorm.Session{NewDB: true}).Model(&model.Nomina{}).Select("id")).
		Order("empleado_id ASC, fecha ASC").
		Find(&out).Error
	return out, err
}

// Revertir puts orphaned movements back into the pending pool.
func (r *movimientoRepo) Revertir(ctx context.Context, ids []uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := r.db.WithContext(ctx).Model(&model.Movimiento{}).
		Where("id IN ?", ids).
		Updates(map[string]any{"descontado": false, "nomina_id": nil})
	return res.RowsAffected, res.Error
}
