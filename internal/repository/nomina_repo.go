package repository

import (
	"context"
	"sort"

	"gestornomina/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type NominaRepository interface {
	Create(ctx context.Context, tx *gorm.DB, n *model.Nomina) error
	FindByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*model.Nomina, error)
	Update(ctx context.Context, tx *gorm.DB, n *model.Nomina) error
	Delete(ctx context.Context, tx *gorm.DB, id uuid.UUID) error
	ListPorEmpleado(ctx context.Context, empleadoID int) ([]model.Nomina, error)

	CreateDirectivas(ctx context.Context, tx *gorm.DB, ds []model.DirectivaDescuento) error
	SaveDirectivas(ctx context.Context, tx *gorm.DB, ds []model.DirectivaDescuento) error
	DirectivasDeMovimiento(ctx context.Context, tx *gorm.DB, movimientoID uuid.UUID, soloAbiertas bool) ([]model.DirectivaDescuento, error)
	DeleteDirectivas(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) error

	GuardarPublicacion(ctx context.Context, id uuid.UUID, referencia, fallo *string) error
	ReferenciasPOS(ctx context.Context) (map[string]struct{}, error)
	PendientesDePublicar(ctx context.Context, limite int) ([]uuid.UUID, error)
	DB() *gorm.DB
}

type nominaRepo struct{ db *gorm.DB }

func NewNominaRepository(db *gorm.DB) NominaRepository { return &nominaRepo{db: db} }

func (r *nominaRepo) DB() *gorm.DB { return r.db }

// Create inserts the period together with its directives.
func (r *nominaRepo) Create(ctx context.Context, tx *gorm.DB, n *model.Nomina) error {
	return on(r.db, tx).WithContext(ctx).Create(n).Error
}

// FindByID loads the period with its directives and their movements.
// Directives come back ordered by movement date, then movement id.
func (r *nominaRepo) FindByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*model.Nomina, error) {
	var n model.Nomina
	err := on(r.db, tx).WithContext(ctx).
		Preload("Directivas.Movimiento").
		Where("id = ?", id).
		First(&n).Error
	if err != nil {
		return &n, err
	}
	sort.SliceStable(n.Directivas, func(i, j int) bool {
		a, b := n.Directivas[i].Movimiento, n.Directivas[j].Movimiento
		if a == nil || b == nil {
			return b == nil && a != nil
		}
		if !a.Fecha.Equal(b.Fecha) {
			return a.Fecha.Before(b.Fecha)
		}
		return a.ID.String() < b.ID.String()
	})
	return &n, nil
}

// Update writes the period's own columns; directives are saved separately.
func (r *nominaRepo) Update(ctx context.Context, tx *gorm.DB, n *model.Nomina) error {
	return on(r.db, tx).WithContext(ctx).Omit(clause.Associations).Save(n).Error
}

// Delete removes an unsettled period and its directives. Settled periods
// are left untouched.
func (r *nominaRepo) Delete(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
	db := on(r.db, tx).WithContext(ctx)
	res := db.Where("id = ? AND liquidada = ?", id, false).Delete(&model.Nomina{})
	if res.Error != nil || res.RowsAffected == 0 {
		return res.Error
	}
	// SQLite does not enforce ON DELETE CASCADE unless foreign keys are on
	return db.Where("nomina_id = ?", id).Delete(&model.DirectivaDescuento{}).Error
}

func (r *nominaRepo) ListPorEmpleado(ctx context.Context, empleadoID int) ([]model.Nomina, error) {
	var out []model.Nomina
	err := r.db.WithContext(ctx).
		Where("empleado_id = ?", empleadoID).
		Order("periodo_inicio DESC").
		Find(&out).Error
	return out, err
}

func (r *nominaRepo) CreateDirectivas(ctx context.Context, tx *gorm.DB, ds []model.DirectivaDescuento) error {
	if len(ds) == 0 {
		return nil
	}
	return on(r.db, tx).WithContext(ctx).Omit("Movimiento").Create(&ds).Error
}

func (r *nominaRepo) SaveDirectivas(ctx context.Context, tx *gorm.DB, ds []model.DirectivaDescuento) error {
	db := on(r.db, tx).WithContext(ctx)
	for i := range ds {
		err := db.Model(&model.DirectivaDescuento{}).
			Where("id = ?", ds[i].ID).
			Updates(map[string]any{
				"directiva":         ds[i].Directiva,
				"monto_a_descontar": ds[i].MontoADescontar,
			}).Error
		if err != nil {
			return err
		}
	}
	return nil
}

// DirectivasDeMovimiento returns the directives pointing at movimientoID,
// optionally only those of unsettled periods.
func (r *nominaRepo) DirectivasDeMovimiento(ctx context.Context, tx *gorm.DB, movimientoID uuid.UUID, soloAbiertas bool) ([]model.DirectivaDescuento, error) {
	q := on(r.db, tx).WithContext(ctx).
		Joins("JOIN nominas ON nominas.id = directivas_descuento.nomina_id").
		Where("directivas_descuento.movimiento_id = ?", movimientoID)
	if soloAbiertas {
		q = q.Where("nominas.liquidada = ?", false)
	}
	var out []model.DirectivaDescuento
	err := q.Find(&out).Error
	return out, err
}

func (r *nominaRepo) DeleteDirectivas(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	return on(r.db, tx).WithContext(ctx).Where("id IN ?", ids).Delete(&model.DirectivaDescuento{}).Error
}

// GuardarPublicacion records the outcome of posting to the POS.
func (r *nominaRepo) GuardarPublicacion(ctx context.Context, id uuid.UUID, referencia, fallo *string) error {
	return r.db.WithContext(ctx).Model(&model.Nomina{}).
		Where("id = ?", id).
		Updates(map[string]any{"referencia_pos": referencia, "error_pos": fallo}).Error
}

// ReferenciasPOS returns every POS transaction id this service has posted.
func (r *nominaRepo) ReferenciasPOS(ctx context.Context) (map[string]struct{}, error) {
	var refs []string
	err := r.db.WithContext(ctx).Model(&model.Nomina{}).
		Where("referencia_pos IS NOT NULL").
		Pluck("referencia_pos", &refs).Error
	if err != nil {
		return nil, err
	}
	out := make(map[string]struct{}, len(refs))
	for _, ref := range refs {
		out[ref] = struct{}{}
	}
	return out, nil
}

// PendientesDePublicar returns settled periods whose last posting attempt
// failed, oldest settlement first.
func (r *nominaRepo) PendientesDePublicar(ctx context.Context, limite int) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).Model(&model.Nomina{}).
		Where("liquidada = ? AND referencia_pos IS NULL AND error_pos IS NOT NULL", true).
		Order("liquidada_at ASC").
		Limit(limite).
		Pluck("id", &ids).Error
	return ids, err
}
