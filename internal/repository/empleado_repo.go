package repository

import (
	"context"
	"errors"

	"gestornomina/internal/model"

	"gorm.io/gorm"
)

// EmpleadoRepository is a read-only view of the roster table.
type EmpleadoRepository interface {
	FindByID(ctx context.Context, id int) (*model.Empleado, error)
	ListConCuentaPOS(ctx context.Context) ([]model.Empleado, error)
}

type empleadoRepo struct{ db *gorm.DB }

func NewEmpleadoRepository(db *gorm.DB) EmpleadoRepository { return &empleadoRepo{db: db} }

// FindByID returns model.ErrEmpleadoNoEncontrado for unknown ids.
func (r *empleadoRepo) FindByID(ctx context.Context, id int) (*model.Empleado, error) {
	var e model.Empleado
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, model.ErrEmpleadoNoEncontrado
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// ListConCuentaPOS returns active employees linked to a POS house account.
func (r *empleadoRepo) ListConCuentaPOS(ctx context.Context) ([]model.Empleado, error) {
	var out []model.Empleado
	err := r.db.WithContext(ctx).
		Where("estado = ? AND fudo_customer_id IS NOT NULL AND fudo_customer_id <> ''", model.EmpleadoActivo).
		Order("id ASC").
		Find(&out).Error
	return out, err
}
