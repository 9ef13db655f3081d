package infra

import (
	"fmt"
	"strings"

	"gestornomina/internal/model"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDatabase opens the ledger store. postgres:// URLs use the pgx-backed
// driver; sqlite:// (or file:) URLs open a local SQLite file, which is only
// meant for single-node runs and tests.
func NewDatabase(dsn string, autoMigrate bool) (*gorm.DB, error) {
	dialector, err := dialectorFor(dsn)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
		// unique violations surface as gorm.ErrDuplicatedKey on both dialects
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)

	if autoMigrate {
		if err := RunMigrations(db); err != nil {
			return nil, fmt.Errorf("AutoMigrate: %w", err)
		}
	}
	return db, nil
}

func dialectorFor(dsn string) (gorm.Dialector, error) {
	switch {
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return postgres.Open(dsn), nil
	case strings.HasPrefix(dsn, "sqlite://"):
		return sqlite.Open(strings.TrimPrefix(dsn, "sqlite://")), nil
	case strings.HasPrefix(dsn, "file:"):
		return sqlite.Open(dsn), nil
	}
	return nil, fmt.Errorf("unsupported DATABASE_URL scheme: %q", dsn)
}

// RunMigrations creates / updates the ledger tables. The roster table is
// migrated too so that local and test databases are self-contained; in
// production it is owned by the roster service and AutoMigrate only adds
// missing columns.
func RunMigrations(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&model.Empleado{},
		&model.Movimiento{},
		&model.Nomina{},
		&model.DirectivaDescuento{},
	); err != nil {
		return err
	}
	return applySchemaPatches(db)
}

// applySchemaPatches runs idempotent DDL that AutoMigrate cannot express.
// Postgres only: SQLite has no partial-index support for these predicates
// in older versions and is not used in production.
func applySchemaPatches(db *gorm.DB) error {
	if db.Dialector.Name() != "postgres" {
		return nil
	}
	patches := []string{
		// pending-balance queries scan only unsettled movements
		`CREATE INDEX IF NOT EXISTS idx_movimientos_pendientes
		    ON movimientos (empleado_id, fecha)
		    WHERE descontado = FALSE`,
		// consistency check: movements owned by a period
		`CREATE INDEX IF NOT EXISTS idx_movimientos_nomina_descontado
		    ON movimientos (nomina_id)
		    WHERE descontado = TRUE`,
	}
	for _, sql := range patches {
		if err := db.Exec(sql).Error; err != nil {
			return fmt.Errorf("patch %q: %w", sql[:min(len(sql), 60)], err)
		}
	}
	return nil
}
