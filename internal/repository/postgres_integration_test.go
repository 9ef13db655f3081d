//go:build integration

package repository

// Runs the repository suite against a real PostgreSQL via testcontainers.
// Run with: go test -tags integration ./internal/repository/... -v

import (
	"context"
	"testing"

	"gestornomina/internal/infra"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcPostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
)

func TestRepositoriosPostgres(t *testing.T) {
	ctx := context.Background()

	pgC, err := tcPostgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:15-alpine"),
		tcPostgres.WithDatabase("nomina_test"),
		tcPostgres.WithUsername("nomina"),
		tcPostgres.WithPassword("nomina"),
		testcontainers.WithWaitStrategy(
			tcPostgres.BasicWaitStrategies()...,
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pgC.Terminate(ctx) })

	pgURL, err := pgC.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := infra.NewDatabase(pgURL, true)
	require.NoError(t, err)

	var parciales int64
	require.NoError(t, db.Raw(
		`SELECT count(*) FROM pg_indexes WHERE indexname = 'idx_movimientos_pendientes'`).Scan(&parciales).Error)
	require.EqualValues(t, 1, parciales, "schema patches applied")

	probarRepositorios(t, db)
}
