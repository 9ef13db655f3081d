// cmd/syncpos runs "sincronizar ahora" once: house-account consumption for
// every linked employee, then cash-drawer advances for the window.
//
// Uso: go run ./cmd/syncpos [-desde 2025-03-01] [-hasta 2025-03-15] [-solo-consumos]
package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"gestornomina/internal/config"
	"gestornomina/internal/dto"
	"gestornomina/internal/infra"
	"gestornomina/internal/memo"
	"gestornomina/internal/repository"
	"gestornomina/internal/service"

	"github.com/rs/zerolog/log"
)

func main() {
	desde := flag.String("desde", "", "inicio de la ventana de adelantos (AAAA-MM-DD)")
	hasta := flag.String("hasta", "", "fin de la ventana de adelantos (AAAA-MM-DD)")
	soloConsumos := flag.Bool("solo-consumos", false, "no importar adelantos")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	infra.SetupLogger(cfg.Env, cfg.LogLevel)

	loc, err := cfg.Location()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid timezone")
	}
	db, err := infra.NewDatabase(cfg.DatabaseURL, cfg.DBAutoMigrate)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	rdb, err := infra.NewRedis(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}

	empleados := repository.NewEmpleadoRepository(db)
	svc := service.NewSyncService(
		empleados,
		repository.NewMovimientoRepository(db),
		repository.NewNominaRepository(db),
		infra.NewPOSClient(cfg, rdb),
		memo.NewValidador(empleados, memo.NewParser()),
		service.SyncConfig{
			MetodoCuentaCorriente: cfg.FudoHouseAccountMethod,
			DiasAdelantos:         cfg.AdvanceSyncDays,
			Location:              loc,
		},
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	out, fallo := ejecutar(ctx, svc, *desde, *hasta, *soloConsumos)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(out)
	if fallo {
		stop()
		os.Exit(1)
	}
}

// ejecutar runs both syncs and reports whether any of them failed, including
// batches that finished with per-record errors.
func ejecutar(ctx context.Context, svc service.SyncService, desde, hasta string, soloConsumos bool) (map[string]any, bool) {
	out := map[string]any{}
	fallo := false

	consumos, err := svc.SincronizarTodosConsumos(ctx)
	if err != nil {
		log.Error().Err(err).Msg("sincronización de consumos fallida")
		fallo = true
	} else {
		out["consumos"] = consumos
		fallo = fallo || !consumos.Success
	}

	if !soloConsumos {
		adelantos, err := svc.SincronizarAdelantos(ctx, dto.SyncAdelantosRequest{Desde: desde, Hasta: hasta})
		if err != nil {
			log.Error().Err(err).Msg("sincronización de adelantos fallida")
			fallo = true
		} else {
			out["adelantos"] = adelantos
			fallo = fallo || !adelantos.Success
		}
	}
	return out, fallo
}
