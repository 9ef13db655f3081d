package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gestornomina/internal/config"
	"gestornomina/internal/infra"
	"gestornomina/internal/repository"
	"gestornomina/internal/router"
	"gestornomina/internal/service"
	"gestornomina/internal/worker"

	"github.com/rs/zerolog/log"
)

func main() {
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
	if rdb == nil {
		log.Info().Msg("REDIS_URL vacío: token del POS en memoria")
	}

	pos := infra.NewPOSClient(cfg, rdb)
	// background goroutines (rate-limit purge, re-posting) stop with bgCtx
	bgCtx, bgCancel := context.WithCancel(context.Background())
	defer bgCancel()
	r := router.New(bgCtx, cfg, db, rdb, pos, pos.Breaker(), loc)

	nominaRepo := repository.NewNominaRepository(db)
	liquidacion := service.NewLiquidacionService(
		nominaRepo,
		repository.NewMovimientoRepository(db),
		repository.NewEmpleadoRepository(db),
		pos,
		loc,
	)
	worker.StartPublicacionCron(bgCtx, worker.PublicacionCronConfig{
		Nominas:     nominaRepo,
		Liquidacion: liquidacion,
		CB:          pos.Breaker(),
		Intervalo:   time.Duration(cfg.POSRetryIntervalSeconds) * time.Second,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 120 * time.Second, // full sync walks every linked account
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown on SIGINT / SIGTERM
	go func() {
		log.Info().Str("timezone", loc.String()).Msgf("gestor de nómina listening on :%d", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server…")
	bgCancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("forced shutdown")
	}
	if rdb != nil {
		_ = rdb.Close()
	}
	log.Info().Msg("server exited")
}
