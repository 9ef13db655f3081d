package worker

// publicacion_cron.go
// Background goroutine that periodically re-posts settled payroll periods
// whose reconciling POS transaction failed. Uses the Circuit Breaker to
// avoid hammering a downed POS.

import (
	"context"
	"errors"
	"time"

	"gestornomina/internal/dto"
	"gestornomina/internal/infra"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const retryBatchSize = 10

// Pendientes lists settled periods with a failed posting.
type Pendientes interface {
	PendientesDePublicar(ctx context.Context, limite int) ([]uuid.UUID, error)
}

// Reintentador re-posts one settled period.
type Reintentador interface {
	ReintentarPublicacion(ctx context.Context, id uuid.UUID) (*dto.PublicacionPOS, error)
}

// PublicacionCronConfig holds all dependencies for the retry goroutine.
type PublicacionCronConfig struct {
	Nominas     Pendientes
	Liquidacion Reintentador
	CB          *infra.CircuitBreaker // nil: never skip
	Intervalo   time.Duration
}

// StartPublicacionCron launches a background goroutine that ticks every
// Intervalo and re-posts pending periods. A non-positive interval disables it.
// It respects the context for graceful shutdown.
func StartPublicacionCron(ctx context.Context, cfg PublicacionCronConfig) {
	if cfg.Intervalo <= 0 {
		log.Info().Msg("publicacion_cron: disabled")
		return
	}
	go func() {
		ticker := time.NewTicker(cfg.Intervalo)
		defer ticker.Stop()

		log.Info().Dur("intervalo", cfg.Intervalo).Msg("publicacion_cron: started")

		for {
			select {
			case <-ctx.Done():
				log.Info().Msg("publicacion_cron: shutting down")
				return
			case <-ticker.C:
				ReintentarPendientes(ctx, cfg)
			}
		}
	}()
}

// ReintentarPendientes runs one tick and returns how many periods were
// published.
func ReintentarPendientes(ctx context.Context, cfg PublicacionCronConfig) int {
	if abierto(cfg.CB) {
		log.Debug().Msg("publicacion_cron: circuit breaker is open, skipping tick")
		return 0
	}

	ids, err := cfg.Nominas.PendientesDePublicar(ctx, retryBatchSize)
	if err != nil {
		log.Error().Err(err).Msg("publicacion_cron: failed to query pending postings")
		return 0
	}
	if len(ids) == 0 {
		return 0
	}

	log.Info().Int("count", len(ids)).Msg("publicacion_cron: processing pending postings")

	publicadas := 0
	for _, id := range ids {
		// the breaker may trip mid-batch
		if abierto(cfg.CB) {
			log.Debug().Msg("publicacion_cron: circuit breaker opened mid-batch, stopping")
			break
		}

		pub, err := cfg.Liquidacion.ReintentarPublicacion(ctx, id)
		if err != nil {
			ev := log.Warn()
			if !errors.Is(err, infra.ErrCircuitOpen) {
				ev = log.Error()
			}
			ev.Err(err).Str("nomina_id", id.String()).Msg("publicacion_cron: retry failed")
			continue
		}
		if pub.Estado == dto.PublicacionPublicada {
			publicadas++
		} else {
			log.Warn().
				Str("nomina_id", id.String()).
				Str("estado", pub.Estado).
				Str("error", pub.Error).
				Msg("publicacion_cron: posting still pending")
		}
	}
	return publicadas
}

func abierto(cb *infra.CircuitBreaker) bool {
	return cb != nil && cb.State() == infra.CBOpen
}
