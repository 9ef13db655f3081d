package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"gestornomina/internal/dto"
	"gestornomina/internal/infra"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pendientesFake struct {
	ids []uuid.UUID
	err error
}

func (p *pendientesFake) PendientesDePublicar(_ context.Context, limite int) ([]uuid.UUID, error) {
	if len(p.ids) > limite {
		return p.ids[:limite], p.err
	}
	return p.ids, p.err
}

type reintentadorFake struct {
	mu       sync.Mutex
	llamadas []uuid.UUID
	fallan   map[uuid.UUID]error
	omitidas map[uuid.UUID]bool
}

func (r *reintentadorFake) ReintentarPublicacion(_ context.Context, id uuid.UUID) (*dto.PublicacionPOS, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.llamadas = append(r.llamadas, id)
	if err := r.fallan[id]; err != nil {
		return &dto.PublicacionPOS{Estado: dto.PublicacionFallida, Error: err.Error()}, err
	}
	if r.omitidas[id] {
		return &dto.PublicacionPOS{Estado: dto.PublicacionOmitida}, nil
	}
	ref := "tx-" + id.String()[:4]
	return &dto.PublicacionPOS{Estado: dto.PublicacionPublicada, Referencia: &ref}, nil
}

func (r *reintentadorFake) total() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.llamadas)
}

func TestReintentarPendientes_PublicaYSigueTrasFallos(t *testing.T) {
	a, b, c := uuid.New(), uuid.New(), uuid.New()
	r := &reintentadorFake{
		fallan:   map[uuid.UUID]error{b: errors.New("timeout")},
		omitidas: map[uuid.UUID]bool{c: true},
	}
	n := ReintentarPendientes(context.Background(), PublicacionCronConfig{
		Nominas:     &pendientesFake{ids: []uuid.UUID{a, b, c}},
		Liquidacion: r,
	})

	assert.Equal(t, 1, n)
	assert.Equal(t, []uuid.UUID{a, b, c}, r.llamadas)
}

func TestReintentarPendientes_LoteAcotado(t *testing.T) {
	ids := make([]uuid.UUID, retryBatchSize+5)
	for i := range ids {
		ids[i] = uuid.New()
	}
	r := &reintentadorFake{}
	n := ReintentarPendientes(context.Background(), PublicacionCronConfig{
		Nominas:     &pendientesFake{ids: ids},
		Liquidacion: r,
	})
	assert.Equal(t, retryBatchSize, n)
}

func TestReintentarPendientes_CircuitoAbierto(t *testing.T) {
	cb := infra.NewCircuitBreaker(infra.CircuitBreakerConfig{
		Name: "test", FailureThreshold: 1, SuccessThreshold: 1, OpenTimeout: time.Hour,
	})
	_ = cb.Execute(func() error { return errors.New("down") })
	require.Equal(t, infra.CBOpen, cb.State())

	r := &reintentadorFake{}
	n := ReintentarPendientes(context.Background(), PublicacionCronConfig{
		Nominas:     &pendientesFake{ids: []uuid.UUID{uuid.New()}},
		Liquidacion: r,
		CB:          cb,
	})
	assert.Zero(t, n)
	assert.Zero(t, r.total())
}

func TestReintentarPendientes_ErrorDeConsulta(t *testing.T) {
	r := &reintentadorFake{}
	n := ReintentarPendientes(context.Background(), PublicacionCronConfig{
		Nominas:     &pendientesFake{err: errors.New("db down")},
		Liquidacion: r,
	})
	assert.Zero(t, n)
	assert.Zero(t, r.total())
}

func TestStartPublicacionCron_TickYApagado(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r := &reintentadorFake{}
	StartPublicacionCron(ctx, PublicacionCronConfig{
		Nominas:     &pendientesFake{ids: []uuid.UUID{uuid.New()}},
		Liquidacion: r,
		Intervalo:   10 * time.Millisecond,
	})
	assert.Eventually(t, func() bool { return r.total() >= 1 }, time.Second, 5*time.Millisecond)
}

func TestStartPublicacionCron_Deshabilitado(t *testing.T) {
	r := &reintentadorFake{}
	StartPublicacionCron(context.Background(), PublicacionCronConfig{
		Nominas:     &pendientesFake{ids: []uuid.UUID{uuid.New()}},
		Liquidacion: r,
	})
	time.Sleep(20 * time.Millisecond)
	assert.Zero(t, r.total())
}
