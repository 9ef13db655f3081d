package infra

import (
	"time"

	"gestornomina/internal/config"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// NewPOSClient builds the FUDO client from configuration: the breaker
// ignores 4xx rejections, and the bearer token is shared through Redis
// when rdb is set, kept in memory otherwise.
func NewPOSClient(cfg *config.Config, rdb *redis.Client) *FudoClient {
	cbCfg := DefaultCBConfig()
	if cfg.CBFailureThreshold > 0 {
		cbCfg.FailureThreshold = cfg.CBFailureThreshold
	}
	if cfg.CBOpenTimeoutSeconds > 0 {
		cbCfg.OpenTimeout = time.Duration(cfg.CBOpenTimeoutSeconds) * time.Second
	}
	cbCfg.IsFailure = IsPOSFailure

	var tokens TokenCache = NewMemoryTokenCache()
	if rdb != nil {
		tokens = NewRedisTokenCache(rdb)
	}

	if cfg.FudoAPIKey == "" || cfg.FudoAPISecret == "" {
		log.Warn().Msg("FUDO_API_KEY / FUDO_API_SECRET vacíos: las llamadas al POS fallarán")
	}

	return NewFudoClient(FudoConfig{
		AuthURL:    cfg.FudoAuthURL,
		BaseURL:    cfg.FudoBaseURL,
		APIKey:     cfg.FudoAPIKey,
		APISecret:  cfg.FudoAPISecret,
		Timeout:    time.Duration(cfg.FudoTimeoutSeconds) * time.Second,
		PageSize:   cfg.FudoPageSize,
		MethodID:   cfg.FudoPostingMethodID,
		RegisterID: cfg.FudoPostingRegisterID,
	}, NewCircuitBreaker(cbCfg), tokens)
}
