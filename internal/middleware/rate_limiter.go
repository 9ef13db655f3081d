package middleware

import (
	"context"
	"net/http"
	"sync"
	"time"

	"gestornomina/internal/apierror"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// rateEntry tracks request counts per IP within a fixed window.
type rateEntry struct {
	count     int
	windowEnd time.Time
	mu        sync.Mutex
}

type limiter struct {
	mu      sync.Mutex
	entries map[string]*rateEntry
	limit   int
	window  time.Duration
}

// RateLimiter limits each client IP to limit requests per window.
// Sync endpoints fan out to the POS, so the limit also protects the POS quota.
// The purge goroutine stops when ctx is done.
func RateLimiter(ctx context.Context, limit int, window time.Duration) gin.HandlerFunc {
	if limit <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	l := &limiter{entries: make(map[string]*rateEntry), limit: limit, window: window}
	go l.purge(ctx, 5*time.Minute)
	return l.handle
}

func (l *limiter) handle(c *gin.Context) {
	ip := c.ClientIP()

	l.mu.Lock()
	entry, ok := l.entries[ip]
	if !ok {
		entry = &rateEntry{}
		l.entries[ip] = entry
	}
	l.mu.Unlock()

	// entry.mu only guards the counter; never hold it across c.Next
	entry.mu.Lock()
	now := time.Now()
	if now.After(entry.windowEnd) {
		entry.count = 0
		entry.windowEnd = now.Add(l.window)
	}
	entry.count++
	excedido := entry.count > l.limit
	windowEnd := entry.windowEnd
	entry.mu.Unlock()

	if excedido {
		c.Header("Retry-After", windowEnd.Format(time.RFC1123))
		c.AbortWithStatusJSON(http.StatusTooManyRequests, apierror.New("Demasiadas solicitudes. Intente nuevamente en un momento."))
		return
	}
	c.Next()
}

// purge drops expired entries so IPs that never return do not accumulate.
func (l *limiter) purge(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.purgeAt(time.Now())
		}
	}
}

func (l *limiter) purgeAt(now time.Time) {
	l.mu.Lock()
	purged := 0
	for ip, entry := range l.entries {
		entry.mu.Lock()
		if now.After(entry.windowEnd) {
			delete(l.entries, ip)
			purged++
		}
		entry.mu.Unlock()
	}
	remaining := len(l.entries)
	l.mu.Unlock()

	if purged > 0 {
		log.Debug().Int("purged", purged).Int("remaining", remaining).Msg("rate limiter entries purged")
	}
}
