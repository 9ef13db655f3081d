package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"gestornomina/internal/apierror"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() { gin.SetMode(gin.TestMode) }

func servir(r *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func ctxTest(t *testing.T) context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return ctx
}

func TestRequestID(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, c.GetString(RequestIDKey)) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	w := servir(r, req)
	assert.Equal(t, "abc-123", w.Body.String())
	assert.Equal(t, "abc-123", w.Header().Get(RequestIDHeader))

	w = servir(r, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Len(t, w.Body.String(), 36)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, strings.Repeat("x", 65))
	w = servir(r, req)
	assert.Len(t, w.Body.String(), 36, "oversized ids are replaced")
}

func TestErrorHandler_OcultaCausa(t *testing.T) {
	r := gin.New()
	r.Use(RequestID(), ErrorHandler())
	r.GET("/", func(c *gin.Context) { _ = c.Error(errors.New("pq: relation does not exist")) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "req-1")
	w := servir(r, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "relation")
	var body apierror.APIError
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "request_id req-1", body.Hint)
}

func TestErrorHandler_RespuestaYaEscrita(t *testing.T) {
	r := gin.New()
	r.Use(ErrorHandler())
	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusConflict, apierror.New("conflicto"))
		_ = c.Error(errors.New("extra"))
	})

	w := servir(r, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestRecovery(t *testing.T) {
	r := gin.New()
	r.Use(Recovery())
	r.GET("/", func(c *gin.Context) { panic("boom") })

	w := servir(r, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "boom")
}

func TestRateLimiter(t *testing.T) {
	r := gin.New()
	r.Use(RateLimiter(ctxTest(t), 2, time.Minute))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	for i := 0; i < 2; i++ {
		assert.Equal(t, http.StatusOK, servir(r, httptest.NewRequest(http.MethodGet, "/", nil)).Code)
	}
	w := servir(r, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	otra := httptest.NewRequest(http.MethodGet, "/", nil)
	otra.RemoteAddr = "10.0.0.9:1234"
	assert.Equal(t, http.StatusOK, servir(r, otra).Code, "limits are per client")
}

func TestRateLimiter_Deshabilitado(t *testing.T) {
	r := gin.New()
	r.Use(RateLimiter(ctxTest(t), 0, time.Minute))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	for i := 0; i < 50; i++ {
		require.Equal(t, http.StatusOK, servir(r, httptest.NewRequest(http.MethodGet, "/", nil)).Code)
	}
}

func TestRateLimiter_NoSerializaPorCliente(t *testing.T) {
	dentro, liberar := make(chan struct{}), make(chan struct{})
	r := gin.New()
	r.Use(RateLimiter(ctxTest(t), 10, time.Minute))
	r.GET("/lento", func(c *gin.Context) {
		close(dentro)
		<-liberar
		c.Status(http.StatusOK)
	})
	r.GET("/rapido", func(c *gin.Context) { c.Status(http.StatusOK) })

	lento := make(chan int, 1)
	go func() { lento <- servir(r, httptest.NewRequest(http.MethodGet, "/lento", nil)).Code }()
	<-dentro

	rapido := make(chan int, 1)
	go func() { rapido <- servir(r, httptest.NewRequest(http.MethodGet, "/rapido", nil)).Code }()
	select {
	case code := <-rapido:
		assert.Equal(t, http.StatusOK, code)
	case <-time.After(time.Second):
		t.Fatal("a slow request from the same client blocked the next one")
	}

	close(liberar)
	assert.Equal(t, http.StatusOK, <-lento)
}

func TestRateLimiter_Purga(t *testing.T) {
	l := &limiter{entries: make(map[string]*rateEntry), limit: 5, window: time.Minute}
	ahora := time.Now()
	l.entries["10.0.0.1"] = &rateEntry{count: 3, windowEnd: ahora.Add(-time.Second)}
	l.entries["10.0.0.2"] = &rateEntry{count: 1, windowEnd: ahora.Add(time.Minute)}

	l.purgeAt(ahora)
	assert.NotContains(t, l.entries, "10.0.0.1")
	assert.Contains(t, l.entries, "10.0.0.2")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	hecho := make(chan struct{})
	go func() {
		l.purge(ctx, time.Hour)
		close(hecho)
	}()
	select {
	case <-hecho:
	case <-time.After(time.Second):
		t.Fatal("purge ignored its context")
	}
}

func TestCORS_Preflight(t *testing.T) {
	r := gin.New()
	r.Use(CORS())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := servir(r, httptest.NewRequest(http.MethodOptions, "/", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "X-Request-ID", w.Header().Get("Access-Control-Expose-Headers"))
}
