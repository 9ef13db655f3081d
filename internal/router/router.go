package router

import (
	"context"
	"time"

	"gestornomina/internal/config"
	"gestornomina/internal/handler"
	"gestornomina/internal/infra"
	"gestornomina/internal/memo"
	"gestornomina/internal/middleware"
	"gestornomina/internal/repository"
	"gestornomina/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// New wires all dependencies and returns a configured Gin engine.
// Dependency graph: Handler ← Service ← Repository ← DB, Service ← POS.
// rdb and posCB are optional and only feed the health check. ctx bounds the
// background goroutines of the middleware.
func New(ctx context.Context, cfg *config.Config, db *gorm.DB, rdb *redis.Client, pos service.POS, posCB *infra.CircuitBreaker, loc *time.Location) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Global middleware chain (order matters)
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.CORS())
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.RateLimiter(ctx, cfg.RateLimitPerMinute, time.Minute))

	// ── Repositories ─────────────────────────────────────────────────────────
	empleadoRepo := repository.NewEmpleadoRepository(db)
	movimientoRepo := repository.NewMovimientoRepository(db)
	nominaRepo := repository.NewNominaRepository(db)

	// ── Services ─────────────────────────────────────────────────────────────
	validador := memo.NewValidador(empleadoRepo, memo.NewParser())
	syncSvc := service.NewSyncService(empleadoRepo, movimientoRepo, nominaRepo, pos, validador, service.SyncConfig{
		MetodoCuentaCorriente: cfg.FudoHouseAccountMethod,
		DiasAdelantos:         cfg.AdvanceSyncDays,
		Location:              loc,
	})
	movimientoSvc := service.NewMovimientoService(movimientoRepo, nominaRepo, empleadoRepo, pos, loc)
	nominaSvc := service.NewNominaService(nominaRepo, movimientoRepo, empleadoRepo, loc)
	liquidacionSvc := service.NewLiquidacionService(nominaRepo, movimientoRepo, empleadoRepo, pos, loc)

	// ── Handlers ─────────────────────────────────────────────────────────────
	syncH := handler.NewSyncHandler(syncSvc)
	memoH := handler.NewMemoHandler(validador)
	movimientosH := handler.NewMovimientosHandler(movimientoSvc)
	nominasH := handler.NewNominasHandler(nominaSvc, liquidacionSvc)

	// ── Routes ───────────────────────────────────────────────────────────────

	r.GET("/health", handler.Health(db, rdb, posCB))

	// Operator surface. Authentication is handled upstream of this service.
	v1 := r.Group("/v1/nomina")
	{
		sync := v1.Group("/sync")
		{
			sync.POST("/consumos/:empleado_id", syncH.SincronizarConsumos)
			sync.POST("/consumos", syncH.SincronizarTodos)
			sync.POST("/adelantos", syncH.SincronizarAdelantos)
		}

		v1.GET("/memo/parse", memoH.Parse)

		empleados := v1.Group("/empleados/:id")
		{
			empleados.GET("/codigo", memoH.Codigo)
			empleados.GET("/saldo", movimientosH.Saldo)
			empleados.GET("/movimientos", movimientosH.Listar)
			empleados.GET("/nominas", nominasH.ListarPorEmpleado)
		}

		movs := v1.Group("/movimientos")
		{
			movs.POST("", movimientosH.Crear)
			movs.PUT("/:id", movimientosH.Actualizar)
			movs.DELETE("/:id", movimientosH.Eliminar)
			movs.POST("/:id/ajustar-monto", movimientosH.AjustarMonto)
			movs.POST("/:id/descuento-porcentaje", movimientosH.DescuentoPorcentaje)
		}

		nominas := v1.Group("/nominas")
		{
			nominas.POST("", nominasH.Abrir)
			nominas.GET("/:id", nominasH.Detalle)
			nominas.PUT("/:id", nominasH.Actualizar)
			nominas.DELETE("/:id", nominasH.Eliminar)
			nominas.PUT("/:id/directivas", nominasH.ModificarDirectivas)
			nominas.POST("/:id/presupuesto-global", nominasH.PresupuestoGlobal)
			nominas.POST("/:id/movimientos", nominasH.AgregarMovimientos)
			nominas.POST("/:id/liquidar", nominasH.Liquidar)
			nominas.POST("/:id/reintentar-pos", nominasH.ReintentarPOS)
		}

		v1.GET("/consistencia", nominasH.Consistencia)
	}

	return r
}
