package handlers

import (
	"net/http"

	"stove_control/internal/logger"
	"stove_control/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// Handler wires HTTP layer to services and logging.
type Handler struct {
	services *service.Service
	gatherer prometheus.Gatherer
	log      *logger.Logger
}

// NewHandler constructs the HTTP handler. A nil gatherer serves the
// default Prometheus registry.
func NewHandler(services *service.Service, gatherer prometheus.Gatherer, log *logger.Logger) *Handler {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return &Handler{services: services, gatherer: gatherer, log: logger.OrNop(log)}
}

// InitRoutes builds and returns the Gin router with all routes registered.
func (h *Handler) InitRoutes() *gin.Engine {
	router := gin.New()
	router.Use(h.recovery())

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	router.GET("/health", h.health)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{})))

	h.registerAuthRoutes(router)

	// Perception and UI clients use both the bare and the /api paths.
	h.registerStoveRoutes(router)
	h.registerStoveRoutes(router.Group("/api"))

	h.registerAPIRoutes(router)

	router.GET("/ws", h.wsConnect)

	return router
}

func (h *Handler) registerAuthRoutes(r *gin.Engine) {
	auth := r.Group("/auth")
	{
		auth.POST("/sign-up", h.signUp)
		auth.POST("/sign-in", h.signIn)
	}
}

func (h *Handler) registerStoveRoutes(r gin.IRoutes) {
	r.GET("/status", h.getStatus)
	r.POST("/command", h.postCommand)
	r.POST("/verify_age", h.verifyAge)
	r.POST("/cooking_fire_status", h.cookingFireStatus)
	r.POST("/food_detected", h.foodDetected)
}

// registerAPIRoutes mounts the operator endpoints behind a bearer token.
func (h *Handler) registerAPIRoutes(r *gin.Engine) {
	api := r.Group("/api/v1", h.operatorIdentity)
	{
		api.GET("/events", h.getEvents)
	}
}

// recovery turns a panic in any handler into a JSON 500 so the process,
// and with it the safety loop, keeps running.
func (h *Handler) recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, err any) {
		h.log.Errorw("http_panic_recovered", "method", c.Request.Method, "path", c.Request.URL.Path, "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"status":  statusError,
			"message": msgInternalError,
		})
	})
}
