package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"storefront-service/internal/models"
	"storefront-service/internal/service"
	"storefront-service/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
)

// Pinger reports whether the backing store is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// Services groups everything the HTTP layer calls into
type Services struct {
	Variants      *service.VariantService
	Subscriptions *service.SubscriptionService
	Dispatcher    service.RestockTrigger
	Orders        *service.OrderService
	Checkout      *service.CheckoutService
	Webhooks      *service.WebhookIntake
	EarlyAccess   *service.EarlyAccessService
	Store         Pinger
	Cache         Pinger
}

// Options configures the router
type Options struct {
	ServiceName    string
	PublicKey      string
	AllowedOrigins []string
}

// Handler contains HTTP handlers
type Handler struct {
	svc    Services
	opts   Options
	logger *zap.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(svc Services, opts Options) *Handler {
	if opts.ServiceName == "" {
		opts.ServiceName = "storefront-service"
	}
	return &Handler{
		svc:    svc,
		opts:   opts,
		logger: util.GetLogger(),
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(h.opts.ServiceName))
	router.Use(prometheusMiddleware())
	router.Use(corsMiddleware(h.opts.AllowedOrigins))

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api")

	products := api.Group("/products")
	{
		products.GET("", h.listProducts)
		products.POST("/notify-when-restocked", h.subscribe)
		products.GET("/stock-notifications", h.listSubscriptions)
		products.GET("/stock-notifications/:variantId", h.listSubscriptionsForVariant)
		products.PATCH("/variants/:variantId", h.updateVariant)
		products.DELETE("/variants/:variantId", h.deleteVariant)
		products.POST("/variants/:variantId/notifications/dispatch", h.dispatchNotifications)
		products.GET("/:productId", h.getProduct)
		products.PATCH("/:productId", h.updateProduct)
		products.PATCH("/:productId/batch-status", h.updateBatchStatus)
		products.GET("/:productId/variants", h.listVariants)
		products.POST("/:productId/variants", h.createVariant)
	}

	orders := api.Group("/orders")
	{
		orders.GET("", h.listOrders)
		orders.POST("", h.createOrder)
		orders.GET("/:id", h.getOrder)
		orders.GET("/:id/history", h.orderHistory)
		orders.PATCH("/:id/status", h.updateOrderStatus)
	}

	payments := api.Group("/payments")
	{
		payments.GET("/public-key", h.publicKey)
		payments.POST("/create-preference", h.createPreference)
		payments.POST("/webhook", h.webhook)
	}

	launch := api.Group("/launch")
	{
		launch.POST("/early-access", h.registerEarlyAccess)
		launch.GET("/early-access", h.listEarlyAccess)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck reports ready only when the store and, if configured, redis answer
func (h *Handler) readinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	for name, p := range map[string]Pinger{"store": h.svc.Store, "cache": h.svc.Cache} {
		if p == nil {
			continue
		}
		if err := p.Ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":    "unavailable",
				"component": name,
				"details":   err.Error(),
			})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error":   "Invalid request body",
		"details": err.Error(),
	})
}

// respondError maps the error taxonomy onto status codes
func (h *Handler) respondError(c *gin.Context, message string, err error) {
	status := http.StatusInternalServerError
	switch {
	case models.IsValidation(err):
		status = http.StatusBadRequest
	case models.IsNotFound(err):
		status = http.StatusNotFound
	case models.IsConflict(err):
		status = http.StatusConflict
	case models.IsIntegration(err):
		status = http.StatusBadGateway
	}

	if status >= http.StatusInternalServerError {
		h.logger.Error(message, zap.String("path", c.FullPath()), zap.Error(err))
	}
	c.JSON(status, gin.H{
		"error":   message,
		"details": err.Error(),
	})
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}

func corsMiddleware(allowed []string) gin.HandlerFunc {
	origins := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		origins[strings.TrimRight(o, "/")] = true
	}

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" && (origins["*"] || origins[origin]) {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Vary", "Origin")
			c.Header("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Content-Type, Idempotency-Key")
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
