package api

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cast"

	"taxidispatch/config"
	"taxidispatch/pkg/errs"
	"taxidispatch/pkg/logger"
	"taxidispatch/service"
)

const (
	headerAdminToken = "X-Admin-Token"
	headerAdminID    = "X-Admin-Id"
	defaultAdminID   = "admin"
)

type Handler struct {
	svc service.IServiceManager
	log logger.ILogger
}

// NewRouter builds the HTTP API. A nil gatherer leaves /metrics out.
func NewRouter(cfg config.Config, svc service.IServiceManager, gatherer prometheus.Gatherer, log logger.ILogger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(cors())

	if gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	h := &Handler{svc: svc, log: log}

	api := r.Group("/api")
	{
		api.GET("/", h.Root)

		client := api.Group("/client")
		client.POST("/auth", h.ClientAuth)
		client.POST("/update-phone", h.UpdatePhone)
		client.POST("/order", h.CreateOrder)
		client.GET("/order/active", h.ActiveOrder)
		client.POST("/order/:id/cancel", h.CancelOrder)
		client.GET("/orders/history", h.OrderHistory)

		admin := api.Group("/admin", adminAuth(cfg.AdminAPIToken))
		admin.GET("/orders", h.ListOrders)
		admin.GET("/orders/:id", h.GetOrder)
		admin.POST("/orders/:id/assign", h.AssignOrder)
		admin.POST("/orders/:id/cancel", h.AdminCancelOrder)
		admin.POST("/orders/:id/complete", h.AdminCompleteOrder)
		admin.GET("/drivers", h.ListDrivers)
		admin.GET("/drivers/:id", h.GetDriver)
		admin.PATCH("/drivers/:id", h.UpdateDriver)
		admin.GET("/clients", h.ListClients)
		admin.GET("/logs", h.ListLogs)
		admin.GET("/settings", h.GetSettings)
		admin.POST("/settings/drivers-chat", h.SetDriversChat)
		admin.GET("/stats", h.Stats)
		admin.POST("/reconcile", h.Reconcile)
	}

	return r
}

func NewServer(cfg config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler: handler,
	}
}

func (h *Handler) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "Taxi Service API", "version": "1.0.0"})
}

func cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, "+headerAdminToken+", "+headerAdminID)
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// adminAuth checks the static admin token. An empty token disables the check.
func adminAuth(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token == "" {
			c.Next()
			return
		}
		got := c.GetHeader(headerAdminToken)
		if subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": "invalid admin token"})
			return
		}
		c.Next()
	}
}

func adminID(c *gin.Context) string {
	if id := c.GetHeader(headerAdminID); id != "" {
		return id
	}
	return defaultAdminID
}

// handleError writes the status matching the error kind.
func (h *Handler) handleError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, errs.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, errs.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, errs.ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, errs.ErrInvalidState):
		status = http.StatusUnprocessableEntity
	}

	if status == http.StatusInternalServerError {
		h.log.Error("request failed",
			logger.String("method", c.Request.Method),
			logger.String("path", c.FullPath()),
			logger.Error(err),
		)
		c.JSON(status, gin.H{"detail": "internal server error"})
		return
	}
	c.JSON(status, gin.H{"detail": errs.Reason(err)})
}

func (h *Handler) badRequest(c *gin.Context, field string, err error) {
	h.handleError(c, errs.NewValidationError(field, err.Error()))
}

// telegramID reads a Telegram user id given either as a JSON number or a string.
func telegramID(field string, v any) (int64, error) {
	id, err := cast.ToInt64E(v)
	if err != nil || id == 0 {
		return 0, errs.NewValidationError(field, "telegram id is required")
	}
	return id, nil
}

func queryTelegramID(c *gin.Context) (int64, error) {
	return telegramID("telegram_id", c.Query("telegram_id"))
}

func queryLimit(c *gin.Context) (int, error) {
	raw := c.Query("limit")
	if raw == "" {
		return 0, nil
	}
	limit, err := cast.ToIntE(raw)
	if err != nil || limit < 0 {
		return 0, errs.NewValidationError("limit", "limit must be a non-negative integer")
	}
	return limit, nil
}
