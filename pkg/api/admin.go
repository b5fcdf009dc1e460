package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cast"

	"taxidispatch/pkg/errs"
	"taxidispatch/pkg/models"
)

type assignRequest struct {
	DriverID string `json:"driver_id" binding:"required"`
}

type driversChatRequest struct {
	ChatID any `json:"chat_id" binding:"required"`
}

func (h *Handler) ListOrders(c *gin.Context) {
	var status *models.OrderStatus
	if raw := c.Query("status"); raw != "" {
		st, err := models.ParseOrderStatus(raw)
		if err != nil {
			h.handleError(c, err)
			return
		}
		status = &st
	}
	limit, err := queryLimit(c)
	if err != nil {
		h.handleError(c, err)
		return
	}
	orders, err := h.svc.Order().List(c.Request.Context(), status, limit)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, nonNil(orders))
}

func (h *Handler) GetOrder(c *gin.Context) {
	order, err := h.svc.Order().Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *Handler) AssignOrder(c *gin.Context) {
	var req assignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "driver_id", err)
		return
	}
	order, err := h.svc.Order().AdminAssign(c.Request.Context(), c.Param("id"), req.DriverID, adminID(c))
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *Handler) AdminCancelOrder(c *gin.Context) {
	order, err := h.svc.Order().AdminCancel(c.Request.Context(), c.Param("id"), adminID(c))
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *Handler) AdminCompleteOrder(c *gin.Context) {
	order, err := h.svc.Order().AdminComplete(c.Request.Context(), c.Param("id"), adminID(c))
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *Handler) ListDrivers(c *gin.Context) {
	var filter models.DriverFilter
	if raw := c.Query("status"); raw != "" {
		st, err := models.ParseDriverStatus(raw)
		if err != nil {
			h.handleError(c, err)
			return
		}
		filter.Status = &st
	}
	if raw := c.Query("busy"); raw != "" {
		busy, err := cast.ToBoolE(raw)
		if err != nil {
			h.handleError(c, errs.NewValidationError("busy", "busy must be true or false"))
			return
		}
		filter.Busy = &busy
	}
	drivers, err := h.svc.Driver().List(c.Request.Context(), filter)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, nonNil(drivers))
}

func (h *Handler) GetDriver(c *gin.Context) {
	driver, err := h.svc.Driver().Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, driver)
}

func (h *Handler) UpdateDriver(c *gin.Context) {
	var patch models.DriverPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		h.badRequest(c, "body", err)
		return
	}
	if patch.Status != nil {
		st, err := models.ParseDriverStatus(string(*patch.Status))
		if err != nil {
			h.handleError(c, err)
			return
		}
		patch.Status = &st
	}
	driver, err := h.svc.Driver().AdminUpdate(c.Request.Context(), c.Param("id"), patch, adminID(c))
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, driver)
}

func (h *Handler) ListClients(c *gin.Context) {
	limit, err := queryLimit(c)
	if err != nil {
		h.handleError(c, err)
		return
	}
	clients, err := h.svc.Client().List(c.Request.Context(), limit)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, nonNil(clients))
}

func (h *Handler) ListLogs(c *gin.Context) {
	limit, err := queryLimit(c)
	if err != nil {
		h.handleError(c, err)
		return
	}
	logs, err := h.svc.ActionLog().List(c.Request.Context(), limit)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, nonNil(logs))
}

func (h *Handler) GetSettings(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.Settings().Get(c.Request.Context()))
}

func (h *Handler) SetDriversChat(c *gin.Context) {
	var req driversChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "chat_id", err)
		return
	}
	chatID, err := cast.ToInt64E(req.ChatID)
	if err != nil {
		h.handleError(c, errs.NewValidationError("chat_id", "chat id must be an integer"))
		return
	}
	if err := h.svc.Settings().SetDriversChat(c.Request.Context(), chatID); err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Chat ID сохранён"})
}

func (h *Handler) Stats(c *gin.Context) {
	stats, err := h.svc.Stats().Get(c.Request.Context())
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// Reconcile runs a repair pass immediately instead of waiting for the schedule.
func (h *Handler) Reconcile(c *gin.Context) {
	report, err := h.svc.Reconciler().Run(c.Request.Context())
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}
