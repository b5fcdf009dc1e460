package api

import (
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"taxidispatch/pkg/errs"
	"taxidispatch/pkg/models"
	"taxidispatch/service"
)

type authRequest struct {
	InitData string `json:"init_data" binding:"required"`
}

type updatePhoneRequest struct {
	TelegramID any    `json:"telegram_id" binding:"required"`
	Phone      string `json:"phone" binding:"required"`
}

type initDataUser struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// parseInitData extracts the user from mini-app init data
// (a query string whose "user" field holds JSON).
func parseInitData(raw string) (models.Profile, error) {
	values, err := url.ParseQuery(raw)
	if err != nil {
		return models.Profile{}, errs.NewValidationError("init_data", "invalid init data")
	}
	var u initDataUser
	if err := json.Unmarshal([]byte(values.Get("user")), &u); err != nil || u.ID == 0 {
		return models.Profile{}, errs.NewValidationError("init_data", "invalid init data")
	}
	return models.Profile{
		TelegramID: u.ID,
		Username:   u.Username,
		FirstName:  u.FirstName,
		LastName:   u.LastName,
	}, nil
}

func (h *Handler) ClientAuth(c *gin.Context) {
	var req authRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "init_data", err)
		return
	}
	profile, err := parseInitData(req.InitData)
	if err != nil {
		h.handleError(c, err)
		return
	}
	client, err := h.svc.Client().Auth(c.Request.Context(), profile)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, client)
}

func (h *Handler) UpdatePhone(c *gin.Context) {
	var req updatePhoneRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "body", err)
		return
	}
	id, err := telegramID("telegram_id", req.TelegramID)
	if err != nil {
		h.handleError(c, err)
		return
	}
	client, err := h.svc.Client().UpdatePhone(c.Request.Context(), id, req.Phone)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, client)
}

func (h *Handler) CreateOrder(c *gin.Context) {
	id, err := queryTelegramID(c)
	if err != nil {
		h.handleError(c, err)
		return
	}
	var req service.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "body", err)
		return
	}
	order, err := h.svc.Order().Create(c.Request.Context(), id, req)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// ActiveOrder answers null when the client has nothing in progress.
func (h *Handler) ActiveOrder(c *gin.Context) {
	id, err := queryTelegramID(c)
	if err != nil {
		h.handleError(c, err)
		return
	}
	order, err := h.svc.Order().GetActive(c.Request.Context(), id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *Handler) CancelOrder(c *gin.Context) {
	id, err := queryTelegramID(c)
	if err != nil {
		h.handleError(c, err)
		return
	}
	order, err := h.svc.Order().CancelByClient(c.Request.Context(), c.Param("id"), id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Заказ отменён", "order": order})
}

func (h *Handler) OrderHistory(c *gin.Context) {
	id, err := queryTelegramID(c)
	if err != nil {
		h.handleError(c, err)
		return
	}
	orders, err := h.svc.Order().History(c.Request.Context(), id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, nonNil(orders))
}

// nonNil keeps empty lists encoded as [] rather than null.
func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
