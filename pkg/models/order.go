package models

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"taxidispatch/pkg/errs"
)

type OrderStatus string

const (
	OrderStatusNew       OrderStatus = "NEW"
	OrderStatusBroadcast OrderStatus = "BROADCAST"
	OrderStatusAssigned  OrderStatus = "ASSIGNED"
	OrderStatusCompleted OrderStatus = "COMPLETED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

// ActiveOrderStatuses are the statuses a client may hold at most one order in.
var ActiveOrderStatuses = []OrderStatus{OrderStatusNew, OrderStatusBroadcast, OrderStatusAssigned}

// ClaimableOrderStatuses are the statuses from which a driver can be attached.
var ClaimableOrderStatuses = []OrderStatus{OrderStatusNew, OrderStatusBroadcast}

func ParseOrderStatus(s string) (OrderStatus, error) {
	switch st := OrderStatus(strings.ToUpper(strings.TrimSpace(s))); st {
	case OrderStatusNew, OrderStatusBroadcast, OrderStatusAssigned, OrderStatusCompleted, OrderStatusCancelled:
		return st, nil
	}
	return "", errs.NewValidationError("status", "unknown order status "+quote(s))
}

func (s OrderStatus) IsActive() bool {
	return s.In(ActiveOrderStatuses...)
}

func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusCompleted || s == OrderStatusCancelled
}

func (s OrderStatus) In(statuses ...OrderStatus) bool {
	for _, st := range statuses {
		if s == st {
			return true
		}
	}
	return false
}

// MessageHandle points at a message delivered by the notification channel so it can be edited later.
type MessageHandle struct {
	ChatID    int64 `json:"chat_id"`
	MessageID int   `json:"message_id"`
}

func (h MessageHandle) IsZero() bool {
	return h.ChatID == 0 || h.MessageID == 0
}

type Order struct {
	ID               string         `json:"id"`
	ClientID         string         `json:"client_id"`
	ClientTelegramID int64          `json:"client_telegram_id"`
	ClientPhone      string         `json:"client_phone,omitempty"`
	AddressFrom      string         `json:"address_from"`
	AddressTo        string         `json:"address_to"`
	Comment          string         `json:"comment,omitempty"`
	Status           OrderStatus    `json:"status"`
	DriverID         *string        `json:"driver_id"`
	DriverTelegramID *int64         `json:"driver_telegram_id,omitempty"`
	DriverName       string         `json:"driver_name,omitempty"`
	DriverPhone      string         `json:"driver_phone,omitempty"`
	DriverCar        string         `json:"driver_car,omitempty"`
	Message          *MessageHandle `json:"message,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
	AssignedAt       *time.Time     `json:"assigned_at,omitempty"`
	CompletedAt      *time.Time     `json:"completed_at,omitempty"`
	CancelledAt      *time.Time     `json:"cancelled_at,omitempty"`
}

// NewOrder builds an order in status NEW for the given client.
func NewOrder(client *Client, from, to, comment string) (*Order, error) {
	from, to = strings.TrimSpace(from), strings.TrimSpace(to)
	if from == "" {
		return nil, errs.NewValidationError("address_from", "pickup address is required")
	}
	if to == "" {
		return nil, errs.NewValidationError("address_to", "dropoff address is required")
	}
	return &Order{
		ID:               uuid.NewString(),
		ClientID:         client.ID,
		ClientTelegramID: client.TelegramID,
		ClientPhone:      client.Phone,
		AddressFrom:      from,
		AddressTo:        to,
		Comment:          strings.TrimSpace(comment),
		Status:           OrderStatusNew,
		CreatedAt:        time.Now().UTC(),
	}, nil
}

// ShortID is the prefix shown to humans in chat messages.
func (o *Order) ShortID() string {
	if len(o.ID) > 8 {
		return o.ID[:8]
	}
	return o.ID
}

func (o *Order) HasDriver() bool {
	return o.DriverID != nil && *o.DriverID != ""
}

// Assignment carries the driver fields copied onto an order when it is claimed.
type Assignment struct {
	DriverID         string
	DriverTelegramID int64
	DriverName       string
	DriverPhone      string
	DriverCar        string
	AssignedAt       time.Time
}

func NewAssignment(d *Driver) Assignment {
	return Assignment{
		DriverID:         d.ID,
		DriverTelegramID: d.TelegramID,
		DriverName:       d.DisplayName(),
		DriverPhone:      d.Phone,
		DriverCar:        d.CarInfo(),
		AssignedAt:       time.Now().UTC(),
	}
}

func quote(s string) string {
	return "\"" + s + "\""
}
