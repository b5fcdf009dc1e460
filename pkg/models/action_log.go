package models

import (
	"time"

	"github.com/google/uuid"
)

type ActionType string

const (
	ActionOrderCreated     ActionType = "ORDER_CREATED"
	ActionOrderBroadcast   ActionType = "ORDER_BROADCAST"
	ActionOrderAssigned    ActionType = "ORDER_ASSIGNED"
	ActionOrderCompleted   ActionType = "ORDER_COMPLETED"
	ActionOrderCancelled   ActionType = "ORDER_CANCELLED"
	ActionDriverRegistered ActionType = "DRIVER_REGISTERED"
	ActionDriverBlocked    ActionType = "DRIVER_BLOCKED"
	ActionDriverUnblocked  ActionType = "DRIVER_UNBLOCKED"
)

// ActionLog is an immutable audit fact.
type ActionLog struct {
	ID        string     `json:"id"`
	Action    ActionType `json:"action_type"`
	OrderID   string     `json:"order_id,omitempty"`
	DriverID  string     `json:"driver_id,omitempty"`
	ClientID  string     `json:"client_id,omitempty"`
	AdminID   string     `json:"admin_id,omitempty"`
	Details   string     `json:"details,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

func NewActionLog(action ActionType) *ActionLog {
	return &ActionLog{
		ID:        uuid.NewString(),
		Action:    action,
		CreatedAt: time.Now().UTC(),
	}
}
