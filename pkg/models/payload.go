package models

import (
	"strings"

	"taxidispatch/pkg/errs"
)

// CallbackAction is the verb carried by an inline button.
type CallbackAction string

const (
	CallbackAccept   CallbackAction = "accept"
	CallbackComplete CallbackAction = "complete"
)

// CallbackPayload is the "<action>:<order-id>" string attached to a button.
type CallbackPayload struct {
	Action  CallbackAction
	OrderID string
}

func NewCallbackPayload(action CallbackAction, orderID string) CallbackPayload {
	return CallbackPayload{Action: action, OrderID: orderID}
}

func (p CallbackPayload) String() string {
	return string(p.Action) + ":" + p.OrderID
}

func ParseCallbackPayload(data string) (CallbackPayload, error) {
	action, orderID, ok := strings.Cut(strings.TrimSpace(data), ":")
	if !ok || orderID == "" {
		return CallbackPayload{}, errs.NewValidationError("payload", "malformed button payload "+quote(data))
	}
	switch a := CallbackAction(action); a {
	case CallbackAccept, CallbackComplete:
		return CallbackPayload{Action: a, OrderID: orderID}, nil
	}
	return CallbackPayload{}, errs.NewValidationError("payload", "unknown button action "+quote(action))
}
