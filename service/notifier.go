package service

import (
	"context"
	"errors"

	"taxidispatch/pkg/models"
)

// ErrNotifierNotConfigured is returned by NopNotifier.
var ErrNotifierNotConfigured = errors.New("bot not configured")

// Button is an inline button carrying an opaque payload back to the bot.
type Button struct {
	Text string
	Data string
}

// Notifier delivers messages to chats and answers button presses.
type Notifier interface {
	Send(ctx context.Context, chatID int64, text string, buttons ...Button) (models.MessageHandle, error)
	Edit(ctx context.Context, msg models.MessageHandle, text string, buttons ...Button) error
	Acknowledge(ctx context.Context, interactionID, text string, alert bool) error
}

// NopNotifier is used when no bot token is configured.
type NopNotifier struct{}

func (NopNotifier) Send(context.Context, int64, string, ...Button) (models.MessageHandle, error) {
	return models.MessageHandle{}, ErrNotifierNotConfigured
}

func (NopNotifier) Edit(context.Context, models.MessageHandle, string, ...Button) error {
	return ErrNotifierNotConfigured
}

func (NopNotifier) Acknowledge(context.Context, string, string, bool) error {
	return ErrNotifierNotConfigured
}
