package service

import (
	"context"
	"fmt"

	"taxidispatch/pkg/errs"
	"taxidispatch/pkg/logger"
)

type SettingsView struct {
	DriversChatID int64 `json:"drivers_chat_id"`
	BotConfigured bool  `json:"bot_configured"`
}

type SettingsService interface {
	Get(ctx context.Context) SettingsView
	SetDriversChat(ctx context.Context, chatID int64) error
}

type settingsService struct {
	*deps
	botConfigured bool
}

func NewSettingsService(d *deps, n Notifier) SettingsService {
	_, nop := n.(NopNotifier)
	return &settingsService{deps: d, botConfigured: !nop}
}

func (s *settingsService) Get(context.Context) SettingsView {
	return SettingsView{
		DriversChatID: s.settings.DriversChatID(),
		BotConfigured: s.botConfigured,
	}
}

func (s *settingsService) SetDriversChat(_ context.Context, chatID int64) error {
	if chatID == 0 {
		return errs.NewValidationError("chat_id", "chat id is required")
	}
	if err := s.settings.SetDriversChatID(chatID); err != nil {
		return fmt.Errorf("save drivers chat id: %w", err)
	}
	s.log.Info("drivers chat changed", logger.Int64("chat_id", chatID))
	return nil
}
