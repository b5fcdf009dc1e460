package service

import (
	"context"
	"errors"
	"fmt"

	"taxidispatch/pkg/errs"
	"taxidispatch/pkg/logger"
	"taxidispatch/pkg/models"
	"taxidispatch/storage"
)

const defaultClientsLimit = 500

type ClientService interface {
	// Auth creates the client on first contact and refreshes its profile afterwards.
	Auth(ctx context.Context, p models.Profile) (*models.Client, error)
	UpdatePhone(ctx context.Context, telegramID int64, phone string) (*models.Client, error)
	Get(ctx context.Context, telegramID int64) (*models.Client, error)
	List(ctx context.Context, limit int) ([]*models.Client, error)
}

type clientService struct {
	stg storage.IClientStorage
	log logger.ILogger
}

func NewClientService(d *deps) ClientService {
	return &clientService{stg: d.stg.Client(), log: d.log}
}

func (s *clientService) Auth(ctx context.Context, p models.Profile) (*models.Client, error) {
	if p.TelegramID == 0 {
		return nil, errs.NewValidationError("telegram_id", "telegram user id is required")
	}
	client, err := s.stg.Upsert(ctx, models.NewClient(p))
	if err != nil {
		return nil, fmt.Errorf("upsert client: %w", err)
	}
	s.log.Info("client authenticated", logger.Int64("telegram_id", p.TelegramID))
	return client, nil
}

func (s *clientService) UpdatePhone(ctx context.Context, telegramID int64, phone string) (*models.Client, error) {
	if telegramID == 0 {
		return nil, errs.NewValidationError("telegram_id", "telegram user id is required")
	}
	normalized, err := models.NormalizePhone(phone)
	if err != nil {
		return nil, err
	}

	c := models.NewClient(models.Profile{TelegramID: telegramID})
	c.Phone = normalized
	client, err := s.stg.UpdatePhone(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("update client phone: %w", err)
	}
	s.log.Info("client phone updated", logger.Int64("telegram_id", telegramID))
	return client, nil
}

func (s *clientService) Get(ctx context.Context, telegramID int64) (*models.Client, error) {
	client, err := s.stg.GetByTelegramID(ctx, telegramID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, errs.NewNotFoundError("client", telegramID)
		}
		return nil, fmt.Errorf("get client: %w", err)
	}
	return client, nil
}

func (s *clientService) List(ctx context.Context, limit int) ([]*models.Client, error) {
	if limit <= 0 {
		limit = defaultClientsLimit
	}
	return s.stg.List(ctx, limit)
}
