package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"taxidispatch/pkg/errs"
	"taxidispatch/pkg/logger"
	"taxidispatch/pkg/models"
	"taxidispatch/storage"
)

type DriverService interface {
	// OnJoin handles a user entering the drivers group.
	OnJoin(ctx context.Context, p models.Profile) (*models.Driver, error)
	// HandleText consumes a private message as the answer to the current
	// registration step. handled is false when the sender is not registering.
	HandleText(ctx context.Context, p models.Profile, text string) (handled bool, err error)
	AdminUpdate(ctx context.Context, id string, patch models.DriverPatch, adminID string) (*models.Driver, error)
	Get(ctx context.Context, id string) (*models.Driver, error)
	List(ctx context.Context, filter models.DriverFilter) ([]*models.Driver, error)
}

type driverService struct {
	*deps
}

func NewDriverService(d *deps) DriverService {
	return &driverService{deps: d}
}

func (s *driverService) OnJoin(ctx context.Context, p models.Profile) (*models.Driver, error) {
	driver, _, err := s.ensureRegistering(ctx, p)
	return driver, err
}

// ensureRegistering looks the driver up, creating one when unknown, and sends
// the registration prompt to anyone who is not registered yet.
func (s *driverService) ensureRegistering(ctx context.Context, p models.Profile) (*models.Driver, bool, error) {
	driver, created, err := s.stg.Driver().GetOrCreate(ctx, models.NewDriver(p))
	if err != nil {
		return nil, false, fmt.Errorf("get or create driver: %w", err)
	}

	if created {
		s.log.Info("driver created", logger.String("driver_id", driver.ID), logger.Int64("telegram_id", p.TelegramID))
		s.notify.send(ctx, driver.TelegramID, driverWelcomeText(driver))
		return driver, true, nil
	}
	if driver.IsRegistered {
		return driver, false, nil
	}

	if driver.RegistrationStep == nil {
		if _, err := s.stg.Driver().RestartRegistration(ctx, driver.ID); err != nil {
			return nil, false, fmt.Errorf("restart registration: %w", err)
		}
		if driver, err = s.stg.Driver().GetByID(ctx, driver.ID); err != nil {
			return nil, false, fmt.Errorf("reload driver: %w", err)
		}
	}

	step := models.StepCarBrand
	if driver.RegistrationStep != nil {
		step = *driver.RegistrationStep
	}
	s.notify.send(ctx, driver.TelegramID, continueRegistrationText(step))
	return driver, false, nil
}

func (s *driverService) HandleText(ctx context.Context, p models.Profile, text string) (bool, error) {
	driver, err := s.stg.Driver().GetByTelegramID(ctx, p.TelegramID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("get driver: %w", err)
	}
	if driver.RegistrationStep == nil {
		return false, nil
	}
	step := *driver.RegistrationStep

	if strings.TrimSpace(text) == "" {
		s.notify.send(ctx, driver.TelegramID, stepPrompts[step])
		return true, errs.NewValidationError(string(step), "value must not be empty")
	}

	updated, err := s.stg.Driver().RecordStep(ctx, driver.ID, step, text)
	if err != nil {
		if errors.Is(err, storage.ErrConditionFailed) {
			// A concurrent update already consumed this step.
			s.log.Debug("registration step already recorded",
				logger.String("driver_id", driver.ID), logger.String("step", string(step)))
			return true, nil
		}
		return true, fmt.Errorf("record registration step: %w", err)
	}

	if updated.IsRegistered {
		s.audit.record(ctx, driverEntry(models.ActionDriverRegistered, updated))
		s.log.Info("driver registered", logger.String("driver_id", updated.ID))
		s.notify.send(ctx, updated.TelegramID, registrationDoneText(updated))
		return true, nil
	}
	if updated.RegistrationStep != nil {
		s.notify.send(ctx, updated.TelegramID, stepPrompts[*updated.RegistrationStep])
	}
	return true, nil
}

func (s *driverService) AdminUpdate(ctx context.Context, id string, patch models.DriverPatch, adminID string) (*models.Driver, error) {
	if patch.IsEmpty() {
		return nil, errs.NewValidationError("body", "no fields to update")
	}

	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if current.IsRegistered {
		preview := *current
		patch.Apply(&preview)
		if !preview.HasCarDetails() {
			return nil, errs.NewValidationErrorWithCause("car", "car details cannot be cleared", ErrCarFieldRequired)
		}
	}

	updated, err := s.stg.Driver().Update(ctx, id, patch)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, errs.NewNotFoundError("driver", id)
		}
		return nil, fmt.Errorf("update driver: %w", err)
	}

	if patch.Status != nil && *patch.Status != current.Status {
		action := models.ActionDriverUnblocked
		if *patch.Status == models.DriverStatusBlocked {
			action = models.ActionDriverBlocked
		}
		entry := driverEntry(action, updated)
		entry.AdminID = adminID
		s.audit.record(ctx, entry)
		s.log.Info("driver status changed", logger.String("driver_id", id), logger.String("status", string(*patch.Status)))
	}

	if !updated.IsRegistered && updated.HasCarDetails() {
		registered, err := s.stg.Driver().MarkRegistered(ctx, id)
		switch {
		case err == nil:
			updated = registered
			entry := driverEntry(models.ActionDriverRegistered, updated)
			entry.AdminID = adminID
			entry.Details = "registered by administrator"
			s.audit.record(ctx, entry)
			s.log.Info("driver registered by administrator", logger.String("driver_id", id))
		case errors.Is(err, storage.ErrConditionFailed):
			// Finished the dialogue concurrently or a field was cleared again.
			if updated, err = s.Get(ctx, id); err != nil {
				return nil, err
			}
		default:
			return nil, fmt.Errorf("mark driver registered: %w", err)
		}
	}
	return updated, nil
}

func (s *driverService) Get(ctx context.Context, id string) (*models.Driver, error) {
	driver, err := s.stg.Driver().GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, errs.NewNotFoundError("driver", id)
		}
		return nil, fmt.Errorf("get driver: %w", err)
	}
	return driver, nil
}

func (s *driverService) List(ctx context.Context, filter models.DriverFilter) ([]*models.Driver, error) {
	return s.stg.Driver().List(ctx, filter)
}
