package memory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"taxidispatch/pkg/models"
	"taxidispatch/storage"
)

type driverDoc = models.Driver

type driverRepo struct {
	s *Store
}

func cloneDriver(d models.Driver) *models.Driver {
	d.RegistrationStep = clonePtr(d.RegistrationStep)
	d.CurrentOrderID = clonePtr(d.CurrentOrderID)
	return &d
}

func (r *driverRepo) GetOrCreate(_ context.Context, d *models.Driver) (*models.Driver, bool, error) {
	c := r.s.drivers
	if doc, ok := c.getByTelegramID(d.TelegramID); ok {
		return cloneDriver(doc.read()), false, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if id, ok := c.byTelegramID[d.TelegramID]; ok {
		return cloneDriver(c.docs[id].read()), false, nil
	}
	doc := c.insertLocked(d.ID, *cloneDriver(*d))
	c.byTelegramID[d.TelegramID] = d.ID
	return cloneDriver(doc.val), true, nil
}

func (r *driverRepo) GetByID(_ context.Context, id string) (*models.Driver, error) {
	doc, ok := r.s.drivers.get(id)
	if !ok {
		return nil, storage.ErrNotFound
	}
	return cloneDriver(doc.read()), nil
}

func (r *driverRepo) GetByTelegramID(_ context.Context, telegramID int64) (*models.Driver, error) {
	doc, ok := r.s.drivers.getByTelegramID(telegramID)
	if !ok {
		return nil, storage.ErrNotFound
	}
	return cloneDriver(doc.read()), nil
}

func (r *driverRepo) List(_ context.Context, filter models.DriverFilter) ([]*models.Driver, error) {
	var drivers []*models.Driver
	for _, doc := range r.s.drivers.snapshot() {
		if d := doc.read(); filter.Match(&d) {
			drivers = append(drivers, cloneDriver(d))
		}
	}
	newestFirst(drivers, func(d *models.Driver) time.Time { return d.CreatedAt })
	return drivers, nil
}

func (r *driverRepo) Count(ctx context.Context, filter models.DriverFilter) (int, error) {
	drivers, err := r.List(ctx, filter)
	return len(drivers), err
}

func (r *driverRepo) update(id string, fn func(d *models.Driver) bool) (*models.Driver, error) {
	doc, ok := r.s.drivers.get(id)
	if !ok {
		return nil, storage.ErrNotFound
	}
	doc.mu.Lock()
	defer doc.mu.Unlock()

	next := cloneDriver(doc.val)
	if !fn(next) {
		return nil, storage.ErrConditionFailed
	}
	doc.val = *next
	return cloneDriver(doc.val), nil
}

func (r *driverRepo) Update(_ context.Context, id string, patch models.DriverPatch) (*models.Driver, error) {
	return r.update(id, func(d *models.Driver) bool {
		patch.Apply(d)
		return true
	})
}

func (r *driverRepo) RestartRegistration(_ context.Context, id string) (bool, error) {
	_, err := r.update(id, func(d *models.Driver) bool {
		if d.IsRegistered || d.RegistrationStep != nil {
			return false
		}
		d.RegistrationStep = ptr(models.StepCarBrand)
		return true
	})
	if errors.Is(err, storage.ErrConditionFailed) {
		return false, nil
	}
	return err == nil, err
}

func (r *driverRepo) RecordStep(_ context.Context, id string, step models.RegistrationStep, value string) (*models.Driver, error) {
	if _, err := models.ParseRegistrationStep(string(step)); err != nil {
		return nil, fmt.Errorf("record step: %w", err)
	}
	return r.update(id, func(d *models.Driver) bool {
		if d.RegistrationStep == nil || *d.RegistrationStep != step {
			return false
		}
		d.SetCarField(step, step.Normalize(value))
		if next, ok := step.Next(); ok {
			d.RegistrationStep = ptr(next)
		} else {
			d.RegistrationStep = nil
			d.IsRegistered = true
		}
		return true
	})
}

func (r *driverRepo) MarkRegistered(_ context.Context, id string) (*models.Driver, error) {
	return r.update(id, func(d *models.Driver) bool {
		if d.IsRegistered || !d.HasCarDetails() {
			return false
		}
		d.IsRegistered = true
		d.RegistrationStep = nil
		return true
	})
}

func (r *driverRepo) SetBusy(_ context.Context, id, orderID string) error {
	_, err := r.update(id, func(d *models.Driver) bool {
		d.IsBusy = true
		d.CurrentOrderID = ptr(orderID)
		return true
	})
	return err
}

func (r *driverRepo) Release(_ context.Context, id string) error {
	_, err := r.update(id, func(d *models.Driver) bool {
		d.IsBusy = false
		d.CurrentOrderID = nil
		return true
	})
	return err
}
