package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"taxidispatch/pkg/errs"
	"taxidispatch/pkg/logger"
	"taxidispatch/pkg/models"
	"taxidispatch/storage"
)

const (
	claimWon      = "won"
	claimLost     = "lost"
	claimRejected = "rejected"
)

// Dispatcher resolves driver claims on broadcast orders.
type Dispatcher interface {
	// Claim attaches the order to the driver identified by p. Exactly one of
	// any number of concurrent claims on the same order succeeds; the others
	// get a ConflictError wrapping ErrOrderTaken.
	Claim(ctx context.Context, orderID string, p models.Profile) (*models.Order, error)
}

type dispatcher struct {
	*deps
	drivers *driverService
}

func NewDispatcher(d *deps) Dispatcher {
	return &dispatcher{deps: d, drivers: &driverService{deps: d}}
}

func (s *dispatcher) Claim(ctx context.Context, orderID string, p models.Profile) (order *models.Order, err error) {
	start := time.Now()
	defer func() {
		s.metrics.ClaimDuration.Observe(time.Since(start).Seconds())
		switch {
		case err == nil:
			s.metrics.ClaimsTotal.WithLabelValues(claimWon).Inc()
		case errors.Is(err, ErrOrderTaken):
			s.metrics.ClaimsTotal.WithLabelValues(claimLost).Inc()
		default:
			s.metrics.ClaimsTotal.WithLabelValues(claimRejected).Inc()
		}
	}()

	driver, created, err := s.drivers.ensureRegistering(ctx, p)
	if err != nil {
		return nil, err
	}
	if created || !driver.IsRegistered {
		return nil, errs.NewInvalidStateError("driver", driver.ID, "UNREGISTERED", "claim order", ErrRegistrationRequired)
	}
	if err := checkAvailable(driver); err != nil {
		return nil, err
	}

	order, err = claim(ctx, s.deps, orderID, driver)
	if err != nil {
		if errors.Is(err, ErrOrderTaken) {
			s.log.Info("claim lost", logger.String("order_id", orderID), logger.String("driver_id", driver.ID))
		}
		return nil, err
	}

	s.audit.record(ctx, orderEntry(models.ActionOrderAssigned, order))
	s.log.Info("order claimed", logger.String("order_id", orderID), logger.String("driver_id", driver.ID))

	fanOutAssignment(s.deps, order, driver)
	return order, nil
}

// checkAvailable holds the advisory pre-checks. They only reject obviously
// ineligible drivers; the conditional update in claim decides the winner.
func checkAvailable(d *models.Driver) error {
	if d.IsBlocked() {
		return errs.NewInvalidStateError("driver", d.ID, string(d.Status), "claim order", ErrDriverBlocked)
	}
	if d.IsBusy {
		return errs.NewConflictError("driver", "driver already has an active order", ErrDriverBusy)
	}
	return nil
}

// claim runs the conditional update and, for the winner, marks the driver
// busy. The second write is unconditional; its failure leaves the claim in
// place and is reported as a partial failure.
func claim(ctx context.Context, d *deps, orderID string, driver *models.Driver) (*models.Order, error) {
	order, err := d.stg.Order().Claim(ctx, orderID, models.NewAssignment(driver))
	if err != nil {
		if !errors.Is(err, storage.ErrConditionFailed) && !errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("claim order: %w", err)
		}
		return nil, claimFailure(ctx, d, orderID)
	}
	d.metrics.TransitionsTotal.WithLabelValues(string(models.OrderStatusAssigned)).Inc()

	if err := d.stg.Driver().SetBusy(ctx, driver.ID, order.ID); err != nil {
		d.partialFailure("set_busy", order.ID, driver.ID, err)
	}
	return order, nil
}

// claimFailure explains why the conditional update matched nothing.
func claimFailure(ctx context.Context, d *deps, orderID string) error {
	current, err := d.stg.Order().GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return errs.NewNotFoundError("order", orderID)
		}
		return fmt.Errorf("get order: %w", err)
	}
	if current.HasDriver() {
		return errs.NewConflictError("order", "order already taken", ErrOrderTaken)
	}
	return invalidOrderState(current, "claim")
}

// fanOutAssignment tells the drivers chat, the client and the driver about a
// new assignment. Delivery is detached and best effort.
func fanOutAssignment(d *deps, order *models.Order, driver *models.Driver) {
	d.tasks.Go("notify assignment", func(ctx context.Context) error {
		d.notify.edit(ctx, order.Message, takenText(order))
		d.notify.send(ctx, order.ClientTelegramID, driverAssignedText(order))
		d.notify.send(ctx, driver.TelegramID, driverOrderText(order), completeButton(order))
		return nil
	})
}
