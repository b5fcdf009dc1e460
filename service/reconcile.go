package service

import (
	"context"
	"errors"
	"fmt"

	"taxidispatch/pkg/logger"
	"taxidispatch/pkg/models"
	"taxidispatch/storage"
)

const (
	repairMarkBusy = "mark_busy"
	repairRelease  = "release"
	repairConflict = "double_assignment"
)

// ReconcileReport counts what a reconciliation pass changed.
type ReconcileReport struct {
	MarkedBusy int `json:"marked_busy"`
	Released   int `json:"released"`
	Conflicts  int `json:"conflicts"`
}

// Reconciler repairs drift between assigned orders and driver busy flags left
// behind by partial failures.
type Reconciler interface {
	Run(ctx context.Context) (ReconcileReport, error)
}

type reconciler struct {
	*deps
}

func NewReconciler(d *deps) Reconciler {
	return &reconciler{deps: d}
}

func (r *reconciler) Run(ctx context.Context) (ReconcileReport, error) {
	var report ReconcileReport

	assigned, err := r.stg.Order().List(ctx, storage.OrderFilter{
		Statuses: []models.OrderStatus{models.OrderStatusAssigned},
	})
	if err != nil {
		return report, fmt.Errorf("list assigned orders: %w", err)
	}
	for _, order := range assigned {
		if err := r.checkAssigned(ctx, order, &report); err != nil {
			return report, err
		}
	}

	busy := true
	drivers, err := r.stg.Driver().List(ctx, models.DriverFilter{Busy: &busy})
	if err != nil {
		return report, fmt.Errorf("list busy drivers: %w", err)
	}
	for _, driver := range drivers {
		if err := r.checkBusy(ctx, driver, &report); err != nil {
			return report, err
		}
	}

	if report != (ReconcileReport{}) {
		r.log.Warning("reconciliation repaired drivers",
			logger.Int("marked_busy", report.MarkedBusy),
			logger.Int("released", report.Released),
			logger.Int("conflicts", report.Conflicts),
		)
	}
	return report, nil
}

// checkAssigned makes sure the driver of an ASSIGNED order is busy with it.
func (r *reconciler) checkAssigned(ctx context.Context, order *models.Order, report *ReconcileReport) error {
	if !order.HasDriver() {
		return nil
	}
	driver, err := r.stg.Driver().GetByID(ctx, *order.DriverID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			r.log.Error("assigned order references unknown driver",
				logger.String("order_id", order.ID), logger.String("driver_id", *order.DriverID))
			return nil
		}
		return fmt.Errorf("get driver: %w", err)
	}

	switch {
	case !driver.IsBusy:
		if err := r.stg.Driver().SetBusy(ctx, driver.ID, order.ID); err != nil {
			return fmt.Errorf("mark driver busy: %w", err)
		}
		report.MarkedBusy++
		r.metrics.ReconcileRepairsTotal.WithLabelValues(repairMarkBusy).Inc()
		r.log.Warning("driver marked busy by reconciler",
			logger.String("driver_id", driver.ID), logger.String("order_id", order.ID))
	case driver.CurrentOrderID == nil || *driver.CurrentOrderID != order.ID:
		// Two concurrent claims by one driver on different orders both won.
		// Both orders stay assigned; an administrator has to pick one.
		report.Conflicts++
		r.metrics.ReconcileRepairsTotal.WithLabelValues(repairConflict).Inc()
		r.log.Error("driver holds more than one assigned order",
			logger.String("driver_id", driver.ID), logger.String("order_id", order.ID))
	}
	return nil
}

// checkBusy releases a busy driver whose current order is no longer assigned to them.
func (r *reconciler) checkBusy(ctx context.Context, driver *models.Driver, report *ReconcileReport) error {
	if driver.CurrentOrderID != nil {
		order, err := r.stg.Order().GetByID(ctx, *driver.CurrentOrderID)
		switch {
		case err == nil:
			if order.Status == models.OrderStatusAssigned && order.HasDriver() && *order.DriverID == driver.ID {
				return nil
			}
		case !errors.Is(err, storage.ErrNotFound):
			return fmt.Errorf("get order: %w", err)
		}
	}

	// The list may be stale: skip drivers who moved on to another order since.
	fresh, err := r.stg.Driver().GetByID(ctx, driver.ID)
	if err != nil {
		return fmt.Errorf("reload driver: %w", err)
	}
	if !fresh.IsBusy || !sameOrder(fresh.CurrentOrderID, driver.CurrentOrderID) {
		return nil
	}

	if err := r.stg.Driver().Release(ctx, driver.ID); err != nil {
		return fmt.Errorf("release driver: %w", err)
	}
	report.Released++
	r.metrics.ReconcileRepairsTotal.WithLabelValues(repairRelease).Inc()
	r.log.Warning("driver released by reconciler", logger.String("driver_id", driver.ID))
	return nil
}

func sameOrder(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
