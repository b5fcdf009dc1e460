package memory

import (
	"context"
	"fmt"
	"time"

	"taxidispatch/pkg/models"
	"taxidispatch/storage"
)

type orderDoc = models.Order

type orderRepo struct {
	s *Store
}

func cloneOrder(o models.Order) *models.Order {
	o.DriverID = clonePtr(o.DriverID)
	o.DriverTelegramID = clonePtr(o.DriverTelegramID)
	o.Message = clonePtr(o.Message)
	o.AssignedAt = clonePtr(o.AssignedAt)
	o.CompletedAt = clonePtr(o.CompletedAt)
	o.CancelledAt = clonePtr(o.CancelledAt)
	return &o
}

func (r *orderRepo) Create(_ context.Context, order *models.Order) error {
	c := r.s.orders
	c.mu.Lock()
	defer c.mu.Unlock()

	// Orders only ever leave the active set, so a concurrent transition can
	// make this check stale in the safe direction only.
	if order.Status.IsActive() {
		for _, d := range c.docs {
			o := d.read()
			if o.ClientTelegramID == order.ClientTelegramID && o.Status.IsActive() {
				return storage.ErrActiveOrderExists
			}
		}
	}
	c.insertLocked(order.ID, *cloneOrder(*order))
	return nil
}

func (r *orderRepo) GetByID(_ context.Context, id string) (*models.Order, error) {
	d, ok := r.s.orders.get(id)
	if !ok {
		return nil, storage.ErrNotFound
	}
	return cloneOrder(d.read()), nil
}

func (r *orderRepo) GetActiveByClient(_ context.Context, clientTelegramID int64) (*models.Order, error) {
	for _, d := range r.s.orders.snapshot() {
		o := d.read()
		if o.ClientTelegramID == clientTelegramID && o.Status.IsActive() {
			return cloneOrder(o), nil
		}
	}
	return nil, storage.ErrNotFound
}

func (r *orderRepo) List(_ context.Context, filter storage.OrderFilter) ([]*models.Order, error) {
	var orders []*models.Order
	for _, d := range r.s.orders.snapshot() {
		o := d.read()
		if len(filter.Statuses) > 0 && !o.Status.In(filter.Statuses...) {
			continue
		}
		if filter.ClientTelegramID != 0 && o.ClientTelegramID != filter.ClientTelegramID {
			continue
		}
		if filter.DriverID != "" && (o.DriverID == nil || *o.DriverID != filter.DriverID) {
			continue
		}
		orders = append(orders, cloneOrder(o))
	}
	newestFirst(orders, func(o *models.Order) time.Time { return o.CreatedAt })
	if filter.Limit > 0 && len(orders) > filter.Limit {
		orders = orders[:filter.Limit]
	}
	return orders, nil
}

func (r *orderRepo) Count(_ context.Context, statuses ...models.OrderStatus) (int, error) {
	var count int
	for _, d := range r.s.orders.snapshot() {
		if len(statuses) == 0 || d.read().Status.In(statuses...) {
			count++
		}
	}
	return count, nil
}

// update runs fn on the order under its document lock. fn returns false when
// its condition does not hold, in which case nothing is written.
func (r *orderRepo) update(id string, fn func(o *models.Order) bool) (*models.Order, error) {
	d, ok := r.s.orders.get(id)
	if !ok {
		return nil, storage.ErrNotFound
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	next := cloneOrder(d.val)
	if !fn(next) {
		return nil, storage.ErrConditionFailed
	}
	d.val = *next
	return cloneOrder(d.val), nil
}

func (r *orderRepo) AttachMessage(_ context.Context, id string, handle models.MessageHandle) (*models.Order, error) {
	return r.update(id, func(o *models.Order) bool {
		o.Message = ptr(handle)
		if o.Status == models.OrderStatusNew {
			o.Status = models.OrderStatusBroadcast
		}
		return true
	})
}

func (r *orderRepo) Claim(_ context.Context, id string, a models.Assignment) (*models.Order, error) {
	return r.update(id, func(o *models.Order) bool {
		if !o.Status.In(models.ClaimableOrderStatuses...) || o.HasDriver() {
			return false
		}
		o.Status = models.OrderStatusAssigned
		o.DriverID = ptr(a.DriverID)
		o.DriverTelegramID = ptr(a.DriverTelegramID)
		o.DriverName = a.DriverName
		o.DriverPhone = a.DriverPhone
		o.DriverCar = a.DriverCar
		o.AssignedAt = ptr(a.AssignedAt)
		return true
	})
}

func (r *orderRepo) Transition(_ context.Context, id string, t storage.OrderTransition) (*models.Order, error) {
	if t.To != models.OrderStatusCompleted && t.To != models.OrderStatusCancelled {
		return nil, fmt.Errorf("unsupported order transition to %s", t.To)
	}
	return r.update(id, func(o *models.Order) bool {
		if !o.Status.In(t.From...) {
			return false
		}
		if t.DriverID != "" && (o.DriverID == nil || *o.DriverID != t.DriverID) {
			return false
		}
		o.Status = t.To
		if t.To == models.OrderStatusCompleted {
			o.CompletedAt = ptr(t.At)
		} else {
			o.CancelledAt = ptr(t.At)
		}
		return true
	})
}
