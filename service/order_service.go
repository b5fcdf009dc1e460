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
	historyLimit           = 50
	defaultAdminListLimit  = 100
	detailsByAdministrator = "by administrator"
)

type CreateOrderRequest struct {
	AddressFrom string `json:"address_from"`
	AddressTo   string `json:"address_to"`
	Comment     string `json:"comment"`
}

type OrderService interface {
	// Create places a NEW order for the client and schedules its broadcast.
	Create(ctx context.Context, clientTelegramID int64, req CreateOrderRequest) (*models.Order, error)
	// GetActive returns nil when the client has no active order.
	GetActive(ctx context.Context, clientTelegramID int64) (*models.Order, error)
	History(ctx context.Context, clientTelegramID int64) ([]*models.Order, error)
	CancelByClient(ctx context.Context, orderID string, clientTelegramID int64) (*models.Order, error)
	CompleteByDriver(ctx context.Context, orderID string, driverTelegramID int64) (*models.Order, error)

	AdminAssign(ctx context.Context, orderID, driverID, adminID string) (*models.Order, error)
	AdminCancel(ctx context.Context, orderID, adminID string) (*models.Order, error)
	AdminComplete(ctx context.Context, orderID, adminID string) (*models.Order, error)
	List(ctx context.Context, status *models.OrderStatus, limit int) ([]*models.Order, error)
	Get(ctx context.Context, id string) (*models.Order, error)
}

type orderService struct {
	*deps
}

func NewOrderService(d *deps) OrderService {
	return &orderService{deps: d}
}

func (s *orderService) Create(ctx context.Context, clientTelegramID int64, req CreateOrderRequest) (*models.Order, error) {
	client, err := s.stg.Client().GetByTelegramID(ctx, clientTelegramID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, errs.NewNotFoundError("client", clientTelegramID)
		}
		return nil, fmt.Errorf("get client: %w", err)
	}
	if !client.HasPhone() {
		return nil, errs.NewValidationErrorWithCause("phone", "phone number is required", ErrPhoneRequired)
	}

	order, err := models.NewOrder(client, req.AddressFrom, req.AddressTo, req.Comment)
	if err != nil {
		return nil, err
	}

	if err := s.stg.Order().Create(ctx, order); err != nil {
		if errors.Is(err, storage.ErrActiveOrderExists) {
			return nil, errs.NewConflictError("order", "client already has an active order", ErrActiveOrderExists)
		}
		return nil, fmt.Errorf("create order: %w", err)
	}

	s.metrics.TransitionsTotal.WithLabelValues(string(models.OrderStatusNew)).Inc()
	s.audit.record(ctx, orderEntry(models.ActionOrderCreated, order))
	s.log.Info("order created", logger.String("order_id", order.ID), logger.Int64("client_telegram_id", clientTelegramID))

	created := *order
	s.tasks.Go("broadcast order", func(ctx context.Context) error {
		return s.broadcast(ctx, &created)
	})
	return order, nil
}

// broadcast publishes the order to the drivers chat and promotes it to
// BROADCAST. The promotion only applies to an order that is still NEW; if it
// was cancelled or claimed meanwhile the fresh message is edited to match.
func (s *orderService) broadcast(ctx context.Context, order *models.Order) error {
	chatID := s.settings.DriversChatID()
	if chatID == 0 {
		s.log.Warning("drivers chat not configured, order stays NEW", logger.String("order_id", order.ID))
		return nil
	}

	handle, ok := s.notify.send(ctx, chatID, broadcastText(order), acceptButton(order))
	if !ok {
		return nil
	}

	updated, err := s.stg.Order().AttachMessage(ctx, order.ID, handle)
	if err != nil {
		return fmt.Errorf("attach broadcast message: %w", err)
	}

	switch updated.Status {
	case models.OrderStatusBroadcast:
		s.metrics.TransitionsTotal.WithLabelValues(string(models.OrderStatusBroadcast)).Inc()
		s.audit.record(ctx, orderEntry(models.ActionOrderBroadcast, updated))
		s.log.Info("order broadcast", logger.String("order_id", order.ID), logger.Int64("chat_id", chatID))
	case models.OrderStatusCancelled:
		s.notify.edit(ctx, &handle, cancelledByClientText(updated))
	case models.OrderStatusAssigned, models.OrderStatusCompleted:
		s.notify.edit(ctx, &handle, takenText(updated))
	}
	return nil
}

func (s *orderService) GetActive(ctx context.Context, clientTelegramID int64) (*models.Order, error) {
	order, err := s.stg.Order().GetActiveByClient(ctx, clientTelegramID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get active order: %w", err)
	}
	return order, nil
}

func (s *orderService) History(ctx context.Context, clientTelegramID int64) ([]*models.Order, error) {
	return s.stg.Order().List(ctx, storage.OrderFilter{ClientTelegramID: clientTelegramID, Limit: historyLimit})
}

func (s *orderService) CancelByClient(ctx context.Context, orderID string, clientTelegramID int64) (*models.Order, error) {
	order, err := s.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.ClientTelegramID != clientTelegramID {
		return nil, errs.NewNotFoundError("order", orderID)
	}
	if !order.Status.In(models.ClaimableOrderStatuses...) {
		return nil, invalidOrderState(order, "cancel")
	}

	cancelled, err := s.transition(ctx, orderID, "cancel", storage.OrderTransition{
		From: models.ClaimableOrderStatuses,
		To:   models.OrderStatusCancelled,
	})
	if err != nil {
		return nil, err
	}

	entry := orderEntry(models.ActionOrderCancelled, cancelled)
	entry.Details = "cancelled by client"
	s.audit.record(ctx, entry)
	s.log.Info("order cancelled by client", logger.String("order_id", orderID))

	s.tasks.Go("notify client cancel", func(ctx context.Context) error {
		s.notify.edit(ctx, cancelled.Message, cancelledByClientText(cancelled))
		return nil
	})
	return cancelled, nil
}

func (s *orderService) CompleteByDriver(ctx context.Context, orderID string, driverTelegramID int64) (*models.Order, error) {
	driver, err := s.stg.Driver().GetByTelegramID(ctx, driverTelegramID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, errs.NewNotFoundError("driver", driverTelegramID)
		}
		return nil, fmt.Errorf("get driver: %w", err)
	}

	order, err := s.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status != models.OrderStatusAssigned {
		return nil, invalidOrderState(order, "complete")
	}
	if !order.HasDriver() || *order.DriverID != driver.ID {
		return nil, errs.NewInvalidStateError("order", orderID, string(order.Status), "complete", ErrNotAssignedDriver)
	}

	completed, err := s.transition(ctx, orderID, "complete", storage.OrderTransition{
		From:     []models.OrderStatus{models.OrderStatusAssigned},
		To:       models.OrderStatusCompleted,
		DriverID: driver.ID,
	})
	if err != nil {
		return nil, err
	}
	s.release(ctx, completed)

	s.audit.record(ctx, orderEntry(models.ActionOrderCompleted, completed))
	s.log.Info("order completed", logger.String("order_id", orderID), logger.String("driver_id", driver.ID))

	s.tasks.Go("notify order completed", func(ctx context.Context) error {
		s.notify.send(ctx, completed.ClientTelegramID, textTripCompleted)
		s.notify.send(ctx, driver.TelegramID, driverCompletedText(completed))
		return nil
	})
	return completed, nil
}

func (s *orderService) AdminAssign(ctx context.Context, orderID, driverID, adminID string) (*models.Order, error) {
	order, err := s.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status.IsTerminal() {
		return nil, invalidOrderState(order, "assign")
	}
	if order.HasDriver() {
		return nil, errs.NewConflictError("order", "order already has a driver", ErrOrderTaken)
	}

	driver, err := s.stg.Driver().GetByID(ctx, driverID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, errs.NewNotFoundError("driver", driverID)
		}
		return nil, fmt.Errorf("get driver: %w", err)
	}
	if err := checkAvailable(driver); err != nil {
		return nil, err
	}

	assigned, err := claim(ctx, s.deps, orderID, driver)
	if err != nil {
		return nil, err
	}

	entry := orderEntry(models.ActionOrderAssigned, assigned)
	entry.AdminID = adminID
	entry.Details = "assigned " + detailsByAdministrator
	s.audit.record(ctx, entry)
	s.log.Info("order assigned by administrator", logger.String("order_id", orderID), logger.String("driver_id", driverID))

	fanOutAssignment(s.deps, assigned, driver)
	return assigned, nil
}

func (s *orderService) AdminCancel(ctx context.Context, orderID, adminID string) (*models.Order, error) {
	order, err := s.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !order.Status.IsActive() {
		return nil, invalidOrderState(order, "cancel")
	}

	cancelled, err := s.transition(ctx, orderID, "cancel", storage.OrderTransition{
		From: models.ActiveOrderStatuses,
		To:   models.OrderStatusCancelled,
	})
	if err != nil {
		return nil, err
	}
	if cancelled.HasDriver() {
		s.release(ctx, cancelled)
	}

	entry := orderEntry(models.ActionOrderCancelled, cancelled)
	entry.AdminID = adminID
	entry.Details = "cancelled " + detailsByAdministrator
	s.audit.record(ctx, entry)
	s.log.Info("order cancelled by administrator", logger.String("order_id", orderID))

	s.tasks.Go("notify admin cancel", func(ctx context.Context) error {
		s.notify.send(ctx, cancelled.ClientTelegramID, textCancelledByAdmin)
		s.notify.edit(ctx, cancelled.Message, cancelledByAdminText(cancelled))
		if cancelled.DriverTelegramID != nil {
			s.notify.send(ctx, *cancelled.DriverTelegramID, driverCancelledText(cancelled))
		}
		return nil
	})
	return cancelled, nil
}

func (s *orderService) AdminComplete(ctx context.Context, orderID, adminID string) (*models.Order, error) {
	order, err := s.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status != models.OrderStatusAssigned {
		return nil, invalidOrderState(order, "complete")
	}

	completed, err := s.transition(ctx, orderID, "complete", storage.OrderTransition{
		From: []models.OrderStatus{models.OrderStatusAssigned},
		To:   models.OrderStatusCompleted,
	})
	if err != nil {
		return nil, err
	}
	s.release(ctx, completed)

	entry := orderEntry(models.ActionOrderCompleted, completed)
	entry.AdminID = adminID
	entry.Details = "completed " + detailsByAdministrator
	s.audit.record(ctx, entry)
	s.log.Info("order completed by administrator", logger.String("order_id", orderID))

	s.tasks.Go("notify admin complete", func(ctx context.Context) error {
		s.notify.send(ctx, completed.ClientTelegramID, textTripCompleted)
		if completed.DriverTelegramID != nil {
			s.notify.send(ctx, *completed.DriverTelegramID, driverCompletedText(completed))
		}
		return nil
	})
	return completed, nil
}

func (s *orderService) List(ctx context.Context, status *models.OrderStatus, limit int) ([]*models.Order, error) {
	if limit <= 0 {
		limit = defaultAdminListLimit
	}
	filter := storage.OrderFilter{Limit: limit}
	if status != nil {
		filter.Statuses = []models.OrderStatus{*status}
	}
	return s.stg.Order().List(ctx, filter)
}

func (s *orderService) Get(ctx context.Context, id string) (*models.Order, error) {
	order, err := s.stg.Order().GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, errs.NewNotFoundError("order", id)
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	return order, nil
}

// transition applies t and translates a lost race into an InvalidStateError
// carrying the status the order ended up in.
func (s *orderService) transition(ctx context.Context, orderID, action string, t storage.OrderTransition) (*models.Order, error) {
	t.At = time.Now().UTC()
	updated, err := s.stg.Order().Transition(ctx, orderID, t)
	if err == nil {
		s.metrics.TransitionsTotal.WithLabelValues(string(t.To)).Inc()
		return updated, nil
	}
	if !errors.Is(err, storage.ErrConditionFailed) {
		return nil, fmt.Errorf("%s order: %w", action, err)
	}

	current, getErr := s.Get(ctx, orderID)
	if getErr != nil {
		return nil, getErr
	}
	if t.DriverID != "" && current.Status == models.OrderStatusAssigned {
		return nil, errs.NewInvalidStateError("order", orderID, string(current.Status), action, ErrNotAssignedDriver)
	}
	return nil, invalidOrderState(current, action)
}

// release frees the order's driver. The order transition has already
// committed, so a failure here is a partial failure rather than an error.
func (s *orderService) release(ctx context.Context, order *models.Order) {
	if !order.HasDriver() {
		return
	}
	if err := s.stg.Driver().Release(ctx, *order.DriverID); err != nil {
		s.partialFailure("release", order.ID, *order.DriverID, err)
	}
}

func invalidOrderState(o *models.Order, action string) error {
	return errs.NewInvalidStateError("order", o.ID, string(o.Status), action, nil)
}
