package storage

import (
	"context"
	"errors"
	"time"

	"taxidispatch/pkg/models"
)

var (
	ErrNotFound = errors.New("record not found")
	// ErrConditionFailed is returned by conditional updates whose predicate did not hold.
	ErrConditionFailed = errors.New("update condition not satisfied")
	// ErrActiveOrderExists is returned when a client already holds an active order.
	ErrActiveOrderExists = errors.New("client already has an active order")
)

type IStorage interface {
	Order() IOrderStorage
	Driver() IDriverStorage
	Client() IClientStorage
	ActionLog() IActionLogStorage
	Close()
}

type OrderFilter struct {
	Statuses         []models.OrderStatus
	ClientTelegramID int64
	DriverID         string
	Limit            int
}

// OrderTransition is a conditional status change. The update applies only if
// the order is in one of From and, when DriverID is set, is assigned to that driver.
type OrderTransition struct {
	From     []models.OrderStatus
	To       models.OrderStatus
	DriverID string
	At       time.Time
}

type IOrderStorage interface {
	// Create inserts a NEW order; ErrActiveOrderExists if the client has one already.
	Create(ctx context.Context, order *models.Order) error
	GetByID(ctx context.Context, id string) (*models.Order, error)
	GetActiveByClient(ctx context.Context, clientTelegramID int64) (*models.Order, error)
	// List returns orders newest first.
	List(ctx context.Context, filter OrderFilter) ([]*models.Order, error)
	Count(ctx context.Context, statuses ...models.OrderStatus) (int, error)

	// AttachMessage stores the broadcast handle and promotes a NEW order to
	// BROADCAST. Orders in any other status keep their status.
	AttachMessage(ctx context.Context, id string, handle models.MessageHandle) (*models.Order, error)
	// Claim assigns the order to a driver if its status is claimable and no
	// driver is attached, in one atomic step. ErrConditionFailed otherwise.
	Claim(ctx context.Context, id string, a models.Assignment) (*models.Order, error)
	// Transition applies t atomically and returns the updated order.
	Transition(ctx context.Context, id string, t OrderTransition) (*models.Order, error)
}

type IDriverStorage interface {
	// GetOrCreate looks a driver up by Telegram id, inserting d if none exists.
	GetOrCreate(ctx context.Context, d *models.Driver) (driver *models.Driver, created bool, err error)
	GetByID(ctx context.Context, id string) (*models.Driver, error)
	GetByTelegramID(ctx context.Context, telegramID int64) (*models.Driver, error)
	List(ctx context.Context, filter models.DriverFilter) ([]*models.Driver, error)
	Count(ctx context.Context, filter models.DriverFilter) (int, error)

	// Update applies an administrative patch.
	Update(ctx context.Context, id string, patch models.DriverPatch) (*models.Driver, error)
	// RestartRegistration puts an unregistered driver without a step back on CAR_BRAND.
	// It reports whether anything changed.
	RestartRegistration(ctx context.Context, id string) (bool, error)
	// RecordStep stores value for step if the driver is still on step and
	// advances to the following step, or marks the driver registered after the last one.
	RecordStep(ctx context.Context, id string, step models.RegistrationStep, value string) (*models.Driver, error)
	// MarkRegistered flips an unregistered driver with all car fields to
	// registered. ErrConditionFailed if that does not hold.
	MarkRegistered(ctx context.Context, id string) (*models.Driver, error)

	SetBusy(ctx context.Context, id, orderID string) error
	Release(ctx context.Context, id string) error
}

type IClientStorage interface {
	// Upsert creates the client or refreshes its display fields.
	Upsert(ctx context.Context, c *models.Client) (*models.Client, error)
	// UpdatePhone sets the phone, creating the client if it does not exist.
	UpdatePhone(ctx context.Context, c *models.Client) (*models.Client, error)
	GetByTelegramID(ctx context.Context, telegramID int64) (*models.Client, error)
	List(ctx context.Context, limit int) ([]*models.Client, error)
	Count(ctx context.Context) (int, error)
}

type IActionLogStorage interface {
	Insert(ctx context.Context, entry *models.ActionLog) error
	// List returns entries newest first.
	List(ctx context.Context, limit int) ([]*models.ActionLog, error)
}
