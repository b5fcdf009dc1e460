package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"taxidispatch/pkg/logger"
	"taxidispatch/pkg/models"
	"taxidispatch/storage"
)

const orderColumns = `id, client_id, client_telegram_id, client_phone, address_from, address_to, comment, status,
	driver_id, driver_telegram_id, driver_name, driver_phone, driver_car, message_chat_id, message_id,
	created_at, assigned_at, completed_at, cancelled_at`

type orderRepo struct {
	db  *pgxpool.Pool
	log logger.ILogger
}

func NewOrderRepo(db *pgxpool.Pool, log logger.ILogger) storage.IOrderStorage {
	return &orderRepo{db: db, log: log}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanOrder(row scanner) (*models.Order, error) {
	var (
		o         models.Order
		chatID    *int64
		messageID *int
	)
	err := row.Scan(
		&o.ID, &o.ClientID, &o.ClientTelegramID, &o.ClientPhone, &o.AddressFrom, &o.AddressTo, &o.Comment, &o.Status,
		&o.DriverID, &o.DriverTelegramID, &o.DriverName, &o.DriverPhone, &o.DriverCar, &chatID, &messageID,
		&o.CreatedAt, &o.AssignedAt, &o.CompletedAt, &o.CancelledAt,
	)
	if err != nil {
		return nil, err
	}
	if chatID != nil && messageID != nil {
		o.Message = &models.MessageHandle{ChatID: *chatID, MessageID: *messageID}
	}
	return &o, nil
}

func (r *orderRepo) Create(ctx context.Context, order *models.Order) error {
	query := `
		INSERT INTO orders (id, client_id, client_telegram_id, client_phone, address_from, address_to, comment, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.db.Exec(ctx, query,
		order.ID,
		order.ClientID,
		order.ClientTelegramID,
		order.ClientPhone,
		order.AddressFrom,
		order.AddressTo,
		order.Comment,
		order.Status,
		order.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrActiveOrderExists
		}
		r.log.Error("failed to create order", logger.Error(err))
		return err
	}
	return nil
}

func (r *orderRepo) GetByID(ctx context.Context, id string) (*models.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	order, err := scanOrder(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		r.log.Error("failed to get order by id", logger.String("id", id), logger.Error(err))
		return nil, err
	}
	return order, nil
}

func (r *orderRepo) GetActiveByClient(ctx context.Context, clientTelegramID int64) (*models.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE client_telegram_id = $1 AND status = ANY($2) LIMIT 1`
	order, err := scanOrder(r.db.QueryRow(ctx, query, clientTelegramID, statusStrings(models.ActiveOrderStatuses)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		r.log.Error("failed to get active order", logger.Int64("client_telegram_id", clientTelegramID), logger.Error(err))
		return nil, err
	}
	return order, nil
}

func (r *orderRepo) List(ctx context.Context, filter storage.OrderFilter) ([]*models.Order, error) {
	var (
		conds []string
		args  []any
	)
	if len(filter.Statuses) > 0 {
		args = append(args, statusStrings(filter.Statuses))
		conds = append(conds, fmt.Sprintf("status = ANY($%d)", len(args)))
	}
	if filter.ClientTelegramID != 0 {
		args = append(args, filter.ClientTelegramID)
		conds = append(conds, fmt.Sprintf("client_telegram_id = $%d", len(args)))
	}
	if filter.DriverID != "" {
		args = append(args, filter.DriverID)
		conds = append(conds, fmt.Sprintf("driver_id = $%d", len(args)))
	}

	query := `SELECT ` + orderColumns + ` FROM orders`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	query += ` ORDER BY created_at DESC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		r.log.Error("failed to list orders", logger.Error(err))
		return nil, err
	}
	defer rows.Close()

	var orders []*models.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

func (r *orderRepo) Count(ctx context.Context, statuses ...models.OrderStatus) (int, error) {
	var count int
	if len(statuses) == 0 {
		err := r.db.QueryRow(ctx, "SELECT count(*) FROM orders").Scan(&count)
		return count, err
	}
	err := r.db.QueryRow(ctx, "SELECT count(*) FROM orders WHERE status = ANY($1)", statusStrings(statuses)).Scan(&count)
	return count, err
}

func (r *orderRepo) AttachMessage(ctx context.Context, id string, handle models.MessageHandle) (*models.Order, error) {
	query := `
		UPDATE orders
		SET message_chat_id = $2,
		    message_id = $3,
		    status = CASE WHEN status = $4 THEN $5 ELSE status END
		WHERE id = $1
		RETURNING ` + orderColumns
	order, err := scanOrder(r.db.QueryRow(ctx, query, id, handle.ChatID, handle.MessageID,
		string(models.OrderStatusNew), string(models.OrderStatusBroadcast)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		r.log.Error("failed to attach broadcast message", logger.String("id", id), logger.Error(err))
		return nil, err
	}
	return order, nil
}

func (r *orderRepo) Claim(ctx context.Context, id string, a models.Assignment) (*models.Order, error) {
	query := `
		UPDATE orders
		SET status = $2,
		    driver_id = $3,
		    driver_telegram_id = $4,
		    driver_name = $5,
		    driver_phone = $6,
		    driver_car = $7,
		    assigned_at = $8
		WHERE id = $1 AND status = ANY($9) AND driver_id IS NULL
		RETURNING ` + orderColumns
	order, err := scanOrder(r.db.QueryRow(ctx, query,
		id,
		string(models.OrderStatusAssigned),
		a.DriverID,
		a.DriverTelegramID,
		a.DriverName,
		a.DriverPhone,
		a.DriverCar,
		a.AssignedAt,
		statusStrings(models.ClaimableOrderStatuses),
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrConditionFailed
		}
		r.log.Error("failed to claim order", logger.String("id", id), logger.Error(err))
		return nil, err
	}
	return order, nil
}

func (r *orderRepo) Transition(ctx context.Context, id string, t storage.OrderTransition) (*models.Order, error) {
	var column string
	switch t.To {
	case models.OrderStatusCompleted:
		column = "completed_at"
	case models.OrderStatusCancelled:
		column = "cancelled_at"
	default:
		return nil, fmt.Errorf("unsupported order transition to %s", t.To)
	}

	query := fmt.Sprintf(`
		UPDATE orders
		SET status = $2, %s = $3
		WHERE id = $1 AND status = ANY($4) AND ($5::text = '' OR driver_id = $5::text)
		RETURNING `+orderColumns, column)
	order, err := scanOrder(r.db.QueryRow(ctx, query, id, string(t.To), t.At, statusStrings(t.From), t.DriverID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrConditionFailed
		}
		r.log.Error("failed to transition order", logger.String("id", id), logger.String("to", string(t.To)), logger.Error(err))
		return nil, err
	}
	return order, nil
}
