package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"taxidispatch/pkg/logger"
	"taxidispatch/pkg/models"
	"taxidispatch/storage"
)

type actionLogRepo struct {
	db  *pgxpool.Pool
	log logger.ILogger
}

func NewActionLogRepo(db *pgxpool.Pool, log logger.ILogger) storage.IActionLogStorage {
	return &actionLogRepo{db: db, log: log}
}

func (r *actionLogRepo) Insert(ctx context.Context, e *models.ActionLog) error {
	query := `
		INSERT INTO action_logs (id, action_type, order_id, driver_id, client_id, admin_id, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.db.Exec(ctx, query, e.ID, string(e.Action), e.OrderID, e.DriverID, e.ClientID, e.AdminID, e.Details, e.CreatedAt)
	if err != nil {
		r.log.Error("failed to insert action log", logger.String("action", string(e.Action)), logger.Error(err))
		return err
	}
	return nil
}

func (r *actionLogRepo) List(ctx context.Context, limit int) ([]*models.ActionLog, error) {
	query := `
		SELECT id, action_type, order_id, driver_id, client_id, admin_id, details, created_at
		FROM action_logs
		ORDER BY created_at DESC
		LIMIT $1
	`
	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		r.log.Error("failed to list action logs", logger.Error(err))
		return nil, err
	}
	defer rows.Close()

	var entries []*models.ActionLog
	for rows.Next() {
		var e models.ActionLog
		if err := rows.Scan(&e.ID, &e.Action, &e.OrderID, &e.DriverID, &e.ClientID, &e.AdminID, &e.Details, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}
