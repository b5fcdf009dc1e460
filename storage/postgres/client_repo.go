package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"taxidispatch/pkg/logger"
	"taxidispatch/pkg/models"
	"taxidispatch/storage"
)

const clientColumns = `id, telegram_id, username, first_name, last_name, phone, created_at`

type clientRepo struct {
	db  *pgxpool.Pool
	log logger.ILogger
}

func NewClientRepo(db *pgxpool.Pool, log logger.ILogger) storage.IClientStorage {
	return &clientRepo{db: db, log: log}
}

func scanClient(row scanner) (*models.Client, error) {
	var c models.Client
	if err := row.Scan(&c.ID, &c.TelegramID, &c.Username, &c.FirstName, &c.LastName, &c.Phone, &c.CreatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *clientRepo) Upsert(ctx context.Context, c *models.Client) (*models.Client, error) {
	query := `
		INSERT INTO clients (id, telegram_id, username, first_name, last_name, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (telegram_id) DO UPDATE
		SET username = COALESCE(NULLIF(EXCLUDED.username, ''), clients.username),
		    first_name = COALESCE(NULLIF(EXCLUDED.first_name, ''), clients.first_name),
		    last_name = COALESCE(NULLIF(EXCLUDED.last_name, ''), clients.last_name)
		RETURNING ` + clientColumns
	client, err := scanClient(r.db.QueryRow(ctx, query, c.ID, c.TelegramID, c.Username, c.FirstName, c.LastName, c.CreatedAt))
	if err != nil {
		r.log.Error("failed to upsert client", logger.Int64("telegram_id", c.TelegramID), logger.Error(err))
		return nil, err
	}
	return client, nil
}

func (r *clientRepo) UpdatePhone(ctx context.Context, c *models.Client) (*models.Client, error) {
	query := `
		INSERT INTO clients (id, telegram_id, username, first_name, last_name, phone, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (telegram_id) DO UPDATE
		SET phone = EXCLUDED.phone
		RETURNING ` + clientColumns
	client, err := scanClient(r.db.QueryRow(ctx, query, c.ID, c.TelegramID, c.Username, c.FirstName, c.LastName, c.Phone, c.CreatedAt))
	if err != nil {
		r.log.Error("failed to update client phone", logger.Int64("telegram_id", c.TelegramID), logger.Error(err))
		return nil, err
	}
	return client, nil
}

func (r *clientRepo) GetByTelegramID(ctx context.Context, telegramID int64) (*models.Client, error) {
	query := `SELECT ` + clientColumns + ` FROM clients WHERE telegram_id = $1`
	client, err := scanClient(r.db.QueryRow(ctx, query, telegramID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		r.log.Error("failed to get client", logger.Int64("telegram_id", telegramID), logger.Error(err))
		return nil, err
	}
	return client, nil
}

func (r *clientRepo) List(ctx context.Context, limit int) ([]*models.Client, error) {
	rows, err := r.db.Query(ctx, `SELECT `+clientColumns+` FROM clients ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		r.log.Error("failed to list clients", logger.Error(err))
		return nil, err
	}
	defer rows.Close()

	var clients []*models.Client
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, err
		}
		clients = append(clients, c)
	}
	return clients, rows.Err()
}

func (r *clientRepo) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, "SELECT count(*) FROM clients").Scan(&count)
	return count, err
}
