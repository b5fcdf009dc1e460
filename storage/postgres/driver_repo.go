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

const driverColumns = `id, telegram_id, username, first_name, last_name, phone, car_brand, car_model, car_color, car_plate,
	is_registered, registration_step, status, is_busy, current_order_id, created_at`

type driverRepo struct {
	db  *pgxpool.Pool
	log logger.ILogger
}

func NewDriverRepo(db *pgxpool.Pool, log logger.ILogger) storage.IDriverStorage {
	return &driverRepo{db: db, log: log}
}

func scanDriver(row scanner) (*models.Driver, error) {
	var d models.Driver
	err := row.Scan(
		&d.ID, &d.TelegramID, &d.Username, &d.FirstName, &d.LastName, &d.Phone,
		&d.CarBrand, &d.CarModel, &d.CarColor, &d.CarPlate,
		&d.IsRegistered, &d.RegistrationStep, &d.Status, &d.IsBusy, &d.CurrentOrderID, &d.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *driverRepo) one(ctx context.Context, op, query string, args ...any) (*models.Driver, error) {
	d, err := scanDriver(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		r.log.Error("failed to "+op, logger.Error(err))
		return nil, err
	}
	return d, nil
}

func (r *driverRepo) GetOrCreate(ctx context.Context, d *models.Driver) (*models.Driver, bool, error) {
	query := `
		INSERT INTO drivers (id, telegram_id, username, first_name, last_name, registration_step, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (telegram_id) DO NOTHING
		RETURNING ` + driverColumns
	created, err := scanDriver(r.db.QueryRow(ctx, query,
		d.ID, d.TelegramID, d.Username, d.FirstName, d.LastName, d.RegistrationStep, d.Status, d.CreatedAt,
	))
	if err == nil {
		return created, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		r.log.Error("failed to get or create driver", logger.Int64("telegram_id", d.TelegramID), logger.Error(err))
		return nil, false, err
	}

	existing, err := r.GetByTelegramID(ctx, d.TelegramID)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

func (r *driverRepo) GetByID(ctx context.Context, id string) (*models.Driver, error) {
	return r.one(ctx, "get driver by id", `SELECT `+driverColumns+` FROM drivers WHERE id = $1`, id)
}

func (r *driverRepo) GetByTelegramID(ctx context.Context, telegramID int64) (*models.Driver, error) {
	return r.one(ctx, "get driver by telegram id", `SELECT `+driverColumns+` FROM drivers WHERE telegram_id = $1`, telegramID)
}

func driverWhere(filter models.DriverFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if filter.Status != nil {
		args = append(args, string(*filter.Status))
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.Busy != nil {
		args = append(args, *filter.Busy)
		conds = append(conds, fmt.Sprintf("is_busy = $%d", len(args)))
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func (r *driverRepo) List(ctx context.Context, filter models.DriverFilter) ([]*models.Driver, error) {
	where, args := driverWhere(filter)
	rows, err := r.db.Query(ctx, `SELECT `+driverColumns+` FROM drivers`+where+` ORDER BY created_at DESC`, args...)
	if err != nil {
		r.log.Error("failed to list drivers", logger.Error(err))
		return nil, err
	}
	defer rows.Close()

	var drivers []*models.Driver
	for rows.Next() {
		d, err := scanDriver(rows)
		if err != nil {
			return nil, err
		}
		drivers = append(drivers, d)
	}
	return drivers, rows.Err()
}

func (r *driverRepo) Count(ctx context.Context, filter models.DriverFilter) (int, error) {
	where, args := driverWhere(filter)
	var count int
	err := r.db.QueryRow(ctx, "SELECT count(*) FROM drivers"+where, args...).Scan(&count)
	return count, err
}

func (r *driverRepo) Update(ctx context.Context, id string, patch models.DriverPatch) (*models.Driver, error) {
	var (
		sets []string
		args = []any{id}
	)
	set := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	// Applying the patch to a zero driver gives the normalized values.
	var normalized models.Driver
	patch.Apply(&normalized)
	if patch.Status != nil {
		set("status", string(normalized.Status))
	}
	if patch.Phone != nil {
		set("phone", normalized.Phone)
	}
	if patch.CarBrand != nil {
		set("car_brand", normalized.CarBrand)
	}
	if patch.CarModel != nil {
		set("car_model", normalized.CarModel)
	}
	if patch.CarColor != nil {
		set("car_color", normalized.CarColor)
	}
	if patch.CarPlate != nil {
		set("car_plate", normalized.CarPlate)
	}
	if len(sets) == 0 {
		return r.GetByID(ctx, id)
	}

	query := `UPDATE drivers SET ` + strings.Join(sets, ", ") + ` WHERE id = $1 RETURNING ` + driverColumns
	return r.one(ctx, "update driver", query, args...)
}

func (r *driverRepo) RestartRegistration(ctx context.Context, id string) (bool, error) {
	res, err := r.db.Exec(ctx,
		`UPDATE drivers SET registration_step = $2 WHERE id = $1 AND is_registered = FALSE AND registration_step IS NULL`,
		id, string(models.StepCarBrand))
	if err != nil {
		r.log.Error("failed to restart registration", logger.String("id", id), logger.Error(err))
		return false, err
	}
	return res.RowsAffected() > 0, nil
}

func stepColumn(step models.RegistrationStep) (string, error) {
	switch step {
	case models.StepCarBrand, models.StepCarModel, models.StepCarColor, models.StepCarPlate:
		return string(step), nil
	}
	return "", fmt.Errorf("unknown registration step %q", step)
}

func (r *driverRepo) RecordStep(ctx context.Context, id string, step models.RegistrationStep, value string) (*models.Driver, error) {
	column, err := stepColumn(step)
	if err != nil {
		return nil, err
	}

	var query string
	args := []any{id, string(step), step.Normalize(value)}
	if next, ok := step.Next(); ok {
		args = append(args, string(next))
		query = fmt.Sprintf(`UPDATE drivers SET %s = $3, registration_step = $4
			WHERE id = $1 AND registration_step = $2 RETURNING `+driverColumns, column)
	} else {
		query = fmt.Sprintf(`UPDATE drivers SET %s = $3, registration_step = NULL, is_registered = TRUE
			WHERE id = $1 AND registration_step = $2 RETURNING `+driverColumns, column)
	}

	d, err := scanDriver(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrConditionFailed
		}
		r.log.Error("failed to record registration step", logger.String("id", id), logger.Error(err))
		return nil, err
	}
	return d, nil
}

func (r *driverRepo) MarkRegistered(ctx context.Context, id string) (*models.Driver, error) {
	query := `
		UPDATE drivers SET is_registered = TRUE, registration_step = NULL
		WHERE id = $1 AND is_registered = FALSE
		  AND car_brand <> '' AND car_model <> '' AND car_color <> '' AND car_plate <> ''
		RETURNING ` + driverColumns
	d, err := scanDriver(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrConditionFailed
		}
		r.log.Error("failed to mark driver registered", logger.String("id", id), logger.Error(err))
		return nil, err
	}
	return d, nil
}

func (r *driverRepo) SetBusy(ctx context.Context, id, orderID string) error {
	res, err := r.db.Exec(ctx, "UPDATE drivers SET is_busy = TRUE, current_order_id = $2 WHERE id = $1", id, orderID)
	if err != nil {
		return err
	}
	if res.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (r *driverRepo) Release(ctx context.Context, id string) error {
	res, err := r.db.Exec(ctx, "UPDATE drivers SET is_busy = FALSE, current_order_id = NULL WHERE id = $1", id)
	if err != nil {
		return err
	}
	if res.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}
