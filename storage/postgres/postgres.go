package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"taxidispatch/config"
	"taxidispatch/pkg/logger"
	"taxidispatch/storage"
)

const uniqueViolation = "23505"

type Store struct {
	pool *pgxpool.Pool
	log  logger.ILogger
}

func New(ctx context.Context, cfg config.Config, log logger.ILogger) (*Store, error) {
	url := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		cfg.PostgresUser,
		cfg.PostgresPassword,
		cfg.PostgresHost,
		cfg.PostgresPort,
		cfg.PostgresDB,
	)
	return Connect(ctx, url, cfg.MigrationsPath, log)
}

// Connect opens a pool on url and applies the migrations found in migrationsPath.
func Connect(ctx context.Context, url, migrationsPath string, log logger.ILogger) (*Store, error) {
	// 🔹 Connection pool
	poolConfig, err := pgxpool.ParseConfig(url)
	if err != nil {
		log.Error("error while parsing Postgres config", logger.Error(err))
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		log.Error("failed to connect Postgres", logger.Error(err))
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		log.Error("failed to ping Postgres", logger.Error(err))
		return nil, err
	}

	// 🔹 Migrations
	if err := migrateUp(url, migrationsPath, log); err != nil {
		pool.Close()
		return nil, err
	}

	log.Info("Postgres connected")

	return &Store{
		pool: pool,
		log:  log,
	}, nil
}

func migrateUp(url, migrationsPath string, log logger.ILogger) error {
	mPath, err := filepath.Abs(migrationsPath)
	if err != nil {
		return err
	}
	if _, err := os.Stat(mPath); err != nil {
		log.Error("migrations directory not found", logger.String("path", mPath), logger.Error(err))
		return err
	}

	m, err := migrate.New("file://"+filepath.ToSlash(mPath), url)
	if err != nil {
		log.Error("migration init error", logger.Error(err))
		return err
	}
	defer m.Close()

	if err = m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			log.Info("no migrations to apply")
			return nil
		}
		log.Error("migration up error", logger.Error(err))
		return err
	}
	return nil
}

func (s *Store) Close() {
	s.pool.Close()
}

func (s *Store) GetPool() *pgxpool.Pool {
	return s.pool
}

func (s *Store) Order() storage.IOrderStorage         { return NewOrderRepo(s.pool, s.log) }
func (s *Store) Driver() storage.IDriverStorage       { return NewDriverRepo(s.pool, s.log) }
func (s *Store) Client() storage.IClientStorage       { return NewClientRepo(s.pool, s.log) }
func (s *Store) ActionLog() storage.IActionLogStorage { return NewActionLogRepo(s.pool, s.log) }

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func statusStrings[T ~string](statuses []T) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}
