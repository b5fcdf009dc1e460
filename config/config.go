package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cast"
)

const (
	StorageDriverPostgres = "postgres"
	StorageDriverMemory   = "memory"
)

type Config struct {
	ServiceName string
	LoggerLevel string

	HTTPPort        int
	ShutdownTimeout time.Duration

	StorageDriver string

	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	MigrationsPath   string

	TelegramBotToken string
	DriversChatID    int64
	WebAppURL        string

	AdminAPIToken string

	// EnvFile is where runtime settings are persisted.
	EnvFile string

	ReconcileSchedule string
}

func Load() Config {
	envFile := cast.ToString(getOrReturnDefault("ENV_FILE", ".env"))
	_ = godotenv.Load(envFile)

	cfg := Config{EnvFile: envFile}

	cfg.ServiceName = cast.ToString(getOrReturnDefault("SERVICE_NAME", "taxidispatch"))
	cfg.LoggerLevel = cast.ToString(getOrReturnDefault("LOGGER_LEVEL", "debug"))
	cfg.HTTPPort = cast.ToInt(getOrReturnDefault("HTTP_PORT", 8080))
	cfg.ShutdownTimeout = cast.ToDuration(getOrReturnDefault("SHUTDOWN_TIMEOUT", "10s"))

	cfg.StorageDriver = cast.ToString(getOrReturnDefault("STORAGE_DRIVER", StorageDriverPostgres))

	cfg.PostgresHost = cast.ToString(getOrReturnDefault("POSTGRES_HOST", "localhost"))
	cfg.PostgresPort = cast.ToString(getOrReturnDefault("POSTGRES_PORT", "5432"))
	cfg.PostgresUser = cast.ToString(getOrReturnDefault("POSTGRES_USER", "postgres"))
	cfg.PostgresPassword = cast.ToString(getOrReturnDefault("POSTGRES_PASSWORD", "1234"))
	cfg.PostgresDB = cast.ToString(getOrReturnDefault("POSTGRES_DB", "taxidispatch"))
	cfg.MigrationsPath = cast.ToString(getOrReturnDefault("MIGRATIONS_PATH", "migrations"))

	cfg.TelegramBotToken = cast.ToString(getOrReturnDefault("TG_BOT_TOKEN", ""))
	cfg.DriversChatID = cast.ToInt64(getOrReturnDefault(DriversChatIDKey, 0))
	cfg.WebAppURL = cast.ToString(getOrReturnDefault("WEBAPP_URL", ""))

	cfg.AdminAPIToken = cast.ToString(getOrReturnDefault("ADMIN_API_TOKEN", ""))

	// An explicitly empty RECONCILE_SCHEDULE disables the job.
	cfg.ReconcileSchedule = "@every 1m"
	if v, ok := os.LookupEnv("RECONCILE_SCHEDULE"); ok {
		cfg.ReconcileSchedule = v
	}

	return cfg
}

func getOrReturnDefault(key string, defaultValue interface{}) interface{} {
	value := os.Getenv(key)
	if value != "" {
		return value
	}
	return defaultValue
}
