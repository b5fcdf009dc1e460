package config

import (
	"errors"
	"io/fs"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/joho/godotenv"
)

const DriversChatIDKey = "TELEGRAM_DRIVERS_CHAT_ID"

// Settings holds configuration that administrators may change while the
// process runs. Reads are lock free; writes are serialized and persisted to
// the env file before they become visible.
type Settings struct {
	driversChatID atomic.Int64
	envFile       string
	mu            sync.Mutex
}

func NewSettings(cfg Config) *Settings {
	s := &Settings{envFile: cfg.EnvFile}
	s.driversChatID.Store(cfg.DriversChatID)
	return s
}

// DriversChatID is the group orders are broadcast to; zero means not configured.
func (s *Settings) DriversChatID() int64 {
	return s.driversChatID.Load()
}

// SetDriversChatID persists id to the env file and then swaps it in.
// With no env file configured the value only lives in memory.
func (s *Settings) SetDriversChatID(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.envFile != "" {
		if err := s.persist(DriversChatIDKey, strconv.FormatInt(id, 10)); err != nil {
			return err
		}
	}
	s.driversChatID.Store(id)
	return nil
}

func (s *Settings) persist(key, value string) error {
	env, err := godotenv.Read(s.envFile)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		env = map[string]string{}
	}
	env[key] = value
	return godotenv.Write(env, s.envFile)
}
