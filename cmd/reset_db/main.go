package main

import (
	"context"
	"os"

	"taxidispatch/config"
	"taxidispatch/pkg/logger"
	"taxidispatch/storage/postgres"
)

// reset_db wipes every dispatch table. The schema itself is left in place.
func main() {
	cfg := config.Load()
	log := logger.New(cfg.ServiceName, cfg.LoggerLevel)

	pg, err := postgres.New(context.Background(), cfg, log)
	if err != nil {
		log.Error("failed to connect to postgres", logger.Error(err))
		os.Exit(1)
	}
	defer pg.Close()

	_, err = pg.GetPool().Exec(context.Background(), "TRUNCATE TABLE action_logs, orders, drivers, clients")
	if err != nil {
		log.Error("failed to truncate tables", logger.Error(err))
		return
	}
	log.Info("truncated action_logs, orders, drivers and clients")
}
