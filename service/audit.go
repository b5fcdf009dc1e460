package service

import (
	"context"

	"taxidispatch/pkg/logger"
	"taxidispatch/pkg/models"
	"taxidispatch/storage"
)

const defaultLogsLimit = 100

type ActionLogService interface {
	List(ctx context.Context, limit int) ([]*models.ActionLog, error)
}

type auditLog struct {
	stg storage.IActionLogStorage
	log logger.ILogger
}

func newAuditLog(stg storage.IStorage, log logger.ILogger) *auditLog {
	return &auditLog{stg: stg.ActionLog(), log: log}
}

// record appends an entry. A failed write is logged and does not undo the
// transition that produced it.
func (a *auditLog) record(ctx context.Context, entry *models.ActionLog) {
	if err := a.stg.Insert(ctx, entry); err != nil {
		a.log.Error("failed to write action log",
			logger.String("action", string(entry.Action)),
			logger.String("order_id", entry.OrderID),
			logger.String("driver_id", entry.DriverID),
			logger.Error(err),
		)
	}
}

func (a *auditLog) List(ctx context.Context, limit int) ([]*models.ActionLog, error) {
	if limit <= 0 {
		limit = defaultLogsLimit
	}
	return a.stg.List(ctx, limit)
}

func orderEntry(action models.ActionType, o *models.Order) *models.ActionLog {
	e := models.NewActionLog(action)
	e.OrderID = o.ID
	e.ClientID = o.ClientID
	if o.DriverID != nil {
		e.DriverID = *o.DriverID
	}
	return e
}

func driverEntry(action models.ActionType, d *models.Driver) *models.ActionLog {
	e := models.NewActionLog(action)
	e.DriverID = d.ID
	return e
}
