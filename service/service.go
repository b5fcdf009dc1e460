package service

import (
	"taxidispatch/pkg/logger"
	"taxidispatch/pkg/metrics"
	"taxidispatch/storage"
)

// Settings exposes the runtime-mutable configuration the services read.
type Settings interface {
	DriversChatID() int64
	SetDriversChatID(id int64) error
}

type IServiceManager interface {
	Client() ClientService
	Driver() DriverService
	Order() OrderService
	Dispatcher() Dispatcher
	Reconciler() Reconciler
	Stats() StatsService
	Settings() SettingsService
	ActionLog() ActionLogService
}

type Options struct {
	Storage  storage.IStorage
	Notifier Notifier
	Settings Settings
	Tasks    TaskRunner
	Metrics  *metrics.Metrics
	Log      logger.ILogger
}

type service struct {
	clientService   ClientService
	driverService   DriverService
	orderService    OrderService
	dispatcher      Dispatcher
	reconciler      Reconciler
	statsService    StatsService
	settingsService SettingsService
	audit           *auditLog
}

func New(opts Options) IServiceManager {
	if opts.Notifier == nil {
		opts.Notifier = NopNotifier{}
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.NewNop()
	}
	if opts.Log == nil {
		opts.Log = logger.NewNop()
	}
	if opts.Tasks == nil {
		opts.Tasks = NewAsyncRunner(opts.Log, 0)
	}

	d := &deps{
		stg:      opts.Storage,
		settings: opts.Settings,
		tasks:    opts.Tasks,
		metrics:  opts.Metrics,
		log:      opts.Log,
		audit:    newAuditLog(opts.Storage, opts.Log),
		notify:   &notifications{n: opts.Notifier, metrics: opts.Metrics, log: opts.Log},
	}

	return &service{
		clientService:   NewClientService(d),
		driverService:   NewDriverService(d),
		orderService:    NewOrderService(d),
		dispatcher:      NewDispatcher(d),
		reconciler:      NewReconciler(d),
		statsService:    NewStatsService(d),
		settingsService: NewSettingsService(d, opts.Notifier),
		audit:           d.audit,
	}
}

func (s *service) Client() ClientService       { return s.clientService }
func (s *service) Driver() DriverService       { return s.driverService }
func (s *service) Order() OrderService         { return s.orderService }
func (s *service) Dispatcher() Dispatcher      { return s.dispatcher }
func (s *service) Reconciler() Reconciler      { return s.reconciler }
func (s *service) Stats() StatsService         { return s.statsService }
func (s *service) Settings() SettingsService   { return s.settingsService }
func (s *service) ActionLog() ActionLogService { return s.audit }

// deps is shared by every service in the package.
type deps struct {
	stg      storage.IStorage
	settings Settings
	tasks    TaskRunner
	metrics  *metrics.Metrics
	log      logger.ILogger
	audit    *auditLog
	notify   *notifications
}

// partialFailure records a follow-up driver write that failed after the
// order transition already committed. The reconciler repairs the drift.
func (d *deps) partialFailure(op, orderID, driverID string, err error) {
	d.metrics.PartialFailuresTotal.WithLabelValues(op).Inc()
	d.log.Error("partial failure: order transition committed but driver update failed",
		logger.String("op", op),
		logger.String("order_id", orderID),
		logger.String("driver_id", driverID),
		logger.Error(err),
	)
}
