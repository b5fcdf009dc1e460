package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"taxidispatch/pkg/logger"
	"taxidispatch/service"
)

const reconcileTimeout = 30 * time.Second

// ReconcileJob periodically repairs drift between assigned orders and driver
// busy flags.
type ReconcileJob struct {
	reconciler service.Reconciler
	schedule   string
	cron       *cron.Cron
	log        logger.ILogger
}

func NewReconcileJob(reconciler service.Reconciler, schedule string, log logger.ILogger) *ReconcileJob {
	return &ReconcileJob{
		reconciler: reconciler,
		schedule:   schedule,
		cron:       cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		log:        log.With(logger.String("component", "reconcile_job")),
	}
}

// Start schedules the job. An empty schedule leaves it disabled.
func (j *ReconcileJob) Start() error {
	if j.schedule == "" {
		j.log.Info("reconcile job disabled")
		return nil
	}
	if _, err := j.cron.AddFunc(j.schedule, j.Run); err != nil {
		return err
	}
	j.cron.Start()
	j.log.Info("reconcile job started", logger.String("schedule", j.schedule))
	return nil
}

// Run performs one pass.
func (j *ReconcileJob) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), reconcileTimeout)
	defer cancel()

	report, err := j.reconciler.Run(ctx)
	if err != nil {
		j.log.Error("reconcile pass failed", logger.Error(err))
		return
	}
	if report != (service.ReconcileReport{}) {
		j.log.Warning("reconcile pass repaired drift",
			logger.Int("marked_busy", report.MarkedBusy),
			logger.Int("released", report.Released),
			logger.Int("conflicts", report.Conflicts),
		)
	}
}

// Stop unschedules the job and waits for a running pass to finish.
func (j *ReconcileJob) Stop() {
	<-j.cron.Stop().Done()
	j.log.Info("reconcile job stopped")
}
