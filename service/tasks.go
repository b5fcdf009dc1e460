package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"taxidispatch/pkg/logger"
)

const defaultTaskTimeout = 30 * time.Second

// TaskRunner runs detached units of work such as broadcasts and notifications.
// The caller never waits for the result.
type TaskRunner interface {
	Go(name string, fn func(ctx context.Context) error)
}

// AsyncRunner runs each task on its own goroutine with a timeout. Errors and
// panics are logged.
type AsyncRunner struct {
	log     logger.ILogger
	timeout time.Duration
	wg      sync.WaitGroup
}

func NewAsyncRunner(log logger.ILogger, timeout time.Duration) *AsyncRunner {
	if timeout <= 0 {
		timeout = defaultTaskTimeout
	}
	return &AsyncRunner{log: log, timeout: timeout}
}

func (r *AsyncRunner) Go(name string, fn func(ctx context.Context) error) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		defer cancel()

		if err := r.run(ctx, fn); err != nil {
			r.log.Error("background task failed", logger.String("task", name), logger.Error(err))
		}
	}()
}

func (r *AsyncRunner) run(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return fn(ctx)
}

// Wait blocks until every started task has returned.
func (r *AsyncRunner) Wait() {
	r.wg.Wait()
}
