// services/scheduler.go
package services

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"
)

// StartSessionSweep evicts stale sessions every interval. The scheduler stops when ctx is done.
func StartSessionSweep(ctx context.Context, store *SessionStore, interval time.Duration, logger *zap.Logger) (gocron.Scheduler, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	// Every interval: drop idle and expired sessions
	_, err = sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			evicted := store.Sweep(time.Now())
			logger.Debug("[Scheduler] session sweep", zap.Int("evicted", evicted), zap.Int("active", store.Len()))
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to schedule session sweep: %w", err)
	}

	sched.Start()
	go func() {
		<-ctx.Done()
		if err := sched.Shutdown(); err != nil {
			logger.Warn("[Scheduler] shutdown failed", zap.Error(err))
		}
	}()
	return sched, nil
}
