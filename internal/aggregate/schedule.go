package aggregate

import (
	"context"
	"errors"
	"fmt"

	"github.com/robfig/cron/v3"

	appLog "dancefeed/internal/log"
)

// Scheduler triggers Runner cycles on a cron schedule.
type Scheduler struct {
	cron   *cron.Cron
	runner *Runner
}

// NewScheduler parses schedule, a standard five-field cron expression or a
// descriptor such as "@every 1h".
func NewScheduler(ctx context.Context, schedule string, runner *Runner) (*Scheduler, error) {
	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		if _, err := runner.Run(ctx); err != nil {
			if errors.Is(err, ErrCycleRunning) {
				appLog.Warn("scheduled cycle skipped; previous still running")
				return
			}
			appLog.Error("scheduled cycle failed", err)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("invalid refresh schedule %q: %w", schedule, err)
	}
	return &Scheduler{cron: c, runner: runner}, nil
}

func (s *Scheduler) Start() { s.cron.Start() }

// Stop halts the schedule and waits for a running cycle to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}
