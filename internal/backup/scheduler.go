package backup

import (
	"context"
	"time"

	"github.com/clinicsuite/hospital-portal/pkg/logging"
)

// Scheduler runs the backup once a day at a fixed local time.
type Scheduler struct {
	manager *Manager
	hour    int
	minute  int
	logger  *logging.Logger
}

func NewScheduler(manager *Manager, hour, minute int, logger *logging.Logger) *Scheduler {
	if logger == nil {
		logger = logging.Default()
	}
	if hour < 0 || hour > 23 {
		hour = 2
	}
	if minute < 0 || minute > 59 {
		minute = 0
	}
	return &Scheduler{manager: manager, hour: hour, minute: minute, logger: logger}
}

// Start sleeps until the next scheduled time, runs the backup, and repeats
// until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	for {
		wait := time.Until(s.nextRun(time.Now()))
		s.logger.Info("next backup scheduled", "in", wait.Round(time.Second).String())

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		if _, err := s.manager.Run(ctx); err != nil {
			s.logger.Error("scheduled backup failed", "error", err)
		}
	}
}

func (s *Scheduler) nextRun(now time.Time) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), s.hour, s.minute, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}
