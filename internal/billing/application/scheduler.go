package application

import (
	"context"
	"log"
	"time"
)

// Scheduler triggers scheduled runs.
type Scheduler struct {
	service    *RunService
	dailyAt    string
	dayOfMonth int
	location   *time.Location
	logger     *log.Logger
}

// NewScheduler constructs a Scheduler. dayOfMonth 0 runs every day.
func NewScheduler(service *RunService, dailyAt string, dayOfMonth int, location *time.Location, logger *log.Logger) *Scheduler {
	if location == nil {
		location = time.UTC
	}
	return &Scheduler{
		service:    service,
		dailyAt:    dailyAt,
		dayOfMonth: dayOfMonth,
		location:   location,
		logger:     logger,
	}
}

// Start begins the scheduler loop.
func (s *Scheduler) Start(ctx context.Context) {
	if s == nil || s.service == nil || s.dailyAt == "" {
		return
	}
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if !s.shouldRun(now) {
				continue
			}
			s.runOnce(ctx)
		}
	}
}

func (s *Scheduler) shouldRun(now time.Time) bool {
	hour, minute, err := parseDailyAt(s.dailyAt)
	if err != nil {
		return false
	}
	local := now.In(s.location)
	if s.dayOfMonth > 0 && local.Day() != s.dayOfMonth {
		return false
	}
	return local.Hour() == hour && local.Minute() == minute
}

func (s *Scheduler) runOnce(ctx context.Context) {
	result, err := s.service.RunScheduled(ctx)
	if s.logger == nil {
		return
	}
	if err != nil {
		s.logger.Printf("billing schedule error: err=%v", err)
		return
	}
	s.logger.Printf("billing schedule done: run_id=%s success=%t", result.RunID, result.Success)
}

func parseDailyAt(value string) (int, int, error) {
	t, err := time.Parse("15:04", value)
	if err != nil {
		return 0, 0, err
	}
	return t.Hour(), t.Minute(), nil
}
