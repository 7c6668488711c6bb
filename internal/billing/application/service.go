package application

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	billing "billing-relay/internal/billing/domain"
	"billing-relay/internal/billing/notify"
)

const defaultLockTTL = 30 * time.Minute

// Clock provides the current time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// RunService exposes the pipeline to the HTTP and scheduled triggers.
type RunService struct {
	pipeline *Pipeline
	policy   WindowPolicy
	location *time.Location
	lock     RunLock
	lockTTL  time.Duration
	notifier notify.Notifier
	clock    Clock
	logger   *log.Logger
}

// ServiceOption configures a RunService.
type ServiceOption func(*RunService)

// WithRunLock serializes runs for the same period.
func WithRunLock(lock RunLock, ttl time.Duration) ServiceOption {
	return func(s *RunService) {
		s.lock = lock
		if ttl > 0 {
			s.lockTTL = ttl
		}
	}
}

// WithNotifier posts a summary after every run.
func WithNotifier(notifier notify.Notifier) ServiceOption {
	return func(s *RunService) {
		s.notifier = notifier
	}
}

// WithClock overrides the default clock.
func WithClock(clock Clock) ServiceOption {
	return func(s *RunService) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithLocation sets the time zone used to derive windows.
func WithLocation(loc *time.Location) ServiceOption {
	return func(s *RunService) {
		if loc != nil {
			s.location = loc
		}
	}
}

// WithServiceLogger sets the process logger.
func WithServiceLogger(logger *log.Logger) ServiceOption {
	return func(s *RunService) {
		s.logger = logger
	}
}

// NewRunService constructs a RunService.
func NewRunService(pipeline *Pipeline, policy WindowPolicy, opts ...ServiceOption) (*RunService, error) {
	if pipeline == nil {
		return nil, errors.New("run service: nil pipeline")
	}
	if policy == "" {
		policy = PolicyPreviousMonth
	}
	s := &RunService{
		pipeline: pipeline,
		policy:   policy,
		location: time.UTC,
		lockTTL:  defaultLockTTL,
		clock:    systemClock{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// RunMonth runs the pipeline for an explicit calendar month.
func (s *RunService) RunMonth(ctx context.Context, year, month int) (*RunResult, error) {
	window, period, err := MonthWindow(year, time.Month(month), s.location)
	if err != nil {
		return nil, err
	}
	if window.StartTime().After(s.clock.Now()) {
		return nil, fmt.Errorf("%w: %04d-%02d is in the future", billing.ErrInvalidMonth, year, month)
	}
	return s.run(ctx, "manual", window, period)
}

// RunScheduled runs the pipeline for the configured scheduled window.
func (s *RunService) RunScheduled(ctx context.Context) (*RunResult, error) {
	window, period, err := ScheduledWindow(s.policy, s.clock.Now(), s.location)
	if err != nil {
		return nil, err
	}
	return s.run(ctx, "scheduled", window, period)
}

func (s *RunService) run(ctx context.Context, trigger string, window billing.TimeWindow, period billing.Period) (*RunResult, error) {
	if s.lock != nil {
		release, err := s.lock.Acquire(ctx, "billing-relay:run:"+period.Label, s.lockTTL)
		switch {
		case errors.Is(err, billing.ErrRunInProgress):
			return nil, err
		case err != nil:
			s.logf("event=run_lock_unavailable trigger=%s period=%s error=%v", trigger, period.Label, err)
		default:
			defer release()
		}
	}

	s.logf("event=run_start trigger=%s period=%s", trigger, period.Label)
	result, err := s.pipeline.Run(ctx, window, period)
	if err != nil {
		s.logf("event=run_failed trigger=%s period=%s error=%v", trigger, period.Label, err)
		return nil, err
	}
	s.logf("event=run_done trigger=%s period=%s run_id=%s success=%t", trigger, period.Label, result.RunID, result.Success)
	s.notify(ctx, trigger, result)
	return result, nil
}

func (s *RunService) notify(ctx context.Context, trigger string, result *RunResult) {
	if s.notifier == nil || result == nil {
		return
	}
	summary := notify.RunSummary{
		RunID:   result.RunID,
		Trigger: trigger,
		Period:  result.Period,
		Success: result.Success,
		Message: result.Message,
	}
	for _, group := range result.Groups {
		summary.Groups = append(summary.Groups, notify.GroupSummary{
			Destination: group.Destination,
			Attachments: len(group.Attachments),
			Sent:        group.Sent,
			Error:       group.Error,
		})
	}
	if err := s.notifier.Notify(ctx, summary); err != nil {
		s.logf("event=run_notify_failed run_id=%s error=%v", result.RunID, err)
	}
}

func (s *RunService) logf(format string, args ...any) {
	if s.logger == nil {
		return
	}
	s.logger.Printf(format, args...)
}
