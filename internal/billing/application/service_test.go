package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	billing "billing-relay/internal/billing/domain"
	"billing-relay/internal/billing/notify"
)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

type recordingNotifier struct {
	summaries []notify.RunSummary
	err       error
}

func (n *recordingNotifier) Notify(_ context.Context, summary notify.RunSummary) error {
	n.summaries = append(n.summaries, summary)
	return n.err
}

func newTestService(t *testing.T, policy WindowPolicy, opts ...ServiceOption) (*RunService, *pipelineFixture) {
	t.Helper()
	f := newPipelineFixture(t, []billing.Source{{Key: "A", Credential: "sk_a", Destination: "a@example.com"}})
	opts = append([]ServiceOption{WithClock(fixedClock{now: time.Date(2024, 6, 1, 6, 0, 0, 0, time.UTC)})}, opts...)
	service, err := NewRunService(f.pipeline, policy, opts...)
	require.NoError(t, err)
	return service, f
}

func TestRunMonthRunsPipelineAndNotifies(t *testing.T) {
	notifier := &recordingNotifier{}
	lock := &fakeLock{}
	service, f := newTestService(t, "", WithNotifier(notifier), WithRunLock(lock, time.Minute))

	result, err := service.RunMonth(context.Background(), 2024, 5)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "May-2024", result.Period)
	assert.Len(t, f.dispatcher.sent, 1)

	require.Len(t, notifier.summaries, 1)
	summary := notifier.summaries[0]
	assert.Equal(t, "manual", summary.Trigger)
	assert.Equal(t, "May-2024", summary.Period)
	require.Len(t, summary.Groups, 1)
	assert.Equal(t, 2, summary.Groups[0].Attachments)
	assert.Equal(t, []string{"billing-relay:run:May-2024"}, lock.released)
}

func TestRunMonthRejectsInvalidAndFutureMonths(t *testing.T) {
	service, f := newTestService(t, "")

	_, err := service.RunMonth(context.Background(), 2024, 13)
	require.ErrorIs(t, err, billing.ErrInvalidMonth)

	_, err = service.RunMonth(context.Background(), 2024, 7)
	require.ErrorIs(t, err, billing.ErrInvalidMonth)
	assert.Zero(t, f.source.calls)
}

func TestRunScheduledUsesPolicy(t *testing.T) {
	service, _ := newTestService(t, PolicyPreviousMonth)
	result, err := service.RunScheduled(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "May-2024", result.Period)

	service, _ = newTestService(t, PolicyTrailing30Days)
	result, err = service.RunScheduled(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "2024-05-02_to_2024-05-31", result.Period)
	assert.Zero(t, result.Month)
}

func TestRunLockedPeriodReturnsInProgress(t *testing.T) {
	lock := &fakeLock{held: map[string]bool{"billing-relay:run:May-2024": true}}
	service, f := newTestService(t, "", WithRunLock(lock, 0))

	_, err := service.RunMonth(context.Background(), 2024, 5)
	require.ErrorIs(t, err, billing.ErrRunInProgress)
	assert.Zero(t, f.source.calls)
}

func TestRunLockBackendFailureStillRuns(t *testing.T) {
	lock := &fakeLock{err: errors.New("redis: connection refused")}
	service, f := newTestService(t, "", WithRunLock(lock, 0))

	result, err := service.RunMonth(context.Background(), 2024, 5)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Len(t, f.dispatcher.sent, 1)
}

func TestNotifierFailureDoesNotFailRun(t *testing.T) {
	notifier := &recordingNotifier{err: errors.New("webhook down")}
	service, _ := newTestService(t, "", WithNotifier(notifier))

	result, err := service.RunMonth(context.Background(), 2024, 5)
	require.NoError(t, err)
	assert.True(t, result.Success)
}

func TestNewRunServiceRequiresPipeline(t *testing.T) {
	_, err := NewRunService(nil, "")
	require.Error(t, err)
}
