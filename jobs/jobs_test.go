package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"
)

type stubPurger struct {
	cutoff  time.Time
	removed int64
	err     error
	calls   int
}

func (s *stubPurger) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	s.calls++
	s.cutoff = cutoff
	return s.removed, s.err
}

func TestAuditRetentionHandle(t *testing.T) {
	purger := &stubPurger{removed: 7}
	job := NewAuditRetentionJob(purger, nil, 0)

	task, err := NewAuditRetentionTask(AuditRetentionPayload{Retention: 24 * time.Hour})
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, 1, purger.calls)
	require.WithinDuration(t, time.Now().UTC().Add(-24*time.Hour), purger.cutoff, time.Minute)
}

func TestAuditRetentionFallback(t *testing.T) {
	purger := &stubPurger{}
	job := NewAuditRetentionJob(purger, nil, 48*time.Hour)

	task, err := NewAuditRetentionTask(AuditRetentionPayload{})
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	require.WithinDuration(t, time.Now().UTC().Add(-48*time.Hour), purger.cutoff, time.Minute)
}

func TestAuditRetentionDisabledSkipsPurge(t *testing.T) {
	purger := &stubPurger{}
	job := NewAuditRetentionJob(purger, nil, 0)

	task, err := NewAuditRetentionTask(AuditRetentionPayload{})
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	require.Zero(t, purger.calls)
}

func TestAuditRetentionBadPayloadSkipsRetry(t *testing.T) {
	purger := &stubPurger{}
	job := NewAuditRetentionJob(purger, nil, time.Hour)

	err := job.Handle(context.Background(), asynq.NewTask(TaskAuditRetention, []byte("not json")))
	require.ErrorIs(t, err, asynq.SkipRetry)
	require.Zero(t, purger.calls)
}

func TestAuditRetentionPropagatesPurgeError(t *testing.T) {
	purger := &stubPurger{err: errors.New("db down")}
	job := NewAuditRetentionJob(purger, nil, time.Hour)

	task, err := NewAuditRetentionTask(AuditRetentionPayload{Retention: time.Hour})
	require.NoError(t, err)
	require.Error(t, job.Handle(context.Background(), task))
}

type stubCounter struct {
	cutoff time.Time
	count  int
	err    error
	calls  int
}

func (s *stubCounter) StaleOpenBugs(ctx context.Context, cutoff time.Time) (int, error) {
	s.calls++
	s.cutoff = cutoff
	return s.count, s.err
}

func TestStaleBugScanHandle(t *testing.T) {
	counter := &stubCounter{count: 3}
	job := NewStaleBugScanJob(counter, nil, 0)

	task, err := NewStaleBugScanTask(StaleBugScanPayload{StaleAfter: 7 * 24 * time.Hour})
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, 1, counter.calls)
	require.WithinDuration(t, time.Now().UTC().Add(-7*24*time.Hour), counter.cutoff, time.Minute)
}

func TestStaleBugScanFallbacks(t *testing.T) {
	counter := &stubCounter{}
	job := NewStaleBugScanJob(counter, nil, 21*24*time.Hour)

	task, err := NewStaleBugScanTask(StaleBugScanPayload{})
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	require.WithinDuration(t, time.Now().UTC().Add(-21*24*time.Hour), counter.cutoff, time.Minute)
}

func TestStaleBugScanBadPayloadSkipsRetry(t *testing.T) {
	counter := &stubCounter{}
	job := NewStaleBugScanJob(counter, nil, time.Hour)

	err := job.Handle(context.Background(), asynq.NewTask(TaskStaleBugScan, []byte("{")))
	require.ErrorIs(t, err, asynq.SkipRetry)
	require.Zero(t, counter.calls)
}
