package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

// StaleBugCounter counts open bugs untouched since the cutoff.
type StaleBugCounter interface {
	StaleOpenBugs(ctx context.Context, cutoff time.Time) (int, error)
}

// StaleBugScanJob surfaces open bugs that have gone quiet so triage can pick
// them back up.
type StaleBugScanJob struct {
	counter  StaleBugCounter
	logger   *slog.Logger
	fallback time.Duration
}

// NewStaleBugScanJob constructs the job.
func NewStaleBugScanJob(counter StaleBugCounter, logger *slog.Logger, fallback time.Duration) *StaleBugScanJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &StaleBugScanJob{counter: counter, logger: logger, fallback: fallback}
}

// Handle processes TaskStaleBugScan tasks.
func (j *StaleBugScanJob) Handle(ctx context.Context, t *asynq.Task) error {
	var payload StaleBugScanPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	staleAfter := payload.StaleAfter
	if staleAfter <= 0 {
		staleAfter = j.fallback
	}
	if staleAfter <= 0 {
		staleAfter = 14 * 24 * time.Hour
	}
	cutoff := time.Now().UTC().Add(-staleAfter)
	count, err := j.counter.StaleOpenBugs(ctx, cutoff)
	if err != nil {
		j.logger.Error("stale bug scan", slog.Any("error", err))
		return err
	}
	if count > 0 {
		j.logger.Warn("stale open bugs detected",
			slog.Int("count", count),
			slog.Time("cutoff", cutoff))
	} else {
		j.logger.Info("no stale open bugs")
	}
	return nil
}
