package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

// AuditPurger deletes audit rows older than the cutoff.
type AuditPurger interface {
	PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// AuditRetentionJob removes audit entries past the retention window.
type AuditRetentionJob struct {
	purger   AuditPurger
	logger   *slog.Logger
	fallback time.Duration
}

// NewAuditRetentionJob constructs the job. fallback is used when the task
// payload carries no retention.
func NewAuditRetentionJob(purger AuditPurger, logger *slog.Logger, fallback time.Duration) *AuditRetentionJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditRetentionJob{purger: purger, logger: logger, fallback: fallback}
}

// Handle processes TaskAuditRetention tasks.
func (j *AuditRetentionJob) Handle(ctx context.Context, t *asynq.Task) error {
	var payload AuditRetentionPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	retention := payload.Retention
	if retention <= 0 {
		retention = j.fallback
	}
	if retention <= 0 {
		j.logger.Warn("audit retention disabled, skipping purge")
		return nil
	}
	cutoff := time.Now().UTC().Add(-retention)
	removed, err := j.purger.PurgeOlderThan(ctx, cutoff)
	if err != nil {
		j.logger.Error("audit retention purge", slog.Any("error", err))
		return err
	}
	j.logger.Info("audit retention purge complete",
		slog.Int64("removed", removed),
		slog.Time("cutoff", cutoff))
	return nil
}
