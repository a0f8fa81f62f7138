package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/jetwayz/admin-console/internal/jobs"
)

// AuditPurger removes old audit entries. Satisfied by *shared.AuditLogger.
type AuditPurger interface {
	Purge(ctx context.Context, cutoff time.Time) (int64, error)
}

// AuditPurgeJob processes TaskAuditPurge tasks.
type AuditPurgeJob struct {
	Purger  AuditPurger
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	Now     func() time.Time
}

// NewAuditPurgeJob initialises the purge handler.
func NewAuditPurgeJob(purger AuditPurger, logger *slog.Logger, metrics *jobmetrics.Metrics) *AuditPurgeJob {
	return &AuditPurgeJob{Purger: purger, Logger: logger, Metrics: metrics, Now: time.Now}
}

// Handle deletes entries older than the payload's retention window.
func (j *AuditPurgeJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Purger == nil {
		return errors.New("audit purge: handler not configured")
	}
	tracker := j.Metrics.Track(TaskAuditPurge)
	defer func() {
		err = tracker.End(err)
	}()

	var payload AuditPurgePayload
	if uerr := json.Unmarshal(t.Payload(), &payload); uerr != nil {
		return fmt.Errorf("decode purge payload: %v: %w", uerr, asynq.SkipRetry)
	}
	if payload.RetentionHours <= 0 {
		return fmt.Errorf("purge retention must be positive: %w", asynq.SkipRetry)
	}
	now := time.Now
	if j.Now != nil {
		now = j.Now
	}
	cutoff := now().UTC().Add(-time.Duration(payload.RetentionHours) * time.Hour)
	removed, perr := j.Purger.Purge(ctx, cutoff)
	if perr != nil {
		return perr
	}
	logger := j.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("audit entries purged", slog.Int64("removed", removed), slog.Time("cutoff", cutoff))
	return nil
}
