package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/jetwayz/admin-console/internal/jobs"
	"github.com/jetwayz/admin-console/internal/shared"
)

// AuditRecorder stores audit entries. Satisfied by *shared.AuditLogger.
type AuditRecorder interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// AuditJob processes TaskAuditRecord tasks.
type AuditJob struct {
	Recorder AuditRecorder
	Logger   *slog.Logger
	Metrics  *jobmetrics.Metrics
}

// NewAuditJob initialises the audit handler.
func NewAuditJob(recorder AuditRecorder, logger *slog.Logger, metrics *jobmetrics.Metrics) *AuditJob {
	return &AuditJob{Recorder: recorder, Logger: logger, Metrics: metrics}
}

// Handle decodes the payload and writes it to the audit store. Malformed
// payloads are not retried.
func (j *AuditJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Recorder == nil {
		return errors.New("audit record: handler not configured")
	}
	tracker := j.Metrics.Track(TaskAuditRecord)
	defer func() {
		err = tracker.End(err)
	}()

	var payload AuditPayload
	if uerr := json.Unmarshal(t.Payload(), &payload); uerr != nil {
		return fmt.Errorf("decode audit payload: %v: %w", uerr, asynq.SkipRetry)
	}
	if verr := payload.validate(); verr != nil {
		return fmt.Errorf("%v: %w", verr, asynq.SkipRetry)
	}

	logger := j.logger().With(
		slog.String("action", payload.Action),
		slog.String("entity_id", payload.EntityID),
	)
	if rerr := j.Recorder.Record(ctx, shared.AuditLog{
		Actor:    payload.Actor,
		Action:   payload.Action,
		Entity:   payload.Entity,
		EntityID: payload.EntityID,
		Meta:     payload.Meta,
		At:       payload.At,
	}); rerr != nil {
		logger.Error("record audit entry", slog.Any("error", rerr))
		return rerr
	}
	logger.Debug("audit entry recorded")
	return nil
}

func (j *AuditJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
