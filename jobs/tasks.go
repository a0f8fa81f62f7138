package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskAuditRecord persists one operator action to the audit trail.
	TaskAuditRecord = "audit:record"
	// TaskAuditPurge drops audit entries older than the retention window.
	TaskAuditPurge = "audit:purge"
)

// Audit actions emitted by the console.
const (
	ActionLogin         = "auth.login"
	ActionLogout        = "auth.logout"
	ActionPasswordReset = "auth.password_reset"
	ActionRegister      = "user.register"
	ActionUpdate        = "user.update"
	ActionDelete        = "user.delete"
)

// AuditPayload describes an operator action.
type AuditPayload struct {
	Actor    string         `json:"actor"`
	Action   string         `json:"action"`
	Entity   string         `json:"entity"`
	EntityID string         `json:"entity_id"`
	Meta     map[string]any `json:"meta,omitempty"`
	At       time.Time      `json:"at"`
}

func (p AuditPayload) validate() error {
	if p.Action == "" || p.Entity == "" || p.EntityID == "" {
		return errors.New("audit payload requires action/entity/entity_id")
	}
	return nil
}

// NewAuditTask constructs an Asynq task.
func NewAuditTask(payload AuditPayload) (*asynq.Task, error) {
	if err := payload.validate(); err != nil {
		return nil, err
	}
	if payload.At.IsZero() {
		payload.At = time.Now().UTC()
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAuditRecord, data, asynq.Queue(QueueDefault), asynq.MaxRetry(5)), nil
}

// AuditPurgePayload carries the retention window in hours.
type AuditPurgePayload struct {
	RetentionHours int `json:"retention_hours"`
}

// NewAuditPurgeTask builds the periodic purge task.
func NewAuditPurgeTask(retention time.Duration) (*asynq.Task, error) {
	hours := int(retention / time.Hour)
	if hours <= 0 {
		return nil, errors.New("audit purge requires a retention of at least one hour")
	}
	data, err := json.Marshal(AuditPurgePayload{RetentionHours: hours})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAuditPurge, data, asynq.Queue(QueueDefault)), nil
}

// AuditPublisher hands audit events to the background pipeline.
type AuditPublisher interface {
	PublishAudit(ctx context.Context, payload AuditPayload) error
}

// NopAuditPublisher drops every event. Used when auditing is disabled.
type NopAuditPublisher struct{}

// PublishAudit implements AuditPublisher.
func (NopAuditPublisher) PublishAudit(context.Context, AuditPayload) error { return nil }
