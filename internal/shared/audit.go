package shared

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Audit operation kinds.
const (
	AuditOpInsert = "insert"
	AuditOpUpdate = "update"
	AuditOpDelete = "delete"
)

// AuditEntry represents a record stored in audit_logs.
type AuditEntry struct {
	Entity     string
	EntityID   string
	Op         string
	Changes    map[string]any
	ActorID    uuid.UUID
	ActorEmail string
	At         time.Time
}

// AuditRecorder is the write side of the audit log. Services depend on the
// interface so tests can inject failures.
type AuditRecorder interface {
	Record(ctx context.Context, entry AuditEntry) error
}

// AuditLogger writes records into audit_logs.
type AuditLogger struct {
	pool *pgxpool.Pool
}

// NewAuditLogger returns a new AuditLogger.
func NewAuditLogger(pool *pgxpool.Pool) *AuditLogger {
	return &AuditLogger{pool: pool}
}

// Record persists the audit entry.
func (l *AuditLogger) Record(ctx context.Context, entry AuditEntry) error {
	if l == nil {
		return errors.New("audit logger not initialised")
	}
	if entry.Op == "" || entry.Entity == "" || entry.EntityID == "" {
		return errors.New("audit entry requires op/entity/entity_id")
	}
	changesJSON, err := json.Marshal(entry.Changes)
	if err != nil {
		return err
	}
	at := entry.At
	if at.IsZero() {
		at = time.Now().UTC()
	}
	_, err = l.pool.Exec(ctx,
		`INSERT INTO audit_logs (entity, entity_id, op, changes, actor_id, actor_email, occurred_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		entry.Entity, entry.EntityID, entry.Op, changesJSON, entry.ActorID, entry.ActorEmail, at)
	return err
}

// RecordBestEffort writes the entry, logging and swallowing any failure so
// the primary mutation outcome is never masked.
func RecordBestEffort(ctx context.Context, recorder AuditRecorder, logger *slog.Logger, entry AuditEntry) {
	if recorder == nil {
		return
	}
	if err := recorder.Record(ctx, entry); err != nil && logger != nil {
		logger.Warn("audit record failed",
			slog.String("entity", entry.Entity),
			slog.String("entity_id", entry.EntityID),
			slog.String("op", entry.Op),
			slog.Any("error", err))
	}
}
