package registry

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Recorder appends immutable audit-trail entries. It is pure append: it never
// reads or mutates existing entries, and the pipelines only invoke it after
// the primary write succeeded.
type Recorder struct {
	store Store
	now   func() time.Time
}

// NewRecorder constructs a Recorder backed by the given store.
func NewRecorder(store Store) (*Recorder, error) {
	if store == nil {
		return nil, errors.New("store is required")
	}
	return &Recorder{store: store, now: time.Now}, nil
}

// Record stamps the current time in ISO-8601 (UTC) and appends one entry.
func (r *Recorder) Record(ctx context.Context, actor string, action AuditAction, module, details string, meta map[string]any) (AuditLogEntry, error) {
	entry := AuditLogEntry{
		ID:        uuid.New(),
		Timestamp: r.now().UTC().Format(time.RFC3339),
		Actor:     actor,
		Action:    action,
		Module:    module,
		Details:   details,
		Meta:      meta,
	}

	if err := r.store.AppendAudit(ctx, entry); err != nil {
		return AuditLogEntry{}, err
	}
	return entry, nil
}
