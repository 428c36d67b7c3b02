package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/platinummonkey/cmsadmin/pkg/contextkeys"
	"github.com/platinummonkey/cmsadmin/pkg/observability"
	"github.com/platinummonkey/cmsadmin/pkg/storage"
)

const (
	// DefaultLimit applies when a caller does not ask for a specific number of entries
	DefaultLimit = 100
	// MaxLimit caps every read
	MaxLimit = 1000
)

// Logger records privileged actions to the admin_logs collection.
// Writes are best effort: a failed Append never fails the caller's operation.
type Logger struct {
	store   Store
	logger  *observability.Logger
	metrics *observability.Metrics
	now     func() time.Time
	newID   func() string
}

// NewLogger creates a new audit logger
func NewLogger(store Store, logger *observability.Logger, metrics *observability.Metrics) *Logger {
	return &Logger{
		store:   store,
		logger:  logger,
		metrics: metrics,
		now:     time.Now,
		newID:   uuid.NewString,
	}
}

// Append stores entry with a fresh id and timestamp. It returns false when the
// write failed; the failure is logged and counted.
func (l *Logger) Append(ctx context.Context, entry Entry) bool {
	entry.ID = l.newID()
	entry.Timestamp = l.now().UTC()

	log := l.logger
	if requestID := contextkeys.GetRequestID(ctx); requestID != "" {
		log = log.WithField("request_id", requestID)
	}
	log = observability.UpdateLoggerWithTraceContext(ctx, log).WithFields(map[string]interface{}{
		"audit_action": string(entry.Action),
		"audit_user":   entry.UserID,
	})

	err := l.write(ctx, entry)
	if err != nil {
		l.metrics.AuditWriteFailuresTotal.Inc()
		log.WithError(err).Error("failed to write audit entry")
		return false
	}

	l.metrics.AuditWritesTotal.WithLabelValues(entry.Action.Kind()).Inc()
	log.Debug("audit entry written")
	return true
}

func (l *Logger) write(ctx context.Context, entry Entry) error {
	if !entry.Action.Valid() {
		return fmt.Errorf("invalid audit action %q", entry.Action)
	}
	rec, err := storage.NewRecord(entry.ID, entry.Timestamp, entry)
	if err != nil {
		return err
	}
	return l.store.Insert(ctx, storage.CollectionLogs, rec)
}

// Recent returns the newest entries first
func (l *Logger) Recent(ctx context.Context, limit int) ([]Entry, error) {
	entries, err := recent(ctx, l.store, nil, ClampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to read audit log: %w", err)
	}
	return entries, nil
}

// ByUser returns the newest entries of userID first
func (l *Logger) ByUser(ctx context.Context, userID string, limit int) ([]Entry, error) {
	entries, err := recent(ctx, l.store, storage.Filter{"userId": userID}, ClampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to read audit log for user %s: %w", userID, err)
	}
	return entries, nil
}

// ClampLimit maps limit into [1, MaxLimit]. Non-positive values select DefaultLimit.
func ClampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	default:
		return limit
	}
}
