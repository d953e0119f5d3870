package services

import (
	"context"
	"sync"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/telemed-health/telemed-api/models"
)

const maxActionLength = 128

// AuditLogger persists audit entries on a background worker so request
// handling never waits for, or fails because of, the audit table. Write
// failures and dropped entries are reported on the logger.
type AuditLogger struct {
	db     *gorm.DB
	logger zerolog.Logger

	mu     sync.RWMutex
	closed bool
	queue  chan models.AuditLog
	done   chan struct{}
}

func NewAuditLogger(db *gorm.DB, queueSize int, logger zerolog.Logger) *AuditLogger {
	if queueSize <= 0 {
		queueSize = 1
	}
	a := &AuditLogger{
		db:     db,
		logger: logger.With().Str("component", "audit").Logger(),
		queue:  make(chan models.AuditLog, queueSize),
		done:   make(chan struct{}),
	}
	go a.run()
	return a
}

// Record enqueues entry without blocking. It is dropped when the queue is
// full or the logger is closed.
func (a *AuditLogger) Record(entry models.AuditLog) {
	entry.Action = truncateAction(entry.Action)

	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		a.logger.Warn().Str("action", entry.Action).Msg("audit entry dropped: logger closed")
		return
	}
	select {
	case a.queue <- entry:
	default:
		a.logger.Warn().Str("action", entry.Action).Msg("audit entry dropped: queue full")
	}
}

// Close stops accepting entries and waits for queued ones to be written.
func (a *AuditLogger) Close(ctx context.Context) error {
	a.mu.Lock()
	if !a.closed {
		a.closed = true
		close(a.queue)
	}
	a.mu.Unlock()

	select {
	case <-a.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (a *AuditLogger) run() {
	defer close(a.done)
	for entry := range a.queue {
		if err := a.db.Create(&entry).Error; err != nil {
			a.logger.Error().Err(err).
				Str("action", entry.Action).
				Interface("metadata", entry.Metadata).
				Msg("failed to persist audit entry")
		}
	}
}

// truncateAction cuts action to maxActionLength bytes without splitting a
// UTF-8 sequence.
func truncateAction(action string) string {
	if len(action) <= maxActionLength {
		return action
	}
	n := maxActionLength
	for n > 0 && !utf8.RuneStart(action[n]) {
		n--
	}
	return action[:n]
}
