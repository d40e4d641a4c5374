// Package usage enforces per-user daily question generation quotas.
package usage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"interviewer/pkg/logx"
)

// ErrQuotaExceeded signals that a user has hit their daily generation limit.
// Callers skip generation and inform the user; the turn itself does not fail.
var ErrQuotaExceeded = errors.New("daily question quota exceeded")

//nolint:gochecknoglobals // promauto metrics are registered once per process
var (
	generatedCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "interview_questions_generated_total",
		Help: "Questions generated, by user",
	}, []string{"user_id"})

	quotaDenials = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "interview_quota_denials_total",
		Help: "Generation requests denied by quota, by user",
	}, []string{"user_id"})
)

// Tracker counts generated questions per user per UTC day in sqlite.
type Tracker struct {
	db     *sql.DB
	limit  int
	logger *logx.Logger
	now    func() time.Time
}

// NewTracker creates a tracker over an existing database handle, creating
// its counter table if needed.
func NewTracker(db *sql.DB, dailyLimit int) (*Tracker, error) {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS usage_counters (
		user_id TEXT NOT NULL,
		day TEXT NOT NULL,
		questions_generated INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (user_id, day)
	)`)
	if err != nil {
		return nil, fmt.Errorf("failed to create usage table: %w", err)
	}
	return &Tracker{
		db:     db,
		limit:  dailyLimit,
		logger: logx.NewLogger("usage"),
		now:    time.Now,
	}, nil
}

func (t *Tracker) day() string {
	return t.now().UTC().Format("2006-01-02")
}

// CheckQuotaAvailable returns ErrQuotaExceeded when the user's daily count
// has reached the limit.
func (t *Tracker) CheckQuotaAvailable(ctx context.Context, userID string) error {
	var count int
	err := t.db.QueryRowContext(ctx,
		`SELECT COALESCE(questions_generated, 0) FROM usage_counters WHERE user_id = ? AND day = ?`,
		userID, t.day(),
	).Scan(&count)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read usage counter: %w", err)
	}

	if count >= t.limit {
		quotaDenials.WithLabelValues(userID).Inc()
		t.logger.Warn("user %s hit daily quota (%d/%d)", userID, count, t.limit)
		return fmt.Errorf("%w: %d of %d questions used today", ErrQuotaExceeded, count, t.limit)
	}
	return nil
}

// RecordGeneration increments the user's daily counter after a question is
// generated.
func (t *Tracker) RecordGeneration(ctx context.Context, userID string) error {
	_, err := t.db.ExecContext(ctx, `
		INSERT INTO usage_counters (user_id, day, questions_generated) VALUES (?, ?, 1)
		ON CONFLICT(user_id, day) DO UPDATE SET questions_generated = questions_generated + 1`,
		userID, t.day(),
	)
	if err != nil {
		return fmt.Errorf("failed to increment usage counter: %w", err)
	}
	generatedCounter.WithLabelValues(userID).Inc()
	return nil
}
