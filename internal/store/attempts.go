package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/campusconnect/backend/internal/models"
)

// AttemptStore is the failed-login ledger, keyed by the raw submitted username.
type AttemptStore struct {
	db *sql.DB
}

func NewAttemptStore(db *sql.DB) *AttemptStore {
	return &AttemptStore{db: db}
}

func (s *AttemptStore) Get(ctx context.Context, username string) (models.FailedAttempt, error) {
	a := models.FailedAttempt{Username: username}
	err := s.db.QueryRowContext(ctx,
		"SELECT attempts, last_attempt FROM failed_attempts WHERE username = $1", username,
	).Scan(&a.Attempts, &a.LastAttempt)
	return a, translate(err)
}

// RecordFailure increments the counter in a single statement and returns the new
// value. A previous attempt older than window restarts the count at 1.
func (s *AttemptStore) RecordFailure(ctx context.Context, username string, now time.Time, window time.Duration) (int, error) {
	var attempts int
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO failed_attempts (username, attempts, last_attempt) VALUES ($1, 1, $2)
		ON CONFLICT (username) DO UPDATE SET
			attempts = CASE WHEN failed_attempts.last_attempt < $3 THEN 1 ELSE failed_attempts.attempts + 1 END,
			last_attempt = $2
		RETURNING attempts`,
		username, now, now.Add(-window),
	).Scan(&attempts)
	return attempts, err
}

// Reset zeroes the counter after a successful login.
func (s *AttemptStore) Reset(ctx context.Context, username string, now time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO failed_attempts (username, attempts, last_attempt) VALUES ($1, 0, $2)
		ON CONFLICT (username) DO UPDATE SET attempts = 0, last_attempt = $2`,
		username, now)
	return err
}
