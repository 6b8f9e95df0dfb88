package store

import (
	"context"
	"database/sql"
	"time"
)

type RegistrationStore struct {
	db *sql.DB
}

func NewRegistrationStore(db *sql.DB) *RegistrationStore {
	return &RegistrationStore{db: db}
}

// Register records userID as attending eventID. Registering twice yields ErrAlreadyExists.
func (s *RegistrationStore) Register(ctx context.Context, eventID, userID string) (time.Time, error) {
	var at time.Time
	err := s.db.QueryRowContext(ctx,
		"INSERT INTO event_registrations (event_id, user_id) VALUES ($1, $2) RETURNING registered_at",
		eventID, userID,
	).Scan(&at)
	return at, translate(err)
}

func (s *RegistrationStore) Unregister(ctx context.Context, eventID, userID string) error {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM event_registrations WHERE event_id = $1 AND user_id = $2", eventID, userID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// Attendees returns the ids of users registered for eventID.
func (s *RegistrationStore) Attendees(ctx context.Context, eventID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT user_id FROM event_registrations WHERE event_id = $1 ORDER BY registered_at", eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
