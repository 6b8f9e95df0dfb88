package store

import (
	"context"
	"database/sql"

	"github.com/campusconnect/backend/internal/models"
	"github.com/google/uuid"
)

const connectionColumns = "id, requester_id, recipient_id, status, created_at, updated_at"

type ConnectionStore struct {
	db *sql.DB
}

func NewConnectionStore(db *sql.DB) *ConnectionStore {
	return &ConnectionStore{db: db}
}

func scanConnection(row scanner) (*models.Connection, error) {
	var c models.Connection
	if err := row.Scan(&c.ID, &c.RequesterID, &c.RecipientID, &c.Status, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, translate(err)
	}
	return &c, nil
}

// Create inserts a pending connection. Any existing connection between the two users,
// in either direction, yields ErrAlreadyExists.
func (s *ConnectionStore) Create(ctx context.Context, c *models.Connection) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	c.Status = models.ConnectionPending
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO connections (id, requester_id, recipient_id, status)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at`,
		c.ID, c.RequesterID, c.RecipientID, c.Status,
	).Scan(&c.CreatedAt, &c.UpdatedAt)
	return translate(err)
}

func (s *ConnectionStore) Get(ctx context.Context, id string) (*models.Connection, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}
	return scanConnection(s.db.QueryRowContext(ctx,
		"SELECT "+connectionColumns+" FROM connections WHERE id = $1", id))
}

// ListFor returns the connections on either side of userID with the given status,
// newest first.
func (s *ConnectionStore) ListFor(ctx context.Context, userID, status string) ([]*models.Connection, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+connectionColumns+` FROM connections
		WHERE (requester_id = $1 OR recipient_id = $1) AND status = $2
		ORDER BY created_at DESC`, userID, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []*models.Connection{}
	for rows.Next() {
		c, err := scanConnection(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// SetStatus answers a pending connection. Answered connections are reported as
// ErrNotFound.
func (s *ConnectionStore) SetStatus(ctx context.Context, id, status string) (*models.Connection, error) {
	return scanConnection(s.db.QueryRowContext(ctx, `
		UPDATE connections SET status = $2, updated_at = NOW()
		WHERE id = $1 AND status = $3
		RETURNING `+connectionColumns,
		id, status, models.ConnectionPending))
}
