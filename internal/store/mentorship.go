package store

import (
	"context"
	"database/sql"

	"github.com/campusconnect/backend/internal/models"
	"github.com/google/uuid"
)

const mentorshipColumns = "id, student_id, alumni_id, message, status, created_at, updated_at"

type MentorshipStore struct {
	db *sql.DB
}

func NewMentorshipStore(db *sql.DB) *MentorshipStore {
	return &MentorshipStore{db: db}
}

func scanMentorship(row scanner) (*models.MentorshipRequest, error) {
	var m models.MentorshipRequest
	err := row.Scan(&m.ID, &m.StudentID, &m.AlumniID, &m.Message, &m.Status, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, translate(err)
	}
	return &m, nil
}

// Create inserts a pending request. A second request for the same student and alumnus
// hits the unique index and yields ErrAlreadyExists.
func (s *MentorshipStore) Create(ctx context.Context, m *models.MentorshipRequest) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	m.Status = models.MentorshipPending
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO mentorship_requests (id, student_id, alumni_id, message, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at`,
		m.ID, m.StudentID, m.AlumniID, m.Message, m.Status,
	).Scan(&m.CreatedAt, &m.UpdatedAt)
	return translate(err)
}

func (s *MentorshipStore) Get(ctx context.Context, id string) (*models.MentorshipRequest, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}
	return scanMentorship(s.db.QueryRowContext(ctx,
		"SELECT "+mentorshipColumns+" FROM mentorship_requests WHERE id = $1", id))
}

// ListFor returns requests where userID is either side, newest first.
func (s *MentorshipStore) ListFor(ctx context.Context, userID string) ([]*models.MentorshipRequest, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+mentorshipColumns+" FROM mentorship_requests WHERE student_id = $1 OR alumni_id = $1 ORDER BY created_at DESC",
		userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []*models.MentorshipRequest{}
	for rows.Next() {
		m, err := scanMentorship(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// SetStatus moves a pending request to status. Requests already decided are left
// untouched and reported as ErrNotFound.
func (s *MentorshipStore) SetStatus(ctx context.Context, id, status string) (*models.MentorshipRequest, error) {
	return scanMentorship(s.db.QueryRowContext(ctx, `
		UPDATE mentorship_requests SET status = $2, updated_at = NOW()
		WHERE id = $1 AND status = $3
		RETURNING `+mentorshipColumns,
		id, status, models.MentorshipPending))
}
