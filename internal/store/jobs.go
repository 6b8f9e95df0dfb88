package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/campusconnect/backend/internal/models"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

const jobColumns = `id, title, company, description, location, link, tags, target_roles, colleges,
	posted_by, is_active, expires_at, created_at`

type JobStore struct {
	db *sql.DB
}

func NewJobStore(db *sql.DB) *JobStore {
	return &JobStore{db: db}
}

func scanJob(row scanner) (*models.Job, error) {
	var (
		j       models.Job
		expires sql.NullTime
	)
	err := row.Scan(&j.ID, &j.Title, &j.Company, &j.Description, &j.Location, &j.Link,
		pq.Array(&j.Tags), pq.Array(&j.TargetRoles), pq.Array(&j.Colleges),
		&j.PostedBy, &j.IsActive, &expires, &j.CreatedAt)
	if err != nil {
		return nil, translate(err)
	}
	j.ExpiresAt = timePtr(expires)
	return &j, nil
}

func (s *JobStore) Create(ctx context.Context, j *models.Job) error {
	if j.ID == "" {
		j.ID = uuid.NewString()
	}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO jobs (id, title, company, description, location, link, tags, target_roles, colleges,
			posted_by, is_active, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING created_at`,
		j.ID, j.Title, j.Company, j.Description, j.Location, j.Link, pq.Array(nonNil(j.Tags)),
		pq.Array(nonNil(j.TargetRoles)), pq.Array(nonNil(j.Colleges)), j.PostedBy, j.IsActive,
		nullTime(j.ExpiresAt),
	).Scan(&j.CreatedAt)
	return translate(err)
}

func (s *JobStore) Get(ctx context.Context, id string) (*models.Job, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}
	return scanJob(s.db.QueryRowContext(ctx, "SELECT "+jobColumns+" FROM jobs WHERE id = $1", id))
}

// ListActive returns open postings that have not expired at now.
func (s *JobStore) ListActive(ctx context.Context, now time.Time, p Page) ([]*models.Job, error) {
	p = p.normalize()
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT %s FROM jobs
		WHERE is_active = TRUE AND (expires_at IS NULL OR expires_at > $1)
		ORDER BY created_at DESC LIMIT $2 OFFSET $3`, jobColumns),
		now, p.Limit, p.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	jobs := []*models.Job{}
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

func (s *JobStore) Update(ctx context.Context, j *models.Job) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE jobs SET title = $2, company = $3, description = $4, location = $5, link = $6, tags = $7,
			target_roles = $8, colleges = $9, is_active = $10, expires_at = $11
		WHERE id = $1`,
		j.ID, j.Title, j.Company, j.Description, j.Location, j.Link, pq.Array(nonNil(j.Tags)),
		pq.Array(nonNil(j.TargetRoles)), pq.Array(nonNil(j.Colleges)), j.IsActive, nullTime(j.ExpiresAt))
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *JobStore) Delete(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrNotFound
	}
	res, err := s.db.ExecContext(ctx, "DELETE FROM jobs WHERE id = $1", id)
	if err != nil {
		return err
	}
	return requireRow(res)
}
