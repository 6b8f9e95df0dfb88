package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/campusconnect/backend/internal/models"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

const alumniCardColumns = `u.id, u.username, u.first_name, u.last_name, u.college, u.department,
	COALESCE(p.graduation_year, 0), COALESCE(p.industry, ''), COALESCE(p.company, ''),
	COALESCE(p.position, ''), COALESCE(p.expertise, '{}'), COALESCE(p.bio, ''), COALESCE(p.linkedin, ''),
	COALESCE(p.mentorship_available, FALSE), COALESCE(p.updated_at, u.updated_at)`

const alumniFrom = ` FROM users u LEFT JOIN alumni_profiles p ON p.user_id = u.id
	WHERE u.role = 'alumni' AND u.is_active`

type AlumniStore struct {
	db *sql.DB
}

func NewAlumniStore(db *sql.DB) *AlumniStore {
	return &AlumniStore{db: db}
}

// AlumniFilter narrows a search. Zero fields match everything.
type AlumniFilter struct {
	College        string
	Department     string
	Industry       string
	Expertise      string
	GraduationYear int
	MentorsOnly    bool
	Page
}

func scanAlumniCard(row scanner) (*models.AlumniCard, error) {
	var (
		c         models.AlumniCard
		expertise pq.StringArray
	)
	err := row.Scan(&c.ID, &c.Username, &c.FirstName, &c.LastName, &c.College, &c.Department,
		&c.Profile.GraduationYear, &c.Profile.Industry, &c.Profile.Company, &c.Profile.Position,
		&expertise, &c.Profile.Bio, &c.Profile.LinkedIn, &c.Profile.MentorshipAvailable, &c.Profile.UpdatedAt)
	if err != nil {
		return nil, translate(err)
	}
	c.Profile.UserID = c.ID
	c.Profile.Expertise = nonNil(expertise)
	return &c, nil
}

// UpsertProfile writes the whole profile of p.UserID, creating it on first use.
func (s *AlumniStore) UpsertProfile(ctx context.Context, p *models.AlumniProfile) error {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO alumni_profiles (user_id, graduation_year, industry, company, position, expertise,
			bio, linkedin, mentorship_available)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (user_id) DO UPDATE SET graduation_year = EXCLUDED.graduation_year,
			industry = EXCLUDED.industry, company = EXCLUDED.company, position = EXCLUDED.position,
			expertise = EXCLUDED.expertise, bio = EXCLUDED.bio, linkedin = EXCLUDED.linkedin,
			mentorship_available = EXCLUDED.mentorship_available, updated_at = NOW()
		RETURNING updated_at`,
		p.UserID, p.GraduationYear, p.Industry, p.Company, p.Position, pq.Array(nonNil(p.Expertise)),
		p.Bio, p.LinkedIn, p.MentorshipAvailable,
	).Scan(&p.UpdatedAt)
	return translate(err)
}

// Get returns an active alumnus with their profile, empty when none was written.
func (s *AlumniStore) Get(ctx context.Context, id string) (*models.AlumniCard, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}
	return scanAlumniCard(s.db.QueryRowContext(ctx, "SELECT "+alumniCardColumns+alumniFrom+" AND u.id = $1", id))
}

// Search lists active alumni matching f, ordered by username.
func (s *AlumniStore) Search(ctx context.Context, f AlumniFilter) ([]*models.AlumniCard, error) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if f.College != "" {
		add("u.college = $%d", f.College)
	}
	if f.Department != "" {
		add("u.department = $%d", f.Department)
	}
	if f.Industry != "" {
		add("p.industry = $%d", f.Industry)
	}
	if f.Expertise != "" {
		add("$%d = ANY(p.expertise)", f.Expertise)
	}
	if f.GraduationYear != 0 {
		add("p.graduation_year = $%d", f.GraduationYear)
	}
	if f.MentorsOnly {
		conds = append(conds, "p.mentorship_available")
	}

	query := "SELECT " + alumniCardColumns + alumniFrom
	if len(conds) > 0 {
		query += " AND " + strings.Join(conds, " AND ")
	}
	p := f.Page.normalize()
	args = append(args, p.Limit, p.Offset)
	query += fmt.Sprintf(" ORDER BY u.username LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []*models.AlumniCard{}
	for rows.Next() {
		c, err := scanAlumniCard(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
