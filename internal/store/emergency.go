package store

import (
	"context"
	"database/sql"

	"github.com/campusconnect/backend/internal/models"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

const contactColumns = "id, name, phone, category, description, location, priority, visible_to, created_at, updated_at"

type EmergencyContactStore struct {
	db *sql.DB
}

func NewEmergencyContactStore(db *sql.DB) *EmergencyContactStore {
	return &EmergencyContactStore{db: db}
}

func scanContact(row scanner) (*models.EmergencyContact, error) {
	var (
		c         models.EmergencyContact
		visibleTo pq.StringArray
	)
	err := row.Scan(&c.ID, &c.Name, &c.Phone, &c.Category, &c.Description, &c.Location, &c.Priority,
		&visibleTo, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, translate(err)
	}
	c.VisibleTo = make([]models.Role, len(visibleTo))
	for i, r := range visibleTo {
		c.VisibleTo[i] = models.Role(r)
	}
	return &c, nil
}

func roleStrings(roles []models.Role) []string {
	out := make([]string, len(roles))
	for i, r := range roles {
		out[i] = string(r)
	}
	return out
}

func (s *EmergencyContactStore) Create(ctx context.Context, c *models.EmergencyContact) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO emergency_contacts (id, name, phone, category, description, location, priority, visible_to)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at`,
		c.ID, c.Name, c.Phone, c.Category, c.Description, c.Location, c.Priority, pq.Array(roleStrings(c.VisibleTo)),
	).Scan(&c.CreatedAt, &c.UpdatedAt)
	return translate(err)
}

func (s *EmergencyContactStore) Get(ctx context.Context, id string) (*models.EmergencyContact, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}
	return scanContact(s.db.QueryRowContext(ctx,
		"SELECT "+contactColumns+" FROM emergency_contacts WHERE id = $1", id))
}

// List returns the contacts role may see, most urgent first. An empty role lists all.
func (s *EmergencyContactStore) List(ctx context.Context, role models.Role) ([]*models.EmergencyContact, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+contactColumns+` FROM emergency_contacts
		WHERE $1 = '' OR cardinality(visible_to) = 0 OR $1 = ANY(visible_to)
		ORDER BY priority, name`, string(role))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []*models.EmergencyContact{}
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *EmergencyContactStore) Update(ctx context.Context, c *models.EmergencyContact) error {
	err := s.db.QueryRowContext(ctx, `
		UPDATE emergency_contacts SET name = $2, phone = $3, category = $4, description = $5,
			location = $6, priority = $7, visible_to = $8, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`,
		c.ID, c.Name, c.Phone, c.Category, c.Description, c.Location, c.Priority, pq.Array(roleStrings(c.VisibleTo)),
	).Scan(&c.UpdatedAt)
	return translate(err)
}

func (s *EmergencyContactStore) Delete(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrNotFound
	}
	res, err := s.db.ExecContext(ctx, "DELETE FROM emergency_contacts WHERE id = $1", id)
	if err != nil {
		return err
	}
	return requireRow(res)
}
