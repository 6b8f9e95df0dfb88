package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/campusconnect/backend/internal/models"
	"github.com/campusconnect/backend/internal/visibility"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

const userColumns = `id, username, email, password_hash, role, college, first_name, last_name, department,
	interests, notification_prefs, longitude, latitude, radius_m, fcm_tokens, is_active, last_active,
	created_at, updated_at`

type UserStore struct {
	db *sql.DB
}

func NewUserStore(db *sql.DB) *UserStore {
	return &UserStore{db: db}
}

func scanUser(row scanner) (*models.User, error) {
	var (
		u          models.User
		prefs      []byte
		lon, lat   sql.NullFloat64
		radius     sql.NullFloat64
		lastActive sql.NullTime
	)
	err := row.Scan(
		&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.Role, &u.College,
		&u.FirstName, &u.LastName, &u.Department, pq.Array(&u.Interests), &prefs,
		&lon, &lat, &radius, pq.Array(&u.DeviceTokens), &u.IsActive, &lastActive,
		&u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, translate(err)
	}

	u.NotificationPrefs = models.DefaultNotificationPrefs()
	if len(prefs) > 0 {
		if err := json.Unmarshal(prefs, &u.NotificationPrefs); err != nil {
			return nil, fmt.Errorf("decoding notification preferences for %s: %w", u.ID, err)
		}
	}
	if lon.Valid && lat.Valid {
		u.Location = &models.Location{Longitude: lon.Float64, Latitude: lat.Float64, RadiusM: radius.Float64}
	}
	u.LastActive = timePtr(lastActive)
	return &u, nil
}

func locationArgs(loc *models.Location) (lon, lat, radius sql.NullFloat64) {
	if loc == nil {
		return
	}
	lon = sql.NullFloat64{Float64: loc.Longitude, Valid: true}
	lat = sql.NullFloat64{Float64: loc.Latitude, Valid: true}
	if loc.RadiusM > 0 {
		radius = sql.NullFloat64{Float64: loc.RadiusM, Valid: true}
	}
	return
}

// Create inserts u, assigning an ID when empty. Duplicate usernames or emails yield
// ErrAlreadyExists.
func (s *UserStore) Create(ctx context.Context, u *models.User) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	u.Email = models.NormalizeEmail(u.Email)
	prefs, err := json.Marshal(u.NotificationPrefs)
	if err != nil {
		return err
	}
	lon, lat, radius := locationArgs(u.Location)

	err = s.db.QueryRowContext(ctx, `
		INSERT INTO users (id, username, email, password_hash, role, college, first_name, last_name,
			department, interests, notification_prefs, longitude, latitude, radius_m, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING created_at, updated_at`,
		u.ID, u.Username, u.Email, u.PasswordHash, u.Role, u.College, u.FirstName, u.LastName,
		u.Department, pq.Array(nonNil(u.Interests)), string(prefs), lon, lat, radius, u.IsActive,
	).Scan(&u.CreatedAt, &u.UpdatedAt)
	return translate(err)
}

func (s *UserStore) GetByID(ctx context.Context, id string) (*models.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}
	return scanUser(s.db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE id = $1", id))
}

// GetByUsername matches the username exactly, case included.
func (s *UserStore) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return scanUser(s.db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE username = $1", username))
}

func (s *UserStore) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return scanUser(s.db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE email = $1", models.NormalizeEmail(email)))
}

// Update writes every mutable column of u. Device tokens and credentials are left
// alone; they have dedicated operations.
func (s *UserStore) Update(ctx context.Context, u *models.User) error {
	u.Email = models.NormalizeEmail(u.Email)
	prefs, err := json.Marshal(u.NotificationPrefs)
	if err != nil {
		return err
	}
	lon, lat, radius := locationArgs(u.Location)

	err = s.db.QueryRowContext(ctx, `
		UPDATE users SET email = $2, role = $3, college = $4, first_name = $5, last_name = $6,
			department = $7, interests = $8, notification_prefs = $9, longitude = $10, latitude = $11,
			radius_m = $12, is_active = $13, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`,
		u.ID, u.Email, u.Role, u.College, u.FirstName, u.LastName, u.Department,
		pq.Array(nonNil(u.Interests)), string(prefs), lon, lat, radius, u.IsActive,
	).Scan(&u.UpdatedAt)
	return translate(err)
}

func (s *UserStore) UpdatePassword(ctx context.Context, id, hash string) error {
	res, err := s.db.ExecContext(ctx, "UPDATE users SET password_hash = $2, updated_at = NOW() WHERE id = $1", id, hash)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *UserStore) Delete(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrNotFound
	}
	res, err := s.db.ExecContext(ctx, "DELETE FROM users WHERE id = $1", id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

type UserFilter struct {
	Role    models.Role
	College string
	Page
}

func (s *UserStore) List(ctx context.Context, f UserFilter) ([]*models.User, error) {
	var (
		conds []string
		args  []any
	)
	if f.Role != "" {
		args = append(args, f.Role)
		conds = append(conds, fmt.Sprintf("role = $%d", len(args)))
	}
	if f.College != "" {
		args = append(args, f.College)
		conds = append(conds, fmt.Sprintf("college = $%d", len(args)))
	}
	query := "SELECT " + userColumns + " FROM users"
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	p := f.Page.normalize()
	args = append(args, p.Limit, p.Offset)
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := []*models.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// AddDeviceToken appends token unless the user already holds it.
func (s *UserStore) AddDeviceToken(ctx context.Context, id, token string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users SET fcm_tokens = CASE WHEN $2 = ANY(fcm_tokens) THEN fcm_tokens
			ELSE array_append(fcm_tokens, $2) END, updated_at = NOW()
		WHERE id = $1`, id, token)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *UserStore) RemoveDeviceToken(ctx context.Context, id, token string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE users SET fcm_tokens = array_remove(fcm_tokens, $2), updated_at = NOW() WHERE id = $1", id, token)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// PruneTokens removes the given tokens from whichever users hold them and reports how
// many users changed. Removing tokens that are already gone is a no-op.
func (s *UserStore) PruneTokens(ctx context.Context, tokens []string) (int64, error) {
	if len(tokens) == 0 {
		return 0, nil
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE users SET fcm_tokens = ARRAY(SELECT t FROM unnest(fcm_tokens) AS t WHERE t <> ALL($1::text[]))
		WHERE fcm_tokens && $1::text[]`, pq.Array(tokens))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Recipient is a user id with its registered push tokens.
type Recipient struct {
	UserID string
	Tokens []string
}

// Recipients returns users matching the audience clause that have at least one token.
func (s *UserStore) Recipients(ctx context.Context, c visibility.Clause) ([]Recipient, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, fcm_tokens FROM users WHERE "+c.SQL+" AND cardinality(fcm_tokens) > 0", c.Args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Recipient
	for rows.Next() {
		var r Recipient
		if err := rows.Scan(&r.UserID, pq.Array(&r.Tokens)); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *UserStore) TouchLastActive(ctx context.Context, id string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, "UPDATE users SET last_active = $2 WHERE id = $1", id, at)
	return err
}
