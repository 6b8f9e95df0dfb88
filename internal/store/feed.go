package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/campusconnect/backend/internal/models"
	"github.com/campusconnect/backend/internal/visibility"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

const feedColumns = `id, title, body, category, target_roles, colleges, tags, longitude, latitude, radius_m,
	is_published, is_archived, expires_at, scheduled_at, starts_at, ends_at, venue, status, created_by,
	created_at, updated_at`

// FeedStore serves news, announcements and events. The three tables share a layout.
type FeedStore struct {
	db *sql.DB
}

func NewFeedStore(db *sql.DB) *FeedStore {
	return &FeedStore{db: db}
}

func table(kind models.Kind) (string, error) {
	t := kind.Table()
	if t == "" {
		return "", fmt.Errorf("unknown feed kind %q", kind)
	}
	return t, nil
}

func scanFeedItem(kind models.Kind, row scanner) (*models.FeedItem, error) {
	var (
		item               models.FeedItem
		lon, lat, radius   sql.NullFloat64
		expires, scheduled sql.NullTime
		starts, ends       sql.NullTime
	)
	err := row.Scan(
		&item.ID, &item.Title, &item.Body, &item.Category, pq.Array(&item.TargetRoles),
		pq.Array(&item.Colleges), pq.Array(&item.Tags), &lon, &lat, &radius,
		&item.IsPublished, &item.IsArchived, &expires, &scheduled, &starts, &ends,
		&item.Venue, &item.Status, &item.CreatedBy, &item.CreatedAt, &item.UpdatedAt,
	)
	if err != nil {
		return nil, translate(err)
	}
	item.Kind = kind
	if lon.Valid && lat.Valid {
		item.Geofence = &models.Geofence{Longitude: lon.Float64, Latitude: lat.Float64, RadiusM: radius.Float64}
	}
	item.ExpiresAt = timePtr(expires)
	item.ScheduledAt = timePtr(scheduled)
	item.StartsAt = timePtr(starts)
	item.EndsAt = timePtr(ends)
	return &item, nil
}

func geofenceArgs(g *models.Geofence) (lon, lat, radius sql.NullFloat64) {
	if g == nil {
		return
	}
	return locationArgs(&models.Location{Longitude: g.Longitude, Latitude: g.Latitude, RadiusM: g.RadiusM})
}

func (s *FeedStore) Create(ctx context.Context, item *models.FeedItem) error {
	t, err := table(item.Kind)
	if err != nil {
		return err
	}
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	if item.Status == "" {
		item.Status = models.EventStatusActive
	}
	lon, lat, radius := geofenceArgs(item.Geofence)

	err = s.db.QueryRowContext(ctx, `
		INSERT INTO `+t+` (id, title, body, category, target_roles, colleges, tags, longitude, latitude,
			radius_m, is_published, is_archived, expires_at, scheduled_at, starts_at, ends_at, venue, status, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
		RETURNING created_at, updated_at`,
		item.ID, item.Title, item.Body, item.Category, pq.Array(nonNil(item.TargetRoles)),
		pq.Array(nonNil(item.Colleges)), pq.Array(nonNil(item.Tags)), lon, lat, radius,
		item.IsPublished, item.IsArchived, nullTime(item.ExpiresAt), nullTime(item.ScheduledAt),
		nullTime(item.StartsAt), nullTime(item.EndsAt), item.Venue, item.Status, item.CreatedBy,
	).Scan(&item.CreatedAt, &item.UpdatedAt)
	return translate(err)
}

func (s *FeedStore) Get(ctx context.Context, kind models.Kind, id string) (*models.FeedItem, error) {
	t, err := table(kind)
	if err != nil {
		return nil, err
	}
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}
	return scanFeedItem(kind, s.db.QueryRowContext(ctx, "SELECT "+feedColumns+" FROM "+t+" WHERE id = $1", id))
}

// List returns items of kind matching c, newest first.
func (s *FeedStore) List(ctx context.Context, kind models.Kind, c visibility.Clause, p Page) ([]*models.FeedItem, error) {
	t, err := table(kind)
	if err != nil {
		return nil, err
	}
	p = p.normalize()
	args := append(append([]any{}, c.Args...), p.Limit, p.Offset)
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d",
		feedColumns, t, c.SQL, len(args)-1, len(args))
	return s.query(ctx, kind, query, args...)
}

// Upcoming returns published, active events starting within [from, to).
func (s *FeedStore) Upcoming(ctx context.Context, from, to time.Time) ([]*models.FeedItem, error) {
	return s.query(ctx, models.KindEvent, `
		SELECT `+feedColumns+` FROM events
		WHERE is_published = TRUE AND is_archived = FALSE AND status = $1 AND starts_at >= $2 AND starts_at < $3
		ORDER BY starts_at`, models.EventStatusActive, from, to)
}

func (s *FeedStore) query(ctx context.Context, kind models.Kind, query string, args ...any) ([]*models.FeedItem, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []*models.FeedItem{}
	for rows.Next() {
		item, err := scanFeedItem(kind, rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// Update writes the mutable columns of item. Ownership and creation time are fixed.
func (s *FeedStore) Update(ctx context.Context, item *models.FeedItem) error {
	t, err := table(item.Kind)
	if err != nil {
		return err
	}
	lon, lat, radius := geofenceArgs(item.Geofence)

	err = s.db.QueryRowContext(ctx, `
		UPDATE `+t+` SET title = $2, body = $3, category = $4, target_roles = $5, colleges = $6, tags = $7,
			longitude = $8, latitude = $9, radius_m = $10, is_published = $11, is_archived = $12,
			expires_at = $13, scheduled_at = $14, starts_at = $15, ends_at = $16, venue = $17, status = $18,
			updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`,
		item.ID, item.Title, item.Body, item.Category, pq.Array(nonNil(item.TargetRoles)),
		pq.Array(nonNil(item.Colleges)), pq.Array(nonNil(item.Tags)), lon, lat, radius,
		item.IsPublished, item.IsArchived, nullTime(item.ExpiresAt), nullTime(item.ScheduledAt),
		nullTime(item.StartsAt), nullTime(item.EndsAt), item.Venue, item.Status,
	).Scan(&item.UpdatedAt)
	return translate(err)
}

func (s *FeedStore) Delete(ctx context.Context, kind models.Kind, id string) error {
	t, err := table(kind)
	if err != nil {
		return err
	}
	if _, err := uuid.Parse(id); err != nil {
		return ErrNotFound
	}
	res, err := s.db.ExecContext(ctx, "DELETE FROM "+t+" WHERE id = $1", id)
	if err != nil {
		return err
	}
	return requireRow(res)
}
