package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/campusconnect/backend/internal/models"
	"github.com/google/uuid"
)

// AuditStore is append-only: there is no update or delete.
type AuditStore struct {
	db *sql.DB
}

func NewAuditStore(db *sql.DB) *AuditStore {
	return &AuditStore{db: db}
}

func (s *AuditStore) Insert(ctx context.Context, e *models.AuditEntry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	details := []byte(e.Details)
	if len(details) == 0 {
		details = []byte("{}")
	}
	var performedBy sql.NullString
	if e.PerformedBy != "" {
		performedBy = sql.NullString{String: e.PerformedBy, Valid: true}
	}

	return s.db.QueryRowContext(ctx, `
		INSERT INTO audit_logs (id, action, performed_by, role, target_resource, target_id, details, ip_address)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at`,
		e.ID, e.Action, performedBy, e.Role, e.TargetResource, e.TargetID, string(details), e.IPAddress,
	).Scan(&e.CreatedAt)
}

type AuditFilter struct {
	Action         string
	PerformedBy    string
	TargetResource string
	Page
}

func (s *AuditStore) List(ctx context.Context, f AuditFilter) ([]*models.AuditEntry, error) {
	var (
		conds []string
		args  []any
	)
	add := func(col, v string) {
		if v == "" {
			return
		}
		args = append(args, v)
		conds = append(conds, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	add("action", f.Action)
	add("performed_by::text", f.PerformedBy)
	add("target_resource", f.TargetResource)

	query := "SELECT id, action, performed_by, role, target_resource, target_id, details, ip_address, created_at FROM audit_logs"
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

	entries := []*models.AuditEntry{}
	for rows.Next() {
		var (
			e           models.AuditEntry
			performedBy sql.NullString
			details     []byte
		)
		if err := rows.Scan(&e.ID, &e.Action, &performedBy, &e.Role, &e.TargetResource,
			&e.TargetID, &details, &e.IPAddress, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.PerformedBy = performedBy.String
		e.Details = details
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}
