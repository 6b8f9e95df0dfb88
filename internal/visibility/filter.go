// Package visibility decides which feed items a viewer may see, both as a SQL
// predicate for listing queries and as an in-memory check for single reads.
package visibility

import (
	"fmt"
	"strings"
	"time"

	"github.com/campusconnect/backend/internal/models"
	"github.com/lib/pq"
)

// Viewer is the subset of a user record the rules look at.
type Viewer struct {
	ID        string
	Role      models.Role
	College   string
	Interests []string
	Location  *models.Location
}

func ViewerFromUser(u *models.User) Viewer {
	return Viewer{
		ID:        u.ID,
		Role:      u.Role,
		College:   u.College,
		Interests: u.Interests,
		Location:  u.Location,
	}
}

// Clause is a parameterised SQL boolean expression. Placeholders are numbered from $1.
type Clause struct {
	SQL  string
	Args []any
}

type Filter struct {
	defaultRadiusM float64
	now            func() time.Time
}

func NewFilter(defaultRadiusM float64) *Filter {
	return &Filter{defaultRadiusM: defaultRadiusM, now: time.Now}
}

// Build returns the WHERE clause restricting a feed table to what v may see.
func (f *Filter) Build(v Viewer) Clause {
	args := []any{f.now().UTC()}
	conds := []string{
		"is_published = TRUE",
		"is_archived = FALSE",
		"(expires_at IS NULL OR expires_at > $1)",
		"(scheduled_at IS NULL OR scheduled_at <= $1)",
	}

	switch v.Role {
	case models.RoleSystemAdmin:
	case models.RoleCollegeAdmin:
		args = append(args, pq.Array([]string{v.College}))
		conds = append(conds, "colleges && $2::text[]")
	default:
		args = append(args,
			pq.Array(nonNil(collegeList(v.College))),
			string(v.Role),
			pq.Array(nonNil(v.Interests)),
		)
		alts := []string{
			"colleges && $2::text[]",
			"$3 = ANY(target_roles)",
			"tags && $4::text[]",
		}
		if v.Location != nil {
			args = append(args, v.Location.Latitude, v.Location.Longitude, f.radiusFor(v))
			alts = append(alts, fmt.Sprintf(
				"(category = '%s' AND latitude IS NOT NULL AND longitude IS NOT NULL AND %s <= COALESCE(NULLIF(radius_m, 0), $7))",
				models.CategoryEmergency, haversineSQL("$5", "$6"),
			))
		}
		conds = append(conds, "("+strings.Join(alts, " OR ")+")")
	}

	return Clause{SQL: strings.Join(conds, " AND "), Args: args}
}

// Visible evaluates the same rules as Build against a loaded item.
func (f *Filter) Visible(v Viewer, item *models.FeedItem) bool {
	now := f.now()
	if !item.IsPublished || item.IsArchived {
		return false
	}
	if item.ExpiresAt != nil && !item.ExpiresAt.After(now) {
		return false
	}
	if item.ScheduledAt != nil && item.ScheduledAt.After(now) {
		return false
	}

	switch v.Role {
	case models.RoleSystemAdmin:
		return true
	case models.RoleCollegeAdmin:
		return v.College != "" && contains(item.Colleges, v.College)
	}

	if v.College != "" && contains(item.Colleges, v.College) {
		return true
	}
	if contains(item.TargetRoles, string(v.Role)) {
		return true
	}
	if intersects(item.Tags, v.Interests) {
		return true
	}
	return f.insideGeofence(v, item)
}

func (f *Filter) insideGeofence(v Viewer, item *models.FeedItem) bool {
	if item.Category != models.CategoryEmergency || item.Geofence == nil || v.Location == nil {
		return false
	}
	radius := item.Geofence.RadiusM
	if radius <= 0 {
		radius = f.radiusFor(v)
	}
	d := Distance(v.Location.Latitude, v.Location.Longitude, item.Geofence.Latitude, item.Geofence.Longitude)
	return d <= radius
}

// radiusFor is the fallback radius when an emergency item carries none.
func (f *Filter) radiusFor(v Viewer) float64 {
	if v.Location != nil && v.Location.RadiusM > 0 {
		return v.Location.RadiusM
	}
	return f.defaultRadiusM
}

func collegeList(college string) []string {
	if college == "" {
		return nil
	}
	return []string{college}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

func intersects(a, b []string) bool {
	for _, x := range a {
		if contains(b, x) {
			return true
		}
	}
	return false
}
