package visibility

import (
	"fmt"
	"strings"

	"github.com/campusconnect/backend/internal/models"
	"github.com/lib/pq"
)

// Audience describes the users a notification is meant for.
//
// UserIDs and OnlyRoles are hard restrictions that must all hold. Colleges, Roles, Tags and
// Geofence are soft targeting joined with OR, mirroring feed visibility; when all of
// them are empty every user passing the restrictions is included.
type Audience struct {
	Pref    string
	UserIDs []string

	OnlyRoles []string

	Colleges []string
	Roles    []string
	Tags     []string
	Geofence *models.Geofence

	DefaultRadiusM float64
}

// AudienceFor builds the audience for a newly published feed item.
func AudienceFor(item *models.FeedItem, defaultRadiusM float64) Audience {
	a := Audience{
		Pref:           item.Kind.PrefKey(),
		Colleges:       item.Colleges,
		Roles:          item.TargetRoles,
		Tags:           item.Tags,
		DefaultRadiusM: defaultRadiusM,
	}
	if item.Category == models.CategoryEmergency {
		a.Geofence = item.Geofence
	}
	return a
}

type clauseBuilder struct {
	conds []string
	args  []any
}

func (b *clauseBuilder) arg(v any) string {
	b.args = append(b.args, v)
	return fmt.Sprintf("$%d", len(b.args))
}

// Clause renders the audience as a WHERE clause over the users table.
func (a Audience) Clause() Clause {
	b := &clauseBuilder{}
	b.conds = append(b.conds, "is_active = TRUE")
	if a.Pref != "" {
		b.conds = append(b.conds, fmt.Sprintf("COALESCE((notification_prefs->>%s)::boolean, TRUE)", b.arg(a.Pref)))
	}
	if len(a.UserIDs) > 0 {
		b.conds = append(b.conds, fmt.Sprintf("id = ANY(%s::uuid[])", b.arg(pq.Array(a.UserIDs))))
	}
	if len(a.OnlyRoles) > 0 {
		b.conds = append(b.conds, fmt.Sprintf("role = ANY(%s::text[])", b.arg(pq.Array(a.OnlyRoles))))
	}

	var alts []string
	if len(a.Colleges) > 0 {
		alts = append(alts, fmt.Sprintf("college = ANY(%s::text[])", b.arg(pq.Array(a.Colleges))))
	}
	if len(a.Roles) > 0 {
		alts = append(alts, fmt.Sprintf("role = ANY(%s::text[])", b.arg(pq.Array(a.Roles))))
	}
	if len(a.Tags) > 0 {
		alts = append(alts, fmt.Sprintf("interests && %s::text[]", b.arg(pq.Array(a.Tags))))
	}
	if a.Geofence != nil {
		lat, lon := b.arg(a.Geofence.Latitude), b.arg(a.Geofence.Longitude)
		alts = append(alts, fmt.Sprintf(
			"(latitude IS NOT NULL AND longitude IS NOT NULL AND %s <= %s)",
			haversineSQL(lat, lon), b.arg(a.radius()),
		))
	}
	if len(alts) > 0 {
		b.conds = append(b.conds, "("+strings.Join(alts, " OR ")+")")
	}

	return Clause{SQL: strings.Join(b.conds, " AND "), Args: b.args}
}

// Matches evaluates the audience against a loaded user.
func (a Audience) Matches(u *models.User) bool {
	if !u.IsActive {
		return false
	}
	if a.Pref != "" && !u.NotificationPrefs.Enabled(a.Pref) {
		return false
	}
	if len(a.UserIDs) > 0 && !contains(a.UserIDs, u.ID) {
		return false
	}
	if len(a.OnlyRoles) > 0 && !contains(a.OnlyRoles, string(u.Role)) {
		return false
	}

	if len(a.Colleges) == 0 && len(a.Roles) == 0 && len(a.Tags) == 0 && a.Geofence == nil {
		return true
	}
	if u.College != "" && contains(a.Colleges, u.College) {
		return true
	}
	if contains(a.Roles, string(u.Role)) {
		return true
	}
	if intersects(a.Tags, u.Interests) {
		return true
	}
	if a.Geofence != nil && u.Location != nil {
		d := Distance(u.Location.Latitude, u.Location.Longitude, a.Geofence.Latitude, a.Geofence.Longitude)
		return d <= a.radius()
	}
	return false
}

func (a Audience) radius() float64 {
	if a.Geofence != nil && a.Geofence.RadiusM > 0 {
		return a.Geofence.RadiusM
	}
	return a.DefaultRadiusM
}
