package models

import (
	"strings"
	"time"
)

// Role is the canonical account role.
type Role string

const (
	RoleStudent      Role = "student"
	RoleAlumni       Role = "alumni"
	RoleVisitor      Role = "visitor"
	RoleCollegeAdmin Role = "college_admin"
	RoleSystemAdmin  Role = "system_admin"
)

// AllRoles lists every valid role.
var AllRoles = []Role{RoleStudent, RoleAlumni, RoleVisitor, RoleCollegeAdmin, RoleSystemAdmin}

// AdminRoles are the roles allowed to publish feed content.
var AdminRoles = []Role{RoleCollegeAdmin, RoleSystemAdmin}

func (r Role) Valid() bool {
	for _, role := range AllRoles {
		if r == role {
			return true
		}
	}
	return false
}

func (r Role) IsAdmin() bool {
	return r == RoleCollegeAdmin || r == RoleSystemAdmin
}

// RequiresCollege reports whether accounts with this role must carry a college.
func (r Role) RequiresCollege() bool {
	return r == RoleStudent || r == RoleCollegeAdmin
}

// Location is a user's last-known position. RadiusM is optional.
type Location struct {
	Longitude float64 `json:"longitude" validate:"gte=-180,lte=180"`
	Latitude  float64 `json:"latitude" validate:"gte=-90,lte=90"`
	RadiusM   float64 `json:"radius,omitempty" validate:"gte=0"`
}

// NotificationPrefs holds per-category push preferences.
type NotificationPrefs struct {
	News          bool `json:"news"`
	Announcements bool `json:"announcements"`
	Events        bool `json:"events"`
	Reminders     bool `json:"reminders"`
	Cancellations bool `json:"cancellations"`
	Jobs          bool `json:"jobs"`
	Mentorship    bool `json:"mentorship"`
	AdminActions  bool `json:"adminActions"`
}

// Preference keys as stored in the notification_prefs JSON column.
const (
	PrefNews          = "news"
	PrefAnnouncements = "announcements"
	PrefEvents        = "events"
	PrefReminders     = "reminders"
	PrefCancellations = "cancellations"
	PrefJobs          = "jobs"
	PrefMentorship    = "mentorship"
	PrefAdminActions  = "adminActions"
)

func DefaultNotificationPrefs() NotificationPrefs {
	return NotificationPrefs{
		News:          true,
		Announcements: true,
		Events:        true,
		Reminders:     true,
		Cancellations: true,
		Jobs:          true,
		Mentorship:    true,
		AdminActions:  true,
	}
}

// Enabled reports whether the given preference key is switched on.
func (p NotificationPrefs) Enabled(key string) bool {
	switch key {
	case PrefNews:
		return p.News
	case PrefAnnouncements:
		return p.Announcements
	case PrefEvents:
		return p.Events
	case PrefReminders:
		return p.Reminders
	case PrefCancellations:
		return p.Cancellations
	case PrefJobs:
		return p.Jobs
	case PrefMentorship:
		return p.Mentorship
	case PrefAdminActions:
		return p.AdminActions
	}
	return false
}

type User struct {
	ID                string            `json:"id" example:"7d9f1c2e-3b4a-4f1e-9a6b-1c2d3e4f5a6b"`
	Username          string            `json:"username" example:"jdoe"`
	Email             string            `json:"email" example:"jdoe@udsm.ac.tz"`
	PasswordHash      string            `json:"-"`
	Role              Role              `json:"role" example:"student"`
	College           string            `json:"college,omitempty" example:"CoICT"`
	FirstName         string            `json:"firstName,omitempty"`
	LastName          string            `json:"lastName,omitempty"`
	Department        string            `json:"department,omitempty"`
	Interests         []string          `json:"interests"`
	NotificationPrefs NotificationPrefs `json:"notificationPreferences"`
	Location          *Location         `json:"location,omitempty"`
	DeviceTokens      []string          `json:"-"`
	IsActive          bool              `json:"isActive"`
	LastActive        *time.Time        `json:"lastActive,omitempty"`
	CreatedAt         time.Time         `json:"createdAt"`
	UpdatedAt         time.Time         `json:"updatedAt"`
}

// FullName joins first and last name, falling back to the username.
func (u *User) FullName() string {
	switch {
	case u.FirstName != "" && u.LastName != "":
		return u.FirstName + " " + u.LastName
	case u.FirstName != "":
		return u.FirstName
	default:
		return u.Username
	}
}

// FailedAttempt is the per-username failed-login counter.
type FailedAttempt struct {
	Username    string    `json:"username" db:"username"`
	Attempts    int       `json:"attempts" db:"attempts"`
	LastAttempt time.Time `json:"lastAttempt" db:"last_attempt"`
}

// NormalizeEmail returns the stored form of an address. Lookups and uniqueness work on
// this form.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
