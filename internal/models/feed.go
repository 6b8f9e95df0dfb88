package models

import (
	"encoding/json"
	"time"
)

// Kind identifies a feed collection.
type Kind string

const (
	KindNews         Kind = "news"
	KindAnnouncement Kind = "announcement"
	KindEvent        Kind = "event"
)

// Table returns the table backing the kind. Only whitelisted names are returned.
func (k Kind) Table() string {
	switch k {
	case KindNews:
		return "news"
	case KindAnnouncement:
		return "announcements"
	case KindEvent:
		return "events"
	}
	return ""
}

// PrefKey returns the notification preference governing new items of this kind.
func (k Kind) PrefKey() string {
	switch k {
	case KindNews:
		return PrefNews
	case KindAnnouncement:
		return PrefAnnouncements
	default:
		return PrefEvents
	}
}

const CategoryEmergency = "emergency"

const (
	EventStatusActive    = "active"
	EventStatusCancelled = "cancelled"
)

// Geofence is a circular target region in degrees and meters.
type Geofence struct {
	Longitude float64 `json:"longitude" validate:"gte=-180,lte=180"`
	Latitude  float64 `json:"latitude" validate:"gte=-90,lte=90"`
	RadiusM   float64 `json:"radius,omitempty" validate:"gte=0"`
}

// FeedItem is a news item, announcement or event.
type FeedItem struct {
	ID          string     `json:"id"`
	Kind        Kind       `json:"kind"`
	Title       string     `json:"title"`
	Body        string     `json:"body"`
	Category    string     `json:"category,omitempty"`
	TargetRoles []string   `json:"targetRoles"`
	Colleges    []string   `json:"colleges"`
	Tags        []string   `json:"tags"`
	Geofence    *Geofence  `json:"geofence,omitempty"`
	IsPublished bool       `json:"isPublished"`
	IsArchived  bool       `json:"isArchived"`
	ExpiresAt   *time.Time `json:"expiresAt,omitempty"`
	ScheduledAt *time.Time `json:"scheduledAt,omitempty"`
	StartsAt    *time.Time `json:"startsAt,omitempty"`
	EndsAt      *time.Time `json:"endsAt,omitempty"`
	Venue       string     `json:"venue,omitempty"`
	Status      string     `json:"status,omitempty"`
	CreatedBy   string     `json:"createdBy"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// Job is a job opportunity posting.
type Job struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Company     string     `json:"company"`
	Description string     `json:"description,omitempty"`
	Location    string     `json:"location,omitempty"`
	Link        string     `json:"link,omitempty"`
	Tags        []string   `json:"tags"`
	TargetRoles []string   `json:"targetRoles"`
	Colleges    []string   `json:"colleges"`
	PostedBy    string     `json:"postedBy"`
	IsActive    bool       `json:"isActive"`
	ExpiresAt   *time.Time `json:"expiresAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
}

const (
	MentorshipPending  = "pending"
	MentorshipApproved = "approved"
	MentorshipDeclined = "declined"
)

type MentorshipRequest struct {
	ID        string    `json:"id"`
	StudentID string    `json:"studentId"`
	AlumniID  string    `json:"alumniId"`
	Message   string    `json:"message,omitempty"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// AuditEntry is one append-only administrative log record.
type AuditEntry struct {
	ID             string          `json:"id"`
	Action         string          `json:"action"`
	PerformedBy    string          `json:"performedBy,omitempty"`
	Role           string          `json:"role"`
	TargetResource string          `json:"targetResource"`
	TargetID       string          `json:"targetId"`
	Details        json.RawMessage `json:"details,omitempty"`
	IPAddress      string          `json:"ipAddress,omitempty"`
	CreatedAt      time.Time       `json:"timestamp"`
}
