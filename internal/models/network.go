package models

import "time"

// AlumniProfile is the career profile an alumnus keeps for search and mentoring.
type AlumniProfile struct {
	UserID              string    `json:"userId"`
	GraduationYear      int       `json:"graduationYear,omitempty" example:"2018"`
	Industry            string    `json:"industry,omitempty" example:"Telecommunications"`
	Company             string    `json:"company,omitempty"`
	Position            string    `json:"position,omitempty"`
	Expertise           []string  `json:"expertise"`
	Bio                 string    `json:"bio,omitempty"`
	LinkedIn            string    `json:"linkedIn,omitempty"`
	MentorshipAvailable bool      `json:"mentorshipAvailable"`
	UpdatedAt           time.Time `json:"updatedAt"`
}

// AlumniCard is the public view of an alumnus returned by search.
type AlumniCard struct {
	ID         string        `json:"id"`
	Username   string        `json:"username"`
	FirstName  string        `json:"firstName,omitempty"`
	LastName   string        `json:"lastName,omitempty"`
	College    string        `json:"college,omitempty"`
	Department string        `json:"department,omitempty"`
	Profile    AlumniProfile `json:"profile"`
}

const (
	ConnectionPending  = "pending"
	ConnectionAccepted = "accepted"
	ConnectionRejected = "rejected"
)

// Connection links two users. At most one exists per pair, whichever side asked.
type Connection struct {
	ID          string    `json:"id"`
	RequesterID string    `json:"requesterId"`
	RecipientID string    `json:"recipientId"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Involves reports whether userID is either side of c.
func (c *Connection) Involves(userID string) bool {
	return c.RequesterID == userID || c.RecipientID == userID
}

var EmergencyCategories = []string{"medical", "security", "fire", "counseling"}

// EmergencyContact is a campus hotline. An empty VisibleTo shows it to every role.
type EmergencyContact struct {
	ID          string    `json:"id"`
	Name        string    `json:"name" example:"Campus Security"`
	Phone       string    `json:"phone" example:"+255 22 241 0500"`
	Category    string    `json:"category" example:"security"`
	Description string    `json:"description,omitempty"`
	Location    string    `json:"location,omitempty"`
	Priority    int       `json:"priority"`
	VisibleTo   []Role    `json:"visibleTo"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// VisibleToRole reports whether r may see c. Admins see every contact.
func (c *EmergencyContact) VisibleToRole(r Role) bool {
	if len(c.VisibleTo) == 0 || r.IsAdmin() {
		return true
	}
	for _, v := range c.VisibleTo {
		if v == r {
			return true
		}
	}
	return false
}
