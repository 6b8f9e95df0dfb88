package services

import (
	"context"
	"net/http"
	"time"

	"github.com/campusconnect/backend/internal/middleware"
	"github.com/campusconnect/backend/internal/models"
	"github.com/campusconnect/backend/internal/store"
	"github.com/campusconnect/backend/internal/visibility"
	"github.com/sirupsen/logrus"
)

// The repositories below are satisfied by the postgres stores in internal/store.

type UserRepository interface {
	Create(ctx context.Context, u *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Update(ctx context.Context, u *models.User) error
	UpdatePassword(ctx context.Context, id, hash string) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, f store.UserFilter) ([]*models.User, error)
	AddDeviceToken(ctx context.Context, id, token string) error
	RemoveDeviceToken(ctx context.Context, id, token string) error
	TouchLastActive(ctx context.Context, id string, at time.Time) error
}

type FeedRepository interface {
	Create(ctx context.Context, item *models.FeedItem) error
	Get(ctx context.Context, kind models.Kind, id string) (*models.FeedItem, error)
	List(ctx context.Context, kind models.Kind, c visibility.Clause, p store.Page) ([]*models.FeedItem, error)
	Update(ctx context.Context, item *models.FeedItem) error
	Delete(ctx context.Context, kind models.Kind, id string) error
}

type RegistrationRepository interface {
	Register(ctx context.Context, eventID, userID string) (time.Time, error)
	Unregister(ctx context.Context, eventID, userID string) error
	Attendees(ctx context.Context, eventID string) ([]string, error)
}

type JobRepository interface {
	Create(ctx context.Context, j *models.Job) error
	Get(ctx context.Context, id string) (*models.Job, error)
	ListActive(ctx context.Context, now time.Time, p store.Page) ([]*models.Job, error)
	Update(ctx context.Context, j *models.Job) error
	Delete(ctx context.Context, id string) error
}

type MentorshipRepository interface {
	Create(ctx context.Context, m *models.MentorshipRequest) error
	Get(ctx context.Context, id string) (*models.MentorshipRequest, error)
	ListFor(ctx context.Context, userID string) ([]*models.MentorshipRequest, error)
	SetStatus(ctx context.Context, id, status string) (*models.MentorshipRequest, error)
}

type ConnectionRepository interface {
	Create(ctx context.Context, c *models.Connection) error
	Get(ctx context.Context, id string) (*models.Connection, error)
	ListFor(ctx context.Context, userID, status string) ([]*models.Connection, error)
	SetStatus(ctx context.Context, id, status string) (*models.Connection, error)
}

type AlumniRepository interface {
	UpsertProfile(ctx context.Context, p *models.AlumniProfile) error
	Get(ctx context.Context, id string) (*models.AlumniCard, error)
	Search(ctx context.Context, f store.AlumniFilter) ([]*models.AlumniCard, error)
}

type EmergencyContactRepository interface {
	Create(ctx context.Context, c *models.EmergencyContact) error
	Get(ctx context.Context, id string) (*models.EmergencyContact, error)
	List(ctx context.Context, role models.Role) ([]*models.EmergencyContact, error)
	Update(ctx context.Context, c *models.EmergencyContact) error
	Delete(ctx context.Context, id string) error
}

type AuditLister interface {
	List(ctx context.Context, f store.AuditFilter) ([]*models.AuditEntry, error)
}

// ResetMailer delivers password reset links.
type ResetMailer interface {
	SendPasswordReset(ctx context.Context, u *models.User, token string) error
}

// currentUser loads the authenticated user. A token whose subject no longer exists
// answers 404; a deactivated account answers 403.
func currentUser(w http.ResponseWriter, r *http.Request, users UserRepository, log logrus.FieldLogger) (*models.User, bool) {
	claims, ok := middleware.ClaimsFrom(r.Context())
	if !ok {
		SendErrorResponse(w, middleware.InvalidTokenMessage, http.StatusUnauthorized, nil)
		return nil, false
	}
	u, err := users.GetByID(r.Context(), claims.Subject)
	if err != nil {
		writeStoreError(w, log, err, "User")
		return nil, false
	}
	if !u.IsActive {
		SendErrorResponse(w, "Account is disabled", http.StatusForbidden, nil)
		return nil, false
	}
	return u, true
}
