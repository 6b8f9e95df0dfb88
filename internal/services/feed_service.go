package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/campusconnect/backend/internal/audit"
	"github.com/campusconnect/backend/internal/authz"
	"github.com/campusconnect/backend/internal/models"
	"github.com/campusconnect/backend/internal/notify"
	"github.com/campusconnect/backend/internal/security"
	"github.com/campusconnect/backend/internal/store"
	"github.com/campusconnect/backend/internal/visibility"
	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
)

// FeedService serves news, announcements and events. Handlers are built per kind.
type FeedService struct {
	feed      FeedRepository
	regs      RegistrationRepository
	users     UserRepository
	filter    *visibility.Filter
	audit     *audit.Recorder
	fanout    *notify.Fanout
	validator *ValidationHelper
	log       logrus.FieldLogger
	now       func() time.Time
}

// FeedRequest is the body for creating a news item, announcement or event.
type FeedRequest struct {
	Title       string           `json:"title" validate:"required,max=200" example:"Graduation ceremony"`
	Body        string           `json:"body" validate:"required,max=10000"`
	Category    string           `json:"category" validate:"max=50" example:"academic"`
	TargetRoles []string         `json:"targetRoles" validate:"max=5,dive,role"`
	Colleges    []string         `json:"colleges" validate:"max=50,dive,min=1,max=100"`
	Tags        []string         `json:"tags" validate:"max=50,dive,min=1,max=50"`
	Geofence    *models.Geofence `json:"geofence"`
	IsPublished *bool            `json:"isPublished"`
	ExpiresAt   *time.Time       `json:"expiresAt"`
	ScheduledAt *time.Time       `json:"scheduledAt"`
	StartsAt    *time.Time       `json:"startsAt"`
	EndsAt      *time.Time       `json:"endsAt"`
	Venue       string           `json:"venue" validate:"max=200"`
}

// FeedPatch is the body for updating one. Absent fields are left unchanged.
type FeedPatch struct {
	Title       *string          `json:"title" validate:"omitempty,min=1,max=200"`
	Body        *string          `json:"body" validate:"omitempty,min=1,max=10000"`
	Category    *string          `json:"category" validate:"omitempty,max=50"`
	TargetRoles *[]string        `json:"targetRoles" validate:"omitempty,max=5,dive,role"`
	Colleges    *[]string        `json:"colleges" validate:"omitempty,max=50,dive,min=1,max=100"`
	Tags        *[]string        `json:"tags" validate:"omitempty,max=50,dive,min=1,max=50"`
	Geofence    *models.Geofence `json:"geofence"`
	IsPublished *bool            `json:"isPublished"`
	IsArchived  *bool            `json:"isArchived"`
	ExpiresAt   *time.Time       `json:"expiresAt"`
	ScheduledAt *time.Time       `json:"scheduledAt"`
	StartsAt    *time.Time       `json:"startsAt"`
	EndsAt      *time.Time       `json:"endsAt"`
	Venue       *string          `json:"venue" validate:"omitempty,max=200"`
}

type RegistrationResponse struct {
	Ticket
	QRCode string `json:"qrCode"` // base64 PNG
}

var kindNames = map[models.Kind]string{
	models.KindNews:         "News",
	models.KindAnnouncement: "Announcement",
	models.KindEvent:        "Event",
}

func NewFeedService(feed FeedRepository, regs RegistrationRepository, users UserRepository, filter *visibility.Filter,
	recorder *audit.Recorder, fanout *notify.Fanout, log logrus.FieldLogger) *FeedService {
	return &FeedService{
		feed:      feed,
		regs:      regs,
		users:     users,
		filter:    filter,
		audit:     recorder,
		fanout:    fanout,
		validator: NewValidationHelper(),
		log:       log.WithField("component", "feed"),
		now:       time.Now,
	}
}

// List returns the items of kind visible to the caller
// @Summary List news, announcements or events
// @Description Only items targeted at the caller's college, role, interests or (for emergencies) location are returned.
// @Tags feed
// @Produce json
// @Security BearerAuth
// @Param kind path string true "news, announcements or events"
// @Param limit query int false "Page size, at most 100"
// @Param offset query int false "Offset"
// @Success 200 {array} models.FeedItem
// @Failure 401 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /{kind} [get]
func (s *FeedService) List(kind models.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		viewer, ok := currentUser(w, r, s.users, s.log)
		if !ok {
			return
		}

		items, err := s.feed.List(r.Context(), kind, s.filter.Build(visibility.ViewerFromUser(viewer)), pageFromQuery(r))
		if err != nil {
			writeStoreError(w, s.log, err, kindNames[kind])
			return
		}
		writeJSON(w, http.StatusOK, items)
	}
}

// Get returns one item if the caller may see it
// @Summary Get a news item, announcement or event
// @Tags feed
// @Produce json
// @Security BearerAuth
// @Param kind path string true "news, announcements or events"
// @Param id path string true "Item ID"
// @Success 200 {object} models.FeedItem
// @Failure 401 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse "Missing or not visible"
// @Router /{kind}/{id} [get]
func (s *FeedService) Get(kind models.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		viewer, ok := currentUser(w, r, s.users, s.log)
		if !ok {
			return
		}
		if item, ok := s.visibleItem(w, r, kind, viewer); ok {
			writeJSON(w, http.StatusOK, item)
		}
	}
}

// visibleItem loads the {id} item and answers 404 when the viewer may not see it.
func (s *FeedService) visibleItem(w http.ResponseWriter, r *http.Request, kind models.Kind, viewer *models.User) (*models.FeedItem, bool) {
	item, err := s.feed.Get(r.Context(), kind, chi.URLParam(r, "id"))
	if err != nil {
		writeStoreError(w, s.log, err, kindNames[kind])
		return nil, false
	}
	if !s.filter.Visible(visibility.ViewerFromUser(viewer), item) {
		writeStoreError(w, s.log, store.ErrNotFound, kindNames[kind])
		return nil, false
	}
	return item, true
}

// Create publishes a new item
// @Summary Create a news item, announcement or event
// @Description College admins publish to their own college only; an empty college list defaults to it.
// @Tags feed
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param kind path string true "news, announcements or events"
// @Param request body FeedRequest true "Item"
// @Success 201 {object} models.FeedItem
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Router /{kind} [post]
func (s *FeedService) Create(kind models.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := currentUser(w, r, s.users, s.log)
		if !ok {
			return
		}

		var req FeedRequest
		if !bind(w, r, s.validator, s.log, &req) {
			return
		}
		if err := checkSchedule(kind, req.StartsAt, req.EndsAt); err != nil {
			SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
			return
		}

		caller := authz.CallerFromUser(user)
		colleges := req.Colleges
		if caller.Role == models.RoleCollegeAdmin && len(colleges) == 0 {
			colleges = []string{caller.College}
		}
		if err := authz.Authorize(caller, models.AdminRoles, colleges...); err != nil {
			s.log.WithFields(logrus.Fields{"user_id": user.ID, "colleges": colleges}).Warn("Publish outside own college rejected")
			SendErrorResponse(w, "You can only publish to your own college", http.StatusForbidden, nil)
			return
		}

		item := &models.FeedItem{
			Kind:        kind,
			Title:       req.Title,
			Body:        req.Body,
			Category:    req.Category,
			TargetRoles: orEmpty(req.TargetRoles),
			Colleges:    orEmpty(colleges),
			Tags:        orEmpty(req.Tags),
			Geofence:    req.Geofence,
			IsPublished: req.IsPublished == nil || *req.IsPublished,
			ExpiresAt:   req.ExpiresAt,
			ScheduledAt: req.ScheduledAt,
			StartsAt:    req.StartsAt,
			EndsAt:      req.EndsAt,
			Venue:       req.Venue,
			CreatedBy:   user.ID,
		}
		if kind == models.KindEvent {
			item.Status = models.EventStatusActive
		}
		if err := s.feed.Create(r.Context(), item); err != nil {
			writeStoreError(w, s.log, err, kindNames[kind])
			return
		}

		logID := s.record(r, user, audit.ActionCreate, item, map[string]any{"title": item.Title, "colleges": item.Colleges})
		published := *item
		s.fanout.Background(func(ctx context.Context) {
			s.fanout.NotifyFeedItem(ctx, &published)
			s.fanout.NotifyAdminAction(ctx, adminAction(user, &published, audit.ActionCreate, logID))
		})

		s.log.WithFields(logrus.Fields{"kind": kind, "id": item.ID, "user_id": user.ID}).Info("Item created")
		writeJSON(w, http.StatusCreated, item)
	}
}

// Update changes an item
// @Summary Update a news item, announcement or event
// @Description Allowed for the creator, a college admin of one of its colleges, or a system admin.
// @Tags feed
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param kind path string true "news, announcements or events"
// @Param id path string true "Item ID"
// @Param request body FeedPatch true "Fields to change"
// @Success 200 {object} models.FeedItem
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /{kind}/{id} [patch]
func (s *FeedService) Update(kind models.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := currentUser(w, r, s.users, s.log)
		if !ok {
			return
		}

		var patch FeedPatch
		if !bind(w, r, s.validator, s.log, &patch) {
			return
		}

		item, ok := s.modifiable(w, r, kind, user)
		if !ok {
			return
		}

		changed := patch.apply(item)
		if err := checkSchedule(kind, item.StartsAt, item.EndsAt); err != nil {
			SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
			return
		}
		if patch.Colleges != nil {
			if err := authz.Authorize(authz.CallerFromUser(user), models.AdminRoles, item.Colleges...); err != nil {
				SendErrorResponse(w, "You can only publish to your own college", http.StatusForbidden, nil)
				return
			}
		}

		if err := s.feed.Update(r.Context(), item); err != nil {
			writeStoreError(w, s.log, err, kindNames[kind])
			return
		}

		logID := s.record(r, user, audit.ActionUpdate, item, map[string]any{"fields": changed})
		updated := *item
		s.fanout.Background(func(ctx context.Context) {
			s.fanout.NotifyAdminAction(ctx, adminAction(user, &updated, audit.ActionUpdate, logID))
		})
		writeJSON(w, http.StatusOK, item)
	}
}

// Delete removes an item. Events are cancelled instead and their attendees notified.
// @Summary Delete a news item or announcement, or cancel an event
// @Tags feed
// @Produce json
// @Security BearerAuth
// @Param kind path string true "news, announcements or events"
// @Param id path string true "Item ID"
// @Success 200 {object} MessageResponse
// @Failure 400 {object} ErrorResponse "Event already cancelled"
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /{kind}/{id} [delete]
func (s *FeedService) Delete(kind models.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := currentUser(w, r, s.users, s.log)
		if !ok {
			return
		}

		item, ok := s.modifiable(w, r, kind, user)
		if !ok {
			return
		}

		if kind == models.KindEvent {
			s.cancelEvent(w, r, user, item)
			return
		}

		if err := s.feed.Delete(r.Context(), kind, item.ID); err != nil {
			writeStoreError(w, s.log, err, kindNames[kind])
			return
		}

		logID := s.record(r, user, audit.ActionDelete, item, map[string]any{"title": item.Title})
		s.fanout.Background(func(ctx context.Context) {
			s.fanout.NotifyAdminAction(ctx, adminAction(user, item, audit.ActionDelete, logID))
		})
		writeJSON(w, http.StatusOK, MessageResponse{Message: kindNames[kind] + " deleted"})
	}
}

func (s *FeedService) cancelEvent(w http.ResponseWriter, r *http.Request, user *models.User, event *models.FeedItem) {
	if event.Status == models.EventStatusCancelled {
		SendErrorResponse(w, "Event already cancelled", http.StatusBadRequest, nil)
		return
	}

	event.Status = models.EventStatusCancelled
	if err := s.feed.Update(r.Context(), event); err != nil {
		writeStoreError(w, s.log, err, "Event")
		return
	}

	attendees, err := s.regs.Attendees(r.Context(), event.ID)
	if err != nil {
		s.log.WithError(err).WithField("event_id", event.ID).Error("Loading attendees for cancellation")
	}

	logID := s.record(r, user, audit.ActionCancelEvent, event,
		map[string]any{"title": event.Title, "attendees": len(attendees)})
	s.fanout.Background(func(ctx context.Context) {
		s.fanout.NotifyCancellation(ctx, event, attendees)
		s.fanout.NotifyAdminAction(ctx, adminAction(user, event, audit.ActionCancelEvent, logID))
	})

	writeJSON(w, http.StatusOK, MessageResponse{Message: "Event cancelled"})
}

// modifiable loads the {id} item and enforces the ownership rule.
func (s *FeedService) modifiable(w http.ResponseWriter, r *http.Request, kind models.Kind, user *models.User) (*models.FeedItem, bool) {
	item, err := s.feed.Get(r.Context(), kind, chi.URLParam(r, "id"))
	if err != nil {
		writeStoreError(w, s.log, err, kindNames[kind])
		return nil, false
	}
	if !authz.CanModify(authz.CallerFromUser(user), item.CreatedBy, item.Colleges) {
		s.log.WithFields(logrus.Fields{"user_id": user.ID, "id": item.ID}).Warn("Modification rejected")
		writeStoreError(w, s.log, authz.ErrForbidden, kindNames[kind])
		return nil, false
	}
	return item, true
}

// Register signs the caller up for an event
// @Summary Register for an event
// @Description Returns a QR ticket encoding the event, the attendee and the registration time.
// @Tags events
// @Produce json
// @Security BearerAuth
// @Param id path string true "Event ID"
// @Success 201 {object} RegistrationResponse
// @Failure 400 {object} ErrorResponse "Already registered, cancelled or past"
// @Failure 404 {object} ErrorResponse
// @Router /events/{id}/register [post]
func (s *FeedService) Register(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r, s.users, s.log)
	if !ok {
		return
	}
	event, ok := s.visibleItem(w, r, models.KindEvent, user)
	if !ok {
		return
	}

	switch {
	case event.Status == models.EventStatusCancelled:
		SendErrorResponse(w, "Event has been cancelled", http.StatusBadRequest, nil)
		return
	case eventOver(event, s.now()):
		SendErrorResponse(w, "Event has already ended", http.StatusBadRequest, nil)
		return
	}

	at, err := s.regs.Register(r.Context(), event.ID, user.ID)
	if errors.Is(err, store.ErrAlreadyExists) {
		SendErrorResponse(w, "Already registered for this event", http.StatusBadRequest, nil)
		return
	}
	if err != nil {
		writeStoreError(w, s.log, err, "Registration")
		return
	}

	ticket := Ticket{EventID: event.ID, UserID: user.ID, RegisteredAt: at}
	qr, err := ticket.qrImage()
	if err != nil {
		// registration stands without an image
		s.log.WithError(err).WithField("event_id", event.ID).Error("Rendering ticket QR code")
	}

	s.log.WithFields(logrus.Fields{"event_id": event.ID, "user_id": user.ID}).Info("Registered for event")
	writeJSON(w, http.StatusCreated, RegistrationResponse{Ticket: ticket, QRCode: qr})
}

// Unregister cancels the caller's registration
// @Summary Unregister from an event
// @Tags events
// @Produce json
// @Security BearerAuth
// @Param id path string true "Event ID"
// @Success 200 {object} MessageResponse
// @Failure 404 {object} ErrorResponse
// @Router /events/{id}/register [delete]
func (s *FeedService) Unregister(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r, s.users, s.log)
	if !ok {
		return
	}

	if err := s.regs.Unregister(r.Context(), chi.URLParam(r, "id"), user.ID); err != nil {
		writeStoreError(w, s.log, err, "Registration")
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Registration cancelled"})
}

func (s *FeedService) record(r *http.Request, user *models.User, action string, item *models.FeedItem, details any) string {
	logID, err := s.audit.Record(r.Context(), audit.Event{
		Actor:          audit.Actor{ID: user.ID, Role: string(user.Role)},
		Action:         action,
		TargetResource: item.Kind.Table(),
		TargetID:       item.ID,
		Details:        details,
		IP:             security.ClientIP(r),
	})
	if err != nil {
		s.log.WithError(err).WithField("action", action).Error("Audit entry not recorded")
	}
	return logID
}

func adminAction(user *models.User, item *models.FeedItem, action, logID string) notify.AdminAction {
	college := user.College
	if len(item.Colleges) > 0 {
		college = item.Colleges[0]
	}
	return notify.AdminAction{
		College:    college,
		Message:    fmt.Sprintf("%s: %s %q", user.Username, action, item.Title),
		ActionType: action,
		LogID:      logID,
	}
}

// apply merges p into item and returns the names of the fields it set.
func (p FeedPatch) apply(item *models.FeedItem) []string {
	var changed []string
	set := func(name string) { changed = append(changed, name) }

	if p.Title != nil {
		item.Title = *p.Title
		set("title")
	}
	if p.Body != nil {
		item.Body = *p.Body
		set("body")
	}
	if p.Category != nil {
		item.Category = *p.Category
		set("category")
	}
	if p.TargetRoles != nil {
		item.TargetRoles = orEmpty(*p.TargetRoles)
		set("targetRoles")
	}
	if p.Colleges != nil {
		item.Colleges = orEmpty(*p.Colleges)
		set("colleges")
	}
	if p.Tags != nil {
		item.Tags = orEmpty(*p.Tags)
		set("tags")
	}
	if p.Geofence != nil {
		item.Geofence = p.Geofence
		set("geofence")
	}
	if p.IsPublished != nil {
		item.IsPublished = *p.IsPublished
		set("isPublished")
	}
	if p.IsArchived != nil {
		item.IsArchived = *p.IsArchived
		set("isArchived")
	}
	if p.ExpiresAt != nil {
		item.ExpiresAt = p.ExpiresAt
		set("expiresAt")
	}
	if p.ScheduledAt != nil {
		item.ScheduledAt = p.ScheduledAt
		set("scheduledAt")
	}
	if p.StartsAt != nil {
		item.StartsAt = p.StartsAt
		set("startsAt")
	}
	if p.EndsAt != nil {
		item.EndsAt = p.EndsAt
		set("endsAt")
	}
	if p.Venue != nil {
		item.Venue = *p.Venue
		set("venue")
	}
	return changed
}

func checkSchedule(kind models.Kind, starts, ends *time.Time) error {
	if kind == models.KindEvent && starts == nil {
		return fieldError{field: "startsAt", msg: "required for events"}
	}
	if starts != nil && ends != nil && !ends.After(*starts) {
		return fieldError{field: "endsAt", msg: "must be after startsAt"}
	}
	return nil
}

func eventOver(e *models.FeedItem, now time.Time) bool {
	switch {
	case e.EndsAt != nil:
		return !now.Before(*e.EndsAt)
	case e.StartsAt != nil:
		return !now.Before(*e.StartsAt)
	}
	return false
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
