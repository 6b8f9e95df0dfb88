package services

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/campusconnect/backend/internal/models"
	"github.com/campusconnect/backend/internal/notify"
	"github.com/campusconnect/backend/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
)

const minGraduationYear = 1960

// AlumniService serves the alumni directory, mentor search and connections.
type AlumniService struct {
	alumni      AlumniRepository
	connections ConnectionRepository
	users       UserRepository
	fanout      *notify.Fanout
	validator   *ValidationHelper
	log         logrus.FieldLogger
}

type AlumniProfileRequest struct {
	GraduationYear      int      `json:"graduationYear" validate:"omitempty,min=1960"`
	Industry            string   `json:"industry" validate:"max=100"`
	Company             string   `json:"company" validate:"max=100"`
	Position            string   `json:"position" validate:"max=100"`
	Expertise           []string `json:"expertise" validate:"max=20,dive,min=1,max=50"`
	Bio                 string   `json:"bio" validate:"max=2000"`
	LinkedIn            string   `json:"linkedIn" validate:"omitempty,url,max=300"`
	MentorshipAvailable bool     `json:"mentorshipAvailable"`
}

type ConnectionDecision struct {
	Status string `json:"status" validate:"required,oneof=accepted rejected" example:"accepted"`
}

func NewAlumniService(alumni AlumniRepository, connections ConnectionRepository, users UserRepository, fanout *notify.Fanout, log logrus.FieldLogger) *AlumniService {
	return &AlumniService{
		alumni:      alumni,
		connections: connections,
		users:       users,
		fanout:      fanout,
		validator:   NewValidationHelper(),
		log:         log.WithField("component", "alumni"),
	}
}

func (s *AlumniService) filterFromQuery(w http.ResponseWriter, r *http.Request) (store.AlumniFilter, bool) {
	q := r.URL.Query()
	f := store.AlumniFilter{
		College:    q.Get("college"),
		Department: q.Get("department"),
		Industry:   q.Get("industry"),
		Expertise:  q.Get("expertise"),
		Page:       pageFromQuery(r),
	}
	if raw := q.Get("graduationYear"); raw != "" {
		year, err := strconv.Atoi(raw)
		if err != nil || year < minGraduationYear || year > time.Now().Year() {
			SendErrorResponse(w, "Validation failed", http.StatusBadRequest,
				fieldError{field: "graduationYear", msg: "must be a year between 1960 and now"})
			return f, false
		}
		f.GraduationYear = year
	}
	return f, true
}

// Search lists alumni
// @Summary Search the alumni directory
// @Tags alumni
// @Produce json
// @Security BearerAuth
// @Param college query string false "College"
// @Param department query string false "Department"
// @Param industry query string false "Industry"
// @Param expertise query string false "Area of expertise"
// @Param graduationYear query int false "Graduation year"
// @Success 200 {array} models.AlumniCard
// @Failure 400 {object} ErrorResponse
// @Router /alumni [get]
func (s *AlumniService) Search(w http.ResponseWriter, r *http.Request) {
	s.search(w, r, false)
}

// Mentors lists alumni open to mentoring
// @Summary Search available mentors
// @Tags alumni
// @Produce json
// @Security BearerAuth
// @Param college query string false "College"
// @Param industry query string false "Industry"
// @Param expertise query string false "Area of expertise"
// @Success 200 {array} models.AlumniCard
// @Router /mentors [get]
func (s *AlumniService) Mentors(w http.ResponseWriter, r *http.Request) {
	s.search(w, r, true)
}

func (s *AlumniService) search(w http.ResponseWriter, r *http.Request, mentorsOnly bool) {
	if _, ok := currentUser(w, r, s.users, s.log); !ok {
		return
	}
	f, ok := s.filterFromQuery(w, r)
	if !ok {
		return
	}
	f.MentorsOnly = mentorsOnly

	cards, err := s.alumni.Search(r.Context(), f)
	if err != nil {
		writeStoreError(w, s.log, err, "Alumni")
		return
	}
	writeJSON(w, http.StatusOK, cards)
}

// Get returns one alumnus
// @Summary Get an alumnus
// @Tags alumni
// @Produce json
// @Security BearerAuth
// @Param id path string true "User ID"
// @Success 200 {object} models.AlumniCard
// @Failure 404 {object} ErrorResponse
// @Router /alumni/{id} [get]
func (s *AlumniService) Get(w http.ResponseWriter, r *http.Request) {
	if _, ok := currentUser(w, r, s.users, s.log); !ok {
		return
	}
	card, err := s.alumni.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeStoreError(w, s.log, err, "Alumni")
		return
	}
	writeJSON(w, http.StatusOK, card)
}

// UpdateProfile replaces the caller's alumni profile
// @Summary Update own alumni profile
// @Tags alumni
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body AlumniProfileRequest true "Profile"
// @Success 200 {object} models.AlumniProfile
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Router /alumni/me/profile [put]
func (s *AlumniService) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r, s.users, s.log)
	if !ok {
		return
	}

	var req AlumniProfileRequest
	if !bind(w, r, s.validator, s.log, &req) {
		return
	}
	if req.GraduationYear > time.Now().Year() {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest,
			fieldError{field: "graduationYear", msg: "cannot be in the future"})
		return
	}

	p := &models.AlumniProfile{
		UserID:              user.ID,
		GraduationYear:      req.GraduationYear,
		Industry:            req.Industry,
		Company:             req.Company,
		Position:            req.Position,
		Expertise:           orEmpty(req.Expertise),
		Bio:                 req.Bio,
		LinkedIn:            req.LinkedIn,
		MentorshipAvailable: req.MentorshipAvailable,
	}
	if err := s.alumni.UpsertProfile(r.Context(), p); err != nil {
		writeStoreError(w, s.log, err, "Alumni profile")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// Connect asks an alumnus to connect
// @Summary Request a connection
// @Description One connection per pair of users, whichever side asked first.
// @Tags alumni
// @Produce json
// @Security BearerAuth
// @Param id path string true "Alumnus user ID"
// @Success 201 {object} models.Connection
// @Failure 400 {object} ErrorResponse "Self or already connected"
// @Failure 404 {object} ErrorResponse "Alumni not found"
// @Router /alumni/{id}/connections [post]
func (s *AlumniService) Connect(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r, s.users, s.log)
	if !ok {
		return
	}

	recipientID := chi.URLParam(r, "id")
	if recipientID == user.ID {
		SendErrorResponse(w, "Cannot connect with yourself", http.StatusBadRequest, nil)
		return
	}
	recipient, err := s.users.GetByID(r.Context(), recipientID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		writeStoreError(w, s.log, err, "User")
		return
	}
	if recipient == nil || recipient.Role != models.RoleAlumni || !recipient.IsActive {
		SendErrorResponse(w, "Alumni not found", http.StatusNotFound, nil)
		return
	}

	c := &models.Connection{RequesterID: user.ID, RecipientID: recipient.ID}
	if err := s.connections.Create(r.Context(), c); err != nil {
		writeStoreError(w, s.log, err, "Connection")
		return
	}

	created := *c
	s.fanout.Background(func(ctx context.Context) {
		s.fanout.NotifyConnectionRequest(ctx, &created, user)
	})

	s.log.WithFields(logrus.Fields{"id": c.ID, "requester_id": user.ID, "recipient_id": recipient.ID}).Info("Connection requested")
	writeJSON(w, http.StatusCreated, c)
}

// Connections lists the caller's connections
// @Summary List own connections
// @Description Accepted connections by default; pass status=pending to see open requests.
// @Tags alumni
// @Produce json
// @Security BearerAuth
// @Param status query string false "pending, accepted or rejected"
// @Success 200 {array} models.Connection
// @Failure 400 {object} ErrorResponse
// @Router /connections [get]
func (s *AlumniService) Connections(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r, s.users, s.log)
	if !ok {
		return
	}

	status := r.URL.Query().Get("status")
	switch status {
	case "":
		status = models.ConnectionAccepted
	case models.ConnectionPending, models.ConnectionAccepted, models.ConnectionRejected:
	default:
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest,
			fieldError{field: "status", msg: "must be pending, accepted or rejected"})
		return
	}

	list, err := s.connections.ListFor(r.Context(), user.ID, status)
	if err != nil {
		writeStoreError(w, s.log, err, "Connection")
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// RespondConnection accepts or rejects a pending connection
// @Summary Answer a connection request
// @Description Only the recipient may answer, and only once.
// @Tags alumni
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Connection ID"
// @Param request body ConnectionDecision true "Decision"
// @Success 200 {object} models.Connection
// @Failure 400 {object} ErrorResponse "Already answered"
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /connections/{id} [patch]
func (s *AlumniService) RespondConnection(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r, s.users, s.log)
	if !ok {
		return
	}

	var req ConnectionDecision
	if !bind(w, r, s.validator, s.log, &req) {
		return
	}

	c, err := s.connections.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeStoreError(w, s.log, err, "Connection")
		return
	}
	if c.RecipientID != user.ID {
		SendErrorResponse(w, "Forbidden", http.StatusForbidden, nil)
		return
	}
	if c.Status != models.ConnectionPending {
		SendErrorResponse(w, "Connection already "+c.Status, http.StatusBadRequest, nil)
		return
	}

	updated, err := s.connections.SetStatus(r.Context(), c.ID, req.Status)
	if errors.Is(err, store.ErrNotFound) {
		SendErrorResponse(w, "Connection already answered", http.StatusBadRequest, nil)
		return
	}
	if err != nil {
		writeStoreError(w, s.log, err, "Connection")
		return
	}

	if updated.Status == models.ConnectionAccepted {
		accepted := *updated
		s.fanout.Background(func(ctx context.Context) {
			s.fanout.NotifyConnectionAccepted(ctx, &accepted, user)
		})
	}
	writeJSON(w, http.StatusOK, updated)
}
