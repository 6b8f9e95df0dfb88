package services

import (
	"context"
	"errors"
	"net/http"

	"github.com/campusconnect/backend/internal/models"
	"github.com/campusconnect/backend/internal/notify"
	"github.com/campusconnect/backend/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
)

type MentorshipService struct {
	requests  MentorshipRepository
	users     UserRepository
	fanout    *notify.Fanout
	validator *ValidationHelper
	log       logrus.FieldLogger
}

type MentorshipRequestBody struct {
	AlumniID string `json:"alumniId" validate:"required,uuid"`
	Message  string `json:"message" validate:"max=1000"`
}

type MentorshipDecision struct {
	Status string `json:"status" validate:"required,oneof=approved declined" example:"approved"`
}

func NewMentorshipService(requests MentorshipRepository, users UserRepository, fanout *notify.Fanout, log logrus.FieldLogger) *MentorshipService {
	return &MentorshipService{
		requests:  requests,
		users:     users,
		fanout:    fanout,
		validator: NewValidationHelper(),
		log:       log.WithField("component", "mentorship"),
	}
}

// Create asks an alumnus for mentorship
// @Summary Request mentorship
// @Description One request per student and alumnus pair.
// @Tags mentorship
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body MentorshipRequestBody true "Request"
// @Success 201 {object} models.MentorshipRequest
// @Failure 400 {object} ErrorResponse "Invalid mentor or already requested"
// @Failure 403 {object} ErrorResponse
// @Router /mentorship-requests [post]
func (s *MentorshipService) Create(w http.ResponseWriter, r *http.Request) {
	student, ok := currentUser(w, r, s.users, s.log)
	if !ok {
		return
	}

	var req MentorshipRequestBody
	if !bind(w, r, s.validator, s.log, &req) {
		return
	}

	mentor, err := s.users.GetByID(r.Context(), req.AlumniID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		writeStoreError(w, s.log, err, "User")
		return
	}
	if mentor == nil || mentor.Role != models.RoleAlumni || !mentor.IsActive {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest,
			fieldError{field: "alumniId", msg: "must reference an active alumnus"})
		return
	}

	m := &models.MentorshipRequest{StudentID: student.ID, AlumniID: mentor.ID, Message: req.Message}
	if err := s.requests.Create(r.Context(), m); err != nil {
		writeStoreError(w, s.log, err, "Mentorship request")
		return
	}

	created := *m
	s.fanout.Background(func(ctx context.Context) {
		s.fanout.NotifyMentorshipRequest(ctx, &created, student)
	})

	s.log.WithFields(logrus.Fields{"id": m.ID, "student_id": student.ID, "alumni_id": mentor.ID}).Info("Mentorship requested")
	writeJSON(w, http.StatusCreated, m)
}

// List returns the caller's requests, sent or received
// @Summary List own mentorship requests
// @Tags mentorship
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.MentorshipRequest
// @Router /mentorship-requests [get]
func (s *MentorshipService) List(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r, s.users, s.log)
	if !ok {
		return
	}

	requests, err := s.requests.ListFor(r.Context(), user.ID)
	if err != nil {
		writeStoreError(w, s.log, err, "Mentorship request")
		return
	}
	writeJSON(w, http.StatusOK, requests)
}

// Respond approves or declines a pending request
// @Summary Answer a mentorship request
// @Description Only the addressed alumnus may answer, and only once.
// @Tags mentorship
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Request ID"
// @Param request body MentorshipDecision true "Decision"
// @Success 200 {object} models.MentorshipRequest
// @Failure 400 {object} ErrorResponse "Already answered"
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /mentorship-requests/{id} [patch]
func (s *MentorshipService) Respond(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r, s.users, s.log)
	if !ok {
		return
	}

	var req MentorshipDecision
	if !bind(w, r, s.validator, s.log, &req) {
		return
	}

	m, err := s.requests.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeStoreError(w, s.log, err, "Mentorship request")
		return
	}
	if m.AlumniID != user.ID {
		SendErrorResponse(w, "Forbidden", http.StatusForbidden, nil)
		return
	}
	if m.Status != models.MentorshipPending {
		SendErrorResponse(w, "Mentorship request already "+m.Status, http.StatusBadRequest, nil)
		return
	}

	updated, err := s.requests.SetStatus(r.Context(), m.ID, req.Status)
	if errors.Is(err, store.ErrNotFound) {
		// answered concurrently
		SendErrorResponse(w, "Mentorship request already answered", http.StatusBadRequest, nil)
		return
	}
	if err != nil {
		writeStoreError(w, s.log, err, "Mentorship request")
		return
	}

	decided := *updated
	s.fanout.Background(func(ctx context.Context) {
		s.fanout.NotifyMentorshipStatus(ctx, &decided)
	})
	writeJSON(w, http.StatusOK, updated)
}
