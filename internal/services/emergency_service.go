package services

import (
	"net/http"
	"strings"

	"github.com/campusconnect/backend/internal/audit"
	"github.com/campusconnect/backend/internal/models"
	"github.com/campusconnect/backend/internal/security"
	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
)

type EmergencyService struct {
	contacts  EmergencyContactRepository
	users     UserRepository
	audit     *audit.Recorder
	validator *ValidationHelper
	log       logrus.FieldLogger
}

type EmergencyContactRequest struct {
	Name        string   `json:"name" validate:"required,max=200" example:"Campus Security"`
	Phone       string   `json:"phone" validate:"required,min=3,max=30" example:"+255 22 241 0500"`
	Category    string   `json:"category" validate:"required,oneof=medical security fire counseling" example:"security"`
	Description string   `json:"description" validate:"max=2000"`
	Location    string   `json:"location" validate:"max=200"`
	Priority    int      `json:"priority" validate:"min=0,max=100"`
	VisibleTo   []string `json:"visibleTo" validate:"max=5,dive,role"`
}

func NewEmergencyService(contacts EmergencyContactRepository, users UserRepository, recorder *audit.Recorder, log logrus.FieldLogger) *EmergencyService {
	return &EmergencyService{
		contacts:  contacts,
		users:     users,
		audit:     recorder,
		validator: NewValidationHelper(),
		log:       log.WithField("component", "emergency"),
	}
}

// List returns the hotlines visible to the caller
// @Summary List emergency contacts
// @Description Sorted by priority. Admins see every contact.
// @Tags emergency
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.EmergencyContact
// @Router /emergency-contacts [get]
func (s *EmergencyService) List(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r, s.users, s.log)
	if !ok {
		return
	}

	role := user.Role
	if role.IsAdmin() {
		role = ""
	}
	list, err := s.contacts.List(r.Context(), role)
	if err != nil {
		writeStoreError(w, s.log, err, "Emergency contact")
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// Create adds a hotline
// @Summary Create an emergency contact
// @Tags emergency
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body EmergencyContactRequest true "Contact"
// @Success 201 {object} models.EmergencyContact
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Router /emergency-contacts [post]
func (s *EmergencyService) Create(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r, s.users, s.log)
	if !ok {
		return
	}

	var req EmergencyContactRequest
	if !bind(w, r, s.validator, s.log, &req) {
		return
	}

	c := &models.EmergencyContact{}
	req.apply(c)
	if err := s.contacts.Create(r.Context(), c); err != nil {
		writeStoreError(w, s.log, err, "Emergency contact")
		return
	}
	s.record(r, user, audit.ActionCreate, c)
	writeJSON(w, http.StatusCreated, c)
}

// Update replaces a hotline
// @Summary Update an emergency contact
// @Tags emergency
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Contact ID"
// @Param request body EmergencyContactRequest true "Contact"
// @Success 200 {object} models.EmergencyContact
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /emergency-contacts/{id} [put]
func (s *EmergencyService) Update(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r, s.users, s.log)
	if !ok {
		return
	}

	var req EmergencyContactRequest
	if !bind(w, r, s.validator, s.log, &req) {
		return
	}

	c, err := s.contacts.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeStoreError(w, s.log, err, "Emergency contact")
		return
	}
	req.apply(c)
	if err := s.contacts.Update(r.Context(), c); err != nil {
		writeStoreError(w, s.log, err, "Emergency contact")
		return
	}
	s.record(r, user, audit.ActionUpdate, c)
	writeJSON(w, http.StatusOK, c)
}

// Delete removes a hotline
// @Summary Delete an emergency contact
// @Tags emergency
// @Produce json
// @Security BearerAuth
// @Param id path string true "Contact ID"
// @Success 200 {object} MessageResponse
// @Failure 404 {object} ErrorResponse
// @Router /emergency-contacts/{id} [delete]
func (s *EmergencyService) Delete(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r, s.users, s.log)
	if !ok {
		return
	}

	c, err := s.contacts.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeStoreError(w, s.log, err, "Emergency contact")
		return
	}
	if err := s.contacts.Delete(r.Context(), c.ID); err != nil {
		writeStoreError(w, s.log, err, "Emergency contact")
		return
	}
	s.record(r, user, audit.ActionDelete, c)
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Emergency contact deleted"})
}

func (s *EmergencyService) record(r *http.Request, user *models.User, action string, c *models.EmergencyContact) {
	s.audit.RecordBestEffort(r.Context(), audit.Event{
		Actor:          audit.Actor{ID: user.ID, Role: string(user.Role)},
		Action:         action,
		TargetResource: "emergency_contacts",
		TargetID:       c.ID,
		Details:        map[string]string{"name": c.Name, "category": c.Category},
		IP:             security.ClientIP(r),
	})
}

// apply copies the request onto c. Priority 0 means "unset" and becomes 1.
func (req EmergencyContactRequest) apply(c *models.EmergencyContact) {
	c.Name = strings.TrimSpace(req.Name)
	c.Phone = strings.TrimSpace(req.Phone)
	c.Category = req.Category
	c.Description = req.Description
	c.Location = req.Location
	c.Priority = req.Priority
	if c.Priority == 0 {
		c.Priority = 1
	}
	c.VisibleTo = make([]models.Role, len(req.VisibleTo))
	for i, role := range req.VisibleTo {
		c.VisibleTo[i] = models.Role(role)
	}
}
