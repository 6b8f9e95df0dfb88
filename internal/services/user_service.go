package services

import (
	"context"
	"fmt"
	"net/http"

	"github.com/campusconnect/backend/internal/audit"
	"github.com/campusconnect/backend/internal/middleware"
	"github.com/campusconnect/backend/internal/models"
	"github.com/campusconnect/backend/internal/notify"
	"github.com/campusconnect/backend/internal/security"
	"github.com/campusconnect/backend/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
)

type UserService struct {
	users     UserRepository
	audit     *audit.Recorder
	fanout    *notify.Fanout
	validator *ValidationHelper
	log       logrus.FieldLogger
}

// ProfilePatch lists the fields a user may change on their own account.
type ProfilePatch struct {
	FirstName         *string                   `json:"firstName" validate:"omitempty,max=100"`
	LastName          *string                   `json:"lastName" validate:"omitempty,max=100"`
	Department        *string                   `json:"department" validate:"omitempty,max=100"`
	Interests         *[]string                 `json:"interests" validate:"omitempty,max=50,dive,min=1,max=50"`
	NotificationPrefs *models.NotificationPrefs `json:"notificationPreferences"`
	Location          *models.Location          `json:"location"`
}

// AdminUserPatch lists the fields a system admin may change on any account.
type AdminUserPatch struct {
	Role     *models.Role `json:"role" validate:"omitempty,role"`
	College  *string      `json:"college" validate:"omitempty,max=100"`
	IsActive *bool        `json:"isActive"`
}

type DeviceTokenRequest struct {
	Token string `json:"token" validate:"required,max=4096"`
}

func NewUserService(users UserRepository, recorder *audit.Recorder, fanout *notify.Fanout, log logrus.FieldLogger) *UserService {
	return &UserService{
		users:     users,
		audit:     recorder,
		fanout:    fanout,
		validator: NewValidationHelper(),
		log:       log.WithField("component", "users"),
	}
}

// Me returns the caller's profile
// @Summary Get own profile
// @Tags users
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.User
// @Failure 401 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /users/me [get]
func (s *UserService) Me(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r, s.users, s.log)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// UpdateMe patches the caller's profile
// @Summary Update own profile
// @Description Only names, department, interests, notification preferences and location can change here.
// @Tags users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body ProfilePatch true "Fields to change"
// @Success 200 {object} models.User
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /users/me [patch]
func (s *UserService) UpdateMe(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r, s.users, s.log)
	if !ok {
		return
	}

	var patch ProfilePatch
	if !bind(w, r, s.validator, s.log, &patch) {
		return
	}

	if patch.FirstName != nil {
		user.FirstName = *patch.FirstName
	}
	if patch.LastName != nil {
		user.LastName = *patch.LastName
	}
	if patch.Department != nil {
		user.Department = *patch.Department
	}
	if patch.Interests != nil {
		user.Interests = *patch.Interests
		if user.Interests == nil {
			user.Interests = []string{}
		}
	}
	if patch.NotificationPrefs != nil {
		user.NotificationPrefs = *patch.NotificationPrefs
	}
	if patch.Location != nil {
		user.Location = patch.Location
	}

	if err := s.users.Update(r.Context(), user); err != nil {
		writeStoreError(w, s.log, err, "User")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// AddDeviceToken registers a push token
// @Summary Register a device for push notifications
// @Description Adding a token the account already holds is a no-op.
// @Tags users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body DeviceTokenRequest true "FCM registration token"
// @Success 200 {object} MessageResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Router /users/me/device-tokens [post]
func (s *UserService) AddDeviceToken(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFrom(r.Context())
	if !ok {
		SendErrorResponse(w, middleware.InvalidTokenMessage, http.StatusUnauthorized, nil)
		return
	}

	var req DeviceTokenRequest
	if !bind(w, r, s.validator, s.log, &req) {
		return
	}

	if err := s.users.AddDeviceToken(r.Context(), claims.Subject, req.Token); err != nil {
		writeStoreError(w, s.log, err, "User")
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Device token registered"})
}

// RemoveDeviceToken unregisters a push token
// @Summary Unregister a device
// @Tags users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body DeviceTokenRequest true "FCM registration token"
// @Success 200 {object} MessageResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Router /users/me/device-tokens [delete]
func (s *UserService) RemoveDeviceToken(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFrom(r.Context())
	if !ok {
		SendErrorResponse(w, middleware.InvalidTokenMessage, http.StatusUnauthorized, nil)
		return
	}

	var req DeviceTokenRequest
	if !bind(w, r, s.validator, s.log, &req) {
		return
	}

	if err := s.users.RemoveDeviceToken(r.Context(), claims.Subject, req.Token); err != nil {
		writeStoreError(w, s.log, err, "User")
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Device token removed"})
}

// List returns accounts for administration
// @Summary List users
// @Tags users
// @Produce json
// @Security BearerAuth
// @Param role query string false "Filter by role"
// @Param college query string false "Filter by college"
// @Param limit query int false "Page size, at most 100"
// @Param offset query int false "Offset"
// @Success 200 {array} models.User
// @Failure 403 {object} ErrorResponse
// @Router /users [get]
func (s *UserService) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	role := models.Role(q.Get("role"))
	if role != "" && !role.Valid() {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, fieldError{field: "role", msg: "unknown role"})
		return
	}

	users, err := s.users.List(r.Context(), store.UserFilter{Role: role, College: q.Get("college"), Page: pageFromQuery(r)})
	if err != nil {
		writeStoreError(w, s.log, err, "User")
		return
	}
	writeJSON(w, http.StatusOK, users)
}

// Update changes an account's role, college or active flag
// @Summary Update a user
// @Tags users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "User ID"
// @Param request body AdminUserPatch true "Fields to change"
// @Success 200 {object} models.User
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /users/{id} [patch]
func (s *UserService) Update(w http.ResponseWriter, r *http.Request) {
	admin, ok := currentUser(w, r, s.users, s.log)
	if !ok {
		return
	}

	var patch AdminUserPatch
	if !bind(w, r, s.validator, s.log, &patch) {
		return
	}

	user, err := s.users.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeStoreError(w, s.log, err, "User")
		return
	}

	changes := map[string]any{}
	if patch.Role != nil && *patch.Role != user.Role {
		changes["role"] = map[string]models.Role{"from": user.Role, "to": *patch.Role}
		user.Role = *patch.Role
	}
	if patch.College != nil && *patch.College != user.College {
		changes["college"] = map[string]string{"from": user.College, "to": *patch.College}
		user.College = *patch.College
	}
	if patch.IsActive != nil && *patch.IsActive != user.IsActive {
		changes["isActive"] = map[string]bool{"from": user.IsActive, "to": *patch.IsActive}
		user.IsActive = *patch.IsActive
	}
	if user.Role.RequiresCollege() && user.College == "" {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest,
			fieldError{field: "college", msg: fmt.Sprintf("required for role %s", user.Role)})
		return
	}

	if err := s.users.Update(r.Context(), user); err != nil {
		writeStoreError(w, s.log, err, "User")
		return
	}

	s.recordAdminAction(r, admin, audit.ActionUpdateUser, user, changes,
		fmt.Sprintf("%s updated account %s", admin.Username, user.Username))
	writeJSON(w, http.StatusOK, user)
}

// Delete removes an account
// @Summary Delete a user
// @Tags users
// @Produce json
// @Security BearerAuth
// @Param id path string true "User ID"
// @Success 200 {object} MessageResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /users/{id} [delete]
func (s *UserService) Delete(w http.ResponseWriter, r *http.Request) {
	admin, ok := currentUser(w, r, s.users, s.log)
	if !ok {
		return
	}

	user, err := s.users.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeStoreError(w, s.log, err, "User")
		return
	}
	if user.ID == admin.ID {
		SendErrorResponse(w, "Cannot delete your own account", http.StatusBadRequest, nil)
		return
	}

	if err := s.users.Delete(r.Context(), user.ID); err != nil {
		writeStoreError(w, s.log, err, "User")
		return
	}

	s.recordAdminAction(r, admin, audit.ActionDeleteUser, user,
		map[string]string{"username": user.Username, "role": string(user.Role)},
		fmt.Sprintf("%s deleted account %s", admin.Username, user.Username))
	writeJSON(w, http.StatusOK, MessageResponse{Message: "User deleted"})
}

func (s *UserService) recordAdminAction(r *http.Request, admin *models.User, action string, target *models.User, details any, message string) {
	logID, err := s.audit.Record(r.Context(), audit.Event{
		Actor:          audit.Actor{ID: admin.ID, Role: string(admin.Role)},
		Action:         action,
		TargetResource: "users",
		TargetID:       target.ID,
		Details:        details,
		IP:             security.ClientIP(r),
	})
	if err != nil {
		s.log.WithError(err).WithField("action", action).Error("Audit entry not recorded")
	}

	college := target.College
	s.fanout.Background(func(ctx context.Context) {
		s.fanout.NotifyAdminAction(ctx, notify.AdminAction{
			College:    college,
			Message:    message,
			ActionType: action,
			LogID:      logID,
		})
	})
}
