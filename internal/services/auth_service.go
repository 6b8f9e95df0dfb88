package services

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/campusconnect/backend/internal/audit"
	"github.com/campusconnect/backend/internal/middleware"
	"github.com/campusconnect/backend/internal/models"
	"github.com/campusconnect/backend/internal/security"
	"github.com/campusconnect/backend/internal/session"
	"github.com/campusconnect/backend/internal/store"
	"github.com/sirupsen/logrus"
)

type AuthService struct {
	users     UserRepository
	gate      *security.Gate
	issuer    *session.Issuer
	hasher    *PasswordHasher
	mailer    ResetMailer
	audit     *audit.Recorder
	validator *ValidationHelper
	log       logrus.FieldLogger
	now       func() time.Time
}

// LoginRequest represents the login request payload
// @Description Login request structure
type LoginRequest struct {
	Username string `json:"username" validate:"required,max=50" example:"jdoe"`
	Password string `json:"password" validate:"required,max=128" example:"password123"`
}

// RegisterRequest represents the registration request payload
// @Description Registration request structure
type RegisterRequest struct {
	Username   string      `json:"username" validate:"required,min=3,max=50" example:"jdoe"`
	Email      string      `json:"email" validate:"required,email,max=254" example:"jdoe@udsm.ac.tz"`
	Password   string      `json:"password" validate:"required,min=8,max=128" example:"password123"`
	Role       models.Role `json:"role" validate:"required,oneof=student alumni visitor" example:"student"`
	College    string      `json:"college" validate:"required_if=Role student,max=100" example:"CoICT"`
	FirstName  string      `json:"firstName" validate:"max=100" example:"John"`
	LastName   string      `json:"lastName" validate:"max=100" example:"Doe"`
	Department string      `json:"department" validate:"max=100"`
	Interests  []string    `json:"interests" validate:"max=50,dive,min=1,max=50"`
}

// AuthResponse represents the authentication response
// @Description Authentication response structure
type AuthResponse struct {
	Token     string       `json:"token" example:"eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9..."` // JWT token
	ExpiresAt time.Time    `json:"expiresAt"`
	User      *models.User `json:"user"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email" example:"jdoe@udsm.ac.tz"`
}

type ResetPasswordRequest struct {
	Token    string `json:"token" validate:"required"`
	Password string `json:"password" validate:"required,min=8,max=128"`
}

func NewAuthService(users UserRepository, gate *security.Gate, issuer *session.Issuer, hasher *PasswordHasher,
	mailer ResetMailer, recorder *audit.Recorder, log logrus.FieldLogger) *AuthService {
	return &AuthService{
		users:     users,
		gate:      gate,
		issuer:    issuer,
		hasher:    hasher,
		mailer:    mailer,
		audit:     recorder,
		validator: NewValidationHelper(),
		log:       log.WithField("component", "auth"),
		now:       time.Now,
	}
}

// Register handles user registration
// @Summary Register a new user
// @Description Self-service sign-up for students, alumni and visitors
// @Tags auth
// @Accept json
// @Produce json
// @Param request body RegisterRequest true "Registration request"
// @Success 201 {object} AuthResponse "Registration successful"
// @Failure 400 {object} ErrorResponse "Invalid request or account exists"
// @Failure 429 {object} ErrorResponse "Too many requests"
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Router /authentication/register [post]
func (s *AuthService) Register(w http.ResponseWriter, r *http.Request) {
	log := s.log.WithField("ip", security.ClientIP(r))
	log.Info("Registration attempt")

	var req RegisterRequest
	if !bind(w, r, s.validator, log, &req) {
		return
	}

	hashedPassword, err := s.hasher.Hash(req.Password)
	if err != nil {
		log.WithError(err).Error("Password hashing failed")
		SendErrorResponse(w, "An Internal Error Occurred", http.StatusInternalServerError, nil)
		return
	}

	interests := req.Interests
	if interests == nil {
		interests = []string{}
	}
	user := &models.User{
		Username:          req.Username,
		Email:             models.NormalizeEmail(req.Email),
		PasswordHash:      hashedPassword,
		Role:              req.Role,
		College:           req.College,
		FirstName:         req.FirstName,
		LastName:          req.LastName,
		Department:        req.Department,
		Interests:         interests,
		NotificationPrefs: models.DefaultNotificationPrefs(),
		IsActive:          true,
	}
	if err := s.users.Create(r.Context(), user); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			log.WithField("username", req.Username).Info("Registration rejected, account exists")
			SendErrorResponse(w, "Username or email already exists", http.StatusBadRequest, nil)
			return
		}
		writeStoreError(w, log, err, "User")
		return
	}

	token, exp, err := s.issuer.Issue(user.ID, user.Role)
	if err != nil {
		log.WithError(err).WithField("user_id", user.ID).Error("Token generation failed")
		SendErrorResponse(w, "Failed to generate token", http.StatusInternalServerError, nil)
		return
	}

	log.WithFields(logrus.Fields{"user_id": user.ID, "role": user.Role}).Info("Registration successful")
	writeJSON(w, http.StatusCreated, AuthResponse{Token: token, ExpiresAt: exp, User: user})
}

// loginPayload keeps the raw JSON types so non-string credentials can be told apart
// from wrong ones.
type loginPayload struct {
	Username any `json:"username"`
	Password any `json:"password"`
}

// Login handles user authentication
// @Summary Login user
// @Description Authenticate with username and password. Repeated failures lock the username.
// @Tags auth
// @Accept json
// @Produce json
// @Param request body LoginRequest true "Login request"
// @Success 200 {object} AuthResponse "Login successful"
// @Failure 400 {object} ErrorResponse "Invalid request"
// @Failure 401 {object} ErrorResponse "Invalid credentials"
// @Failure 403 {object} ErrorResponse "Account disabled"
// @Failure 429 {object} ErrorResponse "Too many attempts"
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Router /authentication/login [post]
func (s *AuthService) Login(w http.ResponseWriter, r *http.Request) {
	ip := security.ClientIP(r)
	log := s.log.WithField("ip", ip)

	var payload loginPayload
	if err := decodeJSON(w, r, &payload); err != nil {
		log.WithError(err).Info("Login failed - invalid request")
		SendErrorResponse(w, "Invalid request", http.StatusBadRequest, nil)
		return
	}

	username, uok := payload.Username.(string)
	password, pok := payload.Password.(string)
	if !uok || !pok {
		log.Warn("Login rejected - non-string credentials")
		s.audit.RecordBestEffort(r.Context(), audit.Event{
			Actor:          audit.Anonymous(),
			Action:         audit.ActionSuspiciousLogin,
			TargetResource: "auth",
			TargetID:       ip,
			Details: map[string]string{
				"usernameType": jsonType(payload.Username),
				"passwordType": jsonType(payload.Password),
			},
			IP: ip,
		})
		SendErrorResponse(w, "Invalid request", http.StatusBadRequest, nil)
		return
	}

	req := LoginRequest{Username: username, Password: password}
	if err := s.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}
	log = log.WithField("username", username)

	attempt, err := s.gate.Check(r.Context(), username)
	if errors.Is(err, security.ErrLocked) {
		log.Warn("Login rejected - username locked")
		SendErrorResponse(w, security.LockedMessage, http.StatusTooManyRequests, nil)
		return
	}
	if err != nil {
		log.WithError(err).Error("Loading failed attempts")
		SendErrorResponse(w, "An Internal Error Occurred", http.StatusInternalServerError, nil)
		return
	}

	user, err := s.users.GetByUsername(r.Context(), username)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		log.WithError(err).Error("Loading user")
		SendErrorResponse(w, "An Internal Error Occurred", http.StatusInternalServerError, nil)
		return
	}
	if user == nil || !s.hasher.Verify(password, user.PasswordHash) {
		s.loginFailed(w, r, log, attempt)
		return
	}

	if !user.IsActive {
		log.Info("Login rejected - account disabled")
		SendErrorResponse(w, "Account is disabled", http.StatusForbidden, nil)
		return
	}

	if err := s.gate.RecordSuccess(r.Context(), username); err != nil {
		log.WithError(err).Error("Resetting failed attempts")
	}
	now := s.now()
	if err := s.users.TouchLastActive(r.Context(), user.ID, now); err != nil {
		log.WithError(err).Warn("Updating last active")
	} else {
		user.LastActive = &now
	}

	token, exp, err := s.issuer.Issue(user.ID, user.Role)
	if err != nil {
		log.WithError(err).Error("Token generation failed")
		SendErrorResponse(w, "Failed to generate token", http.StatusInternalServerError, nil)
		return
	}

	log.WithField("user_id", user.ID).Info("Login successful")
	writeJSON(w, http.StatusOK, AuthResponse{Token: token, ExpiresAt: exp, User: user})
}

func (s *AuthService) loginFailed(w http.ResponseWriter, r *http.Request, log logrus.FieldLogger, attempt models.FailedAttempt) {
	res, err := s.gate.RecordFailure(r.Context(), attempt)
	if err != nil {
		log.WithError(err).Error("Recording failed attempt")
		SendErrorResponse(w, "An Internal Error Occurred", http.StatusInternalServerError, nil)
		return
	}
	if res.Blocked {
		SendErrorResponse(w, security.LockedMessage, http.StatusTooManyRequests, nil)
		return
	}
	log.WithField("attempts", res.Attempts).Info("Login failed - invalid credentials")
	SendErrorResponse(w, "Invalid credentials", http.StatusUnauthorized, nil)
}

func jsonType(v any) string {
	switch v.(type) {
	case nil:
		return "missing"
	case string:
		return "string"
	case float64:
		return "number"
	case bool:
		return "boolean"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	}
	return fmt.Sprintf("%T", v)
}

// ForgotPassword emails a reset link
// @Summary Request a password reset
// @Description Email a single-use reset link to the account with this address
// @Tags auth
// @Accept json
// @Produce json
// @Param request body ForgotPasswordRequest true "Account email"
// @Success 200 {object} MessageResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse "User not found"
// @Failure 429 {object} ErrorResponse "Too many requests"
// @Router /authentication/forgot-password [post]
func (s *AuthService) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	log := s.log.WithField("ip", security.ClientIP(r))

	var req ForgotPasswordRequest
	if !bind(w, r, s.validator, log, &req) {
		return
	}

	user, err := s.users.GetByEmail(r.Context(), req.Email)
	if err != nil {
		writeStoreError(w, log, err, "User")
		return
	}

	token, err := s.issuer.IssueReset(user.ID)
	if err != nil {
		log.WithError(err).Error("Reset token generation failed")
		SendErrorResponse(w, "An Internal Error Occurred", http.StatusInternalServerError, nil)
		return
	}
	if err := s.mailer.SendPasswordReset(r.Context(), user, token); err != nil {
		log.WithError(err).WithField("user_id", user.ID).Error("Sending reset email")
		SendErrorResponse(w, "Failed to send reset email", http.StatusInternalServerError, nil)
		return
	}

	log.WithField("user_id", user.ID).Info("Password reset email sent")
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Password reset link sent to your email"})
}

// ResetPassword sets a new password
// @Summary Reset password
// @Description Set a new password using the token from the reset email. Each token works once.
// @Tags auth
// @Accept json
// @Produce json
// @Param request body ResetPasswordRequest true "Reset token and new password"
// @Success 200 {object} MessageResponse
// @Failure 400 {object} ErrorResponse "Invalid or expired token"
// @Router /authentication/reset-password [post]
func (s *AuthService) ResetPassword(w http.ResponseWriter, r *http.Request) {
	log := s.log.WithField("ip", security.ClientIP(r))

	var req ResetPasswordRequest
	if !bind(w, r, s.validator, log, &req) {
		return
	}

	claims, err := s.issuer.VerifyReset(r.Context(), req.Token)
	if err != nil {
		log.WithError(err).Info("Reset token rejected")
		SendErrorResponse(w, "Invalid or expired token", http.StatusBadRequest, nil)
		return
	}

	user, err := s.users.GetByID(r.Context(), claims.Subject)
	if errors.Is(err, store.ErrNotFound) {
		SendErrorResponse(w, "Invalid or expired token", http.StatusBadRequest, nil)
		return
	}
	if err != nil {
		writeStoreError(w, log, err, "User")
		return
	}

	hashedPassword, err := s.hasher.Hash(req.Password)
	if err != nil {
		log.WithError(err).Error("Password hashing failed")
		SendErrorResponse(w, "An Internal Error Occurred", http.StatusInternalServerError, nil)
		return
	}
	if err := s.users.UpdatePassword(r.Context(), user.ID, hashedPassword); err != nil {
		writeStoreError(w, log, err, "User")
		return
	}

	if err := s.issuer.Revoke(r.Context(), claims); err != nil {
		log.WithError(err).Warn("Revoking used reset token")
	}
	if err := s.gate.RecordSuccess(r.Context(), user.Username); err != nil {
		log.WithError(err).Warn("Clearing failed attempts after reset")
	}

	log.WithField("user_id", user.ID).Info("Password reset")
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Password has been reset"})
}

// Logout handles user logout
// @Summary Logout user
// @Description Revoke the presented token until it expires
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} MessageResponse "Logout successful"
// @Failure 401 {object} ErrorResponse
// @Router /authentication/logout [post]
func (s *AuthService) Logout(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFrom(r.Context())
	if !ok {
		SendErrorResponse(w, middleware.InvalidTokenMessage, http.StatusUnauthorized, nil)
		return
	}

	if err := s.issuer.Revoke(r.Context(), claims); err != nil {
		s.log.WithError(err).WithField("user_id", claims.Subject).Error("Failed to revoke token")
	}

	writeJSON(w, http.StatusOK, MessageResponse{Message: "Logout successful"})
}
