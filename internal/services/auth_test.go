package services

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/campusconnect/backend/internal/audit"
	"github.com/campusconnect/backend/internal/middleware"
	"github.com/campusconnect/backend/internal/models"
	"github.com/campusconnect/backend/internal/security"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	loginPath  = "/api/authentication/login"
	testIP     = "192.0.2.1" // httptest.NewRequest's RemoteAddr
	goodSecret = "correct-horse"
)

func login(username, password any) map[string]any {
	return map[string]any{"username": username, "password": password}
}

func TestAuthService_Register(t *testing.T) {
	e := newTestEnv(t)

	t.Run("successful registration", func(t *testing.T) {
		w := e.do(t, http.MethodPost, "/api/authentication/register", "", RegisterRequest{
			Username:  "jdoe",
			Email:     "jdoe@udsm.ac.tz",
			Password:  "password123",
			Role:      models.RoleStudent,
			College:   "CoICT",
			FirstName: "John",
			Interests: []string{"ai"},
		})

		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		response := decodeBody[AuthResponse](t, w)
		assert.NotEmpty(t, response.Token)
		assert.Equal(t, "jdoe", response.User.Username)
		assert.Equal(t, models.RoleStudent, response.User.Role)
		assert.True(t, response.User.NotificationPrefs.News)
		assert.NotContains(t, w.Body.String(), "password")

		claims, err := e.issuer.Verify(context.Background(), response.Token)
		require.NoError(t, err)
		assert.Equal(t, response.User.ID, claims.Subject)
		assert.Equal(t, models.RoleStudent, claims.Role)
	})

	t.Run("duplicate username", func(t *testing.T) {
		w := e.do(t, http.MethodPost, "/api/authentication/register", "", RegisterRequest{
			Username: "jdoe", Email: "other@udsm.ac.tz", Password: "password123", Role: models.RoleAlumni,
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "Username or email already exists", errorMessage(t, w))
	})

	t.Run("validation failures", func(t *testing.T) {
		tests := []struct {
			name  string
			req   RegisterRequest
			field string
		}{
			{"admin roles cannot self-register", RegisterRequest{Username: "boss", Email: "boss@udsm.ac.tz", Password: "password123", Role: models.RoleSystemAdmin}, "role"},
			{"college admin cannot self-register", RegisterRequest{Username: "dean", Email: "dean@udsm.ac.tz", Password: "password123", Role: models.RoleCollegeAdmin, College: "CoICT"}, "role"},
			{"student needs a college", RegisterRequest{Username: "kid", Email: "kid@udsm.ac.tz", Password: "password123", Role: models.RoleStudent}, "college"},
			{"short password", RegisterRequest{Username: "guest", Email: "guest@udsm.ac.tz", Password: "short", Role: models.RoleVisitor}, "password"},
			{"bad email", RegisterRequest{Username: "guest", Email: "not-an-email", Password: "password123", Role: models.RoleVisitor}, "email"},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				w := e.do(t, http.MethodPost, "/api/authentication/register", "", tt.req)
				require.Equal(t, http.StatusBadRequest, w.Code)
				response := decodeBody[ErrorResponse](t, w)
				assert.Equal(t, "Validation failed", response.Error)
				assert.Contains(t, response.Details, tt.field)
			})
		}
	})

	t.Run("email is case-insensitive", func(t *testing.T) {
		w := e.do(t, http.MethodPost, "/api/authentication/register", "", RegisterRequest{
			Username: "asha", Email: "Asha@UDSM.ac.tz", Password: "password123", Role: models.RoleAlumni,
		})
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		assert.Equal(t, "asha@udsm.ac.tz", decodeBody[AuthResponse](t, w).User.Email)

		w = e.do(t, http.MethodPost, "/api/authentication/register", "", RegisterRequest{
			Username: "asha2", Email: "ASHA@udsm.ac.tz", Password: "password123", Role: models.RoleAlumni,
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "Username or email already exists", errorMessage(t, w))

		w = e.do(t, http.MethodPost, "/api/authentication/forgot-password", "", ForgotPasswordRequest{Email: "Asha@UDSM.ac.tz"})
		assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.NotEmpty(t, e.mailer.resetToken("asha@udsm.ac.tz"))
	})

	t.Run("unknown fields are rejected", func(t *testing.T) {
		w := e.do(t, http.MethodPost, "/api/authentication/register", "",
			`{"username":"sneaky","email":"s@udsm.ac.tz","password":"password123","role":"visitor","isActive":false}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "Invalid request", errorMessage(t, w))
	})
}

func TestAuthService_Login(t *testing.T) {
	e := newTestEnv(t)
	user := e.addUser(t, models.User{Username: "jdoe", Role: models.RoleStudent, College: "CoICT"}, goodSecret)

	t.Run("successful login", func(t *testing.T) {
		w := e.do(t, http.MethodPost, loginPath, "", login("jdoe", goodSecret))

		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		response := decodeBody[AuthResponse](t, w)
		assert.Equal(t, user.ID, response.User.ID)
		assert.NotNil(t, response.User.LastActive)

		claims, err := e.issuer.Verify(context.Background(), response.Token)
		require.NoError(t, err)
		assert.Equal(t, models.RoleStudent, claims.Role)
	})

	t.Run("wrong password", func(t *testing.T) {
		w := e.do(t, http.MethodPost, loginPath, "", login("jdoe", "nope"))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, "Invalid credentials", errorMessage(t, w))
	})

	t.Run("unknown username answers like a wrong password", func(t *testing.T) {
		w := e.do(t, http.MethodPost, loginPath, "", login("ghost", "nope"))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, 1, e.attempts.attempts("ghost"))
	})

	t.Run("username is matched exactly", func(t *testing.T) {
		w := e.do(t, http.MethodPost, loginPath, "", login("JDOE", goodSecret))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("disabled account", func(t *testing.T) {
		e.addUser(t, models.User{Username: "gone", Role: models.RoleAlumni}, goodSecret)
		stored, err := e.users.GetByUsername(context.Background(), "gone")
		require.NoError(t, err)
		stored.IsActive = false
		require.NoError(t, e.users.Update(context.Background(), stored))

		w := e.do(t, http.MethodPost, loginPath, "", login("gone", goodSecret))
		assert.Equal(t, http.StatusForbidden, w.Code)
	})
}

func TestAuthService_Lockout(t *testing.T) {
	e := newTestEnv(t)
	e.addUser(t, models.User{Username: "jdoe", Email: "jdoe@udsm.ac.tz", Role: models.RoleAlumni}, goodSecret)

	for i := 1; i <= 4; i++ {
		w := e.do(t, http.MethodPost, loginPath, "", login("jdoe", "wrong"))
		require.Equal(t, http.StatusUnauthorized, w.Code, "attempt %d", i)
	}
	assert.Equal(t, 0, e.mailer.alertCount())

	w := e.do(t, http.MethodPost, loginPath, "", login("jdoe", "wrong"))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, security.LockedMessage, errorMessage(t, w))
	assert.Equal(t, 1, e.mailer.alertCount())

	for i := 0; i < 3; i++ {
		w = e.do(t, http.MethodPost, loginPath, "", login("jdoe", "wrong"))
		assert.Equal(t, http.StatusTooManyRequests, w.Code)
	}
	assert.Equal(t, 1, e.mailer.alertCount(), "alert is sent once per lockout")
	assert.Equal(t, 5, e.attempts.attempts("jdoe"), "locked attempts are not counted")

	w = e.do(t, http.MethodPost, loginPath, "", login("jdoe", goodSecret))
	assert.Equal(t, http.StatusTooManyRequests, w.Code, "correct password is refused while locked")
}

func TestAuthService_SuccessResetsAttempts(t *testing.T) {
	e := newTestEnv(t)
	e.addUser(t, models.User{Username: "jdoe", Role: models.RoleAlumni}, goodSecret)

	for i := 0; i < 3; i++ {
		e.do(t, http.MethodPost, loginPath, "", login("jdoe", "wrong"))
	}
	require.Equal(t, 3, e.attempts.attempts("jdoe"))

	w := e.do(t, http.MethodPost, loginPath, "", login("jdoe", goodSecret))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0, e.attempts.attempts("jdoe"))

	e.do(t, http.MethodPost, loginPath, "", login("jdoe", "wrong"))
	assert.Equal(t, 1, e.attempts.attempts("jdoe"))
}

func TestAuthService_SuspiciousLoginInput(t *testing.T) {
	tests := []struct {
		name         string
		body         string
		usernameType string
		passwordType string
	}{
		{"object username", `{"username":{"$gt":""},"password":"x"}`, "object", "string"},
		{"numeric password", `{"username":"jdoe","password":12345}`, "string", "number"},
		{"missing password", `{"username":"jdoe"}`, "string", "missing"},
		{"array username", `{"username":["a"],"password":"x"}`, "array", "string"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEnv(t)
			e.addUser(t, models.User{Username: "jdoe", Role: models.RoleAlumni}, goodSecret)

			w := e.do(t, http.MethodPost, loginPath, "", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, "Invalid request", errorMessage(t, w))
			assert.Equal(t, 0, e.attempts.attempts("jdoe"))

			entries := e.audit.byAction(audit.ActionSuspiciousLogin)
			require.Len(t, entries, 1)
			assert.Equal(t, audit.RoleAnonymous, entries[0].Role)
			assert.Equal(t, testIP, entries[0].TargetID)
			assert.Equal(t, testIP, entries[0].IPAddress)

			var details map[string]string
			require.NoError(t, json.Unmarshal(entries[0].Details, &details))
			assert.Equal(t, tt.usernameType, details["usernameType"])
			assert.Equal(t, tt.passwordType, details["passwordType"])
		})
	}

	t.Run("empty strings are a validation error, not suspicious", func(t *testing.T) {
		e := newTestEnv(t)
		w := e.do(t, http.MethodPost, loginPath, "", login("", ""))
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "Validation failed", errorMessage(t, w))
		assert.Empty(t, e.audit.byAction(audit.ActionSuspiciousLogin))
	})
}

func TestAuthService_RateLimit(t *testing.T) {
	e := newTestEnvWithLimit(t, 2)
	e.addUser(t, models.User{Username: "jdoe", Role: models.RoleAlumni}, goodSecret)

	assert.Equal(t, http.StatusUnauthorized, e.do(t, http.MethodPost, loginPath, "", login("jdoe", "wrong")).Code)
	assert.Equal(t, http.StatusUnauthorized, e.do(t, http.MethodPost, loginPath, "", login("jdoe", "wrong")).Code)

	w := e.do(t, http.MethodPost, loginPath, "", login("jdoe", "wrong"))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, security.RateLimitMessage, errorMessage(t, w))
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	assert.Equal(t, 2, e.attempts.attempts("jdoe"), "rate limited requests never reach the ledger")

	// other endpoints share the per-IP budget
	w = e.do(t, http.MethodPost, "/api/authentication/forgot-password", "", ForgotPasswordRequest{Email: "jdoe@udsm.ac.tz"})
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestAuthService_PasswordReset(t *testing.T) {
	e := newTestEnv(t)
	user := e.addUser(t, models.User{Username: "jdoe", Email: "jdoe@udsm.ac.tz", Role: models.RoleAlumni}, goodSecret)

	t.Run("unknown email", func(t *testing.T) {
		w := e.do(t, http.MethodPost, "/api/authentication/forgot-password", "", ForgotPasswordRequest{Email: "who@udsm.ac.tz"})
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "User not found", errorMessage(t, w))
	})

	w := e.do(t, http.MethodPost, "/api/authentication/forgot-password", "", ForgotPasswordRequest{Email: user.Email})
	require.Equal(t, http.StatusOK, w.Code)
	token := e.mailer.resetToken(user.Email)
	require.NotEmpty(t, token)

	t.Run("reset token is not an access token", func(t *testing.T) {
		w := e.do(t, http.MethodGet, "/api/users/me", token, nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("access token is not a reset token", func(t *testing.T) {
		w := e.do(t, http.MethodPost, "/api/authentication/reset-password", "",
			ResetPasswordRequest{Token: e.tokenFor(t, user), Password: "new-password-1"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "Invalid or expired token", errorMessage(t, w))
	})

	// a locked account is usable again after a reset
	for i := 0; i < 5; i++ {
		e.do(t, http.MethodPost, loginPath, "", login("jdoe", "wrong"))
	}

	w = e.do(t, http.MethodPost, "/api/authentication/reset-password", "",
		ResetPasswordRequest{Token: token, Password: "new-password-1"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	assert.Equal(t, http.StatusUnauthorized, e.do(t, http.MethodPost, loginPath, "", login("jdoe", goodSecret)).Code)
	assert.Equal(t, http.StatusOK, e.do(t, http.MethodPost, loginPath, "", login("jdoe", "new-password-1")).Code)
}

func TestAuthService_Logout(t *testing.T) {
	e := newTestEnv(t)
	user := e.addUser(t, models.User{Username: "jdoe", Role: models.RoleVisitor}, goodSecret)

	w := e.do(t, http.MethodPost, "/api/authentication/logout", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, middleware.InvalidTokenMessage, errorMessage(t, w))

	w = e.do(t, http.MethodPost, "/api/authentication/logout", e.tokenFor(t, user), nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Logout successful", decodeBody[MessageResponse](t, w).Message)
}
