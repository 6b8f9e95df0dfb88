package services

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/campusconnect/backend/internal/middleware"
	"github.com/campusconnect/backend/internal/models"
	"github.com/campusconnect/backend/internal/security"
	"github.com/go-chi/chi/v5"
	chiMW "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"
	httpSwagger "github.com/swaggo/http-swagger"
)

// API bundles every handler group mounted by Routes.
type API struct {
	Auth       *AuthService
	Users      *UserService
	Feed       *FeedService
	Jobs       *JobService
	Mentorship *MentorshipService
	Alumni     *AlumniService
	Emergency  *EmergencyService
	Audit      *AuditService

	Verifier middleware.TokenVerifier
	Limiter  *security.RateLimiter
	Proxies  *security.TrustedProxies
	Log      logrus.FieldLogger

	AllowedOrigins []string
	SwaggerURL     string
}

var feedRoutes = []struct {
	kind models.Kind
	path string
}{
	{models.KindNews, "/news"},
	{models.KindAnnouncement, "/announcements"},
	{models.KindEvent, "/events"},
}

// Routes builds the HTTP handler for the whole service.
func (a *API) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(chiMW.RequestID)
	r.Use(a.Proxies.Middleware)
	r.Use(middleware.RequestLogger(a.Log))
	r.Use(chiMW.Recoverer)
	r.Use(chiMW.Timeout(60 * time.Second))
	r.Use(middleware.SecurityHeaders)

	// credentials only go to origins that were named explicitly
	origins := a.AllowedOrigins
	credentials := len(origins) > 0
	if !credentials {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link", "Retry-After"},
		AllowCredentials: credentials,
		MaxAge:           86400,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
	})

	if a.SwaggerURL != "" {
		r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL(a.SwaggerURL)))
	}

	authenticate := middleware.Authenticate(a.Verifier, a.Log)
	admins := middleware.RequireRoles(models.AdminRoles...)
	systemAdmin := middleware.RequireRoles(models.RoleSystemAdmin)

	r.Route("/api", func(r chi.Router) {
		r.Route("/authentication", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(a.Limiter.Middleware)
				r.Post("/register", a.Auth.Register)
				r.Post("/login", a.Auth.Login)
				r.Post("/forgot-password", a.Auth.ForgotPassword)
			})
			r.Post("/reset-password", a.Auth.ResetPassword)
			r.With(authenticate).Post("/logout", a.Auth.Logout)
		})

		r.Group(func(r chi.Router) {
			r.Use(authenticate)

			r.Get("/users/me", a.Users.Me)
			r.Patch("/users/me", a.Users.UpdateMe)
			r.Post("/users/me/device-tokens", a.Users.AddDeviceToken)
			r.Delete("/users/me/device-tokens", a.Users.RemoveDeviceToken)
			r.With(systemAdmin).Get("/users", a.Users.List)
			r.With(systemAdmin).Patch("/users/{id}", a.Users.Update)
			r.With(systemAdmin).Delete("/users/{id}", a.Users.Delete)

			for _, fr := range feedRoutes {
				r.Get(fr.path, a.Feed.List(fr.kind))
				r.Get(fr.path+"/{id}", a.Feed.Get(fr.kind))
				r.With(admins).Post(fr.path, a.Feed.Create(fr.kind))
				r.Put(fr.path+"/{id}", a.Feed.Update(fr.kind))
				r.Patch(fr.path+"/{id}", a.Feed.Update(fr.kind))
				r.Delete(fr.path+"/{id}", a.Feed.Delete(fr.kind))
			}
			r.Post("/events/{id}/register", a.Feed.Register)
			r.Delete("/events/{id}/register", a.Feed.Unregister)

			r.Get("/jobs", a.Jobs.List)
			r.Get("/jobs/{id}", a.Jobs.Get)
			r.With(middleware.RequireRoles(JobPosters...)).Post("/jobs", a.Jobs.Create)
			r.Patch("/jobs/{id}", a.Jobs.Update)
			r.Delete("/jobs/{id}", a.Jobs.Delete)

			r.With(middleware.RequireRoles(models.RoleStudent)).Post("/mentorship-requests", a.Mentorship.Create)
			r.With(middleware.RequireRoles(models.RoleStudent, models.RoleAlumni)).Get("/mentorship-requests", a.Mentorship.List)
			r.With(middleware.RequireRoles(models.RoleAlumni)).Patch("/mentorship-requests/{id}", a.Mentorship.Respond)

			r.Get("/alumni", a.Alumni.Search)
			r.Get("/mentors", a.Alumni.Mentors)
			r.Get("/alumni/{id}", a.Alumni.Get)
			r.With(middleware.RequireRoles(models.RoleAlumni)).Put("/alumni/me/profile", a.Alumni.UpdateProfile)
			r.Post("/alumni/{id}/connections", a.Alumni.Connect)
			r.Get("/connections", a.Alumni.Connections)
			r.Patch("/connections/{id}", a.Alumni.RespondConnection)

			r.Get("/emergency-contacts", a.Emergency.List)
			r.With(systemAdmin).Post("/emergency-contacts", a.Emergency.Create)
			r.With(systemAdmin).Put("/emergency-contacts/{id}", a.Emergency.Update)
			r.With(systemAdmin).Delete("/emergency-contacts/{id}", a.Emergency.Delete)

			r.With(systemAdmin).Get("/audit-logs", a.Audit.List)
		})
	})

	return r
}
