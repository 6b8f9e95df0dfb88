package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/campusconnect/backend/docs"
	"github.com/campusconnect/backend/internal/audit"
	"github.com/campusconnect/backend/internal/database"
	"github.com/campusconnect/backend/internal/notify"
	"github.com/campusconnect/backend/internal/security"
	"github.com/campusconnect/backend/internal/services"
	"github.com/campusconnect/backend/internal/session"
	"github.com/campusconnect/backend/internal/store"
	"github.com/campusconnect/backend/internal/visibility"
	"github.com/spf13/cobra"
)

var (
	migrateOnStart bool
	swaggerHost    string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&migrateOnStart, "migrate", true, "apply the schema before serving")
	serveCmd.Flags().StringVar(&swaggerHost, "swagger-host", "localhost:8080", "host advertised in the API docs")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	if cfg.JWTSecret == "" {
		return errors.New("JWT_SECRET_KEY is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.InitDB(log)
	if err != nil {
		return err
	}
	defer db.Close()

	if migrateOnStart {
		if err := database.Migrate(ctx, db); err != nil {
			return fmt.Errorf("migrating schema: %w", err)
		}
	}

	rdb := database.InitRedis(log)
	if rdb != nil {
		defer rdb.Close()
	}

	users := store.NewUserStore(db)
	feed := store.NewFeedStore(db)
	registrations := store.NewRegistrationStore(db)
	auditStore := store.NewAuditStore(db)

	var pusher notify.Pusher = notify.LogPusher{Log: log}
	if cfg.FirebaseCredentialsPath != "" {
		fcm, err := notify.NewFCMPusher(ctx, cfg.FirebaseCredentialsPath, log.WithField("component", "fcm"))
		if err != nil {
			log.WithError(err).Warn("Push notifications disabled")
		} else {
			pusher = fcm
		}
	} else {
		log.Warn("FIREBASE_SERVICE_ACCOUNT_PATH not set, push notifications disabled")
	}

	var mailer notify.Mailer = notify.LogMailer{Log: log}
	if cfg.ResendAPIKey != "" {
		mailer = notify.NewResendMailer(cfg.ResendAPIKey, cfg.EmailFrom)
	} else {
		log.Warn("RESEND_API_KEY not set, emails disabled")
	}
	emails := notify.NewEmails(mailer, cfg.ResetURL)

	sec := cfg.Security
	fanout := notify.NewFanout(users, pusher, sec.GeofenceDefaultRadiusM, log.WithField("component", "notify"))
	recorder := audit.NewRecorder(auditStore, log.WithField("component", "audit"))
	issuer := session.NewIssuer(cfg.JWTSecret, cfg.TokenExpiry, cfg.ResetTokenExpiry, rdb, log.WithField("component", "session"))
	gate := security.NewGate(store.NewAttemptStore(db), users, emails, sec.LockoutThreshold, sec.LockoutWindow,
		log.WithField("component", "login-gate"))
	limiter := security.NewRateLimiter(rdb, sec.RateLimitMax, sec.RateLimitWindow, log.WithField("component", "rate-limit"))
	proxies, err := security.ParseTrustedProxies(sec.TrustedProxies)
	if err != nil {
		return err
	}

	docs.SwaggerInfo.Host = swaggerHost

	api := &services.API{
		Auth:       services.NewAuthService(users, gate, issuer, services.NewPasswordHasher(cfg.Argon2), emails, recorder, log),
		Users:      services.NewUserService(users, recorder, fanout, log),
		Feed:       services.NewFeedService(feed, registrations, users, visibility.NewFilter(sec.GeofenceDefaultRadiusM), recorder, fanout, log),
		Jobs:       services.NewJobService(store.NewJobStore(db), users, recorder, fanout, log),
		Mentorship: services.NewMentorshipService(store.NewMentorshipStore(db), users, fanout, log),
		Alumni:     services.NewAlumniService(store.NewAlumniStore(db), store.NewConnectionStore(db), users, fanout, log),
		Emergency:  services.NewEmergencyService(store.NewEmergencyContactStore(db), users, recorder, log),
		Audit:      services.NewAuditService(auditStore, log),
		Verifier:   issuer,
		Limiter:    limiter,
		Proxies:    proxies,
		Log:        log,

		AllowedOrigins: cfg.AllowedOrigins,
		SwaggerURL:     "/swagger/doc.json",
	}

	if cfg.RemindersEnabled {
		reminders, err := notify.NewReminders(cfg.ReminderSchedule, cfg.ReminderTimezone, feed, registrations, fanout,
			log.WithField("component", "reminders"))
		if err != nil {
			return err
		}
		reminders.Start()
		defer func() { <-reminders.Stop().Done() }()
	}

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      api.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 65 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", server.Addr).Info("Server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info("Server shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Info("Server stopped")
	return nil
}
