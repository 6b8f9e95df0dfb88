// Package security guards the login endpoint: a per-IP rate limiter and a per-username
// failed-attempt lockout. The two are independent and both apply.
package security

import (
	"context"
	"errors"
	"time"

	"github.com/campusconnect/backend/internal/models"
	"github.com/campusconnect/backend/internal/store"
	"github.com/sirupsen/logrus"
)

// ErrLocked means the username has reached the failure threshold inside the window.
var ErrLocked = errors.New("too many failed attempts")

const LockedMessage = "Too many failed attempts. Try again later."

type AttemptLedger interface {
	Get(ctx context.Context, username string) (models.FailedAttempt, error)
	RecordFailure(ctx context.Context, username string, now time.Time, window time.Duration) (int, error)
	Reset(ctx context.Context, username string, now time.Time) error
}

type UserFinder interface {
	GetByUsername(ctx context.Context, username string) (*models.User, error)
}

// AlertSender delivers the suspicious-activity email.
type AlertSender interface {
	SendSecurityAlert(ctx context.Context, u *models.User) error
}

type Gate struct {
	attempts  AttemptLedger
	users     UserFinder
	alerts    AlertSender
	threshold int
	window    time.Duration
	log       logrus.FieldLogger
	now       func() time.Time
}

func NewGate(attempts AttemptLedger, users UserFinder, alerts AlertSender, threshold int, window time.Duration, log logrus.FieldLogger) *Gate {
	return &Gate{
		attempts:  attempts,
		users:     users,
		alerts:    alerts,
		threshold: threshold,
		window:    window,
		log:       log,
		now:       time.Now,
	}
}

// Check loads the ledger entry for username with the window reset applied. Nothing is
// persisted. The entry is returned even when the username is locked.
func (g *Gate) Check(ctx context.Context, username string) (models.FailedAttempt, error) {
	now := g.now()
	a, err := g.attempts.Get(ctx, username)
	if errors.Is(err, store.ErrNotFound) {
		a = models.FailedAttempt{Username: username, LastAttempt: now}
	} else if err != nil {
		return a, err
	}

	if now.Sub(a.LastAttempt) > g.window {
		a.Attempts = 0
		a.LastAttempt = now
	}
	if a.Attempts >= g.threshold {
		return a, ErrLocked
	}
	return a, nil
}

// FailureResult is the outcome of a failed credential check.
type FailureResult struct {
	Attempts int
	Blocked  bool
}

// RecordFailure counts a failed credential check for attempt.Username. The alert email
// goes out only on the attempt that reaches the threshold.
func (g *Gate) RecordFailure(ctx context.Context, attempt models.FailedAttempt) (FailureResult, error) {
	n, err := g.attempts.RecordFailure(ctx, attempt.Username, g.now(), g.window)
	if err != nil {
		return FailureResult{}, err
	}

	res := FailureResult{Attempts: n, Blocked: n >= g.threshold}
	entry := g.log.WithFields(logrus.Fields{"username": attempt.Username, "attempts": n})
	if !res.Blocked {
		entry.Info("Failed login recorded")
		return res, nil
	}

	entry.Warn("Failed login threshold reached")
	if n == g.threshold {
		g.alert(ctx, attempt.Username)
	}
	return res, nil
}

// RecordSuccess clears the counter for username.
func (g *Gate) RecordSuccess(ctx context.Context, username string) error {
	return g.attempts.Reset(ctx, username, g.now())
}

func (g *Gate) alert(ctx context.Context, username string) {
	u, err := g.users.GetByUsername(ctx, username)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			g.log.WithError(err).WithField("username", username).Error("Looking up account for security alert")
		}
		return
	}
	if err := g.alerts.SendSecurityAlert(ctx, u); err != nil {
		g.log.WithError(err).WithField("user_id", u.ID).Error("Sending security alert")
		return
	}
	g.log.WithField("user_id", u.ID).Info("Security alert sent")
}
