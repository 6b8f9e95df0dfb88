package security

import (
	"context"
	"sync"
	"time"

	"github.com/campusconnect/backend/internal/models"
	"github.com/campusconnect/backend/internal/store"
	"github.com/stretchr/testify/mock"
)

type MockUserFinder struct {
	mock.Mock
}

func (m *MockUserFinder) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

type MockAlertSender struct {
	mock.Mock
}

func (m *MockAlertSender) SendSecurityAlert(ctx context.Context, u *models.User) error {
	args := m.Called(ctx, u)
	return args.Error(0)
}

// memLedger applies the same rules as the SQL upsert in store.AttemptStore.
type memLedger struct {
	mu      sync.Mutex
	entries map[string]models.FailedAttempt
}

func newMemLedger() *memLedger {
	return &memLedger{entries: map[string]models.FailedAttempt{}}
}

func (l *memLedger) Get(_ context.Context, username string) (models.FailedAttempt, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	a, ok := l.entries[username]
	if !ok {
		return models.FailedAttempt{Username: username}, store.ErrNotFound
	}
	return a, nil
}

func (l *memLedger) RecordFailure(_ context.Context, username string, now time.Time, window time.Duration) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	a, ok := l.entries[username]
	if !ok || a.LastAttempt.Before(now.Add(-window)) {
		a = models.FailedAttempt{Username: username}
	}
	a.Attempts++
	a.LastAttempt = now
	l.entries[username] = a
	return a.Attempts, nil
}

func (l *memLedger) Reset(_ context.Context, username string, now time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries[username] = models.FailedAttempt{Username: username, LastAttempt: now}
	return nil
}
