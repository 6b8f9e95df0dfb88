package security

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/campusconnect/backend/internal/models"
	"github.com/campusconnect/backend/internal/store"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var start = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

type gateFixture struct {
	gate   *Gate
	ledger *memLedger
	users  *MockUserFinder
	alerts *MockAlertSender
	hook   *test.Hook
	now    time.Time
}

func newGateFixture() *gateFixture {
	log, hook := test.NewNullLogger()
	f := &gateFixture{
		ledger: newMemLedger(),
		users:  &MockUserFinder{},
		alerts: &MockAlertSender{},
		hook:   hook,
		now:    start,
	}
	f.gate = NewGate(f.ledger, f.users, f.alerts, 5, 5*time.Minute, log)
	f.gate.now = func() time.Time { return f.now }
	return f
}

// fail runs the gate the way the login handler does for a wrong password and reports
// whether the attempt was answered with 429.
func (f *gateFixture) fail(t *testing.T, username string) bool {
	t.Helper()
	ctx := context.Background()
	a, err := f.gate.Check(ctx, username)
	if errors.Is(err, ErrLocked) {
		return true
	}
	require.NoError(t, err)
	res, err := f.gate.RecordFailure(ctx, a)
	require.NoError(t, err)
	return res.Blocked
}

func TestGate_LockoutAlertsExactlyOnce(t *testing.T) {
	f := newGateFixture()
	owner := &models.User{ID: "u-1", Username: "jdoe", Email: "jdoe@udsm.ac.tz"}
	f.users.On("GetByUsername", mock.Anything, "jdoe").Return(owner, nil).Once()
	f.alerts.On("SendSecurityAlert", mock.Anything, owner).Return(nil).Once()

	for i := 1; i <= 4; i++ {
		assert.False(t, f.fail(t, "jdoe"), "attempt %d", i)
		f.now = f.now.Add(10 * time.Second)
	}
	for i := 5; i <= 9; i++ {
		assert.True(t, f.fail(t, "jdoe"), "attempt %d", i)
		f.now = f.now.Add(10 * time.Second)
	}

	f.users.AssertExpectations(t)
	f.alerts.AssertNumberOfCalls(t, "SendSecurityAlert", 1)
}

func TestGate_LockExpiresAfterWindow(t *testing.T) {
	f := newGateFixture()
	f.users.On("GetByUsername", mock.Anything, "jdoe").Return(nil, store.ErrNotFound)

	for i := 0; i < 5; i++ {
		f.fail(t, "jdoe")
	}
	_, err := f.gate.Check(context.Background(), "jdoe")
	assert.ErrorIs(t, err, ErrLocked)

	f.now = f.now.Add(5*time.Minute + time.Second)
	a, err := f.gate.Check(context.Background(), "jdoe")
	require.NoError(t, err)
	assert.Zero(t, a.Attempts)
	f.alerts.AssertNotCalled(t, "SendSecurityAlert", mock.Anything, mock.Anything)
}

func TestGate_WindowReset(t *testing.T) {
	f := newGateFixture()

	for i := 0; i < 3; i++ {
		f.fail(t, "jdoe")
	}
	f.now = f.now.Add(6 * time.Minute)

	a, err := f.gate.Check(context.Background(), "jdoe")
	require.NoError(t, err)
	assert.Zero(t, a.Attempts)

	res, err := f.gate.RecordFailure(context.Background(), a)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Attempts)
	assert.False(t, res.Blocked)
}

func TestGate_SuccessResets(t *testing.T) {
	f := newGateFixture()
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		f.fail(t, "jdoe")
	}
	require.NoError(t, f.gate.RecordSuccess(ctx, "jdoe"))

	a, err := f.gate.Check(ctx, "jdoe")
	require.NoError(t, err)
	assert.Zero(t, a.Attempts)

	res, err := f.gate.RecordFailure(ctx, a)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Attempts)
}

func TestGate_UsernamesAreCaseSensitive(t *testing.T) {
	f := newGateFixture()
	f.users.On("GetByUsername", mock.Anything, mock.Anything).Return(nil, store.ErrNotFound)

	for i := 0; i < 5; i++ {
		f.fail(t, "jdoe")
	}
	_, err := f.gate.Check(context.Background(), "JDoe")
	assert.NoError(t, err)
}

func TestGate_AlertFailureIsLogged(t *testing.T) {
	f := newGateFixture()
	owner := &models.User{ID: "u-1", Username: "jdoe", Email: "jdoe@udsm.ac.tz"}
	f.users.On("GetByUsername", mock.Anything, "jdoe").Return(owner, nil)
	f.alerts.On("SendSecurityAlert", mock.Anything, owner).Return(errors.New("provider down"))

	var blocked bool
	for i := 0; i < 5; i++ {
		blocked = f.fail(t, "jdoe")
	}
	assert.True(t, blocked)

	var found bool
	for _, e := range f.hook.AllEntries() {
		if e.Level == logrus.ErrorLevel && e.Message == "Sending security alert" {
			found = true
		}
	}
	assert.True(t, found)
}

type failingLedger struct{}

func (failingLedger) Get(context.Context, string) (models.FailedAttempt, error) {
	return models.FailedAttempt{}, errors.New("db down")
}

func (failingLedger) RecordFailure(context.Context, string, time.Time, time.Duration) (int, error) {
	return 0, errors.New("db down")
}

func (failingLedger) Reset(context.Context, string, time.Time) error {
	return errors.New("db down")
}

func TestGate_CheckPropagatesStoreErrors(t *testing.T) {
	log, _ := test.NewNullLogger()
	g := NewGate(failingLedger{}, &MockUserFinder{}, &MockAlertSender{}, 5, 5*time.Minute, log)

	_, err := g.Check(context.Background(), "jdoe")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrLocked)
}
