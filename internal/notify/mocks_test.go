package notify

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/campusconnect/backend/internal/models"
	"github.com/campusconnect/backend/internal/store"
	"github.com/campusconnect/backend/internal/visibility"
	"github.com/stretchr/testify/mock"
)

type MockPusher struct {
	mock.Mock
}

func (m *MockPusher) Push(ctx context.Context, tokens []string, msg Message) ([]string, error) {
	args := m.Called(ctx, tokens, msg)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

type MockMailer struct {
	mock.Mock
}

func (m *MockMailer) Send(ctx context.Context, e Email) error {
	return m.Called(ctx, e).Error(0)
}

// memTokens keeps per-user token sets and prunes the way store.UserStore does.
type memTokens struct {
	mu      sync.Mutex
	tokens  map[string][]string
	clauses []visibility.Clause
}

func (m *memTokens) Recipients(_ context.Context, c visibility.Clause) ([]store.Recipient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clauses = append(m.clauses, c)

	ids := make([]string, 0, len(m.tokens))
	for id := range m.tokens {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var out []store.Recipient
	for _, id := range ids {
		if len(m.tokens[id]) > 0 {
			out = append(out, store.Recipient{UserID: id, Tokens: append([]string(nil), m.tokens[id]...)})
		}
	}
	return out, nil
}

func (m *memTokens) PruneTokens(_ context.Context, dead []string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var changed int64
	for id, toks := range m.tokens {
		kept := toks[:0:0]
		for _, t := range toks {
			if !containsToken(dead, t) {
				kept = append(kept, t)
			}
		}
		if len(kept) != len(toks) {
			changed++
		}
		m.tokens[id] = kept
	}
	return changed, nil
}

func containsToken(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

type fakeEvents struct {
	items    []*models.FeedItem
	from, to time.Time
}

func (f *fakeEvents) Upcoming(_ context.Context, from, to time.Time) ([]*models.FeedItem, error) {
	f.from, f.to = from, to
	return f.items, nil
}

type fakeAttendees map[string][]string

func (f fakeAttendees) Attendees(_ context.Context, eventID string) ([]string, error) {
	return f[eventID], nil
}
