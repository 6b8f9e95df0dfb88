package services

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/campusconnect/backend/internal/audit"
	"github.com/campusconnect/backend/internal/config"
	"github.com/campusconnect/backend/internal/models"
	"github.com/campusconnect/backend/internal/notify"
	"github.com/campusconnect/backend/internal/security"
	"github.com/campusconnect/backend/internal/session"
	"github.com/campusconnect/backend/internal/store"
	"github.com/campusconnect/backend/internal/visibility"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
)

// memUsers stands in for store.UserStore. Values are copied in and out so handlers
// never share a record with the store.
type memUsers struct {
	mu    sync.Mutex
	users map[string]models.User
}

func newMemUsers() *memUsers {
	return &memUsers{users: map[string]models.User{}}
}

func (m *memUsers) Create(_ context.Context, u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.Username == u.Username || existing.Email == u.Email {
			return store.ErrAlreadyExists
		}
	}
	u.ID = uuid.NewString()
	u.CreatedAt = time.Now()
	u.UpdatedAt = u.CreatedAt
	m.users[u.ID] = *u
	return nil
}

func (m *memUsers) find(match func(models.User) bool) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if match(u) {
			found := u
			return &found, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *memUsers) GetByID(_ context.Context, id string) (*models.User, error) {
	return m.find(func(u models.User) bool { return u.ID == id })
}

func (m *memUsers) GetByUsername(_ context.Context, username string) (*models.User, error) {
	return m.find(func(u models.User) bool { return u.Username == username })
}

func (m *memUsers) GetByEmail(_ context.Context, email string) (*models.User, error) {
	email = models.NormalizeEmail(email)
	return m.find(func(u models.User) bool { return u.Email == email })
}

func (m *memUsers) modify(id string, fn func(u *models.User)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return store.ErrNotFound
	}
	fn(&u)
	m.users[id] = u
	return nil
}

func (m *memUsers) Update(_ context.Context, u *models.User) error {
	return m.modify(u.ID, func(stored *models.User) {
		hash, tokens := stored.PasswordHash, stored.DeviceTokens
		*stored = *u
		stored.PasswordHash, stored.DeviceTokens = hash, tokens
	})
}

func (m *memUsers) UpdatePassword(_ context.Context, id, hash string) error {
	return m.modify(id, func(u *models.User) { u.PasswordHash = hash })
}

func (m *memUsers) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[id]; !ok {
		return store.ErrNotFound
	}
	delete(m.users, id)
	return nil
}

func (m *memUsers) List(_ context.Context, f store.UserFilter) ([]*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*models.User{}
	for _, u := range m.users {
		if (f.Role == "" || u.Role == f.Role) && (f.College == "" || u.College == f.College) {
			found := u
			out = append(out, &found)
		}
	}
	return out, nil
}

func (m *memUsers) AddDeviceToken(_ context.Context, id, token string) error {
	return m.modify(id, func(u *models.User) {
		if !contains(u.DeviceTokens, token) {
			u.DeviceTokens = append(u.DeviceTokens, token)
		}
	})
}

func (m *memUsers) RemoveDeviceToken(_ context.Context, id, token string) error {
	return m.modify(id, func(u *models.User) {
		kept := []string{}
		for _, t := range u.DeviceTokens {
			if t != token {
				kept = append(kept, t)
			}
		}
		u.DeviceTokens = kept
	})
}

func (m *memUsers) TouchLastActive(_ context.Context, id string, at time.Time) error {
	return m.modify(id, func(u *models.User) { u.LastActive = &at })
}

// Recipients ignores the audience; push delivery is covered in package notify.
func (m *memUsers) Recipients(context.Context, visibility.Clause) ([]store.Recipient, error) {
	return nil, nil
}

func (m *memUsers) PruneTokens(context.Context, []string) (int64, error) {
	return 0, nil
}

// memFeed evaluates the listing clause the way postgres would, minus the geofence
// alternative, which package visibility tests on its own.
type memFeed struct {
	mu    sync.Mutex
	items map[string]models.FeedItem
}

func newMemFeed() *memFeed {
	return &memFeed{items: map[string]models.FeedItem{}}
}

func (m *memFeed) Create(_ context.Context, item *models.FeedItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	item.ID = uuid.NewString()
	item.CreatedAt = time.Now()
	item.UpdatedAt = item.CreatedAt
	m.items[item.ID] = *item
	return nil
}

func (m *memFeed) Get(_ context.Context, kind models.Kind, id string) (*models.FeedItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.items[id]
	if !ok || item.Kind != kind {
		return nil, store.ErrNotFound
	}
	return &item, nil
}

func (m *memFeed) List(_ context.Context, kind models.Kind, c visibility.Clause, _ store.Page) ([]*models.FeedItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*models.FeedItem{}
	for _, item := range m.items {
		if item.Kind == kind && clauseMatches(c, &item) {
			found := item
			out = append(out, &found)
		}
	}
	return out, nil
}

func clauseMatches(c visibility.Clause, item *models.FeedItem) bool {
	now := c.Args[0].(time.Time)
	if !item.IsPublished || item.IsArchived {
		return false
	}
	if item.ExpiresAt != nil && !item.ExpiresAt.After(now) {
		return false
	}
	if item.ScheduledAt != nil && item.ScheduledAt.After(now) {
		return false
	}

	switch len(c.Args) {
	case 1: // system admin
		return true
	case 2: // college admin
		return overlaps(item.Colleges, *c.Args[1].(*pq.StringArray))
	}
	return overlaps(item.Colleges, *c.Args[1].(*pq.StringArray)) ||
		contains(item.TargetRoles, c.Args[2].(string)) ||
		overlaps(item.Tags, *c.Args[3].(*pq.StringArray))
}

func (m *memFeed) Update(_ context.Context, item *models.FeedItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[item.ID]; !ok {
		return store.ErrNotFound
	}
	item.UpdatedAt = time.Now()
	m.items[item.ID] = *item
	return nil
}

func (m *memFeed) Delete(_ context.Context, kind models.Kind, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if item, ok := m.items[id]; !ok || item.Kind != kind {
		return store.ErrNotFound
	}
	delete(m.items, id)
	return nil
}

type memRegistrations struct {
	mu   sync.Mutex
	regs map[string]map[string]time.Time
}

func newMemRegistrations() *memRegistrations {
	return &memRegistrations{regs: map[string]map[string]time.Time{}}
}

func (m *memRegistrations) Register(_ context.Context, eventID, userID string) (time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.regs[eventID] == nil {
		m.regs[eventID] = map[string]time.Time{}
	}
	if _, ok := m.regs[eventID][userID]; ok {
		return time.Time{}, store.ErrAlreadyExists
	}
	at := time.Now().UTC()
	m.regs[eventID][userID] = at
	return at, nil
}

func (m *memRegistrations) Unregister(_ context.Context, eventID, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.regs[eventID][userID]; !ok {
		return store.ErrNotFound
	}
	delete(m.regs[eventID], userID)
	return nil
}

func (m *memRegistrations) Attendees(_ context.Context, eventID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := []string{}
	for id := range m.regs[eventID] {
		ids = append(ids, id)
	}
	return ids, nil
}

type memJobs struct {
	mu   sync.Mutex
	jobs map[string]models.Job
}

func newMemJobs() *memJobs {
	return &memJobs{jobs: map[string]models.Job{}}
}

func (m *memJobs) Create(_ context.Context, j *models.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	j.ID = uuid.NewString()
	j.CreatedAt = time.Now()
	m.jobs[j.ID] = *j
	return nil
}

func (m *memJobs) Get(_ context.Context, id string) (*models.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &j, nil
}

func (m *memJobs) ListActive(_ context.Context, now time.Time, _ store.Page) ([]*models.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*models.Job{}
	for _, j := range m.jobs {
		if j.IsActive && (j.ExpiresAt == nil || j.ExpiresAt.After(now)) {
			found := j
			out = append(out, &found)
		}
	}
	return out, nil
}

func (m *memJobs) Update(_ context.Context, j *models.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.jobs[j.ID]; !ok {
		return store.ErrNotFound
	}
	m.jobs[j.ID] = *j
	return nil
}

func (m *memJobs) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.jobs[id]; !ok {
		return store.ErrNotFound
	}
	delete(m.jobs, id)
	return nil
}

// memMentorship enforces the (student, alumni) unique index.
type memMentorship struct {
	mu       sync.Mutex
	requests map[string]models.MentorshipRequest
}

func newMemMentorship() *memMentorship {
	return &memMentorship{requests: map[string]models.MentorshipRequest{}}
}

func (m *memMentorship) Create(_ context.Context, req *models.MentorshipRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.requests {
		if existing.StudentID == req.StudentID && existing.AlumniID == req.AlumniID {
			return store.ErrAlreadyExists
		}
	}
	req.ID = uuid.NewString()
	req.Status = models.MentorshipPending
	req.CreatedAt = time.Now()
	req.UpdatedAt = req.CreatedAt
	m.requests[req.ID] = *req
	return nil
}

func (m *memMentorship) Get(_ context.Context, id string) (*models.MentorshipRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	req, ok := m.requests[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &req, nil
}

func (m *memMentorship) ListFor(_ context.Context, userID string) ([]*models.MentorshipRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*models.MentorshipRequest{}
	for _, req := range m.requests {
		if req.StudentID == userID || req.AlumniID == userID {
			found := req
			out = append(out, &found)
		}
	}
	return out, nil
}

func (m *memMentorship) SetStatus(_ context.Context, id, status string) (*models.MentorshipRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	req, ok := m.requests[id]
	if !ok || req.Status != models.MentorshipPending {
		return nil, store.ErrNotFound
	}
	req.Status = status
	req.UpdatedAt = time.Now()
	m.requests[id] = req
	return &req, nil
}

// memConnections enforces the unordered-pair unique index.
type memConnections struct {
	mu    sync.Mutex
	conns map[string]models.Connection
}

func newMemConnections() *memConnections {
	return &memConnections{conns: map[string]models.Connection{}}
}

func (m *memConnections) Create(_ context.Context, c *models.Connection) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.conns {
		if existing.Involves(c.RequesterID) && existing.Involves(c.RecipientID) {
			return store.ErrAlreadyExists
		}
	}
	c.ID = uuid.NewString()
	c.Status = models.ConnectionPending
	c.CreatedAt = time.Now()
	c.UpdatedAt = c.CreatedAt
	m.conns[c.ID] = *c
	return nil
}

func (m *memConnections) Get(_ context.Context, id string) (*models.Connection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.conns[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &c, nil
}

func (m *memConnections) ListFor(_ context.Context, userID, status string) ([]*models.Connection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*models.Connection{}
	for _, c := range m.conns {
		if c.Involves(userID) && c.Status == status {
			found := c
			out = append(out, &found)
		}
	}
	return out, nil
}

func (m *memConnections) SetStatus(_ context.Context, id, status string) (*models.Connection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.conns[id]
	if !ok || c.Status != models.ConnectionPending {
		return nil, store.ErrNotFound
	}
	c.Status = status
	c.UpdatedAt = time.Now()
	m.conns[id] = c
	return &c, nil
}

// memAlumni joins profiles onto memUsers the way the search query joins users.
type memAlumni struct {
	mu       sync.Mutex
	users    *memUsers
	profiles map[string]models.AlumniProfile
}

func newMemAlumni(users *memUsers) *memAlumni {
	return &memAlumni{users: users, profiles: map[string]models.AlumniProfile{}}
}

func (m *memAlumni) UpsertProfile(_ context.Context, p *models.AlumniProfile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p.UpdatedAt = time.Now()
	m.profiles[p.UserID] = *p
	return nil
}

func (m *memAlumni) card(u models.User) *models.AlumniCard {
	p, ok := m.profiles[u.ID]
	if !ok {
		p = models.AlumniProfile{UserID: u.ID, Expertise: []string{}}
	}
	return &models.AlumniCard{
		ID:         u.ID,
		Username:   u.Username,
		FirstName:  u.FirstName,
		LastName:   u.LastName,
		College:    u.College,
		Department: u.Department,
		Profile:    p,
	}
}

func (m *memAlumni) Get(_ context.Context, id string) (*models.AlumniCard, error) {
	u, err := m.users.GetByID(context.Background(), id)
	if err != nil || u.Role != models.RoleAlumni || !u.IsActive {
		return nil, store.ErrNotFound
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.card(*u), nil
}

func (m *memAlumni) Search(_ context.Context, f store.AlumniFilter) ([]*models.AlumniCard, error) {
	alumni, _ := m.users.List(context.Background(), store.UserFilter{Role: models.RoleAlumni})
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*models.AlumniCard{}
	for _, u := range alumni {
		c := m.card(*u)
		p := c.Profile
		if !u.IsActive ||
			(f.College != "" && u.College != f.College) ||
			(f.Department != "" && u.Department != f.Department) ||
			(f.Industry != "" && p.Industry != f.Industry) ||
			(f.Expertise != "" && !contains(p.Expertise, f.Expertise)) ||
			(f.GraduationYear != 0 && p.GraduationYear != f.GraduationYear) ||
			(f.MentorsOnly && !p.MentorshipAvailable) {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

type memContacts struct {
	mu       sync.Mutex
	contacts map[string]models.EmergencyContact
}

func newMemContacts() *memContacts {
	return &memContacts{contacts: map[string]models.EmergencyContact{}}
}

func (m *memContacts) Create(_ context.Context, c *models.EmergencyContact) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c.ID = uuid.NewString()
	c.CreatedAt = time.Now()
	c.UpdatedAt = c.CreatedAt
	m.contacts[c.ID] = *c
	return nil
}

func (m *memContacts) Get(_ context.Context, id string) (*models.EmergencyContact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.contacts[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &c, nil
}

func (m *memContacts) List(_ context.Context, role models.Role) ([]*models.EmergencyContact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*models.EmergencyContact{}
	for _, c := range m.contacts {
		if role == "" || c.VisibleToRole(role) {
			found := c
			out = append(out, &found)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority < out[j].Priority
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (m *memContacts) Update(_ context.Context, c *models.EmergencyContact) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.contacts[c.ID]; !ok {
		return store.ErrNotFound
	}
	c.UpdatedAt = time.Now()
	m.contacts[c.ID] = *c
	return nil
}

func (m *memContacts) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.contacts[id]; !ok {
		return store.ErrNotFound
	}
	delete(m.contacts, id)
	return nil
}

type memAudit struct {
	mu      sync.Mutex
	entries []models.AuditEntry
}

func (m *memAudit) Insert(_ context.Context, e *models.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e.ID = uuid.NewString()
	e.CreatedAt = time.Now()
	m.entries = append(m.entries, *e)
	return nil
}

func (m *memAudit) List(_ context.Context, f store.AuditFilter) ([]*models.AuditEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*models.AuditEntry{}
	for i := len(m.entries) - 1; i >= 0; i-- {
		e := m.entries[i]
		if (f.Action == "" || e.Action == f.Action) &&
			(f.PerformedBy == "" || e.PerformedBy == f.PerformedBy) &&
			(f.TargetResource == "" || e.TargetResource == f.TargetResource) {
			out = append(out, &e)
		}
	}
	return out, nil
}

func (m *memAudit) byAction(action string) []models.AuditEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.AuditEntry
	for _, e := range m.entries {
		if e.Action == action {
			out = append(out, e)
		}
	}
	return out
}

// memAttempts applies the same rules as the upsert in store.AttemptStore.
type memAttempts struct {
	mu      sync.Mutex
	entries map[string]models.FailedAttempt
}

func newMemAttempts() *memAttempts {
	return &memAttempts{entries: map[string]models.FailedAttempt{}}
}

func (l *memAttempts) Get(_ context.Context, username string) (models.FailedAttempt, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	a, ok := l.entries[username]
	if !ok {
		return models.FailedAttempt{Username: username}, store.ErrNotFound
	}
	return a, nil
}

func (l *memAttempts) RecordFailure(_ context.Context, username string, now time.Time, window time.Duration) (int, error) {
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

func (l *memAttempts) Reset(_ context.Context, username string, now time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries[username] = models.FailedAttempt{Username: username, LastAttempt: now}
	return nil
}

func (l *memAttempts) attempts(username string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.entries[username].Attempts
}

// recordingMailer captures security alerts and reset links instead of sending them.
type recordingMailer struct {
	mu     sync.Mutex
	alerts []string
	resets map[string]string
	err    error
}

func (m *recordingMailer) SendSecurityAlert(_ context.Context, u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.alerts = append(m.alerts, u.Email)
	return nil
}

func (m *recordingMailer) SendPasswordReset(_ context.Context, u *models.User, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if m.resets == nil {
		m.resets = map[string]string{}
	}
	m.resets[u.Email] = token
	return nil
}

func (m *recordingMailer) alertCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.alerts)
}

func (m *recordingMailer) resetToken(email string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.resets[email]
}

// testEnv is the full router over in-memory stores.
type testEnv struct {
	api        *API
	handler    http.Handler
	users      *memUsers
	feed       *memFeed
	regs       *memRegistrations
	jobs       *memJobs
	mentorship *memMentorship
	alumni     *memAlumni
	conns      *memConnections
	contacts   *memContacts
	audit      *memAudit
	attempts   *memAttempts
	mailer     *recordingMailer
	issuer     *session.Issuer
	hasher     *PasswordHasher
	log        *logrus.Logger
	hook       *test.Hook
}

func newTestEnv(t *testing.T) *testEnv {
	return newTestEnvWithLimit(t, 1000)
}

func newTestEnvWithLimit(t *testing.T, rateLimit int) *testEnv {
	t.Helper()
	log, hook := test.NewNullLogger()
	hasher := NewPasswordHasher(config.Argon2Config{Time: 1, Memory: 1024, Threads: 1, KeyLength: 32, SaltLength: 16})

	users := newMemUsers()
	e := &testEnv{
		users:      users,
		feed:       newMemFeed(),
		regs:       newMemRegistrations(),
		jobs:       newMemJobs(),
		mentorship: newMemMentorship(),
		alumni:     newMemAlumni(users),
		conns:      newMemConnections(),
		contacts:   newMemContacts(),
		audit:      &memAudit{},
		attempts:   newMemAttempts(),
		mailer:     &recordingMailer{},
		issuer:     session.NewIssuer("test-secret", 15*time.Minute, time.Hour, nil, log),
		hasher:     hasher,
		log:        log,
		hook:       hook,
	}

	gate := security.NewGate(e.attempts, e.users, e.mailer, 5, 5*time.Minute, log)
	fanout := notify.NewFanout(e.users, notify.LogPusher{Log: log}, 1000, log)
	recorder := audit.NewRecorder(e.audit, log)

	e.api = &API{
		Auth:       NewAuthService(e.users, gate, e.issuer, e.hasher, e.mailer, recorder, log),
		Users:      NewUserService(e.users, recorder, fanout, log),
		Feed:       NewFeedService(e.feed, e.regs, e.users, visibility.NewFilter(1000), recorder, fanout, log),
		Jobs:       NewJobService(e.jobs, e.users, recorder, fanout, log),
		Mentorship: NewMentorshipService(e.mentorship, e.users, fanout, log),
		Alumni:     NewAlumniService(e.alumni, e.conns, e.users, fanout, log),
		Emergency:  NewEmergencyService(e.contacts, e.users, recorder, log),
		Audit:      NewAuditService(e.audit, log),
		Verifier:   e.issuer,
		Limiter:    security.NewRateLimiter(nil, rateLimit, 5*time.Minute, log),
		Log:        log,
	}
	e.handler = e.api.Routes()
	return e
}

// addUser stores an active account with the given password.
func (e *testEnv) addUser(t *testing.T, u models.User, password string) *models.User {
	t.Helper()
	hash, err := e.hasher.Hash(password)
	require.NoError(t, err)
	u.PasswordHash = hash
	u.IsActive = true
	if u.Email == "" {
		u.Email = u.Username + "@udsm.ac.tz"
	}
	if u.Interests == nil {
		u.Interests = []string{}
	}
	require.NoError(t, e.users.Create(context.Background(), &u))
	return &u
}

func (e *testEnv) tokenFor(t *testing.T, u *models.User) string {
	t.Helper()
	token, _, err := e.issuer.Issue(u.ID, u.Role)
	require.NoError(t, err)
	return token
}

// do sends body (raw if a string, JSON otherwise) with an optional bearer token.
func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	r := httptest.NewRequest(method, path, reader)
	r.Header.Set("Content-Type", "application/json")
	if token != "" {
		r.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, r)
	return w
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func errorMessage(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	return decodeBody[ErrorResponse](t, w).Error
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func overlaps(a, b []string) bool {
	for _, v := range a {
		if contains(b, v) {
			return true
		}
	}
	return false
}
