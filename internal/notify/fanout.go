package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/campusconnect/backend/internal/models"
	"github.com/campusconnect/backend/internal/store"
	"github.com/campusconnect/backend/internal/visibility"
	"github.com/sirupsen/logrus"
)

const backgroundTimeout = 30 * time.Second

type TokenStore interface {
	Recipients(ctx context.Context, c visibility.Clause) ([]store.Recipient, error)
	PruneTokens(ctx context.Context, tokens []string) (int64, error)
}

// Fanout computes recipients and dispatches pushes. Delivery failures are logged and
// never returned.
type Fanout struct {
	users          TokenStore
	pusher         Pusher
	defaultRadiusM float64
	log            logrus.FieldLogger

	run func(func())
}

func NewFanout(users TokenStore, pusher Pusher, defaultRadiusM float64, log logrus.FieldLogger) *Fanout {
	return &Fanout{
		users:          users,
		pusher:         pusher,
		defaultRadiusM: defaultRadiusM,
		log:            log,
		run:            func(fn func()) { go fn() },
	}
}

// Background runs fn detached from the request with its own timeout.
func (f *Fanout) Background(fn func(ctx context.Context)) {
	f.run(func() {
		ctx, cancel := context.WithTimeout(context.Background(), backgroundTimeout)
		defer cancel()
		fn(ctx)
	})
}

// RecipientsFor returns every non-empty token of the users in a. Duplicates are kept.
func (f *Fanout) RecipientsFor(ctx context.Context, a visibility.Audience) ([]string, error) {
	recipients, err := f.users.Recipients(ctx, a.Clause())
	if err != nil {
		return nil, fmt.Errorf("loading recipients: %w", err)
	}
	var tokens []string
	for _, r := range recipients {
		for _, t := range r.Tokens {
			if t != "" {
				tokens = append(tokens, t)
			}
		}
	}
	return tokens, nil
}

// Dispatch pushes msg and prunes tokens the provider reported as invalid.
func (f *Fanout) Dispatch(ctx context.Context, tokens []string, msg Message) {
	if len(tokens) == 0 {
		f.log.WithField("title", msg.Title).Debug("No recipients")
		return
	}

	invalid, err := f.pusher.Push(ctx, tokens, msg)
	if err != nil {
		f.log.WithError(err).WithField("title", msg.Title).Error("Push dispatch failed")
	}
	if len(invalid) == 0 {
		return
	}

	n, err := f.users.PruneTokens(ctx, invalid)
	if err != nil {
		f.log.WithError(err).WithField("tokens", len(invalid)).Error("Pruning invalid tokens")
		return
	}
	f.log.WithFields(logrus.Fields{"tokens": len(invalid), "users": n}).Info("Pruned invalid tokens")
}

func (f *Fanout) notify(ctx context.Context, a visibility.Audience, msg Message) {
	tokens, err := f.RecipientsFor(ctx, a)
	if err != nil {
		f.log.WithError(err).WithField("title", msg.Title).Error("Computing recipients")
		return
	}
	f.Dispatch(ctx, tokens, msg)
	f.log.WithFields(logrus.Fields{"title": msg.Title, "tokens": len(tokens)}).Info("Notification fan-out complete")
}

var kindTitles = map[models.Kind]string{
	models.KindNews:         "Campus News",
	models.KindAnnouncement: "Announcement",
	models.KindEvent:        "New Event",
}

// NotifyFeedItem announces a newly published news item, announcement or event.
func (f *Fanout) NotifyFeedItem(ctx context.Context, item *models.FeedItem) {
	if !item.IsPublished || item.IsArchived {
		return
	}
	title := kindTitles[item.Kind]
	if item.Category == models.CategoryEmergency {
		title = "Emergency"
	}
	body := item.Body
	if item.Kind == models.KindEvent && item.StartsAt != nil {
		body = fmt.Sprintf("%s on %s at %s", item.Title, item.StartsAt.Format("2 Jan 2006 15:04"), venueOrTBD(item.Venue))
	}
	f.notify(ctx, visibility.AudienceFor(item, f.defaultRadiusM), Message{
		Title: title + ": " + item.Title,
		Body:  body,
		Data:  map[string]string{"kind": string(item.Kind), "id": item.ID},
	})
}

// NotifyCancellation tells registered attendees that an event was cancelled.
func (f *Fanout) NotifyCancellation(ctx context.Context, event *models.FeedItem, attendees []string) {
	if len(attendees) == 0 {
		return
	}
	body := "This event has been cancelled."
	if event.StartsAt != nil {
		body = fmt.Sprintf("Event on %s is cancelled.", event.StartsAt.Format("2 Jan 2006"))
	}
	f.notify(ctx, visibility.Audience{Pref: models.PrefCancellations, UserIDs: attendees}, Message{
		Title: "Cancelled: " + event.Title,
		Body:  body,
		Data:  map[string]string{"kind": string(models.KindEvent), "id": event.ID},
	})
}

// NotifyReminder reminds attendees of an event starting soon.
func (f *Fanout) NotifyReminder(ctx context.Context, event *models.FeedItem, attendees []string) {
	if len(attendees) == 0 {
		return
	}
	f.notify(ctx, visibility.Audience{Pref: models.PrefReminders, UserIDs: attendees}, Message{
		Title: "Reminder: " + event.Title,
		Body:  fmt.Sprintf("%q is tomorrow at %s.", event.Title, venueOrTBD(event.Venue)),
		Data:  map[string]string{"kind": string(models.KindEvent), "id": event.ID},
	})
}

// NotifyJob targets alumni, narrowed by the posting's colleges and tags.
func (f *Fanout) NotifyJob(ctx context.Context, job *models.Job) {
	a := visibility.Audience{
		Pref:      models.PrefJobs,
		OnlyRoles: []string{string(models.RoleAlumni)},
		Colleges:  job.Colleges,
		Tags:      job.Tags,
	}
	if len(job.TargetRoles) > 0 {
		a.OnlyRoles = job.TargetRoles
	}
	f.notify(ctx, a, Message{
		Title: "New Job: " + job.Title,
		Body:  fmt.Sprintf("%s is hiring.", job.Company),
		Data:  map[string]string{"kind": "job", "id": job.ID},
	})
}

func (f *Fanout) NotifyMentorshipRequest(ctx context.Context, m *models.MentorshipRequest, student *models.User) {
	f.notify(ctx, visibility.Audience{Pref: models.PrefMentorship, UserIDs: []string{m.AlumniID}}, Message{
		Title: "New Mentorship Request",
		Body:  student.FullName() + " would like you to be their mentor.",
		Data:  map[string]string{"kind": "mentorship", "id": m.ID},
	})
}

func (f *Fanout) NotifyMentorshipStatus(ctx context.Context, m *models.MentorshipRequest) {
	f.notify(ctx, visibility.Audience{Pref: models.PrefMentorship, UserIDs: []string{m.StudentID}}, Message{
		Title: "Mentorship Request Update",
		Body:  "Your mentorship request was " + m.Status + ".",
		Data:  map[string]string{"kind": "mentorship", "id": m.ID, "status": m.Status},
	})
}

// Connection requests share the mentorship preference.
func (f *Fanout) NotifyConnectionRequest(ctx context.Context, c *models.Connection, requester *models.User) {
	f.notify(ctx, visibility.Audience{Pref: models.PrefMentorship, UserIDs: []string{c.RecipientID}}, Message{
		Title: "New Connection Request",
		Body:  requester.FullName() + " would like to connect with you.",
		Data:  map[string]string{"kind": "connection", "id": c.ID},
	})
}

func (f *Fanout) NotifyConnectionAccepted(ctx context.Context, c *models.Connection, recipient *models.User) {
	f.notify(ctx, visibility.Audience{Pref: models.PrefMentorship, UserIDs: []string{c.RequesterID}}, Message{
		Title: "Connection Accepted",
		Body:  recipient.FullName() + " accepted your connection request.",
		Data:  map[string]string{"kind": "connection", "id": c.ID, "status": c.Status},
	})
}

// AdminAction describes an audited mutation for peer administrators.
type AdminAction struct {
	College    string
	Message    string
	ActionType string
	LogID      string
}

// NotifyAdminAction alerts administrators. With a college set it reaches that college's
// admins and every system admin.
func (f *Fanout) NotifyAdminAction(ctx context.Context, action AdminAction) {
	a := visibility.Audience{
		Pref:      models.PrefAdminActions,
		OnlyRoles: []string{string(models.RoleCollegeAdmin), string(models.RoleSystemAdmin)},
	}
	if action.College != "" {
		a.Colleges = []string{action.College}
		a.Roles = []string{string(models.RoleSystemAdmin)}
	}
	f.notify(ctx, a, Message{
		Title: "Admin Action: " + action.ActionType,
		Body:  action.Message,
		Data:  map[string]string{"kind": "admin_action", "action": action.ActionType, "logId": action.LogID},
	})
}

func venueOrTBD(v string) string {
	if v == "" {
		return "TBD"
	}
	return v
}
