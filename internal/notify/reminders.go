package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/campusconnect/backend/internal/models"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

type EventSource interface {
	Upcoming(ctx context.Context, from, to time.Time) ([]*models.FeedItem, error)
}

type AttendeeSource interface {
	Attendees(ctx context.Context, eventID string) ([]string, error)
}

// Reminders runs the daily job that reminds attendees of events starting tomorrow.
// It assumes a single running instance; replicas would each send the reminders.
type Reminders struct {
	cron      *cron.Cron
	events    EventSource
	attendees AttendeeSource
	fanout    *Fanout
	loc       *time.Location
	log       logrus.FieldLogger
	now       func() time.Time
}

func NewReminders(schedule, timezone string, events EventSource, attendees AttendeeSource, fanout *Fanout, log logrus.FieldLogger) (*Reminders, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("loading reminder timezone %q: %w", timezone, err)
	}

	r := &Reminders{
		cron:      cron.New(cron.WithLocation(loc)),
		events:    events,
		attendees: attendees,
		fanout:    fanout,
		loc:       loc,
		log:       log,
		now:       time.Now,
	}
	if _, err := r.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		if err := r.Run(ctx); err != nil {
			r.log.WithError(err).Error("Reminder job failed")
		}
	}); err != nil {
		return nil, fmt.Errorf("parsing reminder schedule %q: %w", schedule, err)
	}
	return r, nil
}

func (r *Reminders) Start() {
	r.cron.Start()
	r.log.WithField("entries", len(r.cron.Entries())).Info("Reminder scheduler started")
}

// Stop halts scheduling and waits for a running job to finish.
func (r *Reminders) Stop() context.Context {
	return r.cron.Stop()
}

// Run sends reminders for every active event starting on the next calendar day.
func (r *Reminders) Run(ctx context.Context) error {
	now := r.now().In(r.loc)
	from := time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, r.loc)
	to := from.AddDate(0, 0, 1)

	events, err := r.events.Upcoming(ctx, from, to)
	if err != nil {
		return fmt.Errorf("loading upcoming events: %w", err)
	}
	r.log.WithField("events", len(events)).Info("Running event reminder job")

	for _, ev := range events {
		ids, err := r.attendees.Attendees(ctx, ev.ID)
		if err != nil {
			r.log.WithError(err).WithField("event_id", ev.ID).Error("Loading attendees")
			continue
		}
		r.fanout.NotifyReminder(ctx, ev, ids)
	}
	return nil
}
