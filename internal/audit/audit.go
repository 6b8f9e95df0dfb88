// Package audit appends administrative actions to the audit log.
package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/campusconnect/backend/internal/models"
	"github.com/sirupsen/logrus"
)

var ErrMissingTarget = errors.New("audit entry requires a target id")

// RoleAnonymous is recorded for actions taken before authentication.
const RoleAnonymous = "anonymous"

const (
	ActionSuspiciousLogin = "suspicious_login_input"
	ActionCreate          = "create"
	ActionUpdate          = "update"
	ActionDelete          = "delete"
	ActionCancelEvent     = "cancel_event"
	ActionUpdateUser      = "update_user"
	ActionDeleteUser      = "delete_user"
	ActionCreateAdmin     = "create_admin"
)

type Inserter interface {
	Insert(ctx context.Context, e *models.AuditEntry) error
}

// Actor is who performed an action. The role is captured as it was at that moment.
type Actor struct {
	ID   string
	Role string
}

func Anonymous() Actor {
	return Actor{Role: RoleAnonymous}
}

type Event struct {
	Actor          Actor
	Action         string
	TargetResource string
	TargetID       string
	Details        any
	IP             string
}

type Recorder struct {
	store Inserter
	log   logrus.FieldLogger
}

func NewRecorder(store Inserter, log logrus.FieldLogger) *Recorder {
	return &Recorder{store: store, log: log}
}

// Record persists ev and returns the new entry id.
func (r *Recorder) Record(ctx context.Context, ev Event) (string, error) {
	if ev.TargetID == "" {
		return "", ErrMissingTarget
	}

	entry := &models.AuditEntry{
		Action:         ev.Action,
		PerformedBy:    ev.Actor.ID,
		Role:           ev.Actor.Role,
		TargetResource: ev.TargetResource,
		TargetID:       ev.TargetID,
		IPAddress:      ev.IP,
	}
	if ev.Details != nil {
		details, err := json.Marshal(ev.Details)
		if err != nil {
			return "", fmt.Errorf("encoding audit details: %w", err)
		}
		entry.Details = details
	}

	if err := r.store.Insert(ctx, entry); err != nil {
		return "", fmt.Errorf("writing audit entry: %w", err)
	}

	data, _ := json.Marshal(entry)
	r.log.Infof("AUDIT: %s", data)
	return entry.ID, nil
}

// RecordBestEffort records ev and only logs a failure.
func (r *Recorder) RecordBestEffort(ctx context.Context, ev Event) {
	if _, err := r.Record(ctx, ev); err != nil {
		r.log.WithError(err).WithFields(logrus.Fields{
			"action":          ev.Action,
			"target_resource": ev.TargetResource,
			"target_id":       ev.TargetID,
		}).Error("Audit entry not recorded")
	}
}
