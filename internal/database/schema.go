package database

import (
	"context"
	"database/sql"
	"fmt"
)

const usersTable = `
CREATE TABLE IF NOT EXISTS users (
	id                 UUID PRIMARY KEY,
	username           TEXT NOT NULL UNIQUE,
	email              TEXT NOT NULL UNIQUE,
	password_hash      TEXT NOT NULL,
	role               TEXT NOT NULL CHECK (role IN ('student','alumni','visitor','college_admin','system_admin')),
	college            TEXT NOT NULL DEFAULT '',
	first_name         TEXT NOT NULL DEFAULT '',
	last_name          TEXT NOT NULL DEFAULT '',
	department         TEXT NOT NULL DEFAULT '',
	interests          TEXT[] NOT NULL DEFAULT '{}',
	notification_prefs JSONB NOT NULL DEFAULT '{}',
	longitude          DOUBLE PRECISION,
	latitude           DOUBLE PRECISION,
	radius_m           DOUBLE PRECISION,
	fcm_tokens         TEXT[] NOT NULL DEFAULT '{}',
	is_active          BOOLEAN NOT NULL DEFAULT TRUE,
	last_active        TIMESTAMPTZ,
	created_at         TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at         TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS users_college_idx ON users (college);
CREATE INDEX IF NOT EXISTS users_fcm_tokens_idx ON users USING GIN (fcm_tokens);`

const failedAttemptsTable = `
CREATE TABLE IF NOT EXISTS failed_attempts (
	username     TEXT PRIMARY KEY,
	attempts     INTEGER NOT NULL DEFAULT 0 CHECK (attempts >= 0),
	last_attempt TIMESTAMPTZ NOT NULL DEFAULT NOW()
);`

const feedTableTemplate = `
CREATE TABLE IF NOT EXISTS %[1]s (
	id           UUID PRIMARY KEY,
	title        TEXT NOT NULL,
	body         TEXT NOT NULL,
	category     TEXT NOT NULL DEFAULT '',
	target_roles TEXT[] NOT NULL DEFAULT '{}',
	colleges     TEXT[] NOT NULL DEFAULT '{}',
	tags         TEXT[] NOT NULL DEFAULT '{}',
	longitude    DOUBLE PRECISION,
	latitude     DOUBLE PRECISION,
	radius_m     DOUBLE PRECISION,
	is_published BOOLEAN NOT NULL DEFAULT TRUE,
	is_archived  BOOLEAN NOT NULL DEFAULT FALSE,
	expires_at   TIMESTAMPTZ,
	scheduled_at TIMESTAMPTZ,
	starts_at    TIMESTAMPTZ,
	ends_at      TIMESTAMPTZ,
	venue        TEXT NOT NULL DEFAULT '',
	status       TEXT NOT NULL DEFAULT 'active',
	created_by   UUID NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS %[1]s_colleges_idx ON %[1]s USING GIN (colleges);
CREATE INDEX IF NOT EXISTS %[1]s_tags_idx ON %[1]s USING GIN (tags);`

const eventRegistrationsTable = `
CREATE TABLE IF NOT EXISTS event_registrations (
	event_id      UUID NOT NULL REFERENCES events (id) ON DELETE CASCADE,
	user_id       UUID NOT NULL REFERENCES users (id) ON DELETE CASCADE,
	registered_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (event_id, user_id)
);`

const auditLogsTable = `
CREATE TABLE IF NOT EXISTS audit_logs (
	id              UUID PRIMARY KEY,
	action          TEXT NOT NULL,
	performed_by    UUID,
	role            TEXT NOT NULL,
	target_resource TEXT NOT NULL,
	target_id       TEXT NOT NULL,
	details         JSONB NOT NULL DEFAULT '{}',
	ip_address      TEXT NOT NULL DEFAULT '',
	created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS audit_logs_performed_by_idx ON audit_logs (performed_by, created_at DESC);
CREATE INDEX IF NOT EXISTS audit_logs_target_idx ON audit_logs (target_resource, target_id);`

const mentorshipTable = `
CREATE TABLE IF NOT EXISTS mentorship_requests (
	id         UUID PRIMARY KEY,
	student_id UUID NOT NULL REFERENCES users (id) ON DELETE CASCADE,
	alumni_id  UUID NOT NULL REFERENCES users (id) ON DELETE CASCADE,
	message    TEXT NOT NULL DEFAULT '',
	status     TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending','approved','declined')),
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	UNIQUE (student_id, alumni_id)
);`

const jobsTable = `
CREATE TABLE IF NOT EXISTS jobs (
	id           UUID PRIMARY KEY,
	title        TEXT NOT NULL,
	company      TEXT NOT NULL,
	description  TEXT NOT NULL DEFAULT '',
	location     TEXT NOT NULL DEFAULT '',
	link         TEXT NOT NULL DEFAULT '',
	tags         TEXT[] NOT NULL DEFAULT '{}',
	target_roles TEXT[] NOT NULL DEFAULT '{}',
	colleges     TEXT[] NOT NULL DEFAULT '{}',
	posted_by    UUID NOT NULL,
	is_active    BOOLEAN NOT NULL DEFAULT TRUE,
	expires_at   TIMESTAMPTZ,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
);`

const alumniProfilesTable = `
CREATE TABLE IF NOT EXISTS alumni_profiles (
	user_id              UUID PRIMARY KEY REFERENCES users (id) ON DELETE CASCADE,
	graduation_year      INTEGER NOT NULL DEFAULT 0,
	industry             TEXT NOT NULL DEFAULT '',
	company              TEXT NOT NULL DEFAULT '',
	position             TEXT NOT NULL DEFAULT '',
	expertise            TEXT[] NOT NULL DEFAULT '{}',
	bio                  TEXT NOT NULL DEFAULT '',
	linkedin             TEXT NOT NULL DEFAULT '',
	mentorship_available BOOLEAN NOT NULL DEFAULT FALSE,
	updated_at           TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS alumni_profiles_expertise_idx ON alumni_profiles USING GIN (expertise);`

// One row per unordered pair: a request in either direction collides with an existing one.
const connectionsTable = `
CREATE TABLE IF NOT EXISTS connections (
	id           UUID PRIMARY KEY,
	requester_id UUID NOT NULL REFERENCES users (id) ON DELETE CASCADE,
	recipient_id UUID NOT NULL REFERENCES users (id) ON DELETE CASCADE,
	status       TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending','accepted','rejected')),
	created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	CHECK (requester_id <> recipient_id)
);
CREATE UNIQUE INDEX IF NOT EXISTS connections_pair_idx
	ON connections (LEAST(requester_id, recipient_id), GREATEST(requester_id, recipient_id));`

const emergencyContactsTable = `
CREATE TABLE IF NOT EXISTS emergency_contacts (
	id          UUID PRIMARY KEY,
	name        TEXT NOT NULL,
	phone       TEXT NOT NULL,
	category    TEXT NOT NULL CHECK (category IN ('medical','security','fire','counseling')),
	description TEXT NOT NULL DEFAULT '',
	location    TEXT NOT NULL DEFAULT '',
	priority    INTEGER NOT NULL DEFAULT 1,
	visible_to  TEXT[] NOT NULL DEFAULT '{}',
	created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);`

// Statements returns the schema DDL in dependency order.
func Statements() []string {
	stmts := []string{usersTable, failedAttemptsTable}
	for _, table := range []string{"news", "announcements", "events"} {
		stmts = append(stmts, fmt.Sprintf(feedTableTemplate, table))
	}
	return append(stmts, eventRegistrationsTable, auditLogsTable, mentorshipTable, jobsTable,
		alumniProfilesTable, connectionsTable, emergencyContactsTable)
}

// Migrate applies the schema. Every statement is idempotent.
func Migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range Statements() {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("applying schema: %w", err)
		}
	}
	return nil
}
