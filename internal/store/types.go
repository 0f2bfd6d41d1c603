package store

import (
	"context"
	"errors"
	"time"

	"notifyd/internal/model"
)

// ErrNotFound is returned by lookups when the referenced record does not
// exist. It is a valid, non-exceptional outcome.
var ErrNotFound = errors.New("record not found")

// ProjectRepo resolves projects and project-local time.
type ProjectRepo interface {
	ByID(ctx context.Context, id string) (*model.Project, error)
	// ByIDCached may serve a recently cached copy; notification and digest
	// handling tolerate slightly stale projects.
	ByIDCached(ctx context.Context, id string) (*model.Project, error)
	All(ctx context.Context) ([]*model.Project, error)

	// UTCToLocalTime converts a UTC instant into the project's configured
	// local time for display.
	UTCToLocalTime(ctx context.Context, projectID string, t time.Time) (time.Time, error)
	// UTCOffset returns the project's current offset from UTC.
	UTCOffset(ctx context.Context, projectID string) (time.Duration, error)
}

type OrganizationRepo interface {
	ByID(ctx context.Context, id string) (*model.Organization, error)
	ByIDCached(ctx context.Context, id string) (*model.Organization, error)
}

type UserRepo interface {
	ByID(ctx context.Context, id string) (*model.User, error)
	// ByIDs returns the users that exist; missing IDs are silently skipped.
	ByIDs(ctx context.Context, ids []string) ([]*model.User, error)
}

type StackRepo interface {
	ByID(ctx context.Context, id string) (*model.ErrorStack, error)
	ByIDs(ctx context.Context, ids []string) ([]*model.ErrorStack, error)
	// NewSince returns up to limit stacks first seen inside [start, end),
	// newest first, plus the total count of such stacks.
	NewSince(ctx context.Context, projectID string, start, end time.Time, limit int) ([]model.ErrorStack, int64, error)
}

// StatsProvider is the stats engine contract. start/end are project-local
// times; offset is the project's UTC offset.
type StatsProvider interface {
	ProjectErrorStats(ctx context.Context, projectID string, offset time.Duration, start, end time.Time) (model.ProjectErrorStats, error)
}

// Mailer is the outbound mail transport. Sends are fire-and-forget from
// the engine's point of view; transport retries are the transport's
// concern.
type Mailer interface {
	SendNotice(ctx context.Context, email string, notice model.Notice) error
	SendSummary(ctx context.Context, email string, digest model.Digest) error
}
