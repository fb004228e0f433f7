package port

import (
	"context"
	"time"

	"github.com/arturoeanton/go-commit-roaster/internal/domain"
)

// RoastStore is the persistence surface the services depend on. The Postgres
// adapter implements it; tests use an in-memory fake.
type RoastStore interface {
	// CreateRoast persists a new roast as one atomic write.
	CreateRoast(ctx context.Context, r *domain.Roast) (*domain.Roast, error)

	// GetRoast returns a roast by id, or ErrRoastNotFound.
	GetRoast(ctx context.Context, id string) (*domain.Roast, error)

	// ListDueRoasts returns roasts with deadline <= now, posted = false and
	// fixed = false.
	ListDueRoasts(ctx context.Context, now time.Time) ([]domain.Roast, error)

	// ListPendingRoastsByUser returns the user's unresolved, unexpired
	// roasts ordered soonest-deadline-first.
	ListPendingRoastsByUser(ctx context.Context, userID string, now time.Time) ([]domain.Roast, error)

	// ClaimRoast atomically marks a roast posted+expired if and only if it
	// is still unclaimed. Returns false when a concurrent sweep won the
	// race or the roast was fixed meanwhile.
	ClaimRoast(ctx context.Context, id string) (bool, error)

	// ResolveRoast marks a pending roast fixed. Returns ErrRoastNotFound or
	// ErrAlreadyProcessed.
	ResolveRoast(ctx context.Context, id string, now time.Time) (*domain.Roast, error)

	// GetTrackedRepo returns the supervision config for a repo name, or
	// ErrNotTracked.
	GetTrackedRepo(ctx context.Context, repoName string) (*domain.TrackedRepo, error)

	// UpsertTrackedRepo creates or updates the config for a repo name.
	UpsertTrackedRepo(ctx context.Context, r *domain.TrackedRepo) (*domain.TrackedRepo, error)

	// ListTrackedReposByUser returns all repos a user supervises.
	ListTrackedReposByUser(ctx context.Context, userID string) ([]domain.TrackedRepo, error)

	// DeleteTrackedRepo removes only the config row.
	DeleteTrackedRepo(ctx context.Context, repoName string) error

	// DeleteTrackedRepoCascade removes the config row and every roast for
	// the repo in one transaction.
	DeleteTrackedRepoCascade(ctx context.Context, repoName string) error

	// WriteAudit appends an audit entry.
	WriteAudit(userID, action, resource, resourceID, details, ip, userAgent string) error
}
