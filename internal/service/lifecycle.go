package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/arturoeanton/go-commit-roaster/internal/domain"
	"github.com/arturoeanton/go-commit-roaster/internal/port"
)

// LifecycleService owns the roast state machine from creation to terminal
// resolution. Multiple trigger sources may call SweepExpired concurrently;
// the conditional claim in the store makes punishment at-most-once.
type LifecycleService struct {
	store      port.RoastStore
	dispatcher *Dispatcher
}

// NewLifecycleService creates a new lifecycle service.
func NewLifecycleService(store port.RoastStore, dispatcher *Dispatcher) *LifecycleService {
	return &LifecycleService{store: store, dispatcher: dispatcher}
}

// SweepExpired transitions every due roast and dispatches its punishment.
// Returns the number of roasts this call claimed. Safe to call with nothing
// due, and safe to call concurrently: a roast lost to a racing sweep counts
// for the winner only.
func (s *LifecycleService) SweepExpired(ctx context.Context) (int, error) {
	due, err := s.store.ListDueRoasts(ctx, time.Now())
	if err != nil {
		return 0, err
	}

	count := 0
	for i := range due {
		roast := &due[i]

		// Claim before any side effect. The conditional update is the
		// whole at-most-once guarantee: if the punitive actions below
		// fail partway, the roast stays claimed and is never retried.
		claimed, err := s.store.ClaimRoast(ctx, roast.ID)
		if err != nil {
			slog.Error("claim failed", "roast_id", roast.ID, "error", err)
			continue
		}
		if !claimed {
			// A concurrent sweep or a late fix got there first.
			continue
		}
		count++

		repo, err := s.store.GetTrackedRepo(ctx, roast.RepoName)
		if err != nil {
			if errors.Is(err, port.ErrNotTracked) {
				// Tracking was removed while the roast aged; nothing to punish.
				slog.Info("expired roast has no tracking config", "roast_id", roast.ID, "repo", roast.RepoName)
				s.audit("", roast, []domain.ActionOutcome{{
					Kind: domain.ActionNone, OK: true, Detail: "tracking removed before expiry",
				}})
				continue
			}
			slog.Error("tracked repo lookup failed", "roast_id", roast.ID, "error", err)
			continue
		}

		outcomes := s.dispatcher.Dispatch(ctx, roast, repo)
		s.audit(repo.UserID, roast, outcomes)
	}

	return count, nil
}

// Run invokes SweepExpired on a fixed interval until ctx is cancelled.
func (s *LifecycleService) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := s.SweepExpired(ctx); err != nil {
				slog.Error("periodic sweep failed", "error", err)
			} else if n > 0 {
				slog.Info("periodic sweep processed roasts", "count", n)
			}
		}
	}
}

// LazySweep runs a sweep in the background. Read paths call this so expiry is
// observed on access; the caller never waits and failures are only logged.
func (s *LifecycleService) LazySweep() {
	go func() {
		if _, err := s.SweepExpired(context.Background()); err != nil {
			slog.Error("lazy sweep failed", "error", err)
		}
	}()
}

// ScheduleDeadline arms a one-shot sweep for the roast's remaining time. This
// is a latency optimization only; the periodic and lazy sweeps are the
// authoritative backstops.
func (s *LifecycleService) ScheduleDeadline(roast *domain.Roast) {
	if roast.Deadline == nil {
		return
	}
	remaining := time.Until(*roast.Deadline)
	if remaining <= 0 {
		s.LazySweep()
		return
	}
	time.AfterFunc(remaining+time.Second, s.LazySweep)
}

func (s *LifecycleService) audit(userID string, roast *domain.Roast, outcomes []domain.ActionOutcome) {
	details, _ := json.Marshal(map[string]any{
		"repo":     roast.RepoName,
		"sha":      roast.CommitSHA,
		"outcomes": outcomes,
	})
	if err := s.store.WriteAudit(userID, domain.AuditActionDispatch, "roast", roast.ID, string(details), "", ""); err != nil {
		slog.Error("failed to write dispatch audit", "roast_id", roast.ID, "error", err)
	}
}
