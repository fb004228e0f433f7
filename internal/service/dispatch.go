package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/arturoeanton/go-commit-roaster/internal/domain"
	"github.com/arturoeanton/go-commit-roaster/internal/port"
)

// Dispatcher executes the punitive actions configured for an expired roast.
// It never returns an error: every action failure becomes an outcome entry.
type Dispatcher struct {
	social port.SocialRegistry
	vcs    port.VCSProvider
	creds  port.CredentialSource
	store  port.RoastStore
}

// NewDispatcher creates a new punitive action dispatcher.
func NewDispatcher(social port.SocialRegistry, vcs port.VCSProvider, creds port.CredentialSource, store port.RoastStore) *Dispatcher {
	return &Dispatcher{social: social, vcs: vcs, creds: creds, store: store}
}

// Dispatch runs the action sequence: social posts, revert, destroy. Actions
// are independent; one failing never suppresses the next. The caller must
// have claimed the roast before calling.
func (d *Dispatcher) Dispatch(ctx context.Context, roast *domain.Roast, repo *domain.TrackedRepo) []domain.ActionOutcome {
	var outcomes []domain.ActionOutcome

	message := roast.RoastText
	if message == "" {
		message = fmt.Sprintf("The fix window for %s expired. The broken commit is now part of the permanent record.", repo.RepoName)
	}

	if repo.PostTwitter {
		outcomes = append(outcomes, d.post(ctx, domain.ActionTwitter, repo.UserID, message))
	}
	if repo.PostLinkedIn {
		outcomes = append(outcomes, d.post(ctx, domain.ActionLinkedIn, repo.UserID, message))
	}

	if repo.RevertOnFail && roast.CommitSHA != "" {
		outcomes = append(outcomes, d.revert(ctx, roast, repo))
	}

	if repo.YoloMode {
		outcomes = append(outcomes, d.destroy(ctx, repo))
	}

	if len(outcomes) == 0 {
		outcomes = append(outcomes, domain.ActionOutcome{
			Kind:   domain.ActionNone,
			OK:     true,
			Detail: "recorded only, no punishment configured",
		})
	}

	return outcomes
}

func (d *Dispatcher) post(ctx context.Context, platform, userID, text string) domain.ActionOutcome {
	poster, ok := d.social[platform]
	if !ok {
		return domain.ActionOutcome{Kind: platform, Detail: "no poster configured for platform"}
	}

	result, err := poster.Post(ctx, userID, text)
	if err != nil {
		slog.Error("social post failed", "platform", platform, "user_id", userID, "error", err)
		return domain.ActionOutcome{Kind: platform, Detail: err.Error()}
	}

	slog.Info("social post published", "platform", platform, "post_id", result.PostID)
	return domain.ActionOutcome{Kind: platform, OK: true, Detail: result.PostID}
}

func (d *Dispatcher) revert(ctx context.Context, roast *domain.Roast, repo *domain.TrackedRepo) domain.ActionOutcome {
	token, err := d.githubToken(ctx, repo.UserID)
	if err != nil {
		return domain.ActionOutcome{Kind: domain.ActionRevert, Detail: err.Error()}
	}

	if err := d.vcs.RevertCommit(ctx, repo.RepoName, token, roast.CommitSHA); err != nil {
		slog.Error("revert failed", "repo", repo.RepoName, "sha", roast.CommitSHA, "error", err)
		return domain.ActionOutcome{Kind: domain.ActionRevert, Detail: err.Error()}
	}

	slog.Info("commit reverted", "repo", repo.RepoName, "sha", roast.CommitSHA)
	return domain.ActionOutcome{Kind: domain.ActionRevert, OK: true, Detail: roast.CommitSHA}
}

func (d *Dispatcher) destroy(ctx context.Context, repo *domain.TrackedRepo) domain.ActionOutcome {
	token, err := d.githubToken(ctx, repo.UserID)
	if err != nil {
		return domain.ActionOutcome{Kind: domain.ActionDestroy, Detail: err.Error()}
	}

	if err := d.vcs.DeleteRepository(ctx, repo.RepoName, token); err != nil {
		slog.Error("repository delete failed", "repo", repo.RepoName, "error", err)
		return domain.ActionOutcome{Kind: domain.ActionDestroy, Detail: err.Error()}
	}

	// The remote repo is gone, which is the authoritative outcome; removing
	// the local tracking row is best-effort cleanup.
	if err := d.store.DeleteTrackedRepo(ctx, repo.RepoName); err != nil {
		slog.Error("tracking cleanup failed after destroy", "repo", repo.RepoName, "error", err)
	}

	slog.Info("repository destroyed", "repo", repo.RepoName)
	return domain.ActionOutcome{Kind: domain.ActionDestroy, OK: true, Detail: repo.RepoName}
}

func (d *Dispatcher) githubToken(ctx context.Context, userID string) (string, error) {
	token, _, err := d.creds.Credential(ctx, userID, domain.CredentialGitHub)
	if err != nil && !errors.Is(err, port.ErrNoCredential) {
		return "", err
	}
	if token == "" {
		return "", port.ErrNoCredential
	}
	return token, nil
}
