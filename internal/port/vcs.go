package port

import (
	"context"

	"github.com/arturoeanton/go-commit-roaster/internal/domain"
)

// VCSProvider abstracts the hosting platform operations the roaster needs.
// Implementations authenticate with the tracked repo owner's credential.
type VCSProvider interface {
	// FetchDiff returns the unified diff of a commit, or "" if the platform
	// has no diff content for it.
	FetchDiff(ctx context.Context, repoName, token, sha string) (string, error)

	// FetchCommitInfo returns author, message and branch for a commit.
	FetchCommitInfo(ctx context.Context, repoName, token, sha string) (*domain.CommitInfo, error)

	// RevertCommit restores the branch to the state before sha.
	RevertCommit(ctx context.Context, repoName, token, sha string) error

	// DeleteRepository permanently deletes the remote repository.
	DeleteRepository(ctx context.Context, repoName, token string) error
}
