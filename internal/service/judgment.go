package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/arturoeanton/go-commit-roaster/internal/domain"
	"github.com/arturoeanton/go-commit-roaster/internal/port"
)

const (
	// systemCommitMarker tags commits the roaster itself creates; they are
	// never judged.
	systemCommitMarker = "[commit-roaster]"

	// workflowFilePath is the automation file installed into tracked repos.
	workflowFilePath = ".github/workflows/roast.yml"

	// diffExcerptLimit bounds how much diff text is persisted per roast.
	diffExcerptLimit = 4000
)

// Judge verdict constants.
const (
	VerdictPass = "pass"
	VerdictFail = "fail"
	VerdictSkip = "skip"
)

// JudgeResult is what the judgment pipeline returns to the caller.
type JudgeResult struct {
	Verdict   string        `json:"verdict"`
	Reason    string        `json:"reason,omitempty"`
	RoastText string        `json:"roast_text,omitempty"`
	Deadline  *time.Time    `json:"deadline,omitempty"`
	Roast     *domain.Roast `json:"-"`
}

// JudgmentService runs the judge pipeline for pushed commits.
type JudgmentService struct {
	store  port.RoastStore
	creds  port.CredentialSource
	vcs    port.VCSProvider
	oracle port.Oracle
}

// NewJudgmentService creates a new judgment service.
func NewJudgmentService(store port.RoastStore, creds port.CredentialSource, vcs port.VCSProvider, oracle port.Oracle) *JudgmentService {
	return &JudgmentService{store: store, creds: creds, vcs: vcs, oracle: oracle}
}

// JudgeCommit judges one pushed commit. The oracle and the diff fetch fail
// open: an AI outage or missing diff never blocks a push. Only a failing
// verdict creates a record, as one atomic write.
func (s *JudgmentService) JudgeCommit(ctx context.Context, repoName, sha string) (*JudgeResult, error) {
	repo, err := s.store.GetTrackedRepo(ctx, repoName)
	if err != nil {
		return nil, err
	}

	token, _, err := s.creds.Credential(ctx, repo.UserID, domain.CredentialGitHub)
	if err != nil && !errors.Is(err, port.ErrNoCredential) {
		return nil, fmt.Errorf("judge %s@%s: %w", repoName, sha, err)
	}

	info, err := s.vcs.FetchCommitInfo(ctx, repoName, token, sha)
	if err != nil {
		return nil, fmt.Errorf("judge %s@%s: %w", repoName, sha, err)
	}

	if strings.Contains(info.Message, systemCommitMarker) {
		slog.Info("skipping system commit", "repo", repoName, "sha", sha)
		return &JudgeResult{Verdict: VerdictSkip, Reason: "system-generated commit"}, nil
	}

	diff, err := s.vcs.FetchDiff(ctx, repoName, token, sha)
	if err != nil {
		slog.Warn("diff fetch failed, passing open", "repo", repoName, "sha", sha, "error", err)
		return &JudgeResult{Verdict: VerdictPass, Reason: "no changes to judge"}, nil
	}
	if strings.TrimSpace(diff) == "" {
		return &JudgeResult{Verdict: VerdictPass, Reason: "no changes to judge"}, nil
	}
	if diffOnlyTouches(diff, workflowFilePath) {
		slog.Info("skipping workflow-only commit", "repo", repoName, "sha", sha)
		return &JudgeResult{Verdict: VerdictSkip, Reason: "automation file only"}, nil
	}

	verdict, err := s.oracle.Judge(ctx, diff)
	if err != nil {
		slog.Warn("oracle unavailable, passing open", "repo", repoName, "sha", sha, "error", err)
		return &JudgeResult{Verdict: VerdictPass, Reason: "oracle unavailable"}, nil
	}
	if verdict.Pass {
		return &JudgeResult{Verdict: VerdictPass, Reason: verdict.Reason}, nil
	}

	deadline := time.Now().Add(repo.FixWindow())

	roastText, err := s.oracle.GenerateRoast(ctx, port.RoastRequest{
		Actor:    info.Author,
		RepoName: repoName,
		Message:  info.Message,
		Branch:   info.Branch,
		Diff:     diff,
		Reason:   verdict.Reason,
	})
	if err != nil {
		// Dispatch falls back to a templated message.
		slog.Warn("roast generation failed", "repo", repoName, "sha", sha, "error", err)
		roastText = ""
	}

	roast, err := s.store.CreateRoast(ctx, &domain.Roast{
		RepoName:    repoName,
		Actor:       info.Author,
		CommitSHA:   sha,
		Message:     info.Message,
		DiffExcerpt: excerpt(diff, diffExcerptLimit),
		Reason:      verdict.Reason,
		RoastText:   roastText,
		Status:      domain.RoastStatusPending,
		Deadline:    &deadline,
	})
	if err != nil {
		return nil, fmt.Errorf("judge %s@%s: %w", repoName, sha, err)
	}

	slog.Info("commit failed judgment",
		"repo", repoName, "sha", sha, "reason", verdict.Reason, "deadline", deadline)

	return &JudgeResult{
		Verdict:   VerdictFail,
		Reason:    verdict.Reason,
		RoastText: roastText,
		Deadline:  &deadline,
		Roast:     roast,
	}, nil
}

// diffOnlyTouches reports whether every file in a unified diff is path.
func diffOnlyTouches(diff, path string) bool {
	touched := false
	for _, line := range strings.Split(diff, "\n") {
		if !strings.HasPrefix(line, "diff --git ") {
			continue
		}
		touched = true
		if !strings.Contains(line, " b/"+path) {
			return false
		}
	}
	return touched
}

func excerpt(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit]
}
