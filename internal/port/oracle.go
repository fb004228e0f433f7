package port

import "context"

// Verdict is the oracle's judgment of a diff.
type Verdict struct {
	Pass   bool   `json:"pass"`
	Reason string `json:"reason"`
}

// RoastRequest carries the context the roast generator works from.
type RoastRequest struct {
	Actor    string `json:"actor"`
	RepoName string `json:"repo_name"`
	Message  string `json:"message"`
	Branch   string `json:"branch"`
	Diff     string `json:"diff"`
	Reason   string `json:"reason"`
}

// Oracle abstracts the AI backend that judges diffs and writes roasts.
// It may be wrong, slow, or unavailable; callers fail open on error.
type Oracle interface {
	// Judge evaluates a diff and returns pass/fail with a reason.
	Judge(ctx context.Context, diff string) (*Verdict, error)

	// GenerateRoast produces the taunting message for a failed judgment.
	GenerateRoast(ctx context.Context, req RoastRequest) (string, error)
}
