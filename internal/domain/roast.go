package domain

import "time"

// Roast is the full lifecycle record of a judged commit. A failing judgment
// creates it in StatusPending with a deadline; it can only move to
// StatusResolved (fixed in time) or StatusExpired (punished). Terminal states
// never reverse.
type Roast struct {
	ID          string     `json:"id"             db:"id"`
	RepoName    string     `json:"repo_name"      db:"repo_name"`
	Actor       string     `json:"actor"          db:"actor"`
	CommitSHA   string     `json:"commit_sha"     db:"commit_sha"`
	Message     string     `json:"message"        db:"message"`
	DiffExcerpt string     `json:"diff_excerpt"   db:"diff_excerpt"`
	Reason      string     `json:"reason"         db:"reason"`
	RoastText   string     `json:"roast_text"     db:"roast_text"`
	Status      string     `json:"status"         db:"status"`
	Posted      bool       `json:"posted"         db:"posted"`
	Fixed       bool       `json:"fixed"          db:"fixed"`
	Deadline    *time.Time `json:"deadline"       db:"deadline"`
	CreatedAt   time.Time  `json:"created_at"     db:"created_at"`
	ResolvedAt  *time.Time `json:"resolved_at"    db:"resolved_at"`
}

// Roast status constants.
const (
	RoastStatusPending  = "pending"
	RoastStatusResolved = "resolved"
	RoastStatusExpired  = "expired"
)

// Due reports whether the roast should be processed by a sweep at time now.
func (r *Roast) Due(now time.Time) bool {
	return r.Deadline != nil && !r.Deadline.After(now) && !r.Posted && !r.Fixed
}

// ActionOutcome records the result of a single punitive action attempt.
// Detail carries the post id on success or the verbatim adapter error on
// failure; it is never empty for a failed action.
type ActionOutcome struct {
	Kind   string `json:"kind"`
	OK     bool   `json:"ok"`
	Detail string `json:"detail,omitempty"`
}

// Action kind constants.
const (
	ActionTwitter  = "twitter"
	ActionLinkedIn = "linkedin"
	ActionRevert   = "revert"
	ActionDestroy  = "destroy"
	ActionNone     = "none"
)
