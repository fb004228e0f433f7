package domain

import "time"

// TrackedRepo is the supervision config for one repository. RepoName is the
// "owner/name" form and is unique across the table.
type TrackedRepo struct {
	ID           string    `json:"id"            db:"id"`
	RepoName     string    `json:"repo_name"     db:"repo_name"`
	UserID       string    `json:"user_id"       db:"user_id"`
	TimerMinutes int       `json:"timer_minutes" db:"timer_minutes"`
	PostTwitter  bool      `json:"post_twitter"  db:"post_twitter"`
	PostLinkedIn bool      `json:"post_linkedin" db:"post_linkedin"`
	RevertOnFail bool      `json:"revert_on_fail" db:"revert_on_fail"`
	YoloMode     bool      `json:"yolo_mode"     db:"yolo_mode"`
	CreatedAt    time.Time `json:"created_at"    db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"    db:"updated_at"`
}

// FixWindow returns the configured fix window. TimerMinutes == 0 is the
// reserved dev-mode value meaning ten seconds, not zero minutes.
func (r *TrackedRepo) FixWindow() time.Duration {
	if r.TimerMinutes == 0 {
		return 10 * time.Second
	}
	return time.Duration(r.TimerMinutes) * time.Minute
}

// CommitInfo is a lightweight view of a commit fetched from the VCS.
type CommitInfo struct {
	SHA     string `json:"sha"`
	Author  string `json:"author"`
	Message string `json:"message"`
	Branch  string `json:"branch"`
}
