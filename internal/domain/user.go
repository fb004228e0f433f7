package domain

import "time"

// User represents an authenticated user in the system.
type User struct {
	ID        string    `json:"id"          db:"id"`
	Email     string    `json:"email"       db:"email"`
	Name      string    `json:"name"        db:"name"`
	AvatarURL string    `json:"avatar_url"  db:"avatar_url"`
	Role      string    `json:"role"        db:"role"`
	CreatedAt time.Time `json:"created_at"  db:"created_at"`
	UpdatedAt time.Time `json:"updated_at"  db:"updated_at"`
}

// UserContext is the authenticated user context injected into request handlers.
type UserContext struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Name   string `json:"name"`
	Role   string `json:"role"`
}

// Credential is a stored API token for an external platform, keyed by
// (user, kind) and fetched at the moment of use so rotation touches one row.
type Credential struct {
	ID           string    `json:"id"            db:"id"`
	UserID       string    `json:"user_id"       db:"user_id"`
	Kind         string    `json:"kind"          db:"kind"`
	AccessToken  string    `json:"-"             db:"access_token"` // never serialized to JSON
	RefreshToken string    `json:"-"             db:"refresh_token"`
	UpdatedAt    time.Time `json:"updated_at"    db:"updated_at"`
}

// Credential kind constants.
const (
	CredentialGitHub   = "github"
	CredentialTwitter  = "twitter"
	CredentialLinkedIn = "linkedin"
)
