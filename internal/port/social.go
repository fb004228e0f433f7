package port

import "context"

// PostResult is the outcome of one social post attempt.
type PostResult struct {
	PostID string `json:"post_id,omitempty"`
}

// SocialPoster publishes a message on one platform on behalf of a user.
// Implementations handle their own token refresh; a returned error is
// terminal for that platform and its text is recorded verbatim.
type SocialPoster interface {
	// Platform returns the platform key, e.g. "twitter".
	Platform() string

	// Post publishes text as the given user.
	Post(ctx context.Context, userID, text string) (*PostResult, error)
}

// SocialRegistry maps platform keys to posters.
type SocialRegistry map[string]SocialPoster

// CredentialSource resolves a stored credential at the moment of use.
type CredentialSource interface {
	// Credential returns the stored token for (userID, kind), or
	// ErrNoCredential.
	Credential(ctx context.Context, userID, kind string) (accessToken, refreshToken string, err error)

	// UpdateCredential replaces the stored tokens after a refresh.
	UpdateCredential(ctx context.Context, userID, kind, accessToken, refreshToken string) error
}
