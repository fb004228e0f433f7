package social

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/arturoeanton/go-commit-roaster/internal/domain"
	"github.com/arturoeanton/go-commit-roaster/internal/port"
)

const linkedinTokenURL = "https://www.linkedin.com/oauth/v2/accessToken"

// LinkedInPoster implements port.SocialPoster for the LinkedIn API.
type LinkedInPoster struct {
	baseURL    string
	creds      port.CredentialSource
	refresher  *tokenRefresher
	httpClient *http.Client
}

// NewLinkedInPoster creates a LinkedIn poster using tokens from creds.
func NewLinkedInPoster(baseURL, clientID, clientSecret string, creds port.CredentialSource) *LinkedInPoster {
	client := &http.Client{}
	return &LinkedInPoster{
		baseURL:    baseURL,
		creds:      creds,
		httpClient: client,
		refresher: &tokenRefresher{
			tokenURL:     linkedinTokenURL,
			clientID:     clientID,
			clientSecret: clientSecret,
			httpClient:   client,
		},
	}
}

// Platform returns "linkedin".
func (l *LinkedInPoster) Platform() string {
	return domain.ActionLinkedIn
}

// Post publishes a share as the given user, refreshing the token once on 401.
func (l *LinkedInPoster) Post(ctx context.Context, userID, text string) (*port.PostResult, error) {
	access, refresh, err := l.creds.Credential(ctx, userID, domain.CredentialLinkedIn)
	if err != nil {
		return nil, fmt.Errorf("linkedin: %w", err)
	}

	id, status, err := l.share(ctx, access, text)
	if status == http.StatusUnauthorized && refresh != "" {
		fresh, refreshErr := l.refresher.Refresh(ctx, refresh)
		if refreshErr != nil {
			return nil, fmt.Errorf("linkedin: %w", refreshErr)
		}
		if updateErr := l.creds.UpdateCredential(ctx, userID, domain.CredentialLinkedIn, fresh.AccessToken, fresh.RefreshToken); updateErr != nil {
			return nil, fmt.Errorf("linkedin: store refreshed token: %w", updateErr)
		}
		id, _, err = l.share(ctx, fresh.AccessToken, text)
	}
	if err != nil {
		return nil, err
	}
	return &port.PostResult{PostID: id}, nil
}

func (l *LinkedInPoster) share(ctx context.Context, token, text string) (string, int, error) {
	// The member URN comes from the OpenID userinfo endpoint.
	sub, status, err := l.userinfo(ctx, token)
	if err != nil {
		return "", status, err
	}

	payload, _ := json.Marshal(map[string]any{
		"author":         "urn:li:person:" + sub,
		"lifecycleState": "PUBLISHED",
		"specificContent": map[string]any{
			"com.linkedin.ugc.ShareContent": map[string]any{
				"shareCommentary":    map[string]string{"text": text},
				"shareMediaCategory": "NONE",
			},
		},
		"visibility": map[string]string{
			"com.linkedin.ugc.MemberNetworkVisibility": "PUBLIC",
		},
	})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.baseURL+"/v2/ugcPosts", bytes.NewReader(payload))
	if err != nil {
		return "", 0, fmt.Errorf("linkedin: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-Restli-Protocol-Version", "2.0.0")

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("linkedin: post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		return "", resp.StatusCode, fmt.Errorf("linkedin: post (%d): %s", resp.StatusCode, string(body))
	}

	if id := resp.Header.Get("X-Restli-Id"); id != "" {
		return id, resp.StatusCode, nil
	}
	var shareResp struct {
		ID string `json:"id"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&shareResp)
	return shareResp.ID, resp.StatusCode, nil
}

func (l *LinkedInPoster) userinfo(ctx context.Context, token string) (string, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.baseURL+"/v2/userinfo", nil)
	if err != nil {
		return "", 0, fmt.Errorf("linkedin: create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("linkedin: userinfo: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", resp.StatusCode, fmt.Errorf("linkedin: userinfo (%d): %s", resp.StatusCode, string(body))
	}

	var info struct {
		Sub string `json:"sub"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return "", resp.StatusCode, fmt.Errorf("linkedin: decode userinfo: %w", err)
	}
	return info.Sub, resp.StatusCode, nil
}
