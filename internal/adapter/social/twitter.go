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

const twitterTokenURL = "https://api.twitter.com/2/oauth2/token"

// TwitterPoster implements port.SocialPoster for the Twitter v2 API.
type TwitterPoster struct {
	baseURL    string
	creds      port.CredentialSource
	refresher  *tokenRefresher
	httpClient *http.Client
}

// NewTwitterPoster creates a Twitter poster using tokens from creds.
func NewTwitterPoster(baseURL, clientID, clientSecret string, creds port.CredentialSource) *TwitterPoster {
	client := &http.Client{}
	return &TwitterPoster{
		baseURL:    baseURL,
		creds:      creds,
		httpClient: client,
		refresher: &tokenRefresher{
			tokenURL:     twitterTokenURL,
			clientID:     clientID,
			clientSecret: clientSecret,
			httpClient:   client,
		},
	}
}

// Platform returns "twitter".
func (t *TwitterPoster) Platform() string {
	return domain.ActionTwitter
}

// Post publishes a tweet as the given user, refreshing the token once on 401.
func (t *TwitterPoster) Post(ctx context.Context, userID, text string) (*port.PostResult, error) {
	access, refresh, err := t.creds.Credential(ctx, userID, domain.CredentialTwitter)
	if err != nil {
		return nil, fmt.Errorf("twitter: %w", err)
	}

	id, status, err := t.tweet(ctx, access, text)
	if status == http.StatusUnauthorized && refresh != "" {
		fresh, refreshErr := t.refresher.Refresh(ctx, refresh)
		if refreshErr != nil {
			return nil, fmt.Errorf("twitter: %w", refreshErr)
		}
		if updateErr := t.creds.UpdateCredential(ctx, userID, domain.CredentialTwitter, fresh.AccessToken, fresh.RefreshToken); updateErr != nil {
			return nil, fmt.Errorf("twitter: store refreshed token: %w", updateErr)
		}
		id, _, err = t.tweet(ctx, fresh.AccessToken, text)
	}
	if err != nil {
		return nil, err
	}
	return &port.PostResult{PostID: id}, nil
}

func (t *TwitterPoster) tweet(ctx context.Context, token, text string) (string, int, error) {
	payload, _ := json.Marshal(map[string]string{"text": text})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/2/tweets", bytes.NewReader(payload))
	if err != nil {
		return "", 0, fmt.Errorf("twitter: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("twitter: post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		return "", resp.StatusCode, fmt.Errorf("twitter: post (%d): %s", resp.StatusCode, string(body))
	}

	var tweetResp struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tweetResp); err != nil {
		return "", resp.StatusCode, fmt.Errorf("twitter: decode response: %w", err)
	}
	return tweetResp.Data.ID, resp.StatusCode, nil
}
