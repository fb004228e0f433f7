package social

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// tokenRefresher exchanges an OAuth refresh token for a fresh access token.
type tokenRefresher struct {
	tokenURL     string
	clientID     string
	clientSecret string
	httpClient   *http.Client
}

// refreshed holds the tokens returned by a refresh grant.
type refreshed struct {
	AccessToken  string
	RefreshToken string
}

// Refresh performs the refresh_token grant. Platforms that rotate refresh
// tokens return a new one; otherwise the old one is carried forward.
func (r *tokenRefresher) Refresh(ctx context.Context, refreshToken string) (*refreshed, error) {
	data := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
		"client_id":     {r.clientID},
	}
	if r.clientSecret != "" {
		data.Set("client_secret", r.clientSecret)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.tokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, fmt.Errorf("create refresh request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token refresh: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)

	var tokenResp struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		Error        string `json:"error"`
		ErrorDesc    string `json:"error_description"`
	}
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return nil, fmt.Errorf("decode refresh response: %w", err)
	}
	if tokenResp.Error != "" {
		return nil, fmt.Errorf("token refresh: %s: %s", tokenResp.Error, tokenResp.ErrorDesc)
	}
	if tokenResp.AccessToken == "" {
		return nil, fmt.Errorf("token refresh failed (%d): %s", resp.StatusCode, string(body))
	}

	out := &refreshed{AccessToken: tokenResp.AccessToken, RefreshToken: tokenResp.RefreshToken}
	if out.RefreshToken == "" {
		out.RefreshToken = refreshToken
	}
	return out, nil
}
