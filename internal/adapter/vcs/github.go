package vcs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/arturoeanton/go-commit-roaster/internal/domain"
)

// GitHubProvider implements port.VCSProvider against the GitHub REST API.
type GitHubProvider struct {
	baseURL    string
	httpClient *http.Client
}

// NewGitHubProvider creates a new GitHub-backed VCS provider.
func NewGitHubProvider(baseURL string) *GitHubProvider {
	return &GitHubProvider{
		baseURL:    baseURL,
		httpClient: &http.Client{},
	}
}

// FetchDiff returns the unified diff of a commit. A 404 or empty body is
// reported as "" with no error so the judgment pipeline can fail open.
func (g *GitHubProvider) FetchDiff(ctx context.Context, repoName, token, sha string) (string, error) {
	url := fmt.Sprintf("%s/repos/%s/commits/%s", g.baseURL, repoName, sha)

	req, err := g.newRequest(ctx, http.MethodGet, url, token, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "application/vnd.github.diff")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("github: fetch diff: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return "", nil
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("github: fetch diff (%d): %s", resp.StatusCode, string(body))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("github: read diff: %w", err)
	}
	return string(body), nil
}

// FetchCommitInfo returns the author, message and branch of a commit.
func (g *GitHubProvider) FetchCommitInfo(ctx context.Context, repoName, token, sha string) (*domain.CommitInfo, error) {
	url := fmt.Sprintf("%s/repos/%s/commits/%s", g.baseURL, repoName, sha)

	var commit struct {
		SHA    string `json:"sha"`
		Commit struct {
			Message string `json:"message"`
			Author  struct {
				Name string `json:"name"`
			} `json:"author"`
		} `json:"commit"`
		Author *struct {
			Login string `json:"login"`
		} `json:"author"`
	}
	if err := g.getJSON(ctx, url, token, &commit); err != nil {
		return nil, fmt.Errorf("github: fetch commit: %w", err)
	}

	info := &domain.CommitInfo{
		SHA:     commit.SHA,
		Author:  commit.Commit.Author.Name,
		Message: commit.Commit.Message,
	}
	if commit.Author != nil && commit.Author.Login != "" {
		info.Author = commit.Author.Login
	}

	// Default branch doubles as the branch of a push event; the webhook
	// workflow only runs on it.
	var repo struct {
		DefaultBranch string `json:"default_branch"`
	}
	if err := g.getJSON(ctx, fmt.Sprintf("%s/repos/%s", g.baseURL, repoName), token, &repo); err == nil {
		info.Branch = repo.DefaultBranch
	}

	return info, nil
}

// RevertCommit force-updates the default branch ref to the commit's first
// parent, restoring the state before sha.
func (g *GitHubProvider) RevertCommit(ctx context.Context, repoName, token, sha string) error {
	var commit struct {
		Parents []struct {
			SHA string `json:"sha"`
		} `json:"parents"`
	}
	url := fmt.Sprintf("%s/repos/%s/commits/%s", g.baseURL, repoName, sha)
	if err := g.getJSON(ctx, url, token, &commit); err != nil {
		return fmt.Errorf("github: revert lookup: %w", err)
	}
	if len(commit.Parents) == 0 {
		return fmt.Errorf("github: revert: commit %s has no parent", sha)
	}

	var repo struct {
		DefaultBranch string `json:"default_branch"`
	}
	if err := g.getJSON(ctx, fmt.Sprintf("%s/repos/%s", g.baseURL, repoName), token, &repo); err != nil {
		return fmt.Errorf("github: revert lookup: %w", err)
	}

	payload, _ := json.Marshal(map[string]any{
		"sha":   commit.Parents[0].SHA,
		"force": true,
	})
	refURL := fmt.Sprintf("%s/repos/%s/git/refs/heads/%s", g.baseURL, repoName, repo.DefaultBranch)
	req, err := g.newRequest(ctx, http.MethodPatch, refURL, token, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("github: revert: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("github: revert (%d): %s", resp.StatusCode, string(body))
	}
	return nil
}

// DeleteRepository permanently deletes the remote repository.
func (g *GitHubProvider) DeleteRepository(ctx context.Context, repoName, token string) error {
	url := fmt.Sprintf("%s/repos/%s", g.baseURL, repoName)

	req, err := g.newRequest(ctx, http.MethodDelete, url, token, nil)
	if err != nil {
		return err
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("github: delete repository: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("github: delete repository (%d): %s", resp.StatusCode, string(body))
	}
	return nil
}

func (g *GitHubProvider) newRequest(ctx context.Context, method, url, token string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("github: create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
	return req, nil
}

func (g *GitHubProvider) getJSON(ctx context.Context, url, token string, out any) error {
	req, err := g.newRequest(ctx, http.MethodGet, url, token, nil)
	if err != nil {
		return err
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("github API error (%d): %s", resp.StatusCode, string(body))
	}

	return json.NewDecoder(resp.Body).Decode(out)
}
