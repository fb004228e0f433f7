package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/arturoeanton/go-commit-roaster/internal/port"
)

const judgeSystemPrompt = `You are a ruthless code reviewer. You receive a unified diff of a commit.
Decide whether the change is acceptable. Respond with ONLY a JSON object:
{"pass": true|false, "reason": "<one short sentence>"}`

const roastSystemPrompt = `You write short, savage, funny roasts of bad commits.
One or two sentences, under 250 characters, no hashtags, no preamble.`

// OllamaEndpointConfig holds the configuration for an Ollama endpoint.
type OllamaEndpointConfig struct {
	BaseURL string // e.g. http://localhost:11434 or https://api.ollama.com
	Model   string // e.g. qwen3
	Token   string // Bearer token for Ollama Cloud (empty = no auth)
}

// OllamaProvider implements port.Oracle using the Ollama REST API.
type OllamaProvider struct {
	chat       OllamaEndpointConfig
	httpClient *http.Client
}

// NewOllamaProvider creates a new Ollama-backed oracle.
func NewOllamaProvider(chat OllamaEndpointConfig) *OllamaProvider {
	return &OllamaProvider{
		chat:       chat,
		httpClient: &http.Client{},
	}
}

// ModelName returns the chat model identifier.
func (o *OllamaProvider) ModelName() string {
	return o.chat.Model
}

// Judge evaluates a diff and returns the model's verdict. An unparsable
// response is an error; the caller decides the fail-open policy.
func (o *OllamaProvider) Judge(ctx context.Context, diff string) (*port.Verdict, error) {
	content, err := o.complete(ctx, judgeSystemPrompt, "Judge this commit diff:\n\n"+diff)
	if err != nil {
		return nil, fmt.Errorf("ollama judge: %w", err)
	}

	var verdict port.Verdict
	if err := json.Unmarshal([]byte(extractJSON(content)), &verdict); err != nil {
		return nil, fmt.Errorf("ollama judge: bad verdict %q: %w", content, err)
	}
	return &verdict, nil
}

// GenerateRoast produces the taunting message for a failed judgment.
func (o *OllamaProvider) GenerateRoast(ctx context.Context, req port.RoastRequest) (string, error) {
	prompt := fmt.Sprintf(
		"Author: %s\nRepo: %s\nBranch: %s\nCommit message: %s\nFailure reason: %s\n\nDiff:\n%s\n\nWrite the roast.",
		req.Actor, req.RepoName, req.Branch, req.Message, req.Reason, req.Diff,
	)

	content, err := o.complete(ctx, roastSystemPrompt, prompt)
	if err != nil {
		return "", fmt.Errorf("ollama roast: %w", err)
	}
	return strings.TrimSpace(content), nil
}

// complete sends a non-streaming chat request and returns the message content.
func (o *OllamaProvider) complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	payload := map[string]any{
		"model": o.chat.Model,
		"messages": []map[string]string{
			{"role": "system", "content": systemPrompt},
			{"role": "user", "content": userPrompt},
		},
		"stream": false,
	}

	body, err := o.post(ctx, "/api/chat", payload)
	if err != nil {
		return "", err
	}

	var resp struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	return resp.Message.Content, nil
}

// post is a helper for POST requests to the Ollama endpoint (with optional bearer token).
func (o *OllamaProvider) post(ctx context.Context, path string, payload any) ([]byte, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.chat.BaseURL+path, bytes.NewReader(payloadBytes))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if o.chat.Token != "" {
		req.Header.Set("Authorization", "Bearer "+o.chat.Token)
	}

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("ollama API error (%d): %s", resp.StatusCode, string(body))
	}

	return io.ReadAll(resp.Body)
}

// extractJSON pulls the first {...} object out of a model response that may
// wrap it in prose or fencing.
func extractJSON(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start == -1 || end == -1 || end < start {
		return s
	}
	return s[start : end+1]
}
