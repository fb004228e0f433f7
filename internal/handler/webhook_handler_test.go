package handler

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/arturoeanton/go-commit-roaster/internal/domain"
	"github.com/arturoeanton/go-commit-roaster/internal/port"
	"github.com/gofiber/fiber/v3"
)

const webhookSecret = "hook-secret"

func newWebhookApp(store *stubStore) *fiber.App {
	app := fiber.New()
	NewWebhookHandler(store, newTestLifecycle(store), webhookSecret).Register(app)
	return app
}

func signedRequest(t *testing.T, event string, body []byte) *http.Request {
	t.Helper()
	mac := hmac.New(sha256.New, []byte(webhookSecret))
	mac.Write(body)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/github", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-GitHub-Event", event)
	req.Header.Set("X-Hub-Signature-256", "sha256="+hex.EncodeToString(mac.Sum(nil)))
	return req
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	store := newStubStore()
	app := newWebhookApp(store)

	body := []byte(`{"action":"deleted"}`)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/github", bytes.NewReader(body))
	req.Header.Set("X-GitHub-Event", "repository")
	req.Header.Set("X-Hub-Signature-256", "sha256=deadbeef")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("test request: %v", err)
	}
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
}

func TestWebhookRepositoryDeletedCascades(t *testing.T) {
	store := newStubStore()
	store.UpsertTrackedRepo(context.Background(), &domain.TrackedRepo{RepoName: "acme/api", UserID: "u1"})
	deadline := time.Now().Add(time.Hour)
	for i := 0; i < 3; i++ {
		store.CreateRoast(context.Background(), &domain.Roast{
			RepoName: "acme/api", Status: domain.RoastStatusPending, Deadline: &deadline,
		})
	}
	app := newWebhookApp(store)

	body := []byte(`{"action":"deleted","repository":{"full_name":"acme/api"}}`)
	resp, err := app.Test(signedRequest(t, "repository", body))
	if err != nil {
		t.Fatalf("test request: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	if _, err := store.GetTrackedRepo(context.Background(), "acme/api"); !errors.Is(err, port.ErrNotTracked) {
		t.Fatal("tracked repo row should be gone")
	}
	store.mu.Lock()
	defer store.mu.Unlock()
	if len(store.roasts) != 0 {
		t.Fatalf("roasts after cascade = %d, want 0", len(store.roasts))
	}
}

func TestWebhookCheckFailureOpensFixWindow(t *testing.T) {
	store := newStubStore()
	store.UpsertTrackedRepo(context.Background(), &domain.TrackedRepo{
		RepoName: "acme/api", UserID: "u1", TimerMinutes: 5,
	})
	app := newWebhookApp(store)

	body := []byte(`{
		"action": "completed",
		"check_run": {"name": "ci/tests", "head_sha": "abc123", "conclusion": "failure"},
		"repository": {"full_name": "acme/api"},
		"sender": {"login": "dev"}
	}`)

	before := time.Now()
	resp, err := app.Test(signedRequest(t, "check_run", body))
	if err != nil {
		t.Fatalf("test request: %v", err)
	}
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want 201", resp.StatusCode)
	}

	store.mu.Lock()
	defer store.mu.Unlock()
	if len(store.roasts) != 1 {
		t.Fatalf("roasts = %d, want 1", len(store.roasts))
	}
	for _, r := range store.roasts {
		if r.Status != domain.RoastStatusPending || r.Posted || r.Fixed {
			t.Fatalf("roast = status=%q posted=%v fixed=%v, want fresh pending", r.Status, r.Posted, r.Fixed)
		}
		if r.CommitSHA != "abc123" || r.Actor != "dev" {
			t.Fatalf("roast identity = %q/%q", r.CommitSHA, r.Actor)
		}
		want := before.Add(5 * time.Minute)
		if r.Deadline.Before(want.Add(-5*time.Second)) || r.Deadline.After(want.Add(5*time.Second)) {
			t.Fatalf("deadline = %v, want about %v", r.Deadline, want)
		}
	}
}

func TestWebhookIgnoresSuccessfulChecks(t *testing.T) {
	store := newStubStore()
	store.UpsertTrackedRepo(context.Background(), &domain.TrackedRepo{RepoName: "acme/api", UserID: "u1"})
	app := newWebhookApp(store)

	body := []byte(`{
		"action": "completed",
		"check_run": {"name": "ci/tests", "head_sha": "abc123", "conclusion": "success"},
		"repository": {"full_name": "acme/api"}
	}`)
	resp, err := app.Test(signedRequest(t, "check_run", body))
	if err != nil {
		t.Fatalf("test request: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	store.mu.Lock()
	defer store.mu.Unlock()
	if len(store.roasts) != 0 {
		t.Fatalf("roasts = %d, want 0 for a passing check", len(store.roasts))
	}
}

func TestWebhookUntrackedRepoIgnored(t *testing.T) {
	store := newStubStore()
	app := newWebhookApp(store)

	body := []byte(`{
		"action": "completed",
		"check_run": {"name": "ci/tests", "head_sha": "abc123", "conclusion": "failure"},
		"repository": {"full_name": "ghost/repo"}
	}`)
	resp, err := app.Test(signedRequest(t, "check_run", body))
	if err != nil {
		t.Fatalf("test request: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	store.mu.Lock()
	defer store.mu.Unlock()
	if len(store.roasts) != 0 {
		t.Fatal("untracked repos must not accumulate roasts")
	}
}
