package handler

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/arturoeanton/go-commit-roaster/internal/domain"
	"github.com/arturoeanton/go-commit-roaster/internal/port"
	"github.com/arturoeanton/go-commit-roaster/internal/service"
	"github.com/gofiber/fiber/v3"
)

// WebhookHandler ingests signed GitHub notifications: failed automated checks
// (which open a fix window without consulting the oracle) and repository
// deletions (which cascade away all local state for the repo).
type WebhookHandler struct {
	store     port.RoastStore
	lifecycle *service.LifecycleService
	secret    string
}

// NewWebhookHandler creates a new webhook handler.
func NewWebhookHandler(store port.RoastStore, lifecycle *service.LifecycleService, secret string) *WebhookHandler {
	return &WebhookHandler{store: store, lifecycle: lifecycle, secret: secret}
}

// Register sets up the webhook route on the unauthenticated app.
func (h *WebhookHandler) Register(app fiber.Router) {
	app.Post("/webhooks/github", h.Receive)
}

// Receive verifies the payload signature and routes by event type.
func (h *WebhookHandler) Receive(c fiber.Ctx) error {
	body := c.Body()

	if h.secret != "" {
		if !verifySignature(body, c.Get("X-Hub-Signature-256"), h.secret) {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid signature"})
		}
	}

	event := c.Get("X-GitHub-Event")
	switch event {
	case "repository":
		return h.repositoryEvent(c, body)
	case "check_run":
		return h.checkRunEvent(c, body)
	default:
		return c.JSON(fiber.Map{"ok": true, "ignored": event})
	}
}

func (h *WebhookHandler) repositoryEvent(c fiber.Ctx, body []byte) error {
	var payload struct {
		Action     string `json:"action"`
		Repository struct {
			FullName string `json:"full_name"`
		} `json:"repository"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid payload"})
	}

	if payload.Action != "deleted" {
		return c.JSON(fiber.Map{"ok": true, "ignored": payload.Action})
	}

	if err := h.store.DeleteTrackedRepoCascade(c.Context(), payload.Repository.FullName); err != nil {
		slog.Error("cascade delete failed", "repo", payload.Repository.FullName, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	slog.Info("repository deleted upstream, tracking removed", "repo", payload.Repository.FullName)
	return c.JSON(fiber.Map{"ok": true})
}

func (h *WebhookHandler) checkRunEvent(c fiber.Ctx, body []byte) error {
	var payload struct {
		Action   string `json:"action"`
		CheckRun struct {
			Name       string `json:"name"`
			HeadSHA    string `json:"head_sha"`
			Conclusion string `json:"conclusion"`
		} `json:"check_run"`
		Repository struct {
			FullName string `json:"full_name"`
		} `json:"repository"`
		Sender struct {
			Login string `json:"login"`
		} `json:"sender"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid payload"})
	}

	if payload.Action != "completed" || payload.CheckRun.Conclusion != "failure" {
		return c.JSON(fiber.Map{"ok": true, "ignored": payload.CheckRun.Conclusion})
	}

	repo, err := h.store.GetTrackedRepo(c.Context(), payload.Repository.FullName)
	if errors.Is(err, port.ErrNotTracked) {
		return c.JSON(fiber.Map{"ok": true, "ignored": "untracked"})
	}
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	deadline := time.Now().Add(repo.FixWindow())
	roast, err := h.store.CreateRoast(c.Context(), &domain.Roast{
		RepoName:  repo.RepoName,
		Actor:     payload.Sender.Login,
		CommitSHA: payload.CheckRun.HeadSHA,
		Reason:    fmt.Sprintf("automated check failed: %s", payload.CheckRun.Name),
		Status:    domain.RoastStatusPending,
		Deadline:  &deadline,
	})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	h.lifecycle.ScheduleDeadline(roast)

	slog.Info("check failure opened fix window",
		"repo", repo.RepoName, "sha", payload.CheckRun.HeadSHA, "deadline", deadline)
	return c.Status(fiber.StatusCreated).JSON(roast)
}

// verifySignature checks the keyed hash GitHub sends with every delivery.
// The comparison is constant time.
func verifySignature(body []byte, header, secret string) bool {
	sig, ok := strings.CutPrefix(header, "sha256=")
	if !ok {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(sig), []byte(expected))
}
