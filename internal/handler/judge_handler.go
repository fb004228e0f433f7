package handler

import (
	"crypto/hmac"
	"errors"
	"log/slog"

	"github.com/arturoeanton/go-commit-roaster/internal/port"
	"github.com/arturoeanton/go-commit-roaster/internal/service"
	"github.com/gofiber/fiber/v3"
)

// JudgeHandler exposes the judgment pipeline to the workflow runner.
type JudgeHandler struct {
	judgment  *service.JudgmentService
	lifecycle *service.LifecycleService
	secret    string // same shared secret as the sweep path
}

// NewJudgeHandler creates a new judge handler.
func NewJudgeHandler(judgment *service.JudgmentService, lifecycle *service.LifecycleService, secret string) *JudgeHandler {
	return &JudgeHandler{judgment: judgment, lifecycle: lifecycle, secret: secret}
}

// Register sets up the judge route on the unauthenticated app.
func (h *JudgeHandler) Register(app fiber.Router) {
	app.Post("/api/v1/judge", h.Judge)
}

// Judge runs the pipeline for one pushed commit.
func (h *JudgeHandler) Judge(c fiber.Ctx) error {
	if h.secret != "" && !hmac.Equal([]byte(c.Get("X-Cron-Secret")), []byte(h.secret)) {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid secret"})
	}

	var body struct {
		RepoName string `json:"repo_name"`
		SHA      string `json:"sha"`
	}
	if err := c.Bind().JSON(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}
	if body.RepoName == "" || body.SHA == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "repo_name and sha are required"})
	}

	result, err := h.judgment.JudgeCommit(c.Context(), body.RepoName, body.SHA)
	if errors.Is(err, port.ErrNotTracked) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "repository not tracked"})
	}
	if err != nil {
		// Boundary catch: internals are logged, the caller gets a generic failure.
		slog.Error("judgment failed", "repo", body.RepoName, "sha", body.SHA, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "judgment failed"})
	}

	if result.Roast != nil {
		h.lifecycle.ScheduleDeadline(result.Roast)
	}

	return c.JSON(result)
}
