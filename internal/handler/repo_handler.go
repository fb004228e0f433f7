package handler

import (
	"errors"

	"github.com/arturoeanton/go-commit-roaster/internal/domain"
	"github.com/arturoeanton/go-commit-roaster/internal/middleware"
	"github.com/arturoeanton/go-commit-roaster/internal/port"
	"github.com/gofiber/fiber/v3"
)

// RepoHandler handles tracked-repository configuration.
type RepoHandler struct {
	store port.RoastStore
}

// NewRepoHandler creates a new repo handler.
func NewRepoHandler(store port.RoastStore) *RepoHandler {
	return &RepoHandler{store: store}
}

// Register sets up repo routes on a protected group.
func (h *RepoHandler) Register(api fiber.Router) {
	repos := api.Group("/repos")
	repos.Get("/", h.List)
	repos.Post("/", h.Track)
	repos.Delete("/*", h.Untrack)
}

// List returns the repos the user supervises.
func (h *RepoHandler) List(c fiber.Ctx) error {
	uc := middleware.GetUserContext(c)
	if uc == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	repos, err := h.store.ListTrackedReposByUser(c.Context(), uc.UserID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	return c.JSON(fiber.Map{"repos": repos, "count": len(repos)})
}

// Track creates or updates the supervision config for a repository.
func (h *RepoHandler) Track(c fiber.Ctx) error {
	uc := middleware.GetUserContext(c)
	if uc == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	var body struct {
		RepoName     string `json:"repo_name"`
		TimerMinutes int    `json:"timer_minutes"`
		PostTwitter  bool   `json:"post_twitter"`
		PostLinkedIn bool   `json:"post_linkedin"`
		RevertOnFail bool   `json:"revert_on_fail"`
		YoloMode     bool   `json:"yolo_mode"`
	}
	if err := c.Bind().JSON(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}
	if body.RepoName == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "repo_name is required"})
	}

	repo, err := h.store.UpsertTrackedRepo(c.Context(), &domain.TrackedRepo{
		RepoName:     body.RepoName,
		UserID:       uc.UserID,
		TimerMinutes: body.TimerMinutes,
		PostTwitter:  body.PostTwitter,
		PostLinkedIn: body.PostLinkedIn,
		RevertOnFail: body.RevertOnFail,
		YoloMode:     body.YoloMode,
	})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	return c.Status(fiber.StatusCreated).JSON(repo)
}

// Untrack removes the supervision config. Past roasts stay as history; only
// the repository-deletion webhook cascades.
func (h *RepoHandler) Untrack(c fiber.Ctx) error {
	uc := middleware.GetUserContext(c)
	if uc == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	repoName := c.Params("*")
	repo, err := h.store.GetTrackedRepo(c.Context(), repoName)
	if errors.Is(err, port.ErrNotTracked) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "repository not tracked"})
	}
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	if repo.UserID != uc.UserID {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "not your repository"})
	}

	if err := h.store.DeleteTrackedRepo(c.Context(), repoName); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	return c.JSON(fiber.Map{"ok": true})
}
