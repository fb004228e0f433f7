package handler

import (
	"crypto/hmac"

	"github.com/arturoeanton/go-commit-roaster/internal/service"
	"github.com/gofiber/fiber/v3"
)

// SweepHandler exposes the sweep entry point for external schedulers.
type SweepHandler struct {
	lifecycle *service.LifecycleService
	secret    string // empty = open, the dev default
}

// NewSweepHandler creates a new sweep handler.
func NewSweepHandler(lifecycle *service.LifecycleService, secret string) *SweepHandler {
	return &SweepHandler{lifecycle: lifecycle, secret: secret}
}

// Register sets up the sweep route on the unauthenticated app.
func (h *SweepHandler) Register(app fiber.Router) {
	app.Post("/api/v1/internal/sweep", h.Sweep)
}

// Sweep runs one sweep pass and returns the number of roasts processed.
func (h *SweepHandler) Sweep(c fiber.Ctx) error {
	if h.secret != "" && !hmac.Equal([]byte(c.Get("X-Cron-Secret")), []byte(h.secret)) {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid cron secret"})
	}

	n, err := h.lifecycle.SweepExpired(c.Context())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	return c.JSON(fiber.Map{"processed": n})
}
