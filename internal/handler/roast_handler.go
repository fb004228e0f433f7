package handler

import (
	"errors"
	"time"

	"github.com/arturoeanton/go-commit-roaster/internal/middleware"
	"github.com/arturoeanton/go-commit-roaster/internal/port"
	"github.com/arturoeanton/go-commit-roaster/internal/service"
	"github.com/gofiber/fiber/v3"
)

// RoastHandler exposes the pending-roast list and the mark-fixed mutation.
type RoastHandler struct {
	store     port.RoastStore
	lifecycle *service.LifecycleService
}

// NewRoastHandler creates a new roast handler.
func NewRoastHandler(store port.RoastStore, lifecycle *service.LifecycleService) *RoastHandler {
	return &RoastHandler{store: store, lifecycle: lifecycle}
}

// Register sets up roast routes on a protected group.
func (h *RoastHandler) Register(api fiber.Router) {
	roasts := api.Group("/roasts")
	roasts.Get("/", h.List)
	roasts.Post("/:id/resolve", h.Resolve)
}

// List returns the user's pending roasts, soonest deadline first. Reading the
// list opportunistically triggers a background sweep; the response never
// waits on it.
func (h *RoastHandler) List(c fiber.Ctx) error {
	uc := middleware.GetUserContext(c)
	if uc == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	h.lifecycle.LazySweep()

	roasts, err := h.store.ListPendingRoastsByUser(c.Context(), uc.UserID, time.Now())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	// Arm one-shot timers so expiry lands close to the deadline even if the
	// periodic sweep is slow.
	for i := range roasts {
		h.lifecycle.ScheduleDeadline(&roasts[i])
	}

	return c.JSON(fiber.Map{"roasts": roasts, "count": len(roasts)})
}

// Resolve marks a pending roast as fixed before its deadline.
func (h *RoastHandler) Resolve(c fiber.Ctx) error {
	uc := middleware.GetUserContext(c)
	if uc == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	roast, err := h.store.ResolveRoast(c.Context(), c.Params("id"), time.Now())
	if errors.Is(err, port.ErrRoastNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "roast not found"})
	}
	if errors.Is(err, port.ErrAlreadyProcessed) {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "roast already processed"})
	}
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	return c.JSON(roast)
}
