package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/arturoeanton/go-commit-roaster/internal/adapter/ai"
	"github.com/arturoeanton/go-commit-roaster/internal/adapter/social"
	"github.com/arturoeanton/go-commit-roaster/internal/adapter/store"
	"github.com/arturoeanton/go-commit-roaster/internal/adapter/vcs"
	"github.com/arturoeanton/go-commit-roaster/internal/handler"
	"github.com/arturoeanton/go-commit-roaster/internal/middleware"
	"github.com/arturoeanton/go-commit-roaster/internal/port"
	"github.com/arturoeanton/go-commit-roaster/internal/service"
	"github.com/arturoeanton/go-commit-roaster/pkg/config"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/joho/godotenv"

	_ "github.com/lib/pq"
)

func main() {
	// ── Load .env file ───────────────────────────────────────────────────
	_ = godotenv.Load() // silently ignore if .env doesn't exist

	// ── Configuration ────────────────────────────────────────────────────
	cfg := config.Load()

	slog.Info("🔥 Starting Commit Roaster",
		"port", cfg.Port,
		"ollama_chat", cfg.OllamaChatURL,
		"sweep_interval_s", cfg.SweepIntervalSeconds,
	)

	// ── Database ─────────────────────────────────────────────────────────
	pgStore, err := store.NewPostgresStore(cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pgStore.Close()

	if err := pgStore.InitSchema(context.Background()); err != nil {
		slog.Error("failed to initialize schema", "error", err)
		os.Exit(1)
	}

	// ── Adapters ─────────────────────────────────────────────────────────
	oracle := ai.NewOllamaProvider(ai.OllamaEndpointConfig{
		BaseURL: cfg.OllamaChatURL,
		Model:   cfg.OllamaChatModel,
		Token:   cfg.OllamaChatToken,
	})
	githubVCS := vcs.NewGitHubProvider(cfg.GitHubAPIURL)

	twitter := social.NewTwitterPoster(cfg.TwitterAPIURL, cfg.TwitterClientID, cfg.TwitterSecret, pgStore)
	linkedin := social.NewLinkedInPoster(cfg.LinkedInAPIURL, cfg.LinkedInClientID, cfg.LinkedInSecret, pgStore)

	posters := port.SocialRegistry{
		twitter.Platform():  twitter,
		linkedin.Platform(): linkedin,
	}

	// ── Services ─────────────────────────────────────────────────────────
	dispatcher := service.NewDispatcher(posters, githubVCS, pgStore, pgStore)
	lifecycle := service.NewLifecycleService(pgStore, dispatcher)
	judgment := service.NewJudgmentService(pgStore, pgStore, githubVCS, oracle)

	// ── Fiber App ────────────────────────────────────────────────────────
	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	})

	// Global middleware
	app.Use(recover.New())
	app.Use(fiberlogger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: []string{cfg.FrontendURL},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization"},
		AllowMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
	}))

	// Audit middleware (logs all requests)
	app.Use(middleware.AuditMiddleware(pgStore))

	// ── Public Routes ────────────────────────────────────────────────────
	handler.NewWebhookHandler(pgStore, lifecycle, cfg.WebhookSecret).Register(app)
	handler.NewSweepHandler(lifecycle, cfg.CronSecret).Register(app)
	handler.NewJudgeHandler(judgment, lifecycle, cfg.CronSecret).Register(app)

	// Health check
	app.Get("/api/v1/health", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "healthy",
			"app":     cfg.AppName,
			"version": "1.0.0",
		})
	})

	// ── Protected Routes ─────────────────────────────────────────────────
	jwtMiddleware := middleware.JWTMiddleware(middleware.JWTConfig{
		Secret:    cfg.JWTSecret,
		Issuer:    cfg.JWTIssuer,
		ExpiresIn: time.Duration(cfg.JWTExpiration) * time.Hour,
	})

	api := app.Group("/api/v1", jwtMiddleware)

	handler.NewRepoHandler(pgStore).Register(api)
	handler.NewRoastHandler(pgStore, lifecycle).Register(api)
	handler.NewAuditHandler(pgStore).Register(api)

	// ── Periodic Sweep ───────────────────────────────────────────────────
	go lifecycle.Run(context.Background(), time.Duration(cfg.SweepIntervalSeconds)*time.Second)

	// ── Start ────────────────────────────────────────────────────────────
	slog.Info("🌐 Fiber listening", "port", cfg.Port)
	if err := app.Listen(":" + cfg.Port); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}
