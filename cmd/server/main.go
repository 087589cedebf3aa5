package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/G-Dillep/Testcase-Generator-by-innova/internal/adapter/ai"
	"github.com/G-Dillep/Testcase-Generator-by-innova/internal/adapter/store"
	"github.com/G-Dillep/Testcase-Generator-by-innova/internal/handler"
	"github.com/G-Dillep/Testcase-Generator-by-innova/internal/ratelimit"
	"github.com/G-Dillep/Testcase-Generator-by-innova/internal/retry"
	"github.com/G-Dillep/Testcase-Generator-by-innova/internal/service"
	"github.com/G-Dillep/Testcase-Generator-by-innova/pkg/config"
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

	slog.Info("🚀 Starting Test Case Generator",
		"port", cfg.Port,
		"ollama_embed", cfg.OllamaEmbedURL,
		"ollama_chat", cfg.OllamaChatURL,
		"calls_per_minute", cfg.CallsPerMinute,
	)

	// ── Database ─────────────────────────────────────────────────────────
	pgStore, err := store.NewPostgresStore(cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pgStore.Close()

	if err := pgStore.EnsureSchema(context.Background(), cfg.EmbeddingDimension); err != nil {
		slog.Error("failed to ensure schema", "error", err)
		os.Exit(1)
	}

	vectorStore := store.NewVectorStore(pgStore, cfg.EmbeddingDimension)

	// ── Adapters ─────────────────────────────────────────────────────────
	ollamaAI := ai.NewOllamaProvider(
		ai.OllamaEndpointConfig{
			BaseURL: cfg.OllamaEmbedURL,
			Model:   cfg.OllamaEmbedModel,
			Token:   cfg.OllamaEmbedToken,
		},
		ai.OllamaEndpointConfig{
			BaseURL: cfg.OllamaChatURL,
			Model:   cfg.OllamaChatModel,
			Token:   cfg.OllamaChatToken,
		},
		cfg.ModelCallTimeout,
	)

	// Shared across generation and impact so the per-minute budget covers
	// every outbound model call.
	limiter := ratelimit.New(cfg.CallsPerMinute)
	policy := retry.Default()

	// ── Services ─────────────────────────────────────────────────────────
	genService := service.NewGenerationService(ollamaAI, vectorStore, pgStore, limiter, policy)
	impactService := service.NewImpactService(ollamaAI, vectorStore, pgStore, limiter, policy)

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

	// Health check
	app.Get("/api/v1/health", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "healthy",
			"app":     cfg.AppName,
			"version": "1.0.0",
		})
	})

	// ── Routes ───────────────────────────────────────────────────────────
	api := app.Group("/api/v1")

	storyHandler := handler.NewStoryHandler(vectorStore, pgStore, ollamaAI)
	storyHandler.Register(api)

	genHandler := handler.NewGenerationHandler(genService, pgStore)
	genHandler.Register(api)

	impactHandler := handler.NewImpactHandler(impactService)
	impactHandler.Register(api)

	// ── Start ────────────────────────────────────────────────────────────
	slog.Info("🌐 Fiber listening", "port", cfg.Port)
	if err := app.Listen(":" + cfg.Port); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}
