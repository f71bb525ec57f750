package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"

	"planpilot/internal/config"
	"planpilot/internal/database"
	"planpilot/internal/handlers"
	"planpilot/internal/jobs"
	"planpilot/internal/llm"
	"planpilot/internal/logging"
	"planpilot/internal/middleware"
	"planpilot/internal/services"
	"planpilot/internal/session"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	// Initialize structured logging (JSON in production, text in dev)
	logging.Init()

	log.Println("🚀 Starting PlanPilot Server...")

	// Load .env file (ignore error if file doesn't exist)
	if err := godotenv.Load(); err != nil {
		log.Printf("⚠️  No .env file found or error loading it: %v", err)
	} else {
		log.Println("✅ .env file loaded successfully")
	}

	cfg := config.Load()
	log.Printf("📋 Configuration loaded (Port: %s)", cfg.Port)

	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("❌ Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := db.Initialize(); err != nil {
		log.Fatalf("❌ Failed to initialize database: %v", err)
	}

	// LLM provider: providers.json wins when present, otherwise environment
	// configuration. With neither the server still runs on canned replies.
	var provider llm.Provider
	providersFile := os.Getenv("PROVIDERS_FILE")
	if providersFile == "" {
		providersFile = "providers.json"
	}
	if pcfg, err := config.LoadProviders(providersFile); err == nil {
		provider = llm.Default(pcfg)
		if provider != nil {
			log.Printf("✅ LLM provider loaded from %s: %s", providersFile, provider.Name())
		}
	}
	if provider == nil {
		provider, err = llm.FromConfig(cfg)
		if err != nil {
			log.Fatalf("❌ Invalid LLM configuration: %v", err)
		}
		if provider != nil {
			log.Printf("✅ LLM provider configured from environment: %s", provider.Name())
		} else {
			log.Println("⚠️  No LLM provider configured - chat will use fallback replies")
		}
	}

	registry := session.NewRegistry()
	projectService := services.NewProjectService(db)
	chatService := services.NewChatService(db, cfg, registry, provider, projectService)
	extractionService := services.NewExtractionService(provider)

	scheduler, err := jobs.NewScheduler(cfg, registry, projectService)
	if err != nil {
		log.Fatalf("❌ Failed to set up maintenance jobs: %v", err)
	}
	scheduler.Start()

	app := fiber.New(fiber.Config{
		AppName:      "PlanPilot v1.0",
		ReadTimeout:  180 * time.Second, // LLM turns can take minutes
		WriteTimeout: 180 * time.Second,
		IdleTimeout:  180 * time.Second,
		BodyLimit:    4 * 1024 * 1024,
	})

	app.Use(recover.New())
	app.Use(logger.New())

	// Prometheus metrics middleware
	prometheus := fiberprometheus.New("planpilot")
	prometheus.RegisterAt(app, "/metrics")
	app.Use(prometheus.Middleware)
	log.Println("📊 Prometheus metrics endpoint enabled at /metrics")

	rateLimitConfig := middleware.LoadRateLimitConfig()
	log.Printf("🛡️  [RATE-LIMIT] Loaded config: Global=%d/min, Chat=%d/min, Extract=%d/min",
		rateLimitConfig.GlobalAPIMax, rateLimitConfig.ChatMax, rateLimitConfig.ExtractMax)

	allowedOrigins := os.Getenv("ALLOWED_ORIGINS")
	if allowedOrigins == "" {
		allowedOrigins = "http://localhost:5173,http://localhost:3000"
		log.Println("⚠️  ALLOWED_ORIGINS not set, using development defaults")
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Origin,Content-Type,Accept,Authorization",
		AllowCredentials: allowedOrigins != "*",
	}))

	app.Use("/api", middleware.GlobalAPIRateLimiter(rateLimitConfig))

	// Initialize handlers
	healthHandler := handlers.NewHealthHandler(registry)
	chatHandler := handlers.NewChatHandler(chatService, extractionService)
	projectHandler := handlers.NewProjectHandler(projectService)
	categoryHandler := handlers.NewCategoryHandler(projectService)

	app.Get("/health", healthHandler.Handle)

	api := app.Group("/api")

	chat := api.Group("/chat")
	chat.Post("/messages", middleware.ChatRateLimiter(rateLimitConfig), chatHandler.SendMessage)
	chat.Post("/extract", middleware.ExtractRateLimiter(rateLimitConfig), chatHandler.ExtractInstructions)
	chat.Get("/sessions", chatHandler.ListSessions)
	chat.Post("/sessions", chatHandler.CreateSession)
	chat.Post("/sessions/batch-delete", chatHandler.BatchDeleteSessions)
	chat.Put("/sessions/:id", chatHandler.RenameSession)
	chat.Delete("/sessions/:id", chatHandler.DeleteSession)
	chat.Get("/sessions/:id/messages", chatHandler.GetHistory)
	chat.Delete("/sessions/:id/messages", chatHandler.ClearHistory)
	chat.Post("/sessions/:id/abort", chatHandler.AbortSession)

	projects := api.Group("/projects")
	projects.Get("/", projectHandler.List)
	projects.Post("/", projectHandler.Create)
	projects.Get("/:id", projectHandler.Get)
	projects.Put("/:id", projectHandler.Update)
	projects.Delete("/:id", projectHandler.Delete)
	projects.Post("/:id/refresh", projectHandler.Refresh)
	projects.Post("/:id/tasks/:taskId/move", projectHandler.MoveTask)

	categories := api.Group("/categories")
	categories.Get("/", categoryHandler.List)
	categories.Post("/", categoryHandler.Create)
	categories.Post("/assign", categoryHandler.Assign)
	categories.Put("/:name", categoryHandler.Update)
	categories.Delete("/:name", categoryHandler.Delete)

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("🛑 Shutting down...")
		if err := scheduler.Shutdown(); err != nil {
			log.Printf("⚠️  Scheduler shutdown error: %v", err)
		}
		if err := app.Shutdown(); err != nil {
			log.Printf("⚠️  Server shutdown error: %v", err)
		}
	}()

	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatalf("❌ Server failed to start: %v", err)
	}

	log.Println("👋 Server stopped")
}
