package main

import (
	"context"
	"log"
	"os"

	"github.com/getsentry/sentry-go"
	"github.com/gofiber/fiber/v2"

	"coachflow/config"
	"coachflow/middleware"
	"coachflow/routes"
	"coachflow/utils"
	"coachflow/worker"
)

func main() {
	// Initialize logger
	logger := log.New(os.Stdout, "SEQUENCE: ", log.Ldate|log.Ltime|log.Lshortfile)

	// Load configuration
	if err := config.LoadConfig(); err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}

	// Error reporting (optional, enabled by SENTRY_DSN)
	if dsn := config.AppConfig.SentryDSN; dsn != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         dsn,
			Environment: config.AppConfig.Environment,
		}); err != nil {
			logger.Printf("Sentry initialization failed: %v", err)
		}
	}

	// Initialize database connection
	if err := config.ConnectDB(); err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}

	// Create Fiber app
	app := fiber.New()

	// Add CORS middleware
	app.Use(middleware.CORS())

	// Delivery plumbing: provider adapter, enrollment engine, list sync
	mailer := utils.NewMailer(&config.AppConfig, logger)
	enroller := utils.NewEnroller(config.DB, logger)
	mailerLite := utils.NewMailerLiteClient(config.AppConfig.MailerLiteAPIKey, logger)

	// Sequence scheduler
	sequenceWorker := worker.NewSequenceWorker(config.DB, mailer, logger, config.AppConfig.Scheduler)
	if config.AppConfig.Scheduler.AutoStart {
		if err := sequenceWorker.Start(); err != nil {
			logger.Fatalf("Failed to start sequence worker: %v", err)
		}
	}

	// Engagement reclassification sweep
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	engagementWorker := worker.NewEngagementWorker(config.DB)
	go engagementWorker.Start(ctx)

	// Root endpoint. Registered before the route table so the trailing
	// 404 handler doesn't shadow it.
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "running",
			"version": "1.0.0",
		})
	})

	// Setup routes
	routes.SetupRoutes(app, config.DB, &config.AppConfig, sequenceWorker, enroller, mailerLite)

	// Start server
	logger.Printf("🚀 Server starting on port %s", config.AppConfig.ServerPort)
	if err := app.Listen(":" + config.AppConfig.ServerPort); err != nil {
		logger.Fatalf("Failed to start server: %v", err)
	}
}
