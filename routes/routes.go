package routes

import (
	"log"
	"os"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/websocket/v2"
	"gorm.io/gorm"

	"coachflow/config"
	controller "coachflow/controllers"
	"coachflow/middleware"
	"coachflow/utils"
	"coachflow/worker"
)

// SetupRoutes wires the whole HTTP surface: public funnels, blog,
// webhooks, admin auth and the protected dashboard API.
func SetupRoutes(app *fiber.App, db *gorm.DB, cfg *config.Config, sequenceWorker *worker.SequenceWorker, enroller *utils.Enroller, mailerLite *utils.MailerLiteClient) {
	routeLogger := log.New(os.Stdout, "ROUTES: ", log.Ldate|log.Ltime|log.Lshortfile)

	subscribeController := controller.NewSubscribeController(db, enroller, mailerLite)
	webhookController := controller.NewWebhookController(db, cfg)
	blogController := controller.NewBlogController(db)
	authController := controller.NewAuthController(db)
	adminController := controller.NewAdminController(db, sequenceWorker, enroller)

	requestLog := logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	})

	// Public lead-capture forms, rate limited per client IP
	api := app.Group("/api", requestLog, middleware.FormRateLimiter())
	api.Post("/register", subscribeController.Register)
	api.Post("/corporate-inquiry", subscribeController.CorporateInquiry)
	api.Post("/download-guide", subscribeController.DownloadGuide)

	// Public blog
	blog := app.Group("/blog", requestLog)
	blog.Get("/posts", blogController.ListPosts)
	blog.Get("/posts/:slug", blogController.GetPost)

	// Provider webhooks. No rate limiting: signature verification is the
	// gate here, and providers burst on redelivery.
	webhooks := app.Group("/webhooks", requestLog)
	webhooks.Post("/mailgun", webhookController.HandleMailgun)
	webhooks.Post("/mailerlite", webhookController.HandleMailerLite)

	// Admin auth
	auth := app.Group("/auth", requestLog)
	auth.Post("/login", authController.Login)
	auth.Post("/refresh", authController.RefreshToken)

	protectedAuth := auth.Group("", middleware.Protected())
	protectedAuth.Get("/me", authController.GetCurrentAdmin)
	protectedAuth.Post("/change-password", authController.ChangePassword)

	// Admin dashboard API
	admin := app.Group("/admin", requestLog, middleware.Protected())

	admin.Get("/dashboard/stats", adminController.DashboardStats)

	scheduler := admin.Group("/scheduler")
	scheduler.Post("/start", adminController.StartScheduler)
	scheduler.Post("/stop", adminController.StopScheduler)
	scheduler.Get("/status", adminController.SchedulerStatus)
	scheduler.Post("/process-once", adminController.ProcessOnce)

	admin.Get("/failed-emails", adminController.ListFailedSends)
	admin.Post("/failed-emails/:id/retry", adminController.RetryFailedSend)

	admin.Get("/sequences", adminController.ListSequences)
	admin.Post("/enrollments/:id/pause", adminController.PauseEnrollment)
	admin.Post("/enrollments/:id/resume", adminController.ResumeEnrollment)

	admin.Get("/subscribers", adminController.ListSubscribers)
	admin.Get("/subscribers/export", adminController.ExportSubscribers)

	adminBlog := admin.Group("/blog")
	adminBlog.Get("/posts", blogController.ListAllPosts)
	adminBlog.Post("/posts", blogController.CreatePost)
	adminBlog.Put("/posts/:id", blogController.UpdatePost)
	adminBlog.Delete("/posts/:id", blogController.DeletePost)
	adminBlog.Post("/posts/:id/publish", blogController.PublishPost)
	adminBlog.Post("/posts/:id/unpublish", blogController.UnpublishPost)

	// Live scheduler status for the dashboard
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/scheduler", websocket.New(controller.HandleSchedulerStatusWS(sequenceWorker)))

	// Health check for the load balancer
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	app.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Route not found",
		})
	})

	routeLogger.Println("Routes initialized successfully")
}
