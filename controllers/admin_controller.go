package controller

import (
	"encoding/csv"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"coachflow/models"
	"coachflow/utils"
	"coachflow/worker"
)

// AdminController serves the dashboard API: scheduler controls, failed
// send triage, sequence stats, enrollment management and subscriber
// exports. Everything here sits behind the JWT middleware.
type AdminController struct {
	DB       *gorm.DB
	Logger   *log.Logger
	Worker   *worker.SequenceWorker
	Enroller *utils.Enroller
}

func NewAdminController(db *gorm.DB, w *worker.SequenceWorker, enroller *utils.Enroller) *AdminController {
	return &AdminController{
		DB:       db,
		Logger:   log.New(os.Stdout, "ADMIN: ", log.Ldate|log.Ltime|log.Lshortfile),
		Worker:   w,
		Enroller: enroller,
	}
}

// --- Scheduler controls ---

func (ac *AdminController) StartScheduler(c *fiber.Ctx) error {
	if err := ac.Worker.Start(); err != nil {
		return utils.ErrorResponse(c, fiber.StatusConflict, err.Error(), nil)
	}
	ac.Logger.Println("Scheduler started via admin API")
	return c.JSON(utils.SuccessResponse(fiber.Map{"running": true}))
}

func (ac *AdminController) StopScheduler(c *fiber.Ctx) error {
	if err := ac.Worker.Stop(); err != nil {
		return utils.ErrorResponse(c, fiber.StatusConflict, err.Error(), nil)
	}
	ac.Logger.Println("Scheduler stopped via admin API")
	return c.JSON(utils.SuccessResponse(fiber.Map{"running": false}))
}

func (ac *AdminController) SchedulerStatus(c *fiber.Ctx) error {
	return c.JSON(utils.SuccessResponse(ac.Worker.Status()))
}

// ProcessOnce runs a single scheduler pass synchronously and returns its
// stats. Useful for support work without waiting out the interval.
func (ac *AdminController) ProcessOnce(c *fiber.Ctx) error {
	stats := ac.Worker.ProcessOnce()
	return c.JSON(utils.SuccessResponse(stats))
}

// --- Failed send triage ---

func (ac *AdminController) ListFailedSends(c *fiber.Ctx) error {
	page, limit := pagination(c)

	query := ac.DB.Model(&models.ScheduledSend{}).
		Where("status IN ?", []string{models.SendFailed, models.SendPermanentlyFailed})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to count sends", err)
	}

	var sends []models.ScheduledSend
	err := query.
		Preload("Enrollment").
		Preload("Enrollment.Subscriber").
		Preload("SequenceEmail").
		Order("updated_at DESC").
		Offset((page - 1) * limit).Limit(limit).
		Find(&sends).Error
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch sends", err)
	}

	return c.JSON(utils.PaginatedResponse{Data: sends, Total: total, Page: page, Limit: limit})
}

// RetryFailedSend resets a failed or permanently failed send back to
// scheduled for immediate pickup. The retry count is preserved so the
// history stays honest.
func (ac *AdminController) RetryFailedSend(c *fiber.Ctx) error {
	id := utils.ParseUint(c.Params("id"))
	if id == 0 {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid send id", nil)
	}

	var send models.ScheduledSend
	if err := ac.DB.First(&send, id).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Send not found", nil)
	}
	if send.Status != models.SendFailed && send.Status != models.SendPermanentlyFailed {
		return utils.ErrorResponse(c, fiber.StatusConflict,
			fmt.Sprintf("Send is %s, only failed sends can be retried", send.Status), nil)
	}

	if err := ac.DB.Model(&send).Updates(map[string]interface{}{
		"status":        models.SendScheduled,
		"scheduled_for": time.Now(),
		"next_retry_at": nil,
	}).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to reset send", err)
	}

	ac.Logger.Printf("Send %d manually reset for retry (attempt count stays at %d)", send.ID, send.RetryCount)
	return c.JSON(utils.SuccessResponse(fiber.Map{"id": send.ID, "status": models.SendScheduled}))
}

// --- Sequences ---

func (ac *AdminController) ListSequences(c *fiber.Ctx) error {
	var sequences []models.Sequence
	err := ac.DB.
		Preload("Emails", func(db *gorm.DB) *gorm.DB { return db.Order("email_index") }).
		Order("sequence_type, language").
		Find(&sequences).Error
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch sequences", err)
	}

	type sequenceSummary struct {
		models.Sequence
		ActiveEnrollments    int64 `json:"active_enrollments"`
		CompletedEnrollments int64 `json:"completed_enrollments"`
	}

	summaries := make([]sequenceSummary, 0, len(sequences))
	for _, seq := range sequences {
		s := sequenceSummary{Sequence: seq}
		ac.DB.Model(&models.Enrollment{}).
			Where("sequence_id = ? AND status = ?", seq.ID, models.EnrollmentActive).
			Count(&s.ActiveEnrollments)
		ac.DB.Model(&models.Enrollment{}).
			Where("sequence_id = ? AND status = ?", seq.ID, models.EnrollmentCompleted).
			Count(&s.CompletedEnrollments)
		summaries = append(summaries, s)
	}

	return c.JSON(utils.SuccessResponse(summaries))
}

// --- Enrollments ---

func (ac *AdminController) PauseEnrollment(c *fiber.Ctx) error {
	id := utils.ParseUint(c.Params("id"))
	if id == 0 {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid enrollment id", nil)
	}
	if err := ac.Enroller.PauseEnrollment(id); err != nil {
		return utils.ErrorResponse(c, fiber.StatusConflict, err.Error(), nil)
	}
	return c.JSON(utils.SuccessResponse(fiber.Map{"id": id, "status": models.EnrollmentPaused}))
}

func (ac *AdminController) ResumeEnrollment(c *fiber.Ctx) error {
	id := utils.ParseUint(c.Params("id"))
	if id == 0 {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid enrollment id", nil)
	}
	if err := ac.Enroller.ResumeEnrollment(id); err != nil {
		return utils.ErrorResponse(c, fiber.StatusConflict, err.Error(), nil)
	}
	return c.JSON(utils.SuccessResponse(fiber.Map{"id": id, "status": models.EnrollmentActive}))
}

// --- Subscribers ---

func (ac *AdminController) ListSubscribers(c *fiber.Ctx) error {
	page, limit := pagination(c)

	query := ac.DB.Model(&models.Subscriber{})
	if source := c.Query("source"); source != "" {
		query = query.Where("source = ?", source)
	}
	if level := c.Query("engagement"); level != "" {
		query = query.Where("engagement_level = ?", level)
	}
	if active := c.Query("active"); active != "" {
		query = query.Where("is_active = ?", active == "true")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to count subscribers", err)
	}

	var subscribers []models.Subscriber
	err := query.Order("created_at DESC").
		Offset((page - 1) * limit).Limit(limit).
		Find(&subscribers).Error
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch subscribers", err)
	}

	return c.JSON(utils.PaginatedResponse{Data: subscribers, Total: total, Page: page, Limit: limit})
}

// ExportSubscribers streams the subscriber list as CSV
func (ac *AdminController) ExportSubscribers(c *fiber.Ctx) error {
	var subscribers []models.Subscriber
	if err := ac.DB.Order("created_at").Find(&subscribers).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch subscribers", err)
	}

	c.Set("Content-Type", "text/csv")
	c.Set("Content-Disposition", fmt.Sprintf("attachment; filename=subscribers-%s.csv", time.Now().Format("2006-01-02")))

	writer := csv.NewWriter(c.Response().BodyWriter())
	header := []string{"email", "name", "source", "language", "engagement_level", "active", "signed_up_at"}
	if err := writer.Write(header); err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to write CSV", err)
	}
	for _, sub := range subscribers {
		record := []string{
			sub.Email,
			sub.Name,
			sub.Source,
			sub.Language,
			sub.EngagementLevel,
			strconv.FormatBool(sub.IsActive),
			sub.CreatedAt.Format(time.RFC3339),
		}
		if err := writer.Write(record); err != nil {
			return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to write CSV", err)
		}
	}
	writer.Flush()
	return writer.Error()
}

// --- Dashboard ---

// DashboardStats aggregates the numbers the admin landing page shows
func (ac *AdminController) DashboardStats(c *fiber.Ctx) error {
	stats := fiber.Map{}

	var totalSubscribers, activeSubscribers int64
	ac.DB.Model(&models.Subscriber{}).Count(&totalSubscribers)
	ac.DB.Model(&models.Subscriber{}).Where("is_active = ?", true).Count(&activeSubscribers)
	stats["total_subscribers"] = totalSubscribers
	stats["active_subscribers"] = activeSubscribers

	bySource := map[string]int64{}
	for _, source := range []string{models.SourceLeadMagnet, models.SourceWaitlist, models.SourceCorporate} {
		var n int64
		ac.DB.Model(&models.Subscriber{}).Where("source = ?", source).Count(&n)
		bySource[source] = n
	}
	stats["subscribers_by_source"] = bySource

	var activeEnrollments, completedEnrollments int64
	ac.DB.Model(&models.Enrollment{}).Where("status = ?", models.EnrollmentActive).Count(&activeEnrollments)
	ac.DB.Model(&models.Enrollment{}).Where("status = ?", models.EnrollmentCompleted).Count(&completedEnrollments)
	stats["active_enrollments"] = activeEnrollments
	stats["completed_enrollments"] = completedEnrollments

	sendCounts := map[string]int64{}
	for _, status := range []string{models.SendScheduled, models.SendSent, models.SendFailed, models.SendPermanentlyFailed} {
		var n int64
		ac.DB.Model(&models.ScheduledSend{}).Where("status = ?", status).Count(&n)
		sendCounts[status] = n
	}
	stats["sends_by_status"] = sendCounts

	weekAgo := time.Now().AddDate(0, 0, -7)
	var sentLastWeek, openedLastWeek int64
	ac.DB.Model(&models.ScheduledSend{}).
		Where("status = ? AND sent_at >= ?", models.SendSent, weekAgo).Count(&sentLastWeek)
	ac.DB.Model(&models.SendAnalytics{}).Where("opened_at >= ?", weekAgo).Count(&openedLastWeek)
	stats["sent_last_7_days"] = sentLastWeek
	stats["opened_last_7_days"] = openedLastWeek

	var publishedPosts int64
	ac.DB.Model(&models.BlogPost{}).Where("is_published = ?", true).Count(&publishedPosts)
	stats["published_posts"] = publishedPosts

	stats["scheduler"] = ac.Worker.Status()

	return c.JSON(utils.SuccessResponse(stats))
}

func pagination(c *fiber.Ctx) (page, limit int) {
	page, _ = strconv.Atoi(c.Query("page", "1"))
	if page < 1 {
		page = 1
	}
	limit, _ = strconv.Atoi(c.Query("limit", "50"))
	if limit < 1 || limit > 200 {
		limit = 50
	}
	return page, limit
}
