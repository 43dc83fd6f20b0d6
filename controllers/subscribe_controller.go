package controller

import (
	"log"
	"os"
	"strings"

	"github.com/badoux/checkmail"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"coachflow/models"
	"coachflow/utils"
)

// SubscribeController handles the public lead-capture funnels. Each
// funnel upserts a subscriber and kicks off the matching drip sequence
// in the background so the form response is never blocked on email
// plumbing.
type SubscribeController struct {
	DB         *gorm.DB
	Logger     *log.Logger
	Enroller   *utils.Enroller
	MailerLite *utils.MailerLiteClient
}

func NewSubscribeController(db *gorm.DB, enroller *utils.Enroller, mailerLite *utils.MailerLiteClient) *SubscribeController {
	return &SubscribeController{
		DB:         db,
		Logger:     log.New(os.Stdout, "SUBSCRIBE: ", log.Ldate|log.Ltime|log.Lshortfile),
		Enroller:   enroller,
		MailerLite: mailerLite,
	}
}

type registerInput struct {
	Email    string `json:"email" validate:"required,email"`
	Name     string `json:"name" validate:"max=200"`
	Language string `json:"language" validate:"omitempty,oneof=en bg"`
}

type corporateInquiryInput struct {
	Email    string `json:"email" validate:"required,email"`
	Name     string `json:"name" validate:"max=200"`
	Company  string `json:"company" validate:"required,max=200"`
	Message  string `json:"message" validate:"max=5000"`
	Language string `json:"language" validate:"omitempty,oneof=en bg"`
}

type downloadGuideInput struct {
	Email    string `json:"email" validate:"required,email"`
	Name     string `json:"name" validate:"max=200"`
	Language string `json:"language" validate:"omitempty,oneof=en bg"`
}

// Register handles POST /api/register - the waitlist funnel
func (sc *SubscribeController) Register(c *fiber.Ctx) error {
	var input registerInput
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), nil)
	}

	subscriber, err := sc.captureLead(input.Email, input.Name, models.SourceWaitlist, input.Language, nil)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to register", err)
	}

	return c.Status(fiber.StatusCreated).JSON(utils.SuccessResponse(fiber.Map{
		"message": "You're on the waitlist",
		"email":   subscriber.Email,
	}))
}

// CorporateInquiry handles POST /api/corporate-inquiry
func (sc *SubscribeController) CorporateInquiry(c *fiber.Ctx) error {
	var input corporateInquiryInput
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), nil)
	}

	custom := map[string]string{
		"company": input.Company,
	}
	if msg := strings.TrimSpace(input.Message); msg != "" {
		custom["inquiry_message"] = msg
	}

	subscriber, err := sc.captureLead(input.Email, input.Name, models.SourceCorporate, input.Language, custom)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to submit inquiry", err)
	}

	return c.Status(fiber.StatusCreated).JSON(utils.SuccessResponse(fiber.Map{
		"message": "Thanks - we'll be in touch shortly",
		"email":   subscriber.Email,
	}))
}

// DownloadGuide handles POST /api/download-guide - the lead magnet funnel
func (sc *SubscribeController) DownloadGuide(c *fiber.Ctx) error {
	var input downloadGuideInput
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), nil)
	}

	subscriber, err := sc.captureLead(input.Email, input.Name, models.SourceLeadMagnet, input.Language, nil)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to process request", err)
	}

	return c.Status(fiber.StatusCreated).JSON(utils.SuccessResponse(fiber.Map{
		"message": "Your guide is on its way",
		"email":   subscriber.Email,
	}))
}

// captureLead upserts the subscriber and fires the slow work (sequence
// enrollment, MailerLite sync) in the background.
func (sc *SubscribeController) captureLead(email, name, source, language string, custom map[string]string) (*models.Subscriber, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if err := checkmail.ValidateFormat(email); err != nil {
		return nil, err
	}
	if language == "" {
		language = "en"
	}

	var subscriber models.Subscriber
	err := sc.DB.Where("email = ?", email).First(&subscriber).Error
	switch {
	case err == nil:
		// Returning lead: refresh what they gave us, keep the original source
		updates := map[string]interface{}{"is_active": true}
		if name != "" {
			updates["name"] = name
		}
		if len(custom) > 0 {
			if subscriber.CustomFields == nil {
				subscriber.CustomFields = map[string]string{}
			}
			for k, v := range custom {
				subscriber.CustomFields[k] = v
			}
			updates["custom_fields"] = subscriber.CustomFields
		}
		if err := sc.DB.Model(&subscriber).Updates(updates).Error; err != nil {
			return nil, err
		}
	case err == gorm.ErrRecordNotFound:
		subscriber = models.Subscriber{
			Email:        email,
			Name:         name,
			Source:       source,
			Language:     language,
			IsActive:     true,
			CustomFields: custom,
		}
		if err := sc.DB.Create(&subscriber).Error; err != nil {
			return nil, err
		}
	default:
		return nil, err
	}

	go sc.autoEnroll(subscriber, source, language)
	if sc.MailerLite.Enabled() {
		go sc.syncMailerLite(subscriber)
	}

	return &subscriber, nil
}

func (sc *SubscribeController) autoEnroll(subscriber models.Subscriber, sequenceType, language string) {
	defer func() {
		if r := recover(); r != nil {
			sc.Logger.Printf("Panic enrolling subscriber %d: %v", subscriber.ID, r)
		}
	}()

	if _, err := sc.Enroller.Enroll(&subscriber, sequenceType, language); err != nil {
		sc.Logger.Printf("Error enrolling subscriber %d in %s: %v", subscriber.ID, sequenceType, err)
		utils.LogError("auto_enroll", err, map[string]interface{}{
			"subscriber_id": subscriber.ID,
			"sequence_type": sequenceType,
		})
	}
}

func (sc *SubscribeController) syncMailerLite(subscriber models.Subscriber) {
	defer func() {
		if r := recover(); r != nil {
			sc.Logger.Printf("Panic syncing subscriber %d to MailerLite: %v", subscriber.ID, r)
		}
	}()

	if err := sc.MailerLite.SyncSubscriber(&subscriber); err != nil {
		sc.Logger.Printf("Error syncing subscriber %d to MailerLite: %v", subscriber.ID, err)
	}
}
