package controller

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"log"
	"os"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"coachflow/config"
	"coachflow/models"
	"coachflow/utils"
)

// Provider-agnostic delivery event types
const (
	eventDelivered    = "delivered"
	eventOpened       = "opened"
	eventClicked      = "clicked"
	eventBounced      = "bounced"
	eventComplained   = "complained"
	eventUnsubscribed = "unsubscribed"
)

// deliveryEvent is the internal shape both providers map into
type deliveryEvent struct {
	Type       string
	Recipient  string
	MessageID  string
	BounceType string
	OccurredAt time.Time
}

// WebhookController ingests delivery events from Mailgun and MailerLite.
// Providers redeliver events at least once, so every write here is
// idempotent: timestamps set once, counters the only thing that grows.
type WebhookController struct {
	DB     *gorm.DB
	Logger *log.Logger
	Config *config.Config
}

func NewWebhookController(db *gorm.DB, cfg *config.Config) *WebhookController {
	return &WebhookController{
		DB:     db,
		Logger: log.New(os.Stdout, "WEBHOOK: ", log.Ldate|log.Ltime|log.Lshortfile),
		Config: cfg,
	}
}

type mailgunWebhookPayload struct {
	Signature struct {
		Timestamp string `json:"timestamp"`
		Token     string `json:"token"`
		Signature string `json:"signature"`
	} `json:"signature"`
	EventData struct {
		Event     string  `json:"event"`
		Recipient string  `json:"recipient"`
		Severity  string  `json:"severity"`
		Timestamp float64 `json:"timestamp"`
		Message   struct {
			Headers struct {
				MessageID string `json:"message-id"`
			} `json:"headers"`
		} `json:"message"`
	} `json:"event-data"`
}

// HandleMailgun processes POST /webhooks/mailgun
func (wc *WebhookController) HandleMailgun(c *fiber.Ctx) error {
	var payload mailgunWebhookPayload
	if err := c.BodyParser(&payload); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid payload", err)
	}

	if !wc.verifyMailgunSignature(payload.Signature.Timestamp, payload.Signature.Token, payload.Signature.Signature) {
		return utils.ErrorResponse(c, fiber.StatusUnauthorized, "Invalid signature", nil)
	}

	event := deliveryEvent{
		Recipient: payload.EventData.Recipient,
		MessageID: payload.EventData.Message.Headers.MessageID,
	}
	if payload.EventData.Timestamp > 0 {
		event.OccurredAt = time.Unix(int64(payload.EventData.Timestamp), 0)
	} else {
		event.OccurredAt = time.Now()
	}

	switch payload.EventData.Event {
	case "delivered":
		event.Type = eventDelivered
	case "opened":
		event.Type = eventOpened
	case "clicked":
		event.Type = eventClicked
	case "failed":
		event.Type = eventBounced
		event.BounceType = payload.EventData.Severity // permanent or temporary
	case "complained":
		event.Type = eventComplained
	case "unsubscribed":
		event.Type = eventUnsubscribed
	default:
		wc.Logger.Printf("Ignoring unrecognized Mailgun event %q", payload.EventData.Event)
		return c.JSON(fiber.Map{"status": "ignored"})
	}

	return wc.ingest(c, event)
}

// Mailgun signs webhooks with HMAC-SHA256 over timestamp+token
func (wc *WebhookController) verifyMailgunSignature(timestamp, token, signature string) bool {
	key := wc.Config.Mailgun.WebhookSigningKey
	if key == "" {
		wc.Logger.Println("Warning: MAILGUN_WEBHOOK_SIGNING_KEY not set, accepting webhook unverified")
		return true
	}

	mac := hmac.New(sha256.New, []byte(key))
	mac.Write([]byte(timestamp + token))
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

type mailerLiteWebhookPayload struct {
	Events []struct {
		Type string `json:"type"`
		Data struct {
			Subscriber struct {
				Email string `json:"email"`
			} `json:"subscriber"`
		} `json:"data"`
	} `json:"events"`
}

// HandleMailerLite processes POST /webhooks/mailerlite. MailerLite has no
// per-message ids for us to correlate, so only the subscriber-level
// events (unsubscribe, bounce) are actioned.
func (wc *WebhookController) HandleMailerLite(c *fiber.Ctx) error {
	if !wc.verifyMailerLiteSignature(c.Body(), c.Get("Signature")) {
		return utils.ErrorResponse(c, fiber.StatusUnauthorized, "Invalid signature", nil)
	}

	var payload mailerLiteWebhookPayload
	if err := c.BodyParser(&payload); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid payload", err)
	}

	processed := 0
	for _, ev := range payload.Events {
		email := strings.ToLower(strings.TrimSpace(ev.Data.Subscriber.Email))
		if email == "" {
			continue
		}
		switch ev.Type {
		case "subscriber.unsubscribed", "subscriber.bounced", "subscriber.spam_reported":
			if err := wc.deactivateByEmail(email, ev.Type); err != nil {
				wc.Logger.Printf("Error deactivating %s: %v", email, err)
				continue
			}
			processed++
		}
	}

	return c.JSON(fiber.Map{"status": "ok", "processed": processed})
}

// MailerLite signs the raw request body with HMAC-SHA256
func (wc *WebhookController) verifyMailerLiteSignature(body []byte, signature string) bool {
	secret := wc.Config.MailerLiteWebhookSecret
	if secret == "" {
		wc.Logger.Println("Warning: MAILERLITE_WEBHOOK_SECRET not set, accepting webhook unverified")
		return true
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

// ingest correlates an event with the send it belongs to and records it.
// Events for message ids we never sent (other systems on the same domain,
// stale retries) are acknowledged and dropped.
func (wc *WebhookController) ingest(c *fiber.Ctx, event deliveryEvent) error {
	if event.MessageID == "" {
		return c.JSON(fiber.Map{"status": "ignored"})
	}

	var send models.ScheduledSend
	err := wc.DB.Where("message_id = ?", event.MessageID).First(&send).Error
	if err == gorm.ErrRecordNotFound {
		wc.Logger.Printf("Ignoring %s event for unknown message id %q", event.Type, event.MessageID)
		return c.JSON(fiber.Map{"status": "ignored"})
	}
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Lookup failed", err)
	}

	if err := wc.recordEvent(&send, event); err != nil {
		wc.Logger.Printf("Error recording %s event for send %d: %v", event.Type, send.ID, err)
		utils.LogError("webhook_ingest", err, map[string]interface{}{
			"send_id":    send.ID,
			"event_type": event.Type,
		})
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to record event", err)
	}

	return c.JSON(fiber.Map{"status": "ok"})
}

func (wc *WebhookController) recordEvent(send *models.ScheduledSend, event deliveryEvent) error {
	analytics, err := wc.analyticsFor(send.ID)
	if err != nil {
		return err
	}

	updates := map[string]interface{}{}
	switch event.Type {
	case eventDelivered:
		if analytics.DeliveredAt == nil {
			updates["delivered_at"] = event.OccurredAt
		}
	case eventOpened:
		if analytics.OpenedAt == nil {
			updates["opened_at"] = event.OccurredAt
		}
		updates["open_count"] = gorm.Expr("open_count + ?", 1)
	case eventClicked:
		if analytics.ClickedAt == nil {
			updates["clicked_at"] = event.OccurredAt
		}
		updates["click_count"] = gorm.Expr("click_count + ?", 1)
	case eventBounced:
		if analytics.BouncedAt == nil {
			updates["bounced_at"] = event.OccurredAt
			updates["bounce_type"] = event.BounceType
		}
	case eventComplained:
		if analytics.ComplainedAt == nil {
			updates["complained_at"] = event.OccurredAt
		}
	case eventUnsubscribed:
		if analytics.UnsubscribedAt == nil {
			updates["unsubscribed_at"] = event.OccurredAt
		}
	}

	if len(updates) > 0 {
		if err := wc.DB.Model(analytics).Updates(updates).Error; err != nil {
			return err
		}
	}

	switch event.Type {
	case eventComplained, eventUnsubscribed:
		return wc.deactivateSubscriber(send, event.Type)
	case eventBounced:
		if event.BounceType != "temporary" {
			return wc.deactivateSubscriber(send, event.Type)
		}
	}
	return nil
}

// analyticsFor fetches or lazily creates the per-send analytics row
func (wc *WebhookController) analyticsFor(sendID uint) (*models.SendAnalytics, error) {
	var analytics models.SendAnalytics
	err := wc.DB.Where(models.SendAnalytics{ScheduledSendID: sendID}).
		FirstOrCreate(&analytics).Error
	if err != nil {
		return nil, err
	}
	return &analytics, nil
}

func (wc *WebhookController) deactivateSubscriber(send *models.ScheduledSend, reason string) error {
	var enrollment models.Enrollment
	if err := wc.DB.First(&enrollment, send.EnrollmentID).Error; err != nil {
		return err
	}
	if err := wc.DB.Model(&models.Subscriber{}).
		Where("id = ? AND is_active = ?", enrollment.SubscriberID, true).
		Update("is_active", false).Error; err != nil {
		return err
	}
	wc.Logger.Printf("Deactivated subscriber %d (%s)", enrollment.SubscriberID, reason)
	return nil
}

func (wc *WebhookController) deactivateByEmail(email, reason string) error {
	result := wc.DB.Model(&models.Subscriber{}).
		Where("email = ? AND is_active = ?", email, true).
		Update("is_active", false)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		wc.Logger.Printf("Deactivated subscriber %s (%s)", email, reason)
	}
	return nil
}
