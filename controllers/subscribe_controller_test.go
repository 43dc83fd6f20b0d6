package controller

import (
	"io"
	"log"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"coachflow/models"
	"coachflow/utils"
)

func newSubscribeApp(db *gorm.DB) *fiber.App {
	logger := log.New(io.Discard, "", 0)
	app := fiber.New()
	sc := NewSubscribeController(db, utils.NewEnroller(db, logger), utils.NewMailerLiteClient("", logger))
	app.Post("/api/register", sc.Register)
	app.Post("/api/corporate-inquiry", sc.CorporateInquiry)
	app.Post("/api/download-guide", sc.DownloadGuide)
	return app
}

// waitForEnrollment polls for the background enrollment goroutine
func waitForEnrollment(t *testing.T, db *gorm.DB, subscriberID uint) *models.Enrollment {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		var enrollment models.Enrollment
		if err := db.Where("subscriber_id = ?", subscriberID).First(&enrollment).Error; err == nil {
			return &enrollment
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("no enrollment appeared for subscriber %d", subscriberID)
	return nil
}

func TestRegisterCreatesSubscriberAndEnrolls(t *testing.T) {
	db := setupTestDB(t)
	app := newSubscribeApp(db)

	status, _ := postJSON(t, app, "/api/register", `{"email": "New.Person@Example.com", "name": "New Person"}`, nil)
	if status != fiber.StatusCreated {
		t.Fatalf("status = %d, want 201", status)
	}

	var sub models.Subscriber
	if err := db.Where("email = ?", "new.person@example.com").First(&sub).Error; err != nil {
		t.Fatalf("subscriber not created (email should be lowercased): %v", err)
	}
	if sub.Source != models.SourceWaitlist {
		t.Errorf("source = %s, want waitlist", sub.Source)
	}
	if sub.Language != "en" {
		t.Errorf("language = %s, want default en", sub.Language)
	}

	enrollment := waitForEnrollment(t, db, sub.ID)

	var seq models.Sequence
	db.First(&seq, enrollment.SequenceID)
	if seq.SequenceType != models.SourceWaitlist {
		t.Errorf("enrolled in %s sequence, want waitlist", seq.SequenceType)
	}
}

func TestRegisterRejectsInvalidEmail(t *testing.T) {
	db := setupTestDB(t)
	app := newSubscribeApp(db)

	status, _ := postJSON(t, app, "/api/register", `{"email": "not-an-email"}`, nil)
	if status != fiber.StatusBadRequest {
		t.Fatalf("status = %d for invalid email, want 400", status)
	}

	var count int64
	db.Model(&models.Subscriber{}).Count(&count)
	if count != 0 {
		t.Errorf("%d subscribers created from an invalid submission", count)
	}
}

func TestRegisterTwiceKeepsOneSubscriber(t *testing.T) {
	db := setupTestDB(t)
	app := newSubscribeApp(db)

	postJSON(t, app, "/api/register", `{"email": "again@example.com", "name": "First"}`, nil)
	status, _ := postJSON(t, app, "/api/register", `{"email": "again@example.com", "name": "Updated Name"}`, nil)
	if status != fiber.StatusCreated {
		t.Fatalf("repeat registration status = %d, want 201", status)
	}

	var count int64
	db.Model(&models.Subscriber{}).Where("email = ?", "again@example.com").Count(&count)
	if count != 1 {
		t.Fatalf("%d subscriber rows, want 1", count)
	}

	var sub models.Subscriber
	db.Where("email = ?", "again@example.com").First(&sub)
	if sub.Name != "Updated Name" {
		t.Errorf("name = %q, want refreshed to %q", sub.Name, "Updated Name")
	}

	// The enrollment stays singular too
	waitForEnrollment(t, db, sub.ID)
	time.Sleep(100 * time.Millisecond)
	var enrollments int64
	db.Model(&models.Enrollment{}).Where("subscriber_id = ?", sub.ID).Count(&enrollments)
	if enrollments != 1 {
		t.Errorf("%d enrollments after double registration, want 1", enrollments)
	}
}

func TestCorporateInquiryStoresCompany(t *testing.T) {
	db := setupTestDB(t)
	app := newSubscribeApp(db)

	payload := `{"email": "cfo@bigcorp.com", "name": "The CFO", "company": "BigCorp", "message": "Team of 40"}`
	status, _ := postJSON(t, app, "/api/corporate-inquiry", payload, nil)
	if status != fiber.StatusCreated {
		t.Fatalf("status = %d, want 201", status)
	}

	var sub models.Subscriber
	if err := db.Where("email = ?", "cfo@bigcorp.com").First(&sub).Error; err != nil {
		t.Fatalf("subscriber not created: %v", err)
	}
	if sub.Source != models.SourceCorporate {
		t.Errorf("source = %s, want corporate", sub.Source)
	}
	if sub.CustomFields["company"] != "BigCorp" {
		t.Errorf("company custom field = %q, want BigCorp", sub.CustomFields["company"])
	}
	if sub.CustomFields["inquiry_message"] != "Team of 40" {
		t.Errorf("inquiry_message = %q", sub.CustomFields["inquiry_message"])
	}
}

func TestCorporateInquiryRequiresCompany(t *testing.T) {
	db := setupTestDB(t)
	app := newSubscribeApp(db)

	status, _ := postJSON(t, app, "/api/corporate-inquiry", `{"email": "x@example.com"}`, nil)
	if status != fiber.StatusBadRequest {
		t.Fatalf("status = %d without company, want 400", status)
	}
}

func TestDownloadGuideUsesLeadMagnetSequence(t *testing.T) {
	db := setupTestDB(t)
	app := newSubscribeApp(db)

	status, _ := postJSON(t, app, "/api/download-guide", `{"email": "reader@example.com", "language": "bg"}`, nil)
	if status != fiber.StatusCreated {
		t.Fatalf("status = %d, want 201", status)
	}

	var sub models.Subscriber
	db.Where("email = ?", "reader@example.com").First(&sub)
	if sub.Source != models.SourceLeadMagnet {
		t.Errorf("source = %s, want lead_magnet", sub.Source)
	}
	if sub.Language != "bg" {
		t.Errorf("language = %s, want bg", sub.Language)
	}

	enrollment := waitForEnrollment(t, db, sub.ID)

	var seq models.Sequence
	db.First(&seq, enrollment.SequenceID)
	if seq.SequenceType != models.SourceLeadMagnet || seq.Language != "bg" {
		t.Errorf("enrolled in %s/%s, want lead_magnet/bg", seq.SequenceType, seq.Language)
	}
}
