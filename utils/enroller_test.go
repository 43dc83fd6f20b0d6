package utils

import (
	"io"
	"log"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"coachflow/config"
	"coachflow/models"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	if err := config.MigrateDB(db); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return db
}

func testLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func createTestSubscriber(t *testing.T, db *gorm.DB, email string) *models.Subscriber {
	t.Helper()
	sub := &models.Subscriber{
		Email:    email,
		Name:     "Test Person",
		Source:   models.SourceLeadMagnet,
		Language: "en",
		IsActive: true,
	}
	if err := db.Create(sub).Error; err != nil {
		t.Fatalf("failed to create subscriber: %v", err)
	}
	return sub
}

func TestEnrollCreatesScheduledSends(t *testing.T) {
	db := setupTestDB(t)
	enroller := NewEnroller(db, testLogger())
	sub := createTestSubscriber(t, db, "lead@example.com")

	enrollment, err := enroller.Enroll(sub, "lead_magnet", "en")
	if err != nil {
		t.Fatalf("Enroll failed: %v", err)
	}
	if enrollment.Status != models.EnrollmentActive {
		t.Errorf("enrollment status = %s, want active", enrollment.Status)
	}
	if enrollment.CurrentEmailIndex != 0 {
		t.Errorf("current email index = %d, want 0", enrollment.CurrentEmailIndex)
	}

	def, _ := SequenceDefinition("lead_magnet", "en")

	var sends []models.ScheduledSend
	if err := db.Where("enrollment_id = ?", enrollment.ID).Order("email_index").Find(&sends).Error; err != nil {
		t.Fatalf("failed to fetch sends: %v", err)
	}
	if len(sends) != len(def.Emails) {
		t.Fatalf("got %d scheduled sends, want %d", len(sends), len(def.Emails))
	}

	for i, send := range sends {
		if send.EmailIndex != i {
			t.Errorf("send %d has email index %d", i, send.EmailIndex)
		}
		if send.Status != models.SendScheduled {
			t.Errorf("send %d status = %s, want scheduled", i, send.Status)
		}
		if i > 0 && send.ScheduledFor.Before(sends[i-1].ScheduledFor) {
			t.Errorf("send %d scheduled before send %d", i, i-1)
		}
	}

	// First email goes out immediately
	if time.Since(sends[0].ScheduledFor) > time.Minute {
		t.Errorf("first send scheduled at %v, want roughly now", sends[0].ScheduledFor)
	}
}

func TestEnrollIsIdempotent(t *testing.T) {
	db := setupTestDB(t)
	enroller := NewEnroller(db, testLogger())
	sub := createTestSubscriber(t, db, "repeat@example.com")

	first, err := enroller.Enroll(sub, "waitlist", "en")
	if err != nil {
		t.Fatalf("first Enroll failed: %v", err)
	}
	second, err := enroller.Enroll(sub, "waitlist", "en")
	if err != nil {
		t.Fatalf("second Enroll failed: %v", err)
	}
	if first.ID != second.ID {
		t.Errorf("re-enrollment created a new enrollment (%d != %d)", first.ID, second.ID)
	}

	var count int64
	db.Model(&models.ScheduledSend{}).Where("enrollment_id = ?", first.ID).Count(&count)
	def, _ := SequenceDefinition("waitlist", "en")
	if count != int64(len(def.Emails)) {
		t.Errorf("got %d sends after double enrollment, want %d", count, len(def.Emails))
	}
}

func TestConcurrentEnrollCreatesOneEnrollment(t *testing.T) {
	db := setupTestDB(t)
	enroller := NewEnroller(db, testLogger())
	sub := createTestSubscriber(t, db, "doubletap@example.com")

	// A double-submitted form lands as two concurrent Enroll calls
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := enroller.Enroll(sub, "lead_magnet", "en"); err != nil {
				t.Errorf("Enroll failed: %v", err)
			}
		}()
	}
	wg.Wait()

	var enrollments int64
	db.Model(&models.Enrollment{}).
		Where("subscriber_id = ? AND status = ?", sub.ID, models.EnrollmentActive).
		Count(&enrollments)
	if enrollments != 1 {
		t.Fatalf("got %d active enrollments, want 1", enrollments)
	}

	def, _ := SequenceDefinition("lead_magnet", "en")
	var sends int64
	db.Model(&models.ScheduledSend{}).
		Joins("JOIN enrollments ON enrollments.id = scheduled_sends.enrollment_id").
		Where("enrollments.subscriber_id = ?", sub.ID).
		Count(&sends)
	if sends != int64(len(def.Emails)) {
		t.Errorf("got %d scheduled sends, want %d", sends, len(def.Emails))
	}
}

func TestEnrollUnknownSequenceType(t *testing.T) {
	db := setupTestDB(t)
	enroller := NewEnroller(db, testLogger())
	sub := createTestSubscriber(t, db, "lost@example.com")

	if _, err := enroller.Enroll(sub, "no_such_funnel", "en"); err == nil {
		t.Fatal("expected error for unknown sequence type")
	}
}

func TestEnrollBulgarianSequence(t *testing.T) {
	db := setupTestDB(t)
	enroller := NewEnroller(db, testLogger())
	sub := createTestSubscriber(t, db, "bg@example.com")

	enrollment, err := enroller.Enroll(sub, "lead_magnet", "bg")
	if err != nil {
		t.Fatalf("Enroll failed: %v", err)
	}

	var sequence models.Sequence
	if err := db.First(&sequence, enrollment.SequenceID).Error; err != nil {
		t.Fatalf("failed to fetch sequence: %v", err)
	}
	if sequence.Language != "bg" {
		t.Errorf("sequence language = %s, want bg", sequence.Language)
	}
}

func TestPauseAndResumeEnrollment(t *testing.T) {
	db := setupTestDB(t)
	enroller := NewEnroller(db, testLogger())
	sub := createTestSubscriber(t, db, "pause@example.com")

	enrollment, err := enroller.Enroll(sub, "lead_magnet", "en")
	if err != nil {
		t.Fatalf("Enroll failed: %v", err)
	}

	if err := enroller.PauseEnrollment(enrollment.ID); err != nil {
		t.Fatalf("PauseEnrollment failed: %v", err)
	}

	var paused models.Enrollment
	db.First(&paused, enrollment.ID)
	if paused.Status != models.EnrollmentPaused {
		t.Errorf("status after pause = %s, want paused", paused.Status)
	}
	if paused.PausedAt == nil {
		t.Error("paused_at not set")
	}

	var scheduled int64
	db.Model(&models.ScheduledSend{}).
		Where("enrollment_id = ? AND status = ?", enrollment.ID, models.SendScheduled).
		Count(&scheduled)
	if scheduled != 0 {
		t.Errorf("%d sends still scheduled after pause", scheduled)
	}

	// Pausing twice is an error
	if err := enroller.PauseEnrollment(enrollment.ID); err == nil {
		t.Error("expected error pausing an already paused enrollment")
	}

	if err := enroller.ResumeEnrollment(enrollment.ID); err != nil {
		t.Fatalf("ResumeEnrollment failed: %v", err)
	}

	var resumed models.Enrollment
	db.First(&resumed, enrollment.ID)
	if resumed.Status != models.EnrollmentActive {
		t.Errorf("status after resume = %s, want active", resumed.Status)
	}
	if resumed.PausedAt != nil {
		t.Error("paused_at still set after resume")
	}

	var sends []models.ScheduledSend
	db.Where("enrollment_id = ?", enrollment.ID).Order("email_index").Find(&sends)
	for i, send := range sends {
		if send.Status != models.SendScheduled {
			t.Errorf("send %d status = %s after resume, want scheduled", i, send.Status)
		}
	}

	// First remaining email is rescheduled to go out right away
	if time.Since(sends[0].ScheduledFor) > time.Minute {
		t.Errorf("first send after resume scheduled at %v, want roughly now", sends[0].ScheduledFor)
	}
	// Relative spacing between the remaining emails survives the resume
	for i := 1; i < len(sends); i++ {
		if sends[i].ScheduledFor.Before(sends[i-1].ScheduledFor) {
			t.Errorf("send %d scheduled before send %d after resume", i, i-1)
		}
	}
}

func TestResumeSkipsSendsWithoutTemplate(t *testing.T) {
	db := setupTestDB(t)
	enroller := NewEnroller(db, testLogger())
	sub := createTestSubscriber(t, db, "orphan@example.com")

	enrollment, err := enroller.Enroll(sub, "lead_magnet", "en")
	if err != nil {
		t.Fatalf("Enroll failed: %v", err)
	}
	if err := enroller.PauseEnrollment(enrollment.ID); err != nil {
		t.Fatalf("PauseEnrollment failed: %v", err)
	}

	// Remove the first email's template while the enrollment is paused.
	// Its send must stay cancelled and the rest must still reschedule.
	var firstSend models.ScheduledSend
	if err := db.Where("enrollment_id = ?", enrollment.ID).
		Order("email_index").First(&firstSend).Error; err != nil {
		t.Fatalf("failed to fetch first send: %v", err)
	}
	if err := db.Delete(&models.SequenceEmail{}, firstSend.SequenceEmailID).Error; err != nil {
		t.Fatalf("failed to delete sequence email: %v", err)
	}

	if err := enroller.ResumeEnrollment(enrollment.ID); err != nil {
		t.Fatalf("ResumeEnrollment failed: %v", err)
	}

	var orphan models.ScheduledSend
	db.First(&orphan, firstSend.ID)
	if orphan.Status != models.SendCancelled {
		t.Errorf("orphan send status = %s, want left cancelled", orphan.Status)
	}

	var rescheduled []models.ScheduledSend
	db.Where("enrollment_id = ? AND status = ?", enrollment.ID, models.SendScheduled).
		Order("email_index").Find(&rescheduled)
	if len(rescheduled) == 0 {
		t.Fatal("no surviving sends rescheduled")
	}
	// The first surviving email anchors the schedule and goes out right away
	if time.Since(rescheduled[0].ScheduledFor) > time.Minute {
		t.Errorf("first surviving send scheduled at %v, want roughly now", rescheduled[0].ScheduledFor)
	}

	var resumed models.Enrollment
	db.First(&resumed, enrollment.ID)
	if resumed.Status != models.EnrollmentActive {
		t.Errorf("enrollment status = %s after resume, want active", resumed.Status)
	}
}
