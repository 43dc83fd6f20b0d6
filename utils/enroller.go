package utils

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"gorm.io/gorm"

	"coachflow/models"
)

// Enroller creates enrollments and materializes their scheduled sends.
// Enrollment is a pure storage operation - no email leaves the building
// until the sequence worker picks the sends up.
type Enroller struct {
	DB     *gorm.DB
	Logger *log.Logger

	// mu serializes the duplicate check against the create. Form handlers
	// enroll from their own goroutines, and a double-submitted form could
	// otherwise slip two active enrollments past the lookup.
	mu sync.Mutex
}

func NewEnroller(db *gorm.DB, logger *log.Logger) *Enroller {
	return &Enroller{
		DB:     db,
		Logger: logger,
	}
}

// Enroll puts a subscriber into the sequence for (sequenceType, language).
// Idempotent: an existing active enrollment in the same sequence is
// returned as-is instead of creating a duplicate.
func (e *Enroller) Enroll(subscriber *models.Subscriber, sequenceType, language string) (*models.Enrollment, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	sequence, err := e.ensureSequence(sequenceType, language)
	if err != nil {
		return nil, err
	}

	var existing models.Enrollment
	err = e.DB.Where("subscriber_id = ? AND sequence_id = ? AND status = ?",
		subscriber.ID, sequence.ID, models.EnrollmentActive).First(&existing).Error
	if err == nil {
		e.Logger.Printf("Subscriber %d already enrolled in sequence %d", subscriber.ID, sequence.ID)
		return &existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("enrollment lookup failed: %w", err)
	}

	enrolledAt := time.Now()
	enrollment := models.Enrollment{
		SubscriberID:      subscriber.ID,
		SequenceID:        sequence.ID,
		Status:            models.EnrollmentActive,
		CurrentEmailIndex: 0,
		EnrolledAt:        enrolledAt,
	}
	if err := e.DB.Create(&enrollment).Error; err != nil {
		return nil, fmt.Errorf("failed to create enrollment: %w", err)
	}

	for _, email := range sequence.Emails {
		send := models.ScheduledSend{
			EnrollmentID:    enrollment.ID,
			SequenceEmailID: email.ID,
			EmailIndex:      email.EmailIndex,
			ScheduledFor:    enrolledAt.AddDate(0, 0, email.DelayDays),
			Status:          models.SendScheduled,
		}
		if err := e.DB.Create(&send).Error; err != nil {
			return nil, fmt.Errorf("failed to schedule send %d: %w", email.EmailIndex, err)
		}
	}

	e.Logger.Printf("Enrolled subscriber %d in %s/%s (%d emails)",
		subscriber.ID, sequenceType, sequence.Language, len(sequence.Emails))
	return &enrollment, nil
}

// ensureSequence returns the stored sequence for (type, language),
// materializing it from the static content library on first use.
func (e *Enroller) ensureSequence(sequenceType, language string) (*models.Sequence, error) {
	def, ok := SequenceDefinition(sequenceType, language)
	if !ok {
		return nil, fmt.Errorf("unknown sequence type %q", sequenceType)
	}

	var sequence models.Sequence
	err := e.DB.Preload("Emails", func(db *gorm.DB) *gorm.DB {
		return db.Order("email_index")
	}).Where("sequence_type = ? AND language = ?", sequenceType, language).First(&sequence).Error
	if err == nil {
		return &sequence, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("sequence lookup failed: %w", err)
	}

	sequence = models.Sequence{
		SequenceType: sequenceType,
		Language:     language,
		Name:         def.Name,
		Description:  def.Description,
		Status:       "active",
	}
	for i, emailDef := range def.Emails {
		sequence.Emails = append(sequence.Emails, models.SequenceEmail{
			EmailIndex:   i,
			Subject:      emailDef.Subject,
			Title:        emailDef.Title,
			HTMLBody:     emailDef.HTMLBody,
			CallToAction: emailDef.CallToAction,
			DelayDays:    emailDef.DelayDays,
		})
	}
	if err := e.DB.Create(&sequence).Error; err != nil {
		return nil, fmt.Errorf("failed to materialize sequence: %w", err)
	}

	e.Logger.Printf("Materialized sequence %s/%s with %d emails", sequenceType, language, len(sequence.Emails))
	return &sequence, nil
}

// PauseEnrollment stops a drip mid-flight: the enrollment is marked paused
// and its still-scheduled sends are cancelled.
func (e *Enroller) PauseEnrollment(enrollmentID uint) error {
	var enrollment models.Enrollment
	if err := e.DB.First(&enrollment, enrollmentID).Error; err != nil {
		return err
	}
	if enrollment.Status != models.EnrollmentActive {
		return fmt.Errorf("enrollment %d is not active", enrollmentID)
	}

	if err := e.DB.Model(&enrollment).Updates(map[string]interface{}{
		"status":    models.EnrollmentPaused,
		"paused_at": time.Now(),
	}).Error; err != nil {
		return err
	}

	return e.DB.Model(&models.ScheduledSend{}).
		Where("enrollment_id = ? AND status = ?", enrollmentID, models.SendScheduled).
		Update("status", models.SendCancelled).Error
}

// ResumeEnrollment reactivates a paused enrollment. Remaining sends are
// rescheduled relative to the resume time, keeping the day spacing between
// the remaining emails intact.
func (e *Enroller) ResumeEnrollment(enrollmentID uint) error {
	var enrollment models.Enrollment
	if err := e.DB.First(&enrollment, enrollmentID).Error; err != nil {
		return err
	}
	if enrollment.Status != models.EnrollmentPaused {
		return fmt.Errorf("enrollment %d is not paused", enrollmentID)
	}

	var sends []models.ScheduledSend
	if err := e.DB.Preload("SequenceEmail").
		Where("enrollment_id = ? AND status = ? AND email_index >= ?",
			enrollmentID, models.SendCancelled, enrollment.CurrentEmailIndex).
		Order("email_index").Find(&sends).Error; err != nil {
		return err
	}

	now := time.Now()
	baseDelay := -1
	for i := range sends {
		// Template row gone since the send was scheduled. Leave the send
		// cancelled, same as the dispatch path skips it.
		if sends[i].SequenceEmail == nil {
			e.Logger.Printf("Send %d has no sequence email, leaving cancelled", sends[i].ID)
			continue
		}
		if baseDelay < 0 {
			baseDelay = sends[i].SequenceEmail.DelayDays
		}
		offset := sends[i].SequenceEmail.DelayDays - baseDelay
		if offset < 0 {
			offset = 0
		}
		if err := e.DB.Model(&sends[i]).Updates(map[string]interface{}{
			"status":        models.SendScheduled,
			"scheduled_for": now.AddDate(0, 0, offset),
		}).Error; err != nil {
			return err
		}
	}

	return e.DB.Model(&enrollment).Updates(map[string]interface{}{
		"status":    models.EnrollmentActive,
		"paused_at": nil,
	}).Error
}
