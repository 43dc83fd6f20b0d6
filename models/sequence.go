package models

import (
	"time"

	"gorm.io/gorm"
)

// Enrollment lifecycle states
const (
	EnrollmentActive    = "active"
	EnrollmentPaused    = "paused"
	EnrollmentCompleted = "completed"
	EnrollmentCancelled = "cancelled"
)

// Sequence represents a language-specific drip email sequence
type Sequence struct {
	gorm.Model

	SequenceType string `gorm:"not null;uniqueIndex:idx_sequence_type_lang" json:"sequence_type"` // lead_magnet, waitlist, corporate
	Language     string `gorm:"not null;uniqueIndex:idx_sequence_type_lang;default:'en'" json:"language"`

	Name        string `gorm:"not null" json:"name"`
	Description string `json:"description"`
	Status      string `gorm:"default:'active'" json:"status"` // active, paused

	// Relations
	Emails      []SequenceEmail `gorm:"foreignKey:SequenceID" json:"emails,omitempty"`
	Enrollments []Enrollment    `gorm:"foreignKey:SequenceID" json:"enrollments,omitempty"`
}

// SequenceEmail represents one email template within a sequence
type SequenceEmail struct {
	gorm.Model
	SequenceID uint `gorm:"not null;index" json:"sequence_id"`

	EmailIndex   int    `gorm:"not null" json:"email_index"` // 0-based position
	Subject      string `gorm:"not null" json:"subject"`
	Title        string `json:"title"`
	HTMLBody     string `gorm:"type:text" json:"html_body"` // supports {name}-style placeholders
	CallToAction string `json:"call_to_action"`
	DelayDays    int    `gorm:"not null" json:"delay_days"` // days after enrollment

	// Tracking
	SentCount int `gorm:"default:0" json:"sent_count"`
}

// Enrollment links one subscriber to one sequence and tracks progress
type Enrollment struct {
	gorm.Model
	SubscriberID uint `gorm:"not null;index" json:"subscriber_id"`
	SequenceID   uint `gorm:"not null;index" json:"sequence_id"`

	Status            string     `gorm:"default:'active';index" json:"status"` // active, paused, completed, cancelled
	CurrentEmailIndex int        `gorm:"default:0" json:"current_email_index"` // next unsent position
	EnrolledAt        time.Time  `gorm:"not null" json:"enrolled_at"`
	CompletedAt       *time.Time `json:"completed_at"`
	PausedAt          *time.Time `json:"paused_at"`

	// Relations
	Subscriber *Subscriber     `json:"subscriber,omitempty"`
	Sequence   *Sequence       `json:"-"`
	Sends      []ScheduledSend `gorm:"foreignKey:EnrollmentID" json:"sends,omitempty"`
}
