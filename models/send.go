package models

import (
	"time"

	"gorm.io/gorm"
)

// ScheduledSend states. A send never leaves "sent": sent is terminal.
const (
	SendScheduled         = "scheduled"
	SendSent              = "sent"
	SendFailed            = "failed"
	SendPermanentlyFailed = "permanently_failed"
	SendCancelled         = "cancelled"
)

// ScheduledSend is one planned email dispatch for an enrollment position.
// It is the unit of work the sequence worker operates on.
type ScheduledSend struct {
	gorm.Model
	EnrollmentID    uint `gorm:"not null;index" json:"enrollment_id"`
	SequenceEmailID uint `gorm:"not null;index" json:"sequence_email_id"`

	EmailIndex   int       `gorm:"not null" json:"email_index"`
	ScheduledFor time.Time `gorm:"not null;index:idx_send_due" json:"scheduled_for"`
	Status       string    `gorm:"default:'scheduled';index:idx_send_due" json:"status"`

	SentAt    *time.Time `json:"sent_at"`
	MessageID string     `gorm:"index" json:"message_id"` // provider's opaque id once sent

	// Retry state. RetryCount only ever increases; NextRetryAt holds the
	// earliest moment the retry pass may touch this send again.
	RetryCount   int        `gorm:"default:0" json:"retry_count"`
	NextRetryAt  *time.Time `gorm:"index" json:"next_retry_at"`
	ErrorKind    string     `json:"error_kind"`
	ErrorMessage string     `gorm:"type:text" json:"error_message"`

	// Relations
	Enrollment    *Enrollment    `json:"enrollment,omitempty"`
	SequenceEmail *SequenceEmail `json:"sequence_email,omitempty"`
	Analytics     *SendAnalytics `gorm:"foreignKey:ScheduledSendID" json:"analytics,omitempty"`
}

// SendAnalytics tracks provider delivery events for a sent email. The row is
// created lazily on the first webhook event; "first occurred" timestamps are
// set once while counters keep incrementing on redelivered events.
type SendAnalytics struct {
	gorm.Model
	ScheduledSendID uint `gorm:"not null;uniqueIndex" json:"scheduled_send_id"`

	DeliveredAt    *time.Time `json:"delivered_at"`
	OpenedAt       *time.Time `json:"opened_at"`
	OpenCount      int        `gorm:"default:0" json:"open_count"`
	ClickedAt      *time.Time `json:"clicked_at"`
	ClickCount     int        `gorm:"default:0" json:"click_count"`
	BouncedAt      *time.Time `json:"bounced_at"`
	BounceType     string     `json:"bounce_type"` // hard, soft
	ComplainedAt   *time.Time `json:"complained_at"`
	UnsubscribedAt *time.Time `json:"unsubscribed_at"`
	ConvertedAt    *time.Time `json:"converted_at"`
}
