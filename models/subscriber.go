package models

import (
	"strings"

	"gorm.io/gorm"
)

// Funnel sources a subscriber can enter through
const (
	SourceLeadMagnet = "lead_magnet"
	SourceWaitlist   = "waitlist"
	SourceCorporate  = "corporate"
)

// Engagement levels recomputed by the engagement worker
const (
	EngagementNew    = "new"
	EngagementActive = "engaged"
	EngagementHot    = "highly_engaged"
	EngagementCold   = "dormant"
)

// Subscriber represents a person who entered one of the funnels
type Subscriber struct {
	gorm.Model

	Email    string `gorm:"uniqueIndex;not null" json:"email"`
	Name     string `json:"name"`
	Source   string `gorm:"not null;index" json:"source"`  // lead_magnet, waitlist, corporate
	Language string `gorm:"default:'en'" json:"language"`  // en, bg

	// Status
	IsActive        bool   `gorm:"default:true" json:"is_active"`
	EngagementLevel string `gorm:"default:'new'" json:"engagement_level"` // new, engaged, highly_engaged, dormant

	// Free-form fields captured by the funnel forms (company, role, team size...)
	CustomFields map[string]string `gorm:"type:jsonb;serializer:json" json:"custom_fields"`

	// Relations
	Enrollments []Enrollment `gorm:"foreignKey:SubscriberID" json:"enrollments,omitempty"`
}

// PersonalizationFields builds the token map used to fill {name}-style
// placeholders in sequence email bodies. Custom fields are merged in but
// never override the built-in tokens.
func (s *Subscriber) PersonalizationFields() map[string]string {
	fields := map[string]string{}
	for k, v := range s.CustomFields {
		fields[k] = v
	}

	fields["email"] = s.Email
	fields["name"] = s.Name
	fields["first_name"] = firstName(s.Name)
	return fields
}

func firstName(name string) string {
	name = strings.TrimSpace(name)
	if idx := strings.IndexByte(name, ' '); idx > 0 {
		return name[:idx]
	}
	return name
}
