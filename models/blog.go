package models

import (
	"time"

	"gorm.io/gorm"
)

// BlogPost represents a bilingual (English/Bulgarian) article
type BlogPost struct {
	gorm.Model

	Slug     string `gorm:"uniqueIndex;not null" json:"slug"`
	Category string `gorm:"index" json:"category"`

	TitleEN   string `gorm:"not null" json:"title_en"`
	TitleBG   string `json:"title_bg"`
	ExcerptEN string `gorm:"type:text" json:"excerpt_en"`
	ExcerptBG string `gorm:"type:text" json:"excerpt_bg"`
	BodyEN    string `gorm:"type:text" json:"body_en"`
	BodyBG    string `gorm:"type:text" json:"body_bg"`

	CoverImageURL string `json:"cover_image_url"`

	IsPublished bool       `gorm:"default:false;index" json:"is_published"`
	PublishedAt *time.Time `json:"published_at"`
	ViewCount   int        `gorm:"default:0" json:"view_count"`
}

// LocalizedPost is the public, single-language view of a post
type LocalizedPost struct {
	ID            uint       `json:"id"`
	Slug          string     `json:"slug"`
	Category      string     `json:"category"`
	Language      string     `json:"language"`
	Title         string     `json:"title"`
	Excerpt       string     `json:"excerpt"`
	Body          string     `json:"body"`
	CoverImageURL string     `json:"cover_image_url"`
	PublishedAt   *time.Time `json:"published_at"`
}

// Localized returns the post content for the requested language, falling
// back to English when the Bulgarian translation is missing.
func (p *BlogPost) Localized(language string) LocalizedPost {
	out := LocalizedPost{
		ID:            p.ID,
		Slug:          p.Slug,
		Category:      p.Category,
		Language:      "en",
		Title:         p.TitleEN,
		Excerpt:       p.ExcerptEN,
		Body:          p.BodyEN,
		CoverImageURL: p.CoverImageURL,
		PublishedAt:   p.PublishedAt,
	}
	if language == "bg" && p.TitleBG != "" {
		out.Language = "bg"
		out.Title = p.TitleBG
		out.Excerpt = p.ExcerptBG
		out.Body = p.BodyBG
	}
	return out
}
