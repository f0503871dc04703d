package models

import (
	"time"
)

// Paper is a catalog entry shared by every user that saved it. ID is the
// normalized arXiv identifier.
type Paper struct {
	ID          string    `gorm:"primaryKey;type:varchar(64)" json:"id"`
	Title       string    `gorm:"not null" json:"title"`
	Authors     []string  `gorm:"type:text;serializer:json" json:"authors"`
	Abstract    string    `gorm:"type:text" json:"abstract"`
	Summary     *string   `gorm:"type:text" json:"summary"`
	Institution *string   `json:"institution"`
	URL         string    `json:"url"`
	PDFURL      string    `gorm:"column:pdf_url" json:"pdf_url,omitempty"`
	PublishedAt time.Time `json:"published_at"`
	Topics      []Topic   `gorm:"many2many:paper_topics;" json:"topics"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// PaperRecord is a normalized search result. It is never persisted directly;
// saving one upserts the matching Paper.
type PaperRecord struct {
	ID          string    `json:"id" binding:"required"`
	Title       string    `json:"title" binding:"required"`
	Authors     []string  `json:"authors"`
	Abstract    string    `json:"abstract"`
	URL         string    `json:"url"`
	PDFURL      string    `json:"pdf_url,omitempty"`
	PublishedAt time.Time `json:"published_at"`
}

// Enrichment holds the model-derived fields for a paper.
type Enrichment struct {
	Summary     string   `json:"summary"`
	Institution string   `json:"institution"`
	Topics      []string `json:"topics"`
}

// HasPDF reports whether the paper can be enriched.
func (p *Paper) HasPDF() bool {
	return p.PDFURL != ""
}
