package models

import (
	"time"
)

// Document repräsentiert eine wissenschaftliche Publikation und deren Metadaten.
// Natürlicher Schlüssel ist die CORE-ID; die interne ID wird nur beim ersten
// Insert vergeben und bleibt danach stabil.
type Document struct {
	ID        int64     `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	CoreID   string `json:"core_id" gorm:"column:core_id;uniqueIndex;not null"`
	DOI      string `json:"doi,omitempty" gorm:"column:doi;index"`
	Title    string `json:"title" gorm:"type:text"`
	Abstract string `json:"abstract,omitempty" gorm:"type:text"`
	FullText string `json:"full_text,omitempty" gorm:"type:text"`

	// Autoren als flacher Anzeige-String ("A. Meier, B. Chen, ...")
	Authors string `json:"authors,omitempty" gorm:"type:text"`
	Venue   string `json:"venue,omitempty"`
	Year    int    `json:"year,omitempty" gorm:"index"`
	Lang    string `json:"lang,omitempty" gorm:"index"`

	URL    string `json:"url,omitempty"`
	PDFURL string `json:"pdf_url,omitempty" gorm:"column:pdf_url"`

	// Unveränderte API-Antwort für spätere Re-Normalisierung
	RawJSON []byte `json:"raw_json,omitempty" gorm:"column:raw_json;type:jsonb"`

	// SHA-256 über Titel+Abstract, für Dedup
	ContentHash string `json:"content_hash" gorm:"column:content_hash;index"`
}

// TableName gibt explizit den Tabellennamen an.
func (Document) TableName() string {
	return "documents"
}
