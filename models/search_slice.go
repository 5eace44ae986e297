package models

import "time"

// SearchSlice definiert einen Zeit-/Sprach-Ausschnitt des Korpus, den der
// Cron-Job regelmäßig durch die Pipeline schickt.
type SearchSlice struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Name     string `json:"name" gorm:"uniqueIndex;not null"`
	FromYear int    `json:"from_year" gorm:"not null"`
	ToYear   int    `json:"to_year" gorm:"not null"`
	Lang     string `json:"lang" gorm:"default:'en'"`

	// 0 = kein Limit
	MaxDocs int  `json:"max_docs"`
	Enabled bool `json:"enabled" gorm:"default:true"`
}

// TableName gibt explizit den Tabellennamen an.
func (SearchSlice) TableName() string {
	return "search_slices"
}
