package models

import "time"

// OutlierTopicID ist die reservierte Topic-ID für Dokumente, die das Modell
// keinem Topic zuordnen konnte.
const OutlierTopicID = -1

// Topic repräsentiert ein Cluster des Topic-Modells. Topic-IDs werden vom
// Engine-Artefakt vergeben und sind nur innerhalb einer Modell-Linie stabil:
// nach einer Neu-Initialisierung bezeichnet dieselbe ID ein anderes Topic.
type Topic struct {
	TopicID   int       `json:"topic_id" gorm:"column:topic_id;primaryKey;autoIncrement:false"`
	Label     string    `json:"label" gorm:"type:text"`
	TopTerms  string    `json:"top_terms" gorm:"column:top_terms;type:text"`
	Size      int       `json:"size"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName gibt explizit den Tabellennamen an.
func (Topic) TableName() string {
	return "topics"
}

// TopicTerm ist ein gewichteter Begriff eines Topics. Die Gewichte werden pro
// Topic bei jedem Update vollständig ersetzt.
type TopicTerm struct {
	TopicID int     `json:"topic_id" gorm:"column:topic_id;primaryKey;autoIncrement:false"`
	Term    string  `json:"term" gorm:"primaryKey"`
	Weight  float64 `json:"weight"`
}

// TableName gibt explizit den Tabellennamen an.
func (TopicTerm) TableName() string {
	return "topic_terms"
}

// TopicAssignment verknüpft ein Dokument (interne ID) mit einem Topic.
type TopicAssignment struct {
	DocID       int64     `json:"doc_id" gorm:"column:doc_id;primaryKey;autoIncrement:false"`
	TopicID     int       `json:"topic_id" gorm:"column:topic_id;primaryKey;autoIncrement:false"`
	Probability float64   `json:"probability"`
	AssignedAt  time.Time `json:"assigned_at"`
}

// TableName gibt explizit den Tabellennamen an.
func (TopicAssignment) TableName() string {
	return "topic_assignments"
}

// TopicTrend ist die pro (Topic, Jahr, Monat) aggregierte Dokumentanzahl.
// Vollständig aus Assignments und Documents ableitbar; wird nur aus
// Abfrage-Performance-Gründen persistiert.
type TopicTrend struct {
	TopicID  int `json:"topic_id" gorm:"column:topic_id;primaryKey;autoIncrement:false"`
	Year     int `json:"year" gorm:"primaryKey;autoIncrement:false"`
	Month    int `json:"month" gorm:"primaryKey;autoIncrement:false"`
	DocCount int `json:"doc_count" gorm:"column:doc_count"`
}

// TableName gibt explizit den Tabellennamen an.
func (TopicTrend) TableName() string {
	return "topic_trends"
}
