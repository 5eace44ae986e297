package store

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"topic-pulse/models"
)

// upsertBatchSize begrenzt die Zeilen pro INSERT-Statement.
const upsertBatchSize = 500

// PersistenceError ist ein fehlgeschlagener Store-Write. Der Aufrufer
// entscheidet, ob der Lauf abbricht; standardmäßig bricht die Pipeline ab,
// um halb geschriebenen tabellenübergreifenden Zustand zu vermeiden.
type PersistenceError struct {
	Table string
	Err   error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("store: write auf %s fehlgeschlagen: %v", e.Table, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Store kapselt alle Pipeline-Schreibpfade. Upsert-Kontrakt für jede Tabelle:
// Konflikt auf dem natürlichen Schlüssel überschreibt alle Spalten mit den
// aktuellen Werten, nie ein partieller Merge. Batches laufen als ein
// Statement pro Tabelle und Batch-Chunk.
type Store struct {
	DB     *gorm.DB
	Logger *zap.Logger
}

// New erstellt einen Store über einer bestehenden gorm-Verbindung.
func New(db *gorm.DB, logger *zap.Logger) *Store {
	return &Store{DB: db, Logger: logger}
}

// AutoMigrate legt alle Tabellen an bzw. zieht sie nach.
func (s *Store) AutoMigrate() error {
	return s.DB.AutoMigrate(
		&models.Document{},
		&models.Topic{},
		&models.TopicTerm{},
		&models.TopicAssignment{},
		&models.TopicTrend{},
		&models.SearchSlice{},
	)
}

// documentUpdateColumns sind die Spalten, die beim Re-Ingest eines bekannten
// core_id vollständig überschrieben werden. Die interne ID bleibt stabil.
var documentUpdateColumns = []string{
	"doi", "title", "abstract", "full_text", "authors", "venue",
	"year", "lang", "url", "pdf_url", "raw_json", "content_hash", "updated_at",
}

// UpsertDocuments schreibt einen Dokument-Batch (Konfliktschlüssel core_id).
func (s *Store) UpsertDocuments(docs []models.Document) error {
	if len(docs) == 0 {
		return nil
	}
	err := s.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "core_id"}},
		DoUpdates: clause.AssignmentColumns(documentUpdateColumns),
	}).CreateInBatches(&docs, upsertBatchSize).Error
	if err != nil {
		return &PersistenceError{Table: "documents", Err: err}
	}
	s.Logger.Info("Dokumente upserted", zap.Int("count", len(docs)))
	return nil
}

// UpsertTopics schreibt die Topic-Übersicht (Konfliktschlüssel topic_id).
func (s *Store) UpsertTopics(topics []models.Topic) error {
	if len(topics) == 0 {
		return nil
	}
	now := time.Now().UTC()
	for i := range topics {
		topics[i].UpdatedAt = now
	}
	err := s.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "topic_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"label", "top_terms", "size", "updated_at"}),
	}).CreateInBatches(&topics, upsertBatchSize).Error
	if err != nil {
		return &PersistenceError{Table: "topics", Err: err}
	}
	s.Logger.Info("Topics upserted", zap.Int("count", len(topics)))
	return nil
}

// ReplaceTopicTerms ersetzt die Termgewichte der betroffenen Topics
// vollständig: erst veraltete Terme löschen, dann den neuen Stand schreiben.
func (s *Store) ReplaceTopicTerms(terms []models.TopicTerm) error {
	if len(terms) == 0 {
		return nil
	}

	topicIDs := make([]int, 0)
	seen := make(map[int]bool)
	for _, t := range terms {
		if !seen[t.TopicID] {
			seen[t.TopicID] = true
			topicIDs = append(topicIDs, t.TopicID)
		}
	}

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("topic_id IN ?", topicIDs).Delete(&models.TopicTerm{}).Error; err != nil {
			return err
		}
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "topic_id"}, {Name: "term"}},
			DoUpdates: clause.AssignmentColumns([]string{"weight"}),
		}).CreateInBatches(&terms, upsertBatchSize).Error
	})
	if err != nil {
		return &PersistenceError{Table: "topic_terms", Err: err}
	}
	s.Logger.Info("Topic-Terme ersetzt", zap.Int("topics", len(topicIDs)), zap.Int("terms", len(terms)))
	return nil
}

// UpsertAssignments schreibt Topic-Zuordnungen (Konfliktschlüssel doc_id+topic_id).
func (s *Store) UpsertAssignments(assignments []models.TopicAssignment) error {
	if len(assignments) == 0 {
		return nil
	}
	err := s.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "doc_id"}, {Name: "topic_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"probability", "assigned_at"}),
	}).CreateInBatches(&assignments, upsertBatchSize).Error
	if err != nil {
		return &PersistenceError{Table: "topic_assignments", Err: err}
	}
	s.Logger.Info("Topic-Zuordnungen upserted", zap.Int("count", len(assignments)))
	return nil
}

// UpsertTrends schreibt Trend-Aggregate idempotent (Konfliktschlüssel
// topic_id+year+month): Zählwerte werden ersetzt, nie addiert, damit eine
// erneute Aggregation nach einer Korrektur nie doppelt zählt.
func (s *Store) UpsertTrends(trends []models.TopicTrend) error {
	if len(trends) == 0 {
		return nil
	}
	err := s.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "topic_id"}, {Name: "year"}, {Name: "month"}},
		DoUpdates: clause.AssignmentColumns([]string{"doc_count"}),
	}).CreateInBatches(&trends, upsertBatchSize).Error
	if err != nil {
		return &PersistenceError{Table: "topic_trends", Err: err}
	}
	s.Logger.Info("Topic-Trends upserted", zap.Int("count", len(trends)))
	return nil
}

// DocumentIDsByCoreID liefert die internen IDs zu den gegebenen natürlichen
// Schlüsseln. Unbekannte Schlüssel fehlen im Ergebnis, das ist kein Fehler.
func (s *Store) DocumentIDsByCoreID(coreIDs []string) (map[string]int64, error) {
	if len(coreIDs) == 0 {
		return map[string]int64{}, nil
	}

	var rows []struct {
		ID     int64
		CoreID string
	}
	err := s.DB.Model(&models.Document{}).
		Select("id", "core_id").
		Where("core_id IN ?", coreIDs).
		Find(&rows).Error
	if err != nil {
		return nil, &PersistenceError{Table: "documents", Err: err}
	}

	mapping := make(map[string]int64, len(rows))
	for _, r := range rows {
		mapping[r.CoreID] = r.ID
	}
	return mapping, nil
}

// DocumentsByID lädt Dokumente über ihre internen IDs (für die
// Trend-Aggregation wird nur das Jahr gebraucht, geladen wird die Zeile).
func (s *Store) DocumentsByID(ids []int64) ([]models.Document, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var docs []models.Document
	if err := s.DB.Where("id IN ?", ids).Find(&docs).Error; err != nil {
		return nil, &PersistenceError{Table: "documents", Err: err}
	}
	return docs, nil
}

// ResetTopicData löscht alle vom Modell abgeleiteten Tabellen. Wird beim
// erzwungenen Re-Init verwendet, damit alte und neue Topic-IDs nicht unter
// derselben ID kollidieren. Dokumente bleiben unberührt.
func (s *Store) ResetTopicData() error {
	for _, m := range []any{&models.TopicTrend{}, &models.TopicAssignment{}, &models.TopicTerm{}, &models.Topic{}} {
		if err := s.DB.Where("1 = 1").Delete(m).Error; err != nil {
			return &PersistenceError{Table: "topics", Err: err}
		}
	}
	s.Logger.Warn("Alle Topic-Tabellen geleert (erzwungener Re-Init)")
	return nil
}
