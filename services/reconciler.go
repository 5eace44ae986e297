package services

import (
	"sort"
	"time"

	"go.uber.org/zap"

	"topic-pulse/models"
	"topic-pulse/topics"
)

// trendMonth ist der Platzhalter-Monat der Trend-Aggregation: die Quelle
// liefert verlässlich nur das Publikationsjahr. Sollte eine feinere
// Datumsquelle dazukommen, muss AggregateTrends überarbeitet werden.
const trendMonth = 1

// DocumentResolver löst natürliche Schlüssel zu internen Dokument-IDs auf.
// Implementiert vom Store; als Interface gehalten, damit die Reconciliation
// ohne Datenbank testbar bleibt.
type DocumentResolver interface {
	DocumentIDsByCoreID(coreIDs []string) (map[string]int64, error)
}

// Reconciler übersetzt Engine-Ausgaben (stabile Batch-Schlüssel, Topic-IDs)
// auf die dauerhaften IDs des Stores und aggregiert Zuordnungen zu
// zeitgebuckelten Trends.
type Reconciler struct {
	Resolver DocumentResolver
	Logger   *zap.Logger
}

// NewReconciler erstellt einen neuen Reconciler.
func NewReconciler(resolver DocumentResolver, logger *zap.Logger) *Reconciler {
	return &Reconciler{Resolver: resolver, Logger: logger}
}

// ResolveIDs bildet natürliche Schlüssel auf interne Dokument-IDs ab.
// Schlüssel ohne persistiertes Dokument fehlen im Ergebnis; der Aufrufer
// behandelt Abwesenheit als "Zuordnung überspringen", nie als Fehler: ein
// Dokument kann erst nach seiner dauerhaften Speicherung zugeordnet werden.
func (r *Reconciler) ResolveIDs(naturalKeys []string) (map[string]int64, error) {
	return r.Resolver.DocumentIDsByCoreID(naturalKeys)
}

// BuildAssignments übersetzt Engine-Zuordnungen über die ID-Abbildung in
// persistierbare Zeilen. Einträge ohne Abbildung werden verworfen und nur
// gezählt: bei nicht deckungsgleichen Ingestion- und Zuordnungs-Batches ist
// das der erwartete Normalfall, kein Fehlersignal.
func (r *Reconciler) BuildAssignments(engineOut []topics.Assignment, idMapping map[string]int64) []models.TopicAssignment {
	now := time.Now().UTC()
	assignments := make([]models.TopicAssignment, 0, len(engineOut))
	dropped := 0

	for _, a := range engineOut {
		docID, ok := idMapping[a.Key]
		if !ok {
			dropped++
			continue
		}
		assignments = append(assignments, models.TopicAssignment{
			DocID:       docID,
			TopicID:     a.TopicID,
			Probability: a.Probability,
			AssignedAt:  now,
		})
	}

	if dropped > 0 {
		r.Logger.Debug("Zuordnungen ohne persistiertes Dokument verworfen",
			zap.Int("dropped", dropped), zap.Int("kept", len(assignments)))
	}
	return assignments
}

// AggregateTrends verknüpft Zuordnungen über die interne ID mit Dokumenten,
// um das Publikationsjahr zu gewinnen, und zählt je (Topic, Jahr, Monat).
// Dokumente ohne Jahr werden übersprungen. Das Aggregat ist vollständig aus
// dem aktuellen Zustand ableitbar und damit unter erneuter Ausführung
// idempotent.
func (r *Reconciler) AggregateTrends(assignments []models.TopicAssignment, docs []models.Document) []models.TopicTrend {
	yearByID := make(map[int64]int, len(docs))
	for _, d := range docs {
		yearByID[d.ID] = d.Year
	}

	type bucket struct {
		topicID int
		year    int
	}
	counts := make(map[bucket]int)
	skipped := 0

	for _, a := range assignments {
		year, ok := yearByID[a.DocID]
		if !ok || year == 0 {
			skipped++
			continue
		}
		counts[bucket{topicID: a.TopicID, year: year}]++
	}

	trends := make([]models.TopicTrend, 0, len(counts))
	for b, count := range counts {
		trends = append(trends, models.TopicTrend{
			TopicID:  b.topicID,
			Year:     b.year,
			Month:    trendMonth,
			DocCount: count,
		})
	}
	sort.Slice(trends, func(a, b int) bool {
		if trends[a].TopicID != trends[b].TopicID {
			return trends[a].TopicID < trends[b].TopicID
		}
		return trends[a].Year < trends[b].Year
	})

	if skipped > 0 {
		r.Logger.Debug("Zuordnungen ohne Jahresangabe nicht aggregiert", zap.Int("skipped", skipped))
	}
	return trends
}
