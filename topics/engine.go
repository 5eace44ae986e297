package topics

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
)

// outlierID ist die reservierte Topic-ID für nicht zuordenbare Dokumente.
const outlierID = -1

// defaultTopTerms begrenzt die pro Topic geführten Top-Begriffe.
const defaultTopTerms = 10

// Document ist die Korpus-Eingabe der Engine. Key ist der vom Aufrufer
// mitgegebene stabile Schlüssel (CORE-ID) und wird durch alle Stufen
// durchgereicht, damit Ergebnis und Quelle nie über Array-Positionen
// korreliert werden müssen.
type Document struct {
	Key      string
	Title    string
	Abstract string
}

func (d Document) text() string {
	return strings.TrimSpace(d.Title + " " + d.Abstract)
}

// Assignment ist die Topic-Zuordnung eines Dokuments aus einem Batch.
type Assignment struct {
	Index       int
	Key         string
	TopicID     int
	Probability float64
}

// TopicSummary ist eine Zeile der Topic-Übersicht.
type TopicSummary struct {
	TopicID int    `json:"topic_id"`
	Size    int    `json:"size"`
	Label   string `json:"label"`
}

// Options konfiguriert die Engine. Alle Felder haben Defaults.
type Options struct {
	ArtifactPath string
	// MinTopicSize steuert die Granularität: kleinere Werte erzeugen mehr,
	// kleinere Topics.
	MinTopicSize int
	// MinDF/MaxDF beschneiden das Vokabular (absolute Untergrenze,
	// relativer Anteil als Obergrenze).
	MinDF int
	MaxDF float64
	// Decay lässt den Beitrag älterer Dokumente zur Term-Gewichtung pro
	// Update-Batch abklingen.
	Decay float64
	// Threshold ist die Mindest-Kosinus-Ähnlichkeit für eine Zuordnung.
	Threshold float64
}

func (o *Options) applyDefaults() {
	if o.ArtifactPath == "" {
		o.ArtifactPath = "models/artifacts/topic_model.json"
	}
	if o.MinTopicSize <= 0 {
		o.MinTopicSize = 15
	}
	if o.MinDF <= 0 {
		o.MinDF = 5
	}
	if o.MaxDF <= 0 {
		o.MaxDF = 0.9
	}
	if o.Decay <= 0 {
		o.Decay = 0.01
	}
	if o.Threshold <= 0 {
		o.Threshold = 0.6
	}
}

// Engine besitzt das persistierte Topic-Modell. Zwei dauerhafte Zustände:
// UNINITIALIZED (kein Artefakt) und READY (Artefakt ladbar). Das Artefakt ist
// eine Singleton-Ressource; gleichzeitige Läufe gegen denselben Pfad muss der
// Orchestrator verhindern, nicht die Engine.
type Engine struct {
	opts    Options
	encoder Encoder
	log     *zap.Logger

	model *modelArtifact
}

// NewEngine erstellt eine Engine. Der Encoder wird injiziert, damit Tests
// ohne externe Embedding-API auskommen.
func NewEngine(opts Options, encoder Encoder, logger *zap.Logger) *Engine {
	opts.applyDefaults()
	return &Engine{opts: opts, encoder: encoder, log: logger}
}

// Ready meldet, ob ein persistiertes Artefakt existiert.
func (e *Engine) Ready() bool {
	return artifactExists(e.opts.ArtifactPath)
}

// Initialize fittet das Modell von Grund auf über dem Korpus und persistiert
// das Artefakt. Existiert bereits ein Artefakt, wird ohne force abgebrochen:
// ein stilles Überschreiben würde alte und neue Topic-IDs in der Datenbank
// unter derselben ID vermischen.
func (e *Engine) Initialize(ctx context.Context, corpus []Document, force bool) error {
	if len(corpus) == 0 {
		return engineErr(StageFit, ErrEmptyCorpus)
	}
	if e.Ready() {
		if !force {
			return ErrModelExists
		}
		e.log.Warn("Bestehendes Modell-Artefakt wird überschrieben; alte Topic-IDs in der Datenbank sind danach bedeutungslos",
			zap.String("artifact", e.opts.ArtifactPath))
	}

	texts := corpusTexts(corpus)

	e.log.Info("Encode Korpus", zap.Int("documents", len(texts)))
	vectors, err := e.encoder.Encode(ctx, texts)
	if err != nil {
		return engineErr(StageEncode, err)
	}
	if len(vectors) != len(corpus) {
		return engineErr(StageEncode, fmt.Errorf("encoder lieferte %d vektoren für %d dokumente", len(vectors), len(corpus)))
	}
	for i := range vectors {
		vectors[i] = normalize(vectors[i])
	}

	e.log.Info("Fitte Cluster- und Term-Modell",
		zap.Int("min_topic_size", e.opts.MinTopicSize),
		zap.Float64("threshold", e.opts.Threshold))
	topicIDs, centroids, sizes := fitClusters(vectors, e.opts.Threshold, e.opts.MinTopicSize)

	stats := newTermStats()
	for i, doc := range corpus {
		stats.addDocument(tokenize(doc.text()), topicIDs[i])
	}

	model := &modelArtifact{
		CreatedAt: time.Now().UTC(),
		Centroids: centroids,
		Sizes:     sizes,
		Threshold: e.opts.Threshold,
		Stats:     stats,
	}

	if err := saveArtifact(e.opts.ArtifactPath, model); err != nil {
		return engineErr(StagePersist, err)
	}
	e.model = model

	e.log.Info("Modell initialisiert",
		zap.Int("topics", len(centroids)),
		zap.Int("outliers", sizes[outlierID]),
		zap.String("artifact", e.opts.ArtifactPath))
	return nil
}

// Update ordnet neue Dokumente dem bestehenden Topic-Raum zu und schreibt die
// Term-Statistik mit Decay fort. Die Cluster-Geometrie bleibt unverändert;
// Dokumente ohne passendes Topic werden Outlier. Das Artefakt wird an Ort und
// Stelle überschrieben.
func (e *Engine) Update(ctx context.Context, corpus []Document) error {
	model, err := e.loadModel()
	if err != nil {
		return err
	}
	if len(corpus) == 0 {
		e.log.Warn("Update mit leerem Korpus, nichts zu tun")
		return nil
	}

	texts := corpusTexts(corpus)
	vectors, err := e.encoder.Encode(ctx, texts)
	if err != nil {
		return engineErr(StageEncode, err)
	}
	if len(vectors) != len(corpus) {
		return engineErr(StageTransform, fmt.Errorf("encoder lieferte %d vektoren für %d dokumente", len(vectors), len(corpus)))
	}
	for i := range vectors {
		vectors[i] = normalize(vectors[i])
	}

	topicIDs, _ := transform(vectors, model.Centroids, model.Threshold)

	// Alte Beiträge abklingen lassen, dann neue Dokumente zählen
	model.Stats.decayAll(e.opts.Decay)
	assigned := 0
	for i, doc := range corpus {
		model.Stats.addDocument(tokenize(doc.text()), topicIDs[i])
		model.Sizes[topicIDs[i]]++
		if topicIDs[i] != outlierID {
			assigned++
		}
	}

	if err := saveArtifact(e.opts.ArtifactPath, model); err != nil {
		return engineErr(StagePersist, err)
	}
	e.model = model

	e.log.Info("Modell aktualisiert",
		zap.Int("documents", len(corpus)),
		zap.Int("assigned", assigned),
		zap.Int("outliers", len(corpus)-assigned))
	return nil
}

// Assign ist ein reiner Lesepfad: Topic-Zuordnung für einen Batch, ohne das
// Artefakt zu verändern. Outlier-Dokumente fehlen im Ergebnis vollständig,
// sie tragen kein verwertbares Topic-Signal.
func (e *Engine) Assign(ctx context.Context, corpus []Document) ([]Assignment, error) {
	model, err := e.loadModel()
	if err != nil {
		return nil, err
	}
	if len(corpus) == 0 {
		return nil, nil
	}

	vectors, err := e.encoder.Encode(ctx, corpusTexts(corpus))
	if err != nil {
		return nil, engineErr(StageEncode, err)
	}
	if len(vectors) != len(corpus) {
		return nil, engineErr(StageTransform, fmt.Errorf("encoder lieferte %d vektoren für %d dokumente", len(vectors), len(corpus)))
	}
	for i := range vectors {
		vectors[i] = normalize(vectors[i])
	}

	topicIDs, probs := transform(vectors, model.Centroids, model.Threshold)

	var assignments []Assignment
	for i, doc := range corpus {
		if topicIDs[i] == outlierID {
			continue
		}
		assignments = append(assignments, Assignment{
			Index:       i,
			Key:         doc.Key,
			TopicID:     topicIDs[i],
			Probability: probs[i],
		})
	}
	return assignments, nil
}

// Terms liefert je Topic die Top-Begriffe, absteigend nach Gewicht.
func (e *Engine) Terms() (map[int][]TermWeight, error) {
	model, err := e.loadModel()
	if err != nil {
		return nil, err
	}

	out := make(map[int][]TermWeight, len(model.Stats.TermFreq))
	for topicID := range model.Stats.TermFreq {
		if terms := model.Stats.topTerms(topicID, e.opts.MinDF, e.opts.MaxDF, defaultTopTerms); len(terms) > 0 {
			out[topicID] = terms
		}
	}
	return out, nil
}

// Summary liefert eine Zeile je Topic (Outlier-Pseudo-Topic eingeschlossen),
// absteigend nach Größe, Outlier zuletzt.
func (e *Engine) Summary() ([]TopicSummary, error) {
	model, err := e.loadModel()
	if err != nil {
		return nil, err
	}

	summaries := make([]TopicSummary, 0, len(model.Sizes))
	for topicID, size := range model.Sizes {
		summaries = append(summaries, TopicSummary{
			TopicID: topicID,
			Size:    size,
			Label:   e.label(model, topicID),
		})
	}
	sort.Slice(summaries, func(a, b int) bool {
		if (summaries[a].TopicID == outlierID) != (summaries[b].TopicID == outlierID) {
			return summaries[b].TopicID == outlierID
		}
		if summaries[a].Size != summaries[b].Size {
			return summaries[a].Size > summaries[b].Size
		}
		return summaries[a].TopicID < summaries[b].TopicID
	})
	return summaries, nil
}

// label synthetisiert die menschenlesbare Kurzform "id_term1_term2_...".
func (e *Engine) label(model *modelArtifact, topicID int) string {
	terms := model.Stats.topTerms(topicID, e.opts.MinDF, e.opts.MaxDF, 4)
	parts := make([]string, 0, 5)
	parts = append(parts, fmt.Sprintf("%d", topicID))
	for _, t := range terms {
		parts = append(parts, t.Term)
	}
	return strings.Join(parts, "_")
}

// loadModel lädt das Artefakt, falls noch nicht im Speicher.
func (e *Engine) loadModel() (*modelArtifact, error) {
	if e.model != nil {
		return e.model, nil
	}
	model, err := loadArtifact(e.opts.ArtifactPath)
	if err != nil {
		return nil, err
	}
	e.model = model
	return model, nil
}

func corpusTexts(corpus []Document) []string {
	texts := make([]string, len(corpus))
	for i, doc := range corpus {
		texts[i] = doc.text()
	}
	return texts
}
