package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"

	"topic-pulse/config"
	"topic-pulse/models"
	"topic-pulse/storage"
	"topic-pulse/store"
	"topic-pulse/topics"
)

// Pipeline sequenziert Ingestion → Modell (init/update) → Reconciliation →
// Persistenz für einen Zeit-/Sprach-Ausschnitt. Alle Stufen laufen seriell
// und blockierend; Wiederanlauf nach einem Abbruch ist durch die idempotenten
// Upserts sicher.
type Pipeline struct {
	Config     *config.Config
	Store      *store.Store
	Ingest     *IngestService
	Engine     *topics.Engine
	Reconciler *Reconciler
	S3Client   *s3.Client
	Logger     *zap.Logger
}

// NewPipeline erstellt eine Pipeline. Store und S3Client dürfen nil sein.
func NewPipeline(cfg *config.Config, st *store.Store, ingest *IngestService, engine *topics.Engine, rec *Reconciler, s3Client *s3.Client, logger *zap.Logger) *Pipeline {
	return &Pipeline{
		Config:     cfg,
		Store:      st,
		Ingest:     ingest,
		Engine:     engine,
		Reconciler: rec,
		S3Client:   s3Client,
		Logger:     logger,
	}
}

// RunOptions steuern einen End-to-End-Lauf.
type RunOptions struct {
	FromYear      int
	ToYear        int
	Lang          string
	Limit         int
	InitIfMissing bool
	SkipDB        bool
	Force         bool
}

// RunStats fasst einen Lauf für Metriken zusammen.
type RunStats struct {
	DocsIngested int
	Assigned     int
	Topics       int
}

// RunEndToEnd führt einen kompletten Lauf aus. Das Modell-Artefakt ist eine
// Singleton-Ressource: ein Run-Lock verhindert parallele Läufe gegen
// denselben Artefakt-Pfad.
func (p *Pipeline) RunEndToEnd(ctx context.Context, opts RunOptions) (*RunStats, error) {
	log := p.Logger.With(
		zap.Int("from_year", opts.FromYear),
		zap.Int("to_year", opts.ToYear),
		zap.String("lang", opts.Lang))
	log.Info("Starte End-to-End-Lauf")

	unlock, err := acquireRunLock(p.Config.ModelArtifactPath + ".lock")
	if err != nil {
		return nil, err
	}
	defer unlock()

	// Stufe 1: Ingestion. Jeder Fehler hier bricht den Lauf ab.
	result, err := p.Ingest.Run(ctx, opts.FromYear, opts.ToYear, opts.Lang, opts.Limit)
	if err != nil {
		return nil, fmt.Errorf("ingestion fehlgeschlagen: %w", err)
	}
	if len(result.Documents) == 0 {
		log.Warn("Keine Dokumente im Ausschnitt, Lauf beendet")
		return &RunStats{}, nil
	}

	corpus := ToEngineCorpus(result.Documents)

	// Stufe 2: Modell initialisieren oder fortschreiben
	switch {
	case !p.Engine.Ready():
		if !opts.InitIfMissing {
			return nil, topics.ErrModelNotInitialized
		}
		if err := p.initModel(ctx, corpus, opts.Force, opts.SkipDB); err != nil {
			return nil, err
		}
	case opts.Force:
		if err := p.initModel(ctx, corpus, true, opts.SkipDB); err != nil {
			return nil, err
		}
	default:
		if err := p.Engine.Update(ctx, corpus); err != nil {
			return nil, err
		}
	}

	stats := &RunStats{DocsIngested: len(result.Documents)}

	// Stufe 3: Reconciliation und Persistenz
	if opts.SkipDB || p.Store == nil {
		log.Info("Datenbank-Schritte übersprungen")
	} else if err := p.persistModelState(ctx, corpus, stats); err != nil {
		return nil, err
	}

	p.backupToS3(result.RawPath)
	log.Info("End-to-End-Lauf abgeschlossen",
		zap.Int("documents", stats.DocsIngested),
		zap.Int("assigned", stats.Assigned))
	return stats, nil
}

// initModel kapselt den (ggf. erzwungenen) Kaltstart. Beim erzwungenen
// Re-Init werden die abgeleiteten Topic-Tabellen geleert, sonst würden alte
// und neue Topic-Semantik unter derselben ID kollidieren.
func (p *Pipeline) initModel(ctx context.Context, corpus []topics.Document, force, skipDB bool) error {
	if force && !skipDB && p.Store != nil {
		if err := p.Store.ResetTopicData(); err != nil {
			return err
		}
	}
	return p.Engine.Initialize(ctx, corpus, force)
}

// persistModelState schreibt Topics, Terme, Zuordnungen und Trends in den
// Store. Ein Fehler der Trend-Aggregation nach erfolgreichem
// Zuordnungs-Schritt ist nicht fatal: Trends sind jederzeit neu berechenbar.
func (p *Pipeline) persistModelState(ctx context.Context, corpus []topics.Document, stats *RunStats) error {
	summary, err := p.Engine.Summary()
	if err != nil {
		return err
	}
	termsByTopic, err := p.Engine.Terms()
	if err != nil {
		return err
	}

	topicRows := make([]models.Topic, 0, len(summary))
	termRows := make([]models.TopicTerm, 0)
	for _, s := range summary {
		topicRows = append(topicRows, models.Topic{
			TopicID:  s.TopicID,
			Label:    s.Label,
			TopTerms: joinTerms(termsByTopic[s.TopicID]),
			Size:     s.Size,
		})
		for _, t := range termsByTopic[s.TopicID] {
			termRows = append(termRows, models.TopicTerm{TopicID: s.TopicID, Term: t.Term, Weight: t.Weight})
		}
	}
	stats.Topics = len(topicRows)

	if err := p.Store.UpsertTopics(topicRows); err != nil {
		return err
	}
	if err := p.Store.ReplaceTopicTerms(termRows); err != nil {
		return err
	}

	engineOut, err := p.Engine.Assign(ctx, corpus)
	if err != nil {
		return err
	}

	keys := make([]string, 0, len(engineOut))
	for _, a := range engineOut {
		keys = append(keys, a.Key)
	}
	idMapping, err := p.Reconciler.ResolveIDs(keys)
	if err != nil {
		return err
	}

	assignments := p.Reconciler.BuildAssignments(engineOut, idMapping)
	if err := p.Store.UpsertAssignments(assignments); err != nil {
		return err
	}
	stats.Assigned = len(assignments)

	// Trends: nicht fatal, jederzeit neu berechenbar
	if err := p.aggregateAndStoreTrends(assignments); err != nil {
		p.Logger.Error("Trend-Aggregation fehlgeschlagen, Lauf gilt trotzdem als erfolgreich", zap.Error(err))
	}
	return nil
}

func (p *Pipeline) aggregateAndStoreTrends(assignments []models.TopicAssignment) error {
	ids := make([]int64, 0, len(assignments))
	for _, a := range assignments {
		ids = append(ids, a.DocID)
	}
	docs, err := p.Store.DocumentsByID(ids)
	if err != nil {
		return err
	}
	trends := p.Reconciler.AggregateTrends(assignments, docs)
	return p.Store.UpsertTrends(trends)
}

// backupToS3 kopiert Artefakt und Roh-Batch offsite, falls konfiguriert.
// Fehler sind nicht fatal.
func (p *Pipeline) backupToS3(rawPath string) {
	if p.S3Client == nil || !p.Config.S3Enabled {
		return
	}
	for prefix, path := range map[string]string{
		"artifacts": p.Config.ModelArtifactPath,
		"raw":       rawPath,
	} {
		if path == "" {
			continue
		}
		link, err := storage.UploadLocalFile(p.S3Client, p.Config, prefix, path)
		if err != nil {
			p.Logger.Warn("S3-Backup fehlgeschlagen", zap.String("path", path), zap.Error(err))
			continue
		}
		p.Logger.Info("S3-Backup hochgeladen", zap.String("link", link))
	}
}

// RunAllSlices führt den End-to-End-Lauf für alle aktivierten Ausschnitte
// aus der Datenbank aus (Cron-Pfad). Fehler einzelner Ausschnitte werden
// geloggt, die übrigen laufen weiter.
func (p *Pipeline) RunAllSlices(ctx context.Context) (int, error) {
	if p.Store == nil {
		return 0, errors.New("pipeline: kein store konfiguriert")
	}

	var slices []models.SearchSlice
	if err := p.Store.DB.Where("enabled = ?", true).Find(&slices).Error; err != nil {
		return 0, &store.PersistenceError{Table: "search_slices", Err: err}
	}

	total := 0
	for _, slice := range slices {
		stats, err := p.RunEndToEnd(ctx, RunOptions{
			FromYear:      slice.FromYear,
			ToYear:        slice.ToYear,
			Lang:          slice.Lang,
			Limit:         slice.MaxDocs,
			InitIfMissing: true,
		})
		if err != nil {
			p.Logger.Error("Ausschnitt fehlgeschlagen", zap.String("slice", slice.Name), zap.Error(err))
			continue
		}
		total += stats.DocsIngested
	}
	return total, nil
}

// ToEngineCorpus reicht die stabilen Schlüssel der Dokumente zusammen mit den
// Texten an die Engine durch.
func ToEngineCorpus(docs []models.Document) []topics.Document {
	corpus := make([]topics.Document, len(docs))
	for i, d := range docs {
		corpus[i] = topics.Document{Key: d.CoreID, Title: d.Title, Abstract: d.Abstract}
	}
	return corpus
}

func joinTerms(terms []topics.TermWeight) string {
	parts := make([]string, 0, len(terms))
	for _, t := range terms {
		parts = append(parts, t.Term)
	}
	return strings.Join(parts, ", ")
}

// acquireRunLock legt eine exklusive Lock-Datei an. Existiert sie bereits,
// läuft ein anderer Pipeline-Prozess gegen dasselbe Artefakt.
func acquireRunLock(path string) (func(), error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return nil, fmt.Errorf("pipeline läuft bereits (lock-datei %s vorhanden)", path)
		}
		return nil, err
	}
	fmt.Fprintf(f, "%d\n", os.Getpid())
	f.Close()
	return func() { os.Remove(path) }, nil
}
