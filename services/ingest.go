package services

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"topic-pulse/config"
	"topic-pulse/models"
	"topic-pulse/providers/coreapi"
	"topic-pulse/store"
)

// IngestService holt einen Jahres-/Sprach-Ausschnitt seitenweise von der
// CORE-API, normalisiert die Records und schreibt Roh- und Clean-Batch als
// zeilenweises JSON. Optional werden die Dokumente direkt upserted.
type IngestService struct {
	Config *config.Config
	Client *coreapi.Client
	Store  *store.Store
	Logger *zap.Logger
}

// NewIngestService erstellt einen neuen IngestService. Store darf nil sein
// (reiner Datei-Modus, z.B. -skip-db).
func NewIngestService(cfg *config.Config, client *coreapi.Client, st *store.Store, logger *zap.Logger) *IngestService {
	return &IngestService{Config: cfg, Client: client, Store: st, Logger: logger}
}

// IngestResult fasst einen Ingestion-Lauf zusammen.
type IngestResult struct {
	Documents []models.Document
	RawPath   string
	CleanPath string
	TotalHits int
}

// Run führt die Ingestion für einen Ausschnitt aus. Jeder fatale API-Fehler
// bricht den Lauf ab; stilles Überspringen von Seiten gibt es nicht.
func (s *IngestService) Run(ctx context.Context, fromYear, toYear int, lang string, limit int) (*IngestResult, error) {
	query := coreapi.BuildQuery(fromYear, toYear, lang)
	log := s.Logger.With(zap.String("query", query))
	log.Info("Starte Ingestion")

	rawPath := filepath.Join(s.Config.DataDir, "raw", fmt.Sprintf("core_%d_%d_%s.jsonl", fromYear, toYear, lang))
	cleanPath := filepath.Join(s.Config.DataDir, "clean", fmt.Sprintf("%d_%d_%s.jsonl", fromYear, toYear, lang))
	for _, p := range []string{rawPath, cleanPath} {
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			return nil, err
		}
	}

	rawFile, err := os.Create(rawPath)
	if err != nil {
		return nil, err
	}
	defer rawFile.Close()
	rawWriter := bufio.NewWriter(rawFile)

	var docs []models.Document
	totalHits := 0
	fetched := 0

	pageSize := s.Config.CorePageSize
	maxPages := s.Config.CoreMaxPages

fetchLoop:
	for page := 0; page < maxPages; page++ {
		if limit > 0 && fetched >= limit {
			log.Info("Limit erreicht", zap.Int("limit", limit))
			break
		}

		resp, err := s.Client.SearchWorks(ctx, query, page, pageSize)
		if err != nil {
			return nil, fmt.Errorf("ingestion bei seite %d abgebrochen: %w", page, err)
		}
		totalHits = resp.TotalHits
		if len(resp.Results) == 0 {
			log.Info("Keine weiteren Ergebnisse", zap.Int("page", page))
			break
		}

		for _, raw := range resp.Results {
			if limit > 0 && fetched >= limit {
				break fetchLoop
			}

			if _, err := rawWriter.Write(append(raw, '\n')); err != nil {
				return nil, err
			}

			doc, err := coreapi.NormalizeRecord(raw)
			if err != nil {
				log.Warn("Record nicht normalisierbar, übersprungen", zap.Error(err))
				continue
			}
			if doc.CoreID == "" {
				log.Warn("Record ohne core_id, übersprungen")
				continue
			}
			docs = append(docs, *doc)
			fetched++
		}

		if fetched >= totalHits {
			log.Info("Ende der Ergebnisse erreicht", zap.Int("total_hits", totalHits))
			break
		}
	}

	if err := rawWriter.Flush(); err != nil {
		return nil, err
	}

	if err := WriteCleanBatch(cleanPath, docs); err != nil {
		return nil, err
	}

	if s.Store != nil {
		if err := s.Store.UpsertDocuments(docs); err != nil {
			return nil, err
		}
	}

	log.Info("Ingestion abgeschlossen",
		zap.Int("documents", len(docs)),
		zap.Int("total_hits", totalHits),
		zap.String("raw", rawPath),
		zap.String("clean", cleanPath))

	return &IngestResult{
		Documents: docs,
		RawPath:   rawPath,
		CleanPath: cleanPath,
		TotalHits: totalHits,
	}, nil
}

// WriteCleanBatch schreibt normalisierte Dokumente als zeilenweises JSON.
func WriteCleanBatch(path string, docs []models.Document) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	for i := range docs {
		if err := enc.Encode(&docs[i]); err != nil {
			return err
		}
	}
	return w.Flush()
}

// ReadCleanBatch liest einen Clean-Batch wieder ein (Eingabe für init/update).
func ReadCleanBatch(path string) ([]models.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var docs []models.Document
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 1024*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var doc models.Document
		if err := json.Unmarshal(line, &doc); err != nil {
			return nil, fmt.Errorf("batch-datei %s nicht lesbar: %w", path, err)
		}
		docs = append(docs, doc)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return docs, nil
}
