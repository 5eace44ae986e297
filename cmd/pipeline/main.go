// Befehl pipeline führt die Ingestion- und Topic-Model-Schritte direkt von
// der Kommandozeile aus, ohne den HTTP-Server zu starten.
//
// Unterbefehle:
//
//	ingest  – Seiten aus der CORE-API holen, normalisieren und ablegen
//	init    – Topic-Modell aus einem Clean-Batch neu aufbauen
//	update  – bestehendes Topic-Modell inkrementell fortschreiben
//	run     – kompletter End-to-End-Lauf (Ingestion, Modell, Datenbank)
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"topic-pulse/config"
	"topic-pulse/providers/coreapi"
	"topic-pulse/services"
	"topic-pulse/storage"
	"topic-pulse/store"
	"topic-pulse/topics"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	logging, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("can't initialize zap logger: %v", err)
	}
	defer logging.Sync()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatal("Config load error", zap.Error(err))
	}

	ctx := context.Background()

	switch os.Args[1] {
	case "ingest":
		err = runIngest(ctx, cfg, logging, os.Args[2:])
	case "init":
		err = runInit(ctx, cfg, logging, os.Args[2:])
	case "update":
		err = runUpdate(ctx, cfg, logging, os.Args[2:])
	case "run":
		err = runEndToEnd(ctx, cfg, logging, os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}

	if err != nil {
		logging.Fatal("Command failed", zap.String("command", os.Args[1]), zap.Error(err))
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: pipeline <ingest|init|update|run> [flags]")
}

func runIngest(ctx context.Context, cfg *config.Config, logging *zap.Logger, args []string) error {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	from := fs.Int("from", time.Now().Year()-1, "Startjahr des Zeitraums")
	to := fs.Int("to", time.Now().Year(), "Endjahr des Zeitraums")
	lang := fs.String("lang", "en", "Sprachcode für die Suche")
	limit := fs.Int("limit", 0, "maximale Dokumentanzahl (0 = unbegrenzt)")
	withDB := fs.Bool("db", false, "Dokumente zusätzlich in die Datenbank schreiben")
	fs.Parse(args)

	var st *store.Store
	if *withDB {
		var err error
		st, err = openStore(cfg, logging)
		if err != nil {
			return err
		}
	}

	client := coreapi.NewClient(cfg, logging)
	ingest := services.NewIngestService(cfg, client, st, logging)
	result, err := ingest.Run(ctx, *from, *to, *lang, *limit)
	if err != nil {
		return err
	}
	logging.Info("Ingestion abgeschlossen",
		zap.Int("documents", len(result.Documents)),
		zap.Int("total_hits", result.TotalHits),
		zap.String("clean_path", result.CleanPath))
	return nil
}

func runInit(ctx context.Context, cfg *config.Config, logging *zap.Logger, args []string) error {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	batch := fs.String("batch", "", "Pfad zu einem Clean-Batch (JSONL)")
	force := fs.Bool("force", false, "bestehendes Modell-Artefakt überschreiben")
	fs.Parse(args)

	if *batch == "" {
		return errors.New("init: -batch ist erforderlich")
	}
	docs, err := services.ReadCleanBatch(*batch)
	if err != nil {
		return err
	}

	engine := newEngine(cfg, logging)
	if err := engine.Initialize(ctx, services.ToEngineCorpus(docs), *force); err != nil {
		return err
	}

	// Bei erzwungenem Neuaufbau sind die alten Topic-IDs in der Datenbank
	// wertlos und werden mit entfernt.
	if *force {
		st, err := openStore(cfg, logging)
		if err != nil {
			logging.Warn("Datenbank nicht erreichbar, alte Topic-Daten bleiben stehen", zap.Error(err))
		} else if err := st.ResetTopicData(); err != nil {
			return err
		}
	}

	logging.Info("Modell initialisiert", zap.Int("documents", len(docs)))
	return nil
}

func runUpdate(ctx context.Context, cfg *config.Config, logging *zap.Logger, args []string) error {
	fs := flag.NewFlagSet("update", flag.ExitOnError)
	batch := fs.String("batch", "", "Pfad zu einem Clean-Batch (JSONL)")
	fs.Parse(args)

	if *batch == "" {
		return errors.New("update: -batch ist erforderlich")
	}
	docs, err := services.ReadCleanBatch(*batch)
	if err != nil {
		return err
	}

	engine := newEngine(cfg, logging)
	if err := engine.Update(ctx, services.ToEngineCorpus(docs)); err != nil {
		return err
	}
	logging.Info("Modell aktualisiert", zap.Int("documents", len(docs)))
	return nil
}

func runEndToEnd(ctx context.Context, cfg *config.Config, logging *zap.Logger, args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	from := fs.Int("from", time.Now().Year()-1, "Startjahr des Zeitraums")
	to := fs.Int("to", time.Now().Year(), "Endjahr des Zeitraums")
	lang := fs.String("lang", "en", "Sprachcode für die Suche")
	limit := fs.Int("limit", 0, "maximale Dokumentanzahl (0 = unbegrenzt)")
	initIfMissing := fs.Bool("init-if-missing", false, "Modell initialisieren, falls noch keines existiert")
	skipDB := fs.Bool("skip-db", false, "Datenbank-Schritte überspringen")
	force := fs.Bool("force", false, "Modell neu aufbauen statt fortschreiben")
	fs.Parse(args)

	var st *store.Store
	if !*skipDB {
		var err error
		st, err = openStore(cfg, logging)
		if err != nil {
			return err
		}
	}

	var s3Client *s3.Client
	if cfg.S3Enabled {
		var err error
		s3Client, err = storage.NewS3Client(cfg)
		if err != nil {
			return err
		}
	}

	client := coreapi.NewClient(cfg, logging)
	ingest := services.NewIngestService(cfg, client, st, logging)
	engine := newEngine(cfg, logging)
	reconciler := services.NewReconciler(st, logging)
	pipeline := services.NewPipeline(cfg, st, ingest, engine, reconciler, s3Client, logging)

	stats, err := pipeline.RunEndToEnd(ctx, services.RunOptions{
		FromYear:      *from,
		ToYear:        *to,
		Lang:          *lang,
		Limit:         *limit,
		InitIfMissing: *initIfMissing,
		SkipDB:        *skipDB,
		Force:         *force,
	})
	if err != nil {
		return err
	}
	logging.Info("Lauf abgeschlossen",
		zap.Int("ingested", stats.DocsIngested),
		zap.Int("assigned", stats.Assigned),
		zap.Int("topics", stats.Topics))
	return nil
}

func newEngine(cfg *config.Config, logging *zap.Logger) *topics.Engine {
	encoder := topics.NewGeminiEncoder(cfg.GeminiAPIKey, cfg.EmbeddingModel, logging)
	return topics.NewEngine(topics.Options{
		ArtifactPath: cfg.ModelArtifactPath,
		MinTopicSize: cfg.MinTopicSize,
		MinDF:        cfg.MinDF,
		MaxDF:        cfg.MaxDF,
		Decay:        cfg.Decay,
	}, encoder, logging)
}

func openStore(cfg *config.Config, logging *zap.Logger) (*store.Store, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}
	st := store.New(db, logging)
	if err := st.AutoMigrate(); err != nil {
		return nil, err
	}
	return st, nil
}
