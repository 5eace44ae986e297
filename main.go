package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"topic-pulse/config"
	"topic-pulse/models"
	"topic-pulse/providers/coreapi"
	"topic-pulse/services"
	"topic-pulse/storage"
	"topic-pulse/store"
	"topic-pulse/topics"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	docsIngestedCounter prometheus.Counter
	pipelineRunsCounter *prometheus.CounterVec
)

func init() {
	docsIngestedCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "documents_ingested_total",
			Help: "Total number of documents ingested from the CORE API.",
		},
	)
	pipelineRunsCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_runs_total",
			Help: "Total number of end-to-end pipeline runs by outcome.",
		},
		[]string{"status"},
	)
	prometheus.MustRegister(docsIngestedCounter, pipelineRunsCounter)
}

func apiKeyAuthMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		if cfg.APISecretKey == "" {
			c.Next()
			return
		}
		apiKey := c.GetHeader("X-API-KEY")
		if apiKey != cfg.APISecretKey {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized: Invalid API Key"})
			return
		}
		c.Next()
	}
}

func main() {
	logging, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("can't initialize zap logger: %v", err)
	}
	defer logging.Sync()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatal("Config load error", zap.Error(err))
	}

	// Setup Database Connection
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		logging.Fatal("Failed to connect to database", zap.Error(err))
	}
	logging.Info("Successfully connected to database.")

	st := store.New(db, logging)
	logging.Info("Running database auto-migration...")
	if err := st.AutoMigrate(); err != nil {
		logging.Fatal("Auto-migration failed", zap.Error(err))
	}

	seedDefaultSlices(db, logging)

	// Setup Services
	var s3Client *s3.Client
	if cfg.S3Enabled {
		s3Client, err = storage.NewS3Client(cfg)
		if err != nil {
			logging.Fatal("S3 client creation failed", zap.Error(err))
		}
	}

	encoder := topics.NewGeminiEncoder(cfg.GeminiAPIKey, cfg.EmbeddingModel, logging)
	engine := topics.NewEngine(topics.Options{
		ArtifactPath: cfg.ModelArtifactPath,
		MinTopicSize: cfg.MinTopicSize,
		MinDF:        cfg.MinDF,
		MaxDF:        cfg.MaxDF,
		Decay:        cfg.Decay,
	}, encoder, logging)

	client := coreapi.NewClient(cfg, logging)
	ingest := services.NewIngestService(cfg, client, st, logging)
	reconciler := services.NewReconciler(st, logging)
	pipeline := services.NewPipeline(cfg, st, ingest, engine, reconciler, s3Client, logging)

	// Setup Router
	router := gin.Default()
	router.Use(gin.Recovery())
	router.Use(apiKeyAuthMiddleware(cfg))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "model_ready": engine.Ready()})
	})

	// Setup Routes
	setupTopicRoutes(router, db, logging)
	setupDocumentRoutes(router, db, logging)
	setupSliceRoutes(router, db, logging)
	setupPipelineRoutes(router, pipeline, logging)

	// Setup Cron
	cronScheduler := cron.New()
	cronScheduler.AddFunc(cfg.CronSchedule, func() {
		logging.Info("Running scheduled pipeline job...")
		count, err := pipeline.RunAllSlices(context.Background())
		if err != nil {
			logging.Error("Cron job failed", zap.Error(err))
			pipelineRunsCounter.WithLabelValues("error").Inc()
		} else {
			logging.Info("Cron job completed", zap.Int("documents", count))
			docsIngestedCounter.Add(float64(count))
			pipelineRunsCounter.WithLabelValues("ok").Inc()
		}
	})
	cronScheduler.Start()

	logging.Info("Starting server", zap.String("port", cfg.HTTPPort))
	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	if err := srv.ListenAndServe(); err != nil {
		logging.Fatal("Failed to run server", zap.Error(err))
	}
}

// setupTopicRoutes konfiguriert die Read-Only-Endpoints der Topic-Übersicht.
func setupTopicRoutes(router *gin.Engine, db *gorm.DB, log *zap.Logger) {
	rg := router.Group("/topics")

	rg.GET("/", func(c *gin.Context) {
		var topicRows []models.Topic
		if err := db.Order("size desc").Find(&topicRows).Error; err != nil {
			log.Error("Database query for topics failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, topicRows)
	})

	rg.GET("/:id/terms", func(c *gin.Context) {
		topicID, err := strconv.Atoi(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid topic id"})
			return
		}
		var terms []models.TopicTerm
		if err := db.Where("topic_id = ?", topicID).Order("weight desc").Find(&terms).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, terms)
	})

	rg.GET("/:id/trends", func(c *gin.Context) {
		topicID, err := strconv.Atoi(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid topic id"})
			return
		}
		var trends []models.TopicTrend
		if err := db.Where("topic_id = ?", topicID).Order("year, month").Find(&trends).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, trends)
	})
}

// setupDocumentRoutes konfiguriert Dokument-Suche und -Detailansicht.
func setupDocumentRoutes(router *gin.Engine, db *gorm.DB, log *zap.Logger) {
	rg := router.Group("/documents")

	// Body-gesteuerter Endpunkt für gefilterte Abfragen
	rg.POST("/query", func(c *gin.Context) {
		type DocumentQuery struct {
			YearFrom int   `json:"year_from"`
			YearTo   int   `json:"year_to"`
			TopicIDs []int `json:"topic_ids"`
			Limit    int   `json:"limit"`
		}

		var req DocumentQuery
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}

		query := db.Model(&models.Document{})
		if len(req.TopicIDs) > 0 {
			query = query.Distinct("documents.*").
				Joins("INNER JOIN topic_assignments ta ON documents.id = ta.doc_id").
				Where("ta.topic_id IN ?", req.TopicIDs)
		}
		if req.YearFrom > 0 {
			query = query.Where("documents.year >= ?", req.YearFrom)
		}
		if req.YearTo > 0 {
			query = query.Where("documents.year <= ?", req.YearTo)
		}
		limit := req.Limit
		if limit <= 0 || limit > 100 {
			limit = 100
		}

		var docs []models.Document
		if err := query.Order("documents.year desc, documents.id desc").Limit(limit).Find(&docs).Error; err != nil {
			log.Error("Database query for documents failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, docs)
	})

	rg.GET("/:id", func(c *gin.Context) {
		id := c.Param("id")
		var doc models.Document
		if err := db.First(&doc, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "document not found"})
				return
			}
			log.Error("DB error fetching document", zap.String("id", id), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		var assignments []models.TopicAssignment
		db.Where("doc_id = ?", doc.ID).Find(&assignments)
		c.JSON(http.StatusOK, gin.H{"document": doc, "assignments": assignments})
	})
}

// setupSliceRoutes konfiguriert die Verwaltung der Such-Ausschnitte.
func setupSliceRoutes(router *gin.Engine, db *gorm.DB, log *zap.Logger) {
	rg := router.Group("/search-slices")

	rg.POST("/", func(c *gin.Context) {
		var slice models.SearchSlice
		if err := c.ShouldBindJSON(&slice); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		if err := db.Create(&slice).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create search slice"})
			return
		}
		c.JSON(http.StatusCreated, slice)
	})

	rg.GET("/", func(c *gin.Context) {
		var slices []models.SearchSlice
		if err := db.Find(&slices).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, slices)
	})
}

// setupPipelineRoutes konfiguriert asynchrone Pipeline-Trigger.
func setupPipelineRoutes(router *gin.Engine, pipeline *services.Pipeline, log *zap.Logger) {
	rg := router.Group("/pipeline")

	rg.POST("/run-all", func(c *gin.Context) {
		go func() {
			count, err := pipeline.RunAllSlices(context.Background())
			if err != nil {
				log.Error("Async pipeline run failed", zap.Error(err))
				pipelineRunsCounter.WithLabelValues("error").Inc()
			} else {
				docsIngestedCounter.Add(float64(count))
				pipelineRunsCounter.WithLabelValues("ok").Inc()
				log.Info("Async pipeline run completed", zap.Int("documents", count))
			}
		}()
		c.JSON(http.StatusAccepted, gin.H{"message": "Pipeline run for all slices triggered."})
	})
}

// seedDefaultSlices legt einen Standard-Ausschnitt an, falls noch keiner existiert.
func seedDefaultSlices(db *gorm.DB, log *zap.Logger) {
	var count int64
	db.Model(&models.SearchSlice{}).Count(&count)
	if count > 0 {
		return
	}
	slice := models.SearchSlice{
		Name:     "default",
		FromYear: time.Now().Year() - 1,
		ToYear:   time.Now().Year(),
		Lang:     "en",
		Enabled:  true,
	}
	if err := db.Create(&slice).Error; err != nil {
		log.Warn("Seeding default search slice failed", zap.Error(err))
		return
	}
	log.Info("Seeded default search slice", zap.String("name", slice.Name))
}
