package config

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config enthält alle Konfigurationsparameter aus Umgebungsvariablen.
type Config struct {
	DBHost     string `envconfig:"DB_HOST" required:"true"`
	DBPort     int    `envconfig:"DB_PORT" default:"5432"`
	DBUser     string `envconfig:"DB_USER" required:"true"`
	DBPassword string `envconfig:"DB_PASSWORD" required:"true"`
	DBName     string `envconfig:"DB_NAME" required:"true"`

	HTTPPort     string `envconfig:"HTTP_PORT" default:"4242"`
	APISecretKey string `envconfig:"API_SECRET_KEY"`

	// CORE v3 Search API
	CoreAPIKey      string `envconfig:"CORE_API_KEY" required:"true"`
	CoreBaseURL     string `envconfig:"CORE_BASE_URL" default:"https://api.core.ac.uk/v3/search/works"`
	CorePageSize    int    `envconfig:"CORE_PAGE_SIZE" default:"100"`
	CoreMaxPages    int    `envconfig:"CORE_MAX_PAGES" default:"200"`
	CoreMaxRetries  int    `envconfig:"CORE_MAX_RETRIES" default:"5"`
	CoreHTTPTimeout int    `envconfig:"CORE_HTTP_TIMEOUT_SECONDS" default:"30"`

	// Topic-Engine
	EmbeddingModel    string  `envconfig:"EMBEDDING_MODEL" default:"text-embedding-004"`
	GeminiAPIKey      string  `envconfig:"GEMINI_API_KEY"`
	MinTopicSize      int     `envconfig:"MIN_TOPIC_SIZE" default:"15"`
	MinDF             int     `envconfig:"MIN_DF" default:"5"`
	MaxDF             float64 `envconfig:"MAX_DF" default:"0.9"`
	Decay             float64 `envconfig:"DECAY" default:"0.01"`
	ModelArtifactPath string  `envconfig:"MODEL_ARTIFACT_PATH" default:"models/artifacts/topic_model.json"`

	// Datenverzeichnis für Roh- und bereinigte Batches
	DataDir string `envconfig:"DATA_DIR" default:"data"`

	CronSchedule string `envconfig:"CRON_SCHEDULE" default:"0 0 * * *"`

	// Optionales S3-Offsite-Backup für Artefakt und Roh-Batches
	S3Enabled bool   `envconfig:"S3_ENABLED" default:"false"`
	S3Key     string `envconfig:"S3_KEY"`
	S3Secret  string `envconfig:"S3_SECRET"`
	S3URL     string `envconfig:"S3_URL"`
	S3Region  string `envconfig:"S3_REGION"`
	S3Bucket  string `envconfig:"S3_BUCKET"`
}

// DSN gibt den Data Source Name für die PostgreSQL-Verbindung zurück.
func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=disable",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort)
}

// Load lädt die Konfiguration aus den Umgebungsvariablen.
func Load() (*Config, error) {
	_ = godotenv.Load()
	var c Config
	err := envconfig.Process("", &c)
	return &c, err
}
