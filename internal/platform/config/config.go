// Package config loads application configuration from environment variables.
//
// Configuration is a single flat struct parsed with caarlos0/env. A local
// .env file is loaded first when present so development deployments do not
// need to export everything by hand.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	AppEnv      string `env:"APP_ENV" envDefault:"local"`
	PostgresDSN string `env:"POSTGRES_DSN,required"`
	HealthPort  int    `env:"HEALTH_PORT" envDefault:"8080"`

	// Database pool
	DBMaxConnections    int32         `env:"DB_MAX_CONNECTIONS" envDefault:"10"`
	DBMinConnections    int32         `env:"DB_MIN_CONNECTIONS" envDefault:"2"`
	DBMaxConnIdleTime   time.Duration `env:"DB_MAX_CONN_IDLE_TIME" envDefault:"30m"`
	DBMaxConnLifetime   time.Duration `env:"DB_MAX_CONN_LIFETIME" envDefault:"1h"`
	DBHealthCheckPeriod time.Duration `env:"DB_HEALTH_CHECK_PERIOD" envDefault:"1m"`

	// Embeddings
	EmbeddingAPIKey     string `env:"EMBEDDING_API_KEY"`
	EmbeddingModel      string `env:"EMBEDDING_MODEL" envDefault:"text-embedding-3-small"`
	EmbeddingDimensions int    `env:"EMBEDDING_DIMENSIONS" envDefault:"1536"`
	EmbeddingRPS        int    `env:"EMBEDDING_RPS" envDefault:"5"`

	// Deduplication
	DedupBatchSize           int           `env:"DEDUP_BATCH_SIZE" envDefault:"50"`
	DedupTopK                int           `env:"DEDUP_TOP_K" envDefault:"5"`
	DedupSimilarityThreshold float32       `env:"DEDUP_SIMILARITY_THRESHOLD" envDefault:"0.85"`
	DedupWindow              time.Duration `env:"DEDUP_WINDOW" envDefault:"168h"`
	DedupPollInterval        time.Duration `env:"DEDUP_POLL_INTERVAL" envDefault:"30s"`

	// Translation
	TranslationAPIKey         string        `env:"TRANSLATION_API_KEY"`
	TranslationModel          string        `env:"TRANSLATION_MODEL" envDefault:"gpt-4o-mini"`
	TranslationRPS            int           `env:"TRANSLATION_RPS" envDefault:"2"`
	TranslationBatchSize      int           `env:"TRANSLATION_BATCH_SIZE" envDefault:"20"`
	TranslationConcurrency    int64         `env:"TRANSLATION_CONCURRENCY" envDefault:"16"`
	TranslationTimeout        time.Duration `env:"TRANSLATION_TIMEOUT" envDefault:"60s"`
	TranslationPollInterval   time.Duration `env:"TRANSLATION_POLL_INTERVAL" envDefault:"15s"`
	TranslationStuckAfter     time.Duration `env:"TRANSLATION_STUCK_AFTER" envDefault:"10m"`
	TargetLanguage            string        `env:"TARGET_LANGUAGE" envDefault:"en"`
	PriorityHighWindowHours   int           `env:"PRIORITY_HIGH_WINDOW_HOURS" envDefault:"6"`
	PriorityNormalWindowHours int           `env:"PRIORITY_NORMAL_WINDOW_HOURS" envDefault:"72"`

	// Job retry
	JobMaxAttempts int           `env:"JOB_MAX_ATTEMPTS" envDefault:"3"`
	JobBaseDelay   time.Duration `env:"JOB_BASE_DELAY" envDefault:"1s"`
	JobMaxDelay    time.Duration `env:"JOB_MAX_DELAY" envDefault:"60s"`

	// Notifications (optional; noop sink when token is empty)
	NotifyBotToken string `env:"NOTIFY_BOT_TOKEN"`
	NotifyChatID   int64  `env:"NOTIFY_CHAT_ID"`

	// Leader election
	LeaderElectionEnabled bool `env:"LEADER_ELECTION_ENABLED" envDefault:"true"`
}

func Load() (*Config, error) {
	_ = godotenv.Load() //nolint:errcheck // .env file is optional, error is expected when not present

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing environment config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.DedupSimilarityThreshold <= 0 || c.DedupSimilarityThreshold > 1 {
		return fmt.Errorf("dedup similarity threshold %.2f outside (0, 1]: %w",
			c.DedupSimilarityThreshold, errInvalidConfig)
	}

	if c.TranslationConcurrency < 1 {
		return fmt.Errorf("translation concurrency %d must be >= 1: %w",
			c.TranslationConcurrency, errInvalidConfig)
	}

	if c.JobMaxAttempts < 1 {
		return fmt.Errorf("job max attempts %d must be >= 1: %w",
			c.JobMaxAttempts, errInvalidConfig)
	}

	if c.PriorityHighWindowHours >= c.PriorityNormalWindowHours {
		return fmt.Errorf("priority high window %dh must be below normal window %dh: %w",
			c.PriorityHighWindowHours, c.PriorityNormalWindowHours, errInvalidConfig)
	}

	return nil
}
