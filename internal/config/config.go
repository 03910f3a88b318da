package config

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Service struct {
	Environment string `envconfig:"SERVICE_ENVIRONMENT" required:"true"`
	HealthPort  string `envconfig:"SERVICE_HEALTH_PORT" default:"8081"`
}

type ClickHouse struct {
	Host            string `envconfig:"CLICKHOUSE_HOST" required:"true"`
	Port            string `envconfig:"CLICKHOUSE_PORT" required:"true"`
	Database        string `envconfig:"CLICKHOUSE_DB" required:"true"`
	User            string `envconfig:"CLICKHOUSE_USER" default:""`
	Password        string `envconfig:"CLICKHOUSE_PASSWORD" default:""`
	UseTLS          bool   `envconfig:"CLICKHOUSE_USE_TLS" default:"false"`
	MaxOpenConns    int    `envconfig:"CLICKHOUSE_MAX_OPEN_CONNS" default:"5"`
	MaxIdleConns    int    `envconfig:"CLICKHOUSE_MAX_IDLE_CONNS" default:"2"`
	ConnMaxLifetime int    `envconfig:"CLICKHOUSE_CONN_MAX_LIFETIME_SEC" default:"3600"`
}

type Redis struct {
	Host     string `envconfig:"REDIS_HOST" required:"true"`
	Port     string `envconfig:"REDIS_PORT" required:"true"`
	Password string `envconfig:"REDIS_PASSWORD" default:""`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
}

type Postgres struct {
	DSN string `envconfig:"POSTGRES_DSN" required:"true"`
}

type SQS struct {
	Region                string `envconfig:"SQS_REGION" required:"true"`
	Endpoint              string `envconfig:"SQS_ENDPOINT"`
	IngestionQueueURL     string `envconfig:"SQS_INGESTION_QUEUE_URL" required:"true"`
	TraceUpsertQueueURL   string `envconfig:"SQS_TRACE_UPSERT_QUEUE_URL" required:"true"`
	EvalExecutionQueueURL string `envconfig:"SQS_EVAL_EXECUTION_QUEUE_URL" required:"true"`
}

type LLM struct {
	BaseURL string `envconfig:"LLM_BASE_URL" default:"https://api.openai.com/v1"`
	APIKey  string `envconfig:"LLM_API_KEY" default:""`
}

type Worker struct {
	MaxMessages     int32 `envconfig:"WORKER_MAX_MESSAGES" default:"10"`
	WaitTimeSeconds int32 `envconfig:"WORKER_WAIT_TIME_SEC" default:"20"`
	BufferSize      int   `envconfig:"WORKER_BUFFER_SIZE" default:"100"`
	Concurrency     int   `envconfig:"WORKER_CONCURRENCY" default:"4"`
	EvalMaxAttempts int   `envconfig:"WORKER_EVAL_MAX_ATTEMPTS" default:"3"`
}

type Config struct {
	Service    Service
	ClickHouse ClickHouse
	Redis      Redis
	Postgres   Postgres
	SQS        SQS
	LLM        LLM
	Worker     Worker
}

// Load reads configuration from the environment. A .env file, when present,
// seeds variables without overriding ones already set.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	return &cfg, nil
}
