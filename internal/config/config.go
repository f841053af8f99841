// Package config loads the process-wide configuration for the tool-execution
// core. Config is read once at process startup and passed explicitly to the
// components that need it; no package in this module consults environment
// variables or a package-level config global on its own.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root process configuration. Every field is populated from
// environment variables, optionally overlaid with a YAML file for local
// development (see Load).
type Config struct {
	// OrgID is the organization this deployment's infrastructure
	// connections (Postgres/MySQL/MariaDB/Mongo/Redis) belong to. Each of
	// those tool packages checks it against the caller's organization with
	// safety.RequireResourceOrg before touching the connection, since one
	// process here targets exactly one organization's databases rather than
	// a multi-tenant pool keyed per call.
	OrgID        string             `yaml:"org_id"`
	Server       ServerConfig       `yaml:"server"`
	LM           LMConfig           `yaml:"lm"`
	Mongo        MongoConfig        `yaml:"mongo"`
	Redis        RedisConfig        `yaml:"redis"`
	S3           S3Config           `yaml:"s3"`
	MySQL        SQLConfig          `yaml:"mysql"`
	MariaDB      SQLConfig          `yaml:"mariadb"`
	Postgres     SQLConfig          `yaml:"postgres"`
	Scheduler    SchedulerConfig    `yaml:"scheduler"`
	Stripe       StripeConfig       `yaml:"stripe"`
	GitHub       GitHubConfig       `yaml:"github"`
	Telemetry    TelemetryConfig    `yaml:"telemetry"`
	Temporal     TemporalConfig     `yaml:"temporal"`
}

// SQLConfig configures a single tool-facing SQL database connection (one of
// mariadb.Register/mysql.Register/postgres.Register). DSN is empty by
// default, which leaves the corresponding toolset unregistered: these tools
// each target one specific deployment database, not a multi-tenant
// connection pool, so there is nothing sensible to default it to.
type SQLConfig struct {
	DSN             string        `yaml:"-"`
	QueryTimeout    time.Duration `yaml:"query_timeout"`
	DefaultRowLimit int           `yaml:"default_row_limit"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Addr           string        `yaml:"addr"`
	ShutdownGrace  time.Duration `yaml:"shutdown_grace"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// LMConfig selects and configures the active LM provider adapter (C12).
type LMConfig struct {
	// Provider is one of "anthropic", "openai", "bedrock".
	Provider       string        `yaml:"provider"`
	AnthropicKey   string        `yaml:"-"`
	OpenAIKey      string        `yaml:"-"`
	BedrockRegion  string        `yaml:"bedrock_region"`
	Model          string        `yaml:"model"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// MongoConfig configures the Mongo-backed conversation/execution/session
// stores (C13).
type MongoConfig struct {
	URI      string        `yaml:"uri"`
	Database string        `yaml:"database"`
	Timeout  time.Duration `yaml:"timeout"`
}

// RedisConfig configures the approval/notification bus (C14) and the Pulse
// event bus used for multi-replica fan-out.
type RedisConfig struct {
	Addr string `yaml:"addr"`
	DB   int    `yaml:"db"`
}

// S3Config configures the object storage backend used by backup/volume-backup
// tools.
type S3Config struct {
	Bucket string `yaml:"bucket"`
	Region string `yaml:"region"`
}

// SchedulerConfig holds the cloud/self-hosted scheduler settings: IsCloud
// selects a hosted jobs service reached over JobsURL using APIKey. Load only
// reads and validates these fields; cmd/server does not consult them, and
// both schedule-backed toolsets run on the in-memory memstore.Schedules,
// which neither calls a jobs service nor runs cron jobs locally.
type SchedulerConfig struct {
	IsCloud bool   `yaml:"is_cloud"`
	JobsURL string `yaml:"jobs_url"`
	APIKey  string `yaml:"-"`
}

// StripeConfig configures the billing tool surface.
type StripeConfig struct {
	SecretKey string `yaml:"-"`
}

// GitHubConfig configures the OAuth app used by the github provider tool.
type GitHubConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"-"`
}

// TelemetryConfig configures tracing/metrics export (C10).
type TelemetryConfig struct {
	ServiceName    string `yaml:"service_name"`
	OTLPEndpoint   string `yaml:"otlp_endpoint"`
}

// TemporalConfig configures the optional Temporal-backed agent engine.
type TemporalConfig struct {
	HostPort  string `yaml:"host_port"`
	Namespace string `yaml:"namespace"`
	TaskQueue string `yaml:"task_queue"`
}

// Load reads environment variables into a Config, optionally overlaying a
// YAML file at path first (path may be empty to skip the overlay). Secret
// fields are always taken from the environment even when a file is provided,
// so a checked-in YAML file never needs to carry credentials.
func Load(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %q: %w", path, err)
		}
		expanded := os.ExpandEnv(string(data))
		decoder := yaml.NewDecoder(strings.NewReader(expanded))
		decoder.KnownFields(true)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, fmt.Errorf("config: parse %q: %w", path, err)
		}
	}

	applyEnvOverrides(&cfg)
	applyDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("ORG_ID")); v != "" {
		cfg.OrgID = v
	}
	if v := strings.TrimSpace(os.Getenv("ADDR")); v != "" {
		cfg.Server.Addr = v
	}
	if v := strings.TrimSpace(os.Getenv("LM_PROVIDER")); v != "" {
		cfg.LM.Provider = v
	}
	if v := strings.TrimSpace(os.Getenv("LM_MODEL")); v != "" {
		cfg.LM.Model = v
	}
	cfg.LM.AnthropicKey = os.Getenv("ANTHROPIC_API_KEY")
	cfg.LM.OpenAIKey = os.Getenv("OPENAI_API_KEY")
	if v := strings.TrimSpace(os.Getenv("BEDROCK_REGION")); v != "" {
		cfg.LM.BedrockRegion = v
	}
	if v := strings.TrimSpace(os.Getenv("MONGO_URI")); v != "" {
		cfg.Mongo.URI = v
	}
	if v := strings.TrimSpace(os.Getenv("MONGO_DATABASE")); v != "" {
		cfg.Mongo.Database = v
	}
	if v := strings.TrimSpace(os.Getenv("REDIS_ADDR")); v != "" {
		cfg.Redis.Addr = v
	}
	if v := strings.TrimSpace(os.Getenv("REDIS_DB")); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Redis.DB = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("S3_BUCKET")); v != "" {
		cfg.S3.Bucket = v
	}
	if v := strings.TrimSpace(os.Getenv("S3_REGION")); v != "" {
		cfg.S3.Region = v
	}
	cfg.MySQL.DSN = os.Getenv("MYSQL_DSN")
	cfg.MariaDB.DSN = os.Getenv("MARIADB_DSN")
	cfg.Postgres.DSN = os.Getenv("POSTGRES_DSN")
	// IS_CLOUD/JOBS_URL/API_KEY fill SchedulerConfig; validate requires
	// JOBS_URL whenever IS_CLOUD is set.
	if v := strings.TrimSpace(os.Getenv("IS_CLOUD")); v != "" {
		cfg.Scheduler.IsCloud = v == "true" || v == "1"
	}
	if v := strings.TrimSpace(os.Getenv("JOBS_URL")); v != "" {
		cfg.Scheduler.JobsURL = v
	}
	cfg.Scheduler.APIKey = os.Getenv("API_KEY")
	cfg.Stripe.SecretKey = os.Getenv("STRIPE_SECRET_KEY")
	if v := strings.TrimSpace(os.Getenv("GITHUB_CLIENT_ID")); v != "" {
		cfg.GitHub.ClientID = v
	}
	cfg.GitHub.ClientSecret = os.Getenv("GITHUB_CLIENT_SECRET")
	if v := strings.TrimSpace(os.Getenv("OTEL_SERVICE_NAME")); v != "" {
		cfg.Telemetry.ServiceName = v
	}
	if v := strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")); v != "" {
		cfg.Telemetry.OTLPEndpoint = v
	}
	if v := strings.TrimSpace(os.Getenv("TEMPORAL_HOST_PORT")); v != "" {
		cfg.Temporal.HostPort = v
	}
	if v := strings.TrimSpace(os.Getenv("TEMPORAL_NAMESPACE")); v != "" {
		cfg.Temporal.Namespace = v
	}
	if v := strings.TrimSpace(os.Getenv("TEMPORAL_TASK_QUEUE")); v != "" {
		cfg.Temporal.TaskQueue = v
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Server.ShutdownGrace == 0 {
		cfg.Server.ShutdownGrace = 15 * time.Second
	}
	if cfg.Server.RequestTimeout == 0 {
		cfg.Server.RequestTimeout = 60 * time.Second
	}
	if cfg.LM.Provider == "" {
		cfg.LM.Provider = "anthropic"
	}
	if cfg.LM.RequestTimeout == 0 {
		cfg.LM.RequestTimeout = 90 * time.Second
	}
	if cfg.Mongo.Database == "" {
		cfg.Mongo.Database = "opscore"
	}
	if cfg.Mongo.Timeout == 0 {
		cfg.Mongo.Timeout = 5 * time.Second
	}
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = "localhost:6379"
	}
	if cfg.Temporal.TaskQueue == "" {
		cfg.Temporal.TaskQueue = "opscore-agent"
	}
	if cfg.Temporal.Namespace == "" {
		cfg.Temporal.Namespace = "default"
	}
}

func validate(cfg *Config) error {
	switch cfg.LM.Provider {
	case "anthropic", "openai", "bedrock":
	default:
		return fmt.Errorf("config: unsupported lm provider %q", cfg.LM.Provider)
	}
	if cfg.LM.Provider == "anthropic" && cfg.LM.AnthropicKey == "" {
		return fmt.Errorf("config: ANTHROPIC_API_KEY is required for lm provider %q", cfg.LM.Provider)
	}
	if cfg.LM.Provider == "openai" && cfg.LM.OpenAIKey == "" {
		return fmt.Errorf("config: OPENAI_API_KEY is required for lm provider %q", cfg.LM.Provider)
	}
	if cfg.Scheduler.IsCloud && cfg.Scheduler.JobsURL == "" {
		return fmt.Errorf("config: JOBS_URL is required when IS_CLOUD is set")
	}
	return nil
}
