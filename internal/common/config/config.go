// internal/common/config/config.go
package config

import (
	"fmt"
	"time"
)

// Config is the main application configuration struct.
type Config struct {
	App          AppConfig               `mapstructure:"app"`
	Server       ServerConfig            `mapstructure:"server"`
	Camunda      CamundaConfig           `mapstructure:"camunda"`
	Database     DatabaseConfig          `mapstructure:"database"`
	Workers      map[string]WorkerConfig `mapstructure:"workers"`
	Auth         AuthConfig              `mapstructure:"auth"`
	Integrations IntegrationConfig       `mapstructure:"integrations"`
	Intake       IntakeConfig            `mapstructure:"intake"`
	Duplicates   DuplicatesConfig        `mapstructure:"duplicates"`
	Search       SearchConfig            `mapstructure:"search"`
	Logging      LoggingConfig           `mapstructure:"logging"`
	Telemetry    TelemetryConfig         `mapstructure:"telemetry"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type ServerConfig struct {
	Port            int `mapstructure:"port"`
	ReadTimeout     int `mapstructure:"read_timeout"`     // milliseconds
	WriteTimeout    int `mapstructure:"write_timeout"`    // milliseconds
	ShutdownTimeout int `mapstructure:"shutdown_timeout"` // milliseconds
	MetricsPort     int `mapstructure:"metrics_port"`
	// TrustedProxies lists proxy IPs or CIDRs whose X-Forwarded-For is believed.
	// Empty means the socket peer is the client.
	TrustedProxies []string `mapstructure:"trusted_proxies"`
}

// Addr returns the listen address for the public API.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf(":%d", s.Port)
}

type CamundaConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	BrokerAddress  string `mapstructure:"broker_address"`
	ProcessID      string `mapstructure:"process_id"`
	DecisionMsg    string `mapstructure:"decision_message"`
	MessageTTL     int    `mapstructure:"message_ttl"` // milliseconds
	MaxJobsActive  int    `mapstructure:"max_jobs_active"`
	Timeout        int    `mapstructure:"timeout"`         // milliseconds
	RequestTimeout int    `mapstructure:"request_timeout"` // milliseconds
}

type DatabaseConfig struct {
	Mongo         MongoConfig         `mapstructure:"mongo"`
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
}

type MongoConfig struct {
	URI             string `mapstructure:"uri"`
	Database        string `mapstructure:"database"`
	MaxPoolSize     uint64 `mapstructure:"max_pool_size"`
	MinPoolSize     uint64 `mapstructure:"min_pool_size"`
	ConnectTimeout  int    `mapstructure:"connect_timeout"` // milliseconds
	SocketTimeout   int    `mapstructure:"socket_timeout"`  // milliseconds
	ImageBucket     string `mapstructure:"image_bucket"`
	SubmissionsColl string `mapstructure:"submissions_collection"`
	BusinessesColl  string `mapstructure:"businesses_collection"`
}

type PostgresConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type ElasticsearchConfig struct {
	Enabled   bool     `mapstructure:"enabled"`
	Addresses []string `mapstructure:"addresses"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`
	URL       string   `mapstructure:"url"`
}

// GetAddresses returns the configured addresses, falling back to the single URL.
func (e ElasticsearchConfig) GetAddresses() []string {
	if len(e.Addresses) > 0 {
		return e.Addresses
	}
	if e.URL != "" {
		return []string{e.URL}
	}
	return nil
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// WorkerConfig holds the core settings applicable to every worker.
type WorkerConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxJobsActive int  `mapstructure:"max_jobs_active"`
	Timeout       int  `mapstructure:"timeout"`     // milliseconds
	MaxRetries    int  `mapstructure:"max_retries"` // For error handling
}

// AuthConfig configures bearer-token checks on the admin routes.
type AuthConfig struct {
	JWTSecret      string   `mapstructure:"jwt_secret"`
	AdminRole      string   `mapstructure:"admin_role"`
	SigningMethods []string `mapstructure:"signing_methods"`
}

// IntegrationConfig holds settings for AWS and the image processor.
type IntegrationConfig struct {
	AWS struct {
		Region string `mapstructure:"region"`
		SES    struct {
			Enabled   bool   `mapstructure:"enabled"`
			FromEmail string `mapstructure:"from_email"`
		} `mapstructure:"ses"`
		SNS struct {
			Enabled            bool   `mapstructure:"enabled"`
			DefaultSMSSenderID string `mapstructure:"default_sms_sender_id"`
		} `mapstructure:"sns"`
	} `mapstructure:"aws"`

	ImageProcessor struct {
		BaseURL string `mapstructure:"base_url"`
		Timeout int    `mapstructure:"timeout"` // milliseconds
	} `mapstructure:"image_processor"`
}

type IntakeConfig struct {
	RateLimitWindow         int   `mapstructure:"rate_limit_window"` // milliseconds
	CheckDuplicatesOnSubmit bool  `mapstructure:"check_duplicates_on_submit"`
	MaxImageBytes           int64 `mapstructure:"max_image_bytes"`
}

type DuplicatesConfig struct {
	BatchChunkSize  int `mapstructure:"batch_chunk_size"`
	StatsSampleSize int `mapstructure:"stats_sample_size"`
	StatsWindowDays int `mapstructure:"stats_window_days"`
	StatsCacheTTL   int `mapstructure:"stats_cache_ttl"` // milliseconds
}

// SearchConfig selects the backend for the public business listing.
type SearchConfig struct {
	Backend string `mapstructure:"backend"` // "mongo" or "elasticsearch"
	Index   string `mapstructure:"index"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

type TelemetryConfig struct {
	ServiceName    string  `mapstructure:"service_name"`
	TracingEnabled bool    `mapstructure:"tracing_enabled"`
	SampleRatio    float64 `mapstructure:"sample_ratio"`
}

// GetDuration converts milliseconds from config to time.Duration
func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}
