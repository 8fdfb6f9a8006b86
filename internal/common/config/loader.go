// internal/common/config/loader.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Load reads configs/config.yaml, merges config.<APP_ENVIRONMENT>.yaml on top
// and lets environment variables override any key (database.mongo.uri -> DATABASE_MONGO_URI).
func Load() (*Config, error) {
	loadEnvFile()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath("../../configs")
	v.AddConfigPath(".")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	v.SetConfigName(fmt.Sprintf("config.%s", env))
	_ = v.MergeInConfig() // optional overlay

	return finish(v)
}

// LoadFromFile loads configuration from a specific file path
func LoadFromFile(path string) (*Config, error) {
	loadEnvFile()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return finish(v)
}

func finish(v *viper.Viper) (*Config, error) {
	expandEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	overrideEmptyConfig(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func loadEnvFile() {
	possiblePaths := []string{
		".env",
		"../.env",
		"../../.env",
	}

	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

// findProjectRoot walks up from the working directory looking for go.mod.
func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}

// expandEnvVars resolves ${VAR} placeholders left in string values.
func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		strVal, ok := v.Get(key).(string)
		if !ok {
			continue
		}
		if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
			expanded := os.ExpandEnv(strVal)
			if expanded != strVal {
				v.Set(key, expanded)
			}
		}
	}
}

// overrideEmptyConfig fills secrets that are commonly provided under short env names.
func overrideEmptyConfig(cfg *Config) {
	if cfg.Database.Mongo.URI == "" {
		if val := os.Getenv("MONGO_URI"); val != "" {
			cfg.Database.Mongo.URI = val
		}
	}
	if cfg.Database.Postgres.User == "" {
		if val := os.Getenv("DB_USER"); val != "" {
			cfg.Database.Postgres.User = val
		}
	}
	if cfg.Database.Postgres.Password == "" {
		if val := os.Getenv("DB_PASSWORD"); val != "" {
			cfg.Database.Postgres.Password = val
		}
	}
	if cfg.Auth.JWTSecret == "" {
		if val := os.Getenv("JWT_SECRET"); val != "" {
			cfg.Auth.JWTSecret = val
		}
	}
}

// applyDefaults sets default values for optional configuration fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "business-directory"
	}

	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8081
	}
	if cfg.Server.MetricsPort == 0 {
		cfg.Server.MetricsPort = 8080
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 15000
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 30000
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 30000
	}

	if cfg.Camunda.ProcessID == "" {
		cfg.Camunda.ProcessID = "business-submission-review"
	}
	if cfg.Camunda.DecisionMsg == "" {
		cfg.Camunda.DecisionMsg = "submission-reviewed"
	}
	if cfg.Camunda.MessageTTL == 0 {
		cfg.Camunda.MessageTTL = 3600000
	}
	if cfg.Camunda.MaxJobsActive == 0 {
		cfg.Camunda.MaxJobsActive = 10
	}
	if cfg.Camunda.Timeout == 0 {
		cfg.Camunda.Timeout = 30000
	}
	if cfg.Camunda.RequestTimeout == 0 {
		cfg.Camunda.RequestTimeout = 30000
	}

	if cfg.Database.Mongo.MaxPoolSize == 0 {
		cfg.Database.Mongo.MaxPoolSize = 50
	}
	if cfg.Database.Mongo.MinPoolSize == 0 {
		cfg.Database.Mongo.MinPoolSize = 5
	}
	if cfg.Database.Mongo.ConnectTimeout == 0 {
		cfg.Database.Mongo.ConnectTimeout = 5000
	}
	if cfg.Database.Mongo.SocketTimeout == 0 {
		cfg.Database.Mongo.SocketTimeout = 10000
	}
	if cfg.Database.Mongo.ImageBucket == "" {
		cfg.Database.Mongo.ImageBucket = "images"
	}
	if cfg.Database.Mongo.SubmissionsColl == "" {
		cfg.Database.Mongo.SubmissionsColl = "submissions"
	}
	if cfg.Database.Mongo.BusinessesColl == "" {
		cfg.Database.Mongo.BusinessesColl = "businesses"
	}

	if cfg.Database.Postgres.MaxConnections == 0 {
		cfg.Database.Postgres.MaxConnections = 25
	}
	if cfg.Database.Postgres.MaxIdle == 0 {
		cfg.Database.Postgres.MaxIdle = 5
	}
	if cfg.Database.Postgres.SSLMode == "" {
		cfg.Database.Postgres.SSLMode = "disable"
	}

	if cfg.Auth.AdminRole == "" {
		cfg.Auth.AdminRole = "admin"
	}
	if len(cfg.Auth.SigningMethods) == 0 {
		cfg.Auth.SigningMethods = []string{"HS256", "HS512"}
	}

	if cfg.Integrations.ImageProcessor.Timeout == 0 {
		cfg.Integrations.ImageProcessor.Timeout = 15000
	}

	if cfg.Intake.RateLimitWindow == 0 {
		cfg.Intake.RateLimitWindow = 30000
	}
	if cfg.Intake.MaxImageBytes == 0 {
		cfg.Intake.MaxImageBytes = 5 << 20
	}

	if cfg.Duplicates.BatchChunkSize == 0 {
		cfg.Duplicates.BatchChunkSize = 10
	}
	if cfg.Duplicates.StatsSampleSize == 0 {
		cfg.Duplicates.StatsSampleSize = 100
	}
	if cfg.Duplicates.StatsWindowDays == 0 {
		cfg.Duplicates.StatsWindowDays = 7
	}
	if cfg.Duplicates.StatsCacheTTL == 0 {
		cfg.Duplicates.StatsCacheTTL = 300000
	}

	if cfg.Search.Backend == "" {
		cfg.Search.Backend = "mongo"
	}
	if cfg.Search.Index == "" {
		cfg.Search.Index = "businesses"
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}

	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = cfg.App.Name
	}
	if cfg.Telemetry.SampleRatio == 0 {
		cfg.Telemetry.SampleRatio = 1
	}

	for key, worker := range cfg.Workers {
		if worker.MaxJobsActive == 0 {
			worker.MaxJobsActive = 5
		}
		if worker.Timeout == 0 {
			worker.Timeout = 30000
		}
		if worker.MaxRetries == 0 {
			worker.MaxRetries = 3
		}
		cfg.Workers[key] = worker
	}
}

// validateConfig validates critical configuration fields
func validateConfig(cfg *Config) error {
	if cfg.Database.Mongo.URI == "" {
		return fmt.Errorf("database.mongo.uri is required")
	}
	if cfg.Database.Mongo.Database == "" {
		return fmt.Errorf("database.mongo.database is required")
	}

	if cfg.Camunda.Enabled && cfg.Camunda.BrokerAddress == "" {
		return fmt.Errorf("camunda.broker_address is required when camunda is enabled")
	}

	if cfg.Database.Postgres.Enabled {
		if cfg.Database.Postgres.Host == "" {
			return fmt.Errorf("database.postgres.host is required")
		}
		if cfg.Database.Postgres.Database == "" {
			return fmt.Errorf("database.postgres.database is required")
		}
		if cfg.Database.Postgres.User == "" {
			return fmt.Errorf("database.postgres.user is required")
		}
	}

	if cfg.Database.Elasticsearch.Enabled && len(cfg.Database.Elasticsearch.GetAddresses()) == 0 {
		return fmt.Errorf("database.elasticsearch.addresses or url is required")
	}

	if cfg.Database.Redis.Enabled && cfg.Database.Redis.Address == "" {
		return fmt.Errorf("database.redis.address is required")
	}

	switch cfg.Search.Backend {
	case "mongo":
	case "elasticsearch":
		if !cfg.Database.Elasticsearch.Enabled {
			return fmt.Errorf("search.backend=elasticsearch requires database.elasticsearch.enabled")
		}
	default:
		return fmt.Errorf("search.backend must be mongo or elasticsearch, got %q", cfg.Search.Backend)
	}

	if cfg.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required")
	}
	if strings.Contains(cfg.Auth.JWTSecret, "${") {
		return fmt.Errorf("auth.jwt_secret has an unresolved placeholder")
	}

	return nil
}

// GetWorkerConfig retrieves worker-specific configuration with fallback to defaults
func GetWorkerConfig(cfg *Config, workerName string) WorkerConfig {
	if worker, exists := cfg.Workers[workerName]; exists {
		return worker
	}

	return WorkerConfig{
		Enabled:       true,
		MaxJobsActive: 5,
		Timeout:       30000,
		MaxRetries:    3,
	}
}

// IsWorkerEnabled checks if a specific worker is enabled
func IsWorkerEnabled(cfg *Config, workerName string) bool {
	if worker, exists := cfg.Workers[workerName]; exists {
		return worker.Enabled
	}
	return true
}
