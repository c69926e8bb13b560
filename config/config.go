package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the complete router configuration
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Router        RouterConfig
	Breaker       BreakerConfig
	Batch         BatchConfig
	Observability ObservabilityConfig
	Environment   string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// DatabaseConfig holds PostgreSQL configuration for metrics persistence.
// When Enabled is false the performance tracker runs in-memory only.
// When ConnectionString (from DATABASE_URL) is set, it takes precedence
// over individual fields.
type DatabaseConfig struct {
	Enabled          bool
	ConnectionString string
	Host             string
	Port             int
	User             string
	Password         string
	Database         string
	SSLMode          string
	MaxOpenConns     int
	MaxIdleConns     int
}

// RouterConfig holds discovery and selection configuration
type RouterConfig struct {
	// BackendsFile is the YAML file listing backend descriptors
	BackendsFile string

	// DiscoveryTTL is how long a discovery pass stays valid
	DiscoveryTTL time.Duration

	// ProbeTimeout bounds each model-list probe
	ProbeTimeout time.Duration

	// ResourceTTL is how long a resource snapshot stays valid
	ResourceTTL time.Duration

	// MinPerformanceSamples is how many recorded calls a pair needs
	// before tracked performance replaces the quality prior in scoring
	MinPerformanceSamples int

	// QualityFloor drops candidates whose quality prior is below it,
	// unless the caller prefers speed
	QualityFloor float64

	// MaxCallAttempts bounds retries (including fallbacks) per request
	MaxCallAttempts int

	// CallTimeout bounds each outbound generation call
	CallTimeout time.Duration

	// FlushEvery is how many tracker updates trigger a metrics flush
	FlushEvery int
}

// BreakerConfig holds circuit breaker thresholds
type BreakerConfig struct {
	// FailureRateThreshold opens the breaker once the rolling failure
	// rate reaches it, provided MinSamples outcomes were observed
	FailureRateThreshold float64

	// ConsecutiveFailures opens the breaker regardless of rate
	ConsecutiveFailures int

	// MinSamples is the minimum outcome count before the rate applies
	MinSamples int

	// Cooldown is how long the breaker stays open before a trial
	Cooldown time.Duration

	// SuccessThreshold is the consecutive successes needed to close
	// from half-open
	SuccessThreshold int
}

// BatchConfig holds batch executor configuration
type BatchConfig struct {
	// BaseConcurrency is the caller-independent concurrency minimum
	BaseConcurrency int

	// MaxConcurrency is the absolute admission ceiling
	MaxConcurrency int
}

// ObservabilityConfig holds logging configuration
type ObservabilityConfig struct {
	LogLevel  string
	LogFormat string // json or console
}

// BackendDescriptor describes one configured backend endpoint
type BackendDescriptor struct {
	URL          string `yaml:"url" validate:"required,url"`
	Name         string `yaml:"name" validate:"required"`
	PriorityTier int    `yaml:"priority_tier" validate:"gte=0"`
	Kind         string `yaml:"kind" validate:"omitempty,oneof=local remote"`
}

// BackendsFile is the on-disk shape of the backends descriptor file
type BackendsFile struct {
	Backends []BackendDescriptor `yaml:"backends" validate:"required,min=1,dive"`
}

// New creates a Config by loading environment variables
func New() (*Config, error) {
	// Load .env if present; real env always wins
	_ = godotenv.Load(".env")

	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getEnvAsInt("SERVER_PORT", 8080),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Database: DatabaseConfig{
			Enabled:          getEnvAsBool("DB_ENABLED", false),
			ConnectionString: getEnv("DATABASE_URL", ""),
			Host:             getEnv("DB_HOST", "localhost"),
			Port:             getEnvAsInt("DB_PORT", 5432),
			User:             getEnv("DB_USER", "router"),
			Password:         getEnv("DB_PASSWORD", ""),
			Database:         getEnv("DB_NAME", "llm_router"),
			SSLMode:          getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:     getEnvAsInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:     getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
		},
		Router: RouterConfig{
			BackendsFile:          getEnv("BACKENDS_FILE", "backends.yaml"),
			DiscoveryTTL:          getEnvAsDuration("DISCOVERY_TTL", 30*time.Second),
			ProbeTimeout:          getEnvAsDuration("PROBE_TIMEOUT", 2*time.Second),
			ResourceTTL:           getEnvAsDuration("RESOURCE_TTL", 5*time.Minute),
			MinPerformanceSamples: getEnvAsInt("MIN_PERFORMANCE_SAMPLES", 3),
			QualityFloor:          getEnvAsFloat("QUALITY_FLOOR", 0.45),
			MaxCallAttempts:       getEnvAsInt("MAX_CALL_ATTEMPTS", 3),
			CallTimeout:           getEnvAsDuration("CALL_TIMEOUT", 120*time.Second),
			FlushEvery:            getEnvAsInt("METRICS_FLUSH_EVERY", 10),
		},
		Breaker: BreakerConfig{
			FailureRateThreshold: getEnvAsFloat("BREAKER_FAILURE_RATE", 0.5),
			ConsecutiveFailures:  getEnvAsInt("BREAKER_CONSECUTIVE_FAILURES", 5),
			MinSamples:           getEnvAsInt("BREAKER_MIN_SAMPLES", 10),
			Cooldown:             getEnvAsDuration("BREAKER_COOLDOWN", 30*time.Second),
			SuccessThreshold:     getEnvAsInt("BREAKER_SUCCESS_THRESHOLD", 2),
		},
		Batch: BatchConfig{
			BaseConcurrency: getEnvAsInt("BATCH_BASE_CONCURRENCY", 2),
			MaxConcurrency:  getEnvAsInt("BATCH_MAX_CONCURRENCY", 50),
		},
		Observability: ObservabilityConfig{
			LogLevel:  getEnv("LOG_LEVEL", "info"),
			LogFormat: getEnv("LOG_FORMAT", "json"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadBackends reads and parses the backends descriptor file
func (c *Config) LoadBackends() ([]BackendDescriptor, error) {
	return LoadBackendsFile(c.Router.BackendsFile)
}

// LoadBackendsFile reads a backends descriptor file from the given path
func LoadBackendsFile(path string) ([]BackendDescriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read backends file: %w", err)
	}

	var file BackendsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse backends file: %w", err)
	}

	if len(file.Backends) == 0 {
		return nil, fmt.Errorf("backends file %s lists no backends", path)
	}

	for i := range file.Backends {
		b := &file.Backends[i]
		if b.Kind == "" {
			b.Kind = inferKind(b.URL)
		}
	}

	return file.Backends, nil
}

// inferKind guesses whether a backend is local or remote from its URL
func inferKind(url string) string {
	if strings.Contains(url, "localhost") || strings.Contains(url, "127.0.0.1") || strings.Contains(url, "0.0.0.0") {
		return "local"
	}
	return "remote"
}

// validate checks cross-field constraints not expressible as struct tags
func (c *Config) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Router.DiscoveryTTL <= 0 {
		return fmt.Errorf("discovery TTL must be positive")
	}
	if c.Router.ProbeTimeout <= 0 {
		return fmt.Errorf("probe timeout must be positive")
	}
	if c.Breaker.FailureRateThreshold <= 0 || c.Breaker.FailureRateThreshold > 1 {
		return fmt.Errorf("breaker failure rate must be in (0,1]")
	}
	if c.Breaker.SuccessThreshold < 1 {
		return fmt.Errorf("breaker success threshold must be at least 1")
	}
	if c.Batch.BaseConcurrency < 1 {
		return fmt.Errorf("batch base concurrency must be at least 1")
	}
	if c.Batch.MaxConcurrency < c.Batch.BaseConcurrency {
		return fmt.Errorf("batch max concurrency must be >= base concurrency")
	}
	return nil
}

// ConnString builds the lib/pq connection string
func (d *DatabaseConfig) ConnString() string {
	if d.ConnectionString != "" {
		return d.ConnectionString
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Database, d.SSLMode)
}

// LogString returns a connection description safe for logging
func (d *DatabaseConfig) LogString() string {
	if d.ConnectionString != "" {
		return "DATABASE_URL"
	}
	return fmt.Sprintf("%s:%d/%s", d.Host, d.Port, d.Database)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
