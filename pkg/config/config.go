package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Broker transport names accepted by BROKER.
const (
	BrokerRedis = "redis"
	BrokerKafka = "kafka"
)

// Config holds all application configuration
type Config struct {
	Service    ServiceConfig
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Broker     BrokerConfig
	Estimation EstimationConfig
	Catalog    CatalogConfig
	OTEL       OTELConfig
}

// ServiceConfig holds process-wide settings
type ServiceConfig struct {
	Name        string
	Environment string
	LogLevel    string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host string
	Port int
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
	// StateCacheTTL bounds how long a cached queue state may be served.
	StateCacheTTL time.Duration
}

// BrokerConfig selects and configures the event transport
type BrokerConfig struct {
	Transport string

	// Redis pub/sub channels
	QueueEventsChannel string
	UpdatesChannel     string

	// Kafka topics
	KafkaBrokers      []string
	KafkaGroupID      string
	QueueEventsTopic  string
	UpdatesTopic      string
	KafkaPollTimeout  time.Duration
	KafkaWriteTimeout time.Duration
}

// EstimationConfig holds the queueing model tunables
type EstimationConfig struct {
	// Alpha is the EMA smoothing factor applied to arrival rates.
	Alpha float64
	// ThresholdPct is the minimum percent change in wait time that triggers a publish.
	ThresholdPct float64
	// WindowMinutes is the arrival-rate window length.
	WindowMinutes int
	// Workers is the number of dispatcher goroutines; one facility always maps to one worker.
	Workers int
	// QueueSize is the per-worker pending event capacity.
	QueueSize int
}

// CatalogConfig holds facility catalog sources
type CatalogConfig struct {
	MapServiceURL     string
	MapServiceTimeout time.Duration
	File              string
}

// OTELConfig holds OpenTelemetry configuration
type OTELConfig struct {
	ServiceName    string
	ServiceVersion string
	Endpoint       string
	Enabled        bool
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Service: ServiceConfig{
			Name:        getEnv("SERVICE_NAME", "waittime-service"),
			Environment: getEnv("ENVIRONMENT", "production"),
			LogLevel:    getEnv("LOG_LEVEL", "info"),
		},
		Server: ServerConfig{
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
			Port: getEnvAsInt("SERVICE_PORT", 8001),
		},
		Database: DatabaseConfig{
			Host:     getEnv("POSTGRES_HOST", "localhost"),
			Port:     getEnvAsInt("POSTGRES_PORT", 5432),
			User:     getEnv("POSTGRES_USER", "postgres"),
			Password: getEnv("POSTGRES_PASSWORD", "postgres"),
			Database: getEnv("POSTGRES_DB", "stadium_waittime"),
			SSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Host:          getEnv("REDIS_HOST", "localhost"),
			Port:          getEnvAsInt("REDIS_PORT", 6379),
			Password:      getEnv("REDIS_PASSWORD", ""),
			DB:            getEnvAsInt("REDIS_DB", 0),
			StateCacheTTL: getEnvAsDuration("STATE_CACHE_TTL", 60*time.Second),
		},
		Broker: BrokerConfig{
			Transport:          strings.ToLower(getEnv("BROKER", BrokerRedis)),
			QueueEventsChannel: getEnv("QUEUE_EVENTS_CHANNEL", "queue:events"),
			UpdatesChannel:     getEnv("WAITTIME_UPDATES_CHANNEL", "waittime:updates"),
			KafkaBrokers:       getEnvAsList("KAFKA_BROKERS", []string{"localhost:9092"}),
			KafkaGroupID:       getEnv("KAFKA_GROUP_ID", "waittime-service"),
			QueueEventsTopic:   getEnv("QUEUE_EVENTS_TOPIC", "queue-events"),
			UpdatesTopic:       getEnv("WAITTIME_UPDATES_TOPIC", "waittime-updates"),
			KafkaPollTimeout:   getEnvAsDuration("KAFKA_POLL_TIMEOUT", 5*time.Second),
			KafkaWriteTimeout:  getEnvAsDuration("KAFKA_WRITE_TIMEOUT", 10*time.Second),
		},
		Estimation: EstimationConfig{
			Alpha:         getEnvAsFloat("EMA_ALPHA", 0.3),
			ThresholdPct:  getEnvAsFloat("SIGNIFICANT_CHANGE_THRESHOLD", 15.0),
			WindowMinutes: getEnvAsInt("ARRIVAL_RATE_WINDOW_MINUTES", 5),
			Workers:       getEnvAsInt("ESTIMATION_WORKERS", 8),
			QueueSize:     getEnvAsInt("ESTIMATION_QUEUE_SIZE", 256),
		},
		Catalog: CatalogConfig{
			MapServiceURL:     getEnv("MAP_SERVICE_URL", "http://mapservice:8000"),
			MapServiceTimeout: getEnvAsDuration("MAP_SERVICE_TIMEOUT", 10*time.Second),
			File:              getEnv("FACILITY_CATALOG_FILE", ""),
		},
		OTEL: OTELConfig{
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "waittime-service"),
			ServiceVersion: getEnv("OTEL_SERVICE_VERSION", "1.0.0"),
			Endpoint:       getEnv("OTEL_ENDPOINT", ""),
			Enabled:        getEnvAsBool("OTEL_ENABLED", false),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges of the estimation and broker settings
func (c *Config) Validate() error {
	if c.Estimation.Alpha <= 0 || c.Estimation.Alpha > 1 {
		return fmt.Errorf("config: EMA_ALPHA must be in (0, 1], got %v", c.Estimation.Alpha)
	}
	if c.Estimation.ThresholdPct <= 0 {
		return fmt.Errorf("config: SIGNIFICANT_CHANGE_THRESHOLD must be positive, got %v", c.Estimation.ThresholdPct)
	}
	if c.Estimation.WindowMinutes <= 0 {
		return fmt.Errorf("config: ARRIVAL_RATE_WINDOW_MINUTES must be positive, got %d", c.Estimation.WindowMinutes)
	}
	if c.Estimation.Workers <= 0 {
		return fmt.Errorf("config: ESTIMATION_WORKERS must be positive, got %d", c.Estimation.Workers)
	}
	if c.Estimation.QueueSize <= 0 {
		return fmt.Errorf("config: ESTIMATION_QUEUE_SIZE must be positive, got %d", c.Estimation.QueueSize)
	}
	switch c.Broker.Transport {
	case BrokerRedis:
	case BrokerKafka:
		if len(c.Broker.KafkaBrokers) == 0 {
			return fmt.Errorf("config: KAFKA_BROKERS is required when BROKER=kafka")
		}
	default:
		return fmt.Errorf("config: unknown BROKER %q", c.Broker.Transport)
	}
	return nil
}

// Window returns the arrival-rate window as a duration
func (c *EstimationConfig) Window() time.Duration {
	return time.Duration(c.WindowMinutes) * time.Minute
}

// DatabaseDSN returns the PostgreSQL connection string
func (c *DatabaseConfig) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// RedisAddr returns the Redis address
func (c *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
		// bare integers are seconds
		if secs, err := strconv.Atoi(value); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
