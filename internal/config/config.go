package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/joho/godotenv"
)

// Record source kinds.
const (
	SourceCSV      = "csv"
	SourcePostgres = "postgres"
)

// DefaultArea is the local area shown when no area is selected.
const DefaultArea = "Bents Green & Millhouses"

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	BatchSize    int
	RecordSource string
	CSVDir       string
	CSVPattern   string
	DatabaseURL  string
	DefaultArea  string

	// Postcode lookup configuration.
	PostcodeLookupURL string
	PostcodeTimeout   time.Duration
	PostcodeCacheSize int
	PostcodeCacheTTL  time.Duration
	RedisAddr         string
	RedisPassword     string
	RedisDB           int

	// Classified incident publication; disabled when no brokers are set.
	KafkaBrokers []string
	KafkaTopic   string
}

// Load reads configuration from environment variables, applying defaults where unset.
// A .env file in the working directory is loaded first if present.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	batchSize, err := sharedcfg.ParseBatchSize()
	if err != nil {
		return nil, err
	}

	postcodeTimeout, err := parsePositiveDuration("POSTCODE_TIMEOUT", "5s")
	if err != nil {
		return nil, err
	}

	cacheTTL, err := parsePositiveDuration("POSTCODE_CACHE_TTL", "24h")
	if err != nil {
		return nil, err
	}

	cacheSize, err := parseNonNegativeInt("POSTCODE_CACHE_SIZE", 500)
	if err != nil {
		return nil, err
	}

	redisDB, err := parseNonNegativeInt("REDIS_DB", 0)
	if err != nil {
		return nil, err
	}

	var brokers []string
	if raw := strings.TrimSpace(os.Getenv("KAFKA_BROKERS")); raw != "" {
		brokers = sharedcfg.ParseBrokers(raw)
	}

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		BatchSize:    batchSize,
		RecordSource: strings.ToLower(sharedcfg.EnvOrDefault("RECORD_SOURCE", SourceCSV)),
		CSVDir:       sharedcfg.EnvOrDefault("CSV_DIR", "."),
		CSVPattern:   sharedcfg.EnvOrDefault("CSV_PATTERN", "*street*.csv"),
		DatabaseURL:  os.Getenv("DATABASE_URL"),
		DefaultArea:  sharedcfg.EnvOrDefault("DEFAULT_AREA", DefaultArea),

		PostcodeLookupURL: sharedcfg.EnvOrDefault("POSTCODE_LOOKUP_URL", "https://www.doogal.co.uk/ShowMap.php"),
		PostcodeTimeout:   postcodeTimeout,
		PostcodeCacheSize: cacheSize,
		PostcodeCacheTTL:  cacheTTL,
		RedisAddr:         os.Getenv("REDIS_ADDR"),
		RedisPassword:     os.Getenv("REDIS_PASSWORD"),
		RedisDB:           redisDB,

		KafkaBrokers: brokers,
		KafkaTopic:   sharedcfg.EnvOrDefault("KAFKA_TOPIC", "classified-incidents"),
	}

	switch cfg.RecordSource {
	case SourceCSV:
		if cfg.CSVPattern == "" {
			return nil, errors.New("CSV_PATTERN is required")
		}
	case SourcePostgres:
		if cfg.DatabaseURL == "" {
			return nil, errors.New("RECORD_SOURCE is postgres but DATABASE_URL is not set")
		}
	default:
		return nil, fmt.Errorf("invalid RECORD_SOURCE %q", cfg.RecordSource)
	}
	if strings.TrimSpace(cfg.DefaultArea) == "" {
		return nil, errors.New("DEFAULT_AREA must not be blank")
	}
	if len(cfg.KafkaBrokers) > 0 && cfg.KafkaTopic == "" {
		return nil, errors.New("KAFKA_TOPIC is required when KAFKA_BROKERS is set")
	}

	return cfg, nil
}

func parsePositiveDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parseNonNegativeInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return n, nil
}
