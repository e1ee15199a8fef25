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

// Config holds all application configuration
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Kafka     KafkaConfig
	Redis     RedisConfig
	Provider  ProviderConfig
	Kite      KiteConfig
	SMTP      SMTPConfig
	Import    ImportConfig
	Analysis  AnalysisConfig
	Logging   LoggingConfig
	Telemetry TelemetryConfig

	// FilePath points at the optional YAML file with sectors, recipients and the watchlist
	FilePath string
	File     FileConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port string
	Host string
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Host          string
	Port          string
	User          string
	Password      string
	DBName        string
	SSLMode       string
	MigrationsDir string
}

// KafkaConfig holds Kafka configuration. An empty broker list disables Kafka.
type KafkaConfig struct {
	Brokers         []string
	ExecutionsTopic string
	HoldingsTopic   string
	AlertsTopic     string
	GroupID         string
}

func (k KafkaConfig) Enabled() bool { return len(k.Brokers) > 0 }

// RedisConfig holds the price cache settings. An empty address disables caching.
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	SeriesTTL time.Duration
	QuoteTTL  time.Duration
}

// ProviderConfig selects the market data source
type ProviderConfig struct {
	Name         string // yahoo, kite
	YahooBaseURL string
	Timeout      time.Duration
	SymbolSuffix string
	Archive      bool
}

// KiteConfig holds Zerodha Kite Connect credentials
type KiteConfig struct {
	APIKey      string
	AccessToken string
	Exchange    string
}

func (k KiteConfig) Enabled() bool { return k.APIKey != "" && k.AccessToken != "" }

// SMTPConfig holds outbound mail settings
type SMTPConfig struct {
	Host      string
	Port      int
	Username  string
	Password  string
	From      string
	DefaultTo string
}

// ImportConfig tunes ledger imports
type ImportConfig struct {
	BatchSize int
}

// AnalysisConfig tunes series fetching for signals, behavior and simulations
type AnalysisConfig struct {
	LookbackDays int
	FetchTimeout time.Duration
	Concurrency  int
	AlertEvery   time.Duration
	// LiveQuotes makes PRICE alert rules use the live quote instead of the last close
	LiveQuotes bool
}

// LoggingConfig selects the log level and encoding
type LoggingConfig struct {
	Level  string
	Format string
}

// TelemetryConfig toggles tracing
type TelemetryConfig struct {
	Enabled bool
	Version string
}

// FileConfig is the optional YAML configuration
type FileConfig struct {
	Sectors    map[string]string `yaml:"sectors"`
	Recipients map[string]string `yaml:"recipients"`
	Watchlist  []string          `yaml:"watchlist"`
}

// Load reads configuration from environment variables, after loading a .env file if present
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "8080"),
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
		},
		Database: DatabaseConfig{
			Host:          getEnv("DB_HOST", "localhost"),
			Port:          getEnv("DB_PORT", "5432"),
			User:          getEnv("DB_USER", "postgres"),
			Password:      getEnv("DB_PASSWORD", "postgres"),
			DBName:        getEnv("DB_NAME", "tradejournal"),
			SSLMode:       getEnv("DB_SSLMODE", "disable"),
			MigrationsDir: getEnv("DB_MIGRATIONS_DIR", "db/migrations"),
		},
		Kafka: KafkaConfig{
			Brokers:         getEnvList("KAFKA_BROKERS", nil),
			ExecutionsTopic: getEnv("KAFKA_EXECUTIONS_TOPIC", "trade-executions"),
			HoldingsTopic:   getEnv("KAFKA_HOLDINGS_TOPIC", "holdings-snapshots"),
			AlertsTopic:     getEnv("KAFKA_ALERTS_TOPIC", "alerts-triggered"),
			GroupID:         getEnv("KAFKA_GROUP_ID", "trade-journal"),
		},
		Redis: RedisConfig{
			Addr:      getEnv("REDIS_ADDR", ""),
			Password:  getEnv("REDIS_PASSWORD", ""),
			DB:        getEnvInt("REDIS_DB", 0),
			SeriesTTL: getEnvDuration("REDIS_SERIES_TTL", 6*time.Hour),
			QuoteTTL:  getEnvDuration("REDIS_QUOTE_TTL", time.Minute),
		},
		Provider: ProviderConfig{
			Name:         strings.ToLower(getEnv("PRICE_PROVIDER", "yahoo")),
			YahooBaseURL: getEnv("YAHOO_BASE_URL", "https://query1.finance.yahoo.com"),
			Timeout:      getEnvDuration("PROVIDER_TIMEOUT", 10*time.Second),
			SymbolSuffix: getEnv("SYMBOL_SUFFIX", ".NS"),
			Archive:      getEnvBool("PRICE_ARCHIVE", true),
		},
		Kite: KiteConfig{
			APIKey:      getEnv("KITE_API_KEY", ""),
			AccessToken: getEnv("KITE_ACCESS_TOKEN", ""),
			Exchange:    getEnv("KITE_EXCHANGE", "NSE"),
		},
		SMTP: SMTPConfig{
			Host:      getEnv("SMTP_HOST", ""),
			Port:      getEnvInt("SMTP_PORT", 587),
			Username:  getEnv("SMTP_USERNAME", ""),
			Password:  getEnv("SMTP_PASSWORD", ""),
			From:      getEnv("SMTP_FROM", ""),
			DefaultTo: getEnv("ALERT_EMAIL_TO", ""),
		},
		Import: ImportConfig{
			BatchSize: getEnvInt("IMPORT_BATCH_SIZE", 50),
		},
		Analysis: AnalysisConfig{
			LookbackDays: getEnvInt("ANALYSIS_LOOKBACK_DAYS", 400),
			FetchTimeout: getEnvDuration("ANALYSIS_FETCH_TIMEOUT", 10*time.Second),
			Concurrency:  getEnvInt("ANALYSIS_CONCURRENCY", 4),
			AlertEvery:   getEnvDuration("ALERT_INTERVAL", 15*time.Minute),
			LiveQuotes:   getEnvBool("ALERT_LIVE_QUOTES", false),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Telemetry: TelemetryConfig{
			Enabled: getEnvBool("TRACING_ENABLED", false),
			Version: getEnv("SERVICE_VERSION", "dev"),
		},
		FilePath: getEnv("CONFIG_FILE", ""),
	}

	if cfg.FilePath != "" {
		file, err := LoadFile(cfg.FilePath)
		if err != nil {
			return nil, err
		}
		cfg.File = *file
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile reads the YAML configuration file
func LoadFile(path string) (*FileConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var fc FileConfig
	if err := yaml.Unmarshal(b, &fc); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	for i, s := range fc.Watchlist {
		fc.Watchlist[i] = strings.ToUpper(strings.TrimSpace(s))
	}
	return &fc, nil
}

// Validate checks values that would otherwise fail later at runtime
func (c *Config) Validate() error {
	switch c.Provider.Name {
	case "yahoo":
	case "kite":
		if !c.Kite.Enabled() {
			return fmt.Errorf("PRICE_PROVIDER=kite requires KITE_API_KEY and KITE_ACCESS_TOKEN")
		}
	default:
		return fmt.Errorf("unsupported PRICE_PROVIDER %q", c.Provider.Name)
	}
	if c.Import.BatchSize <= 0 {
		return fmt.Errorf("IMPORT_BATCH_SIZE must be positive, got %d", c.Import.BatchSize)
	}
	return nil
}

// ConnectionString returns the PostgreSQL connection string
func (d *DatabaseConfig) ConnectionString() string {
	return "postgres://" + d.User + ":" + d.Password + "@" + d.Host + ":" + d.Port + "/" + d.DBName + "?sslmode=" + d.SSLMode
}

// Addr returns the HTTP listen address
func (s *ServerConfig) Addr() string {
	return s.Host + ":" + s.Port
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if v, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return v
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if v, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return v
	}
	return defaultValue
}

// getEnvList splits a comma separated value, dropping blanks
func getEnvList(key string, defaultValue []string) []string {
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
	return out
}
