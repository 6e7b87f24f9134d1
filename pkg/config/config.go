// Package config loads groupstats configuration from a YAML file with
// environment-variable overrides. Every subsystem (GroupMe client, message
// cache, reconstruction, HTTP server, Redis, Postgres, Kafka, logging,
// metrics) has its own typed section.
package config

import (
	"encoding/base64"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	"unicode"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	GroupMe     GroupMeConfig     `yaml:"groupme"`
	Cache       CacheConfig       `yaml:"cache"`
	Stats       StatsConfig       `yaml:"stats"`
	Reconstruct ReconstructConfig `yaml:"reconstruct"`
	Server      ServerConfig      `yaml:"server"`
	Redis       RedisConfig       `yaml:"redis"`
	Postgres    PostgresConfig    `yaml:"postgres"`
	Kafka       KafkaConfig       `yaml:"kafka"`
	Logging     LoggingConfig     `yaml:"logging"`
	Metrics     MetricsConfig     `yaml:"metrics"`
}

// GroupMeConfig holds the API endpoint and credentials. Token takes
// precedence over TokenFile.
type GroupMeConfig struct {
	BaseURL   string        `yaml:"baseUrl"`
	Token     string        `yaml:"token"`
	TokenFile string        `yaml:"tokenFile"`
	PageSize  int           `yaml:"pageSize"`
	Timeout   time.Duration `yaml:"timeout"`
	Retry     RetryConfig   `yaml:"retry"`
}

// RetryConfig controls backoff for GroupMe requests.
type RetryConfig struct {
	MaxAttempts  int           `yaml:"maxAttempts"`
	InitialDelay time.Duration `yaml:"initialDelay"`
	MaxDelay     time.Duration `yaml:"maxDelay"`
}

// CacheConfig locates the on-disk message cache and group directory.
type CacheConfig struct {
	DataDir       string `yaml:"dataDir"`
	DirectoryFile string `yaml:"directoryFile"`
	Reload        bool   `yaml:"reload"`
}

// StatsConfig controls how statistics are reported. Timezone is an IANA
// name; empty means the local zone.
type StatsConfig struct {
	Timezone string `yaml:"timezone"`
	Top      int    `yaml:"top"`
	// SkipStopWords and MinWordLength filter the word statistics.
	SkipStopWords bool `yaml:"skipStopWords"`
	MinWordLength int  `yaml:"minWordLength"`
}

// Location resolves Timezone.
func (s StatsConfig) Location() (*time.Location, error) {
	if s.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return nil, fmt.Errorf("loading timezone %q: %w", s.Timezone, err)
	}
	return loc, nil
}

// ReconstructConfig tunes the constrained phrase search.
type ReconstructConfig struct {
	WordListPath       string `yaml:"wordListPath"`
	EarlyEmitThreshold int    `yaml:"earlyEmitThreshold"`
	MaxFrontier        int    `yaml:"maxFrontier"`
	DedupeStates       bool   `yaml:"dedupeStates"`
	MaxPathsPerState   int    `yaml:"maxPathsPerState"`
	Wildcards          string `yaml:"wildcards"`
	Order              string `yaml:"order"`
}

// ServerConfig holds HTTP server settings. RateLimit is the number of
// reconstruct and verify calls a client may make per minute; zero disables
// limiting.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	RequestTimeout  time.Duration `yaml:"requestTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	RateLimit       int           `yaml:"rateLimit"`
	CORSOrigins     []string      `yaml:"corsOrigins"`
}

// RedisConfig holds Redis connection and caching parameters.
type RedisConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"poolSize"`
	CacheTTL time.Duration `yaml:"cacheTTL"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslMode"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// KafkaConfig holds broker and topic settings for candidate publishing.
type KafkaConfig struct {
	Enabled         bool     `yaml:"enabled"`
	Brokers         []string `yaml:"brokers"`
	CandidatesTopic string   `yaml:"candidatesTopic"`
	ConsumerGroup   string   `yaml:"consumerGroup"`
	BatchSize       int      `yaml:"batchSize"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads a YAML config file (if provided) and applies environment-variable
// overrides. Missing values keep their defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the configuration used when no file is supplied.
func Default() *Config {
	return &Config{
		GroupMe: GroupMeConfig{
			BaseURL:   "https://api.groupme.com/v3/",
			TokenFile: ".groupme.env",
			PageSize:  100,
			Timeout:   15 * time.Second,
			Retry: RetryConfig{
				MaxAttempts:  3,
				InitialDelay: 200 * time.Millisecond,
				MaxDelay:     5 * time.Second,
			},
		},
		Cache: CacheConfig{
			DataDir:       "messages",
			DirectoryFile: "dir.json",
		},
		Stats: StatsConfig{
			Top: 10,
		},
		Reconstruct: ReconstructConfig{
			EarlyEmitThreshold: 3,
			MaxPathsPerState:   4,
			Wildcards:          "_?*",
			Order:              "recent-first",
		},
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    60 * time.Second,
			RequestTimeout:  45 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			RateLimit:       60,
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			PoolSize: 10,
			CacheTTL: 10 * time.Minute,
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "groupstats",
			User:            "groupstats",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    5,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Kafka: KafkaConfig{
			Brokers:         []string{"localhost:9092"},
			CandidatesTopic: "reconstruct-candidates",
			ConsumerGroup:   "groupstats-watch",
			BatchSize:       100,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Port: 9090,
		},
	}
}

// Validate rejects values the rest of the program cannot work with.
func (c *Config) Validate() error {
	if c.GroupMe.PageSize <= 0 || c.GroupMe.PageSize > 100 {
		return fmt.Errorf("groupme.pageSize must be in 1..100, got %d", c.GroupMe.PageSize)
	}
	if c.Reconstruct.EarlyEmitThreshold < 0 {
		return fmt.Errorf("reconstruct.earlyEmitThreshold must not be negative")
	}
	if c.Server.RateLimit < 0 {
		return fmt.Errorf("server.rateLimit must not be negative")
	}
	if c.Reconstruct.MaxFrontier < 0 {
		return fmt.Errorf("reconstruct.maxFrontier must not be negative")
	}
	if _, err := c.Stats.Location(); err != nil {
		return err
	}
	if c.Stats.MinWordLength < 0 {
		return fmt.Errorf("stats.minWordLength must not be negative")
	}
	switch c.Reconstruct.Order {
	case "recent-first", "oldest-first":
	default:
		return fmt.Errorf("reconstruct.order must be recent-first or oldest-first, got %q", c.Reconstruct.Order)
	}
	return nil
}

// ResolveToken returns the GroupMe API token. A token file may hold the token
// base64-encoded; when decoding fails or yields something that is not
// alphanumeric the raw first line is used.
func (g GroupMeConfig) ResolveToken() (string, error) {
	if g.Token != "" {
		return g.Token, nil
	}
	if g.TokenFile == "" {
		return "", fmt.Errorf("no groupme token configured")
	}
	data, err := os.ReadFile(g.TokenFile)
	if err != nil {
		return "", fmt.Errorf("reading token file %s: %w", g.TokenFile, err)
	}
	line, _, _ := strings.Cut(string(data), "\n")
	return DecodeToken(strings.TrimSpace(line)), nil
}

// DecodeToken applies the base64-or-raw rule used for token files.
func DecodeToken(raw string) string {
	decoded, err := base64.StdEncoding.DecodeString(raw)
	if err != nil || len(decoded) == 0 || !isAlnum(string(decoded)) {
		return raw
	}
	return string(decoded)
}

func isAlnum(s string) bool {
	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// applyEnvOverrides reads GS_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("GS_GROUPME_TOKEN"); v != "" {
		cfg.GroupMe.Token = v
	}
	if v := os.Getenv("GS_GROUPME_BASE_URL"); v != "" {
		cfg.GroupMe.BaseURL = v
	}
	if v := os.Getenv("GS_CACHE_DIR"); v != "" {
		cfg.Cache.DataDir = v
	}
	if v := os.Getenv("GS_CACHE_RELOAD"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Cache.Reload = b
		}
	}
	if v := os.Getenv("GS_TIMEZONE"); v != "" {
		cfg.Stats.Timezone = v
	}
	if v := os.Getenv("GS_SKIP_STOP_WORDS"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Stats.SkipStopWords = b
		}
	}
	if v := os.Getenv("GS_WORDLIST"); v != "" {
		cfg.Reconstruct.WordListPath = v
	}
	if v := os.Getenv("GS_MAX_FRONTIER"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Reconstruct.MaxFrontier = n
		}
	}
	if v := os.Getenv("GS_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("GS_CORS_ORIGINS"); v != "" {
		cfg.Server.CORSOrigins = strings.Split(v, ",")
	}
	if v := os.Getenv("GS_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
		cfg.Redis.Enabled = true
	}
	if v := os.Getenv("GS_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("GS_POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
		cfg.Postgres.Enabled = true
	}
	if v := os.Getenv("GS_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("GS_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
		cfg.Kafka.Enabled = true
	}
	if v := os.Getenv("GS_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("GS_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}
