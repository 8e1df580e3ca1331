// Package config loads service configuration from built-in defaults, an
// optional YAML file and LCA_* environment variables, in that order.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"lca_wages/internal/logging"
	"lca_wages/internal/query"
	"lca_wages/internal/storage"
)

// PathEnvVar names the environment variable holding the YAML config path.
const PathEnvVar = "LCA_CONFIG"

// EnvPrefix is stripped from environment variables before mapping them onto
// keys: LCA_DATABASE_MAX_CONNS sets database.max_conns.
const EnvPrefix = "LCA_"

// Config is the full service configuration.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Query    QueryConfig    `koanf:"query"`
	Cache    CacheConfig    `koanf:"cache"`
	NATS     NATSConfig     `koanf:"nats"`
	Logging  LoggingConfig  `koanf:"logging"`
	Load     LoadConfig     `koanf:"load"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Addr            string        `koanf:"addr" validate:"required"`
	ReadTimeout     time.Duration `koanf:"read_timeout" validate:"gt=0"`
	WriteTimeout    time.Duration `koanf:"write_timeout" validate:"gt=0"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`
	// SearchRateLimit is the number of search requests allowed per client IP per
	// minute. Zero disables the limiter.
	SearchRateLimit int `koanf:"search_rate_limit" validate:"gte=0"`
	// WarmOnStart primes the cache before serving.
	WarmOnStart bool `koanf:"warm_on_start"`
	// StaleAfter is the view age at which /health reports the views as stale.
	StaleAfter time.Duration `koanf:"stale_after" validate:"gt=0"`
}

// DatabaseConfig holds PostgreSQL connection, pool and timeout settings.
type DatabaseConfig struct {
	Host           string        `koanf:"host" validate:"required"`
	Port           int           `koanf:"port" validate:"gt=0,lte=65535"`
	Name           string        `koanf:"name" validate:"required"`
	User           string        `koanf:"user" validate:"required"`
	Password       string        `koanf:"password"`
	SSLMode        string        `koanf:"sslmode" validate:"oneof=disable allow prefer require verify-ca verify-full"`
	MaxConns       int           `koanf:"max_conns" validate:"gt=0"`
	MinConns       int           `koanf:"min_conns" validate:"gte=0,ltefield=MaxConns"`
	AcquireTimeout time.Duration `koanf:"acquire_timeout" validate:"gt=0"`
	SearchTimeout  time.Duration `koanf:"search_timeout" validate:"gt=0"`
	SampleTimeout  time.Duration `koanf:"sample_timeout" validate:"gt=0"`
	HubTimeout     time.Duration `koanf:"hub_timeout" validate:"gt=0"`
}

// QueryConfig holds search and hub read limits.
type QueryConfig struct {
	LimitMax     int   `koanf:"limit_max" validate:"gt=0,lte=1000"`
	DefaultLimit int   `koanf:"default_limit" validate:"gt=0,ltefield=LimitMax"`
	SampleSize   int   `koanf:"sample_size" validate:"gt=0,ltefield=LimitMax"`
	SampleYear   int   `koanf:"sample_year" validate:"gte=1990,lte=2100"`
	TopNMax      int   `koanf:"top_n_max" validate:"gt=0,lte=100"`
	TopNDefault  int   `koanf:"top_n_default" validate:"gt=0,ltefield=TopNMax"`
	MinCases     int64 `koanf:"min_cases" validate:"gte=0"`
	WarmStates   int   `koanf:"warm_states" validate:"gte=0"`
}

// CacheConfig holds query cache settings.
type CacheConfig struct {
	TTL     time.Duration `koanf:"ttl" validate:"gt=0"`
	Version string        `koanf:"version" validate:"required"`
	// JanitorInterval is how often expired entries are swept.
	JanitorInterval time.Duration `koanf:"janitor_interval" validate:"gt=0"`
}

// NATSConfig holds view refresh notification settings. An empty URL disables
// the subscription unless Embedded is set, in which case lca-api runs its own
// server and subscribes to that.
type NATSConfig struct {
	URL     string `koanf:"url"`
	Subject string `koanf:"subject" validate:"required"`

	Embedded     bool   `koanf:"embedded"`
	EmbeddedHost string `koanf:"embedded_host" validate:"required_if=Embedded true"`
	EmbeddedPort int    `koanf:"embedded_port" validate:"gte=-1,lte=65535"`
}

// LoggingConfig holds log settings.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn warning error disabled"`
	Format string `koanf:"format" validate:"oneof=json console"`
}

// LoadConfig holds loader settings.
type LoadConfig struct {
	ManifestPath string `koanf:"manifest_path" validate:"required"`
	BatchSize    int    `koanf:"batch_size" validate:"gt=0"`
	// WageStrategy picks the base rate for annualisation: from, avg or max.
	WageStrategy string `koanf:"wage_strategy" validate:"oneof=from avg max"`
}

// Default returns the built-in configuration.
func Default() *Config {
	db := storage.DefaultPostgresConfig()
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			SearchRateLimit: 60,
			StaleAfter:      48 * time.Hour,
		},
		Database: DatabaseConfig{
			Host:           db.Host,
			Port:           db.Port,
			Name:           db.Database,
			User:           db.User,
			Password:       db.Password,
			SSLMode:        db.SSLMode,
			MaxConns:       db.MaxConns,
			MinConns:       db.MinConns,
			AcquireTimeout: db.AcquireTimeout,
			SearchTimeout:  db.SearchTimeout,
			SampleTimeout:  db.SampleTimeout,
			HubTimeout:     db.HubTimeout,
		},
		Query: QueryConfig{
			LimitMax:     50,
			DefaultLimit: 25,
			SampleSize:   12,
			SampleYear:   2024,
			TopNMax:      50,
			TopNDefault:  10,
			MinCases:     100,
			WarmStates:   10,
		},
		Cache: CacheConfig{
			TTL:             24 * time.Hour,
			Version:         "v1",
			JanitorInterval: 10 * time.Minute,
		},
		NATS: NATSConfig{
			Subject:      "lca.views.refreshed",
			EmbeddedHost: "127.0.0.1",
			EmbeddedPort: 4222,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Load: LoadConfig{
			ManifestPath: "lca_manifest.db",
			BatchSize:    50000,
			WageStrategy: "from",
		},
	}
}

// Load builds the configuration. path overrides LCA_CONFIG; an empty path with
// no LCA_CONFIG set skips the file layer.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path == "" {
		path = os.Getenv(PathEnvVar)
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// envKey maps LCA_SECTION_SOME_KEY onto section.some_key.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	section, key, ok := strings.Cut(s, "_")
	if !ok {
		return s
	}
	return section + "." + key
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks every field constraint.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Postgres converts the database section into storage settings.
func (c *Config) Postgres() storage.PostgresConfig {
	d := c.Database
	return storage.PostgresConfig{
		Host:           d.Host,
		Port:           d.Port,
		Database:       d.Name,
		User:           d.User,
		Password:       d.Password,
		SSLMode:        d.SSLMode,
		MaxConns:       d.MaxConns,
		MinConns:       d.MinConns,
		AcquireTimeout: d.AcquireTimeout,
		SearchTimeout:  d.SearchTimeout,
		SampleTimeout:  d.SampleTimeout,
		HubTimeout:     d.HubTimeout,
	}
}

// LoggerConfig converts the logging section into logger settings.
func (c *Config) LoggerConfig() logging.Config {
	cfg := logging.DefaultConfig()
	cfg.Level = c.Logging.Level
	cfg.Format = c.Logging.Format
	return cfg
}

// QueryOptions converts the query and cache sections into query service bounds.
func (c *Config) QueryOptions() query.Options {
	q := c.Query
	return query.Options{
		LimitMax:     q.LimitMax,
		DefaultLimit: q.DefaultLimit,
		SampleSize:   q.SampleSize,
		SampleYear:   q.SampleYear,
		TopNMax:      q.TopNMax,
		TopNDefault:  q.TopNDefault,
		MinCases:     q.MinCases,
		WarmStates:   q.WarmStates,
		CacheVersion: c.Cache.Version,
	}
}
