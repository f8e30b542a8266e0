package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"

	ferrors "github.com/AGES-Pro-Mata/frontend-sub002/internal/errors"
)

const (
	// EnvPrefix prefixes every environment override.
	EnvPrefix = "FILTERCTL"

	// DefaultAddr is the default listen address of `filterctl serve`.
	DefaultAddr = ":8080"
)

// Config is the complete filterctl configuration.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Log     LogConfig     `mapstructure:"log"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Persist PersistConfig `mapstructure:"persist"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	// Addr is the listen address.
	Addr string `mapstructure:"addr"`

	// ShutdownTimeout bounds graceful shutdown, including the final save.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`

	// AllowedOrigins lists origins accepted on stream upgrades. "*" accepts
	// any origin. Empty means same-origin only.
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// LogConfig configures the slog handler.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `mapstructure:"level"`

	// Format is text or json.
	Format string `mapstructure:"format"`
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Namespace string `mapstructure:"namespace"`
}

// PersistConfig configures snapshot persistence.
type PersistConfig struct {
	// Backend is one of none, memory, sqlite, s3.
	Backend string `mapstructure:"backend"`

	// Keys are the filter keys mirrored to storage.
	Keys []string `mapstructure:"keys"`

	// Interval is how often pending changes are flushed.
	Interval time.Duration `mapstructure:"interval"`

	// Concurrency bounds parallel storage calls.
	Concurrency int `mapstructure:"concurrency"`

	SQLite SQLiteConfig `mapstructure:"sqlite"`
	S3     S3Config     `mapstructure:"s3"`
}

// SQLiteConfig configures the sqlite backend.
type SQLiteConfig struct {
	Path  string `mapstructure:"path"`
	Table string `mapstructure:"table"`
}

// S3Config configures the s3 backend.
type S3Config struct {
	Bucket          string `mapstructure:"bucket"`
	Prefix          string `mapstructure:"prefix"`
	Region          string `mapstructure:"region"`
	Endpoint        string `mapstructure:"endpoint"`
	UsePathStyle    bool   `mapstructure:"use_path_style"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            DefaultAddr,
			ShutdownTimeout: 10 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Enabled:   true,
			Namespace: "filters",
		},
		Persist: PersistConfig{
			Backend:     "none",
			Interval:    30 * time.Second,
			Concurrency: 4,
			SQLite: SQLiteConfig{
				Path:  "filters.db",
				Table: "filter_snapshots",
			},
			S3: S3Config{
				Prefix: "filters/",
			},
		},
	}
}

// SetDefaults registers the defaults on v.
func SetDefaults(v *viper.Viper) {
	defaults := Default()

	v.SetDefault("server.addr", defaults.Server.Addr)
	v.SetDefault("server.shutdown_timeout", defaults.Server.ShutdownTimeout)
	v.SetDefault("server.allowed_origins", defaults.Server.AllowedOrigins)

	v.SetDefault("log.level", defaults.Log.Level)
	v.SetDefault("log.format", defaults.Log.Format)

	v.SetDefault("metrics.enabled", defaults.Metrics.Enabled)
	v.SetDefault("metrics.namespace", defaults.Metrics.Namespace)

	v.SetDefault("persist.backend", defaults.Persist.Backend)
	v.SetDefault("persist.keys", defaults.Persist.Keys)
	v.SetDefault("persist.interval", defaults.Persist.Interval)
	v.SetDefault("persist.concurrency", defaults.Persist.Concurrency)
	v.SetDefault("persist.sqlite.path", defaults.Persist.SQLite.Path)
	v.SetDefault("persist.sqlite.table", defaults.Persist.SQLite.Table)
	v.SetDefault("persist.s3.bucket", defaults.Persist.S3.Bucket)
	v.SetDefault("persist.s3.prefix", defaults.Persist.S3.Prefix)
	v.SetDefault("persist.s3.region", defaults.Persist.S3.Region)
	v.SetDefault("persist.s3.endpoint", defaults.Persist.S3.Endpoint)
	v.SetDefault("persist.s3.use_path_style", defaults.Persist.S3.UsePathStyle)
	v.SetDefault("persist.s3.access_key_id", defaults.Persist.S3.AccessKeyID)
	v.SetDefault("persist.s3.secret_access_key", defaults.Persist.S3.SecretAccessKey)
}

// New returns a viper instance with defaults and environment overrides
// registered. If file is not empty it is read as the config file.
func New(file string) (*viper.Viper, error) {
	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file == "" {
		return v, nil
	}
	v.SetConfigFile(file)
	if err := v.ReadInConfig(); err != nil {
		return nil, ferrors.New("C001").WithDetailf("reading %s", file).Wrap(err)
	}
	return v, nil
}

// Load reads the configuration from v into a Config and validates it.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, ferrors.New("C002").Wrap(err)
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ferrors.New("C002").Wrap(ValidationErrors(errs))
	}
	return &cfg, nil
}

// ValidationErrorsFrom extracts the validation failures from an error
// returned by Load.
func ValidationErrorsFrom(err error) (ValidationErrors, bool) {
	var errs ValidationErrors
	if errors.As(err, &errs) {
		return errs, true
	}
	return nil, false
}
