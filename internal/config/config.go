package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure.
// It is read-only after Load() returns and thread-safe for concurrent reads.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Media    MediaConfig    `yaml:"media"`
	Auth     AuthConfig     `yaml:"auth"`
	Schedule ScheduleConfig `yaml:"schedule"`
	Worker   WorkerConfig   `yaml:"worker"`
	Log      LogConfig      `yaml:"log"`
	Tracing  TracingConfig  `yaml:"tracing"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port            int      `yaml:"port"`
	ReadTimeout     Duration `yaml:"read_timeout"`
	WriteTimeout    Duration `yaml:"write_timeout"`
	ShutdownTimeout Duration `yaml:"shutdown_timeout"`
	// CORSOrigins lists the browser origins allowed to call the API.
	// Empty disables CORS handling.
	CORSOrigins []string `yaml:"cors_origins"`
}

// DatabaseConfig contains database settings.
type DatabaseConfig struct {
	Driver       string `yaml:"driver"`
	Path         string `yaml:"path"`
	URL          string `yaml:"-"` // env-only, carries credentials
	MaxOpenConns int    `yaml:"max_open_conns"`
}

// MediaConfig contains S3-compatible object storage settings for photos and
// videos. An empty Endpoint disables media.
type MediaConfig struct {
	Endpoint       string   `yaml:"endpoint"`
	Region         string   `yaml:"region"`
	AccessKey      string   `yaml:"-"` // env-only, never in YAML
	SecretKey      string   `yaml:"-"` // env-only, never in YAML
	UseSSL         *bool    `yaml:"use_ssl"`
	PhotoBucket    string   `yaml:"photo_bucket"`
	VideoBucket    string   `yaml:"video_bucket"`
	URLExpiry      Duration `yaml:"url_expiry"`
	MaxUploadBytes int64    `yaml:"max_upload_bytes"`
}

// Enabled reports whether an object store is configured.
func (m MediaConfig) Enabled() bool {
	return m.Endpoint != ""
}

// AuthConfig contains authentication settings.
type AuthConfig struct {
	APIKey string `yaml:"-"` // env-only, never in YAML
}

// ScheduleConfig controls how the daily schedule is evaluated.
type ScheduleConfig struct {
	Timezone string `yaml:"timezone"`
}

// Location returns the configured zone. validate guarantees it loads.
func (s ScheduleConfig) Location() *time.Location {
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// WorkerConfig contains background worker settings.
type WorkerConfig struct {
	StaleSessionInterval Duration `yaml:"stale_session_interval"`
	StaleSessionActor    string   `yaml:"stale_session_actor"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// TracingConfig contains OpenTelemetry trace export settings.
type TracingConfig struct {
	Exporter    string  `yaml:"exporter"`
	Endpoint    string  `yaml:"endpoint"`
	Insecure    bool    `yaml:"insecure"`
	SampleRatio float64 `yaml:"sample_ratio"`
	ServiceName string  `yaml:"service_name"`
}

// Duration is a wrapper around time.Duration that supports YAML string parsing.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler for Duration.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Load loads configuration with precedence: defaults → YAML file → env vars.
// Returns an immutable Config suitable for concurrent read access.
func Load() (*Config, error) {
	cfg := newDefaults()

	configPath := getEnv("PITCHSIDE_CONFIG_PATH", "config/pitchside.yaml")

	// Load YAML file if it exists (missing file is not an error)
	if err := loadYAMLFile(cfg, configPath); err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFromFile loads configuration from a specific path.
// Used for testing and explicit path specification.
func LoadFromFile(path string) (*Config, error) {
	cfg := newDefaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// newDefaults returns a Config with all default values.
func newDefaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     Duration(30 * time.Second),
			WriteTimeout:    Duration(60 * time.Second),
			ShutdownTimeout: Duration(15 * time.Second),
			CORSOrigins:     []string{"http://localhost:8080", "http://localhost:5173"},
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
			Path:   "data/pitchside.db",
		},
		Media: MediaConfig{
			Region:         "us-east-1",
			PhotoBucket:    "photos",
			VideoBucket:    "videos",
			URLExpiry:      Duration(1 * time.Hour),
			MaxUploadBytes: 50 << 20,
		},
		Schedule: ScheduleConfig{
			Timezone: "UTC",
		},
		Worker: WorkerConfig{
			StaleSessionActor: "session-reaper",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Tracing: TracingConfig{
			Exporter:    "none",
			SampleRatio: 1.0,
			ServiceName: "pitchside",
		},
	}
}

// loadYAMLFile loads configuration from a YAML file if it exists.
// Missing file is not an error; we just use defaults.
func loadYAMLFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides to the config.
// Only non-empty env vars override config values.
func applyEnvOverrides(cfg *Config) {
	// Server
	if v := os.Getenv("PITCHSIDE_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	envDuration("PITCHSIDE_READ_TIMEOUT", &cfg.Server.ReadTimeout)
	envDuration("PITCHSIDE_WRITE_TIMEOUT", &cfg.Server.WriteTimeout)
	envDuration("PITCHSIDE_SHUTDOWN_TIMEOUT", &cfg.Server.ShutdownTimeout)
	if v := os.Getenv("PITCHSIDE_CORS_ORIGINS"); v != "" {
		cfg.Server.CORSOrigins = splitList(v)
	}

	// Database
	if v := os.Getenv("PITCHSIDE_DB_DRIVER"); v != "" {
		cfg.Database.Driver = v
	}
	if v := os.Getenv("PITCHSIDE_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("PITCHSIDE_DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("PITCHSIDE_DB_MAX_OPEN_CONNS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Database.MaxOpenConns = n
		}
	}

	// Media
	if v := os.Getenv("PITCHSIDE_S3_ENDPOINT"); v != "" {
		cfg.Media.Endpoint = v
	}
	if v := os.Getenv("PITCHSIDE_S3_REGION"); v != "" {
		cfg.Media.Region = v
	}
	if v := os.Getenv("PITCHSIDE_S3_ACCESS_KEY"); v != "" {
		cfg.Media.AccessKey = v
	}
	if v := os.Getenv("PITCHSIDE_S3_SECRET_KEY"); v != "" {
		cfg.Media.SecretKey = v
	}
	if v := os.Getenv("PITCHSIDE_S3_USE_SSL"); v != "" {
		useSSL := v == "true" || v == "1"
		cfg.Media.UseSSL = &useSSL
	}
	if v := os.Getenv("PITCHSIDE_PHOTO_BUCKET"); v != "" {
		cfg.Media.PhotoBucket = v
	}
	if v := os.Getenv("PITCHSIDE_VIDEO_BUCKET"); v != "" {
		cfg.Media.VideoBucket = v
	}
	envDuration("PITCHSIDE_S3_URL_EXPIRY", &cfg.Media.URLExpiry)
	if v := os.Getenv("PITCHSIDE_MAX_UPLOAD_BYTES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Media.MaxUploadBytes = n
		}
	}

	// Auth
	if v := os.Getenv("PITCHSIDE_API_KEY"); v != "" {
		cfg.Auth.APIKey = v
	}

	// Schedule
	if v := os.Getenv("PITCHSIDE_TIMEZONE"); v != "" {
		cfg.Schedule.Timezone = v
	}

	// Worker
	envDuration("PITCHSIDE_STALE_SESSION_INTERVAL", &cfg.Worker.StaleSessionInterval)
	if v := os.Getenv("PITCHSIDE_STALE_SESSION_ACTOR"); v != "" {
		cfg.Worker.StaleSessionActor = v
	}

	// Log
	if v := os.Getenv("PITCHSIDE_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("PITCHSIDE_LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}

	// Tracing
	if v := os.Getenv("PITCHSIDE_TRACING_EXPORTER"); v != "" {
		cfg.Tracing.Exporter = v
	}
	if v := os.Getenv("PITCHSIDE_TRACING_ENDPOINT"); v != "" {
		cfg.Tracing.Endpoint = v
	}
	if v := os.Getenv("PITCHSIDE_TRACING_INSECURE"); v != "" {
		cfg.Tracing.Insecure = v == "true" || v == "1"
	}
	if v := os.Getenv("PITCHSIDE_TRACING_SAMPLE_RATIO"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Tracing.SampleRatio = f
		}
	}
	if v := os.Getenv("PITCHSIDE_SERVICE_NAME"); v != "" {
		cfg.Tracing.ServiceName = v
	}
}

func envDuration(key string, dst *Duration) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = Duration(d)
		}
	}
}

// validate checks that the configuration is usable.
func (c *Config) validate() error {
	switch c.Database.Driver {
	case "sqlite":
		if c.Database.Path == "" {
			return errors.New("database.path is required for the sqlite driver")
		}
	case "postgres":
		if c.Database.URL == "" {
			return errors.New("PITCHSIDE_DATABASE_URL is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown database driver %q", c.Database.Driver)
	}

	if _, err := time.LoadLocation(c.Schedule.Timezone); err != nil {
		return fmt.Errorf("invalid schedule timezone %q: %w", c.Schedule.Timezone, err)
	}

	if c.Media.Enabled() && (c.Media.AccessKey == "" || c.Media.SecretKey == "") {
		return errors.New("PITCHSIDE_S3_ACCESS_KEY and PITCHSIDE_S3_SECRET_KEY are required when media.endpoint is set")
	}
	if c.Media.MaxUploadBytes <= 0 {
		return errors.New("media.max_upload_bytes must be positive")
	}

	if c.Worker.StaleSessionInterval < 0 {
		return errors.New("worker.stale_session_interval must not be negative")
	}
	if c.Worker.StaleSessionActor == "" {
		return errors.New("worker.stale_session_actor is required")
	}

	switch c.Tracing.Exporter {
	case "none", "stdout", "otlp":
	default:
		return fmt.Errorf("unknown tracing exporter %q", c.Tracing.Exporter)
	}
	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		return fmt.Errorf("tracing.sample_ratio must be within [0, 1], got %v", c.Tracing.SampleRatio)
	}

	return nil
}

// getEnv returns the value of an environment variable or a default.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// splitList parses a comma-separated env value, dropping blank entries.
func splitList(v string) []string {
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
