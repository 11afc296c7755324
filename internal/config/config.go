package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// EnvPrefix namespaces every environment variable read by Load.
const EnvPrefix = "ALK"

// Config represents the complete application configuration
type Config struct {
	Server     ServerConfig     `yaml:"server" envconfig:"SERVER"`
	Security   SecurityConfig   `yaml:"security" envconfig:"SECURITY"`
	Logging    LoggingConfig    `yaml:"logging" envconfig:"LOGGING"`
	Store      StoreConfig      `yaml:"store" envconfig:"STORE"`
	Paths      PathsConfig      `yaml:"paths" envconfig:"PATHS"`
	Efficiency EfficiencyConfig `yaml:"efficiency" envconfig:"EFFICIENCY"`
	Archive    ArchiveConfig    `yaml:"archive" envconfig:"ARCHIVE"`
	Telemetry  TelemetryConfig  `yaml:"telemetry" envconfig:"TELEMETRY"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port" envconfig:"PORT" default:"8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT" default:"30s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT" default:"60s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT" default:"60s"`
	MaxHeaderBytes  int           `yaml:"max_header_bytes" envconfig:"MAX_HEADER_BYTES" default:"1048576"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT" default:"30s"`
	MaxUploadBytes  int64         `yaml:"max_upload_bytes" envconfig:"MAX_UPLOAD_BYTES" default:"67108864"`
}

// SecurityConfig contains security-related configuration
type SecurityConfig struct {
	AllowedOrigins []string        `yaml:"allowed_origins" envconfig:"ALLOWED_ORIGINS" default:"http://localhost:3000"`
	EnableCORS     bool            `yaml:"enable_cors" envconfig:"ENABLE_CORS" default:"true"`
	RateLimit      RateLimitConfig `yaml:"rate_limit" envconfig:"RATE_LIMIT"`
}

// RateLimitConfig contains rate limiting configuration
type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled" envconfig:"ENABLED" default:"true"`
	RPS     float64 `yaml:"rps" envconfig:"RPS" default:"50"`
	Burst   int     `yaml:"burst" envconfig:"BURST" default:"25"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level       string `yaml:"level" envconfig:"LEVEL" default:"info"`
	Format      string `yaml:"format" envconfig:"FORMAT" default:"json"`
	Output      string `yaml:"output" envconfig:"OUTPUT" default:"console"`
	FilePath    string `yaml:"file_path" envconfig:"FILE_PATH" default:"logs/app.log"`
	Development bool   `yaml:"development" envconfig:"DEVELOPMENT" default:"false"`
}

// StoreConfig selects the document store driver.
// Driver is one of memory, sqlite or postgres.
type StoreConfig struct {
	Driver       string        `yaml:"driver" envconfig:"DRIVER" default:"sqlite"`
	DSN          string        `yaml:"dsn" envconfig:"DSN" default:"data/alkalytics.db"`
	PingTimeout  time.Duration `yaml:"ping_timeout" envconfig:"PING_TIMEOUT" default:"5s"`
	MaxOpenConns int           `yaml:"max_open_conns" envconfig:"MAX_OPEN_CONNS" default:"10"`
}

// PathsConfig contains file system paths configuration
type PathsConfig struct {
	DataDir    string `yaml:"data_dir" envconfig:"DATA_DIR" default:"data"`
	ScratchDir string `yaml:"scratch_dir" envconfig:"SCRATCH_DIR"`
	LogsDir    string `yaml:"logs_dir" envconfig:"LOGS_DIR" default:"logs"`
}

// EfficiencyConfig tunes the efficiency engine.
type EfficiencyConfig struct {
	// WindowMinutes is the length of the windows readings are averaged over.
	WindowMinutes int `yaml:"window_minutes" envconfig:"WINDOW_MINUTES" default:"5"`
	// DefaultIntervalMinutes selects the data of requests that name no
	// interval: 0 the whole experiment, n the first n minutes, -n the last n.
	DefaultIntervalMinutes int `yaml:"default_interval_minutes" envconfig:"DEFAULT_INTERVAL_MINUTES" default:"0"`
	// ZeroOnFailure stores 0 instead of null for metrics that cannot be computed.
	ZeroOnFailure bool `yaml:"zero_on_failure" envconfig:"ZERO_ON_FAILURE" default:"false"`
}

// ArchiveConfig controls archiving of raw uploads to S3 compatible storage.
type ArchiveConfig struct {
	Enabled      bool   `yaml:"enabled" envconfig:"ENABLED" default:"false"`
	Bucket       string `yaml:"bucket" envconfig:"BUCKET"`
	Region       string `yaml:"region" envconfig:"REGION" default:"us-east-1"`
	Endpoint     string `yaml:"endpoint" envconfig:"ENDPOINT"`
	Prefix       string `yaml:"prefix" envconfig:"PREFIX" default:"uploads"`
	UsePathStyle bool   `yaml:"use_path_style" envconfig:"USE_PATH_STYLE" default:"false"`

	// Static credentials; empty means the default AWS credential chain.
	AccessKeyID     string `yaml:"access_key_id" envconfig:"ACCESS_KEY_ID"`
	SecretAccessKey string `yaml:"secret_access_key" envconfig:"SECRET_ACCESS_KEY"`
}

// TelemetryConfig contains OpenTelemetry settings
type TelemetryConfig struct {
	ServiceName   string  `yaml:"service_name" envconfig:"SERVICE_NAME" default:"alkalytics"`
	Environment   string  `yaml:"environment" envconfig:"ENVIRONMENT" default:"development"`
	TraceExporter string  `yaml:"trace_exporter" envconfig:"TRACE_EXPORTER" default:"none"`
	EnableMetrics bool    `yaml:"enable_metrics" envconfig:"ENABLE_METRICS" default:"true"`
	SampleRatio   float64 `yaml:"sample_ratio" envconfig:"SAMPLE_RATIO" default:"1"`
}

// Load loads configuration from environment variables and config file
func Load() (*Config, error) {
	return LoadFile(getConfigFilePath())
}

// LoadFile loads configuration using the given YAML file as the base layer.
// An empty path means environment variables and defaults only.
func LoadFile(configFile string) (*Config, error) {
	var cfg Config

	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if configFile != "" {
		if _, err := os.Stat(configFile); err == nil {
			fileConfig, err := loadFromFile(configFile)
			if err != nil {
				return nil, fmt.Errorf("failed to load config from file: %w", err)
			}
			cfg = mergeConfigs(*fileConfig, cfg)
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// loadFromFile loads configuration from YAML file
func loadFromFile(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// mergeConfigs merges file config with env config.
// A variable present in the environment always wins; otherwise a non-zero
// file value replaces the envconfig default.
func mergeConfigs(fileConfig, envConfig Config) Config {
	s, f := &envConfig.Server, fileConfig.Server
	s.Port = pick("SERVER_PORT", s.Port, f.Port)
	s.ReadTimeout = pick("SERVER_READ_TIMEOUT", s.ReadTimeout, f.ReadTimeout)
	s.WriteTimeout = pick("SERVER_WRITE_TIMEOUT", s.WriteTimeout, f.WriteTimeout)
	s.IdleTimeout = pick("SERVER_IDLE_TIMEOUT", s.IdleTimeout, f.IdleTimeout)
	s.MaxHeaderBytes = pick("SERVER_MAX_HEADER_BYTES", s.MaxHeaderBytes, f.MaxHeaderBytes)
	s.ShutdownTimeout = pick("SERVER_SHUTDOWN_TIMEOUT", s.ShutdownTimeout, f.ShutdownTimeout)
	s.MaxUploadBytes = pick("SERVER_MAX_UPLOAD_BYTES", s.MaxUploadBytes, f.MaxUploadBytes)

	sec, fsec := &envConfig.Security, fileConfig.Security
	if _, ok := lookupEnv("SECURITY_ALLOWED_ORIGINS"); !ok && len(fsec.AllowedOrigins) > 0 {
		sec.AllowedOrigins = fsec.AllowedOrigins
	}
	sec.RateLimit.RPS = pick("SECURITY_RATE_LIMIT_RPS", sec.RateLimit.RPS, fsec.RateLimit.RPS)
	sec.RateLimit.Burst = pick("SECURITY_RATE_LIMIT_BURST", sec.RateLimit.Burst, fsec.RateLimit.Burst)

	l, fl := &envConfig.Logging, fileConfig.Logging
	l.Level = pick("LOGGING_LEVEL", l.Level, fl.Level)
	l.Output = pick("LOGGING_OUTPUT", l.Output, fl.Output)
	l.FilePath = pick("LOGGING_FILE_PATH", l.FilePath, fl.FilePath)
	l.Development = pick("LOGGING_DEVELOPMENT", l.Development, fl.Development)

	st, fst := &envConfig.Store, fileConfig.Store
	st.Driver = pick("STORE_DRIVER", st.Driver, fst.Driver)
	st.DSN = pick("STORE_DSN", st.DSN, fst.DSN)
	st.PingTimeout = pick("STORE_PING_TIMEOUT", st.PingTimeout, fst.PingTimeout)
	st.MaxOpenConns = pick("STORE_MAX_OPEN_CONNS", st.MaxOpenConns, fst.MaxOpenConns)

	p, fp := &envConfig.Paths, fileConfig.Paths
	p.DataDir = pick("PATHS_DATA_DIR", p.DataDir, fp.DataDir)
	p.ScratchDir = pick("PATHS_SCRATCH_DIR", p.ScratchDir, fp.ScratchDir)
	p.LogsDir = pick("PATHS_LOGS_DIR", p.LogsDir, fp.LogsDir)

	e, fe := &envConfig.Efficiency, fileConfig.Efficiency
	e.WindowMinutes = pick("EFFICIENCY_WINDOW_MINUTES", e.WindowMinutes, fe.WindowMinutes)
	e.DefaultIntervalMinutes = pick("EFFICIENCY_DEFAULT_INTERVAL_MINUTES", e.DefaultIntervalMinutes, fe.DefaultIntervalMinutes)
	e.ZeroOnFailure = pick("EFFICIENCY_ZERO_ON_FAILURE", e.ZeroOnFailure, fe.ZeroOnFailure)

	a, fa := &envConfig.Archive, fileConfig.Archive
	a.Enabled = pick("ARCHIVE_ENABLED", a.Enabled, fa.Enabled)
	a.Bucket = pick("ARCHIVE_BUCKET", a.Bucket, fa.Bucket)
	a.Region = pick("ARCHIVE_REGION", a.Region, fa.Region)
	a.Endpoint = pick("ARCHIVE_ENDPOINT", a.Endpoint, fa.Endpoint)
	a.Prefix = pick("ARCHIVE_PREFIX", a.Prefix, fa.Prefix)
	a.UsePathStyle = pick("ARCHIVE_USE_PATH_STYLE", a.UsePathStyle, fa.UsePathStyle)
	a.AccessKeyID = pick("ARCHIVE_ACCESS_KEY_ID", a.AccessKeyID, fa.AccessKeyID)
	a.SecretAccessKey = pick("ARCHIVE_SECRET_ACCESS_KEY", a.SecretAccessKey, fa.SecretAccessKey)

	tl, ftl := &envConfig.Telemetry, fileConfig.Telemetry
	tl.ServiceName = pick("TELEMETRY_SERVICE_NAME", tl.ServiceName, ftl.ServiceName)
	tl.Environment = pick("TELEMETRY_ENVIRONMENT", tl.Environment, ftl.Environment)
	tl.TraceExporter = pick("TELEMETRY_TRACE_EXPORTER", tl.TraceExporter, ftl.TraceExporter)
	tl.SampleRatio = pick("TELEMETRY_SAMPLE_RATIO", tl.SampleRatio, ftl.SampleRatio)

	return envConfig
}

func pick[T comparable](key string, envValue, fileValue T) T {
	if _, ok := lookupEnv(key); ok {
		return envValue
	}
	var zero T
	if fileValue != zero {
		return fileValue
	}
	return envValue
}

func lookupEnv(key string) (string, bool) {
	return os.LookupEnv(EnvPrefix + "_" + key)
}

// validate validates the configuration
func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server read timeout must be positive")
	}

	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server write timeout must be positive")
	}

	if c.Server.MaxUploadBytes <= 0 {
		return fmt.Errorf("server max upload bytes must be positive")
	}

	switch strings.ToLower(c.Store.Driver) {
	case "memory", "sqlite", "postgres":
		c.Store.Driver = strings.ToLower(c.Store.Driver)
	default:
		return fmt.Errorf("unknown store driver: %q", c.Store.Driver)
	}

	if c.Store.Driver != "memory" && c.Store.DSN == "" {
		return fmt.Errorf("store dsn is required for driver %s", c.Store.Driver)
	}

	if c.Efficiency.WindowMinutes <= 0 {
		return fmt.Errorf("efficiency window must be positive, got %d", c.Efficiency.WindowMinutes)
	}

	if c.Archive.Enabled && c.Archive.Bucket == "" {
		return fmt.Errorf("archive bucket is required when archiving is enabled")
	}

	// JSON is the only supported log format
	c.Logging.Format = "json"

	switch c.Logging.Output {
	case "console", "file", "both":
	default:
		c.Logging.Output = "console"
	}

	if c.Logging.FilePath == "" {
		c.Logging.FilePath = filepath.Join(c.Paths.LogsDir, "app.log")
	}

	return nil
}

// GetScratchDir returns the directory used for decoded uploads.
func (c *Config) GetScratchDir() string {
	if c.Paths.ScratchDir != "" {
		return c.Paths.ScratchDir
	}
	return os.TempDir()
}

// getConfigFilePath returns the path to the config file
func getConfigFilePath() string {
	locations := []string{
		"config.yaml",
		"configs/config.yaml",
		"../configs/config.yaml",
	}

	for _, location := range locations {
		if _, err := os.Stat(location); err == nil {
			return location
		}
	}

	return ""
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    60 * time.Second,
			IdleTimeout:     60 * time.Second,
			MaxHeaderBytes:  1 << 20, // 1MB
			ShutdownTimeout: 30 * time.Second,
			MaxUploadBytes:  64 << 20,
		},
		Security: SecurityConfig{
			AllowedOrigins: []string{"http://localhost:3000"},
			EnableCORS:     true,
			RateLimit: RateLimitConfig{
				Enabled: true,
				RPS:     50,
				Burst:   25,
			},
		},
		Logging: LoggingConfig{
			Level:    "info",
			Format:   "json",
			Output:   "console",
			FilePath: "logs/app.log",
		},
		Store: StoreConfig{
			Driver:       "sqlite",
			DSN:          "data/alkalytics.db",
			PingTimeout:  5 * time.Second,
			MaxOpenConns: 10,
		},
		Paths: PathsConfig{
			DataDir: "data",
			LogsDir: "logs",
		},
		Efficiency: EfficiencyConfig{
			WindowMinutes: 5,
		},
		Archive: ArchiveConfig{
			Region: "us-east-1",
			Prefix: "uploads",
		},
		Telemetry: TelemetryConfig{
			ServiceName:   "alkalytics",
			Environment:   "development",
			TraceExporter: "none",
			EnableMetrics: true,
			SampleRatio:   1,
		},
	}
}
