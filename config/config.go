// Package config loads healthmonitor settings from defaults, an optional YAML
// file, an optional .env file and HEALTHMONITOR_* environment variables, in
// increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/jonwraymond/healthmonitor/health"
	"github.com/jonwraymond/healthmonitor/observe"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "HEALTHMONITOR_"

// Config is the full application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	FileCheck FileCheckConfig `yaml:"filecheck"`
	URLCheck  URLCheckConfig  `yaml:"urlcheck"`
	Log       LogConfig       `yaml:"log"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Tracing   TracingConfig   `yaml:"tracing"`
}

// ServerConfig locates the status server. The CLI uses the same values to
// reach a running server.
type ServerConfig struct {
	Scheme  string `yaml:"scheme"`
	Address string `yaml:"address"`
	Port    int    `yaml:"port"`

	// Phase is the deployment phase the store starts in: online or deploying.
	Phase string `yaml:"phase"`
}

// ListenAddr returns address:port.
func (s ServerConfig) ListenAddr() string {
	return net.JoinHostPort(s.Address, strconv.Itoa(s.Port))
}

// URL returns scheme://address:port.
func (s ServerConfig) URL() string {
	return s.Scheme + "://" + s.ListenAddr()
}

// FileCheckConfig configures the file check.
type FileCheckConfig struct {
	Interval Duration `yaml:"interval"`
	Files    []string `yaml:"files"`
}

// URLCheckConfig configures the URL check.
type URLCheckConfig struct {
	Interval Duration `yaml:"interval"`
	Timeout  Duration `yaml:"timeout"`
	URLs     []string `yaml:"urls"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug|info|warn|error
	Format string `yaml:"format"` // console|json
}

// MetricsConfig configures the metrics exporter.
type MetricsConfig struct {
	Exporter string `yaml:"exporter"` // otlp|prometheus|stdout|none
}

// TracingConfig configures the trace exporter.
type TracingConfig struct {
	Exporter string  `yaml:"exporter"` // otlp|stdout|none
	Sample   float64 `yaml:"sample"`   // 0.0-1.0
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Scheme:  "http",
			Address: "127.0.0.1",
			Port:    8080,
			Phase:   health.PhaseOnline.String(),
		},
		FileCheck: FileCheckConfig{
			Interval: Duration(30 * time.Second),
			Files:    []string{},
		},
		URLCheck: URLCheckConfig{
			Interval: Duration(30 * time.Second),
			Timeout:  Duration(10 * time.Second),
			URLs:     []string{},
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		Metrics: MetricsConfig{
			Exporter: "prometheus",
		},
		Tracing: TracingConfig{
			Exporter: "none",
			Sample:   1.0,
		},
	}
}

// LoadDotEnv loads variables from the given .env files (default ".env")
// without overriding variables already set. Missing files are skipped.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, path := range paths {
		if err := godotenv.Load(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", path, err)
		}
	}
	return nil
}

// Load builds the configuration. path names a YAML file; when empty,
// HEALTHMONITOR_CONFIG is consulted, and when that is empty too only
// defaults and the environment apply. ${VAR} references in the file are
// expanded from the environment before parsing.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv(EnvPrefix + "CONFIG")
	}
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		expanded, err := expandEnvRefs(string(b))
		if err != nil {
			return Config{}, fmt.Errorf("config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() error {
	var errs []error
	str := func(key string, dst *string) {
		if v, ok := getEnvStr(key); ok {
			*dst = strings.TrimSpace(v)
		}
	}
	dur := func(key string, dst *Duration) {
		if v, ok := getEnvStr(key); ok {
			d, err := ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
				return
			}
			*dst = d
		}
	}
	csv := func(key string, dst *[]string) {
		if v, ok := getEnvCSV(key); ok {
			*dst = v
		}
	}

	str("SERVER_SCHEME", &c.Server.Scheme)
	str("SERVER_ADDRESS", &c.Server.Address)
	if v, ok := getEnvStr("SERVER_PORT"); ok {
		port, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			errs = append(errs, fmt.Errorf("%sSERVER_PORT: %w: port %q", EnvPrefix, ErrInvalidValue, v))
		} else {
			c.Server.Port = port
		}
	}
	str("SERVER_PHASE", &c.Server.Phase)

	dur("FILECHECK_INTERVAL", &c.FileCheck.Interval)
	csv("FILECHECK_FILES", &c.FileCheck.Files)

	dur("URLCHECK_INTERVAL", &c.URLCheck.Interval)
	dur("URLCHECK_TIMEOUT", &c.URLCheck.Timeout)
	csv("URLCHECK_URLS", &c.URLCheck.URLs)

	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FORMAT", &c.Log.Format)
	str("METRICS_EXPORTER", &c.Metrics.Exporter)
	str("TRACING_EXPORTER", &c.Tracing.Exporter)
	if v, ok := getEnvStr("TRACING_SAMPLE"); ok {
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sTRACING_SAMPLE: %w: %q", EnvPrefix, ErrInvalidValue, v))
		} else {
			c.Tracing.Sample = f
		}
	}

	return errors.Join(errs...)
}

// Validate reports every unusable value at once.
func (c Config) Validate() error {
	var errs []error

	if c.Server.Scheme != "http" && c.Server.Scheme != "https" {
		errs = append(errs, fmt.Errorf("%w: server scheme %q", ErrInvalidConfig, c.Server.Scheme))
	}
	if c.Server.Address == "" {
		errs = append(errs, fmt.Errorf("%w: server address is empty", ErrInvalidConfig))
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("%w: server port %d out of range", ErrInvalidConfig, c.Server.Port))
	}
	if _, err := health.ParsePhase(c.Server.Phase); err != nil {
		errs = append(errs, fmt.Errorf("%w: %w", ErrInvalidConfig, err))
	}
	if c.FileCheck.Interval <= 0 {
		errs = append(errs, fmt.Errorf("%w: filecheck interval must be positive", ErrInvalidConfig))
	}
	if c.URLCheck.Interval <= 0 {
		errs = append(errs, fmt.Errorf("%w: urlcheck interval must be positive", ErrInvalidConfig))
	}
	if c.URLCheck.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("%w: urlcheck timeout must be positive", ErrInvalidConfig))
	}

	obs := c.Observe("healthmonitor", "")
	if err := obs.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("%w: %w", ErrInvalidConfig, err))
	}

	return errors.Join(errs...)
}

// Phase returns the configured initial deployment phase.
func (c Config) Phase() health.Phase {
	phase, err := health.ParsePhase(c.Server.Phase)
	if err != nil {
		return health.PhaseOnline
	}
	return phase
}

// Checks returns the configured check list in registration order.
func (c Config) Checks() []health.Check {
	return health.DefaultChecks(
		health.FileCheckConfig{
			Interval: c.FileCheck.Interval.Std(),
			Files:    c.FileCheck.Files,
		},
		health.URLCheckConfig{
			Interval: c.URLCheck.Interval.Std(),
			Timeout:  c.URLCheck.Timeout.Std(),
			URLs:     c.URLCheck.URLs,
		},
	)
}

// Observe returns the observability configuration.
func (c Config) Observe(serviceName, version string) observe.Config {
	return observe.Config{
		ServiceName: serviceName,
		Version:     version,
		Tracing: observe.TracingConfig{
			Enabled:   c.Tracing.Exporter != "" && c.Tracing.Exporter != "none",
			Exporter:  c.Tracing.Exporter,
			SamplePct: c.Tracing.Sample,
		},
		Metrics: observe.MetricsConfig{
			Enabled:  c.Metrics.Exporter != "" && c.Metrics.Exporter != "none",
			Exporter: c.Metrics.Exporter,
		},
		Logging: observe.LoggingConfig{
			Enabled: true,
			Level:   c.Log.Level,
			Format:  c.Log.Format,
		},
	}
}

func getEnvStr(key string) (string, bool) {
	v := os.Getenv(EnvPrefix + key)
	return v, v != ""
}

func getEnvCSV(key string) ([]string, bool) {
	s, ok := getEnvStr(key)
	if !ok {
		return nil, false
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out, true
}
