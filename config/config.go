// Package config loads client settings.
//
// Precedence, lowest first: defaults, YAML file, CHATSTREAM_* environment
// variables. Command-line flags are applied on top by the caller.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "CHATSTREAM"

// Config is the complete client configuration.
type Config struct {
	// APIURL is the backend base URL.
	APIURL string `yaml:"api_url" env:"API_URL"`
	// Token is the bearer token sent with every request.
	Token string `yaml:"token" env:"TOKEN"`
	// Timeout bounds each streaming request.
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT"`
	// RetryAttempts and RetryDelay apply to history requests only.
	RetryAttempts int           `yaml:"retry_attempts" env:"RETRY_ATTEMPTS"`
	RetryDelay    time.Duration `yaml:"retry_delay" env:"RETRY_DELAY"`
	HistoryLimit  int           `yaml:"history_limit" env:"HISTORY_LIMIT"`
	// BatchInterval is how often streamed tokens are applied to the screen.
	BatchInterval time.Duration `yaml:"batch_interval" env:"BATCH_INTERVAL"`
	// BannerTimeout is how long an error banner stays visible.
	BannerTimeout time.Duration `yaml:"banner_timeout" env:"BANNER_TIMEOUT"`
	LogLevel      string        `yaml:"log_level" env:"LOG_LEVEL"`
	// LogFile receives logs. Empty discards them, since stderr belongs to
	// the terminal UI.
	LogFile string `yaml:"log_file" env:"LOG_FILE"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		APIURL:        "http://localhost:8000",
		Timeout:       30 * time.Second,
		RetryAttempts: 3,
		RetryDelay:    time.Second,
		HistoryLimit:  50,
		BatchInterval: 16 * time.Millisecond,
		BannerTimeout: 5 * time.Second,
		LogLevel:      "info",
	}
}

// Loader builds a Config from its sources.
type Loader struct {
	path   string
	lookup func(string) (string, bool)
}

// NewLoader returns a Loader reading the process environment.
func NewLoader() *Loader {
	return &Loader{lookup: os.LookupEnv}
}

// WithPath sets the YAML file to read. A missing file is an error only
// when the path was set explicitly.
func (l *Loader) WithPath(path string) *Loader {
	l.path = path
	return l
}

// WithLookup replaces the environment lookup. Useful in tests.
func (l *Loader) WithLookup(fn func(string) (string, bool)) *Loader {
	l.lookup = fn
	return l
}

// Load builds and validates the configuration.
func (l *Loader) Load() (Config, error) {
	cfg := Default()
	if l.path != "" {
		data, err := os.ReadFile(l.path)
		if err != nil {
			return Config{}, fmt.Errorf("config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", l.path, err)
		}
	}
	if err := l.applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (l *Loader) applyEnv(cfg *Config) error {
	v := reflect.ValueOf(cfg).Elem()
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		tag := t.Field(i).Tag.Get("env")
		if tag == "" {
			continue
		}
		key := EnvPrefix + "_" + tag
		value, ok := l.lookup(key)
		if !ok || value == "" {
			continue
		}
		if err := setField(v.Field(i), value); err != nil {
			return fmt.Errorf("config: %s: %w", key, err)
		}
	}
	return nil
}

var durationType = reflect.TypeOf(time.Duration(0))

func setField(field reflect.Value, value string) error {
	switch {
	case field.Type() == durationType:
		d, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		field.SetInt(int64(d))
	case field.Kind() == reflect.Int:
		n, err := strconv.Atoi(value)
		if err != nil {
			return err
		}
		field.SetInt(int64(n))
	case field.Kind() == reflect.String:
		field.SetString(value)
	default:
		return fmt.Errorf("unsupported field type %s", field.Type())
	}
	return nil
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var errs []error
	if u, err := url.Parse(c.APIURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("api_url %q is not an absolute URL", c.APIURL))
	}
	if c.RetryAttempts < 1 {
		errs = append(errs, errors.New("retry_attempts must be at least 1"))
	}
	if c.RetryDelay < 0 {
		errs = append(errs, errors.New("retry_delay must not be negative"))
	}
	if c.HistoryLimit < 1 || c.HistoryLimit > 1000 {
		errs = append(errs, errors.New("history_limit must be between 1 and 1000"))
	}
	if c.BatchInterval < 0 {
		errs = append(errs, errors.New("batch_interval must not be negative"))
	}
	if c.BannerTimeout <= 0 {
		errs = append(errs, errors.New("banner_timeout must be positive"))
	}
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("log_level: %w", err))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

// Logger builds the logger described by c. With no LogFile it returns a
// no-op logger.
func (c Config) Logger() (*zap.Logger, error) {
	if c.LogFile == "" {
		return zap.NewNop(), nil
	}
	level, err := zapcore.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.OutputPaths = []string{c.LogFile}
	zc.ErrorOutputPaths = []string{c.LogFile}
	zc.Encoding = "json"
	if strings.HasSuffix(c.LogFile, ".log") {
		zc.Encoding = "console"
		zc.EncoderConfig = zap.NewDevelopmentEncoderConfig()
	}
	return zc.Build()
}
