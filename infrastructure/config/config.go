// Package config loads application settings from a YAML file, an optional
// .env file and environment variables, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"lungscan-go/infrastructure/logging"
)

// Environment variables that override the config file.
const (
	EnvModel    = "LUNGSCAN_MODEL"
	EnvLogLevel = "LUNGSCAN_LOG_LEVEL"
)

// Config holds application settings.
type Config struct {
	// ModelPath is the model manifest. Empty means search the default locations.
	ModelPath string `yaml:"model_path"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`
	// PreloadModel loads the model at startup instead of on the first job.
	PreloadModel bool `yaml:"preload_model"`
	// PreviewSize is the longest side of the image preview, in pixels.
	PreviewSize int `yaml:"preview_size"`
	// MaxImagePixels rejects larger images before decoding them.
	MaxImagePixels int `yaml:"max_image_pixels"`
	// StopTimeout bounds how long shutdown waits for a running job.
	StopTimeout time.Duration `yaml:"stop_timeout"`
}

// DefaultConfig returns the built-in settings.
func DefaultConfig() *Config {
	return &Config{
		LogLevel:       "info",
		PreloadModel:   true,
		PreviewSize:    400,
		MaxImagePixels: 100_000_000,
		StopTimeout:    3 * time.Second,
	}
}

// DefaultPath returns os.UserConfigDir()/lungscan/config.yaml.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, logging.AppName, "config.yaml")
}

// LoadOptions selects the files Load reads.
type LoadOptions struct {
	// Path is the config file. Empty means DefaultPath, which may be absent.
	Path string
	// EnvFile is a dotenv file. Empty means ".env" in the working directory,
	// which may be absent.
	EnvFile string
}

// Load builds the configuration: defaults, then the YAML file, then the
// dotenv file and environment variables.
func Load(opts LoadOptions) (*Config, error) {
	cfg := DefaultConfig()

	path := opts.Path
	if path == "" {
		path = DefaultPath()
	}
	if err := cfg.readFile(path, opts.Path != ""); err != nil {
		return nil, err
	}

	envFile := opts.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	// godotenv never overrides variables that are already set.
	if err := godotenv.Load(envFile); err != nil && (opts.EnvFile != "" || !errors.Is(err, os.ErrNotExist)) {
		return nil, fmt.Errorf("failed to load env file %s: %w", envFile, err)
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) readFile(path string, required bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if !required && errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	if v, ok := os.LookupEnv(EnvModel); ok && v != "" {
		c.ModelPath = v
	}
	if v, ok := os.LookupEnv(EnvLogLevel); ok && v != "" {
		c.LogLevel = v
	}
}

// Validate checks the settings.
func (c *Config) Validate() error {
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.PreviewSize <= 0 {
		return fmt.Errorf("invalid config: preview_size must be positive, got %d", c.PreviewSize)
	}
	if c.MaxImagePixels <= 0 {
		return fmt.Errorf("invalid config: max_image_pixels must be positive, got %d", c.MaxImagePixels)
	}
	if c.StopTimeout <= 0 {
		return fmt.Errorf("invalid config: stop_timeout must be positive, got %s", c.StopTimeout)
	}
	return nil
}

// Level returns the parsed log level, or info if LogLevel is invalid.
func (c *Config) Level() slog.Level {
	level, _ := logging.ParseLevel(c.LogLevel)
	return level
}

// LoggingConfig returns logging options for these settings.
func (c *Config) LoggingConfig() *logging.Config {
	lc := logging.DefaultConfig()
	lc.Level = c.Level()
	lc.AddSource = lc.Level == slog.LevelDebug
	return lc
}
