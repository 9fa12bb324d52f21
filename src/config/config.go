// Package config loads specgen settings from flags, environment, .env and an optional YAML file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/Protocol-Lattice/specgen/src/logging"
)

// ErrNoAPIKey is the configuration error raised when no credential is available.
// It is fatal at startup.
var ErrNoAPIKey = errors.New("GROQ_API_KEY is not set in the environment")

// Config is the fully resolved configuration.
type Config struct {
	APIKey         string        `mapstructure:"api_key"`
	BaseURL        string        `mapstructure:"base_url"`
	Model          string        `mapstructure:"model"`
	Temperature    float32       `mapstructure:"temperature"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	Workspace      string        `mapstructure:"workspace"`
	Ignore         []string      `mapstructure:"ignore"`
	Log            LogConfig     `mapstructure:"log"`
	Metrics        MetricsConfig `mapstructure:"metrics"`
	Hooks          HooksConfig   `mapstructure:"hooks"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

type MetricsConfig struct {
	// Addr is the listen address for the Prometheus endpoint. Empty disables it.
	Addr string `mapstructure:"addr"`
}

// HooksConfig configures the optional UTCP tool called after each applied file.
type HooksConfig struct {
	UTCPProviders string `mapstructure:"utcp_providers"`
	PostApplyTool string `mapstructure:"post_apply_tool"`
}

// Enabled reports whether a post-apply hook is configured.
func (h HooksConfig) Enabled() bool {
	return h.UTCPProviders != "" && h.PostApplyTool != ""
}

// Default returns the built-in defaults.
func Default() *Config {
	return &Config{
		BaseURL:     "https://api.groq.com/openai/v1",
		Model:       "gemma2-9b-it",
		Temperature: 0.1,
		Log: LogConfig{
			Level: logging.LevelInfo,
		},
	}
}

// SetDefaults registers the defaults on v.
func SetDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("base_url", d.BaseURL)
	v.SetDefault("model", d.Model)
	v.SetDefault("temperature", d.Temperature)
	v.SetDefault("request_timeout", d.RequestTimeout)
	v.SetDefault("workspace", "")
	v.SetDefault("ignore", []string{})
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.file", "")
	v.SetDefault("metrics.addr", "")
	v.SetDefault("hooks.utcp_providers", "")
	v.SetDefault("hooks.post_apply_tool", "")
}

// Init prepares v: loads env files (".env" when none are named), wires SPECGEN_* and
// GROQ_API_KEY environment variables and reads the config file if one exists.
// A missing default config file is not an error; a missing explicit one is.
func Init(v *viper.Viper, cfgFile string, envFiles ...string) error {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", f, err)
		}
	}

	SetDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(Dir())
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("SPECGEN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("api_key", "SPECGEN_API_KEY", "GROQ_API_KEY"); err != nil {
		return err
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile == "" && errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("failed to read config: %w", err)
	}
	return nil
}

// Load unmarshals and validates the configuration held by v.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks every field and joins the failures.
func (c *Config) Validate() error {
	var errs []error
	if c.APIKey == "" {
		errs = append(errs, ErrNoAPIKey)
	}
	if c.BaseURL == "" {
		errs = append(errs, errors.New("base_url must not be empty"))
	}
	if c.Model == "" {
		errs = append(errs, errors.New("model must not be empty"))
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		errs = append(errs, fmt.Errorf("temperature %.2f out of range [0, 2]", c.Temperature))
	}
	if c.RequestTimeout < 0 {
		errs = append(errs, errors.New("request_timeout must not be negative"))
	}
	if !logging.ValidLevel(c.Log.Level) {
		errs = append(errs, fmt.Errorf("invalid log.level %q", c.Log.Level))
	}
	if (c.Hooks.UTCPProviders == "") != (c.Hooks.PostApplyTool == "") {
		errs = append(errs, errors.New("hooks.utcp_providers and hooks.post_apply_tool must be set together"))
	}
	return errors.Join(errs...)
}

// WorkspaceRoot returns the absolute workspace root, defaulting to the working directory.
func (c *Config) WorkspaceRoot() (string, error) {
	root := c.Workspace
	if root == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", err
		}
		root = wd
	}
	return filepath.Abs(root)
}

// Dir returns the user's specgen config directory.
func Dir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "specgen")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".specgen"
	}
	return filepath.Join(home, ".config", "specgen")
}
