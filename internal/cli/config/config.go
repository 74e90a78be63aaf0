package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"codejudge/internal/judge/sandbox/profile"

	"gopkg.in/yaml.v3"
)

const (
	DefaultBaseURL        = "http://127.0.0.1:8085"
	DefaultTimeout        = 10 * time.Second
	DefaultPollInterval   = 500 * time.Millisecond
	DefaultCompileTimeout = 5 * time.Second
)

// Config holds CLI configuration.
type Config struct {
	BaseURL      string        `yaml:"baseURL"`
	Timeout      time.Duration `yaml:"timeout"`
	UserID       int64         `yaml:"userID"`
	PollInterval time.Duration `yaml:"pollInterval"`
	PrettyJSON   *bool         `yaml:"prettyJSON"`

	// WorkRoot holds sandbox directories for local grading. Empty uses a temp dir.
	WorkRoot       string                 `yaml:"workRoot"`
	CompileTimeout time.Duration          `yaml:"compileTimeout"`
	Languages      []profile.LanguageSpec `yaml:"languages"`
}

// Load reads path. A missing file yields the defaults.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return cfg, fmt.Errorf("read config file failed: %w", err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config file failed: %w", err)
		}
	}
	applyDefaults(&cfg)
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.CompileTimeout == 0 {
		cfg.CompileTimeout = DefaultCompileTimeout
	}
	if cfg.PrettyJSON == nil {
		value := true
		cfg.PrettyJSON = &value
	}
}
