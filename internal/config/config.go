package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the nbt-verify configuration file.
type Config struct {
	Reader  ReaderConfig  `yaml:"reader"`
	Trust   TrustConfig   `yaml:"trust"`
	Log     LogConfig     `yaml:"log"`
	Session SessionConfig `yaml:"session"`
}

// ReaderConfig selects the PC/SC reader and how it is polled.
type ReaderConfig struct {
	Index        int           `yaml:"index"`
	Name         string        `yaml:"name"`
	PollInterval time.Duration `yaml:"poll_interval"`
	ShareMode    string        `yaml:"share_mode"`
}

// TrustConfig locates the trust anchors.
type TrustConfig struct {
	// AnchorsDir holds the anchor PEM files. Empty selects the bundled anchors.
	AnchorsDir string `yaml:"anchors_dir"`
}

// LogConfig sets the log level and output format.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// SessionConfig bounds a verification attempt.
type SessionConfig struct {
	VerifyTimeout time.Duration `yaml:"verify_timeout"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Reader: ReaderConfig{
			PollInterval: 250 * time.Millisecond,
			ShareMode:    "shared",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "auto",
		},
		Session: SessionConfig{
			VerifyTimeout: 10 * time.Second,
		},
	}
}

// Load reads a YAML file on top of the defaults. An empty path returns the defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg, err := decode(bytes.NewReader(content))
	if err != nil {
		return nil, err
	}
	cfg.resolvePaths(path)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes and validates a YAML document. Unknown keys are rejected and
// relative paths are kept as written.
func Parse(r io.Reader) (*Config, error) {
	cfg, err := decode(r)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decode(r io.Reader) (*Config, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	cfg := Default()
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse config yaml: %w", err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Reader.Index < 0 {
		return fmt.Errorf("config.reader.index must be >= 0")
	}
	if c.Reader.PollInterval <= 0 {
		return fmt.Errorf("config.reader.poll_interval must be > 0")
	}
	switch c.Reader.ShareMode {
	case "shared", "exclusive":
	default:
		return fmt.Errorf("config.reader.share_mode must be shared or exclusive, got %q", c.Reader.ShareMode)
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config.log.level must be debug, info, warn or error, got %q", c.Log.Level)
	}
	switch c.Log.Format {
	case "auto", "text", "json":
	default:
		return fmt.Errorf("config.log.format must be auto, text or json, got %q", c.Log.Format)
	}

	if c.Session.VerifyTimeout < 0 {
		return fmt.Errorf("config.session.verify_timeout must be >= 0")
	}
	if c.Trust.AnchorsDir != "" {
		if err := validateDir(c.Trust.AnchorsDir, "config.trust.anchors_dir"); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) resolvePaths(configPath string) {
	baseDir := filepath.Dir(configPath)
	c.Trust.AnchorsDir = resolvePath(baseDir, c.Trust.AnchorsDir)
}

func resolvePath(baseDir, p string) string {
	p = strings.TrimSpace(p)
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(baseDir, p)
}

// validateDir skips relative paths: they are only meaningful once resolved
// against the config file location.
func validateDir(path, field string) error {
	if !filepath.IsAbs(path) {
		return nil
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s must be a directory: %s", field, path)
	}
	return nil
}
