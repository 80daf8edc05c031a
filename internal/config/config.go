package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultFile is the configuration file looked up in the working directory.
const DefaultFile = "stencil.yaml"

// Environment variables that override file settings.
const (
	EnvHome     = "STENCIL_HOME"
	EnvPacksDir = "STENCIL_PACKS_DIR"
	EnvLogLevel = "STENCIL_LOG_LEVEL"
)

// Config is the resolved run configuration.
type Config struct {
	// PacksDir is the project pack directory
	PacksDir string `yaml:"packs_dir"`

	// Packs lists the packs to apply; base is implied
	Packs []string `yaml:"packs"`

	// Spec is the project spec file
	Spec string `yaml:"spec"`

	// Target is the project root that output is written to or compared with
	Target string `yaml:"target"`

	Log LogConfig `yaml:"log"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		PacksDir: "packs",
		Spec:     "stencil.spec.yaml",
		Target:   ".",
		Log: LogConfig{
			Level:  "warn",
			Format: "text",
		},
	}
}

// Load reads the configuration file at path over the defaults. An empty path
// means DefaultFile, which may be absent. Relative paths in the file are
// resolved against the file's directory.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	dir := filepath.Dir(path)
	for _, p := range []*string{&cfg.PacksDir, &cfg.Spec, &cfg.Target} {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(dir, *p)
		}
	}

	return cfg, nil
}

// ApplyEnv overrides settings from the environment.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := getenv(EnvPacksDir); v != "" {
		c.PacksDir = v
	}
	if v := getenv(EnvLogLevel); v != "" {
		c.Log.Level = v
	}
}

// Validate checks enumerated settings.
func (c *Config) Validate() error {
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level %q (want debug, info, warn or error)", c.Log.Level)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log format %q (want text or json)", c.Log.Format)
	}
	if c.PacksDir == "" {
		return fmt.Errorf("packs_dir must not be empty")
	}
	return nil
}
