package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultFile is looked up in the working directory when KLUDD_CONFIG isn't
// set. Changing the root with KLUDD_ROOT or -root doesn't move it.
const DefaultFile = "kludd.yaml"

// Config holds the settings for a kludd server
type Config struct {
	Host string `yaml:"host"` // empty listens on every interface
	Port int    `yaml:"port"`

	// Root is the directory being served
	Root string `yaml:"root"`
	// Paths containing InternalPrefix are served from the bundled assets
	InternalPrefix string `yaml:"internal_prefix"`
	// AssetsDir replaces the embedded assets with a directory on disk
	AssetsDir string `yaml:"assets_dir"`

	// Inject the live reload script into HTML responses
	Inject bool `yaml:"inject"`
	// AllowEscape lets request paths resolve outside of Root
	AllowEscape bool `yaml:"allow_escape"`
	// WatchAll watches every file under Root, not just served files
	WatchAll bool `yaml:"watch_all"`

	Color    bool   `yaml:"color"`
	LogLevel string `yaml:"log_level"`
}

// Default returns the configuration for serving dir
func Default(dir string) *Config {
	return &Config{
		Port:           7000,
		Root:           dir,
		InternalPrefix: "_kludd",
		Inject:         true,
		Color:          true,
		LogLevel:       "info",
	}
}

// Load builds the config from defaults, then the config file, then the
// environment.
func Load() (*Config, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("config: unable to get working directory: %w", err)
	}
	cfg := Default(wd)
	path := os.Getenv("KLUDD_CONFIG")
	if path == "" {
		path = filepath.Join(wd, DefaultFile)
	}
	if err := cfg.loadFile(path); err != nil {
		return nil, err
	}
	if err := cfg.loadEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && os.Getenv("KLUDD_CONFIG") == "" {
			return nil
		}
		return fmt.Errorf("config: unable to read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("config: unable to parse %s: %w", path, err)
	}
	return nil
}

func (c *Config) loadEnv() error {
	if v := os.Getenv("KLUDD_HOST"); v != "" {
		c.Host = v
	}
	if v := os.Getenv("KLUDD_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: invalid KLUDD_PORT %q: %w", v, err)
		}
		c.Port = port
	}
	if v := os.Getenv("KLUDD_ROOT"); v != "" {
		c.Root = v
	}
	if v := os.Getenv("KLUDD_ASSETS_DIR"); v != "" {
		c.AssetsDir = v
	}
	if v := os.Getenv("KLUDD_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	for key, field := range map[string]*bool{
		"KLUDD_INJECT":       &c.Inject,
		"KLUDD_ALLOW_ESCAPE": &c.AllowEscape,
		"KLUDD_WATCH_ALL":    &c.WatchAll,
		"KLUDD_COLOR":        &c.Color,
	} {
		v := os.Getenv(key)
		if v == "" {
			continue
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("config: invalid %s %q: %w", key, v, err)
		}
		*field = b
	}
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		c.Color = false
	}
	return nil
}

// Validate checks the config for mistakes
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("config: invalid port %d", c.Port)
	}
	if c.InternalPrefix == "" || strings.Contains(c.InternalPrefix, "/") {
		return fmt.Errorf("config: invalid internal prefix %q", c.InternalPrefix)
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	info, err := os.Stat(c.Root)
	if err != nil {
		return fmt.Errorf("config: invalid root: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("config: root %q is not a directory", c.Root)
	}
	return nil
}

// Level parses the log level
func (c *Config) Level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("config: invalid log level %q: %w", c.LogLevel, err)
	}
	return level, nil
}

// Address returns the address to listen on
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
