// Package config resolves debug-tree's runtime configuration from defaults,
// a YAML file, a .env file and the environment.
package config

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/jonasehrlich/debug-tree/internal/logging"
)

const (
	// AppDir is the directory name under the user's config home.
	AppDir = "debugtree"
	// FileName is the config file name inside AppDir.
	FileName = "config.yml"
)

// Environment variables read by Load.
const (
	EnvConfig      = "DEBUGTREE_CONFIG"
	EnvConfigHome  = "DEBUGTREE_CONFIG_HOME"
	EnvRepo        = "DEBUGTREE_REPO"
	EnvListen      = "DEBUGTREE_LISTEN"
	EnvDebounce    = "DEBUGTREE_DEBOUNCE"
	EnvRenameScore = "DEBUGTREE_RENAME_SCORE"
	EnvLogLevel    = "DEBUGTREE_LOG_LEVEL"
	EnvLogFormat   = "DEBUGTREE_LOG_FORMAT"
)

// Config holds application-wide configuration.
type Config struct {
	// RepoPath is any path inside the repository to serve.
	RepoPath string `yaml:"repo,omitempty"`
	// Listen is the HTTP listen address.
	Listen string `yaml:"listen,omitempty"`
	// Debounce is the quiet period before the watcher recomputes status.
	Debounce time.Duration `yaml:"debounce,omitempty"`
	// RenameScore is the minimum similarity percentage for rename detection.
	RenameScore uint   `yaml:"rename_score,omitempty"`
	LogLevel    string `yaml:"log_level,omitempty"`
	LogFormat   string `yaml:"log_format,omitempty"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		RepoPath:    ".",
		Listen:      "127.0.0.1:8080",
		Debounce:    time.Second,
		RenameScore: 50,
		LogLevel:    "info",
		LogFormat:   "text",
	}
}

// Dir returns the debug-tree configuration directory.
//
// Resolution:
//   - $DEBUGTREE_CONFIG_HOME if set
//   - $XDG_CONFIG_HOME/debugtree if set
//   - %AppData%/debugtree on Windows
//   - ~/.config/debugtree otherwise
func Dir() string {
	if dir := os.Getenv(EnvConfigHome); dir != "" {
		return dir
	}
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, AppDir)
	}
	if runtime.GOOS == "windows" {
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, AppDir)
		}
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", AppDir)
}

// Path returns the config file to read: $DEBUGTREE_CONFIG, else config.yml
// in Dir.
func Path() string {
	if p := os.Getenv(EnvConfig); p != "" {
		return p
	}
	dir := Dir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, FileName)
}

// Load resolves the configuration. path overrides Path when non-empty. A
// .env file in the working directory fills in variables that are not
// already set.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()
	if path == "" {
		path = Path()
	}
	return load(path, os.LookupEnv)
}

func load(path string, lookup func(string) (string, bool)) (*Config, error) {
	cfg := Default()
	if err := cfg.mergeFile(path); err != nil {
		return nil, err
	}
	if err := cfg.mergeEnv(lookup); err != nil {
		return nil, err
	}
	return cfg, nil
}

// mergeFile overlays the YAML file at path. A missing file is not an error.
func (c *Config) mergeFile(path string) error {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing config %s: %w", path, err)
	}
	return nil
}

func (c *Config) mergeEnv(lookup func(string) (string, bool)) error {
	get := func(key string) (string, bool) {
		v, ok := lookup(key)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}
	if v, ok := get(EnvRepo); ok {
		c.RepoPath = v
	}
	if v, ok := get(EnvListen); ok {
		c.Listen = v
	}
	if v, ok := get(EnvDebounce); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvDebounce, err)
		}
		c.Debounce = d
	}
	if v, ok := get(EnvRenameScore); ok {
		n, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvRenameScore, err)
		}
		c.RenameScore = uint(n)
	}
	if v, ok := get(EnvLogLevel); ok {
		c.LogLevel = v
	}
	if v, ok := get(EnvLogFormat); ok {
		c.LogFormat = v
	}
	return nil
}

// Validate reports every out-of-range value.
func (c *Config) Validate() error {
	var errs []error
	if c.RepoPath == "" {
		errs = append(errs, errors.New("repo path must not be empty"))
	}
	if _, _, err := net.SplitHostPort(c.Listen); err != nil {
		errs = append(errs, fmt.Errorf("listen address %q: %w", c.Listen, err))
	}
	if c.Debounce <= 0 {
		errs = append(errs, fmt.Errorf("debounce must be positive, got %s", c.Debounce))
	}
	if c.RenameScore < 1 || c.RenameScore > 100 {
		errs = append(errs, fmt.Errorf("rename score must be between 1 and 100, got %d", c.RenameScore))
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("unknown log format %q", c.LogFormat))
	}
	return errors.Join(errs...)
}

// Logger builds the logger described by the configuration, writing to w.
func (c *Config) Logger(w io.Writer) (logging.Logger, error) {
	level, err := logging.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, err
	}
	return logging.New(w, c.LogFormat, level)
}
