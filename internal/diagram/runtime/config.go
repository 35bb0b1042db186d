package runtime

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/lexcodex/godiagram/layout"
	"github.com/lexcodex/godiagram/session"
)

// WatcherConfig locates the watcher process. When Command is set the watcher
// is spawned and spoken to over stdio; otherwise Host:Port is dialed.
type WatcherConfig struct {
	Host         string        `yaml:"host" validate:"required_without=Command"`
	Port         int           `yaml:"port" validate:"min=0,max=65535"`
	Path         string        `yaml:"path" validate:"omitempty,startswith=/"`
	VersionToken string        `yaml:"version_token,omitempty"`
	Command      []string      `yaml:"command,omitempty"`
	Dir          string        `yaml:"dir,omitempty"`
	DialTimeout  time.Duration `yaml:"dial_timeout" validate:"min=0"`
}

// Endpoint converts the settings into a session endpoint.
func (w WatcherConfig) Endpoint() session.Endpoint {
	return session.Endpoint{
		Host:         w.Host,
		Port:         w.Port,
		Path:         w.Path,
		VersionToken: w.VersionToken,
		Command:      w.Command,
		Dir:          w.Dir,
		DialTimeout:  w.DialTimeout,
	}
}

// Config captures every knob shared by the godiagram CLI, TUI and API server.
// Workspace and ConfigPath come from flags only; everything else may also be
// set in the YAML config file.
type Config struct {
	Workspace        string        `yaml:"-" validate:"required"`
	ConfigPath       string        `yaml:"-"`
	LogPath          string        `yaml:"log_path" validate:"required"`
	JournalPath      string        `yaml:"journal_path"`
	JournalLimit     int           `yaml:"journal_limit" validate:"min=0"`
	ServerAddr       string        `yaml:"server_addr" validate:"required"`
	TransitionWindow time.Duration `yaml:"transition_window" validate:"min=0"`
	MaxNotices       int           `yaml:"max_notices" validate:"min=0"`
	Session          string        `yaml:"-"`
	Watcher          WatcherConfig `yaml:"watcher"`
}

// DefaultConfig infers defaults from the current working directory. Errors
// from os.Getwd are ignored so callers can override manually. Paths are
// relative to the workspace until Normalize resolves them.
func DefaultConfig() Config {
	cwd, err := os.Getwd()
	if err != nil {
		cwd = "."
	}
	endpoint := session.DefaultEndpoint()
	return Config{
		Workspace:        cwd,
		ConfigPath:       filepath.Join(".godiagram", "config.yaml"),
		LogPath:          filepath.Join(".godiagram", "godiagram.log"),
		JournalPath:      filepath.Join(".godiagram", "journal.db"),
		JournalLimit:     1024,
		ServerAddr:       "127.0.0.1:8087",
		TransitionWindow: layout.DefaultTransitionWindow,
		MaxNotices:       20,
		Watcher: WatcherConfig{
			Host:        endpoint.Host,
			Port:        endpoint.Port,
			Path:        endpoint.Path,
			DialTimeout: endpoint.DialTimeout,
		},
	}
}

// Normalize makes every path absolute, fills missing defaults and validates
// the result, so runtime initialization never re-checks the same invariants.
func (c *Config) Normalize() error {
	if c.Workspace == "" {
		return fmt.Errorf("workspace path required")
	}
	absWorkspace, err := filepath.Abs(c.Workspace)
	if err != nil {
		return fmt.Errorf("resolve workspace: %w", err)
	}
	c.Workspace = absWorkspace
	c.ConfigPath = c.ResolveConfigPath()
	c.LogPath = c.resolve(c.LogPath, "godiagram.log")
	if c.JournalPath != "" && !filepath.IsAbs(c.JournalPath) {
		c.JournalPath = filepath.Join(c.Workspace, c.JournalPath)
	}
	if c.ServerAddr == "" {
		c.ServerAddr = "127.0.0.1:8087"
	}
	if c.JournalLimit <= 0 {
		c.JournalLimit = 1024
	}
	if c.MaxNotices <= 0 {
		c.MaxNotices = 20
	}
	if c.TransitionWindow <= 0 {
		c.TransitionWindow = layout.DefaultTransitionWindow
	}
	defaults := session.DefaultEndpoint()
	if c.Watcher.Port == 0 {
		c.Watcher.Port = defaults.Port
	}
	if c.Watcher.Path == "" {
		c.Watcher.Path = defaults.Path
	}
	if c.Watcher.DialTimeout <= 0 {
		c.Watcher.DialTimeout = defaults.DialTimeout
	}
	if c.Watcher.Dir == "" {
		c.Watcher.Dir = c.Workspace
	}
	return c.Validate()
}

// ResolveConfigPath returns the config file location relative to the
// workspace.
func (c *Config) ResolveConfigPath() string {
	return c.resolve(c.ConfigPath, "config.yaml")
}

func (c *Config) resolve(path, name string) string {
	if path == "" {
		return filepath.Join(c.Workspace, ".godiagram", name)
	}
	if !filepath.IsAbs(path) {
		return filepath.Join(c.Workspace, path)
	}
	return path
}

// Validate checks the struct tags. Failures are returned as
// validator.ValidationErrors.
func (c Config) Validate() error {
	return validator.New(validator.WithRequiredStructEnabled()).Struct(c)
}

// LoadConfig overlays the YAML file at path onto base. Keys missing from the
// file keep base's values. A missing file is reported as os.ErrNotExist.
func LoadConfig(path string, base Config) (Config, error) {
	if path == "" {
		return base, fmt.Errorf("config path required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return base, err
	}
	cfg := base
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return base, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.Workspace, cfg.ConfigPath, cfg.Session = base.Workspace, base.ConfigPath, base.Session
	return cfg, nil
}

// SaveConfig persists cfg for future sessions.
func SaveConfig(path string, cfg Config) error {
	if path == "" {
		return fmt.Errorf("config path required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
