package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// FileName is the optional config file read from the working directory
const FileName = "msedit.toml"

// Config holds all configuration for the application
type Config struct {
	File         string        `koanf:"file"`
	Types        string        `koanf:"types"`
	WebMode      bool          `koanf:"web"`
	Port         int           `koanf:"port"`
	Watch        bool          `koanf:"watch"`
	OpenBrowser  bool          `koanf:"open"`
	User         string        `koanf:"user"`
	Editors      string        `koanf:"editors"`
	UndoCapacity int           `koanf:"undo_capacity"`
	RunTimeout   time.Duration `koanf:"run_timeout"`
	RunParallel  int           `koanf:"run_parallel"`
	WorkDir      string        `koanf:"workdir"`
	Runner       string        `koanf:"runner"`
	History      string        `koanf:"history"`
	MQTTURL      string        `koanf:"mqtt_url"`
	MQTTPrefix   string        `koanf:"mqtt_prefix"`
	TokenSecret  string        `koanf:"token_secret"`
	TokenTTL     time.Duration `koanf:"token_ttl"`
	IssueToken   string        `koanf:"issue_token"`
	JSONLogs     bool          `koanf:"json_logs"`
	Verbosity    string        `koanf:"verbosity"`
	VerboseCnt   int           `koanf:"verbose"`
}

// EditorList returns the users granted write access. Empty means everyone.
func (c *Config) EditorList() []string {
	var editors []string
	for _, e := range strings.Split(c.Editors, ",") {
		if e = strings.TrimSpace(e); e != "" {
			editors = append(editors, e)
		}
	}
	return editors
}

// Load loads configuration from defaults, config file, environment variables, and flags.
// Priority: Flags > Env > Config File > Defaults
func Load(f *pflag.FlagSet) (*Config, error) {
	return load(f, FileName)
}

func load(f *pflag.FlagSet, configFile string) (*Config, error) {
	k := koanf.New(".")

	// 1. Defaults
	defaults := map[string]interface{}{
		"file":          "",
		"types":         "types.toml",
		"web":           false,
		"port":          8080,
		"watch":         false,
		"open":          false,
		"user":          "",
		"editors":       "",
		"undo_capacity": 20,
		"run_timeout":   "5m",
		"run_parallel":  1,
		"workdir":       ".",
		"runner":        "",
		"history":       "",
		"mqtt_url":      "",
		"mqtt_prefix":   "msedit",
		"token_secret":  "",
		"token_ttl":     "12h",
		"issue_token":   "",
		"json_logs":     false,
		"verbosity":     "",
		"verbose":       0,
	}
	if err := k.Load(makeMapProvider(defaults), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Config File (optional) - msedit.toml
	// We ignore errors here as the file might not exist
	_ = k.Load(file.Provider(configFile), toml.Parser())

	// 3. Environment Variables
	// Prefix: MSEDIT_ (e.g., MSEDIT_UNDO_CAPACITY=50). Keys are flat, so
	// underscores are kept.
	if err := k.Load(env.Provider("MSEDIT_", ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, "MSEDIT_"))
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 4. Flags
	if f != nil {
		if err := k.Load(posflag.Provider(f, ".", k), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	// Unmarshal into struct
	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if cfg.UndoCapacity < 1 {
		return nil, fmt.Errorf("undo_capacity must be positive, got %d", cfg.UndoCapacity)
	}
	if cfg.RunParallel < 1 {
		return nil, fmt.Errorf("run_parallel must be positive, got %d", cfg.RunParallel)
	}

	return &cfg, nil
}

// Helper to use map as a provider
type mapProvider struct {
	m map[string]interface{}
}

func makeMapProvider(m map[string]interface{}) *mapProvider {
	return &mapProvider{m: m}
}

func (p *mapProvider) Read() (map[string]interface{}, error) {
	return p.m, nil
}

func (p *mapProvider) ReadBytes() ([]byte, error) {
	return nil, fmt.Errorf("not implemented")
}
