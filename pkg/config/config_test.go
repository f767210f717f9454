package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
)

func flags() *pflag.FlagSet {
	f := pflag.NewFlagSet("msedit", pflag.ContinueOnError)
	f.String("file", "", "")
	f.Int("port", 8080, "")
	f.Int("undo_capacity", 20, "")
	f.String("user", "", "")
	return f
}

func TestDefaults(t *testing.T) {
	cfg, err := load(flags(), filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Port != 8080 || cfg.UndoCapacity != 20 || cfg.RunParallel != 1 {
		t.Errorf("unexpected defaults %+v", cfg)
	}
	if cfg.RunTimeout != 5*time.Minute {
		t.Errorf("expected 5m run timeout, got %v", cfg.RunTimeout)
	}
	if cfg.TokenTTL != 12*time.Hour || cfg.MQTTPrefix != "msedit" || cfg.History != "" || cfg.Runner != "" {
		t.Errorf("unexpected optional defaults %+v", cfg)
	}
}

func TestPriority(t *testing.T) {
	path := filepath.Join(t.TempDir(), "msedit.toml")
	content := "port = 9000\nundo_capacity = 40\nuser = \"file-user\"\nrun_timeout = \"30s\"\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("MSEDIT_UNDO_CAPACITY", "50")
	t.Setenv("MSEDIT_EDITORS", "alice, bob,,")

	f := flags()
	if err := f.Parse([]string{"--user", "flag-user"}); err != nil {
		t.Fatal(err)
	}
	cfg, err := load(f, path)
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Port != 9000 {
		t.Errorf("file should override defaults, got port %d", cfg.Port)
	}
	if cfg.UndoCapacity != 50 {
		t.Errorf("env should override file, got %d", cfg.UndoCapacity)
	}
	if cfg.User != "flag-user" {
		t.Errorf("flags should override file, got %q", cfg.User)
	}
	if cfg.RunTimeout != 30*time.Second {
		t.Errorf("expected 30s, got %v", cfg.RunTimeout)
	}
	if editors := cfg.EditorList(); len(editors) != 2 || editors[0] != "alice" || editors[1] != "bob" {
		t.Errorf("unexpected editors %v", editors)
	}
}

func TestRejectsNonPositiveCapacity(t *testing.T) {
	t.Setenv("MSEDIT_UNDO_CAPACITY", "0")
	if _, err := load(nil, filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Error("expected an error for a zero undo capacity")
	}
}
