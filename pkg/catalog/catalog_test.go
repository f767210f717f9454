package catalog

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ritzau/msedit/pkg/model"
)

func writeCatalogue(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "types.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadFile(t *testing.T) {
	path := writeCatalogue(t, `
[[types]]
name = "Demo.Worker"

[[types]]
name = "Demo.Pipeline"
display_name = "Pipeline"

  [[types.hooks]]
  name = "Steps"
  cardinality = "any-number"
  type = "Demo.Worker"

  [[types.hooks]]
  name = "Count"
  parameter = true
  parameter_type = "int"
  default = "3"
`)
	r, err := LoadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	desc, err := r.DescribeType("Demo.Pipeline")
	if err != nil {
		t.Fatal(err)
	}
	if desc.DisplayName != "Pipeline" || len(desc.Hooks) != 2 {
		t.Fatalf("unexpected description %+v", desc)
	}
	steps := desc.Hook("Steps")
	if steps.Cardinality != model.AnyNumber || steps.Type != "Demo.Worker" || steps.Index != 0 {
		t.Errorf("unexpected Steps hook %+v", steps)
	}
	count := desc.Hook("Count")
	if count.Cardinality != model.Single || !count.IsParameter || count.DefaultValue != "3" || count.ParameterType != "int" {
		t.Errorf("unexpected Count hook %+v", count)
	}
	if _, err := r.DescribeType("Demo.Worker"); err != nil {
		t.Errorf("worker type missing: %v", err)
	}
}

func TestLoadFileErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"bad cardinality", `
[[types]]
name = "A"
  [[types.hooks]]
  name = "H"
  cardinality = "lots"
`, "unknown cardinality"},
		{"parameter without type", `
[[types]]
name = "A"
  [[types.hooks]]
  name = "H"
  parameter = true
`, "parameter_type"},
		{"duplicate type", `
[[types]]
name = "A"
[[types]]
name = "A"
`, "already exists"},
		{"not toml", `[[types`, "failed to read"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFile(writeCatalogue(t, tt.content))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestLiveReload(t *testing.T) {
	path := writeCatalogue(t, "[[types]]\nname = \"Demo.Worker\"\n")
	r, err := LoadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	live := NewLive(r)
	if _, err := live.DescribeType("Demo.Extra"); err == nil {
		t.Fatal("Demo.Extra should not exist yet")
	}

	if err := os.WriteFile(path, []byte("[[types]]\nname = \"Demo.Worker\"\n\n[[types]]\nname = \"Demo.Extra\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := live.Reload(path); err != nil {
		t.Fatal(err)
	}
	if _, err := live.DescribeType("Demo.Extra"); err != nil {
		t.Errorf("reloaded catalogue should describe Demo.Extra: %v", err)
	}

	if err := os.WriteFile(path, []byte("[[types]]\nname = \"X\"\n  [[types.hooks]]\n  name = \"H\"\n  cardinality = \"sometimes\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := live.Reload(path); err == nil {
		t.Fatal("expected a broken catalogue to fail")
	}
	if live.Registry() == nil {
		t.Fatal("registry lost")
	}
	if _, err := live.DescribeType("Demo.Extra"); err != nil {
		t.Error("a failed reload must keep the previous registry")
	}
}

func TestLoadPatternMergesFormats(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"core/workers.toml": "[[types]]\nname = \"Demo.Worker\"\n",
		"extra/pipeline.yaml": `types:
  - name: Demo.Pipeline
    hooks:
      - name: Steps
        cardinality: any-number
`,
		"extra/deep/probe.json": `{"types": [{"name": "Demo.Probe"}]}`,
		"notes.txt":             "not a catalogue",
	}
	for name, content := range files {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	r, err := Load(filepath.Join(dir, "**", "*.{toml,yaml,json}"))
	if err != nil {
		t.Fatal(err)
	}
	if len(r.Types()) != 3 {
		t.Fatalf("expected 3 types, got %v", r.Types())
	}
	pipeline, err := r.DescribeType("Demo.Pipeline")
	if err != nil {
		t.Fatal(err)
	}
	if h := pipeline.Hook("Steps"); h == nil || h.Cardinality != model.AnyNumber {
		t.Errorf("yaml hook not decoded: %+v", pipeline.Hooks)
	}

	if _, err := Load(filepath.Join(dir, "missing", "*.toml")); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("expected ErrNotExist for an empty match, got %v", err)
	}
	if _, err := LoadFile(filepath.Join(dir, "notes.txt")); err == nil {
		t.Error("expected an error for an unknown format")
	}

	dup := filepath.Join(dir, "core", "again.toml")
	if err := os.WriteFile(dup, []byte("[[types]]\nname = \"Demo.Worker\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(filepath.Join(dir, "core", "*.toml")); err == nil {
		t.Error("expected an error for a type defined twice")
	}
}
