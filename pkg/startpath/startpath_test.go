package startpath

import (
	"errors"
	"slices"
	"testing"

	"github.com/ritzau/msedit/pkg/model"
)

func TestParse(t *testing.T) {
	tests := []struct {
		path       string
		boundaries []string
		start      string
	}{
		{"Start", nil, "Start"},
		{"Sub.Start", []string{"Sub"}, "Start"},
		{"A.B.Go", []string{"A", "B"}, "Go"},
		{`v1\.2.Run`, []string{"v1.2"}, "Run"},
		{`back\\slash.Run`, []string{`back\slash`}, "Run"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			boundaries, start, err := Parse(tt.path)
			if err != nil {
				t.Fatal(err)
			}
			if start != tt.start || !slices.Equal(boundaries, tt.boundaries) {
				t.Errorf("Parse(%q) = %v, %q; want %v, %q", tt.path, boundaries, start, tt.boundaries, tt.start)
			}
			if got := Format(boundaries, start); got != tt.path {
				t.Errorf("Format = %q, want %q", got, tt.path)
			}
		})
	}
}

func TestParseRejectsMalformed(t *testing.T) {
	for _, path := range []string{"", "A..Start", "Start.", `Start\`, " . "} {
		if _, _, err := Parse(path); !errors.Is(err, ErrInvalid) {
			t.Errorf("Parse(%q): expected ErrInvalid, got %v", path, err)
		}
	}
}

func TestResolveAndOf(t *testing.T) {
	ms := model.NewModelSystem(model.Header{Name: "Test"})
	sub, _ := ms.GlobalBoundary().AddBoundary("Sub.Net")
	start, _ := sub.AddStart("Go")

	if got := Of(start); got != `Sub\.Net.Go` {
		t.Errorf("unexpected path %q", got)
	}
	found, err := Resolve(ms, Of(start))
	if err != nil || found != start {
		t.Errorf("Resolve returned %v, %v", found, err)
	}
	if _, err := Resolve(ms, "Go"); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("start lives in Sub.Net, not global; got %v", err)
	}
}
