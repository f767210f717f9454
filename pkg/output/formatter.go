package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/ritzau/msedit/pkg/cycles"
	"github.com/ritzau/msedit/pkg/graph"
	"github.com/ritzau/msedit/pkg/model"
	"github.com/ritzau/msedit/pkg/startpath"
)

// BoundaryLine is one row of the boundary tree
type BoundaryLine struct {
	Depth  int
	Name   string
	Starts int
	Nodes  int
	Links  int
}

// Report summarizes a model system for the console
type Report struct {
	Name        string
	Path        string
	Boundaries  []BoundaryLine
	Starts      []string
	Problems    []string
	Unreachable []string
	Cycles      [][]string
}

// Valid reports whether the model system would construct
func (r *Report) Valid() bool { return len(r.Problems) == 0 }

func qualified(n *model.Node) string {
	return strings.Join(append(n.Boundary().Path(), n.Name()), ".")
}

// BuildReport inspects ms without modifying it
func BuildReport(ms *model.ModelSystem) *Report {
	r := &Report{Name: ms.Header().Name, Path: ms.Header().Path}

	ms.GlobalBoundary().Walk(func(b *model.Boundary) bool {
		r.Boundaries = append(r.Boundaries, BoundaryLine{
			Depth:  len(b.Path()),
			Name:   b.Name(),
			Starts: len(b.Starts()),
			Nodes:  len(b.Nodes()),
			Links:  len(b.Links()),
		})
		for _, s := range b.Starts() {
			r.Starts = append(r.Starts, startpath.Of(s))
		}
		return true
	})

	if _, err := ms.Construct(nil); err != nil {
		for _, line := range strings.Split(err.Error(), "\n") {
			if line = strings.TrimSpace(line); line != "" {
				r.Problems = append(r.Problems, line)
			}
		}
	}

	lg := graph.Build(ms, graph.Options{})
	for _, n := range lg.Unreachable() {
		r.Unreachable = append(r.Unreachable, qualified(n))
	}
	for _, c := range cycles.FindLinkCycles(lg) {
		names := make([]string, len(c.Nodes))
		for i, n := range c.Nodes {
			names[i] = qualified(n)
		}
		r.Cycles = append(r.Cycles, names)
	}
	return r
}

// PrintReport writes a nicely formatted report with colors
func PrintReport(w io.Writer, r *Report) {
	bold := color.New(color.Bold)
	red := color.New(color.FgRed)
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)
	cyan := color.New(color.FgCyan)

	// Header
	bold.Fprintf(w, "Model System: %s\n", r.Name)
	bold.Fprintln(w, strings.Repeat("=", len("Model System: ")+len(r.Name)))
	if r.Path != "" {
		fmt.Fprintf(w, "File: %s\n", r.Path)
	}
	fmt.Fprintln(w)

	bold.Fprintln(w, "BOUNDARIES:")
	for _, b := range r.Boundaries {
		indent := strings.Repeat("  ", b.Depth+1)
		cyan.Fprintf(w, "%s%s", indent, b.Name)
		fmt.Fprintf(w, " (%d starts, %d nodes, %d links)\n", b.Starts, b.Nodes, b.Links)
	}
	fmt.Fprintln(w)

	if len(r.Starts) == 0 {
		yellow.Fprintln(w, "No starts: nothing can be run")
	} else {
		bold.Fprintln(w, "STARTS:")
		for _, s := range r.Starts {
			fmt.Fprintf(w, "  %s\n", s)
		}
	}
	fmt.Fprintln(w)

	if len(r.Problems) > 0 {
		red.Fprintln(w, "PROBLEMS:")
		for _, p := range r.Problems {
			yellow.Fprintf(w, "  %s\n", p)
		}
		fmt.Fprintln(w)
	}
	if len(r.Unreachable) > 0 {
		yellow.Fprintln(w, "NOT REACHABLE FROM ANY START:")
		for _, n := range r.Unreachable {
			fmt.Fprintf(w, "  %s\n", n)
		}
		fmt.Fprintln(w)
	}
	if len(r.Cycles) > 0 {
		yellow.Fprintln(w, "LINK CYCLES:")
		for _, c := range r.Cycles {
			fmt.Fprintf(w, "  %s\n", strings.Join(c, " -> "))
		}
		fmt.Fprintln(w)
	}

	if r.Valid() {
		green.Fprintln(w, "✓ Model system is ready to run")
	} else {
		red.Fprintf(w, "Summary: %d problem(s)\n", len(r.Problems))
	}
}
