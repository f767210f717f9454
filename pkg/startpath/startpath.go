// Package startpath names model-system starts with dotted paths such as
// "Sub.Inner.Start". The last element is the start; the others are child
// boundaries below the global boundary. A literal dot or backslash inside a
// name is escaped with a backslash.
package startpath

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ritzau/msedit/pkg/model"
)

// ErrInvalid is wrapped by every malformed path
var ErrInvalid = errors.New("invalid start path")

// Parse splits path into its boundary names and the start name
func Parse(path string) (boundaries []string, start string, err error) {
	var parts []string
	var cur strings.Builder
	escaped := false
	for _, r := range path {
		switch {
		case escaped:
			cur.WriteRune(r)
			escaped = false
		case r == '\\':
			escaped = true
		case r == '.':
			parts = append(parts, cur.String())
			cur.Reset()
		default:
			cur.WriteRune(r)
		}
	}
	if escaped {
		return nil, "", fmt.Errorf("%w: %q ends with an escape", ErrInvalid, path)
	}
	parts = append(parts, cur.String())

	for _, p := range parts {
		if strings.TrimSpace(p) == "" {
			return nil, "", fmt.Errorf("%w: %q has an empty element", ErrInvalid, path)
		}
	}
	return parts[:len(parts)-1], parts[len(parts)-1], nil
}

// Format joins boundary names and a start name into a path
func Format(boundaries []string, start string) string {
	parts := make([]string, 0, len(boundaries)+1)
	for _, b := range boundaries {
		parts = append(parts, escape(b))
	}
	parts = append(parts, escape(start))
	return strings.Join(parts, ".")
}

// Of returns the path naming start
func Of(start *model.Node) string {
	if start.Boundary() == nil {
		return escape(start.Name())
	}
	return Format(start.Boundary().Path(), start.Name())
}

// Resolve finds the start named by path in ms
func Resolve(ms *model.ModelSystem, path string) (*model.Node, error) {
	boundaries, start, err := Parse(path)
	if err != nil {
		return nil, err
	}
	return ms.FindStart(boundaries, start)
}

var escaper = strings.NewReplacer(`\`, `\\`, `.`, `\.`)

func escape(name string) string {
	return escaper.Replace(name)
}
