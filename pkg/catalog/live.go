package catalog

import (
	"sync/atomic"

	"github.com/ritzau/msedit/pkg/model"
)

// Live is a TypeDescriber whose registry can be swapped when the catalogue
// file changes. Nodes already built keep the descriptions they were
// created with.
type Live struct {
	current atomic.Pointer[model.TypeRegistry]
}

// NewLive wraps r
func NewLive(r *model.TypeRegistry) *Live {
	l := &Live{}
	l.current.Store(r)
	return l
}

// Reload replaces the registry with the catalogue files matching pattern.
// On error the previous registry stays in place.
func (l *Live) Reload(pattern string) error {
	r, err := Load(pattern)
	if err != nil {
		return err
	}
	l.current.Store(r)
	return nil
}

// Registry returns the registry currently in use
func (l *Live) Registry() *model.TypeRegistry {
	return l.current.Load()
}

// DescribeType implements model.TypeDescriber
func (l *Live) DescribeType(t model.TypeName) (*model.TypeDescription, error) {
	return l.current.Load().DescribeType(t)
}
