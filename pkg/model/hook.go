package model

import (
	"fmt"
	"strings"
	"sync"
)

// Cardinality is the multiplicity contract of a hook
type Cardinality int

const (
	Single         Cardinality = iota // exactly one module
	SingleOptional                    // zero or one module
	AtLeastOne                        // one or more modules
	AnyNumber                         // zero or more modules
)

func (c Cardinality) String() string {
	switch c {
	case Single:
		return "single"
	case SingleOptional:
		return "single-optional"
	case AtLeastOne:
		return "at-least-one"
	case AnyNumber:
		return "any-number"
	default:
		return "unknown"
	}
}

// IsMulti reports whether links from a hook of this cardinality carry a destination list
func (c Cardinality) IsMulti() bool {
	return c == AtLeastOne || c == AnyNumber
}

// IsRequired reports whether a hook of this cardinality must be linked before construction
func (c Cardinality) IsRequired() bool {
	return c == Single || c == AtLeastOne
}

// ParseCardinality accepts the names produced by Cardinality.String
func ParseCardinality(s string) (Cardinality, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "single", "":
		return Single, nil
	case "single-optional", "optional":
		return SingleOptional, nil
	case "at-least-one":
		return AtLeastOne, nil
	case "any-number", "any":
		return AnyNumber, nil
	default:
		return Single, fmt.Errorf("unknown cardinality %q", s)
	}
}

// TypeName identifies a module type
type TypeName string

// Hook is one typed attachment point declared by a module type.
// Hooks are shared read-only by every node of the type.
type Hook struct {
	Name         string
	Cardinality  Cardinality
	Index        int
	IsParameter  bool
	DefaultValue string
	Type         TypeName // declared type of the hook
	// ParameterType is the value type of the parameter wrapper the hook
	// accepts. Empty when the hook does not take a generated parameter.
	ParameterType TypeName
}

// TypeDescription is what a TypeDescriber knows about a module type
type TypeDescription struct {
	Name        TypeName
	DisplayName string
	Hooks       []*Hook
	IsParameter bool
}

// Hook returns the named hook, or nil
func (d *TypeDescription) Hook(name string) *Hook {
	for _, h := range d.Hooks {
		if h.Name == name {
			return h
		}
	}
	return nil
}

// TypeDescriber resolves module types to their hook sets
type TypeDescriber interface {
	DescribeType(t TypeName) (*TypeDescription, error)
}

// ModuleConstructor turns a node into an executable module instance
type ModuleConstructor interface {
	ConstructInstance(t TypeName, node *Node) (any, error)
}

// StartType is the pseudo-type carried by every Start
const StartType TypeName = "ModelSystemStart"

// StartHookName is the single hook of a Start
const StartHookName = "ToExecute"

var startDescription = &TypeDescription{
	Name:        StartType,
	DisplayName: "Start",
	Hooks: []*Hook{
		{Name: StartHookName, Cardinality: Single, Index: 0},
	},
}

// StartDescription returns the fixed description shared by all starts
func StartDescription() *TypeDescription {
	return startDescription
}

const (
	parameterPrefix = "BasicParameter["
	parameterSuffix = "]"
)

// BasicParameterType is the generic parameter wrapper type for a value type
func BasicParameterType(valueType TypeName) TypeName {
	return TypeName(parameterPrefix + string(valueType) + parameterSuffix)
}

// ParameterValueType returns the wrapped value type if t is a parameter wrapper
func ParameterValueType(t TypeName) (TypeName, bool) {
	s := string(t)
	if !strings.HasPrefix(s, parameterPrefix) || !strings.HasSuffix(s, parameterSuffix) {
		return "", false
	}
	inner := strings.TrimSuffix(strings.TrimPrefix(s, parameterPrefix), parameterSuffix)
	if inner == "" {
		return "", false
	}
	return TypeName(inner), true
}

// TypeRegistry is a registration-table TypeDescriber. Parameter wrapper
// types are synthesized on demand.
type TypeRegistry struct {
	mu    sync.RWMutex
	types map[TypeName]*TypeDescription
}

// NewTypeRegistry creates a registry that already knows the start pseudo-type
func NewTypeRegistry() *TypeRegistry {
	return &TypeRegistry{
		types: map[TypeName]*TypeDescription{
			StartType: startDescription,
		},
	}
}

// Register adds a type. Hook indices are assigned in declaration order.
func (r *TypeRegistry) Register(desc TypeDescription) error {
	if strings.TrimSpace(string(desc.Name)) == "" {
		return fmt.Errorf("register type: %w", ErrBlankName)
	}
	if _, ok := ParameterValueType(desc.Name); ok {
		return fmt.Errorf("register type %s: parameter wrappers are built in", desc.Name)
	}

	seen := make(map[string]bool, len(desc.Hooks))
	hooks := make([]*Hook, len(desc.Hooks))
	for i, h := range desc.Hooks {
		if h == nil || strings.TrimSpace(h.Name) == "" {
			return fmt.Errorf("register type %s: hook %d: %w", desc.Name, i, ErrBlankName)
		}
		if seen[h.Name] {
			return fmt.Errorf("register type %s: hook %s: %w", desc.Name, h.Name, ErrDuplicateName)
		}
		seen[h.Name] = true
		copied := *h
		copied.Index = i
		hooks[i] = &copied
	}
	if desc.DisplayName == "" {
		desc.DisplayName = string(desc.Name)
	}
	desc.Hooks = hooks

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.types[desc.Name]; exists {
		return fmt.Errorf("register type %s: %w", desc.Name, ErrDuplicateName)
	}
	r.types[desc.Name] = &desc
	return nil
}

// DescribeType implements TypeDescriber
func (r *TypeRegistry) DescribeType(t TypeName) (*TypeDescription, error) {
	r.mu.RLock()
	desc, ok := r.types[t]
	r.mu.RUnlock()
	if ok {
		return desc, nil
	}

	valueType, isParam := ParameterValueType(t)
	if !isParam {
		return nil, fmt.Errorf("type %s: %w", t, ErrUnknownType)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if desc, ok := r.types[t]; ok {
		return desc, nil
	}
	desc = &TypeDescription{
		Name:        t,
		DisplayName: "Parameter<" + string(valueType) + ">",
		IsParameter: true,
	}
	r.types[t] = desc
	return desc, nil
}

// Types lists the registered type names
func (r *TypeRegistry) Types() []TypeName {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]TypeName, 0, len(r.types))
	for name := range r.types {
		names = append(names, name)
	}
	return names
}
