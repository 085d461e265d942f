// Package registry builds the qualified-name lookup of VM-callable
// definitions by walking the VM's hierarchy of node registries.
//
// The walk is breadth-first. Leaf registries contribute their definition
// tables; the first definition seen for a name wins. The resulting Lookup is
// partial by contract: definitions whose backing member cannot be resolved
// are skipped, and so are registries that fail to enumerate.
package registry

import "fmt"

// DefinitionKind classifies what a registry definition is backed by.
type DefinitionKind string

const (
	KindMethod      DefinitionKind = "Method"
	KindField       DefinitionKind = "Field"
	KindConstructor DefinitionKind = "Constructor"
	KindOperator    DefinitionKind = "Operator"
	KindUnknown     DefinitionKind = "Unknown"
)

// ParseKind maps a kind name onto a DefinitionKind. Unrecognized names map to
// KindUnknown.
func ParseKind(s string) DefinitionKind {
	switch DefinitionKind(s) {
	case KindMethod, KindField, KindConstructor, KindOperator:
		return DefinitionKind(s)
	default:
		return KindUnknown
	}
}

// Direction is how a parameter flows through a call.
type Direction string

const (
	DirIn    Direction = "In"
	DirOut   Direction = "Out"
	DirInOut Direction = "InOut"
)

// Parameter is one declared parameter of a backing member.
type Parameter struct {
	Name      string
	Type      string
	Direction Direction
}

// Member describes the implementation member behind a definition.
type Member struct {
	Name       string
	Parameters []Parameter
}

// First returns the first parameter, if any.
func (m *Member) First() (Parameter, bool) {
	if m == nil || len(m.Parameters) == 0 {
		return Parameter{}, false
	}
	return m.Parameters[0], true
}

// Last returns the last parameter, if any.
func (m *Member) Last() (Parameter, bool) {
	if m == nil || len(m.Parameters) == 0 {
		return Parameter{}, false
	}
	return m.Parameters[len(m.Parameters)-1], true
}

// Definition is a raw row of a leaf registry's definition table.
type Definition struct {
	FullName string
	Kind     DefinitionKind
	Type     string // declaring implementation type

	// Ref is an adapter-private handle passed back to the Resolver.
	Ref any
}

// NodeDefinitionInfo is a definition with its resolved backing member.
// Immutable once the scan returns.
type NodeDefinitionInfo struct {
	FullName string
	Kind     DefinitionKind
	Type     string
	Member   *Member // nil when the kind has no member descriptor
}

// Registry is one node of the registry hierarchy.
type Registry interface {
	Name() string
	// Children returns sub-registries in order. Empty for a leaf.
	Children() ([]Registry, error)
	// Definitions returns the definition table of a leaf.
	Definitions() ([]Definition, error)
}

// Resolver recovers the backing member of a definition.
type Resolver interface {
	ResolveMember(def Definition) (*Member, error)
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(def Definition) (*Member, error)

// ResolveMember calls f(def).
func (f ResolverFunc) ResolveMember(def Definition) (*Member, error) { return f(def) }

// StructuralError reports a registry that could not be enumerated.
type StructuralError struct {
	Path string // slash-joined registry names from the root
	Op   string // "children" or "definitions"
	Err  error
}

func (e *StructuralError) Error() string {
	return fmt.Sprintf("registry %s: %s: %v", e.Path, e.Op, e.Err)
}

func (e *StructuralError) Unwrap() error { return e.Err }

// ResolveError reports a definition whose member could not be resolved.
type ResolveError struct {
	FullName string
	Err      error
}

func (e *ResolveError) Error() string {
	return fmt.Sprintf("resolve %s: %v", e.FullName, e.Err)
}

func (e *ResolveError) Unwrap() error { return e.Err }
