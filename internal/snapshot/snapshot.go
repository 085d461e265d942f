// Package snapshot reads a host-exported description of the VM surface and
// serves it through the registry and classify adapter interfaces.
//
// A snapshot is YAML or JSON. It is validated against an embedded CUE
// schema before use; host-side failures (a registry that would not
// enumerate, a member that would not resolve) are carried as error strings
// and replayed as errors through the adapters.
package snapshot

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"gopkg.in/yaml.v3"

	"github.com/roach88/udonmeta/internal/classify"
	"github.com/roach88/udonmeta/internal/registry"
)

//go:embed schema.cue
var schemaSource string

// Snapshot is a decoded VM surface.
type Snapshot struct {
	Root    RegistryNode  `json:"root"`
	Modules []ModuleEntry `json:"modules"`
}

// RegistryNode is one registry of the hierarchy.
type RegistryNode struct {
	Name        string            `json:"name"`
	Children    []RegistryNode    `json:"children,omitempty"`
	Definitions []DefinitionEntry `json:"definitions,omitempty"`
	Error       string            `json:"error,omitempty"`
}

// DefinitionEntry is one leaf definition.
type DefinitionEntry struct {
	FullName     string       `json:"fullName"`
	Kind         string       `json:"kind"`
	Type         string       `json:"type"`
	Member       *MemberEntry `json:"member,omitempty"`
	ResolveError string       `json:"resolveError,omitempty"`
}

// MemberEntry is the backing member of a definition.
type MemberEntry struct {
	Name       string           `json:"name"`
	Parameters []ParameterEntry `json:"parameters"`
}

// ParameterEntry is one member parameter.
type ParameterEntry struct {
	Name      string `json:"name"`
	Type      string `json:"type"`
	Direction string `json:"direction"`
}

// ModuleEntry is one wrapper module.
type ModuleEntry struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	Lazy           bool            `json:"lazy"`
	Functions      []FunctionEntry `json:"functions"`
	NameError      string          `json:"nameError,omitempty"`
	SignatureError string          `json:"signatureError,omitempty"`
}

// FunctionEntry is one exposed callable.
type FunctionEntry struct {
	Name           string `json:"name"`
	ParameterCount int    `json:"parameterCount"`
}

// SchemaError reports a snapshot that does not match the schema.
type SchemaError struct {
	Path    string
	Message string
}

func (e *SchemaError) Error() string {
	if e.Path == "" {
		return "snapshot: " + e.Message
	}
	return fmt.Sprintf("snapshot: %s: %s", e.Path, e.Message)
}

// Load reads and parses a snapshot file.
func Load(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	s, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// Parse decodes YAML or JSON snapshot text, validates it and fills schema
// defaults.
func Parse(data []byte) (*Snapshot, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("snapshot: %w", err)
	}
	if raw == nil {
		return nil, &SchemaError{Message: "empty document"}
	}

	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("snapshot: compile schema: %w", err)
	}

	v := schema.LookupPath(cue.ParsePath("#Snapshot")).Unify(ctx.Encode(raw))
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, schemaError(err)
	}

	var s Snapshot
	if err := v.Decode(&s); err != nil {
		return nil, schemaError(err)
	}
	return &s, nil
}

func schemaError(err error) error {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return &SchemaError{Message: err.Error()}
	}
	first := errs[0]
	format, args := first.Msg()
	return &SchemaError{
		Path:    strings.Join(first.Path(), "."),
		Message: fmt.Sprintf(format, args...),
	}
}

// Registry returns the root registry.
func (s *Snapshot) Registry() registry.Registry {
	return node{n: &s.Root}
}

// Resolver resolves members of definitions produced by Registry.
func (s *Snapshot) Resolver() registry.Resolver {
	return registry.ResolverFunc(resolve)
}

// Surface returns the wrapper-module surface.
func (s *Snapshot) Surface() classify.Surface {
	return surface{s: s}
}

type node struct{ n *RegistryNode }

func (r node) Name() string { return r.n.Name }

func (r node) Children() ([]registry.Registry, error) {
	if r.n.Error != "" {
		return nil, errors.New(r.n.Error)
	}
	children := make([]registry.Registry, len(r.n.Children))
	for i := range r.n.Children {
		children[i] = node{n: &r.n.Children[i]}
	}
	return children, nil
}

func (r node) Definitions() ([]registry.Definition, error) {
	if r.n.Error != "" {
		return nil, errors.New(r.n.Error)
	}
	defs := make([]registry.Definition, len(r.n.Definitions))
	for i := range r.n.Definitions {
		e := &r.n.Definitions[i]
		defs[i] = registry.Definition{
			FullName: e.FullName,
			Kind:     registry.ParseKind(e.Kind),
			Type:     e.Type,
			Ref:      e,
		}
	}
	return defs, nil
}

func resolve(def registry.Definition) (*registry.Member, error) {
	e, ok := def.Ref.(*DefinitionEntry)
	if !ok {
		return nil, fmt.Errorf("definition %s was not produced by a snapshot", def.FullName)
	}
	if e.ResolveError != "" {
		return nil, errors.New(e.ResolveError)
	}
	if e.Member == nil {
		return nil, nil
	}

	m := &registry.Member{Name: e.Member.Name, Parameters: make([]registry.Parameter, len(e.Member.Parameters))}
	for i, p := range e.Member.Parameters {
		m.Parameters[i] = registry.Parameter{Name: p.Name, Type: p.Type, Direction: registry.Direction(p.Direction)}
	}
	return m, nil
}

type surface struct{ s *Snapshot }

func (f surface) ListModules() ([]classify.Module, error) {
	mods := make([]classify.Module, len(f.s.Modules))
	for i, m := range f.s.Modules {
		mods[i] = classify.Module{ID: m.ID}
	}
	return mods, nil
}

func (f surface) entry(m classify.Module) (*ModuleEntry, error) {
	for i := range f.s.Modules {
		if f.s.Modules[i].ID == m.ID {
			return &f.s.Modules[i], nil
		}
	}
	return nil, fmt.Errorf("no module with id %q", m.ID)
}

func (f surface) ModuleExposedName(m classify.Module) (string, error) {
	e, err := f.entry(m)
	if err != nil {
		return "", err
	}
	if e.NameError != "" {
		return "", errors.New(e.NameError)
	}
	return e.Name, nil
}

func (f surface) FunctionSignatures(m classify.Module) (classify.Signatures, error) {
	e, err := f.entry(m)
	if err != nil {
		return nil, err
	}
	if e.SignatureError != "" && !e.Lazy {
		return nil, errors.New(e.SignatureError)
	}

	load := func() ([]classify.Signature, error) {
		if e.SignatureError != "" {
			return nil, errors.New(e.SignatureError)
		}
		sigs := make([]classify.Signature, len(e.Functions))
		for i, fn := range e.Functions {
			sigs[i] = classify.Signature{Name: fn.Name, ParameterCount: fn.ParameterCount}
		}
		return sigs, nil
	}
	if e.Lazy {
		return classify.NewLazySignatures(load), nil
	}
	sigs, err := load()
	if err != nil {
		return nil, err
	}
	return classify.EagerSignatures(sigs), nil
}
