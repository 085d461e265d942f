package registry

import (
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRegistry struct {
	name     string
	children []Registry
	defs     []Definition
	childErr error
	defsErr  error
}

func (f *fakeRegistry) Name() string                       { return f.name }
func (f *fakeRegistry) Children() ([]Registry, error)      { return f.children, f.childErr }
func (f *fakeRegistry) Definitions() ([]Definition, error) { return f.defs, f.defsErr }

func leaf(name string, defs ...Definition) *fakeRegistry {
	return &fakeRegistry{name: name, defs: defs}
}

func def(name string, kind DefinitionKind, typ string) Definition {
	return Definition{FullName: name, Kind: kind, Type: typ}
}

func quietOpts() ScanOptions {
	return ScanOptions{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

// memberNamer resolves every definition to a member named after the part
// after the last dot, except names listed in fail.
func memberNamer(fail ...string) Resolver {
	return ResolverFunc(func(d Definition) (*Member, error) {
		for _, f := range fail {
			if f == d.FullName {
				return nil, errors.New("member not found")
			}
		}
		return &Member{Name: d.FullName}, nil
	})
}

func TestScanMergesLeavesBreadthFirst(t *testing.T) {
	root := &fakeRegistry{name: "root", children: []Registry{
		&fakeRegistry{name: "deep", children: []Registry{
			leaf("inner", def("A.x", KindMethod, "Deep.A")),
		}},
		leaf("shallow", def("A.x", KindField, "Shallow.A"), def("B.y", KindMethod, "B")),
	}}

	lookup, report := Scan(root, memberNamer(), quietOpts())

	// "shallow" is one level up from "inner", so its A.x is seen first.
	got := lookup.Get("A.x")
	require.NotNil(t, got)
	assert.Equal(t, KindField, got.Kind)
	assert.Equal(t, "Shallow.A", got.Type)

	assert.Equal(t, 2, lookup.Len())
	assert.Equal(t, []string{"A.x", "B.y"}, lookup.Names())
	assert.Equal(t, 4, report.Registries)
	assert.Equal(t, 2, report.Leaves)
	assert.Equal(t, 3, report.Definitions)
	assert.Equal(t, 1, report.Duplicates)
}

func TestScanFirstSeenWinsWithinLeaf(t *testing.T) {
	root := leaf("only",
		def("M.f", KindMethod, "First"),
		def("M.f", KindOperator, "Second"),
	)

	lookup, report := Scan(root, memberNamer(), quietOpts())
	assert.Equal(t, "First", lookup.Get("M.f").Type)
	assert.Equal(t, 1, report.Duplicates)
}

func TestScanSkipsUnresolvedEntry(t *testing.T) {
	root := leaf("only",
		def("M.good", KindMethod, "M"),
		def("M.bad", KindMethod, "M"),
		def("M.also", KindField, "M"),
	)

	lookup, report := Scan(root, memberNamer("M.bad"), quietOpts())

	assert.Nil(t, lookup.Get("M.bad"))
	assert.NotNil(t, lookup.Get("M.good"))
	assert.NotNil(t, lookup.Get("M.also"))
	require.Len(t, report.Unresolved, 1)
	assert.Equal(t, "M.bad", report.Unresolved[0].FullName)
	assert.Equal(t, 2, report.Resolved)
}

func TestScanStructuralFailureSkipsRegistry(t *testing.T) {
	root := &fakeRegistry{name: "root", children: []Registry{
		&fakeRegistry{name: "broken", childErr: errors.New("accessor missing")},
		&fakeRegistry{name: "nodefs", defsErr: errors.New("table missing")},
		leaf("fine", def("Ok.f", KindMethod, "Ok")),
	}}

	lookup, report := Scan(root, memberNamer(), quietOpts())

	assert.NotNil(t, lookup.Get("Ok.f"))
	require.Len(t, report.Structural, 2)
	assert.Equal(t, "root/broken", report.Structural[0].Path)
	assert.Equal(t, "children", report.Structural[0].Op)
	assert.Equal(t, "root/nodefs", report.Structural[1].Path)
	assert.Equal(t, "definitions", report.Structural[1].Op)
	assert.ErrorContains(t, report.Structural[1], "table missing")
}

func TestScanNilResolverKeepsMemberless(t *testing.T) {
	lookup, _ := Scan(leaf("only", def("Op.__op_Addition", KindOperator, "Op")), nil, quietOpts())
	got := lookup.Get("Op.__op_Addition")
	require.NotNil(t, got)
	assert.Nil(t, got.Member)
}

func TestScanNilRoot(t *testing.T) {
	lookup, report := Scan(nil, nil, quietOpts())
	assert.Equal(t, 0, lookup.Len())
	assert.Equal(t, 0, report.Registries)
}

func TestNilLookup(t *testing.T) {
	var l *Lookup
	assert.Nil(t, l.Get("x"))
	assert.Equal(t, 0, l.Len())
}

func TestParseKind(t *testing.T) {
	assert.Equal(t, KindOperator, ParseKind("Operator"))
	assert.Equal(t, KindUnknown, ParseKind("Event"))
	assert.Equal(t, KindUnknown, ParseKind(""))
}

func TestMemberFirstLast(t *testing.T) {
	m := &Member{Parameters: []Parameter{
		{Name: "instance", Type: "T", Direction: DirIn},
		{Name: "result", Type: "System.Int32", Direction: DirOut},
	}}
	first, ok := m.First()
	require.True(t, ok)
	assert.Equal(t, "instance", first.Name)
	last, ok := m.Last()
	require.True(t, ok)
	assert.Equal(t, DirOut, last.Direction)

	var none *Member
	_, ok = none.First()
	assert.False(t, ok)
}
