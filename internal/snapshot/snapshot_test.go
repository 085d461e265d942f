package snapshot

import (
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/udonmeta/internal/classify"
	"github.com/roach88/udonmeta/internal/ir"
	"github.com/roach88/udonmeta/internal/registry"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func loadSurface(t *testing.T) *Snapshot {
	t.Helper()
	s, err := Load("testdata/surface.yaml")
	require.NoError(t, err)
	return s
}

func TestLoadFillsDefaults(t *testing.T) {
	s := loadSurface(t)

	require.Len(t, s.Modules, 3)
	assert.False(t, s.Modules[0].Lazy)
	assert.True(t, s.Modules[1].Lazy)
	assert.Empty(t, s.Modules[2].Functions)

	int32Leaf := s.Root.Children[0].Children[0]
	parse := int32Leaf.Definitions[1].Member
	require.NotNil(t, parse)
	assert.Equal(t, "In", parse.Parameters[0].Direction)
	assert.Equal(t, "Out", parse.Parameters[1].Direction)
}

func TestScanSnapshot(t *testing.T) {
	s := loadSurface(t)
	lookup, report := registry.Scan(s.Registry(), s.Resolver(), registry.ScanOptions{Logger: discard()})

	assert.Equal(t, 5, lookup.Len())
	assert.Equal(t, 5, report.Registries)
	assert.Equal(t, 2, report.Leaves)
	assert.Equal(t, 6, report.Definitions)

	require.Len(t, report.Unresolved, 1)
	assert.Equal(t, "SystemInt32.__Broken__SystemVoid", report.Unresolved[0].FullName)
	require.Len(t, report.Structural, 1)
	assert.Equal(t, "Root/Events", report.Structural[0].Path)

	ctor := lookup.Get("UnityEngineTransform.__ctor____UnityEngineTransform")
	require.NotNil(t, ctor)
	assert.Equal(t, registry.KindConstructor, ctor.Kind)
	assert.Nil(t, ctor.Member)
}

func TestClassifySnapshotGolden(t *testing.T) {
	s := loadSurface(t)
	lookup, _ := registry.Scan(s.Registry(), s.Resolver(), registry.ScanOptions{Logger: discard()})

	index, report, err := classify.Classify(s.Surface(), lookup, classify.Options{Logger: discard()})
	require.NoError(t, err)
	require.Len(t, report.Skipped, 1)
	assert.Equal(t, "wrapper-broken", report.Skipped[0].Module)

	data, err := ir.MarshalDocument(index)
	require.NoError(t, err)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "surface_modules", data)
}

func TestLazySignatureError(t *testing.T) {
	s, err := Parse([]byte(`
root: {name: Root}
modules:
  - {id: a, name: A, lazy: true, signatureError: "counts unavailable"}
  - {id: b, name: B, signatureError: "field missing"}
`))
	require.NoError(t, err)

	surface := s.Surface()
	lazy, err := surface.FunctionSignatures(classify.Module{ID: "a"})
	require.NoError(t, err, "a lazy table only fails when listed")
	_, err = lazy.List()
	assert.EqualError(t, err, "counts unavailable")

	_, err = surface.FunctionSignatures(classify.Module{ID: "b"})
	assert.EqualError(t, err, "field missing")

	_, err = surface.ModuleExposedName(classify.Module{ID: "zzz"})
	assert.Error(t, err)
}

func TestParseJSON(t *testing.T) {
	s, err := Parse([]byte(`{"root": {"name": "Root", "definitions": [{"fullName": "A.f", "kind": "Event"}]}, "modules": []}`))
	require.NoError(t, err)

	lookup, _ := registry.Scan(s.Registry(), s.Resolver(), registry.ScanOptions{Logger: discard()})
	got := lookup.Get("A.f")
	require.NotNil(t, got)
	assert.Equal(t, registry.KindUnknown, got.Kind)
}

func TestParseRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"empty", ``},
		{"missing root", `modules: []`},
		{"unknown field", `{root: {name: R}, modules: [], extra: 1}`},
		{"bad direction", `
root:
  name: R
  definitions:
    - fullName: A.f
      member: {name: f, parameters: [{name: x, direction: Sideways}]}
modules: []`},
		{"negative parameter count", `{root: {name: R}, modules: [{id: m, name: M, functions: [{name: f, parameterCount: -1}]}]}`},
		{"unqualified name", `{root: {name: R, definitions: [{fullName: nodot}]}, modules: []}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			require.Error(t, err)
			var serr *SchemaError
			assert.True(t, errors.As(err, &serr), "want SchemaError, got %v", err)
		})
	}
}

func TestParseMalformedYAML(t *testing.T) {
	_, err := Parse([]byte("root: [unclosed"))
	require.Error(t, err)
}
