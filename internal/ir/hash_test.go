package ir

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDocument() *ProgramDocument {
	return &ProgramDocument{
		ByteCodeHex:    "0000000100000000",
		ByteCodeLength: 8,
		Symbols: map[string]SymbolInfo{
			"__const_SystemInt32_0": {Name: "__const_SystemInt32_0", Type: "System.Int32", Address: 0},
			"message":               {Name: "message", Type: "System.String", Address: 1},
		},
		EntryPoints: []EntryPointInfo{{Name: "_start", Address: 0}},
		HeapInitialValues: HeapTable{
			0: {Address: 0, Type: "System.Int32", Value: HeapValue{IsSerializable: true, Value: json.RawMessage(`7`)}},
			1: {Address: 1, Type: "System.String", Value: HeapValue{IsSerializable: true, Value: json.RawMessage(`"hi"`)}},
		},
	}
}

func TestProgramIDDeterminism(t *testing.T) {
	id1, err := ProgramID(sampleDocument())
	require.NoError(t, err)

	id2, err := ProgramID(sampleDocument())
	require.NoError(t, err)

	assert.Equal(t, id1, id2, "ProgramID must be deterministic")
	assert.Len(t, id1, 64, "SHA-256 hex is 64 characters")
}

func TestProgramIDIgnoresFormatting(t *testing.T) {
	doc := sampleDocument()

	indented, err := MarshalDocument(doc)
	require.NoError(t, err)

	parsed, err := UnmarshalProgram(indented)
	require.NoError(t, err)

	assert.Equal(t, MustProgramID(doc), MustProgramID(parsed))
}

func TestProgramIDChangesWithContent(t *testing.T) {
	base := MustProgramID(sampleDocument())

	changedHeap := sampleDocument()
	changedHeap.HeapInitialValues[0] = HeapEntry{
		Address: 0, Type: "System.Int32",
		Value: HeapValue{IsSerializable: true, Value: json.RawMessage(`8`)},
	}

	changedEntry := sampleDocument()
	changedEntry.EntryPoints = append(changedEntry.EntryPoints, EntryPointInfo{Name: "_update", Address: 4})

	assert.NotEqual(t, base, MustProgramID(changedHeap), "Different heap values should produce different IDs")
	assert.NotEqual(t, base, MustProgramID(changedEntry), "Different entry points should produce different IDs")
}

func TestProgramIDEntryPointOrderMatters(t *testing.T) {
	a := sampleDocument()
	a.EntryPoints = []EntryPointInfo{{Name: "_start", Address: 0}, {Name: "_update", Address: 8}}

	b := sampleDocument()
	b.EntryPoints = []EntryPointInfo{{Name: "_update", Address: 8}, {Name: "_start", Address: 0}}

	assert.NotEqual(t, MustProgramID(a), MustProgramID(b), "entry point order is part of the identity")
}

func TestModuleIndexDigestKeyOrdering(t *testing.T) {
	idx1 := ModuleIndex{
		"SystemInt32": {Type: "System.Int32", Functions: []FunctionDefinition{}},
		"SystemMath":  {Type: "System.Math", Functions: []FunctionDefinition{}},
	}
	idx2 := ModuleIndex{
		"SystemMath":  {Type: "System.Math", Functions: []FunctionDefinition{}},
		"SystemInt32": {Type: "System.Int32", Functions: []FunctionDefinition{}},
	}

	d1, err := ModuleIndexDigest(idx1)
	require.NoError(t, err)
	d2, err := ModuleIndexDigest(idx2)
	require.NoError(t, err)

	assert.Equal(t, d1, d2, "Key ordering must be deterministic regardless of insertion order")
}

func TestDomainSeparationPreventsCrossTypeCollision(t *testing.T) {
	data := []byte(`{}`)

	assert.NotEqual(t, hashWithDomain(DomainProgram, data), hashWithDomain(DomainModules, data))
}

func TestHashWithDomainNullSeparator(t *testing.T) {
	// "foo" + 0x00 + "bar" != "foob" + 0x00 + "ar"
	hash1 := hashWithDomain("foo", []byte("bar"))
	hash2 := hashWithDomain("foob", []byte("ar"))

	assert.NotEqual(t, hash1, hash2, "Null separator must prevent boundary confusion")
}

func TestDomainConstants(t *testing.T) {
	assert.Equal(t, "udonmeta/program/v1", DomainProgram)
	assert.Equal(t, "udonmeta/modules/v1", DomainModules)
}
