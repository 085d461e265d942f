// Package program defines the in-memory view of a compiled VM program.
//
// Programs come from a Deserializer. The VM's own object-graph format is
// not read here; hosts export programs as a CBOR Image instead, and
// already-encoded JSON documents can be reopened with FromDocument.
package program

import (
	"errors"
	"fmt"
)

// Program is one compiled unit.
type Program interface {
	ByteCode() []byte
	SymbolTable() SymbolTable
	EntryPoints() SymbolTable
	Heap() Heap
}

// SymbolTable maps declared names to heap addresses and types.
type SymbolTable interface {
	// Symbols returns every declared name.
	Symbols() []string

	// ExportedSymbols returns exported names in export order.
	ExportedSymbols() []string

	Address(name string) (uint32, error)

	// Type returns the qualified type name, or "" when the type is unknown.
	Type(name string) (string, error)
}

// Heap exposes a program's initial values.
type Heap interface {
	Dump() []HeapSlot
}

// HeapSlot is one initial heap value.
type HeapSlot struct {
	Address uint32
	Value   any
	Type    string
}

// Deserializer turns decompressed blob bytes into a Program.
type Deserializer interface {
	Deserialize(data []byte) (Program, error)
}

// DeserializerFunc adapts a function to the Deserializer interface.
type DeserializerFunc func(data []byte) (Program, error)

// Deserialize calls f(data).
func (f DeserializerFunc) Deserialize(data []byte) (Program, error) { return f(data) }

// ErrUnknownSymbol is returned by SymbolTable lookups for undeclared names.
var ErrUnknownSymbol = errors.New("unknown symbol")

func unknownSymbol(name string) error {
	return fmt.Errorf("%w %q", ErrUnknownSymbol, name)
}
