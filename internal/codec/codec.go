// Package codec turns host assets into Program documents.
//
// Decode runs extract -> hex -> gzip -> Deserializer. Encode walks a
// Program and produces the ir.ProgramDocument consumers read.
package codec

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/roach88/udonmeta/internal/asset"
	"github.com/roach88/udonmeta/internal/heapval"
	"github.com/roach88/udonmeta/internal/ir"
	"github.com/roach88/udonmeta/internal/program"
)

// ErrNoProgram is returned when an asset carries no program blob.
// It is not a failure; callers skip the asset.
var ErrNoProgram = errors.New("no program present")

// Decoder extracts and deserializes programs from asset text.
type Decoder struct {
	extractor    *asset.Extractor
	deserializer program.Deserializer
}

// NewDecoder creates a decoder. An empty key selects asset.DefaultKey; a nil
// deserializer selects program.CBORDeserializer.
func NewDecoder(key string, d program.Deserializer) *Decoder {
	if d == nil {
		d = program.CBORDeserializer{}
	}
	return &Decoder{extractor: asset.NewExtractor(key), deserializer: d}
}

// Decode extracts the program blob from asset text and deserializes it.
func (d *Decoder) Decode(text string) (program.Program, error) {
	data, err := d.extractor.Extract(text)
	if errors.Is(err, asset.ErrNoBlob) {
		return nil, ErrNoProgram
	}
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}

	p, err := d.deserializer.Deserialize(data)
	if err != nil {
		return nil, fmt.Errorf("decode: deserialize: %w", err)
	}
	if p == nil {
		return nil, errors.New("decode: deserializer returned no program")
	}
	return p, nil
}

// DecodeFile reads an asset file as UTF-8 text and decodes it.
func (d *Decoder) DecodeFile(path string) (program.Program, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	p, err := d.Decode(string(data))
	if err != nil && !errors.Is(err, ErrNoProgram) {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return p, err
}

// Encode builds the Program document. A symbol that cannot be resolved
// aborts the encode; heap values never do.
func Encode(p program.Program) (*ir.ProgramDocument, error) {
	code := p.ByteCode()
	doc := &ir.ProgramDocument{
		ByteCodeHex:       strings.ToUpper(hex.EncodeToString(code)),
		ByteCodeLength:    len(code),
		Symbols:           make(map[string]ir.SymbolInfo),
		EntryPoints:       []ir.EntryPointInfo{},
		HeapInitialValues: make(ir.HeapTable),
	}

	symbols := p.SymbolTable()
	for _, name := range symbols.Symbols() {
		addr, err := symbols.Address(name)
		if err != nil {
			return nil, fmt.Errorf("encode: symbol %q: %w", name, err)
		}
		typ, err := symbols.Type(name)
		if err != nil {
			return nil, fmt.Errorf("encode: symbol %q: %w", name, err)
		}
		doc.Symbols[name] = ir.SymbolInfo{Name: name, Type: ir.TypeName(typ), Address: addr}
	}

	entries := p.EntryPoints()
	for _, name := range entries.ExportedSymbols() {
		addr, err := entries.Address(name)
		if err != nil {
			return nil, fmt.Errorf("encode: entry point %q: %w", name, err)
		}
		doc.EntryPoints = append(doc.EntryPoints, ir.EntryPointInfo{Name: name, Address: addr})
	}

	for _, slot := range p.Heap().Dump() {
		doc.HeapInitialValues[slot.Address] = ir.HeapEntry{
			Address: slot.Address,
			Type:    ir.TypeName(slot.Type),
			Value:   heapval.Serialize(slot.Value, slot.Type),
		}
	}

	return doc, nil
}

// Marshal renders a Program document: two-space indent, no HTML escaping,
// no byte-order mark, no trailing newline.
func Marshal(doc *ir.ProgramDocument) ([]byte, error) {
	return ir.MarshalDocument(doc)
}

// EncodeJSON is Encode followed by Marshal.
func EncodeJSON(p program.Program) ([]byte, *ir.ProgramDocument, error) {
	doc, err := Encode(p)
	if err != nil {
		return nil, nil, err
	}
	data, err := Marshal(doc)
	if err != nil {
		return nil, nil, fmt.Errorf("encode: marshal: %w", err)
	}
	return data, doc, nil
}
