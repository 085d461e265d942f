package ir

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
)

// ProgramDocument is the canonical JSON description of one compiled program.
type ProgramDocument struct {
	ByteCodeHex       string                `json:"byteCodeHex"`    // uppercase, no separators
	ByteCodeLength    int                   `json:"byteCodeLength"` // always len(ByteCodeHex)/2
	Symbols           map[string]SymbolInfo `json:"symbols"`
	EntryPoints       []EntryPointInfo      `json:"entryPoints"` // export order
	HeapInitialValues HeapTable             `json:"heapInitialValues"`
}

// SymbolInfo describes one declared symbol of a program.
type SymbolInfo struct {
	Name    string   `json:"name"`
	Type    TypeName `json:"type"`
	Address uint32   `json:"address"`
}

// EntryPointInfo is one exported, externally invocable symbol.
type EntryPointInfo struct {
	Name    string `json:"name"`
	Address uint32 `json:"address"`
}

// HeapEntry is one initial heap slot.
type HeapEntry struct {
	Address uint32    `json:"address"`
	Type    TypeName  `json:"type"`
	Value   HeapValue `json:"value"`
}

// HeapValue wraps a heap slot's payload.
// When IsSerializable is false, Value holds a marshaled FallbackValue.
type HeapValue struct {
	IsSerializable bool            `json:"isSerializable"`
	Value          json.RawMessage `json:"value"`
}

// FallbackValue is the fixed-shape payload used for values that could not
// be serialized. Both fields are always present; either may be null.
type FallbackValue struct {
	Type     *string `json:"type"`
	ToString *string `json:"toString"`
}

// Fallback decodes the fallback payload of a non-serializable value.
// Returns false if the value is serializable or malformed.
func (v HeapValue) Fallback() (FallbackValue, bool) {
	if v.IsSerializable {
		return FallbackValue{}, false
	}
	var fb FallbackValue
	if err := json.Unmarshal(v.Value, &fb); err != nil {
		return FallbackValue{}, false
	}
	return fb, true
}

// String decodes the payload as a JSON string.
// Used for heap slots holding extern signatures and type names.
func (v HeapValue) String() (string, bool) {
	if !v.IsSerializable || len(v.Value) == 0 || v.Value[0] != '"' {
		return "", false
	}
	var s string
	if err := json.Unmarshal(v.Value, &s); err != nil {
		return "", false
	}
	return s, true
}

// Uint32 decodes the payload as an unsigned 32-bit integer.
func (v HeapValue) Uint32() (uint32, bool) {
	if !v.IsSerializable {
		return 0, false
	}
	n, err := strconv.ParseUint(string(bytes.TrimSpace(v.Value)), 10, 32)
	if err != nil {
		return 0, false
	}
	return uint32(n), true
}

// TypeName is a qualified type name. The empty name marshals as null.
type TypeName string

// MarshalJSON implements json.Marshaler for TypeName.
func (t TypeName) MarshalJSON() ([]byte, error) {
	if t == "" {
		return []byte("null"), nil
	}
	return json.Marshal(string(t))
}

// UnmarshalJSON implements json.Unmarshaler for TypeName.
func (t *TypeName) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*t = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("type name: %w", err)
	}
	*t = TypeName(s)
	return nil
}

// HeapTable maps heap addresses to entries.
// It marshals with keys in ascending numeric order; encoding/json would
// order integer keys by their decimal text instead.
type HeapTable map[uint32]HeapEntry

// SortedAddresses returns the table's addresses in ascending order.
func (h HeapTable) SortedAddresses() []uint32 {
	addrs := make([]uint32, 0, len(h))
	for a := range h {
		addrs = append(addrs, a)
	}
	slices.Sort(addrs)
	return addrs
}

// MarshalJSON implements json.Marshaler for HeapTable.
func (h HeapTable) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')

	for i, addr := range h.SortedAddresses() {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteByte('"')
		buf.WriteString(strconv.FormatUint(uint64(addr), 10))
		buf.WriteString(`":`)

		entry, err := marshalNoEscape(h[addr])
		if err != nil {
			return nil, fmt.Errorf("heap[%d]: %w", addr, err)
		}
		buf.Write(entry)
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON implements json.Unmarshaler for HeapTable.
func (h *HeapTable) UnmarshalJSON(data []byte) error {
	var raw map[string]HeapEntry
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*h = make(HeapTable, len(raw))
	for k, entry := range raw {
		addr, err := strconv.ParseUint(k, 10, 32)
		if err != nil {
			return fmt.Errorf("heap key %q: not an address", k)
		}
		(*h)[uint32(addr)] = entry
	}
	return nil
}

// MarshalDocument writes v as indented JSON: two-space indent, no HTML
// escaping, no byte-order mark, no trailing newline.
func MarshalDocument(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// UnmarshalProgram parses a program document.
func UnmarshalProgram(data []byte) (*ProgramDocument, error) {
	var doc ProgramDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("invalid program document: %w", err)
	}
	if doc.Symbols == nil {
		doc.Symbols = map[string]SymbolInfo{}
	}
	if doc.HeapInitialValues == nil {
		doc.HeapInitialValues = HeapTable{}
	}
	return &doc, nil
}

// SymbolAt returns the symbol declared at address, if any.
// When several symbols share an address, the lexically smallest name wins.
func (d *ProgramDocument) SymbolAt(address uint32) (SymbolInfo, bool) {
	var (
		found SymbolInfo
		ok    bool
	)
	for _, sym := range d.Symbols {
		if sym.Address != address {
			continue
		}
		if !ok || sym.Name < found.Name {
			found, ok = sym, true
		}
	}
	return found, ok
}

// marshalNoEscape marshals v without HTML escaping and without a trailing newline.
func marshalNoEscape(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}
