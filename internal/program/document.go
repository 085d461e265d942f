package program

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/roach88/udonmeta/internal/ir"
)

// Unserializable stands in for a heap value that an earlier encode could
// not serialize. It re-encodes to the same fallback object.
type Unserializable struct {
	Type     *string
	ToString *string
}

// MarshalJSON always fails, like the value it replaces.
func (u Unserializable) MarshalJSON() ([]byte, error) {
	return nil, fmt.Errorf("value of type %s was not serializable", deref(u.Type))
}

// Fallback returns the recorded fallback payload.
func (u Unserializable) Fallback() ir.FallbackValue {
	return ir.FallbackValue{Type: u.Type, ToString: u.ToString}
}

func deref(s *string) string {
	if s == nil {
		return "<nil>"
	}
	return *s
}

// FromDocument exposes an encoded Program document as a Program.
// Serializable heap values come back as json.RawMessage.
func FromDocument(doc *ir.ProgramDocument) (Program, error) {
	code, err := hex.DecodeString(doc.ByteCodeHex)
	if err != nil {
		return nil, fmt.Errorf("program: byteCodeHex: %w", err)
	}

	symbols := make([]Symbol, 0, len(doc.Symbols))
	for name, s := range doc.Symbols {
		symbols = append(symbols, Symbol{Name: name, Type: string(s.Type), Address: s.Address})
	}

	// Entry point types are not part of the document; borrow them from the
	// symbol table when the same name is declared there.
	entries := make([]Symbol, len(doc.EntryPoints))
	for i, ep := range doc.EntryPoints {
		entries[i] = Symbol{
			Name:     ep.Name,
			Type:     string(doc.Symbols[ep.Name].Type),
			Address:  ep.Address,
			Exported: true,
		}
	}

	slots := make(Slots, 0, len(doc.HeapInitialValues))
	for _, addr := range doc.HeapInitialValues.SortedAddresses() {
		entry := doc.HeapInitialValues[addr]
		slot := HeapSlot{Address: addr, Type: string(entry.Type)}
		if entry.Value.IsSerializable {
			slot.Value = json.RawMessage(entry.Value.Value)
		} else {
			fb, ok := entry.Value.Fallback()
			if !ok {
				return nil, fmt.Errorf("program: heap[%d]: malformed fallback value", addr)
			}
			slot.Value = Unserializable{Type: fb.Type, ToString: fb.ToString}
		}
		slots = append(slots, slot)
	}

	return &Static{
		Code:    code,
		Symbols: NewTable(symbols),
		Entries: NewTable(entries),
		Values:  slots,
	}, nil
}
