package program

import "sort"

// Symbol is one declared name in a Table.
type Symbol struct {
	Name     string
	Type     string
	Address  uint32
	Exported bool
}

// Table is an in-memory SymbolTable.
// Declaration order is kept; Symbols returns names sorted.
type Table struct {
	order  []string
	byName map[string]Symbol
}

// NewTable builds a table. Later duplicates of a name replace earlier ones
// but keep the first declaration position.
func NewTable(symbols []Symbol) *Table {
	t := &Table{byName: make(map[string]Symbol, len(symbols))}
	for _, s := range symbols {
		if _, seen := t.byName[s.Name]; !seen {
			t.order = append(t.order, s.Name)
		}
		t.byName[s.Name] = s
	}
	return t
}

// Symbols returns every declared name in lexical order.
func (t *Table) Symbols() []string {
	names := make([]string, 0, len(t.byName))
	for name := range t.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ExportedSymbols returns exported names in declaration order.
func (t *Table) ExportedSymbols() []string {
	var names []string
	for _, name := range t.order {
		if t.byName[name].Exported {
			names = append(names, name)
		}
	}
	return names
}

// Address returns the heap address of a declared name.
func (t *Table) Address(name string) (uint32, error) {
	s, ok := t.byName[name]
	if !ok {
		return 0, unknownSymbol(name)
	}
	return s.Address, nil
}

// Type returns the declared type of a name.
func (t *Table) Type(name string) (string, error) {
	s, ok := t.byName[name]
	if !ok {
		return "", unknownSymbol(name)
	}
	return s.Type, nil
}

// Slots is an in-memory Heap.
type Slots []HeapSlot

// Dump returns the slots in ascending address order.
func (s Slots) Dump() []HeapSlot {
	out := make([]HeapSlot, len(s))
	copy(out, s)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Address < out[j].Address })
	return out
}

// Static is a Program assembled from in-memory parts.
type Static struct {
	Code    []byte
	Symbols *Table
	Entries *Table
	Values  Slots
}

func (p *Static) ByteCode() []byte          { return p.Code }
func (p *Static) SymbolTable() SymbolTable { return p.Symbols }
func (p *Static) EntryPoints() SymbolTable { return p.Entries }
func (p *Static) Heap() Heap               { return p.Values }
