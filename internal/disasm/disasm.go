// Package disasm decodes the bytecode of a Program document into an
// instruction listing.
//
// Operands of PUSH, ANNOTATION and JUMP_INDIRECT name the symbol at their
// address. EXTERN operands name the signature string stored in the heap,
// and, given a module index, carry the classified function behind it.
package disasm

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"sort"

	"github.com/roach88/udonmeta/internal/ir"
)

// Mode selects how decoding problems are handled.
type Mode int

const (
	// Strict stops at the first problem.
	Strict Mode = iota
	// BestEffort records problems as diagnostics and keeps going.
	BestEffort
)

// Options configures Disassemble.
type Options struct {
	Mode    Mode
	Modules ir.ModuleIndex // optional
}

// Error is a decoding problem at a bytecode address.
type Error struct {
	Address uint32
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%08x: %s", e.Address, e.Message)
}

// Instruction is one decoded instruction.
type Instruction struct {
	Address    uint32
	Op         Opcode
	Operand    uint32
	HasOperand bool

	// OperandName is the resolved symbol or extern signature, if any.
	OperandName string

	// Extern is set for EXTERN instructions found in the module index.
	Extern *ir.ExternInfo
}

// Next is the address of the following instruction.
func (in Instruction) Next() uint32 { return in.Address + in.Op.Size() }

func (in Instruction) String() string {
	switch {
	case in.OperandName != "":
		return fmt.Sprintf("%08x: %s %s", in.Address, in.Op, in.OperandName)
	case in.HasOperand:
		return fmt.Sprintf("%08x: %s 0x%08x", in.Address, in.Op, in.Operand)
	default:
		return fmt.Sprintf("%08x: %s", in.Address, in.Op)
	}
}

// Entry is an entry point of the listing.
type Entry struct {
	Name    string
	Address uint32

	// CallTarget is where the body starts when the entry first pushes the
	// halt return address. Zero with HasCallTarget false otherwise.
	CallTarget    uint32
	HasCallTarget bool
}

// Listing is a disassembled program.
type Listing struct {
	Instructions []Instruction
	Entries      []Entry
	Diagnostics  []*Error
}

// At returns the instruction starting at address.
func (l *Listing) At(address uint32) (Instruction, bool) {
	i := sort.Search(len(l.Instructions), func(i int) bool {
		return l.Instructions[i].Address >= address
	})
	if i < len(l.Instructions) && l.Instructions[i].Address == address {
		return l.Instructions[i], true
	}
	return Instruction{}, false
}

type decoder struct {
	doc     *ir.ProgramDocument
	opts    Options
	listing *Listing
}

// report records a problem; in Strict mode it is returned as the error.
func (d *decoder) report(address uint32, format string, args ...any) error {
	err := &Error{Address: address, Message: fmt.Sprintf(format, args...)}
	if d.opts.Mode == Strict {
		return err
	}
	d.listing.Diagnostics = append(d.listing.Diagnostics, err)
	return nil
}

// Disassemble decodes doc's bytecode.
func Disassemble(doc *ir.ProgramDocument, opts Options) (*Listing, error) {
	code, err := hex.DecodeString(doc.ByteCodeHex)
	if err != nil {
		return nil, fmt.Errorf("disasm: byteCodeHex: %w", err)
	}

	d := &decoder{doc: doc, opts: opts, listing: &Listing{}}
	if err := d.decode(code); err != nil {
		return nil, err
	}
	if err := d.entries(); err != nil {
		return nil, err
	}
	return d.listing, nil
}

func (d *decoder) decode(code []byte) error {
	length := uint32(len(code))
	for addr := uint32(0); addr < length; {
		if addr+4 > length {
			return d.report(addr, "truncated opcode: %d trailing bytes", length-addr)
		}
		op := Opcode(binary.BigEndian.Uint32(code[addr:]))
		if !op.Known() {
			if err := d.report(addr, "unknown opcode %d", uint32(op)); err != nil {
				return err
			}
			d.listing.Instructions = append(d.listing.Instructions, Instruction{Address: addr, Op: op})
			addr += 4
			continue
		}

		in := Instruction{Address: addr, Op: op}
		if op.HasOperand() {
			if addr+8 > length {
				return d.report(addr, "%s: operand runs past end of bytecode", op)
			}
			in.Operand = binary.BigEndian.Uint32(code[addr+4:])
			in.HasOperand = true
			if err := d.name(&in); err != nil {
				return err
			}
		}
		d.listing.Instructions = append(d.listing.Instructions, in)
		addr = in.Next()
	}
	return nil
}

func (d *decoder) name(in *Instruction) error {
	if !in.Op.NamesOperand() {
		return nil
	}

	if in.Op == EXTERN {
		entry, ok := d.doc.HeapInitialValues[in.Operand]
		if !ok {
			return d.report(in.Address, "EXTERN: no heap entry at 0x%08x", in.Operand)
		}
		sig, ok := entry.Value.String()
		if !ok {
			return d.report(in.Address, "EXTERN: heap entry at 0x%08x is not a signature string", in.Operand)
		}
		in.OperandName = sig
		if d.opts.Modules != nil {
			if info, ok := d.opts.Modules.Lookup(sig); ok {
				in.Extern = &info
			}
		}
		return nil
	}

	sym, ok := d.doc.SymbolAt(in.Operand)
	if !ok {
		return d.report(in.Address, "%s: no symbol at 0x%08x", in.Op, in.Operand)
	}
	in.OperandName = sym.Name
	return nil
}

// entries validates entry points and detects those that push the halt
// return address before jumping into their body.
func (d *decoder) entries() error {
	for _, ep := range d.doc.EntryPoints {
		entry := Entry{Name: ep.Name, Address: ep.Address}
		in, ok := d.listing.At(ep.Address)
		if !ok {
			if err := d.report(ep.Address, "entry point %s is not on an instruction", ep.Name); err != nil {
				return err
			}
			d.listing.Entries = append(d.listing.Entries, entry)
			continue
		}

		if in.Op == PUSH && in.OperandName == HaltSymbol {
			if heap, ok := d.doc.HeapInitialValues[in.Operand]; ok {
				if v, ok := heap.Value.Uint32(); ok && v == HaltAddress {
					entry.CallTarget = in.Next()
					entry.HasCallTarget = true
				}
			}
		}
		d.listing.Entries = append(d.listing.Entries, entry)
	}
	return nil
}
