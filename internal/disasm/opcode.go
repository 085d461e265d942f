package disasm

import "fmt"

// Opcode is a VM instruction code. Opcodes and operands are big-endian
// uint32 words.
type Opcode uint32

const (
	NOP          Opcode = 0
	PUSH         Opcode = 1
	POP          Opcode = 2
	JUMPIFFALSE  Opcode = 4
	JUMP         Opcode = 5
	EXTERN       Opcode = 6
	ANNOTATION   Opcode = 7
	JUMPINDIRECT Opcode = 8
	COPY         Opcode = 9
)

// HaltAddress is the jump target that stops the VM.
const HaltAddress uint32 = 0xFFFFFFFF

// HaltSymbol is the constant the compiler pushes as the return address of
// an event entry point.
const HaltSymbol = "__const_SystemUInt32_0"

var opcodeNames = map[Opcode]string{
	NOP:          "NOP",
	PUSH:         "PUSH",
	POP:          "POP",
	JUMPIFFALSE:  "JUMP_IF_FALSE",
	JUMP:         "JUMP",
	EXTERN:       "EXTERN",
	ANNOTATION:   "ANNOTATION",
	JUMPINDIRECT: "JUMP_INDIRECT",
	COPY:         "COPY",
}

// Known reports whether op is a defined opcode.
func (op Opcode) Known() bool {
	_, ok := opcodeNames[op]
	return ok
}

func (op Opcode) String() string {
	if name, ok := opcodeNames[op]; ok {
		return name
	}
	return fmt.Sprintf("OP_%d", uint32(op))
}

// HasOperand reports whether op is followed by an operand word.
func (op Opcode) HasOperand() bool {
	switch op {
	case PUSH, JUMPIFFALSE, JUMP, EXTERN, ANNOTATION, JUMPINDIRECT:
		return true
	}
	return false
}

// NamesOperand reports whether the operand is a heap address whose name is
// shown instead of the raw address.
func (op Opcode) NamesOperand() bool {
	switch op {
	case PUSH, EXTERN, ANNOTATION, JUMPINDIRECT:
		return true
	}
	return false
}

// Size is the encoded length of an instruction in bytes.
func (op Opcode) Size() uint32 {
	if op.HasOperand() {
		return 8
	}
	return 4
}
