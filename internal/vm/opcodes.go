// Package vm implements the bytecode compiler and stack virtual machine for alla.
package vm

// Opcode represents a single VM instruction
type Opcode byte

// Every instruction is InstructionSize bytes: the opcode followed by a
// big-endian 16-bit operand.
const InstructionSize = 3

// Jump operands are signed offsets from the end of the jump instruction.
const (
	OP_LOAD_CONST           Opcode = 0x01 // Push constant[operand]
	OP_LOAD_VAR             Opcode = 0x02 // Push slot[operand]
	OP_STORE_VAR            Opcode = 0x03 // Pop into slot[operand]
	OP_COMPARE              Opcode = 0x04 // Pop 2, push bool; operand selects == or !=
	OP_BINARY               Opcode = 0x05 // Pop 2, push result; operand selects + - * /
	OP_NEGATE               Opcode = 0x06 // Unary minus, operand unused
	OP_JUMP_IF_TRUE_OR_POP  Opcode = 0x07 // If top is true jump and keep it, else pop
	OP_JUMP_IF_FALSE_OR_POP Opcode = 0x08 // If top is false jump and keep it, else pop
	OP_POP_JUMP_IF_FALSE    Opcode = 0x09 // Pop; jump if false
	OP_POP_JUMP_IF_TRUE     Opcode = 0x0a // Pop; jump if true
	OP_START                Opcode = 0x0b // Copy the activation's initial arguments into slots
	OP_CALL                 Opcode = 0x0c // Call the callee below operand arguments
	OP_RETURN               Opcode = 0x0d // Stop; operand 1 returns top of stack, 0 returns nothing
	OP_JUMP                 Opcode = 0x0e // Unconditional jump
	OP_LOAD_PROP            Opcode = 0x0f // Pop name and receiver, push property

	OP_LOAD_CAPTURED Opcode = 0x10 // Push captured cell[operand]
	OP_NOT           Opcode = 0x11 // Logical not, operand unused
	OP_CLOSURE       Opcode = 0x12 // Wrap FunctionProto constant[operand] into a Function
	OP_STORE_PROP    Opcode = 0x13 // Pop value, name and receiver; set field
	OP_MAKE_CLASS    Opcode = 0x14 // Pop operand default values and a ClassProto, push Class
)

// COMPARE operands
const (
	CmpEqual    uint16 = 0x10
	CmpNotEqual uint16 = 0x11
)

// BINARY operands
const (
	BinAdd uint16 = 0x20
	BinSub uint16 = 0x21
	BinMul uint16 = 0x22
	BinDiv uint16 = 0x23
)

// OpcodeNames maps opcodes to their disassembly names.
var OpcodeNames = map[Opcode]string{
	OP_LOAD_CONST:           "LOAD_CONST",
	OP_LOAD_VAR:             "LOAD_VAR",
	OP_STORE_VAR:            "STORE_VAR",
	OP_LOAD_CAPTURED:        "LOAD_CAPTURED",
	OP_COMPARE:              "COMPARE",
	OP_BINARY:               "BINARY",
	OP_NEGATE:               "NEGATE",
	OP_NOT:                  "NOT",
	OP_JUMP_IF_TRUE_OR_POP:  "JUMP_IF_TRUE_OR_POP",
	OP_JUMP_IF_FALSE_OR_POP: "JUMP_IF_FALSE_OR_POP",
	OP_POP_JUMP_IF_FALSE:    "POP_JUMP_IF_FALSE",
	OP_POP_JUMP_IF_TRUE:     "POP_JUMP_IF_TRUE",
	OP_JUMP:                 "JUMP",
	OP_START:                "START",
	OP_CALL:                 "CALL",
	OP_RETURN:               "RETURN",
	OP_CLOSURE:              "CLOSURE",
	OP_LOAD_PROP:            "LOAD_PROP",
	OP_STORE_PROP:           "STORE_PROP",
	OP_MAKE_CLASS:           "MAKE_CLASS",
}

func (op Opcode) String() string {
	if name, ok := OpcodeNames[op]; ok {
		return name
	}
	return "UNKNOWN"
}

// IsJump reports whether the operand of op is a signed jump offset.
func (op Opcode) IsJump() bool {
	switch op {
	case OP_JUMP_IF_TRUE_OR_POP, OP_JUMP_IF_FALSE_OR_POP,
		OP_POP_JUMP_IF_FALSE, OP_POP_JUMP_IF_TRUE, OP_JUMP:
		return true
	}
	return false
}
