package vm

import (
	"fmt"
	"math"
)

// MaxOperand is the largest constant or variable index an instruction can address.
const MaxOperand = math.MaxUint16

// Program is one compiled unit: a script, function body or method body.
// It is frozen after compilation and shared by every activation.
type Program struct {
	// Code is the instruction stream, InstructionSize bytes per instruction
	Code []byte

	// Constants pool, de-duplicated by value
	Constants []Value

	// Variables holds slot names, indexed by slot
	Variables []string

	// Lines maps bytecode offset to source line number (for errors)
	Lines []int
}

// NewProgram creates a new empty program
func NewProgram() *Program {
	return &Program{
		Code:  make([]byte, 0, 64),
		Lines: make([]int, 0, 64),
	}
}

// Emit appends one instruction and returns its offset
func (p *Program) Emit(op Opcode, operand uint16, line int) int {
	offset := len(p.Code)
	p.Code = append(p.Code, byte(op), byte(operand>>8), byte(operand))
	p.Lines = append(p.Lines, line, line, line)
	return offset
}

// PatchOperand overwrites the operand of the instruction at offset
func (p *Program) PatchOperand(offset int, operand uint16) {
	p.Code[offset+1] = byte(operand >> 8)
	p.Code[offset+2] = byte(operand)
}

// Operand reads the operand of the instruction at offset
func (p *Program) Operand(offset int) uint16 {
	return uint16(p.Code[offset+1])<<8 | uint16(p.Code[offset+2])
}

// InstructionCount is the number of instructions in Code
func (p *Program) InstructionCount() int {
	return len(p.Code) / InstructionSize
}

// AddConstant returns the index of value in the pool, adding it when no
// identical constant exists yet.
func (p *Program) AddConstant(value Value) (int, error) {
	for i, c := range p.Constants {
		if sameConstant(c, value) {
			return i, nil
		}
	}
	if len(p.Constants) > MaxOperand {
		return 0, fmt.Errorf("too many constants in one program (max %d)", MaxOperand+1)
	}
	p.Constants = append(p.Constants, value)
	return len(p.Constants) - 1, nil
}

// VariableIndex looks up a slot by name
func (p *Program) VariableIndex(name string) (int, bool) {
	for i, v := range p.Variables {
		if v == name {
			return i, true
		}
	}
	return -1, false
}

// AddVariable returns the slot of name, allocating it on first reference
func (p *Program) AddVariable(name string) (int, error) {
	if idx, ok := p.VariableIndex(name); ok {
		return idx, nil
	}
	if len(p.Variables) > MaxOperand {
		return 0, fmt.Errorf("too many variables in one program (max %d)", MaxOperand+1)
	}
	p.Variables = append(p.Variables, name)
	return len(p.Variables) - 1, nil
}

// LineAt returns the source line of the instruction at offset, 0 if unknown
func (p *Program) LineAt(offset int) int {
	if offset >= 0 && offset < len(p.Lines) {
		return p.Lines[offset]
	}
	return 0
}

// sameConstant is constant-pool identity: same kind and same value.
// Unlike runtime equality it keeps 2 and 2.0 apart so each literal
// keeps its own numeric kind.
func sameConstant(a, b Value) bool {
	if a.Type != b.Type {
		return false
	}
	if a.Type != ValObj {
		return a.Data == b.Data
	}
	if as, ok := a.Obj.(*String); ok {
		bs, ok := b.Obj.(*String)
		return ok && as.Value == bs.Value
	}
	return a.Obj == b.Obj
}
