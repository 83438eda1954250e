package vm

import (
	"fmt"
	"strings"
)

// Disassemble returns a human-readable representation of the bytecode,
// followed by every nested function and method.
func Disassemble(prog *Program, name string) string {
	var sb strings.Builder
	disassembleProgram(&sb, prog, name, nil)
	return sb.String()
}

func disassembleProgram(sb *strings.Builder, prog *Program, name string, captures []CaptureInfo) {
	sb.WriteString(fmt.Sprintf("== %s ==\n", name))

	for offset := 0; offset < len(prog.Code); offset += InstructionSize {
		disassembleInstruction(sb, prog, offset, captures)
	}

	for _, c := range prog.Constants {
		if !c.IsObj() {
			continue
		}
		switch o := c.Obj.(type) {
		case *FunctionProto:
			sb.WriteString("\n")
			disassembleProgram(sb, o.Program, o.Name, o.Captures)
		case *ClassProto:
			for _, m := range o.Methods {
				sb.WriteString("\n")
				disassembleProgram(sb, m.Program, o.Name+"."+m.Name, m.Captures)
			}
		}
	}
}

// disassembleInstruction disassembles a single instruction
func disassembleInstruction(sb *strings.Builder, prog *Program, offset int, captures []CaptureInfo) {
	sb.WriteString(fmt.Sprintf("%04d ", offset))

	// Print line number
	if offset > 0 && prog.LineAt(offset) == prog.LineAt(offset-1) {
		sb.WriteString("   | ")
	} else {
		sb.WriteString(fmt.Sprintf("%4d ", prog.LineAt(offset)))
	}

	if offset+InstructionSize > len(prog.Code) {
		sb.WriteString("<truncated>\n")
		return
	}

	op := Opcode(prog.Code[offset])
	operand := prog.Operand(offset)
	sb.WriteString(fmt.Sprintf("%-20s %5d", op, operand))

	if detail := operandDetail(prog, captures, offset, op, operand); detail != "" {
		sb.WriteString(" (" + detail + ")")
	}
	sb.WriteString("\n")
}

func operandDetail(prog *Program, captures []CaptureInfo, offset int, op Opcode, operand uint16) string {
	switch {
	case op == OP_LOAD_CONST || op == OP_CLOSURE:
		if int(operand) < len(prog.Constants) {
			c := prog.Constants[operand]
			if c.IsString() {
				return fmt.Sprintf("%q", c.Inspect())
			}
			return c.Inspect()
		}
		return "?"
	case op == OP_LOAD_VAR || op == OP_STORE_VAR:
		if int(operand) < len(prog.Variables) {
			return prog.Variables[operand]
		}
		return "?"
	case op == OP_COMPARE:
		return compareSymbol(operand)
	case op == OP_BINARY:
		return binarySymbol(operand)
	case op.IsJump():
		return fmt.Sprintf("to %04d", offset+InstructionSize+int(int16(operand)))
	case op == OP_LOAD_CAPTURED:
		if int(operand) < len(captures) {
			return captures[operand].Name
		}
		return "?"
	}
	return ""
}
