package vm

import "fmt"

// executeOp executes a single opcode (except RETURN)
func (vm *VM) executeOp(op Opcode, operand uint16) error {
	switch op {
	case OP_LOAD_CONST:
		v, err := vm.readConstant(operand)
		if err != nil {
			return err
		}
		vm.push(v)

	case OP_LOAD_VAR:
		idx := int(operand)
		if idx >= len(vm.slots) {
			return invalidOperand(op, operand)
		}
		cell := &vm.slots[idx]
		if !cell.Defined {
			return undefinedVariable(vm.program.Variables[idx])
		}
		vm.push(cell.Value)

	case OP_STORE_VAR:
		idx := int(operand)
		if idx >= len(vm.slots) {
			return invalidOperand(op, operand)
		}
		vm.slots[idx] = Cell{Value: vm.pop(), Defined: true}

	case OP_LOAD_CAPTURED:
		idx := int(operand)
		if vm.function == nil || idx >= len(vm.function.Captured) {
			return invalidOperand(op, operand)
		}
		cell := vm.function.Captured[idx]
		if !cell.Defined {
			return undefinedVariable(vm.function.Proto.Captures[idx].Name)
		}
		vm.push(cell.Value)

	case OP_COMPARE:
		return vm.compare(operand)

	case OP_BINARY:
		return vm.binary(operand)

	case OP_NEGATE:
		return vm.negate()

	case OP_NOT:
		return vm.not()

	case OP_JUMP_IF_TRUE_OR_POP:
		cond, err := vm.condition(vm.peek(0))
		if err != nil {
			return err
		}
		if cond {
			return vm.jump(operand)
		}
		vm.pop()

	case OP_JUMP_IF_FALSE_OR_POP:
		cond, err := vm.condition(vm.peek(0))
		if err != nil {
			return err
		}
		if !cond {
			return vm.jump(operand)
		}
		vm.pop()

	case OP_POP_JUMP_IF_FALSE:
		cond, err := vm.condition(vm.pop())
		if err != nil {
			return err
		}
		if !cond {
			return vm.jump(operand)
		}

	case OP_POP_JUMP_IF_TRUE:
		cond, err := vm.condition(vm.pop())
		if err != nil {
			return err
		}
		if cond {
			return vm.jump(operand)
		}

	case OP_JUMP:
		return vm.jump(operand)

	case OP_START:
		if len(vm.args) > len(vm.slots) {
			return fmt.Errorf("%w: %d arguments for %d slots", ErrArity, len(vm.args), len(vm.slots))
		}
		for i, arg := range vm.args {
			vm.slots[i] = Cell{Value: arg, Defined: true}
		}

	case OP_CALL:
		return vm.call(int(operand))

	case OP_CLOSURE:
		return vm.closure(operand)

	case OP_LOAD_PROP:
		return vm.loadProperty()

	case OP_STORE_PROP:
		return vm.storeProperty()

	case OP_MAKE_CLASS:
		return vm.makeClass(int(operand))

	default:
		return fmt.Errorf("%w: 0x%02x at offset %d", ErrUnknownOpcode, byte(op), vm.ip-InstructionSize)
	}
	return nil
}

// jump moves the cursor by a signed offset from the end of the current instruction
func (vm *VM) jump(operand uint16) error {
	target := vm.ip + int(int16(operand))
	if target < 0 || target > len(vm.program.Code) {
		return fmt.Errorf("%w: jump to %d outside program", ErrUnknownOpcode, target)
	}
	vm.ip = target
	return nil
}

// condition requires a bool for branches and logical operators
func (vm *VM) condition(v Value) (bool, error) {
	if !v.IsBool() {
		return false, typeMismatch("condition must be bool, got %s", v.TypeName())
	}
	return v.AsBool(), nil
}

func invalidOperand(op Opcode, operand uint16) error {
	return fmt.Errorf("%w: %s operand %d out of range", ErrUnknownOpcode, op, operand)
}
