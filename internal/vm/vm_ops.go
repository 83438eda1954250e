package vm

// binary applies an arithmetic operator. Numbers always produce a float;
// if either side is a string the textual forms are concatenated.
func (vm *VM) binary(operand uint16) error {
	b := vm.pop()
	a := vm.pop()

	if a.IsNumber() && b.IsNumber() {
		x, y := a.AsNumber(), b.AsNumber()
		switch operand {
		case BinAdd:
			vm.push(FloatVal(x + y))
		case BinSub:
			vm.push(FloatVal(x - y))
		case BinMul:
			vm.push(FloatVal(x * y))
		case BinDiv:
			vm.push(FloatVal(x / y))
		default:
			return invalidOperand(OP_BINARY, operand)
		}
		return nil
	}

	if a.IsString() || b.IsString() {
		vm.push(StringVal(a.Inspect() + b.Inspect()))
		return nil
	}

	return typeMismatch("cannot apply %s to %s and %s", binarySymbol(operand), a.TypeName(), b.TypeName())
}

func (vm *VM) compare(operand uint16) error {
	b := vm.pop()
	a := vm.pop()
	eq := a.Equals(b)
	switch operand {
	case CmpEqual:
		vm.push(BoolVal(eq))
	case CmpNotEqual:
		vm.push(BoolVal(!eq))
	default:
		return invalidOperand(OP_COMPARE, operand)
	}
	return nil
}

func (vm *VM) negate() error {
	v := vm.pop()
	switch v.Type {
	case ValInt:
		vm.push(IntVal(-v.AsInt()))
	case ValFloat:
		vm.push(FloatVal(-v.AsFloat()))
	default:
		return typeMismatch("cannot negate %s", v.TypeName())
	}
	return nil
}

func (vm *VM) not() error {
	v := vm.pop()
	if !v.IsBool() {
		return typeMismatch("cannot apply ! to %s", v.TypeName())
	}
	vm.push(BoolVal(!v.AsBool()))
	return nil
}

func binarySymbol(operand uint16) string {
	switch operand {
	case BinAdd:
		return "+"
	case BinSub:
		return "-"
	case BinMul:
		return "*"
	case BinDiv:
		return "/"
	}
	return "?"
}

func compareSymbol(operand uint16) string {
	switch operand {
	case CmpEqual:
		return "=="
	case CmpNotEqual:
		return "!="
	}
	return "?"
}
