package vm

import (
	"fmt"

	"github.com/tliron/commonlog"
)

// call handles OP_CALL: the callee sits below argc arguments
func (vm *VM) call(argc int) error {
	vm.checkStack(argc + 1)
	base := len(vm.stack) - argc
	args := make([]Value, argc)
	copy(args, vm.stack[base:])
	callee := vm.stack[base-1]
	vm.stack = vm.stack[:base-1]

	result, err := vm.callValue(callee, args)
	if err != nil {
		return err
	}
	if !result.IsNil() {
		vm.push(result)
	}
	return nil
}

// callValue dispatches on the callee kind
func (vm *VM) callValue(callee Value, args []Value) (Value, error) {
	if callee.IsObj() {
		switch fn := callee.Obj.(type) {
		case *Builtin:
			return fn.Fn(vm, args)
		case *Function:
			return vm.callFunction(fn, args)
		case *BoundMethod:
			return vm.callFunction(fn.Method, append([]Value{ObjVal(fn.Receiver)}, args...))
		case *Class:
			return vm.instantiate(fn, args)
		}
	}
	return NilVal(), fmt.Errorf("%w: %s", ErrNotCallable, callee.TypeName())
}

// callFunction runs fn in a new activation. args includes the receiver
// for methods.
func (vm *VM) callFunction(fn *Function, args []Value) (Value, error) {
	proto := fn.Proto
	if len(args) > len(proto.Params) {
		got := len(args)
		if proto.IsMethod {
			got--
		}
		return NilVal(), fmt.Errorf("%w: %s takes %d, got %d", ErrArity, proto.Name, proto.Arity(), got)
	}

	depth := vm.depth + 1
	if depth > vm.host.maxDepth {
		return NilVal(), fmt.Errorf("%w: call depth exceeds %d in %s", ErrStackOverflow, vm.host.maxDepth, proto.Name)
	}

	log := vm.host.log
	if log.AllowLevel(commonlog.Debug) {
		log.Debugf("call %s/%d depth=%d", proto.Name, len(args), depth)
	}

	child := &VM{
		program:  proto.Program,
		function: fn,
		name:     proto.Name,
		args:     args,
		depth:    depth,
		host:     vm.host,
	}
	result, err := child.execute()
	if err != nil {
		return NilVal(), err
	}

	if log.AllowLevel(commonlog.Debug) {
		log.Debugf("return %s -> %s", proto.Name, result.Inspect())
	}
	return result, nil
}

// instantiate creates an instance and runs the constructor, if any.
// The call always yields the instance.
func (vm *VM) instantiate(class *Class, args []Value) (Value, error) {
	inst := class.NewInstance()
	ctor, ok := class.Constructor()
	if !ok {
		if len(args) > 0 {
			return NilVal(), fmt.Errorf("%w: class %s has no constructor, got %d arguments", ErrArity, class.Name, len(args))
		}
		return ObjVal(inst), nil
	}
	if _, err := vm.callFunction(ctor, append([]Value{ObjVal(inst)}, args...)); err != nil {
		return NilVal(), err
	}
	return ObjVal(inst), nil
}

// closure handles OP_CLOSURE
func (vm *VM) closure(operand uint16) error {
	v, err := vm.readConstant(operand)
	if err != nil {
		return err
	}
	proto, ok := v.Obj.(*FunctionProto)
	if !ok {
		return invalidOperand(OP_CLOSURE, operand)
	}
	fn, err := vm.makeFunction(proto)
	if err != nil {
		return err
	}
	vm.push(ObjVal(fn))
	return nil
}

// makeFunction binds the captures of proto to this activation's cells
func (vm *VM) makeFunction(proto *FunctionProto) (*Function, error) {
	captured := make([]*Cell, len(proto.Captures))
	for i, cp := range proto.Captures {
		if cp.IsLocal {
			if cp.Index >= len(vm.slots) {
				return nil, fmt.Errorf("%w: capture %s of %s", ErrUnknownOpcode, cp.Name, proto.Name)
			}
			captured[i] = &vm.slots[cp.Index]
			continue
		}
		if vm.function == nil || cp.Index >= len(vm.function.Captured) {
			return nil, fmt.Errorf("%w: capture %s of %s", ErrUnknownOpcode, cp.Name, proto.Name)
		}
		captured[i] = vm.function.Captured[cp.Index]
	}
	return &Function{Proto: proto, Captured: captured}, nil
}

// makeClass handles OP_MAKE_CLASS: [proto, default_1 .. default_n]
func (vm *VM) makeClass(n int) error {
	vm.checkStack(n + 1)
	base := len(vm.stack) - n
	defaults := vm.stack[base:]
	protoVal := vm.stack[base-1]

	proto, ok := protoVal.Obj.(*ClassProto)
	if !ok || len(proto.FieldNames) != n {
		return invalidOperand(OP_MAKE_CLASS, uint16(n))
	}

	class := &Class{Name: proto.Name, Defaults: make([]Property, n)}
	for i, name := range proto.FieldNames {
		class.Defaults[i] = Property{Name: name, Value: defaults[i]}
	}
	vm.stack = vm.stack[:base-1]

	for _, m := range proto.Methods {
		fn, err := vm.makeFunction(m)
		if err != nil {
			return err
		}
		class.Methods = append(class.Methods, fn)
	}
	vm.push(ObjVal(class))
	return nil
}

// loadProperty handles OP_LOAD_PROP: [receiver, name]
func (vm *VM) loadProperty() error {
	nameVal := vm.pop()
	recv := vm.pop()
	name, ok := nameVal.AsString()
	if !ok {
		return typeMismatch("property name must be a string, got %s", nameVal.TypeName())
	}

	if recv.IsObj() {
		switch o := recv.Obj.(type) {
		case *Instance:
			if v, ok := o.Field(name); ok {
				vm.push(v)
				return nil
			}
			if m, ok := o.Class.Method(name); ok {
				vm.push(ObjVal(&BoundMethod{Receiver: o, Method: m}))
				return nil
			}
			return fmt.Errorf("%w: %s.%s", ErrPropertyNotFound, o.Class.Name, name)
		case *Class:
			if v, ok := o.Default(name); ok {
				vm.push(v)
				return nil
			}
			if m, ok := o.Method(name); ok {
				vm.push(ObjVal(m))
				return nil
			}
			return fmt.Errorf("%w: %s.%s", ErrPropertyNotFound, o.Name, name)
		}
	}
	return fmt.Errorf("%w: %s on %s", ErrPropertyNotFound, name, recv.TypeName())
}

// storeProperty handles OP_STORE_PROP: [receiver, name, value]
func (vm *VM) storeProperty() error {
	value := vm.pop()
	nameVal := vm.pop()
	recv := vm.pop()
	name, ok := nameVal.AsString()
	if !ok {
		return typeMismatch("property name must be a string, got %s", nameVal.TypeName())
	}

	inst, ok := recv.Obj.(*Instance)
	if !ok {
		return typeMismatch("cannot set property %s on %s", name, recv.TypeName())
	}
	inst.SetField(name, value)
	return nil
}
