package alla

import (
	"context"
	"fmt"
	"io"
	"os"
	"reflect"
	"strings"

	"github.com/funvibe/alla/internal/backend"
	"github.com/funvibe/alla/internal/lexer"
	"github.com/funvibe/alla/internal/pipeline"
	"github.com/funvibe/alla/internal/vm"
)

var errorType = reflect.TypeOf((*error)(nil)).Elem()

// VM wraps the alla VM and provides a high-level embedding API.
// Top-level variables survive between Eval calls.
type VM struct {
	machine    *vm.VM
	marshaller *Marshaller
	ctx        context.Context
}

// New creates a new alla VM instance.
func New() *VM {
	return &VM{
		machine:    vm.New(),
		marshaller: NewMarshaller(),
		ctx:        context.Background(),
	}
}

// SetOutput redirects write and writeline.
func (v *VM) SetOutput(w io.Writer) {
	v.machine.SetOutput(w)
}

// SetInput redirects read and readline.
func (v *VM) SetInput(r io.Reader) {
	v.machine.SetInput(r)
}

// SetContext bounds every following Eval, LoadFile and Call.
func (v *VM) SetContext(ctx context.Context) {
	v.ctx = ctx
	v.machine.SetContext(ctx)
}

// Bind registers a Go function or value with the VM.
// Functions become callable from scripts; other values behave like Set.
func (v *VM) Bind(name string, val interface{}) error {
	fv := reflect.ValueOf(val)
	if fv.Kind() == reflect.Func {
		v.machine.SetGlobal(name, vm.ObjVal(v.marshaller.hostFunction(name, fv)))
		return nil
	}
	return v.Set(name, val)
}

// Set sets a global variable in the VM.
func (v *VM) Set(name string, val interface{}) error {
	obj, err := v.marshaller.ToValue(val)
	if err != nil {
		return fmt.Errorf("set %s: %w", name, err)
	}
	v.machine.SetGlobal(name, obj)
	return nil
}

// Get retrieves a global variable from the VM.
func (v *VM) Get(name string) (interface{}, error) {
	obj, ok := v.machine.Global(name)
	if !ok {
		return nil, fmt.Errorf("variable '%s' not found", name)
	}
	return v.marshaller.FromValue(obj, nil)
}

// GetInto retrieves a global variable converted to the type of target,
// which must be a non-nil pointer.
func (v *VM) GetInto(name string, target interface{}) error {
	ptr := reflect.ValueOf(target)
	if ptr.Kind() != reflect.Ptr || ptr.IsNil() {
		return fmt.Errorf("target must be a non-nil pointer, got %T", target)
	}
	obj, ok := v.machine.Global(name)
	if !ok {
		return fmt.Errorf("variable '%s' not found", name)
	}
	val, err := v.marshaller.FromValue(obj, ptr.Elem().Type())
	if err != nil {
		return err
	}
	if val == nil {
		ptr.Elem().Set(reflect.Zero(ptr.Elem().Type()))
		return nil
	}
	rv := reflect.ValueOf(val)
	if !rv.Type().AssignableTo(ptr.Elem().Type()) {
		return fmt.Errorf("cannot assign %s to %s", rv.Type(), ptr.Elem().Type())
	}
	ptr.Elem().Set(rv)
	return nil
}

// Call calls a function defined in alla (or bound from Go) by name.
func (v *VM) Call(funcName string, args ...interface{}) (interface{}, error) {
	fnObj, ok := v.machine.Global(funcName)
	if !ok {
		return nil, fmt.Errorf("function '%s' not found", funcName)
	}

	allaArgs := make([]vm.Value, len(args))
	for i, arg := range args {
		obj, err := v.marshaller.ToValue(arg)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i, err)
		}
		allaArgs[i] = obj
	}

	result, err := v.machine.Call(fnObj, allaArgs...)
	if err != nil {
		return nil, err
	}
	return v.marshaller.FromValue(result, nil)
}

// Eval executes an alla code string and returns the value of its last
// expression statement.
func (v *VM) Eval(code string) (interface{}, error) {
	result, err := v.run(code, "<eval>")
	if err != nil {
		return nil, err
	}
	return v.marshaller.FromValue(result, nil)
}

// LoadFile compiles and executes a file.
func (v *VM) LoadFile(path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	_, err = v.run(string(content), path)
	return err
}

func (v *VM) run(code, file string) (vm.Value, error) {
	ctx := pipeline.NewPipelineContext(code)
	ctx.FilePath = file
	ctx.Ctx = v.ctx

	ctx = pipeline.New(
		&lexer.LexerProcessor{},
		&backend.CompileProcessor{},
	).Run(ctx)

	if len(ctx.Errors) > 0 {
		var sb strings.Builder
		sb.WriteString("Errors during compilation:\n")
		for _, e := range ctx.Errors {
			sb.WriteString(e.Error())
			sb.WriteString("\n")
		}
		return vm.NilVal(), fmt.Errorf("%s", sb.String())
	}

	prog, ok := ctx.Program.(*vm.Program)
	if !ok {
		return vm.NilVal(), fmt.Errorf("invalid program type %T", ctx.Program)
	}

	v.machine.SetContext(v.ctx)
	result, err := v.machine.Run(prog)
	if err != nil {
		return vm.NilVal(), err
	}

	// Keep definitions for the next Eval and for Get/Call
	for _, name := range prog.Variables {
		if val, ok := v.machine.Global(name); ok {
			v.machine.SetGlobal(name, val)
		}
	}
	return result, nil
}

// hostFunction wraps a Go function as an alla builtin. Arguments are
// converted to the parameter types; a trailing non-nil error result
// becomes a runtime error.
func (m *Marshaller) hostFunction(name string, fn reflect.Value) *vm.Builtin {
	fnType := fn.Type()
	numIn := fnType.NumIn()
	isVariadic := fnType.IsVariadic()

	call := func(_ *vm.VM, args []vm.Value) (vm.Value, error) {
		if isVariadic {
			if len(args) < numIn-1 {
				return vm.NilVal(), fmt.Errorf("%w: %s takes at least %d, got %d", vm.ErrArity, name, numIn-1, len(args))
			}
		} else if len(args) != numIn {
			return vm.NilVal(), fmt.Errorf("%w: %s takes %d, got %d", vm.ErrArity, name, numIn, len(args))
		}

		goArgs := make([]reflect.Value, len(args))
		for i, arg := range args {
			var targetType reflect.Type
			if isVariadic && i >= numIn-1 {
				targetType = fnType.In(numIn - 1).Elem()
			} else {
				targetType = fnType.In(i)
			}

			val, err := m.FromValue(arg, targetType)
			if err != nil {
				return vm.NilVal(), fmt.Errorf("%s: argument %d: %w", name, i, err)
			}
			if val == nil {
				goArgs[i] = reflect.Zero(targetType)
				continue
			}
			rv := reflect.ValueOf(val)
			if !rv.Type().AssignableTo(targetType) {
				return vm.NilVal(), fmt.Errorf("%w: %s argument %d wants %s, got %s",
					vm.ErrTypeMismatch, name, i, targetType, arg.TypeName())
			}
			goArgs[i] = rv
		}

		results := fn.Call(goArgs)

		if n := len(results); n > 0 && fnType.Out(n-1) == errorType {
			if err, _ := results[n-1].Interface().(error); err != nil {
				return vm.NilVal(), err
			}
			results = results[:n-1]
		}
		if len(results) == 0 {
			return vm.NilVal(), nil
		}
		return m.ToValue(results[0].Interface())
	}

	return &vm.Builtin{Name: name, Fn: call}
}
