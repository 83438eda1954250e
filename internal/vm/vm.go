package vm

import (
	"bufio"
	"context"
	"errors"
	"io"
	"os"

	"github.com/funvibe/alla/internal/config"
	"github.com/tliron/commonlog"
)

// checkInterval is how many instructions run between context checks
const checkInterval = 1000

// host is the state shared by every activation of one run
type host struct {
	out      io.Writer
	in       *bufio.Reader
	ctx      context.Context
	maxDepth int
	ops      int
	log      commonlog.Logger

	// Host-provided values for top-level names the script reads
	globals map[string]Value
}

// VM executes one Program. Each function call runs in a new VM
// activation that shares the host with its caller.
type VM struct {
	program  *Program
	function *Function // nil for top-level code
	name     string

	stack []Value
	slots []Cell
	args  []Value // Initial arguments copied into slots by START
	ip    int
	depth int

	host *host
}

// New creates a VM reading stdin and writing stdout
func New() *VM {
	return &VM{
		name: config.ScriptName,
		host: &host{
			out:      os.Stdout,
			in:       bufio.NewReader(os.Stdin),
			maxDepth: config.DefaultMaxCallDepth,
			log:      commonlog.GetLogger("alla.vm"),
		},
	}
}

// SetOutput redirects the write built-ins
func (vm *VM) SetOutput(w io.Writer) {
	vm.host.out = w
}

// SetInput redirects the read built-ins
func (vm *VM) SetInput(r io.Reader) {
	vm.host.in = bufio.NewReader(r)
}

// SetContext sets the context checked for cancellation during execution
func (vm *VM) SetContext(ctx context.Context) {
	vm.host.ctx = ctx
}

// SetMaxCallDepth bounds nested function activations. Values below 1
// restore the default.
func (vm *VM) SetMaxCallDepth(n int) {
	if n < 1 {
		n = config.DefaultMaxCallDepth
	}
	vm.host.maxDepth = n
}

// Output is where write and writeline print
func (vm *VM) Output() io.Writer {
	return vm.host.out
}

// Run executes a top-level program. The result is the value left on top
// of the stack, or NilVal() if there is none.
func (vm *VM) Run(prog *Program) (Value, error) {
	vm.program = prog
	vm.function = nil
	vm.name = config.ScriptName
	vm.args = nil
	vm.depth = 0
	vm.host.ops = 0
	return vm.execute()
}

// SetGlobal predefines a top-level variable. A script assignment to the
// same name replaces it.
func (vm *VM) SetGlobal(name string, v Value) {
	if vm.host.globals == nil {
		vm.host.globals = make(map[string]Value)
	}
	vm.host.globals[name] = v
}

// Global reads a top-level variable after Run, falling back to SetGlobal values.
func (vm *VM) Global(name string) (Value, bool) {
	if vm.program != nil && vm.function == nil {
		if idx, ok := vm.program.VariableIndex(name); ok && idx < len(vm.slots) && vm.slots[idx].Defined {
			return vm.slots[idx].Value, true
		}
	}
	v, ok := vm.host.globals[name]
	return v, ok
}

// Call invokes a callable value with the given arguments.
func (vm *VM) Call(callee Value, args ...Value) (Value, error) {
	return vm.callValue(callee, args)
}

// execute is the main interpreter loop
func (vm *VM) execute() (Value, error) {
	vm.stack = vm.stack[:0]
	vm.slots = make([]Cell, len(vm.program.Variables))
	vm.ip = 0
	if vm.function == nil {
		for i, name := range vm.program.Variables {
			if v, ok := vm.host.globals[name]; ok {
				vm.slots[i] = Cell{Value: v, Defined: true}
			}
		}
	}

	for {
		if err := vm.host.checkContext(); err != nil {
			return NilVal(), vm.traceError(err)
		}

		result, done, err := vm.step()
		if err != nil {
			return NilVal(), vm.traceError(err)
		}
		if done {
			return result, nil
		}
	}
}

// step executes one instruction and returns (result, done, error).
// done is true on RETURN or when the cursor falls off the end.
func (vm *VM) step() (res Value, done bool, err error) {
	// Recover from underflow and truncated bytecode panics
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok && (e == ErrStackUnderflow || e == errTruncatedBytecode) {
				res, done, err = NilVal(), false, e
				return
			}
			panic(r)
		}
	}()

	if vm.ip >= len(vm.program.Code) {
		if len(vm.stack) > 0 {
			return vm.pop(), true, nil
		}
		return NilVal(), true, nil
	}

	op, operand := vm.readInstruction()
	if op == OP_RETURN {
		if operand != 0 {
			return vm.pop(), true, nil
		}
		return NilVal(), true, nil
	}
	return NilVal(), false, vm.executeOp(op, operand)
}

func (h *host) checkContext() error {
	h.ops++
	if h.ops < checkInterval {
		return nil
	}
	h.ops = 0
	if h.ctx == nil {
		return nil
	}
	select {
	case <-h.ctx.Done():
		return h.ctx.Err()
	default:
		return nil
	}
}

// traceError adds this activation to the trace of err
func (vm *VM) traceError(err error) error {
	frame := Frame{Function: vm.name, Line: vm.currentLine()}
	var re *RuntimeError
	if errors.As(err, &re) {
		re.Trace = append(re.Trace, frame)
		return re
	}
	return &RuntimeError{Err: err, Trace: []Frame{frame}}
}

// currentLine is the source line of the instruction being executed
func (vm *VM) currentLine() int {
	if vm.program == nil || vm.ip == 0 {
		return 0
	}
	return vm.program.LineAt(vm.ip - 1)
}

// Stack operations

func (vm *VM) push(v Value) {
	vm.stack = append(vm.stack, v)
}

func (vm *VM) pop() Value {
	if len(vm.stack) == 0 {
		panic(ErrStackUnderflow)
	}
	v := vm.stack[len(vm.stack)-1]
	vm.stack = vm.stack[:len(vm.stack)-1]
	return v
}

func (vm *VM) peek(distance int) Value {
	idx := len(vm.stack) - 1 - distance
	if idx < 0 {
		panic(ErrStackUnderflow)
	}
	return vm.stack[idx]
}

// checkStack ensures there are at least n elements on the stack
func (vm *VM) checkStack(n int) {
	if len(vm.stack) < n {
		panic(ErrStackUnderflow)
	}
}

// Read helpers

func (vm *VM) readInstruction() (Opcode, uint16) {
	code := vm.program.Code
	if vm.ip+InstructionSize > len(code) {
		panic(errTruncatedBytecode)
	}
	op := Opcode(code[vm.ip])
	operand := uint16(code[vm.ip+1])<<8 | uint16(code[vm.ip+2])
	vm.ip += InstructionSize
	return op, operand
}

func (vm *VM) readConstant(idx uint16) (Value, error) {
	if int(idx) >= len(vm.program.Constants) {
		return NilVal(), invalidOperand(OP_LOAD_CONST, idx)
	}
	return vm.program.Constants[idx], nil
}
