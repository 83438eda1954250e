package vm

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/funvibe/alla/internal/config"
)

// builtins is the registry of host I/O primitives, keyed by name.
// Compiled programs and bundles refer to these exact instances.
var builtins = map[string]*Builtin{}

func init() {
	registerBuiltin(config.WriteFuncName, builtinWrite)
	registerBuiltin(config.WriteLineFuncName, builtinWriteLine)
	registerBuiltin(config.ReadFuncName, builtinRead)
	registerBuiltin(config.ReadLineFuncName, builtinReadLine)
}

func registerBuiltin(name string, fn BuiltinFunc) {
	builtins[name] = &Builtin{Name: name, Fn: fn}
}

// LookupBuiltin returns the registered built-in called name
func LookupBuiltin(name string) (*Builtin, bool) {
	b, ok := builtins[name]
	return b, ok
}

// BuiltinNames lists the registered built-ins in sorted order
func BuiltinNames() []string {
	names := make([]string, 0, len(builtins))
	for name := range builtins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// write(values...) prints each value with no separator
func builtinWrite(vm *VM, args []Value) (Value, error) {
	for _, a := range args {
		if _, err := io.WriteString(vm.host.out, a.Inspect()); err != nil {
			return NilVal(), fmt.Errorf("write: %w", err)
		}
	}
	return NilVal(), nil
}

// writeline(values...) prints each value followed by a newline
func builtinWriteLine(vm *VM, args []Value) (Value, error) {
	if len(args) == 0 {
		if _, err := io.WriteString(vm.host.out, "\n"); err != nil {
			return NilVal(), fmt.Errorf("writeline: %w", err)
		}
		return NilVal(), nil
	}
	for _, a := range args {
		if _, err := io.WriteString(vm.host.out, a.Inspect()+"\n"); err != nil {
			return NilVal(), fmt.Errorf("writeline: %w", err)
		}
	}
	return NilVal(), nil
}

// read() returns the next input character, "" at end of input
func builtinRead(vm *VM, args []Value) (Value, error) {
	if len(args) != 0 {
		return NilVal(), fmt.Errorf("%w: read takes 0, got %d", ErrArity, len(args))
	}
	r, _, err := vm.host.in.ReadRune()
	if err == io.EOF {
		return StringVal(""), nil
	}
	if err != nil {
		return NilVal(), fmt.Errorf("read: %w", err)
	}
	return StringVal(string(r)), nil
}

// readline() returns the next input line without its terminator
func builtinReadLine(vm *VM, args []Value) (Value, error) {
	if len(args) != 0 {
		return NilVal(), fmt.Errorf("%w: readline takes 0, got %d", ErrArity, len(args))
	}
	line, err := vm.host.in.ReadString('\n')
	if err != nil && err != io.EOF {
		return NilVal(), fmt.Errorf("readline: %w", err)
	}
	return StringVal(strings.TrimRight(line, "\r\n")), nil
}
