package vm

import (
	"fmt"

	"github.com/funvibe/alla/internal/config"
)

// emitLoadName emits the load of a variable read.
//
// Lookup order: a slot of this function, then a capture from the nearest
// enclosing function that knows the name. A name nobody knows yet is
// allocated in the top-level script so later top-level declarations
// satisfy it.
func (c *Compiler) emitLoadName(name string) error {
	if idx, ok := c.program.VariableIndex(name); ok {
		c.emit(OP_LOAD_VAR, uint16(idx))
		return nil
	}
	if idx := c.resolveCapture(name); idx != -1 {
		c.emit(OP_LOAD_CAPTURED, uint16(idx))
		return nil
	}

	root := c.root()
	idx, err := root.program.AddVariable(name)
	if err != nil {
		return c.errorAt(c.previous(), err.Error())
	}
	if root == c {
		c.emit(OP_LOAD_VAR, uint16(idx))
		return nil
	}
	c.emit(OP_LOAD_CAPTURED, uint16(c.resolveCapture(name)))
	return nil
}

// declareLocal returns this function's slot for name, allocating it
func (c *Compiler) declareLocal(name string) (uint16, error) {
	idx, err := c.program.AddVariable(name)
	if err != nil {
		return 0, c.errorAt(c.previous(), err.Error())
	}
	return uint16(idx), nil
}

// resolveCapture finds name in an enclosing function and returns the
// capture index in this function, or -1.
func (c *Compiler) resolveCapture(name string) int {
	if c.enclosing == nil {
		return -1
	}

	if slot, ok := c.enclosing.program.VariableIndex(name); ok {
		return c.addCapture(name, slot, true)
	}

	capture := c.enclosing.resolveCapture(name)
	if capture != -1 {
		return c.addCapture(name, capture, false)
	}

	return -1
}

// addCapture adds a capture to this function's capture list
func (c *Compiler) addCapture(name string, index int, isLocal bool) int {
	for i, cp := range c.captures {
		if cp.Index == index && cp.IsLocal == isLocal {
			return i
		}
	}

	if len(c.captures) > MaxOperand {
		panic(c.errorAt(c.previous(), fmt.Sprintf("too many captured variables in function %s", c.funcName)))
	}

	c.captures = append(c.captures, CaptureInfo{
		Name:    name,
		Index:   index,
		IsLocal: isLocal,
	})
	return len(c.captures) - 1
}

func (c *Compiler) root() *Compiler {
	r := c
	for r.enclosing != nil {
		r = r.enclosing
	}
	return r
}

// inMethod reports whether this is a method body or nested inside one,
// i.e. whether "this" can be resolved.
func (c *Compiler) inMethod() bool {
	for cc := c; cc != nil; cc = cc.enclosing {
		if cc.isMethod {
			return true
		}
	}
	return false
}

// builtinFor returns the registered built-in for a reserved call name
func (c *Compiler) builtinFor(name string) (*Builtin, bool) {
	if !config.IsBuiltinName(name) {
		return nil, false
	}
	return LookupBuiltin(name)
}
