package vm

// String is an immutable string object
type String struct {
	Value string
}

func (s *String) TypeName() string { return "string" }
func (s *String) Inspect() string  { return s.Value }

// BuiltinFunc is the native implementation of a built-in callable.
// It returns NilVal() when it produces no result.
type BuiltinFunc func(vm *VM, args []Value) (Value, error)

// Builtin is a host-supplied callable
type Builtin struct {
	Name string
	Fn   BuiltinFunc
}

func (b *Builtin) TypeName() string { return "builtin" }
func (b *Builtin) Inspect() string  { return "<builtin " + b.Name + ">" }

// CaptureInfo describes one variable a function reads from an enclosing scope.
type CaptureInfo struct {
	Name    string
	Index   int  // Slot in the enclosing activation, or capture index of the enclosing function
	IsLocal bool // True if Index is a slot of the directly enclosing activation
}

// FunctionProto is a compiled function body, stored as a constant.
type FunctionProto struct {
	Name     string
	Params   []string // Declared parameters, "this" first for methods
	Program  *Program
	Captures []CaptureInfo
	IsMethod bool
	Line     int
}

func (f *FunctionProto) TypeName() string { return "function" }
func (f *FunctionProto) Inspect() string  { return "<function " + f.Name + ">" }

// Arity is the number of arguments a caller passes explicitly.
func (f *FunctionProto) Arity() int {
	if f.IsMethod {
		return len(f.Params) - 1
	}
	return len(f.Params)
}

// Cell is one variable slot. Closures hold pointers to the cells of the
// activation that defined them.
type Cell struct {
	Value   Value
	Defined bool
}

// Function is a runtime closure over a FunctionProto
type Function struct {
	Proto    *FunctionProto
	Captured []*Cell
}

func (f *Function) TypeName() string { return "function" }
func (f *Function) Inspect() string  { return "<function " + f.Proto.Name + ">" }

// ClassProto is a compiled class declaration, stored as a constant.
type ClassProto struct {
	Name string
	// FieldNames are the this.name initializers, in declaration order.
	// Their values are computed when the declaration executes.
	FieldNames []string
	Methods    []*FunctionProto
	Line       int
}

func (c *ClassProto) TypeName() string { return "class" }
func (c *ClassProto) Inspect() string  { return "<class " + c.Name + ">" }

// Property is one named member value
type Property struct {
	Name  string
	Value Value
}

// Class is the shared template every instance is created from
type Class struct {
	Name     string
	Defaults []Property
	Methods  []*Function
}

func (c *Class) TypeName() string { return "class" }
func (c *Class) Inspect() string  { return "<class " + c.Name + ">" }

// Method finds a method by name
func (c *Class) Method(name string) (*Function, bool) {
	for _, m := range c.Methods {
		if m.Proto.Name == name {
			return m, true
		}
	}
	return nil, false
}

// Default finds a default field value by name
func (c *Class) Default(name string) (Value, bool) {
	return findProperty(c.Defaults, name)
}

// Constructor is the method named like the class, if any
func (c *Class) Constructor() (*Function, bool) {
	return c.Method(c.Name)
}

// NewInstance creates an instance owning a copy of the defaults
func (c *Class) NewInstance() *Instance {
	fields := make([]Property, len(c.Defaults))
	copy(fields, c.Defaults)
	return &Instance{Class: c, Fields: fields}
}

// Instance is one object created by calling a class
type Instance struct {
	Class  *Class
	Fields []Property
}

func (i *Instance) TypeName() string { return i.Class.Name }
func (i *Instance) Inspect() string  { return "<" + i.Class.Name + " instance>" }

// Field looks up an instance field
func (i *Instance) Field(name string) (Value, bool) {
	return findProperty(i.Fields, name)
}

// SetField overwrites a field or appends a new one
func (i *Instance) SetField(name string, value Value) {
	for idx := range i.Fields {
		if i.Fields[idx].Name == name {
			i.Fields[idx].Value = value
			return
		}
	}
	i.Fields = append(i.Fields, Property{Name: name, Value: value})
}

// BoundMethod is a method paired with its receiver
type BoundMethod struct {
	Receiver *Instance
	Method   *Function
}

func (b *BoundMethod) TypeName() string { return "method" }
func (b *BoundMethod) Inspect() string {
	return "<bound method " + b.Receiver.Class.Name + "." + b.Method.Proto.Name + ">"
}

func findProperty(props []Property, name string) (Value, bool) {
	for _, p := range props {
		if p.Name == name {
			return p.Value, true
		}
	}
	return NilVal(), false
}
