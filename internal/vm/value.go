package vm

import (
	"math"
	"strconv"
)

// ValueType identifies the type of value stored in the Value struct
type ValueType uint8

const (
	ValNil ValueType = iota // No value
	ValInt
	ValFloat
	ValBool
	ValObj // Heap object (String, Function, Class, ...)
)

// Object is implemented by every heap value the VM manipulates.
type Object interface {
	// TypeName is the runtime type name used in error messages.
	TypeName() string
	// Inspect is the textual form printed by write and writeline.
	Inspect() string
}

// Value is a stack-allocated tagged union.
// Small primitives (Int, Float, Bool, Nil) never touch the heap.
type Value struct {
	Type ValueType
	Data uint64 // Stores int64 bits, float64 bits, or bool (0/1)
	Obj  Object // Holds heap objects
}

// Constructors

func NilVal() Value {
	return Value{Type: ValNil}
}

func IntVal(v int64) Value {
	return Value{Type: ValInt, Data: uint64(v)}
}

func FloatVal(v float64) Value {
	return Value{Type: ValFloat, Data: math.Float64bits(v)}
}

func BoolVal(v bool) Value {
	var data uint64
	if v {
		data = 1
	}
	return Value{Type: ValBool, Data: data}
}

func ObjVal(o Object) Value {
	return Value{Type: ValObj, Obj: o}
}

func StringVal(s string) Value {
	return ObjVal(&String{Value: s})
}

// Accessors

func (v Value) AsInt() int64 {
	return int64(v.Data)
}

func (v Value) AsFloat() float64 {
	return math.Float64frombits(v.Data)
}

func (v Value) AsBool() bool {
	return v.Data == 1
}

// AsNumber widens an int or float to float64.
func (v Value) AsNumber() float64 {
	if v.Type == ValInt {
		return float64(v.AsInt())
	}
	return v.AsFloat()
}

// AsString returns the string payload and whether v holds a String.
func (v Value) AsString() (string, bool) {
	if v.Type != ValObj {
		return "", false
	}
	s, ok := v.Obj.(*String)
	if !ok {
		return "", false
	}
	return s.Value, true
}

// Type checking helpers

func (v Value) IsInt() bool    { return v.Type == ValInt }
func (v Value) IsFloat() bool  { return v.Type == ValFloat }
func (v Value) IsNumber() bool { return v.Type == ValInt || v.Type == ValFloat }
func (v Value) IsBool() bool   { return v.Type == ValBool }
func (v Value) IsNil() bool    { return v.Type == ValNil }
func (v Value) IsObj() bool    { return v.Type == ValObj }

func (v Value) IsString() bool {
	_, ok := v.AsString()
	return ok
}

// Equals is the == operator: numbers compare across int and float, strings
// by content, other objects by identity.
func (v Value) Equals(other Value) bool {
	if v.IsNumber() && other.IsNumber() {
		return v.AsNumber() == other.AsNumber()
	}
	if v.Type != other.Type {
		return false
	}
	switch v.Type {
	case ValBool:
		return v.Data == other.Data
	case ValNil:
		return true
	case ValObj:
		if a, ok := v.Obj.(*String); ok {
			b, ok := other.Obj.(*String)
			return ok && a.Value == b.Value
		}
		return v.Obj == other.Obj
	default:
		return false
	}
}

// Inspect returns the textual form of v.
func (v Value) Inspect() string {
	switch v.Type {
	case ValInt:
		return strconv.FormatInt(v.AsInt(), 10)
	case ValFloat:
		return strconv.FormatFloat(v.AsFloat(), 'g', -1, 64)
	case ValBool:
		return strconv.FormatBool(v.AsBool())
	case ValNil:
		return "nil"
	case ValObj:
		if v.Obj != nil {
			return v.Obj.Inspect()
		}
		return "<nil obj>"
	default:
		return "<?>"
	}
}

func (v Value) String() string {
	return v.Inspect()
}

// TypeName returns the runtime type name of v.
func (v Value) TypeName() string {
	switch v.Type {
	case ValInt:
		return "int"
	case ValFloat:
		return "float"
	case ValBool:
		return "bool"
	case ValNil:
		return "nil"
	case ValObj:
		if v.Obj != nil {
			return v.Obj.TypeName()
		}
		return "nil"
	default:
		return "unknown"
	}
}
