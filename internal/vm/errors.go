package vm

import (
	"errors"
	"fmt"
	"strings"

	"github.com/funvibe/alla/internal/token"
)

var (
	ErrSyntax            = errors.New("syntax error")
	ErrUndefinedVariable = errors.New("undefined variable")
	ErrTypeMismatch      = errors.New("type mismatch")
	ErrPropertyNotFound  = errors.New("property not found")
	ErrUnknownOpcode     = errors.New("unknown opcode")
	ErrStackUnderflow    = errors.New("stack underflow")
	ErrStackOverflow     = errors.New("stack overflow")
	ErrNotCallable       = errors.New("not callable")
	ErrArity             = errors.New("wrong number of arguments")
)

// errTruncatedBytecode is raised when an instruction runs past the end of Code.
var errTruncatedBytecode = fmt.Errorf("%w: truncated bytecode", ErrUnknownOpcode)

// SyntaxError is a compile-time fault at a token.
type SyntaxError struct {
	Expected token.TokenType // Empty when no single kind was expected
	Found    token.Token
	AtEnd    bool // Input ran out before Found
	Message  string
}

func (e *SyntaxError) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Message)
	if e.Expected != "" {
		sb.WriteString(fmt.Sprintf(": expected %s", e.Expected))
	}
	if e.AtEnd {
		sb.WriteString(", found end of input")
	} else if e.Found.Type != "" {
		sb.WriteString(fmt.Sprintf(", found %s %q", e.Found.Type, e.Found.Lexeme))
	}
	return sb.String()
}

func (e *SyntaxError) Unwrap() error { return ErrSyntax }

// Frame is one activation in a runtime error trace.
type Frame struct {
	Function string
	Line     int
}

// RuntimeError is a fault raised while executing bytecode.
// Trace lists the active functions, innermost first.
type RuntimeError struct {
	Err   error
	Trace []Frame
}

func (e *RuntimeError) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Err.Error())
	for _, f := range e.Trace {
		sb.WriteString(fmt.Sprintf("\n  at %s (line %d)", f.Function, f.Line))
	}
	return sb.String()
}

func (e *RuntimeError) Unwrap() error { return e.Err }

// Line is the source line of the innermost frame, 0 if unknown.
func (e *RuntimeError) Line() int {
	if len(e.Trace) == 0 {
		return 0
	}
	return e.Trace[0].Line
}

// Message is the fault without the trace.
func (e *RuntimeError) Message() string {
	return e.Err.Error()
}

func undefinedVariable(name string) error {
	return fmt.Errorf("%w: %s", ErrUndefinedVariable, name)
}

func typeMismatch(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrTypeMismatch, fmt.Sprintf(format, args...))
}
