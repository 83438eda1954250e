// Package diagnostics defines the coded, positioned errors reported by
// every stage of the pipeline.
package diagnostics

import (
	"fmt"

	"github.com/funvibe/alla/internal/token"
)

type ErrorCode string

const (
	ErrL001 ErrorCode = "L001" // lexical error
	ErrP001 ErrorCode = "P001" // syntax error
	ErrR001 ErrorCode = "R001" // runtime error
	ErrB001 ErrorCode = "B001" // bundle or cache error
)

// DiagnosticError is a single reportable failure.
type DiagnosticError struct {
	Code    ErrorCode
	Token   token.Token
	Message string
	File    string
}

func NewError(code ErrorCode, tok token.Token, message string) *DiagnosticError {
	return &DiagnosticError{Code: code, Token: tok, Message: message}
}

func (e *DiagnosticError) Error() string {
	loc := ""
	if e.File != "" {
		loc = e.File + ":"
	}
	switch {
	case e.Token.Line > 0 && e.Token.Column > 0:
		loc += fmt.Sprintf("%d:%d:", e.Token.Line, e.Token.Column)
	case e.Token.Line > 0:
		loc += fmt.Sprintf("%d:", e.Token.Line)
	}
	if loc != "" {
		loc += " "
	}
	return fmt.Sprintf("%s[%s] %s", loc, e.Code, e.Message)
}
