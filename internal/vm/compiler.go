package vm

import (
	"fmt"
	"math"

	"github.com/funvibe/alla/internal/config"
	"github.com/funvibe/alla/internal/token"
)

// Compiler translates a token stream into a Program in a single pass.
// There is no AST: code is emitted as the grammar is recognized.
type Compiler struct {
	tokens  []token.Token
	current int
	program *Program

	// Function being compiled; enclosing is nil for the top-level script.
	enclosing *Compiler
	funcName  string
	isMethod  bool
	captures  []CaptureInfo

	line int // Line of the last consumed token, attached to emitted code
}

// NewCompiler creates a compiler for a top-level script
func NewCompiler(tokens []token.Token) *Compiler {
	return &Compiler{
		tokens:   tokens,
		program:  NewProgram(),
		funcName: config.ScriptName,
		line:     1,
	}
}

// Compile compiles the whole token stream.
func (c *Compiler) Compile() (prog *Program, err error) {
	defer func() {
		if r := recover(); r != nil {
			if se, ok := r.(*SyntaxError); ok {
				prog, err = nil, se
				return
			}
			panic(r)
		}
	}()

	if err := c.compileBody(); err != nil {
		return nil, err
	}
	return c.program, nil
}

// compileBody emits START and every statement until the tokens run out.
func (c *Compiler) compileBody() error {
	params := len(c.program.Variables)
	c.emit(OP_START, uint16(params))
	for !c.atEnd() {
		if err := c.statement(); err != nil {
			return err
		}
	}
	return nil
}

// compileFunction compiles a captured body as a nested function.
func (c *Compiler) compileFunction(name string, params []string, body []token.Token, isMethod bool, line int) (*FunctionProto, error) {
	if isMethod {
		params = append([]string{config.ThisName}, params...)
	}

	fc := &Compiler{
		tokens:    body,
		program:   NewProgram(),
		enclosing: c,
		funcName:  name,
		isMethod:  isMethod,
		line:      line,
	}
	for _, p := range params {
		if _, err := fc.program.AddVariable(p); err != nil {
			return nil, c.errorAtCurrent(err.Error(), "")
		}
	}
	if err := fc.compileBody(); err != nil {
		return nil, err
	}

	return &FunctionProto{
		Name:     name,
		Params:   params,
		Program:  fc.program,
		Captures: fc.captures,
		IsMethod: isMethod,
		Line:     line,
	}, nil
}

// Token helpers

func (c *Compiler) atEnd() bool {
	return c.current >= len(c.tokens)
}

func (c *Compiler) peek() token.Token {
	return c.peekAt(0)
}

func (c *Compiler) peekAt(n int) token.Token {
	if c.current+n >= len(c.tokens) {
		return token.Token{}
	}
	return c.tokens[c.current+n]
}

func (c *Compiler) previous() token.Token {
	if c.current == 0 {
		return token.Token{}
	}
	return c.tokens[c.current-1]
}

func (c *Compiler) check(t token.TokenType) bool {
	return !c.atEnd() && c.tokens[c.current].Type == t
}

func (c *Compiler) advance() token.Token {
	tok := c.tokens[c.current]
	c.current++
	c.line = tok.Line
	return tok
}

func (c *Compiler) match(t token.TokenType) bool {
	if !c.check(t) {
		return false
	}
	c.advance()
	return true
}

// expect consumes a token of kind t or fails with a SyntaxError.
func (c *Compiler) expect(t token.TokenType, context string) (token.Token, error) {
	if c.check(t) {
		return c.advance(), nil
	}
	return token.Token{}, c.errorAtCurrent(context, t)
}

func (c *Compiler) errorAtCurrent(msg string, expected token.TokenType) *SyntaxError {
	if c.atEnd() {
		last := c.previous()
		return &SyntaxError{Expected: expected, Found: token.Token{Line: last.Line, Column: last.Column}, AtEnd: true, Message: msg}
	}
	return &SyntaxError{Expected: expected, Found: c.peek(), Message: msg}
}

func (c *Compiler) errorAt(tok token.Token, msg string) *SyntaxError {
	return &SyntaxError{Found: tok, Message: msg}
}

// Emit helpers

func (c *Compiler) emit(op Opcode, operand uint16) int {
	return c.program.Emit(op, operand, c.line)
}

func (c *Compiler) addConstant(v Value) (uint16, error) {
	idx, err := c.program.AddConstant(v)
	if err != nil {
		return 0, c.errorAt(c.previous(), err.Error())
	}
	return uint16(idx), nil
}

func (c *Compiler) emitConstant(v Value) error {
	idx, err := c.addConstant(v)
	if err != nil {
		return err
	}
	c.emit(OP_LOAD_CONST, idx)
	return nil
}

// emitJump emits a jump with a placeholder offset and returns its position
func (c *Compiler) emitJump(op Opcode) int {
	return c.emit(op, 0)
}

// patchJump points the jump at offset to the next instruction to be emitted
func (c *Compiler) patchJump(offset int) error {
	delta := len(c.program.Code) - (offset + InstructionSize)
	if delta > math.MaxInt16 {
		return c.errorAt(c.previous(), fmt.Sprintf("branch too long (%d bytes)", delta))
	}
	c.program.PatchOperand(offset, uint16(int16(delta)))
	return nil
}
