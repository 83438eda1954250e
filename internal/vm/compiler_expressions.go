package vm

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/funvibe/alla/internal/config"
	"github.com/funvibe/alla/internal/token"
)

// Precedence, lowest first:
//   expression -> or -> and -> equality -> additive -> multiplicative -> unary -> postfix

func (c *Compiler) expression() error {
	return c.or()
}

// or: and ( | and )*
// The left value stays on the stack and short-circuits when it is true.
func (c *Compiler) or() error {
	if err := c.and(); err != nil {
		return err
	}
	for c.match(token.OR) {
		jump := c.emitJump(OP_JUMP_IF_TRUE_OR_POP)
		if err := c.and(); err != nil {
			return err
		}
		if err := c.patchJump(jump); err != nil {
			return err
		}
	}
	return nil
}

// and: equality ( & equality )*
func (c *Compiler) and() error {
	if err := c.equality(); err != nil {
		return err
	}
	for c.match(token.AND) {
		jump := c.emitJump(OP_JUMP_IF_FALSE_OR_POP)
		if err := c.equality(); err != nil {
			return err
		}
		if err := c.patchJump(jump); err != nil {
			return err
		}
	}
	return nil
}

func (c *Compiler) equality() error {
	if err := c.additive(); err != nil {
		return err
	}
	for {
		var operand uint16
		switch {
		case c.match(token.EQ):
			operand = CmpEqual
		case c.match(token.NOT_EQ):
			operand = CmpNotEqual
		default:
			return nil
		}
		if err := c.additive(); err != nil {
			return err
		}
		c.emit(OP_COMPARE, operand)
	}
}

func (c *Compiler) additive() error {
	if err := c.multiplicative(); err != nil {
		return err
	}
	for {
		var operand uint16
		switch {
		case c.match(token.PLUS):
			operand = BinAdd
		case c.match(token.MINUS):
			operand = BinSub
		default:
			return nil
		}
		if err := c.multiplicative(); err != nil {
			return err
		}
		c.emit(OP_BINARY, operand)
	}
}

func (c *Compiler) multiplicative() error {
	if err := c.unary(); err != nil {
		return err
	}
	for {
		var operand uint16
		switch {
		case c.match(token.ASTERISK):
			operand = BinMul
		case c.match(token.SLASH):
			operand = BinDiv
		default:
			return nil
		}
		if err := c.unary(); err != nil {
			return err
		}
		c.emit(OP_BINARY, operand)
	}
}

func (c *Compiler) unary() error {
	switch {
	case c.match(token.MINUS):
		if err := c.unary(); err != nil {
			return err
		}
		c.emit(OP_NEGATE, 0)
		return nil
	case c.match(token.BANG):
		if err := c.unary(); err != nil {
			return err
		}
		c.emit(OP_NOT, 0)
		return nil
	}
	return c.postfix()
}

func (c *Compiler) postfix() error {
	if err := c.primary(); err != nil {
		return err
	}
	return c.suffixes(-1)
}

// suffixes compiles any number of .name and (args) suffixes, stopping
// before token index stop. A ( on a new line starts a new statement
// rather than a call.
func (c *Compiler) suffixes(stop int) error {
	for !c.atEnd() && c.current != stop {
		switch {
		case c.check(token.DOT):
			c.advance()
			name, err := c.expect(token.IDENT, "malformed property access")
			if err != nil {
				return err
			}
			if err := c.emitConstant(StringVal(name.Lexeme)); err != nil {
				return err
			}
			c.emit(OP_LOAD_PROP, 0)

		case c.check(token.LPAREN) && c.peek().Line == c.previous().Line:
			c.advance()
			argc, err := c.arguments()
			if err != nil {
				return err
			}
			c.emit(OP_CALL, argc)

		default:
			return nil
		}
	}
	return nil
}

// arguments compiles a call's arguments after the opening paren, left to right.
func (c *Compiler) arguments() (uint16, error) {
	if c.match(token.RPAREN) {
		return 0, nil
	}
	argc := 0
	for {
		if err := c.expression(); err != nil {
			return 0, err
		}
		argc++
		if argc > MaxOperand {
			return 0, c.errorAt(c.previous(), "too many arguments")
		}
		if c.match(token.COMMA) {
			continue
		}
		if _, err := c.expect(token.RPAREN, "missing ) after arguments"); err != nil {
			return 0, err
		}
		return uint16(argc), nil
	}
}

func (c *Compiler) primary() error {
	if c.atEnd() {
		return c.errorAtCurrent("expected expression", "")
	}
	tok := c.advance()

	switch tok.Type {
	case token.NUMBER:
		v, err := parseNumber(tok.Lexeme)
		if err != nil {
			return c.errorAt(tok, err.Error())
		}
		return c.emitConstant(v)

	case token.STRING:
		return c.emitConstant(StringVal(tok.Lexeme))

	case token.BOOL:
		return c.emitConstant(BoolVal(tok.Lexeme == "true"))

	case token.LPAREN:
		if err := c.expression(); err != nil {
			return err
		}
		_, err := c.expect(token.RPAREN, "missing ) after expression")
		return err

	case token.IDENT:
		if b, ok := c.builtinFor(tok.Lexeme); ok && c.check(token.LPAREN) {
			return c.emitConstant(ObjVal(b))
		}
		if tok.Lexeme == config.ThisName {
			if !c.inMethod() {
				return c.errorAt(tok, "this used outside of a method")
			}
			if !c.check(token.DOT) {
				return c.errorAtCurrent("malformed property access after this", token.DOT)
			}
		}
		return c.emitLoadName(tok.Lexeme)
	}

	return c.errorAt(tok, "expected expression")
}

// parseNumber parses integer literals as ints and anything with a
// decimal point as a float.
func parseNumber(lexeme string) (Value, error) {
	if strings.Contains(lexeme, ".") {
		f, err := strconv.ParseFloat(lexeme, 64)
		if err != nil {
			return NilVal(), fmt.Errorf("invalid number literal %s", lexeme)
		}
		return FloatVal(f), nil
	}
	i, err := strconv.ParseInt(lexeme, 10, 64)
	if err != nil {
		return NilVal(), fmt.Errorf("invalid number literal %s", lexeme)
	}
	return IntVal(i), nil
}
