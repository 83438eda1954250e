package vm

import (
	"fmt"

	"github.com/funvibe/alla/internal/config"
	"github.com/funvibe/alla/internal/token"
)

func (c *Compiler) statement() error {
	tok := c.peek()
	switch tok.Type {
	case token.FUNCTION:
		return c.functionDeclaration()
	case token.CLASS:
		return c.classDeclaration()
	case token.IF:
		return c.ifStatement()
	case token.RETURN:
		return c.returnStatement()
	case token.ELSE:
		return c.errorAt(tok, "else without if")
	case token.IDENT:
		if c.peekAt(1).Type == token.ASSIGN {
			if tok.Lexeme == config.ThisName {
				return c.errorAt(tok, "cannot assign to this")
			}
			return c.assignment()
		}
		if dot := c.findPropertyAssignment(); dot != -1 {
			return c.propertyAssignment(dot)
		}
	}
	return c.expression()
}

// assignment: IDENT = expression
func (c *Compiler) assignment() error {
	name := c.advance()
	c.advance() // =

	if err := c.expression(); err != nil {
		return err
	}
	slot, err := c.declareLocal(name.Lexeme)
	if err != nil {
		return err
	}
	c.emit(OP_STORE_VAR, slot)
	return nil
}

// findPropertyAssignment looks ahead for  primary {.name | (args)} .name =
// and returns the index of the final dot, or -1.
func (c *Compiler) findPropertyAssignment() int {
	i := c.current + 1
	lastDot := -1
	for i < len(c.tokens) {
		switch c.tokens[i].Type {
		case token.DOT:
			if i+1 >= len(c.tokens) || c.tokens[i+1].Type != token.IDENT {
				return -1
			}
			lastDot = i
			i += 2
		case token.LPAREN:
			if c.tokens[i].Line != c.tokens[i-1].Line {
				return -1
			}
			depth := 0
			for ; i < len(c.tokens); i++ {
				if c.tokens[i].Type == token.LPAREN {
					depth++
				} else if c.tokens[i].Type == token.RPAREN {
					depth--
					if depth == 0 {
						break
					}
				}
			}
			if depth != 0 {
				return -1
			}
			i++
			lastDot = -1
		case token.ASSIGN:
			return lastDot
		default:
			return -1
		}
	}
	return -1
}

// propertyAssignment: target.name = expression, with the final dot at index dot
func (c *Compiler) propertyAssignment(dot int) error {
	if err := c.primary(); err != nil {
		return err
	}
	if err := c.suffixes(dot); err != nil {
		return err
	}
	c.advance() // .
	name := c.advance()
	c.advance() // =

	if err := c.emitConstant(StringVal(name.Lexeme)); err != nil {
		return err
	}
	if err := c.expression(); err != nil {
		return err
	}
	c.emit(OP_STORE_PROP, 0)
	return nil
}

// returnStatement: return [expression]
func (c *Compiler) returnStatement() error {
	c.advance()
	if c.atEnd() || c.check(token.RBRACE) {
		c.emit(OP_RETURN, 0)
		return nil
	}
	if err := c.expression(); err != nil {
		return err
	}
	c.emit(OP_RETURN, 1)
	return nil
}

// ifStatement: if ( expression ) block [else (ifStatement | block)]
func (c *Compiler) ifStatement() error {
	c.advance()
	if _, err := c.expect(token.LPAREN, "missing ( after if"); err != nil {
		return err
	}
	if err := c.expression(); err != nil {
		return err
	}
	if _, err := c.expect(token.RPAREN, "missing ) after condition"); err != nil {
		return err
	}

	thenJump := c.emitJump(OP_POP_JUMP_IF_FALSE)
	if err := c.block(); err != nil {
		return err
	}

	if !c.match(token.ELSE) {
		return c.patchJump(thenJump)
	}

	elseJump := c.emitJump(OP_JUMP)
	if err := c.patchJump(thenJump); err != nil {
		return err
	}
	if c.check(token.IF) {
		if err := c.ifStatement(); err != nil {
			return err
		}
	} else if err := c.block(); err != nil {
		return err
	}
	return c.patchJump(elseJump)
}

// block: { statement* }
func (c *Compiler) block() error {
	if _, err := c.expect(token.LBRACE, "missing { before block"); err != nil {
		return err
	}
	for !c.check(token.RBRACE) {
		if c.atEnd() {
			return c.errorAtCurrent("unterminated block", token.RBRACE)
		}
		if err := c.statement(); err != nil {
			return err
		}
	}
	c.advance()
	return nil
}

// functionDeclaration: function IDENT ( params ) { body }
func (c *Compiler) functionDeclaration() error {
	c.advance()
	name, err := c.expect(token.IDENT, "missing function name")
	if err != nil {
		return err
	}

	// Allocated before the body compiles so the body can call itself.
	slot, err := c.declareLocal(name.Lexeme)
	if err != nil {
		return err
	}

	proto, err := c.functionLiteral(name, false)
	if err != nil {
		return err
	}
	idx, err := c.addConstant(ObjVal(proto))
	if err != nil {
		return err
	}
	c.emit(OP_CLOSURE, idx)
	c.emit(OP_STORE_VAR, slot)
	return nil
}

// functionLiteral parses ( params ) { body } after the name and compiles
// the body with a nested compiler.
func (c *Compiler) functionLiteral(name token.Token, isMethod bool) (*FunctionProto, error) {
	params, err := c.parameterList()
	if err != nil {
		return nil, err
	}
	body, err := c.captureBody()
	if err != nil {
		return nil, err
	}
	return c.compileFunction(name.Lexeme, params, body, isMethod, name.Line)
}

func (c *Compiler) parameterList() ([]string, error) {
	if _, err := c.expect(token.LPAREN, "missing ( before parameters"); err != nil {
		return nil, err
	}

	var params []string
	if c.match(token.RPAREN) {
		return params, nil
	}
	for {
		p, err := c.expect(token.IDENT, "invalid parameter")
		if err != nil {
			return nil, err
		}
		if p.Lexeme == config.ThisName {
			return nil, c.errorAt(p, "this cannot be a parameter name")
		}
		for _, existing := range params {
			if existing == p.Lexeme {
				return nil, c.errorAt(p, fmt.Sprintf("duplicate parameter %s", p.Lexeme))
			}
		}
		params = append(params, p.Lexeme)

		if c.match(token.COMMA) {
			continue
		}
		if _, err := c.expect(token.RPAREN, "missing ) after parameters"); err != nil {
			return nil, err
		}
		return params, nil
	}
}

// captureBody consumes a brace-delimited body and returns the tokens
// between the braces, verbatim.
func (c *Compiler) captureBody() ([]token.Token, error) {
	if _, err := c.expect(token.LBRACE, "missing { before function body"); err != nil {
		return nil, err
	}
	start := c.current
	depth := 1
	for !c.atEnd() {
		switch c.peek().Type {
		case token.LBRACE:
			depth++
		case token.RBRACE:
			depth--
		}
		if depth == 0 {
			body := c.tokens[start:c.current]
			c.advance()
			return body, nil
		}
		c.advance()
	}
	return nil, c.errorAtCurrent("unterminated function body", token.RBRACE)
}

// classDeclaration: class IDENT { (method | this.name = expression)* }
//
// Field initializers are compiled inline and evaluated when the
// declaration runs; MAKE_CLASS collects them together with the methods.
func (c *Compiler) classDeclaration() error {
	c.advance()
	name, err := c.expect(token.IDENT, "missing class name")
	if err != nil {
		return err
	}
	if _, err := c.expect(token.LBRACE, "missing { before class body"); err != nil {
		return err
	}

	slot, err := c.declareLocal(name.Lexeme)
	if err != nil {
		return err
	}

	proto := &ClassProto{Name: name.Lexeme, Line: name.Line}
	if err := c.emitConstant(ObjVal(proto)); err != nil {
		return err
	}

	for !c.check(token.RBRACE) {
		if c.atEnd() {
			return c.errorAtCurrent("unterminated class body", token.RBRACE)
		}

		switch tok := c.peek(); {
		case tok.Type == token.FUNCTION:
			c.advance()
			mname, err := c.expect(token.IDENT, "missing method name")
			if err != nil {
				return err
			}
			for _, m := range proto.Methods {
				if m.Name == mname.Lexeme {
					return c.errorAt(mname, fmt.Sprintf("duplicate method %s.%s", proto.Name, mname.Lexeme))
				}
			}
			method, err := c.functionLiteral(mname, true)
			if err != nil {
				return err
			}
			proto.Methods = append(proto.Methods, method)

		case tok.Type == token.IDENT && tok.Lexeme == config.ThisName:
			if err := c.fieldInitializer(proto); err != nil {
				return err
			}

		default:
			return c.errorAt(tok, "expected method or this.field initializer in class body")
		}
	}
	c.advance()

	if len(proto.FieldNames) > MaxOperand {
		return c.errorAt(name, "too many fields in class")
	}
	c.emit(OP_MAKE_CLASS, uint16(len(proto.FieldNames)))
	c.emit(OP_STORE_VAR, slot)
	return nil
}

// fieldInitializer: this . IDENT = expression
func (c *Compiler) fieldInitializer(proto *ClassProto) error {
	c.advance()
	if _, err := c.expect(token.DOT, "malformed property declaration"); err != nil {
		return err
	}
	field, err := c.expect(token.IDENT, "malformed property declaration")
	if err != nil {
		return err
	}
	if _, err := c.expect(token.ASSIGN, "missing = in property declaration"); err != nil {
		return err
	}
	for _, f := range proto.FieldNames {
		if f == field.Lexeme {
			return c.errorAt(field, fmt.Sprintf("duplicate field %s.%s", proto.Name, field.Lexeme))
		}
	}
	proto.FieldNames = append(proto.FieldNames, field.Lexeme)
	return c.expression()
}
