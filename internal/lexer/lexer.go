package lexer

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/funvibe/alla/internal/diagnostics"
	"github.com/funvibe/alla/internal/token"
)

type Lexer struct {
	input        string
	position     int  // current position in input (points to current char)
	readPosition int  // current reading position in input (after current char)
	ch           rune // current char under examination
	line         int  // current line number
	column       int  // current column number
}

func New(input string) *Lexer {
	l := &Lexer{input: input, line: 1, column: 0}
	l.readChar()
	return l
}

func (l *Lexer) readChar() {
	if l.ch == '\n' {
		l.line++
		l.column = 0
	}

	if l.readPosition >= len(l.input) {
		l.ch = 0
		l.position = l.readPosition
		l.readPosition++
		l.column++
		return
	}

	r, w := utf8.DecodeRuneInString(l.input[l.readPosition:])
	l.ch = r
	l.position = l.readPosition
	l.readPosition += w
	l.column++
}

func (l *Lexer) peekChar() rune {
	if l.readPosition >= len(l.input) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(l.input[l.readPosition:])
	return r
}

func (l *Lexer) atEnd() bool {
	return l.position >= len(l.input)
}

// Tokenize converts the whole input into tokens. No EOF token is appended.
func Tokenize(input string) ([]token.Token, error) {
	l := New(input)
	var tokens []token.Token
	for {
		tok, ok, err := l.NextToken()
		if err != nil {
			return nil, err
		}
		if !ok {
			return tokens, nil
		}
		tokens = append(tokens, tok)
	}
}

// NextToken returns the next token. ok is false once the input is exhausted.
func (l *Lexer) NextToken() (tok token.Token, ok bool, err error) {
	l.skipWhitespaceAndComments()
	if l.atEnd() {
		return token.Token{}, false, nil
	}

	line, col := l.line, l.column

	switch l.ch {
	case '=':
		if l.peekChar() == '=' {
			l.readChar()
			tok = token.Token{Type: token.EQ, Lexeme: "=="}
		} else {
			tok = token.Token{Type: token.ASSIGN, Lexeme: "="}
		}
	case '!':
		if l.peekChar() == '=' {
			l.readChar()
			tok = token.Token{Type: token.NOT_EQ, Lexeme: "!="}
		} else {
			tok = token.Token{Type: token.BANG, Lexeme: "!"}
		}
	case '+':
		tok = token.Token{Type: token.PLUS, Lexeme: "+"}
	case '-':
		tok = token.Token{Type: token.MINUS, Lexeme: "-"}
	case '*':
		tok = token.Token{Type: token.ASTERISK, Lexeme: "*"}
	case '/':
		tok = token.Token{Type: token.SLASH, Lexeme: "/"}
	case '&':
		tok = token.Token{Type: token.AND, Lexeme: "&"}
	case '|':
		tok = token.Token{Type: token.OR, Lexeme: "|"}
	case '(':
		tok = token.Token{Type: token.LPAREN, Lexeme: "("}
	case ')':
		tok = token.Token{Type: token.RPAREN, Lexeme: ")"}
	case '{':
		tok = token.Token{Type: token.LBRACE, Lexeme: "{"}
	case '}':
		tok = token.Token{Type: token.RBRACE, Lexeme: "}"}
	case ',':
		tok = token.Token{Type: token.COMMA, Lexeme: ","}
	case '"':
		s, err := l.readString(line, col)
		if err != nil {
			return token.Token{}, false, err
		}
		return token.Token{Type: token.STRING, Lexeme: s, Line: line, Column: col}, true, nil
	case '.':
		if !isDigit(l.peekChar()) {
			tok = token.Token{Type: token.DOT, Lexeme: "."}
			break
		}
		fallthrough
	default:
		if isDigit(l.ch) || l.ch == '.' {
			num, err := l.readNumber(line, col)
			if err != nil {
				return token.Token{}, false, err
			}
			return token.Token{Type: token.NUMBER, Lexeme: num, Line: line, Column: col}, true, nil
		}
		if isLetter(l.ch) {
			ident := l.readIdentifier()
			return token.Token{Type: token.LookupIdent(ident), Lexeme: ident, Line: line, Column: col}, true, nil
		}
		return token.Token{}, false, l.errorAt(line, col, fmt.Sprintf("unknown character %q", l.ch))
	}

	l.readChar()
	tok.Line = line
	tok.Column = col
	return tok, true, nil
}

func (l *Lexer) skipWhitespaceAndComments() {
	for !l.atEnd() {
		switch {
		case unicode.IsSpace(l.ch):
			l.readChar()
		case l.ch == '#':
			for !l.atEnd() && l.ch != '\n' {
				l.readChar()
			}
		default:
			return
		}
	}
}

func (l *Lexer) readNumber(line, col int) (string, error) {
	start := l.position
	dots := 0
	for !l.atEnd() && (isDigit(l.ch) || l.ch == '.') {
		if l.ch == '.' {
			dots++
		}
		l.readChar()
	}
	num := l.input[start:l.position]
	if dots > 1 {
		return "", l.errorAt(line, col, fmt.Sprintf("malformed number %q", num))
	}
	return num, nil
}

func (l *Lexer) readIdentifier() string {
	start := l.position
	for !l.atEnd() && (isLetter(l.ch) || isDigit(l.ch)) {
		l.readChar()
	}
	return l.input[start:l.position]
}

// readString reads a double-quoted literal starting at the opening quote.
func (l *Lexer) readString(line, col int) (string, error) {
	var sb strings.Builder
	l.readChar() // opening quote
	for {
		if l.atEnd() {
			return "", l.errorAt(line, col, "unterminated string literal")
		}
		switch l.ch {
		case '"':
			l.readChar()
			return sb.String(), nil
		case '\\':
			l.readChar()
			switch l.ch {
			case 'n':
				sb.WriteRune('\n')
			case 't':
				sb.WriteRune('\t')
			case '"':
				sb.WriteRune('"')
			case '\\':
				sb.WriteRune('\\')
			default:
				if l.atEnd() {
					return "", l.errorAt(line, col, "unterminated string literal")
				}
				return "", l.errorAt(l.line, l.column, fmt.Sprintf("unknown escape sequence \\%c", l.ch))
			}
		default:
			if l.ch == utf8.RuneError && l.readPosition-l.position == 1 {
				return "", l.errorAt(l.line, l.column, "invalid UTF-8 in string literal")
			}
			sb.WriteRune(l.ch)
		}
		l.readChar()
	}
}

func (l *Lexer) errorAt(line, col int, msg string) error {
	return diagnostics.NewError(diagnostics.ErrL001, token.Token{Line: line, Column: col}, msg)
}

func isLetter(ch rune) bool {
	return unicode.IsLetter(ch) || ch == '_'
}

func isDigit(ch rune) bool {
	return '0' <= ch && ch <= '9'
}
