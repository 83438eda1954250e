package token

import "fmt"

type TokenType string

const (
	NUMBER TokenType = "NUMBER"
	STRING TokenType = "STRING"
	BOOL   TokenType = "BOOL"
	IDENT  TokenType = "IDENT"

	// Operators
	PLUS     TokenType = "+"
	MINUS    TokenType = "-"
	ASTERISK TokenType = "*"
	SLASH    TokenType = "/"
	ASSIGN   TokenType = "="
	EQ       TokenType = "=="
	NOT_EQ   TokenType = "!="
	AND      TokenType = "&"
	OR       TokenType = "|"
	BANG     TokenType = "!"

	// Delimiters
	LPAREN TokenType = "("
	RPAREN TokenType = ")"
	LBRACE TokenType = "{"
	RBRACE TokenType = "}"
	COMMA  TokenType = ","
	DOT    TokenType = "."

	// Keywords
	FUNCTION TokenType = "FUNCTION"
	RETURN   TokenType = "RETURN"
	IF       TokenType = "IF"
	ELSE     TokenType = "ELSE"
	CLASS    TokenType = "CLASS"

	// EOF is never produced by the lexer. The compiler reports it when
	// the token stream is exhausted where a token was required.
	EOF TokenType = "EOF"
)

var keywords = map[string]TokenType{
	"function": FUNCTION,
	"return":   RETURN,
	"if":       IF,
	"else":     ELSE,
	"class":    CLASS,
	"true":     BOOL,
	"false":    BOOL,
}

// LookupIdent returns the keyword kind for ident, or IDENT.
func LookupIdent(ident string) TokenType {
	if tok, ok := keywords[ident]; ok {
		return tok
	}
	return IDENT
}

// Token is one lexical unit. Lexeme holds the literal text; for strings it
// is the decoded content without quotes.
type Token struct {
	Type   TokenType
	Lexeme string
	Line   int
	Column int
}

func (t Token) String() string {
	return fmt.Sprintf("%s(%q) at %d:%d", t.Type, t.Lexeme, t.Line, t.Column)
}
