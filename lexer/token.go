package lexer

import (
	"fmt"
)

// TokenType represents the type of a token
type TokenType int

const (
	TokenEOF TokenType = iota
	TokenIdent
	TokenString
	TokenContent
	TokenEnter
	TokenLeave
	TokenSlash
	TokenPound
	TokenCaret
	TokenGreater
	TokenLess
	TokenDollar
	TokenBang
	TokenAmpersand
	TokenAsterisk
	TokenPeriod
	TokenEquals
	TokenLeftBrace
	TokenRightBrace
)

var tokenNames = map[TokenType]string{
	TokenEOF:        "EOF",
	TokenIdent:      "IDENT",
	TokenString:     "STRING",
	TokenContent:    "CONTENT",
	TokenEnter:      "ENTER",
	TokenLeave:      "LEAVE",
	TokenSlash:      "SLASH",
	TokenPound:      "POUND",
	TokenCaret:      "CARET",
	TokenGreater:    "GREATER",
	TokenLess:       "LESS",
	TokenDollar:     "DOLLAR",
	TokenBang:       "BANG",
	TokenAmpersand:  "AMPERSAND",
	TokenAsterisk:   "ASTERISK",
	TokenPeriod:     "PERIOD",
	TokenEquals:     "EQUALS",
	TokenLeftBrace:  "LBRACE",
	TokenRightBrace: "RBRACE",
}

func (tt TokenType) String() string {
	if name, ok := tokenNames[tt]; ok {
		return name
	}
	return fmt.Sprintf("Token(%d)", tt)
}

// Layout classifies whether a tag may be trimmed as standalone.
type Layout int

const (
	LayoutPreserve Layout = iota
	LayoutStandalone
)

func (l Layout) String() string {
	if l == LayoutStandalone {
		return "standalone"
	}
	return "preserve"
}

// Token is a view into the template source. Start and End are byte offsets.
//
// Enter and Leave tokens carry the delimiter text in Value. A Leave token with
// LayoutStandalone means the lexer has already consumed the rest of the line,
// and the parser must drop the indentation that precedes the tag.
type Token struct {
	Type   TokenType
	Value  string
	Start  int
	End    int
	Layout Layout
}

func (t Token) String() string {
	return fmt.Sprintf("%s(%q) at %d..%d", t.Type, t.Value, t.Start, t.End)
}

// Standalone reports whether a Leave token closed a standalone tag.
func (t Token) Standalone() bool {
	return t.Type == TokenLeave && t.Layout == LayoutStandalone
}

// TokenStream represents a stream of tokens
type TokenStream struct {
	tokens []Token
	pos    int
	end    int
}

func NewTokenStream(tokens []Token, sourceLen int) *TokenStream {
	return &TokenStream{
		tokens: tokens,
		end:    sourceLen,
	}
}

func (ts *TokenStream) eof() Token {
	return Token{Type: TokenEOF, Start: ts.end, End: ts.end}
}

func (ts *TokenStream) Next() Token {
	if ts.pos >= len(ts.tokens) {
		return ts.eof()
	}
	token := ts.tokens[ts.pos]
	ts.pos++
	return token
}

func (ts *TokenStream) Peek() Token {
	if ts.pos >= len(ts.tokens) {
		return ts.eof()
	}
	return ts.tokens[ts.pos]
}

func (ts *TokenStream) PeekN(n int) Token {
	if ts.pos+n >= len(ts.tokens) {
		return ts.eof()
	}
	return ts.tokens[ts.pos+n]
}

// SkipIf consumes the next token when it has the given type.
func (ts *TokenStream) SkipIf(tt TokenType) bool {
	if ts.Peek().Type == tt {
		ts.pos++
		return true
	}
	return false
}

func (ts *TokenStream) Eof() bool {
	return ts.Peek().Type == TokenEOF
}
