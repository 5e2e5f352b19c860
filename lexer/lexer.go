// Package lexer tokenizes mustache template source.
//
// The lexer is context sensitive: it switches between free text, tag control
// and tag literal modes as open and close delimiters are crossed, so the parser
// can stay context free. It also classifies every tag as standalone or not,
// consuming the remainder of the line for standalone tags.
package lexer

import (
	"fmt"
	"strings"
)

// Error represents a lexing error
type Error struct {
	Message string
	Start   int
	End     int
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s at offset %d", e.Message, e.Start)
}

// Delimiters holds the open and close tag markers.
type Delimiters struct {
	Open  string
	Close string
}

// DefaultDelimiters returns the standard `{{` `}}` pair.
func DefaultDelimiters() Delimiters {
	return Delimiters{Open: "{{", Close: "}}"}
}

// Valid reports whether both markers are non-empty and free of whitespace and '='.
func (d Delimiters) Valid() bool {
	for _, s := range []string{d.Open, d.Close} {
		if s == "" || strings.ContainsAny(s, " \t\r\n=") {
			return false
		}
	}
	return true
}

type mode int

const (
	modeContent mode = iota
	modeControl
	modeLiteral
	modeDelimiters
)

// Lexer implements the mustache template lexer
type Lexer struct {
	source   string
	pos      int
	mode     mode
	delims   Delimiters
	pending  *Delimiters
	previous TokenType
	triple   bool
	layout   Layout
	tagStart int
	// opens holds the sigils of the sections, blocks and parents still open.
	opens []byte
	// chainable is set while scanning a parent or block tag, or the tag
	// closing one. Several of them may share a standalone line.
	chainable bool
	// chained is set when the previous tag left a standalone line that
	// continues with the next tag.
	chained bool
}

// New creates a lexer using the default delimiters.
func New(source string) *Lexer {
	return NewWithDelimiters(source, DefaultDelimiters())
}

// NewWithDelimiters creates a lexer starting with the given delimiters.
func NewWithDelimiters(source string, delims Delimiters) *Lexer {
	return &Lexer{
		source:   source,
		delims:   delims,
		previous: TokenEOF,
	}
}

// Tokenize scans the whole source into a token stream.
func Tokenize(source string, delims Delimiters) (*TokenStream, error) {
	l := NewWithDelimiters(source, delims)

	var tokens []Token
	for {
		token, err := l.Next()
		if err != nil {
			return nil, err
		}
		if token.Type == TokenEOF {
			break
		}
		tokens = append(tokens, token)
	}

	return NewTokenStream(tokens, len(source)), nil
}

// Next returns the next token, or a TokenEOF token at the end of input.
func (l *Lexer) Next() (Token, error) {
	if l.mode == modeControl {
		l.skipWhitespace()
	}

	if l.pos >= len(l.source) {
		if l.mode != modeContent {
			return Token{}, l.unclosed()
		}
		return Token{Type: TokenEOF, Start: l.pos, End: l.pos}, nil
	}

	switch l.mode {
	case modeControl:
		return l.scanControl()
	case modeLiteral:
		return l.scanLiteral()
	case modeDelimiters:
		return l.scanDelimiters()
	default:
		return l.scanContent()
	}
}

func (l *Lexer) scanContent() (Token, error) {
	rest := l.source[l.pos:]
	idx := strings.Index(rest, l.delims.Open)
	if idx == 0 {
		return l.enter(), nil
	}
	if idx < 0 {
		idx = len(rest)
	}

	return l.emit(TokenContent, idx), nil
}

func (l *Lexer) scanControl() (Token, error) {
	rest := l.source[l.pos:]

	if l.triple && l.previous != TokenRightBrace && strings.HasPrefix(rest, "}"+l.delims.Close) {
		return l.emit(TokenRightBrace, 1), nil
	}
	if strings.HasPrefix(rest, l.delims.Close) {
		return l.leave(), nil
	}

	c := rest[0]
	if l.previous == TokenEnter {
		switch c {
		case '#':
			l.opens = append(l.opens, c)
			return l.emit(TokenPound, 1), nil
		case '^':
			l.opens = append(l.opens, c)
			return l.emit(TokenCaret, 1), nil
		case '$':
			l.opens = append(l.opens, c)
			l.chainable = true
			return l.emit(TokenDollar, 1), nil
		case '/':
			if n := len(l.opens); n > 0 {
				l.chainable = l.opens[n-1] == '$' || l.opens[n-1] == '<'
				l.opens = l.opens[:n-1]
			}
			l.mode = modeLiteral
			return l.emit(TokenSlash, 1), nil
		case '!':
			l.mode = modeLiteral
			return l.emit(TokenBang, 1), nil
		case '>', '<':
			tt := TokenGreater
			dynamic := strings.HasPrefix(strings.TrimLeft(rest[1:], " \t\r\n"), "*")
			if c == '<' {
				tt = TokenLess
				l.opens = append(l.opens, c)
				l.chainable = !dynamic
			}
			if !dynamic {
				l.mode = modeLiteral
			}
			return l.emit(tt, 1), nil
		case '=':
			l.mode = modeDelimiters
			return l.emit(TokenEquals, 1), nil
		case '&':
			// Interpolation tags are never standalone.
			l.layout = LayoutPreserve
			return l.emit(TokenAmpersand, 1), nil
		case '{':
			l.layout = LayoutPreserve
			l.triple = true
			return l.emit(TokenLeftBrace, 1), nil
		}
	}

	switch {
	case c == '*' && (l.previous == TokenGreater || l.previous == TokenLess):
		return l.emit(TokenAsterisk, 1), nil
	case c == '=' && l.previous == TokenString:
		return l.emit(TokenEquals, 1), nil
	case c == '.':
		if l.previous == TokenEnter {
			l.layout = LayoutPreserve
		}
		return l.emit(TokenPeriod, 1), nil
	}

	n := l.identLength(rest)
	if n == 0 {
		return Token{}, &Error{
			Message: fmt.Sprintf("unexpected character %q in tag", c),
			Start:   l.pos,
			End:     l.pos + 1,
		}
	}
	if l.previous == TokenEnter {
		l.layout = LayoutPreserve
	}

	return l.emit(TokenIdent, n), nil
}

func (l *Lexer) scanLiteral() (Token, error) {
	rest := l.source[l.pos:]
	idx := strings.Index(rest, l.delims.Close)
	if idx < 0 {
		return Token{}, l.unclosed()
	}
	if idx == 0 {
		return l.leave(), nil
	}

	raw := rest[:idx]
	lead := len(raw) - len(strings.TrimLeft(raw, " \t\r\n"))
	value := strings.TrimSpace(raw)

	token := Token{Type: TokenString, Value: value, Start: l.pos + lead, End: l.pos + lead + len(value)}
	l.pos += idx
	l.previous = TokenString
	l.mode = modeControl
	return token, nil
}

func (l *Lexer) scanDelimiters() (Token, error) {
	rest := l.source[l.pos:]
	idx := strings.Index(rest, "="+l.delims.Close)
	if idx < 0 {
		return Token{}, l.unclosed()
	}

	raw := rest[:idx]
	fields := strings.Fields(raw)
	if len(fields) != 2 {
		return Token{}, &Error{
			Message: fmt.Sprintf("invalid set delimiters tag %q", raw),
			Start:   l.pos,
			End:     l.pos + idx,
		}
	}
	next := Delimiters{Open: fields[0], Close: fields[1]}
	if !next.Valid() {
		return Token{}, &Error{
			Message: fmt.Sprintf("invalid delimiters %q %q", next.Open, next.Close),
			Start:   l.pos,
			End:     l.pos + idx,
		}
	}
	l.pending = &next

	lead := len(raw) - len(strings.TrimLeft(raw, " \t\r\n"))
	value := strings.TrimSpace(raw)
	token := Token{Type: TokenString, Value: value, Start: l.pos + lead, End: l.pos + lead + len(value)}
	l.pos += idx
	l.previous = TokenString
	l.mode = modeControl
	return token, nil
}

// enter consumes an open delimiter. The tag is provisionally standalone when
// only blanks separate it from the start of its line; later tokens and the
// close delimiter may revise that.
func (l *Lexer) enter() Token {
	start := l.pos
	l.pos += len(l.delims.Open)
	l.tagStart = start
	l.triple = false
	l.mode = modeControl
	l.previous = TokenEnter

	l.layout = LayoutPreserve
	if l.chained || l.blankBefore(start) {
		l.layout = LayoutStandalone
	}
	l.chained = false
	l.chainable = false

	return Token{Type: TokenEnter, Value: l.delims.Open, Start: start, End: l.pos, Layout: l.layout}
}

// leave consumes a close delimiter. A standalone tag also swallows the
// trailing blanks and exactly one newline; if the line continues with other
// text the tag is reclassified as preserve. Parent and block tags stay
// standalone when the line continues with more of them only; the blanks up
// to the next one are skipped.
func (l *Lexer) leave() Token {
	start := l.pos
	l.pos += len(l.delims.Close)
	end := l.pos

	layout := LayoutPreserve
	if l.layout == LayoutStandalone {
		if next, ok := l.blankAfter(l.pos); ok {
			l.pos = next
			layout = LayoutStandalone
		} else if next, ok := l.chainAfter(l.pos); ok && l.chainable {
			l.pos = next
			layout = LayoutStandalone
			l.chained = true
		}
	}

	l.mode = modeContent
	l.previous = TokenLeave
	l.triple = false
	if l.pending != nil {
		l.delims = *l.pending
		l.pending = nil
	}

	return Token{Type: TokenLeave, Value: l.source[start:end], Start: start, End: end, Layout: layout}
}

func (l *Lexer) emit(tt TokenType, n int) Token {
	start := l.pos
	l.pos += n
	l.previous = tt
	return Token{Type: tt, Value: l.source[start:l.pos], Start: start, End: l.pos}
}

func (l *Lexer) unclosed() error {
	return &Error{
		Message: fmt.Sprintf("unclosed tag, expected %q", l.delims.Close),
		Start:   l.tagStart,
		End:     len(l.source),
	}
}

func (l *Lexer) identLength(rest string) int {
	for i := 0; i < len(rest); i++ {
		switch rest[i] {
		case ' ', '\t', '\r', '\n', '.', '{', '}':
			return i
		}
		if strings.HasPrefix(rest[i:], l.delims.Close) {
			return i
		}
	}
	return len(rest)
}

func (l *Lexer) skipWhitespace() {
	for l.pos < len(l.source) {
		switch l.source[l.pos] {
		case ' ', '\t', '\r', '\n':
			l.pos++
		default:
			return
		}
	}
}

func (l *Lexer) blankBefore(pos int) bool {
	for i := pos - 1; i >= 0; i-- {
		switch l.source[i] {
		case '\n':
			return true
		case ' ', '\t':
		default:
			return false
		}
	}
	return true
}

// chainAfter reports whether the line from pos holds nothing but blanks and
// parent or block tags, and returns the position of the first such tag.
func (l *Lexer) chainAfter(pos int) (int, bool) {
	opens := append([]byte(nil), l.opens...)
	first := -1
	i := pos
	for {
		for i < len(l.source) && (l.source[i] == ' ' || l.source[i] == '\t') {
			i++
		}
		if !strings.HasPrefix(l.source[i:], l.delims.Open) {
			if _, ok := l.blankAfter(i); !ok || first < 0 {
				return pos, false
			}
			return first, true
		}

		body := i + len(l.delims.Open)
		n := strings.Index(l.source[body:], l.delims.Close)
		if n < 0 {
			return pos, false
		}
		tag := strings.TrimSpace(l.source[body : body+n])
		if tag == "" {
			return pos, false
		}
		switch tag[0] {
		case '$', '<':
			if strings.HasPrefix(strings.TrimSpace(tag[1:]), "*") {
				return pos, false
			}
			opens = append(opens, tag[0])
		case '/':
			top := len(opens) - 1
			if top < 0 || (opens[top] != '$' && opens[top] != '<') {
				return pos, false
			}
			opens = opens[:top]
		default:
			return pos, false
		}
		if first < 0 {
			first = i
		}
		i = body + n + len(l.delims.Close)
	}
}

func (l *Lexer) blankAfter(pos int) (int, bool) {
	i := pos
	for i < len(l.source) && (l.source[i] == ' ' || l.source[i] == '\t') {
		i++
	}
	switch {
	case i == len(l.source):
		return i, true
	case l.source[i] == '\n':
		return i + 1, true
	case strings.HasPrefix(l.source[i:], "\r\n"):
		return i + 2, true
	}
	return pos, false
}
