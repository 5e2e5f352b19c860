package parser

import (
	"errors"
	"fmt"
	"strings"

	"github.com/deicod/gostache/lexer"
	"github.com/deicod/gostache/nodes"
)

// SyntaxErrorKind classifies a syntax error.
type SyntaxErrorKind string

const (
	SyntaxInvalidToken    SyntaxErrorKind = "invalid_token"
	SyntaxUnexpectedEOF   SyntaxErrorKind = "unexpected_eof"
	SyntaxUnexpectedToken SyntaxErrorKind = "unexpected_token"
	SyntaxExtraToken      SyntaxErrorKind = "extra_token"
	SyntaxUser            SyntaxErrorKind = "user"
)

// SyntaxError represents a syntax error in a template
type SyntaxError struct {
	Kind    SyntaxErrorKind
	Message string
	Start   int
	End     int
	Line    int
	Column  int
	Name    string
}

func (e *SyntaxError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("%s at line %d, column %d in %s", e.Message, e.Line, e.Column, e.Name)
	}
	return fmt.Sprintf("%s at line %d, column %d", e.Message, e.Line, e.Column)
}

// ErrLoadingDisabled is returned when a template includes another template
// but no loader was configured.
var ErrLoadingDisabled = errors.New("template loading is disabled")

// Loader provides the parsed nodes of included templates. Partials and
// parents are resolved through it while parsing.
type Loader interface {
	Load(name string) ([]nodes.Node, error)
}

// LoaderFunc adapts a function to the Loader interface.
type LoaderFunc func(name string) ([]nodes.Node, error)

func (f LoaderFunc) Load(name string) ([]nodes.Node, error) {
	return f(name)
}

type disabledLoader struct{}

func (disabledLoader) Load(string) ([]nodes.Node, error) {
	return nil, ErrLoadingDisabled
}

// Options configures a Parser.
type Options struct {
	// Name identifies the template in error messages.
	Name string
	// Loader resolves partials and parents. Nil disables loading.
	Loader Loader
	// Delimiters are the initial tag markers. Zero means {{ }}.
	Delimiters lexer.Delimiters
}

// openTag remembers a tag that still needs its closing counterpart.
type openTag struct {
	sigil string
	label string
	start int
	end   int
}

// Parser turns a token stream into a flattened node list.
type Parser struct {
	stream  *lexer.TokenStream
	source  string
	name    string
	loader  Loader
	delims  lexer.Delimiters
	pending string
}

// NewParser tokenizes source and prepares a parser for it.
func NewParser(source string, opts Options) (*Parser, error) {
	delims := opts.Delimiters
	if delims.Open == "" && delims.Close == "" {
		delims = lexer.DefaultDelimiters()
	}
	loader := opts.Loader
	if loader == nil {
		loader = disabledLoader{}
	}

	p := &Parser{
		source: source,
		name:   opts.Name,
		loader: loader,
		delims: delims,
	}

	stream, err := lexer.Tokenize(source, delims)
	if err != nil {
		var lexErr *lexer.Error
		if errors.As(err, &lexErr) {
			return nil, p.fail(SyntaxInvalidToken, lexErr.Message, lexErr.Start, lexErr.End)
		}
		return nil, err
	}
	p.stream = stream

	return p, nil
}

// Parse consumes the whole token stream.
func (p *Parser) Parse() ([]nodes.Node, error) {
	list, err := p.parseItems(nil)
	if err != nil {
		return nil, err
	}
	if p.pending != "" {
		list = append(list, nodes.Content(p.pending))
		p.pending = ""
	}
	return list, nil
}

// fail creates a syntax error with position information
func (p *Parser) fail(kind SyntaxErrorKind, msg string, start, end int) error {
	line, column := LineColumn(p.source, start)
	return &SyntaxError{
		Kind:    kind,
		Message: msg,
		Start:   start,
		End:     end,
		Line:    line,
		Column:  column,
		Name:    p.name,
	}
}

// LineColumn converts a byte offset into a 1-based line and column.
func LineColumn(source string, offset int) (int, int) {
	if offset > len(source) {
		offset = len(source)
	}
	if offset < 0 {
		offset = 0
	}
	before := source[:offset]
	line := strings.Count(before, "\n") + 1
	column := offset - strings.LastIndexByte(before, '\n')
	return line, column
}

// parseItems parses nodes until the end of input or, when open is set, until
// the closing tag that should match it. The closing tag itself is left in
// the stream.
func (p *Parser) parseItems(open *openTag) ([]nodes.Node, error) {
	var list []nodes.Node
	for {
		token := p.stream.Peek()
		switch token.Type {
		case lexer.TokenEOF:
			if open != nil {
				return nil, p.fail(SyntaxUnexpectedEOF,
					fmt.Sprintf("%s is missing the corresponding %s end tag",
						p.describeOpen(open), p.tag("/"+open.label)),
					open.start, open.end)
			}
			return list, nil
		case lexer.TokenContent:
			p.stream.Next()
			p.pending += token.Value
		case lexer.TokenEnter:
			if p.Look().Type == lexer.TokenSlash {
				if open == nil {
					return nil, p.strayClosing()
				}
				return list, nil
			}
			parsed, err := p.parseTag()
			if err != nil {
				return nil, err
			}
			list = append(list, parsed...)
		default:
			return nil, p.unexpected(token, "text or tag")
		}
	}
}

// parseTag parses one tag starting at its open delimiter.
func (p *Parser) parseTag() ([]nodes.Node, error) {
	enter := p.stream.Next()
	sigil := p.Current()

	switch sigil.Type {
	case lexer.TokenIdent, lexer.TokenPeriod:
		return p.parseInterpolation(nodes.KindEscaped, false)
	case lexer.TokenAmpersand:
		p.stream.Next()
		return p.parseInterpolation(nodes.KindUnescaped, false)
	case lexer.TokenLeftBrace:
		p.stream.Next()
		return p.parseInterpolation(nodes.KindUnescaped, true)
	case lexer.TokenPound:
		p.stream.Next()
		return p.parseSection(nodes.KindSection, enter, "#")
	case lexer.TokenCaret:
		p.stream.Next()
		return p.parseSection(nodes.KindInverted, enter, "^")
	case lexer.TokenDollar:
		p.stream.Next()
		return p.parseBlock(enter)
	case lexer.TokenLess:
		p.stream.Next()
		return p.parseParent(enter)
	case lexer.TokenGreater:
		p.stream.Next()
		return p.parsePartial()
	case lexer.TokenBang:
		p.stream.Next()
		p.SkipIf(lexer.TokenString)
		leave, err := p.Expect(lexer.TokenLeave)
		if err != nil {
			return nil, err
		}
		p.pending, _ = p.takeText(leave)
		return nil, nil
	case lexer.TokenEquals:
		p.stream.Next()
		return nil, p.parseDelimiters()
	case lexer.TokenLeave:
		return nil, p.fail(SyntaxUnexpectedToken, "empty tag", enter.Start, sigil.End)
	}

	return nil, p.unexpected(sigil, "tag name or sigil")
}

func (p *Parser) parseInterpolation(kind nodes.Kind, triple bool) ([]nodes.Node, error) {
	name, err := p.parseName()
	if err != nil {
		return nil, err
	}
	if triple {
		if _, err := p.Expect(lexer.TokenRightBrace); err != nil {
			return nil, err
		}
	}
	leave, err := p.Expect(lexer.TokenLeave)
	if err != nil {
		return nil, err
	}
	text, _ := p.takeText(leave)

	return explode(kind, text, name, nil, "", nodes.Delimiters{}, false), nil
}

func (p *Parser) parseSection(kind nodes.Kind, enter lexer.Token, sigil string) ([]nodes.Node, error) {
	name, err := p.parseName()
	if err != nil {
		return nil, err
	}
	delims := p.delims
	leave, err := p.Expect(lexer.TokenLeave)
	if err != nil {
		return nil, err
	}
	text, _ := p.takeText(leave)

	open := &openTag{sigil: sigil, label: name.String(), start: enter.Start, end: leave.End}
	bodyStart := p.Current().Start
	body, closing, err := p.parseBody(open)
	if err != nil {
		return nil, err
	}
	capture := p.source[bodyStart:closing.start]

	body = append(body, closing.node(name))
	return explode(kind, text, name, body, capture, nodes.Delimiters{Open: delims.Open, Close: delims.Close}, leave.Standalone()), nil
}

func (p *Parser) parseBlock(enter lexer.Token) ([]nodes.Node, error) {
	name, err := p.parseName()
	if err != nil {
		return nil, err
	}
	leave, err := p.Expect(lexer.TokenLeave)
	if err != nil {
		return nil, err
	}
	text, indent := p.takeText(leave)

	open := &openTag{sigil: "$", label: name.String(), start: enter.Start, end: leave.End}
	body, closing, err := p.parseBody(open)
	if err != nil {
		return nil, err
	}
	body = append(body, closing.node(name))

	block := nodes.Node{
		Kind:       nodes.KindBlock,
		Text:       text,
		Name:       name,
		Children:   len(body),
		Standalone: leave.Standalone(),
		Indent:     indent,
	}
	return append([]nodes.Node{block}, body...), nil
}

func (p *Parser) parseParent(enter lexer.Token) ([]nodes.Node, error) {
	if p.Current().Type == lexer.TokenAsterisk {
		token := p.Current()
		return nil, p.fail(SyntaxUnexpectedToken, "dynamic parents are not supported", token.Start, token.End)
	}
	path, err := p.Expect(lexer.TokenString)
	if err != nil {
		return nil, err
	}
	leave, err := p.Expect(lexer.TokenLeave)
	if err != nil {
		return nil, err
	}
	text, indent := p.takeText(leave)

	open := &openTag{sigil: "<", label: path.Value, start: enter.Start, end: leave.End}
	body, closing, err := p.parseBody(open)
	if err != nil {
		return nil, err
	}

	parent, err := p.loader.Load(path.Value)
	if err != nil {
		return nil, err
	}

	name := nodes.NewName(path.Start, path.Value)
	merged := Inherit(parent, Overrides(body))
	if leave.Standalone() {
		merged = Indent(merged, indent)
	}
	// Text inside the parent tag is discarded.
	closing.text = ""

	out := make([]nodes.Node, 0, len(merged)+2)
	out = append(out, nodes.Node{
		Kind:       nodes.KindParent,
		Text:       text,
		Name:       name,
		Children:   len(merged) + 1,
		Standalone: leave.Standalone(),
	})
	out = append(out, merged...)
	out = append(out, closing.node(name))
	return out, nil
}

func (p *Parser) parsePartial() ([]nodes.Node, error) {
	if p.SkipIf(lexer.TokenAsterisk) {
		name, err := p.parseName()
		if err != nil {
			return nil, err
		}
		leave, err := p.Expect(lexer.TokenLeave)
		if err != nil {
			return nil, err
		}
		text, indent := p.takeText(leave)
		return []nodes.Node{{
			Kind:       nodes.KindPartial,
			Text:       text,
			Name:       name,
			Dynamic:    true,
			Standalone: leave.Standalone(),
			Indent:     indent,
		}}, nil
	}

	path, err := p.Expect(lexer.TokenString)
	if err != nil {
		return nil, err
	}
	leave, err := p.Expect(lexer.TokenLeave)
	if err != nil {
		return nil, err
	}
	text, indent := p.takeText(leave)

	partial, err := p.loader.Load(path.Value)
	if err != nil {
		return nil, err
	}
	partial = Indent(partial, indent)

	out := make([]nodes.Node, 0, len(partial)+1)
	out = append(out, nodes.Node{
		Kind:       nodes.KindPartial,
		Text:       text,
		Name:       nodes.NewName(path.Start, path.Value),
		Children:   len(partial),
		Standalone: leave.Standalone(),
	})
	return append(out, partial...), nil
}

func (p *Parser) parseDelimiters() error {
	value, err := p.Expect(lexer.TokenString)
	if err != nil {
		return err
	}
	if _, err := p.Expect(lexer.TokenEquals); err != nil {
		return err
	}
	leave, err := p.Expect(lexer.TokenLeave)
	if err != nil {
		return err
	}
	fields := strings.Fields(value.Value)
	if len(fields) == 2 {
		p.delims = lexer.Delimiters{Open: fields[0], Close: fields[1]}
	}
	p.pending, _ = p.takeText(leave)
	return nil
}

// closingTag describes the tag that ended a body.
type closingTag struct {
	text       string
	start      int
	standalone bool
}

func (c closingTag) node(name nodes.Name) nodes.Node {
	return nodes.Node{Kind: nodes.KindClosing, Text: c.text, Name: name, Standalone: c.standalone}
}

// parseBody parses the body of open and consumes its closing tag.
func (p *Parser) parseBody(open *openTag) ([]nodes.Node, closingTag, error) {
	body, err := p.parseItems(open)
	if err != nil {
		return nil, closingTag{}, err
	}

	enter := p.stream.Next()
	p.stream.Next() // slash
	label := ""
	end := enter.End
	if token := p.Current(); token.Type == lexer.TokenString {
		p.stream.Next()
		label = token.Value
		end = token.End
	}
	leave, err := p.Expect(lexer.TokenLeave)
	if err != nil {
		return nil, closingTag{}, err
	}
	if label != open.label {
		return nil, closingTag{}, p.fail(SyntaxUser,
			fmt.Sprintf("%s does not close %s opened at line %d",
				p.tag("/"+label), p.describeOpen(open), p.line(open.start)),
			enter.Start, end)
	}

	text, _ := p.takeText(leave)
	return body, closingTag{text: text, start: enter.Start, standalone: leave.Standalone()}, nil
}

// parseName parses `.` or a dotted identifier chain.
func (p *Parser) parseName() (nodes.Name, error) {
	if token := p.Current(); token.Type == lexer.TokenPeriod {
		p.stream.Next()
		return nodes.NewName(token.Start, "."), nil
	}

	first, err := p.Expect(lexer.TokenIdent)
	if err != nil {
		return nodes.Name{}, err
	}
	keys := []string{first.Value}
	for p.SkipIf(lexer.TokenPeriod) {
		ident, err := p.Expect(lexer.TokenIdent)
		if err != nil {
			return nodes.Name{}, err
		}
		keys = append(keys, ident.Value)
	}
	return nodes.NewName(first.Start, keys...), nil
}

// takeText hands over the pending literal text. When leave closed a
// standalone tag, the blanks between the last newline and the tag are cut
// off and returned as the indentation.
func (p *Parser) takeText(leave lexer.Token) (string, string) {
	text := p.pending
	p.pending = ""
	if !leave.Standalone() {
		return text, ""
	}
	cut := strings.LastIndexByte(text, '\n') + 1
	return text[:cut], text[cut:]
}

// Current returns the current token without consuming it
func (p *Parser) Current() lexer.Token {
	return p.stream.Peek()
}

// Look returns the token after the current one without consuming
func (p *Parser) Look() lexer.Token {
	return p.stream.PeekN(1)
}

// SkipIf skips a token if it matches the expected type
func (p *Parser) SkipIf(expectedType lexer.TokenType) bool {
	return p.stream.SkipIf(expectedType)
}

// Expect consumes and returns a token, failing if it doesn't match the expected type
func (p *Parser) Expect(expectedType lexer.TokenType) (lexer.Token, error) {
	token := p.stream.Peek()
	if token.Type == expectedType {
		return p.stream.Next(), nil
	}
	return token, p.unexpected(token, p.describeToken(expectedType))
}

func (p *Parser) unexpected(token lexer.Token, expected string) error {
	if token.Type == lexer.TokenEOF {
		return p.fail(SyntaxUnexpectedEOF,
			fmt.Sprintf("unexpected end of template, expected %s", expected), token.Start, token.End)
	}
	return p.fail(SyntaxUnexpectedToken,
		fmt.Sprintf("expected %s, got %s", expected, p.describe(token)), token.Start, token.End)
}

func (p *Parser) strayClosing() error {
	enter := p.stream.Next()
	p.stream.Next()
	label := ""
	if token := p.Current(); token.Type == lexer.TokenString {
		label = token.Value
	}
	return p.fail(SyntaxExtraToken,
		fmt.Sprintf("unexpected closing tag %s", p.tag("/"+label)), enter.Start, enter.End)
}

// describeToken provides a human-readable description of a token type
func (p *Parser) describeToken(tokenType lexer.TokenType) string {
	switch tokenType {
	case lexer.TokenEOF:
		return "end of template"
	case lexer.TokenContent:
		return "text"
	case lexer.TokenEnter:
		return fmt.Sprintf("tag start (%q)", p.delims.Open)
	case lexer.TokenLeave:
		return fmt.Sprintf("tag end (%q)", p.delims.Close)
	case lexer.TokenIdent:
		return "name"
	case lexer.TokenString:
		return "string"
	case lexer.TokenPeriod:
		return "dot ('.')"
	case lexer.TokenEquals:
		return "equals ('=')"
	case lexer.TokenRightBrace:
		return "right curly brace ('}')"
	default:
		return tokenType.String()
	}
}

// describe provides a description of a concrete token
func (p *Parser) describe(token lexer.Token) string {
	switch token.Type {
	case lexer.TokenIdent:
		return fmt.Sprintf("name %q", token.Value)
	case lexer.TokenString:
		return fmt.Sprintf("string %q", token.Value)
	}
	return p.describeToken(token.Type)
}

func (p *Parser) describeOpen(open *openTag) string {
	return p.tag(open.sigil + open.label)
}

func (p *Parser) tag(body string) string {
	return p.delims.Open + body + p.delims.Close
}

func (p *Parser) line(offset int) int {
	line, _ := LineColumn(p.source, offset)
	return line
}
