package lexer

import (
	"errors"
	"testing"
)

type wantToken struct {
	typ    TokenType
	value  string
	layout Layout
}

func collect(t *testing.T, source string) []Token {
	t.Helper()
	stream, err := Tokenize(source, DefaultDelimiters())
	if err != nil {
		t.Fatalf("Tokenize(%q) failed: %v", source, err)
	}

	var tokens []Token
	for {
		token := stream.Next()
		if token.Type == TokenEOF {
			break
		}
		tokens = append(tokens, token)
	}
	return tokens
}

func TestBasicLexing(t *testing.T) {
	tests := []struct {
		name     string
		template string
		want     []wantToken
	}{
		{
			name:     "text and variable",
			template: "Hello {{name}}!",
			want: []wantToken{
				{TokenContent, "Hello ", LayoutPreserve},
				{TokenEnter, "{{", LayoutPreserve},
				{TokenIdent, "name", LayoutPreserve},
				{TokenLeave, "}}", LayoutPreserve},
				{TokenContent, "!", LayoutPreserve},
			},
		},
		{
			name:     "dotted section",
			template: "{{#a.b}}x{{/a.b}}",
			want: []wantToken{
				{TokenEnter, "{{", LayoutStandalone},
				{TokenPound, "#", LayoutPreserve},
				{TokenIdent, "a", LayoutPreserve},
				{TokenPeriod, ".", LayoutPreserve},
				{TokenIdent, "b", LayoutPreserve},
				{TokenLeave, "}}", LayoutPreserve},
				{TokenContent, "x", LayoutPreserve},
				{TokenEnter, "{{", LayoutPreserve},
				{TokenSlash, "/", LayoutPreserve},
				{TokenString, "a.b", LayoutPreserve},
				{TokenLeave, "}}", LayoutPreserve},
			},
		},
		{
			name:     "triple mustache",
			template: "{{{ html }}}",
			want: []wantToken{
				{TokenEnter, "{{", LayoutStandalone},
				{TokenLeftBrace, "{", LayoutPreserve},
				{TokenIdent, "html", LayoutPreserve},
				{TokenRightBrace, "}", LayoutPreserve},
				{TokenLeave, "}}", LayoutPreserve},
			},
		},
		{
			name:     "implicit iterator",
			template: "{{ . }}",
			want: []wantToken{
				{TokenEnter, "{{", LayoutStandalone},
				{TokenPeriod, ".", LayoutPreserve},
				{TokenLeave, "}}", LayoutPreserve},
			},
		},
		{
			name:     "partial path is literal",
			template: "{{> path/to.file }}",
			want: []wantToken{
				{TokenEnter, "{{", LayoutStandalone},
				{TokenGreater, ">", LayoutPreserve},
				{TokenString, "path/to.file", LayoutPreserve},
				{TokenLeave, "}}", LayoutStandalone},
			},
		},
		{
			name:     "dynamic partial",
			template: "{{>*dyn}}",
			want: []wantToken{
				{TokenEnter, "{{", LayoutStandalone},
				{TokenGreater, ">", LayoutPreserve},
				{TokenAsterisk, "*", LayoutPreserve},
				{TokenIdent, "dyn", LayoutPreserve},
				{TokenLeave, "}}", LayoutStandalone},
			},
		},
		{
			name:     "comment",
			template: "a{{! anything. goes {here} }}b",
			want: []wantToken{
				{TokenContent, "a", LayoutPreserve},
				{TokenEnter, "{{", LayoutPreserve},
				{TokenBang, "!", LayoutPreserve},
				{TokenString, "anything. goes {here}", LayoutPreserve},
				{TokenLeave, "}}", LayoutPreserve},
				{TokenContent, "b", LayoutPreserve},
			},
		},
		{
			name:     "set delimiters",
			template: "{{=<% %>=}}<%a%>",
			want: []wantToken{
				{TokenEnter, "{{", LayoutStandalone},
				{TokenEquals, "=", LayoutPreserve},
				{TokenString, "<% %>", LayoutPreserve},
				{TokenEquals, "=", LayoutPreserve},
				{TokenLeave, "}}", LayoutPreserve},
				{TokenEnter, "<%", LayoutPreserve},
				{TokenIdent, "a", LayoutPreserve},
				{TokenLeave, "%>", LayoutPreserve},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tokens := collect(t, tt.template)
			if len(tokens) != len(tt.want) {
				t.Fatalf("expected %d tokens, got %d: %v", len(tt.want), len(tokens), tokens)
			}
			for i, want := range tt.want {
				got := tokens[i]
				if got.Type != want.typ || got.Value != want.value || got.Layout != want.layout {
					t.Fatalf("token %d: expected %s(%q, %s), got %s(%q, %s)",
						i, want.typ, want.value, want.layout, got.Type, got.Value, got.Layout)
				}
			}
		})
	}
}

func TestStandaloneLayout(t *testing.T) {
	tokens := collect(t, "  {{#a}}\nx\n  {{/a}}\n")

	var leaves []Token
	var content []string
	for _, token := range tokens {
		switch token.Type {
		case TokenLeave:
			leaves = append(leaves, token)
		case TokenContent:
			content = append(content, token.Value)
		}
	}

	if len(leaves) != 2 || !leaves[0].Standalone() || !leaves[1].Standalone() {
		t.Fatalf("expected two standalone tags, got %v", leaves)
	}
	// The newline after each standalone tag is consumed by the lexer; the
	// indentation before it is left for the parser to strip.
	if len(content) != 2 || content[0] != "  " || content[1] != "x\n  " {
		t.Fatalf("unexpected content tokens: %q", content)
	}
}

func TestStandaloneRevisedAtLeave(t *testing.T) {
	tests := []struct {
		name       string
		template   string
		standalone bool
	}{
		{"text after tag", "{{#a}} x\n", false},
		{"text before tag", "x {{#a}}\n", false},
		{"interpolation alone on line", "{{a}}\n", false},
		{"crlf newline", "{{/a}}\r\nrest", true},
		{"end of input", "  {{! comment }}", true},
		{"trailing blanks", "{{^a}}  \t\n", true},
		{"parent and its closing tag", "{{<p}}{{/p}}\n", true},
		{"parent and a block", "{{<p}}{{$b}}\n", true},
		{"parent followed by text", "{{<p}}{{$b}}x\n", false},
		{"sections do not share lines", "{{#a}}{{/a}}\n", false},
		{"block followed by a partial", "{{$b}}{{>p}}\n", false},
		{"dynamic parent", "{{<*p}}{{/p}}\n", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tokens := collect(t, tt.template)
			for _, token := range tokens {
				if token.Type == TokenLeave {
					if token.Standalone() != tt.standalone {
						t.Fatalf("expected standalone=%v for %q", tt.standalone, tt.template)
					}
					return
				}
			}
			t.Fatalf("no leave token in %q", tt.template)
		})
	}
}

func TestStandaloneParentAndBlockLine(t *testing.T) {
	tokens := collect(t, "  {{<p}} {{$b}}{{/b}}{{/p}}\nx")

	var content []string
	leaves := 0
	for _, token := range tokens {
		switch token.Type {
		case TokenLeave:
			leaves++
			if !token.Standalone() {
				t.Fatalf("expected tag %d to be standalone", leaves)
			}
		case TokenContent:
			content = append(content, token.Value)
		}
	}
	if leaves != 4 {
		t.Fatalf("expected 4 tags, got %d", leaves)
	}
	if len(content) != 2 || content[0] != "  " || content[1] != "x" {
		t.Fatalf("unexpected content tokens: %q", content)
	}
}

func TestLexerErrors(t *testing.T) {
	tests := []struct {
		name     string
		template string
		start    int
	}{
		{"unclosed variable", "abc {{name", 4},
		{"unclosed comment", "{{! never ends", 0},
		{"bad delimiters", "{{=<%=}}", 0},
		{"stray brace", "{{a}b}}", 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Tokenize(tt.template, DefaultDelimiters())
			if err == nil {
				t.Fatalf("expected error for %q", tt.template)
			}
			var lexErr *Error
			if !errors.As(err, &lexErr) {
				t.Fatalf("expected *Error, got %T", err)
			}
			if tt.name != "bad delimiters" && lexErr.Start != tt.start {
				t.Fatalf("expected error at %d, got %d", tt.start, lexErr.Start)
			}
		})
	}
}

func TestTokenSpans(t *testing.T) {
	tokens := collect(t, "ab{{ name }}")
	ident := tokens[2]
	if ident.Type != TokenIdent || ident.Start != 5 || ident.End != 9 {
		t.Fatalf("unexpected identifier span: %v", ident)
	}
}
