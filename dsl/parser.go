package dsl

import (
	"fmt"
	"io"
	"strconv"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

var (
	dslLexer = lexer.MustSimple([]lexer.SimpleRule{
		{Name: "Whitespace", Pattern: `[ \t\r]+`},
		{Name: "Newline", Pattern: `\n+`},
		{Name: "BlockComment", Pattern: `/\*[^*]*\*+(?:[^/*][^*]*\*+)*/`},
		{Name: "LineComment", Pattern: `//[^\n]*`},
		{Name: "Color", Pattern: `#(?:[0-9A-Fa-f]{3}|[0-9A-Fa-f]{6}|[0-9A-Fa-f]{8})`},
		{Name: "HashComment", Pattern: `#[^\n]*`},
		{Name: "Number", Pattern: `(?:\d+\.\d+|\d+)(?:pt|mm|cm|in|px|%)?`},
		{Name: "String", Pattern: `"(?:\\.|[^"])*"`},
		{Name: "RawString", Pattern: "`[^`]*`"},
		{Name: "Ident", Pattern: `[A-Za-z_][A-Za-z0-9_-]*`},
		{Name: "Symbol", Pattern: `[][(),.=+\-*/%<>!?;:]`},
		{Name: "LBrace", Pattern: `{`},
		{Name: "RBrace", Pattern: `}`},
	})

	tokenNames = func() map[lexer.TokenType]string {
		out := map[lexer.TokenType]string{}
		for name, tt := range dslLexer.Symbols() {
			out[tt] = name
		}
		return out
	}()
	newlineTokenType = tokenType("Newline")
	lbraceTokenType  = tokenType("LBrace")
	rbraceTokenType  = tokenType("RBrace")
	symbolTokenType  = tokenType("Symbol")
	stringTokenType  = tokenType("String")
	rawTokenType     = tokenType("RawString")

	documentParser = participle.MustBuild[Document](
		participle.Lexer(dslLexer),
		participle.Elide("Whitespace", "LineComment", "BlockComment", "HashComment"),
	)
)

// Document is the root AST node for a report DSL file.
type Document struct {
	Pos      lexer.Position `parser:"" json:"-"`
	Name     string         `parser:"Newline* 'report' @Ident"`
	Version  string         `parser:"@(Ident | Number)"`
	Sections []*Section     `parser:"'{' Newline* ( @@ Newline* )* '}' Newline*"`
}

// Section represents a top-level section (meta/resources/schema/page/script).
type Section struct {
	Meta      *MetaSection      `parser:"  @@"`
	Resources *ResourcesSection `parser:"| @@"`
	Schema    *SchemaSection    `parser:"| @@"`
	Page      *PageSection      `parser:"| @@"`
	Script    *ScriptSection    `parser:"| @@"`
}

// Kind returns the human-readable section type.
func (s *Section) Kind() string {
	switch {
	case s == nil:
		return "unknown"
	case s.Meta != nil:
		return "meta"
	case s.Resources != nil:
		return "resources"
	case s.Schema != nil:
		return "schema"
	case s.Page != nil:
		return "page"
	case s.Script != nil:
		return "script"
	default:
		return "unknown"
	}
}

// MetaSection captures report level assignments (title, author, units).
type MetaSection struct {
	Block *Block `parser:"'meta' @@"`
}

// ResourcesSection groups resource declarations.
type ResourcesSection struct {
	Block *Block `parser:"'resources' @@"`
}

// SchemaSection describes the shape of the root data.
type SchemaSection struct {
	Block *Block `parser:"'schema' @@"`
}

// ScriptSection holds the layout script source.
type ScriptSection struct {
	Pos    lexer.Position `parser:"" json:"-"`
	Source StringLiteral  `parser:"'script' '{' Newline* @(String | RawString) Newline* '}'"`
}

// PageSection represents a concrete page description.
type PageSection struct {
	Pos   lexer.Position `parser:"" json:"-"`
	Spec  PageSpec       `parser:"'page' @@"`
	Block *Block         `parser:"@@"`
}

// PageSpec stores header tokens (eg: size, orientation).
type PageSpec struct {
	Size   string    `parser:"@Ident"`
	Params []*Lexeme `parser:"@@*"`
}

// Block is a delimited list of statements.
type Block struct {
	Statements []*Statement `parser:"'{' Newline* ( @@ ( ';' | Newline )* )* '}'"`
}

// Statement inside a block (assignment/command/text literal).
type Statement struct {
	Assignment *Assignment  `parser:"  @@"`
	Command    *Command     `parser:"| @@"`
	Text       *TextLiteral `parser:"| @@"`
}

// Pos returns the position of the statement for error reporting.
func (s *Statement) Pos() lexer.Position {
	switch {
	case s.Assignment != nil:
		return s.Assignment.Pos
	case s.Command != nil:
		return s.Command.Pos
	}
	return lexer.Position{}
}

// Assignment uses colon syntax (key: value).
type Assignment struct {
	Pos   lexer.Position `parser:"" json:"-"`
	Key   string         `parser:"@Ident"`
	Value *Value         `parser:"':' Newline* @@"`
}

// Command is an element, section or resource declaration: a name, positional
// arguments and an optional body.
type Command struct {
	Pos   lexer.Position `parser:"" json:"-"`
	Name  string         `parser:"@Ident"`
	Args  []*Lexeme      `parser:"@@*"`
	Block *Block         `parser:"( Newline* @@ )?"`
}

// TextLiteral is a bare string inside a block, used as element content.
type TextLiteral struct {
	Value StringLiteral `parser:"@(String | RawString)"`
}

// Value represents generic property values.
type Value struct {
	String *StringLiteral `parser:"  @(String | RawString)"`
	Number *string        `parser:"| @Number"`
	Color  *string        `parser:"| @Color"`
	Array  *ArrayValue    `parser:"| @@"`
	Object *InlineObject  `parser:"| @@"`
	Expr   *Expression    `parser:"| @@"`
}

// ArrayValue captures `[ ... ]` lists such as `at: [10mm, 5mm, 80mm, 6mm]`.
type ArrayValue struct {
	Values []*Value `parser:"'[' Newline* ( @@ ( (',' | ';' | Newline+) Newline* @@ )* )? Newline* ']'"`
}

// InlineObject captures `{ key: value }` maps (schema objects, custom values).
type InlineObject struct {
	Entries []*Assignment `parser:"'{' Newline* ( @@ Newline* ( (';' | Newline+) Newline* @@ Newline* )* )? Newline* '}'"`
}

// Expression keeps the raw tokens of anything that is not a plain literal,
// e.g. `-5mm` or `solid`. The compiler interprets them per property.
type Expression struct {
	Parts []*Lexeme
}

// nesting 记录表达式中尚未闭合的括号。
type nesting struct{ paren, bracket int }

func (n nesting) top() bool { return n.paren == 0 && n.bracket == 0 }

func (n *nesting) track(raw string) {
	switch raw {
	case "(":
		n.paren++
	case ")":
		n.paren = max(n.paren-1, 0)
	case "[":
		n.bracket++
	case "]":
		n.bracket = max(n.bracket-1, 0)
	}
}

// ends 报告 tok 是否结束当前表达式：换行、花括号、分号与逗号只在最外层结束，
// 未配对的 ']' 属于外层数组。
func (n nesting) ends(tok *lexer.Token) bool {
	if tok == nil || tok.EOF() {
		return true
	}
	switch tok.Type {
	case newlineTokenType, lbraceTokenType, rbraceTokenType:
		return n.top()
	case symbolTokenType:
		switch tok.Value {
		case ";", ",":
			return n.top()
		case "]":
			return n.bracket == 0
		}
	}
	return false
}

// Parse implements participle.Parseable for Expression.
func (e *Expression) Parse(lex *lexer.PeekingLexer) error {
	var depth nesting
	var parts []*Lexeme
	for !depth.ends(lex.Peek()) {
		lx, err := nextLexeme(lex)
		if err != nil {
			return err
		}
		depth.track(lx.Raw)
		parts = append(parts, lx)
	}
	if len(parts) == 0 {
		return participle.NextMatch
	}
	e.Parts = parts
	return nil
}

// Lexeme is a single token kept verbatim, used for command arguments and
// expression parts. Value holds the unquoted text for strings.
type Lexeme struct {
	Type  string         `json:"type"`
	Value string         `json:"value"`
	Raw   string         `json:"raw"`
	Pos   lexer.Position `json:"-"`
}

// Parse implements participle.Parseable: an argument runs until a newline,
// a brace or ';'.
func (l *Lexeme) Parse(lex *lexer.PeekingLexer) error {
	tok := lex.Peek()
	if tok == nil || tok.EOF() {
		return participle.NextMatch
	}
	switch {
	case tok.Type == newlineTokenType, tok.Type == lbraceTokenType, tok.Type == rbraceTokenType:
		return participle.NextMatch
	case tok.Type == symbolTokenType && tok.Value == ";":
		return participle.NextMatch
	}
	lx, err := nextLexeme(lex)
	if err != nil {
		return err
	}
	*l = *lx
	return nil
}

// StringLiteral is a quoted or backtick string, unquoted on capture.
type StringLiteral string

// Capture implements participle.Capture.
func (s *StringLiteral) Capture(values []string) error {
	if len(values) == 0 {
		return fmt.Errorf("dsl: empty string capture")
	}
	v, err := strconv.Unquote(values[0])
	if err != nil {
		return err
	}
	*s = StringLiteral(v)
	return nil
}

// Parse parses DSL source. When r has a Name method (an *os.File) positions
// in errors carry that file name.
func Parse(r io.Reader) (*Document, error) {
	name := ""
	if n, ok := r.(interface{ Name() string }); ok {
		name = n.Name()
	}
	return documentParser.Parse(name, r)
}

// ParseString parses DSL source held in memory.
func ParseString(input string) (*Document, error) {
	return documentParser.ParseString("", input)
}

func nextLexeme(lex *lexer.PeekingLexer) (*Lexeme, error) {
	tok := lex.Next()
	if tok.EOF() {
		return nil, participle.NextMatch
	}
	lx := &Lexeme{Type: tokenNames[tok.Type], Value: tok.Value, Raw: tok.Value, Pos: tok.Pos}
	if lx.Type == "" {
		lx.Type = fmt.Sprintf("#%d", tok.Type)
	}
	if tok.Type == stringTokenType || tok.Type == rawTokenType {
		v, err := strconv.Unquote(tok.Value)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", tok.Pos, err)
		}
		lx.Value = v
	}
	return lx, nil
}

func tokenType(name string) lexer.TokenType {
	tt, ok := dslLexer.Symbols()[name]
	if !ok {
		panic("dsl: undefined token " + name)
	}
	return tt
}
