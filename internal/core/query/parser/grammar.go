package parser

import (
	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// sortLexer tokenizes sort=a,-b.nullslast lists. Words may contain any
// character except the separators; identifier validation happens later.
var sortLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Minus", Pattern: `-`},
	{Name: "Dot", Pattern: `\.`},
	{Name: "Comma", Pattern: `,`},
	{Name: "Word", Pattern: `[^,.\-][^,.]*`},
})

type sortList struct {
	Keys []*sortKey `parser:"@@ ( \",\" @@ )*"`
}

type sortKey struct {
	Desc      bool     `parser:"@\"-\"?"`
	Column    string   `parser:"@Word"`
	Modifiers []string `parser:"( \".\" @Word )*"`
}

var sortParser = participle.MustBuild[sortList](
	participle.Lexer(sortLexer),
)

// inLexer tokenizes in.(a,b,"c,d") operands. Whitespace around items is
// dropped; a bare item keeps its inner spaces.
var inLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "String", Pattern: `"(?:\\.|[^"\\])*"`},
	{Name: "LParen", Pattern: `\(`},
	{Name: "RParen", Pattern: `\)`},
	{Name: "Comma", Pattern: `,`},
	{Name: "Whitespace", Pattern: `\s+`},
	{Name: "Bare", Pattern: `[^,()"\s](?:[^,()"]*[^,()"\s])?`},
})

type inList struct {
	Items []*inItem `parser:"\"(\" ( @@ ( \",\" @@ )* )? \")\""`
}

type inItem struct {
	Quoted *string `parser:"  @String"`
	Bare   *string `parser:"| @Bare"`
}

func (i *inItem) value() string {
	if i.Quoted != nil {
		return *i.Quoted
	}
	if i.Bare != nil {
		return *i.Bare
	}
	return ""
}

var inParser = participle.MustBuild[inList](
	participle.Lexer(inLexer),
	participle.Unquote("String"),
	participle.Elide("Whitespace"),
)
