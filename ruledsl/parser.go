// Package ruledsl parses the line-oriented relationship rule language and the
// human-readable chain notation used to pin a route.
//
// A rule line reads
//
//	Input to Output as Relationship [option ...]
//
// and a chain reads
//
//	Person -> (EmployedBy) -> Employer -> (Owns) -> Office
package ruledsl

import (
	"fmt"
	"os"
	"regexp"
	"slices"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// --- Participle grammar structs ---

// RuleLine parses: Input to Output as Relationship [option ...]
type RuleLine struct {
	Input        string   `parser:"@Word"`
	Output       string   `parser:"'to' @Word"`
	Relationship string   `parser:"'as' @Word"`
	Options      []string `parser:"@Word*"`
}

// ChainExpr parses: Entity ( -> (Relationship[n]) -> Entity )*
type ChainExpr struct {
	Head  string      `parser:"@Ident"`
	Steps []ChainStep `parser:"@@*"`
}

// ChainStep parses one hop: -> (Relationship[n]) -> Entity
type ChainStep struct {
	Relationship string `parser:"Arrow '(' @Ident"`
	Occurrence   int    `parser:"( '[' @Int ']' )? ')' Arrow"`
	Entity       string `parser:"@Ident"`
}

var ruleLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Whitespace", Pattern: `[ \t\r]+`},
	{Name: "Word", Pattern: `[^\s]+`},
})

var chainLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Whitespace", Pattern: `\s+`},
	{Name: "Arrow", Pattern: `->`},
	{Name: "Int", Pattern: `[0-9]+`},
	{Name: "Ident", Pattern: `[A-Za-z_][A-Za-z0-9_]*`},
	{Name: "Punct", Pattern: `[()\[\]]`},
})

var (
	ruleParser = participle.MustBuild[RuleLine](
		participle.Lexer(ruleLexer),
		participle.Elide("Whitespace"),
	)
	chainParser = participle.MustBuild[ChainExpr](
		participle.Lexer(chainLexer),
		participle.Elide("Whitespace"),
	)
	wordRe = regexp.MustCompile(`^\w+$`)
)

// Rule is one parsed rule line.
type Rule struct {
	Input        string
	Output       string
	Relationship string
	Options      []string
	// Line is the 1-based line number the rule was read from.
	Line int
}

// String renders the rule in its source form without options.
func (r Rule) String() string {
	return r.Input + " to " + r.Output + " as " + r.Relationship
}

// ParseRules parses rule text one line at a time. Lines that do not have the
// rule shape (blank lines, comments, prose) are skipped.
func ParseRules(text string) []Rule {
	var rules []Rule
	for i, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		parsed, err := ruleParser.ParseString("rules", line)
		if err != nil {
			continue
		}
		if !wordRe.MatchString(parsed.Input) || !wordRe.MatchString(parsed.Output) || !wordRe.MatchString(parsed.Relationship) {
			continue
		}
		rules = append(rules, Rule{
			Input:        parsed.Input,
			Output:       parsed.Output,
			Relationship: parsed.Relationship,
			Options:      parsed.Options,
			Line:         i + 1,
		})
	}
	return rules
}

// ParseRulesFile reads rule text from path and parses it.
func ParseRulesFile(path string) ([]Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules: %w", err)
	}
	return ParseRules(string(data)), nil
}

// Chain is a parsed chain: Entities has exactly one more element than
// Relationships, and Relationships[i] joins Entities[i] and Entities[i+1].
type Chain struct {
	Entities      []string
	Relationships []string
}

// Triples returns the (entity, relationship, entity) hops of the chain.
func (c Chain) Triples() [][3]string {
	out := make([][3]string, 0, len(c.Relationships))
	for i, rel := range c.Relationships {
		out = append(out, [3]string{c.Entities[i], rel, c.Entities[i+1]})
	}
	return out
}

// Reverse returns the chain read from its last entity back to its first.
func (c Chain) Reverse() Chain {
	out := Chain{
		Entities:      slices.Clone(c.Entities),
		Relationships: slices.Clone(c.Relationships),
	}
	slices.Reverse(out.Entities)
	slices.Reverse(out.Relationships)
	return out
}

// Contains reports whether name appears as an entity or relationship token.
func (c Chain) Contains(name string) bool {
	return c.ContainsEntity(name) || c.ContainsRelationship(name)
}

// ContainsEntity reports whether name appears as an entity token.
func (c Chain) ContainsEntity(name string) bool {
	for _, e := range c.Entities {
		if e == name {
			return true
		}
	}
	return false
}

// ContainsRelationship reports whether name appears as a relationship token.
func (c Chain) ContainsRelationship(name string) bool {
	for _, r := range c.Relationships {
		if r == name {
			return true
		}
	}
	return false
}

// ParseChain parses chain notation. An occurrence marker such as
// "(Partner[1])" is accepted and discarded.
func ParseChain(text string) (Chain, error) {
	expr, err := chainParser.ParseString("chain", text)
	if err != nil {
		return Chain{}, fmt.Errorf("parse chain %q: %w", text, err)
	}
	c := Chain{Entities: []string{expr.Head}}
	for _, step := range expr.Steps {
		c.Relationships = append(c.Relationships, step.Relationship)
		c.Entities = append(c.Entities, step.Entity)
	}
	return c, nil
}
