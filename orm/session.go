package orm

import (
	"context"
	"fmt"

	"github.com/CaliLuke/go-relmap/ast"
	"github.com/CaliLuke/go-relmap/internal/logging"
)

// Executor is the storage layer a schema runs its queries through. Rows are
// returned fully materialized, so a result can be read any number of times.
type Executor interface {
	Query(ctx context.Context, query string, args ...any) ([]map[string]any, error)
	EscapeLiteral(value any, hint ast.LiteralType) (string, error)
}

// IdentQuoter is implemented by executors whose dialect quotes identifiers
// differently from ANSI double quotes.
type IdentQuoter interface {
	QuoteIdent(ident string) string
}

// Render produces executable SQL for t with values bound. Values are passed
// as driver arguments, or formatted into the text through the executor when
// the schema was set up WithInlineLiterals.
func (s *Schema) Render(t *Template, values map[string]any) (string, []any, error) {
	if s.inline {
		query, err := s.compiler.Inline(t.Statement, values, s.exec.EscapeLiteral)
		return query, nil, err
	}
	return s.compiler.Bind(t.Statement, values)
}

// Query resolves, compiles (or fetches from the cache), executes and
// hydrates a request.
func (s *Schema) Query(ctx context.Context, dests []Destination, chain string) (*ResultSet, error) {
	t, values, err := s.Prepare(dests, chain)
	if err != nil {
		return nil, err
	}
	query, args, err := s.Render(t, values)
	if err != nil {
		return nil, fmt.Errorf("render %s: %w", t.Chain, err)
	}
	rows, err := s.exec.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", t.Chain, err)
	}
	logging.Debug().
		Str("schema", s.name).
		Str("hash", t.Hash).
		Int("rows", len(rows)).
		Msg("query executed")
	return s.Hydrate(rows, t.Chain)
}

// LoadAll loads every stored instance of entity.
func (s *Schema) LoadAll(ctx context.Context, entity string) (*ResultSet, error) {
	if !s.IsRegisteredEntity(entity) {
		return nil, inputErrorf("%s is not a registered entity in schema %q", entity, s.name)
	}
	return s.Query(ctx, []Destination{{Entity: entity, Output: true}}, "")
}

// ResolveRelated loads the instances of entities related to src. The source
// is the anchor, matched on its key values; each entity is requested as
// output.
func (s *Schema) ResolveRelated(ctx context.Context, src *Instance, entities []string, chain string) (*ResultSet, error) {
	if src == nil {
		return nil, inputErrorf("a source instance is required")
	}
	if len(entities) == 0 {
		return nil, inputErrorf("at least one related entity is required")
	}
	keys, err := src.KeyValues()
	if err != nil {
		return nil, err
	}
	dests := []Destination{{Entity: src.Type().Name(), Input: keys}}
	for _, e := range entities {
		dests = append(dests, Destination{Entity: e, Output: true})
	}
	return s.Query(ctx, dests, chain)
}
