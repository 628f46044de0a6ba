package orm

import (
	"fmt"
	"slices"
	"sort"
	"sync"

	sq "github.com/Masterminds/squirrel"

	"github.com/CaliLuke/go-relmap/ast"
	"github.com/CaliLuke/go-relmap/internal/logging"
	"github.com/CaliLuke/go-relmap/ruledsl"
)

var registry = struct {
	mu     sync.RWMutex
	byName map[string]*Schema
}{byName: make(map[string]*Schema)}

// Rule is a registered directed edge: Input to Output as Relationship.
type Rule struct {
	Input        string
	Output       string
	Relationship string
	Options      []string
}

// String renders the rule in rule-text form.
func (r Rule) String() string {
	return r.Input + " to " + r.Output + " as " + r.Relationship
}

// Touches reports whether name is either endpoint of the rule.
func (r Rule) Touches(name string) bool {
	return r.Input == name || r.Output == name
}

// Schema is a named, immutable rule graph bound to a storage executor. It
// owns the query cache for its compiled templates.
type Schema struct {
	name      string
	exec      Executor
	types     map[string]*TypeInfo
	rules     []Rule
	byRel     map[string]Rule
	endpoints map[string]bool
	entities  map[string]*TypeInfo
	irels     map[string]*TypeInfo
	cache     *Cache
	compiler  *ast.Compiler
	inline    bool
}

// SetupOption configures Setup.
type SetupOption func(*setupConfig)

type setupConfig struct {
	name        string
	named       bool
	catalog     *Catalog
	placeholder sq.PlaceholderFormat
	inline      bool
}

// WithName registers the schema under name instead of DefaultName.
func WithName(name string) SetupOption {
	return func(c *setupConfig) {
		c.name = name
		c.named = true
	}
}

// WithCatalog resolves rule names against c instead of DefaultCatalog.
func WithCatalog(c *Catalog) SetupOption {
	return func(cfg *setupConfig) {
		cfg.catalog = c
	}
}

// WithPlaceholders sets the positional placeholder format of executed
// queries, for example sq.Dollar for postgres.
func WithPlaceholders(ph sq.PlaceholderFormat) SetupOption {
	return func(c *setupConfig) {
		c.placeholder = ph
	}
}

// WithInlineLiterals formats filter values into the query text through the
// executor's EscapeLiteral instead of passing them as driver arguments.
func WithInlineLiterals() SetupOption {
	return func(c *setupConfig) {
		c.inline = true
	}
}

// Setup parses rule text, validates it against the declared types and
// publishes the schema. Setup is all-or-nothing: on error nothing is
// registered.
func Setup(ruleText string, exec Executor, opts ...SetupOption) (*Schema, error) {
	cfg := setupConfig{name: DefaultName, catalog: defaultCatalog}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.named {
		if err := ValidateSchemaName(cfg.name); err != nil {
			return nil, &SetupError{Schema: cfg.name, Message: "invalid schema name", Cause: err}
		}
	}
	if exec == nil {
		return nil, &SetupError{Schema: cfg.name, Message: "a storage executor is required"}
	}

	s, err := newSchema(cfg, ruledsl.ParseRules(ruleText), exec)
	if err != nil {
		return nil, err
	}

	registry.mu.Lock()
	defer registry.mu.Unlock()
	if _, ok := registry.byName[s.name]; ok {
		return nil, &SetupError{Schema: s.name, Message: "a schema is already registered under this name"}
	}
	registry.byName[s.name] = s

	logging.Debug().
		Str("schema", s.name).
		Int("rules", len(s.rules)).
		Int("entities", len(s.entities)).
		Int("relationships", len(s.irels)).
		Msg("schema registered")
	return s, nil
}

func newSchema(cfg setupConfig, parsed []ruledsl.Rule, exec Executor) (*Schema, error) {
	quote := ast.QuoteANSI
	if q, ok := exec.(IdentQuoter); ok {
		quote = q.QuoteIdent
	}
	s := &Schema{
		name:      cfg.name,
		exec:      exec,
		types:     cfg.catalog.snapshot(),
		byRel:     make(map[string]Rule),
		endpoints: make(map[string]bool),
		entities:  make(map[string]*TypeInfo),
		irels:     make(map[string]*TypeInfo),
		cache:     NewCache(),
		compiler:  &ast.Compiler{Placeholder: cfg.placeholder, Quote: quote},
		inline:    cfg.inline,
	}

	fail := func(line int, format string, args ...any) error {
		return &SetupError{Schema: cfg.name, Message: fmt.Sprintf("line %d: ", line) + fmt.Sprintf(format, args...)}
	}

	for _, pr := range parsed {
		for _, n := range []string{pr.Input, pr.Output, pr.Relationship} {
			if err := ValidateClassName(n); err != nil {
				return nil, &SetupError{Schema: cfg.name, Message: fmt.Sprintf("line %d", pr.Line), Cause: err}
			}
		}
		if pr.Relationship == InheritsRelationship {
			return nil, fail(pr.Line, "%s is reserved", InheritsRelationship)
		}
		if _, dup := s.byRel[pr.Relationship]; dup {
			return nil, fail(pr.Line, "relationship %s is already defined", pr.Relationship)
		}
		for _, n := range []string{pr.Input, pr.Output} {
			info, ok := s.types[n]
			if !ok {
				continue
			}
			if info.Kind() != KindEntity {
				return nil, fail(pr.Line, "%s is a relationship type and cannot be a rule endpoint", n)
			}
			if !info.Concrete() {
				return nil, fail(pr.Line, "%s is abstract and cannot be a rule endpoint", n)
			}
			s.entities[n] = info
		}
		if info, ok := s.types[pr.Relationship]; ok {
			if info.Kind() != KindRelationship {
				return nil, fail(pr.Line, "%s is an entity type and cannot name a relationship", pr.Relationship)
			}
			if !info.Concrete() {
				return nil, fail(pr.Line, "%s is abstract and cannot name a relationship", pr.Relationship)
			}
			s.irels[pr.Relationship] = info
		}

		r := Rule{
			Input:        pr.Input,
			Output:       pr.Output,
			Relationship: pr.Relationship,
			Options:      slices.Clone(pr.Options),
		}
		s.rules = append(s.rules, r)
		s.byRel[r.Relationship] = r
		s.endpoints[r.Input] = true
		s.endpoints[r.Output] = true
	}

	for rel := range s.byRel {
		if s.endpoints[rel] {
			return nil, &SetupError{Schema: cfg.name, Message: fmt.Sprintf("%s is used both as an entity and as a relationship", rel)}
		}
	}
	return s, nil
}

// Lookup returns the schema registered under name. The empty string means
// DefaultName.
func Lookup(name string) (*Schema, error) {
	if name == "" {
		name = DefaultName
	}
	registry.mu.RLock()
	defer registry.mu.RUnlock()
	s, ok := registry.byName[name]
	if !ok {
		return nil, inputErrorf("no schema registered under %q", name)
	}
	return s, nil
}

// Names returns the registered schema names, sorted.
func Names() []string {
	registry.mu.RLock()
	defer registry.mu.RUnlock()
	names := make([]string, 0, len(registry.byName))
	for n := range registry.byName {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Reset unregisters every schema. This is primarily used for testing.
func Reset() {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	registry.byName = make(map[string]*Schema)
}

// Name returns the name the schema is registered under.
func (s *Schema) Name() string { return s.name }

// Executor returns the storage executor.
func (s *Schema) Executor() Executor { return s.exec }

// Cache returns the schema's query cache.
func (s *Schema) Cache() *Cache { return s.cache }

// Rules returns the registered rules in declaration order.
func (s *Schema) Rules() []Rule {
	out := make([]Rule, len(s.rules))
	for i, r := range s.rules {
		r.Options = slices.Clone(r.Options)
		out[i] = r
	}
	return out
}

// IsRegisteredEntity reports whether name is a declared concrete entity used
// by a rule.
func (s *Schema) IsRegisteredEntity(name string) bool {
	_, ok := s.entities[name]
	return ok
}

// IsRegisteredInstantiableRelationship reports whether name is a rule
// relationship with a declared relationship type.
func (s *Schema) IsRegisteredInstantiableRelationship(name string) bool {
	_, ok := s.irels[name]
	return ok
}

// IsRegisteredRelationship reports whether any rule is named name.
func (s *Schema) IsRegisteredRelationship(name string) bool {
	_, ok := s.byRel[name]
	return ok
}

// Type returns the declared type of a registered entity or instantiable
// relationship.
func (s *Schema) Type(name string) (*TypeInfo, bool) {
	if info, ok := s.entities[name]; ok {
		return info, true
	}
	info, ok := s.irels[name]
	return info, ok
}

// Keys returns the key properties of a registered entity.
func (s *Schema) Keys(entity string) ([]string, error) {
	info, ok := s.entities[entity]
	if !ok {
		return nil, inputErrorf("%s is not a registered entity in schema %q", entity, s.name)
	}
	return info.Keys(), nil
}

// Properties returns the properties of a registered entity or instantiable
// relationship. Without flatten only the properties stored at the type's
// own level are returned: its own and those of abstract ancestors merged
// into its table. With flatten the full ancestor chain is included.
func (s *Schema) Properties(name string, flatten bool) ([]string, error) {
	info, ok := s.Type(name)
	if !ok {
		return nil, inputErrorf("%s is not registered in schema %q", name, s.name)
	}
	if flatten {
		return info.AllProperties(), nil
	}
	return info.TableProperties(), nil
}

// ResolveRelationshipBetween returns the single rule connecting a and b in
// either direction.
func (s *Schema) ResolveRelationshipBetween(a, b string) (Rule, error) {
	var matches []Rule
	for _, r := range s.rules {
		if (r.Input == a && r.Output == b) || (r.Input == b && r.Output == a) {
			matches = append(matches, r)
		}
	}
	detail := a + " and " + b
	switch len(matches) {
	case 0:
		return Rule{}, &RouteResolutionError{Cause: ErrNoRoute, Detail: detail}
	case 1:
		return matches[0], nil
	default:
		return Rule{}, &RouteResolutionError{Cause: ErrAmbiguousRoute, Detail: detail, Matches: matches}
	}
}

func (s *Schema) keysOf(entity string) []string {
	if info, ok := s.entities[entity]; ok {
		return info.keys
	}
	return []string{IDProperty}
}
