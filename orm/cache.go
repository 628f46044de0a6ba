package orm

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/CaliLuke/go-relmap/ast"
	"github.com/CaliLuke/go-relmap/internal/logging"
)

// Cache maps shape hashes to compiled templates. It only grows. Concurrent
// misses on the same shape may compile twice; the first stored template
// wins and both are equivalent.
type Cache struct {
	entries sync.Map
	size    atomic.Int64
	hits    atomic.Int64
	misses  atomic.Int64
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{}
}

// Get returns the template stored under hash.
func (c *Cache) Get(hash string) (*Template, bool) {
	v, ok := c.entries.Load(hash)
	if !ok {
		return nil, false
	}
	return v.(*Template), true
}

// Put stores t under t.Hash unless a template is already there, and returns
// the stored one.
func (c *Cache) Put(t *Template) *Template {
	actual, loaded := c.entries.LoadOrStore(t.Hash, t)
	if !loaded {
		c.size.Add(1)
	}
	return actual.(*Template)
}

// Len returns the number of cached templates.
func (c *Cache) Len() int {
	return int(c.size.Load())
}

// Stats returns the hit and miss counts of Prepare.
func (c *Cache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

type destShape struct {
	Entity       string   `msgpack:"e"`
	Alias        string   `msgpack:"a"`
	Output       bool     `msgpack:"o"`
	Inputs       []string `msgpack:"i"`
	Placeholders []string `msgpack:"p"`
}

type requestShape struct {
	Chain string      `msgpack:"c"`
	Dests []destShape `msgpack:"d"`
}

// canonicalize returns dests with the anchor first and the rest sorted by
// entity, alias, input property names and output flag.
func canonicalize(dests []Destination) []Destination {
	out := append([]Destination(nil), dests...)
	if len(out) < 2 {
		return out
	}
	tail := out[1:]
	sort.SliceStable(tail, func(i, j int) bool {
		a, b := tail[i], tail[j]
		if a.Entity != b.Entity {
			return a.Entity < b.Entity
		}
		if a.Alias != b.Alias {
			return a.Alias < b.Alias
		}
		ai, bi := strings.Join(sortedKeys(a.Input), ","), strings.Join(sortedKeys(b.Input), ",")
		if ai != bi {
			return ai < bi
		}
		return !a.Output && b.Output
	})
	return out
}

// ShapeHash fingerprints a request by its structure: the chain and every
// destination's entity, alias, output flag and input property names. Input
// values never take part, so requests differing only in filter values share
// a hash.
func ShapeHash(dests []Destination, chain string) (string, error) {
	return shapeHash(canonicalize(dests), chain)
}

func shapeHash(canonical []Destination, chain string) (string, error) {
	shape := requestShape{Chain: chain, Dests: make([]destShape, len(canonical))}
	for i, d := range canonical {
		ds := destShape{Entity: d.Entity, Alias: d.Alias, Output: d.Output, Inputs: sortedKeys(d.Input)}
		for _, p := range ds.Inputs {
			ds.Placeholders = append(ds.Placeholders, placeholderName(i, d, p))
		}
		shape.Dests[i] = ds
	}
	data, err := msgpack.Marshal(&shape)
	if err != nil {
		return "", fmt.Errorf("encode request shape: %w", err)
	}
	return fmt.Sprintf("%016x", xxhash.Sum64(data)), nil
}

// Prepare returns the template for a request, from the cache when a request
// of the same shape was prepared before, together with the request's values
// keyed by placeholder name.
func (s *Schema) Prepare(dests []Destination, chain string) (*Template, map[string]any, error) {
	if err := s.validateDestinations(dests); err != nil {
		return nil, nil, err
	}
	canonical := canonicalize(dests)
	hash, err := shapeHash(canonical, chain)
	if err != nil {
		return nil, nil, err
	}

	values := make(map[string]any)
	for i, d := range canonical {
		for p, v := range d.Input {
			values[placeholderName(i, d, p)] = v
		}
	}

	if t, ok := s.cache.Get(hash); ok {
		s.cache.hits.Add(1)
		logging.Debug().Str("schema", s.name).Str("hash", hash).Msg("template cache hit")
		return t, values, nil
	}
	s.cache.misses.Add(1)

	w, err := s.Resolve(canonical, chain)
	if err != nil {
		return nil, nil, err
	}
	t, err := s.Compile(w, canonical)
	if err != nil {
		return nil, nil, err
	}
	t.Hash = hash
	t = s.cache.Put(t)
	logging.Debug().
		Str("schema", s.name).
		Str("hash", hash).
		Str("chain", t.Chain).
		Msg("template compiled")
	return t, values, nil
}

type itemRecord struct {
	Table  string `msgpack:"t"`
	Column string `msgpack:"c"`
	As     string `msgpack:"a"`
}

type fromRecord struct {
	Table string `msgpack:"t"`
	Alias string `msgpack:"a"`
}

type whereRecord struct {
	LeftTable   string `msgpack:"lt"`
	LeftColumn  string `msgpack:"lc"`
	RightTable  string `msgpack:"rt,omitempty"`
	RightColumn string `msgpack:"rc,omitempty"`
	Param       string `msgpack:"p,omitempty"`
}

type templateRecord struct {
	Hash         string        `msgpack:"h"`
	Chain        string        `msgpack:"c"`
	Items        []itemRecord  `msgpack:"s"`
	From         []fromRecord  `msgpack:"f"`
	Where        []whereRecord `msgpack:"w"`
	Placeholders []string      `msgpack:"p"`
}

func recordOf(t *Template) (templateRecord, error) {
	rec := templateRecord{Hash: t.Hash, Chain: t.Chain, Placeholders: t.Placeholders}
	for _, it := range t.Statement.Items {
		rec.Items = append(rec.Items, itemRecord{Table: it.Column.Table, Column: it.Column.Column, As: it.As})
	}
	for _, f := range t.Statement.From {
		rec.From = append(rec.From, fromRecord{Table: f.Table, Alias: f.Alias})
	}
	for _, w := range t.Statement.Where {
		wr := whereRecord{LeftTable: w.Left.Table, LeftColumn: w.Left.Column}
		switch r := w.Right.(type) {
		case ast.ColumnRef:
			wr.RightTable, wr.RightColumn = r.Table, r.Column
		case ast.Param:
			wr.Param = r.Name
		default:
			return templateRecord{}, fmt.Errorf("template %s: cannot persist operand %T", t.Hash, w.Right)
		}
		rec.Where = append(rec.Where, wr)
	}
	return rec, nil
}

func (rec templateRecord) template() *Template {
	t := &Template{Hash: rec.Hash, Chain: rec.Chain, Placeholders: rec.Placeholders}
	for _, it := range rec.Items {
		t.Statement.Items = append(t.Statement.Items, ast.As(it.Table, it.Column, it.As))
	}
	for _, f := range rec.From {
		t.Statement.From = append(t.Statement.From, ast.Table(f.Table, f.Alias))
	}
	for _, w := range rec.Where {
		var right ast.Operand = ast.Col(w.RightTable, w.RightColumn)
		if w.Param != "" {
			right = ast.P(w.Param)
		}
		t.Statement.Where = append(t.Statement.Where, ast.Eq(ast.Col(w.LeftTable, w.LeftColumn), right))
	}
	return t
}

// Save writes every cached template to w, sorted by hash.
func (c *Cache) Save(w io.Writer) error {
	var recs []templateRecord
	var err error
	c.entries.Range(func(_, v any) bool {
		var rec templateRecord
		rec, err = recordOf(v.(*Template))
		if err != nil {
			return false
		}
		recs = append(recs, rec)
		return true
	})
	if err != nil {
		return err
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].Hash < recs[j].Hash })
	if err := msgpack.NewEncoder(w).Encode(recs); err != nil {
		return fmt.Errorf("encode template cache: %w", err)
	}
	return nil
}

// Load adds the templates saved by Save. Templates already cached under the
// same hash are kept.
func (c *Cache) Load(r io.Reader) error {
	var recs []templateRecord
	if err := msgpack.NewDecoder(r).Decode(&recs); err != nil {
		return fmt.Errorf("decode template cache: %w", err)
	}
	for _, rec := range recs {
		if rec.Hash == "" {
			return fmt.Errorf("decode template cache: template without hash")
		}
		c.Put(rec.template())
	}
	return nil
}
