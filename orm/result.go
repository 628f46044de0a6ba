package orm

import (
	"iter"
	"sort"
	"strconv"
)

// RowKey identifies an instance within a row.
type RowKey struct {
	Alias      string
	Occurrence int
}

func (k RowKey) String() string {
	return k.Alias + "[" + strconv.Itoa(k.Occurrence) + "]"
}

// ResultRow maps (alias, occurrence) to the instances hydrated from one
// result row. Entities and relationships are kept apart because a
// relationship and the entity reached through it share an alias.
type ResultRow struct {
	entities      map[RowKey]*Instance
	relationships map[RowKey]*Instance
}

// Entity returns the entity under alias at occurrence 0.
func (r *ResultRow) Entity(alias string) (*Instance, error) {
	return r.EntityAt(alias, 0)
}

// EntityAt returns the entity under alias at the given occurrence.
func (r *ResultRow) EntityAt(alias string, occurrence int) (*Instance, error) {
	key := RowKey{Alias: alias, Occurrence: occurrence}
	if inst, ok := r.entities[key]; ok {
		return inst, nil
	}
	return nil, &NotFoundError{Key: "entity " + key.String()}
}

// Relationship returns the relationship instance under alias.
func (r *ResultRow) Relationship(alias string, occurrence int) (*Instance, error) {
	key := RowKey{Alias: alias, Occurrence: occurrence}
	if inst, ok := r.relationships[key]; ok {
		return inst, nil
	}
	return nil, &NotFoundError{Key: "relationship " + key.String()}
}

// Anchor returns the anchor entity.
func (r *ResultRow) Anchor() (*Instance, error) {
	return r.EntityAt(AnchorAlias, 0)
}

// ByType returns the single instance of the named type in the row.
func (r *ResultRow) ByType(name string) (*Instance, error) {
	var found *Instance
	var aliases []string
	for _, m := range []map[RowKey]*Instance{r.entities, r.relationships} {
		for _, key := range sortedRowKeys(m) {
			if m[key].typ.Name() == name {
				found = m[key]
				aliases = append(aliases, key.String())
			}
		}
	}
	switch len(aliases) {
	case 0:
		return nil, &NotFoundError{Key: name}
	case 1:
		return found, nil
	default:
		return nil, &AmbiguousLookupError{Type: name, Aliases: aliases}
	}
}

// EntityKeys returns the keys of the row's entities, sorted.
func (r *ResultRow) EntityKeys() []RowKey {
	return sortedRowKeys(r.entities)
}

// RelationshipKeys returns the keys of the row's relationships, sorted.
func (r *ResultRow) RelationshipKeys() []RowKey {
	return sortedRowKeys(r.relationships)
}

// Len returns the number of instances in the row.
func (r *ResultRow) Len() int {
	return len(r.entities) + len(r.relationships)
}

func sortedRowKeys(m map[RowKey]*Instance) []RowKey {
	keys := make([]RowKey, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Alias != keys[j].Alias {
			return keys[i].Alias < keys[j].Alias
		}
		return keys[i].Occurrence < keys[j].Occurrence
	})
	return keys
}

// ResultSet is the ordered, immutable collection of rows produced by one
// hydration. Iterating it does not consume it.
type ResultSet struct {
	chain string
	rows  []*ResultRow
}

// Chain returns the walk the rows were read through.
func (rs *ResultSet) Chain() string { return rs.chain }

// Len returns the number of rows.
func (rs *ResultSet) Len() int { return len(rs.rows) }

// Row returns row i.
func (rs *ResultSet) Row(i int) *ResultRow { return rs.rows[i] }

// Rows iterates the rows in order.
func (rs *ResultSet) Rows() iter.Seq2[int, *ResultRow] {
	return func(yield func(int, *ResultRow) bool) {
		for i, r := range rs.rows {
			if !yield(i, r) {
				return
			}
		}
	}
}

// Anchored returns the anchor entity of every row that has one.
func (rs *ResultSet) Anchored() []*Instance {
	var out []*Instance
	for _, r := range rs.rows {
		if inst, err := r.Anchor(); err == nil {
			out = append(out, inst)
		}
	}
	return out
}

// ByType returns the single instance of the named type from every row.
func (rs *ResultSet) ByType(name string) ([]*Instance, error) {
	out := make([]*Instance, 0, len(rs.rows))
	for _, r := range rs.rows {
		inst, err := r.ByType(name)
		if err != nil {
			return nil, err
		}
		out = append(out, inst)
	}
	return out, nil
}
