package orm

import (
	"fmt"
	"slices"
	"sort"
	"strconv"

	"github.com/CaliLuke/go-relmap/ast"
)

// Template is a compiled, parameterized query. It is immutable once built
// and is shared by every request of the same shape.
type Template struct {
	// Hash is the shape hash the template is cached under. It is empty for
	// templates compiled outside the cache.
	Hash string
	// Chain describes the resolved walk in chain notation.
	Chain string
	// Statement holds the SELECT, FROM and WHERE fragments.
	Statement ast.SelectStatement
	// Placeholders lists the parameter names in first-use order.
	Placeholders []string
}

// SQL renders the template with parameters shown as :name.
func (t *Template) SQL() (string, error) {
	return (&ast.Compiler{}).Compile(t.Statement)
}

type visitInfo struct {
	entity string
	info   *TypeInfo
	alias  string
	table  string
}

type compilation struct {
	s      *Schema
	w      *Walk
	dests  []Destination
	visits []visitInfo
	// occ is the per-relationship occurrence index of every step.
	occ    []int
	elided []bool
	stmt   ast.SelectStatement
	from   map[string]bool
	items  map[string]bool
	params []string
}

// Compile turns a resolved walk and its destinations into a template.
//
// Every visit is aliased <relationship>__<occurrence>__<table>, the anchor as
// 0__0__<table>, and visits of types with no declaration use the bare table.
// A visit whose entity only ever appears on the output side of the walk's
// rules, is not requested as output and is filtered on keys alone is left
// out of FROM: its key columns are read from the table storing the link.
func (s *Schema) Compile(w *Walk, dests []Destination) (*Template, error) {
	if len(dests) == 0 {
		return nil, inputErrorf("at least one destination is required")
	}
	outputs := 0
	for _, d := range dests {
		if d.Output {
			outputs++
		}
	}
	if outputs == 0 {
		return nil, inputErrorf("at least one destination must be requested as output")
	}
	if w.Anchor() != dests[0].Entity {
		return nil, inputErrorf("walk starts at %s, not at the anchor %s", w.Anchor(), dests[0].Entity)
	}

	c := &compilation{
		s:     s,
		w:     w,
		dests: dests,
		from:  make(map[string]bool),
		items: make(map[string]bool),
	}
	c.layoutVisits()

	classVisits := make([][]int, len(dests))
	relSteps := make([][]int, len(dests))
	outputVisit := make([]bool, len(c.visits))
	nonKeyInput := make([]bool, len(c.visits))
	for di, d := range dests {
		if irel, ok := s.irels[d.Entity]; ok {
			if di == 0 {
				return nil, inputErrorf("the anchor %s must be an entity", d.Entity)
			}
			if err := checkInputs(d, irel.inputColumns()); err != nil {
				return nil, err
			}
			relSteps[di] = c.matchSteps(d)
			if len(relSteps[di]) == 0 {
				return nil, inputErrorf("relationship %s is not on the route %s", d.Entity, w)
			}
			continue
		}

		matched := c.matchVisits(di, d)
		if len(matched) == 0 {
			return nil, inputErrorf("destination %s is not on the route %s", describeDest(d), w)
		}
		info := c.visits[matched[0]].info
		if info == nil && (d.Output || len(d.Input) > 0) {
			return nil, inputErrorf("%s has no declared type and cannot be selected or filtered", d.Entity)
		}
		if info != nil {
			if err := checkInputs(d, info.inputColumns()); err != nil {
				return nil, err
			}
		}
		for _, v := range matched {
			if d.Output {
				outputVisit[v] = true
			}
			for p := range d.Input {
				if !slices.Contains(s.keysOf(d.Entity), p) {
					nonKeyInput[v] = true
				}
			}
		}
		classVisits[di] = matched
	}

	c.computeElision(outputVisit, nonKeyInput)

	for v, vi := range c.visits {
		if !c.elided[v] {
			c.addFrom(vi.table, vi.alias)
		}
	}
	for k := range w.steps {
		c.joinStep(k)
	}
	for di, d := range dests {
		if !d.Output {
			continue
		}
		for _, v := range classVisits[di] {
			c.selectEntity(v)
		}
		for _, k := range relSteps[di] {
			c.selectRelationship(k)
		}
	}
	for di, d := range dests {
		for _, p := range sortedKeys(d.Input) {
			name := placeholderName(di, d, p)
			c.params = append(c.params, name)
			for _, v := range classVisits[di] {
				c.where(c.keyColumn(v, p), ast.P(name))
			}
			for _, k := range relSteps[di] {
				store := c.storingVisit(k)
				c.where(ast.Col(c.visits[store].alias, relColumn(c.w.steps[k].Rule.Relationship, "var", p)), ast.P(name))
			}
		}
	}

	return &Template{
		Chain:        w.String(),
		Statement:    c.stmt,
		Placeholders: c.params,
	}, nil
}

func (c *compilation) layoutVisits() {
	counts := make(map[string]int)
	c.occ = make([]int, len(c.w.steps))
	for k, st := range c.w.steps {
		c.occ[k] = counts[st.Rule.Relationship]
		counts[st.Rule.Relationship]++
	}
	c.visits = make([]visitInfo, len(c.w.visits))
	for v, entity := range c.w.visits {
		vi := visitInfo{entity: entity, table: mustTable(entity)}
		vi.info = c.s.entities[entity]
		switch {
		case vi.info == nil:
			vi.alias = vi.table
		case v == 0:
			vi.alias = AnchorAlias + delimiter + "0" + delimiter + vi.table
		default:
			k := c.producer(v)
			vi.alias = mustTable(c.w.steps[k].Rule.Relationship) + delimiter + strconv.Itoa(c.occ[k]) + delimiter + vi.table
		}
		c.visits[v] = vi
	}
}

// producer returns the step whose far side is visit v.
func (c *compilation) producer(v int) int {
	return v - 1
}

// matchVisits returns the visits a class destination refers to. The anchor
// destination is the anchor visit; an aliased destination is every visit of
// its entity produced by the aliased relationship; any other destination is
// every non-anchor visit of its entity.
func (c *compilation) matchVisits(di int, d Destination) []int {
	if di == 0 {
		return []int{0}
	}
	var out []int
	for v := 1; v < len(c.visits); v++ {
		if c.visits[v].entity != d.Entity {
			continue
		}
		if d.Alias != "" && d.Alias != AnchorAlias && c.w.steps[c.producer(v)].Rule.Relationship != d.Alias {
			continue
		}
		out = append(out, v)
	}
	return out
}

func (c *compilation) matchSteps(d Destination) []int {
	var out []int
	for k, st := range c.w.steps {
		if st.Rule.Relationship == d.Entity {
			out = append(out, k)
		}
	}
	return out
}

func (c *compilation) computeElision(outputVisit, nonKeyInput []bool) {
	inputs := make(map[string]bool)
	nodes := make(map[string]bool)
	for _, st := range c.w.steps {
		inputs[st.Rule.Input] = true
	}
	for _, st := range c.w.steps {
		if !inputs[st.Rule.Output] && st.Rule.Output != c.w.visits[0] {
			nodes[st.Rule.Output] = true
		}
	}
	c.elided = make([]bool, len(c.visits))
	for v := 1; v < len(c.visits); v++ {
		c.elided[v] = nodes[c.visits[v].entity] && !outputVisit[v] && !nonKeyInput[v]
	}
}

// storingVisit returns the visit on the input side of step k. That table
// holds the link's key and property columns.
func (c *compilation) storingVisit(k int) int {
	st := c.w.steps[k]
	if st.Forward {
		return st.Near
	}
	return st.Far
}

func (c *compilation) targetVisit(k int) int {
	st := c.w.steps[k]
	if st.Forward {
		return st.Far
	}
	return st.Near
}

// linkStep returns the first step whose output side is visit v.
func (c *compilation) linkStep(v int) int {
	for k := range c.w.steps {
		if c.targetVisit(k) == v {
			return k
		}
	}
	return -1
}

// keyColumn returns the column holding property p of visit v. For an elided
// visit that is the copy kept by the first link pointing at it.
func (c *compilation) keyColumn(v int, p string) ast.ColumnRef {
	if !c.elided[v] {
		return ast.Col(c.visits[v].alias, p)
	}
	k := c.linkStep(v)
	return ast.Col(c.visits[c.storingVisit(k)].alias, relColumn(c.w.steps[k].Rule.Relationship, "key", p))
}

func (c *compilation) joinStep(k int) {
	st := c.w.steps[k]
	store, target := c.storingVisit(k), c.targetVisit(k)
	for _, key := range c.s.keysOf(st.Rule.Output) {
		left := ast.Col(c.visits[store].alias, relColumn(st.Rule.Relationship, "key", key))
		right := c.keyColumn(target, key)
		if left == right {
			continue
		}
		c.where(left, right)
	}
}

// selectEntity selects a visit's own columns and joins each concrete
// ancestor table as <alias>__inherits__<table>.
func (c *compilation) selectEntity(v int) {
	vi := c.visits[v]
	for _, p := range vi.info.columns() {
		c.selectItem(vi.alias, p, vi.alias+delimiter+p)
	}
	prev := vi.alias
	for _, anc := range vi.info.ancestors {
		ancAlias := vi.alias + delimiter + mustTable(InheritsRelationship) + delimiter + anc.table
		if !c.from[ancAlias] {
			c.addFrom(anc.table, ancAlias)
			for _, key := range anc.keys {
				c.where(ast.Col(prev, relColumn(InheritsRelationship, "key", key)), ast.Col(ancAlias, key))
			}
		}
		for _, p := range anc.columns() {
			c.selectItem(ancAlias, p, ancAlias+delimiter+p)
		}
		prev = ancAlias
	}
}

// selectRelationship selects the properties of the relationship of step k
// from its storing side as <relationship>__<occurrence>__<property>.
func (c *compilation) selectRelationship(k int) {
	st := c.w.steps[k]
	info := c.s.irels[st.Rule.Relationship]
	store := c.visits[c.storingVisit(k)].alias
	rel := mustTable(st.Rule.Relationship)
	for _, p := range info.allProps {
		c.selectItem(store, relColumn(st.Rule.Relationship, "var", p), rel+delimiter+strconv.Itoa(c.occ[k])+delimiter+p)
	}
}

func (c *compilation) addFrom(table, alias string) {
	if c.from[alias] {
		return
	}
	c.from[alias] = true
	if alias == table {
		alias = ""
	}
	c.stmt.From = append(c.stmt.From, ast.Table(table, alias))
}

func (c *compilation) selectItem(table, column, as string) {
	if c.items[as] {
		return
	}
	c.items[as] = true
	c.stmt.Items = append(c.stmt.Items, ast.As(table, column, as))
}

func (c *compilation) where(left ast.ColumnRef, right ast.Operand) {
	c.stmt.Where = append(c.stmt.Where, ast.Eq(left, right))
}

// relColumn names a link column: <relationship>__key__<k> or
// <relationship>__var__<p>.
func relColumn(relationship, kind, name string) string {
	return mustTable(relationship) + delimiter + kind + delimiter + name
}

// placeholderName is i<index>_<table>[_<alias>]_<property>.
func placeholderName(di int, d Destination, p string) string {
	name := fmt.Sprintf("i%d_%s", di, mustTable(d.Entity))
	if d.Alias != "" && d.Alias != AnchorAlias {
		name += "_" + mustTable(d.Alias)
	}
	return name + "_" + p
}

func checkInputs(d Destination, allowed []string) error {
	for p := range d.Input {
		if !slices.Contains(allowed, p) {
			return inputErrorf("property %q is not a member of %s", p, d.Entity)
		}
	}
	return nil
}

func describeDest(d Destination) string {
	if d.Alias != "" {
		return d.Entity + " (" + d.Alias + ")"
	}
	return d.Entity
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
