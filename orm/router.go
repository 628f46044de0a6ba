package orm

import (
	"errors"
	"fmt"
	"strings"

	"github.com/CaliLuke/go-relmap/internal/logging"
	"github.com/CaliLuke/go-relmap/ruledsl"
)

// Destination is one element of a request. The first destination is the
// anchor: the walk starts there and it is never permuted.
type Destination struct {
	// Entity is an entity or instantiable relationship name.
	Entity string
	// Alias names the relationship a repeated entity is reached through.
	Alias string
	// Input constrains the match: property name to literal value. A value
	// may be an ast.LiteralValue to carry a formatting hint.
	Input map[string]any
	// Output requests the destination's data back.
	Output bool
}

// Step is one edge of a walk with the visits it connects. Visit 0 is the
// anchor and every step adds one visit on its far side.
type Step struct {
	Rule Rule
	Near int
	Far  int
	// Forward is true when the rule's input is the near side.
	Forward bool
}

// Walk is a resolved route: an ordered sequence of rules starting at the
// anchor, with the visit each edge enters from and leads to.
type Walk struct {
	visits []string
	steps  []Step
}

// Anchor returns the entity the walk starts from.
func (w *Walk) Anchor() string { return w.visits[0] }

// Len returns the number of edges.
func (w *Walk) Len() int { return len(w.steps) }

// Steps returns the walk's edges.
func (w *Walk) Steps() []Step { return append([]Step(nil), w.steps...) }

// Rules returns the walk's rules in order.
func (w *Walk) Rules() []Rule {
	out := make([]Rule, len(w.steps))
	for i, st := range w.steps {
		out[i] = st.Rule
	}
	return out
}

// Visits returns the entity of every visit, anchor first.
func (w *Walk) Visits() []string { return append([]string(nil), w.visits...) }

// String renders the walk in chain notation. Repeated relationships carry
// their occurrence index: Person -> (Partner) -> Person -> (Partner[1]) -> Person.
func (w *Walk) String() string {
	var b strings.Builder
	b.WriteString(w.visits[0])
	seen := make(map[string]int)
	for _, st := range w.steps {
		name := st.Rule.Relationship
		if n := seen[name]; n > 0 {
			name = fmt.Sprintf("%s[%d]", name, n)
		}
		seen[st.Rule.Relationship]++
		b.WriteString(" -> (" + name + ") -> " + w.visits[st.Far])
	}
	return b.String()
}

// distinctEntities counts the entities touched by the walk's rules.
func (w *Walk) distinctEntities() int {
	seen := make(map[string]bool)
	for _, st := range w.steps {
		seen[st.Rule.Input] = true
		seen[st.Rule.Output] = true
	}
	return len(seen)
}

// newWalk lays rules out as visits. Each edge enters from the previous
// edge's far visit when it touches it, otherwise from the previous near one.
func newWalk(anchor string, rules []Rule) (*Walk, error) {
	w := &Walk{visits: []string{anchor}}
	prevNear, prevFar := 0, 0
	for _, r := range rules {
		near := -1
		for _, cand := range []int{prevFar, prevNear} {
			if r.Touches(w.visits[cand]) {
				near = cand
				break
			}
		}
		if near < 0 {
			return nil, fmt.Errorf("rule %s is not connected to the walk", r)
		}
		forward := r.Input == w.visits[near]
		far := r.Input
		if forward {
			far = r.Output
		}
		w.visits = append(w.visits, far)
		st := Step{Rule: r, Near: near, Far: len(w.visits) - 1, Forward: forward}
		w.steps = append(w.steps, st)
		prevNear, prevFar = st.Near, st.Far
	}
	return w, nil
}

// waypoint is a required-edge predicate. An entity waypoint matches either
// endpoint; a relationship waypoint matches the rule name.
type waypoint struct {
	entity       string
	relationship string
}

func (p waypoint) matches(r Rule) bool {
	if p.entity != "" && !r.Touches(p.entity) {
		return false
	}
	if p.relationship != "" && r.Relationship != p.relationship {
		return false
	}
	return true
}

// Resolve finds the walk connecting dests. With a non-empty chain the walk is
// read from the chain and no search runs.
//
// Search cost grows with the factorial of the destination count times the
// number of rule paths; callers joining many destinations should pass a chain.
func (s *Schema) Resolve(dests []Destination, chain string) (*Walk, error) {
	if err := s.validateDestinations(dests); err != nil {
		return nil, err
	}
	if chain != "" {
		return s.routeFromChain(chain, dests)
	}

	anchor := dests[0].Entity
	var tail []string
	var waypoints []waypoint
	for _, d := range dests[1:] {
		if s.IsRegisteredInstantiableRelationship(d.Entity) {
			waypoints = append(waypoints, waypoint{relationship: d.Entity})
			continue
		}
		if s.IsRegisteredEntity(d.Entity) && d.Alias != "" && d.Alias != AnchorAlias {
			waypoints = append(waypoints, waypoint{relationship: d.Alias})
		}
		tail = append(tail, d.Entity)
	}

	if len(tail) == 0 && len(waypoints) == 0 {
		return newWalk(anchor, nil)
	}
	if len(tail) == 1 && len(waypoints) == 0 {
		if _, err := s.ResolveRelationshipBetween(anchor, tail[0]); errors.Is(err, ErrAmbiguousRoute) {
			return nil, err
		}
	}

	var best *Walk
	candidates := 0
	consider := func(rules []Rule) {
		candidates++
		w, err := newWalk(anchor, rules)
		if err != nil {
			return
		}
		if best == nil || better(w, best) {
			best = w
		}
	}

	if len(tail) == 0 {
		s.search(anchor, "", waypoints, consider, bestLen(&best))
	}
	for _, perm := range permutations(len(tail)) {
		output := tail[perm[len(perm)-1]]
		required := append([]waypoint(nil), waypoints...)
		for _, i := range perm[:len(perm)-1] {
			required = append(required, waypoint{entity: tail[i]})
		}
		s.search(anchor, output, required, consider, bestLen(&best))
	}

	if best == nil {
		names := make([]string, len(dests))
		for i, d := range dests {
			names[i] = d.Entity
		}
		return nil, &RouteResolutionError{Cause: ErrNoRoute, Detail: strings.Join(names, ", ")}
	}
	logging.Debug().
		Str("schema", s.name).
		Str("chain", best.String()).
		Int("candidates", candidates).
		Msg("route resolved")
	return best, nil
}

// better orders candidate walks: fewer edges first, then more distinct
// entities. Ties keep the walk found first.
func better(a, b *Walk) bool {
	if a.Len() != b.Len() {
		return a.Len() < b.Len()
	}
	return a.distinctEntities() > b.distinctEntities()
}

func bestLen(best **Walk) func() int {
	return func() int {
		if *best == nil {
			return -1
		}
		return (*best).Len()
	}
}

// search runs a depth-first search from every rule touching input. Visits
// are laid out as newWalk lays them out. A path ends when its last rule
// leads to output (any rule when output is empty): it is reported if every
// waypoint is matched by some rule of the path, and is not extended either
// way. Paths longer than the best so far are pruned.
func (s *Schema) search(input, output string, waypoints []waypoint, report func([]Rule), limit func() int) {
	var path []Rule
	visits := []string{input}
	// near and far hold the visit indexes of every rule on the path.
	var near, far []int
	used := make([]bool, len(s.rules))

	push := func(r Rule, from int) {
		next := r.Input
		if r.Input == visits[from] {
			next = r.Output
		}
		path = append(path, r)
		visits = append(visits, next)
		near = append(near, from)
		far = append(far, len(visits)-1)
	}
	pop := func() {
		path = path[:len(path)-1]
		visits = visits[:len(visits)-1]
		near = near[:len(near)-1]
		far = far[:len(far)-1]
	}

	var visit func()
	visit = func() {
		last := len(path) - 1
		if output == "" || visits[far[last]] == output {
			if satisfies(path, waypoints) {
				report(append([]Rule(nil), path...))
				return
			}
			if output != "" {
				return
			}
		}
		if l := limit(); l >= 0 && len(path)+1 > l {
			return
		}
		for i, r := range s.rules {
			if used[i] {
				continue
			}
			from := -1
			for _, cand := range []int{far[last], near[last]} {
				if r.Touches(visits[cand]) {
					from = cand
					break
				}
			}
			if from < 0 {
				continue
			}
			used[i] = true
			push(r, from)
			visit()
			pop()
			used[i] = false
		}
	}

	for i, r := range s.rules {
		if !r.Touches(input) {
			continue
		}
		used[i] = true
		push(r, 0)
		visit()
		pop()
		used[i] = false
	}
}

func satisfies(path []Rule, waypoints []waypoint) bool {
	for _, wp := range waypoints {
		found := false
		for _, r := range path {
			if wp.matches(r) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// permutations returns every ordering of 0..n-1 in lexicographic order.
func permutations(n int) [][]int {
	var out [][]int
	cur := make([]int, 0, n)
	used := make([]bool, n)
	var rec func()
	rec = func() {
		if len(cur) == n {
			out = append(out, append([]int(nil), cur...))
			return
		}
		for i := 0; i < n; i++ {
			if used[i] {
				continue
			}
			used[i] = true
			cur = append(cur, i)
			rec()
			cur = cur[:len(cur)-1]
			used[i] = false
		}
	}
	if n > 0 {
		rec()
	}
	return out
}

// routeFromChain builds the walk named by an explicit chain. Every
// destination must appear in the chain and every hop must match a rule in
// either direction.
func (s *Schema) routeFromChain(text string, dests []Destination) (*Walk, error) {
	chain, err := ruledsl.ParseChain(text)
	if err != nil {
		return nil, &InputError{Message: err.Error()}
	}
	for _, d := range dests {
		switch {
		case s.IsRegisteredInstantiableRelationship(d.Entity):
			if !chain.ContainsRelationship(d.Entity) {
				return nil, inputErrorf("destination %s is not accounted for in chain %q", d.Entity, text)
			}
		case s.IsRegisteredEntity(d.Entity):
			if !chain.ContainsEntity(d.Entity) {
				return nil, inputErrorf("destination %s is not accounted for in chain %q", d.Entity, text)
			}
		default:
			return nil, inputErrorf("destination %s is not a registered entity or instantiable relationship", d.Entity)
		}
	}
	switch anchor := dests[0].Entity; {
	case chain.Entities[0] == anchor:
	case chain.Entities[len(chain.Entities)-1] == anchor:
		chain = chain.Reverse()
	default:
		return nil, inputErrorf("chain %q must start or end at the anchor %s", text, anchor)
	}

	var rules []Rule
	for _, t := range chain.Triples() {
		r, ok := s.byRel[t[1]]
		if !ok || !((r.Input == t[0] && r.Output == t[2]) || (r.Input == t[2] && r.Output == t[0])) {
			return nil, &RouteResolutionError{
				Cause:  ErrNoRoute,
				Detail: fmt.Sprintf("%s -> (%s) -> %s", t[0], t[1], t[2]),
			}
		}
		rules = append(rules, r)
	}
	w, err := newWalk(chain.Entities[0], rules)
	if err != nil {
		return nil, &RouteResolutionError{Cause: ErrNoRoute, Detail: err.Error()}
	}
	return w, nil
}

// validateDestinations checks names only; whether a destination can be
// reached is the router's concern.
func (s *Schema) validateDestinations(dests []Destination) error {
	if len(dests) == 0 {
		return inputErrorf("at least one destination is required")
	}
	seen := make(map[[2]string]bool, len(dests))
	for i, d := range dests {
		if i > 0 {
			key := [2]string{d.Entity, d.Alias}
			if seen[key] {
				return inputErrorf("destination %s is requested more than once", describeDest(d))
			}
			seen[key] = true
		}
		if d.Entity == "" {
			return inputErrorf("destination %d has no entity", i)
		}
		if !s.endpoints[d.Entity] && !s.IsRegisteredRelationship(d.Entity) {
			return inputErrorf("%s is not registered in schema %q", d.Entity, s.name)
		}
		if d.Alias != "" && d.Alias != AnchorAlias {
			if err := ValidateClassName(d.Alias); err != nil {
				return err
			}
		}
		for p := range d.Input {
			if err := ValidatePropertyName(p); err != nil {
				return err
			}
		}
	}
	if !s.endpoints[dests[0].Entity] {
		return inputErrorf("the anchor %s must be an entity", dests[0].Entity)
	}
	return nil
}
