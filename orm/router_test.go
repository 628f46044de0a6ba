package orm

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func relationships(w *Walk) []string {
	var out []string
	for _, r := range w.Rules() {
		out = append(out, r.Relationship)
	}
	return out
}

func TestResolve(t *testing.T) {
	s, _ := setupFixture(t)

	tests := []struct {
		name   string
		dests  []Destination
		chain  string
		visits []string
	}{
		{
			name:   "two hops",
			dests:  []Destination{{Entity: "Person"}, {Entity: "Office", Output: true}},
			chain:  "Person -> (EmployedBy) -> Employer -> (Owns) -> Office",
			visits: []string{"Person", "Employer", "Office"},
		},
		{
			name:   "anchor only",
			dests:  []Destination{{Entity: "Person", Output: true}},
			chain:  "Person",
			visits: []string{"Person"},
		},
		{
			name:   "self relationship by alias",
			dests:  []Destination{{Entity: "Person"}, {Entity: "Person", Alias: "Partner", Output: true}},
			chain:  "Person -> (Partner) -> Person",
			visits: []string{"Person", "Person"},
		},
		{
			name:   "traversed against rule direction",
			dests:  []Destination{{Entity: "Employer"}, {Entity: "Person", Alias: "EmployeeOf", Output: true}},
			chain:  "Employer -> (Employs) -> Job -> (EmployeeOf) -> Person",
			visits: []string{"Employer", "Job", "Person"},
		},
		{
			name:   "instantiable relationship only",
			dests:  []Destination{{Entity: "Person"}, {Entity: "LivesIn", Output: true}},
			chain:  "Person -> (LivesIn) -> Home",
			visits: []string{"Person", "Home"},
		},
		{
			name:   "relationship and its output",
			dests:  []Destination{{Entity: "Person"}, {Entity: "Home", Output: true}, {Entity: "LivesIn", Output: true}},
			chain:  "Person -> (LivesIn) -> Home",
			visits: []string{"Person", "Home"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, err := s.Resolve(tt.dests, "")
			require.NoError(t, err)
			assert.Equal(t, tt.chain, w.String())
			if diff := cmp.Diff(tt.visits, w.Visits()); diff != "" {
				t.Errorf("visits mismatch (-want +got):\n%s", diff)
			}
			assert.Equal(t, tt.dests[0].Entity, w.Anchor())
		})
	}
}

func TestResolve_Branching(t *testing.T) {
	s, _ := setupFixture(t)

	w, err := s.Resolve([]Destination{
		{Entity: "Person"},
		{Entity: "Employer", Output: true},
		{Entity: "Home", Output: true},
	}, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"EmployedBy", "LivesIn"}, relationships(w))

	want := []Step{
		{Rule: Rule{Input: "Person", Output: "Employer", Relationship: "EmployedBy"}, Near: 0, Far: 1, Forward: true},
		{Rule: Rule{Input: "Person", Output: "Home", Relationship: "LivesIn"}, Near: 0, Far: 2, Forward: true},
	}
	if diff := cmp.Diff(want, w.Steps(), cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("steps mismatch (-want +got):\n%s", diff)
	}
}

func TestResolve_NoRoute(t *testing.T) {
	s, _ := setupFixture(t)

	_, err := s.Resolve([]Destination{{Entity: "Person"}, {Entity: "Partner", Output: true}}, "")
	var re *RouteResolutionError
	require.ErrorAs(t, err, &re)
	assert.True(t, errors.Is(err, ErrNoRoute))
	assert.Equal(t, "Person, Partner", re.Detail)
}

func TestResolve_AmbiguousDirectRules(t *testing.T) {
	Reset()
	t.Cleanup(Reset)
	s, err := Setup(fixtureRules+"Person to Employer as Founded\n", &fakeExecutor{}, WithCatalog(fixtureCatalog()))
	require.NoError(t, err)

	_, err = s.Resolve([]Destination{{Entity: "Person"}, {Entity: "Employer", Output: true}}, "")
	assert.ErrorIs(t, err, ErrAmbiguousRoute)
	var re *RouteResolutionError
	require.ErrorAs(t, err, &re)
	require.Len(t, re.Matches, 2)
	assert.Equal(t, "EmployedBy", re.Matches[0].Relationship)
	assert.Equal(t, "Founded", re.Matches[1].Relationship)

	w, err := s.Resolve([]Destination{{Entity: "Person"}, {Entity: "Employer", Alias: "Founded", Output: true}}, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"Founded"}, relationships(w))

	w, err = s.Resolve([]Destination{{Entity: "Person"}, {Entity: "Employer", Output: true}}, "Person -> (Founded) -> Employer")
	require.NoError(t, err)
	assert.Equal(t, []string{"Founded"}, relationships(w))
}

func TestResolve_OutputIsAnchorEntity(t *testing.T) {
	s, _ := setupFixture(t)

	dests := []Destination{{Entity: "Person"}, {Entity: "Person", Output: true}}
	w, err := s.Resolve(dests, "")
	require.NoError(t, err)
	assert.Equal(t, "Person -> (Partner) -> Person", w.String())

	tmpl, err := s.Compile(w, dests)
	require.NoError(t, err)
	assert.Contains(t, mustSQL(t, tmpl), "FROM person 0__0__person, person partner__0__person")
}

func TestResolve_Validation(t *testing.T) {
	s, _ := setupFixture(t)

	tests := []struct {
		name  string
		dests []Destination
	}{
		{"empty", nil},
		{"missing entity", []Destination{{}}},
		{"unregistered", []Destination{{Entity: "Robot"}}},
		{"relationship anchor", []Destination{{Entity: "LivesIn"}, {Entity: "Person"}}},
		{"bad alias", []Destination{{Entity: "Person"}, {Entity: "Person", Alias: "partner"}}},
		{"bad input property", []Destination{{Entity: "Person", Input: map[string]any{"Surname": "x"}}}},
		{"repeated destination", []Destination{{Entity: "Person"}, {Entity: "Employer", Output: true}, {Entity: "Employer", Output: true}}},
		{"repeated aliased destination", []Destination{{Entity: "Person"}, {Entity: "Person", Alias: "Partner"}, {Entity: "Person", Alias: "Partner", Output: true}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Resolve(tt.dests, "")
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}
}

func TestResolve_ExplicitChain(t *testing.T) {
	s, _ := setupFixture(t)

	w, err := s.Resolve([]Destination{
		{Entity: "Person"},
		{Entity: "Home", Output: true},
		{Entity: "LivesIn", Output: true},
	}, "Person -> (LivesIn) -> Home")
	require.NoError(t, err)
	assert.Equal(t, []string{"LivesIn"}, relationships(w))

	w, err = s.Resolve([]Destination{{Entity: "Employer"}, {Entity: "Person", Output: true}},
		"Employer -> (EmployedBy) -> Person")
	require.NoError(t, err)
	require.Len(t, w.Steps(), 1)
	assert.False(t, w.Steps()[0].Forward)

	w, err = s.Resolve([]Destination{
		{Entity: "Person"},
		{Entity: "Home", Output: true},
	}, "Home -> (LivesIn) -> Person")
	require.NoError(t, err)
	assert.Equal(t, "Person", w.Anchor())
	assert.Equal(t, "Person -> (LivesIn) -> Home", w.String())

	chain := "Person -> (Partner) -> Person -> (Partner[1]) -> Person"
	w, err = s.Resolve([]Destination{{Entity: "Person"}, {Entity: "Person", Alias: "Partner", Output: true}}, chain)
	require.NoError(t, err)
	assert.Equal(t, 2, w.Len())
	assert.Equal(t, chain, w.String())
}

func TestResolve_ExplicitChainErrors(t *testing.T) {
	s, _ := setupFixture(t)

	tests := []struct {
		name  string
		dests []Destination
		chain string
		want  error
	}{
		{
			name:  "destination not in chain",
			dests: []Destination{{Entity: "Person"}, {Entity: "Office", Output: true}},
			chain: "Person -> (LivesIn) -> Home",
			want:  ErrInvalidInput,
		},
		{
			name:  "relationship not in chain",
			dests: []Destination{{Entity: "Person"}, {Entity: "LivesIn", Output: true}},
			chain: "Person -> (Partner) -> Person",
			want:  ErrInvalidInput,
		},
		{
			name:  "anchor inside the chain",
			dests: []Destination{{Entity: "Employer"}, {Entity: "Person", Output: true}},
			chain: "Job -> (Employs) -> Employer -> (EmployedBy) -> Person",
			want:  ErrInvalidInput,
		},
		{
			name:  "unparsable chain",
			dests: []Destination{{Entity: "Person"}, {Entity: "Home", Output: true}},
			chain: "Person -> Home",
			want:  ErrInvalidInput,
		},
		{
			name:  "plain rule destination",
			dests: []Destination{{Entity: "Person"}, {Entity: "Partner", Output: true}},
			chain: "Person -> (Partner) -> Person",
			want:  ErrInvalidInput,
		},
		{
			name:  "hop matches no rule",
			dests: []Destination{{Entity: "Person"}, {Entity: "Employer", Output: true}},
			chain: "Person -> (Owns) -> Employer",
			want:  ErrNoRoute,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Resolve(tt.dests, tt.chain)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	_, err := s.Resolve([]Destination{{Entity: "Person"}, {Entity: "Employer", Output: true}}, "Person -> (Owns) -> Employer")
	var re *RouteResolutionError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, "Person -> (Owns) -> Employer", re.Detail)
}

func TestBetter(t *testing.T) {
	ab := Rule{Input: "A", Output: "B", Relationship: "AB"}
	bc := Rule{Input: "B", Output: "C", Relationship: "BC"}
	aa := Rule{Input: "A", Output: "A", Relationship: "AA"}
	ac := Rule{Input: "A", Output: "C", Relationship: "AC"}

	wide, err := newWalk("A", []Rule{ab, bc})
	require.NoError(t, err)
	narrow, err := newWalk("A", []Rule{aa, ac})
	require.NoError(t, err)
	short, err := newWalk("A", []Rule{ac})
	require.NoError(t, err)

	assert.Equal(t, 3, wide.distinctEntities())
	assert.Equal(t, 2, narrow.distinctEntities())
	assert.True(t, better(wide, narrow), "more distinct entities wins a length tie")
	assert.False(t, better(narrow, wide))
	assert.False(t, better(wide, wide), "ties keep the first walk")
	assert.True(t, better(short, wide), "fewer edges wins")
}

func TestNewWalk_Disconnected(t *testing.T) {
	_, err := newWalk("A", []Rule{{Input: "B", Output: "C", Relationship: "BC"}})
	assert.ErrorContains(t, err, "not connected")
}

func TestPermutations(t *testing.T) {
	assert.Empty(t, permutations(0))
	assert.Equal(t, [][]int{{0}}, permutations(1))

	p := permutations(3)
	require.Len(t, p, 6)
	assert.Equal(t, []int{0, 1, 2}, p[0])
	assert.Equal(t, []int{2, 1, 0}, p[5])
}
