package orm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func homeRow(id int64, since string) map[string]any {
	return map[string]any{
		"lives_in__0__home__id":                          id,
		"lives_in__0__home__inherits__building__id":      id + 100,
		"lives_in__0__home__inherits__building__address": "1 Main St",
		"lives_in__0__home__inherits__building__created": "2020-01-01",
		"lives_in__0__home__inherits__building__altered": nil,
		"lives_in__0__since":                             since,
		"0__0__person__dna_seq":                          "AGCT",
		"0__0__person__surname":                          "Curie",
		"0__0__person__given_name":                       "Marie",
		"0__0__person__dob":                              "1867-11-07",
	}
}

func TestHydrate(t *testing.T) {
	s, _ := setupFixture(t)

	rs, err := s.Hydrate([]map[string]any{homeRow(7, "1895"), homeRow(8, "1906")}, "Person -> (LivesIn) -> Home")
	require.NoError(t, err)
	assert.Equal(t, 2, rs.Len())
	assert.Equal(t, "Person -> (LivesIn) -> Home", rs.Chain())

	row := rs.Row(0)
	assert.Equal(t, 3, row.Len())
	assert.Equal(t, []RowKey{{Alias: AnchorAlias}, {Alias: "LivesIn"}}, row.EntityKeys())
	assert.Equal(t, []RowKey{{Alias: "LivesIn"}}, row.RelationshipKeys())

	home, err := row.Entity("LivesIn")
	require.NoError(t, err)
	assert.Equal(t, "Home", home.Type().Name())
	id, ok := home.ID()
	require.True(t, ok)
	assert.Equal(t, int64(7), id)
	ancID, ok := home.AncestorID("Building")
	require.True(t, ok)
	assert.Equal(t, int64(107), ancID)
	addr, ok := home.Get("address")
	require.True(t, ok)
	assert.Equal(t, "1 Main St", addr)
	altered, ok := home.Get("altered")
	assert.True(t, ok)
	assert.Nil(t, altered)
	assert.True(t, home.Loaded("Home"))
	assert.True(t, home.Loaded("Building"))
	assert.False(t, home.Loaded("Recorded"))

	rel, err := row.Relationship("LivesIn", 0)
	require.NoError(t, err)
	assert.Equal(t, "LivesIn", rel.Type().Name())
	since, _ := rel.Get("since")
	assert.Equal(t, "1895", since)

	anchor, err := row.Anchor()
	require.NoError(t, err)
	assert.Equal(t, "Person", anchor.Type().Name())
	assert.Equal(t, "Person{dna_seq: AGCT, surname: Curie, given_name: Marie}", anchor.String())

	anchors := rs.Anchored()
	require.Len(t, anchors, 2)
	assert.True(t, anchors[0].Equal(anchors[1]), "both rows hold the same person")

	homes, err := rs.ByType("Home")
	require.NoError(t, err)
	require.Len(t, homes, 2)
	assert.False(t, homes[0].Equal(homes[1]))

	var seen []int
	for i, r := range rs.Rows() {
		seen = append(seen, i)
		assert.Same(t, rs.Row(i), r)
	}
	assert.Equal(t, []int{0, 1}, seen)
	seen = nil
	for i := range rs.Rows() {
		seen = append(seen, i)
	}
	assert.Equal(t, []int{0, 1}, seen, "a result set can be iterated again")
}

func TestHydrate_Lookups(t *testing.T) {
	s, _ := setupFixture(t)

	rs, err := s.Hydrate([]map[string]any{{
		"0__0__person__dna_seq":          "A",
		"0__0__person__surname":          "Curie",
		"0__0__person__given_name":       "Pierre",
		"partner__0__person__dna_seq":    "B",
		"partner__0__person__surname":    "Curie",
		"partner__0__person__given_name": "Marie",
		"partner__1__person__dna_seq":    "C",
	}}, "")
	require.NoError(t, err)
	row := rs.Row(0)

	p, err := row.EntityAt("Partner", 1)
	require.NoError(t, err)
	dna, _ := p.Get("dna_seq")
	assert.Equal(t, "C", dna)

	_, err = row.ByType("Person")
	var ae *AmbiguousLookupError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, []string{"0[0]", "Partner[0]", "Partner[1]"}, ae.Aliases)

	_, err = row.ByType("Office")
	var nf *NotFoundError
	assert.ErrorAs(t, err, &nf)

	_, err = row.Entity("Employer")
	assert.ErrorAs(t, err, &nf)
	_, err = row.Relationship("LivesIn", 0)
	assert.ErrorAs(t, err, &nf)

	_, err = rs.ByType("Person")
	assert.ErrorAs(t, err, &ae)
}

func TestHydrate_Empty(t *testing.T) {
	s, _ := setupFixture(t)

	rs, err := s.Hydrate(nil, "Person")
	require.NoError(t, err)
	assert.Zero(t, rs.Len())
	assert.Empty(t, rs.Anchored())
}

func TestHydrate_Errors(t *testing.T) {
	s, _ := setupFixture(t)

	tests := []struct {
		name   string
		column string
		check  func(t *testing.T, err error)
	}{
		{"five parts", "a__0__person__b__c", func(t *testing.T, err error) {
			var me *MalformedRowError
			require.ErrorAs(t, err, &me)
			assert.Equal(t, "a__0__person__b__c", me.Column)
		}},
		{"two parts", "person__dob", func(t *testing.T, err error) {
			var me *MalformedRowError
			assert.ErrorAs(t, err, &me)
		}},
		{"bad occurrence", "0__x__person__dob", func(t *testing.T, err error) {
			var me *MalformedRowError
			assert.ErrorAs(t, err, &me)
		}},
		{"missing inherits marker", "0__0__office__parent__building__id", func(t *testing.T, err error) {
			var me *MalformedRowError
			assert.ErrorAs(t, err, &me)
		}},
		{"unresolved entity", "0__0__job__id", func(t *testing.T, err error) {
			var ue *UnresolvedEntityError
			require.ErrorAs(t, err, &ue)
			assert.Equal(t, "Job", ue.Name)
		}},
		{"unresolved relationship", "partner__0__since", func(t *testing.T, err error) {
			var ue *UnresolvedRelationshipError
			require.ErrorAs(t, err, &ue)
			assert.Equal(t, "Partner", ue.Name)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Hydrate([]map[string]any{{tt.column: "x"}}, "")
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}

func TestInstance(t *testing.T) {
	c := fixtureCatalog()
	person, _ := c.Lookup("Person")
	office, _ := c.Lookup("Office")

	p1, err := NewInstance(person, map[string]any{"dna_seq": "A", "surname": "Curie", "given_name": "Marie", "dob": "1867"})
	require.NoError(t, err)
	p2, err := NewInstance(person, map[string]any{"dna_seq": "A", "surname": "Curie", "given_name": "Marie"})
	require.NoError(t, err)
	assert.True(t, p1.Equal(p2), "equality is by key values")
	assert.False(t, p1.Loaded("Person"))

	keys, err := p1.KeyValues()
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"dna_seq": "A", "surname": "Curie", "given_name": "Marie"}, keys)

	vals := p1.Values()
	vals["dob"] = "changed"
	dob, _ := p1.Get("dob")
	assert.Equal(t, "1867", dob)

	partial, err := NewInstance(person, map[string]any{"surname": "Curie"})
	require.NoError(t, err)
	_, err = partial.KeyValues()
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.False(t, partial.Equal(p1))
	assert.Equal(t, "Person{}", partial.String())

	_, err = NewInstance(person, map[string]any{"id": 1})
	assert.ErrorIs(t, err, ErrInvalidInput, "Person is not keyed by the synthetic identity")

	o1, err := NewInstance(office, map[string]any{"id": int64(1), "address": "x"})
	require.NoError(t, err)
	o2 := NewEmptyInstance(office)
	assert.False(t, o1.Equal(o2))
	assert.False(t, o1.Equal(p1))
	assert.False(t, o1.Equal(nil))
	var none *Instance
	assert.True(t, none.Equal(nil))
}
