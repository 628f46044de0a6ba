package orm

import (
	"bytes"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func officeRequest(dna string) []Destination {
	return []Destination{
		{Entity: "Person", Input: map[string]any{"dna_seq": dna}},
		{Entity: "Office", Output: true},
	}
}

func TestShapeHash(t *testing.T) {
	a, err := ShapeHash(officeRequest("AGCT"), "")
	require.NoError(t, err)
	b, err := ShapeHash(officeRequest("TTTT"), "")
	require.NoError(t, err)
	assert.Equal(t, a, b, "values do not take part in the hash")
	assert.Len(t, a, 16)

	c, err := ShapeHash([]Destination{
		{Entity: "Person", Input: map[string]any{"surname": "x"}},
		{Entity: "Office", Output: true},
	}, "")
	require.NoError(t, err)
	assert.NotEqual(t, a, c, "input property names take part in the hash")

	d, err := ShapeHash(officeRequest("AGCT"), "Person -> (EmployedBy) -> Employer -> (Owns) -> Office")
	require.NoError(t, err)
	assert.NotEqual(t, a, d, "the chain takes part in the hash")

	e, err := ShapeHash([]Destination{
		{Entity: "Person", Input: map[string]any{"dna_seq": "AGCT"}, Output: true},
		{Entity: "Office", Output: true},
	}, "")
	require.NoError(t, err)
	assert.NotEqual(t, a, e, "output flags take part in the hash")
}

func TestShapeHash_TailOrder(t *testing.T) {
	x, err := ShapeHash([]Destination{
		{Entity: "Person"},
		{Entity: "Home", Output: true},
		{Entity: "Employer", Input: map[string]any{"name": "Acme"}},
	}, "")
	require.NoError(t, err)
	y, err := ShapeHash([]Destination{
		{Entity: "Person"},
		{Entity: "Employer", Input: map[string]any{"name": "Globex"}},
		{Entity: "Home", Output: true},
	}, "")
	require.NoError(t, err)
	assert.Equal(t, x, y)

	z, err := ShapeHash([]Destination{
		{Entity: "Home"},
		{Entity: "Person", Output: true},
	}, "")
	require.NoError(t, err)
	w, err := ShapeHash([]Destination{
		{Entity: "Person"},
		{Entity: "Home", Output: true},
	}, "")
	require.NoError(t, err)
	assert.NotEqual(t, z, w, "the anchor is never reordered")
}

func TestCanonicalize(t *testing.T) {
	in := []Destination{
		{Entity: "Person"},
		{Entity: "Person", Alias: "Partner", Output: true},
		{Entity: "Home", Output: true},
		{Entity: "Person", Alias: "EmployeeOf"},
	}
	got := canonicalize(in)
	want := []string{"Person", "Home", "Person/EmployeeOf", "Person/Partner"}
	var names []string
	for _, d := range got {
		n := d.Entity
		if d.Alias != "" {
			n += "/" + d.Alias
		}
		names = append(names, n)
	}
	if diff := cmp.Diff(want, names); diff != "" {
		t.Errorf("canonical order mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, "Partner", in[1].Alias, "the input is not reordered")
}

func TestPrepare_Caches(t *testing.T) {
	s, _ := setupFixture(t)

	t1, v1, err := s.Prepare(officeRequest("AGCT"), "")
	require.NoError(t, err)
	t2, v2, err := s.Prepare(officeRequest("TTTT"), "")
	require.NoError(t, err)

	assert.Same(t, t1, t2)
	assert.NotEmpty(t, t1.Hash)
	assert.Equal(t, map[string]any{"i0_person_dna_seq": "AGCT"}, v1)
	assert.Equal(t, map[string]any{"i0_person_dna_seq": "TTTT"}, v2)
	assert.Equal(t, 1, s.Cache().Len())

	hits, misses := s.Cache().Stats()
	assert.Equal(t, int64(1), hits)
	assert.Equal(t, int64(1), misses)

	cached, ok := s.Cache().Get(t1.Hash)
	require.True(t, ok)
	assert.Same(t, t1, cached)
}

func TestPrepare_ErrorsAreNotCached(t *testing.T) {
	s, _ := setupFixture(t)

	_, _, err := s.Prepare([]Destination{{Entity: "Person"}, {Entity: "Partner", Output: true}}, "")
	assert.ErrorIs(t, err, ErrNoRoute)
	assert.Zero(t, s.Cache().Len())
}

func TestPrepare_Concurrent(t *testing.T) {
	s, _ := setupFixture(t)

	var wg sync.WaitGroup
	templates := make([]*Template, 16)
	for i := range templates {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tmpl, _, err := s.Prepare(officeRequest("AGCT"), "")
			assert.NoError(t, err)
			templates[i] = tmpl
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, s.Cache().Len())
	for _, tmpl := range templates[1:] {
		assert.Equal(t, mustSQL(t, templates[0]), mustSQL(t, tmpl))
	}
}

func TestCache_SaveLoad(t *testing.T) {
	s, _ := setupFixture(t)

	for _, dests := range [][]Destination{
		officeRequest("AGCT"),
		{{Entity: "Person"}, {Entity: "LivesIn", Output: true}},
		{{Entity: "Home", Output: true, Input: map[string]any{"id": 1}}},
	} {
		_, _, err := s.Prepare(dests, "")
		require.NoError(t, err)
	}
	require.Equal(t, 3, s.Cache().Len())

	var buf bytes.Buffer
	require.NoError(t, s.Cache().Save(&buf))

	restored := NewCache()
	require.NoError(t, restored.Load(bytes.NewReader(buf.Bytes())))
	assert.Equal(t, 3, restored.Len())

	s.Cache().entries.Range(func(k, v any) bool {
		orig := v.(*Template)
		got, ok := restored.Get(k.(string))
		require.True(t, ok)
		assert.Equal(t, mustSQL(t, orig), mustSQL(t, got))
		assert.Equal(t, orig.Chain, got.Chain)
		assert.Equal(t, orig.Placeholders, got.Placeholders)
		return true
	})
}

func TestCache_LoadErrors(t *testing.T) {
	c := NewCache()
	assert.Error(t, c.Load(bytes.NewReader([]byte{0xc1})))
}
