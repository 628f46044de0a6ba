package orm

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedModel struct {
	BaseEntity `relmap:"type:Recorded,abstract"`
	Created    string `relmap:"created"`
	Altered    string `relmap:"altered"`
}

type buildingModel struct {
	BaseEntity `relmap:"type:Building,extends:Recorded"`
	ID         int64  `relmap:"id"`
	Address    string `relmap:"address"`
	Notes      string
	internal   string
}

type Employer struct {
	BaseEntity
	Name string `relmap:"name,key"`
	Size int    `relmap:"size"`
}

type livesInModel struct {
	BaseRelationship `relmap:"type:LivesIn"`
	Since            string `relmap:"since"`
}

func TestParseTag(t *testing.T) {
	tests := []struct {
		tag  string
		want FieldTag
	}{
		{"", FieldTag{Skip: true}},
		{"-", FieldTag{Skip: true}},
		{"name", FieldTag{Name: "name"}},
		{"name,key", FieldTag{Name: "name", Key: true}},
		{" name , key ", FieldTag{Name: "name", Key: true}},
	}
	for _, tt := range tests {
		t.Run(tt.tag, func(t *testing.T) {
			got, err := ParseTag(tt.tag)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseTag("name,unique")
	assert.ErrorContains(t, err, "unknown tag option")
}

func TestParseTypeTag(t *testing.T) {
	tt, err := ParseTypeTag("abstract, extends:Recorded,type:Shed")
	require.NoError(t, err)
	assert.Equal(t, TypeTag{TypeName: "Shed", Parent: "Recorded", Abstract: true}, tt)

	_, err = ParseTypeTag("sealed")
	assert.Error(t, err)
}

func TestDescriptorOf(t *testing.T) {
	d, err := DescriptorOf[buildingModel]()
	require.NoError(t, err)
	assert.Equal(t, TypeDescriptor{
		Name:       "Building",
		Kind:       KindEntity,
		Parent:     "Recorded",
		Properties: []string{"address"},
	}, d)

	d, err = DescriptorOf[*Employer]()
	require.NoError(t, err)
	assert.Equal(t, "Employer", d.Name)
	assert.Equal(t, []string{"name", "size"}, d.Properties)
	assert.Equal(t, []string{"name"}, d.Keys)

	d, err = DescriptorOf[livesInModel]()
	require.NoError(t, err)
	assert.Equal(t, KindRelationship, d.Kind)
	assert.Equal(t, "LivesIn", d.Name)

	_, err = DescriptorOf[struct{ Name string }]()
	assert.ErrorContains(t, err, "must embed")
	_, err = DescriptorOf[int]()
	assert.ErrorContains(t, err, "expected struct")
}

func TestDeclareStruct(t *testing.T) {
	c := NewCatalog()
	require.NoError(t, DeclareStruct[recordedModel](c))
	require.NoError(t, DeclareStruct[buildingModel](c))
	require.NoError(t, DeclareStruct[Employer](c))

	b, ok := c.Lookup("Building")
	require.True(t, ok)
	assert.Equal(t, []string{"address", "created", "altered"}, b.TableProperties())
	assert.Equal(t, []string{IDProperty}, b.Keys())

	e, ok := c.Lookup("Employer")
	require.True(t, ok)
	assert.Equal(t, []string{"name"}, e.Keys())
}

type buildingView struct {
	ID      int64     `relmap:"id"`
	Address string    `relmap:"address"`
	Created time.Time `relmap:"created"`
	Altered *string   `relmap:"altered"`
	Floors  int       `relmap:"floors"`
	Rating  float32   `relmap:"rating"`
}

func TestDecode(t *testing.T) {
	c := fixtureCatalog()
	building, _ := c.Lookup("Building")
	inst, err := NewInstance(building, map[string]any{
		"id":      []byte("3"),
		"address": "1 Main St",
		"created": "2024-01-02",
		"altered": "2024-03-04 05:06:07",
	})
	require.NoError(t, err)

	got, err := Decode[buildingView](inst)
	require.NoError(t, err)
	assert.Equal(t, int64(3), got.ID)
	assert.Equal(t, "1 Main St", got.Address)
	assert.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), got.Created)
	require.NotNil(t, got.Altered)
	assert.Equal(t, "2024-03-04 05:06:07", *got.Altered)
	assert.Zero(t, got.Floors)
}

func TestDecode_Errors(t *testing.T) {
	c := fixtureCatalog()
	building, _ := c.Lookup("Building")

	inst, err := NewInstance(building, map[string]any{"created": "yesterday"})
	require.NoError(t, err)
	_, err = Decode[buildingView](inst)
	assert.ErrorContains(t, err, "cannot parse time")

	inst, err = NewInstance(building, map[string]any{"id": "three"})
	require.NoError(t, err)
	_, err = Decode[buildingView](inst)
	assert.ErrorContains(t, err, "cannot coerce")

	_, err = Decode[int](inst)
	assert.ErrorContains(t, err, "must be a struct")
}
