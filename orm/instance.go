package orm

import (
	"fmt"
	"maps"
	"reflect"
	"slices"
	"strings"
)

// Instance is one entity or relationship value. Instances built from result
// rows are marked loaded at every concrete level of their type.
type Instance struct {
	typ         *TypeInfo
	values      map[string]any
	ancestorIDs map[string]any
	loaded      map[string]bool
}

// NewInstance builds an unsaved instance from literal property values.
// Every property must belong to the type's ancestor chain; the synthetic
// identity is allowed for default-keyed types.
func NewInstance(t *TypeInfo, values map[string]any) (*Instance, error) {
	allowed := t.AllProperties()
	if t.defaultKeyed() {
		allowed = append(allowed, IDProperty)
	}
	for p := range values {
		if !slices.Contains(allowed, p) {
			return nil, inputErrorf("property %q is not a member of %s", p, t.Name())
		}
	}
	inst := NewEmptyInstance(t)
	maps.Copy(inst.values, values)
	return inst, nil
}

// NewEmptyInstance builds an unsaved instance with no values.
func NewEmptyInstance(t *TypeInfo) *Instance {
	return &Instance{
		typ:         t,
		values:      make(map[string]any),
		ancestorIDs: make(map[string]any),
		loaded:      make(map[string]bool),
	}
}

// instanceFromRow builds a loaded instance from hydrated column values.
func instanceFromRow(t *TypeInfo, values, ancestorIDs map[string]any) *Instance {
	inst := &Instance{
		typ:         t,
		values:      values,
		ancestorIDs: ancestorIDs,
		loaded:      map[string]bool{t.Name(): true},
	}
	for _, anc := range t.ancestors {
		inst.loaded[anc.Name()] = true
	}
	return inst
}

// Type returns the instance's type.
func (i *Instance) Type() *TypeInfo { return i.typ }

// Get returns the value of property p.
func (i *Instance) Get(p string) (any, bool) {
	v, ok := i.values[p]
	return v, ok
}

// Values returns a copy of the property values.
func (i *Instance) Values() map[string]any {
	return maps.Clone(i.values)
}

// ID returns the synthetic identity, if loaded.
func (i *Instance) ID() (any, bool) {
	return i.Get(IDProperty)
}

// AncestorID returns the synthetic identity of the row in the table of the
// named concrete ancestor.
func (i *Instance) AncestorID(ancestor string) (any, bool) {
	v, ok := i.ancestorIDs[ancestor]
	return v, ok
}

// Loaded reports whether the level named by typeName was read from storage.
func (i *Instance) Loaded(typeName string) bool {
	return i.loaded[typeName]
}

// KeyValues returns the values of the type's key properties. It fails if any
// key is missing.
func (i *Instance) KeyValues() (map[string]any, error) {
	out := make(map[string]any, len(i.typ.keys))
	for _, k := range i.typ.keys {
		v, ok := i.values[k]
		if !ok {
			return nil, inputErrorf("%s instance has no value for key %q", i.typ.Name(), k)
		}
		out[k] = v
	}
	return out, nil
}

// Equal reports whether both instances have the same type and key values.
func (i *Instance) Equal(o *Instance) bool {
	if i == nil || o == nil {
		return i == o
	}
	if i.typ != o.typ {
		return false
	}
	a, errA := i.KeyValues()
	b, errB := o.KeyValues()
	if errA != nil || errB != nil {
		return false
	}
	return reflect.DeepEqual(a, b)
}

// String renders the type and key values.
func (i *Instance) String() string {
	keys, err := i.KeyValues()
	if err != nil {
		return i.typ.Name() + "{}"
	}
	parts := make([]string, len(i.typ.keys))
	for n, k := range i.typ.keys {
		parts[n] = fmt.Sprintf("%s: %v", k, keys[k])
	}
	return i.typ.Name() + "{" + strings.Join(parts, ", ") + "}"
}
