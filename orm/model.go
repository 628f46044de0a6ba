package orm

import (
	"fmt"
	"slices"
)

// Kind specifies whether a declared type is an entity or a relationship.
type Kind int

const (
	// KindEntity is an entity type stored in its own table chain.
	KindEntity Kind = iota
	// KindRelationship is a relationship type whose properties are stored on
	// the input side of the rule that names it.
	KindRelationship
)

func (k Kind) String() string {
	if k == KindRelationship {
		return "relationship"
	}
	return "entity"
}

// TypeDescriptor declares one user type. It is the load-time replacement for
// discovering properties on live classes.
type TypeDescriptor struct {
	// Name is the CamelCase type name.
	Name string
	// Kind is KindEntity or KindRelationship.
	Kind Kind
	// Abstract types own no table. Their properties are merged into the
	// nearest concrete descendant.
	Abstract bool
	// Parent is the ancestor type name, or empty.
	Parent string
	// Properties are declared directly on this level.
	Properties []string
	// Keys overrides the default key of [IDProperty]. It is not inherited.
	Keys []string
}

// TypeInfo is the resolved, immutable metadata for a declared type. The
// ancestor chain and merged property lists are computed once at declaration.
type TypeInfo struct {
	desc      TypeDescriptor
	table     string
	parent    *TypeInfo
	tableProp []string
	allProps  []string
	ancestors []*TypeInfo
	keys      []string
}

func newTypeInfo(d TypeDescriptor, parent *TypeInfo) (*TypeInfo, error) {
	if err := ValidateClassName(d.Name); err != nil {
		return nil, err
	}
	if d.Name == InheritsRelationship {
		return nil, fmt.Errorf("%s is a reserved name", InheritsRelationship)
	}
	if parent != nil && parent.desc.Kind != d.Kind {
		return nil, fmt.Errorf("%s %s cannot extend %s %s", d.Kind, d.Name, parent.desc.Kind, parent.desc.Name)
	}

	info := &TypeInfo{
		desc:   d,
		table:  mustTable(d.Name),
		parent: parent,
	}
	info.desc.Properties = slices.Clone(d.Properties)
	info.desc.Keys = slices.Clone(d.Keys)

	seen := make(map[string]bool)
	for _, p := range d.Properties {
		if err := ValidatePropertyName(p); err != nil {
			return nil, err
		}
		if p == IDProperty {
			return nil, fmt.Errorf("%s: property %q is reserved", d.Name, IDProperty)
		}
		if seen[p] {
			return nil, fmt.Errorf("%s: property %q declared twice", d.Name, p)
		}
		seen[p] = true
	}

	// Table properties: own, then those of consecutive abstract ancestors.
	info.tableProp = slices.Clone(d.Properties)
	anc := parent
	for anc != nil && anc.desc.Abstract {
		info.tableProp = append(info.tableProp, anc.desc.Properties...)
		anc = anc.parent
	}
	for ; anc != nil; anc = anc.parent {
		if !anc.desc.Abstract {
			info.ancestors = append(info.ancestors, anc)
		}
	}

	info.allProps = slices.Clone(d.Properties)
	for a := parent; a != nil; a = a.parent {
		info.allProps = append(info.allProps, a.desc.Properties...)
	}
	dup := make(map[string]bool)
	for _, p := range info.allProps {
		if dup[p] {
			return nil, fmt.Errorf("%s: property %q is declared by more than one level", d.Name, p)
		}
		dup[p] = true
	}

	if len(d.Keys) == 0 {
		info.keys = []string{IDProperty}
	} else {
		for _, k := range d.Keys {
			if !slices.Contains(info.tableProp, k) {
				return nil, fmt.Errorf("%s: key %q is not one of its own properties", d.Name, k)
			}
		}
		info.keys = slices.Clone(d.Keys)
	}
	return info, nil
}

// Name returns the type name.
func (t *TypeInfo) Name() string { return t.desc.Name }

// Kind returns the type kind.
func (t *TypeInfo) Kind() Kind { return t.desc.Kind }

// Table returns the storage table name.
func (t *TypeInfo) Table() string { return t.table }

// Concrete reports whether the type owns a table.
func (t *TypeInfo) Concrete() bool { return !t.desc.Abstract }

// Parent returns the ancestor type, or nil.
func (t *TypeInfo) Parent() *TypeInfo { return t.parent }

// Descriptor returns a copy of the declaration.
func (t *TypeInfo) Descriptor() TypeDescriptor {
	d := t.desc
	d.Properties = slices.Clone(d.Properties)
	d.Keys = slices.Clone(d.Keys)
	return d
}

// Keys returns the key properties: the explicit override or [IDProperty].
func (t *TypeInfo) Keys() []string { return slices.Clone(t.keys) }

// TableProperties returns the properties stored in this type's own table:
// its own, then those of consecutive abstract ancestors.
func (t *TypeInfo) TableProperties() []string { return slices.Clone(t.tableProp) }

// AllProperties returns the properties of the full ancestor chain.
func (t *TypeInfo) AllProperties() []string { return slices.Clone(t.allProps) }

// ConcreteAncestors returns the ancestors that own a table, nearest first.
func (t *TypeInfo) ConcreteAncestors() []*TypeInfo { return slices.Clone(t.ancestors) }

// NearestConcreteAncestor returns the closest table-owning ancestor, or nil.
func (t *TypeInfo) NearestConcreteAncestor() *TypeInfo {
	if len(t.ancestors) == 0 {
		return nil
	}
	return t.ancestors[0]
}

// defaultKeyed reports whether the type is keyed by the synthetic identity.
func (t *TypeInfo) defaultKeyed() bool {
	return len(t.keys) == 1 && t.keys[0] == IDProperty
}

// columns returns the columns selected from the type's own table.
func (t *TypeInfo) columns() []string {
	if t.defaultKeyed() {
		return append([]string{IDProperty}, t.tableProp...)
	}
	return slices.Clone(t.tableProp)
}

// inputColumns is the set of properties a filter may name.
func (t *TypeInfo) inputColumns() []string {
	if t.desc.Kind == KindRelationship {
		return t.allProps
	}
	return t.columns()
}

// Is reports whether t is name or descends from it.
func (t *TypeInfo) Is(name string) bool {
	for a := t; a != nil; a = a.parent {
		if a.desc.Name == name {
			return true
		}
	}
	return false
}
