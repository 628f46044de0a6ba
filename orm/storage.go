package orm

import (
	"sort"
)

// Link is a relationship whose reference is stored on a table.
type Link struct {
	Relationship string
	Output       string
	// KeyColumns reference the output's keys: <relationship>__key__<k>.
	KeyColumns []string
	// VarColumns hold an instantiable relationship's properties:
	// <relationship>__var__<p>.
	VarColumns []string
}

// StorageObject describes one table of the schema.
type StorageObject struct {
	Name  string
	Table string
	// Declared is false for names with no type declaration, which exist
	// only to store links.
	Declared bool
	Keys     []string
	// Columns are the table's own property columns, the synthetic identity
	// first when it is the key.
	Columns []string
	// Parent is the nearest concrete ancestor, or empty.
	Parent string
	// ParentColumns reference the parent's keys: inherits__key__<k>.
	ParentColumns []string
	Links         []Link
}

// StorageObjects lists the tables the schema reads: every rule endpoint and
// every concrete ancestor of one, sorted by table name.
func (s *Schema) StorageObjects() []StorageObject {
	objs := make(map[string]*StorageObject)
	var add func(name string)
	add = func(name string) {
		if _, ok := objs[name]; ok {
			return
		}
		obj := &StorageObject{Name: name, Table: mustTable(name), Keys: []string{IDProperty}, Columns: []string{IDProperty}}
		if info, ok := s.types[name]; ok {
			obj.Declared = true
			obj.Keys = info.Keys()
			obj.Columns = info.columns()
			if p := info.NearestConcreteAncestor(); p != nil {
				obj.Parent = p.Name()
				for _, k := range p.keys {
					obj.ParentColumns = append(obj.ParentColumns, relColumn(InheritsRelationship, "key", k))
				}
				defer add(p.Name())
			}
		}
		objs[name] = obj
	}
	for _, r := range s.rules {
		add(r.Input)
		add(r.Output)
	}

	for _, r := range s.rules {
		link := Link{Relationship: r.Relationship, Output: r.Output}
		for _, k := range s.keysOf(r.Output) {
			link.KeyColumns = append(link.KeyColumns, relColumn(r.Relationship, "key", k))
		}
		if info, ok := s.irels[r.Relationship]; ok {
			for _, p := range info.allProps {
				link.VarColumns = append(link.VarColumns, relColumn(r.Relationship, "var", p))
			}
		}
		objs[r.Input].Links = append(objs[r.Input].Links, link)
	}

	out := make([]StorageObject, 0, len(objs))
	for _, o := range objs {
		out = append(out, *o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Table < out[j].Table })
	return out
}
