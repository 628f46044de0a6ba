package orm

import (
	"fmt"
	"slices"
	"sort"
	"sync"

	"github.com/CaliLuke/go-relmap/ruledsl"
)

var defaultCatalog = NewCatalog()

// Catalog holds declared entity and relationship types by name. A type's
// parent must be declared before the type itself.
type Catalog struct {
	mu     sync.RWMutex
	byName map[string]*TypeInfo
}

// NewCatalog returns an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{byName: make(map[string]*TypeInfo)}
}

// DefaultCatalog returns the process-wide catalog used by Declare and by
// Setup when no WithCatalog option is given.
func DefaultCatalog() *Catalog {
	return defaultCatalog
}

// Declare adds a type to the default catalog.
func Declare(d TypeDescriptor) error {
	return defaultCatalog.Declare(d)
}

// MustDeclare is a helper that calls Declare and panics if an error occurs.
// It is intended for use during application initialization.
func MustDeclare(d TypeDescriptor) {
	if err := Declare(d); err != nil {
		panic(err)
	}
}

// Declare adds a type. Re-declaring an identical descriptor is a no-op.
func (c *Catalog) Declare(d TypeDescriptor) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var parent *TypeInfo
	if d.Parent != "" {
		p, ok := c.byName[d.Parent]
		if !ok {
			return fmt.Errorf("declaring %s: parent %q is not declared", d.Name, d.Parent)
		}
		parent = p
	}
	info, err := newTypeInfo(d, parent)
	if err != nil {
		return fmt.Errorf("declaring %s: %w", d.Name, err)
	}
	if existing, ok := c.byName[d.Name]; ok {
		if !sameDescriptor(existing.desc, info.desc) {
			return fmt.Errorf("declaring %s: already declared with a different shape", d.Name)
		}
		return nil
	}
	c.byName[d.Name] = info
	return nil
}

// MustDeclare calls Declare and panics on error.
func (c *Catalog) MustDeclare(d TypeDescriptor) {
	if err := c.Declare(d); err != nil {
		panic(err)
	}
}

// DeclareDocument declares every type of a YAML schema document in order.
func (c *Catalog) DeclareDocument(doc *ruledsl.Document) error {
	for _, t := range doc.Types {
		d := TypeDescriptor{
			Name:       t.Name,
			Abstract:   t.Abstract,
			Parent:     t.Extends,
			Properties: t.Properties,
			Keys:       t.Keys,
		}
		if t.Kind == "relationship" {
			d.Kind = KindRelationship
		}
		if err := c.Declare(d); err != nil {
			return err
		}
	}
	return nil
}

// Lookup retrieves a declared type by name.
func (c *Catalog) Lookup(name string) (*TypeInfo, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	info, ok := c.byName[name]
	return info, ok
}

// Types returns every declared type sorted by name.
func (c *Catalog) Types() []*TypeInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*TypeInfo, 0, len(c.byName))
	for _, info := range c.byName {
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].desc.Name < out[j].desc.Name })
	return out
}

// Clear removes every declared type. This is primarily used for testing.
func (c *Catalog) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byName = make(map[string]*TypeInfo)
}

// snapshot copies the name index so a schema keeps a stable view of the
// types it was set up with.
func (c *Catalog) snapshot() map[string]*TypeInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]*TypeInfo, len(c.byName))
	for k, v := range c.byName {
		out[k] = v
	}
	return out
}

func sameDescriptor(a, b TypeDescriptor) bool {
	return a.Name == b.Name && a.Kind == b.Kind && a.Abstract == b.Abstract &&
		a.Parent == b.Parent && slices.Equal(a.Properties, b.Properties) && slices.Equal(a.Keys, b.Keys)
}
