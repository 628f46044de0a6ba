package orm

import (
	"fmt"
	"reflect"
	"strings"
)

// BaseEntity is embedded in a Go struct to declare an entity type from its
// `relmap` tags. Type options go on the embedded field's tag:
//
//	type Building struct {
//	    orm.BaseEntity `relmap:"extends:Recorded"`
//	    Address string `relmap:"address"`
//	}
type BaseEntity struct{}

// BaseRelationship is the relationship counterpart of BaseEntity.
type BaseRelationship struct{}

// FieldTag contains the structured representation of a parsed `relmap`
// field tag.
type FieldTag struct {
	// Name is the property name.
	Name string
	// Key adds the property to the type's key override.
	Key bool
	// Skip indicates the field should be ignored.
	Skip bool
}

// TypeTag contains the options of the tag on an embedded base field.
type TypeTag struct {
	// TypeName overrides the Go struct name.
	TypeName string
	// Parent names the ancestor type.
	Parent   string
	Abstract bool
}

// ParseTag parses a `relmap` field tag: "name", "name,key" or "-".
func ParseTag(tag string) (FieldTag, error) {
	if tag == "" || tag == "-" {
		return FieldTag{Skip: true}, nil
	}
	parts := strings.Split(tag, ",")
	ft := FieldTag{Name: strings.TrimSpace(parts[0])}
	for _, part := range parts[1:] {
		switch part = strings.TrimSpace(part); part {
		case "key":
			ft.Key = true
		case "":
		default:
			return FieldTag{}, fmt.Errorf("unknown tag option: %q", part)
		}
	}
	return ft, nil
}

// ParseTypeTag parses the tag of an embedded base field:
// "type:Name,extends:Parent,abstract" in any order.
func ParseTypeTag(tag string) (TypeTag, error) {
	var tt TypeTag
	for _, part := range strings.Split(tag, ",") {
		part = strings.TrimSpace(part)
		switch {
		case part == "":
		case part == "abstract":
			tt.Abstract = true
		case strings.HasPrefix(part, "type:"):
			tt.TypeName = strings.TrimPrefix(part, "type:")
		case strings.HasPrefix(part, "extends:"):
			tt.Parent = strings.TrimPrefix(part, "extends:")
		default:
			return TypeTag{}, fmt.Errorf("unknown type tag option: %q", part)
		}
	}
	return tt, nil
}

// DescriptorOf builds a TypeDescriptor from the struct type T. T must embed
// BaseEntity or BaseRelationship. A field tagged "id" maps the synthetic
// identity and is not declared as a property.
func DescriptorOf[T any]() (TypeDescriptor, error) {
	var zero T
	return descriptorOf(reflect.TypeOf(zero))
}

func descriptorOf(t reflect.Type) (TypeDescriptor, error) {
	if t == nil {
		return TypeDescriptor{}, fmt.Errorf("expected struct, got nil")
	}
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return TypeDescriptor{}, fmt.Errorf("expected struct, got %s", t.Kind())
	}

	d := TypeDescriptor{Name: t.Name()}
	based := false
	for field := range t.Fields() {
		if field.Anonymous {
			switch field.Type {
			case reflect.TypeOf(BaseEntity{}):
				d.Kind = KindEntity
			case reflect.TypeOf(BaseRelationship{}):
				d.Kind = KindRelationship
			default:
				continue
			}
			based = true
			tt, err := ParseTypeTag(field.Tag.Get("relmap"))
			if err != nil {
				return TypeDescriptor{}, fmt.Errorf("%s: %w", t.Name(), err)
			}
			if tt.TypeName != "" {
				d.Name = tt.TypeName
			}
			d.Parent = tt.Parent
			d.Abstract = tt.Abstract
			continue
		}
		if !field.IsExported() {
			continue
		}
		tag, err := ParseTag(field.Tag.Get("relmap"))
		if err != nil {
			return TypeDescriptor{}, fmt.Errorf("field %s: %w", field.Name, err)
		}
		if tag.Skip || tag.Name == IDProperty {
			continue
		}
		d.Properties = append(d.Properties, tag.Name)
		if tag.Key {
			d.Keys = append(d.Keys, tag.Name)
		}
	}
	if !based {
		return TypeDescriptor{}, fmt.Errorf("type %s must embed BaseEntity or BaseRelationship", t.Name())
	}
	return d, nil
}

// DeclareStruct declares T in c from its `relmap` tags.
func DeclareStruct[T any](c *Catalog) error {
	d, err := DescriptorOf[T]()
	if err != nil {
		return err
	}
	return c.Declare(d)
}
