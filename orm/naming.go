package orm

import (
	"regexp"
	"strings"
	"unicode"
)

const (
	// DefaultName is the schema name used when none is given. It is not a
	// valid user-supplied name.
	DefaultName = "-"
	// InheritsRelationship is reserved for ancestor-table links.
	InheritsRelationship = "Inherits"
	// AnchorAlias is the alias of the first destination of a request.
	AnchorAlias = "0"
	// IDProperty is the synthetic identity property used as the default key.
	IDProperty = "id"

	delimiter = "__"
)

var (
	classNameRe    = regexp.MustCompile(`^[A-Z][A-Za-z0-9]*$`)
	propertyNameRe = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)
	tableNameRe    = regexp.MustCompile(`^[a-z][a-z0-9]*(_[a-z][a-z0-9]*)*$`)
	schemaNameRe   = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_]*$`)
)

// ValidateClassName checks an entity or relationship name.
func ValidateClassName(name string) error {
	if !classNameRe.MatchString(name) {
		return &InvalidNameError{Name: name, Context: "class"}
	}
	return nil
}

// ValidatePropertyName checks a property name. The doubled underscore is
// the column delimiter and is never allowed inside a name.
func ValidatePropertyName(name string) error {
	if !propertyNameRe.MatchString(name) || strings.Contains(name, delimiter) {
		return &InvalidNameError{Name: name, Context: "property"}
	}
	return nil
}

// ValidateSchemaName checks a user-supplied schema name.
func ValidateSchemaName(name string) error {
	if !schemaNameRe.MatchString(name) {
		return &InvalidNameError{Name: name, Context: "schema"}
	}
	return nil
}

// ClassToDBName converts a CamelCase class name to its table name. Every
// upper-case letter starts a new word: BaseReport becomes base_report.
func ClassToDBName(name string) (string, error) {
	if err := ValidateClassName(name); err != nil {
		return "", err
	}
	var b strings.Builder
	for i, r := range name {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('_')
			}
			r = unicode.ToLower(r)
		}
		b.WriteRune(r)
	}
	return b.String(), nil
}

// DBToClassName converts a table name back to its class name.
func DBToClassName(table string) (string, error) {
	if !tableNameRe.MatchString(table) {
		return "", &InvalidNameError{Name: table, Context: "table"}
	}
	var b strings.Builder
	for _, word := range strings.Split(table, "_") {
		b.WriteString(strings.ToUpper(word[:1]))
		b.WriteString(word[1:])
	}
	return b.String(), nil
}

// PropertyToDBName maps a property to its column name.
func PropertyToDBName(name string) (string, error) {
	if err := ValidatePropertyName(name); err != nil {
		return "", err
	}
	return name, nil
}

// DBToPropertyName maps a column name back to its property name.
func DBToPropertyName(column string) (string, error) {
	return PropertyToDBName(column)
}

// mustTable is ClassToDBName for names already validated at declaration or
// setup time.
func mustTable(name string) string {
	t, err := ClassToDBName(name)
	if err != nil {
		panic(err)
	}
	return t
}
