package ast

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// LiteralType is a formatting hint for a literal value.
type LiteralType int

const (
	// LiteralAuto infers the literal type from the Go value.
	LiteralAuto LiteralType = iota
	// LiteralNull always renders NULL.
	LiteralNull
	// LiteralString renders a quoted, escaped string.
	LiteralString
	// LiteralInt renders an integer.
	LiteralInt
	// LiteralFloat renders a floating point number.
	LiteralFloat
)

func (t LiteralType) String() string {
	switch t {
	case LiteralAuto:
		return "auto"
	case LiteralNull:
		return "null"
	case LiteralString:
		return "string"
	case LiteralInt:
		return "int"
	case LiteralFloat:
		return "float"
	default:
		return fmt.Sprintf("LiteralType(%d)", int(t))
	}
}

// ParseLiteralType maps the textual hints NULL, string, int and float
// (case-insensitive) to a LiteralType. The empty string is LiteralAuto.
func ParseLiteralType(s string) (LiteralType, error) {
	switch strings.ToLower(s) {
	case "", "auto":
		return LiteralAuto, nil
	case "null":
		return LiteralNull, nil
	case "string":
		return LiteralString, nil
	case "int":
		return LiteralInt, nil
	case "float":
		return LiteralFloat, nil
	default:
		return 0, fmt.Errorf("unrecognised literal type %q: valid types are NULL, string, int, float", s)
	}
}

// Formatter renders a Go value as an SQL literal.
type Formatter func(val any, hint LiteralType) (string, error)

// FormatLiteral is the ANSI formatter: NULL, single-quoted strings with
// doubled quotes, integers and floats. Pointers are dereferenced and a nil
// pointer renders NULL. A non-auto hint converts the value first.
func FormatLiteral(val any, hint LiteralType) (string, error) {
	val, err := CoerceLiteral(val, hint)
	if err != nil {
		return "", err
	}
	switch v := val.(type) {
	case nil:
		return "NULL", nil
	case string:
		return "'" + EscapeString(v) + "'", nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64), nil
	default:
		return "", fmt.Errorf("cannot format %T as an SQL literal", val)
	}
}

// EscapeString doubles single quotes for use inside an SQL string literal.
func EscapeString(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

// CoerceLiteral normalizes val to one of nil, string, int64 or float64
// according to hint. Dialect-specific formatters use it before quoting.
func CoerceLiteral(val any, hint LiteralType) (any, error) {
	val = deref(val)
	if hint == LiteralNull {
		return nil, nil
	}
	if val == nil {
		return nil, nil
	}

	var native any
	switch v := val.(type) {
	case string:
		native = v
	case []byte:
		native = string(v)
	case int:
		native = int64(v)
	case int8:
		native = int64(v)
	case int16:
		native = int64(v)
	case int32:
		native = int64(v)
	case int64:
		native = v
	case uint:
		native = int64(v)
	case uint8:
		native = int64(v)
	case uint16:
		native = int64(v)
	case uint32:
		native = int64(v)
	case uint64:
		native = int64(v)
	case float32:
		native = float64(v)
	case float64:
		native = v
	case time.Time:
		native = v.UTC().Format(time.RFC3339)
	default:
		return nil, fmt.Errorf("cannot insert values of type %T into the database", val)
	}

	switch hint {
	case LiteralAuto:
		return native, nil
	case LiteralString:
		return fmt.Sprint(native), nil
	case LiteralInt:
		switch n := native.(type) {
		case int64:
			return n, nil
		case float64:
			return int64(n), nil
		case string:
			i, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64)
			if err != nil {
				return nil, fmt.Errorf("cannot convert %q to int: %w", n, err)
			}
			return i, nil
		}
	case LiteralFloat:
		switch n := native.(type) {
		case int64:
			return float64(n), nil
		case float64:
			return n, nil
		case string:
			f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
			if err != nil {
				return nil, fmt.Errorf("cannot convert %q to float: %w", n, err)
			}
			return f, nil
		}
	}
	return nil, fmt.Errorf("unrecognised literal type %s", hint)
}

func deref(val any) any {
	if val == nil {
		return nil
	}
	v := reflect.ValueOf(val)
	for v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return nil
		}
		v = v.Elem()
	}
	return v.Interface()
}
