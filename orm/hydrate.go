package orm

import (
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"
)

type entityBag struct {
	key         RowKey
	entity      string
	values      map[string]any
	ancestorIDs map[string]any
}

// Hydrate rebuilds instances from result rows. Column names are split on
// the delimiter:
//
//	<relationship>__<occurrence>__<property>                          relationship
//	<alias>__<occurrence>__<table>__<property>                        entity
//	<alias>__<occurrence>__<table>__inherits__<ancestor>__<property>  ancestor level
//
// Ancestor identities are kept apart from the entity's own identity.
func (s *Schema) Hydrate(rows []map[string]any, chain string) (*ResultSet, error) {
	rs := &ResultSet{chain: chain, rows: make([]*ResultRow, 0, len(rows))}
	for _, row := range rows {
		r, err := s.hydrateRow(row)
		if err != nil {
			return nil, err
		}
		rs.rows = append(rs.rows, r)
	}
	return rs, nil
}

func (s *Schema) hydrateRow(row map[string]any) (*ResultRow, error) {
	entities := make(map[RowKey]*entityBag)
	relationships := make(map[RowKey]map[string]any)

	columns := make([]string, 0, len(row))
	for col := range row {
		columns = append(columns, col)
	}
	sort.Strings(columns)

	for _, col := range columns {
		val := row[col]
		parts := strings.Split(col, delimiter)
		switch len(parts) {
		case 3:
			rel, err := DBToClassName(parts[0])
			if err != nil {
				return nil, &MalformedRowError{Column: col, Reason: err.Error()}
			}
			occ, err := strconv.Atoi(parts[1])
			if err != nil {
				return nil, &MalformedRowError{Column: col, Reason: "occurrence is not a number"}
			}
			key := RowKey{Alias: rel, Occurrence: occ}
			if relationships[key] == nil {
				relationships[key] = make(map[string]any)
			}
			relationships[key][parts[2]] = val

		case 4, 6:
			bag, err := entityBagFor(entities, col, parts)
			if err != nil {
				return nil, err
			}
			prop := parts[len(parts)-1]
			if len(parts) == 4 {
				bag.values[prop] = val
				continue
			}
			if parts[3] != mustTable(InheritsRelationship) {
				return nil, &MalformedRowError{Column: col, Reason: fmt.Sprintf("expected %q marker, got %q", mustTable(InheritsRelationship), parts[3])}
			}
			ancestor, err := DBToClassName(parts[4])
			if err != nil {
				return nil, &MalformedRowError{Column: col, Reason: err.Error()}
			}
			if prop == IDProperty {
				bag.ancestorIDs[ancestor] = val
			} else {
				bag.values[prop] = val
			}

		default:
			return nil, &MalformedRowError{Column: col, Reason: fmt.Sprintf("splits into %d parts, expected 3, 4 or 6", len(parts))}
		}
	}

	out := &ResultRow{
		entities:      make(map[RowKey]*Instance, len(entities)),
		relationships: make(map[RowKey]*Instance, len(relationships)),
	}
	for key, bag := range entities {
		info, ok := s.entities[bag.entity]
		if !ok {
			return nil, &UnresolvedEntityError{Name: bag.entity}
		}
		out.entities[key] = instanceFromRow(info, bag.values, bag.ancestorIDs)
	}
	for key, values := range relationships {
		info, ok := s.irels[key.Alias]
		if !ok {
			return nil, &UnresolvedRelationshipError{Name: key.Alias}
		}
		out.relationships[key] = instanceFromRow(info, values, map[string]any{})
	}
	return out, nil
}

func entityBagFor(bags map[RowKey]*entityBag, col string, parts []string) (*entityBag, error) {
	alias := parts[0]
	if alias != AnchorAlias {
		name, err := DBToClassName(alias)
		if err != nil {
			return nil, &MalformedRowError{Column: col, Reason: err.Error()}
		}
		alias = name
	}
	occ, err := strconv.Atoi(parts[1])
	if err != nil {
		return nil, &MalformedRowError{Column: col, Reason: "occurrence is not a number"}
	}
	entity, err := DBToClassName(parts[2])
	if err != nil {
		return nil, &MalformedRowError{Column: col, Reason: err.Error()}
	}
	key := RowKey{Alias: alias, Occurrence: occ}
	bag, ok := bags[key]
	if !ok {
		bag = &entityBag{key: key, entity: entity, values: make(map[string]any), ancestorIDs: make(map[string]any)}
		bags[key] = bag
	} else if bag.entity != entity {
		return nil, &MalformedRowError{Column: col, Reason: fmt.Sprintf("%s already holds %s", key, bag.entity)}
	}
	return bag, nil
}

// Decode copies an instance's values into a new T. Fields are matched by
// their `relmap` tag; a field tagged "id" receives the synthetic identity.
// Storage values are coerced to the field type.
func Decode[T any](inst *Instance) (*T, error) {
	out := new(T)
	v := reflect.ValueOf(out).Elem()
	if v.Kind() != reflect.Struct {
		return nil, fmt.Errorf("decode target must be a struct, got %s", v.Kind())
	}
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if field.Anonymous || !field.IsExported() {
			continue
		}
		tag, err := ParseTag(field.Tag.Get("relmap"))
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", field.Name, err)
		}
		if tag.Skip {
			continue
		}
		val, ok := inst.Get(tag.Name)
		if !ok || val == nil {
			continue
		}
		if err := setField(v.Field(i), val); err != nil {
			return nil, fmt.Errorf("decoding %s.%s: %w", inst.Type().Name(), field.Name, err)
		}
	}
	return out, nil
}

func setField(field reflect.Value, val any) error {
	target := field.Type()
	if target.Kind() == reflect.Ptr {
		ptr := reflect.New(target.Elem())
		if err := setField(ptr.Elem(), val); err != nil {
			return err
		}
		field.Set(ptr)
		return nil
	}

	var converted any
	var err error
	switch {
	case target == reflect.TypeOf(time.Time{}):
		converted, err = coerceToTime(val)
	case target.Kind() == reflect.String:
		converted = coerceToString(val)
	case target.Kind() >= reflect.Int && target.Kind() <= reflect.Int64:
		converted, err = coerceToInt64(val, target)
	case target.Kind() == reflect.Float32 || target.Kind() == reflect.Float64:
		converted, err = coerceToFloat64(val, target)
	case target.Kind() == reflect.Bool:
		converted, err = coerceToBool(val)
	default:
		converted = val
	}
	if err != nil {
		return err
	}
	cv := reflect.ValueOf(converted)
	if !cv.Type().AssignableTo(target) {
		if !cv.Type().ConvertibleTo(target) {
			return fmt.Errorf("cannot assign %T to %s", val, target)
		}
		cv = cv.Convert(target)
	}
	field.Set(cv)
	return nil
}

func coerceToString(val any) string {
	switch v := val.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	default:
		return fmt.Sprintf("%v", val)
	}
}

func coerceToInt64(val any, targetType reflect.Type) (any, error) {
	var i64 int64
	switch v := val.(type) {
	case float64:
		i64 = int64(v)
	case float32:
		i64 = int64(v)
	case int:
		i64 = int64(v)
	case int64:
		i64 = v
	case int32:
		i64 = int64(v)
	case uint64:
		i64 = int64(v)
	case []byte:
		return coerceToInt64(string(v), targetType)
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("cannot coerce %q to integer", v)
		}
		i64 = n
	default:
		return nil, fmt.Errorf("cannot coerce %T to integer", val)
	}

	switch targetType.Kind() {
	case reflect.Int:
		return int(i64), nil
	case reflect.Int8:
		return int8(i64), nil
	case reflect.Int16:
		return int16(i64), nil
	case reflect.Int32:
		return int32(i64), nil
	default:
		return i64, nil
	}
}

func coerceToFloat64(val any, targetType reflect.Type) (any, error) {
	var f64 float64
	switch v := val.(type) {
	case float64:
		f64 = v
	case float32:
		f64 = float64(v)
	case int:
		f64 = float64(v)
	case int64:
		f64 = float64(v)
	case uint64:
		f64 = float64(v)
	case []byte:
		return coerceToFloat64(string(v), targetType)
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return nil, fmt.Errorf("cannot coerce %q to float", v)
		}
		f64 = f
	default:
		return nil, fmt.Errorf("cannot coerce %T to float", val)
	}

	if targetType.Kind() == reflect.Float32 {
		return float32(f64), nil
	}
	return f64, nil
}

func coerceToBool(val any) (any, error) {
	switch v := val.(type) {
	case bool:
		return v, nil
	case int64:
		return v != 0, nil
	case string:
		return strconv.ParseBool(v)
	default:
		return nil, fmt.Errorf("cannot coerce %T to bool", val)
	}
}

func coerceToTime(val any) (any, error) {
	switch v := val.(type) {
	case time.Time:
		return v, nil
	case []byte:
		return coerceToTime(string(v))
	case string:
		for _, layout := range []string{
			time.RFC3339,
			"2006-01-02T15:04:05",
			"2006-01-02 15:04:05",
			"2006-01-02",
		} {
			t, err := time.Parse(layout, v)
			if err == nil {
				return t, nil
			}
		}
		return nil, fmt.Errorf("cannot parse time string: %q", v)
	default:
		return nil, fmt.Errorf("cannot coerce %T to time.Time", val)
	}
}
