package sqlpos

import (
	"database/sql/driver"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

var (
	valuerIface = reflect.TypeFor[driver.Valuer]()
	timeType    = reflect.TypeFor[time.Time]()
)

// layouts caches struct field layouts by type.
var layouts, _ = lru.New[reflect.Type, []fieldInfo](cacheSize)

// orderedParams normalizes a parameter source into Params:
//   - nil → no params
//   - Params / []Param → as given
//   - struct or *struct → exported fields in declaration order, nested
//     structs flattened, names from `db` tags
//   - map with string-like keys → keys in ascending order
func orderedParams(in any) (Params, error) {
	switch v := in.(type) {
	case nil:
		return nil, nil
	case Params:
		return v, nil
	case []Param:
		return Params(v), nil
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		ps := make(Params, len(keys))
		for i, k := range keys {
			ps[i] = Param{Name: k, Value: v[k]}
		}
		return ps, nil
	}

	rv := deIndirect(reflect.ValueOf(in))
	if !rv.IsValid() || (rv.Kind() == reflect.Pointer && rv.IsNil()) {
		return nil, nil
	}
	switch rv.Kind() {
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil, fmt.Errorf("%w: map key type %s", ErrUnsupportedParams, rv.Type().Key())
		}
		keys := rv.MapKeys()
		sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
		ps := make(Params, len(keys))
		for i, k := range keys {
			ps[i] = Param{Name: k.String(), Value: rv.MapIndex(k).Interface()}
		}
		return ps, nil
	case reflect.Struct:
		fields := structFields(rv.Type())
		ps := make(Params, 0, len(fields))
		for _, f := range fields {
			if f.ambiguous {
				return nil, &ParamError{Name: f.name, Err: ErrFieldAmbiguous}
			}
			val := fieldValue(rv, f.index)
			ps = append(ps, Param{Name: f.name, Value: val})
		}
		return ps, nil
	}
	return nil, fmt.Errorf("%w: %T", ErrUnsupportedParams, in)
}

// lookup resolves a single name from a parameter source.
// Supports Params, map-like, struct-like (flattened), and pointers/interfaces thereof.
func lookup(in any, name string) (any, bool, error) {
	switch v := in.(type) {
	case nil:
		return nil, false, nil
	case map[string]any:
		val, ok := v[name]
		return val, ok, nil
	case Params:
		return v.lookup(name)
	case []Param:
		return Params(v).lookup(name)
	}

	rv := deIndirect(reflect.ValueOf(in))
	if !rv.IsValid() || (rv.Kind() == reflect.Pointer && rv.IsNil()) {
		return nil, false, nil
	}
	switch rv.Kind() {
	case reflect.Map:
		keyT := rv.Type().Key()
		if keyT.Kind() != reflect.String {
			return nil, false, fmt.Errorf("%w: map key type %s", ErrUnsupportedParams, keyT)
		}
		mv := rv.MapIndex(reflect.ValueOf(name).Convert(keyT))
		if mv.IsValid() {
			return mv.Interface(), true, nil
		}
		return nil, false, nil
	case reflect.Struct:
		for _, f := range structFields(rv.Type()) {
			if f.name != name {
				continue
			}
			if f.ambiguous {
				return nil, false, &ParamError{Name: name, Err: ErrFieldAmbiguous}
			}
			val := fieldValue(rv, f.index)
			return val, true, nil
		}
		return nil, false, nil
	}
	return nil, false, fmt.Errorf("%w: %T", ErrUnsupportedParams, in)
}

// lookup returns the first value bound to name.
func (ps Params) lookup(name string) (any, bool, error) {
	for _, p := range ps {
		if p.Name == name {
			return p.Value, true, nil
		}
	}
	return nil, false, nil
}

// structFields returns the bindable leaf fields of struct type t in
// declaration order. Nested structs are flattened unless they are leaves
// (time.Time, driver.Valuer). Names come from `db` tags; `db:"-"` skips a
// field. A name seen twice is kept once, at its first position, flagged
// ambiguous. Layouts are cached per type.
func structFields(t reflect.Type) []fieldInfo {
	if fs, ok := layouts.Get(t); ok {
		return fs
	}

	var (
		fields []fieldInfo
		pos    = map[string]int{}
		onPath = map[reflect.Type]bool{}
	)
	var collect func(st reflect.Type, prefix []int)
	collect = func(st reflect.Type, prefix []int) {
		st = derefType(st)
		if st.Kind() != reflect.Struct || onPath[st] {
			return
		}
		onPath[st] = true
		defer delete(onPath, st)

		for i := range st.NumField() {
			sf := st.Field(i)
			if !sf.IsExported() {
				continue
			}
			name, skip := columnName(sf)
			if skip {
				continue
			}
			path := append(prefix[:len(prefix):len(prefix)], i)
			if !isLeaf(sf.Type) {
				collect(sf.Type, path)
				continue
			}
			if j, dup := pos[name]; dup {
				fields[j] = fieldInfo{name: name, ambiguous: true}
				continue
			}
			pos[name] = len(fields)
			fields = append(fields, fieldInfo{name: name, index: path})
		}
	}
	collect(t, nil)

	layouts.Add(t, fields)
	return fields
}

// columnName returns the bind name of sf and whether the field is skipped.
func columnName(sf reflect.StructField) (string, bool) {
	tag, ok := sf.Tag.Lookup("db")
	if !ok {
		return sf.Name, false
	}
	if tag == "-" {
		return "", true
	}
	if n, _, _ := strings.Cut(tag, ","); n != "" {
		return n, false
	}
	return sf.Name, false
}

// isLeaf reports whether a field of type ft binds as a single value.
func isLeaf(ft reflect.Type) bool {
	if ft.Implements(valuerIface) || reflect.PointerTo(ft).Implements(valuerIface) {
		return true
	}
	st := derefType(ft)
	return st.Kind() != reflect.Struct || st == timeType
}

func derefType(t reflect.Type) reflect.Type {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t
}

// deIndirect follows interfaces and pointers down to a concrete value.
// A nil along the way is returned as is.
func deIndirect(v reflect.Value) reflect.Value {
	for (v.Kind() == reflect.Interface || v.Kind() == reflect.Pointer) && !v.IsNil() {
		v = v.Elem()
	}
	return v
}

// fieldValue walks path from root. A nil pointer on the way, or a nil leaf,
// yields nil (SQL NULL).
func fieldValue(root reflect.Value, path []int) any {
	v := root
	for _, i := range path {
		v = deIndirect(v)
		if v.Kind() != reflect.Struct {
			return nil
		}
		v = v.Field(i)
	}
	switch v.Kind() {
	case reflect.Interface, reflect.Pointer, reflect.Map, reflect.Slice:
		if v.IsNil() {
			return nil
		}
	}
	return v.Interface()
}

// fieldInfo describes a leaf field: its bind name and index path.
type fieldInfo struct {
	name      string
	index     []int
	ambiguous bool
}
