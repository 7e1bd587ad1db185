// serialize.go provides a JSON encoder that tolerates cycles and values the
// standard encoder rejects, used when plain encoding of a payload fails.

package rollnotify

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strings"
	"unicode/utf8"
)

const (
	circularMarker = "[Circular]"
	maxSafeDepth   = 32
	// maxContextLength bounds the item context string.
	maxContextLength = 255
)

// safeMarshal encodes v with encoding/json, falling back to a sanitized copy
// of v when the first attempt fails.
func safeMarshal(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err == nil {
		return b, nil
	}
	return json.Marshal(sanitize(v))
}

// sanitize converts v into plain maps, slices and scalars. Pointers already
// on the current path become "[Circular]" and unsupported kinds become strings.
func sanitize(v any) any {
	return sanitizeValue(reflect.ValueOf(v), make(map[uintptr]bool), 0)
}

func sanitizeValue(v reflect.Value, path map[uintptr]bool, depth int) any {
	if !v.IsValid() {
		return nil
	}
	if depth > maxSafeDepth {
		return "[MaxDepth]"
	}

	switch v.Kind() {
	case reflect.Bool:
		return v.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return v.Uint()
	case reflect.Float32, reflect.Float64:
		f := v.Float()
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Sprint(f)
		}
		return f
	case reflect.String:
		return v.String()
	case reflect.Interface:
		if v.IsNil() {
			return nil
		}
		return sanitizeValue(v.Elem(), path, depth)
	case reflect.Pointer:
		if v.IsNil() {
			return nil
		}
		ptr := v.Pointer()
		if path[ptr] {
			return circularMarker
		}
		path[ptr] = true
		defer delete(path, ptr)
		return sanitizeValue(v.Elem(), path, depth+1)
	case reflect.Map:
		if v.IsNil() {
			return nil
		}
		ptr := v.Pointer()
		if path[ptr] {
			return circularMarker
		}
		path[ptr] = true
		defer delete(path, ptr)
		out := make(map[string]any, v.Len())
		iter := v.MapRange()
		for iter.Next() {
			out[fmt.Sprint(iter.Key().Interface())] = sanitizeValue(iter.Value(), path, depth+1)
		}
		return out
	case reflect.Slice:
		if v.IsNil() {
			return nil
		}
		if v.CanInterface() {
			if raw, ok := v.Interface().(json.RawMessage); ok {
				return raw
			}
		}
		if v.Type().Elem().Kind() == reflect.Uint8 {
			return v.Bytes()
		}
		ptr := v.Pointer()
		if path[ptr] {
			return circularMarker
		}
		path[ptr] = true
		defer delete(path, ptr)
		return sanitizeList(v, path, depth)
	case reflect.Array:
		return sanitizeList(v, path, depth)
	case reflect.Struct:
		return sanitizeStruct(v, path, depth)
	case reflect.Func:
		return "[func]"
	case reflect.Chan:
		return "[chan]"
	default:
		return fmt.Sprint(v.Interface())
	}
}

func sanitizeList(v reflect.Value, path map[uintptr]bool, depth int) []any {
	out := make([]any, v.Len())
	for i := range out {
		out[i] = sanitizeValue(v.Index(i), path, depth+1)
	}
	return out
}

func sanitizeStruct(v reflect.Value, path map[uintptr]bool, depth int) any {
	if v.CanInterface() {
		if b, err := json.Marshal(v.Interface()); err == nil {
			return json.RawMessage(b)
		}
	}
	t := v.Type()
	out := make(map[string]any, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		name := field.Name
		if tag, ok := field.Tag.Lookup("json"); ok {
			tagName, _, _ := strings.Cut(tag, ",")
			if tagName == "-" {
				continue
			}
			if tagName != "" {
				name = tagName
			}
		}
		out[name] = sanitizeValue(v.Field(i), path, depth+1)
	}
	return out
}

// contextString renders a context value as a string of at most 255 characters.
func contextString(v any) string {
	var s string
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		s = x
	case fmt.Stringer:
		s = x.String()
	default:
		b, err := safeMarshal(x)
		if err != nil {
			s = fmt.Sprintf("%v", x)
		} else {
			s = string(b)
		}
	}
	return truncateRunes(s, maxContextLength)
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
