// Package heapval converts arbitrary heap values into JSON-safe payloads.
package heapval

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/roach88/udonmeta/internal/ir"
)

// Fallbacker is implemented by values that already know their fallback
// payload, such as placeholders for values an earlier encode degraded.
type Fallbacker interface {
	Fallback() ir.FallbackValue
}

// Serialize wraps value for a heap entry. It never fails and never panics:
// anything encoding/json cannot serialize degrades to the fixed-shape
// {type, toString} fallback, where type is declaredType (null if empty).
func Serialize(value any, declaredType string) ir.HeapValue {
	if fb, ok := value.(Fallbacker); ok {
		if known, ok := fallbackOf(fb); ok {
			if hv, ok := wrapFallback(known); ok {
				return hv
			}
		}
	}

	raw, err := marshal(value)
	if err == nil {
		return ir.HeapValue{IsSerializable: true, Value: raw}
	}

	fb := ir.FallbackValue{ToString: render(value)}
	if declaredType != "" {
		fb.Type = &declaredType
	}
	hv, _ := wrapFallback(fb)
	return hv
}

// marshal runs encoding/json with HTML escaping off and converts a panic
// inside a MarshalJSON method into an error.
func marshal(value any) (raw json.RawMessage, err error) {
	defer func() {
		if r := recover(); r != nil {
			raw, err = nil, fmt.Errorf("marshal panicked: %v", r)
		}
	}()

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(value); err != nil {
		return nil, err
	}
	return json.RawMessage(bytes.TrimSuffix(buf.Bytes(), []byte("\n"))), nil
}

// render produces a best-effort string for the fallback payload.
// Returns nil for a nil value or when rendering panics.
func render(value any) (s *string) {
	if value == nil {
		return nil
	}
	defer func() {
		if recover() != nil {
			s = nil
		}
	}()

	var out string
	switch v := value.(type) {
	case fmt.Stringer:
		out = v.String()
	case error:
		out = v.Error()
	default:
		// Only scalars are printed. fmt walks composite values without a
		// cycle check, and a cycle overflows the stack, which recover
		// cannot catch.
		switch reflect.ValueOf(v).Kind() {
		case reflect.Bool, reflect.String,
			reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
			reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
			reflect.Float32, reflect.Float64, reflect.Complex64, reflect.Complex128:
			out = fmt.Sprintf("%v", v)
		default:
			out = fmt.Sprintf("%T", v)
		}
	}
	return &out
}

// fallbackOf calls Fallback, reporting false when it panics (a nil pointer
// receiver, typically).
func fallbackOf(fb Fallbacker) (v ir.FallbackValue, ok bool) {
	defer func() {
		if recover() != nil {
			v, ok = ir.FallbackValue{}, false
		}
	}()
	return fb.Fallback(), true
}

func wrapFallback(fb ir.FallbackValue) (ir.HeapValue, bool) {
	raw, err := marshal(fb)
	if err != nil {
		return ir.HeapValue{}, false
	}
	return ir.HeapValue{IsSerializable: false, Value: raw}, true
}
