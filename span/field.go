package span

import (
	"fmt"
	"reflect"
)

// SelfField is a name of the field recording method receiver.
const SelfField = "self"

// These are names of the fields the rewriter declares for outcome recording.
const (
	ErrorField  = "error"
	ReturnField = "return"
)

// Field is a named value recorded on a span.
type Field struct {
	Name  string
	Value any
}

func (f Field) String() string {
	return fmt.Sprintf("%s=%v", f.Name, f.Value)
}

// Value records v as is.
func Value(name string, v any) Field {
	return Field{Name: name, Value: v}
}

// Debug records a debug representation of v. Booleans, numbers and strings
// keep their types, everything else is rendered with %+v.
func Debug(name string, v any) Field {
	return Field{Name: name, Value: debugValue(v)}
}

// Receiver records a method receiver under the self name. Pointer receivers
// are dereferenced, so the value is what it points to rather than an address.
func Receiver(v any) Field {
	if _, ok := v.(fmt.Stringer); ok {
		return Field{Name: SelfField, Value: debugValue(v)}
	}

	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return Field{Name: SelfField, Value: "<nil>"}
		}
		rv = rv.Elem()
	}
	if !rv.IsValid() {
		return Field{Name: SelfField, Value: "<nil>"}
	}

	return Field{Name: SelfField, Value: debugValue(rv.Interface())}
}

func debugValue(v any) any {
	switch vv := v.(type) {
	case nil:
		return "<nil>"
	case fmt.Stringer, error:
		// fmt survives nil receivers and panicking methods.
		return fmt.Sprintf("%+v", vv)
	}

	switch reflect.TypeOf(v).Kind() {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64,
		reflect.Complex64, reflect.Complex128,
		reflect.String:
		return v
	default:
		return fmt.Sprintf("%+v", v)
	}
}
