package capture

import (
	"fmt"
	"reflect"

	jsoniter "github.com/json-iterator/go"
)

const unserializable = "[unserializable]"

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Stringify renders one console argument as text.
// Scalars are formatted directly, composite values are pretty-printed as JSON.
func Stringify(v any) (s string) {
	defer func() {
		if r := recover(); r != nil {
			s = unserializable
		}
	}()

	switch x := v.(type) {
	case nil:
		return "null"
	case string:
		return x
	case []byte:
		return string(x)
	case error:
		return x.Error()
	case fmt.Stringer:
		return x.String()
	}

	switch reflect.ValueOf(v).Kind() {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64, reflect.Complex64, reflect.Complex128,
		reflect.String:
		return fmt.Sprint(v)
	case reflect.Func, reflect.Chan, reflect.UnsafePointer:
		return fmt.Sprintf("%T", v)
	}

	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%+v", v)
	}
	return string(b)
}
