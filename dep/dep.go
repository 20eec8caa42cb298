/*
package dep checks that wiring is complete when a server starts, rather than
when the first request trips over a nil.
*/
package dep

import (
	"fmt"
	"reflect"
	"runtime"
)

// Required returns t, or panics naming the caller if t is nil.
func Required[T any](t T) T {
	v := reflect.ValueOf(t)
	if v.IsValid() && !isNilPointer(v) {
		return t
	}
	pc, file, line, ok := runtime.Caller(1)
	if !ok {
		panic(fmt.Sprintf("missing required dependency of type %T", t))
	}
	if fn := runtime.FuncForPC(pc); fn != nil {
		panic(fmt.Sprintf("missing required dependency %T in %s (%s:%d)", t, fn.Name(), file, line))
	}
	panic(fmt.Sprintf("missing required dependency %T (%s:%d)", t, file, line))
}

func isNilPointer(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Func, reflect.Chan, reflect.Slice:
		return v.IsNil()
	}
	return false
}
