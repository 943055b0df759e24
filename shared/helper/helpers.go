package helper

import (
	"errors"
	"fmt"
	"reflect"
)

// ErrUnexpectedType is returned when a dynamically typed value cannot be asserted to the requested type.
var ErrUnexpectedType = errors.New("unexpected type")

// ErrIndexOutOfRange is returned when a positional value is requested past the end of a list.
var ErrIndexOutOfRange = errors.New("index out of range")

// GetTypedValueOf safely asserts the result of a getter function to the expected type T.
// Returns an error if the getter fails or the type assertion fails.
//
// A nil result asserts to the zero value of T when T can hold nil
// (interfaces, pointers, maps, slices, channels and functions).
func GetTypedValueOf[T any](getFn func() (any, error)) (T, error) {
	var zero T

	res, err := getFn()
	if err != nil {
		return zero, err
	}

	if res == nil {
		if canBeNil(reflect.TypeFor[T]()) {
			return zero, nil
		}
		return zero, fmt.Errorf("%w: got nil, want %T", ErrUnexpectedType, zero)
	}

	val, ok := res.(T)
	if !ok {
		return zero, fmt.Errorf("%w: got %T, want %T", ErrUnexpectedType, res, zero)
	}

	return val, nil
}

// MustGetTypedValue is the panic-on-failure variant of GetTypedValueOf.
func MustGetTypedValue[T any](getFn func() (any, error)) T {
	res, err := GetTypedValueOf[T](getFn)
	if err != nil {
		panic(err)
	}
	return res
}

// TypedAt reads the i-th element of values as a T.
func TypedAt[T any](values []any, i int) (T, error) {
	if i < 0 || i >= len(values) {
		var zero T
		return zero, fmt.Errorf("%w: %d of %d", ErrIndexOutOfRange, i, len(values))
	}
	return GetTypedValueOf[T](func() (any, error) {
		return values[i], nil
	})
}

func canBeNil(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Interface, reflect.Pointer, reflect.Map, reflect.Slice, reflect.Chan, reflect.Func:
		return true
	default:
		return false
	}
}
