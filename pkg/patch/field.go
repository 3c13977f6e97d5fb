// Package patch provides a presence-aware wrapper for partial updates, so a
// JSON body can tell "field absent" apart from "field explicitly null".
package patch

import (
	"bytes"
	"encoding/json"
)

// Field records whether a JSON member was present and whether it was null.
type Field[T any] struct {
	Set   bool
	Null  bool
	Value T
}

// Of returns a present, non-null field.
func Of[T any](v T) Field[T] {
	return Field[T]{Set: true, Value: v}
}

// Null returns a present field carrying an explicit null.
func Null[T any]() Field[T] {
	return Field[T]{Set: true, Null: true}
}

func (f *Field[T]) UnmarshalJSON(b []byte) error {
	f.Set = true
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		f.Null = true
		var zero T
		f.Value = zero
		return nil
	}
	f.Null = false
	return json.Unmarshal(b, &f.Value)
}

func (f Field[T]) MarshalJSON() ([]byte, error) {
	if !f.Set || f.Null {
		return []byte("null"), nil
	}
	return json.Marshal(f.Value)
}

// Get returns the value when the field carries one.
func (f Field[T]) Get() (T, bool) {
	return f.Value, f.Set && !f.Null
}

// Apply writes the value into dst when present and non-null. It reports
// whether dst changed.
func (f Field[T]) Apply(dst *T) bool {
	if v, ok := f.Get(); ok {
		*dst = v
		return true
	}
	return false
}

// ApplyNullable handles pointer destinations: a value sets, an explicit null clears.
func (f Field[T]) ApplyNullable(dst **T) bool {
	if !f.Set {
		return false
	}
	if f.Null {
		*dst = nil
		return true
	}
	v := f.Value
	*dst = &v
	return true
}
