package tablemap

import (
	"fmt"
	"strings"
	"time"
)

// FieldDescriptor describes one persisted field of a record type.
type FieldDescriptor struct {
	Name   string // Column name
	Kind   Kind   // Column kind; zero for complex fields
	Native bool   // True if stored directly as a column value
}

// Field binds a record field to its column. Build fields with Native, Nullable,
// DateTime, NullableDateTime or Complex.
type Field[T any] struct {
	name string
	kind Kind

	// native fields
	get func(*T) (Value, bool)
	set func(*T, Value) bool

	// complex fields
	encode func(*T, Codec) (string, error)
	decode func(*T, string, Codec) error
}

// Descriptor returns the field's descriptor.
func (f Field[T]) Descriptor() FieldDescriptor {
	return FieldDescriptor{Name: f.name, Kind: f.kind, Native: f.kind != 0}
}

// Native declares a field stored directly as a column of the kind matching V.
// A nil []byte is treated as absent; every other value is always stored.
func Native[T any, V NativeType](name string, ref func(*T) *V) Field[T] {
	var zero V
	return Field[T]{
		name: name,
		kind: ValueOf(zero).Kind(),
		get: func(item *T) (Value, bool) {
			v := *ref(item)
			if b, ok := any(v).([]byte); ok && b == nil {
				return Value{}, false
			}
			return ValueOf(v), true
		},
		set: func(item *T, val Value) bool {
			v, ok := ValueAs[V](val)
			if ok {
				*ref(item) = v
			}
			return ok
		},
	}
}

// Nullable declares a native field whose nil pointer means "no value".
func Nullable[T any, V NativeType](name string, ref func(*T) **V) Field[T] {
	var zero V
	return Field[T]{
		name: name,
		kind: ValueOf(zero).Kind(),
		get: func(item *T) (Value, bool) {
			p := *ref(item)
			if p == nil {
				return Value{}, false
			}
			return ValueOf(*p), true
		},
		set: func(item *T, val Value) bool {
			v, ok := ValueAs[V](val)
			if ok {
				*ref(item) = &v
			}
			return ok
		},
	}
}

// DateTime declares a time field stored as a UTC datetime column.
func DateTime[T any](name string, ref func(*T) *time.Time) Field[T] {
	f := Native(name, ref)
	f.kind = KindDateTime
	f.get = func(item *T) (Value, bool) {
		return DateTimeValue(*ref(item)), true
	}
	return f
}

// NullableDateTime declares an optional time field stored as a UTC datetime column.
func NullableDateTime[T any](name string, ref func(*T) **time.Time) Field[T] {
	f := Nullable(name, ref)
	f.kind = KindDateTime
	f.get = func(item *T) (Value, bool) {
		p := *ref(item)
		if p == nil {
			return Value{}, false
		}
		return DateTimeValue(*p), true
	}
	return f
}

// Complex declares a field of any other type. Its value is stored as the text
// produced by the converter's Codec.
func Complex[T any, V any](name string, ref func(*T) *V) Field[T] {
	return Field[T]{
		name: name,
		encode: func(item *T, c Codec) (string, error) {
			return c.Marshal(*ref(item))
		},
		decode: func(item *T, text string, c Codec) error {
			var v V
			if err := c.Unmarshal(text, &v); err != nil {
				return err
			}
			*ref(item) = v
			return nil
		},
	}
}

// Schema is the ordered, immutable field table of a record type. It is built
// once and is safe for concurrent use.
type Schema[T any] struct {
	name        string
	fields      []Field[T]
	descriptors []FieldDescriptor
}

var reservedNames = map[string]bool{
	PropertyPartitionKey: true,
	PropertyRowKey:       true,
	PropertyTimestamp:    true,
	PropertyETag:         true,
	ExpandedColumnsName:  true,
}

// NewSchema validates the field table of a record type named name.
func NewSchema[T any](name string, fields ...Field[T]) (*Schema[T], error) {
	if name == "" {
		return nil, fmt.Errorf("schema name is required")
	}

	s := &Schema[T]{
		name:        name,
		fields:      make([]Field[T], len(fields)),
		descriptors: make([]FieldDescriptor, len(fields)),
	}
	seen := make(map[string]bool, len(fields))
	for i, f := range fields {
		switch {
		case f.name == "":
			return nil, fmt.Errorf("%s: field %d has no name", name, i)
		case reservedNames[f.name] || strings.Contains(f.name, "@"):
			return nil, fmt.Errorf("%s: field name %q is reserved", name, f.name)
		case seen[f.name]:
			return nil, fmt.Errorf("%s: duplicate field %q", name, f.name)
		}
		seen[f.name] = true
		s.fields[i] = f
		s.descriptors[i] = f.Descriptor()
	}
	return s, nil
}

// MustSchema is like NewSchema but panics on error. It is intended for
// package-level schema variables.
func MustSchema[T any](name string, fields ...Field[T]) *Schema[T] {
	s, err := NewSchema(name, fields...)
	if err != nil {
		panic(err)
	}
	return s
}

// Name returns the record type name.
func (s *Schema[T]) Name() string { return s.name }

// Fields returns the field descriptors in declaration order.
func (s *Schema[T]) Fields() []FieldDescriptor {
	out := make([]FieldDescriptor, len(s.descriptors))
	copy(out, s.descriptors)
	return out
}
