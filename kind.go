package tablemap

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Kind identifies one of the column value types the table service stores natively.
type Kind uint8

const (
	KindByte           Kind = iota + 1 // byte
	KindBinary                         // []byte
	KindDateTime                       // time.Time, normalised to UTC
	KindDateTimeOffset                 // time.Time, offset preserved
	KindDouble                         // float64
	KindGUID                           // uuid.UUID
	KindInt32                          // int32
	KindInt64                          // int64
	KindString                         // string
)

var kindNames = [...]string{
	KindByte:           "Edm.Byte",
	KindBinary:         "Edm.Binary",
	KindDateTime:       "Edm.DateTime",
	KindDateTimeOffset: "Edm.DateTimeOffset",
	KindDouble:         "Edm.Double",
	KindGUID:           "Edm.Guid",
	KindInt32:          "Edm.Int32",
	KindInt64:          "Edm.Int64",
	KindString:         "Edm.String",
}

// String returns the EDM type name of the kind, e.g. "Edm.Int64".
func (k Kind) String() string {
	if k.Valid() {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// Valid reports whether k is one of the declared kinds.
func (k Kind) Valid() bool {
	return k >= KindByte && k <= KindString
}

// ParseKind returns the kind with the given EDM type name.
func ParseKind(name string) (Kind, error) {
	for k := KindByte; k <= KindString; k++ {
		if kindNames[k] == name {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown column kind %q", name)
}

// NativeType lists the Go types that map directly onto a column kind.
type NativeType interface {
	byte | []byte | time.Time | float64 | uuid.UUID | int32 | int64 | string
}

// Value is a typed column value. The zero Value holds nothing.
type Value struct {
	kind Kind
	v    any
}

// ByteValue through StringValue wrap a Go value in a Value of the named kind.
// DateTimeValue normalises to UTC; DateTimeOffsetValue keeps the offset.
func ByteValue(b byte) Value { return Value{KindByte, b} }
func BinaryValue(b []byte) Value { return Value{KindBinary, b} }
func DateTimeValue(t time.Time) Value { return Value{KindDateTime, t.UTC()} }
func DateTimeOffsetValue(t time.Time) Value { return Value{KindDateTimeOffset, t} }
func DoubleValue(f float64) Value { return Value{KindDouble, f} }
func GUIDValue(id uuid.UUID) Value { return Value{KindGUID, id} }
func Int32Value(i int32) Value { return Value{KindInt32, i} }
func Int64Value(i int64) Value { return Value{KindInt64, i} }
func StringValue(s string) Value { return Value{KindString, s} }

// ValueOf wraps v in a Value of the kind matching its Go type. time.Time maps to
// KindDateTimeOffset; use DateTimeValue for UTC datetimes.
func ValueOf[V NativeType](v V) Value {
	switch x := any(v).(type) {
	case byte:
		return ByteValue(x)
	case []byte:
		return BinaryValue(x)
	case time.Time:
		return DateTimeOffsetValue(x)
	case float64:
		return DoubleValue(x)
	case uuid.UUID:
		return GUIDValue(x)
	case int32:
		return Int32Value(x)
	case int64:
		return Int64Value(x)
	default:
		return StringValue(any(v).(string))
	}
}

// ValueAs extracts the payload of v as V. It reports false when v holds a
// payload of another Go type or nothing at all.
func ValueAs[V NativeType](v Value) (V, bool) {
	out, ok := v.v.(V)
	return out, ok
}

// Kind returns the kind of v, or 0 for the zero Value.
func (v Value) Kind() Kind { return v.kind }

// IsZero reports whether v holds no value.
func (v Value) IsZero() bool { return v.kind == 0 }

// Interface returns the payload as an untyped value.
func (v Value) Interface() any { return v.v }

// Text returns the payload when v is a string column.
func (v Value) Text() (string, bool) {
	s, ok := v.v.(string)
	return s, ok && v.kind == KindString
}

// Equal reports whether both values have the same kind and payload.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch a := v.v.(type) {
	case []byte:
		b, _ := o.v.([]byte)
		return string(a) == string(b)
	case time.Time:
		b, _ := o.v.(time.Time)
		return a.Equal(b)
	default:
		return v.v == o.v
	}
}

func (v Value) String() string {
	if v.IsZero() {
		return "<none>"
	}
	return fmt.Sprintf("%s(%v)", v.kind, v.v)
}
