package table

import (
	"database/sql/driver"
	"fmt"
	"strconv"
	"time"
)

// Kind is the type tag of a Value
type Kind int

// enum of all supported value kinds
const (
	KindNull Kind = iota
	KindInteger
	KindReal
	KindText
	KindBlob
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindInteger:
		return "integer"
	case KindReal:
		return "real"
	case KindText:
		return "text"
	case KindBlob:
		return "blob"
	}
	return "unknown"
}

// Value is a single typed cell. The zero Value is Null.
type Value struct {
	kind Kind
	i    int64
	f    float64
	s    string
	b    []byte
}

// Null makes a null value
func Null() Value { return Value{} }

// Int makes an integer value
func Int(i int64) Value { return Value{kind: KindInteger, i: i} }

// Real makes a floating point value
func Real(f float64) Value { return Value{kind: KindReal, f: f} }

// Text makes a string value
func Text(s string) Value { return Value{kind: KindText, s: s} }

// Blob makes a binary value, nil slice treated as empty blob
func Blob(b []byte) Value {
	if b == nil {
		b = []byte{}
	}
	return Value{kind: KindBlob, b: b}
}

// Kind returns the type tag
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether the value is Null
func (v Value) IsNull() bool { return v.kind == KindNull }

// Int64 returns integer payload, zero for other kinds
func (v Value) Int64() int64 { return v.i }

// Float64 returns real payload, zero for other kinds
func (v Value) Float64() float64 { return v.f }

// Bytes returns blob payload, nil for other kinds
func (v Value) Bytes() []byte { return v.b }

// String returns text representation of the value. Null is rendered as empty string.
func (v Value) String() string {
	switch v.kind {
	case KindInteger:
		return strconv.FormatInt(v.i, 10)
	case KindReal:
		return strconv.FormatFloat(v.f, 'f', -1, 64)
	case KindText:
		return v.s
	case KindBlob:
		return string(v.b)
	}
	return ""
}

// Any returns the payload as a plain go value, suitable for json encoding
func (v Value) Any() any {
	switch v.kind {
	case KindInteger:
		return v.i
	case KindReal:
		return v.f
	case KindText:
		return v.s
	case KindBlob:
		return v.b
	}
	return nil
}

// DriverValue converts the value to one of the types database/sql/driver accepts
func (v Value) DriverValue() driver.Value {
	return driver.Value(v.Any())
}

// FromDriver converts a value scanned from database/sql into Value.
// Unsigned and narrower integer types are widened, time is stored as unix seconds.
func FromDriver(src any) (Value, error) {
	switch val := src.(type) {
	case nil:
		return Null(), nil
	case int64:
		return Int(val), nil
	case int:
		return Int(int64(val)), nil
	case int32:
		return Int(int64(val)), nil
	case uint32:
		return Int(int64(val)), nil
	case uint64:
		return Int(int64(val)), nil // nolint gosec, sqlite has no unsigned type
	case bool:
		if val {
			return Int(1), nil
		}
		return Int(0), nil
	case float64:
		return Real(val), nil
	case float32:
		return Real(float64(val)), nil
	case string:
		return Text(val), nil
	case []byte:
		return Blob(append([]byte{}, val...)), nil
	case time.Time:
		return Int(val.Unix()), nil
	}
	return Null(), fmt.Errorf("unsupported value type %T", src)
}

// Equal compares kind and payload
func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindInteger:
		return v.i == other.i
	case KindReal:
		return v.f == other.f
	case KindText:
		return v.s == other.s
	case KindBlob:
		return string(v.b) == string(other.b)
	}
	return true
}

// GoString makes test failures readable
func (v Value) GoString() string {
	switch v.kind {
	case KindNull:
		return "Null"
	case KindText:
		return fmt.Sprintf("Text(%q)", v.s)
	case KindBlob:
		return fmt.Sprintf("Blob(%q)", v.b)
	case KindInteger:
		return fmt.Sprintf("Integer(%d)", v.i)
	}
	return fmt.Sprintf("Real(%s)", v.String())
}
