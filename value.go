package opts

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Kind identifies the concrete type carried by a Value.
type Kind int

const (
	// KindInvalid is the zero Kind; a Value with this kind holds nothing.
	KindInvalid Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
)

func (k Kind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	default:
		return "invalid"
	}
}

// Value is a configuration leaf. It holds exactly one of a boolean, a 64-bit
// integer, a 64-bit float or a string. Values are immutable and comparable.
type Value struct {
	kind Kind
	b    bool
	i    int64
	f    float64
	s    string
}

// BoolValue wraps b.
func BoolValue(b bool) Value { return Value{kind: KindBool, b: b} }

// IntValue wraps i.
func IntValue(i int64) Value { return Value{kind: KindInt, i: i} }

// FloatValue wraps f.
func FloatValue(f float64) Value { return Value{kind: KindFloat, f: f} }

// StringValue wraps s.
func StringValue(s string) Value { return Value{kind: KindString, s: s} }

func (Value) isNode() {}

// Kind reports which variant v holds.
func (v Value) Kind() Kind { return v.kind }

// IsValid reports whether v holds a value.
func (v Value) IsValid() bool { return v.kind != KindInvalid }

// Bool returns the boolean held by v and whether v is a KindBool.
func (v Value) Bool() (bool, bool) { return v.b, v.kind == KindBool }

// Int returns the integer held by v and whether v is a KindInt.
func (v Value) Int() (int64, bool) { return v.i, v.kind == KindInt }

// Float returns the float held by v and whether v is a KindFloat.
func (v Value) Float() (float64, bool) { return v.f, v.kind == KindFloat }

// Text returns the string held by v and whether v is a KindString.
func (v Value) Text() (string, bool) { return v.s, v.kind == KindString }

// Interface returns the native Go value: bool, int64, float64 or string. An
// invalid Value returns nil.
func (v Value) Interface() any {
	switch v.kind {
	case KindBool:
		return v.b
	case KindInt:
		return v.i
	case KindFloat:
		return v.f
	case KindString:
		return v.s
	default:
		return nil
	}
}

func (v Value) String() string {
	switch v.kind {
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case KindString:
		return v.s
	default:
		return "<invalid>"
	}
}

// MarshalJSON encodes v as its native JSON scalar. Integral floats keep a
// trailing ".0" so they do not read back as integers.
func (v Value) MarshalJSON() ([]byte, error) {
	if v.kind == KindFloat && v.f == math.Trunc(v.f) && math.Abs(v.f) < 1e21 {
		return []byte(strconv.FormatFloat(v.f, 'f', 1, 64)), nil
	}
	return json.Marshal(v.Interface())
}

// UnmarshalJSON reads a JSON scalar written by MarshalJSON. Numbers with a
// fraction or exponent become floats, so "5.0" stays a float. null leaves v
// invalid.
func (v *Value) UnmarshalJSON(data []byte) error {
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()
	var raw any
	if err := decoder.Decode(&raw); err != nil {
		return err
	}
	if raw == nil {
		*v = Value{}
		return nil
	}
	if number, ok := raw.(json.Number); ok && strings.ContainsAny(number.String(), ".eE") {
		f, err := number.Float64()
		if err != nil {
			return fmt.Errorf("%w: number %q", ErrUnsupportedValue, number.String())
		}
		*v = FloatValue(f)
		return nil
	}
	parsed, err := ValueOf(raw)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// ValueOf converts a native Go scalar into a Value without changing its type
// family: every integer kind becomes KindInt, float32 and float64 become
// KindFloat. json.Number is accepted so decoders that preserve number text can
// keep integers apart from floats.
func ValueOf(raw any) (Value, error) {
	switch typed := raw.(type) {
	case Value:
		if !typed.IsValid() {
			return Value{}, fmt.Errorf("%w: invalid value", ErrUnsupportedValue)
		}
		return typed, nil
	case bool:
		return BoolValue(typed), nil
	case int:
		return IntValue(int64(typed)), nil
	case int8:
		return IntValue(int64(typed)), nil
	case int16:
		return IntValue(int64(typed)), nil
	case int32:
		return IntValue(int64(typed)), nil
	case int64:
		return IntValue(typed), nil
	case uint:
		return uintValue(uint64(typed))
	case uint8:
		return IntValue(int64(typed)), nil
	case uint16:
		return IntValue(int64(typed)), nil
	case uint32:
		return IntValue(int64(typed)), nil
	case uint64:
		return uintValue(typed)
	case float32:
		return FloatValue(float64(typed)), nil
	case float64:
		return FloatValue(typed), nil
	case string:
		return StringValue(typed), nil
	case json.Number:
		if i, err := typed.Int64(); err == nil {
			return IntValue(i), nil
		}
		f, err := typed.Float64()
		if err != nil {
			return Value{}, fmt.Errorf("%w: number %q", ErrUnsupportedValue, typed.String())
		}
		return FloatValue(f), nil
	default:
		return Value{}, fmt.Errorf("%w: %T", ErrUnsupportedValue, raw)
	}
}

func uintValue(u uint64) (Value, error) {
	if u > math.MaxInt64 {
		return Value{}, fmt.Errorf("%w: %d overflows int64", ErrUnsupportedValue, u)
	}
	return IntValue(int64(u)), nil
}

// ParseValue infers a Value from text the way a hand-edited file would be
// read: integers first, then floats, then true/false, otherwise the raw
// string.
func ParseValue(text string) Value {
	trimmed := strings.TrimSpace(text)
	if i, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
		return IntValue(i)
	}
	if looksDecimal(trimmed) {
		if f, err := strconv.ParseFloat(trimmed, 64); err == nil {
			return FloatValue(f)
		}
	}
	switch strings.ToLower(trimmed) {
	case "true":
		return BoolValue(true)
	case "false":
		return BoolValue(false)
	}
	return StringValue(text)
}

// looksDecimal keeps words such as "inf" or "nan" out of float parsing.
func looksDecimal(text string) bool {
	if text == "" {
		return false
	}
	for _, r := range text {
		if !strings.ContainsRune("0123456789+-.eE", r) {
			return false
		}
	}
	return true
}
