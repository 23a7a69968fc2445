package message

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"github.com/ScGaSe/smartlogistics-sub001/errors"
)

// Kind identifies the variant held by a Scalar
type Kind uint8

// Scalar variants
const (
	KindNull Kind = iota
	KindString
	KindNumber
	KindBool
)

// String returns the variant name
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	default:
		return "unknown"
	}
}

// Scalar is a tagged union of string, number, bool and null.
// The zero value is null.
type Scalar struct {
	kind Kind
	str  string
	num  float64
	b    bool
}

// StringScalar wraps a string
func StringScalar(s string) Scalar { return Scalar{kind: KindString, str: s} }

// NumberScalar wraps a number
func NumberScalar(n float64) Scalar { return Scalar{kind: KindNumber, num: n} }

// BoolScalar wraps a bool
func BoolScalar(b bool) Scalar { return Scalar{kind: KindBool, b: b} }

// NullScalar returns the null scalar
func NullScalar() Scalar { return Scalar{} }

// Kind returns the held variant
func (s Scalar) Kind() Kind { return s.kind }

// IsNull reports whether the scalar is null
func (s Scalar) IsNull() bool { return s.kind == KindNull }

// AsString returns the string variant
func (s Scalar) AsString() (string, bool) {
	return s.str, s.kind == KindString
}

// AsFloat returns the number variant
func (s Scalar) AsFloat() (float64, bool) {
	return s.num, s.kind == KindNumber
}

// AsInt returns the number variant when it is integral
func (s Scalar) AsInt() (int64, bool) {
	if s.kind != KindNumber || s.num != math.Trunc(s.num) || math.IsInf(s.num, 0) {
		return 0, false
	}
	return int64(s.num), true
}

// AsBool returns the bool variant
func (s Scalar) AsBool() (bool, bool) {
	return s.b, s.kind == KindBool
}

// Any returns the held value as string, float64, bool or nil
func (s Scalar) Any() any {
	switch s.kind {
	case KindString:
		return s.str
	case KindNumber:
		return s.num
	case KindBool:
		return s.b
	default:
		return nil
	}
}

// String renders the value for display. Null renders as "".
func (s Scalar) String() string {
	switch s.kind {
	case KindString:
		return s.str
	case KindNumber:
		return strconv.FormatFloat(s.num, 'f', -1, 64)
	case KindBool:
		return strconv.FormatBool(s.b)
	default:
		return ""
	}
}

// MarshalJSON encodes the held value
func (s Scalar) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Any())
}

// UnmarshalJSON decodes any JSON value. Objects and arrays have no scalar
// form and are kept as their compact JSON text in the string variant.
func (s *Scalar) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return errors.WrapInvalid(errors.ErrInvalidData, "Scalar", "UnmarshalJSON", "empty value")
	}

	switch trimmed[0] {
	case 'n':
		if string(trimmed) != "null" {
			break
		}
		*s = NullScalar()
		return nil
	case '"':
		var str string
		if err := json.Unmarshal(trimmed, &str); err != nil {
			return errors.WrapInvalid(err, "Scalar", "UnmarshalJSON", "decode string")
		}
		*s = StringScalar(str)
		return nil
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(trimmed, &b); err != nil {
			return errors.WrapInvalid(err, "Scalar", "UnmarshalJSON", "decode bool")
		}
		*s = BoolScalar(b)
		return nil
	case '{', '[':
		var buf bytes.Buffer
		if err := json.Compact(&buf, trimmed); err != nil {
			return errors.WrapInvalid(err, "Scalar", "UnmarshalJSON", "compact nested value")
		}
		*s = StringScalar(buf.String())
		return nil
	}

	var n float64
	if err := json.Unmarshal(trimmed, &n); err != nil {
		return errors.WrapInvalid(fmt.Errorf("unsupported value %q: %w", trimmed, err),
			"Scalar", "UnmarshalJSON", "decode number")
	}
	*s = NumberScalar(n)
	return nil
}
