package validate

import (
	"fmt"
	"unicode/utf8"
)

// Constraint is one check applied to a field value.
// present is false when the accessor reported the field as absent; every
// constraint other than Required passes on an absent field.
type Constraint interface {
	Check(value any, present bool) bool
	String() string
}

type required struct{}

// Required fails when the field is absent.
func Required() Constraint { return required{} }

func (required) Check(_ any, present bool) bool { return present }
func (required) String() string                 { return "required" }

type oneOf struct {
	allowed []int64
}

// OneOf restricts an integer field to an enumeration.
func OneOf(allowed ...int64) Constraint { return oneOf{allowed: allowed} }

func (c oneOf) Check(value any, present bool) bool {
	if !present {
		return true
	}
	n, ok := asInt64(value)
	if !ok {
		return false
	}
	for _, a := range c.allowed {
		if n == a {
			return true
		}
	}
	return false
}

func (c oneOf) String() string { return fmt.Sprintf("one of %v", c.allowed) }

type rangeOf struct {
	min, max int64
}

// Range restricts an integer field to [min, max].
func Range(min, max int64) Constraint { return rangeOf{min: min, max: max} }

func (c rangeOf) Check(value any, present bool) bool {
	if !present {
		return true
	}
	n, ok := asInt64(value)
	return ok && n >= c.min && n <= c.max
}

func (c rangeOf) String() string { return fmt.Sprintf("range [%d, %d]", c.min, c.max) }

type length struct {
	min, max int
}

// Length restricts the byte length of a string or []byte field to [min, max].
// A negative max means unbounded.
func Length(min, max int) Constraint { return length{min: min, max: max} }

func (c length) Check(value any, present bool) bool {
	if !present {
		return true
	}
	var n int
	switch v := value.(type) {
	case string:
		n = len(v)
	case []byte:
		n = len(v)
	default:
		return false
	}
	return n >= c.min && (c.max < 0 || n <= c.max)
}

func (c length) String() string {
	if c.max < 0 {
		return fmt.Sprintf("length >= %d", c.min)
	}
	return fmt.Sprintf("length [%d, %d]", c.min, c.max)
}

type validUTF8 struct{}

// UTF8 requires a string field to be valid UTF-8.
func UTF8() Constraint { return validUTF8{} }

func (validUTF8) Check(value any, present bool) bool {
	if !present {
		return true
	}
	s, ok := value.(string)
	return ok && utf8.ValidString(s)
}

func (validUTF8) String() string { return "valid utf-8" }

type isBool struct{}

// Bool requires the field to hold a bool.
func Bool() Constraint { return isBool{} }

func (isBool) Check(value any, present bool) bool {
	if !present {
		return true
	}
	_, ok := value.(bool)
	return ok
}

func (isBool) String() string { return "bool" }

type funcConstraint struct {
	name string
	fn   func(any) bool
}

// Func wraps an arbitrary predicate. name is reported in validation errors.
func Func(name string, fn func(value any) bool) Constraint {
	return funcConstraint{name: name, fn: fn}
}

func (c funcConstraint) Check(value any, present bool) bool {
	return !present || c.fn(value)
}

func (c funcConstraint) String() string { return c.name }

func asInt64(value any) (int64, bool) {
	switch v := value.(type) {
	case int:
		return int64(v), true
	case int8:
		return int64(v), true
	case int16:
		return int64(v), true
	case int32:
		return int64(v), true
	case int64:
		return v, true
	case uint8:
		return int64(v), true
	case uint16:
		return int64(v), true
	case uint32:
		return int64(v), true
	default:
		return 0, false
	}
}
