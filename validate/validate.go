// Package validate checks plain data records against statically declared
// constraint tables.
//
// A table is a list of rules, one per field. Each rule carries an accessor that
// reads the field out of the record, so no reflection is needed:
//
//	v := validate.New[Request]("Player.hasState/request",
//		validate.Field("state", func(r Request) (any, bool) { return int64(r.State), true },
//			validate.Required(), validate.OneOf(1, 2, 3)),
//	)
//
// Rules run in declaration order and the first failure is reported, so a given
// invalid record always yields the same error.
package validate

import (
	"context"

	"contract-rpc/rpcerr"
)

// Accessor reads one field from a record. ok is false when the field is absent.
type Accessor[T any] func(T) (value any, ok bool)

// Rule binds a field name to its accessor and constraints.
type Rule[T any] struct {
	Field       string
	Value       Accessor[T]
	Constraints []Constraint
}

// Field is a convenience constructor for Rule.
func Field[T any](name string, value func(T) (any, bool), constraints ...Constraint) Rule[T] {
	return Rule[T]{Field: name, Value: value, Constraints: constraints}
}

// Validator checks records of type T against a fixed rule table.
// It is immutable after construction and safe for concurrent use.
type Validator[T any] struct {
	shape string
	rules []Rule[T]
}

// New creates a validator for the named shape.
func New[T any](shape string, rules ...Rule[T]) *Validator[T] {
	return &Validator[T]{shape: shape, rules: rules}
}

// Shape returns the name used in validation errors.
func (v *Validator[T]) Shape() string {
	return v.shape
}

// Validate returns data unchanged when every rule passes, otherwise a
// *rpcerr.ValidationError for the first failing rule. Values are never coerced.
func (v *Validator[T]) Validate(ctx context.Context, data T) (T, error) {
	var zero T
	for _, rule := range v.rules {
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		value, ok := rule.Value(data)
		for _, c := range rule.Constraints {
			if c.Check(value, ok) {
				continue
			}
			return zero, &rpcerr.ValidationError{
				Shape:      v.shape,
				Field:      rule.Field,
				Constraint: c.String(),
				Value:      value,
			}
		}
	}
	return data, nil
}
