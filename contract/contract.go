// Package contract composes codecs and validators into the units a call is
// built from:
//
//	Contract[T]             one message shape; validates on encode and on decode
//	ResponseContract[S]     success and error contracts over one response envelope
//	CallContract[Req, Res]  request contract plus response contract under a call name
//
// Contracts are immutable after construction and safe for concurrent use.
package contract

import (
	"context"

	"contract-rpc/codec"
	"contract-rpc/validate"
)

// Contract encodes and decodes one message shape with validation on both
// sides: a value that was valid when sent is still checked on receipt.
type Contract[T any] struct {
	codec     codec.Codec[T]
	validator *validate.Validator[T]
}

// New composes c and v. A nil v accepts every value.
func New[T any](c codec.Codec[T], v *validate.Validator[T]) *Contract[T] {
	return &Contract[T]{codec: c, validator: v}
}

// Encode validates data, then encodes it. A validation failure is returned
// before any bytes are produced.
func (c *Contract[T]) Encode(ctx context.Context, data T) ([]byte, error) {
	data, err := c.validate(ctx, data)
	if err != nil {
		return nil, err
	}
	return c.codec.Encode(data)
}

// Decode decodes buf, then validates the result.
func (c *Contract[T]) Decode(ctx context.Context, buf []byte) (T, error) {
	data, err := c.codec.Decode(buf)
	if err != nil {
		var zero T
		return zero, err
	}
	return c.validate(ctx, data)
}

func (c *Contract[T]) validate(ctx context.Context, data T) (T, error) {
	if c.validator == nil {
		return data, ctx.Err()
	}
	return c.validator.Validate(ctx, data)
}
