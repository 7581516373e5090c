package contract

import (
	"contract-rpc/codec"
	"contract-rpc/validate"
)

// BodyKind is the numeric value of a response union discriminator.
type BodyKind uint8

// ErrorResponse is the error body every response envelope carries.
type ErrorResponse struct {
	Message string
}

// Envelope describes a generated response root: a discriminator plus a union
// body that is either the call's success shape or ErrorResponse.
//
// The primitives work on whole buffers. EncodeError builds the full root with
// the error body selected; ReadKind reads nothing but the discriminator.
type Envelope struct {
	Shape       string
	SuccessKind BodyKind
	ErrorKind   BodyKind
	ReadKind    codec.DecodeFunc[BodyKind]
	EncodeError codec.EncodeFunc[ErrorResponse]
	DecodeError codec.DecodeFunc[ErrorResponse]
}

// ErrorValidator requires the message to be present and valid UTF-8.
func ErrorValidator(shape string) *validate.Validator[ErrorResponse] {
	return validate.New[ErrorResponse](shape,
		validate.Field("message", func(r ErrorResponse) (any, bool) { return r.Message, true },
			validate.Required(), validate.UTF8()),
	)
}

// NewErrorContract builds the error contract for env.
func NewErrorContract(env Envelope) *Contract[ErrorResponse] {
	shape := env.Shape + "/error"
	return New[ErrorResponse](
		codec.NewFlatBufferCodec(shape, env.EncodeError, env.DecodeError),
		ErrorValidator(shape),
	)
}
