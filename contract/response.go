package contract

import (
	"context"
	"fmt"

	"contract-rpc/codec"
	"contract-rpc/rpcerr"
)

// ResponseContract pairs a success and an error contract sharing one envelope.
type ResponseContract[S any] struct {
	Success *Contract[S]
	Error   *Contract[ErrorResponse]

	envelope Envelope
	kind     *codec.FlatBufferCodec[BodyKind]
}

func NewResponseContract[S any](success *Contract[S], env Envelope) *ResponseContract[S] {
	return &ResponseContract[S]{
		Success:  success,
		Error:    NewErrorContract(env),
		envelope: env,
		kind:     codec.NewFlatBufferCodec[BodyKind](env.Shape, nil, env.ReadKind),
	}
}

// EncodeSuccess validates and encodes a success envelope.
func (r *ResponseContract[S]) EncodeSuccess(ctx context.Context, data S) ([]byte, error) {
	return r.Success.Encode(ctx, data)
}

// EncodeError validates and encodes an error envelope carrying message.
func (r *ResponseContract[S]) EncodeError(ctx context.Context, message string) ([]byte, error) {
	return r.Error.Encode(ctx, ErrorResponse{Message: message})
}

// DecodeResponse reads the discriminator first and only then decodes the body
// it selects; the body bytes alone never decide which shape is read.
//
// An error body yields a *rpcerr.RemoteError whose message is the decoded one.
// A missing or unknown discriminator is a *rpcerr.DecodeError.
func (r *ResponseContract[S]) DecodeResponse(ctx context.Context, buf []byte) (S, error) {
	var zero S
	kind, err := r.kind.Decode(buf)
	if err != nil {
		return zero, err
	}

	switch kind {
	case r.envelope.SuccessKind:
		return r.Success.Decode(ctx, buf)
	case r.envelope.ErrorKind:
		body, err := r.Error.Decode(ctx, buf)
		if err != nil {
			return zero, err
		}
		return zero, &rpcerr.RemoteError{Message: body.Message}
	case 0:
		return zero, &rpcerr.DecodeError{Shape: r.envelope.Shape, Reason: "missing body"}
	default:
		return zero, &rpcerr.DecodeError{Shape: r.envelope.Shape, Reason: fmt.Sprintf("unknown body type %d", kind)}
	}
}
