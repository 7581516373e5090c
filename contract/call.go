package contract

import (
	"context"
	"errors"
	"fmt"

	"contract-rpc/rpcerr"
)

// CallContract is everything needed to call or serve one named call.
// Build one per call name at startup and share it.
type CallContract[Req, Res any] struct {
	name     string
	request  *Contract[Req]
	response *ResponseContract[Res]
}

func NewCallContract[Req, Res any](name string, request *Contract[Req], success *Contract[Res], env Envelope) (*CallContract[Req, Res], error) {
	if name == "" {
		return nil, errors.New("contract: empty call name")
	}
	if request == nil || success == nil {
		return nil, fmt.Errorf("contract %s: request and success contracts are required", name)
	}
	if env.ReadKind == nil || env.EncodeError == nil || env.DecodeError == nil {
		return nil, fmt.Errorf("contract %s: incomplete envelope", name)
	}
	if env.SuccessKind == env.ErrorKind || env.SuccessKind == 0 || env.ErrorKind == 0 {
		return nil, fmt.Errorf("contract %s: success and error body kinds must be distinct and non-zero", name)
	}
	return &CallContract[Req, Res]{
		name:     name,
		request:  request,
		response: NewResponseContract(success, env),
	}, nil
}

// MustCallContract is like NewCallContract but panics on error.
// It is meant for package-level contract variables.
func MustCallContract[Req, Res any](name string, request *Contract[Req], success *Contract[Res], env Envelope) *CallContract[Req, Res] {
	c, err := NewCallContract(name, request, success, env)
	if err != nil {
		panic(err)
	}
	return c
}

func (c *CallContract[Req, Res]) Name() string {
	return c.name
}

func (c *CallContract[Req, Res]) Response() *ResponseContract[Res] {
	return c.response
}

func (c *CallContract[Req, Res]) EncodeRequest(ctx context.Context, req Req) ([]byte, error) {
	return c.request.Encode(ctx, req)
}

func (c *CallContract[Req, Res]) DecodeRequest(ctx context.Context, buf []byte) (Req, error) {
	return c.request.Decode(ctx, buf)
}

func (c *CallContract[Req, Res]) EncodeSuccess(ctx context.Context, res Res) ([]byte, error) {
	return c.response.EncodeSuccess(ctx, res)
}

func (c *CallContract[Req, Res]) EncodeError(ctx context.Context, message string) ([]byte, error) {
	return c.response.EncodeError(ctx, message)
}

// DecodeResponse is ResponseContract.DecodeResponse with the call name filled
// into a returned RemoteError.
func (c *CallContract[Req, Res]) DecodeResponse(ctx context.Context, buf []byte) (Res, error) {
	res, err := c.response.DecodeResponse(ctx, buf)
	var remote *rpcerr.RemoteError
	if errors.As(err, &remote) {
		remote.Name = c.name
	}
	return res, err
}
