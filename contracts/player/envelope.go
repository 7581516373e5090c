package player

import (
	"errors"

	"contract-rpc/contract"
	"contract-rpc/contracts/player/fb"

	flatbuffers "github.com/google/flatbuffers/go"
)

var (
	errMissingBody    = errors.New("missing body")
	errMissingMessage = errors.New("missing message")
)

// Envelope binds the generated fb.Response root to the contract layer.
var Envelope = contract.Envelope{
	Shape:       "Player.Response",
	SuccessKind: contract.BodyKind(fb.BodySuccessResponse),
	ErrorKind:   contract.BodyKind(fb.BodyErrorResponse),
	ReadKind:    readBodyKind,
	EncodeError: encodeError,
	DecodeError: decodeError,
}

func readBodyKind(buf []byte) (contract.BodyKind, error) {
	return contract.BodyKind(fb.GetRootAsResponse(buf, 0).BodyType()), nil
}

// finishResponse wraps an already built body table in a Response root.
func finishResponse(b *flatbuffers.Builder, kind fb.Body, body flatbuffers.UOffsetT) flatbuffers.UOffsetT {
	fb.ResponseStart(b)
	fb.ResponseAddBodyType(b, kind)
	fb.ResponseAddBody(b, body)
	return fb.ResponseEnd(b)
}

// body resolves the union body of a Response root.
func body(buf []byte) (flatbuffers.Table, error) {
	var tab flatbuffers.Table
	if !fb.GetRootAsResponse(buf, 0).Body(&tab) {
		return tab, errMissingBody
	}
	return tab, nil
}

func encodeError(b *flatbuffers.Builder, r contract.ErrorResponse) flatbuffers.UOffsetT {
	msg := b.CreateString(r.Message)
	fb.ErrorResponseStart(b)
	fb.ErrorResponseAddMessage(b, msg)
	return finishResponse(b, fb.BodyErrorResponse, fb.ErrorResponseEnd(b))
}

func decodeError(buf []byte) (contract.ErrorResponse, error) {
	tab, err := body(buf)
	if err != nil {
		return contract.ErrorResponse{}, err
	}
	var e fb.ErrorResponse
	e.Init(tab.Bytes, tab.Pos)
	msg := e.Message()
	if msg == nil {
		return contract.ErrorResponse{}, errMissingMessage
	}
	return contract.ErrorResponse{Message: string(msg)}, nil
}
