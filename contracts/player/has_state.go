// Package player holds the Player.* call contracts, the caller-side
// Controller and the serving-side Service.
package player

import (
	"contract-rpc/codec"
	"contract-rpc/contract"
	"contract-rpc/contracts/player/fb"
	"contract-rpc/validate"

	flatbuffers "github.com/google/flatbuffers/go"
)

const HasStateName = "Player.hasState"

type HasStateRequest struct {
	State fb.PlayerState
}

type HasStateResponse struct {
	Result bool
}

var playerStates = func() []int64 {
	states := make([]int64, 0, len(fb.EnumNamesPlayerState))
	for s := fb.PlayerStateUnknown; s <= fb.PlayerStateAway; s++ {
		states = append(states, int64(s))
	}
	return states
}()

var hasStateRequestValidator = validate.New[HasStateRequest](HasStateName+"/request",
	validate.Field("state", func(r HasStateRequest) (any, bool) { return uint8(r.State), true },
		validate.Required(), validate.OneOf(playerStates...)),
)

var hasStateResponseValidator = validate.New[HasStateResponse](HasStateName+"/success",
	validate.Field("result", func(r HasStateResponse) (any, bool) { return r.Result, true },
		validate.Required(), validate.Bool()),
)

func encodeHasStateRequest(b *flatbuffers.Builder, r HasStateRequest) flatbuffers.UOffsetT {
	fb.RequestStart(b)
	fb.RequestAddState(b, r.State)
	return fb.RequestEnd(b)
}

func decodeHasStateRequest(buf []byte) (HasStateRequest, error) {
	return HasStateRequest{State: fb.GetRootAsRequest(buf, 0).State()}, nil
}

func encodeHasStateResponse(b *flatbuffers.Builder, r HasStateResponse) flatbuffers.UOffsetT {
	fb.SuccessResponseStart(b)
	fb.SuccessResponseAddResult(b, r.Result)
	return finishResponse(b, fb.BodySuccessResponse, fb.SuccessResponseEnd(b))
}

func decodeHasStateResponse(buf []byte) (HasStateResponse, error) {
	tab, err := body(buf)
	if err != nil {
		return HasStateResponse{}, err
	}
	var s fb.SuccessResponse
	s.Init(tab.Bytes, tab.Pos)
	return HasStateResponse{Result: s.Result()}, nil
}

// HasState asks whether a player is in a given state.
var HasState = contract.MustCallContract(HasStateName,
	contract.New[HasStateRequest](
		codec.NewFlatBufferCodec(HasStateName+"/request", encodeHasStateRequest, decodeHasStateRequest),
		hasStateRequestValidator),
	contract.New[HasStateResponse](
		codec.NewFlatBufferCodec(HasStateName+"/success", encodeHasStateResponse, decodeHasStateResponse),
		hasStateResponseValidator),
	Envelope,
)
