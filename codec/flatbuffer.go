package codec

import (
	"fmt"
	"sync"

	"contract-rpc/rpcerr"

	flatbuffers "github.com/google/flatbuffers/go"
)

// EncodeFunc writes v into b and returns the offset of the root table.
// It is the per-message primitive emitted alongside the generated binding.
type EncodeFunc[T any] func(b *flatbuffers.Builder, v T) flatbuffers.UOffsetT

// DecodeFunc reads a value from a finished buffer. It may panic on malformed
// input; FlatBufferCodec converts that into a DecodeError.
type DecodeFunc[T any] func(buf []byte) (T, error)

var builderPool = sync.Pool{
	New: func() any { return flatbuffers.NewBuilder(256) },
}

// FlatBufferCodec is a Codec over one root table of a generated schema.
type FlatBufferCodec[T any] struct {
	shape  string
	encode EncodeFunc[T]
	decode DecodeFunc[T]
}

func NewFlatBufferCodec[T any](shape string, encode EncodeFunc[T], decode DecodeFunc[T]) *FlatBufferCodec[T] {
	return &FlatBufferCodec[T]{shape: shape, encode: encode, decode: decode}
}

func (c *FlatBufferCodec[T]) Shape() string {
	return c.shape
}

// Encode returns a buffer owned by the caller.
func (c *FlatBufferCodec[T]) Encode(v T) (out []byte, err error) {
	b := builderPool.Get().(*flatbuffers.Builder)
	defer func() {
		if r := recover(); r != nil {
			// a builder that panicked mid-object is dropped, not pooled
			err = fmt.Errorf("codec: encode %s: %v", c.shape, r)
			return
		}
		b.Reset()
		builderPool.Put(b)
	}()

	b.Finish(c.encode(b, v))
	finished := b.FinishedBytes()
	out = make([]byte, len(finished))
	copy(out, finished)
	return out, nil
}

func (c *FlatBufferCodec[T]) Decode(data []byte) (v T, err error) {
	if len(data) < flatbuffers.SizeUOffsetT {
		return v, &rpcerr.DecodeError{Shape: c.shape, Reason: fmt.Sprintf("buffer too short (%d bytes)", len(data))}
	}
	if root := flatbuffers.GetUOffsetT(data); int(root) >= len(data) {
		return v, &rpcerr.DecodeError{Shape: c.shape, Reason: fmt.Sprintf("root offset %d out of range", root)}
	}

	defer func() {
		if r := recover(); r != nil {
			var zero T
			v, err = zero, &rpcerr.DecodeError{Shape: c.shape, Reason: fmt.Sprintf("malformed buffer: %v", r)}
		}
	}()
	v, err = c.decode(data)
	if err != nil {
		return v, asDecodeError(c.shape, err)
	}
	return v, nil
}

func asDecodeError(shape string, err error) error {
	if rpcerr.KindOf(err) != rpcerr.KindUnknown {
		return err
	}
	return &rpcerr.DecodeError{Shape: shape, Err: err}
}
