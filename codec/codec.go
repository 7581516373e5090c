// Package codec turns values into bytes and back at two levels:
//
//   - Codec[T] encodes one contract message shape (a request, a success
//     response, an error response) into a FlatBuffers buffer. See FlatBufferCodec.
//   - MessageCodec encodes the bus-level message.RPCMessage that carries those
//     buffers over the TCP and etcd transports. The frame header selects one
//     by CodecType.
package codec

import (
	"fmt"

	"contract-rpc/message"
)

// Codec is a pure, synchronous binary encoder/decoder for one message shape.
// It performs no semantic validation.
type Codec[T any] interface {
	Encode(v T) ([]byte, error)
	Decode(data []byte) (T, error)
}

type CodecType byte

const (
	CodecTypeJSON   CodecType = 0
	CodecTypeBinary CodecType = 1
	CodecTypeZstd   CodecType = 2
)

func (t CodecType) String() string {
	switch t {
	case CodecTypeJSON:
		return "json"
	case CodecTypeBinary:
		return "binary"
	case CodecTypeZstd:
		return "zstd"
	default:
		return fmt.Sprintf("codec(%d)", byte(t))
	}
}

// ParseCodecType maps a configuration name to a CodecType.
func ParseCodecType(name string) (CodecType, error) {
	switch name {
	case "json":
		return CodecTypeJSON, nil
	case "binary", "":
		return CodecTypeBinary, nil
	case "zstd":
		return CodecTypeZstd, nil
	default:
		return 0, fmt.Errorf("unknown codec %q", name)
	}
}

// MessageCodec serializes bus messages.
type MessageCodec interface {
	Encode(msg *message.RPCMessage) ([]byte, error)
	Decode(data []byte, msg *message.RPCMessage) error
	Type() CodecType
}

var (
	jsonCodec   = &JSONCodec{}
	binaryCodec = &BinaryCodec{}
	zstdCodec   = NewZstdCodec()
)

// GetCodec returns the shared MessageCodec for codecType.
func GetCodec(codecType CodecType) (MessageCodec, error) {
	switch codecType {
	case CodecTypeJSON:
		return jsonCodec, nil
	case CodecTypeBinary:
		return binaryCodec, nil
	case CodecTypeZstd:
		return zstdCodec, nil
	default:
		return nil, fmt.Errorf("unsupported codec type: %d", codecType)
	}
}
