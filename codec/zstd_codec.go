package codec

import (
	"fmt"

	"contract-rpc/message"

	"github.com/klauspost/compress/zstd"
)

// maxDecodedSize bounds decompression so a small frame cannot expand without limit.
const maxDecodedSize = 16 << 20

// ZstdCodec is BinaryCodec with the encoded message compressed by zstd.
// Worth it for large payloads; small request envelopes usually grow slightly.
type ZstdCodec struct {
	inner   BinaryCodec
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

// NewZstdCodec creates a codec whose encoder and decoder are shared.
// EncodeAll and DecodeAll are safe for concurrent use.
func NewZstdCodec() *ZstdCodec {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		panic(fmt.Sprintf("codec: zstd encoder: %v", err))
	}
	dec, err := zstd.NewReader(nil, zstd.WithDecoderMaxMemory(maxDecodedSize))
	if err != nil {
		panic(fmt.Sprintf("codec: zstd decoder: %v", err))
	}
	return &ZstdCodec{encoder: enc, decoder: dec}
}

func (c *ZstdCodec) Encode(msg *message.RPCMessage) ([]byte, error) {
	raw, err := c.inner.Encode(msg)
	if err != nil {
		return nil, err
	}
	return c.encoder.EncodeAll(raw, make([]byte, 0, len(raw))), nil
}

func (c *ZstdCodec) Decode(data []byte, msg *message.RPCMessage) error {
	raw, err := c.decoder.DecodeAll(data, nil)
	if err != nil {
		return fmt.Errorf("codec: zstd: %w", err)
	}
	return c.inner.Decode(raw, msg)
}

func (c *ZstdCodec) Type() CodecType {
	return CodecTypeZstd
}
