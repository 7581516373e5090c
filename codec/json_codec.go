package codec

import (
	"contract-rpc/message"

	json "github.com/goccy/go-json"
)

// JSONCodec serializes bus messages as JSON.
// Human-readable and easy to inspect on the wire; Payload is base64 encoded.
type JSONCodec struct{}

func (c *JSONCodec) Encode(msg *message.RPCMessage) ([]byte, error) {
	return json.Marshal(msg)
}

func (c *JSONCodec) Decode(data []byte, msg *message.RPCMessage) error {
	return json.Unmarshal(data, msg)
}

func (c *JSONCodec) Type() CodecType {
	return CodecTypeJSON
}
