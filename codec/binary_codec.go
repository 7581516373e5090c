package codec

import (
	"encoding/binary"
	"errors"
	"math"

	"contract-rpc/message"
)

var (
	ErrShortMessage = errors.New("codec: short message")
	ErrFieldTooLong = errors.New("codec: field too long")
)

// BinaryCodec serializes bus messages with explicit length prefixes:
//
//	┌─────────┬──────┬────────┬────────────┬─────────┬────────┬───────┐
//	│ nameLen │ name │ status │ payloadLen │ payload │ errLen │ error │
//	│ uint16  │      │ uint8  │   uint32   │         │ uint16 │       │
//	└─────────┴──────┴────────┴────────────┴─────────┴────────┴───────┘
type BinaryCodec struct{}

func (c *BinaryCodec) Encode(msg *message.RPCMessage) ([]byte, error) {
	if len(msg.Name) > math.MaxUint16 || len(msg.Error) > math.MaxUint16 || len(msg.Payload) > math.MaxUint32 {
		return nil, ErrFieldTooLong
	}
	total := 2 + len(msg.Name) + 1 + 4 + len(msg.Payload) + 2 + len(msg.Error)
	buf := make([]byte, total)

	offset := 0
	binary.BigEndian.PutUint16(buf[offset:offset+2], uint16(len(msg.Name)))
	offset += 2
	offset += copy(buf[offset:], msg.Name)

	buf[offset] = byte(msg.Status)
	offset++

	binary.BigEndian.PutUint32(buf[offset:offset+4], uint32(len(msg.Payload)))
	offset += 4
	offset += copy(buf[offset:], msg.Payload)

	binary.BigEndian.PutUint16(buf[offset:offset+2], uint16(len(msg.Error)))
	offset += 2
	copy(buf[offset:], msg.Error)
	return buf, nil
}

// Decode never reads past data; a truncated message yields ErrShortMessage.
func (c *BinaryCodec) Decode(data []byte, msg *message.RPCMessage) error {
	offset := 0
	take := func(n int) ([]byte, error) {
		if n < 0 || len(data)-offset < n {
			return nil, ErrShortMessage
		}
		b := data[offset : offset+n]
		offset += n
		return b, nil
	}

	b, err := take(2)
	if err != nil {
		return err
	}
	name, err := take(int(binary.BigEndian.Uint16(b)))
	if err != nil {
		return err
	}

	status, err := take(1)
	if err != nil {
		return err
	}

	if b, err = take(4); err != nil {
		return err
	}
	payload, err := take(int(binary.BigEndian.Uint32(b)))
	if err != nil {
		return err
	}

	if b, err = take(2); err != nil {
		return err
	}
	errText, err := take(int(binary.BigEndian.Uint16(b)))
	if err != nil {
		return err
	}

	msg.Name = string(name)
	msg.Status = message.Status(status[0])
	msg.Payload = make([]byte, len(payload))
	copy(msg.Payload, payload)
	msg.Error = string(errText)
	return nil
}

func (c *BinaryCodec) Type() CodecType {
	return CodecTypeBinary
}
