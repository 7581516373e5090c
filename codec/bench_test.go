package codec

import (
	"testing"

	"contract-rpc/message"
)

func BenchmarkMessageCodecs(b *testing.B) {
	msg := sampleMessage()
	for _, ct := range []CodecType{CodecTypeJSON, CodecTypeBinary, CodecTypeZstd} {
		b.Run(ct.String(), func(b *testing.B) {
			c, err := GetCodec(ct)
			if err != nil {
				b.Fatal(err)
			}
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				data, err := c.Encode(msg)
				if err != nil {
					b.Fatal(err)
				}
				var out message.RPCMessage
				if err := c.Decode(data, &out); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

func BenchmarkFlatBufferCodec(b *testing.B) {
	c := NewFlatBufferCodec("point", encodePoint, decodePoint)
	p := point{X: 42, Name: "orc"}
	b.ReportAllocs()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			data, err := c.Encode(p)
			if err != nil {
				b.Error(err)
				return
			}
			if _, err := c.Decode(data); err != nil {
				b.Error(err)
				return
			}
		}
	})
}
