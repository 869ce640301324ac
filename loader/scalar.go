package loader

import (
	bfloat16 "github.com/d4l3k/go-bfloat16"
	"github.com/x448/float16"
)

// DecodeFP16Field converts a 2-byte IEEE-754 half-precision field, as
// written into a model file's config blob, to float32.
func DecodeFP16Field(b []byte) float32 {
	bits := uint16(b[0]) | uint16(b[1])<<8
	return float16.Frombits(bits).Float32()
}

// DecodeBF16Field converts a 2-byte bfloat16 field to float32.
func DecodeBF16Field(b []byte) float32 {
	out := bfloat16.Decode(b)
	if len(out) == 0 {
		return 0
	}
	return bfloat16.ToFloat32(out[0])
}
