package protocol

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"
)

// SampleSize is the size of one float32 sample in a data payload
const SampleSize = 4

// SampleCount returns the number of whole samples in a payload of n bytes.
// A trailing partial sample is ignored.
func SampleCount(n int) int {
	return n / SampleSize
}

// DecodeSamples appends the float32 samples contained in payload to dst
func DecodeSamples(dst []float32, payload []byte, order binary.ByteOrder) []float32 {
	count := SampleCount(len(payload))
	for i := 0; i < count; i++ {
		bits := order.Uint32(payload[i*SampleSize:])
		dst = append(dst, math.Float32frombits(bits))
	}
	return dst
}

// EncodeSamples appends samples to dst in the given byte order
func EncodeSamples(dst []byte, samples []float32, order binary.ByteOrder) []byte {
	var b [SampleSize]byte
	for _, s := range samples {
		order.PutUint32(b[:], math.Float32bits(s))
		dst = append(dst, b[:]...)
	}
	return dst
}

// ParseByteOrder maps a configuration value to a byte order.
// Empty means little-endian, the order acquisition servers emit samples in.
func ParseByteOrder(s string) (binary.ByteOrder, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "little", "little-endian", "le":
		return binary.LittleEndian, nil
	case "big", "big-endian", "be", "network":
		return binary.BigEndian, nil
	default:
		return nil, fmt.Errorf("unknown sample byte order %q (expected little or big)", s)
	}
}
