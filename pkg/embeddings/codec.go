package embeddings

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Marshal converts a vector to a little-endian float32 byte slice.
// The encoding is lossless, so a vector read back from a cache or a store is
// bit-identical to the one written.
func Marshal(v Vector) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// Unmarshal converts a little-endian byte slice back to a vector.
func Unmarshal(b []byte) (Vector, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("invalid embedding blob length %d: must be divisible by 4", len(b))
	}
	v := make(Vector, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v, nil
}
