package codec

import (
	"encoding/binary"
	"fmt"
	"math"
)

// NoneCodec stores tile element data uncompressed: a leading codec-index
// byte (CodecIndexNone) followed by raw little-endian int32/float32 values.
// It is the default for an element with no codec configured, and the
// fallback the container engine uses when a compressing codec reports
// ErrCompressionFailure (spec.md §4.3).
type NoneCodec struct{}

// NewNoneCodec returns a NoneCodec.
func NewNoneCodec() *NoneCodec { return &NoneCodec{} }

// Name implements Codec.
func (c *NoneCodec) Name() string { return "none" }

// Clone implements Codec.
func (c *NoneCodec) Clone() Codec { return &NoneCodec{} }

// EncodeInt implements Codec.
func (c *NoneCodec) EncodeInt(tile []int32, nRows, nCols int) ([]byte, error) {
	if nRows <= 0 || nCols <= 0 || len(tile) != nRows*nCols {
		return nil, fmt.Errorf("codec: invalid tile dimensions %dx%d for %d values", nRows, nCols, len(tile))
	}
	out := make([]byte, 1+len(tile)*4)
	out[0] = CodecIndexNone
	for i, v := range tile {
		binary.LittleEndian.PutUint32(out[1+i*4:], uint32(v))
	}
	return out, nil
}

// DecodeInt implements Codec.
func (c *NoneCodec) DecodeInt(data []byte, nRows, nCols int) ([]int32, error) {
	n := nRows * nCols
	if len(data) != 1+n*4 {
		return nil, fmt.Errorf("%w: expected %d raw bytes, got %d", ErrBadCompressionFormat, 1+n*4, len(data))
	}
	if data[0] != CodecIndexNone {
		return nil, fmt.Errorf("%w: unexpected codec index %d for none codec", ErrBadCompressionFormat, data[0])
	}
	out := make([]int32, n)
	for i := range out {
		out[i] = int32(binary.LittleEndian.Uint32(data[1+i*4:]))
	}
	return out, nil
}

// EncodeFloat implements Codec.
func (c *NoneCodec) EncodeFloat(tile []float32, nRows, nCols int) ([]byte, error) {
	if nRows <= 0 || nCols <= 0 || len(tile) != nRows*nCols {
		return nil, fmt.Errorf("codec: invalid tile dimensions %dx%d for %d values", nRows, nCols, len(tile))
	}
	out := make([]byte, 1+len(tile)*4)
	out[0] = CodecIndexNone
	for i, v := range tile {
		binary.LittleEndian.PutUint32(out[1+i*4:], math.Float32bits(v))
	}
	return out, nil
}

// DecodeFloat implements Codec.
func (c *NoneCodec) DecodeFloat(data []byte, nRows, nCols int) ([]float32, error) {
	n := nRows * nCols
	if len(data) != 1+n*4 {
		return nil, fmt.Errorf("%w: expected %d raw bytes, got %d", ErrBadCompressionFormat, 1+n*4, len(data))
	}
	if data[0] != CodecIndexNone {
		return nil, fmt.Errorf("%w: unexpected codec index %d for none codec", ErrBadCompressionFormat, data[0])
	}
	out := make([]float32, n)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[1+i*4:]))
	}
	return out, nil
}
