package codec

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/gwlucastrig/gvrs-go/internal/bitio"
)

// diffPlaneRows applies the same row-major, left/above neighbour rule as
// predictor.P1 to a byte plane: the first cell is stored raw as the seed,
// every other cell is replaced by its difference from the left neighbour
// (or, at a row start, the cell directly above). Byte subtraction wraps mod
// 256, which is exactly the behaviour needed to invert cleanly regardless
// of the plane's value range.
func diffPlaneRows(nRows, nCols int, plane []byte) []byte {
	out := make([]byte, len(plane))
	out[0] = plane[0]
	for r := 0; r < nRows; r++ {
		for c := 0; c < nCols; c++ {
			if r == 0 && c == 0 {
				continue
			}
			idx := r*nCols + c
			var pred byte
			if c == 0 {
				pred = plane[(r-1)*nCols+c]
			} else {
				pred = plane[r*nCols+c-1]
			}
			out[idx] = plane[idx] - pred
		}
	}
	return out
}

func undiffPlaneRows(nRows, nCols int, diffed []byte) []byte {
	out := make([]byte, len(diffed))
	out[0] = diffed[0]
	for r := 0; r < nRows; r++ {
		for c := 0; c < nCols; c++ {
			if r == 0 && c == 0 {
				continue
			}
			idx := r*nCols + c
			var pred byte
			if c == 0 {
				pred = out[(r-1)*nCols+c]
			} else {
				pred = out[r*nCols+c-1]
			}
			out[idx] = diffed[idx] + pred
		}
	}
	return out
}

// FloatCodec implements the differencing-based floating-point codec
// (spec.md §4.4): each IEEE-754 binary32 value is split into five
// bit/byte planes (sign, exponent, mantissa-high/mid/low), the three
// mantissa planes are horizontally differenced per row, and all five
// planes are DEFLATE-compressed independently.
type FloatCodec struct {
	level int
}

// NewFloatCodec returns a FloatCodec at the default compression level.
func NewFloatCodec() *FloatCodec {
	return &FloatCodec{level: DefaultDeflateLevel}
}

// Name implements Codec.
func (c *FloatCodec) Name() string { return "float" }

// Clone implements Codec.
func (c *FloatCodec) Clone() Codec { return &FloatCodec{level: c.level} }

// EncodeInt implements Codec. FloatCodec only handles Float32 tiles; the
// Huffman/Deflate integer codecs cover Int32/Int16/IntCodedFloat storage.
func (c *FloatCodec) EncodeInt([]int32, int, int) ([]byte, error) {
	return nil, ErrCompressionNotImplemented
}

// DecodeInt implements Codec.
func (c *FloatCodec) DecodeInt([]byte, int, int) ([]int32, error) {
	return nil, ErrCompressionNotImplemented
}

// EncodeFloat implements Codec.
func (c *FloatCodec) EncodeFloat(tile []float32, nRows, nCols int) ([]byte, error) {
	n := nRows * nCols
	if nRows <= 0 || nCols <= 0 || len(tile) != n {
		return nil, fmt.Errorf("codec: invalid tile dimensions %dx%d for %d values", nRows, nCols, len(tile))
	}

	signOut := bitio.NewBitOutput()
	exponent := make([]byte, n)
	mantHigh := make([]byte, n)
	mantMid := make([]byte, n)
	mantLow := make([]byte, n)
	for i, v := range tile {
		bits := math.Float32bits(v)
		signOut.PutBit(int(bits >> 31))
		exponent[i] = byte((bits >> 23) & 0xFF)
		mantissa := bits & 0x7FFFFF
		mantHigh[i] = byte((mantissa >> 16) & 0x7F)
		mantMid[i] = byte((mantissa >> 8) & 0xFF)
		mantLow[i] = byte(mantissa & 0xFF)
	}

	planes := [][]byte{
		signOut.Finalize(),
		exponent,
		diffPlaneRows(nRows, nCols, mantHigh),
		diffPlaneRows(nRows, nCols, mantMid),
		diffPlaneRows(nRows, nCols, mantLow),
	}

	out := []byte{CodecIndexFloat, 0}
	for _, p := range planes {
		deflated, err := deflateBytes(p, c.level)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCompressionFailure, err)
		}
		var lenBuf [4]byte
		binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(deflated)))
		out = append(out, lenBuf[:]...)
		out = append(out, deflated...)
	}
	return out, nil
}

// DecodeFloat implements Codec.
func (c *FloatCodec) DecodeFloat(data []byte, nRows, nCols int) ([]float32, error) {
	n := nRows * nCols
	if nRows <= 0 || nCols <= 0 || len(data) < 2 {
		return nil, ErrBadCompressionFormat
	}

	pos := 2
	planeLens := [5]int{(n + 7) / 8, n, n, n, n}
	planes := make([][]byte, 5)
	for i, plen := range planeLens {
		if pos+4 > len(data) {
			return nil, ErrBadCompressionFormat
		}
		dlen := int(binary.LittleEndian.Uint32(data[pos : pos+4]))
		pos += 4
		if dlen < 0 || pos+dlen > len(data) {
			return nil, ErrBadCompressionFormat
		}
		inflated, err := inflateBytes(data[pos:pos+dlen], plen)
		if err != nil {
			return nil, err
		}
		planes[i] = inflated
		pos += dlen
	}

	signBytes, exponent := planes[0], planes[1]
	mantHigh := undiffPlaneRows(nRows, nCols, planes[2])
	mantMid := undiffPlaneRows(nRows, nCols, planes[3])
	mantLow := undiffPlaneRows(nRows, nCols, planes[4])

	signIn := bitio.NewBitInput(signBytes)
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		sign := uint32(signIn.GetBit())
		bits := sign<<31 | uint32(exponent[i])<<23 | uint32(mantHigh[i])<<16 | uint32(mantMid[i])<<8 | uint32(mantLow[i])
		out[i] = math.Float32frombits(bits)
	}
	return out, nil
}
