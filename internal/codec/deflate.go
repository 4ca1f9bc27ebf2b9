package codec

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/flate"

	"github.com/gwlucastrig/gvrs-go/internal/bitio"
	"github.com/gwlucastrig/gvrs-go/internal/predictor"
)

// DefaultDeflateLevel and MaxDeflateLevel are the two compression levels
// spec.md §4.3 names: the codec's default, and the level selected when the
// "maximum compression" option is set on the codec instance.
const (
	DefaultDeflateLevel = 6
	MaxDeflateLevel     = 9
)

func deflateBytes(data []byte, level int) ([]byte, error) {
	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, level)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func inflateBytes(data []byte, n int) ([]byte, error) {
	r := flate.NewReader(bytes.NewReader(data))
	defer r.Close()
	out := make([]byte, n)
	if _, err := io.ReadFull(r, out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadCompressionFormat, err)
	}
	return out, nil
}

// DeflateCodec implements the DEFLATE-backed integer codec (spec.md §4.3):
// the same predictor-plus-M32 pipeline as HuffmanCodec, with the residual
// stream compressed by github.com/klauspost/compress/flate instead of a
// hand-rolled Huffman tree.
type DeflateCodec struct {
	level int
}

// NewDeflateCodec returns a DeflateCodec at the default compression level.
func NewDeflateCodec() *DeflateCodec {
	return &DeflateCodec{level: DefaultDeflateLevel}
}

// SetMaximumCompression switches between the default and maximum
// compression levels.
func (c *DeflateCodec) SetMaximumCompression(on bool) {
	if on {
		c.level = MaxDeflateLevel
	} else {
		c.level = DefaultDeflateLevel
	}
}

// Name implements Codec.
func (c *DeflateCodec) Name() string { return "deflate" }

// Clone implements Codec.
func (c *DeflateCodec) Clone() Codec { return &DeflateCodec{level: c.level} }

// EncodeInt implements Codec. It tries all three predictors and keeps the
// smallest deflated payload, returning ErrCompressionFailure if even the
// best candidate does not deflate smaller than its raw M32 buffer (the
// container falls back to storing the tile uncompressed in that case).
func (c *DeflateCodec) EncodeInt(tile []int32, nRows, nCols int) ([]byte, error) {
	if nRows <= 0 || nCols <= 0 || len(tile) != nRows*nCols {
		return nil, fmt.Errorf("codec: invalid tile dimensions %dx%d for %d values", nRows, nCols, len(tile))
	}

	var best []byte
	var bestBodyLen, bestRawLen int
	for _, kind := range []predictor.Kind{predictor.P1, predictor.P2, predictor.P3} {
		seed, residuals := predictor.Encode(kind, nRows, nCols, tile)
		m32 := bitio.NewM32Writer()
		for _, r := range residuals {
			m32.PutSymbol(r)
		}
		m32Bytes := m32.Bytes()

		deflated, err := deflateBytes(m32Bytes, c.level)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCompressionFailure, err)
		}

		header := encodeIntHeader(CodecIndexDeflate, byte(kind), seed, uint32(len(m32Bytes)))
		payload := append(header, deflated...)
		if best == nil || len(deflated) < bestBodyLen {
			best = payload
			bestBodyLen = len(deflated)
			bestRawLen = len(m32Bytes)
		}
	}
	if bestBodyLen >= bestRawLen {
		return nil, ErrCompressionFailure
	}
	return best, nil
}

// DecodeInt implements Codec.
func (c *DeflateCodec) DecodeInt(data []byte, nRows, nCols int) ([]int32, error) {
	_, predictorIdx, seed, m32Count, rest, err := decodeIntHeader(data)
	if err != nil {
		return nil, err
	}
	m32Bytes, err := inflateBytes(rest, int(m32Count))
	if err != nil {
		return nil, err
	}

	m32r := bitio.NewM32Reader(m32Bytes)
	residuals := make([]int32, nRows*nCols-1)
	for i := range residuals {
		residuals[i] = m32r.NextSymbol()
	}
	return predictor.Decode(predictor.Kind(predictorIdx), nRows, nCols, seed, residuals), nil
}

// EncodeFloat implements Codec. The Deflate integer codec does not handle
// Float32 tiles; FloatCodec does.
func (c *DeflateCodec) EncodeFloat([]float32, int, int) ([]byte, error) {
	return nil, ErrCompressionNotImplemented
}

// DecodeFloat implements Codec.
func (c *DeflateCodec) DecodeFloat([]byte, int, int) ([]float32, error) {
	return nil, ErrCompressionNotImplemented
}
