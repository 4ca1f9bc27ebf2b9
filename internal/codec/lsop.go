package codec

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
	"math"

	"github.com/klauspost/compress/flate"

	"github.com/gwlucastrig/gvrs-go/internal/bitio"
	"github.com/gwlucastrig/gvrs-go/internal/predictor"
)

// lsopHeaderBaseSize is the fixed-size prefix of the LSOP header, before
// the optional 4-byte value checksum: codec index(1) + nCoef(1) + seed(4)
// + 12 coefficients(4 each) + nInitCodes(4) + nInteriorCodes(4) + method(1).
const lsopHeaderBaseSize = 1 + 1 + 4 + 12*4 + 4 + 4 + 1

// LSOPCodec implements the decode-only 12-coefficient linear predictor
// codec (spec.md §4.5). It has no encoder: no GVRS writer in this module
// produces LSOP-compressed tiles, matching the "decode only" scope the
// original format carries forward unchanged.
type LSOPCodec struct{}

// NewLSOPCodec returns a ready-to-use LSOP codec.
func NewLSOPCodec() *LSOPCodec { return &LSOPCodec{} }

// Name implements Codec.
func (c *LSOPCodec) Name() string { return "lsop" }

// Clone implements Codec.
func (c *LSOPCodec) Clone() Codec { return &LSOPCodec{} }

// EncodeInt implements Codec. LSOP is decode-only.
func (c *LSOPCodec) EncodeInt([]int32, int, int) ([]byte, error) {
	return nil, ErrCompressionNotImplemented
}

// EncodeFloat implements Codec.
func (c *LSOPCodec) EncodeFloat([]float32, int, int) ([]byte, error) {
	return nil, ErrCompressionNotImplemented
}

// DecodeFloat implements Codec. LSOP predicts over integer tiles only.
func (c *LSOPCodec) DecodeFloat([]byte, int, int) ([]float32, error) {
	return nil, ErrCompressionNotImplemented
}

// DecodeInt implements Codec.
func (c *LSOPCodec) DecodeInt(data []byte, nRows, nCols int) ([]int32, error) {
	if nRows < 1 || nCols < 1 || len(data) < lsopHeaderBaseSize {
		return nil, ErrBadCompressionFormat
	}

	pos := 1 // codec index, unused on decode
	nCoef := int(data[pos])
	pos++
	if nCoef != 12 {
		return nil, fmt.Errorf("%w: unsupported LSOP coefficient count %d", ErrBadCompressionFormat, nCoef)
	}
	seed := int32(binary.LittleEndian.Uint32(data[pos:]))
	pos += 4

	var coef [12]float64
	for i := 0; i < 12; i++ {
		coef[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(data[pos:])))
		pos += 4
	}

	nInitCodes := int(binary.LittleEndian.Uint32(data[pos:]))
	pos += 4
	nInteriorCodes := int(binary.LittleEndian.Uint32(data[pos:]))
	pos += 4
	method := data[pos]
	pos++

	innerMethod := method & 0x0F
	hasChecksum := method&0x80 != 0
	var wantChecksum uint32
	if hasChecksum {
		if pos+4 > len(data) {
			return nil, ErrBadCompressionFormat
		}
		wantChecksum = binary.LittleEndian.Uint32(data[pos:])
		pos += 4
	}

	symbols, err := decodeLSOPInner(data[pos:], innerMethod, nInitCodes+nInteriorCodes)
	if err != nil {
		return nil, err
	}

	tile := make([]int32, nRows*nCols)
	tile[0] = seed
	si := 0

	setBorderCell := func(r, c int) {
		idx := r*nCols + c
		var predicted int32
		if c > 0 && r > 0 {
			left := tile[r*nCols+c-1]
			upperLeft := tile[(r-1)*nCols+c-1]
			up := tile[(r-1)*nCols+c]
			predicted = predictor.Triangle(left, upperLeft, up)
		} else if c > 0 {
			predicted = tile[r*nCols+c-1]
		} else {
			predicted = tile[(r-1)*nCols+c]
		}
		tile[idx] = symbols[si] + predicted
		si++
	}

	// Initialisation order per spec.md §4.5: top row, left column, second
	// row, second column (each skipping cells already set).
	for col := 1; col < nCols; col++ {
		setBorderCell(0, col)
	}
	for row := 1; row < nRows; row++ {
		setBorderCell(row, 0)
	}
	if nRows > 1 {
		for col := 1; col < nCols; col++ {
			setBorderCell(1, col)
		}
	}
	for row := 2; row < nRows; row++ {
		setBorderCell(row, 1)
	}

	for row := 2; row < nRows; row++ {
		for col := 2; col < nCols; col++ {
			idx := row*nCols + col
			if si >= len(symbols) {
				return nil, fmt.Errorf("%w: LSOP interior codes exhausted", ErrBadCompressionFormat)
			}
			var predicted int32
			if col <= nCols-3 {
				z := [12]int32{
					tile[(row-1)*nCols+col-2], tile[(row-1)*nCols+col-1], tile[(row-1)*nCols+col], tile[(row-1)*nCols+col+1], tile[(row-1)*nCols+col+2],
					tile[row*nCols+col-2], tile[row*nCols+col-1],
					tile[(row-2)*nCols+col-2], tile[(row-2)*nCols+col-1], tile[(row-2)*nCols+col], tile[(row-2)*nCols+col+1], tile[(row-2)*nCols+col+2],
				}
				var sum float64
				for i := 0; i < 12; i++ {
					sum += coef[i] * float64(z[i])
				}
				predicted = int32(math.Round(sum))
			} else {
				left := tile[row*nCols+col-1]
				upperLeft := tile[(row-1)*nCols+col-1]
				up := tile[(row-1)*nCols+col]
				predicted = predictor.Triangle(left, upperLeft, up)
			}
			tile[idx] = symbols[si] + predicted
			si++
		}
	}

	if hasChecksum {
		got := crc32.ChecksumIEEE(int32TileBytes(tile))
		if got != wantChecksum {
			return nil, fmt.Errorf("%w: LSOP value checksum mismatch", ErrBadCompressionFormat)
		}
	}

	return tile, nil
}

func int32TileBytes(tile []int32) []byte {
	buf := make([]byte, len(tile)*4)
	for i, v := range tile {
		binary.LittleEndian.PutUint32(buf[i*4:], uint32(v))
	}
	return buf
}

// decodeLSOPInner decodes exactly totalSymbols M32 symbols from the inner
// stream, pulling decoded bytes one at a time since LSOP's header carries a
// symbol count rather than a byte count for its inner stage.
func decodeLSOPInner(body []byte, innerMethod byte, totalSymbols int) ([]int32, error) {
	var nextByte func() (byte, bool, error)

	switch innerMethod {
	case 0:
		stream, err := newHuffmanByteStream(body)
		if err != nil {
			return nil, err
		}
		nextByte = func() (byte, bool, error) {
			b, ok := stream.NextByte()
			return b, ok, nil
		}
	case 1:
		fr := flate.NewReader(bytes.NewReader(body))
		nextByte = func() (byte, bool, error) {
			var buf [1]byte
			n, err := fr.Read(buf[:])
			if n == 1 {
				return buf[0], true, nil
			}
			if err == io.EOF {
				return 0, false, nil
			}
			return 0, false, err
		}
	default:
		return nil, fmt.Errorf("%w: unknown LSOP inner method %d", ErrBadCompressionFormat, innerMethod)
	}

	symbols := make([]int32, 0, totalSymbols)
	reader := bitio.NewM32Reader(nil)
	for len(symbols) < totalSymbols {
		b, ok, err := nextByte()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBadCompressionFormat, err)
		}
		if !ok {
			return nil, fmt.Errorf("%w: LSOP inner stream exhausted before expected symbol count", ErrBadCompressionFormat)
		}
		reader.Feed([]byte{b})
		for len(symbols) < totalSymbols {
			sym, ok := reader.TryNextSymbol()
			if !ok {
				break
			}
			symbols = append(symbols, sym)
		}
	}
	return symbols, nil
}
