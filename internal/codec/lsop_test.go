package codec

import (
	"encoding/binary"
	"hash/crc32"
	"math"
	"reflect"
	"testing"

	"github.com/gwlucastrig/gvrs-go/internal/bitio"
)

// buildLSOPPayload assembles a spec.md §4.5-shaped LSOP record by hand, so
// DecodeInt can be exercised without an encoder (LSOP is decode-only).
func buildLSOPPayload(t *testing.T, seed int32, coef [12]float32, nInitCodes, nInteriorCodes int, innerMethod byte, symbols []int32, checksum *uint32) []byte {
	t.Helper()

	m32 := bitio.NewM32Writer()
	for _, s := range symbols {
		m32.PutSymbol(s)
	}

	var body []byte
	switch innerMethod {
	case 0:
		body = huffmanEncodeBytes(m32.Bytes())
	case 1:
		deflated, err := deflateBytes(m32.Bytes(), DefaultDeflateLevel)
		if err != nil {
			t.Fatalf("deflate: %v", err)
		}
		body = deflated
	default:
		t.Fatalf("unsupported inner method %d", innerMethod)
	}

	method := innerMethod
	if checksum != nil {
		method |= 0x80
	}

	buf := make([]byte, 0, lsopHeaderBaseSize+4+len(body))
	buf = append(buf, CodecIndexLSOP, 12)
	var tmp4 [4]byte
	binary.LittleEndian.PutUint32(tmp4[:], uint32(seed))
	buf = append(buf, tmp4[:]...)
	for _, cv := range coef {
		binary.LittleEndian.PutUint32(tmp4[:], math.Float32bits(cv))
		buf = append(buf, tmp4[:]...)
	}
	binary.LittleEndian.PutUint32(tmp4[:], uint32(nInitCodes))
	buf = append(buf, tmp4[:]...)
	binary.LittleEndian.PutUint32(tmp4[:], uint32(nInteriorCodes))
	buf = append(buf, tmp4[:]...)
	buf = append(buf, method)
	if checksum != nil {
		binary.LittleEndian.PutUint32(tmp4[:], *checksum)
		buf = append(buf, tmp4[:]...)
	}
	buf = append(buf, body...)
	return buf
}

func lsopSampleTile() (nRows, nCols int, tile []int32) {
	nRows, nCols = 4, 5
	tile = make([]int32, nRows*nCols)
	for r := 0; r < nRows; r++ {
		for c := 0; c < nCols; c++ {
			tile[r*nCols+c] = int32(r*nCols + c + 1)
		}
	}
	return nRows, nCols, tile
}

// lsopSampleSymbols is the hand-derived residual stream for lsopSampleTile
// with all-zero coefficients (so the 12-coefficient stencil always
// predicts 0, and only the triangle fallback and boundary rule matter).
func lsopSampleSymbols() []int32 {
	return []int32{
		// top row (r=0, c=1..4): delta from left
		1, 1, 1, 1,
		// left column (r=1..3, c=0): delta from above
		5, 5, 5,
		// second row (r=1, c=1..4): triangle(left, upperLeft, up)
		1, 1, 1, 1,
		// second column (r=2..3, c=1): triangle(left, upperLeft, up)
		1, 1,
		// interior (r=2..3, c=2..4): zero-coefficient stencil for c=2,
		// triangle fallback for c=3,4
		13, 1, 1,
		18, 1, 1,
	}
}

func TestLSOPDecodeIntHuffmanInner(t *testing.T) {
	nRows, nCols, want := lsopSampleTile()
	symbols := lsopSampleSymbols()
	var coef [12]float32 // all zero

	data := buildLSOPPayload(t, want[0], coef, 13, 6, 0, symbols, nil)

	c := NewLSOPCodec()
	got, err := c.DecodeInt(data, nRows, nCols)
	if err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("mismatch\n got  %v\n want %v", got, want)
	}
}

func TestLSOPDecodeIntDeflateInner(t *testing.T) {
	nRows, nCols, want := lsopSampleTile()
	symbols := lsopSampleSymbols()
	var coef [12]float32

	data := buildLSOPPayload(t, want[0], coef, 13, 6, 1, symbols, nil)

	c := NewLSOPCodec()
	got, err := c.DecodeInt(data, nRows, nCols)
	if err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("mismatch\n got  %v\n want %v", got, want)
	}
}

func TestLSOPDecodeIntChecksumVerified(t *testing.T) {
	nRows, nCols, want := lsopSampleTile()
	symbols := lsopSampleSymbols()
	var coef [12]float32

	goodChecksum := crc32.ChecksumIEEE(int32TileBytes(want))
	data := buildLSOPPayload(t, want[0], coef, 13, 6, 0, symbols, &goodChecksum)

	c := NewLSOPCodec()
	if _, err := c.DecodeInt(data, nRows, nCols); err != nil {
		t.Fatalf("decode with correct checksum should succeed: %v", err)
	}

	badChecksum := goodChecksum ^ 0xFFFFFFFF
	badData := buildLSOPPayload(t, want[0], coef, 13, 6, 0, symbols, &badChecksum)
	if _, err := c.DecodeInt(badData, nRows, nCols); err == nil {
		t.Fatalf("expected checksum mismatch error")
	}
}

func TestLSOPEncodeIsUnimplemented(t *testing.T) {
	c := NewLSOPCodec()
	if _, err := c.EncodeInt([]int32{1}, 1, 1); err != ErrCompressionNotImplemented {
		t.Fatalf("got %v, want ErrCompressionNotImplemented", err)
	}
}
