package codec

import (
	"math"
	"math/rand"
	"testing"
)

func TestFloatCodecRoundTripOrdinaryValues(t *testing.T) {
	nRows, nCols := 9, 11
	tile := make([]float32, nRows*nCols)
	rng := rand.New(rand.NewSource(5))
	for i := range tile {
		tile[i] = (rng.Float32() - 0.5) * 1000
	}

	c := NewFloatCodec()
	encoded, err := c.EncodeFloat(tile, nRows, nCols)
	if err != nil {
		t.Fatalf("encode error: %v", err)
	}
	decoded, err := c.DecodeFloat(encoded, nRows, nCols)
	if err != nil {
		t.Fatalf("decode error: %v", err)
	}
	for i := range tile {
		if math.Float32bits(decoded[i]) != math.Float32bits(tile[i]) {
			t.Fatalf("cell %d: got %v (%#x), want %v (%#x)", i, decoded[i], math.Float32bits(decoded[i]), tile[i], math.Float32bits(tile[i]))
		}
	}
}

func TestFloatCodecRoundTripSpecialValues(t *testing.T) {
	nRows, nCols := 2, 4
	tile := []float32{
		float32(math.NaN()), float32(math.Inf(1)), float32(math.Inf(-1)), 0,
		float32(math.Copysign(0, -1)), -1, 1, 3.1415927,
	}

	c := NewFloatCodec()
	encoded, err := c.EncodeFloat(tile, nRows, nCols)
	if err != nil {
		t.Fatalf("encode error: %v", err)
	}
	decoded, err := c.DecodeFloat(encoded, nRows, nCols)
	if err != nil {
		t.Fatalf("decode error: %v", err)
	}
	for i := range tile {
		if math.Float32bits(decoded[i]) != math.Float32bits(tile[i]) {
			t.Fatalf("cell %d: got bits %#x, want %#x (NaN/signed-zero must survive bit for bit)", i, math.Float32bits(decoded[i]), math.Float32bits(tile[i]))
		}
	}
}

func TestFloatCodecUnsupportedInt(t *testing.T) {
	c := NewFloatCodec()
	if _, err := c.EncodeInt([]int32{1}, 1, 1); err != ErrCompressionNotImplemented {
		t.Fatalf("EncodeInt: got %v, want ErrCompressionNotImplemented", err)
	}
	if _, err := c.DecodeInt([]byte{1}, 1, 1); err != ErrCompressionNotImplemented {
		t.Fatalf("DecodeInt: got %v, want ErrCompressionNotImplemented", err)
	}
}
