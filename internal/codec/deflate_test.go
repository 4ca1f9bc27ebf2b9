package codec

import (
	"errors"
	"math/rand"
	"reflect"
	"testing"
)

func TestDeflateCodecIntRoundTrip(t *testing.T) {
	nRows, nCols := 8, 10
	tile := make([]int32, nRows*nCols)
	for r := 0; r < nRows; r++ {
		for c := 0; c < nCols; c++ {
			tile[r*nCols+c] = int32(r*10 + c)
		}
	}

	c := NewDeflateCodec()
	encoded, err := c.EncodeInt(tile, nRows, nCols)
	if err != nil {
		t.Fatalf("encode error: %v", err)
	}
	decoded, err := c.DecodeInt(encoded, nRows, nCols)
	if err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if !reflect.DeepEqual(decoded, tile) {
		t.Fatalf("round trip mismatch\n got  %v\n want %v", decoded, tile)
	}
}

func TestDeflateCodecMaximumCompressionRoundTrip(t *testing.T) {
	nRows, nCols := 12, 12
	tile := make([]int32, nRows*nCols)
	rng := rand.New(rand.NewSource(3))
	for r := 0; r < nRows; r++ {
		for c := 0; c < nCols; c++ {
			tile[r*nCols+c] = int32(r) + int32(rng.Intn(3))
		}
	}

	c := NewDeflateCodec()
	c.SetMaximumCompression(true)
	encoded, err := c.EncodeInt(tile, nRows, nCols)
	if err != nil {
		t.Fatalf("encode error: %v", err)
	}
	decoded, err := c.DecodeInt(encoded, nRows, nCols)
	if err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if !reflect.DeepEqual(decoded, tile) {
		t.Fatalf("round trip mismatch\n got  %v\n want %v", decoded, tile)
	}
}

func TestDeflateCodecIncompressibleReturnsFailure(t *testing.T) {
	nRows, nCols := 10, 10
	tile := make([]int32, nRows*nCols)
	rng := rand.New(rand.NewSource(4))
	for i := range tile {
		tile[i] = rng.Int31()
	}

	c := NewDeflateCodec()
	_, err := c.EncodeInt(tile, nRows, nCols)
	if err == nil {
		t.Fatalf("expected ErrCompressionFailure for incompressible random residuals")
	}
	if !errors.Is(err, ErrCompressionFailure) {
		t.Fatalf("got %v, want ErrCompressionFailure", err)
	}
}
