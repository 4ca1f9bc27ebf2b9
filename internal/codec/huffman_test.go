package codec

import (
	"bytes"
	"math/rand"
	"reflect"
	"testing"
)

func TestHuffmanEncodeDecodeBytesRoundTrip(t *testing.T) {
	cases := [][]byte{
		{},
		{0x42},
		bytes.Repeat([]byte{7}, 50),
		[]byte("the quick brown fox jumps over the lazy dog"),
	}
	for _, data := range cases {
		encoded := huffmanEncodeBytes(data)
		decoded, err := huffmanDecodeBytes(encoded, len(data))
		if err != nil {
			t.Fatalf("decode error for %q: %v", data, err)
		}
		if !bytes.Equal(decoded, data) {
			t.Fatalf("round trip mismatch: got %v, want %v", decoded, data)
		}
	}
}

func TestHuffmanEncodeDecodeBytesRandom(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for trial := 0; trial < 20; trial++ {
		n := rng.Intn(500)
		data := make([]byte, n)
		for i := range data {
			data[i] = byte(rng.Intn(256))
		}
		encoded := huffmanEncodeBytes(data)
		decoded, err := huffmanDecodeBytes(encoded, n)
		if err != nil {
			t.Fatalf("trial %d: decode error: %v", trial, err)
		}
		if !bytes.Equal(decoded, data) {
			t.Fatalf("trial %d: round trip mismatch", trial)
		}
	}
}

func TestHuffmanDegenerateTreeIsOneByteForm(t *testing.T) {
	data := bytes.Repeat([]byte{0x99}, 10)
	encoded := huffmanEncodeBytes(data)
	if encoded[0] != 0 {
		t.Fatalf("leafCount-1 byte: got %d, want 0 for single-symbol input", encoded[0])
	}
	decoded, err := huffmanDecodeBytes(encoded, len(data))
	if err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if !bytes.Equal(decoded, data) {
		t.Fatalf("got %v, want %v", decoded, data)
	}
}

func TestHuffmanCodecIntRoundTrip(t *testing.T) {
	nRows, nCols := 6, 7
	tile := make([]int32, nRows*nCols)
	rng := rand.New(rand.NewSource(2))
	for i := range tile {
		tile[i] = int32(rng.Intn(2000) - 1000)
	}

	c := NewHuffmanCodec()
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

func TestHuffmanCodecUniformTileCompresses(t *testing.T) {
	nRows, nCols := 16, 16
	tile := make([]int32, nRows*nCols)
	for i := range tile {
		tile[i] = 42
	}
	c := NewHuffmanCodec()
	encoded, err := c.EncodeInt(tile, nRows, nCols)
	if err != nil {
		t.Fatalf("encode error: %v", err)
	}
	if len(encoded) >= len(tile)*4 {
		t.Fatalf("expected compression on a uniform tile: encoded %d bytes, raw would be %d", len(encoded), len(tile)*4)
	}
}
