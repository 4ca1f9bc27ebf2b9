package predictor

import (
	"math"
	"reflect"
	"testing"
)

func sampleTile() (nRows, nCols int, tile []int32) {
	nRows, nCols = 4, 5
	tile = make([]int32, nRows*nCols)
	for i := range tile {
		tile[i] = int32(i*i - 3*i + 7)
	}
	return nRows, nCols, tile
}

func TestRoundTripAllKinds(t *testing.T) {
	nRows, nCols, tile := sampleTile()
	for _, kind := range []Kind{P1, P2, P3} {
		seed, residuals := Encode(kind, nRows, nCols, tile)
		got := Decode(kind, nRows, nCols, seed, residuals)
		if !reflect.DeepEqual(got, tile) {
			t.Fatalf("%s: round trip mismatch\n got  %v\n want %v", kind, got, tile)
		}
	}
}

func TestRoundTripSingleRowAndColumn(t *testing.T) {
	cases := []struct {
		nRows, nCols int
		tile         []int32
	}{
		{1, 6, []int32{10, 11, 9, 12, 8, 20}},
		{6, 1, []int32{10, 11, 9, 12, 8, 20}},
		{1, 1, []int32{42}},
	}
	for _, tc := range cases {
		for _, kind := range []Kind{P1, P2, P3} {
			seed, residuals := Encode(kind, tc.nRows, tc.nCols, tc.tile)
			got := Decode(kind, tc.nRows, tc.nCols, seed, residuals)
			if !reflect.DeepEqual(got, tc.tile) {
				t.Fatalf("%s %dx%d: round trip mismatch\n got  %v\n want %v", kind, tc.nRows, tc.nCols, got, tc.tile)
			}
		}
	}
}

func TestRoundTripWithWraparoundValues(t *testing.T) {
	nRows, nCols := 3, 3
	tile := []int32{
		math.MaxInt32, math.MinInt32, 0,
		math.MinInt32, math.MaxInt32, -1,
		1, -1, math.MaxInt32,
	}
	for _, kind := range []Kind{P1, P2, P3} {
		seed, residuals := Encode(kind, nRows, nCols, tile)
		got := Decode(kind, nRows, nCols, seed, residuals)
		if !reflect.DeepEqual(got, tile) {
			t.Fatalf("%s: wraparound round trip mismatch\n got  %v\n want %v", kind, got, tile)
		}
	}
}

func TestP1ResidualIsLeftDelta(t *testing.T) {
	nRows, nCols := 2, 3
	tile := []int32{5, 9, 4, 1, 1, 1}
	_, residuals := Encode(P1, nRows, nCols, tile)
	// row 0: 9-5=4, 4-9=-5; row 1 starts from cell above (5): 1-5=-4; then 1-1=0, 1-1=0
	want := []int32{4, -5, -4, 0, 0}
	if !reflect.DeepEqual(residuals, want) {
		t.Fatalf("got %v, want %v", residuals, want)
	}
}

func TestTriangleClampsToNeighbourRange(t *testing.T) {
	if got := triangle(10, 100, 20); got != 10 {
		t.Fatalf("b above both neighbours should clamp to min: got %d", got)
	}
	if got := triangle(10, 0, 20); got != 20 {
		t.Fatalf("b below both neighbours should clamp to max: got %d", got)
	}
	if got := triangle(10, 12, 20); got != 18 {
		t.Fatalf("b between neighbours should use linear form: got %d", got)
	}
}
