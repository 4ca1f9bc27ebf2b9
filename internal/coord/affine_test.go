package coord

import (
	"math"
	"testing"
)

func TestAffineApplyIdentity(t *testing.T) {
	a := Affine{1, 0, 0, 0, 1, 0}
	x, y := a.Apply(3, 4)
	if x != 3 || y != 4 {
		t.Fatalf("identity affine should pass through, got (%v, %v)", x, y)
	}
}

func TestAffineInvertRoundTrip(t *testing.T) {
	a := Affine{0.5, 0, 100, 0, -0.5, 200}
	inv, ok := a.Invert()
	if !ok {
		t.Fatalf("expected invertible affine")
	}
	x, y := a.Apply(10, 20)
	u, v := inv.Apply(x, y)
	if math.Abs(u-10) > 1e-9 || math.Abs(v-20) > 1e-9 {
		t.Fatalf("round trip mismatch: got (%v, %v), want (10, 20)", u, v)
	}
}

func TestAffineInvertSingular(t *testing.T) {
	a := Affine{1, 2, 0, 2, 4, 0} // rows are linearly dependent
	if _, ok := a.Invert(); ok {
		t.Fatalf("expected singular affine to report ok=false")
	}
}

func TestNormalizeLongitude(t *testing.T) {
	cases := []struct {
		in, want float64
	}{
		{0, 0},
		{180, -180},
		{-180, -180},
		{359, -1},
		{-359, 1},
		{540, -180},
	}
	for _, c := range cases {
		got := NormalizeLongitude(c.in)
		if math.Abs(got-c.want) > 1e-9 {
			t.Errorf("NormalizeLongitude(%v) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestRasterTransformWrapColumn(t *testing.T) {
	tr := RasterTransform{Wraps: true, NColsInRaster: 360}
	if got := tr.WrapColumn(360); got != 0 {
		t.Errorf("WrapColumn(360) = %v, want 0", got)
	}
	if got := tr.WrapColumn(-1); got != 359 {
		t.Errorf("WrapColumn(-1) = %v, want 359", got)
	}
	if got := tr.WrapColumn(180.5); got != 180.5 {
		t.Errorf("WrapColumn(180.5) = %v, want 180.5", got)
	}
}

func TestRasterTransformWrapColumnNoOpWhenNotWrapping(t *testing.T) {
	tr := RasterTransform{Wraps: false, NColsInRaster: 360}
	if got := tr.WrapColumn(500); got != 500 {
		t.Errorf("expected no wrap, got %v", got)
	}
}

func TestRasterTransformBracketColumnWrapsAtEdge(t *testing.T) {
	tr := RasterTransform{Wraps: true, NColsInRaster: 4}
	c0, c1, frac := tr.BracketColumn(3.5)
	if c0 != 3 || c1 != 0 || math.Abs(frac-0.5) > 1e-9 {
		t.Fatalf("BracketColumn(3.5) = (%d, %d, %v), want (3, 0, 0.5)", c0, c1, frac)
	}
}

func TestRasterTransformModelToRasterAndBack(t *testing.T) {
	// a simple cell-size-2 grid anchored at (100, 200), row increases as y decreases
	r2m := Affine{2, 0, 100, 0, -2, 200}
	m2r, ok := r2m.Invert()
	if !ok {
		t.Fatalf("expected invertible r2m")
	}
	tr := NewRasterTransform(m2r, r2m, false, false, 0)

	row, col := tr.ModelToRaster(104, 196)
	x, y := tr.RasterToModel(row, col)
	if math.Abs(x-104) > 1e-9 || math.Abs(y-196) > 1e-9 {
		t.Fatalf("round trip through raster space mismatch: got (%v, %v)", x, y)
	}
}
