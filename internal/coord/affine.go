package coord

import "math"

// Affine is a six-coefficient 2D affine transform, stored row-major as
// spec.md §4.10 lays it out: x' = a0*u + a1*v + a2, y' = a3*u + a4*v + a5.
// RasterTransform uses one Affine for model-to-raster (m2r) and its inverse
// for raster-to-model (r2m), matching the GVRS header's M2R/R2M fields.
//
// This is new relative to the teacher: its WebMercatorProj and SwissLV95
// hardcode one fixed projection each, where GVRS needs an arbitrary affine
// pair carried in the container itself. Grounded on the teacher's
// Projection interface for the general shape (a
// coordinate-mapping type with a forward and inverse operation) but not
// on any one concrete projection, since none of the teacher's projections
// is itself affine end-to-end.
type Affine [6]float64

// Apply maps (u, v) through the affine transform.
func (a Affine) Apply(u, v float64) (x, y float64) {
	x = a[0]*u + a[1]*v + a[2]
	y = a[3]*u + a[4]*v + a[5]
	return
}

// Invert returns the affine transform's inverse, or ok=false if it is
// singular (zero determinant).
func (a Affine) Invert() (inv Affine, ok bool) {
	det := a[0]*a[4] - a[1]*a[3]
	if det == 0 {
		return Affine{}, false
	}
	invDet := 1.0 / det
	inv[0] = a[4] * invDet
	inv[1] = -a[1] * invDet
	inv[3] = -a[3] * invDet
	inv[4] = a[0] * invDet
	inv[2] = -(inv[0]*a[2] + inv[1]*a[5])
	inv[5] = -(inv[3]*a[2] + inv[4]*a[5])
	return inv, true
}

// RasterTransform carries a raster's model-to-raster and raster-to-model
// affine pair, plus whether the raster wraps in the column direction
// (spec.md §4.8: a geographic raster whose column span is within 1e-9 of
// 360 degrees).
type RasterTransform struct {
	M2R      Affine
	R2M      Affine
	Geo      bool // coordinate system is geographic (longitude/latitude)
	Wraps    bool // column span is ~360 degrees; column index wraps modulo nCols
	NColsInRaster int
}

// NewRasterTransform derives R2M from M2R if r2m is the zero value,
// otherwise uses r2m as given (spec.md's header stores both independently
// since round-trip inversion is not always exact at the bit level).
func NewRasterTransform(m2r, r2m Affine, geo, wraps bool, nColsInRaster int) RasterTransform {
	if r2m == (Affine{}) {
		if inv, ok := m2r.Invert(); ok {
			r2m = inv
		}
	}
	return RasterTransform{M2R: m2r, R2M: r2m, Geo: geo, Wraps: wraps, NColsInRaster: nColsInRaster}
}

// ModelToRaster converts a model-space (x, y) coordinate to fractional
// (row, col) raster space.
func (t RasterTransform) ModelToRaster(x, y float64) (row, col float64) {
	col, row = t.M2R.Apply(x, y)
	return
}

// RasterToModel converts a fractional (row, col) raster coordinate to
// model space (x, y).
func (t RasterTransform) RasterToModel(row, col float64) (x, y float64) {
	return t.R2M.Apply(col, row)
}

// NormalizeLongitude reduces a geographic x coordinate (in degrees) to
// [-180, 180), per spec.md §4.10.
func NormalizeLongitude(x float64) float64 {
	x = math.Mod(x+180, 360)
	if x < 0 {
		x += 360
	}
	return x - 180
}

// WrapColumn reduces a fractional column index into [0, nCols) when the
// raster wraps (spec.md §4.10's geographic bracket logic), leaving col
// unchanged otherwise.
func (t RasterTransform) WrapColumn(col float64) float64 {
	if !t.Wraps || t.NColsInRaster <= 0 {
		return col
	}
	n := float64(t.NColsInRaster)
	col = math.Mod(col, n)
	if col < 0 {
		col += n
	}
	return col
}

// BracketColumn returns the two integer columns bracketing a fractional
// column for interpolation, wrapping at the raster edge when applicable.
func (t RasterTransform) BracketColumn(col float64) (c0, c1 int, frac float64) {
	col = t.WrapColumn(col)
	c0 = int(math.Floor(col))
	frac = col - float64(c0)
	c1 = c0 + 1
	if t.Wraps && c1 >= t.NColsInRaster {
		c1 = 0
	}
	return
}
