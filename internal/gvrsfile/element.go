package gvrsfile

import (
	"encoding/binary"
	"fmt"
	"math"
	"unicode"
)

// Variant is an element's storage representation (spec.md §3).
type Variant byte

const (
	VariantInt32 Variant = iota
	VariantIntCodedFloat
	VariantFloat32
	VariantInt16
)

func (v Variant) String() string {
	switch v {
	case VariantInt32:
		return "Int32"
	case VariantIntCodedFloat:
		return "IntCodedFloat"
	case VariantFloat32:
		return "Float32"
	case VariantInt16:
		return "Int16"
	default:
		return fmt.Sprintf("Variant(%d)", byte(v))
	}
}

// CellSize is the on-disk byte size of one cell of this variant.
func (v Variant) CellSize() int {
	switch v {
	case VariantInt16:
		return 2
	default:
		return 4
	}
}

// MaxElementNameLength is spec.md §3's identifier length bound.
const MaxElementNameLength = 32

// ValidateElementName enforces spec.md §3's identifier syntax: a leading
// letter, then letters, digits, or underscore, at most 32 characters.
func ValidateElementName(name string) error {
	if len(name) == 0 || len(name) > MaxElementNameLength {
		return NewError(BadNameSpecification, "ValidateElementName")
	}
	for i, r := range name {
		if i == 0 {
			if !unicode.IsLetter(r) {
				return NewError(BadNameSpecification, "ValidateElementName")
			}
			continue
		}
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' {
			return NewError(BadNameSpecification, "ValidateElementName")
		}
	}
	return nil
}

// unitsToMetres is the small abbreviation table spec.md §3 names for
// inferring a units-to-metres conversion factor; units outside the table
// convert 1:1.
var unitsToMetres = map[string]float64{
	"feet":    0.3048,
	"yards":   0.9144,
	"fathoms": 1.8388,
}

// UnitsToMetres looks up the conversion factor for a unit-of-measure
// abbreviation, defaulting to 1.0 for anything not in the table.
func UnitsToMetres(unit string) float64 {
	if f, ok := unitsToMetres[unit]; ok {
		return f
	}
	return 1.0
}

// ElementSpec describes one parallel sub-array carried by every tile
// (spec.md §3). Which of the Int/Float/Icf fields apply depends on Variant.
type ElementSpec struct {
	Name          string
	Variant       Variant
	Continuous    bool
	Label         string
	Description   string
	UnitOfMeasure string

	MinValueInt  int32 // Int32, Int16
	MaxValueInt  int32
	FillValueInt int32

	MinValueFloat  float32 // Float32
	MaxValueFloat  float32
	FillValueFloat float32

	Scale       float64 // IntCodedFloat: f = i/Scale + Offset
	Offset      float64
	MinValueIcf int32 // IntCodedFloat stored-int bounds
	MaxValueIcf int32
	FillValueIcf int32
}

// Validate checks the descriptor against spec.md §3's constraints.
func (e *ElementSpec) Validate() error {
	if err := ValidateElementName(e.Name); err != nil {
		return err
	}
	if e.Variant == VariantIntCodedFloat && e.Scale == 0 {
		return NewError(BadIcfParameters, "ElementSpec.Validate")
	}
	return nil
}

// ToFloat converts a stored IntCodedFloat integer to its float value.
func (e *ElementSpec) ToFloat(i int32) float64 {
	return float64(i)/e.Scale + e.Offset
}

// FromFloat converts a float value to its stored IntCodedFloat integer,
// rounding to the nearest representable value.
func (e *ElementSpec) FromFloat(f float64) int32 {
	return int32(math.Round((f - e.Offset) * e.Scale))
}

// element is the runtime counterpart of ElementSpec: it additionally knows
// its byte offset and total data size within a tile's contiguous buffer.
type element struct {
	ElementSpec
	byteOffset int // offset within the tile's data buffer
	dataSize   int // total bytes of this element's sub-array, padded to 4
}

// layoutElements assigns byte offsets to each element's sub-array within a
// tile, padding each element's size up to a multiple of 4 (spec.md §3).
func layoutElements(specs []ElementSpec, nRowsInTile, nColsInTile int) []element {
	elems := make([]element, len(specs))
	offset := 0
	cellCount := nRowsInTile * nColsInTile
	for i, spec := range specs {
		size := cellCount * spec.Variant.CellSize()
		padded := (size + 3) &^ 3
		elems[i] = element{ElementSpec: spec, byteOffset: offset, dataSize: padded}
		offset += padded
	}
	return elems
}

// fillBuffer initialises buf[byteOffset:byteOffset+dataSize] with this
// element's configured fill value, one cell at a time.
func (e *element) fillBuffer(buf []byte, nRowsInTile, nColsInTile int) {
	cellCount := nRowsInTile * nColsInTile
	cellSize := e.Variant.CellSize()
	sub := buf[e.byteOffset : e.byteOffset+cellCount*cellSize]
	switch e.Variant {
	case VariantInt32:
		for i := 0; i < cellCount; i++ {
			binary.LittleEndian.PutUint32(sub[i*4:], uint32(e.FillValueInt))
		}
	case VariantInt16:
		for i := 0; i < cellCount; i++ {
			binary.LittleEndian.PutUint16(sub[i*2:], uint16(e.FillValueInt))
		}
	case VariantFloat32:
		bits := math.Float32bits(e.FillValueFloat)
		for i := 0; i < cellCount; i++ {
			binary.LittleEndian.PutUint32(sub[i*4:], bits)
		}
	case VariantIntCodedFloat:
		for i := 0; i < cellCount; i++ {
			binary.LittleEndian.PutUint32(sub[i*4:], uint32(e.FillValueIcf))
		}
	}
}

// readInt32 and writeInt32 access an Int32 or IntCodedFloat-as-raw-int
// cell at (row, col) within the tile's data buffer.
func (e *element) readInt32(buf []byte, nColsInTile, row, col int) int32 {
	idx := e.byteOffset + (row*nColsInTile+col)*4
	return int32(binary.LittleEndian.Uint32(buf[idx:]))
}

func (e *element) writeInt32(buf []byte, nColsInTile, row, col int, v int32) {
	idx := e.byteOffset + (row*nColsInTile+col)*4
	binary.LittleEndian.PutUint32(buf[idx:], uint32(v))
}

func (e *element) readInt16(buf []byte, nColsInTile, row, col int) int16 {
	idx := e.byteOffset + (row*nColsInTile+col)*2
	return int16(binary.LittleEndian.Uint16(buf[idx:]))
}

func (e *element) writeInt16(buf []byte, nColsInTile, row, col int, v int16) {
	idx := e.byteOffset + (row*nColsInTile+col)*2
	binary.LittleEndian.PutUint16(buf[idx:], uint16(v))
}

func (e *element) readFloat32(buf []byte, nColsInTile, row, col int) float32 {
	idx := e.byteOffset + (row*nColsInTile+col)*4
	return math.Float32frombits(binary.LittleEndian.Uint32(buf[idx:]))
}

func (e *element) writeFloat32(buf []byte, nColsInTile, row, col int, v float32) {
	idx := e.byteOffset + (row*nColsInTile+col)*4
	binary.LittleEndian.PutUint32(buf[idx:], math.Float32bits(v))
}

// extractInt32 and placeInt32 convert an element's entire sub-array
// to/from a flat row-major []int32, for handing off to a codec.Codec.
func (e *element) extractInt32(buf []byte, nRowsInTile, nColsInTile int) []int32 {
	cellCount := nRowsInTile * nColsInTile
	out := make([]int32, cellCount)
	for i := 0; i < cellCount; i++ {
		out[i] = int32(binary.LittleEndian.Uint32(buf[e.byteOffset+i*4:]))
	}
	return out
}

func (e *element) placeInt32(buf []byte, vals []int32) {
	for i, v := range vals {
		binary.LittleEndian.PutUint32(buf[e.byteOffset+i*4:], uint32(v))
	}
}

func (e *element) extractInt16AsInt32(buf []byte, nRowsInTile, nColsInTile int) []int32 {
	cellCount := nRowsInTile * nColsInTile
	out := make([]int32, cellCount)
	for i := 0; i < cellCount; i++ {
		out[i] = int32(int16(binary.LittleEndian.Uint16(buf[e.byteOffset+i*2:])))
	}
	return out
}

func (e *element) placeInt16FromInt32(buf []byte, vals []int32) {
	for i, v := range vals {
		binary.LittleEndian.PutUint16(buf[e.byteOffset+i*2:], uint16(int16(v)))
	}
}

func (e *element) extractFloat32(buf []byte, nRowsInTile, nColsInTile int) []float32 {
	cellCount := nRowsInTile * nColsInTile
	out := make([]float32, cellCount)
	for i := 0; i < cellCount; i++ {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[e.byteOffset+i*4:]))
	}
	return out
}

func (e *element) placeFloat32(buf []byte, vals []float32) {
	for i, v := range vals {
		binary.LittleEndian.PutUint32(buf[e.byteOffset+i*4:], math.Float32bits(v))
	}
}

// encodeElementDescriptor serializes one element block of the container
// header (spec.md §6): variant byte, continuous flag, 6 reserved bytes,
// name as a length-prefixed identifier padded to a multiple of 4, then
// variant-specific min/max/fill, then label/description/unit strings.
func encodeElementDescriptor(e ElementSpec) []byte {
	var buf []byte
	buf = append(buf, byte(e.Variant))
	if e.Continuous {
		buf = append(buf, 1)
	} else {
		buf = append(buf, 0)
	}
	buf = append(buf, make([]byte, 6)...)
	buf = append(buf, encodeLengthPrefixedString(e.Name, true)...)

	switch e.Variant {
	case VariantFloat32:
		buf = append(buf, putFloat32(e.MinValueFloat)...)
		buf = append(buf, putFloat32(e.MaxValueFloat)...)
		buf = append(buf, putFloat32(e.FillValueFloat)...)
	case VariantIntCodedFloat:
		buf = append(buf, putInt32(e.MinValueIcf)...)
		buf = append(buf, putInt32(e.MaxValueIcf)...)
		buf = append(buf, putInt32(e.FillValueIcf)...)
		buf = append(buf, putFloat64(e.Scale)...)
		buf = append(buf, putFloat64(e.Offset)...)
	default: // Int32, Int16
		buf = append(buf, putInt32(e.MinValueInt)...)
		buf = append(buf, putInt32(e.MaxValueInt)...)
		buf = append(buf, putInt32(e.FillValueInt)...)
	}

	buf = append(buf, encodeLengthPrefixedString(e.Label, false)...)
	buf = append(buf, encodeLengthPrefixedString(e.Description, false)...)
	buf = append(buf, encodeLengthPrefixedString(e.UnitOfMeasure, false)...)
	return buf
}

// decodeElementDescriptor is encodeElementDescriptor's inverse; it reports
// the number of bytes consumed from buf.
func decodeElementDescriptor(buf []byte) (ElementSpec, int, error) {
	if len(buf) < 8 {
		return ElementSpec{}, 0, NewError(PrematureEOF, "decodeElementDescriptor")
	}
	e := ElementSpec{Variant: Variant(buf[0]), Continuous: buf[1] != 0}
	pos := 8

	name, n, err := decodeLengthPrefixedString(buf[pos:], true)
	if err != nil {
		return ElementSpec{}, 0, err
	}
	e.Name = name
	pos += n

	switch e.Variant {
	case VariantFloat32:
		if len(buf) < pos+12 {
			return ElementSpec{}, 0, NewError(PrematureEOF, "decodeElementDescriptor")
		}
		e.MinValueFloat = getFloat32(buf[pos:])
		e.MaxValueFloat = getFloat32(buf[pos+4:])
		e.FillValueFloat = getFloat32(buf[pos+8:])
		pos += 12
	case VariantIntCodedFloat:
		if len(buf) < pos+28 {
			return ElementSpec{}, 0, NewError(PrematureEOF, "decodeElementDescriptor")
		}
		e.MinValueIcf = getInt32(buf[pos:])
		e.MaxValueIcf = getInt32(buf[pos+4:])
		e.FillValueIcf = getInt32(buf[pos+8:])
		e.Scale = getFloat64(buf[pos+12:])
		e.Offset = getFloat64(buf[pos+20:])
		pos += 28
	default:
		if len(buf) < pos+12 {
			return ElementSpec{}, 0, NewError(PrematureEOF, "decodeElementDescriptor")
		}
		e.MinValueInt = getInt32(buf[pos:])
		e.MaxValueInt = getInt32(buf[pos+4:])
		e.FillValueInt = getInt32(buf[pos+8:])
		pos += 12
	}

	for _, dst := range []*string{&e.Label, &e.Description, &e.UnitOfMeasure} {
		s, n, err := decodeLengthPrefixedString(buf[pos:], false)
		if err != nil {
			return ElementSpec{}, 0, err
		}
		*dst = s
		pos += n
	}

	return e, pos, nil
}

func putInt32(v int32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, uint32(v))
	return b
}

func getInt32(b []byte) int32 {
	return int32(binary.LittleEndian.Uint32(b))
}

func putFloat32(v float32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, math.Float32bits(v))
	return b
}

func getFloat32(b []byte) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(b))
}

func putFloat64(v float64) []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, math.Float64bits(v))
	return b
}

func getFloat64(b []byte) float64 {
	return math.Float64frombits(binary.LittleEndian.Uint64(b))
}

// encodeLengthPrefixedString writes a 16-bit length prefix followed by the
// string bytes. When pad4 is set, the whole field (prefix + bytes) is
// padded with zero bytes up to a multiple of 4, matching the name field's
// encoding in spec.md §6; other strings are written unpadded.
func encodeLengthPrefixedString(s string, pad4 bool) []byte {
	buf := make([]byte, 2+len(s))
	binary.LittleEndian.PutUint16(buf[0:2], uint16(len(s)))
	copy(buf[2:], s)
	if pad4 {
		for len(buf)%4 != 0 {
			buf = append(buf, 0)
		}
	}
	return buf
}

func decodeLengthPrefixedString(buf []byte, pad4 bool) (string, int, error) {
	if len(buf) < 2 {
		return "", 0, NewError(PrematureEOF, "decodeLengthPrefixedString")
	}
	n := int(binary.LittleEndian.Uint16(buf[0:2]))
	if len(buf) < 2+n {
		return "", 0, NewError(PrematureEOF, "decodeLengthPrefixedString")
	}
	s := string(buf[2 : 2+n])
	total := 2 + n
	if pad4 {
		for total%4 != 0 {
			total++
		}
	}
	return s, total, nil
}
