package gvrsfile

import (
	"encoding/binary"
	"fmt"

	"github.com/google/uuid"
)

// magic is the 12-byte container signature, including the trailing NUL
// (spec.md §6: ASCII "gvrs raster", 11 characters, plus NUL padding).
const magic = "gvrs raster\x00"

// Current format version. VersionNotSupported is returned for any major
// version other than this one.
const (
	CurrentMajorVersion = 1
	CurrentMinorVersion = 0
)

// Coordinate system codes (spec.md §6).
const (
	CoordinateSystemCartesian  = 0
	CoordinateSystemGeographic = 2
)

// geoWrapTolerance is how close a raster's column span must be to 360
// degrees before the geographic wrap/bracket behaviour is enabled (spec.md
// §4.8: "within 1e-9 of 360°").
const geoWrapTolerance = 1e-9

// Header is the container's fixed-position leading record (spec.md §6):
// format identification, the UUID and timestamps used for the exclusive-
// open protocol, offsets to the three directory records, the raster and
// tile dimensions, the coordinate system and affine transforms, element
// descriptors, the codec identifier list, and the product label.
type Header struct {
	UUID                 uuid.UUID
	ModificationTimeMs   int64
	OpenedForWritingMs   int64
	FileSpaceDirOffset   int64
	MetadataDirOffset    int64
	TileDirOffset        int64
	FileSize             int64 // current end of the record area; lets a reopen resume the allocator correctly
	NRowsInRaster        int32
	NColsInRaster        int32
	NRowsInTile          int32
	NColsInTile          int32
	ChecksumsEnabled     bool
	RasterSpaceCode      byte
	CoordinateSystemCode byte
	X0, Y0, X1, Y1       float64
	CellSizeX, CellSizeY float64
	M2R                  [6]float64 // model-to-raster affine
	R2M                  [6]float64 // raster-to-model affine
	Elements             []ElementSpec
	CodecNames           []string
	ProductLabel         string
}

// GeoWraps reports whether the raster's column span is within
// geoWrapTolerance of 360 degrees, enabling longitude wrap/bracket logic
// (spec.md §4.8, §4.10).
func (h *Header) GeoWraps() bool {
	if h.CoordinateSystemCode != CoordinateSystemGeographic {
		return false
	}
	span := h.X1 - h.X0
	return absFloat(span-360) < geoWrapTolerance
}

func absFloat(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// NRowsOfTiles and NColsOfTiles are the raster's tile-grid dimensions
// (spec.md §3: ceil(nRows/nRowsInTile) x ceil(nCols/nColsInTile)).
func (h *Header) NRowsOfTiles() int {
	return int((int64(h.NRowsInRaster) + int64(h.NRowsInTile) - 1) / int64(h.NRowsInTile))
}

func (h *Header) NColsOfTiles() int {
	return int((int64(h.NColsInRaster) + int64(h.NColsInTile) - 1) / int64(h.NColsInTile))
}

// Serialize encodes the header record's content (everything the record
// header/trailer do not own).
func (h *Header) Serialize() []byte {
	buf := make([]byte, 0, 512)
	buf = append(buf, []byte(magic)...)
	buf = append(buf, CurrentMajorVersion, CurrentMinorVersion)
	buf = append(buf, 0, 0) // reserved

	var tmp8 [8]byte
	uuidBytes, _ := h.UUID.MarshalBinary()
	buf = append(buf, uuidBytes...)

	putI64 := func(v int64) {
		binary.LittleEndian.PutUint64(tmp8[:], uint64(v))
		buf = append(buf, tmp8[:]...)
	}
	putI64(h.ModificationTimeMs)
	putI64(h.OpenedForWritingMs)
	putI64(h.FileSpaceDirOffset)
	putI64(h.MetadataDirOffset)
	putI64(h.FileSize)

	var tmp2 [2]byte
	binary.LittleEndian.PutUint16(tmp2[:], 1) // level count, always 1
	buf = append(buf, tmp2[:]...)
	buf = append(buf, 0, 0) // reserved
	putI64(h.TileDirOffset)

	var tmp4 [4]byte
	putI32 := func(v int32) {
		binary.LittleEndian.PutUint32(tmp4[:], uint32(v))
		buf = append(buf, tmp4[:]...)
	}
	putI32(h.NRowsInRaster)
	putI32(h.NColsInRaster)
	putI32(h.NRowsInTile)
	putI32(h.NColsInTile)
	buf = append(buf, make([]byte, 8)...) // reserved

	if h.ChecksumsEnabled {
		buf = append(buf, 1)
	} else {
		buf = append(buf, 0)
	}
	buf = append(buf, h.RasterSpaceCode, h.CoordinateSystemCode)
	buf = append(buf, make([]byte, 5)...) // reserved

	putF64 := func(v float64) { buf = append(buf, putFloat64(v)...) }
	putF64(h.X0)
	putF64(h.Y0)
	putF64(h.X1)
	putF64(h.Y1)
	putF64(h.CellSizeX)
	putF64(h.CellSizeY)
	for _, v := range h.M2R {
		putF64(v)
	}
	for _, v := range h.R2M {
		putF64(v)
	}

	putI32(int32(len(h.Elements)))
	for _, e := range h.Elements {
		buf = append(buf, encodeElementDescriptor(e)...)
	}

	putI32(int32(len(h.CodecNames)))
	for _, name := range h.CodecNames {
		buf = append(buf, encodeLengthPrefixedString(name, false)...)
	}
	buf = append(buf, encodeLengthPrefixedString(h.ProductLabel, false)...)

	for len(buf)%8 != 0 {
		buf = append(buf, 0)
	}
	return buf
}

// DeserializeHeader parses a header record's content.
func DeserializeHeader(buf []byte) (*Header, error) {
	if len(buf) < 16 {
		return nil, NewError(InvalidFile, "DeserializeHeader")
	}
	if string(buf[0:12]) != magic {
		return nil, NewError(InvalidFile, "DeserializeHeader")
	}
	if buf[12] != CurrentMajorVersion {
		return nil, NewError(VersionNotSupported, "DeserializeHeader")
	}

	h := &Header{}
	pos := 16

	if len(buf) < pos+16 {
		return nil, NewError(PrematureEOF, "DeserializeHeader")
	}
	id, err := uuid.FromBytes(buf[pos : pos+16])
	if err != nil {
		return nil, WrapError(InvalidFile, "DeserializeHeader", err)
	}
	h.UUID = id
	pos += 16

	getI64 := func() int64 {
		v := int64(binary.LittleEndian.Uint64(buf[pos:]))
		pos += 8
		return v
	}
	h.ModificationTimeMs = getI64()
	h.OpenedForWritingMs = getI64()
	h.FileSpaceDirOffset = getI64()
	h.MetadataDirOffset = getI64()
	h.FileSize = getI64()
	pos += 2 // level count, unused
	pos += 2 // reserved
	h.TileDirOffset = getI64()

	getI32 := func() int32 {
		v := int32(binary.LittleEndian.Uint32(buf[pos:]))
		pos += 4
		return v
	}
	h.NRowsInRaster = getI32()
	h.NColsInRaster = getI32()
	h.NRowsInTile = getI32()
	h.NColsInTile = getI32()
	pos += 8 // reserved

	h.ChecksumsEnabled = buf[pos] != 0
	pos++
	h.RasterSpaceCode = buf[pos]
	pos++
	h.CoordinateSystemCode = buf[pos]
	pos++
	pos += 5 // reserved

	getF64 := func() float64 {
		v := getFloat64(buf[pos:])
		pos += 8
		return v
	}
	h.X0 = getF64()
	h.Y0 = getF64()
	h.X1 = getF64()
	h.Y1 = getF64()
	h.CellSizeX = getF64()
	h.CellSizeY = getF64()
	for i := range h.M2R {
		h.M2R[i] = getF64()
	}
	for i := range h.R2M {
		h.R2M[i] = getF64()
	}

	nElements := int(getI32())
	h.Elements = make([]ElementSpec, nElements)
	for i := 0; i < nElements; i++ {
		e, n, err := decodeElementDescriptor(buf[pos:])
		if err != nil {
			return nil, err
		}
		h.Elements[i] = e
		pos += n
	}

	nCodecs := int(getI32())
	h.CodecNames = make([]string, nCodecs)
	for i := 0; i < nCodecs; i++ {
		s, n, err := decodeLengthPrefixedString(buf[pos:], false)
		if err != nil {
			return nil, err
		}
		h.CodecNames[i] = s
		pos += n
	}

	label, _, err := decodeLengthPrefixedString(buf[pos:], false)
	if err != nil {
		return nil, err
	}
	h.ProductLabel = label

	return h, nil
}

// ElementIndex looks up an element descriptor, returning its index and
// ok=false if no element with that name exists.
func (h *Header) ElementIndex(name string) (int, bool) {
	for i, e := range h.Elements {
		if e.Name == name {
			return i, true
		}
	}
	return 0, false
}

func (h *Header) String() string {
	return fmt.Sprintf("gvrs container %dx%d cells, %dx%d tiles, %d elements",
		h.NRowsInRaster, h.NColsInRaster, h.NRowsInTile, h.NColsInTile, len(h.Elements))
}
