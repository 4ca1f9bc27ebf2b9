package gvrsfile

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/gwlucastrig/gvrs-go/internal/codec"
	"github.com/gwlucastrig/gvrs-go/internal/coord"
	"github.com/gwlucastrig/gvrs-go/internal/tilecache"
)

// State is the container's lifecycle state (spec.md §4.8).
type State int

const (
	StateReadOnly State = iota
	StateWritable
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateReadOnly:
		return "ReadOnly"
	case StateWritable:
		return "Writable"
	case StateClosed:
		return "Closed"
	default:
		return "Unknown"
	}
}

// ReadWriterAt is the file handle every Container operates on; *os.File
// satisfies it, as does any in-memory stand-in used in tests.
type ReadWriterAt interface {
	io.ReaderAt
	io.WriterAt
}

// RasterSpec describes a raster to create (spec.md §6).
type RasterSpec struct {
	NRowsInRaster, NColsInRaster int
	NRowsInTile, NColsInTile     int
	Elements                     []ElementSpec

	CoordinateSystemCode byte
	X0, Y0, X1, Y1       float64
	CellSizeX, CellSizeY float64
	M2R, R2M             [6]float64

	ChecksumsEnabled bool
	ProductLabel     string

	// CodecNames lists codec identifiers in preference order; the first
	// one the registry can instantiate is used for every write. Defaults
	// to {"none"} when empty.
	CodecNames []string
}

// Container is the open GVRS file: header, allocator, directories, element
// layout, codec, and tile cache bound together (spec.md §4.8). Grounded on
// internal/pmtiles/writer.go and reader.go's single-type-owns-the-whole-
// file-lifecycle shape, generalized from pmtiles' archive-header-plus-tile-
// directory model to GVRS's header-plus-three-directories-plus-free-list
// model.
type Container struct {
	rw     ReadWriterAt
	closer io.Closer
	path   string
	state  State

	header   *Header
	fsm      *FileSpaceManager
	tileDir  *TileDirectory
	metaDir  *MetadataDirectory
	transform coord.RasterTransform

	elements    []element
	tileBufSize int

	registry  *codec.Registry
	tileCodec codec.Codec
	noneCodec codec.Codec

	cache *tilecache.Cache

	nRowsOfTiles, nColsOfTiles int
	deleteOnClose              bool
}

// tileSource bridges tilecache.Cache to the container's file-space manager,
// tile directory, and codec, so the cache package itself never needs to
// know about any of them.
type tileSource struct{ c *Container }

func (s *tileSource) ReadTile(tileIndex int64, offset int64) ([]byte, error) {
	return s.c.readTileRecord(tileIndex, offset)
}

func (s *tileSource) WriteTile(tileIndex int64, data []byte) (int64, error) {
	return s.c.writeTileRecord(tileIndex, data)
}

// Create makes a new container at path and opens it for writing.
func Create(path string, spec RasterSpec) (*Container, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, WrapError(FileAccess, "Create", err)
	}
	c, err := CreateOn(f, spec)
	if err != nil {
		f.Close()
		return nil, err
	}
	c.closer = f
	c.path = path
	return c, nil
}

// Open opens an existing container read-only.
func Open(path string) (*Container, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, WrapError(FileNotFound, "Open", err)
	}
	c, err := OpenOn(f, false)
	if err != nil {
		f.Close()
		return nil, err
	}
	c.closer = f
	c.path = path
	return c, nil
}

// OpenWritable opens an existing container for reading and writing.
func OpenWritable(path string) (*Container, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0o644)
	if err != nil {
		return nil, WrapError(FileNotFound, "OpenWritable", err)
	}
	c, err := OpenOn(f, true)
	if err != nil {
		f.Close()
		return nil, err
	}
	c.closer = f
	c.path = path
	return c, nil
}

// CreateOn initialises a fresh container's header, directories, and cache
// on rw, positioned as if rw were an empty file.
func CreateOn(rw ReadWriterAt, spec RasterSpec) (*Container, error) {
	for i := range spec.Elements {
		if err := spec.Elements[i].Validate(); err != nil {
			return nil, err
		}
	}
	codecNames := spec.CodecNames
	if len(codecNames) == 0 {
		codecNames = []string{"none"}
	}

	id, err := uuid.NewRandom()
	if err != nil {
		return nil, WrapError(InternalError, "CreateOn", err)
	}
	now := time.Now().UnixMilli()

	h := &Header{
		UUID:                 id,
		ModificationTimeMs:   now,
		OpenedForWritingMs:   now,
		NRowsInRaster:        int32(spec.NRowsInRaster),
		NColsInRaster:        int32(spec.NColsInRaster),
		NRowsInTile:          int32(spec.NRowsInTile),
		NColsInTile:          int32(spec.NColsInTile),
		ChecksumsEnabled:     spec.ChecksumsEnabled,
		CoordinateSystemCode: spec.CoordinateSystemCode,
		X0:                   spec.X0,
		Y0:                   spec.Y0,
		X1:                   spec.X1,
		Y1:                   spec.Y1,
		CellSizeX:            spec.CellSizeX,
		CellSizeY:            spec.CellSizeY,
		M2R:                  spec.M2R,
		R2M:                  spec.R2M,
		Elements:             spec.Elements,
		CodecNames:           codecNames,
		ProductLabel:         spec.ProductLabel,
	}

	c := &Container{
		rw:     rw,
		state:  StateWritable,
		header: h,
	}
	c.initDerived()

	c.tileDir = NewTileDirectory()
	c.metaDir = NewMetadataDirectory()

	if err := c.writeInitialHeader(); err != nil {
		return nil, err
	}

	c.cache = tilecache.NewCache(&tileSource{c: c}, tilecache.Medium, c.tileBufSize)
	return c, nil
}

// writeInitialHeader allocates and writes the leading header record of a
// freshly created container, establishing the real end-of-file the
// allocator continues from.
func (c *Container) writeInitialHeader() error {
	content := c.header.Serialize()
	fsm := NewFileSpaceManager(c.rw, 0)
	pos, err := fsm.Allocate(int64(len(content)), RecordHeader)
	if err != nil {
		return err
	}
	if _, err := c.rw.WriteAt(content, pos); err != nil {
		return fmt.Errorf("gvrsfile: write header record: %w", err)
	}
	if err := fsm.Finish(pos, int64(len(content))); err != nil {
		return err
	}
	c.fsm = fsm
	c.header.FileSize = fsm.EndOfFile()
	return nil
}

// OpenOn parses an existing container's header and directories from rw
// (spec.md §4.8's open procedure) and builds its tile cache at Medium
// capacity.
func OpenOn(rw ReadWriterAt, writable bool) (*Container, error) {
	hdrLenBuf := make([]byte, recordHeaderSize)
	if _, err := rw.ReadAt(hdrLenBuf, 0); err != nil {
		return nil, WrapError(InvalidFile, "OpenOn", err)
	}
	blockSize, rt, err := decodeRecordHeader(hdrLenBuf)
	if err != nil || rt != RecordHeader {
		return nil, NewError(InvalidFile, "OpenOn")
	}
	contentSize := blockSize - recordOverhead
	content := make([]byte, contentSize)
	if _, err := rw.ReadAt(content, recordHeaderSize); err != nil {
		return nil, WrapError(PrematureEOF, "OpenOn", err)
	}
	h, err := DeserializeHeader(content)
	if err != nil {
		return nil, err
	}
	if h.OpenedForWritingMs != 0 {
		return nil, NewError(ExclusiveOpen, "OpenOn")
	}

	c := &Container{rw: rw, header: h}
	c.initDerived()

	endOfFile := h.FileSize
	if endOfFile < blockSize {
		endOfFile = blockSize
	}
	fsm := NewFileSpaceManager(rw, endOfFile)
	if h.FileSpaceDirOffset != 0 {
		if err := fsm.LoadFileSpaceDirectory(h.FileSpaceDirOffset); err != nil {
			return nil, err
		}
	}
	c.fsm = fsm

	if h.TileDirOffset != 0 {
		tdLenBuf := make([]byte, recordHeaderSize)
		if _, err := rw.ReadAt(tdLenBuf, h.TileDirOffset-recordHeaderSize); err != nil {
			return nil, WrapError(PrematureEOF, "OpenOn", err)
		}
		tdBlockSize, _, err := decodeRecordHeader(tdLenBuf)
		if err != nil {
			return nil, err
		}
		tdContent := make([]byte, tdBlockSize-recordOverhead)
		if _, err := rw.ReadAt(tdContent, h.TileDirOffset); err != nil {
			return nil, WrapError(PrematureEOF, "OpenOn", err)
		}
		td, err := DeserializeTileDirectory(tdContent)
		if err != nil {
			return nil, err
		}
		c.tileDir = td
	} else {
		c.tileDir = NewTileDirectory()
	}

	if h.MetadataDirOffset != 0 {
		md, err := LoadMetadataDirectory(rw, h.MetadataDirOffset)
		if err != nil {
			return nil, err
		}
		c.metaDir = md
	} else {
		c.metaDir = NewMetadataDirectory()
	}

	if writable {
		c.state = StateWritable
		h.OpenedForWritingMs = time.Now().UnixMilli()
		if h.FileSpaceDirOffset != 0 {
			if err := fsm.Deallocate(h.FileSpaceDirOffset); err != nil {
				return nil, err
			}
			h.FileSpaceDirOffset = 0
		}
		if h.TileDirOffset != 0 {
			if err := fsm.Deallocate(h.TileDirOffset); err != nil {
				return nil, err
			}
			h.TileDirOffset = 0
		}
	} else {
		c.state = StateReadOnly
	}

	c.cache = tilecache.NewCache(&tileSource{c: c}, tilecache.Medium, c.tileBufSize)
	return c, nil
}

// initDerived computes the element layout, tile-grid dimensions, and codec
// instance shared by both the create and open paths.
func (c *Container) initDerived() {
	c.elements = layoutElements(c.header.Elements, int(c.header.NRowsInTile), int(c.header.NColsInTile))
	c.tileBufSize = 0
	for _, e := range c.elements {
		c.tileBufSize += e.dataSize
	}
	c.nRowsOfTiles = c.header.NRowsOfTiles()
	c.nColsOfTiles = c.header.NColsOfTiles()

	c.registry = codec.NewRegistry()
	known := make(map[string]bool)
	for _, n := range c.registry.Names() {
		known[n] = true
	}
	name := "none"
	for _, n := range c.header.CodecNames {
		if known[n] {
			name = n
			break
		}
	}
	c.tileCodec = c.registry.Instantiate(name)
	c.noneCodec = c.registry.Instantiate("none")

	m2r := coord.Affine(c.header.M2R)
	r2m := coord.Affine(c.header.R2M)
	c.transform = coord.NewRasterTransform(m2r, r2m, c.header.GeoWraps(), c.header.GeoWraps(), int(c.header.NColsInRaster))
}

func (c *Container) tileIndex(tileRow, tileCol int) int64 {
	return int64(tileRow)*int64(c.nColsOfTiles) + int64(tileCol)
}

func (c *Container) rowColFromIndex(tileIndex int64) (row, col int) {
	row = int(tileIndex / int64(c.nColsOfTiles))
	col = int(tileIndex % int64(c.nColsOfTiles))
	return
}

// State reports the container's current lifecycle state.
func (c *Container) State() State { return c.state }

// Header exposes the container's header for read-only inspection.
func (c *Container) Header() *Header { return c.header }

// ElementIndex resolves an element name to its index, or ok=false.
func (c *Container) ElementIndex(name string) (int, bool) { return c.header.ElementIndex(name) }

func (c *Container) fetchTileForRead(tileRow, tileCol int) (*tilecache.Tile, error) {
	if tileRow < 0 || tileCol < 0 || tileRow >= c.nRowsOfTiles || tileCol >= c.nColsOfTiles {
		return nil, NewError(CoordinateOutOfBounds, "fetchTileForRead")
	}
	idx := c.tileIndex(tileRow, tileCol)
	offset := c.tileDir.Lookup(tileRow, tileCol)
	return c.cache.Fetch(idx, offset)
}

func (c *Container) fetchTileForWrite(tileRow, tileCol int) (*tilecache.Tile, error) {
	if c.state != StateWritable {
		return nil, NewError(NotOpenedForWriting, "fetchTileForWrite")
	}
	t, err := c.fetchTileForRead(tileRow, tileCol)
	if err != nil {
		return nil, err
	}
	if t != nil {
		return t, nil
	}
	buf := make([]byte, c.tileBufSize)
	nRows, nCols := int(c.header.NRowsInTile), int(c.header.NColsInTile)
	for i := range c.elements {
		c.elements[i].fillBuffer(buf, nRows, nCols)
	}
	idx := c.tileIndex(tileRow, tileCol)
	return c.cache.StartNewTile(idx, buf)
}

func (c *Container) cellLocation(row, col int) (tileRow, tileCol, localRow, localCol int) {
	nRows, nCols := int(c.header.NRowsInTile), int(c.header.NColsInTile)
	tileRow, localRow = row/nRows, row%nRows
	tileCol, localCol = col/nCols, col%nCols
	return
}

// ReadInt32 reads one cell of an Int32 (or raw IntCodedFloat-coded-int)
// element, returning the element's fill value for a tile never written.
func (c *Container) ReadInt32(elementName string, row, col int) (int32, error) {
	ei, ok := c.ElementIndex(elementName)
	if !ok {
		return 0, NewError(ElementNotFound, "ReadInt32")
	}
	tileRow, tileCol, localRow, localCol := c.cellLocation(row, col)
	t, err := c.fetchTileForRead(tileRow, tileCol)
	if err != nil {
		return 0, err
	}
	e := &c.elements[ei]
	if t == nil {
		return e.FillValueInt, nil
	}
	return e.readInt32(t.Data, int(c.header.NColsInTile), localRow, localCol), nil
}

// WriteInt32 writes one cell of an Int32 element.
func (c *Container) WriteInt32(elementName string, row, col int, v int32) error {
	ei, ok := c.ElementIndex(elementName)
	if !ok {
		return NewError(ElementNotFound, "WriteInt32")
	}
	tileRow, tileCol, localRow, localCol := c.cellLocation(row, col)
	t, err := c.fetchTileForWrite(tileRow, tileCol)
	if err != nil {
		return err
	}
	e := &c.elements[ei]
	e.writeInt32(t.Data, int(c.header.NColsInTile), localRow, localCol, v)
	c.cache.MarkDirty(t)
	return nil
}

// ReadInt16 reads one cell of an Int16 element.
func (c *Container) ReadInt16(elementName string, row, col int) (int16, error) {
	ei, ok := c.ElementIndex(elementName)
	if !ok {
		return 0, NewError(ElementNotFound, "ReadInt16")
	}
	tileRow, tileCol, localRow, localCol := c.cellLocation(row, col)
	t, err := c.fetchTileForRead(tileRow, tileCol)
	if err != nil {
		return 0, err
	}
	e := &c.elements[ei]
	if t == nil {
		return int16(e.FillValueInt), nil
	}
	return e.readInt16(t.Data, int(c.header.NColsInTile), localRow, localCol), nil
}

// WriteInt16 writes one cell of an Int16 element.
func (c *Container) WriteInt16(elementName string, row, col int, v int16) error {
	ei, ok := c.ElementIndex(elementName)
	if !ok {
		return NewError(ElementNotFound, "WriteInt16")
	}
	tileRow, tileCol, localRow, localCol := c.cellLocation(row, col)
	t, err := c.fetchTileForWrite(tileRow, tileCol)
	if err != nil {
		return err
	}
	e := &c.elements[ei]
	e.writeInt16(t.Data, int(c.header.NColsInTile), localRow, localCol, v)
	c.cache.MarkDirty(t)
	return nil
}

// ReadFloat32 reads one cell of a Float32 element.
func (c *Container) ReadFloat32(elementName string, row, col int) (float32, error) {
	ei, ok := c.ElementIndex(elementName)
	if !ok {
		return 0, NewError(ElementNotFound, "ReadFloat32")
	}
	tileRow, tileCol, localRow, localCol := c.cellLocation(row, col)
	t, err := c.fetchTileForRead(tileRow, tileCol)
	if err != nil {
		return 0, err
	}
	e := &c.elements[ei]
	if t == nil {
		return e.FillValueFloat, nil
	}
	return e.readFloat32(t.Data, int(c.header.NColsInTile), localRow, localCol), nil
}

// WriteFloat32 writes one cell of a Float32 element.
func (c *Container) WriteFloat32(elementName string, row, col int, v float32) error {
	ei, ok := c.ElementIndex(elementName)
	if !ok {
		return NewError(ElementNotFound, "WriteFloat32")
	}
	tileRow, tileCol, localRow, localCol := c.cellLocation(row, col)
	t, err := c.fetchTileForWrite(tileRow, tileCol)
	if err != nil {
		return err
	}
	e := &c.elements[ei]
	e.writeFloat32(t.Data, int(c.header.NColsInTile), localRow, localCol, v)
	c.cache.MarkDirty(t)
	return nil
}

// ReadIntCodedFloat reads one cell of an IntCodedFloat element, converting
// its stored integer code to the represented float value.
func (c *Container) ReadIntCodedFloat(elementName string, row, col int) (float64, error) {
	ei, ok := c.ElementIndex(elementName)
	if !ok {
		return 0, NewError(ElementNotFound, "ReadIntCodedFloat")
	}
	tileRow, tileCol, localRow, localCol := c.cellLocation(row, col)
	t, err := c.fetchTileForRead(tileRow, tileCol)
	if err != nil {
		return 0, err
	}
	e := &c.elements[ei]
	if t == nil {
		return e.ToFloat(e.FillValueIcf), nil
	}
	raw := e.readInt32(t.Data, int(c.header.NColsInTile), localRow, localCol)
	return e.ToFloat(raw), nil
}

// WriteIntCodedFloat writes one cell of an IntCodedFloat element, rounding
// to its nearest representable stored integer code.
func (c *Container) WriteIntCodedFloat(elementName string, row, col int, v float64) error {
	ei, ok := c.ElementIndex(elementName)
	if !ok {
		return NewError(ElementNotFound, "WriteIntCodedFloat")
	}
	tileRow, tileCol, localRow, localCol := c.cellLocation(row, col)
	t, err := c.fetchTileForWrite(tileRow, tileCol)
	if err != nil {
		return err
	}
	e := &c.elements[ei]
	e.writeInt32(t.Data, int(c.header.NColsInTile), localRow, localCol, e.FromFloat(v))
	c.cache.MarkDirty(t)
	return nil
}

// Metadata returns the container's metadata directory for Write/Delete/
// ReadByNameAndID operations (spec.md §4.9).
func (c *Container) Metadata() *MetadataDirectory { return c.metaDir }

// WriteMetadata is a convenience wrapper over MetadataDirectory.Write.
func (c *Container) WriteMetadata(m Metadata) error {
	if c.state != StateWritable {
		return NewError(NotOpenedForWriting, "WriteMetadata")
	}
	return c.metaDir.Write(c.fsm, c.rw, m)
}

// ReadMetadata is a convenience wrapper over MetadataDirectory.ReadByNameAndID,
// available on an open container regardless of whether it was opened for
// writing (spec.md §4.9).
func (c *Container) ReadMetadata(name string, recordID int32) ([]Metadata, error) {
	return c.metaDir.ReadByNameAndID(c.rw, name, recordID)
}

// DeleteMetadata is a convenience wrapper over MetadataDirectory.DeleteMatching.
func (c *Container) DeleteMetadata(name string, recordID int32) error {
	if c.state != StateWritable {
		return NewError(NotOpenedForWriting, "DeleteMetadata")
	}
	return c.metaDir.DeleteMatching(c.fsm, name, recordID)
}

// SetDeleteOnClose marks the container to be removed from disk (instead of
// finalised) when Close runs, suppressing every close-time write (spec.md
// §4.8).
func (c *Container) SetDeleteOnClose() { c.deleteOnClose = true }

// Stats reports the summary counters spec.md §7 names for user visibility.
type Stats struct {
	FreeBlockCount int
	FreeByteCount  int64
	CacheLen       int
	CacheCapacity  int
}

func (c *Container) Stats() Stats {
	return Stats{
		FreeBlockCount: c.fsm.FreeBlockCount(),
		FreeByteCount:  c.fsm.FreeByteCount(),
		CacheLen:       c.cache.Len(),
		CacheCapacity:  c.cache.Capacity(),
	}
}

// ResizeCache flushes pending tiles and resizes the tile cache (spec.md
// §4.7's Small/Medium/Large/ExtraLarge tiers).
func (c *Container) ResizeCache(capacity int) error { return c.cache.Resize(capacity) }

// Close flushes dirty tiles, writes the tile/metadata/file-space
// directories, zeroes the opened-for-writing timestamp, updates the
// modification timestamp, sweeps checksums if enabled, and closes the
// underlying file (spec.md §4.8's close procedure). If SetDeleteOnClose was
// called, every write is skipped and the backing file is removed instead.
func (c *Container) Close() error {
	if c.state == StateClosed {
		return nil
	}
	defer func() { c.state = StateClosed }()

	if c.deleteOnClose {
		if c.closer != nil {
			c.closer.Close()
		}
		if c.path != "" {
			return os.Remove(c.path)
		}
		return nil
	}

	if c.state == StateWritable {
		if err := c.cache.FlushPending(); err != nil {
			return err
		}

		tdOffset, err := c.writeTileDirectory()
		if err != nil {
			return err
		}
		c.header.TileDirOffset = tdOffset

		if c.metaDir.IsWritePending() || c.header.MetadataDirOffset == 0 {
			mdOffset, err := c.metaDir.WriteDirectory(c.fsm, c.rw)
			if err != nil {
				return err
			}
			c.header.MetadataDirOffset = mdOffset
		}

		fsOffset, err := c.fsm.WriteDirectory()
		if err != nil {
			return err
		}
		c.header.FileSpaceDirOffset = fsOffset

		c.header.OpenedForWritingMs = 0
		c.header.ModificationTimeMs = time.Now().UnixMilli()
		c.header.FileSize = c.fsm.EndOfFile()

		if err := c.rewriteHeader(); err != nil {
			return err
		}

		if c.header.ChecksumsEnabled {
			if err := SweepChecksums(c.rw, c.fsm.EndOfFile()); err != nil {
				return err
			}
		}
	}

	if c.closer != nil {
		return c.closer.Close()
	}
	return nil
}

func (c *Container) writeTileDirectory() (int64, error) {
	content := c.tileDir.Serialize()
	pos, err := c.fsm.Allocate(int64(len(content)), RecordTileDir)
	if err != nil {
		return 0, err
	}
	if _, err := c.rw.WriteAt(content, pos); err != nil {
		return 0, fmt.Errorf("gvrsfile: write tile directory: %w", err)
	}
	if err := c.fsm.Finish(pos, int64(len(content))); err != nil {
		return 0, err
	}
	return pos, nil
}

// rewriteHeader re-serializes the header and overwrites its record in
// place; the header's content size does not change across a container's
// lifetime (element/codec lists are fixed at creation), so it always fits
// its original block.
func (c *Container) rewriteHeader() error {
	content := c.header.Serialize()
	return c.fsm.Overwrite(recordHeaderSize, content)
}

// readTileRecord loads and decodes one tile's full element buffer from its
// on-disk record. The record's content begins with a 4-byte tile index
// echoing the tile directory's key for this offset (spec.md §3's record
// invariant, §6's tile record layout); it is validated, not just skipped.
func (c *Container) readTileRecord(tileIndex int64, offset int64) ([]byte, error) {
	blockSize, err := c.fsm.BlockSizeAt(offset)
	if err != nil {
		return nil, err
	}
	raw := make([]byte, blockSize-recordOverhead)
	if _, err := c.rw.ReadAt(raw, offset); err != nil {
		return nil, fmt.Errorf("gvrsfile: read tile record: %w", err)
	}
	if len(raw) < 4 {
		return nil, NewError(PrematureEOF, "readTileRecord")
	}
	if echoed := getInt32(raw); int64(echoed) != tileIndex {
		return nil, NewError(InvalidFile, "readTileRecord")
	}

	buf := make([]byte, c.tileBufSize)
	nRows, nCols := int(c.header.NRowsInTile), int(c.header.NColsInTile)
	pos := 4
	for i := range c.elements {
		e := &c.elements[i]
		if pos+4 > len(raw) {
			return nil, NewError(PrematureEOF, "readTileRecord")
		}
		n := int(getInt32(raw[pos:]))
		pos += 4
		if pos+n > len(raw) {
			return nil, NewError(PrematureEOF, "readTileRecord")
		}
		payload := raw[pos : pos+n]
		pos += n

		if len(payload) < 1 {
			return nil, NewError(BadCompressionFormat, "readTileRecord")
		}
		elementCodec, err := c.registry.InstantiateByIndex(payload[0])
		if err != nil {
			return nil, WrapError(BadCompressionFormat, "readTileRecord", err)
		}

		switch e.Variant {
		case VariantFloat32:
			vals, err := elementCodec.DecodeFloat(payload, nRows, nCols)
			if err != nil {
				return nil, WrapError(BadCompressionFormat, "readTileRecord", err)
			}
			e.placeFloat32(buf, vals)
		case VariantInt16:
			vals, err := elementCodec.DecodeInt(payload, nRows, nCols)
			if err != nil {
				return nil, WrapError(BadCompressionFormat, "readTileRecord", err)
			}
			e.placeInt16FromInt32(buf, vals)
		default: // Int32, IntCodedFloat
			vals, err := elementCodec.DecodeInt(payload, nRows, nCols)
			if err != nil {
				return nil, WrapError(BadCompressionFormat, "readTileRecord", err)
			}
			e.placeInt32(buf, vals)
		}
	}
	return buf, nil
}

// writeTileRecord encodes a tile's full element buffer through the
// container's codec and persists it, overwriting its previous record in
// place when the new payload still fits, otherwise deallocating and
// reallocating (spec.md §4.7's write-pending flush).
func (c *Container) writeTileRecord(tileIndex int64, data []byte) (int64, error) {
	tileRow, tileCol := c.rowColFromIndex(tileIndex)
	nRows, nCols := int(c.header.NRowsInTile), int(c.header.NColsInTile)

	payload := putInt32(int32(tileIndex))
	for i := range c.elements {
		e := &c.elements[i]
		var part []byte
		var err error
		switch e.Variant {
		case VariantFloat32:
			part, err = c.tileCodec.EncodeFloat(e.extractFloat32(data, nRows, nCols), nRows, nCols)
		case VariantInt16:
			part, err = c.tileCodec.EncodeInt(e.extractInt16AsInt32(data, nRows, nCols), nRows, nCols)
		default:
			part, err = c.tileCodec.EncodeInt(e.extractInt32(data, nRows, nCols), nRows, nCols)
		}
		if errors.Is(err, codec.ErrCompressionFailure) {
			// spec.md §4.3/§4.7: a codec that cannot shrink this element's
			// data falls back to raw storage for that element alone, tagged
			// CodecIndexNone so readTileRecord can still decode it.
			switch e.Variant {
			case VariantFloat32:
				part, err = c.noneCodec.EncodeFloat(e.extractFloat32(data, nRows, nCols), nRows, nCols)
			case VariantInt16:
				part, err = c.noneCodec.EncodeInt(e.extractInt16AsInt32(data, nRows, nCols), nRows, nCols)
			default:
				part, err = c.noneCodec.EncodeInt(e.extractInt32(data, nRows, nCols), nRows, nCols)
			}
		}
		if err != nil {
			return 0, WrapError(CompressionFailure, "writeTileRecord", err)
		}
		payload = append(payload, putInt32(int32(len(part)))...)
		payload = append(payload, part...)
	}

	prevOffset := c.tileDir.Lookup(tileRow, tileCol)
	if prevOffset != 0 {
		blockSize, err := c.fsm.BlockSizeAt(prevOffset)
		if err == nil {
			needed := roundUp8(int64(len(payload)) + recordOverhead)
			if needed <= blockSize {
				if err := c.fsm.Overwrite(prevOffset, payload); err != nil {
					return 0, err
				}
				c.tileDir.Register(tileRow, tileCol, prevOffset)
				return prevOffset, nil
			}
		}
		if err := c.fsm.Deallocate(prevOffset); err != nil {
			return 0, err
		}
	}

	pos, err := c.fsm.Allocate(int64(len(payload)), RecordTile)
	if err != nil {
		return 0, err
	}
	if _, err := c.rw.WriteAt(payload, pos); err != nil {
		return 0, fmt.Errorf("gvrsfile: write tile record: %w", err)
	}
	if err := c.fsm.Finish(pos, int64(len(payload))); err != nil {
		return 0, err
	}
	c.tileDir.Register(tileRow, tileCol, pos)
	return pos, nil
}
