package gvrsfile

import (
	"bytes"
	"testing"
)

// memFile is an in-memory ReadWriterAt backing a Container in tests,
// growing its backing slice on demand like a sparse file would.
type memFile struct {
	buf []byte
}

func (m *memFile) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, NewError(InvalidParameter, "memFile.ReadAt")
	}
	if int(off) >= len(m.buf) {
		for i := range p {
			p[i] = 0
		}
		return len(p), nil
	}
	n := copy(p, m.buf[off:])
	for i := n; i < len(p); i++ {
		p[i] = 0
	}
	return len(p), nil
}

func (m *memFile) WriteAt(p []byte, off int64) (int, error) {
	end := int(off) + len(p)
	if end > len(m.buf) {
		grown := make([]byte, end)
		copy(grown, m.buf)
		m.buf = grown
	}
	copy(m.buf[off:], p)
	return len(p), nil
}

func sampleSpec() RasterSpec {
	return RasterSpec{
		NRowsInRaster: 10,
		NColsInRaster: 10,
		NRowsInTile:   4,
		NColsInTile:   4,
		Elements: []ElementSpec{
			{Name: "z", Variant: VariantInt32, FillValueInt: -999},
			{Name: "temp", Variant: VariantFloat32, FillValueFloat: -9999.5},
		},
		CodecNames:   []string{"none"},
		ProductLabel: "test raster",
	}
}

func TestCreateOnWriteReadRoundTrip(t *testing.T) {
	f := &memFile{}
	c, err := CreateOn(f, sampleSpec())
	if err != nil {
		t.Fatalf("CreateOn: %v", err)
	}

	if err := c.WriteInt32("z", 3, 7, 42); err != nil {
		t.Fatalf("WriteInt32: %v", err)
	}
	if err := c.WriteFloat32("temp", 3, 7, 98.6); err != nil {
		t.Fatalf("WriteFloat32: %v", err)
	}

	got, err := c.ReadInt32("z", 3, 7)
	if err != nil {
		t.Fatalf("ReadInt32: %v", err)
	}
	if got != 42 {
		t.Fatalf("ReadInt32 = %d, want 42", got)
	}
	gotF, err := c.ReadFloat32("temp", 3, 7)
	if err != nil {
		t.Fatalf("ReadFloat32: %v", err)
	}
	if gotF != 98.6 {
		t.Fatalf("ReadFloat32 = %v, want 98.6", gotF)
	}
}

func TestReadUnwrittenCellReturnsFillValue(t *testing.T) {
	f := &memFile{}
	c, err := CreateOn(f, sampleSpec())
	if err != nil {
		t.Fatalf("CreateOn: %v", err)
	}
	got, err := c.ReadInt32("z", 0, 0)
	if err != nil {
		t.Fatalf("ReadInt32: %v", err)
	}
	if got != -999 {
		t.Fatalf("ReadInt32 on unwritten tile = %d, want fill value -999", got)
	}
}

func TestCloseThenReopenPreservesData(t *testing.T) {
	f := &memFile{}
	c, err := CreateOn(f, sampleSpec())
	if err != nil {
		t.Fatalf("CreateOn: %v", err)
	}
	if err := c.WriteInt32("z", 1, 1, 7); err != nil {
		t.Fatalf("WriteInt32: %v", err)
	}
	if err := c.WriteInt32("z", 9, 9, 11); err != nil {
		t.Fatalf("WriteInt32: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	c2, err := OpenOn(f, false)
	if err != nil {
		t.Fatalf("OpenOn: %v", err)
	}
	v1, err := c2.ReadInt32("z", 1, 1)
	if err != nil {
		t.Fatalf("ReadInt32: %v", err)
	}
	if v1 != 7 {
		t.Fatalf("ReadInt32(1,1) = %d, want 7", v1)
	}
	v2, err := c2.ReadInt32("z", 9, 9)
	if err != nil {
		t.Fatalf("ReadInt32: %v", err)
	}
	if v2 != 11 {
		t.Fatalf("ReadInt32(9,9) = %d, want 11", v2)
	}
	if c2.State() != StateReadOnly {
		t.Fatalf("expected reopened container to be ReadOnly, got %v", c2.State())
	}
}

func TestReopenForWritingSetsExclusiveOpenFlag(t *testing.T) {
	f := &memFile{}
	c, err := CreateOn(f, sampleSpec())
	if err != nil {
		t.Fatalf("CreateOn: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	c2, err := OpenOn(f, true)
	if err != nil {
		t.Fatalf("OpenOn writable: %v", err)
	}
	if c2.Header().OpenedForWritingMs == 0 {
		t.Fatalf("expected OpenedForWritingMs to be set while writable")
	}

	if _, err := OpenOn(f, false); err == nil {
		t.Fatalf("expected second open to fail while exclusively open for writing")
	}
}

func TestChecksumSweepVerifiesAfterClose(t *testing.T) {
	f := &memFile{}
	spec := sampleSpec()
	spec.ChecksumsEnabled = true
	c, err := CreateOn(f, spec)
	if err != nil {
		t.Fatalf("CreateOn: %v", err)
	}
	if err := c.WriteInt32("z", 2, 2, 123); err != nil {
		t.Fatalf("WriteInt32: %v", err)
	}
	if err := c.WriteMetadata(Metadata{Name: "note", RecordID: 1, Type: MetaString, Data: []byte("hello")}); err != nil {
		t.Fatalf("WriteMetadata: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	ok, badOffset, err := VerifyChecksums(f, int64(len(f.buf)))
	if err != nil {
		t.Fatalf("VerifyChecksums: %v", err)
	}
	if !ok {
		t.Fatalf("checksum mismatch at offset %d", badOffset)
	}
}

func TestSetDeleteOnCloseSkipsWrites(t *testing.T) {
	f := &memFile{}
	c, err := CreateOn(f, sampleSpec())
	if err != nil {
		t.Fatalf("CreateOn: %v", err)
	}
	if err := c.WriteInt32("z", 0, 0, 5); err != nil {
		t.Fatalf("WriteInt32: %v", err)
	}
	before := append([]byte(nil), f.buf...)
	c.SetDeleteOnClose()
	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	// with no backing path, Close only skips directory writes; the buffer
	// must be unchanged from before Close ran.
	if !bytes.Equal(before, f.buf) {
		t.Fatalf("expected delete-on-close to leave the backing buffer untouched")
	}
}

func TestTileRecordEchoesTileIndex(t *testing.T) {
	f := &memFile{}
	c, err := CreateOn(f, sampleSpec())
	if err != nil {
		t.Fatalf("CreateOn: %v", err)
	}
	// tile grid is 3x3 (ceil(10/4)); cell (5,6) lands in tile row 1, col 1.
	if err := c.WriteInt32("z", 5, 6, 77); err != nil {
		t.Fatalf("WriteInt32: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	c2, err := OpenOn(f, false)
	if err != nil {
		t.Fatalf("OpenOn: %v", err)
	}
	wantIndex := int64(1*c2.nColsOfTiles + 1)
	offset := c2.tileDir.Lookup(1, 1)
	if offset == 0 {
		t.Fatalf("expected tile (1,1) to have a stored offset")
	}
	var hdr [4]byte
	if _, err := f.ReadAt(hdr[:], offset); err != nil {
		t.Fatalf("ReadAt: %v", err)
	}
	got := int64(getInt32(hdr[:]))
	if got != wantIndex {
		t.Fatalf("tile record's leading 4 bytes = %d, want echoed tile index %d", got, wantIndex)
	}
}

func TestMetadataWriteReadByNameAndID(t *testing.T) {
	f := &memFile{}
	c, err := CreateOn(f, sampleSpec())
	if err != nil {
		t.Fatalf("CreateOn: %v", err)
	}
	if err := c.WriteMetadata(Metadata{Name: "author", RecordID: 0, Type: MetaString, Data: []byte("alice")}); err != nil {
		t.Fatalf("WriteMetadata: %v", err)
	}
	if err := c.WriteMetadata(Metadata{Name: "author", RecordID: 1, Type: MetaString, Data: []byte("bob")}); err != nil {
		t.Fatalf("WriteMetadata: %v", err)
	}

	recs, err := c.Metadata().ReadByNameAndID(f, "author", WildcardRecordID)
	if err != nil {
		t.Fatalf("ReadByNameAndID: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("expected 2 matching records, got %d", len(recs))
	}
}

func TestStatsReportsCacheAndFreeSpace(t *testing.T) {
	f := &memFile{}
	c, err := CreateOn(f, sampleSpec())
	if err != nil {
		t.Fatalf("CreateOn: %v", err)
	}
	if err := c.WriteInt32("z", 0, 0, 1); err != nil {
		t.Fatalf("WriteInt32: %v", err)
	}
	stats := c.Stats()
	if stats.CacheCapacity != 9 { // tilecache.Medium
		t.Fatalf("CacheCapacity = %d, want 9", stats.CacheCapacity)
	}
	if stats.CacheLen != 1 {
		t.Fatalf("CacheLen = %d, want 1", stats.CacheLen)
	}
}

// TestDeflateFallsBackToNoneOnIncompressibleTile exercises spec.md §4.3/
// §4.7: when a deflate-configured container's codec reports
// ErrCompressionFailure for a tile's element data, writeTileRecord must
// re-encode that element with NoneCodec rather than failing the write, and
// readTileRecord must be able to decode the resulting mixed-codec record on
// reopen via the leading codec-index byte.
func TestDeflateFallsBackToNoneOnIncompressibleTile(t *testing.T) {
	f := &memFile{}
	spec := RasterSpec{
		NRowsInRaster: 10,
		NColsInRaster: 10,
		NRowsInTile:   4,
		NColsInTile:   4,
		Elements: []ElementSpec{
			{Name: "z", Variant: VariantInt32, FillValueInt: -999},
		},
		CodecNames:   []string{"deflate"},
		ProductLabel: "test raster",
	}
	c, err := CreateOn(f, spec)
	if err != nil {
		t.Fatalf("CreateOn: %v", err)
	}

	// High-entropy values across every cell of tile (0,0) defeat the
	// predictor-plus-deflate pipeline, forcing DeflateCodec.EncodeInt to
	// return ErrCompressionFailure for this tile's "z" element.
	entropy := []int32{-123456789, 2023406813, -998244353, 5, 1999999999, -7, 123123123, 555555555, -2000000000, 42, -1, 99999, 2, -55555555, 777777777, 8}
	k := 0
	for row := 0; row < 4; row++ {
		for col := 0; col < 4; col++ {
			if err := c.WriteInt32("z", row, col, entropy[k]); err != nil {
				t.Fatalf("WriteInt32(%d,%d): %v", row, col, err)
			}
			k++
		}
	}
	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	c2, err := OpenOn(f, false)
	if err != nil {
		t.Fatalf("OpenOn: %v", err)
	}
	k = 0
	for row := 0; row < 4; row++ {
		for col := 0; col < 4; col++ {
			got, err := c2.ReadInt32("z", row, col)
			if err != nil {
				t.Fatalf("ReadInt32(%d,%d): %v", row, col, err)
			}
			if got != entropy[k] {
				t.Fatalf("ReadInt32(%d,%d) = %d, want %d", row, col, got, entropy[k])
			}
			k++
		}
	}
}

func TestMetadataReadAndDeleteThroughContainer(t *testing.T) {
	f := &memFile{}
	c, err := CreateOn(f, sampleSpec())
	if err != nil {
		t.Fatalf("CreateOn: %v", err)
	}
	if err := c.WriteMetadata(Metadata{Name: "author", RecordID: 0, Type: MetaString, Data: []byte("alice")}); err != nil {
		t.Fatalf("WriteMetadata: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	c2, err := OpenOn(f, true)
	if err != nil {
		t.Fatalf("OpenOn: %v", err)
	}
	recs, err := c2.ReadMetadata("author", 0)
	if err != nil {
		t.Fatalf("ReadMetadata: %v", err)
	}
	if len(recs) != 1 || string(recs[0].Data) != "alice" {
		t.Fatalf("ReadMetadata = %+v, want one record with data \"alice\"", recs)
	}

	if err := c2.DeleteMetadata("author", 0); err != nil {
		t.Fatalf("DeleteMetadata: %v", err)
	}
	if err := c2.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	c3, err := OpenOn(f, false)
	if err != nil {
		t.Fatalf("OpenOn: %v", err)
	}
	recs, err = c3.ReadMetadata("author", 0)
	if err != nil {
		t.Fatalf("ReadMetadata after delete: %v", err)
	}
	if len(recs) != 0 {
		t.Fatalf("expected metadata record deleted, got %+v", recs)
	}
}
