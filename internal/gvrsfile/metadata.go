package gvrsfile

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"sort"
)

// MetadataType is the stored-value type of one metadata record (spec.md §3).
type MetadataType byte

const (
	MetaByte MetadataType = iota
	MetaShort
	MetaUShort
	MetaInt
	MetaUInt
	MetaFloat
	MetaDouble
	MetaString
	MetaAscii
)

// WildcardRecordID is the INT_MIN sentinel recordID meaning "match any
// record ID" in readByNameAndID (spec.md §4.9).
const WildcardRecordID = math.MinInt32

// WildcardName is the "*" name meaning "match any name" in readByNameAndID.
const WildcardName = "*"

// Metadata is one named, typed, record-ID-disambiguated blob.
type Metadata struct {
	Name        string
	RecordID    int32
	Type        MetadataType
	Data        []byte
	Description string
}

func (m *Metadata) contentSize() int64 {
	return int64(2+len(m.Name)) + 4 + 1 + 3 + 4 + int64(len(m.Data)) + int64(2+len(m.Description))
}

func (m *Metadata) encode() []byte {
	buf := make([]byte, 0, m.contentSize())
	buf = append(buf, encodeLengthPrefixedString(m.Name, false)...)
	buf = append(buf, putInt32(m.RecordID)...)
	buf = append(buf, byte(m.Type), 0, 0, 0)
	var tmp4 [4]byte
	binary.LittleEndian.PutUint32(tmp4[:], uint32(len(m.Data)))
	buf = append(buf, tmp4[:]...)
	buf = append(buf, m.Data...)
	buf = append(buf, encodeLengthPrefixedString(m.Description, false)...)
	return buf
}

func decodeMetadata(buf []byte) (Metadata, error) {
	name, n, err := decodeLengthPrefixedString(buf, false)
	if err != nil {
		return Metadata{}, err
	}
	pos := n
	if len(buf) < pos+8 {
		return Metadata{}, NewError(PrematureEOF, "decodeMetadata")
	}
	m := Metadata{Name: name}
	m.RecordID = getInt32(buf[pos:])
	m.Type = MetadataType(buf[pos+4])
	dataSize := int(binary.LittleEndian.Uint32(buf[pos+8:]))
	pos += 12
	if len(buf) < pos+dataSize {
		return Metadata{}, NewError(PrematureEOF, "decodeMetadata")
	}
	m.Data = append([]byte(nil), buf[pos:pos+dataSize]...)
	pos += dataSize
	desc, _, err := decodeLengthPrefixedString(buf[pos:], false)
	if err != nil {
		return Metadata{}, err
	}
	m.Description = desc
	return m, nil
}

// metadataRef is one entry of the metadata directory: which record holds
// which (name, recordID), sorted by (name, recordID) (spec.md §3).
type metadataRef struct {
	Name     string
	RecordID int32
	Offset   int64
}

func refLess(a, b metadataRef) bool {
	if a.Name != b.Name {
		return a.Name < b.Name
	}
	return a.RecordID < b.RecordID
}

// MetadataDirectory is the sorted directory of metadata references, plus
// the read/write/delete operations of spec.md §4.9. New relative to the
// teacher; grounded on internal/pmtiles/directory.go's sorted-slice-of-
// references idiom (buildDirectory/optimizeRunLengths), adapted from
// tile-ID ordering to (name, recordID) ordering.
type MetadataDirectory struct {
	refs         []metadataRef
	writePending bool
	onDiskOffset int64
}

// NewMetadataDirectory returns an empty directory.
func NewMetadataDirectory() *MetadataDirectory {
	return &MetadataDirectory{}
}

func (d *MetadataDirectory) find(name string, recordID int32) (int, bool) {
	i := sort.Search(len(d.refs), func(i int) bool {
		return !refLess(d.refs[i], metadataRef{Name: name, RecordID: recordID})
	})
	if i < len(d.refs) && d.refs[i].Name == name && d.refs[i].RecordID == recordID {
		return i, true
	}
	return i, false
}

// IsWritePending reports whether the directory has changed since it was
// last written (or loaded), per spec.md §4.8's close procedure.
func (d *MetadataDirectory) IsWritePending() bool { return d.writePending }

// Count reports how many metadata records the directory references.
func (d *MetadataDirectory) Count() int { return len(d.refs) }

// Write allocates a new record for m, replacing any existing record with
// the same (name, recordID), and marks the directory write-pending.
func (d *MetadataDirectory) Write(fsm *FileSpaceManager, w io.WriterAt, m Metadata) error {
	if i, ok := d.find(m.Name, m.RecordID); ok {
		if err := fsm.Deallocate(d.refs[i].Offset); err != nil {
			return err
		}
		d.refs = append(d.refs[:i], d.refs[i+1:]...)
	}

	size := m.contentSize()
	pos, err := fsm.Allocate(size, RecordMetadata)
	if err != nil {
		return err
	}
	if _, err := w.WriteAt(m.encode(), pos); err != nil {
		return fmt.Errorf("gvrsfile: write metadata record: %w", err)
	}
	if err := fsm.Finish(pos, size); err != nil {
		return err
	}

	ref := metadataRef{Name: m.Name, RecordID: m.RecordID, Offset: pos}
	i := sort.Search(len(d.refs), func(i int) bool { return !refLess(d.refs[i], ref) })
	d.refs = append(d.refs, metadataRef{})
	copy(d.refs[i+1:], d.refs[i:])
	d.refs[i] = ref
	d.writePending = true
	return nil
}

// Delete removes the reference for (name, recordID) and deallocates its
// record, if present.
func (d *MetadataDirectory) Delete(fsm *FileSpaceManager, name string, recordID int32) error {
	i, ok := d.find(name, recordID)
	if !ok {
		return nil
	}
	if err := fsm.Deallocate(d.refs[i].Offset); err != nil {
		return err
	}
	d.refs = append(d.refs[:i], d.refs[i+1:]...)
	d.writePending = true
	return nil
}

// DeleteMatching removes every reference matching the (possibly wildcard)
// name and recordID, deallocating each record.
func (d *MetadataDirectory) DeleteMatching(fsm *FileSpaceManager, name string, recordID int32) error {
	matches := d.Lookup(name, recordID)
	for _, ref := range matches {
		if err := d.Delete(fsm, ref.Name, ref.RecordID); err != nil {
			return err
		}
	}
	return nil
}

// Lookup returns every reference matching name (or all, if name is
// WildcardName) and recordID (or all, if recordID is WildcardRecordID).
func (d *MetadataDirectory) Lookup(name string, recordID int32) []metadataRef {
	var out []metadataRef
	for _, r := range d.refs {
		if (name == WildcardName || r.Name == name) && (recordID == WildcardRecordID || r.RecordID == recordID) {
			out = append(out, r)
		}
	}
	return out
}

// ReadByNameAndID resolves every matching reference to its full Metadata
// record, reading content from r.
func (d *MetadataDirectory) ReadByNameAndID(r io.ReaderAt, name string, recordID int32) ([]Metadata, error) {
	refs := d.Lookup(name, recordID)
	out := make([]Metadata, 0, len(refs))
	for _, ref := range refs {
		m, err := readMetadataRecord(r, ref.Offset)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

func readMetadataRecord(r io.ReaderAt, pos int64) (Metadata, error) {
	var lenBuf [2]byte
	if _, err := r.ReadAt(lenBuf[:], pos); err != nil {
		return Metadata{}, fmt.Errorf("gvrsfile: read metadata record: %w", err)
	}
	nameLen := int(binary.LittleEndian.Uint16(lenBuf[:]))
	head := make([]byte, 2+nameLen+12)
	if _, err := r.ReadAt(head, pos); err != nil {
		return Metadata{}, fmt.Errorf("gvrsfile: read metadata record: %w", err)
	}
	dataSize := int(binary.LittleEndian.Uint32(head[2+nameLen+8:]))
	rest := make([]byte, dataSize+2)
	if _, err := r.ReadAt(rest, pos+int64(len(head))); err != nil {
		return Metadata{}, fmt.Errorf("gvrsfile: read metadata record: %w", err)
	}
	// description length prefix may extend past the fixed-size probe above;
	// re-read the whole record once its length is known.
	descLen := int(binary.LittleEndian.Uint16(rest[dataSize:]))
	full := make([]byte, len(head)+dataSize+2+descLen)
	if _, err := r.ReadAt(full, pos); err != nil {
		return Metadata{}, fmt.Errorf("gvrsfile: read metadata record: %w", err)
	}
	return decodeMetadata(full)
}

// directoryContentSize reports the serialized size of the directory record.
func (d *MetadataDirectory) directoryContentSize() int64 {
	var size int64 = 4
	for _, r := range d.refs {
		size += int64(2+len(r.Name)) + 4 + 8
	}
	return size
}

// WriteDirectory serialises the directory as a MetadataDir record and
// returns its content offset.
func (d *MetadataDirectory) WriteDirectory(fsm *FileSpaceManager, w io.WriterAt) (int64, error) {
	size := d.directoryContentSize()
	pos, err := fsm.Allocate(size, RecordMetadataDir)
	if err != nil {
		return 0, err
	}
	buf := make([]byte, 0, size)
	var tmp4 [4]byte
	binary.LittleEndian.PutUint32(tmp4[:], uint32(len(d.refs)))
	buf = append(buf, tmp4[:]...)
	for _, r := range d.refs {
		buf = append(buf, encodeLengthPrefixedString(r.Name, false)...)
		buf = append(buf, putInt32(r.RecordID)...)
		var tmp8 [8]byte
		binary.LittleEndian.PutUint64(tmp8[:], uint64(r.Offset))
		buf = append(buf, tmp8[:]...)
	}
	if _, err := w.WriteAt(buf, pos); err != nil {
		return 0, fmt.Errorf("gvrsfile: write metadata directory: %w", err)
	}
	if err := fsm.Finish(pos, size); err != nil {
		return 0, err
	}
	d.writePending = false
	d.onDiskOffset = pos
	return pos, nil
}

// LoadMetadataDirectory reads a MetadataDir record's content at pos.
func LoadMetadataDirectory(r io.ReaderAt, pos int64) (*MetadataDirectory, error) {
	var countBuf [4]byte
	if _, err := r.ReadAt(countBuf[:], pos); err != nil {
		return nil, fmt.Errorf("gvrsfile: read metadata directory: %w", err)
	}
	count := int(binary.LittleEndian.Uint32(countBuf[:]))
	d := &MetadataDirectory{onDiskOffset: pos}
	readPos := pos + 4
	for i := 0; i < count; i++ {
		var lenBuf [2]byte
		if _, err := r.ReadAt(lenBuf[:], readPos); err != nil {
			return nil, fmt.Errorf("gvrsfile: read metadata directory entry: %w", err)
		}
		nameLen := int(binary.LittleEndian.Uint16(lenBuf[:]))
		entry := make([]byte, 2+nameLen+4+8)
		if _, err := r.ReadAt(entry, readPos); err != nil {
			return nil, fmt.Errorf("gvrsfile: read metadata directory entry: %w", err)
		}
		name := string(entry[2 : 2+nameLen])
		recordID := getInt32(entry[2+nameLen:])
		offset := int64(binary.LittleEndian.Uint64(entry[2+nameLen+4:]))
		d.refs = append(d.refs, metadataRef{Name: name, RecordID: recordID, Offset: offset})
		readPos += int64(len(entry))
	}
	return d, nil
}
