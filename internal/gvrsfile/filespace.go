package gvrsfile

import (
	"encoding/binary"
	"fmt"
	"io"
)

// freeBlock is one entry of the file-space manager's ordered free list
// (spec.md §3: "Ordered singly-linked list of free blocks, each
// (filePos, blockSize), sorted by filePos ascending").
type freeBlock struct {
	filePos   int64
	blockSize int64
}

// minSplitRemainder is the smallest remainder size worth splitting off a
// free block into its own entry (spec.md §4.6 step 2: "at least
// blockSize + 32 bytes").
const minSplitRemainder = 32

// FileSpaceManager implements the allocate/split/merge/deallocate
// free-list algorithm of spec.md §4.6, grounded on internal/tile/
// diskstore.go's allocate-index-evict bookkeeping (there: an in-memory map
// plus an append-only spill file; here: an explicit on-disk free list
// instead of always appending, since GVRS records are reused in place).
type FileSpaceManager struct {
	file      io.ReaderAt
	writer    io.WriterAt
	free      []freeBlock
	endOfFile int64
}

// NewFileSpaceManager returns a manager with an empty free list, for a
// freshly created container whose content area starts at endOfFile.
func NewFileSpaceManager(rw interface {
	io.ReaderAt
	io.WriterAt
}, endOfFile int64) *FileSpaceManager {
	return &FileSpaceManager{file: rw, writer: rw, endOfFile: endOfFile}
}

// EndOfFile reports the current logical end of the container's record area.
func (m *FileSpaceManager) EndOfFile() int64 { return m.endOfFile }

// FreeBlockCount and FreeByteCount support the summary reporter (spec.md §7
// "User visibility": free-block count, sum of free space).
func (m *FileSpaceManager) FreeBlockCount() int { return len(m.free) }

func (m *FileSpaceManager) FreeByteCount() int64 {
	var total int64
	for _, b := range m.free {
		total += b.blockSize
	}
	return total
}

func (m *FileSpaceManager) readAt(buf []byte, off int64) error {
	_, err := m.file.ReadAt(buf, off)
	if err != nil && err != io.EOF {
		return err
	}
	return nil
}

func (m *FileSpaceManager) writeAt(buf []byte, off int64) error {
	_, err := m.writer.WriteAt(buf, off)
	return err
}

// Allocate reserves a new record of the given content size and type,
// returning the file offset of the record's content (immediately following
// the 8-byte record header).
func (m *FileSpaceManager) Allocate(contentSize int64, rt RecordType) (int64, error) {
	if contentSize < 0 {
		return 0, NewError(InvalidParameter, "Allocate")
	}
	blockSize := roundUp8(contentSize + recordOverhead)

	for i, b := range m.free {
		switch {
		case b.blockSize == blockSize:
			m.free = append(m.free[:i], m.free[i+1:]...)
			return m.placeRecord(b.filePos, blockSize, rt)
		case b.blockSize >= blockSize+minSplitRemainder:
			remainderPos := b.filePos + blockSize
			remainderSize := b.blockSize - blockSize
			m.free[i] = freeBlock{filePos: remainderPos, blockSize: remainderSize}
			if err := m.writeAt(encodeRecordHeader(remainderSize, RecordFreespace), remainderPos); err != nil {
				return 0, fmt.Errorf("gvrsfile: rewrite split free header: %w", err)
			}
			return m.placeRecord(b.filePos, blockSize, rt)
		}
	}

	if n := len(m.free); n > 0 {
		last := m.free[n-1]
		if last.filePos+last.blockSize == m.endOfFile && last.blockSize < blockSize {
			m.free = m.free[:n-1]
			m.endOfFile += blockSize - last.blockSize
			return m.placeRecord(last.filePos, blockSize, rt)
		}
	}

	pos := m.endOfFile
	m.endOfFile += blockSize
	return m.placeRecord(pos, blockSize, rt)
}

func (m *FileSpaceManager) placeRecord(filePos, blockSize int64, rt RecordType) (int64, error) {
	if err := m.writeAt(encodeRecordHeader(blockSize, rt), filePos); err != nil {
		return 0, fmt.Errorf("gvrsfile: write record header: %w", err)
	}
	return filePos + recordHeaderSize, nil
}

// Finish zeroes the remainder of a record's allocated block, up to but
// excluding the 4-byte checksum trailer slot, once the writer has finished
// emitting contentBytesWritten bytes of content at contentPos.
func (m *FileSpaceManager) Finish(contentPos, contentBytesWritten int64) error {
	releasePos := contentPos - recordHeaderSize
	blockSize, err := m.readBlockSize(releasePos)
	if err != nil {
		return err
	}
	padStart := contentPos + contentBytesWritten
	padEnd := releasePos + blockSize - recordTrailerSize
	if padStart > padEnd {
		return NewError(InternalError, "Finish")
	}
	if padStart < padEnd {
		zeros := make([]byte, padEnd-padStart)
		if err := m.writeAt(zeros, padStart); err != nil {
			return fmt.Errorf("gvrsfile: zero-fill record tail: %w", err)
		}
	}
	return nil
}

func (m *FileSpaceManager) readBlockSize(releasePos int64) (int64, error) {
	hdr := make([]byte, recordHeaderSize)
	if err := m.readAt(hdr, releasePos); err != nil {
		return 0, fmt.Errorf("gvrsfile: read record header: %w", err)
	}
	blockSize, _, err := decodeRecordHeader(hdr)
	if err != nil {
		return 0, err
	}
	return blockSize, nil
}

// BlockSizeAt reports the allocated block size (header + content + padding
// + trailer) of the record whose content begins at contentPos.
func (m *FileSpaceManager) BlockSizeAt(contentPos int64) (int64, error) {
	return m.readBlockSize(contentPos - recordHeaderSize)
}

// Overwrite rewrites a record's content in place and zero-pads the
// remainder of its block. The caller must already have confirmed the new
// content fits within the record's existing block size (spec.md §4.7's
// tile write-pending flush: "overwrite in place if it fits the previous
// allocated size").
func (m *FileSpaceManager) Overwrite(contentPos int64, data []byte) error {
	if err := m.writeAt(data, contentPos); err != nil {
		return fmt.Errorf("gvrsfile: overwrite record content: %w", err)
	}
	return m.Finish(contentPos, int64(len(data)))
}

// Deallocate releases the record whose content begins at contentPos. A
// double-free (exact duplicate, or overlap with an existing predecessor) is
// silently rejected, per spec.md §4.6 step 2.
func (m *FileSpaceManager) Deallocate(contentPos int64) error {
	releasePos := contentPos - recordHeaderSize
	blockSize, err := m.readBlockSize(releasePos)
	if err != nil {
		return err
	}

	idx := 0
	for idx < len(m.free) && m.free[idx].filePos < releasePos {
		idx++
	}
	if idx < len(m.free) && m.free[idx].filePos == releasePos {
		return nil // exact duplicate of an existing free entry
	}
	if idx > 0 {
		pred := m.free[idx-1]
		if pred.filePos+pred.blockSize > releasePos {
			return nil // overlaps the existing predecessor
		}
	}

	if err := m.markFreespaceAndZero(releasePos, blockSize); err != nil {
		return err
	}

	newBlock := freeBlock{filePos: releasePos, blockSize: blockSize}
	if idx > 0 && m.free[idx-1].filePos+m.free[idx-1].blockSize == newBlock.filePos {
		newBlock.filePos = m.free[idx-1].filePos
		newBlock.blockSize += m.free[idx-1].blockSize
		idx--
		m.free = append(m.free[:idx], m.free[idx+1:]...)
	}
	if idx < len(m.free) && newBlock.filePos+newBlock.blockSize == m.free[idx].filePos {
		newBlock.blockSize += m.free[idx].blockSize
		m.free = append(m.free[:idx], m.free[idx+1:]...)
	}

	m.free = append(m.free, freeBlock{})
	copy(m.free[idx+1:], m.free[idx:])
	m.free[idx] = newBlock

	return m.writeAt(encodeRecordHeader(newBlock.blockSize, RecordFreespace), newBlock.filePos)
}

func (m *FileSpaceManager) markFreespaceAndZero(releasePos, blockSize int64) error {
	hdr := encodeRecordHeader(blockSize, RecordFreespace)
	if err := m.writeAt(hdr, releasePos); err != nil {
		return fmt.Errorf("gvrsfile: mark freespace: %w", err)
	}
	zeros := make([]byte, blockSize-recordHeaderSize)
	return m.writeAt(zeros, releasePos+recordHeaderSize)
}

// directoryContentSize reports the serialized size of the free-list
// directory record content.
func (m *FileSpaceManager) directoryContentSize() int64 {
	return 4 + int64(len(m.free))*16
}

// WriteDirectory serialises the free list as a FileSpaceDir record and
// returns its content offset. The on-disk layout (count u32, then
// (filePos i64, blockSize i64) per entry) is this module's own choice:
// spec.md names the record type but not a wire format for it.
func (m *FileSpaceManager) WriteDirectory() (int64, error) {
	contentSize := m.directoryContentSize()
	pos, err := m.Allocate(contentSize, RecordFileSpaceDir)
	if err != nil {
		return 0, err
	}
	buf := make([]byte, contentSize)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(len(m.free)))
	off := 4
	for _, b := range m.free {
		binary.LittleEndian.PutUint64(buf[off:off+8], uint64(b.filePos))
		binary.LittleEndian.PutUint64(buf[off+8:off+16], uint64(b.blockSize))
		off += 16
	}
	if err := m.writeAt(buf, pos); err != nil {
		return 0, fmt.Errorf("gvrsfile: write file-space directory: %w", err)
	}
	if err := m.Finish(pos, contentSize); err != nil {
		return 0, err
	}
	return pos, nil
}

// LoadFileSpaceDirectory reads a FileSpaceDir record's content at pos and
// installs it as the manager's free list. The previously-held record at pos
// is not reclaimed by this call; the writable-open path frees it
// immediately instead (spec.md §4.8).
func (m *FileSpaceManager) LoadFileSpaceDirectory(pos int64) error {
	var countBuf [4]byte
	if err := m.readAt(countBuf[:], pos); err != nil {
		return fmt.Errorf("gvrsfile: read file-space directory: %w", err)
	}
	count := binary.LittleEndian.Uint32(countBuf[:])
	buf := make([]byte, int(count)*16)
	if count > 0 {
		if err := m.readAt(buf, pos+4); err != nil {
			return fmt.Errorf("gvrsfile: read file-space directory entries: %w", err)
		}
	}
	free := make([]freeBlock, count)
	off := 0
	for i := range free {
		free[i] = freeBlock{
			filePos:   int64(binary.LittleEndian.Uint64(buf[off : off+8])),
			blockSize: int64(binary.LittleEndian.Uint64(buf[off+8 : off+16])),
		}
		off += 16
	}
	m.free = free
	return nil
}
