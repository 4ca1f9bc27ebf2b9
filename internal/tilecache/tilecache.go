// Package tilecache implements the fixed-capacity LRU tile cache of
// spec.md §4.7: a doubly-linked list of pre-allocated tile slots plus a
// 256-bin open hash table keyed on tile index. It is grounded on
// internal/cog/tilecache.go's map-plus-eviction-order cache, scaled up to
// the richer eviction/promotion/write-back contract spec.md requires (the
// teacher's plain Go map cannot give O(1) promotion-to-head or a
// write-pending flush on eviction).
//
// The cache is deliberately decoupled from the container format: it knows
// nothing about records, codecs, or the tile directory. A Source supplies
// the actual disk I/O, so the cache never needs to import gvrsfile.
package tilecache

import "fmt"

// Source persists and retrieves a tile's raw (already-decoded) element
// byte buffer on behalf of the cache.
type Source interface {
	// ReadTile reads the tile record for tileIndex at the given on-disk
	// content offset; implementations validate that the record's own
	// echoed tile index matches tileIndex.
	ReadTile(tileIndex int64, offset int64) ([]byte, error)
	// WriteTile persists data for tileIndex, returning its (possibly new)
	// on-disk content offset.
	WriteTile(tileIndex int64, data []byte) (offset int64, err error)
}

// Capacity tiers named by spec.md §4.7.
const (
	Small = 4
	Medium = 9
)

// Large and ExtraLarge scale with the raster's tile-grid dimensions.
func Large(nRowsOfTiles, nColsOfTiles int) int {
	n := nRowsOfTiles
	if nColsOfTiles > n {
		n = nColsOfTiles
	}
	return clampCapacity(n)
}

func ExtraLarge(nRowsOfTiles, nColsOfTiles int) int {
	return clampCapacity(2 * Large(nRowsOfTiles, nColsOfTiles))
}

func clampCapacity(n int) int {
	if n < 4 {
		return 4
	}
	return n
}

// Tile is one cached tile: its index, raw element byte buffer, on-disk
// offset (0 if never persisted), and write-pending flag. Tile is a
// non-owning handle from the caller's point of view — the cache owns the
// backing slot and may reuse it for a different tile index once evicted.
type Tile struct {
	Index        int64
	Data         []byte
	Offset       int64
	WritePending bool

	prev, next *Tile // LRU list links
	hashNext   *Tile // intrusive chain within its hash bin
	inUse      bool
}

const hashBinCount = 256

// knuthMultiplier is the Knuth multiplicative hash constant spec.md §4.7
// names for indexing the 256-bin table.
const knuthMultiplier = 2654435761

func hashBin(tileIndex int64) int {
	h := uint32(tileIndex) * knuthMultiplier
	return int(h % hashBinCount)
}

// Cache is the fixed-capacity LRU tile cache.
type Cache struct {
	source   Source
	capacity int
	bufSize  int

	head, tail *Tile // sentinels; head.next is most-recently-used
	freeList   []*Tile
	bins       [hashBinCount]*Tile // head of each bin's intrusive chain

	firstTileIndex int64
	firstTile      *Tile
	hasFirst       bool
}

// NewCache returns a cache with the given capacity (see Small/Medium/
// Large/ExtraLarge), where bufSize is the fixed per-tile data buffer size.
func NewCache(source Source, capacity, bufSize int) *Cache {
	if capacity < 4 {
		capacity = 4
	}
	c := &Cache{
		source:   source,
		capacity: capacity,
		bufSize:  bufSize,
		head:     &Tile{Index: -1},
		tail:     &Tile{Index: -1},
	}
	c.head.next = c.tail
	c.tail.prev = c.head
	for i := 0; i < capacity; i++ {
		c.freeList = append(c.freeList, &Tile{Data: make([]byte, bufSize)})
	}
	return c
}

func (c *Cache) unlinkLRU(t *Tile) {
	t.prev.next = t.next
	t.next.prev = t.prev
	t.prev, t.next = nil, nil
}

func (c *Cache) pushFront(t *Tile) {
	t.next = c.head.next
	t.prev = c.head
	c.head.next.prev = t
	c.head.next = t
}

func (c *Cache) hashInsert(t *Tile) {
	bin := hashBin(t.Index)
	t.hashNext = c.bins[bin]
	c.bins[bin] = t
}

func (c *Cache) hashRemove(t *Tile) {
	bin := hashBin(t.Index)
	cur := c.bins[bin]
	if cur == t {
		c.bins[bin] = t.hashNext
		t.hashNext = nil
		return
	}
	for cur != nil {
		if cur.hashNext == t {
			cur.hashNext = t.hashNext
			t.hashNext = nil
			return
		}
		cur = cur.hashNext
	}
}

func (c *Cache) hashLookup(tileIndex int64) *Tile {
	for t := c.bins[hashBin(tileIndex)]; t != nil; t = t.hashNext {
		if t.Index == tileIndex {
			return t
		}
	}
	return nil
}

// Fetch returns the tile for tileIndex. offset is the tile directory's
// on-disk content offset (0 if the tile has never been stored, in which
// case Fetch returns (nil, nil) per spec.md §4.7: the caller substitutes
// the element fill value on read, or calls StartNewTile on write).
func (c *Cache) Fetch(tileIndex int64, offset int64) (*Tile, error) {
	if c.hasFirst && c.firstTileIndex == tileIndex {
		return c.firstTile, nil
	}

	if t := c.hashLookup(tileIndex); t != nil {
		c.unlinkLRU(t)
		c.pushFront(t)
		c.firstTileIndex, c.firstTile, c.hasFirst = tileIndex, t, true
		return t, nil
	}

	if offset == 0 {
		return nil, nil
	}

	data, err := c.source.ReadTile(tileIndex, offset)
	if err != nil {
		return nil, fmt.Errorf("tilecache: read tile %d: %w", tileIndex, err)
	}
	t, err := c.obtainSlot()
	if err != nil {
		return nil, err
	}
	t.Index = tileIndex
	t.Offset = offset
	t.WritePending = false
	copy(t.Data, data)

	c.pushFront(t)
	c.hashInsert(t)
	c.firstTileIndex, c.firstTile, c.hasFirst = tileIndex, t, true
	return t, nil
}

// StartNewTile installs a freshly initialised tile (already filled with
// each element's fill value by the caller) without touching disk, and
// marks it write-pending.
func (c *Cache) StartNewTile(tileIndex int64, initData []byte) (*Tile, error) {
	t, err := c.obtainSlot()
	if err != nil {
		return nil, err
	}
	t.Index = tileIndex
	t.Offset = 0
	t.WritePending = true
	copy(t.Data, initData)

	c.pushFront(t)
	c.hashInsert(t)
	c.firstTileIndex, c.firstTile, c.hasFirst = tileIndex, t, true
	return t, nil
}

// MarkDirty flags a cached tile as needing a write-back flush.
func (c *Cache) MarkDirty(t *Tile) { t.WritePending = true }

func (c *Cache) obtainSlot() (*Tile, error) {
	if n := len(c.freeList); n > 0 {
		t := c.freeList[n-1]
		c.freeList = c.freeList[:n-1]
		t.inUse = true
		return t, nil
	}

	victim := c.tail.prev
	if victim == c.head {
		return nil, fmt.Errorf("tilecache: cache has zero capacity")
	}
	c.unlinkLRU(victim)
	c.hashRemove(victim)
	if c.hasFirst && c.firstTile == victim {
		c.hasFirst = false
		c.firstTile = nil
	}
	if victim.WritePending {
		newOffset, err := c.source.WriteTile(victim.Index, victim.Data)
		if err != nil {
			return nil, fmt.Errorf("tilecache: evict flush tile %d: %w", victim.Index, err)
		}
		victim.Offset = newOffset
		victim.WritePending = false
	}
	return victim, nil
}

// FlushPending writes back every dirty tile currently resident in the
// cache, in LRU order.
func (c *Cache) FlushPending() error {
	for t := c.tail.prev; t != c.head; t = t.prev {
		if !t.WritePending {
			continue
		}
		newOffset, err := c.source.WriteTile(t.Index, t.Data)
		if err != nil {
			return fmt.Errorf("tilecache: flush tile %d: %w", t.Index, err)
		}
		t.Offset = newOffset
		t.WritePending = false
	}
	return nil
}

// Resize flushes pending tiles, then replaces the cache with one of the
// requested capacity (spec.md §4.7 "Cache resize").
func (c *Cache) Resize(capacity int) error {
	if err := c.FlushPending(); err != nil {
		return err
	}
	if capacity < 4 {
		capacity = 4
	}
	c.capacity = capacity
	c.head.next = c.tail
	c.tail.prev = c.head
	c.bins = [hashBinCount]*Tile{}
	c.freeList = nil
	c.hasFirst = false
	c.firstTile = nil
	for i := 0; i < capacity; i++ {
		c.freeList = append(c.freeList, &Tile{Data: make([]byte, c.bufSize)})
	}
	return nil
}

// Len reports the number of tile slots currently resident (in use).
func (c *Cache) Len() int {
	n := 0
	for t := c.head.next; t != c.tail; t = t.next {
		n++
	}
	return n
}

// Capacity reports the cache's current slot count.
func (c *Cache) Capacity() int { return c.capacity }
