// Package gvrs is the public API of the GVRS raster storage engine: a
// record-structured container format for large gridded rasters, with
// per-tile compression, an LRU tile cache, and a free-space-reusing
// allocator. See internal/gvrsfile for the on-disk container
// implementation this package wraps.
package gvrs

import "github.com/gwlucastrig/gvrs-go/internal/gvrsfile"

// Re-exported container types, so callers only need to import this one
// package for everyday use.
type (
	Container         = gvrsfile.Container
	RasterSpec        = gvrsfile.RasterSpec
	ElementSpec       = gvrsfile.ElementSpec
	Variant           = gvrsfile.Variant
	Metadata          = gvrsfile.Metadata
	MetadataType      = gvrsfile.MetadataType
	MetadataDirectory = gvrsfile.MetadataDirectory
	State             = gvrsfile.State
	Stats             = gvrsfile.Stats
	Code              = gvrsfile.Code
)

// Element variants.
const (
	Int32         = gvrsfile.VariantInt32
	IntCodedFloat = gvrsfile.VariantIntCodedFloat
	Float32       = gvrsfile.VariantFloat32
	Int16         = gvrsfile.VariantInt16
)

// Metadata value types.
const (
	MetaByte   = gvrsfile.MetaByte
	MetaShort  = gvrsfile.MetaShort
	MetaUShort = gvrsfile.MetaUShort
	MetaInt    = gvrsfile.MetaInt
	MetaUInt   = gvrsfile.MetaUInt
	MetaFloat  = gvrsfile.MetaFloat
	MetaDouble = gvrsfile.MetaDouble
	MetaString = gvrsfile.MetaString
	MetaAscii  = gvrsfile.MetaAscii
)

// WildcardName and WildcardRecordID select "any" in ReadByNameAndID.
const (
	WildcardName     = gvrsfile.WildcardName
	WildcardRecordID = gvrsfile.WildcardRecordID
)

// Container lifecycle states.
const (
	StateReadOnly = gvrsfile.StateReadOnly
	StateWritable = gvrsfile.StateWritable
	StateClosed   = gvrsfile.StateClosed
)

// OpenOption configures Open (spec.md §6's minimal typed configuration
// surface; the out-of-scope builder façade is not implemented, but Open
// needs at least a writable/read-only switch to exercise both paths).
type OpenOption func(*openConfig)

type openConfig struct {
	writable bool
}

// WithWritable opens the container for reading and writing instead of the
// default read-only mode.
func WithWritable() OpenOption {
	return func(c *openConfig) { c.writable = true }
}

// Create makes a new GVRS container at path, describing its raster shape,
// elements, and coordinate system via spec, and opens it for writing. opts
// is accepted for symmetry with Open; a freshly created container is
// always writable, so no option currently changes its behavior.
func Create(path string, spec RasterSpec, opts ...OpenOption) (*Container, error) {
	return gvrsfile.Create(path, spec)
}

// Open opens an existing GVRS container. By default it is read-only;
// pass WithWritable() to open for reading and writing.
func Open(path string, opts ...OpenOption) (*Container, error) {
	cfg := openConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.writable {
		return gvrsfile.OpenWritable(path)
	}
	return gvrsfile.Open(path)
}
