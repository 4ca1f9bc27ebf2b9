// Package codec implements the tile compression codecs: a byte-level
// Huffman coder, a DEFLATE-backed integer codec, a bit-plane differencing
// float codec, and a decode-only 12-coefficient linear-predictor codec
// (LSOP), all operating on the residual streams produced by
// internal/predictor and internal/bitio.
//
// Per the capability-interface redesign, each codec is a self-contained
// Codec implementation rather than a row in a function-pointer table; the
// registry in registry.go looks codecs up by name and falls back to a
// placeholder for unrecognised identifiers, exactly as a container opening
// a file written by a newer codec set should.
package codec

import "errors"

// Sentinel errors a caller can match with errors.Is. They correspond to a
// subset of the container's error kinds; internal/gvrsfile wraps these into
// its own typed Error when surfacing them to callers.
var (
	ErrCompressionNotImplemented = errors.New("codec: compression not implemented")
	ErrBadCompressionFormat      = errors.New("codec: bad compression format")
	ErrCompressionFailure        = errors.New("codec: compression failure")
)

// Codec is the capability interface every compression implementation
// satisfies. A codec need not support both integer and floating-point
// tiles: unsupported operations return ErrCompressionNotImplemented.
type Codec interface {
	// Name is the identifier stored in the container's codec list and
	// used to look the codec back up in a Registry.
	Name() string

	EncodeInt(tile []int32, nRows, nCols int) ([]byte, error)
	DecodeInt(data []byte, nRows, nCols int) ([]int32, error)

	EncodeFloat(tile []float32, nRows, nCols int) ([]byte, error)
	DecodeFloat(data []byte, nRows, nCols int) ([]float32, error)

	// Clone returns an independent codec instance with the same
	// configuration, for containers that hand out one codec instance per
	// element.
	Clone() Codec
}

// On-disk codec-index bytes for the fixed integer-codec header (spec.md
// §4.2/§4.3), the float header (spec.md §4.4), and the LSOP header (spec.md
// §4.5). Every codec's payload begins with one of these, which is how a
// reader dispatches a tile element's decode regardless of which codec the
// container is configured to encode with (spec.md §4.3's raw-storage
// fallback can leave a none-coded element inside an otherwise-compressing
// container). These are exported so internal/gvrsfile's decode dispatch and
// Registry.InstantiateByIndex can share them; they are not registry lookup
// keys (lookup is by name, per the capability-interface redesign in spec.md
// §9).
const (
	CodecIndexNone    = 0
	CodecIndexHuffman = 1
	CodecIndexDeflate = 2
	CodecIndexFloat   = 3
	CodecIndexLSOP    = 4
)
