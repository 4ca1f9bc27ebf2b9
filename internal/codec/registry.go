package codec

import (
	"fmt"
	"sync"
)

// Factory constructs a fresh Codec instance.
type Factory func() Codec

// Registry is a named registration table of codec factories, per the
// capability-interface redesign in spec.md §9 ("Re-architecture
// suggestions"): the container looks codecs up by their on-disk identifier
// string rather than a numeric function-pointer table index.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry returns a Registry pre-populated with the built-in codecs:
// none, huffman, deflate, float, lsop.
func NewRegistry() *Registry {
	r := &Registry{factories: make(map[string]Factory)}
	r.Register("none", func() Codec { return NewNoneCodec() })
	r.Register("huffman", func() Codec { return NewHuffmanCodec() })
	r.Register("deflate", func() Codec { return NewDeflateCodec() })
	r.Register("float", func() Codec { return NewFloatCodec() })
	r.Register("lsop", func() Codec { return NewLSOPCodec() })
	return r
}

// Register adds or replaces the factory for name.
func (r *Registry) Register(name string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = f
}

// Instantiate looks up name and returns a fresh codec instance. An
// unrecognised name yields a placeholder codec rather than an error,
// matching the container open procedure's tolerance for a newer codec
// identifier it does not recognise (spec.md §4.8).
func (r *Registry) Instantiate(name string) Codec {
	r.mu.RLock()
	f, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return newPlaceholderCodec(name)
	}
	return f()
}

// InstantiateByIndex looks a codec up by its on-disk codec-index byte
// (CodecIndexNone etc.) rather than its registered name. A tile element's
// payload always begins with this byte, so a reader uses InstantiateByIndex
// to pick the decoder for that one element regardless of which codec the
// container itself is configured to encode with (spec.md §4.3's
// raw-storage fallback can leave a none-coded element inside an otherwise
// compressing container).
func (r *Registry) InstantiateByIndex(idx byte) (Codec, error) {
	var name string
	switch idx {
	case CodecIndexNone:
		name = "none"
	case CodecIndexHuffman:
		name = "huffman"
	case CodecIndexDeflate:
		name = "deflate"
	case CodecIndexFloat:
		name = "float"
	case CodecIndexLSOP:
		name = "lsop"
	default:
		return nil, fmt.Errorf("%w: unrecognized codec index %d", ErrBadCompressionFormat, idx)
	}
	return r.Instantiate(name), nil
}

// Names reports every registered codec identifier.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	return names
}
