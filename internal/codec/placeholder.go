package codec

// placeholderCodec stands in for an unrecognised codec identifier read
// from a container's codec list (spec.md §4.8 open procedure). Every
// encode/decode call fails with ErrCompressionNotImplemented rather than
// the open itself failing, so a reader built against an older codec set
// can still open a file that lists a newer one, as long as it never
// touches the elements that actually use it.
type placeholderCodec struct {
	name string
}

func newPlaceholderCodec(name string) *placeholderCodec {
	return &placeholderCodec{name: name}
}

func (c *placeholderCodec) Name() string { return c.name }

func (c *placeholderCodec) EncodeInt([]int32, int, int) ([]byte, error) {
	return nil, ErrCompressionNotImplemented
}

func (c *placeholderCodec) DecodeInt([]byte, int, int) ([]int32, error) {
	return nil, ErrCompressionNotImplemented
}

func (c *placeholderCodec) EncodeFloat([]float32, int, int) ([]byte, error) {
	return nil, ErrCompressionNotImplemented
}

func (c *placeholderCodec) DecodeFloat([]byte, int, int) ([]float32, error) {
	return nil, ErrCompressionNotImplemented
}

func (c *placeholderCodec) Clone() Codec {
	return &placeholderCodec{name: c.name}
}
