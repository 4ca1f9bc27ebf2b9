package codec

import "testing"

func TestRegistryInstantiateBuiltins(t *testing.T) {
	r := NewRegistry()
	cases := map[string]string{
		"none":    "none",
		"huffman": "huffman",
		"deflate": "deflate",
		"float":   "float",
		"lsop":    "lsop",
	}
	for name, wantName := range cases {
		c := r.Instantiate(name)
		if c.Name() != wantName {
			t.Fatalf("Instantiate(%q).Name() = %q, want %q", name, c.Name(), wantName)
		}
	}
}

func TestRegistryUnknownNameReturnsPlaceholder(t *testing.T) {
	r := NewRegistry()
	c := r.Instantiate("some-future-codec")
	if c.Name() != "some-future-codec" {
		t.Fatalf("placeholder Name() = %q, want the requested name", c.Name())
	}
	if _, err := c.EncodeInt([]int32{1}, 1, 1); err != ErrCompressionNotImplemented {
		t.Fatalf("placeholder EncodeInt: got %v, want ErrCompressionNotImplemented", err)
	}
	if _, err := c.DecodeInt([]byte{0}, 1, 1); err != ErrCompressionNotImplemented {
		t.Fatalf("placeholder DecodeInt: got %v, want ErrCompressionNotImplemented", err)
	}
	if _, err := c.EncodeFloat([]float32{1}, 1, 1); err != ErrCompressionNotImplemented {
		t.Fatalf("placeholder EncodeFloat: got %v, want ErrCompressionNotImplemented", err)
	}
	if _, err := c.DecodeFloat([]byte{0}, 1, 1); err != ErrCompressionNotImplemented {
		t.Fatalf("placeholder DecodeFloat: got %v, want ErrCompressionNotImplemented", err)
	}
}

func TestRegistryNamesIncludesBuiltins(t *testing.T) {
	r := NewRegistry()
	names := make(map[string]bool)
	for _, n := range r.Names() {
		names[n] = true
	}
	for _, want := range []string{"none", "huffman", "deflate", "float", "lsop"} {
		if !names[want] {
			t.Fatalf("Names() missing built-in %q", want)
		}
	}
}

func TestRegistryRegisterOverridesFactory(t *testing.T) {
	r := NewRegistry()
	r.Register("none", func() Codec { return newPlaceholderCodec("none") })
	c := r.Instantiate("none")
	if _, err := c.EncodeInt([]int32{1}, 1, 1); err != ErrCompressionNotImplemented {
		t.Fatalf("expected overridden factory to install the placeholder codec")
	}
}
