package gvrs

import (
	"path/filepath"
	"testing"
)

func testSpec() RasterSpec {
	return RasterSpec{
		NRowsInRaster: 8,
		NColsInRaster: 8,
		NRowsInTile:   4,
		NColsInTile:   4,
		Elements: []ElementSpec{
			{Name: "elevation", Variant: Int32, FillValueInt: -1},
		},
		CodecNames:   []string{"none"},
		ProductLabel: "gvrs end-to-end test",
	}
}

func TestCreateWriteCloseReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.gvrs")

	c, err := Create(path, testSpec())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := c.WriteInt32("elevation", 5, 6, 1234); err != nil {
		t.Fatalf("WriteInt32: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	c2, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer c2.Close()

	if c2.State() != StateReadOnly {
		t.Fatalf("expected StateReadOnly, got %v", c2.State())
	}
	v, err := c2.ReadInt32("elevation", 5, 6)
	if err != nil {
		t.Fatalf("ReadInt32: %v", err)
	}
	if v != 1234 {
		t.Fatalf("ReadInt32 = %d, want 1234", v)
	}
}

func TestOpenWithWritableAllowsFurtherWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.gvrs")

	c, err := Create(path, testSpec())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	c2, err := Open(path, WithWritable())
	if err != nil {
		t.Fatalf("Open writable: %v", err)
	}
	if c2.State() != StateWritable {
		t.Fatalf("expected StateWritable, got %v", c2.State())
	}
	if err := c2.WriteInt32("elevation", 0, 0, 42); err != nil {
		t.Fatalf("WriteInt32: %v", err)
	}
	if err := c2.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	c3, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer c3.Close()
	v, err := c3.ReadInt32("elevation", 0, 0)
	if err != nil {
		t.Fatalf("ReadInt32: %v", err)
	}
	if v != 42 {
		t.Fatalf("ReadInt32 = %d, want 42", v)
	}
}

func TestSetDeleteOnCloseRemovesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.gvrs")

	c, err := Create(path, testSpec())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	c.SetDeleteOnClose()
	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if _, err := Open(path); err == nil {
		t.Fatalf("expected Open to fail after delete-on-close")
	}
}
