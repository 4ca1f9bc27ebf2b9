// Command gvrstranscribe copies every cell of an existing GVRS container
// into a freshly created one, optionally re-encoding with a different
// codec, and verifies the copy reads back identically. It exercises the
// full Create/Open/Close/reopen path end to end, the way
// cmd/geotiff2pmtiles/main.go exercises its own pipeline through a single
// flag-driven CLI entry point.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/gwlucastrig/gvrs-go/internal/gvrsfile"

	gvrs "github.com/gwlucastrig/gvrs-go"
)

func main() {
	var codecName string
	flag.StringVar(&codecName, "codec", "", "Codec to re-encode with: huffman, deflate, none (default: keep source codec)")
	verbose := flag.Bool("verbose", false, "Log progress for each element copied")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: gvrstranscribe [flags] <input.gvrs> <output.gvrs>\n\n")
		fmt.Fprintf(os.Stderr, "Copy a GVRS container cell-for-cell, verifying the result.\n\n")
		fmt.Fprintf(os.Stderr, "Flags:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 2 {
		flag.Usage()
		os.Exit(2)
	}
	inputPath, outputPath := flag.Arg(0), flag.Arg(1)

	if err := transcribe(inputPath, outputPath, codecName, *verbose); err != nil {
		log.Fatalf("gvrstranscribe: %v", err)
	}
}

func transcribe(inputPath, outputPath, codecName string, verbose bool) error {
	in, err := gvrs.Open(inputPath)
	if err != nil {
		return fmt.Errorf("open %s: %w", inputPath, err)
	}
	defer in.Close()

	h := in.Header()
	spec := gvrs.RasterSpec{
		NRowsInRaster:        int(h.NRowsInRaster),
		NColsInRaster:        int(h.NColsInRaster),
		NRowsInTile:          int(h.NRowsInTile),
		NColsInTile:          int(h.NColsInTile),
		Elements:             h.Elements,
		CoordinateSystemCode: h.CoordinateSystemCode,
		X0:                   h.X0,
		Y0:                   h.Y0,
		X1:                   h.X1,
		Y1:                   h.Y1,
		CellSizeX:            h.CellSizeX,
		CellSizeY:            h.CellSizeY,
		M2R:                  h.M2R,
		R2M:                  h.R2M,
		ChecksumsEnabled:     h.ChecksumsEnabled,
		ProductLabel:         h.ProductLabel,
		CodecNames:           h.CodecNames,
	}
	if codecName != "" {
		spec.CodecNames = []string{codecName}
	}

	out, err := gvrs.Create(outputPath, spec)
	if err != nil {
		return fmt.Errorf("create %s: %w", outputPath, err)
	}

	nRows, nCols := int(h.NRowsInRaster), int(h.NColsInRaster)
	for _, e := range h.Elements {
		if verbose {
			log.Printf("copying element %q (%s), %dx%d cells", e.Name, e.Variant, nRows, nCols)
		}
		if err := copyElement(in, out, e, nRows, nCols); err != nil {
			out.Close()
			return fmt.Errorf("copy element %q: %w", e.Name, err)
		}
	}

	if err := out.Close(); err != nil {
		return fmt.Errorf("close %s: %w", outputPath, err)
	}

	return verify(inputPath, outputPath, h.Elements, nRows, nCols)
}

func copyElement(in, out *gvrs.Container, e gvrsfile.ElementSpec, nRows, nCols int) error {
	for row := 0; row < nRows; row++ {
		for col := 0; col < nCols; col++ {
			switch e.Variant {
			case gvrs.Int32:
				v, err := in.ReadInt32(e.Name, row, col)
				if err != nil {
					return err
				}
				if err := out.WriteInt32(e.Name, row, col, v); err != nil {
					return err
				}
			case gvrs.Int16:
				v, err := in.ReadInt16(e.Name, row, col)
				if err != nil {
					return err
				}
				if err := out.WriteInt16(e.Name, row, col, v); err != nil {
					return err
				}
			case gvrs.Float32:
				v, err := in.ReadFloat32(e.Name, row, col)
				if err != nil {
					return err
				}
				if err := out.WriteFloat32(e.Name, row, col, v); err != nil {
					return err
				}
			case gvrs.IntCodedFloat:
				v, err := in.ReadIntCodedFloat(e.Name, row, col)
				if err != nil {
					return err
				}
				if err := out.WriteIntCodedFloat(e.Name, row, col, v); err != nil {
					return err
				}
			default:
				return fmt.Errorf("unsupported element variant %s", e.Variant)
			}
		}
	}
	return nil
}

// verify reopens both containers read-only and confirms every cell of
// every element matches, catching any codec or tile-boundary regression
// introduced by the copy.
func verify(inputPath, outputPath string, elements []gvrsfile.ElementSpec, nRows, nCols int) error {
	in, err := gvrs.Open(inputPath)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := gvrs.Open(outputPath)
	if err != nil {
		return err
	}
	defer out.Close()

	for _, e := range elements {
		for row := 0; row < nRows; row++ {
			for col := 0; col < nCols; col++ {
				mismatch, err := cellsDiffer(in, out, e, row, col)
				if err != nil {
					return err
				}
				if mismatch {
					return fmt.Errorf("mismatch at element %q (%d, %d)", e.Name, row, col)
				}
			}
		}
	}
	fmt.Printf("gvrstranscribe: verified %d element(s), %dx%d cells each\n", len(elements), nRows, nCols)
	return nil
}

func cellsDiffer(in, out *gvrs.Container, e gvrsfile.ElementSpec, row, col int) (bool, error) {
	switch e.Variant {
	case gvrs.Int32:
		a, err := in.ReadInt32(e.Name, row, col)
		if err != nil {
			return false, err
		}
		b, err := out.ReadInt32(e.Name, row, col)
		if err != nil {
			return false, err
		}
		return a != b, nil
	case gvrs.Int16:
		a, err := in.ReadInt16(e.Name, row, col)
		if err != nil {
			return false, err
		}
		b, err := out.ReadInt16(e.Name, row, col)
		if err != nil {
			return false, err
		}
		return a != b, nil
	case gvrs.Float32:
		a, err := in.ReadFloat32(e.Name, row, col)
		if err != nil {
			return false, err
		}
		b, err := out.ReadFloat32(e.Name, row, col)
		if err != nil {
			return false, err
		}
		return a != b, nil
	case gvrs.IntCodedFloat:
		a, err := in.ReadIntCodedFloat(e.Name, row, col)
		if err != nil {
			return false, err
		}
		b, err := out.ReadIntCodedFloat(e.Name, row, col)
		if err != nil {
			return false, err
		}
		return a != b, nil
	default:
		return false, fmt.Errorf("unsupported element variant %s", e.Variant)
	}
}
