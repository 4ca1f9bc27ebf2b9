package codec

import (
	"fmt"
	"sort"

	"github.com/gwlucastrig/gvrs-go/internal/bitio"
	"github.com/gwlucastrig/gvrs-go/internal/predictor"
)

// huffNode is a node of the canonical binary Huffman tree over the 8-bit
// alphabet.
type huffNode struct {
	symbol      byte
	isLeaf      bool
	count       int
	left, right *huffNode
}

// buildHuffmanTree builds the tree for the given symbol frequencies and
// returns the tree's root along with the number of distinct symbols used.
// An all-zero frequency table (an empty input) is given a single synthetic
// leaf so the tree remains well-formed.
func buildHuffmanTree(freq [256]int) (*huffNode, int) {
	type item struct {
		node *huffNode
		id   int
	}

	anyFreq := false
	for _, n := range freq {
		if n > 0 {
			anyFreq = true
			break
		}
	}
	if !anyFreq {
		freq[0] = 1
	}

	var items []item
	for sym := 0; sym < 256; sym++ {
		if freq[sym] > 0 {
			items = append(items, item{&huffNode{symbol: byte(sym), isLeaf: true, count: freq[sym]}, sym})
		}
	}
	leafCount := len(items)

	nextID := 256
	for len(items) > 1 {
		sort.Slice(items, func(i, j int) bool {
			if items[i].node.count != items[j].node.count {
				return items[i].node.count < items[j].node.count
			}
			return items[i].id < items[j].id
		})
		a, b := items[0], items[1]
		parent := &huffNode{count: a.node.count + b.node.count, left: a.node, right: b.node}
		items = append(items[2:], item{parent, nextID})
		nextID++
	}
	return items[0].node, leafCount
}

// serializeTree writes the tree in pre-order: 0 for a branch, 1 followed by
// the 8-bit symbol for a leaf. The traversal is stack-based rather than
// recursive, since the 256-symbol alphabet permits tree depth up to 255.
func serializeTree(root *huffNode, out *bitio.BitOutput) {
	stack := []*huffNode{root}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if n.isLeaf {
			out.PutBit(1)
			out.PutByte(n.symbol)
		} else {
			out.PutBit(0)
			stack = append(stack, n.right, n.left)
		}
	}
}

// deserializeTree reconstructs a tree written by serializeTree, again using
// an explicit stack rather than recursion.
func deserializeTree(in *bitio.BitInput) (*huffNode, error) {
	read := func() *huffNode {
		if in.GetBit() == 1 {
			return &huffNode{symbol: in.GetByte(), isLeaf: true}
		}
		return &huffNode{}
	}

	root := read()
	if root.isLeaf {
		return root, nil
	}

	type need struct {
		node    *huffNode
		gotLeft bool
	}
	stack := []*need{{node: root}}
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		if !in.Remaining() {
			return nil, fmt.Errorf("%w: tree truncated", ErrBadCompressionFormat)
		}
		child := read()
		if !top.gotLeft {
			top.node.left = child
			top.gotLeft = true
		} else {
			top.node.right = child
			stack = stack[:len(stack)-1]
		}
		if !child.isLeaf {
			stack = append(stack, &need{node: child})
		}
	}
	return root, nil
}

// deriveCodes walks the tree once to build a bit-path per symbol (left=0,
// right=1). Code length can exceed 64 bits for a pathologically skewed
// tree, so paths are kept as []bool rather than packed integers.
func deriveCodes(root *huffNode) map[byte][]bool {
	codes := make(map[byte][]bool)
	var walk func(n *huffNode, path []bool)
	walk = func(n *huffNode, path []bool) {
		if n.isLeaf {
			codes[n.symbol] = path
			return
		}
		left := make([]bool, len(path)+1)
		copy(left, path)
		left[len(path)] = false
		walk(n.left, left)

		right := make([]bool, len(path)+1)
		copy(right, path)
		right[len(path)] = true
		walk(n.right, right)
	}
	walk(root, nil)
	return codes
}

func huffmanEncodeBytes(data []byte) []byte {
	var freq [256]int
	for _, b := range data {
		freq[b]++
	}
	root, leafCount := buildHuffmanTree(freq)

	out := bitio.NewBitOutput()
	out.PutByte(byte(leafCount - 1))
	serializeTree(root, out)

	if leafCount > 1 {
		codes := deriveCodes(root)
		for _, b := range data {
			for _, bit := range codes[b] {
				if bit {
					out.PutBit(1)
				} else {
					out.PutBit(0)
				}
			}
		}
	}
	return out.Finalize()
}

func huffmanDecodeBytes(encoded []byte, n int) ([]byte, error) {
	if n == 0 {
		return []byte{}, nil
	}
	in := bitio.NewBitInput(encoded)
	in.GetByte() // leafCount-1; the count itself is implicit in deserializeTree's walk
	root, err := deserializeTree(in)
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, n)
	if root.isLeaf {
		for i := 0; i < n; i++ {
			out = append(out, root.symbol)
		}
		return out, nil
	}

	for len(out) < n {
		node := root
		for !node.isLeaf {
			if !in.Remaining() {
				return nil, fmt.Errorf("%w: huffman stream truncated", ErrBadCompressionFormat)
			}
			if in.GetBit() == 1 {
				node = node.right
			} else {
				node = node.left
			}
		}
		out = append(out, node.symbol)
	}
	return out, nil
}

// huffmanByteStream decodes one Huffman-coded byte at a time from a bit
// stream whose total symbol count is not known up front. Used by the LSOP
// codec's inner stage, which is framed by M32 symbol counts rather than a
// byte count.
type huffmanByteStream struct {
	in   *bitio.BitInput
	root *huffNode
}

func newHuffmanByteStream(encoded []byte) (*huffmanByteStream, error) {
	in := bitio.NewBitInput(encoded)
	in.GetByte()
	root, err := deserializeTree(in)
	if err != nil {
		return nil, err
	}
	return &huffmanByteStream{in: in, root: root}, nil
}

// NextByte decodes the next byte. ok is false once the remaining bits no
// longer contain a complete code (the stream's zero-padding to a byte
// boundary, or genuine exhaustion).
func (s *huffmanByteStream) NextByte() (b byte, ok bool) {
	if s.root.isLeaf {
		return s.root.symbol, true
	}
	node := s.root
	for !node.isLeaf {
		if !s.in.Remaining() {
			return 0, false
		}
		if s.in.GetBit() == 1 {
			node = node.right
		} else {
			node = node.left
		}
	}
	return node.symbol, true
}

// HuffmanCodec implements the byte-level Huffman coder used for the
// integer-decode path (spec.md §4.2).
type HuffmanCodec struct{}

// NewHuffmanCodec returns a ready-to-use Huffman codec.
func NewHuffmanCodec() *HuffmanCodec { return &HuffmanCodec{} }

// Name implements Codec.
func (c *HuffmanCodec) Name() string { return "huffman" }

// Clone implements Codec.
func (c *HuffmanCodec) Clone() Codec { return &HuffmanCodec{} }

// EncodeInt implements Codec. It tries all three predictors and keeps
// whichever produces the smallest Huffman-coded payload.
func (c *HuffmanCodec) EncodeInt(tile []int32, nRows, nCols int) ([]byte, error) {
	if nRows <= 0 || nCols <= 0 || len(tile) != nRows*nCols {
		return nil, fmt.Errorf("codec: invalid tile dimensions %dx%d for %d values", nRows, nCols, len(tile))
	}

	var best []byte
	for _, kind := range []predictor.Kind{predictor.P1, predictor.P2, predictor.P3} {
		seed, residuals := predictor.Encode(kind, nRows, nCols, tile)
		m32 := bitio.NewM32Writer()
		for _, r := range residuals {
			m32.PutSymbol(r)
		}
		m32Bytes := m32.Bytes()
		huff := huffmanEncodeBytes(m32Bytes)

		header := encodeIntHeader(CodecIndexHuffman, byte(kind), seed, uint32(len(m32Bytes)))
		payload := append(header, huff...)
		if best == nil || len(payload) < len(best) {
			best = payload
		}
	}
	return best, nil
}

// DecodeInt implements Codec.
func (c *HuffmanCodec) DecodeInt(data []byte, nRows, nCols int) ([]int32, error) {
	_, predictorIdx, seed, m32Count, rest, err := decodeIntHeader(data)
	if err != nil {
		return nil, err
	}
	m32Bytes, err := huffmanDecodeBytes(rest, int(m32Count))
	if err != nil {
		return nil, err
	}

	m32r := bitio.NewM32Reader(m32Bytes)
	residuals := make([]int32, nRows*nCols-1)
	for i := range residuals {
		residuals[i] = m32r.NextSymbol()
	}
	return predictor.Decode(predictor.Kind(predictorIdx), nRows, nCols, seed, residuals), nil
}

// EncodeFloat implements Codec. The Huffman codec is only defined for the
// integer-decode path; the Float codec handles Float32 tiles.
func (c *HuffmanCodec) EncodeFloat([]float32, int, int) ([]byte, error) {
	return nil, ErrCompressionNotImplemented
}

// DecodeFloat implements Codec.
func (c *HuffmanCodec) DecodeFloat([]byte, int, int) ([]float32, error) {
	return nil, ErrCompressionNotImplemented
}
