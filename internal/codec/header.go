package codec

import (
	"encoding/binary"
	"fmt"
)

// intHeaderSize is the 10-byte header shared by the Huffman and Deflate
// integer codecs: codec index (1), predictor index (1), predictor seed (4,
// little-endian), M32 byte count (4, little-endian).
const intHeaderSize = 10

func encodeIntHeader(codecIndex, predictorIndex byte, seed int32, m32Count uint32) []byte {
	header := make([]byte, intHeaderSize)
	header[0] = codecIndex
	header[1] = predictorIndex
	binary.LittleEndian.PutUint32(header[2:6], uint32(seed))
	binary.LittleEndian.PutUint32(header[6:10], m32Count)
	return header
}

func decodeIntHeader(data []byte) (codecIndex, predictorIndex byte, seed int32, m32Count uint32, rest []byte, err error) {
	if len(data) < intHeaderSize {
		return 0, 0, 0, 0, nil, fmt.Errorf("%w: header truncated", ErrBadCompressionFormat)
	}
	codecIndex = data[0]
	predictorIndex = data[1]
	seed = int32(binary.LittleEndian.Uint32(data[2:6]))
	m32Count = binary.LittleEndian.Uint32(data[6:10])
	rest = data[intHeaderSize:]
	return codecIndex, predictorIndex, seed, m32Count, rest, nil
}
