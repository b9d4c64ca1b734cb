package podlog

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression selects how a record's pod is stored. The tag lives in the
// top two bits of the frame's size field.
type Compression uint8

const (
	CompressionNone Compression = 0
	// CompressionLZ4 is block-mode LZ4: fast, modest ratio.
	CompressionLZ4 Compression = 1
	// CompressionZstd is zstd at the default level.
	CompressionZstd Compression = 2

	compressionShift = 30
	sizeMask         = 1<<compressionShift - 1
)

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZstd:
		return "zstd"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(c))
	}
}

// ParseCompression parses a compression name. The empty string means none.
func ParseCompression(name string) (Compression, error) {
	switch strings.ToLower(name) {
	case "", "none":
		return CompressionNone, nil
	case "lz4":
		return CompressionLZ4, nil
	case "zstd":
		return CompressionZstd, nil
	default:
		return 0, fmt.Errorf("unknown compression %q", name)
	}
}

var errIncompressible = errors.New("data is incompressible")

// zstd encoders and decoders are safe for concurrent use
var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("podlog: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil, zstd.WithDecoderMaxMemory(MaxPodSize))
	if err != nil {
		panic("podlog: zstd decoder initialization failed: " + err.Error())
	}
}

// compressPayload returns the stored form of data and the compression
// actually used. A compressed payload is prefixed with the pod length.
// Pods that do not shrink are stored as they are.
func compressPayload(c Compression, data []byte) ([]byte, Compression, error) {
	var (
		packed []byte
		err    error
	)
	switch c {
	case CompressionNone:
		return data, CompressionNone, nil
	case CompressionLZ4:
		packed, err = compressLZ4(data)
	case CompressionZstd:
		packed, err = compressZstd(data)
	default:
		return nil, 0, fmt.Errorf("unsupported compression %s", c)
	}
	if errors.Is(err, errIncompressible) {
		return data, CompressionNone, nil
	}
	if err != nil {
		return nil, 0, err
	}

	payload := make([]byte, 4+len(packed))
	binary.LittleEndian.PutUint32(payload, uint32(len(data)))
	copy(payload[4:], packed)
	return payload, c, nil
}

// decompressPayload reverses compressPayload.
func decompressPayload(c Compression, payload []byte) ([]byte, error) {
	if c == CompressionNone {
		return payload, nil
	}
	if len(payload) < 4 {
		return nil, fmt.Errorf("%s payload of %d bytes has no length prefix", c, len(payload))
	}
	size := int(binary.LittleEndian.Uint32(payload))
	if size > MaxPodSize {
		return nil, fmt.Errorf("%s payload claims %d bytes", c, size)
	}
	switch c {
	case CompressionLZ4:
		return decompressLZ4(payload[4:], size)
	case CompressionZstd:
		return decompressZstd(payload[4:], size)
	}
	return nil, fmt.Errorf("unsupported compression %s", c)
}

func compressLZ4(data []byte) ([]byte, error) {
	dst := make([]byte, lz4.CompressBlockBound(len(data)))
	n, err := lz4.CompressBlock(data, dst, nil)
	if err != nil {
		return nil, fmt.Errorf("lz4 compress: %w", err)
	}
	// zero means lz4 judged the block incompressible
	if n == 0 || n+4 >= len(data) {
		return nil, errIncompressible
	}
	return dst[:n], nil
}

func decompressLZ4(src []byte, size int) ([]byte, error) {
	dst := make([]byte, size)
	n, err := lz4.UncompressBlock(src, dst)
	if err != nil {
		return nil, fmt.Errorf("lz4 decompress: %w", err)
	}
	if n != size {
		return nil, fmt.Errorf("lz4 decompress: got %d bytes, expected %d", n, size)
	}
	return dst, nil
}

func compressZstd(data []byte) ([]byte, error) {
	packed := zstdEncoder.EncodeAll(data, nil)
	if len(packed)+4 >= len(data) {
		return nil, errIncompressible
	}
	return packed, nil
}

func decompressZstd(src []byte, size int) ([]byte, error) {
	// refuse frames that announce more than the length prefix before
	// decoding any of them
	var h zstd.Header
	if err := h.Decode(src); err != nil {
		return nil, fmt.Errorf("zstd decompress: %w", err)
	}
	if h.HasFCS && h.FrameContentSize != uint64(size) {
		return nil, fmt.Errorf("zstd decompress: frame declares %d bytes, expected %d", h.FrameContentSize, size)
	}
	out, err := zstdDecoder.DecodeAll(src, make([]byte, 0, size))
	if err != nil {
		return nil, fmt.Errorf("zstd decompress: %w", err)
	}
	if len(out) != size {
		return nil, fmt.Errorf("zstd decompress: got %d bytes, expected %d", len(out), size)
	}
	return out, nil
}
