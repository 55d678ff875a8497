package snapshot

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/roach88/quark/internal/codec"
)

// Compression selects how payloads are compressed.
type Compression byte

const (
	CompressionNone Compression = 'n'
	CompressionZstd Compression = 'z'
	CompressionLZ4  Compression = 'l'
)

// ParseCompression maps a config name to a Compression.
func ParseCompression(name string) (Compression, error) {
	switch name {
	case "", "zstd":
		return CompressionZstd, nil
	case "lz4":
		return CompressionLZ4, nil
	case "none":
		return CompressionNone, nil
	}
	return 0, fmt.Errorf("unknown compression %q", name)
}

const headerSize = 5

// maxPayload bounds the declared uncompressed size of a payload.
const maxPayload = 64 << 20

var errIncompressible = errors.New("data is incompressible")

// zstdEncoder and zstdDecoder are reused across calls; both are safe for
// concurrent use.
var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("snapshot: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("snapshot: zstd decoder initialization failed: " + err.Error())
	}
}

// encode marshals v and compresses it with c. Data that does not shrink is
// stored uncompressed.
func encode(v any, c Compression) ([]byte, error) {
	raw, err := codec.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot: %w", err)
	}

	body := raw
	tag := CompressionNone
	switch c {
	case CompressionZstd:
		if z := zstdEncoder.EncodeAll(raw, nil); len(z) < len(raw) {
			body, tag = z, CompressionZstd
		}
	case CompressionLZ4:
		if l, err := compressLZ4(raw); err == nil {
			body, tag = l, CompressionLZ4
		} else if !errors.Is(err, errIncompressible) {
			return nil, err
		}
	}

	out := make([]byte, headerSize, headerSize+len(body))
	out[0] = byte(tag)
	binary.BigEndian.PutUint32(out[1:headerSize], uint32(len(raw)))
	return append(out, body...), nil
}

// decode reverses encode into out.
func decode(data []byte, out any) error {
	if len(data) < headerSize {
		return fmt.Errorf("snapshot payload too short: %d bytes", len(data))
	}
	size := int(binary.BigEndian.Uint32(data[1:headerSize]))
	if size > maxPayload {
		return fmt.Errorf("snapshot payload declares %d bytes, limit is %d", size, maxPayload)
	}
	body := data[headerSize:]

	var raw []byte
	switch Compression(data[0]) {
	case CompressionNone:
		raw = body
	case CompressionZstd:
		r, err := zstdDecoder.DecodeAll(body, make([]byte, 0, size))
		if err != nil {
			return fmt.Errorf("zstd decompress: %w", err)
		}
		raw = r
	case CompressionLZ4:
		dst := make([]byte, size)
		n, err := lz4.UncompressBlock(body, dst)
		if err != nil {
			return fmt.Errorf("lz4 decompress: %w", err)
		}
		raw = dst[:n]
	default:
		return fmt.Errorf("unsupported compression tag: %d", data[0])
	}
	if len(raw) != size {
		return fmt.Errorf("snapshot decompress: got %d bytes, expected %d", len(raw), size)
	}

	if err := codec.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return nil
}

func compressLZ4(data []byte) ([]byte, error) {
	dst := make([]byte, lz4.CompressBlockBound(len(data)))
	n, err := lz4.CompressBlock(data, dst, nil)
	if err != nil {
		return nil, fmt.Errorf("lz4 compress: %w", err)
	}
	// CompressBlock returns 0 for incompressible input.
	if n == 0 || n >= len(data) {
		return nil, errIncompressible
	}
	return dst[:n], nil
}
