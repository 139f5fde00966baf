package snapshot

import (
	"fmt"
	"strings"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression identifies the codec applied to the envelope payload.
type Compression uint8

const (
	// CompressionNone stores the payload as-is.
	CompressionNone Compression = 0
	// CompressionLZ4 uses LZ4 block compression (fast, modest ratio).
	CompressionLZ4 Compression = 1
	// CompressionZSTD uses ZSTD compression (slower, better ratio).
	CompressionZSTD Compression = 2
)

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZSTD:
		return "zstd"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(c))
	}
}

func (c Compression) valid() bool {
	return c <= CompressionZSTD
}

// ParseCompression converts a codec name ("none", "lz4", "zstd") into a
// Compression value. Matching is case-insensitive.
func ParseCompression(s string) (Compression, error) {
	switch strings.ToLower(s) {
	case "", "none":
		return CompressionNone, nil
	case "lz4":
		return CompressionLZ4, nil
	case "zstd":
		return CompressionZSTD, nil
	default:
		return CompressionNone, fmt.Errorf("unknown compression codec: %q", s)
	}
}

// ZSTD encoder/decoder pools for efficiency
var (
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

func getZstdEncoder() *zstd.Encoder {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder)
	}
	enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	return enc
}

func putZstdEncoder(enc *zstd.Encoder) {
	zstdEncoderPool.Put(enc)
}

func getZstdDecoder() *zstd.Decoder {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder)
	}
	dec, _ := zstd.NewReader(nil)
	return dec
}

func putZstdDecoder(dec *zstd.Decoder) {
	zstdDecoderPool.Put(dec)
}

// compressPayload compresses data with the given codec. The second return
// value reports whether the result is actually compressed: when compression
// does not help (ratio above 0.9) the original data is returned and the
// envelope stores it raw.
func compressPayload(data []byte, c Compression) ([]byte, bool, error) {
	if c == CompressionNone || len(data) == 0 {
		return data, false, nil
	}

	var compressed []byte
	switch c {
	case CompressionLZ4:
		bound := lz4.CompressBlockBound(len(data))
		buf := make([]byte, bound)
		n, err := lz4.CompressBlock(data, buf, nil)
		if err != nil {
			return nil, false, fmt.Errorf("lz4 compress: %w", err)
		}
		if n == 0 {
			// Incompressible
			return data, false, nil
		}
		compressed = buf[:n]
	case CompressionZSTD:
		enc := getZstdEncoder()
		defer putZstdEncoder(enc)
		compressed = enc.EncodeAll(data, nil)
	default:
		return nil, false, fmt.Errorf("unknown compression codec: %d", c)
	}

	if float64(len(compressed)) > float64(len(data))*0.9 {
		return data, false, nil
	}
	return compressed, true, nil
}

// decompressPayload reverses compressPayload. uncompressedSize is taken
// from the envelope header and validated against the decoded result.
func decompressPayload(data []byte, c Compression, uncompressedSize uint64) ([]byte, error) {
	result := make([]byte, uncompressedSize)

	switch c {
	case CompressionLZ4:
		n, err := lz4.UncompressBlock(data, result)
		if err != nil {
			return nil, fmt.Errorf("lz4 decompress: %w", err)
		}
		if uint64(n) != uncompressedSize {
			return nil, fmt.Errorf("decompressed size mismatch: expected %d, got %d", uncompressedSize, n)
		}
		return result, nil
	case CompressionZSTD:
		dec := getZstdDecoder()
		defer putZstdDecoder(dec)
		decoded, err := dec.DecodeAll(data, result[:0])
		if err != nil {
			return nil, fmt.Errorf("zstd decompress: %w", err)
		}
		if uint64(len(decoded)) != uncompressedSize {
			return nil, fmt.Errorf("decompressed size mismatch: expected %d, got %d", uncompressedSize, len(decoded))
		}
		return decoded, nil
	default:
		return nil, fmt.Errorf("unknown compression codec: %d", c)
	}
}
