package snapshot

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"

	"github.com/gannet-io/gannet/hnsw"
)

const (
	// MagicNumber identifies snapshot envelopes (ASCII: "GNT1").
	MagicNumber uint32 = 0x474E5431

	// FormatVersion is the current envelope format version.
	FormatVersion uint16 = 1

	headerSize   = 24
	checksumSize = 4
)

var (
	// ErrInvalidMagic is returned when the data does not start with the
	// snapshot magic number.
	ErrInvalidMagic = errors.New("invalid magic number")

	// ErrUnsupportedVersion is returned when the envelope was written by
	// an incompatible format version.
	ErrUnsupportedVersion = errors.New("unsupported snapshot version")

	// ErrTruncated is returned when the data is shorter than the sizes
	// recorded in the envelope header.
	ErrTruncated = errors.New("truncated snapshot")
)

// ChecksumMismatchError is returned when the envelope trailer does not
// match the checksum computed over the received bytes.
type ChecksumMismatchError struct {
	Expected uint32
	Actual   uint32
}

func (e *ChecksumMismatchError) Error() string {
	return fmt.Sprintf("checksum mismatch: expected %08x, got %08x", e.Expected, e.Actual)
}

// Envelope layout (all integers little-endian):
//
//	[0:4]   magic number "GNT1"
//	[4:6]   format version
//	[6]     compression codec
//	[7]     reserved
//	[8:16]  uncompressed payload size
//	[16:24] compressed payload size (0 = payload stored raw)
//	[24:]   payload
//	last 4  CRC32 (IEEE) over everything before it
//
// The payload is the gob-encoded graph state produced by Graph.Save.

// Encode serializes the graph into a snapshot envelope.
// Graphs using a custom distance function cannot be encoded.
func Encode(g *hnsw.Graph, c Compression) ([]byte, error) {
	if !c.valid() {
		return nil, fmt.Errorf("unknown compression codec: %d", c)
	}

	var payload bytes.Buffer
	if err := g.Save(&payload); err != nil {
		return nil, err
	}

	stored, compressed, err := compressPayload(payload.Bytes(), c)
	if err != nil {
		return nil, err
	}

	buf := make([]byte, headerSize+len(stored)+checksumSize)
	binary.LittleEndian.PutUint32(buf[0:], MagicNumber)
	binary.LittleEndian.PutUint16(buf[4:], FormatVersion)
	buf[6] = byte(c)
	binary.LittleEndian.PutUint64(buf[8:], uint64(payload.Len()))
	if compressed {
		binary.LittleEndian.PutUint64(buf[16:], uint64(len(stored)))
	}
	copy(buf[headerSize:], stored)

	sum := crc32.ChecksumIEEE(buf[:headerSize+len(stored)])
	binary.LittleEndian.PutUint32(buf[headerSize+len(stored):], sum)
	return buf, nil
}

// Decode verifies a snapshot envelope and reconstructs the graph.
func Decode(data []byte) (*hnsw.Graph, error) {
	if len(data) < headerSize+checksumSize {
		return nil, ErrTruncated
	}
	if binary.LittleEndian.Uint32(data[0:]) != MagicNumber {
		return nil, ErrInvalidMagic
	}
	if v := binary.LittleEndian.Uint16(data[4:]); v != FormatVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, v)
	}

	codec := Compression(data[6])
	uncompressedSize := binary.LittleEndian.Uint64(data[8:])
	compressedSize := binary.LittleEndian.Uint64(data[16:])

	storedSize := compressedSize
	if storedSize == 0 {
		storedSize = uncompressedSize
	}

	// Bound storedSize before any arithmetic on it; a corrupt size field
	// must fail as truncation, not as an out-of-range slice.
	if storedSize > uint64(len(data)-headerSize-checksumSize) {
		return nil, ErrTruncated
	}

	end := headerSize + int(storedSize)
	want := binary.LittleEndian.Uint32(data[end:])
	if got := crc32.ChecksumIEEE(data[:end]); got != want {
		return nil, &ChecksumMismatchError{Expected: want, Actual: got}
	}

	payload := data[headerSize:end]
	if compressedSize != 0 {
		var err error
		payload, err = decompressPayload(payload, codec, uncompressedSize)
		if err != nil {
			return nil, err
		}
	}

	return hnsw.Load(bytes.NewReader(payload))
}

// Write encodes the graph and writes the envelope to w.
func Write(w io.Writer, g *hnsw.Graph, c Compression) error {
	data, err := Encode(g, c)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}

// Read consumes r to the end and decodes the envelope.
func Read(r io.Reader) (*hnsw.Graph, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	return Decode(data)
}
