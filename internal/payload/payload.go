// Package payload decodes LZMA-compressed firmware payloads. The decoder
// itself is github.com/ulikunitz/xz/lzma; this package only checks the
// classic 13-byte header and bounds the output.
package payload

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/ulikunitz/xz/lzma"
)

const (
	// HeaderSize is the 5 property bytes plus the 8-byte length field.
	HeaderSize = 13

	// UnknownSize marks a stream whose length is given by an end marker.
	UnknownSize = ^uint64(0)

	// DefaultMaxSize bounds decompressed output.
	DefaultMaxSize = 64 << 20
)

// ErrTooLarge is returned when the output would exceed the size limit.
var ErrTooLarge = errors.New("decompressed payload exceeds size limit")

// Header is the classic LZMA stream header.
type Header struct {
	LC, LP, PB int
	DictSize   uint32
	Size       uint64
}

// SizeKnown reports whether the header carries the decompressed length.
func (h Header) SizeKnown() bool {
	return h.Size != UnknownSize
}

func (h Header) String() string {
	size := "unknown"
	if h.SizeKnown() {
		size = fmt.Sprintf("%d", h.Size)
	}
	return fmt.Sprintf("lc=%d lp=%d pb=%d dict=%d size=%s", h.LC, h.LP, h.PB, h.DictSize, size)
}

// ParseHeader decodes the 13-byte header at the start of data.
func ParseHeader(data []byte) (Header, error) {
	if len(data) < HeaderSize {
		return Header{}, fmt.Errorf("payload is %d bytes, shorter than the %d-byte header", len(data), HeaderSize)
	}

	props := int(data[0])
	if props >= 9*5*5 {
		return Header{}, fmt.Errorf("invalid LZMA properties byte 0x%02X", data[0])
	}

	return Header{
		LC:       props % 9,
		LP:       (props / 9) % 5,
		PB:       props / 45,
		DictSize: binary.LittleEndian.Uint32(data[1:5]),
		Size:     binary.LittleEndian.Uint64(data[5:13]),
	}, nil
}

// Decompress decodes an LZMA payload using DefaultMaxSize as the limit.
func Decompress(data []byte) ([]byte, error) {
	return DecompressLimit(data, DefaultMaxSize)
}

// DecompressLimit decodes an LZMA payload, failing with ErrTooLarge when the
// header or the stream exceeds maxSize bytes.
func DecompressLimit(data []byte, maxSize int64) ([]byte, error) {
	h, err := ParseHeader(data)
	if err != nil {
		return nil, err
	}
	if h.SizeKnown() && h.Size > uint64(maxSize) {
		return nil, fmt.Errorf("%w: header declares %d bytes", ErrTooLarge, h.Size)
	}

	r, err := lzma.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to open LZMA stream: %w", err)
	}

	out, err := io.ReadAll(io.LimitReader(r, maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to decompress payload: %w", err)
	}
	if int64(len(out)) > maxSize {
		return nil, ErrTooLarge
	}
	if h.SizeKnown() && uint64(len(out)) != h.Size {
		return nil, fmt.Errorf("decompressed %d bytes, header declares %d", len(out), h.Size)
	}
	return out, nil
}
