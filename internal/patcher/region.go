package patcher

import (
	"bytes"
	"encoding/binary"

	"github.com/muurk/mefit/internal/checksum"
)

// OverwriteRegion returns a copy of buf with data written at offset.
func OverwriteRegion(buf []byte, offset int, data []byte) ([]byte, error) {
	if offset < 0 || offset > len(buf) || len(data) > len(buf)-offset {
		return nil, &RegionError{Offset: offset, Length: len(data), BufferLength: len(buf)}
	}

	out := bytes.Clone(buf)
	if out == nil {
		out = []byte{}
	}
	copy(out[offset:], data)
	return out, nil
}

// MaskCRC32 returns a copy of store with the CRC-32 of store[:crcOffset]
// written little-endian at crcOffset. The field is read back and checked
// against a fresh computation before returning.
func MaskCRC32(store []byte, crcOffset int) ([]byte, error) {
	if crcOffset < 0 || crcOffset > len(store)-4 {
		return nil, &RegionError{Offset: crcOffset, Length: 4, BufferLength: len(store)}
	}

	crc := checksum.CRC32(store[:crcOffset])
	field := make([]byte, 4)
	binary.LittleEndian.PutUint32(field, crc)

	out, err := OverwriteRegion(store, crcOffset, field)
	if err != nil {
		return nil, err
	}

	written := binary.LittleEndian.Uint32(out[crcOffset : crcOffset+4])
	expected := checksum.CRC32(out[:crcOffset])
	if written != expected {
		return nil, &CRCError{Offset: crcOffset, Written: written, Expected: expected}
	}
	return out, nil
}
