package firmware

import (
	"encoding/binary"

	"github.com/muurk/mefit/internal/binscan"
	"github.com/muurk/mefit/internal/checksum"
)

// Fsys store layout.
const (
	FsysStoreSize = 0x800
	FsysCRCOffset = 0x7FC
	FsysCRCSize   = 4
)

var (
	// FsysSig marks the start of the store.
	FsysSig = []byte("Fsys")

	// FsysSerialMarker precedes a one-byte length and the serial number.
	FsysSerialMarker = []byte("ssn")

	// FsysSONMarker precedes a one-byte length and the system order number.
	FsysSONMarker = []byte("son")
)

// FsysSection is a snapshot of an Fsys store.
type FsysSection struct {
	Offset      int    // Offset of the store within the image
	Size        int    // Always FsysStoreSize
	Store       []byte // Copy of the store bytes
	Serial      Text
	SerialBase  int // Offset of the serial bytes within the store, -1 if absent
	HWC         Text
	SON         Text
	StoredCRC   string // CRC field at 0x7FC, as 8 hex digits
	ComputedCRC string // CRC over the first 0x7FC bytes
}

// CRCMatches reports whether the stored CRC agrees with the computed one.
func (s *FsysSection) CRCMatches() bool {
	return s.StoredCRC != "" && s.StoredCRC == s.ComputedCRC
}

// FindFsys returns the offset of the first Fsys signature in image.
func FindFsys(image []byte) (int, bool) {
	return binscan.Find(image, FsysSig, 0)
}

// ExtractFsys locates the Fsys store in a full image and decodes it. It
// reports false when the signature is missing or the 0x800-byte window runs
// past the end of the image.
func ExtractFsys(image []byte) (*FsysSection, bool) {
	offset, ok := FindFsys(image)
	if !ok {
		return nil, false
	}

	store, ok := binscan.SliceFixedLength(image, offset, FsysStoreSize)
	if !ok {
		return nil, false
	}

	return decodeFsys(store, offset), true
}

// ParseFsysStore decodes a standalone store, such as an exported donor
// region. The signature must sit at offset 0 and the buffer must be exactly
// FsysStoreSize bytes.
func ParseFsysStore(store []byte) (*FsysSection, bool) {
	if len(store) != FsysStoreSize {
		return nil, false
	}
	if pos, ok := FindFsys(store); !ok || pos != 0 {
		return nil, false
	}

	buf := make([]byte, len(store))
	copy(buf, store)
	return decodeFsys(buf, 0), true
}

// decodeFsys takes ownership of store, which must be FsysStoreSize bytes.
func decodeFsys(store []byte, offset int) *FsysSection {
	section := &FsysSection{
		Offset:     offset,
		Size:       FsysStoreSize,
		Store:      store,
		SerialBase: -1,
	}

	if serial, base, ok := lengthPrefixed(store, FsysSerialMarker); ok && validSerialLength(len(serial)) {
		section.Serial = NewText(serial)
		section.SerialBase = base
		section.HWC = HWCFromSerial(serial)
	}

	if son, _, ok := lengthPrefixed(store, FsysSONMarker); ok {
		section.SON = NewText(son)
	}

	section.StoredCRC = StoredFsysCRC(store)
	section.ComputedCRC = checksum.FormatCRC32(ComputeFsysCRC(store))

	return section
}

// ComputeFsysCRC returns the CRC-32 of the store body preceding the CRC field.
func ComputeFsysCRC(store []byte) uint32 {
	body := store
	if len(body) > FsysCRCOffset {
		body = body[:FsysCRCOffset]
	}
	return checksum.CRC32(body)
}

// StoredFsysCRC reads the little-endian CRC field at 0x7FC and formats it
// as 8 hex digits. It returns "" when the store is too short.
func StoredFsysCRC(store []byte) string {
	field, ok := binscan.SliceFixedLength(store, FsysCRCOffset, FsysCRCSize)
	if !ok {
		return ""
	}
	return checksum.FormatCRC32(binary.LittleEndian.Uint32(field))
}

// HWCFromSerial derives the hardware configuration code: the last 3
// characters of an 11-character serial, or the last 4 of a 12-character one.
func HWCFromSerial(serial string) Text {
	switch len(serial) {
	case 11:
		return NewText(serial[len(serial)-3:])
	case 12:
		return NewText(serial[len(serial)-4:])
	default:
		return Text{}
	}
}

func validSerialLength(n int) bool {
	return n == 11 || n == 12
}

// lengthPrefixed reads "<marker><len><value>" and returns the value and the
// offset of its first byte.
func lengthPrefixed(store, marker []byte) (string, int, bool) {
	pos, ok := binscan.Find(store, marker, 0)
	if !ok {
		return "", -1, false
	}

	lenByte, ok := binscan.SliceFixedLength(store, pos+len(marker), 1)
	if !ok || lenByte[0] == 0 {
		return "", -1, false
	}

	base := pos + len(marker) + 1
	value, ok := binscan.SliceFixedLength(store, base, int(lenByte[0]))
	if !ok {
		return "", -1, false
	}
	return string(value), base, true
}
