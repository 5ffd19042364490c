// Package checksum implements the integrity digests used on firmware images:
// the reflected CRC-32 stored in Fsys regions and SHA-256 for whole-file
// write verification.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// CRC32 parameters (ZIP/PNG variant).
const (
	CRC32Polynomial = 0xEDB88320
	CRC32Init       = 0xFFFFFFFF
	CRC32XorOut     = 0xFFFFFFFF
)

// CRC32 computes the reflected CRC-32 of data, one byte at a time with eight
// shifts per byte. The result matches hash/crc32.ChecksumIEEE.
func CRC32(data []byte) uint32 {
	crc := uint32(CRC32Init)
	for _, b := range data {
		crc ^= uint32(b)
		for i := 0; i < 8; i++ {
			crc = (crc >> 1) ^ (CRC32Polynomial & -(crc & 1))
		}
	}
	return crc ^ CRC32XorOut
}

// CRC32Hex returns the CRC-32 of data as eight uppercase hex digits.
func CRC32Hex(data []byte) string {
	return FormatCRC32(CRC32(data))
}

// FormatCRC32 renders a CRC value the way the firmware tools display it.
func FormatCRC32(crc uint32) string {
	return fmt.Sprintf("%08X", crc)
}

// SHA256Hex returns the lowercase hex SHA-256 digest of data.
func SHA256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
