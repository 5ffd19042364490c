// Package firmwaretest builds synthetic ROM images and stores for tests.
package firmwaretest

import (
	"bytes"
	"encoding/binary"

	"github.com/muurk/mefit/internal/firmware"
)

// Offsets used by the synthetic stores.
const (
	FsysSerialMarkerOffset = 0x20
	SCfgPadding            = 0xB8
	IBootOffset            = 0x200
	PDRBase                = 0x2000
	regionTableBase        = 0x40
)

// FsysStore builds a 0x800-byte Fsys store holding serial and son with a
// correct CRC field.
func FsysStore(serial, son string) []byte {
	store := make([]byte, firmware.FsysStoreSize)
	copy(store, firmware.FsysSig)
	store[4] = 0x01

	pos := FsysSerialMarkerOffset
	pos += putLengthPrefixed(store[pos:], firmware.FsysSerialMarker, serial)
	pos += 2
	putLengthPrefixed(store[pos:], firmware.FsysSONMarker, son)

	crc := firmware.ComputeFsysCRC(store)
	binary.LittleEndian.PutUint32(store[firmware.FsysCRCOffset:], crc)
	return store
}

// CorruptCRC returns a copy of store with one byte of the CRC field flipped.
func CorruptCRC(store []byte) []byte {
	out := bytes.Clone(store)
	out[firmware.FsysCRCOffset] ^= 0xFF
	return out
}

// IntelImage builds an image of size bytes filled with 0xFF, carrying the
// Intel flash descriptor signature and store at fsysOffset. A nil store
// leaves the image without an Fsys region.
func IntelImage(size, fsysOffset int, store []byte) []byte {
	image := bytes.Repeat([]byte{0xFF}, size)
	copy(image[firmware.FlashDescriptorOffset:], firmware.FlashDescriptorSig)
	if store != nil {
		copy(image[fsysOffset:], store)
	}
	return image
}

// WithBoardID returns a copy of an Intel image whose descriptor maps a one
// block PDR region at PDRBase holding boardID.
func WithBoardID(image []byte, boardID string) []byte {
	out := bytes.Clone(image)
	binary.LittleEndian.PutUint32(out[firmware.FlashDescriptorOffset+4:], regionTableBase<<12)

	block := uint32(PDRBase / 0x1000)
	binary.LittleEndian.PutUint32(out[regionTableBase+4*firmware.RegionPDR:], block<<16|block)

	copy(out[PDRBase+0x10:], boardID)
	return out
}

// SCfgStore builds an SCfg store with the serial, SON and registration
// number fields, padded to a 0xB8-byte declared size.
func SCfgStore(serial, son, regNum string) []byte {
	var b bytes.Buffer
	b.Write(firmware.SCfgHeaderSig)
	b.WriteByte(0) // size, patched below
	b.Write([]byte{0x00, 0x01, 0x00})

	b.Write(firmware.SCfgSerialSig)
	b.WriteString(serial)

	b.Write(firmware.SCfgSONSig)
	b.WriteString(son)
	b.Write([]byte{0, 0, 0})

	b.Write(firmware.SCfgRegNumSig)
	b.WriteString(regNum)
	b.Write([]byte{0, 0, 0})

	store := b.Bytes()
	if len(store) < SCfgPadding {
		store = append(store, make([]byte, SCfgPadding-len(store))...)
	}
	store[len(firmware.SCfgHeaderSig)] = byte(len(store))
	return store
}

// T2Image builds a SOCROM-style image with the marker at offset 0, an iBoot
// version block and the SCfg store at base. A nil store omits the SCfg region.
func T2Image(size, base int, store []byte, iboot string) []byte {
	image := bytes.Repeat([]byte{0xFF}, size)
	copy(image, firmware.SOCROMMarker)

	pos := IBootOffset
	copy(image[pos:], firmware.IBootVersionSig)
	image[pos+4] = 0x01
	image[pos+5] = byte(len(iboot))
	copy(image[pos+6:], iboot)

	if store != nil {
		copy(image[base:], store)
	}
	return image
}

func putLengthPrefixed(dst, marker []byte, value string) int {
	n := copy(dst, marker)
	dst[n] = byte(len(value))
	n++
	n += copy(dst[n:], value)
	return n
}
