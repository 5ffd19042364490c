package firmware

import (
	"github.com/muurk/mefit/internal/binscan"
	"github.com/muurk/mefit/internal/checksum"
)

// SCfg layout constants. The expected base and length match the embedded
// "scfg" catalog layout and describe a stock T2 SOCROM dump.
const (
	SCfgSerialLength   = 12
	SCfgExpectedBase   = 0x28A000
	SCfgExpectedLength = 0xB8
)

var (
	// SCfgHeaderSig is "SCfg" byte-reversed.
	SCfgHeaderSig = []byte{0x67, 0x66, 0x43, 0x53}

	// SCfgSerialSig is "SrNm" byte-reversed.
	SCfgSerialSig = []byte{0x6D, 0x4E, 0x72, 0x53}

	// SCfgSONSig is "Mod#" byte-reversed.
	SCfgSONSig = []byte{0x23, 0x64, 0x6F, 0x4D}

	// SCfgRegNumSig is "Regn" byte-reversed.
	SCfgRegNumSig = []byte{0x6E, 0x67, 0x65, 0x52}

	scfgTerminator = []byte{0x00, 0x00, 0x00}
)

// SCfgSection is a snapshot of an SCfg store. When the store is missing the
// record has Found set to false and Base set to -1.
type SCfgSection struct {
	Found      bool
	Base       int    // Offset of the header signature within the image
	Size       int    // Declared store size (the byte after the header)
	Store      []byte // Copy of the declared store bytes
	Serial     Text
	SerialBase int // Absolute offset of the serial bytes, -1 if absent
	HWC        Text
	SON        Text
	RegNum     Text
	CRC        string // Computed CRC-32 of the store, for display only
}

// DefaultSCfg returns the empty record used when no store is present.
func DefaultSCfg() SCfgSection {
	return SCfgSection{Base: -1, SerialBase: -1}
}

// ExtractSCfg locates and decodes the SCfg store. With storeOnly set the
// buffer is treated as an exported store whose header sits at offset 0.
func ExtractSCfg(image []byte, storeOnly bool) SCfgSection {
	base := 0
	if !storeOnly {
		var ok bool
		base, ok = binscan.Find(image, SCfgHeaderSig, 0)
		if !ok {
			return DefaultSCfg()
		}
	}

	sizeByte, ok := binscan.SliceFixedLength(image, base+len(SCfgHeaderSig), 1)
	if !ok || sizeByte[0] == 0 {
		return DefaultSCfg()
	}
	size := int(sizeByte[0])

	store, ok := binscan.SliceFixedLength(image, base, size)
	if !ok {
		return DefaultSCfg()
	}

	section := SCfgSection{
		Found:      true,
		Base:       base,
		Size:       size,
		Store:      store,
		SerialBase: -1,
		CRC:        checksum.CRC32Hex(store),
	}

	if serial, rel, ok := fixedAfterSig(store, SCfgSerialSig, SCfgSerialLength); ok {
		section.Serial = NewText(serial)
		section.SerialBase = base + rel
		section.HWC = NewText(serial[len(serial)-4:])
	}

	section.SON = terminatedAfterSig(store, SCfgSONSig)
	section.RegNum = terminatedAfterSig(store, SCfgRegNumSig)

	return section
}

func fixedAfterSig(store, sig []byte, length int) (string, int, bool) {
	pos, ok := binscan.Find(store, sig, 0)
	if !ok {
		return "", -1, false
	}

	start := pos + len(sig)
	value, ok := binscan.SliceFixedLength(store, start, length)
	if !ok {
		return "", -1, false
	}
	return string(value), start, true
}

func terminatedAfterSig(store, sig []byte) Text {
	pos, ok := binscan.Find(store, sig, 0)
	if !ok {
		return Text{}
	}

	value, ok := binscan.SliceUntilSentinel(store, pos+len(sig), scfgTerminator)
	if !ok {
		return Text{}
	}
	return NewText(string(value))
}
