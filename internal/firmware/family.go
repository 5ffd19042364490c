package firmware

import "github.com/muurk/mefit/internal/binscan"

// Family identifies which store layout an image carries.
type Family int

const (
	// FamilyUnknown means neither the Intel descriptor nor the SOCROM marker matched.
	FamilyUnknown Family = iota
	// FamilyIntel images carry an Intel flash descriptor and an Fsys store.
	FamilyIntel
	// FamilyT2 images are T2 SOCROM dumps carrying an SCfg store.
	FamilyT2
)

func (f Family) String() string {
	switch f {
	case FamilyIntel:
		return "Intel (Fsys)"
	case FamilyT2:
		return "T2 (SCfg)"
	default:
		return "Unknown"
	}
}

// ParseFamily maps a config/flag value to a Family.
func ParseFamily(s string) (Family, bool) {
	switch s {
	case "intel", "fsys":
		return FamilyIntel, true
	case "t2", "scfg", "socrom":
		return FamilyT2, true
	case "", "auto":
		return FamilyUnknown, true
	default:
		return FamilyUnknown, false
	}
}

// FlashDescriptorOffset is where the Intel flash descriptor signature lives.
const FlashDescriptorOffset = 0x10

var (
	// FlashDescriptorSig is the Intel SPI flash descriptor signature (0x0FF0A55A LE).
	FlashDescriptorSig = []byte{0x5A, 0xA5, 0xF0, 0x0F}

	// SOCROMMarker is found at offset 0 of T2 SOCROM dumps.
	SOCROMMarker = []byte{0x30, 0x83}
)

// HasFlashDescriptor reports whether the Intel descriptor signature is at its
// fixed offset.
func HasFlashDescriptor(image []byte) bool {
	sig, ok := binscan.SliceFixedLength(image, FlashDescriptorOffset, len(FlashDescriptorSig))
	return ok && binscan.BytesEqual(sig, FlashDescriptorSig)
}

// IsSOCROM reports whether image starts with the SOCROM marker and carries an
// iBoot version block.
func IsSOCROM(image []byte) bool {
	marker, ok := binscan.SliceFixedLength(image, 0, len(SOCROMMarker))
	if !ok || !binscan.BytesEqual(marker, SOCROMMarker) {
		return false
	}
	_, ok = binscan.Find(image, IBootVersionSig, 0)
	return ok
}

// DetectFamily guesses the store family from fixed signatures.
func DetectFamily(image []byte) Family {
	switch {
	case HasFlashDescriptor(image):
		return FamilyIntel
	case IsSOCROM(image):
		return FamilyT2
	default:
		return FamilyUnknown
	}
}
