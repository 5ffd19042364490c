package patcher

import (
	"fmt"

	"github.com/muurk/mefit/internal/firmware"
	"github.com/muurk/mefit/internal/validation"
)

// SectionKind tags which store an edit touches so the build can decode it
// again after writing.
type SectionKind int

const (
	SectionNone SectionKind = iota
	SectionFsys
	SectionSCfg
)

func (k SectionKind) String() string {
	switch k {
	case SectionFsys:
		return "Fsys"
	case SectionSCfg:
		return "SCfg"
	default:
		return "none"
	}
}

// Edit replaces len(Data) bytes at Offset.
type Edit struct {
	Label   string
	Offset  int
	Data    []byte
	Section SectionKind

	// Expect is what the patched store must decode to once written.
	Expect *Expectation
}

// Expectation describes a store as it should read after a build. Text
// fields left invalid are not checked; a nil Store skips the byte compare.
type Expectation struct {
	Base   int // Offset of the store within the image
	Serial firmware.Text
	SON    firmware.Text
	Store  []byte
}

// End returns the offset one past the last byte the edit touches.
func (e Edit) End() int {
	return e.Offset + len(e.Data)
}

// FsysReplacementEdits builds the edit that swaps the image's Fsys store for
// a donor region. A donor whose CRC does not match is masked first.
func FsysReplacementEdits(image, donor []byte) ([]Edit, *validation.DonorResult, error) {
	check := validation.ValidateDonorFsys(donor)
	if !check.Valid() {
		return nil, check, fmt.Errorf("donor rejected: %s", check.Message)
	}

	offset, ok := firmware.FindFsys(image)
	if !ok {
		return nil, check, fmt.Errorf("image has no Fsys store to replace")
	}
	if offset > len(image)-firmware.FsysStoreSize {
		return nil, check, &RegionError{Offset: offset, Length: firmware.FsysStoreSize, BufferLength: len(image)}
	}

	data := check.Fsys.Store
	if check.MaskRequired {
		masked, err := MaskCRC32(data, firmware.FsysCRCOffset)
		if err != nil {
			return nil, check, fmt.Errorf("failed to mask donor CRC: %w", err)
		}
		data = masked
	}

	return []Edit{{
		Label:   "Fsys store",
		Offset:  offset,
		Data:    data,
		Section: SectionFsys,
		Expect: &Expectation{
			Base:   offset,
			Serial: check.Fsys.Serial,
			SON:    check.Fsys.SON,
			Store:  data,
		},
	}}, check, nil
}

// FsysSerialEdits rewrites the Fsys serial and recomputes the store CRC.
// The new serial must have the same length as the current one.
func FsysSerialEdits(image []byte, serial string) ([]Edit, error) {
	section, ok := firmware.ExtractFsys(image)
	if !ok {
		return nil, fmt.Errorf("image has no Fsys store")
	}
	if !section.Serial.Valid {
		return nil, fmt.Errorf("image Fsys store has no readable serial")
	}
	if err := ValidateSerial(serial, len(section.Serial.Value)); err != nil {
		return nil, err
	}

	store, err := OverwriteRegion(section.Store, section.SerialBase, []byte(serial))
	if err != nil {
		return nil, err
	}
	store, err = MaskCRC32(store, firmware.FsysCRCOffset)
	if err != nil {
		return nil, err
	}

	return []Edit{{
		Label:   "Fsys serial",
		Offset:  section.Offset,
		Data:    store,
		Section: SectionFsys,
		Expect: &Expectation{
			Base:   section.Offset,
			Serial: firmware.NewText(serial),
			SON:    section.SON,
		},
	}}, nil
}

// SCfgSerialEdits rewrites the 12-character SCfg serial in place. SCfg
// carries no stored CRC, so only the serial bytes change.
func SCfgSerialEdits(image []byte, serial string) ([]Edit, error) {
	section := firmware.ExtractSCfg(image, false)
	if !section.Found {
		return nil, fmt.Errorf("image has no SCfg store")
	}
	if !section.Serial.Valid {
		return nil, fmt.Errorf("image SCfg store has no readable serial")
	}
	if err := ValidateSerial(serial, firmware.SCfgSerialLength); err != nil {
		return nil, err
	}

	return []Edit{{
		Label:   "SCfg serial",
		Offset:  section.SerialBase,
		Data:    []byte(serial),
		Section: SectionSCfg,
		Expect: &Expectation{
			Base:   section.Base,
			Serial: firmware.NewText(serial),
			SON:    section.SON,
		},
	}}, nil
}

// FixFsysCRCEdits rewrites the Fsys CRC field to match the store contents.
// It returns ErrCRCAlreadyValid when the field is already correct.
func FixFsysCRCEdits(image []byte) ([]Edit, error) {
	section, ok := firmware.ExtractFsys(image)
	if !ok {
		return nil, fmt.Errorf("image has no Fsys store")
	}
	if section.CRCMatches() {
		return nil, ErrCRCAlreadyValid
	}

	masked, err := MaskCRC32(section.Store, firmware.FsysCRCOffset)
	if err != nil {
		return nil, err
	}

	return []Edit{{
		Label:   "Fsys CRC",
		Offset:  section.Offset + firmware.FsysCRCOffset,
		Data:    masked[firmware.FsysCRCOffset:],
		Section: SectionFsys,
		Expect: &Expectation{
			Base:   section.Offset,
			Serial: section.Serial,
			SON:    section.SON,
			Store:  masked,
		},
	}}, nil
}

// ValidateSerial checks a replacement serial: upper-case letters and digits
// only, with the given length.
func ValidateSerial(serial string, length int) error {
	if len(serial) != length {
		return &SerialError{Serial: serial, Reason: fmt.Sprintf("must be %d characters, got %d", length, len(serial))}
	}
	for i := 0; i < len(serial); i++ {
		c := serial[i]
		if (c < '0' || c > '9') && (c < 'A' || c > 'Z') {
			return &SerialError{Serial: serial, Reason: fmt.Sprintf("character %q at position %d is not 0-9 or A-Z", c, i)}
		}
	}
	return nil
}

// ApplyEdits returns a copy of image with every edit applied in order.
func ApplyEdits(image []byte, edits []Edit) ([]byte, error) {
	out := make([]byte, len(image))
	copy(out, image)

	for _, e := range edits {
		if e.Offset < 0 || e.Offset > len(out) || len(e.Data) > len(out)-e.Offset {
			return nil, fmt.Errorf("edit %q: %w", e.Label,
				&RegionError{Offset: e.Offset, Length: len(e.Data), BufferLength: len(out)})
		}
		copy(out[e.Offset:], e.Data)
	}
	return out, nil
}
