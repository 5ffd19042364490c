package validation

import (
	"fmt"

	"github.com/muurk/mefit/internal/binscan"
	"github.com/muurk/mefit/internal/firmware"
)

// DonorResult is the outcome of ValidateDonorFsys.
type DonorResult struct {
	Reason  Reason
	Message string

	// Fsys is the decoded donor store, nil when Reason is not ReasonNone.
	Fsys *firmware.FsysSection

	// MaskRequired is set when the donor's stored CRC does not match its
	// contents. The donor is still usable once the CRC is rewritten.
	MaskRequired bool
}

// Valid reports whether the donor can be used.
func (r *DonorResult) Valid() bool {
	return r.Reason == ReasonNone
}

// ValidateDonorFsys checks an exported Fsys region before it replaces the
// store in an image. The region must be exactly FsysStoreSize bytes with the
// signature at offset 0. A CRC mismatch is recoverable and only sets
// MaskRequired.
func ValidateDonorFsys(region []byte) *DonorResult {
	switch {
	case len(region) < firmware.FsysStoreSize:
		return &DonorResult{
			Reason:  ReasonSizeTooSmall,
			Message: fmt.Sprintf("donor region is %d bytes, expected exactly %d", len(region), firmware.FsysStoreSize),
		}
	case len(region) > firmware.FsysStoreSize:
		return &DonorResult{
			Reason:  ReasonSizeTooLarge,
			Message: fmt.Sprintf("donor region is %d bytes, expected exactly %d", len(region), firmware.FsysStoreSize),
		}
	}

	section, ok := firmware.ParseFsysStore(region)
	if !ok {
		msg := "donor region does not start with the Fsys signature"
		if pos, found := binscan.Find(region, firmware.FsysSig, 0); found {
			msg = fmt.Sprintf("donor region has the Fsys signature at 0x%X instead of offset 0", pos)
		}
		return &DonorResult{Reason: ReasonMissingSection, Message: msg}
	}

	result := &DonorResult{
		Reason:  ReasonNone,
		Message: "donor region is valid",
		Fsys:    section,
	}
	if !section.CRCMatches() {
		result.MaskRequired = true
		result.Message = fmt.Sprintf("donor CRC mismatch (stored %s, computed %s); CRC will be rewritten",
			section.StoredCRC, section.ComputedCRC)
	}
	return result
}
