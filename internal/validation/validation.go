// Package validation gates a raw ROM image before anything reads or patches
// it. The checks run in a fixed order (size, flash signature, store
// presence) and the first failure short-circuits with a specific Reason.
package validation

import (
	"fmt"

	"github.com/muurk/mefit/internal/firmware"
)

// Reason tags why an image was rejected.
type Reason int

const (
	// ReasonNone means the image passed every enabled check.
	ReasonNone Reason = iota
	// ReasonSizeTooSmall means the image is shorter than the minimum size.
	ReasonSizeTooSmall
	// ReasonSizeTooLarge means the image is longer than the maximum size.
	ReasonSizeTooLarge
	// ReasonBadFlashSignature means the family signature is not at its fixed offset.
	ReasonBadFlashSignature
	// ReasonMissingSection means the Fsys or SCfg store could not be located.
	ReasonMissingSection
)

func (r Reason) String() string {
	switch r {
	case ReasonNone:
		return "Valid"
	case ReasonSizeTooSmall:
		return "SizeTooSmall"
	case ReasonSizeTooLarge:
		return "SizeTooLarge"
	case ReasonBadFlashSignature:
		return "BadFlashSignature"
	case ReasonMissingSection:
		return "MissingSection"
	default:
		return fmt.Sprintf("Reason(%d)", int(r))
	}
}

// Options configures the pipeline.
type Options struct {
	// Family selects the store layout. FamilyUnknown auto-detects from the
	// image signatures.
	Family firmware.Family

	MinSize int64
	MaxSize int64

	// EnforceSignature requires the family signature at its fixed offset.
	EnforceSignature bool

	// EnforceSection requires the family's store to be present.
	EnforceSection bool
}

// DefaultOptions returns the reference limits with every check enabled.
func DefaultOptions() Options {
	return Options{
		Family:           firmware.FamilyUnknown,
		MinSize:          firmware.MinImageSize,
		MaxSize:          firmware.MaxImageSize,
		EnforceSignature: true,
		EnforceSection:   true,
	}
}

// Result is the outcome of Validate. Section records are only attached when
// the image passed; a failed result never carries them.
type Result struct {
	Reason  Reason
	Message string

	Family firmware.Family
	Size   firmware.SizeClass

	Fsys *firmware.FsysSection
	SCfg *firmware.SCfgSection
}

// Valid reports whether every enabled check passed.
func (r *Result) Valid() bool {
	return r.Reason == ReasonNone
}

// Validate runs the size, signature and section checks against image.
func Validate(image []byte, opts Options) *Result {
	if opts.MinSize <= 0 {
		opts.MinSize = firmware.MinImageSize
	}
	if opts.MaxSize <= 0 {
		opts.MaxSize = firmware.MaxImageSize
	}

	size := int64(len(image))
	result := &Result{
		Family: opts.Family,
		Size:   firmware.ClassifySize(size, opts.MinSize, opts.MaxSize),
	}

	switch {
	case size < opts.MinSize:
		return fail(result, ReasonSizeTooSmall,
			"image is %d bytes, smaller than the minimum of %d bytes (%s)", size, opts.MinSize, result.Size)
	case size > opts.MaxSize:
		return fail(result, ReasonSizeTooLarge,
			"image is %d bytes, larger than the maximum of %d bytes (%s)", size, opts.MaxSize, result.Size)
	}

	if result.Family == firmware.FamilyUnknown {
		result.Family = firmware.DetectFamily(image)
	}

	if opts.EnforceSignature {
		if r, ok := checkSignature(result, image); !ok {
			return r
		}
	}

	fsys, scfg := extractSections(result.Family, image)

	if opts.EnforceSection && fsys == nil && scfg == nil {
		return fail(result, ReasonMissingSection, "no %s store found in image", storeName(result.Family))
	}

	result.Fsys = fsys
	result.SCfg = scfg
	result.Message = "image is valid"
	return result
}

func checkSignature(result *Result, image []byte) (*Result, bool) {
	switch result.Family {
	case firmware.FamilyIntel:
		if !firmware.HasFlashDescriptor(image) {
			return fail(result, ReasonBadFlashSignature,
				"Intel flash descriptor signature not found at offset 0x%X", firmware.FlashDescriptorOffset), false
		}
	case firmware.FamilyT2:
		if !firmware.IsSOCROM(image) {
			return fail(result, ReasonBadFlashSignature, "T2 SOCROM marker not found at offset 0"), false
		}
	default:
		return fail(result, ReasonBadFlashSignature,
			"neither an Intel flash descriptor nor a T2 SOCROM marker was found"), false
	}
	return result, true
}

// extractSections decodes the stores the family calls for. With an unknown
// family both layouts are tried.
func extractSections(family firmware.Family, image []byte) (*firmware.FsysSection, *firmware.SCfgSection) {
	var fsys *firmware.FsysSection
	var scfg *firmware.SCfgSection

	if family != firmware.FamilyT2 {
		if s, ok := firmware.ExtractFsys(image); ok {
			fsys = s
		}
	}
	if family != firmware.FamilyIntel {
		if s := firmware.ExtractSCfg(image, false); s.Found {
			scfg = &s
		}
	}
	return fsys, scfg
}

func storeName(family firmware.Family) string {
	switch family {
	case firmware.FamilyIntel:
		return "Fsys"
	case firmware.FamilyT2:
		return "SCfg"
	default:
		return "Fsys or SCfg"
	}
}

func fail(result *Result, reason Reason, format string, args ...any) *Result {
	result.Reason = reason
	result.Message = fmt.Sprintf(format, args...)
	result.Fsys = nil
	result.SCfg = nil
	return result
}
