package patcher

import (
	"errors"
	"fmt"
)

// ErrCRCAlreadyValid is returned by FixFsysCRCEdits when there is nothing to fix.
var ErrCRCAlreadyValid = errors.New("fsys CRC already matches its contents")

// RegionError reports an edit that does not fit inside its buffer. Callers
// are expected to size edits from extracted section records, so this points
// at a logic error rather than bad input.
type RegionError struct {
	Offset       int
	Length       int
	BufferLength int
}

func (e *RegionError) Error() string {
	return fmt.Sprintf("region 0x%X+0x%X is outside buffer of 0x%X bytes", e.Offset, e.Length, e.BufferLength)
}

// CRCError reports a CRC field that did not round-trip after being written.
type CRCError struct {
	Offset   int
	Written  uint32
	Expected uint32
}

func (e *CRCError) Error() string {
	return fmt.Sprintf("CRC at 0x%X reads back as %08X, expected %08X", e.Offset, e.Written, e.Expected)
}

// SerialError reports a replacement serial that cannot be written.
type SerialError struct {
	Serial string
	Reason string
}

func (e *SerialError) Error() string {
	return fmt.Sprintf("invalid serial %q: %s", e.Serial, e.Reason)
}

// BuildReason identifies the build stage that failed.
type BuildReason int

const (
	// ReasonApply means an edit could not be applied to the working copy.
	ReasonApply BuildReason = iota
	// ReasonBackup means the original image could not be archived.
	ReasonBackup
	// ReasonWrite means the output file could not be created, written or synced.
	ReasonWrite
	// ReasonReadBack means the output file could not be read after writing.
	ReasonReadBack
	// ReasonDigestMismatch means the file on disk differs from the edited buffer.
	ReasonDigestMismatch
	// ReasonSectionMismatch means a patched store did not decode as intended.
	ReasonSectionMismatch
)

// String returns a human-readable name for the reason
func (r BuildReason) String() string {
	switch r {
	case ReasonApply:
		return "Apply Failed"
	case ReasonBackup:
		return "Backup Failed"
	case ReasonWrite:
		return "Write Failed"
	case ReasonReadBack:
		return "Read-back Failed"
	case ReasonDigestMismatch:
		return "Digest Mismatch"
	case ReasonSectionMismatch:
		return "Section Mismatch"
	default:
		return fmt.Sprintf("BuildReason(%d)", int(r))
	}
}

// BuildError is returned by BuildAndVerify. Path is set once an output file
// has been created, so a failed verification can be inspected.
type BuildError struct {
	Reason BuildReason
	Path   string
	Err    error
}

func (e *BuildError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("build failed (%s) for %s: %v", e.Reason, e.Path, e.Err)
	}
	return fmt.Sprintf("build failed (%s): %v", e.Reason, e.Err)
}

func (e *BuildError) Unwrap() error {
	return e.Err
}

// IsBuildError reports whether err is a BuildError with the given reason.
func IsBuildError(err error, reason BuildReason) bool {
	var be *BuildError
	return errors.As(err, &be) && be.Reason == reason
}
