package firmware

import "fmt"

// Reference image size limits.
const (
	MinImageSize int64 = 0x100000  // 1 MiB
	MaxImageSize int64 = 0x2000000 // 32 MiB
)

// SizeRelation describes where a length falls relative to the nearest
// valid image size.
type SizeRelation int

const (
	SizeExact SizeRelation = iota
	SizeBelow
	SizeAbove
)

func (r SizeRelation) String() string {
	switch r {
	case SizeExact:
		return "exact"
	case SizeBelow:
		return "too small"
	case SizeAbove:
		return "too large"
	default:
		return fmt.Sprintf("SizeRelation(%d)", int(r))
	}
}

// SizeClass is the result of ClassifySize.
type SizeClass struct {
	Size       int64
	Nearest    int64
	Relation   SizeRelation
	Difference int64
}

// Exact reports whether the size is a member of the doubling sequence.
func (c SizeClass) Exact() bool {
	return c.Relation == SizeExact
}

// String renders "Valid", "<N" or ">N".
func (c SizeClass) String() string {
	switch c.Relation {
	case SizeBelow:
		return fmt.Sprintf("<%d", c.Difference)
	case SizeAbove:
		return fmt.Sprintf(">%d", c.Difference)
	default:
		return "Valid"
	}
}

// ClassifySize finds the member of min, 2*min, 4*min ... max nearest to size.
// The walk starts at min and doubles while the next member is strictly
// closer, so an equidistant pair resolves to the smaller member.
func ClassifySize(size, min, max int64) SizeClass {
	if min <= 0 {
		return SizeClass{Size: size, Relation: SizeAbove, Difference: size}
	}

	nearest := min
	diff := absDiff(size, nearest)

	for nearest*2 <= max {
		next := nearest * 2
		nextDiff := absDiff(size, next)
		if nextDiff >= diff {
			break
		}
		nearest, diff = next, nextDiff
	}

	class := SizeClass{Size: size, Nearest: nearest, Difference: diff}
	switch {
	case size < nearest:
		class.Relation = SizeBelow
	case size > nearest:
		class.Relation = SizeAbove
	default:
		class.Relation = SizeExact
	}
	return class
}

// IsValidSize reports whether size is exactly one of min, 2*min ... max.
func IsValidSize(size, min, max int64) bool {
	if min <= 0 {
		return false
	}
	for expected := min; expected <= max; expected *= 2 {
		if size == expected {
			return true
		}
	}
	return false
}

func absDiff(a, b int64) int64 {
	if a > b {
		return a - b
	}
	return b - a
}
