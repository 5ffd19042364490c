// Package binscan locates byte signatures inside firmware buffers and
// extracts bounds-checked slices from them.
//
// Absence is never an error here. Every lookup returns an ok flag so callers
// can tell "not present" apart from a real failure further up the stack.
// Returned slices are always copies; nothing returned aliases the input.
package binscan

import "bytes"

// Find returns the index of the first occurrence of needle at or after
// start. An empty needle, a start beyond the buffer, or a needle longer than
// the remaining bytes all report not found.
func Find(haystack, needle []byte, start int) (int, bool) {
	if len(needle) == 0 || start >= len(haystack) {
		return -1, false
	}
	if start < 0 {
		start = 0
	}
	if len(needle) > len(haystack)-start {
		return -1, false
	}

	idx := bytes.Index(haystack[start:], needle)
	if idx < 0 {
		return -1, false
	}
	return start + idx, true
}

// FindAll returns every non-overlapping offset of needle in haystack.
func FindAll(haystack, needle []byte) []int {
	var offsets []int
	pos := 0
	for {
		idx, ok := Find(haystack, needle, pos)
		if !ok {
			return offsets
		}
		offsets = append(offsets, idx)
		pos = idx + len(needle)
	}
}

// SliceFixedLength returns a copy of buf[offset:offset+length]. It reports
// false instead of panicking when the range falls outside the buffer.
func SliceFixedLength(buf []byte, offset, length int) ([]byte, bool) {
	if offset < 0 || length < 0 || offset > len(buf) || length > len(buf)-offset {
		return nil, false
	}

	out := make([]byte, length)
	copy(out, buf[offset:offset+length])
	return out, true
}

// SliceUntilSentinel returns a copy of the bytes from start up to, but not
// including, the first occurrence of sentinel at or after start.
func SliceUntilSentinel(buf []byte, start int, sentinel []byte) ([]byte, bool) {
	end, ok := Find(buf, sentinel, start)
	if !ok || start < 0 {
		return nil, false
	}
	return SliceFixedLength(buf, start, end-start)
}

// BytesEqual reports whether a and b have the same length and contents.
func BytesEqual(a, b []byte) bool {
	return len(a) == len(b) && bytes.Equal(a, b)
}
