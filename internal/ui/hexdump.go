package ui

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
)

// HexdumpWidth is the number of bytes per hexdump row.
const HexdumpWidth = 16

var markColor = color.New(color.FgRed, color.Bold)

// Hexdump renders data as offset, hex and ASCII columns. Bytes whose mark is
// set are highlighted. offset is the address of data[0] in the image.
func Hexdump(offset int, data []byte, mark []bool) string {
	var b strings.Builder

	for row := 0; row < len(data); row += HexdumpWidth {
		end := row + HexdumpWidth
		if end > len(data) {
			end = len(data)
		}

		var hex, ascii strings.Builder
		for i := 0; i < HexdumpWidth; i++ {
			idx := row + i
			if idx >= end {
				hex.WriteString("   ")
				ascii.WriteByte(' ')
			} else {
				c := data[idx]
				marked := idx < len(mark) && mark[idx]

				h := fmt.Sprintf("%02x ", c)
				if c < 32 || c > 126 {
					c = '.'
				}
				a := string(rune(c))

				if marked {
					h = markColor.Sprint(h)
					a = markColor.Sprint(a)
				}
				hex.WriteString(h)
				ascii.WriteString(a)
			}
			if i%8 == 7 {
				hex.WriteByte(' ')
			}
		}

		fmt.Fprintf(&b, "%08x  %s|%s|\n", offset+row, hex.String(), ascii.String())
	}

	return b.String()
}

// DiffMarks marks every position where a and b differ. Positions past the
// end of the shorter slice are marked.
func DiffMarks(a, b []byte) []bool {
	n := len(a)
	if len(b) > n {
		n = len(b)
	}
	mark := make([]bool, n)
	for i := range mark {
		mark[i] = i >= len(a) || i >= len(b) || a[i] != b[i]
	}
	return mark
}

// ByteRange is a half-open [Start, End) span of differing bytes.
type ByteRange struct {
	Start int
	End   int
}

// Len returns the span length
func (r ByteRange) Len() int {
	return r.End - r.Start
}

// DiffRanges groups differing positions into spans. Spans separated by fewer
// than gap equal bytes are merged.
func DiffRanges(a, b []byte, gap int) []ByteRange {
	var ranges []ByteRange
	for i, m := range DiffMarks(a, b) {
		if !m {
			continue
		}
		if n := len(ranges); n > 0 && i-ranges[n-1].End < gap {
			ranges[n-1].End = i + 1
			continue
		}
		ranges = append(ranges, ByteRange{Start: i, End: i + 1})
	}
	return ranges
}
