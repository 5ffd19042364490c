package firmware

import (
	"encoding/binary"
	"regexp"

	"github.com/muurk/mefit/internal/binscan"
)

// Descriptor region numbers, in FLREG order.
const (
	RegionDescriptor = 0
	RegionBIOS       = 1
	RegionME         = 2
	RegionGbE        = 3
	RegionPDR        = 4
)

const (
	flashMap0Offset = FlashDescriptorOffset + 4
	flashRegionSize = 0x1000
)

// BoardIDPrefix starts every Apple board identifier.
var BoardIDPrefix = []byte("Mac-")

var boardIDPattern = regexp.MustCompile(`^Mac-([0-9A-F]{16}|[0-9A-F]{8})`)

// Region is a flash region as described by the Intel descriptor. End is
// one past the last byte.
type Region struct {
	Base int
	End  int
}

// Len returns the region length in bytes.
func (r Region) Len() int {
	return r.End - r.Base
}

// DescriptorRegion reads region n from the descriptor's region table. It
// reports false when the image has no descriptor, the region is unused, or
// the region runs past the end of the image.
func DescriptorRegion(image []byte, n int) (Region, bool) {
	if !HasFlashDescriptor(image) || n < 0 {
		return Region{}, false
	}

	flmap0, ok := binscan.SliceFixedLength(image, flashMap0Offset, 4)
	if !ok {
		return Region{}, false
	}
	frba := int(binary.LittleEndian.Uint32(flmap0)>>16&0xFF) << 4

	flreg, ok := binscan.SliceFixedLength(image, frba+4*n, 4)
	if !ok {
		return Region{}, false
	}
	reg := binary.LittleEndian.Uint32(flreg)

	base := int(reg&0x7FFF) * flashRegionSize
	limit := int(reg>>16&0x7FFF)*flashRegionSize + flashRegionSize
	if base >= limit || limit > len(image) {
		return Region{}, false
	}
	return Region{Base: base, End: limit}, true
}

// BoardID returns the Apple board identifier stored in the platform data
// region: "Mac-" followed by 16 (or, on older boards, 8) upper-case hex
// digits. Images without a PDR region report an absent value.
func BoardID(image []byte) Text {
	pdr, ok := DescriptorRegion(image, RegionPDR)
	if !ok {
		return Text{}
	}
	region := image[pdr.Base:pdr.End]

	for _, pos := range binscan.FindAll(region, BoardIDPrefix) {
		if m := boardIDPattern.Find(region[pos:]); m != nil {
			return NewText(string(m))
		}
	}
	return Text{}
}
