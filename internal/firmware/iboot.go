package firmware

import "github.com/muurk/mefit/internal/binscan"

// IBootVersionSig ("illb") marks the iBoot version block in T2 SOCROM
// dumps. The byte at sig+5 holds the version string length and the string
// itself starts at sig+6.
var IBootVersionSig = []byte{0x69, 0x6C, 0x6C, 0x62}

const (
	ibootLengthOffset = 5
	ibootStringOffset = 6
)

// IBootVersion returns the iBoot version string embedded in a SOCROM image.
func IBootVersion(image []byte) Text {
	pos, ok := binscan.Find(image, IBootVersionSig, 0)
	if !ok {
		return Text{}
	}

	lenByte, ok := binscan.SliceFixedLength(image, pos+ibootLengthOffset, 1)
	if !ok || lenByte[0] == 0 {
		return Text{}
	}

	data, ok := binscan.SliceFixedLength(image, pos+ibootStringOffset, int(lenByte[0]))
	if !ok {
		return Text{}
	}
	return NewText(string(data))
}
