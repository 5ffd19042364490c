package validation

import (
	"strings"
	"testing"

	"github.com/muurk/mefit/internal/firmware"
	"github.com/muurk/mefit/internal/firmware/firmwaretest"
)

func intelImage() []byte {
	return firmwaretest.IntelImage(0x200000, 0x3A000, firmwaretest.FsysStore("C02ABCDEFGHJ", "Z0RT"))
}

func t2Image() []byte {
	store := firmwaretest.SCfgStore("C02ZX1Y2MD6T", "Z0YV", "REG1")
	return firmwaretest.T2Image(0x400000, firmware.SCfgExpectedBase, store, "iBoot-7429.61.2")
}

func TestValidate(t *testing.T) {
	noSig := intelImage()
	copy(noSig[firmware.FlashDescriptorOffset:], []byte{0, 0, 0, 0})

	noFsys := firmwaretest.IntelImage(0x200000, 0, nil)

	tests := []struct {
		name       string
		image      []byte
		opts       func(*Options)
		wantReason Reason
		wantFamily firmware.Family
		verify     func(*testing.T, *Result)
	}{
		{
			name:       "valid intel",
			image:      intelImage(),
			wantReason: ReasonNone,
			wantFamily: firmware.FamilyIntel,
			verify: func(t *testing.T, r *Result) {
				if r.Fsys == nil || r.Fsys.HWC.Value != "FGHJ" {
					t.Errorf("Fsys = %+v, want HWC FGHJ", r.Fsys)
				}
				if r.SCfg != nil {
					t.Error("intel image should not carry an SCfg record")
				}
			},
		},
		{
			name:       "valid t2",
			image:      t2Image(),
			wantReason: ReasonNone,
			wantFamily: firmware.FamilyT2,
			verify: func(t *testing.T, r *Result) {
				if r.SCfg == nil || r.SCfg.Serial.Value != "C02ZX1Y2MD6T" {
					t.Errorf("SCfg = %+v", r.SCfg)
				}
				if r.Fsys != nil {
					t.Error("t2 image should not carry an Fsys record")
				}
			},
		},
		{
			name:       "too small",
			image:      make([]byte, firmware.MinImageSize-1),
			wantReason: ReasonSizeTooSmall,
			verify: func(t *testing.T, r *Result) {
				if r.Size.String() != "<1" {
					t.Errorf("Size = %s, want <1", r.Size)
				}
			},
		},
		{
			name:       "too large",
			image:      make([]byte, firmware.MaxImageSize+1),
			wantReason: ReasonSizeTooLarge,
		},
		{
			name:       "custom max",
			image:      intelImage(),
			opts:       func(o *Options) { o.MaxSize = 0x100000 },
			wantReason: ReasonSizeTooLarge,
		},
		{
			name:       "missing descriptor",
			image:      noSig,
			wantReason: ReasonBadFlashSignature,
		},
		{
			name:       "missing descriptor with bypass",
			image:      noSig,
			opts:       func(o *Options) { o.EnforceSignature = false },
			wantReason: ReasonNone,
			verify: func(t *testing.T, r *Result) {
				if r.Fsys == nil {
					t.Error("expected Fsys record when signature check is bypassed")
				}
			},
		},
		{
			name:       "forced family mismatch",
			image:      intelImage(),
			opts:       func(o *Options) { o.Family = firmware.FamilyT2 },
			wantReason: ReasonBadFlashSignature,
			wantFamily: firmware.FamilyT2,
		},
		{
			name:       "missing fsys",
			image:      noFsys,
			wantReason: ReasonMissingSection,
			wantFamily: firmware.FamilyIntel,
		},
		{
			name:       "missing fsys allowed",
			image:      noFsys,
			opts:       func(o *Options) { o.EnforceSection = false },
			wantReason: ReasonNone,
			wantFamily: firmware.FamilyIntel,
			verify: func(t *testing.T, r *Result) {
				if r.Fsys != nil || r.SCfg != nil {
					t.Error("expected no section records")
				}
			},
		},
		{
			name:       "corrupt crc still valid",
			image:      firmwaretest.IntelImage(0x100000, 0x1000, firmwaretest.CorruptCRC(firmwaretest.FsysStore("C02ABCDEFGHJ", "SON"))),
			wantReason: ReasonNone,
			wantFamily: firmware.FamilyIntel,
			verify: func(t *testing.T, r *Result) {
				if r.Fsys == nil || r.Fsys.CRCMatches() {
					t.Error("expected CRC mismatch to be flagged on the record")
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := DefaultOptions()
			if tt.opts != nil {
				tt.opts(&opts)
			}

			got := Validate(tt.image, opts)

			if got.Reason != tt.wantReason {
				t.Fatalf("Reason = %v, want %v (%s)", got.Reason, tt.wantReason, got.Message)
			}
			if got.Valid() != (tt.wantReason == ReasonNone) {
				t.Errorf("Valid() = %v", got.Valid())
			}
			if got.Message == "" || got.Message == got.Reason.String() {
				t.Errorf("Message %q should be a readable sentence", got.Message)
			}
			if !got.Valid() && (got.Fsys != nil || got.SCfg != nil) {
				t.Error("failed result must not carry section records")
			}
			if tt.wantFamily != firmware.FamilyUnknown && got.Family != tt.wantFamily {
				t.Errorf("Family = %v, want %v", got.Family, tt.wantFamily)
			}
			if tt.verify != nil {
				tt.verify(t, got)
			}
		})
	}
}

func TestValidate_ZeroLimitsUseDefaults(t *testing.T) {
	got := Validate(intelImage(), Options{EnforceSignature: true, EnforceSection: true})
	if !got.Valid() {
		t.Errorf("Validate() = %v (%s)", got.Reason, got.Message)
	}
}

func TestReasonString(t *testing.T) {
	tests := map[Reason]string{
		ReasonNone:              "Valid",
		ReasonSizeTooSmall:      "SizeTooSmall",
		ReasonSizeTooLarge:      "SizeTooLarge",
		ReasonBadFlashSignature: "BadFlashSignature",
		ReasonMissingSection:    "MissingSection",
		Reason(99):              "Reason(99)",
	}
	for r, want := range tests {
		if got := r.String(); got != want {
			t.Errorf("String() = %q, want %q", got, want)
		}
	}
}

func TestValidateDonorFsys(t *testing.T) {
	good := firmwaretest.FsysStore("C02ABCDEFGHJ", "SON")
	shifted := append([]byte{0xFF}, good[:firmware.FsysStoreSize-1]...)

	tests := []struct {
		name        string
		region      []byte
		wantReason  Reason
		wantMask    bool
		wantMessage string
	}{
		{name: "valid", region: good, wantReason: ReasonNone},
		{name: "crc mismatch", region: firmwaretest.CorruptCRC(good), wantReason: ReasonNone, wantMask: true, wantMessage: "CRC mismatch"},
		{name: "short", region: good[:0x7FF], wantReason: ReasonSizeTooSmall, wantMessage: "2047 bytes"},
		{name: "long", region: append(append([]byte{}, good...), 0), wantReason: ReasonSizeTooLarge},
		{name: "signature shifted", region: shifted, wantReason: ReasonMissingSection, wantMessage: "0x1"},
		{name: "no signature", region: make([]byte, firmware.FsysStoreSize), wantReason: ReasonMissingSection},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ValidateDonorFsys(tt.region)
			if got.Reason != tt.wantReason {
				t.Fatalf("Reason = %v, want %v (%s)", got.Reason, tt.wantReason, got.Message)
			}
			if got.MaskRequired != tt.wantMask {
				t.Errorf("MaskRequired = %v, want %v", got.MaskRequired, tt.wantMask)
			}
			if got.Valid() != (got.Fsys != nil) {
				t.Errorf("Valid() = %v but Fsys = %v", got.Valid(), got.Fsys)
			}
			if tt.wantMessage != "" && !strings.Contains(got.Message, tt.wantMessage) {
				t.Errorf("Message = %q, want it to contain %q", got.Message, tt.wantMessage)
			}
		})
	}
}
