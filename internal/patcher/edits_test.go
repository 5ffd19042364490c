package patcher

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/muurk/mefit/internal/firmware"
	"github.com/muurk/mefit/internal/firmware/firmwaretest"
)

const fsysOffset = 0x3A000

func intelImage(store []byte) []byte {
	return firmwaretest.IntelImage(0x100000, fsysOffset, store)
}

func TestFsysReplacementEdits(t *testing.T) {
	image := intelImage(firmwaretest.FsysStore("C02ABCDEFGHJ", "OLD"))

	tests := []struct {
		name     string
		donor    []byte
		wantErr  bool
		wantMask bool
	}{
		{name: "clean donor", donor: firmwaretest.FsysStore("C02XK0AAJGH5", "NEW")},
		{name: "donor needing mask", donor: firmwaretest.CorruptCRC(firmwaretest.FsysStore("C02XK0AAJGH5", "NEW")), wantMask: true},
		{name: "short donor", donor: make([]byte, 0x10), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			edits, check, err := FsysReplacementEdits(image, tt.donor)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				if check == nil || check.Valid() {
					t.Error("expected an invalid donor result")
				}
				return
			}
			if err != nil {
				t.Fatalf("FsysReplacementEdits() error = %v", err)
			}
			if check.MaskRequired != tt.wantMask {
				t.Errorf("MaskRequired = %v, want %v", check.MaskRequired, tt.wantMask)
			}
			if len(edits) != 1 || edits[0].Offset != fsysOffset || edits[0].Section != SectionFsys {
				t.Fatalf("edits = %+v", edits)
			}

			patched, err := ApplyEdits(image, edits)
			if err != nil {
				t.Fatal(err)
			}
			section, ok := firmware.ExtractFsys(patched)
			if !ok {
				t.Fatal("patched image lost its Fsys store")
			}
			if section.Serial.Value != "C02XK0AAJGH5" || !section.CRCMatches() {
				t.Errorf("patched store = serial %s crc ok %v", section.Serial, section.CRCMatches())
			}
		})
	}
}

func TestFsysReplacementEdits_NoTarget(t *testing.T) {
	_, _, err := FsysReplacementEdits(intelImage(nil), firmwaretest.FsysStore("C02XK0AAJGH5", "NEW"))
	if err == nil {
		t.Error("expected error for image without Fsys")
	}
}

func TestFsysSerialEdits(t *testing.T) {
	image := intelImage(firmwaretest.FsysStore("C02ABCDEFGHJ", "SON"))

	edits, err := FsysSerialEdits(image, "C02ZZZZZMD6T")
	if err != nil {
		t.Fatalf("FsysSerialEdits() error = %v", err)
	}

	patched, err := ApplyEdits(image, edits)
	if err != nil {
		t.Fatal(err)
	}
	section, _ := firmware.ExtractFsys(patched)
	if section.Serial.Value != "C02ZZZZZMD6T" {
		t.Errorf("Serial = %s", section.Serial)
	}
	if section.HWC.Value != "MD6T" {
		t.Errorf("HWC = %s, want MD6T", section.HWC)
	}
	if section.SON.Value != "SON" {
		t.Errorf("SON changed to %s", section.SON)
	}
	if !section.CRCMatches() {
		t.Error("serial edit must re-mask the CRC")
	}

	want := &Expectation{Base: fsysOffset, Serial: firmware.NewText("C02ZZZZZMD6T"), SON: firmware.NewText("SON")}
	if diff := cmp.Diff(want, edits[0].Expect); diff != "" {
		t.Errorf("Expect mismatch (-want +got):\n%s", diff)
	}
}

func TestFsysSerialEdits_Rejects(t *testing.T) {
	image := intelImage(firmwaretest.FsysStore("C02ABCDEFGHJ", "SON"))

	for _, serial := range []string{"C02ABCDEFGH", "C02ABCDEFGHJK", "c02abcdefghj", "C02ABCDEF-HJ"} {
		_, err := FsysSerialEdits(image, serial)
		var se *SerialError
		if !errors.As(err, &se) {
			t.Errorf("FsysSerialEdits(%q) error = %v, want *SerialError", serial, err)
		}
	}

	if _, err := FsysSerialEdits(intelImage(nil), "C02ABCDEFGHJ"); err == nil {
		t.Error("expected error for image without Fsys")
	}
}

func TestSCfgSerialEdits(t *testing.T) {
	store := firmwaretest.SCfgStore("C02ZX1Y2MD6T", "Z0YV", "REG1")
	image := firmwaretest.T2Image(0x400000, firmware.SCfgExpectedBase, store, "iBoot")

	edits, err := SCfgSerialEdits(image, "C02AAAAAQ6L4")
	if err != nil {
		t.Fatalf("SCfgSerialEdits() error = %v", err)
	}
	if edits[0].Offset != firmware.SCfgExpectedBase+12 || edits[0].Section != SectionSCfg {
		t.Errorf("edit = %+v", edits[0])
	}
	if x := edits[0].Expect; x == nil || x.Base != firmware.SCfgExpectedBase || x.Serial.Value != "C02AAAAAQ6L4" {
		t.Errorf("Expect = %+v", edits[0].Expect)
	}

	patched, err := ApplyEdits(image, edits)
	if err != nil {
		t.Fatal(err)
	}
	section := firmware.ExtractSCfg(patched, false)
	if section.Serial.Value != "C02AAAAAQ6L4" || section.HWC.Value != "Q6L4" {
		t.Errorf("patched SCfg = serial %s hwc %s", section.Serial, section.HWC)
	}
	if section.SON.Value != "Z0YV" || section.RegNum.Value != "REG1" {
		t.Error("neighbouring SCfg fields changed")
	}

	if _, err := SCfgSerialEdits(image, "SHORT"); err == nil {
		t.Error("expected error for short serial")
	}
	if _, err := SCfgSerialEdits(intelImage(nil), "C02AAAAAQ6L4"); err == nil {
		t.Error("expected error for image without SCfg")
	}
}

func TestFixFsysCRCEdits(t *testing.T) {
	good := intelImage(firmwaretest.FsysStore("C02ABCDEFGHJ", "SON"))
	if _, err := FixFsysCRCEdits(good); !errors.Is(err, ErrCRCAlreadyValid) {
		t.Errorf("FixFsysCRCEdits() on valid store error = %v, want ErrCRCAlreadyValid", err)
	}

	bad := intelImage(firmwaretest.CorruptCRC(firmwaretest.FsysStore("C02ABCDEFGHJ", "SON")))
	edits, err := FixFsysCRCEdits(bad)
	if err != nil {
		t.Fatalf("FixFsysCRCEdits() error = %v", err)
	}
	if len(edits) != 1 || len(edits[0].Data) != 4 || edits[0].Offset != fsysOffset+firmware.FsysCRCOffset {
		t.Fatalf("edits = %+v", edits)
	}

	fixed, _ := ApplyEdits(bad, edits)
	section, _ := firmware.ExtractFsys(fixed)
	if !section.CRCMatches() {
		t.Error("CRC still mismatched after fix")
	}
}

func TestValidateSerial(t *testing.T) {
	tests := []struct {
		serial  string
		length  int
		wantErr bool
	}{
		{"C02ABCDEFGHJ", 12, false},
		{"W8812345Z5V", 11, false},
		{"W8812345Z5V", 12, true},
		{"C02ABCDEFGhJ", 12, true},
		{"C02ABC EFGHJ", 12, true},
		{"", 0, false},
	}

	for _, tt := range tests {
		err := ValidateSerial(tt.serial, tt.length)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateSerial(%q, %d) error = %v, wantErr %v", tt.serial, tt.length, err, tt.wantErr)
		}
	}
}
