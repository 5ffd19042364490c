package firmware_test

import (
	"bytes"
	"testing"

	"github.com/muurk/mefit/internal/firmware"
	"github.com/muurk/mefit/internal/firmware/firmwaretest"
)

func TestExtractFsys(t *testing.T) {
	store := firmwaretest.FsysStore("C02ABCDEFGHJ", "Z0RT001LL/A")
	image := firmwaretest.IntelImage(0x100000, 0x3A000, store)

	section, ok := firmware.ExtractFsys(image)
	if !ok {
		t.Fatal("ExtractFsys() did not find the store")
	}

	if section.Offset != 0x3A000 {
		t.Errorf("Offset = 0x%X, want 0x3A000", section.Offset)
	}
	if section.Size != firmware.FsysStoreSize {
		t.Errorf("Size = 0x%X, want 0x800", section.Size)
	}
	if section.Serial.Value != "C02ABCDEFGHJ" || !section.Serial.Valid {
		t.Errorf("Serial = %+v, want C02ABCDEFGHJ", section.Serial)
	}
	if section.HWC.Value != "FGHJ" {
		t.Errorf("HWC = %q, want FGHJ", section.HWC.Value)
	}
	if section.SON.Value != "Z0RT001LL/A" {
		t.Errorf("SON = %q, want Z0RT001LL/A", section.SON.Value)
	}
	if !section.CRCMatches() {
		t.Errorf("CRC mismatch: stored %s computed %s", section.StoredCRC, section.ComputedCRC)
	}
	if !bytes.Equal(section.Store, store) {
		t.Error("Store bytes differ from the source region")
	}
	if got := section.Store[section.SerialBase : section.SerialBase+12]; string(got) != "C02ABCDEFGHJ" {
		t.Errorf("SerialBase points at %q", got)
	}
}

func TestExtractFsys_CorruptedCRCIsReportedNotFatal(t *testing.T) {
	store := firmwaretest.CorruptCRC(firmwaretest.FsysStore("C02ABCDEFGHJ", "SON"))
	image := firmwaretest.IntelImage(0x100000, 0x1000, store)

	section, ok := firmware.ExtractFsys(image)
	if !ok {
		t.Fatal("ExtractFsys() did not find the store")
	}
	if section.CRCMatches() {
		t.Error("expected CRC mismatch to be reported")
	}
	if section.HWC.Value != "FGHJ" {
		t.Errorf("HWC = %q, want FGHJ", section.HWC.Value)
	}
}

func TestExtractFsys_NotFound(t *testing.T) {
	image := firmwaretest.IntelImage(0x100000, 0, nil)
	if _, ok := firmware.ExtractFsys(image); ok {
		t.Error("expected missing Fsys to report not found")
	}
}

func TestExtractFsys_TruncatedWindow(t *testing.T) {
	store := firmwaretest.FsysStore("C02ABCDEFGHJ", "SON")
	image := append(bytes.Repeat([]byte{0xFF}, 0x100), store[:0x400]...)

	if _, ok := firmware.ExtractFsys(image); ok {
		t.Error("expected a store running past the image end to report not found")
	}
}

func TestExtractFsys_DoesNotAlias(t *testing.T) {
	image := firmwaretest.IntelImage(0x100000, 0x2000, firmwaretest.FsysStore("C02ABCDEFGHJ", "SON"))
	section, _ := firmware.ExtractFsys(image)

	for i := range image {
		image[i] = 0
	}
	if string(section.Store[:4]) != "Fsys" {
		t.Error("section store aliases the image buffer")
	}
}

func TestParseFsysStore(t *testing.T) {
	store := firmwaretest.FsysStore("C02XK0AAJGH5", "SON")

	tests := []struct {
		name   string
		input  []byte
		wantOK bool
	}{
		{name: "valid donor", input: store, wantOK: true},
		{name: "short", input: store[:0x7FF], wantOK: false},
		{name: "long", input: append(bytes.Clone(store), 0), wantOK: false},
		{name: "misaligned signature", input: append([]byte{0}, store[:0x7FF]...), wantOK: false},
		{name: "no signature", input: make([]byte, firmware.FsysStoreSize), wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := firmware.ParseFsysStore(tt.input)
			if ok != tt.wantOK {
				t.Errorf("ParseFsysStore() ok = %v, want %v", ok, tt.wantOK)
			}
		})
	}
}

func TestFsysSerialLengths(t *testing.T) {
	tests := []struct {
		serial    string
		wantValid bool
		wantHWC   string
	}{
		{serial: "W8812345Z5V", wantValid: true, wantHWC: "Z5V"},
		{serial: "C02ABCDEFGHJ", wantValid: true, wantHWC: "FGHJ"},
		{serial: "SHORT", wantValid: false},
		{serial: "C02ABCDEFGHJKL", wantValid: false},
	}

	for _, tt := range tests {
		t.Run(tt.serial, func(t *testing.T) {
			section, ok := firmware.ParseFsysStore(firmwaretest.FsysStore(tt.serial, "SON"))
			if !ok {
				t.Fatal("ParseFsysStore() failed")
			}
			if section.Serial.Valid != tt.wantValid {
				t.Fatalf("Serial.Valid = %v, want %v", section.Serial.Valid, tt.wantValid)
			}
			if section.HWC.Value != tt.wantHWC || section.HWC.Valid != tt.wantValid {
				t.Errorf("HWC = %+v, want %q", section.HWC, tt.wantHWC)
			}
		})
	}
}

func TestHWCFromSerial(t *testing.T) {
	tests := []struct {
		serial string
		want   firmware.Text
	}{
		{"ABCDEFGHIJK", firmware.NewText("IJK")},
		{"ABCDEFGHIJKL", firmware.NewText("IJKL")},
		{"ABCDEFGHIJ", firmware.Text{}},
		{"ABCDEFGHIJKLM", firmware.Text{}},
		{"", firmware.Text{}},
	}

	for _, tt := range tests {
		if got := firmware.HWCFromSerial(tt.serial); got != tt.want {
			t.Errorf("HWCFromSerial(%q) = %+v, want %+v", tt.serial, got, tt.want)
		}
	}
}

func TestStoredFsysCRC(t *testing.T) {
	store := make([]byte, firmware.FsysStoreSize)
	store[0x7FC], store[0x7FD], store[0x7FE], store[0x7FF] = 0x78, 0x56, 0x34, 0x12

	if got := firmware.StoredFsysCRC(store); got != "12345678" {
		t.Errorf("StoredFsysCRC() = %s, want 12345678", got)
	}
	if got := firmware.StoredFsysCRC(store[:0x7FE]); got != "" {
		t.Errorf("StoredFsysCRC() on short store = %q, want empty", got)
	}
}
