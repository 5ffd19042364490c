package rom

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/muurk/mefit/internal/firmware"
	"github.com/muurk/mefit/internal/firmware/firmwaretest"
	"github.com/muurk/mefit/internal/validation"
)

func writeROM(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestOpen_Intel(t *testing.T) {
	data := firmwaretest.IntelImage(0x800000, 0x3A000, firmwaretest.FsysStore("C02ABCDEFGHJ", "Z0RT"))
	path := writeROM(t, "MBP151.rom", data)

	img, result, err := Open(path, DefaultOptions())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if !result.Valid() {
		t.Fatalf("result = %v: %s", result.Reason, result.Message)
	}

	if img.Family != firmware.FamilyIntel {
		t.Errorf("Family = %v", img.Family)
	}
	if img.Info.Name != "MBP151.rom" || img.Info.Length != len(data) {
		t.Errorf("Info = %+v", img.Info)
	}
	if img.Serial().Value != "C02ABCDEFGHJ" || img.HWC().Value != "FGHJ" || img.SON().Value != "Z0RT" {
		t.Errorf("identity = %s / %s / %s", img.Serial(), img.HWC(), img.SON())
	}
	if img.IBoot.Valid {
		t.Error("Intel image should not report an iBoot version")
	}
	if len(img.Warnings) != 0 {
		t.Errorf("Warnings = %v", img.Warnings)
	}

	store, err := img.ExportFsys()
	if err != nil {
		t.Fatal(err)
	}
	store[0] = 'X'
	if img.Fsys.Store[0] != 'F' {
		t.Error("ExportFsys returned an alias")
	}
	if _, err := img.ExportSCfg(); err == nil {
		t.Error("expected ExportSCfg to fail on an Intel image")
	}
}

func TestOpen_T2(t *testing.T) {
	store := firmwaretest.SCfgStore("C02ZX1Y2MD6T", "Z0YV", "REG1")
	data := firmwaretest.T2Image(0x400000, firmware.SCfgExpectedBase, store, "iBoot-7429.61.2")
	path := writeROM(t, "socrom.bin", data)

	img, result, err := Open(path, DefaultOptions())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if !result.Valid() {
		t.Fatalf("result = %v: %s", result.Reason, result.Message)
	}
	if img.Family != firmware.FamilyT2 {
		t.Errorf("Family = %v", img.Family)
	}
	if img.IBoot.Value != "iBoot-7429.61.2" {
		t.Errorf("IBoot = %s", img.IBoot)
	}
	if img.Serial().Value != "C02ZX1Y2MD6T" || img.HWC().Value != "MD6T" {
		t.Errorf("identity = %s / %s", img.Serial(), img.HWC())
	}
}

func TestOpen_Warnings(t *testing.T) {
	store := firmwaretest.CorruptCRC(firmwaretest.FsysStore("C02ABCDEFGHJ", "SON"))
	data := firmwaretest.IntelImage(0x100000, 0x1000, store)
	copy(data[0x9000:], firmwaretest.FsysStore("C02ABCDEFGHJ", "SON"))
	data = append(data, make([]byte, 0x200)...)

	opts := DefaultOptions()

	img, result := Load(data, firmware.FileInfo{Name: "dump.bin", Length: len(data)}, opts)
	if !result.Valid() {
		t.Fatalf("result = %v", result.Reason)
	}

	joined := strings.Join(img.Warnings, "\n")
	for _, want := range []string{"CRC mismatch", "2 Fsys signatures", ">512"} {
		if !strings.Contains(joined, want) {
			t.Errorf("Warnings missing %q:\n%s", want, joined)
		}
	}
}

func TestLoad_BoardID(t *testing.T) {
	data := firmwaretest.IntelImage(0x100000, 0x3A000, firmwaretest.FsysStore("C02ABCDEFGHJ", "SON"))

	img, _ := Load(firmwaretest.WithBoardID(data, "Mac-06F11FD93F0323C5"), firmware.FileInfo{Name: "a.rom"}, DefaultOptions())
	if img.BoardID.Value != "Mac-06F11FD93F0323C5" {
		t.Errorf("BoardID = %s", img.BoardID)
	}

	img, _ = Load(data, firmware.FileInfo{Name: "b.rom"}, DefaultOptions())
	if img.BoardID.Valid {
		t.Errorf("BoardID = %s, want absent", img.BoardID)
	}
}

func TestLoad_LayoutWarnings(t *testing.T) {
	const base = 0x300000
	store := firmwaretest.SCfgStore("C02ZX1Y2MD6T", "Z0YV", "REG1")
	data := firmwaretest.T2Image(0x400000, base, store, "iBoot")

	img, _ := Load(data, firmware.FileInfo{Name: "moved.bin"}, DefaultOptions())
	joined := strings.Join(img.Warnings, "\n")
	if !strings.Contains(joined, "T2 SCfg store at 0x300000, expected 0x28A000") {
		t.Errorf("Warnings = %v, want a base deviation from the embedded layout", img.Warnings)
	}

	catalogPath := filepath.Join(t.TempDir(), "layouts.yaml")
	content := `layouts:
  - family: t2
    store: scfg
    name: "Board SCfg store"
    signature: "gfCS"
    expected_base: 0x300000
    size: 0xC0
`
	if err := os.WriteFile(catalogPath, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	c, err := firmware.LoadCatalogWithModels(catalogPath)
	if err != nil {
		t.Fatal(err)
	}
	opts := DefaultOptions()
	opts.Catalog = c

	img, _ = Load(data, firmware.FileInfo{Name: "moved.bin"}, opts)
	joined = strings.Join(img.Warnings, "\n")
	if !strings.Contains(joined, "Board SCfg store spans 0xB8 bytes, expected 0xC0") {
		t.Errorf("Warnings = %v, want user layout applied", img.Warnings)
	}
	if strings.Contains(joined, "at 0x300000") {
		t.Errorf("Warnings = %v, base now matches the user layout", img.Warnings)
	}
}

func TestOpen_Invalid(t *testing.T) {
	path := writeROM(t, "tiny.bin", make([]byte, 0x1000))

	img, result, err := Open(path, DefaultOptions())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if result.Reason != validation.ReasonSizeTooSmall {
		t.Errorf("Reason = %v", result.Reason)
	}
	if img == nil || img.Info.Length != 0x1000 {
		t.Fatal("invalid image should still carry file info")
	}
	if img.Fsys != nil || img.SCfg != nil {
		t.Error("invalid image must not carry store records")
	}
}

func TestOpen_MissingFile(t *testing.T) {
	if _, _, err := Open(filepath.Join(t.TempDir(), "missing.rom"), DefaultOptions()); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoad_ModelLookup(t *testing.T) {
	catalogPath := filepath.Join(t.TempDir(), "models.yaml")
	if err := os.WriteFile(catalogPath, []byte("models:\n  - hwc: FGHJ\n    name: Bench board\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	c, err := firmware.LoadCatalogWithModels(catalogPath)
	if err != nil {
		t.Fatal(err)
	}

	data := firmwaretest.IntelImage(0x100000, 0x1000, firmwaretest.FsysStore("C02ABCDEFGHJ", "SON"))
	opts := DefaultOptions()
	opts.Catalog = c

	img, _ := Load(data, firmware.FileInfo{Name: "a.rom"}, opts)
	if img.Model == nil || img.Model.Name != "Bench board" {
		t.Errorf("Model = %+v", img.Model)
	}
}
