package firmware

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/muurk/mefit/internal/checksum"
)

func TestReadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "MBP151.rom")
	data := []byte("123456789")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}

	got, info, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if string(got) != "123456789" {
		t.Errorf("data = %q", got)
	}
	if info.Name != "MBP151.rom" || info.NameNoExt != "MBP151" {
		t.Errorf("names = %q / %q", info.Name, info.NameNoExt)
	}
	if info.Length != len(data) {
		t.Errorf("Length = %d, want %d", info.Length, len(data))
	}
	if info.CRC32Hex() != "CBF43926" {
		t.Errorf("CRC32Hex() = %s, want CBF43926", info.CRC32Hex())
	}
	if info.CRC32 != checksum.CRC32(data) {
		t.Error("CRC32 does not match checksum.CRC32")
	}
	if !info.Created.IsZero() || info.CreatedText() != "N/A" {
		t.Errorf("Created = %v (%s), want unknown", info.Created, info.CreatedText())
	}
}

func TestReadFile_Errors(t *testing.T) {
	dir := t.TempDir()

	if _, _, err := ReadFile(filepath.Join(dir, "missing.rom")); err == nil {
		t.Error("expected error for missing file")
	}
	if _, _, err := ReadFile(dir); err == nil {
		t.Error("expected error for directory")
	}
}
