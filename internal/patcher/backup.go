package patcher

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/zip"
)

// TimestampLayout is used in build and backup file names (yyMMdd_HHmmss).
const TimestampLayout = "060102_150405"

// BackupOriginal archives the original image into a zip file in dir and
// returns the archive path. name is the original file name stored inside the
// archive.
func BackupOriginal(original []byte, name, dir string, now time.Time) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create backup directory: %w", err)
	}

	if name == "" {
		name = "image.bin"
	}
	base := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	path := filepath.Join(dir, fmt.Sprintf("%s_%s.zip", base, now.Format(TimestampLayout)))

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return "", fmt.Errorf("failed to create backup: %w", err)
	}

	if err := writeZip(f, filepath.Base(name), original, now); err != nil {
		_ = f.Close()
		return path, err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return path, fmt.Errorf("failed to sync backup: %w", err)
	}
	if err := f.Close(); err != nil {
		return path, fmt.Errorf("failed to close backup: %w", err)
	}
	return path, nil
}

func writeZip(f *os.File, name string, data []byte, now time.Time) error {
	zw := zip.NewWriter(f)

	w, err := zw.CreateHeader(&zip.FileHeader{
		Name:     name,
		Method:   zip.Deflate,
		Modified: now,
	})
	if err != nil {
		return fmt.Errorf("failed to add %s to backup: %w", name, err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write backup data: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("failed to finish backup archive: %w", err)
	}
	return nil
}

// ReadBackup returns the contents of the single image stored in a backup zip.
func ReadBackup(path string) ([]byte, string, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to open backup: %w", err)
	}
	defer zr.Close()

	if len(zr.File) != 1 {
		return nil, "", fmt.Errorf("backup %s holds %d entries, expected 1", path, len(zr.File))
	}

	entry := zr.File[0]
	rc, err := entry.Open()
	if err != nil {
		return nil, "", fmt.Errorf("failed to open %s in backup: %w", entry.Name, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read %s from backup: %w", entry.Name, err)
	}
	return data, entry.Name, nil
}
