package firmware

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ccoveille/go-safecast"

	"github.com/muurk/mefit/internal/checksum"
)

// FileInfo describes a loaded ROM file. It is derived once per load.
type FileInfo struct {
	Path      string
	Name      string // Base name with extension
	NameNoExt string
	Modified  time.Time
	Length    int
	CRC32     uint32

	// Created is always zero: os.FileInfo carries no portable birth time.
	// Display code renders it as "N/A".
	Created time.Time
}

// CreatedText returns the creation time, or "N/A" when unknown.
func (f FileInfo) CreatedText() string {
	if f.Created.IsZero() {
		return "N/A"
	}
	return f.Created.Format(TimeLayout)
}

// TimeLayout formats file timestamps for display.
const TimeLayout = "2006-01-02 15:04:05"

// CRC32Hex returns the whole-file CRC as 8 hex digits.
func (f FileInfo) CRC32Hex() string {
	return checksum.FormatCRC32(f.CRC32)
}

// NewFileInfo builds a FileInfo from stat data and the file contents.
func NewFileInfo(path string, stat os.FileInfo, data []byte) (FileInfo, error) {
	length, err := safecast.ToInt(stat.Size())
	if err != nil {
		return FileInfo{}, fmt.Errorf("file %s is too large: %w", path, err)
	}

	name := filepath.Base(path)
	return FileInfo{
		Path:      path,
		Name:      name,
		NameNoExt: strings.TrimSuffix(name, filepath.Ext(name)),
		Modified:  stat.ModTime(),
		Length:    length,
		CRC32:     checksum.CRC32(data),
	}, nil
}

// ReadFile reads a ROM file and returns its contents with its FileInfo.
func ReadFile(path string) ([]byte, FileInfo, error) {
	stat, err := os.Stat(path)
	if err != nil {
		return nil, FileInfo{}, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if stat.IsDir() {
		return nil, FileInfo{}, fmt.Errorf("%s is a directory", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, FileInfo{}, fmt.Errorf("failed to read %s: %w", path, err)
	}

	info, err := NewFileInfo(path, stat, data)
	if err != nil {
		return nil, FileInfo{}, err
	}
	return data, info, nil
}
