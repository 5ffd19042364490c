// Package rom loads a ROM file into a caller-owned Image: file info,
// validation outcome, decoded stores and model lookup in one value that is
// threaded through later operations.
package rom

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/mefit/internal/binscan"
	"github.com/muurk/mefit/internal/firmware"
	"github.com/muurk/mefit/internal/logging"
	"github.com/muurk/mefit/internal/validation"
)

// Options controls how an image is loaded.
type Options struct {
	Validation validation.Options

	// Catalog resolves HWC codes to models. Defaults to the embedded catalog.
	Catalog *firmware.Catalog
}

// DefaultOptions returns loading options with every validation check enabled.
func DefaultOptions() Options {
	return Options{Validation: validation.DefaultOptions()}
}

// Image is a loaded ROM. Data is owned by the Image and must be treated as
// read-only; patches produce new buffers.
type Image struct {
	Path   string
	Data   []byte
	Info   firmware.FileInfo
	Family firmware.Family
	Size   firmware.SizeClass

	Fsys    *firmware.FsysSection
	SCfg    *firmware.SCfgSection
	IBoot   firmware.Text
	BoardID firmware.Text
	Model   *firmware.Model

	Warnings  []string
	ParseTime time.Duration
}

// Open reads and validates path. I/O problems are returned as an error. A
// validation failure is not an error: the Image carries file info but no
// store records, and the Result explains why.
func Open(path string, opts Options) (*Image, *validation.Result, error) {
	data, info, err := firmware.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}

	img, result := Load(data, info, opts)
	return img, result, nil
}

// Load builds an Image from bytes already in memory.
func Load(data []byte, info firmware.FileInfo, opts Options) (*Image, *validation.Result) {
	start := time.Now()

	result := validation.Validate(data, opts.Validation)
	img := &Image{
		Path:   info.Path,
		Data:   data,
		Info:   info,
		Family: result.Family,
		Size:   result.Size,
	}

	logging.Debug("Validated image",
		zap.String("path", info.Path),
		zap.Int("length", info.Length),
		zap.String("crc32", info.CRC32Hex()),
		zap.Stringer("family", result.Family),
		zap.Stringer("reason", result.Reason),
	)

	if !result.Valid() {
		img.ParseTime = time.Since(start)
		return img, result
	}

	img.Fsys = result.Fsys
	img.SCfg = result.SCfg
	if img.Family == firmware.FamilyT2 || img.SCfg != nil {
		img.IBoot = firmware.IBootVersion(data)
	}
	img.BoardID = firmware.BoardID(data)

	catalog := opts.Catalog
	if catalog == nil {
		var err error
		if catalog, err = firmware.LoadCatalog(); err != nil {
			logging.Warn("Failed to load model catalog", zap.Error(err))
		}
	}
	img.Model = lookupModel(catalog, img.HWC())
	img.Warnings = collectWarnings(img, catalog)
	img.ParseTime = time.Since(start)

	for _, w := range img.Warnings {
		logging.Warn("Image warning", zap.String("path", info.Path), zap.String("warning", w))
	}
	return img, result
}

// Serial returns the serial from whichever store the image carries.
func (img *Image) Serial() firmware.Text {
	switch {
	case img.Fsys != nil && img.Fsys.Serial.Valid:
		return img.Fsys.Serial
	case img.SCfg != nil:
		return img.SCfg.Serial
	default:
		return firmware.Text{}
	}
}

// HWC returns the hardware configuration code from whichever store the image carries.
func (img *Image) HWC() firmware.Text {
	switch {
	case img.Fsys != nil && img.Fsys.HWC.Valid:
		return img.Fsys.HWC
	case img.SCfg != nil:
		return img.SCfg.HWC
	default:
		return firmware.Text{}
	}
}

// SON returns the system order number from whichever store the image carries.
func (img *Image) SON() firmware.Text {
	switch {
	case img.Fsys != nil && img.Fsys.SON.Valid:
		return img.Fsys.SON
	case img.SCfg != nil:
		return img.SCfg.SON
	default:
		return firmware.Text{}
	}
}

// ExportFsys returns a copy of the image's Fsys store.
func (img *Image) ExportFsys() ([]byte, error) {
	if img.Fsys == nil {
		return nil, fmt.Errorf("%s has no Fsys store", img.Info.Name)
	}
	out := make([]byte, len(img.Fsys.Store))
	copy(out, img.Fsys.Store)
	return out, nil
}

// ExportSCfg returns a copy of the image's SCfg store.
func (img *Image) ExportSCfg() ([]byte, error) {
	if img.SCfg == nil {
		return nil, fmt.Errorf("%s has no SCfg store", img.Info.Name)
	}
	out := make([]byte, len(img.SCfg.Store))
	copy(out, img.SCfg.Store)
	return out, nil
}

func lookupModel(c *firmware.Catalog, hwc firmware.Text) *firmware.Model {
	if c == nil || !hwc.Valid {
		return nil
	}
	m, ok := c.Model(hwc)
	if !ok {
		return nil
	}
	return m
}

// layoutDeviations compares a decoded store with its catalog layout.
func layoutDeviations(c *firmware.Catalog, store string, base, size int) []string {
	if c == nil {
		return nil
	}
	layout, ok := c.Layout(store)
	if !ok {
		return nil
	}
	return layout.Deviations(base, size)
}

func collectWarnings(img *Image, catalog *firmware.Catalog) []string {
	var warnings []string

	if !img.Size.Exact() {
		warnings = append(warnings, fmt.Sprintf("image size %d is %s from the nearest flash size of %d bytes",
			img.Size.Size, img.Size, img.Size.Nearest))
	}

	if img.Fsys != nil {
		warnings = append(warnings, layoutDeviations(catalog, "fsys", img.Fsys.Offset, img.Fsys.Size)...)
		if !img.Fsys.CRCMatches() {
			warnings = append(warnings, fmt.Sprintf("Fsys CRC mismatch: stored %s, computed %s",
				img.Fsys.StoredCRC, img.Fsys.ComputedCRC))
		}
		if n := len(binscan.FindAll(img.Data, firmware.FsysSig)); n > 1 {
			warnings = append(warnings, fmt.Sprintf("found %d Fsys signatures; using the first at 0x%X", n, img.Fsys.Offset))
		}
		if !img.Fsys.Serial.Valid {
			warnings = append(warnings, "Fsys store has no readable serial")
		}
	}

	if img.SCfg != nil {
		warnings = append(warnings, layoutDeviations(catalog, "scfg", img.SCfg.Base, img.SCfg.Size)...)
		if !img.SCfg.Serial.Valid {
			warnings = append(warnings, "SCfg store has no readable serial")
		}
	}

	return warnings
}
