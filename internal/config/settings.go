package config

import (
	"fmt"

	"github.com/muurk/mefit/internal/firmware"
	"github.com/muurk/mefit/internal/validation"
)

// Settings represents the whole configuration file.
type Settings struct {
	Version    int                `yaml:"version"`
	Validation ValidationSettings `yaml:"validation"`
	Paths      PathSettings       `yaml:"paths"`
	Build      BuildSettings      `yaml:"build"`
}

// ValidationSettings mirrors validation.Options.
type ValidationSettings struct {
	Family          string `yaml:"family"`           // auto, intel or t2
	MinSize         int64  `yaml:"min_size"`         // Smallest accepted image
	MaxSize         int64  `yaml:"max_size"`         // Largest accepted image
	CheckDescriptor bool   `yaml:"check_descriptor"` // Require the flash signature
	CheckSection    bool   `yaml:"check_section"`    // Require the Fsys/SCfg store
}

// PathSettings holds output locations. Relative paths resolve against the
// working directory.
type PathSettings struct {
	BuildsDir   string `yaml:"builds_dir"`
	BackupsDir  string `yaml:"backups_dir"`
	CatalogFile string `yaml:"catalog_file,omitempty"` // Extra HWC model entries
}

// BuildSettings controls patch builds.
type BuildSettings struct {
	BackupOriginal bool `yaml:"backup_original"` // Zip the source image before writing
	Confirm        bool `yaml:"confirm"`         // Ask before writing a patched image
}

// NewSettings returns the defaults used when no file exists.
func NewSettings() *Settings {
	return &Settings{
		Version: 1,
		Validation: ValidationSettings{
			Family:          "auto",
			MinSize:         firmware.MinImageSize,
			MaxSize:         firmware.MaxImageSize,
			CheckDescriptor: true,
			CheckSection:    true,
		},
		Paths: PathSettings{
			BuildsDir:  "builds",
			BackupsDir: "backups",
		},
		Build: BuildSettings{
			BackupOriginal: true,
			Confirm:        true,
		},
	}
}

// Validate checks values that would make the pipeline misbehave.
func (s *Settings) Validate() error {
	if s.Version != 1 {
		return fmt.Errorf("unsupported config version: %d (expected 1)", s.Version)
	}
	if _, ok := firmware.ParseFamily(s.Validation.Family); !ok {
		return fmt.Errorf("unknown validation.family %q (want auto, intel or t2)", s.Validation.Family)
	}
	if s.Validation.MinSize <= 0 {
		return fmt.Errorf("validation.min_size must be positive, got %d", s.Validation.MinSize)
	}
	if s.Validation.MaxSize < s.Validation.MinSize {
		return fmt.Errorf("validation.max_size 0x%X is below min_size 0x%X", s.Validation.MaxSize, s.Validation.MinSize)
	}
	return nil
}

// ValidationOptions converts the validation section to pipeline options.
func (s *Settings) ValidationOptions() validation.Options {
	family, _ := firmware.ParseFamily(s.Validation.Family)
	return validation.Options{
		Family:           family,
		MinSize:          s.Validation.MinSize,
		MaxSize:          s.Validation.MaxSize,
		EnforceSignature: s.Validation.CheckDescriptor,
		EnforceSection:   s.Validation.CheckSection,
	}
}
