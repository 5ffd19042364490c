package patcher

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/mefit/internal/checksum"
	"github.com/muurk/mefit/internal/firmware"
)

// BuildStep names a stage of BuildAndVerify.
type BuildStep int

const (
	StepApply BuildStep = iota + 1
	StepBackup
	StepWrite
	StepVerifyDigest
	StepVerifySections
)

// BuildSteps lists the stages in execution order.
var BuildSteps = []BuildStep{StepApply, StepBackup, StepWrite, StepVerifyDigest, StepVerifySections}

func (s BuildStep) String() string {
	switch s {
	case StepApply:
		return "Apply edits"
	case StepBackup:
		return "Back up original"
	case StepWrite:
		return "Write image"
	case StepVerifyDigest:
		return "Verify SHA-256"
	case StepVerifySections:
		return "Verify stores"
	default:
		return fmt.Sprintf("BuildStep(%d)", int(s))
	}
}

// StepEvent is reported to BuildOptions.OnStep.
type StepEvent int

const (
	StepStarted StepEvent = iota
	StepDone
	StepSkipped
	StepFailed
)

// StepFunc receives build progress events.
type StepFunc func(step BuildStep, event StepEvent, message string)

// BuildOptions controls where BuildAndVerify writes.
type BuildOptions struct {
	// OutputPath is the file to create. When empty a timestamped name is
	// generated inside BuildsDir.
	OutputPath string
	BuildsDir  string

	// BackupDir, when set, receives a zip of the original image.
	BackupDir  string
	SourceName string

	// Log receives the build narrative. A new log mirroring to Logger is
	// created when nil; pass one in to keep the lines after a failure.
	Log    *BuildLog
	Logger *zap.Logger
	OnStep StepFunc

	// Now is used for generated file names. Defaults to time.Now.
	Now func() time.Time
}

// BuildResult describes a verified build.
type BuildResult struct {
	Path       string
	BackupPath string
	SHA256     string
	Size       int
	Edits      []Edit
	Fsys       *firmware.FsysSection
	SCfg       *firmware.SCfgSection
	Log        *BuildLog
	Duration   time.Duration
}

// OutputName returns the generated build file name for t.
func OutputName(t time.Time) string {
	return "outimage_" + t.Format(TimestampLayout) + ".bin"
}

type builder struct {
	opts BuildOptions
	log  *BuildLog
	path string
}

func (b *builder) step(s BuildStep, e StepEvent, format string, args ...any) {
	if b.opts.OnStep != nil {
		b.opts.OnStep(s, e, fmt.Sprintf(format, args...))
	}
}

func (b *builder) fail(s BuildStep, reason BuildReason, err error) error {
	b.log.Errorf("%s: %v", s, err)
	b.step(s, StepFailed, "%v", err)
	return &BuildError{Reason: reason, Path: b.path, Err: err}
}

// BuildAndVerify applies edits to a copy of original, writes it to a new
// file and verifies the file against the edited buffer. original is not
// modified. On any failure a *BuildError is returned and the result is nil.
func BuildAndVerify(original []byte, edits []Edit, opts BuildOptions) (*BuildResult, error) {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	start := opts.Now()

	log := opts.Log
	if log == nil {
		log = NewBuildLog(opts.Logger)
	}
	b := &builder{opts: opts, log: log}
	b.log.Infof("building from %d-byte image with %d edit(s)", len(original), len(edits))

	b.step(StepApply, StepStarted, "")
	edited, err := ApplyEdits(original, edits)
	if err != nil {
		return nil, b.fail(StepApply, ReasonApply, err)
	}
	for _, e := range edits {
		b.log.Infof("%s: 0x%X bytes at 0x%X", e.Label, len(e.Data), e.Offset)
	}
	b.step(StepApply, StepDone, "%d edit(s)", len(edits))

	result := &BuildResult{Edits: edits, Log: b.log}

	if opts.BackupDir != "" {
		b.step(StepBackup, StepStarted, "")
		backup, err := BackupOriginal(original, opts.SourceName, opts.BackupDir, start)
		if err != nil {
			return nil, b.fail(StepBackup, ReasonBackup, err)
		}
		result.BackupPath = backup
		b.log.Goodf("original archived to %s", backup)
		b.step(StepBackup, StepDone, "%s", filepath.Base(backup))
	} else {
		b.step(StepBackup, StepSkipped, "no backup directory")
	}

	b.step(StepWrite, StepStarted, "")
	outPath := opts.OutputPath
	if outPath == "" {
		outPath = filepath.Join(opts.BuildsDir, OutputName(start))
	}
	created, err := writeSynced(outPath, edited)
	if created {
		b.path = outPath
	}
	if err != nil {
		return nil, b.fail(StepWrite, ReasonWrite, err)
	}
	b.log.Infof("wrote %s", b.path)
	b.step(StepWrite, StepDone, "%s", filepath.Base(b.path))

	b.step(StepVerifyDigest, StepStarted, "")
	readBack, err := os.ReadFile(b.path)
	if err != nil {
		return nil, b.fail(StepVerifyDigest, ReasonReadBack, fmt.Errorf("failed to read back output: %w", err))
	}
	want := checksum.SHA256Hex(edited)
	got := checksum.SHA256Hex(readBack)
	if want != got {
		return nil, b.fail(StepVerifyDigest, ReasonDigestMismatch,
			fmt.Errorf("file digest %s does not match edited buffer %s", got, want))
	}
	b.log.Goodf("SHA-256 verified: %s", got)
	b.step(StepVerifyDigest, StepDone, "%s", got[:16])

	b.step(StepVerifySections, StepStarted, "")
	if err := verifySections(readBack, edits, result); err != nil {
		return nil, b.fail(StepVerifySections, ReasonSectionMismatch, err)
	}
	b.step(StepVerifySections, StepDone, "")

	result.Path = b.path
	result.SHA256 = got
	result.Size = len(readBack)
	result.Duration = opts.Now().Sub(start)
	b.log.Goodf("build verified")
	return result, nil
}

// verifySections decodes every patched store from the read-back bytes and
// checks it against what each edit intended to produce.
func verifySections(readBack []byte, edits []Edit, result *BuildResult) error {
	for _, e := range edits {
		switch e.Section {
		case SectionFsys:
			got, ok := firmware.ExtractFsys(readBack)
			if !ok {
				return fmt.Errorf("%s: no Fsys store found after write", e.Label)
			}
			if !got.CRCMatches() {
				return fmt.Errorf("%s: patched Fsys CRC mismatch: stored %s, computed %s", e.Label, got.StoredCRC, got.ComputedCRC)
			}
			if err := e.Expect.check(e.Label, got.Offset, got.Serial, got.SON, got.Store); err != nil {
				return err
			}
			result.Fsys = got
			result.Log.Goodf("Fsys verified at 0x%X, CRC %s, serial %s", got.Offset, got.ComputedCRC, got.Serial)

		case SectionSCfg:
			got := firmware.ExtractSCfg(readBack, false)
			if !got.Found {
				return fmt.Errorf("%s: no SCfg store found after write", e.Label)
			}
			if err := e.Expect.check(e.Label, got.Base, got.Serial, got.SON, got.Store); err != nil {
				return err
			}
			result.SCfg = &got
			result.Log.Goodf("SCfg verified at 0x%X, serial %s", got.Base, got.Serial)
		}
	}
	return nil
}

func (x *Expectation) check(label string, base int, serial, son firmware.Text, store []byte) error {
	if x == nil {
		return nil
	}
	if base != x.Base {
		return fmt.Errorf("%s: store decoded at 0x%X, expected 0x%X", label, base, x.Base)
	}
	if x.Serial.Valid && serial != x.Serial {
		return fmt.Errorf("%s: serial decodes as %s, expected %s", label, serial, x.Serial.Value)
	}
	if x.SON.Valid && son != x.SON {
		return fmt.Errorf("%s: SON decodes as %s, expected %s", label, son, x.SON.Value)
	}
	if x.Store != nil && !bytes.Equal(store, x.Store) {
		return fmt.Errorf("%s: store bytes at 0x%X differ from the intended store", label, base)
	}
	return nil
}

// writeSynced creates path (failing if it exists), writes data and fsyncs
// before closing. created reports whether the file now exists on disk.
func writeSynced(path string, data []byte) (created bool, err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return false, fmt.Errorf("failed to create output directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return false, fmt.Errorf("failed to create output: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return true, fmt.Errorf("failed to write output: %w", err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return true, fmt.Errorf("failed to sync output: %w", err)
	}
	if err := f.Close(); err != nil {
		return true, fmt.Errorf("failed to close output: %w", err)
	}
	return true, nil
}
