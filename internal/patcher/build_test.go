package patcher

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/muurk/mefit/internal/checksum"
	"github.com/muurk/mefit/internal/firmware"
	"github.com/muurk/mefit/internal/firmware/firmwaretest"
)

func fixedNow() time.Time {
	return time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC)
}

func TestBuildAndVerify(t *testing.T) {
	original := intelImage(firmwaretest.FsysStore("C02ABCDEFGHJ", "SON"))
	snapshot := bytes.Clone(original)

	edits, err := FsysSerialEdits(original, "C02ZZZZZMD6T")
	if err != nil {
		t.Fatal(err)
	}

	dir := t.TempDir()
	var steps []string
	res, err := BuildAndVerify(original, edits, BuildOptions{
		BuildsDir:  filepath.Join(dir, "builds"),
		BackupDir:  filepath.Join(dir, "backups"),
		SourceName: "MBP151.rom",
		Now:        fixedNow,
		OnStep: func(step BuildStep, event StepEvent, _ string) {
			if event == StepDone {
				steps = append(steps, step.String())
			}
		},
	})
	if err != nil {
		t.Fatalf("BuildAndVerify() error = %v", err)
	}

	wantPath := filepath.Join(dir, "builds", "outimage_240309_140507.bin")
	if res.Path != wantPath {
		t.Errorf("Path = %s, want %s", res.Path, wantPath)
	}

	written, err := os.ReadFile(res.Path)
	if err != nil {
		t.Fatal(err)
	}
	if checksum.SHA256Hex(written) != res.SHA256 {
		t.Error("reported SHA-256 does not match file on disk")
	}
	edited, _ := ApplyEdits(original, edits)
	if checksum.SHA256Hex(edited) != res.SHA256 {
		t.Error("file on disk does not match edited buffer")
	}

	if !bytes.Equal(original, snapshot) {
		t.Error("BuildAndVerify mutated the original buffer")
	}

	if res.Fsys == nil || res.Fsys.Serial.Value != "C02ZZZZZMD6T" || !res.Fsys.CRCMatches() {
		t.Errorf("verified Fsys = %+v", res.Fsys)
	}
	if res.SCfg != nil {
		t.Error("no SCfg edit was made")
	}

	if len(steps) != len(BuildSteps) {
		t.Errorf("completed steps = %v", steps)
	}

	backup, name, err := ReadBackup(res.BackupPath)
	if err != nil {
		t.Fatalf("ReadBackup() error = %v", err)
	}
	if name != "MBP151.rom" || !bytes.Equal(backup, original) {
		t.Errorf("backup holds %s with %d bytes", name, len(backup))
	}
	if filepath.Base(res.BackupPath) != "MBP151_240309_140507.zip" {
		t.Errorf("BackupPath = %s", res.BackupPath)
	}

	if res.Log.HasErrors() {
		t.Errorf("unexpected errors in log:\n%s", res.Log)
	}
}

func TestBuildAndVerify_SCfg(t *testing.T) {
	store := firmwaretest.SCfgStore("C02ZX1Y2MD6T", "Z0YV", "REG1")
	original := firmwaretest.T2Image(0x400000, firmware.SCfgExpectedBase, store, "iBoot")

	edits, err := SCfgSerialEdits(original, "C02AAAAAQ6L4")
	if err != nil {
		t.Fatal(err)
	}

	out := filepath.Join(t.TempDir(), "patched.bin")
	res, err := BuildAndVerify(original, edits, BuildOptions{OutputPath: out})
	if err != nil {
		t.Fatalf("BuildAndVerify() error = %v", err)
	}
	if res.Path != out || res.BackupPath != "" {
		t.Errorf("Path = %s BackupPath = %s", res.Path, res.BackupPath)
	}
	if res.SCfg == nil || res.SCfg.Serial.Value != "C02AAAAAQ6L4" {
		t.Errorf("verified SCfg = %+v", res.SCfg)
	}
}

func TestBuildAndVerify_SectionMismatchLeavesFile(t *testing.T) {
	original := intelImage(firmwaretest.FsysStore("C02ABCDEFGHJ", "SON"))

	// Changing a serial byte without re-masking leaves the CRC stale.
	edits := []Edit{{
		Label:   "raw serial byte",
		Offset:  fsysOffset + firmwaretest.FsysSerialMarkerOffset + 4,
		Data:    []byte{'X'},
		Section: SectionFsys,
	}}

	out := filepath.Join(t.TempDir(), "bad.bin")
	res, err := BuildAndVerify(original, edits, BuildOptions{OutputPath: out})
	if res != nil {
		t.Error("failed build must not return a result")
	}
	if !IsBuildError(err, ReasonSectionMismatch) {
		t.Fatalf("error = %v, want section mismatch", err)
	}

	var be *BuildError
	errors.As(err, &be)
	if be.Path != out {
		t.Errorf("BuildError.Path = %q, want %q", be.Path, out)
	}
	if _, statErr := os.Stat(out); statErr != nil {
		t.Errorf("partial output should be left for inspection: %v", statErr)
	}
	if !strings.Contains(err.Error(), "CRC mismatch") {
		t.Errorf("error = %v, want CRC mismatch detail", err)
	}
}

func TestBuildAndVerify_MisplacedEdit(t *testing.T) {
	const serial = "C02ZZZZZMD6T"

	t.Run("Fsys serial one byte late", func(t *testing.T) {
		original := intelImage(firmwaretest.FsysStore("C02ABCDEFGHJ", "SON"))
		section, ok := firmware.ExtractFsys(original)
		if !ok {
			t.Fatal("fixture has no Fsys store")
		}

		store, err := OverwriteRegion(section.Store, section.SerialBase+1, []byte(serial))
		if err != nil {
			t.Fatal(err)
		}
		store, err = MaskCRC32(store, firmware.FsysCRCOffset)
		if err != nil {
			t.Fatal(err)
		}
		edits := []Edit{{
			Label:   "Fsys serial",
			Offset:  section.Offset,
			Data:    store,
			Section: SectionFsys,
			Expect:  &Expectation{Base: section.Offset, Serial: firmware.NewText(serial)},
		}}

		_, err = BuildAndVerify(original, edits, BuildOptions{OutputPath: filepath.Join(t.TempDir(), "late.bin")})
		if !IsBuildError(err, ReasonSectionMismatch) {
			t.Fatalf("error = %v, want section mismatch", err)
		}
		if !strings.Contains(err.Error(), "CC02ZZZZZMD6") {
			t.Errorf("error = %v, want the decoded serial", err)
		}
	})

	t.Run("SCfg serial one byte early", func(t *testing.T) {
		store := firmwaretest.SCfgStore("C02ZX1Y2MD6T", "Z0YV", "REG1")
		original := firmwaretest.T2Image(0x400000, firmware.SCfgExpectedBase, store, "iBoot")

		edits, err := SCfgSerialEdits(original, serial)
		if err != nil {
			t.Fatal(err)
		}
		edits[0].Offset--

		_, err = BuildAndVerify(original, edits, BuildOptions{OutputPath: filepath.Join(t.TempDir(), "early.bin")})
		if !IsBuildError(err, ReasonSectionMismatch) {
			t.Fatalf("error = %v, want section mismatch", err)
		}
	})

	t.Run("donor store changed after masking", func(t *testing.T) {
		original := intelImage(firmwaretest.FsysStore("C02ABCDEFGHJ", "OLD"))
		edits, _, err := FsysReplacementEdits(original, firmwaretest.FsysStore("C02XK0AAJGH5", "NEW"))
		if err != nil {
			t.Fatal(err)
		}
		// A second edit quietly rewrites the donor SON and fixes up the CRC.
		tampered, err := OverwriteRegion(edits[0].Data, firmwaretest.FsysSerialMarkerOffset+4+12+2+4, []byte("NEX"))
		if err != nil {
			t.Fatal(err)
		}
		tampered, err = MaskCRC32(tampered, firmware.FsysCRCOffset)
		if err != nil {
			t.Fatal(err)
		}
		edits = append(edits, Edit{Label: "late rewrite", Offset: edits[0].Offset, Data: tampered})

		_, err = BuildAndVerify(original, edits, BuildOptions{OutputPath: filepath.Join(t.TempDir(), "donor.bin")})
		if !IsBuildError(err, ReasonSectionMismatch) {
			t.Fatalf("error = %v, want section mismatch", err)
		}
	})
}

func TestBuildAndVerify_Failures(t *testing.T) {
	original := intelImage(firmwaretest.FsysStore("C02ABCDEFGHJ", "SON"))

	t.Run("edit out of range", func(t *testing.T) {
		_, err := BuildAndVerify(original, []Edit{{Label: "tail", Offset: len(original), Data: []byte{1}}}, BuildOptions{
			OutputPath: filepath.Join(t.TempDir(), "x.bin"),
		})
		if !IsBuildError(err, ReasonApply) {
			t.Errorf("error = %v, want apply failure", err)
		}
		var re *RegionError
		if !errors.As(err, &re) {
			t.Error("apply failure should wrap the RegionError")
		}
	})

	t.Run("output exists", func(t *testing.T) {
		out := filepath.Join(t.TempDir(), "exists.bin")
		if err := os.WriteFile(out, []byte("keep"), 0o600); err != nil {
			t.Fatal(err)
		}

		log := NewBuildLog(nil)
		_, err := BuildAndVerify(original, nil, BuildOptions{OutputPath: out, Log: log})
		if !IsBuildError(err, ReasonWrite) {
			t.Fatalf("error = %v, want write failure", err)
		}
		if !log.HasErrors() {
			t.Error("caller's log did not record the failure")
		}
		var be *BuildError
		errors.As(err, &be)
		if be.Path != "" {
			t.Errorf("Path = %q, want empty when nothing was created", be.Path)
		}

		data, _ := os.ReadFile(out)
		if string(data) != "keep" {
			t.Error("existing file was overwritten")
		}
	})

	t.Run("backup dir is a file", func(t *testing.T) {
		dir := t.TempDir()
		blocker := filepath.Join(dir, "backups")
		if err := os.WriteFile(blocker, nil, 0o600); err != nil {
			t.Fatal(err)
		}

		_, err := BuildAndVerify(original, nil, BuildOptions{
			OutputPath: filepath.Join(dir, "out.bin"),
			BackupDir:  blocker,
		})
		if !IsBuildError(err, ReasonBackup) {
			t.Errorf("error = %v, want backup failure", err)
		}
	})
}

func TestBuildAndVerify_NoEdits(t *testing.T) {
	original := []byte("not a rom")
	out := filepath.Join(t.TempDir(), "copy.bin")

	res, err := BuildAndVerify(original, nil, BuildOptions{OutputPath: out})
	if err != nil {
		t.Fatalf("BuildAndVerify() error = %v", err)
	}
	if res.Size != len(original) || res.Fsys != nil {
		t.Errorf("result = %+v", res)
	}
}

func TestBuildReasonString(t *testing.T) {
	if ReasonDigestMismatch.String() != "Digest Mismatch" {
		t.Errorf("String() = %q", ReasonDigestMismatch.String())
	}
	if BuildReason(42).String() != "BuildReason(42)" {
		t.Errorf("String() = %q", BuildReason(42).String())
	}
}

func TestBuildLog(t *testing.T) {
	log := NewBuildLog(nil)
	log.Infof("reading %s", "a.rom")
	log.Warnf("crc mismatch")
	log.Goodf("done")

	if log.HasErrors() {
		t.Error("no errors were logged")
	}
	if len(log.Lines()) != 3 || log.Lines()[1].Level != LogWarn {
		t.Errorf("Lines() = %+v", log.Lines())
	}

	log.Errorf("boom")
	if !log.HasErrors() {
		t.Error("HasErrors() = false after Errorf")
	}
	if !strings.Contains(log.String(), "ERROR boom") {
		t.Errorf("String() = %q", log.String())
	}
}
