// Package patcher produces edited copies of ROM images and proves that what
// landed on disk is what was intended.
//
// The original buffer is never mutated. Edits are applied to a copy, the copy
// is written to a fresh file and fsynced, then the file is read back and
// compared by SHA-256. Every edit tagged with a store kind is also decoded
// again from the read-back bytes; an Fsys store whose CRC no longer matches
// fails the build.
//
// Typical use:
//
//	edits, err := patcher.FsysSerialEdits(image, "C02ABCDEFGHJ")
//	if err != nil {
//	    return err
//	}
//	res, err := patcher.BuildAndVerify(image, edits, patcher.BuildOptions{
//	    BuildsDir: "builds",
//	    BackupDir: "backups",
//	    SourceName: "MBP151.rom",
//	})
//
// A failed build returns a *BuildError. The partially written file, if any,
// is left at BuildError.Path for inspection.
package patcher
