package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/muurk/mefit/internal/firmware"
	"github.com/muurk/mefit/internal/logging"
	"github.com/muurk/mefit/internal/patcher"
	"github.com/muurk/mefit/internal/rom"
	"github.com/muurk/mefit/internal/ui"
)

// Patch command flags
var (
	exportOutput string
	exportSCfg   bool
	donorPath    string
	newSerial    string
	buildOutput  string
	buildVerbose bool
)

func init() {
	for _, cmd := range []*cobra.Command{fixFsysCRCCmd, replaceFsysCmd, setSerialCmd} {
		cmd.Flags().StringVarP(&buildOutput, "output", "o", "", "Output file (default: builds dir, timestamped name)")
		cmd.Flags().BoolVarP(&buildVerbose, "verbose", "v", false, "Show the build log on success")
	}

	rootCmd.AddCommand(exportFsysCmd)
	rootCmd.AddCommand(fixFsysCRCCmd)
	rootCmd.AddCommand(replaceFsysCmd)
	rootCmd.AddCommand(setSerialCmd)
}

// exportFsysCmd writes the store region to its own file
var exportFsysCmd = &cobra.Command{
	Use:   "export-fsys <rom>",
	Short: "Export the Fsys store region to a file",
	Long: `Write the 0x800-byte Fsys store of an image to a separate file, for
use as a donor with replace-fsys. With --scfg the SCfg store of a T2 image
is exported instead. Existing files are never overwritten.`,
	Example: `  # Writes MBP151_fsys.bin next to the current directory
  mefit export-fsys MBP151.rom

  mefit export-fsys MBP151.rom -o donor.bin`,
	Args: cobra.ExactArgs(1),
	RunE: runExportFsys,
}

func init() {
	exportFsysCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Output file (default: <name>_fsys.bin)")
	exportFsysCmd.Flags().BoolVar(&exportSCfg, "scfg", false, "Export the SCfg store instead")
}

func runExportFsys(cmd *cobra.Command, args []string) error {
	img, err := openValidImage(args[0])
	if err != nil {
		return err
	}

	store := "fsys"
	export := img.ExportFsys
	if exportSCfg {
		store = "scfg"
		export = img.ExportSCfg
	}

	data, err := export()
	if err != nil {
		return err
	}

	out := exportOutput
	if out == "" {
		out = exportName(img.Info.NameNoExt, store)
	}
	if err := writeNewFile(out, data); err != nil {
		return err
	}

	logging.LogRegion("Exported "+store, 0, data)
	p := ui.NewPrinter(cmd.OutOrStdout())
	p.PrintSuccess("Store exported",
		ui.F("Store", strings.ToUpper(store)),
		ui.F("Output", out),
		ui.F("Length", fmt.Sprintf("0x%X", len(data))),
		ui.F("Serial", img.Serial().String()),
	)
	return p.Flush()
}

// exportName returns the default export file name for a store.
func exportName(base, store string) string {
	return base + "_" + store + ".bin"
}

// fixFsysCRCCmd repairs a stale Fsys CRC
var fixFsysCRCCmd = &cobra.Command{
	Use:   "fix-fsys-crc <rom>",
	Short: "Recompute a stale Fsys CRC",
	Long: `Rewrite the Fsys CRC field so it matches the store contents.

Nothing is written when the CRC is already correct.`,
	Args: cobra.ExactArgs(1),
	RunE: runFixFsysCRC,
}

func runFixFsysCRC(cmd *cobra.Command, args []string) error {
	img, err := openValidImage(args[0])
	if err != nil {
		return err
	}

	edits, err := patcher.FixFsysCRCEdits(img.Data)
	if errors.Is(err, patcher.ErrCRCAlreadyValid) {
		p := ui.NewPrinter(cmd.OutOrStdout())
		p.PrintSuccess("Fsys CRC already valid", ui.F("CRC", img.Fsys.StoredCRC))
		return p.Flush()
	}
	if err != nil {
		return err
	}

	changes := []string{fmt.Sprintf("Fsys CRC %s -> %s", img.Fsys.StoredCRC, img.Fsys.ComputedCRC)}
	return runBuild(cmd, img, "Fsys CRC repair", edits, changes)
}

// replaceFsysCmd swaps the Fsys store for a donor region
var replaceFsysCmd = &cobra.Command{
	Use:   "replace-fsys <rom> --donor <fsys.bin>",
	Short: "Replace the Fsys store with a donor region",
	Long: `Overwrite the image's Fsys store with an exported 0x800-byte donor region.

The donor is checked first (see 'mefit donor'). A donor with a stale CRC is
accepted and its CRC is recomputed before it is written.`,
	Example: `  mefit replace-fsys MBP151.rom --donor donor_fsys.bin`,
	Args:    cobra.ExactArgs(1),
	RunE:    runReplaceFsys,
}

func init() {
	replaceFsysCmd.Flags().StringVar(&donorPath, "donor", "", "Exported Fsys region to write")
	_ = replaceFsysCmd.MarkFlagRequired("donor")
}

func runReplaceFsys(cmd *cobra.Command, args []string) error {
	img, err := openValidImage(args[0])
	if err != nil {
		return err
	}

	donor, _, err := firmware.ReadFile(donorPath)
	if err != nil {
		return err
	}

	edits, check, err := patcher.FsysReplacementEdits(img.Data, donor)
	if err != nil {
		return err
	}

	changes := []string{fmt.Sprintf("Fsys store at 0x%X replaced from %s", edits[0].Offset, filepath.Base(donorPath))}
	if img.Fsys != nil {
		changes = append(changes, fmt.Sprintf("Serial %s -> %s", img.Fsys.Serial, check.Fsys.Serial))
	}
	if check.MaskRequired {
		changes = append(changes, "Donor CRC is stale and will be recomputed")
	}
	return runBuild(cmd, img, "Fsys replace", edits, changes)
}

// setSerialCmd rewrites the serial number
var setSerialCmd = &cobra.Command{
	Use:   "set-serial <rom> --serial <serial>",
	Short: "Rewrite the serial number",
	Long: `Rewrite the serial number in the image's Fsys store (Intel) or SCfg
store (T2). The new serial must have the same length as the current one
and contain only 0-9 and A-Z. The Fsys CRC is recomputed.`,
	Example: `  mefit set-serial MBP151.rom --serial C02XXXXXXXXX`,
	Args:    cobra.ExactArgs(1),
	RunE:    runSetSerial,
}

func init() {
	setSerialCmd.Flags().StringVar(&newSerial, "serial", "", "Replacement serial number")
	_ = setSerialCmd.MarkFlagRequired("serial")
}

func runSetSerial(cmd *cobra.Command, args []string) error {
	img, err := openValidImage(args[0])
	if err != nil {
		return err
	}

	serial := strings.ToUpper(strings.TrimSpace(newSerial))

	var edits []patcher.Edit
	switch {
	case img.Fsys != nil:
		edits, err = patcher.FsysSerialEdits(img.Data, serial)
	case img.SCfg != nil:
		edits, err = patcher.SCfgSerialEdits(img.Data, serial)
	default:
		err = fmt.Errorf("%s has no Fsys or SCfg store", img.Info.Name)
	}
	if err != nil {
		return err
	}

	changes := []string{fmt.Sprintf("Serial %s -> %s", img.Serial(), serial)}
	if hwc := firmware.HWCFromSerial(serial); hwc != img.HWC() {
		changes = append(changes, fmt.Sprintf("HWC %s -> %s", img.HWC(), hwc))
	}
	return runBuild(cmd, img, "Serial rewrite", edits, changes)
}

// runBuild confirms, writes and verifies a patched copy of img.
func runBuild(cmd *cobra.Command, img *rom.Image, title string, edits []patcher.Edit, changes []string) error {
	out := cmd.OutOrStdout()

	if settings.Build.Confirm && !ui.ImageWriteConfirmation(cmd.InOrStdin(), out, img.Info.Name, changes) {
		return errors.New("cancelled")
	}

	opts := patcher.BuildOptions{
		OutputPath: buildOutput,
		BuildsDir:  settings.Paths.BuildsDir,
		SourceName: img.Info.Name,
		Log:        patcher.NewBuildLog(logging.GetLogger()),
		Logger:     logging.GetLogger(),
	}
	if settings.Build.BackupOriginal {
		opts.BackupDir = settings.Paths.BackupsDir
	}

	runner := ui.NewBuildRunner(ui.BuildRunnerConfig{
		Title:   title,
		Command: cmd.CommandPath() + " " + img.Path,
		Params: []ui.Field{
			ui.F("Image", img.Info.Name),
			ui.F("Family", img.Family.String()),
			ui.F("Edits", fmt.Sprintf("%d", len(edits))),
		},
		Verbose: buildVerbose,
		Output:  out,
	})
	runner.SetLog(opts.Log)

	return runner.Run(context.Background(), func(onStep patcher.StepFunc) ([]ui.Field, error) {
		opts.OnStep = onStep
		res, err := patcher.BuildAndVerify(img.Data, edits, opts)
		if err != nil {
			return nil, err
		}

		details := []ui.Field{
			ui.F("Output", res.Path),
			ui.F("SHA-256", res.SHA256),
		}
		if res.BackupPath != "" {
			details = append(details, ui.F("Backup", res.BackupPath))
		}
		if res.Fsys != nil {
			details = append(details, ui.F("Serial", res.Fsys.Serial.String()), ui.F("Fsys CRC", res.Fsys.ComputedCRC))
		}
		if res.SCfg != nil {
			details = append(details, ui.F("Serial", res.SCfg.Serial.String()))
		}
		return details, nil
	})
}

// openValidImage opens path and rejects images that fail validation.
func openValidImage(path string) (*rom.Image, error) {
	img, res, err := openImage(path)
	if err != nil {
		return nil, err
	}
	if !res.Valid() {
		return nil, fmt.Errorf("%s failed validation (%s): %s", img.Info.Name, res.Reason, res.Message)
	}
	return img, nil
}

// writeNewFile creates path with data, refusing to overwrite.
func writeNewFile(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}
