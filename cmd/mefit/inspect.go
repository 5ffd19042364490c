package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/muurk/mefit/internal/firmware"
	"github.com/muurk/mefit/internal/logging"
	"github.com/muurk/mefit/internal/rom"
	"github.com/muurk/mefit/internal/ui"
	"github.com/muurk/mefit/internal/validation"
)

// Inspection flags
var (
	infoDump      bool
	diffGap       int
	diffMaxRanges int
)

func init() {
	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(sizeCmd)
	rootCmd.AddCommand(donorCmd)
	rootCmd.AddCommand(diffCmd)
}

// infoCmd decodes everything known about an image
var infoCmd = &cobra.Command{
	Use:   "info <rom>",
	Short: "Show decoded store fields for a ROM image",
	Long: `Validate a ROM image and display its file details, detected family,
size classification and the decoded Fsys or SCfg store.

The hardware configuration code (HWC) is looked up in the model catalog;
extra entries can be supplied with paths.catalog_file in the config.`,
	Example: `  # Show image details
  mefit info MBP151.rom

  # Include a hexdump of the Fsys store with the serial highlighted
  mefit info MBP151.rom --dump`,
	Args: cobra.ExactArgs(1),
	RunE: runInfo,
}

func init() {
	infoCmd.Flags().BoolVar(&infoDump, "dump", false, "Hexdump the decoded store")
}

func runInfo(cmd *cobra.Command, args []string) error {
	img, res, err := openImage(args[0])
	if err != nil {
		return err
	}

	p := ui.NewPrinter(cmd.OutOrStdout())
	defer flush(p)
	p.PrintHeader("Image info", "mefit info "+args[0], fileFields(img)...)

	if !res.Valid() {
		p.PrintError("Validation failed", errors.New(res.Message), validationTips(res)...)
		return fmt.Errorf("%s: %s", img.Info.Name, res.Reason)
	}

	p.PrintPanel("Image", imageFields(img)...)
	if img.Fsys != nil {
		p.PrintPanel("Fsys store", fsysFields(img.Fsys)...)
		if infoDump {
			p.Newline()
			p.Print(ui.Hexdump(img.Fsys.Offset, img.Fsys.Store, serialMarks(len(img.Fsys.Store), img.Fsys.SerialBase, img.Fsys.Serial)))
		}
	}
	if img.SCfg != nil {
		p.PrintPanel("SCfg store", scfgFields(img.SCfg)...)
		if infoDump {
			p.Newline()
			p.Print(ui.Hexdump(img.SCfg.Base, img.SCfg.Store, serialMarks(len(img.SCfg.Store), img.SCfg.SerialBase-img.SCfg.Base, img.SCfg.Serial)))
		}
	}

	warnings := ui.NewWarningResult("Image warnings", img.Warnings...)
	if hwc := img.HWC(); hwc.Valid && img.Model == nil {
		warnings.AddNote("HWC " + hwc.Value + " is not in the model catalog; add it with paths.catalog_file")
	}
	if len(warnings.Notes) > 0 {
		p.Newline()
		p.PrintResult(warnings)
	}
	return nil
}

// validateCmd runs the validation pipeline only
var validateCmd = &cobra.Command{
	Use:   "validate <rom>",
	Short: "Check image size, flash signature and store presence",
	Long: `Run the validation pipeline against a ROM image and report the first
failing check. The exit status is non-zero when the image is rejected.

Checks run in order:
  1. Size lies within the configured limits
  2. The family signature is present (Intel descriptor or T2 SOCROM marker)
  3. The family's store (Fsys or SCfg) is present

Use --no-descriptor-check or --no-section-check to relax steps 2 and 3.`,
	Args: cobra.ExactArgs(1),
	RunE: runValidate,
}

func runValidate(cmd *cobra.Command, args []string) error {
	img, res, err := openImage(args[0])
	if err != nil {
		return err
	}

	p := ui.NewPrinter(cmd.OutOrStdout())
	defer flush(p)
	if !res.Valid() {
		p.PrintError(img.Info.Name+" rejected", errors.New(res.Message), validationTips(res)...)
		return fmt.Errorf("%s: %s", img.Info.Name, res.Reason)
	}

	p.PrintSuccess(img.Info.Name+" is valid",
		ui.F("Family", img.Family.String()),
		ui.F("Size", sizeText(img.Size)),
		ui.F("Serial", img.Serial().String()),
	)
	return nil
}

// sizeCmd classifies a byte count against the flash size sequence
var sizeCmd = &cobra.Command{
	Use:   "size <bytes|file>",
	Short: "Classify a length against valid flash sizes",
	Long: `Report the valid flash size nearest to a length and how far off it is.

Valid sizes are min_size, 2*min_size, 4*min_size ... up to max_size. The
argument is a byte count (decimal or 0x hex) or the path to a file.`,
	Example: `  mefit size 0x800000
  mefit size MBP151.rom`,
	Args: cobra.ExactArgs(1),
	RunE: runSize,
}

func runSize(cmd *cobra.Command, args []string) error {
	size, err := parseSizeArg(args[0])
	if err != nil {
		return err
	}

	v := settings.Validation
	class := firmware.ClassifySize(size, v.MinSize, v.MaxSize)

	p := ui.NewPrinter(cmd.OutOrStdout())
	defer flush(p)
	p.PrintPanel("Size",
		ui.F("Length", fmt.Sprintf("%d (0x%X)", class.Size, class.Size)),
		ui.F("Nearest", fmt.Sprintf("%d (0x%X)", class.Nearest, class.Nearest)),
		ui.F("Relation", class.Relation.String()),
		ui.F("Class", class.String()),
	)
	return nil
}

// parseSizeArg accepts a decimal or 0x-prefixed byte count, or a file path.
func parseSizeArg(arg string) (int64, error) {
	if n, err := strconv.ParseInt(arg, 0, 64); err == nil {
		if n < 0 {
			return 0, fmt.Errorf("size must not be negative: %d", n)
		}
		return n, nil
	}

	stat, err := os.Stat(arg)
	if err != nil {
		return 0, fmt.Errorf("%q is neither a byte count nor a readable file: %w", arg, err)
	}
	if stat.IsDir() {
		return 0, fmt.Errorf("%s is a directory", arg)
	}
	return stat.Size(), nil
}

// donorCmd checks an exported Fsys region
var donorCmd = &cobra.Command{
	Use:   "donor <fsys.bin>",
	Short: "Check an exported Fsys region before using it as a donor",
	Long: `Validate a standalone Fsys region as produced by 'mefit export-fsys'.

The region must be exactly 0x800 bytes with the Fsys signature at offset 0.
A stale CRC is reported but does not reject the donor: replace-fsys
recomputes it before writing.`,
	Args: cobra.ExactArgs(1),
	RunE: runDonor,
}

func runDonor(cmd *cobra.Command, args []string) error {
	data, info, err := firmware.ReadFile(args[0])
	if err != nil {
		return err
	}

	p := ui.NewPrinter(cmd.OutOrStdout())
	defer flush(p)
	check := validation.ValidateDonorFsys(data)
	if !check.Valid() {
		p.PrintError(info.Name+" rejected", errors.New(check.Message),
			"Export the region with: mefit export-fsys <rom>")
		return fmt.Errorf("%s: %s", info.Name, check.Reason)
	}

	p.PrintPanel("Donor Fsys", fsysFields(check.Fsys)...)
	if check.MaskRequired {
		p.Newline()
		p.PrintResult(ui.NewWarningResult("Stale CRC",
			"The donor CRC does not match its contents",
			"replace-fsys will recompute it before writing"))
	}
	return nil
}

// diffCmd compares two images byte by byte
var diffCmd = &cobra.Command{
	Use:   "diff <a> <b>",
	Short: "Show differing byte ranges between two images",
	Long: `Compare two files and hexdump each differing range from the second file,
with changed bytes highlighted. Ranges inside the Fsys or SCfg store of the
first file are labelled.`,
	Example: `  # Check what a build changed
  mefit diff MBP151.rom builds/outimage_240309_140507.bin`,
	Args: cobra.ExactArgs(2),
	RunE: runDiff,
}

func init() {
	diffCmd.Flags().IntVar(&diffGap, "gap", 16, "Merge ranges separated by fewer equal bytes")
	diffCmd.Flags().IntVar(&diffMaxRanges, "max-ranges", 8, "Maximum ranges to dump (0 = all)")
}

func runDiff(cmd *cobra.Command, args []string) error {
	a, infoA, err := firmware.ReadFile(args[0])
	if err != nil {
		return err
	}
	b, infoB, err := firmware.ReadFile(args[1])
	if err != nil {
		return err
	}

	ranges := ui.DiffRanges(a, b, diffGap)

	p := ui.NewPrinter(cmd.OutOrStdout())
	defer flush(p)
	p.PrintHeader("Image diff", "mefit diff "+args[0]+" "+args[1],
		ui.F(infoA.Name, fmt.Sprintf("%d bytes, CRC32 %s", infoA.Length, infoA.CRC32Hex())),
		ui.F(infoB.Name, fmt.Sprintf("%d bytes, CRC32 %s", infoB.Length, infoB.CRC32Hex())),
	)

	if len(ranges) == 0 {
		p.PrintSuccess("Files are identical")
		return nil
	}

	changed := 0
	for _, r := range ranges {
		changed += r.Len()
	}
	p.Println(fmt.Sprintf("  %d range(s), %d byte(s) in span", len(ranges), changed))

	regions := storeRegions(a)
	marks := ui.DiffMarks(a, b)
	for i, r := range ranges {
		if diffMaxRanges > 0 && i == diffMaxRanges {
			p.Println(fmt.Sprintf("\n  ... %d more range(s)", len(ranges)-i))
			break
		}

		end := r.End
		if end > len(b) {
			end = len(b)
		}
		p.Println(fmt.Sprintf("\n  0x%X-0x%X (%d bytes)%s", r.Start, r.End, r.Len(), regionLabel(regions, r)))
		if r.Start < end {
			p.Print(ui.Hexdump(r.Start, b[r.Start:end], marks[r.Start:end]))
		} else {
			p.Println("  (past end of " + infoB.Name + ")")
		}
	}
	return nil
}

type storeRegion struct {
	name       string
	start, end int
}

func storeRegions(image []byte) []storeRegion {
	var regions []storeRegion
	if fsys, ok := firmware.ExtractFsys(image); ok {
		regions = append(regions, storeRegion{"Fsys", fsys.Offset, fsys.Offset + fsys.Size})
	}
	if scfg := firmware.ExtractSCfg(image, false); scfg.Found {
		regions = append(regions, storeRegion{"SCfg", scfg.Base, scfg.Base + scfg.Size})
	}
	return regions
}

func regionLabel(regions []storeRegion, r ui.ByteRange) string {
	var names []string
	for _, reg := range regions {
		if r.Start < reg.end && r.End > reg.start {
			names = append(names, reg.name)
		}
	}
	if len(names) == 0 {
		return ""
	}
	return " in " + strings.Join(names, ", ")
}

// --- shared helpers ---

// flush renders a command's collected output. Deferred so error paths
// still show the failure box.
func flush(p *ui.Printer) {
	if err := p.Flush(); err != nil {
		logging.Warn("Failed to render output", zap.Error(err))
	}
}

func openImage(path string) (*rom.Image, *validation.Result, error) {
	opts, err := romOptions()
	if err != nil {
		return nil, nil, err
	}
	return rom.Open(path, opts)
}

func fileFields(img *rom.Image) []ui.Field {
	return []ui.Field{
		ui.F("File", img.Info.Name),
		ui.F("Length", fmt.Sprintf("%d (0x%X)", img.Info.Length, img.Info.Length)),
		ui.F("CRC32", img.Info.CRC32Hex()),
		ui.F("Created", img.Info.CreatedText()),
		ui.F("Modified", img.Info.Modified.Format(firmware.TimeLayout)),
	}
}

func imageFields(img *rom.Image) []ui.Field {
	model := "unknown"
	if img.Model != nil {
		model = img.Model.Name
	}

	fields := []ui.Field{
		ui.F("Family", img.Family.String()),
		ui.F("Size", sizeText(img.Size)),
		ui.F("Serial", img.Serial().String()),
		ui.F("HWC", img.HWC().String()),
		ui.F("Model", model),
	}
	if img.Family == firmware.FamilyIntel {
		fields = append(fields, ui.F("Board ID", img.BoardID.String()))
	}
	if img.IBoot.Valid {
		fields = append(fields, ui.F("iBoot", img.IBoot.Value))
	}
	return append(fields, ui.F("Parse time", img.ParseTime.String()))
}

func fsysFields(s *firmware.FsysSection) []ui.Field {
	status := "OK"
	if !s.CRCMatches() {
		status = "MISMATCH"
	}
	return []ui.Field{
		ui.F("Offset", fmt.Sprintf("0x%X", s.Offset)),
		ui.F("Serial", s.Serial.String()),
		ui.F("HWC", s.HWC.String()),
		ui.F("SON", s.SON.String()),
		ui.F("Stored CRC", s.StoredCRC),
		ui.F("Computed CRC", s.ComputedCRC),
		ui.F("CRC status", status),
	}
}

func scfgFields(s *firmware.SCfgSection) []ui.Field {
	return []ui.Field{
		ui.F("Base", fmt.Sprintf("0x%X", s.Base)),
		ui.F("Size", fmt.Sprintf("0x%X", s.Size)),
		ui.F("Serial", s.Serial.String()),
		ui.F("HWC", s.HWC.String()),
		ui.F("SON", s.SON.String()),
		ui.F("RegNum", s.RegNum.String()),
		ui.F("CRC32", s.CRC),
	}
}

func sizeText(c firmware.SizeClass) string {
	if c.Exact() {
		return fmt.Sprintf("0x%X (valid)", c.Size)
	}
	return fmt.Sprintf("0x%X (%s, nearest 0x%X)", c.Size, c.Relation, c.Nearest)
}

// serialMarks highlights the serial bytes within a store of length n.
func serialMarks(n, base int, serial firmware.Text) []bool {
	if !serial.Valid || base < 0 {
		return nil
	}
	marks := make([]bool, n)
	for i := base; i < base+len(serial.Value) && i < n; i++ {
		marks[i] = true
	}
	return marks
}

func validationTips(res *validation.Result) []string {
	switch res.Reason {
	case validation.ReasonSizeTooSmall, validation.ReasonSizeTooLarge:
		return []string{
			"Check that the dump completed; valid sizes double from validation.min_size",
			"Adjust validation.min_size / max_size in the config for unusual chips",
		}
	case validation.ReasonBadFlashSignature:
		return []string{
			"The file may not be a full SPI dump, or it is byte-swapped",
			"Pass --no-descriptor-check to inspect it anyway",
		}
	case validation.ReasonMissingSection:
		return []string{
			"The store may be erased (all 0xFF) on this board",
			"Pass --no-section-check to inspect the rest of the image",
		}
	default:
		return nil
	}
}
