package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/muurk/mefit/internal/checksum"
	"github.com/muurk/mefit/internal/firmware"
	"github.com/muurk/mefit/internal/payload"
	"github.com/muurk/mefit/internal/ui"
)

// Decompress flags
var (
	decompressOutput  string
	decompressMaxSize int64
)

func init() {
	rootCmd.AddCommand(decompressCmd)

	decompressCmd.Flags().StringVarP(&decompressOutput, "output", "o", "", "Output file (default: input name without .lzma)")
	decompressCmd.Flags().Int64Var(&decompressMaxSize, "max-size", payload.DefaultMaxSize, "Refuse to produce more than this many bytes")
}

// decompressCmd unpacks an LZMA firmware payload
var decompressCmd = &cobra.Command{
	Use:   "decompress <payload>",
	Short: "Decompress an LZMA firmware payload",
	Long: `Decode a classic LZMA (.lzma) firmware payload, such as the images
shipped in firmware update bundles, and write the result to a new file.

The output is checked for an Intel descriptor or SOCROM marker so it can be
passed straight to 'mefit info'.`,
	Example: `  mefit decompress MBP151.scap.lzma -o MBP151.rom`,
	Args:    cobra.ExactArgs(1),
	RunE:    runDecompress,
}

func runDecompress(cmd *cobra.Command, args []string) error {
	data, info, err := firmware.ReadFile(args[0])
	if err != nil {
		return err
	}

	header, err := payload.ParseHeader(data)
	if err != nil {
		return err
	}

	out, err := payload.DecompressLimit(data, decompressMaxSize)
	if err != nil {
		return err
	}

	path := decompressOutput
	if path == "" {
		path = decompressName(args[0])
	}
	if err := writeNewFile(path, out); err != nil {
		return err
	}

	p := ui.NewPrinter(cmd.OutOrStdout())
	p.PrintSuccess("Payload decompressed",
		ui.F("Input", fmt.Sprintf("%s (%d bytes)", info.Name, info.Length)),
		ui.F("Header", header.String()),
		ui.F("Output", path),
		ui.F("Length", fmt.Sprintf("%d (0x%X)", len(out), len(out))),
		ui.F("CRC32", checksum.CRC32Hex(out)),
		ui.F("Family", firmware.DetectFamily(out).String()),
	)
	return p.Flush()
}

// decompressName strips a .lzma suffix, or appends .out when there is none.
func decompressName(in string) string {
	base := filepath.Base(in)
	if trimmed := strings.TrimSuffix(base, ".lzma"); trimmed != base && trimmed != "" {
		return trimmed
	}
	return base + ".out"
}
