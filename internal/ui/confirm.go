package ui

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// ConfirmPhrase must be typed to approve a dangerous operation.
const ConfirmPhrase = "I AGREE"

// ConfirmDangerousOperation displays a warning box on out and reads a line
// from in. It returns true only if the user typed ConfirmPhrase.
func ConfirmDangerousOperation(in io.Reader, out io.Writer, title string, warnings []string, disclaimer string) bool {
	width := GetTerminalWidth()

	lines := []string{
		"",
		WarningTitleStyle.Render(fmt.Sprintf("   %s  WARNING  ─  %s", WarningMarker, title)),
		"",
	}

	bulletStyle := lipgloss.NewStyle().Foreground(TextColor)
	for _, warning := range warnings {
		lines = append(lines, bulletStyle.Render("   • "+warning))
	}
	lines = append(lines, "")

	if disclaimer != "" {
		disclaimerStyle := lipgloss.NewStyle().
			Foreground(MutedColor).
			Italic(true).
			Width(width - 12).
			PaddingLeft(3)
		lines = append(lines, disclaimerStyle.Render(disclaimer), "")
	}

	_, _ = fmt.Fprintln(out, boxStyle(width, WarningColor).Render(strings.Join(lines, "\n")))
	_, _ = fmt.Fprintln(out)

	promptStyle := lipgloss.NewStyle().
		Foreground(WarningColor).
		Bold(true)
	_, _ = fmt.Fprint(out, promptStyle.Render(fmt.Sprintf("To proceed, type %q and press Enter: ", ConfirmPhrase)))

	input, err := bufio.NewReader(in).ReadString('\n')
	_, _ = fmt.Fprintln(out)
	if err != nil && input == "" {
		return false
	}

	if strings.TrimSpace(input) == ConfirmPhrase {
		return true
	}

	cancelStyle := lipgloss.NewStyle().Foreground(MutedColor)
	_, _ = fmt.Fprintln(out, cancelStyle.Render("  Operation cancelled."))
	_, _ = fmt.Fprintln(out)
	return false
}

// ImageWriteConfirmation is the confirmation shown before a patched image is
// written. changes lists the edits in plain words.
func ImageWriteConfirmation(in io.Reader, out io.Writer, source string, changes []string) bool {
	warnings := append([]string{
		"A new image is written to the builds directory; " + source + " is not modified",
	}, changes...)
	warnings = append(warnings,
		"Flash the result only after checking it with 'mefit info'",
		"Keep the backup of the original dump until the machine boots",
	)

	return ConfirmDangerousOperation(in, out,
		"FIRMWARE PATCH",
		warnings,
		"DISCLAIMER: This software is provided as-is, without warranty of any kind. "+
			"Writing a modified image to a logic board's SPI flash can leave the machine "+
			"unbootable. By proceeding, you acknowledge that you understand the risks involved.",
	)
}
