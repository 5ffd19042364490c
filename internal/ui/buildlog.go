package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/muurk/mefit/internal/patcher"
)

// LogBox renders a patcher.BuildLog in a muted box, one line per entry
// colored by level.
type LogBox struct {
	Title    string
	Lines    []patcher.LogLine
	Width    int
	MaxLines int // Maximum lines to display (0 = unlimited)
}

// NewLogBox creates a log box for the given build log
func NewLogBox(log *patcher.BuildLog) *LogBox {
	box := &LogBox{
		Title: "Build Log",
		Width: GetTerminalWidth(),
	}
	if log != nil {
		box.Lines = log.Lines()
	}
	return box
}

// SetWidth sets the terminal width for responsive rendering
func (b *LogBox) SetWidth(width int) *LogBox {
	b.Width = width
	return b
}

// SetMaxLines limits the number of lines displayed
func (b *LogBox) SetMaxLines(n int) *LogBox {
	b.MaxLines = n
	return b
}

// Filter keeps only lines at one of the given levels
func (b *LogBox) Filter(levels ...patcher.LogLevel) *LogBox {
	keep := make(map[patcher.LogLevel]bool, len(levels))
	for _, l := range levels {
		keep[l] = true
	}

	var filtered []patcher.LogLine
	for _, line := range b.Lines {
		if keep[line.Level] {
			filtered = append(filtered, line)
		}
	}
	b.Lines = filtered
	return b
}

// Render returns the styled log box as a string
func (b *LogBox) Render() string {
	width := clampWidth(b.Width)

	lines := b.Lines
	truncated := false
	if b.MaxLines > 0 && len(lines) > b.MaxLines {
		lines = lines[:b.MaxLines]
		truncated = true
	}

	rendered := make([]string, 0, len(lines)+1)
	for _, line := range lines {
		rendered = append(rendered, renderLogLine(line))
	}
	if truncated {
		rendered = append(rendered, StepNoteStyle.Render("... (log truncated)"))
	}

	inner := lipgloss.JoinVertical(lipgloss.Left,
		LogTitleStyle.Render(b.Title), "", strings.Join(rendered, "\n"))

	boxWidth := width - 4
	if boxWidth < 40 {
		boxWidth = 40
	}

	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(MutedColor).
		Width(boxWidth).
		Padding(0, 1).
		MarginLeft(2).
		Render(inner)
}

// String implements fmt.Stringer
func (b *LogBox) String() string {
	return b.Render()
}

func renderLogLine(line patcher.LogLine) string {
	switch line.Level {
	case patcher.LogGood:
		return StepCompleteStyle.Render(SuccessMarker + " " + line.Text)
	case patcher.LogWarn:
		return WarningTitleStyle.Render(WarningMarker + " " + line.Text)
	case patcher.LogError:
		return ErrorMessageStyle.Render(FailureMarker + " " + line.Text)
	default:
		return LogInfoStyle.Render("  " + line.Text)
	}
}
