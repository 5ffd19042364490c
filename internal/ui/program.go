package ui

import (
	"fmt"
	"io"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"
)

// RunOnceModel is a Bubble Tea model that renders once and exits.
// This is used for "run once and exit" output patterns rather than
// interactive TUIs.
type RunOnceModel struct {
	content string
	width   int
	height  int
}

// NewRunOnceModel creates a model that will render the given content and exit
func NewRunOnceModel(content string) RunOnceModel {
	width, height := GetTerminalSize()
	return RunOnceModel{
		content: content,
		width:   width,
		height:  height,
	}
}

// Init implements tea.Model
func (m RunOnceModel) Init() tea.Cmd {
	return tea.Quit
}

// Update implements tea.Model
func (m RunOnceModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if size, ok := msg.(tea.WindowSizeMsg); ok {
		m.width, m.height = size.Width, size.Height
	}
	return m, nil
}

// View implements tea.Model
func (m RunOnceModel) View() string {
	return m.content
}

// RenderOnce renders content using Bubble Tea's rendering engine and
// immediately exits. When w is not a terminal the content is printed as-is.
func RenderOnce(w io.Writer, content string) error {
	if w == nil {
		w = os.Stdout
	}
	if !isTerminalWriter(w) {
		_, err := fmt.Fprint(w, content)
		return err
	}
	p := tea.NewProgram(NewRunOnceModel(strings.TrimSuffix(content, "\n")), tea.WithOutput(w), tea.WithInput(nil))
	_, err := p.Run()
	return err
}

func isTerminalWriter(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// Printer collects UI components for one command and renders them
// together on Flush.
type Printer struct {
	out   io.Writer
	width int
	buf   strings.Builder
}

// NewPrinter creates a new Printer that flushes to the given writer.
// If w is nil, os.Stdout is used.
func NewPrinter(w io.Writer) *Printer {
	if w == nil {
		w = os.Stdout
	}
	return &Printer{
		out:   w,
		width: GetTerminalWidth(),
	}
}

// Width returns the current terminal width used by this printer
func (p *Printer) Width() int {
	return p.width
}

// Flush renders everything collected so far through RenderOnce.
func (p *Printer) Flush() error {
	if p.buf.Len() == 0 {
		return nil
	}
	content := p.buf.String()
	p.buf.Reset()
	return RenderOnce(p.out, content)
}

// Print appends content
func (p *Printer) Print(content string) {
	p.buf.WriteString(content)
}

// Println appends content with a newline
func (p *Printer) Println(content string) {
	p.buf.WriteString(content)
	p.buf.WriteByte('\n')
}

// Newline appends an empty line
func (p *Printer) Newline() {
	p.buf.WriteByte('\n')
}

// PrintHeader appends a command header box
func (p *Printer) PrintHeader(title, command string, params ...Field) {
	p.Println(NewHeader(title, command, params...).SetWidth(p.width).Render())
	p.Newline()
}

// PrintPanel appends a field panel
func (p *Printer) PrintPanel(title string, fields ...Field) {
	p.Println(NewPanel(title, fields...).SetWidth(p.width).Render())
}

// PrintResult appends a prepared result box
func (p *Printer) PrintResult(r *Result) {
	p.Println(r.SetWidth(p.width).Render())
}

// PrintSuccess appends a success result box
func (p *Printer) PrintSuccess(title string, details ...Field) {
	p.PrintResult(NewSuccessResult(title, details...))
}

// PrintError appends an error result box with troubleshooting tips
func (p *Printer) PrintError(title string, err error, troubleshooting ...string) {
	p.PrintResult(NewFailureResult(title, err, troubleshooting...))
}
