package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"

	"github.com/muurk/mefit/internal/patcher"
)

type stageState int

const (
	statePending stageState = iota
	stateRunning
	stateDone
	stateSkipped
	stateFailed
)

type stage struct {
	step    patcher.BuildStep
	state   stageState
	message string
}

// Progress tracks the stages of a patcher build. It is fed the same events
// BuildAndVerify reports through BuildOptions.OnStep.
type Progress struct {
	Width  int
	stages []stage
	bar    progress.Model
}

// NewProgress tracks steps in the given order.
func NewProgress(steps []patcher.BuildStep) *Progress {
	p := &Progress{stages: make([]stage, len(steps))}
	for i, step := range steps {
		p.stages[i] = stage{step: step}
	}
	return p.SetWidth(GetTerminalWidth())
}

// SetWidth sizes the bar to the terminal, within 20 to 50 columns.
func (p *Progress) SetWidth(width int) *Progress {
	p.Width = width
	barWidth := min(max(width-20, 20), 50)
	p.bar = progress.New(
		progress.WithDefaultGradient(),
		progress.WithWidth(barWidth),
	)
	return p
}

// Observe records a build event and returns the rendered line for that
// stage. Steps the tracker does not list report false.
func (p *Progress) Observe(step patcher.BuildStep, event patcher.StepEvent, message string) (string, bool) {
	i := p.index(step)
	if i < 0 {
		return "", false
	}

	switch event {
	case patcher.StepStarted:
		p.stages[i].state = stateRunning
	case patcher.StepDone:
		p.stages[i].state = stateDone
	case patcher.StepSkipped:
		p.stages[i].state = stateSkipped
	case patcher.StepFailed:
		p.stages[i].state = stateFailed
	}
	p.stages[i].message = message
	return p.line(i), true
}

func (p *Progress) index(step patcher.BuildStep) int {
	for i, s := range p.stages {
		if s.step == step {
			return i
		}
	}
	return -1
}

// Percent is the share of stages that finished or were skipped.
func (p *Progress) Percent() float64 {
	if len(p.stages) == 0 {
		return 0
	}
	settled := 0
	for _, s := range p.stages {
		if s.state == stateDone || s.state == stateSkipped {
			settled++
		}
	}
	return float64(settled) / float64(len(p.stages))
}

// Failed reports whether any stage failed.
func (p *Progress) Failed() bool {
	for _, s := range p.stages {
		if s.state == stateFailed {
			return true
		}
	}
	return false
}

// Done reports whether every stage finished or was skipped.
func (p *Progress) Done() bool {
	for _, s := range p.stages {
		if s.state != stateDone && s.state != stateSkipped {
			return false
		}
	}
	return true
}

// Bar renders the bar with its percentage and settled stage count.
func (p *Progress) Bar() string {
	settled := 0
	for _, s := range p.stages {
		if s.state == stateDone || s.state == stateSkipped {
			settled++
		}
	}
	return lipgloss.NewStyle().
		PaddingLeft(2).
		Render(fmt.Sprintf("%s  %3.0f%%  [%d/%d]", p.bar.ViewAs(p.Percent()), p.Percent()*100, settled, len(p.stages)))
}

// Render returns the bar followed by one line per stage.
func (p *Progress) Render() string {
	lines := []string{p.Bar(), ""}
	for i := range p.stages {
		lines = append(lines, p.line(i))
	}
	return strings.Join(lines, "\n")
}

func (p *Progress) line(i int) string {
	s := p.stages[i]
	name := s.step.String()

	var marker string
	var style lipgloss.Style
	switch s.state {
	case stateDone:
		marker, style = StepMarkerComplete, StepCompleteStyle
	case stateRunning:
		marker, style = StepMarkerRunning, StepRunningStyle
	case stateFailed:
		marker, style = FailureMarker, ErrorTitleStyle
	case stateSkipped:
		marker, style = StepMarkerSkipped, StepPendingStyle
	default:
		marker, style = StepMarkerPending, StepPendingStyle
	}

	var b strings.Builder
	fmt.Fprintf(&b, "  [%d/%d] ", i+1, len(p.stages))
	b.WriteString(style.Render(name))
	b.WriteString(strings.Repeat(" ", max(30-lipgloss.Width(name), 1)))
	b.WriteString(style.Render(marker))
	if s.message != "" {
		b.WriteString("  ")
		b.WriteString(StepNoteStyle.Render("(" + s.message + ")"))
	}
	return b.String()
}

// String implements fmt.Stringer
func (p *Progress) String() string {
	return p.Render()
}
