package ui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/muurk/mefit/internal/patcher"
)

// BuildRunnerConfig holds configuration for an image build
type BuildRunnerConfig struct {
	Title   string              // Command title (e.g., "Serial Rewrite")
	Command string              // Full command (e.g., "mefit set-serial")
	Params  []Field             // Parameters to display in header
	Steps   []patcher.BuildStep // Stages to track, defaults to patcher.BuildSteps
	Verbose bool                // Whether to show the build log on success
	Output  io.Writer

	// Troubleshoot returns tips for a failed build. Nil uses DefaultTroubleshooting.
	Troubleshoot func(err error) []string
}

// BuildRunner orchestrates the UI for an image build.
// It manages the header → progress → result flow.
type BuildRunner struct {
	config    BuildRunnerConfig
	header    *Header
	progress  *Progress
	output    io.Writer
	log       *patcher.BuildLog
	startTime time.Time
	width     int
}

// NewBuildRunner creates a new runner for a build command
func NewBuildRunner(config BuildRunnerConfig) *BuildRunner {
	if config.Output == nil {
		config.Output = os.Stdout
	}
	if len(config.Steps) == 0 {
		config.Steps = patcher.BuildSteps
	}
	if config.Troubleshoot == nil {
		config.Troubleshoot = DefaultTroubleshooting
	}

	width := GetTerminalWidth()

	return &BuildRunner{
		config:   config,
		header:   NewHeader(config.Title, config.Command, config.Params...).SetWidth(width),
		progress: NewProgress(config.Steps).SetWidth(width),
		output:   config.Output,
		width:    width,
	}
}

// BuildOperation runs the build, forwarding onStep to
// patcher.BuildOptions.OnStep, and returns the details to show on success.
type BuildOperation func(onStep patcher.StepFunc) ([]Field, error)

// Run executes the build with UI updates.
// It displays the header, tracks progress, and shows the result.
func (r *BuildRunner) Run(ctx context.Context, operation BuildOperation) error {
	r.startTime = time.Now()

	_, _ = fmt.Fprintln(r.output, r.header.Render())
	_, _ = fmt.Fprintln(r.output)

	var (
		details []Field
		err     = ctx.Err()
	)
	if err == nil {
		details, err = operation(r.observe)
		_, _ = fmt.Fprintln(r.output)
		_, _ = fmt.Fprintln(r.output, r.progress.Bar())
	}
	duration := time.Since(r.startTime)

	if err != nil {
		r.printFailure(err)
	} else {
		r.printSuccess(details, duration)
	}

	return err
}

// SetLog stores the build log for display
func (r *BuildRunner) SetLog(log *patcher.BuildLog) {
	r.log = log
}

// Progress returns the stage tracker
func (r *BuildRunner) Progress() *Progress {
	return r.progress
}

// observe prints a stage line for each build event. A running stage is
// overwritten in place once it settles.
func (r *BuildRunner) observe(step patcher.BuildStep, event patcher.StepEvent, message string) {
	line, ok := r.progress.Observe(step, event, message)
	if !ok {
		return
	}
	if event == patcher.StepStarted {
		_, _ = fmt.Fprint(r.output, line+"\r")
		return
	}
	_, _ = fmt.Fprintln(r.output, line)
}

func (r *BuildRunner) printSuccess(details []Field, duration time.Duration) {
	_, _ = fmt.Fprintln(r.output)

	result := NewSuccessResult(r.config.Title+" complete", details...).
		AddDetail("Duration", duration.Round(time.Millisecond).String()).
		SetWidth(r.width)
	_, _ = fmt.Fprintln(r.output, result.Render())

	if r.config.Verbose && r.log != nil {
		_, _ = fmt.Fprintln(r.output)
		_, _ = fmt.Fprintln(r.output, NewLogBox(r.log).SetWidth(r.width).Render())
	}
}

// printFailure prints a failure result with troubleshooting. The build log
// is always shown because it explains which check failed.
func (r *BuildRunner) printFailure(err error) {
	_, _ = fmt.Fprintln(r.output)

	result := NewFailureResult(r.config.Title+" failed", err, r.config.Troubleshoot(err)...)
	result.SetWidth(r.width)
	_, _ = fmt.Fprintln(r.output, result.Render())

	if r.log != nil && len(r.log.Lines()) > 0 {
		_, _ = fmt.Fprintln(r.output)
		_, _ = fmt.Fprintln(r.output, NewLogBox(r.log).SetWidth(r.width).Render())
	}
}

// DefaultTroubleshooting suggests next steps based on the failing build stage.
func DefaultTroubleshooting(err error) []string {
	var buildErr *patcher.BuildError
	if !errors.As(err, &buildErr) {
		return []string{
			"Check the input image with: mefit validate <image>",
			"Set MEFIT_LOG_LEVEL=debug for detailed logs",
		}
	}

	switch buildErr.Reason {
	case patcher.ReasonApply:
		return []string{"The edit does not fit inside the image; re-check the offsets with: mefit info <image>"}
	case patcher.ReasonBackup:
		return []string{"Check that the backups directory is writable", "Set build.backup_original: false to skip the archive"}
	case patcher.ReasonWrite:
		return []string{"Check that the builds directory is writable", "The output file must not already exist"}
	case patcher.ReasonReadBack, patcher.ReasonDigestMismatch:
		return []string{"The written file differs from memory; check the disk and retry", "Do not flash " + buildErr.Path}
	case patcher.ReasonSectionMismatch:
		return []string{"The edited store did not read back as expected", "Do not flash " + buildErr.Path}
	default:
		return nil
	}
}
