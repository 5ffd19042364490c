// Package ui provides terminal UI components for the mefit CLI.
//
// This package uses Bubble Tea and Lipgloss to render polished terminal output
// for image inspection and patching. Components follow a "run once and exit"
// pattern: they render output compellingly but don't require user
// interaction, except for the typed confirmation before an image is written.
//
// # Architecture
//
// The UI package provides these component types:
//
//   - Header: Command banner showing operation name and parameters
//   - Panel: Neutral box listing the decoded fields of a store
//   - Progress: Progress bar with step list showing build status
//   - Result: Success/failure/warning boxes with styled information
//   - LogBox: The patcher build log, colored by level
//   - Hexdump: Offset/hex/ASCII dump with changed bytes highlighted
//
// Builds are orchestrated by the BuildRunner, which manages the
// header → progress → result flow. Inspection commands collect components
// in a Printer and Flush them once through RenderOnce.
//
// # Usage Pattern
//
// Patch commands use this package by:
//
//  1. Creating a BuildRunner with command metadata
//  2. Calling Run() with their operation function
//  3. The operation passes the runner's step func to patcher.BuildOptions.OnStep
//  4. BuildRunner handles all UI rendering automatically
//
// Example:
//
//	runner := ui.NewBuildRunner(ui.BuildRunnerConfig{
//	    Title:   "Serial Rewrite",
//	    Command: "mefit set-serial MBP151.rom",
//	    Params:  []ui.Field{ui.F("Serial", "C02XXXXXXXXX")},
//	})
//
//	err := runner.Run(ctx, func(onStep patcher.StepFunc) ([]ui.Field, error) {
//	    opts.OnStep = onStep
//	    res, err := patcher.BuildAndVerify(image.Data, edits, opts)
//	    ...
//	})
//
// # Logging Integration
//
// This package expects logging to be controlled via the MEFIT_LOG_LEVEL
// environment variable. When unset or empty, zap logging is silent, allowing
// the curated UI output to be displayed cleanly.
package ui
