// Package logging provides structured logging for mefit.
//
// This package wraps a zap logger that is silent unless a level is requested
// through --log-level or MEFIT_LOG_LEVEL. Log output goes to stderr so it
// never mixes with exported data on stdout.
//
// # Log Levels
//
//   - Debug: region dumps, store offsets, decoded fields
//   - Info: files loaded, builds written
//   - Warn: CRC mismatches, stores at unexpected offsets
//   - Error: build verification failures
//
// # Structured Logging
//
//	logging.Info("Image loaded",
//	    zap.String("path", path),
//	    zap.Int("length", len(data)),
//	)
//
// Region dumps:
//
//	logging.LogRegion("Fsys store", section.Offset, section.Store)
package logging
