package patcher

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// LogLevel grades a build log line.
type LogLevel int

const (
	LogInfo LogLevel = iota
	LogWarn
	LogError
	LogGood
)

func (l LogLevel) String() string {
	switch l {
	case LogInfo:
		return "INFO"
	case LogWarn:
		return "WARN"
	case LogError:
		return "ERROR"
	case LogGood:
		return "OK"
	default:
		return fmt.Sprintf("LogLevel(%d)", int(l))
	}
}

// LogLine is one entry in a BuildLog.
type LogLine struct {
	Level LogLevel
	Text  string
}

// BuildLog records the narrative of a build for display and mirrors each
// line to a zap logger.
type BuildLog struct {
	lines  []LogLine
	logger *zap.Logger
}

// NewBuildLog creates a log. A nil logger discards the mirrored output.
func NewBuildLog(logger *zap.Logger) *BuildLog {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BuildLog{logger: logger}
}

func (l *BuildLog) add(level LogLevel, format string, args ...any) {
	text := fmt.Sprintf(format, args...)
	l.lines = append(l.lines, LogLine{Level: level, Text: text})

	switch level {
	case LogWarn:
		l.logger.Warn(text)
	case LogError:
		l.logger.Error(text)
	default:
		l.logger.Info(text, zap.Stringer("level", level))
	}
}

func (l *BuildLog) Infof(format string, args ...any)  { l.add(LogInfo, format, args...) }
func (l *BuildLog) Warnf(format string, args ...any)  { l.add(LogWarn, format, args...) }
func (l *BuildLog) Errorf(format string, args ...any) { l.add(LogError, format, args...) }
func (l *BuildLog) Goodf(format string, args ...any)  { l.add(LogGood, format, args...) }

// Lines returns the recorded lines.
func (l *BuildLog) Lines() []LogLine {
	return l.lines
}

// HasErrors reports whether any error line was recorded.
func (l *BuildLog) HasErrors() bool {
	for _, line := range l.lines {
		if line.Level == LogError {
			return true
		}
	}
	return false
}

// String renders the log as "LEVEL text" lines.
func (l *BuildLog) String() string {
	var b strings.Builder
	for _, line := range l.lines {
		fmt.Fprintf(&b, "%-5s %s\n", line.Level, line.Text)
	}
	return b.String()
}
