// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
)

const (
	LevelsFlag        = "log-level"
	LevelsPlaceholder = "(panic|fatal|error|warn|info|debug|trace)"
	LevelsHelp        = "The minimum log level."

	FileFlag     = "log-file"
	FileFlagHelp = "Path to the log file."

	ColorFlag         = "log-color"
	ColorsPlaceholder = "(always|auto|never)"
	ColorFlagHelp     = "Color setting for log terminal output."

	ColorAlways = "always"
	ColorAuto   = "auto"
	ColorNever  = "never"

	defaultStderrLogLevel = logrus.InfoLevel
	defaultFileLogLevel   = logrus.DebugLevel
)

var (
	// Log is the shared logger for the whole tool.
	// Output is discarded until one of the Init functions is called.
	Log = newLogger()

	stderrHook *writerHook
	fileHook   *writerHook

	levelColors = map[logrus.Level]*color.Color{
		logrus.PanicLevel: color.New(color.FgRed, color.Bold),
		logrus.FatalLevel: color.New(color.FgRed, color.Bold),
		logrus.ErrorLevel: color.New(color.FgRed),
		logrus.WarnLevel:  color.New(color.FgYellow),
		logrus.InfoLevel:  color.New(color.FgCyan),
		logrus.DebugLevel: color.New(color.FgWhite),
		logrus.TraceLevel: color.New(color.FgHiBlack),
	}
)

type LogFlags struct {
	LogColor *string
	LogFile  *string
	LogLevel *string
}

// writerHook sends entries at or above a minimum level to a writer.
type writerHook struct {
	writer    io.Writer
	level     logrus.Level
	formatter logrus.Formatter
}

func (h *writerHook) Levels() []logrus.Level {
	levels := []logrus.Level(nil)
	for _, level := range logrus.AllLevels {
		if level <= h.level {
			levels = append(levels, level)
		}
	}
	return levels
}

func (h *writerHook) Fire(entry *logrus.Entry) error {
	if entry.Level > h.level {
		return nil
	}

	line, err := h.formatter.Format(entry)
	if err != nil {
		return err
	}

	_, err = h.writer.Write(line)
	return err
}

type lineFormatter struct {
	useColor bool
}

func (f *lineFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	levelText := strings.ToUpper(entry.Level.String())
	if len(levelText) > 4 {
		levelText = levelText[:4]
	}

	if f.useColor {
		levelText = levelColors[entry.Level].Sprint(levelText)
	}

	builder := strings.Builder{}
	fmt.Fprintf(&builder, "%s[%s] %s", levelText, entry.Time.Format(time.TimeOnly), entry.Message)

	keys := make([]string, 0, len(entry.Data))
	for key := range entry.Data {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		fmt.Fprintf(&builder, " %s=%v", key, entry.Data[key])
	}

	builder.WriteString("\n")
	return []byte(builder.String()), nil
}

// Levels returns the names of all the supported log levels.
func Levels() []string {
	levels := make([]string, 0, len(logrus.AllLevels))
	for _, level := range logrus.AllLevels {
		name := level.String()
		if level == logrus.WarnLevel {
			name = "warn"
		}
		levels = append(levels, name)
	}
	return levels
}

// Colors returns the names of all the supported color modes.
func Colors() []string {
	return []string{ColorAlways, ColorAuto, ColorNever}
}

func newLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	log.SetLevel(logrus.TraceLevel)
	return log
}

// InitStderrLog sets up a logger that only writes to stderr.
func InitStderrLog() {
	Log = newLogger()

	stderrHook = &writerHook{
		writer:    os.Stderr,
		level:     defaultStderrLogLevel,
		formatter: &lineFormatter{useColor: useColor(ColorAuto)},
	}
	Log.AddHook(stderrHook)
}

// InitBestEffort sets up logging from the command-line flags.
// Problems with the flags are reported but do not stop the program.
func InitBestEffort(lf *LogFlags) {
	if lf == nil {
		InitStderrLog()
		return
	}

	err := InitLogFile(derefOrEmpty(lf.LogFile), derefOrEmpty(lf.LogLevel), derefOrEmpty(lf.LogColor))
	if err != nil {
		Log.Warnf("Failed to initialize logging:\n%v", err)
	}
}

// InitLogFile sets up the stderr logger and, when a path is given, an additional log file.
func InitLogFile(logFile string, level string, colorMode string) error {
	InitStderrLog()

	if colorMode != "" {
		stderrHook.formatter = &lineFormatter{useColor: useColor(colorMode)}
	}

	if level != "" {
		err := SetStderrLogLevel(level)
		if err != nil {
			return err
		}
	}

	if logFile == "" {
		return nil
	}

	err := os.MkdirAll(filepath.Dir(logFile), os.ModePerm)
	if err != nil {
		return fmt.Errorf("failed to create log file directory (%s):\n%w", filepath.Dir(logFile), err)
	}

	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open log file (%s):\n%w", logFile, err)
	}

	fileLevel := defaultFileLogLevel
	if stderrHook.level > fileLevel {
		fileLevel = stderrHook.level
	}

	fileHook = &writerHook{
		writer:    file,
		level:     fileLevel,
		formatter: &lineFormatter{useColor: false},
	}
	Log.AddHook(fileHook)

	return nil
}

// SetStderrLogLevel changes the minimum level written to stderr.
func SetStderrLogLevel(level string) error {
	parsedLevel, err := logrus.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level (%s):\n%w", level, err)
	}

	if stderrHook == nil {
		return fmt.Errorf("stderr log has not been initialized")
	}

	stderrHook.level = parsedLevel
	return nil
}

// StderrLogLevel returns the minimum level written to stderr.
func StderrLogLevel() logrus.Level {
	if stderrHook == nil {
		return defaultStderrLogLevel
	}
	return stderrHook.level
}

func useColor(colorMode string) bool {
	switch colorMode {
	case ColorAlways:
		return true
	case ColorNever:
		return false
	default:
		return !color.NoColor
	}
}

func derefOrEmpty(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
