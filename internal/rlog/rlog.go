// Package rlog provides level-filtered, timestamped console logging for the
// build loop and CLI. Grounded directly on the teacher's
// internal/logger.ConsoleLogger (blueman82/conductor
// internal/logger/console.go): same level set, same
// "[HH:MM:SS] [LEVEL] message" layout, same TTY-conditioned color output,
// trimmed of conductor's wave/QC/guard-specific log methods that have no
// counterpart in a single-story build loop.
package rlog

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

const (
	levelDebug int = iota
	levelInfo
	levelWarn
	levelError
)

// Logger writes level-filtered, timestamped messages to an io.Writer.
type Logger struct {
	writer   io.Writer
	minLevel int
	useColor bool
	mu       sync.Mutex
}

// New returns a Logger writing to w, filtering to level and above ("debug",
// "info", "warn", "error"; unrecognized values default to "info"). Color is
// enabled automatically when w is a TTY.
func New(w io.Writer, level string) *Logger {
	return &Logger{
		writer:   w,
		minLevel: parseLevel(level),
		useColor: isTerminal(w),
	}
}

func isTerminal(w io.Writer) bool {
	if w == os.Stdout {
		return isatty.IsTerminal(os.Stdout.Fd())
	}
	if w == os.Stderr {
		return isatty.IsTerminal(os.Stderr.Fd())
	}
	return false
}

func parseLevel(level string) int {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return levelDebug
	case "warn":
		return levelWarn
	case "error":
		return levelError
	default:
		return levelInfo
	}
}

// Box writes raw, pre-formatted text (e.g. RenderOverbakeBox's output)
// directly to the writer, unconditioned by level filtering, since it is
// addressed to the operator rather than the log stream.
func (l *Logger) Box(text string) {
	if l == nil || l.writer == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintln(l.writer, text)
}

func (l *Logger) Debugf(format string, args ...interface{}) { l.log(levelDebug, "DEBUG", format, args...) }
func (l *Logger) Infof(format string, args ...interface{})  { l.log(levelInfo, "INFO", format, args...) }
func (l *Logger) Warnf(format string, args ...interface{})  { l.log(levelWarn, "WARN", format, args...) }
func (l *Logger) Errorf(format string, args ...interface{}) { l.log(levelError, "ERROR", format, args...) }

func (l *Logger) log(level int, label, format string, args ...interface{}) {
	if l == nil || l.writer == nil || level < l.minLevel {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	ts := time.Now().Format("15:04:05")
	message := fmt.Sprintf(format, args...)

	var line string
	if l.useColor {
		line = fmt.Sprintf("[%s] [%s] %s\n", ts, colorize(label), message)
	} else {
		line = fmt.Sprintf("[%s] [%s] %s\n", ts, label, message)
	}
	_, _ = l.writer.Write([]byte(line))
}

func colorize(label string) string {
	switch label {
	case "DEBUG":
		return color.New(color.FgHiBlack).Sprint(label)
	case "INFO":
		return color.New(color.FgCyan).Sprint(label)
	case "WARN":
		return color.New(color.FgYellow).Sprint(label)
	case "ERROR":
		return color.New(color.FgRed).Sprint(label)
	default:
		return label
	}
}
