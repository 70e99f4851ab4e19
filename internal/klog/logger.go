// Package klog is a small leveled, colored logger in the style the host
// service has always used: no external logging framework, just enough
// structure to grep a running producer's output.
package klog

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"time"
)

const (
	LevelTrace = iota
	LevelDebug
	LevelInfo
	LevelWarn
	LevelError
	LevelNone
)

var levelName = []string{"Trace", "Debug", "Info", "Warn", "Error"}

var (
	magenta = string([]byte{27, 91, 57, 53, 109})
	green   = string([]byte{27, 91, 57, 50, 109})
	blue    = string([]byte{27, 91, 57, 52, 109})
	yellow  = string([]byte{27, 91, 57, 51, 109})
	red     = string([]byte{27, 91, 57, 49, 109})
	reset   = string([]byte{27, 91, 48, 109})
	colors  = []string{magenta, green, blue, yellow, red}
)

var level = LevelInfo

func init() {
	if v := os.Getenv("KVMFR_LOG_LEVEL"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n <= LevelNone {
			level = n
		}
	}
}

// SetLevel changes the package-wide minimum level. The default is Info.
func SetLevel(l int) {
	if l <= LevelNone {
		level = l
	}
}

// Logger writes leveled lines to an io.Writer, prefixed with its name.
type Logger struct {
	name      string
	out       io.Writer
	callDepth int
}

// New returns a Logger that prefixes every line with name.
func New(name string) *Logger {
	return &Logger{name: name, out: os.Stdout, callDepth: 4}
}

func (l *Logger) logf(lvl int, format string, a ...interface{}) {
	if level > lvl {
		return
	}
	_, _ = fmt.Fprintf(l.out, l.prefix(lvl)+format+reset+"\n", a...)
}

func (l *Logger) Tracef(format string, a ...interface{}) { l.logf(LevelTrace, format, a...) }
func (l *Logger) Debugf(format string, a ...interface{}) { l.logf(LevelDebug, format, a...) }
func (l *Logger) Infof(format string, a ...interface{})  { l.logf(LevelInfo, format, a...) }
func (l *Logger) Warnf(format string, a ...interface{})  { l.logf(LevelWarn, format, a...) }
func (l *Logger) Errorf(format string, a ...interface{}) { l.logf(LevelError, format, a...) }

func (l *Logger) prefix(lvl int) string {
	var buffer [64]byte
	buf := bytes.NewBuffer(buffer[:0])
	buf.WriteString(colors[lvl])
	buf.WriteString(levelName[lvl])
	buf.WriteByte(' ')
	buf.WriteString(time.Now().Format("2006-01-02 15:04:05.000000"))
	buf.WriteByte(' ')
	buf.WriteString(l.location())
	buf.WriteByte(' ')
	buf.WriteString(l.name)
	buf.WriteByte(' ')
	return buf.String()
}

func (l *Logger) location() string {
	_, file, line, ok := runtime.Caller(l.callDepth)
	if !ok {
		file = "???"
		line = 0
	}
	return filepath.Base(file) + ":" + strconv.Itoa(line)
}
