// Package logger mirrors status lines to the terminal and to any number of
// in-app sinks such as the console panel.
package logger

import (
	"fmt"
	"strings"
	"sync"

	"github.com/tacusci/logging/v2"
)

var Debug = func(format string, a ...interface{}) {
	logging.Debug(format, a...) //nolint
}

var Info = func(format string, a ...interface{}) {
	logging.Info(format, a...) //nolint
}

var Warn = func(format string, a ...interface{}) {
	logging.Warn(format, a...) //nolint
}

var Error = func(format string, a ...interface{}) {
	logging.Error(format, a...) //nolint
}

// SetLevel accepts debug, info, warn or silent. Unknown values keep the
// current level.
func SetLevel(name string) {
	switch strings.ToLower(name) {
	case "debug":
		logging.SetLevel(logging.DebugLevel)
	case "info":
		logging.SetLevel(logging.InfoLevel)
	case "warn", "warning":
		logging.SetLevel(logging.WarnLevel)
	case "silent", "off":
		logging.SetLevel(logging.SilentLevel)
	}
}

// Sink receives one newline-free status line at a time.
type Sink interface {
	Append(line string)
}

type SinkFunc func(line string)

func (f SinkFunc) Append(line string) { f(line) }

// backlogSize lines are kept for sinks that attach late, such as the
// console which only exists once the window is built.
const backlogSize = 100

type Logger struct {
	mu      sync.RWMutex
	sinks   []Sink
	backlog []string
}

func New(sinks ...Sink) *Logger {
	return &Logger{sinks: sinks}
}

// AddSink registers s and replays the recent backlog to it.
func (l *Logger) AddSink(s Sink) {
	l.mu.Lock()
	l.sinks = append(l.sinks, s)
	backlog := append([]string(nil), l.backlog...)
	l.mu.Unlock()

	for _, line := range backlog {
		s.Append(line)
	}
}

func (l *Logger) Debugf(format string, a ...interface{}) {
	Debug(format, a...)
}

func (l *Logger) Infof(format string, a ...interface{}) {
	Info(format, a...)
	l.fanOut(format, a...)
}

func (l *Logger) Warnf(format string, a ...interface{}) {
	Warn(format, a...)
	l.fanOut(format, a...)
}

func (l *Logger) Errorf(format string, a ...interface{}) {
	Error(format, a...)
	l.fanOut(format, a...)
}

func (l *Logger) fanOut(format string, a ...interface{}) {
	if l == nil {
		return
	}

	line := strings.TrimRight(fmt.Sprintf(format, a...), "\n")

	l.mu.Lock()
	l.backlog = append(l.backlog, line)
	if over := len(l.backlog) - backlogSize; over > 0 {
		l.backlog = append(l.backlog[:0], l.backlog[over:]...)
	}
	sinks := l.sinks
	l.mu.Unlock()

	for _, s := range sinks {
		s.Append(line)
	}
}

// Default logs to the terminal only.
var Default = New()
