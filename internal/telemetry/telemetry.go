// Package telemetry carries the ambient observability stack: structured
// logging via charmbracelet/log, timestamp formatting via
// lestrrat-go/strftime, optional mDNS stats advertisement via
// brutella/dnssd, and an optional squelch-state GPIO line via
// warthog618/go-gpiocdev. None of this is part of the signal/protocol
// pipeline itself (spec.md §1's Out of scope: logging formatting) but
// every component logs through it the way samoyed's log.go/audio_stats.go
// report through their own thin wrappers.
package telemetry

import (
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/lestrrat-go/strftime"
)

// Logger wraps *log.Logger with the timestamp format used throughout
// the pipeline's structured logs, and satisfies trunk.Logger.
type Logger struct {
	inner *log.Logger
	stamp *strftime.Strftime
}

// New builds a Logger writing to w at the given level (e.g. log.InfoLevel).
func New(w *os.File, level log.Level) *Logger {
	inner := log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		Level:           level,
	})
	stamp, err := strftime.New("%Y-%m-%d %H:%M:%S")
	if err != nil {
		// The layout above is a fixed literal; a parse failure here
		// would be a programming error, not a runtime condition.
		panic(fmt.Sprintf("telemetry: invalid timestamp layout: %v", err))
	}
	return &Logger{inner: inner, stamp: stamp}
}

func (l *Logger) Infof(format string, args ...any) {
	l.inner.Info(fmt.Sprintf(format, args...))
}

func (l *Logger) Warnf(format string, args ...any) {
	l.inner.Warn(fmt.Sprintf(format, args...))
}

func (l *Logger) Errorf(format string, args ...any) {
	l.inner.Error(fmt.Sprintf(format, args...))
}

// FormattedTimestamp renders t using the configured strftime layout, for
// log lines and history display that want a fixed, locale-independent
// format rather than Go's default RFC3339.
func (l *Logger) FormattedTimestamp(t time.Time) string {
	return l.stamp.FormatString(t)
}
