package telemetry

import (
	"os"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
)

func TestFormattedTimestamp_UsesConfiguredLayout(t *testing.T) {
	l := New(os.Stderr, log.InfoLevel)
	ts := time.Date(2026, 7, 31, 12, 30, 0, 0, time.UTC)
	assert.Equal(t, "2026-07-31 12:30:00", l.FormattedTimestamp(ts))
}

func TestLogger_InfofWarnfDoNotPanic(t *testing.T) {
	l := New(os.Stderr, log.WarnLevel)
	assert.NotPanics(t, func() {
		l.Infof("demodulator ready at %d Hz", 410_000_000)
		l.Warnf("no control messages for %s", 6*time.Second)
	})
}
