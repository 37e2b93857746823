package logger_test

import (
	"testing"

	"github.com/matryer/is"

	"roadvision/internal/logger"
)

func silence(t *testing.T) {
	t.Helper()

	debug, info, warn, errf := logger.Debug, logger.Info, logger.Warn, logger.Error
	noop := func(string, ...interface{}) {}
	logger.Debug, logger.Info, logger.Warn, logger.Error = noop, noop, noop, noop

	t.Cleanup(func() {
		logger.Debug, logger.Info, logger.Warn, logger.Error = debug, info, warn, errf
	})
}

func TestLoggerFansOutToSinks(t *testing.T) {
	is := is.New(t)
	silence(t)

	var first, second []string
	l := logger.New(logger.SinkFunc(func(line string) { first = append(first, line) }))
	l.AddSink(logger.SinkFunc(func(line string) { second = append(second, line) }))

	l.Infof("Image uploaded: %s", "road.jpg")
	l.Errorf("Error processing image: %v\n", "boom")

	is.Equal(first, []string{"Image uploaded: road.jpg", "Error processing image: boom"})
	is.Equal(second, first)
}

func TestLoggerDebugStaysOffSinks(t *testing.T) {
	is := is.New(t)
	silence(t)

	var lines []string
	l := logger.New(logger.SinkFunc(func(line string) { lines = append(lines, line) }))
	l.Debugf("frame %d", 1)

	is.Equal(len(lines), 0)
}

func TestLoggerWarnGoesThroughPackageFunc(t *testing.T) {
	is := is.New(t)
	silence(t)

	var got string
	logger.Warn = func(format string, a ...interface{}) { got = format }

	logger.New().Warnf("export failed: %v", "disk full")
	is.Equal(got, "export failed: %v")
}

func TestLateSinkGetsBacklog(t *testing.T) {
	is := is.New(t)
	silence(t)

	l := logger.New()
	for i := 0; i < 105; i++ {
		l.Infof("line %d", i)
	}

	var lines []string
	l.AddSink(logger.SinkFunc(func(line string) { lines = append(lines, line) }))

	is.Equal(len(lines), 100)
	is.Equal(lines[0], "line 5")
	is.Equal(lines[99], "line 104")

	l.Infof("after")
	is.Equal(lines[100], "after")
}
