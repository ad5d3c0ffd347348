package logging

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"

	"github.com/ochairo/libbundle/internal/domain/interfaces"
)

func TestTextLogger_Levels(t *testing.T) {
	var buf bytes.Buffer
	logger := NewTextLogger(&buf, slog.LevelWarn)

	logger.Debug("hidden")
	logger.Info("hidden")
	logger.Warn("cache full", interfaces.F("size", 3))
	logger.Error("copy failed", interfaces.F("path", "/lib/libc.so.6"), interfaces.F("error", errors.New("no space")))

	want := "level=WARN msg=\"cache full\" size=3\n" +
		"level=ERROR msg=\"copy failed\" path=/lib/libc.so.6 error=\"no space\"\n"
	if buf.String() != want {
		t.Errorf("output =\n%s\nwant\n%s", buf.String(), want)
	}
}

func TestTextLogger_Debug(t *testing.T) {
	var buf bytes.Buffer
	logger := NewTextLogger(&buf, slog.LevelDebug)

	logger.Debug("extracted", interfaces.F("dependencies", 2))

	if got, want := buf.String(), "level=DEBUG msg=extracted dependencies=2\n"; got != want {
		t.Errorf("output = %q, want %q", got, want)
	}
}

func TestSlogLogger_SatisfiesLogger(t *testing.T) {
	var _ interfaces.Logger = NewSlogLogger(slog.NewTextHandler(&bytes.Buffer{}, nil))
}
