package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/go-kit/log/level"
)

func TestNewFiltersBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "warn")

	level.Info(logger).Log("msg", "hidden")
	level.Warn(logger).Log("msg", "shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info line should be filtered at warn level: %q", out)
	}
	if !strings.Contains(out, "msg=shown") {
		t.Errorf("expected warn line in output, got %q", out)
	}
}

func TestUnknownLevelDefaultsToInfo(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "chatty")

	level.Debug(logger).Log("msg", "debug-line")
	level.Info(logger).Log("msg", "info-line")

	out := buf.String()
	if strings.Contains(out, "debug-line") {
		t.Error("debug should be filtered by default")
	}
	if !strings.Contains(out, "info-line") {
		t.Error("info should pass by default")
	}
}

func TestComponentTagsLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := Component(New(&buf, "info"), "hub")
	level.Info(logger).Log("msg", "hello")

	if !strings.Contains(buf.String(), "component=hub") {
		t.Errorf("expected component key, got %q", buf.String())
	}
}
