package alog

import (
	"bytes"
	"strings"
	"testing"

	"github.com/joepatol/aras/pkg/asgi"
)

func TestNewRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := New(asgi.LogWarn, &buf)

	logger.Debug("should not appear")
	logger.Warn("should appear", "key", "value")

	out := buf.String()
	if strings.Contains(out, "should not appear") {
		t.Errorf("debug line leaked through at warn level: %q", out)
	}
	if !strings.Contains(out, "should appear") {
		t.Errorf("warn line missing from output: %q", out)
	}
}

func TestLogOffDiscardsEverything(t *testing.T) {
	var buf bytes.Buffer
	logger := New(asgi.LogOff, &buf)

	logger.Error("nothing should be written")

	if buf.Len() != 0 {
		t.Errorf("expected no output at LogOff, got %q", buf.String())
	}
}

func TestForConnAttachesConnID(t *testing.T) {
	var buf bytes.Buffer
	logger := New(asgi.LogInfo, &buf)

	ForConn(logger, "conn-42").Info("hello")

	if !strings.Contains(buf.String(), "conn-42") {
		t.Errorf("expected conn_id in output, got %q", buf.String())
	}
}

func TestForRequestAttachesConnIDAndRequestNum(t *testing.T) {
	var buf bytes.Buffer
	logger := New(asgi.LogInfo, &buf)

	ForRequest(logger, "conn-1", 3).Info("hello")

	out := buf.String()
	if !strings.Contains(out, "conn-1") {
		t.Errorf("expected conn_id in output, got %q", out)
	}
	if !strings.Contains(out, "request_num=3") {
		t.Errorf("expected request_num=3 in output, got %q", out)
	}
}
