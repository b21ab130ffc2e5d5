package logging

import (
	"bytes"
	"strings"
	"testing"
)

func TestPreInitLoggerUsesConfiguredHandler(t *testing.T) {
	logger := L("detector")

	var buf bytes.Buffer
	Init("text", "info", &buf)

	logger.Info("scan started", "strategy", "ubuntu-drivers")

	out := buf.String()
	if !strings.Contains(out, "msg=\"scan started\"") {
		t.Fatalf("expected scan started message, got: %s", out)
	}
	if !strings.Contains(out, "component=detector") {
		t.Fatalf("expected component field, got: %s", out)
	}
	if !strings.Contains(out, "strategy=ubuntu-drivers") {
		t.Fatalf("expected strategy field, got: %s", out)
	}
}

func TestPreInitLoggerRespectsConfiguredLevel(t *testing.T) {
	logger := L("installer")

	var buf bytes.Buffer
	Init("text", "warn", &buf)

	logger.Info("hidden")
	logger.Warn("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info log should be filtered at warn level: %s", out)
	}
	if !strings.Contains(out, "shown") {
		t.Fatalf("warn log should be emitted: %s", out)
	}
}

func TestJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	Init("json", "info", &buf)
	t.Cleanup(func() { Init("text", "info", &buf) })

	L("executor").Info("command finished", "exitCode", 0)

	out := buf.String()
	if !strings.Contains(out, `"component":"executor"`) {
		t.Fatalf("expected JSON component field, got: %s", out)
	}
	if !strings.Contains(out, `"exitCode":0`) {
		t.Fatalf("expected JSON exitCode field, got: %s", out)
	}
}

func TestWithTaskAttachesCorrelationField(t *testing.T) {
	var buf bytes.Buffer
	Init("text", "info", &buf)

	WithTask(L("taskrunner"), "scan").Info("started")

	out := buf.String()
	if !strings.Contains(out, "task=scan") {
		t.Fatalf("expected task field, got: %s", out)
	}
}

func TestParseLevelDefaultsToInfo(t *testing.T) {
	if got := parseLevel("nonsense"); got.String() != "INFO" {
		t.Fatalf("expected INFO for unknown level, got %s", got)
	}
	if got := parseLevel(" WARNING "); got.String() != "WARN" {
		t.Fatalf("expected WARN, got %s", got)
	}
}
