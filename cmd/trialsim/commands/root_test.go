package commands

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.opentelemetry.io/contrib/bridges/otelslog"
)

func TestInitRuntimeRoutesBridgeLogsToLogFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trialsim.log")
	envFile, logFile, logLevel = "", path, "info"
	t.Cleanup(func() {
		envFile, logFile, logLevel = ".env", appName+".log", "info"
	})

	if err := initRuntime(nil, nil); err != nil {
		t.Fatalf("unexpected setup error: %v", err)
	}

	logger := otelslog.NewLogger("github.com/koscakluka/ema-trial/core")
	logger.Debug("resampler primed")
	logger.Info("session live", "phase", "cross-examination")

	if err := teardown(nil, nil); err != nil {
		t.Fatalf("unexpected teardown error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}
	if !strings.Contains(string(data), "session live") {
		t.Fatalf("expected core log record in log file, got:\n%s", data)
	}
	if strings.Contains(string(data), "resampler primed") {
		t.Fatalf("expected debug record to be filtered at info level, got:\n%s", data)
	}
}

func TestInitRuntimeRejectsUnknownLevel(t *testing.T) {
	envFile, logFile, logLevel = "", "-", "verbose"
	t.Cleanup(func() {
		envFile, logFile, logLevel = ".env", appName+".log", "info"
	})

	if err := initRuntime(nil, nil); err == nil {
		t.Fatalf("expected an unknown level to be rejected")
	}
}
