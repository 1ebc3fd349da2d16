package app

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/five82/termstack/internal/config"
)

const validConfig = `
version: v1
app:
  name: demo
start: list
pages:
  list:
    title: List
    data:
      adapter: cli
      command: echo
      args: ['[]']
    next:
      - condition: "row.kind == 'x'"
        page: detail
    view:
      type: table
  detail:
    title: Detail
    data:
      adapter: cli
      command: echo
      args: ['{}']
    view:
      type: text
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "termstack.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestRunValidate(t *testing.T) {
	var out bytes.Buffer
	err := Run(context.Background(), Options{ConfigPath: writeConfig(t, validConfig), Validate: true, Out: &out})
	if err != nil {
		t.Fatalf("Run validate: %v", err)
	}
	report := out.String()
	if !strings.Contains(report, "2 pages") {
		t.Fatalf("report = %q, want page count", report)
	}
	if !strings.Contains(report, "warning:") {
		t.Fatalf("report = %q, want the missing default warning", report)
	}
}

func TestRunValidateUnknownPage(t *testing.T) {
	body := strings.Replace(validConfig, "page: detail", "page: missing", 1)
	err := Run(context.Background(), Options{ConfigPath: writeConfig(t, body), Validate: true, Out: &bytes.Buffer{}})
	if err == nil {
		t.Fatal("expected an error for an unknown page")
	}
	var cfgErr *config.Error
	if !errors.As(err, &cfgErr) {
		t.Fatalf("error %v is not a *config.Error", err)
	}
}

func TestDefaultLogPath(t *testing.T) {
	t.Setenv("XDG_STATE_HOME", "/tmp/state")
	if got := DefaultLogPath(); got != "/tmp/state/termstack/termstack.log" {
		t.Fatalf("DefaultLogPath = %q", got)
	}

	t.Setenv("XDG_STATE_HOME", "")
	if got := DefaultLogPath(); !strings.HasSuffix(got, filepath.Join(".local", "state", "termstack", "termstack.log")) {
		t.Fatalf("DefaultLogPath fallback = %q", got)
	}
}

func TestNewLoggerLevels(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "termstack.log")

	logger, closeLog, err := NewLogger(path, false)
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	logger.Debug("hidden debug")
	logger.Warn("visible warning", "page", "pods")
	closeLog()

	logger, closeLog, err = NewLogger(path, true)
	if err != nil {
		t.Fatalf("NewLogger verbose: %v", err)
	}
	logger.Debug("verbose debug")
	closeLog()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	got := string(data)
	if strings.Contains(got, "hidden debug") {
		t.Error("debug written without verbose")
	}
	for _, want := range []string{"visible warning", "page=pods", "verbose debug"} {
		if !strings.Contains(got, want) {
			t.Errorf("log does not contain %q", want)
		}
	}
}
