package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.viam.com/test"

	"github.com/macro-rover/navigator/config"
	"github.com/macro-rover/navigator/logging"
)

func TestRun(t *testing.T) {
	dir := t.TempDir()
	trajectory := filepath.Join(dir, "trajectory.ndjson")
	cfg, err := config.FromBytes([]byte(`
sensor:
  model: fake
update:
  interval: 10ms
publish:
  file:
    path: `+trajectory+`
  websocket:
    address: localhost:0
`), config.FormatYAML)
	test.That(t, err, test.ShouldBeNil)

	var out bytes.Buffer
	err = run(context.Background(), cfg, runOptions{runFor: 200 * time.Millisecond, summary: true, out: &out}, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out.String(), test.ShouldContainSubstring, "navigation session")
	test.That(t, out.String(), test.ShouldContainSubstring, "distance (m)")

	//nolint:gosec
	data, err := os.ReadFile(trajectory)
	test.That(t, err, test.ShouldBeNil)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	test.That(t, len(lines), test.ShouldBeGreaterThan, 0)
	test.That(t, lines[0], test.ShouldContainSubstring, `"tick":1`)
}

func TestRunUnknownModel(t *testing.T) {
	cfg, err := config.FromBytes([]byte(`{"sensor": {"model": "sonar"}}`), config.FormatJSON)
	test.That(t, err, test.ShouldBeNil)
	err = run(context.Background(), cfg, runOptions{out: &bytes.Buffer{}}, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "sonar")
}

func TestMainWithArgsErrors(t *testing.T) {
	logger := logging.NewTestLogger(t).AsZap()
	err := mainWithArgs(context.Background(), []string{"navigator"}, logger)
	test.That(t, err, test.ShouldNotBeNil)

	path := filepath.Join(t.TempDir(), "navigator.json")
	test.That(t, os.WriteFile(path, []byte(`{"sensor": {"model": "fake"}}`), 0o600), test.ShouldBeNil)
	err = mainWithArgs(context.Background(), []string{"navigator", "--duration=soon", path}, logger)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "duration")
}
