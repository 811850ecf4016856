//go:build unix

package dispatch

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"devrun.dev/internal/config"
	"devrun.dev/internal/notice"
	"devrun.dev/internal/process"
)

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newRealRunner(t *testing.T, m *config.Manifest, quiet *lockedBuffer, out *lockedBuffer) (*Runner, *process.Registry) {
	t.Helper()
	reg := process.NewRegistry(process.Options{
		Shell:     "/bin/sh",
		KillGrace: 500 * time.Millisecond,
		Stdout:    out,
		Stderr:    out,
	})
	t.Cleanup(func() { reg.KillAll() })
	r := New(m, reg, &fakeHooks{}, notice.NewPlain(out), Options{Output: quiet, Vars: m.Vars})
	return r, reg
}

func TestQuietStepsGoToOutput(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "marker.txt"), nil, 0644); err != nil {
		t.Fatal(err)
	}
	m := &config.Manifest{
		Version: "1.0",
		Vars:    map[string]string{"greeting": "hello"},
		Commands: map[string]config.Command{
			"lint": {
				Description:      "Lint",
				WorkingDirectory: dir,
				Env:              map[string]string{"LINT_MODE": "check"},
				Steps: []config.Step{
					{Run: "echo {{.greeting}} $LINT_MODE; ls", Quiet: true},
					{Run: "echo loud"},
				},
			},
		},
	}
	quiet, out := &lockedBuffer{}, &lockedBuffer{}
	r, reg := newRealRunner(t, m, quiet, out)

	if code := r.Execute(context.Background(), "lint", nil); code != ExitOK {
		t.Fatalf("expected exit 0, got %d: %s", code, out.String())
	}

	if !strings.Contains(quiet.String(), "hello check") || !strings.Contains(quiet.String(), "marker.txt") {
		t.Errorf("quiet output missing from log: %q", quiet.String())
	}
	if strings.Contains(out.String(), "hello") {
		t.Errorf("quiet output leaked to the terminal: %q", out.String())
	}
	if !strings.Contains(out.String(), "loud") {
		t.Errorf("normal step output missing: %q", out.String())
	}
	if reg.Len() != 0 {
		t.Errorf("registry should be empty, has %d", reg.Len())
	}
}

func TestFailureKillsBackgroundProcesses(t *testing.T) {
	m := &config.Manifest{
		Version: "1.0",
		Commands: map[string]config.Command{
			"build": {
				Description: "Build",
				Steps: []config.Step{
					{Spawn: "sleep 30"},
					{Run: "exit 4"},
					{Run: "echo unreachable"},
				},
			},
		},
	}
	quiet, out := &lockedBuffer{}, &lockedBuffer{}
	r, reg := newRealRunner(t, m, quiet, out)

	if code := r.Execute(context.Background(), "build", nil); code != ExitFailure {
		t.Fatalf("expected exit %d, got %d", ExitFailure, code)
	}

	text := out.String()
	for _, want := range []string{"ERROR when running command: exit 4", "Killing all spawned processes", "1 process killed"} {
		if !strings.Contains(text, want) {
			t.Errorf("output missing %q:\n%s", want, text)
		}
	}
	if strings.Contains(text, "unreachable") {
		t.Errorf("step after failure ran:\n%s", text)
	}
	if reg.Len() != 0 {
		t.Errorf("registry should be empty after failure, has %d", reg.Len())
	}
	c := reg.Counts()
	if c.Spawned != c.Reaped+c.Killed {
		t.Errorf("inconsistent counts: %+v", c)
	}
}

func TestSpawnAndWait(t *testing.T) {
	m := &config.Manifest{
		Version: "1.0",
		Commands: map[string]config.Command{
			"cleanup": {
				Description: "Clean up",
				Success:     "Docker cleanup complete",
				Steps: []config.Step{
					{Spawn: "sleep 0.1; echo one", Quiet: true},
					{Spawn: "sleep 0.2; echo two", Quiet: true},
					{Wait: true},
				},
			},
		},
	}
	quiet, out := &lockedBuffer{}, &lockedBuffer{}
	r, reg := newRealRunner(t, m, quiet, out)

	if code := r.Execute(context.Background(), "cleanup", nil); code != ExitOK {
		t.Fatalf("expected exit 0, got %d", code)
	}
	if !strings.Contains(quiet.String(), "one") || !strings.Contains(quiet.String(), "two") {
		t.Errorf("background output missing: %q", quiet.String())
	}
	if reg.Len() != 0 {
		t.Errorf("wait should leave no records, has %d", reg.Len())
	}
	if !strings.Contains(out.String(), "Docker cleanup complete") {
		t.Errorf("success notice missing: %q", out.String())
	}
}
