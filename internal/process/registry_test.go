//go:build unix

package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	r := NewRegistry(Options{Shell: "/bin/sh", KillGrace: 500 * time.Millisecond})
	t.Cleanup(func() { r.KillAll() })
	return r
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func assertConsistent(t *testing.T, r *Registry) {
	t.Helper()
	c := r.Counts()
	if c.Spawned != c.Reaped+c.Killed+c.Live {
		t.Errorf("inconsistent counts: spawned=%d reaped=%d killed=%d live=%d",
			c.Spawned, c.Reaped, c.Killed, c.Live)
	}
}

func TestRunReturnsExitCode(t *testing.T) {
	tests := []struct {
		name    string
		command string
		want    int
	}{
		{"success", "true", 0},
		{"failure", "exit 3", 3},
		{"missing command", "definitely-not-a-real-command-xyz", 127},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRegistry(t)

			code, err := r.Run(context.Background(), tt.command, WithOutput(&bytes.Buffer{}))
			if err != nil {
				t.Fatalf("Run(%q) returned error: %v", tt.command, err)
			}
			if code != tt.want {
				t.Errorf("Run(%q) = %d, want %d", tt.command, code, tt.want)
			}
			if r.Len() != 0 {
				t.Errorf("expected empty registry after Run, got %d records", r.Len())
			}
			if c := r.Counts(); c.Reaped != 1 {
				t.Errorf("expected 1 reaped record, got %d", c.Reaped)
			}
		})
	}
}

func TestSpawnFailureLeavesNoRecord(t *testing.T) {
	r := NewRegistry(Options{Shell: "/nonexistent/shell"})

	if _, err := r.Run(context.Background(), "true"); err == nil {
		t.Fatal("expected spawn error for missing shell")
	}
	if _, err := r.Start("true"); err == nil {
		t.Fatal("expected spawn error for missing shell")
	}
	if r.Len() != 0 {
		t.Errorf("expected no records after failed spawn, got %d", r.Len())
	}
	if c := r.Counts(); c.Spawned != 0 {
		t.Errorf("expected 0 spawned, got %d", c.Spawned)
	}
}

func TestRunCapturesOutputAndEnv(t *testing.T) {
	r := NewRegistry(Options{
		Shell: "/bin/sh",
		Env:   map[string]string{"DEVRUN_A": "alpha"},
	})

	var buf bytes.Buffer
	code, err := r.Run(context.Background(), `echo "$DEVRUN_A $DEVRUN_B"`,
		WithOutput(&buf), WithEnv(map[string]string{"DEVRUN_B": "beta"}))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if code != 0 {
		t.Fatalf("expected exit 0, got %d", code)
	}
	if got := strings.TrimSpace(buf.String()); got != "alpha beta" {
		t.Errorf("output = %q, want %q", got, "alpha beta")
	}
}

func TestRunWithDir(t *testing.T) {
	r := newTestRegistry(t)
	dir := t.TempDir()

	var buf bytes.Buffer
	if _, err := r.Run(context.Background(), "pwd", WithOutput(&buf), WithDir(dir)); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	got := strings.TrimSpace(buf.String())
	if !strings.Contains(got, dir) && !strings.Contains(dir, got) {
		t.Errorf("expected pwd %q, got %q", dir, got)
	}
}

func TestWaitForCompleteThreeBackground(t *testing.T) {
	r := newTestRegistry(t)

	for i := 0; i < 3; i++ {
		if _, err := r.Start("sleep 0.2", WithOutput(&bytes.Buffer{})); err != nil {
			t.Fatalf("Start %d failed: %v", i, err)
		}
	}
	if r.Len() != 3 {
		t.Fatalf("expected 3 live records, got %d", r.Len())
	}

	start := time.Now()
	if err := r.WaitForComplete(context.Background()); err != nil {
		t.Fatalf("WaitForComplete failed: %v", err)
	}
	if time.Since(start) < 100*time.Millisecond {
		t.Errorf("WaitForComplete returned before processes could have exited")
	}
	if r.Len() != 0 {
		t.Errorf("expected empty registry, got %d", r.Len())
	}
	c := r.Counts()
	if c.Reaped != 3 || c.Killed != 0 {
		t.Errorf("expected 3 reaped and 0 killed, got %+v", c)
	}
	assertConsistent(t, r)
}

func TestWaitForCompleteEmpty(t *testing.T) {
	r := newTestRegistry(t)
	if err := r.WaitForComplete(context.Background()); err != nil {
		t.Fatalf("WaitForComplete on empty registry: %v", err)
	}
}

func TestWaitForCompleteInterrupted(t *testing.T) {
	r := newTestRegistry(t)
	if _, err := r.Start("sleep 30"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	err := r.WaitForComplete(ctx)
	if !errors.Is(err, ErrInterrupted) {
		t.Fatalf("expected ErrInterrupted, got %v", err)
	}
	if r.Len() != 1 {
		t.Errorf("WaitForComplete must not kill; expected 1 record, got %d", r.Len())
	}
}

func TestRunInterruptedLeavesRecordForKillAll(t *testing.T) {
	r := newTestRegistry(t)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	code, err := r.Run(ctx, "sleep 30")
	if !errors.Is(err, ErrInterrupted) {
		t.Fatalf("expected ErrInterrupted, got code=%d err=%v", code, err)
	}
	if r.Len() != 1 {
		t.Fatalf("expected interrupted record to stay registered, got %d", r.Len())
	}

	report := r.KillAll()
	if !strings.Contains(report.Text(), "1 process killed") {
		t.Errorf("unexpected report:\n%s", report.Text())
	}
	if r.Len() != 0 {
		t.Errorf("expected empty registry after KillAll, got %d", r.Len())
	}
	if c := r.Counts(); c.Killed != 1 {
		t.Errorf("expected 1 killed, got %d", c.Killed)
	}
	assertConsistent(t, r)
}

func TestKillAllDuringBlockingRun(t *testing.T) {
	r := newTestRegistry(t)

	type result struct {
		code int
		err  error
	}
	done := make(chan result, 1)
	go func() {
		code, err := r.Run(context.Background(), "sleep 30")
		done <- result{code, err}
	}()

	waitFor(t, "blocking process to register", func() bool { return r.Len() == 1 })
	r.KillAll()

	select {
	case res := <-done:
		if res.err != nil {
			t.Errorf("expected killed Run to return an exit code, got error %v", res.err)
		}
		if res.code == 0 {
			t.Errorf("expected non-zero exit code for killed process")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("blocking Run did not return after KillAll")
	}
	assertConsistent(t, r)
}

func TestKillAllEmpty(t *testing.T) {
	r := newTestRegistry(t)

	for i := 0; i < 2; i++ {
		report := r.KillAll()
		if got := report.Text(); got != "0 processes killed\n" {
			t.Errorf("KillAll on empty registry = %q", got)
		}
		if report.Failed() {
			t.Errorf("empty KillAll should not report failure")
		}
	}
}

func TestKillAllBackground(t *testing.T) {
	r := newTestRegistry(t)

	var recs []*Record
	for i := 0; i < 2; i++ {
		rec, err := r.Start("sleep 30")
		if err != nil {
			t.Fatalf("Start failed: %v", err)
		}
		recs = append(recs, rec)
	}

	report := r.KillAll()
	if !strings.Contains(report.Text(), "2 processes killed") {
		t.Errorf("unexpected report:\n%s", report.Text())
	}
	for _, rec := range recs {
		select {
		case <-rec.Done():
		case <-time.After(5 * time.Second):
			t.Fatalf("pid %d still running after KillAll", rec.PID)
		}
	}
	if r.Len() != 0 {
		t.Errorf("expected empty registry, got %d", r.Len())
	}
	assertConsistent(t, r)
}

func TestKillAllEscalatesToSIGKILL(t *testing.T) {
	r := NewRegistry(Options{Shell: "/bin/sh", KillGrace: 200 * time.Millisecond})

	rec, err := r.Start("trap '' TERM; while true; do sleep 1; done")
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	// Give the shell time to install the trap.
	time.Sleep(100 * time.Millisecond)

	report := r.KillAll()
	if report.Count(OutcomeUnkillable) != 0 {
		t.Errorf("expected SIGKILL to succeed, got:\n%s", report.Text())
	}
	select {
	case <-rec.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("process survived SIGKILL")
	}
}

func TestKillAllReportsUnkillable(t *testing.T) {
	const grace = 200 * time.Millisecond
	r := NewRegistry(Options{Shell: "/bin/sh", KillGrace: grace})

	rec, err := r.Start("sleep 30")
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(func() { _ = forceKillProcess(rec.PID, true) })

	saved := signalFuncs
	signalFuncs.terminate = func(int, bool) error { return nil }
	signalFuncs.forceKill = func(int, bool) error { return nil }
	t.Cleanup(func() { signalFuncs = saved })

	start := time.Now()
	report := r.KillAll()
	elapsed := time.Since(start)

	if n := report.Count(OutcomeUnkillable); n != 1 {
		t.Fatalf("expected 1 unkillable entry, got %d:\n%s", n, report.Text())
	}
	want := fmt.Sprintf("pid %d (sleep 30) could not be killed", rec.PID)
	if !strings.Contains(report.Text(), want) {
		t.Errorf("report missing %q:\n%s", want, report.Text())
	}
	if !strings.Contains(report.Text(), "0 processes killed") {
		t.Errorf("unkillable process should not be counted as killed:\n%s", report.Text())
	}
	if !report.Failed() {
		t.Error("report with an unkillable process should be Failed")
	}
	if elapsed > 2*grace+time.Second {
		t.Errorf("KillAll took %s, want about %s", elapsed, 2*grace)
	}
	if r.Len() != 0 {
		t.Errorf("unkillable record should still be deregistered, got %d live", r.Len())
	}
	assertConsistent(t, r)
}

func TestKillAllConcurrentCallsKillOnce(t *testing.T) {
	r := newTestRegistry(t)
	for i := 0; i < 3; i++ {
		if _, err := r.Start("sleep 30"); err != nil {
			t.Fatalf("Start failed: %v", err)
		}
	}

	var wg sync.WaitGroup
	reports := make([]Report, 4)
	for i := range reports {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			reports[i] = r.KillAll()
		}(i)
	}
	wg.Wait()

	total := 0
	for _, rep := range reports {
		for _, st := range rep {
			if st.Source == SourceKillAll {
				var n int
				if _, err := fmt.Sscan(st.Detail, &n); err == nil {
					total += n
				}
			}
		}
	}
	if total != 3 {
		t.Errorf("expected 3 kills across all KillAll calls, got %d", total)
	}
	if c := r.Counts(); c.Killed != 3 {
		t.Errorf("expected Killed=3, got %d", c.Killed)
	}
	assertConsistent(t, r)
}

func TestSealRefusesSpawnButAllowsCleanup(t *testing.T) {
	r := newTestRegistry(t)
	r.Seal()

	if !r.Sealed() {
		t.Fatal("expected registry to report sealed")
	}
	if _, err := r.Start("true"); !errors.Is(err, ErrSealed) {
		t.Errorf("Start after Seal: expected ErrSealed, got %v", err)
	}
	if _, err := r.Run(context.Background(), "true"); !errors.Is(err, ErrSealed) {
		t.Errorf("Run after Seal: expected ErrSealed, got %v", err)
	}
	if r.Len() != 0 {
		t.Errorf("sealed spawn left %d records", r.Len())
	}

	code, err := r.RunCleanup(context.Background(), "exit 0", WithOutput(&bytes.Buffer{}))
	if err != nil || code != 0 {
		t.Errorf("RunCleanup after Seal = (%d, %v), want (0, nil)", code, err)
	}
}

func TestRecordsSnapshotOrdered(t *testing.T) {
	r := newTestRegistry(t)
	first, err := r.Start("sleep 30")
	if err != nil {
		t.Fatal(err)
	}
	time.Sleep(5 * time.Millisecond)
	second, err := r.Start("sleep 30")
	if err != nil {
		t.Fatal(err)
	}

	recs := r.Records()
	if len(recs) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recs))
	}
	if recs[0].ID != first.ID || recs[1].ID != second.ID {
		t.Errorf("records not ordered by start time")
	}
	if recs[0].Mode != ModeBackground || recs[0].Command != "sleep 30" {
		t.Errorf("unexpected record: %+v", recs[0])
	}
}

func TestModeString(t *testing.T) {
	tests := map[Mode]string{
		ModeBackground:  "background",
		ModeBlocking:    "blocking",
		ModeInteractive: "interactive",
		Mode(9):         "mode(9)",
	}
	for mode, want := range tests {
		if got := mode.String(); got != want {
			t.Errorf("Mode(%d).String() = %q, want %q", int(mode), got, want)
		}
	}
}
