package process

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// signalFuncs delivers the teardown signals; tests swap it out.
var signalFuncs = struct {
	terminate func(pid int, group bool) error
	forceKill func(pid int, group bool) error
}{
	terminate: terminateProcess,
	forceKill: forceKillProcess,
}

// Mode selects how a spawned command is attached to the tool.
type Mode int

const (
	// ModeBackground starts the command and returns immediately (fire-and-forget).
	ModeBackground Mode = iota
	// ModeBlocking waits for the command to exit and returns its exit code.
	ModeBlocking
	// ModeInteractive hands the terminal to the command until it exits.
	ModeInteractive
)

func (m Mode) String() string {
	switch m {
	case ModeBackground:
		return "background"
	case ModeBlocking:
		return "blocking"
	case ModeInteractive:
		return "interactive"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

const (
	// DefaultShell runs every command line.
	DefaultShell = "/bin/bash"
	// DefaultKillGrace is how long a process gets to exit after SIGTERM.
	DefaultKillGrace = 3 * time.Second
)

var (
	// ErrSealed is returned by Spawn once shutdown has begun.
	ErrSealed = errors.New("shutdown in progress, refusing to spawn")
	// ErrInterrupted is returned by a blocking wait when its context is cancelled.
	ErrInterrupted = errors.New("interrupted")
)

// Options configures a Registry.
type Options struct {
	Shell     string
	Dir       string
	Env       map[string]string
	KillGrace time.Duration
	// Stdout and Stderr receive output of non-interactive commands.
	// Nil means the tool's own stdout/stderr.
	Stdout io.Writer
	Stderr io.Writer
}

// SpawnOption adjusts a single spawn.
type SpawnOption func(*spawnConfig)

type spawnConfig struct {
	output io.Writer
	stdin  bool
	dir    string
	env    map[string]string
}

// WithOutput sends the command's stdout and stderr to w.
func WithOutput(w io.Writer) SpawnOption {
	return func(c *spawnConfig) { c.output = w }
}

// WithStdin attaches the tool's stdin to a blocking command.
func WithStdin() SpawnOption {
	return func(c *spawnConfig) { c.stdin = true }
}

// WithDir overrides the working directory for one command.
func WithDir(dir string) SpawnOption {
	return func(c *spawnConfig) { c.dir = dir }
}

// WithEnv adds environment variables for one command.
func WithEnv(env map[string]string) SpawnOption {
	return func(c *spawnConfig) { c.env = env }
}

// Record is a spawned child process owned by the registry.
type Record struct {
	ID        string
	Command   string
	Mode      Mode
	PID       int
	StartTime time.Time

	cmd      *exec.Cmd
	group    bool
	done     chan struct{} // closed by the reaper once Wait returns
	exitCode int
	killOnce sync.Once
}

// Done is closed when the process has exited and been reaped.
func (rec *Record) Done() <-chan struct{} {
	return rec.done
}

// ExitCode is valid once Done is closed.
func (rec *Record) ExitCode() int {
	<-rec.done
	return rec.exitCode
}

// Registry tracks every child process the tool has launched.
//
// Only the reaper goroutine calls Wait on a process; everything else
// observes exit through Record.Done. A record leaves the map exactly once,
// either when its reaper sees it exit or when KillAll claims it.
type Registry struct {
	opts Options

	mu      sync.Mutex
	records map[string]*Record
	sealed  bool
	spawned int
	reaped  int
	killed  int
}

// NewRegistry creates an empty registry.
func NewRegistry(opts Options) *Registry {
	if opts.Shell == "" {
		opts.Shell = DefaultShell
	}
	if opts.KillGrace <= 0 {
		opts.KillGrace = DefaultKillGrace
	}
	return &Registry{
		opts:    opts,
		records: make(map[string]*Record),
	}
}

// Spawn launches command in the given mode. Background spawns return the
// live record and a zero exit code; blocking and interactive spawns return
// the exit code once the process is gone.
func (r *Registry) Spawn(ctx context.Context, command string, mode Mode, opts ...SpawnOption) (*Record, int, error) {
	rec, err := r.start(command, mode, false, opts)
	if err != nil {
		return nil, -1, err
	}
	if mode == ModeBackground {
		return rec, 0, nil
	}
	code, err := r.wait(ctx, rec)
	return rec, code, err
}

// Start launches command in the background and returns without waiting.
func (r *Registry) Start(command string, opts ...SpawnOption) (*Record, error) {
	return r.start(command, ModeBackground, false, opts)
}

// Run launches command and blocks until it exits. A non-zero exit code is
// not an error. If ctx is cancelled first, Run returns ErrInterrupted and
// the process stays registered for KillAll.
func (r *Registry) Run(ctx context.Context, command string, opts ...SpawnOption) (int, error) {
	_, code, err := r.Spawn(ctx, command, ModeBlocking, opts...)
	return code, err
}

// Interactive runs command with the tool's stdin, stdout and stderr.
func (r *Registry) Interactive(ctx context.Context, command string, opts ...SpawnOption) (int, error) {
	_, code, err := r.Spawn(ctx, command, ModeInteractive, opts...)
	return code, err
}

// RunCleanup runs a blocking command even after the registry is sealed.
// Shutdown callbacks use it to reach processes the registry cannot signal
// directly, such as those inside a container.
func (r *Registry) RunCleanup(ctx context.Context, command string, opts ...SpawnOption) (int, error) {
	rec, err := r.start(command, ModeBlocking, true, opts)
	if err != nil {
		return -1, err
	}
	return r.wait(ctx, rec)
}

func (r *Registry) start(command string, mode Mode, cleanup bool, opts []SpawnOption) (*Record, error) {
	var cfg spawnConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	cmd := exec.Command(r.opts.Shell, "-c", command) //nolint:gosec // commands come from the project manifest

	cmd.Dir = r.opts.Dir
	if cfg.dir != "" {
		cmd.Dir = cfg.dir
	}

	cmd.Env = os.Environ()
	for key, value := range r.opts.Env {
		cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", key, value))
	}
	for key, value := range cfg.env {
		cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", key, value))
	}

	// A child in its own process group cannot read the terminal, so only
	// commands without stdin get one.
	group := true
	switch {
	case mode == ModeInteractive:
		cmd.Stdin = os.Stdin
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
		group = false
	default:
		cmd.Stdout, cmd.Stderr = r.outputs(cfg.output)
		if mode == ModeBlocking && cfg.stdin {
			cmd.Stdin = os.Stdin
			group = false
		}
	}
	if group {
		cmd.SysProcAttr = groupProcAttrs()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sealed && !cleanup {
		return nil, ErrSealed
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start %q: %w", command, err)
	}

	rec := &Record{
		ID:        uuid.New().String(),
		Command:   command,
		Mode:      mode,
		PID:       cmd.Process.Pid,
		StartTime: time.Now(),
		cmd:       cmd,
		group:     group,
		done:      make(chan struct{}),
	}
	r.records[rec.ID] = rec
	r.spawned++

	go r.reap(rec)

	return rec, nil
}

func (r *Registry) outputs(w io.Writer) (io.Writer, io.Writer) {
	if w != nil {
		return w, w
	}
	stdout, stderr := r.opts.Stdout, r.opts.Stderr
	if stdout == nil {
		stdout = os.Stdout
	}
	if stderr == nil {
		stderr = os.Stderr
	}
	return stdout, stderr
}

// reap is the only caller of Wait for rec.
func (r *Registry) reap(rec *Record) {
	err := rec.cmd.Wait()
	rec.exitCode = exitCode(rec.cmd, err)

	r.mu.Lock()
	if _, ok := r.records[rec.ID]; ok {
		delete(r.records, rec.ID)
		r.reaped++
	}
	r.mu.Unlock()

	close(rec.done)
}

func (r *Registry) wait(ctx context.Context, rec *Record) (int, error) {
	select {
	case <-rec.done:
		return rec.exitCode, nil
	case <-ctx.Done():
		return -1, ErrInterrupted
	}
}

// WaitForComplete blocks until every background process has exited. It
// never kills anything; it returns ErrInterrupted if ctx is cancelled first.
func (r *Registry) WaitForComplete(ctx context.Context) error {
	for {
		rec := r.nextBackground()
		if rec == nil {
			return nil
		}
		select {
		case <-rec.done:
		case <-ctx.Done():
			return ErrInterrupted
		}
	}
}

func (r *Registry) nextBackground() *Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range r.records {
		if rec.Mode == ModeBackground {
			return rec
		}
	}
	return nil
}

// KillAll terminates every registered process and empties the registry.
// Each process gets SIGTERM, then SIGKILL after the grace period; one that
// survives both is reported as unkillable. A process that already exited
// counts as killed.
func (r *Registry) KillAll() Report {
	r.mu.Lock()
	recs := make([]*Record, 0, len(r.records))
	for id, rec := range r.records {
		recs = append(recs, rec)
		delete(r.records, id)
	}
	r.killed += len(recs)
	r.mu.Unlock()

	sort.Slice(recs, func(i, j int) bool {
		return recs[i].StartTime.Before(recs[j].StartTime)
	})

	results := make([]Status, len(recs))
	var wg sync.WaitGroup
	for i, rec := range recs {
		wg.Add(1)
		go func(i int, rec *Record) {
			defer wg.Done()
			results[i] = r.terminate(rec)
		}(i, rec)
	}
	wg.Wait()

	var report Report
	killed := 0
	for _, st := range results {
		if st.Outcome == OutcomeUnkillable {
			report = append(report, st)
			continue
		}
		killed++
	}
	report = append(report, Status{
		Source:  SourceKillAll,
		Outcome: OutcomeKilled,
		Detail:  fmt.Sprintf("%d %s killed", killed, plural(killed, "process", "processes")),
	})
	return report
}

func (r *Registry) terminate(rec *Record) Status {
	st := Status{Source: rec.Command, Outcome: OutcomeExited}
	rec.killOnce.Do(func() {
		select {
		case <-rec.done:
			st.Detail = fmt.Sprintf("pid %d already exited", rec.PID)
			return
		default:
		}

		_ = signalFuncs.terminate(rec.PID, rec.group)
		select {
		case <-rec.done:
			st.Outcome = OutcomeKilled
			st.Detail = fmt.Sprintf("pid %d terminated", rec.PID)
			return
		case <-time.After(r.opts.KillGrace):
		}

		_ = signalFuncs.forceKill(rec.PID, rec.group)
		select {
		case <-rec.done:
			st.Outcome = OutcomeKilled
			st.Detail = fmt.Sprintf("pid %d force killed", rec.PID)
		case <-time.After(r.opts.KillGrace):
			st.Outcome = OutcomeUnkillable
			st.Detail = fmt.Sprintf("pid %d (%s) could not be killed", rec.PID, rec.Command)
		}
	})
	return st
}

// Seal refuses all further spawns except cleanup commands.
func (r *Registry) Seal() {
	r.mu.Lock()
	r.sealed = true
	r.mu.Unlock()
}

// Sealed reports whether Seal has been called.
func (r *Registry) Sealed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sealed
}

// Len returns the number of live records.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}

// Records returns a snapshot of live records, oldest first.
func (r *Registry) Records() []*Record {
	r.mu.Lock()
	recs := make([]*Record, 0, len(r.records))
	for _, rec := range r.records {
		recs = append(recs, rec)
	}
	r.mu.Unlock()

	sort.Slice(recs, func(i, j int) bool {
		return recs[i].StartTime.Before(recs[j].StartTime)
	})
	return recs
}

// Counts holds lifetime totals. Spawned always equals Reaped+Killed+Live.
type Counts struct {
	Spawned int
	Reaped  int
	Killed  int
	Live    int
}

// Counts returns lifetime totals.
func (r *Registry) Counts() Counts {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Counts{
		Spawned: r.spawned,
		Reaped:  r.reaped,
		Killed:  r.killed,
		Live:    len(r.records),
	}
}

func exitCode(cmd *exec.Cmd, err error) int {
	if cmd.ProcessState != nil {
		return cmd.ProcessState.ExitCode()
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
