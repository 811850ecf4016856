// Package dispatch runs manifest commands as chains of steps against the
// process registry.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"devrun.dev/internal/config"
	"devrun.dev/internal/process"
	"devrun.dev/internal/shutdown"
	"devrun.dev/internal/template"
)

// Options configures a Runner.
type Options struct {
	// Vars are the resolved manifest vars (see config.Manifest.ResolveVars).
	Vars map[string]string
	// Output receives the output of quiet steps and hooks. Nil leaves it
	// on the terminal.
	Output io.Writer
	// SkipSetup skips the manifest's setup steps.
	SkipSetup bool
	Logger    *slog.Logger
}

// Runner executes manifest commands. A Runner serves one invocation: each
// command, including those pulled in through requires, runs at most once.
type Runner struct {
	manifest *config.Manifest
	procs    Processes
	hooks    Hooks
	out      Notifier
	opts     Options
	log      *slog.Logger

	setupDone bool
	ran       map[string]bool
}

// New creates a Runner.
func New(manifest *config.Manifest, procs Processes, hooks Hooks, out Notifier, opts Options) *Runner {
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Runner{
		manifest: manifest,
		procs:    procs,
		hooks:    hooks,
		out:      out,
		opts:     opts,
		log:      log.With("component", "dispatch"),
		ran:      make(map[string]bool),
	}
}

// Lookup returns the named command if it exists and is enabled.
func (r *Runner) Lookup(name string) (config.Command, error) {
	cmd, ok := r.manifest.Commands[name]
	if !ok {
		return config.Command{}, fmt.Errorf("command '%s' not found", name)
	}
	if cmd.Disabled {
		return config.Command{}, fmt.Errorf("command '%s' is disabled", name)
	}
	return cmd, nil
}

// Execute runs the setup steps and then the named command. On a failed
// step every spawned process is killed and ExitFailure is returned. When
// ctx is cancelled the remaining steps are abandoned and ExitOK is
// returned; the shutdown coordinator owns the teardown from there.
func (r *Runner) Execute(ctx context.Context, name string, params map[string]string) int {
	err := r.Setup(ctx)
	if err == nil {
		err = r.runCommand(ctx, name, params)
	}
	return r.finish(ctx, name, err)
}

// Setup shows the welcome banner and runs the manifest's setup steps once.
func (r *Runner) Setup(ctx context.Context) error {
	if r.setupDone {
		return nil
	}
	r.setupDone = true

	data := template.Data(r.opts.Vars, nil)
	if r.manifest.Welcome != "" {
		r.out.Light(template.RenderMessage(r.manifest.Welcome, data))
	}
	if r.opts.SkipSetup {
		return nil
	}
	for _, step := range r.manifest.Setup {
		if err := ctx.Err(); err != nil {
			return process.ErrInterrupted
		}
		if err := r.runStep(ctx, step, data, config.Command{}); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) runCommand(ctx context.Context, name string, params map[string]string) error {
	if r.ran[name] {
		r.log.Debug("command already ran", "command", name)
		return nil
	}
	cmd, err := r.Lookup(name)
	if err != nil {
		return err
	}
	resolved, err := ResolveParams(cmd, params)
	if err != nil {
		return fmt.Errorf("command '%s': %w", name, err)
	}
	r.ran[name] = true

	// Hooks go in first so an interrupt during a required command still
	// runs them.
	r.registerHooks(cmd.Hooks)

	for _, req := range cmd.Requires {
		if err := r.runCommand(ctx, req, nil); err != nil {
			return err
		}
	}

	r.log.Info("command started", "command", name, "steps", len(cmd.Steps))
	data := template.Data(r.opts.Vars, resolved)
	for _, step := range cmd.Steps {
		if err := ctx.Err(); err != nil {
			return process.ErrInterrupted
		}
		if err := r.runStep(ctx, step, data, cmd); err != nil {
			return err
		}
	}
	r.log.Info("command finished", "command", name)

	if cmd.Success != "" {
		r.out.Success(template.RenderMessage(cmd.Success, data))
	}
	return nil
}

func (r *Runner) runStep(ctx context.Context, step config.Step, data map[string]interface{}, cmd config.Command) error {
	if step.Message != "" {
		r.out.Status(template.RenderMessage(step.Message, data))
	}

	kind := step.Kind()
	if kind == config.StepWait {
		r.log.Debug("waiting for background processes")
		return r.procs.WaitForComplete(ctx)
	}

	line, err := template.SubstituteParameters(step.CommandLine(), data)
	if err != nil {
		return fmt.Errorf("failed to expand %q: %w", step.CommandLine(), err)
	}
	log := r.log.With("step", string(kind), "command", line)
	opts := r.spawnOptions(step, cmd)

	switch kind {
	case config.StepSpawn:
		rec, err := r.procs.Start(line, opts...)
		if err != nil {
			return err
		}
		log.Debug("spawned", "pid", rec.PID, "id", rec.ID)
		return nil

	case config.StepShell:
		code, err := r.procs.Interactive(ctx, line, opts...)
		if err != nil {
			return err
		}
		// The exit status of a shell is that of its last command.
		log.Debug("shell exited", "exit_code", code)
		return nil

	case config.StepRun:
		code, err := r.procs.Run(ctx, line, opts...)
		if err != nil {
			return err
		}
		log.Debug("exited", "exit_code", code)
		if code == 0 {
			return nil
		}
		if step.AllowFailure {
			log.Warn("step failed, continuing", "exit_code", code)
			return nil
		}
		return &StepError{Command: line, ExitCode: code}

	default:
		return fmt.Errorf("invalid step: exactly one of run, spawn, shell or wait is required")
	}
}

func (r *Runner) spawnOptions(step config.Step, cmd config.Command) []process.SpawnOption {
	var opts []process.SpawnOption
	if cmd.WorkingDirectory != "" {
		opts = append(opts, process.WithDir(cmd.WorkingDirectory))
	}
	if len(cmd.Env) > 0 {
		opts = append(opts, process.WithEnv(cmd.Env))
	}
	if step.Quiet && r.opts.Output != nil {
		opts = append(opts, process.WithOutput(r.opts.Output))
	}
	if step.Input && step.Kind() == config.StepRun {
		opts = append(opts, process.WithStdin())
	}
	return opts
}

func (r *Runner) registerHooks(names []string) {
	data := template.Data(r.opts.Vars, nil)
	for _, name := range names {
		hook, ok := r.manifest.Hooks[name]
		if !ok {
			continue
		}
		command, err := template.SubstituteParameters(hook.Command, data)
		if err != nil {
			r.log.Warn("hook command not expanded", "hook", name, "error", err)
			command = hook.Command
		}
		var opts []process.SpawnOption
		if r.opts.Output != nil {
			opts = append(opts, process.WithOutput(r.opts.Output))
		}
		r.hooks.Register(name, shutdown.CommandCallback(r.procs, command, hook.Message, opts...))
	}
}

func (r *Runner) finish(ctx context.Context, name string, err error) int {
	var stepErr *StepError
	switch {
	case err == nil:
		return ExitOK
	// A child sharing the terminal's process group sees the same SIGINT and
	// can exit non-zero before the context is cancelled. Once interrupted,
	// teardown belongs to the shutdown sequence alone.
	case ctx.Err() != nil, errors.Is(err, process.ErrInterrupted), errors.Is(err, process.ErrSealed):
		r.log.Info("command interrupted", "command", name, "error", err)
		return ExitOK
	case errors.As(err, &stepErr):
		r.log.Error("step failed", "command", stepErr.Command, "exit_code", stepErr.ExitCode)
		return r.fail("ERROR when running command: " + stepErr.Command)
	default:
		r.log.Error("command failed", "command", name, "error", err)
		return r.fail("ERROR: " + err.Error())
	}
}

func (r *Runner) fail(headline string) int {
	report := r.procs.KillAll()
	r.out.Failure(headline + "\nKilling all spawned processes\n" + report.Text())
	return ExitFailure
}
