// Package shutdown runs the one-time teardown sequence of the tool.
//
// A signal only flips the interrupt flag and cancels the run context; the
// cleanup itself (callbacks, then killing every registered process) runs on
// the goroutine that called Run. The sequence executes at most once no
// matter how many signals arrive.
package shutdown

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"devrun.dev/internal/process"
)

// ExitHandled is the exit status after a completed shutdown sequence.
const ExitHandled = 0

// DefaultCallbackTimeout bounds each cleanup callback.
const DefaultCallbackTimeout = 30 * time.Second

// State is the coordinator's lifecycle position.
type State int32

const (
	Armed State = iota
	ShuttingDown
	Terminated
)

func (s State) String() string {
	switch s {
	case Armed:
		return "armed"
	case ShuttingDown:
		return "shutting-down"
	case Terminated:
		return "terminated"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Registry is the part of process.Registry the coordinator drives.
type Registry interface {
	Seal()
	KillAll() process.Report
}

// Reporter shows the shutdown notices. notice.Printer satisfies it.
type Reporter interface {
	Status(msg string)
	Failure(msg string)
}

// Options configures a Coordinator.
type Options struct {
	CallbackTimeout time.Duration
	Notifier        Notifier
	Signals         []os.Signal
	Logger          *slog.Logger
}

// Coordinator owns the interrupt flag and the set of cleanup callbacks.
type Coordinator struct {
	registry Registry
	out      Reporter
	opts     Options
	log      *slog.Logger

	mu        sync.Mutex
	names     []string
	callbacks map[string]Callback
	cancel    context.CancelFunc

	interrupted atomic.Bool
	state       atomic.Int32
	sig         os.Signal     // written once before interruptCh closes
	interruptCh chan struct{} // closed on the first interrupt

	once   sync.Once
	report process.Report
}

// New creates an armed Coordinator.
func New(registry Registry, out Reporter, opts Options) *Coordinator {
	if opts.CallbackTimeout <= 0 {
		opts.CallbackTimeout = DefaultCallbackTimeout
	}
	if opts.Notifier == nil {
		opts.Notifier = osNotifier{}
	}
	if len(opts.Signals) == 0 {
		opts.Signals = shutdownSignals
	}
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Coordinator{
		registry:    registry,
		out:         out,
		opts:        opts,
		log:         log.With("component", "shutdown"),
		callbacks:   make(map[string]Callback),
		interruptCh: make(chan struct{}),
	}
}

// Register adds a cleanup callback. A name that is already registered is
// ignored, so the same callback runs at most once.
func (c *Coordinator) Register(name string, fn Callback) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.callbacks[name]; exists {
		c.log.Debug("callback already registered", "name", name)
		return
	}
	c.callbacks[name] = fn
	c.names = append(c.names, name)
	c.log.Debug("callback registered", "name", name)
}

// Callbacks returns the registered callback names in registration order.
func (c *Coordinator) Callbacks() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.names...)
}

// State returns the current lifecycle state.
func (c *Coordinator) State() State {
	return State(c.state.Load())
}

// Interrupted reports whether an interrupt has been received.
func (c *Coordinator) Interrupted() bool {
	return c.interrupted.Load()
}

// Interrupt is the signal entry point. The first call moves the coordinator
// to ShuttingDown and cancels the run context; later calls only print a
// notice. It returns true for the call that won.
func (c *Coordinator) Interrupt(sig os.Signal) bool {
	if !c.interrupted.CompareAndSwap(false, true) {
		c.log.Info("interrupt ignored, shutdown already running", "signal", signalName(sig))
		c.out.Failure("ALREADY SHUTTING DOWN! (be patient...)")
		return false
	}

	// Sealed before anything else so no spawn can slip in between the flag
	// flipping and the shutdown sequence starting.
	c.registry.Seal()
	c.sig = sig
	c.state.Store(int32(ShuttingDown))
	close(c.interruptCh)
	c.log.Info("interrupt received", "signal", signalName(sig))

	c.mu.Lock()
	cancel := c.cancel
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	return true
}

// Run executes fn with a context that is cancelled on the first interrupt.
// If fn returns before any interrupt, its exit code is returned. Otherwise
// the shutdown sequence runs on the calling goroutine and Run returns
// ExitHandled.
func (c *Coordinator) Run(ctx context.Context, fn func(ctx context.Context) int) int {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	c.mu.Lock()
	c.cancel = cancel
	c.mu.Unlock()
	if c.Interrupted() {
		cancel()
	}

	sigCh := make(chan os.Signal, 4)
	c.opts.Notifier.Notify(sigCh, c.opts.Signals...)
	defer c.opts.Notifier.Stop(sigCh)

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		for {
			select {
			case sig := <-sigCh:
				c.Interrupt(sig)
			case <-stop:
				return
			}
		}
	}()

	done := make(chan int, 1)
	go func() {
		done <- fn(ctx)
	}()

	select {
	case code := <-done:
		if !c.Interrupted() {
			return code
		}
	case <-c.interruptCh:
	}

	c.Shutdown()
	return ExitHandled
}

// Shutdown runs the teardown sequence exactly once and returns its report:
// seal the registry, run every callback, kill every remaining process,
// then show the combined report as a failure notice. Later calls return
// the first report without doing anything.
func (c *Coordinator) Shutdown() process.Report {
	c.once.Do(func() {
		c.interrupted.Store(true)
		c.state.Store(int32(ShuttingDown))
		c.out.Failure("performing signal received action...")

		c.registry.Seal()

		var report process.Report
		report = append(report, process.Status{
			Source:  "signal",
			Outcome: process.OutcomeInfo,
			Detail:  c.header(),
		})

		c.mu.Lock()
		names := append([]string(nil), c.names...)
		callbacks := make([]Callback, len(names))
		for i, name := range names {
			callbacks[i] = c.callbacks[name]
		}
		c.mu.Unlock()

		for i, name := range names {
			st := c.runCallback(name, callbacks[i])
			c.log.Info("callback finished", "name", name, "outcome", st.Outcome)
			report = append(report, st)
		}

		killed := c.registry.KillAll()
		c.log.Info("killall finished",
			"killed", killed.Count(process.OutcomeKilled),
			"unkillable", killed.Count(process.OutcomeUnkillable))
		report = append(report, killed...)

		c.report = report
		c.out.Failure(report.Text())
		c.state.Store(int32(Terminated))
	})
	return c.report
}

func (c *Coordinator) header() string {
	select {
	case <-c.interruptCh:
		return fmt.Sprintf("Signal received (%s) - killing all spawned processes", signalName(c.sig))
	default:
		return "Shutdown requested - killing all spawned processes"
	}
}

// runCallback never lets a callback stall or crash the sequence.
func (c *Coordinator) runCallback(name string, fn Callback) process.Status {
	ctx, cancel := context.WithTimeout(context.Background(), c.opts.CallbackTimeout)
	defer cancel()

	type result struct {
		text string
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- result{err: fmt.Errorf("panic: %v", r)}
			}
		}()
		text, err := fn(ctx)
		ch <- result{text: text, err: err}
	}()

	select {
	case res := <-ch:
		if res.err != nil {
			return process.Status{
				Source:  name,
				Outcome: process.OutcomeFailed,
				Detail:  fmt.Sprintf("%s failed: %v", name, res.err),
			}
		}
		return process.Status{Source: name, Outcome: process.OutcomeOK, Detail: res.text}
	case <-ctx.Done():
		return process.Status{
			Source:  name,
			Outcome: process.OutcomeTimeout,
			Detail:  fmt.Sprintf("%s did not finish within %s", name, c.opts.CallbackTimeout),
		}
	}
}

func signalName(sig os.Signal) string {
	if sig == nil {
		return "none"
	}
	return sig.String()
}
