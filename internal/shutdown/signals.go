package shutdown

import (
	"os"
	"os/signal"
)

// shutdownSignals lists the OS signals that trigger the shutdown sequence.
// os.Interrupt is the portable baseline; signals_unix.go appends SIGTERM.
var shutdownSignals = []os.Signal{os.Interrupt}

// Notifier subscribes a channel to OS signals. Tests substitute a fake.
type Notifier interface {
	Notify(c chan<- os.Signal, sig ...os.Signal)
	Stop(c chan<- os.Signal)
}

type osNotifier struct{}

func (osNotifier) Notify(c chan<- os.Signal, sig ...os.Signal) { signal.Notify(c, sig...) }
func (osNotifier) Stop(c chan<- os.Signal)                     { signal.Stop(c) }
