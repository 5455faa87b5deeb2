package config

import (
	"os"
	"syscall"
)

// signalNames maps the shutdownSignals worker option's string vocabulary
// (spec.md §6 default "interrupt/terminate/quit") to concrete os.Signal
// values.
var signalNames = map[string]os.Signal{
	"INT":  os.Interrupt,
	"TERM": syscall.SIGTERM,
	"QUIT": syscall.SIGQUIT,
}

// ShutdownOSSignals resolves the configured signal names to os.Signal values,
// silently skipping any name not in signalNames.
func (o WorkerOptions) ShutdownOSSignals() []os.Signal {
	signals := make([]os.Signal, 0, len(o.ShutdownSignals))
	for _, name := range o.ShutdownSignals {
		if sig, ok := signalNames[name]; ok {
			signals = append(signals, sig)
		}
	}
	return signals
}
