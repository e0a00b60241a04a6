// Package capture observes the process-wide primitives of the host application
// (console, HTTP transport, panics and fire-and-forget goroutines) and keeps the most
// recent observations in bounded buffers for inclusion in support tickets.
//
// Each capture is installed once per process. Installing again is a no-op, so the
// underlying primitive is never wrapped twice. Nothing in this package panics into
// the host: failures while recording are swallowed.
package capture

// Buffer capacities
const (
	MaxConsoleEntries = 100
	MaxNetworkEntries = 50
	MaxErrorEntries   = 50
)

// Process-wide captures
var (
	Console = NewConsoleCapture(MaxConsoleEntries)
	Network = NewNetworkCapture(MaxNetworkEntries)
	Errors  = NewErrorCapture(MaxErrorEntries)
)

// InstallAll installs the console, network and error captures
func InstallAll() {
	Console.Install()
	Network.Install()
	Errors.Install()
}
