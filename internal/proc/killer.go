// Package proc owns the lifecycle of spawned OS processes: spawn, stream,
// timeout, kill, cleanup, plus a process-wide registry for crash-safe mass
// termination.
package proc

import "os"

// Killer terminates a process and its descendants. Implementations never
// return an error; termination failures are swallowed and followed by a
// forceful destroy as a last resort.
type Killer interface {
	// Kill terminates the process tree, escalating signal strength after a
	// short grace period. No-op if the process is already dead.
	Kill(p *os.Process)

	// Force terminates the process tree immediately with the strongest
	// available signal.
	Force(p *os.Process)
}

// NewKiller returns the killer for the host platform.
func NewKiller() Killer {
	return newKiller()
}
