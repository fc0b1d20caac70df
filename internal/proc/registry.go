package proc

import (
	"os"
	"sync"
	"time"
)

// ManagedProcess is one spawned process tracked by the Manager. An entry is
// present in the registry exactly while the underlying OS process is alive.
type ManagedProcess struct {
	ID        string
	StartTime time.Time

	handle   *os.Process
	timedOut bool
	aborted  bool
}

// registry is the process-wide concurrent map of live processes, keyed by
// opaque process id. Add and remove are the only mutations.
type registry struct {
	mu    sync.Mutex
	procs map[string]*ManagedProcess
}

func newRegistry() *registry {
	return &registry{procs: make(map[string]*ManagedProcess)}
}

func (r *registry) add(p *ManagedProcess) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.procs[p.ID] = p
}

func (r *registry) remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.procs, id)
}

func (r *registry) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.procs)
}

func (r *registry) snapshot() []*ManagedProcess {
	r.mu.Lock()
	defer r.mu.Unlock()
	procs := make([]*ManagedProcess, 0, len(r.procs))
	for _, p := range r.procs {
		procs = append(procs, p)
	}
	return procs
}
