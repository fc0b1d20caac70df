package proc

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/sync/errgroup"

	"github.com/codeforge-ai/codeforge/internal/abort"
	"github.com/codeforge-ai/codeforge/internal/cmderr"
	"github.com/codeforge-ai/codeforge/internal/event"
	"github.com/codeforge-ai/codeforge/internal/logging"
	"github.com/codeforge-ai/codeforge/internal/shell"
)

const (
	// DefaultTimeout bounds a command that does not request its own timeout.
	DefaultTimeout = 120 * time.Second
	// MaxTimeout caps any requested timeout.
	MaxTimeout = 10 * time.Minute
	// DefaultMaxOutputBytes caps captured output independent of the timeout.
	DefaultMaxOutputBytes = 30000
)

// Options configures one command execution. Constructed fresh per invocation.
type Options struct {
	WorkDir        string
	Timeout        time.Duration
	MaxOutputBytes int
	Streaming      bool
	OnOutput       func(string)
	Abort          *abort.Controller
}

// Result captures the terminal state of one command execution. Success
// implies a zero exit code and neither a timeout nor an abort.
type Result struct {
	Output    string
	ExitCode  int
	Success   bool
	TimedOut  bool
	Aborted   bool
	Truncated bool
	Duration  time.Duration
}

// Manager owns the full lifecycle of spawned processes and the registry used
// for crash-safe mass termination. The registry is held by the manager
// instance; the OS-level exit hook that calls Shutdown is registered only at
// the composition root.
type Manager struct {
	killer Killer
	procs  *registry
}

// NewManager creates a process manager with the platform killer.
func NewManager() *Manager {
	return &Manager{
		killer: newKiller(),
		procs:  newRegistry(),
	}
}

// Len returns the number of live managed processes.
func (m *Manager) Len() int {
	return m.procs.len()
}

// Run executes command under the given shell and blocks until the process
// reaches a terminal state. Timeouts and aborts are recovered into the Result;
// a non-nil error is returned only when the process could not be spawned.
func (m *Manager) Run(ctx context.Context, sh shell.Shell, command string, opts Options) (*Result, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Timeout > MaxTimeout {
		opts.Timeout = MaxTimeout
	}
	if opts.MaxOutputBytes <= 0 {
		opts.MaxOutputBytes = DefaultMaxOutputBytes
	}

	var onOutput func(string)
	if opts.Streaming {
		onOutput = opts.OnOutput
	}
	handler := NewStreamHandler(opts.MaxOutputBytes, onOutput)

	cmd := exec.Command(sh.Path, sh.Flag, command)
	if opts.WorkDir != "" {
		cmd.Dir = opts.WorkDir
	}
	cmd.Env = os.Environ()
	cmd.Stdout = handler
	cmd.Stderr = handler
	setProcAttr(cmd)

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return nil, classifyStartError(command, err)
	}

	mp := &ManagedProcess{
		ID:        ulid.Make().String(),
		StartTime: start,
		handle:    cmd.Process,
	}
	m.procs.add(mp)
	defer m.procs.remove(mp.ID)

	logging.Debug().
		Str("id", mp.ID).
		Int("pid", cmd.Process.Pid).
		Str("command", command).
		Msg("process started")
	event.Publish(event.Event{
		Type: event.ProcessStarted,
		Data: event.ProcessStartedData{ID: mp.ID, PID: cmd.Process.Pid, Command: command},
	})

	waitCh := make(chan error, 1)
	go func() {
		waitCh <- cmd.Wait()
	}()

	timer := time.NewTimer(opts.Timeout)
	defer timer.Stop()

	var abortCh <-chan struct{}
	if opts.Abort != nil {
		abortCh = opts.Abort.Done()
	}

	var waitErr error
	select {
	case waitErr = <-waitCh:
	case <-timer.C:
		mp.timedOut = true
	case <-abortCh:
		mp.aborted = true
	case <-ctx.Done():
		mp.aborted = true
	}

	if mp.timedOut || mp.aborted {
		// Timeout and external abort share this one kill path.
		m.killer.Kill(cmd.Process)
		waitErr = <-waitCh
		event.Publish(event.Event{
			Type: event.ProcessKilled,
			Data: event.ProcessKilledData{ID: mp.ID, PID: cmd.Process.Pid, TimedOut: mp.timedOut},
		})
	}

	res := &Result{
		Output:    handler.String(),
		ExitCode:  exitCode(cmd.ProcessState, waitErr),
		TimedOut:  mp.timedOut,
		Aborted:   mp.aborted,
		Truncated: handler.Truncated(),
		Duration:  time.Since(start),
	}
	res.Success = waitErr == nil && !res.TimedOut && !res.Aborted && res.ExitCode == 0

	logging.Debug().
		Str("id", mp.ID).
		Int("exit", res.ExitCode).
		Bool("timedOut", res.TimedOut).
		Bool("aborted", res.Aborted).
		Dur("duration", res.Duration).
		Msg("process exited")
	event.Publish(event.Event{
		Type: event.ProcessExited,
		Data: event.ProcessExitedData{
			ID:             mp.ID,
			ExitCode:       res.ExitCode,
			TimedOut:       res.TimedOut,
			Aborted:        res.Aborted,
			DurationMillis: res.Duration.Milliseconds(),
		},
	})

	return res, nil
}

// Shutdown force-kills every process still present in the registry. It is the
// safety net against orphaned children when the host process exits abruptly.
func (m *Manager) Shutdown(ctx context.Context) error {
	procs := m.procs.snapshot()
	if len(procs) == 0 {
		return nil
	}

	logging.Warn().Int("count", len(procs)).Msg("force-killing remaining processes")

	g, _ := errgroup.WithContext(ctx)
	for _, mp := range procs {
		mp := mp
		g.Go(func() error {
			m.killer.Force(mp.handle)
			return nil
		})
	}
	return g.Wait()
}

// classifyStartError tags a spawn failure. Working directories are validated
// by callers before spawn, so a missing path here means the shell itself.
func classifyStartError(command string, err error) error {
	if errors.Is(err, exec.ErrNotFound) || errors.Is(err, os.ErrNotExist) {
		return cmderr.Wrap(cmderr.CommandNotFound, command, err)
	}
	return cmderr.Wrap(cmderr.Unknown, command, err)
}

// exitCode extracts the exit code, mapping death by signal to 128+signal.
func exitCode(state *os.ProcessState, waitErr error) int {
	if state == nil {
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			state = exitErr.ProcessState
		}
	}
	if state == nil {
		return -1
	}
	if ws, ok := state.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return 128 + int(ws.Signal())
	}
	return state.ExitCode()
}
