//go:build !windows

package proc

import (
	"os"
	"os/exec"
	"syscall"
	"time"
)

// SigkillGrace is how long a process group gets to exit after SIGTERM before
// it is SIGKILLed.
const SigkillGrace = 200 * time.Millisecond

type unixKiller struct {
	grace time.Duration
}

func newKiller() Killer {
	return &unixKiller{grace: SigkillGrace}
}

// Kill sends SIGTERM to the process group, waits up to the grace period for
// voluntary exit, then sends SIGKILL to the group if it is still alive.
func (k *unixKiller) Kill(p *os.Process) {
	if p == nil {
		return
	}
	pgid := -p.Pid

	if syscall.Kill(pgid, 0) != nil {
		return
	}

	if err := syscall.Kill(pgid, syscall.SIGTERM); err != nil {
		// Group signal failed, destroy the process itself.
		_ = p.Kill()
		return
	}

	deadline := time.Now().Add(k.grace)
	for time.Now().Before(deadline) {
		if syscall.Kill(pgid, 0) != nil {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}

	_ = syscall.Kill(pgid, syscall.SIGKILL)
}

// Force sends SIGKILL to the process group immediately.
func (k *unixKiller) Force(p *os.Process) {
	if p == nil {
		return
	}
	if err := syscall.Kill(-p.Pid, syscall.SIGKILL); err != nil {
		_ = p.Kill()
	}
}

// setProcAttr places the child in its own process group so the whole tree
// can be signalled through the negative PID.
func setProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}
