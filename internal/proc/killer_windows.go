//go:build windows

package proc

import (
	"fmt"
	"os"
	"os/exec"
)

type windowsKiller struct{}

func newKiller() Killer {
	return &windowsKiller{}
}

// Kill invokes taskkill /T /F once. Graceful termination signals are not
// portable on Windows, so there is no escalation step.
func (k *windowsKiller) Kill(p *os.Process) {
	if p == nil {
		return
	}
	if err := exec.Command("taskkill", "/pid", fmt.Sprint(p.Pid), "/T", "/F").Run(); err != nil {
		_ = p.Kill()
	}
}

// Force is identical to Kill on Windows.
func (k *windowsKiller) Force(p *os.Process) {
	k.Kill(p)
}

func setProcAttr(cmd *exec.Cmd) {}
