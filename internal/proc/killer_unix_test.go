//go:build !windows

package proc

import (
	"os"
	"os/exec"
	"syscall"
	"testing"
	"time"
)

func startGroup(t *testing.T, script string) (*exec.Cmd, chan struct{}) {
	t.Helper()
	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("/bin/sh not available")
	}

	cmd := exec.Command("/bin/sh", "-c", script)
	setProcAttr(cmd)
	if err := cmd.Start(); err != nil {
		t.Fatalf("failed to start %q: %v", script, err)
	}

	reaped := make(chan struct{})
	go func() {
		cmd.Wait()
		close(reaped)
	}()
	return cmd, reaped
}

func TestKillerTerminatesProcessGroup(t *testing.T) {
	cmd, reaped := startGroup(t, "sleep 30")

	start := time.Now()
	newKiller().Kill(cmd.Process)

	select {
	case <-reaped:
	case <-time.After(2 * time.Second):
		t.Fatal("process not reaped after Kill")
	}

	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Kill took %v, expected well under a second for a cooperative exit", elapsed)
	}
	if err := syscall.Kill(-cmd.Process.Pid, 0); err == nil {
		t.Error("process group still alive after Kill")
	}
}

func TestKillerEscalatesWhenTermIgnored(t *testing.T) {
	cmd, reaped := startGroup(t, `trap "" TERM; sleep 30`)

	start := time.Now()
	newKiller().Kill(cmd.Process)
	elapsed := time.Since(start)

	select {
	case <-reaped:
	case <-time.After(2 * time.Second):
		t.Fatal("process survived the kill escalation")
	}

	if elapsed < SigkillGrace {
		t.Errorf("Kill returned after %v, expected the full %v grace period first", elapsed, SigkillGrace)
	}
	if elapsed > 2*time.Second {
		t.Errorf("Kill took %v, escalation should be bounded near the grace period", elapsed)
	}
}

func TestKillerKillDeadProcessIsNoop(t *testing.T) {
	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("/bin/sh not available")
	}

	cmd := exec.Command("/bin/sh", "-c", "true")
	setProcAttr(cmd)
	if err := cmd.Start(); err != nil {
		t.Fatalf("failed to start: %v", err)
	}
	cmd.Wait()

	start := time.Now()
	// Must return promptly and must not panic.
	newKiller().Kill(cmd.Process)
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Errorf("Kill of a dead process took %v, want immediate return", elapsed)
	}
}

func TestKillerKillNilProcess(t *testing.T) {
	k := newKiller()
	k.Kill(nil)
	k.Force(nil)
}

func TestKillerForce(t *testing.T) {
	cmd, reaped := startGroup(t, `trap "" TERM; sleep 30`)

	start := time.Now()
	newKiller().Force(cmd.Process)

	select {
	case <-reaped:
	case <-time.After(2 * time.Second):
		t.Fatal("process not reaped after Force")
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Force took %v, want immediate SIGKILL", elapsed)
	}
}
