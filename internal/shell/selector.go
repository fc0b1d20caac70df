// Package shell selects an interactive-safe shell executable for the host platform.
package shell

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// ErrNotFound is returned when no usable shell executable exists on the host.
var ErrNotFound = errors.New("no usable shell found")

// Shell is a resolved shell executable together with the flag used to pass a
// command string to it.
type Shell struct {
	Path string
	Flag string // "-c" for POSIX-style shells, "/c" for cmd.exe
}

// blacklist contains shells whose scripting semantics are incompatible with
// the POSIX command strings the engine generates.
var blacklist = map[string]bool{
	"fish":       true,
	"nu":         true,
	"nushell":    true,
	"pwsh":       true,
	"powershell": true,
}

// Selector resolves the shell to execute commands with.
type Selector struct {
	override string
	getenv   func(string) string
	exists   func(string) bool
	goos     string
}

// NewSelector creates a selector bound to the host environment.
func NewSelector() *Selector {
	return &Selector{
		getenv: os.Getenv,
		exists: fileExists,
		goos:   runtime.GOOS,
	}
}

// NewSelectorWithOverride creates a selector that resolves to the given
// shell path before consulting $SHELL or the platform fallbacks. An empty
// path behaves like NewSelector.
func NewSelectorWithOverride(path string) *Selector {
	s := NewSelector()
	s.override = path
	return s
}

// Select returns the shell to use. A configured override is taken as-is and
// fails with ErrNotFound when missing rather than silently falling back.
// Otherwise it prefers $SHELL unless its basename is blacklisted or the file
// is missing, then probes platform fallbacks in order.
func (s *Selector) Select() (Shell, error) {
	if s.override != "" {
		if s.exists(s.override) {
			return Shell{Path: s.override, Flag: commandFlag(s.override)}, nil
		}
		return Shell{}, ErrNotFound
	}

	if env := s.getenv("SHELL"); env != "" {
		if !blacklisted(env) && s.exists(env) {
			return Shell{Path: env, Flag: "-c"}, nil
		}
	}

	for _, sh := range s.fallbacks() {
		if s.exists(sh.Path) {
			return sh, nil
		}
	}

	return Shell{}, ErrNotFound
}

// fallbacks returns the platform probe order.
func (s *Selector) fallbacks() []Shell {
	if s.goos == "windows" {
		candidates := []Shell{
			{Path: `C:\Program Files\Git\bin\bash.exe`, Flag: "-c"},
			{Path: `C:\Program Files (x86)\Git\bin\bash.exe`, Flag: "-c"},
		}
		if comspec := s.getenv("COMSPEC"); comspec != "" {
			candidates = append(candidates, Shell{Path: comspec, Flag: "/c"})
		}
		return append(candidates, Shell{Path: `C:\Windows\System32\cmd.exe`, Flag: "/c"})
	}

	var candidates []Shell
	if s.goos == "darwin" {
		candidates = append(candidates, Shell{Path: "/bin/zsh", Flag: "-c"})
	}
	return append(candidates,
		Shell{Path: "/bin/bash", Flag: "-c"},
		Shell{Path: "/usr/bin/bash", Flag: "-c"},
		Shell{Path: "/bin/sh", Flag: "-c"},
	)
}

// commandFlag returns the flag that passes a command string to the shell.
func commandFlag(path string) string {
	base := strings.ToLower(filepath.Base(path))
	if base == "cmd" || base == "cmd.exe" {
		return "/c"
	}
	return "-c"
}

// blacklisted reports whether the executable's basename is a known
// incompatible shell. Windows extensions and case are ignored.
func blacklisted(path string) bool {
	base := strings.ToLower(filepath.Base(path))
	base = strings.TrimSuffix(base, ".exe")
	return blacklist[base]
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
