package permission

import (
	"strings"

	"mvdan.cc/sh/v3/syntax"
)

// SplitCommand breaks a shell command line into its simple commands so each
// can be classified independently: "git status && rm -rf /" yields
// ["git status", "rm -rf /"]. Commands inside pipelines, subshells, and
// substitutions are included. Returns nil when the input does not parse as
// bash.
func SplitCommand(command string) []string {
	parser := syntax.NewParser(
		syntax.Variant(syntax.LangBash),
		syntax.KeepComments(false),
	)

	file, err := parser.Parse(strings.NewReader(command), "")
	if err != nil {
		return nil
	}

	printer := syntax.NewPrinter()
	var parts []string
	syntax.Walk(file, func(node syntax.Node) bool {
		if call, ok := node.(*syntax.CallExpr); ok && len(call.Args) > 0 {
			var sb strings.Builder
			if err := printer.Print(&sb, call); err == nil {
				parts = append(parts, strings.TrimSpace(sb.String()))
			}
		}
		return true
	})
	return parts
}

// ClassifyCommand resolves the verdict for a full command line. Compound
// commands are split and every simple command classified; the strictest
// verdict wins (deny over ask over allow) so an allowed prefix cannot
// smuggle a denied command through. Returns the verdict and the pattern
// that decided it.
func ClassifyCommand(m *Matcher, command string) (Action, string) {
	parts := SplitCommand(command)
	if len(parts) == 0 {
		parts = []string{command}
	}

	verdict, matched := m.Verdict(parts[0])
	for _, part := range parts[1:] {
		action, pattern := m.Verdict(part)
		if severity(action) > severity(verdict) {
			verdict, matched = action, pattern
		}
	}
	return verdict, matched
}

func severity(a Action) int {
	switch a {
	case ActionDeny:
		return 2
	case ActionAsk:
		return 1
	default:
		return 0
	}
}

// AskPatterns derives the approval patterns persisted when a user replies
// "always": the command name plus a trailing wildcard for each simple
// command, deduplicated. "git status && git push" yields ["git *"].
func AskPatterns(command string) []string {
	parts := SplitCommand(command)
	if len(parts) == 0 {
		parts = []string{command}
	}

	seen := make(map[string]bool)
	var patterns []string
	for _, part := range parts {
		fields := strings.Fields(part)
		if len(fields) == 0 {
			continue
		}
		name := fields[0]
		// cd only changes the spawned shell's own directory
		if name == "cd" {
			continue
		}
		pattern := name
		if len(fields) > 1 {
			pattern = name + " *"
		}
		if !seen[pattern] {
			seen[pattern] = true
			patterns = append(patterns, pattern)
		}
	}
	return patterns
}

// dangerousNames are commands that modify filesystem state or device
// contents. They never block execution by themselves but mark ask prompts
// so a frontend can render them with more caution.
var dangerousNames = map[string]bool{
	"rm":       true,
	"rmdir":    true,
	"dd":       true,
	"mkfs":     true,
	"chmod":    true,
	"chown":    true,
	"mv":       true,
	"shred":    true,
	"truncate": true,
}

// IsDangerous reports whether any simple command in the line has a name on
// the dangerous list.
func IsDangerous(command string) bool {
	parts := SplitCommand(command)
	if len(parts) == 0 {
		parts = []string{command}
	}
	for _, part := range parts {
		fields := strings.Fields(part)
		if len(fields) > 0 && dangerousNames[fields[0]] {
			return true
		}
	}
	return false
}

// ScreenCommand checks the command line and each of its simple commands
// against a small set of forms that destroy the system outright (recursive
// deletion of the filesystem root, fork bombs). These are refused before
// permission matching runs. Returns the offending form when one is found.
func ScreenCommand(command string) (string, bool) {
	parts := SplitCommand(command)
	for _, part := range append(parts, command) {
		if catastrophic(part) {
			return part, true
		}
	}
	return "", false
}

func catastrophic(command string) bool {
	switch strings.Join(strings.Fields(command), " ") {
	case "rm -rf /", "rm -rf /*",
		"rm -fr /", "rm -fr /*",
		"rm -r -f /", "rm -f -r /",
		"rm --recursive --force /",
		":(){ :|:& };:", ":(){:|:&};:":
		return true
	}
	return false
}
