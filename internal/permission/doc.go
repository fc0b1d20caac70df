// Package permission decides whether a candidate shell command may run. It
// classifies commands into allow, deny, or ask verdicts using glob rules
// and manages the interactive approval flow for ask results.
//
// # Verdicts
//
// Every command resolves to exactly one of three actions:
//   - Allow: run without prompting
//   - Deny: refuse before any process is spawned
//   - Ask: block until a user approves or rejects
//
// # Matcher
//
// The Matcher holds an ordered set of glob-style patterns, each mapped to
// an action. The only wildcard is '*', which matches any run of characters
// including whitespace. Longer (more literal) patterns win over shorter
// ones, so a specific rule overrides a general one:
//
//	m := NewMatcher(
//		Rule{Pattern: "rm*", Action: ActionAsk},
//		Rule{Pattern: "rm -rf /tmp/x*", Action: ActionAllow},
//	)
//	action, pattern := m.Verdict("rm -rf /tmp/x")
//	// action == ActionAllow, pattern == "rm -rf /tmp/x*"
//
// Commands matching no rule resolve to ActionAsk. Verdicts are total and
// deterministic: the same command and rule set always produce the same
// result.
//
// # Compound commands
//
// SplitCommand parses a command line as bash and returns each simple
// command, so "git status && rm -rf /" is classified as both "git status"
// and "rm -rf /". ClassifyCommand applies the matcher to every part and
// the strictest verdict wins (deny over ask over allow), preventing an
// allowed prefix from smuggling a denied command through. Lines that do
// not parse as bash are classified as one opaque string.
//
// # Approval flow
//
// The Checker resolves ask verdicts. It publishes a permission.required
// event on the bus and blocks until a frontend calls Respond with one of
// three replies:
//   - "once": approve this request only
//   - "always": approve and remember the command's patterns for the session
//   - "reject": refuse with a RejectedError
//
// Remembered approvals are per session and cleared with ClearSession.
//
//	checker := NewChecker()
//	err := checker.Ask(ctx, Request{
//		Type:      PermBash,
//		SessionID: "sess-1",
//		Patterns:  AskPatterns("git push"),
//		Command:   "git push",
//		Title:     "Run git push",
//	})
//
// # Dangerous commands
//
// ScreenCommand refuses a small set of catastrophic forms (recursive
// deletion of the filesystem root, fork bombs) before any rule matching.
// IsDangerous flags commands that modify filesystem state so prompts can
// render them with more caution; it never blocks execution by itself.
//
// # Thread safety
//
// Matcher is safe for concurrent Verdict calls once built; Add is not safe
// to call concurrently with Verdict. Checker is safe for concurrent use
// across sessions and goroutines.
package permission
