package permission

import (
	"regexp"
	"sort"
	"strings"
)

// Rule pairs a glob-style command pattern with the action to take when a
// command matches it. The only wildcard is '*', which matches any run of
// characters including whitespace and newlines.
type Rule struct {
	Pattern string `json:"pattern"`
	Action  Action `json:"action"`
}

// Matcher resolves commands to verdicts with longest-pattern-wins glob
// rules. A pattern with more literal characters beats a shorter, more
// general one; rules added earlier win ties. Commands matching no rule
// resolve to ActionAsk.
type Matcher struct {
	rules []compiledRule
}

type compiledRule struct {
	pattern string
	action  Action
	literal int // count of non-wildcard characters, decides precedence
	exact   bool
	prefix  string
	re      *regexp.Regexp
}

// NewMatcher builds a matcher from rules. Later calls to Add extend it.
func NewMatcher(rules ...Rule) *Matcher {
	m := &Matcher{}
	for _, r := range rules {
		m.Add(r.Pattern, r.Action)
	}
	return m
}

// Add registers a pattern. Rules are kept sorted by literal length
// descending so Verdict can stop at the first match.
func (m *Matcher) Add(pattern string, action Action) {
	m.rules = append(m.rules, compileRule(pattern, action))
	sort.SliceStable(m.rules, func(i, j int) bool {
		return m.rules[i].literal > m.rules[j].literal
	})
}

func compileRule(pattern string, action Action) compiledRule {
	r := compiledRule{
		pattern: pattern,
		action:  action,
		literal: len(pattern) - strings.Count(pattern, "*"),
	}
	switch {
	case !strings.Contains(pattern, "*"):
		r.exact = true
	case strings.Count(pattern, "*") == 1 && strings.HasSuffix(pattern, "*"):
		r.prefix = strings.TrimSuffix(pattern, "*")
	default:
		var sb strings.Builder
		sb.WriteString(`(?s)^`)
		for i, seg := range strings.Split(pattern, "*") {
			if i > 0 {
				sb.WriteString(`.*`)
			}
			sb.WriteString(regexp.QuoteMeta(seg))
		}
		sb.WriteString(`$`)
		r.re = regexp.MustCompile(sb.String())
	}
	return r
}

func (r compiledRule) match(command string) bool {
	switch {
	case r.exact:
		return command == r.pattern
	case r.re != nil:
		return r.re.MatchString(command)
	default:
		return strings.HasPrefix(command, r.prefix)
	}
}

// Verdict classifies a command. It returns the action of the most specific
// matching rule and the pattern that decided it, or ActionAsk and an empty
// pattern when nothing matches.
func (m *Matcher) Verdict(command string) (Action, string) {
	for _, r := range m.rules {
		if r.match(command) {
			return r.action, r.pattern
		}
	}
	return ActionAsk, ""
}

// Rules returns the configured rules in precedence order.
func (m *Matcher) Rules() []Rule {
	out := make([]Rule, len(m.rules))
	for i, r := range m.rules {
		out[i] = Rule{Pattern: r.pattern, Action: r.action}
	}
	return out
}

// Len returns the number of configured rules.
func (m *Matcher) Len() int {
	return len(m.rules)
}
