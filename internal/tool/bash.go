package tool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	einotool "github.com/cloudwego/eino/components/tool"

	"github.com/codeforge-ai/codeforge/internal/cmderr"
	"github.com/codeforge-ai/codeforge/internal/permission"
	"github.com/codeforge-ai/codeforge/internal/proc"
	"github.com/codeforge-ai/codeforge/internal/retry"
	"github.com/codeforge-ai/codeforge/internal/shell"
)

const bashDescription = `Executes a shell command and returns its combined output.

Usage:
- Command is required; provide a brief description of what it does
- Optional timeout in milliseconds (max 600000, default 120000)
- Optional workdir; it must exist
- Output is captured from stdout and stderr and capped at 30000 bytes
- Commands run in their own process group for reliable cleanup
- Failures are reported in a <bash_error> block, never as an exception`

// Executor runs a command under a shell. *proc.Manager is the production
// implementation; tests substitute a counting fake.
type Executor interface {
	Run(ctx context.Context, sh shell.Shell, command string, opts proc.Options) (*proc.Result, error)
}

// BashTool implements shell command execution.
type BashTool struct {
	workDir   string
	selector  *shell.Selector
	executor  Executor
	matcher   *permission.Matcher
	checker   *permission.Checker
	retry     retry.Strategy
	maxOutput int
}

// BashInput represents the input for the bash tool.
type BashInput struct {
	Command     string `json:"command"`
	Description string `json:"description"`
	Timeout     int    `json:"timeout,omitempty"` // milliseconds
	WorkDir     string `json:"workdir,omitempty"`
}

// BashToolOption configures the bash tool.
type BashToolOption func(*BashTool)

// WithExecutor sets the process executor. The composition root passes the
// shared manager here so all commands land in one registry.
func WithExecutor(e Executor) BashToolOption {
	return func(t *BashTool) {
		t.executor = e
	}
}

// WithSelector sets the shell selector.
func WithSelector(s *shell.Selector) BashToolOption {
	return func(t *BashTool) {
		t.selector = s
	}
}

// WithMatcher sets the permission matcher. Without one, commands run
// unclassified.
func WithMatcher(m *permission.Matcher) BashToolOption {
	return func(t *BashTool) {
		t.matcher = m
	}
}

// WithChecker sets the approval checker consulted for ask verdicts.
func WithChecker(c *permission.Checker) BashToolOption {
	return func(t *BashTool) {
		t.checker = c
	}
}

// WithRetry sets the retry strategy wrapping execution.
func WithRetry(s retry.Strategy) BashToolOption {
	return func(t *BashTool) {
		t.retry = s
	}
}

// WithMaxOutputBytes sets the output cap.
func WithMaxOutputBytes(n int) BashToolOption {
	return func(t *BashTool) {
		t.maxOutput = n
	}
}

// NewBashTool creates a new bash tool.
func NewBashTool(workDir string, opts ...BashToolOption) *BashTool {
	t := &BashTool{
		workDir:   workDir,
		selector:  shell.NewSelector(),
		maxOutput: proc.DefaultMaxOutputBytes,
	}

	for _, opt := range opts {
		opt(t)
	}

	if t.executor == nil {
		t.executor = proc.NewManager()
	}

	return t
}

func (t *BashTool) ID() string          { return "bash" }
func (t *BashTool) Description() string { return bashDescription }

func (t *BashTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"command": {
				"type": "string",
				"description": "The command to execute"
			},
			"description": {
				"type": "string",
				"description": "Brief description of what this command does"
			},
			"timeout": {
				"type": "integer",
				"description": "Optional timeout in milliseconds (max 600000)"
			},
			"workdir": {
				"type": "string",
				"description": "Working directory for the command; must exist"
			}
		},
		"required": ["command", "description"]
	}`)
}

func (t *BashTool) Execute(ctx context.Context, input json.RawMessage, toolCtx *Context) (*Result, error) {
	var params BashInput
	if err := json.Unmarshal(input, &params); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}
	if toolCtx == nil {
		toolCtx = &Context{}
	}

	if strings.TrimSpace(params.Command) == "" {
		return t.report(params, nil, cmderr.New(cmderr.Unknown, params.Command, "command must not be blank")), nil
	}

	timeout := proc.DefaultTimeout
	if params.Timeout > 0 {
		timeout = time.Duration(params.Timeout) * time.Millisecond
		if timeout > proc.MaxTimeout {
			timeout = proc.MaxTimeout
		}
	}

	workDir := t.workDir
	if toolCtx.WorkDir != "" {
		workDir = toolCtx.WorkDir
	}
	if params.WorkDir != "" {
		workDir = params.WorkDir
	}
	if workDir != "" {
		info, err := os.Stat(workDir)
		if err != nil || !info.IsDir() {
			cerr := cmderr.Newf(cmderr.InvalidWorkdir, params.Command, "working directory does not exist: %s", workDir).
				WithMeta("workdir", workDir)
			return t.report(params, nil, cerr), nil
		}
	}

	if form, bad := permission.ScreenCommand(params.Command); bad {
		cerr := cmderr.Newf(cmderr.DangerousCommand, params.Command, "refusing to run %q", form).
			WithMeta("form", form)
		return t.report(params, nil, cerr), nil
	}

	if t.matcher != nil {
		if cerr := t.checkPermission(ctx, params.Command, toolCtx); cerr != nil {
			return t.report(params, nil, cerr), nil
		}
	}

	sh, err := t.selector.Select()
	if err != nil {
		return t.report(params, nil, cmderr.Wrap(cmderr.ShellNotFound, params.Command, err)), nil
	}

	title := params.Description
	if title == "" {
		title = "Run command"
	}

	opts := proc.Options{
		WorkDir:        workDir,
		Timeout:        timeout,
		MaxOutputBytes: t.maxOutput,
		Abort:          toolCtx.Abort,
	}
	if toolCtx.OnMetadata != nil {
		opts.Streaming = true
		opts.OnOutput = func(buf string) {
			toolCtx.SetMetadata(title, map[string]any{
				"output":      buf,
				"description": params.Description,
			})
		}
	}

	toolCtx.SetMetadata(title, map[string]any{
		"output":      "",
		"description": params.Description,
	})

	// res survives the closure so partial output from the last attempt is
	// still reported after retries run out.
	var res *proc.Result
	runErr := t.retry.Do(ctx, func() error {
		r, err := t.executor.Run(ctx, sh, params.Command, opts)
		if err != nil {
			return err
		}
		res = r
		if r.TimedOut {
			return cmderr.Newf(cmderr.Timeout, params.Command, "command timed out after %s", timeout).
				WithMeta("timeout_ms", timeout.Milliseconds())
		}
		if r.Aborted {
			return cmderr.New(cmderr.ProcessKilled, params.Command, "command was aborted before completion")
		}
		return nil
	})

	return t.report(params, res, runErr), nil
}

// checkPermission resolves the policy verdict for the command. Deny fails
// without consulting anyone; ask blocks on the checker, and without a
// checker there is nobody to approve, so ask is rejected too.
func (t *BashTool) checkPermission(ctx context.Context, command string, toolCtx *Context) *cmderr.Error {
	verdict, pattern := permission.ClassifyCommand(t.matcher, command)
	switch verdict {
	case permission.ActionAllow:
		return nil
	case permission.ActionDeny:
		return cmderr.Newf(cmderr.PermissionDenied, command, "command denied by pattern %q", pattern).
			WithMeta("pattern", pattern)
	}

	if t.checker == nil {
		return cmderr.New(cmderr.PermissionDenied, command, "approval required but no approver is configured")
	}

	err := t.checker.Ask(ctx, permission.Request{
		Type:      permission.PermBash,
		Patterns:  permission.AskPatterns(command),
		Command:   command,
		SessionID: toolCtx.SessionID,
		CallID:    toolCtx.CallID,
		Title:     command,
		Metadata: map[string]any{
			"command":   command,
			"dangerous": permission.IsDangerous(command),
		},
	})
	if err != nil {
		return cmderr.Wrap(cmderr.PermissionDenied, command, err)
	}
	return nil
}

// report assembles the tool result. Non-success outcomes get a leading
// <bash_error> block, captured output is always appended even when partial,
// and truncation is flagged in a trailing <bash_metadata> note.
func (t *BashTool) report(params BashInput, res *proc.Result, runErr error) *Result {
	var failure error
	var parts []string

	if runErr != nil {
		failure = runErr
		parts = append(parts, errorBlock(runErr))
	} else if res != nil && !res.Success {
		if res.ExitCode == 127 {
			failure = cmderr.Newf(cmderr.CommandNotFound, params.Command, "command failed with exit code 127")
			parts = append(parts, errorBlock(failure))
		} else {
			failure = fmt.Errorf("command failed with exit code %d", res.ExitCode)
			parts = append(parts, fmt.Sprintf("<bash_error>\n%s\n</bash_error>", failure.Error()))
		}
	}

	exit := -1
	var output string
	var timedOut, aborted, truncated bool
	var duration time.Duration
	if res != nil {
		exit = res.ExitCode
		output = res.Output
		timedOut = res.TimedOut
		aborted = res.Aborted
		truncated = res.Truncated
		duration = res.Duration
	}

	if output != "" {
		parts = append(parts, output)
	}
	if truncated {
		parts = append(parts, fmt.Sprintf("<bash_metadata>\noutput truncated at %d bytes\n</bash_metadata>", t.maxOutput))
	}
	text := strings.Join(parts, "\n")

	title := params.Description
	if title == "" {
		title = "Run command"
	}

	meta := map[string]any{
		"output":      text,
		"exit":        exit,
		"success":     failure == nil,
		"timed_out":   timedOut,
		"aborted":     aborted,
		"truncated":   truncated,
		"duration_ms": duration.Milliseconds(),
		"description": params.Description,
	}
	if failure != nil {
		meta["kind"] = string(cmderr.KindOf(failure))
	}

	return &Result{
		Title:    title,
		Output:   text,
		Metadata: meta,
		Error:    failure,
	}
}

// errorBlock renders a classified error as a <bash_error> block with its
// kind tag.
func errorBlock(err error) string {
	var cerr *cmderr.Error
	if errors.As(err, &cerr) {
		return fmt.Sprintf("<bash_error>\n%s: %s\n</bash_error>", cerr.Kind, cerr.Message)
	}
	return fmt.Sprintf("<bash_error>\n%s: %s\n</bash_error>", cmderr.Unknown, err.Error())
}

func (t *BashTool) EinoTool() einotool.InvokableTool {
	return &einoToolWrapper{tool: t}
}
