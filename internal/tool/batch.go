package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	einotool "github.com/cloudwego/eino/components/tool"

	"github.com/codeforge-ai/codeforge/internal/cmderr"
	"github.com/codeforge-ai/codeforge/internal/event"
	"github.com/codeforge-ai/codeforge/internal/logging"
)

const batchDescription = `Executes up to 10 independent tool invocations concurrently and reports one aggregate result.

Payload format:
  {"tools": [{"name": "read", "arguments": {"filePath": "go.mod"}}, {"name": "bash", "arguments": {"command": "git status", "description": "Show working tree status"}}]}

Rules:
- 1-10 invocations per batch; an empty list, more than 10 entries, or a nested batch rejects the whole request before anything runs
- All invocations start in parallel; completion order is not guaranteed
- A failing invocation never cancels its siblings
- Results come back in submission order, one section per invocation

When NOT to use:
- Operations that depend on prior tool output (e.g. create then read the same file)
- Ordered stateful mutations where sequence matters

Good use cases:
- Reading many files at once
- glob + read + list combinations
- Several independent shell introspection commands`

const (
	// maxBatchSize caps the invocations accepted per batch.
	maxBatchSize = 10
	// summaryLimit caps each entry's output in the aggregate report.
	summaryLimit = 2000
)

// BatchTool implements parallel tool execution over a shared worker pool.
type BatchTool struct {
	registry *Registry
	pool     *WorkerPool
}

// BatchInput represents the input for the batch tool.
type BatchInput struct {
	Tools []BatchInvocation `json:"tools"`
}

// BatchInvocation names one tool and its arguments.
type BatchInvocation struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// BatchOutcome is the terminal record of one invocation. Outcomes are never
// mutated after creation and are reported in submission order even though
// completion order is unspecified.
type BatchOutcome struct {
	Tool           string `json:"tool"`
	Success        bool   `json:"success"`
	Output         string `json:"output,omitempty"`
	Error          string `json:"error,omitempty"`
	DurationMillis int64  `json:"durationMillis"`
}

// NewBatchTool creates a new batch tool dispatching onto pool.
func NewBatchTool(registry *Registry, pool *WorkerPool) *BatchTool {
	return &BatchTool{
		registry: registry,
		pool:     pool,
	}
}

func (t *BatchTool) ID() string          { return "batch" }
func (t *BatchTool) Description() string { return batchDescription }

func (t *BatchTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"tools": {
				"type": "array",
				"description": "Tool invocations to run concurrently",
				"items": {
					"type": "object",
					"properties": {
						"name": {
							"type": "string",
							"description": "The name of the registered tool to execute"
						},
						"arguments": {
							"type": "object",
							"description": "Arguments for the tool"
						}
					},
					"required": ["name", "arguments"]
				},
				"minItems": 1,
				"maxItems": 10
			}
		},
		"required": ["tools"]
	}`)
}

func (t *BatchTool) Execute(ctx context.Context, input json.RawMessage, toolCtx *Context) (*Result, error) {
	var params BatchInput
	if err := json.Unmarshal(input, &params); err != nil {
		return nil, fmt.Errorf("invalid input: %w\n\nExpected payload format:\n  {\"tools\": [{\"name\": \"tool_name\", \"arguments\": {...}}, ...]}", err)
	}

	// The whole batch is rejected before any entry is dispatched.
	if len(params.Tools) == 0 {
		return nil, fmt.Errorf("tools array must contain at least one invocation")
	}
	if len(params.Tools) > maxBatchSize {
		return nil, fmt.Errorf("batch accepts at most %d invocations, got %d", maxBatchSize, len(params.Tools))
	}
	for _, inv := range params.Tools {
		if inv.Name == t.ID() {
			return nil, fmt.Errorf("batch cannot invoke itself")
		}
	}

	if toolCtx == nil {
		toolCtx = &Context{}
	}

	start := time.Now()
	futures := make([]*Future, len(params.Tools))
	for i, inv := range params.Tools {
		i, inv := i, inv
		futures[i] = t.pool.Submit(ctx, inv.Name, func(tctx context.Context) (*Result, error) {
			return t.executeCall(tctx, i, inv, toolCtx)
		})
	}

	outcomes := make([]*BatchOutcome, len(futures))
	var attachments []Attachment
	for i, fut := range futures {
		res, err := fut.Wait()
		outcomes[i] = newOutcome(params.Tools[i].Name, res, err, fut.Duration())
		if err == nil && res != nil {
			attachments = append(attachments, res.Attachments...)
		}
	}

	succeeded := 0
	for _, o := range outcomes {
		if o.Success {
			succeeded++
		}
	}

	logging.Debug().
		Int("total", len(outcomes)).
		Int("succeeded", succeeded).
		Dur("duration", time.Since(start)).
		Msg("batch completed")
	event.Publish(event.Event{
		Type: event.BatchCompleted,
		Data: event.BatchCompletedData{
			Total:          len(outcomes),
			Succeeded:      succeeded,
			Failed:         len(outcomes) - succeeded,
			DurationMillis: time.Since(start).Milliseconds(),
		},
	})

	return t.formatOutcomes(outcomes, attachments), nil
}

// executeCall resolves and runs one invocation. Its error becomes a failed
// outcome for this entry only.
func (t *BatchTool) executeCall(ctx context.Context, index int, inv BatchInvocation, toolCtx *Context) (*Result, error) {
	tl, ok := t.registry.Get(inv.Name)
	if !ok {
		return nil, cmderr.Newf(cmderr.CommandNotFound, inv.Name,
			"tool %q is not registered; available: %s", inv.Name, strings.Join(t.availableTools(), ", "))
	}

	args := inv.Arguments
	if len(args) == 0 {
		args = json.RawMessage(`{}`)
	}

	callCtx := &Context{
		SessionID:  toolCtx.SessionID,
		CallID:     fmt.Sprintf("%s-batch-%d", toolCtx.CallID, index),
		WorkDir:    toolCtx.WorkDir,
		Abort:      toolCtx.Abort,
		Extra:      toolCtx.Extra,
		OnMetadata: nil, // entries report through the aggregate only
	}

	return tl.Execute(ctx, args, callCtx)
}

func newOutcome(name string, res *Result, err error, dur time.Duration) *BatchOutcome {
	o := &BatchOutcome{Tool: name, DurationMillis: dur.Milliseconds()}
	switch {
	case err != nil:
		o.Error = err.Error()
	case res != nil && res.Error != nil:
		o.Error = res.Error.Error()
		o.Output = res.Output
	default:
		o.Success = true
		if res != nil {
			o.Output = res.Output
		}
	}
	return o
}

func (t *BatchTool) formatOutcomes(outcomes []*BatchOutcome, attachments []Attachment) *Result {
	succeeded := 0
	sections := make([]string, 0, len(outcomes))
	details := make([]map[string]any, 0, len(outcomes))
	toolNames := make([]string, len(outcomes))

	for i, o := range outcomes {
		toolNames[i] = o.Tool
		detail := map[string]any{
			"tool":        o.Tool,
			"success":     o.Success,
			"duration_ms": o.DurationMillis,
		}

		if o.Success {
			succeeded++
			sections = append(sections, fmt.Sprintf("=== %s (success) ===\n%s", o.Tool, summarize(o.Output)))
		} else {
			text := o.Output
			if text == "" {
				text = o.Error
			}
			sections = append(sections, fmt.Sprintf("=== %s (failed) ===\n%s", o.Tool, summarize(text)))
			detail["error"] = o.Error
		}

		details = append(details, detail)
	}

	failed := len(outcomes) - succeeded
	var header string
	if failed > 0 {
		header = fmt.Sprintf("Executed %d/%d tools successfully. %d failed.", succeeded, len(outcomes), failed)
	} else {
		header = fmt.Sprintf("All %d tools executed successfully.", succeeded)
	}

	return &Result{
		Title:       fmt.Sprintf("Batch execution (%d/%d successful)", succeeded, len(outcomes)),
		Output:      header + "\n\n" + strings.Join(sections, "\n\n"),
		Attachments: attachments,
		Metadata: map[string]any{
			"total":     len(outcomes),
			"succeeded": succeeded,
			"failed":    failed,
			"tools":     toolNames,
			"details":   details,
		},
	}
}

// summarize truncates one entry's text for the aggregate report.
func summarize(s string) string {
	if len(s) <= summaryLimit {
		return s
	}
	return s[:summaryLimit] + "\n... (entry truncated)"
}

func (t *BatchTool) availableTools() []string {
	ids := t.registry.IDs()
	available := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != t.ID() {
			available = append(available, id)
		}
	}
	return available
}

func (t *BatchTool) EinoTool() einotool.InvokableTool {
	return &einoToolWrapper{tool: t}
}
