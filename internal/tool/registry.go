package tool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	einotool "github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"

	"github.com/codeforge-ai/codeforge/internal/cmderr"
	"github.com/codeforge-ai/codeforge/internal/logging"
)

// Registry manages tool registration and lookup.
type Registry struct {
	mu      sync.RWMutex
	tools   map[string]Tool
	workDir string
}

// NewRegistry creates a new tool registry.
func NewRegistry(workDir string) *Registry {
	return &Registry{
		tools:   make(map[string]Tool),
		workDir: workDir,
	}
}

// Register adds a tool to the registry, replacing any tool with the same id.
func (r *Registry) Register(tool Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	logging.Debug().Str("tool", tool.ID()).Msg("registered tool")
	r.tools[tool.ID()] = tool
}

// Get retrieves a tool by ID.
func (r *Registry) Get(id string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tool, ok := r.tools[id]
	return tool, ok
}

// List returns all registered tools.
func (r *Registry) List() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tools := make([]Tool, 0, len(r.tools))
	for _, tool := range r.tools {
		tools = append(tools, tool)
	}
	return tools
}

// IDs returns all tool IDs in sorted order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.tools))
	for id := range r.tools {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Run executes a registered tool and renders any failure, including an
// unknown tool name, as the textual error result delivered to the
// orchestrator. This method never returns an error to its caller.
func (r *Registry) Run(ctx context.Context, name string, input json.RawMessage, toolCtx *Context) string {
	t, ok := r.Get(name)
	if !ok {
		return errorText(cmderr.Newf(cmderr.CommandNotFound, name, "tool %q is not registered", name))
	}

	res, err := t.Execute(ctx, input, toolCtx)
	if err != nil {
		return errorText(err)
	}
	return res.Output
}

// errorText renders a tool failure as output text with a machine-parseable
// kind tag.
func errorText(err error) string {
	var cerr *cmderr.Error
	if errors.As(err, &cerr) {
		return fmt.Sprintf("<tool_error>\n%s: %s\n</tool_error>", cerr.Kind, cerr.Message)
	}
	return fmt.Sprintf("<tool_error>\n%s: %s\n</tool_error>", cmderr.Unknown, err.Error())
}

// EinoTools returns Eino-compatible tools.
func (r *Registry) EinoTools() []einotool.BaseTool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tools := make([]einotool.BaseTool, 0, len(r.tools))
	for _, t := range r.tools {
		tools = append(tools, t.EinoTool())
	}
	return tools
}

// ToolInfos returns Eino tool infos for all tools.
func (r *Registry) ToolInfos() ([]*schema.ToolInfo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]*schema.ToolInfo, 0, len(r.tools))
	for _, t := range r.tools {
		params := parseJSONSchemaToParams(t.Parameters())
		infos = append(infos, &schema.ToolInfo{
			Name:        t.ID(),
			Desc:        t.Description(),
			ParamsOneOf: schema.NewParamsOneOfByParams(params),
		})
	}
	return infos, nil
}

// DefaultRegistry creates a registry with all built-in tools. The worker
// pool is owned by the caller and shared across every batch; bashOpts wire
// the process manager and permission policy into the bash tool.
func DefaultRegistry(workDir string, pool *WorkerPool, bashOpts ...BashToolOption) *Registry {
	r := NewRegistry(workDir)

	r.Register(NewReadTool(workDir))
	r.Register(NewListTool(workDir))
	r.Register(NewGlobTool(workDir))
	r.Register(NewBashTool(workDir, bashOpts...))
	r.Register(NewBatchTool(r, pool))

	return r
}
