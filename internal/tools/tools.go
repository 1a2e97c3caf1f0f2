package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"

	"github.com/glimmerchat/engine/internal/llm"
	"github.com/glimmerchat/engine/internal/search"
	"github.com/glimmerchat/engine/internal/store"
)

// Tool is one callable capability exposed to the model. Input and output are
// free text; structured arguments are decoded by the tool itself.
type Tool interface {
	Name() string
	Description() string
	Invoke(ctx context.Context, input string) (string, error)
}

type Capabilities struct {
	UseKnowledgeBase bool
	UseWebScraper    bool
	UseDeepSearch    bool
}

type Deps struct {
	Store  store.Store
	Search *search.Client
	Logger *slog.Logger
}

// Registry maps tool names to tools. Construction is pure: no I/O happens
// until a tool is invoked.
type Registry struct {
	tools  map[string]Tool
	logger *slog.Logger
}

func BuildRegistry(deps Deps, caps Capabilities) *Registry {
	registry := &Registry{tools: map[string]Tool{}, logger: deps.Logger}
	if caps.UseKnowledgeBase {
		registry.register(NewKnowledgeBaseTool(deps.Store))
	}
	if caps.UseWebScraper {
		registry.register(NewScraperTool())
	}
	if caps.UseDeepSearch {
		registry.register(NewDeepSearchTool(deps.Search))
	}
	return registry
}

// WidgetRegistry is the fixed reduced tool set for embeddable widget callers.
func WidgetRegistry(deps Deps) *Registry {
	return BuildRegistry(deps, Capabilities{UseKnowledgeBase: true})
}

func (r *Registry) register(tool Tool) {
	r.tools[tool.Name()] = tool
}

func (r *Registry) Has(name string) bool {
	_, ok := r.tools[name]
	return ok
}

func (r *Registry) Len() int {
	return len(r.tools)
}

// Names returns registered tool names in stable order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) Specs() []llm.ToolSpec {
	specs := make([]llm.ToolSpec, 0, len(r.tools))
	for _, name := range r.Names() {
		tool := r.tools[name]
		specs = append(specs, llm.ToolSpec{Name: tool.Name(), Description: tool.Description()})
	}
	return specs
}

// Invoke runs the named tool. Failures come back as readable tool output, not
// errors: the conversation continues and the model sees what went wrong.
func (r *Registry) Invoke(ctx context.Context, name string, input string) string {
	tool, ok := r.tools[name]
	if !ok {
		return fmt.Sprintf("The tool %q is not available in this conversation.", name)
	}
	output, err := tool.Invoke(ctx, input)
	if err != nil {
		if r.logger != nil {
			r.logger.Error("tool invocation failed", "tool", name, "error", err)
		}
		return fmt.Sprintf("The %s tool could not complete this request: %s", name, err.Error())
	}
	return output
}

// decodeToolInput unwraps the {"input": "..."} argument object the provider
// sends. Plain strings pass through unchanged.
func decodeToolInput(raw string) string {
	var args struct {
		Input string `json:"input"`
	}
	if err := json.Unmarshal([]byte(raw), &args); err == nil && args.Input != "" {
		return args.Input
	}
	return raw
}
