package workshop

import (
	"context"
	"encoding/json"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Tool is a capability the model can invoke. One Tool may expose several
// functions; Execute dispatches on name.
type Tool interface {
	Definitions() []ToolDefinition
	Execute(ctx context.Context, name string, args json.RawMessage) (ToolResult, error)
}

// ToolResult is the outcome of a tool execution. Error carries a captured
// failure message so the model can react; it never aborts the loop.
type ToolResult struct {
	Content string `json:"content"`
	Error   string `json:"error,omitempty"`
}

// registeredTool pairs a definition with its owning tool and, when the
// definition's parameter schema compiles, a validator applied before dispatch.
type registeredTool struct {
	def    ToolDefinition
	tool   Tool
	schema *jsonschema.Schema
}

// ToolRegistry holds all registered tools and dispatches execution by name.
// Argument parsing and schema validation happen at the registry boundary;
// failures become structured tool results rather than errors.
type ToolRegistry struct {
	byName map[string]registeredTool
	order  []string
}

// NewToolRegistry returns a registry with no tools.
func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{byName: make(map[string]registeredTool)}
}

// Add registers a tool under each of its definition names. Parameter schemas
// are compiled as JSON Schema; definitions whose schema does not compile are
// registered without validation.
func (r *ToolRegistry) Add(t Tool) {
	for _, d := range t.Definitions() {
		rt := registeredTool{def: d, tool: t}
		if len(d.Parameters) > 0 {
			if s, err := jsonschema.CompileString(d.Name+".schema.json", string(d.Parameters)); err == nil {
				rt.schema = s
			}
		}
		if _, exists := r.byName[d.Name]; !exists {
			r.order = append(r.order, d.Name)
		}
		r.byName[d.Name] = rt
	}
}

// Has reports whether a tool with the given name is registered.
func (r *ToolRegistry) Has(name string) bool {
	_, ok := r.byName[name]
	return ok
}

// AllDefinitions returns tool definitions in registration order.
func (r *ToolRegistry) AllDefinitions() []ToolDefinition {
	defs := make([]ToolDefinition, 0, len(r.order))
	for _, name := range r.order {
		defs = append(defs, r.byName[name].def)
	}
	return defs
}

// Execute dispatches a tool call by name. Unknown names, unparseable
// arguments, and schema violations are returned as result errors with a nil
// error value so the caller can feed them back to the model.
func (r *ToolRegistry) Execute(ctx context.Context, name string, args json.RawMessage) (ToolResult, error) {
	rt, ok := r.byName[name]
	if !ok {
		return ToolResult{Error: "unknown tool: " + name}, nil
	}
	var parsed any
	if err := json.Unmarshal(args, &parsed); err != nil {
		return ToolResult{Error: "Invalid tool arguments for " + name}, nil
	}
	if rt.schema != nil {
		if err := rt.schema.Validate(parsed); err != nil {
			return ToolResult{Error: "Invalid tool arguments for " + name}, nil
		}
	}
	return rt.tool.Execute(ctx, name, args)
}
