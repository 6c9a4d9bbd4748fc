// Package fs exposes sandboxed file operations as agent tools: directory
// listing, reads, writes and patch application, all confined to one
// workspace root.
package fs

import (
	"context"
	"encoding/json"
	"strings"

	workshop "github.com/nevindra/workshop"
	"github.com/nevindra/workshop/sandbox"
)

// Tool provides fs_list, fs_read, fs_write and fs_apply_patch over a
// workspace sandbox.
type Tool struct {
	sb *sandbox.Sandbox
}

// New creates the file tool restricted to the given sandbox.
func New(sb *sandbox.Sandbox) *Tool {
	return &Tool{sb: sb}
}

func (t *Tool) Definitions() []workshop.ToolDefinition {
	return []workshop.ToolDefinition{
		{
			Name:        "fs_list",
			Description: "List one directory level in the workspace. Returns entries with name, relative path, type and size.",
			Parameters:  json.RawMessage(`{"type":"object","properties":{"path":{"type":"string","description":"Directory path relative to the workspace root. Defaults to the root."}}}`),
		},
		{
			Name:        "fs_read",
			Description: "Read a file from the workspace as UTF-8 text.",
			Parameters:  json.RawMessage(`{"type":"object","properties":{"path":{"type":"string","description":"File path relative to the workspace root"}},"required":["path"]}`),
		},
		{
			Name:        "fs_write",
			Description: "Write content to a file in the workspace. Creates parent directories. Fails if the file exists unless overwrite is true.",
			Parameters:  json.RawMessage(`{"type":"object","properties":{"path":{"type":"string","description":"File path relative to the workspace root"},"content":{"type":"string","description":"Content to write"},"overwrite":{"type":"boolean","description":"Replace an existing file"}},"required":["path","content"]}`),
		},
		{
			Name:        "fs_apply_patch",
			Description: "Apply a patch to workspace files. Accepts an envelope patch (*** Begin Patch ... *** End Patch) or a unified diff.",
			Parameters:  json.RawMessage(`{"type":"object","properties":{"patch":{"type":"string","description":"Patch text"}},"required":["patch"]}`),
		},
	}
}

func (t *Tool) Execute(ctx context.Context, name string, args json.RawMessage) (workshop.ToolResult, error) {
	var params struct {
		Path      string `json:"path"`
		Content   string `json:"content"`
		Overwrite bool   `json:"overwrite"`
		Patch     string `json:"patch"`
	}
	if err := json.Unmarshal(args, &params); err != nil {
		return workshop.ToolResult{Error: "invalid args: " + err.Error()}, nil
	}

	switch name {
	case "fs_list":
		path := params.Path
		if strings.TrimSpace(path) == "" {
			path = "."
		}
		entries, err := t.sb.List(path)
		if err != nil {
			return workshop.ToolResult{Error: err.Error()}, nil
		}
		return marshalResult(entries)
	case "fs_read":
		f, err := t.sb.Read(params.Path)
		if err != nil {
			return workshop.ToolResult{Error: err.Error()}, nil
		}
		return marshalResult(f)
	case "fs_write":
		res, err := t.sb.Write(params.Path, params.Content, params.Overwrite)
		if err != nil {
			return workshop.ToolResult{Error: err.Error()}, nil
		}
		return marshalResult(res)
	case "fs_apply_patch":
		return marshalResult(t.sb.ApplyPatch(params.Patch))
	default:
		return workshop.ToolResult{Error: "unknown file tool: " + name}, nil
	}
}

func marshalResult(v any) (workshop.ToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return workshop.ToolResult{Error: "encode result: " + err.Error()}, nil
	}
	return workshop.ToolResult{Content: string(data)}, nil
}
