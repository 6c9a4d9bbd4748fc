// Package workshop is a local-first, tool-using assistant runtime.
//
// A user request drives a bounded reason/act loop around an OpenAI-compatible
// chat-completion endpoint. The model may call a fixed catalog of tools
// (sandboxed file I/O, patching, web search and fetch, document
// summarization); the loop executes them safely and returns a final answer or
// streams tokens to an observer.
//
// # Quick Start
//
//	provider := openaicompat.NewProvider(apiKey, model, baseURL)
//	sb, _ := sandbox.Open(filepath.Join(base, "workspace"))
//
//	reg := workshop.NewToolRegistry()
//	reg.Add(fs.New(sb))
//	reg.Add(web.New(web.Config{}))
//
//	agent := workshop.NewAgent(provider,
//		workshop.WithTools(reg),
//		workshop.WithMaxSteps(12),
//	)
//
//	sess := workshop.NewSession("You are a helpful assistant.", sb.Root())
//	result, err := agent.Respond(ctx, sess, "list the files in my workspace")
//
// # Core Interfaces
//
// The root package defines the contracts the subpackages implement:
//
//   - [Provider]: chat backend (unary, streaming, tool calling)
//   - [Tool]: pluggable capability for model function calling
//   - [Tracer]: span creation for turn/step observability
//
// # Included Implementations
//
// Provider: provider/openaicompat (any OpenAI-compatible API).
// Tools: tools/fs (sandboxed files + patches), tools/web (search + fetch),
// tools/summarize (chunked map-reduce summarization).
// Remote use: server (multi-session SSE server), client (SSE client).
//
// See cmd/workshop for the server entrypoint.
package workshop
