package observer

import "go.opentelemetry.io/otel/attribute"

// Span and metric attribute keys shared by the wrappers. Log records spell
// their keys inline; only span and metric call sites go through these.
var (
	AttrLLMModel    = attribute.Key("llm.model")
	AttrLLMProvider = attribute.Key("llm.provider")
	AttrLLMMethod   = attribute.Key("llm.method")

	AttrTokensInput  = attribute.Key("llm.tokens.input")
	AttrTokensOutput = attribute.Key("llm.tokens.output")
	AttrCostUSD      = attribute.Key("llm.cost_usd")

	AttrToolCount    = attribute.Key("llm.tool_count")
	AttrToolNames    = attribute.Key("llm.tool_names")
	AttrStreamChunks = attribute.Key("llm.stream_chunks")

	AttrToolName         = attribute.Key("tool.name")
	AttrToolStatus       = attribute.Key("tool.status")
	AttrToolResultLength = attribute.Key("tool.result_length")

	AttrSessionUser = attribute.Key("session.user")
)
