package observer

// ModelPricing holds per-million-token pricing for a model.
type ModelPricing struct {
	InputPerMillion  float64
	OutputPerMillion float64
}

// DefaultPricing contains sensible defaults for models commonly served over
// OpenAI-compatible endpoints. Callers can override or extend via the
// pricing argument to Init.
var DefaultPricing = map[string]ModelPricing{
	// OpenAI
	"gpt-4o":       {2.50, 10.00},
	"gpt-4o-mini":  {0.15, 0.60},
	"gpt-4.1":      {2.00, 8.00},
	"gpt-4.1-mini": {0.40, 1.60},
	"gpt-4.1-nano": {0.10, 0.40},
	"o3-mini":      {1.10, 4.40},

	// Anthropic
	"claude-sonnet-4-5": {3.00, 15.00},
	"claude-haiku-3-5":  {0.80, 4.00},
	"claude-opus-4":     {15.00, 75.00},

	// Gemini (OpenAI-compatible endpoint)
	"gemini-2.5-flash":      {0.15, 0.60},
	"gemini-2.5-flash-lite": {0.0, 0.0},
	"gemini-2.5-pro":        {1.25, 10.00},
}

// CostCalculator turns token counts into USD using a pricing table.
type CostCalculator struct {
	table map[string]ModelPricing
}

// NewCostCalculator returns a calculator over DefaultPricing with overrides
// layered on top. Overrides may introduce models or replace default rows.
func NewCostCalculator(overrides map[string]ModelPricing) *CostCalculator {
	table := make(map[string]ModelPricing, len(DefaultPricing)+len(overrides))
	for m, p := range DefaultPricing {
		table[m] = p
	}
	for m, p := range overrides {
		table[m] = p
	}
	return &CostCalculator{table: table}
}

// Calculate returns the USD cost for a model invocation. Models absent from
// the table cost zero rather than erroring, so metrics never block a turn.
func (c *CostCalculator) Calculate(model string, inputTokens, outputTokens int) float64 {
	p, ok := c.table[model]
	if !ok {
		return 0.0
	}
	in := float64(inputTokens) / 1_000_000 * p.InputPerMillion
	out := float64(outputTokens) / 1_000_000 * p.OutputPerMillion
	return in + out
}
