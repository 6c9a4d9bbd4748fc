package openaicompat

// Option mutates the outgoing wire request. Options set at provider
// construction (WithOptions) apply to every call; the agent's request
// fields still win where both set the same knob.
type Option func(*ChatRequest)

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) Option {
	return func(r *ChatRequest) { r.Temperature = &t }
}

// WithTopP sets nucleus sampling top-p.
func WithTopP(p float64) Option {
	return func(r *ChatRequest) { r.TopP = &p }
}

// WithMaxTokens caps output tokens per completion.
func WithMaxTokens(n int) Option {
	return func(r *ChatRequest) { r.MaxTokens = n }
}

// WithStop adds stop sequences.
func WithStop(s ...string) Option {
	return func(r *ChatRequest) { r.Stop = s }
}

// WithSeed requests deterministic sampling where the backend supports it.
func WithSeed(s int) Option {
	return func(r *ChatRequest) { r.Seed = &s }
}
