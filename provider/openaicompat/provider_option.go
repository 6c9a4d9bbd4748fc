package openaicompat

import "net/http"

// ProviderOption configures Provider construction. Request-level generation
// knobs live on Option; these cover the provider itself.
type ProviderOption func(*Provider)

// WithName overrides the name reported by Name(). Useful when several
// OpenAI-compatible backends run side by side and logs must tell them apart.
func WithName(name string) ProviderOption {
	return func(p *Provider) { p.name = name }
}

// WithHTTPClient swaps the transport, typically for custom timeouts or a
// proxy.
func WithHTTPClient(c *http.Client) ProviderOption {
	return func(p *Provider) { p.client = c }
}

// WithOptions fixes request options onto every call this provider makes.
// A temperature on the incoming workshop.ChatRequest still wins; BuildBody
// applies it after these.
func WithOptions(opts ...Option) ProviderOption {
	return func(p *Provider) { p.opts = append(p.opts, opts...) }
}
