package workshop

import (
	"fmt"
	"strings"
)

// AgentProfile describes a specialist agent: a distinct system prompt invoked
// once before the main loop to seed context.
type AgentProfile struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	SystemPrompt string   `json:"system_prompt"`
	ToolNames    []string `json:"tool_names,omitempty"`
}

// RouteDecision is a positive routing outcome: the selected profile and the
// rule that matched.
type RouteDecision struct {
	Agent  AgentProfile
	Reason string
}

// RouterFunc inspects a user request and selects a specialist agent, or
// returns nil when no rule matches.
type RouterFunc func(requestText string) *RouteDecision

// Built-in specialist profiles.
var (
	ResearchAgent = AgentProfile{
		ID:   "research",
		Name: "Research Assistant",
		SystemPrompt: "You are a research assistant. Produce a structured briefing: " +
			"key findings first, then supporting detail, then open questions. " +
			"Cite the source of every claim you make. Be precise about uncertainty.",
		ToolNames: []string{"web_search", "web_fetch"},
	}
	EmailWriterAgent = AgentProfile{
		ID:   "email_writer",
		Name: "Email Writer",
		SystemPrompt: "You are an email writing assistant. Draft clear, courteous, " +
			"well-structured email text for the user's situation. Provide a subject " +
			"line when drafting a new email. Keep the tone professional unless asked otherwise.",
	}
)

var researchKeywords = []string{
	"research",
	"deep dive",
	"investigate",
	"find sources",
	"source list",
	"literature review",
	"background on",
}

var emailVerbs = []string{"draft", "reply", "respond", "compose", "write"}

var emailPhrases = []string{
	"draft a reply",
	"write a reply",
	"reply to",
	"write an email",
	"compose an email",
}

// DefaultRouter is the rule-based intent detector. It inspects the lowercased
// request text; the first matching rule wins. Research keywords are checked
// before email rules. Returns the full profile so callers need no lookup.
func DefaultRouter(requestText string) *RouteDecision {
	text := strings.ToLower(requestText)

	for _, kw := range researchKeywords {
		if strings.Contains(text, kw) {
			return &RouteDecision{Agent: ResearchAgent, Reason: fmt.Sprintf("matched %q", kw)}
		}
	}

	if strings.Contains(text, "email") || strings.Contains(text, "e-mail") {
		for _, verb := range emailVerbs {
			if strings.Contains(text, verb) {
				return &RouteDecision{Agent: EmailWriterAgent, Reason: fmt.Sprintf("matched \"email\" with %q", verb)}
			}
		}
	}
	for _, phrase := range emailPhrases {
		if strings.Contains(text, phrase) {
			return &RouteDecision{Agent: EmailWriterAgent, Reason: fmt.Sprintf("matched %q", phrase)}
		}
	}

	return nil
}
