package workshop

import (
	"context"
	"strings"
)

// specialistTemperature keeps specialist output stable across retries of the
// same request without making it fully deterministic.
const specialistTemperature = 0.2

// RunSpecialist invokes the chat provider once with the profile's system
// prompt and the user request. Tools are never offered. Returns the trimmed
// response text.
func RunSpecialist(ctx context.Context, p Provider, profile AgentProfile, request string) (string, error) {
	temp := specialistTemperature
	req := ChatRequest{
		Messages: []ChatMessage{
			SystemMessage(profile.SystemPrompt),
			UserMessage(request),
		},
		ToolChoice:  ToolChoiceNone,
		Temperature: &temp,
	}
	resp, err := p.Chat(ctx, req)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Content), nil
}

// specialistNote builds the system-role note the main loop injects after a
// specialist runs.
func specialistNote(name, text string) string {
	return "Specialist agent (" + name + ") output:\n" + text + "\nUse this as draft guidance and respond to the user."
}
