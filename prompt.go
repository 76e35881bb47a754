package surveycoder

import (
	"fmt"
	"strings"

	"github.com/ferro-labs/survey-coder/generation"
	"github.com/ferro-labs/survey-coder/providers"
)

// defaultSystemPrompts are used when a request carries no system prompt.
var defaultSystemPrompts = map[generation.TaskKind]string{
	generation.TaskClassification: "You classify free-text survey answers. Reply with the single best category label and nothing else.",
	generation.TaskTranslation:    "You translate free-text survey answers. Reply with the translation only.",
	generation.TaskExtraction:     "You extract the key entities named in a free-text survey answer. Reply with a comma-separated list and nothing else.",
	generation.TaskCoding: "You normalise free-text survey answers that name brands or products. " +
		"Correct misspellings and reply with the canonical brand or product name only.",
	generation.TaskValidation: "You check whether a name is a real brand or product. Reply YES or NO.",
}

// DefaultSystemPrompt returns the built-in system prompt for task, or "" for
// task kinds without one.
func DefaultSystemPrompt(task generation.TaskKind) string {
	return defaultSystemPrompts[task]
}

// answerTokens bounds provider output. Survey codes are short.
const answerTokens = 128

func (r *run) providerRequest() providers.Request {
	system := r.req.SystemPrompt
	if system == "" {
		system = DefaultSystemPrompt(r.req.TaskKind)
	}
	temperature := 0.0
	return providers.Request{
		SystemPrompt:    system,
		Prompt:          buildPrompt(r.prompt, r.snippets),
		Temperature:     &temperature,
		MaxOutputTokens: answerTokens,
	}
}

// buildPrompt renders the answer followed by numbered context snippets.
func buildPrompt(answer string, snippets []generation.Snippet) string {
	if len(snippets) == 0 {
		return answer
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Survey answer: %s\n\nWeb search results:\n", answer)
	for i, s := range snippets {
		fmt.Fprintf(&b, "%d. %s", i+1, s.Title)
		if s.Excerpt != "" {
			fmt.Fprintf(&b, ": %s", s.Excerpt)
		}
		if s.SourceRef != "" {
			fmt.Fprintf(&b, " (%s)", s.SourceRef)
		}
		b.WriteByte('\n')
	}
	return b.String()
}
