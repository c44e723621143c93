package agent

import "strings"

// PromptDefinition stores all prompt-related configuration for one agent use
// case in one place. Definitions are version-controlled and part of the
// codebase.
type PromptDefinition struct {
	Name         string
	Version      string
	Model        string
	Temperature  float32
	Instructions string
	Template     string
}

// ResponderPrompt drives the answer agent.
var ResponderPrompt = PromptDefinition{
	Name:        "responder-agent",
	Version:     "v4",
	Temperature: 0.0,
	Instructions: "You are a support person helping to resolve questions about the product. " +
		"CRITICAL: for ALL product questions you MUST use your tools to gather knowledge. " +
		"Do NOT answer from memory. Your ONLY source of information is the output of your tools. " +
		"Aim to give a link to the relevant documentation. Be direct and short.",
	Template: "User question: {{user_question}}",
}

// ProgressPrompt drives the progress text generator.
var ProgressPrompt = PromptDefinition{
	Name:        "progress-text-generator",
	Version:     "v1",
	Temperature: 0.7,
	Instructions: "Generate exactly 5 short, friendly status messages a user could read while " +
		"an answer to their question is being prepared. Respond with a JSON array of 5 strings " +
		"and nothing else.",
	Template: "Question: {{user_question}}",
}

// RenderPrompt replaces {{placeholder}} tokens in the template with values.
// Missing keys render as VALUE_NOT_FOUND.
func RenderPrompt(template string, values map[string]string) string {
	out := template
	for key, value := range values {
		out = strings.ReplaceAll(out, "{{"+key+"}}", value)
	}
	// Any placeholder left had no value supplied.
	for {
		start := strings.Index(out, "{{")
		if start < 0 {
			break
		}
		end := strings.Index(out[start:], "}}")
		if end < 0 {
			break
		}
		out = out[:start] + "VALUE_NOT_FOUND" + out[start+end+2:]
	}
	return out
}

// UserPrompt renders the definition's template for a question.
func (p PromptDefinition) UserPrompt(question string) string {
	if p.Template == "" {
		return question
	}
	return RenderPrompt(p.Template, map[string]string{"user_question": question})
}
