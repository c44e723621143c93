package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
)

// OpenAIProgressProducer generates the short progress strings shown while an
// answer is being prepared. Failures here are non-fatal; the caller swallows
// them.
type OpenAIProgressProducer struct {
	client *openai.Client
	prompt PromptDefinition
	model  string
}

// NewOpenAIProgressProducer creates a progress text producer.
func NewOpenAIProgressProducer(apiKey, model string) (*OpenAIProgressProducer, error) {
	if apiKey == "" {
		return nil, errors.New("OpenAI API key is required")
	}
	return &OpenAIProgressProducer{
		client: openai.NewClient(apiKey),
		prompt: ProgressPrompt,
		model:  model,
	}, nil
}

// Generate returns exactly ProgressTextCount short strings for the question.
func (p *OpenAIProgressProducer) Generate(ctx context.Context, question string) ([]string, error) {
	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       p.model,
		Temperature: p.prompt.Temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: p.prompt.Instructions},
			{Role: openai.ChatMessageRoleUser, Content: p.prompt.UserPrompt(question)},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("progress text completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("progress text completion returned no choices")
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	// Models occasionally fence the JSON despite instructions.
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")

	var texts []string
	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), &texts); err != nil {
		return nil, fmt.Errorf("progress text response is not a JSON array: %w", err)
	}
	if len(texts) != ProgressTextCount {
		return nil, fmt.Errorf("expected %d progress texts, got %d", ProgressTextCount, len(texts))
	}
	return texts, nil
}
