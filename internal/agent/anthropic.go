package agent

import (
	"context"
	"errors"
	"io"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/pleszr/skyegpt/internal/apperr"
	"github.com/pleszr/skyegpt/internal/model"
	"github.com/pleszr/skyegpt/pkg/logger"
)

// AnthropicProducer is an AnswerProducer backed by the Anthropic Messages
// API. It answers from the model directly, without the retrieval tool; it
// exists as the alternative provider behind the same interface.
type AnthropicProducer struct {
	client *anthropic.Client
	prompt PromptDefinition
	model  string
	logger *logger.Logger
}

// NewAnthropicProducer creates an answer producer using the given API key
// and model.
func NewAnthropicProducer(apiKey, modelName string, log *logger.Logger) (*AnthropicProducer, error) {
	if apiKey == "" {
		return nil, errors.New("Anthropic API key is required")
	}
	return &AnthropicProducer{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
		prompt: ResponderPrompt,
		model:  modelName,
		logger: log,
	}, nil
}

// Stream starts answer generation for the question against the prior
// history snapshot.
func (p *AnthropicProducer) Stream(ctx context.Context, question string, hist *model.Conversation) (AnswerStream, error) {
	s := &anthropicStream{
		producer:       p,
		conversationID: hist.ID,
		chunks:         make(chan string, 64),
		done:           make(chan struct{}),
	}
	go s.run(ctx, question, hist.Messages)
	return s, nil
}

type anthropicStream struct {
	producer       *AnthropicProducer
	conversationID string

	chunks chan string
	done   chan struct{}
	err    error
	delta  *model.Conversation
}

func (s *anthropicStream) Recv() (string, error) {
	chunk, ok := <-s.chunks
	if !ok {
		<-s.done
		if s.err != nil {
			return "", s.err
		}
		return "", io.EOF
	}
	return chunk, nil
}

func (s *anthropicStream) Delta() *model.Conversation {
	<-s.done
	return s.delta
}

func (s *anthropicStream) run(ctx context.Context, question string, priorHistory []model.Message) {
	defer close(s.done)
	defer close(s.chunks)

	p := s.producer
	userPrompt := p.prompt.UserPrompt(question)

	stream := p.client.Messages.NewStreaming(ctx, p.newParams(userPrompt, priorHistory))

	var content string
	for stream.Next() {
		event := stream.Current()
		if event.Type == anthropic.MessageStreamEventTypeContentBlockDelta {
			delta, ok := event.Delta.(anthropic.ContentBlockDeltaEventDelta)
			if ok && delta.Type == "text_delta" && delta.Text != "" {
				content += delta.Text
				select {
				case s.chunks <- delta.Text:
				case <-ctx.Done():
					s.err = ctx.Err()
					return
				}
			}
		}
	}

	if err := stream.Err(); err != nil {
		s.err = &apperr.ResponseGenerationError{Message: "answer generation failed", Err: err}
		return
	}

	delta := model.NewConversation(s.conversationID)
	requestParts := []model.Part{}
	if len(priorHistory) == 0 {
		requestParts = append(requestParts, model.InstructionsPart(p.prompt.Instructions))
	}
	requestParts = append(requestParts, model.UserPromptPart(userPrompt))
	delta.Messages = append(delta.Messages,
		model.NewRequestMessage(requestParts...),
		model.NewResponseMessage(model.TextPart(content)),
	)
	s.delta = delta
}

// newParams builds the streaming request: the responder instructions as the
// system prompt, prior history, then the rendered user prompt.
func (p *AnthropicProducer) newParams(userPrompt string, priorHistory []model.Message) anthropic.MessageNewParams {
	messages := anthropicMessages(priorHistory)
	messages = append(messages, anthropic.MessageParam{
		Role: anthropic.F(anthropic.MessageParamRoleUser),
		Content: anthropic.F([]anthropic.ContentBlockParamUnion{
			anthropic.TextBlockParam{
				Type: anthropic.F(anthropic.TextBlockParamTypeText),
				Text: anthropic.F(userPrompt),
			},
		}),
	})

	return anthropic.MessageNewParams{
		Model:     anthropic.F(p.model),
		MaxTokens: anthropic.F(int64(4096)),
		System: anthropic.F([]anthropic.TextBlockParam{{
			Type: anthropic.F(anthropic.TextBlockParamTypeText),
			Text: anthropic.F(p.prompt.Instructions),
		}}),
		Messages: anthropic.F(messages),
	}
}

func anthropicMessages(priorHistory []model.Message) []anthropic.MessageParam {
	var messages []anthropic.MessageParam
	for _, msg := range priorHistory {
		for _, part := range msg.Parts {
			var role anthropic.MessageParamRole
			switch part.Kind {
			case model.PartKindUserPrompt:
				role = anthropic.MessageParamRoleUser
			case model.PartKindText:
				role = anthropic.MessageParamRoleAssistant
			default:
				continue
			}
			messages = append(messages, anthropic.MessageParam{
				Role: anthropic.F(role),
				Content: anthropic.F([]anthropic.ContentBlockParamUnion{
					anthropic.TextBlockParam{
						Type: anthropic.F(anthropic.TextBlockParamTypeText),
						Text: anthropic.F(part.Content),
					},
				}),
			})
		}
	}
	return messages
}
