package agent

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sort"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/pleszr/skyegpt/internal/apperr"
	"github.com/pleszr/skyegpt/internal/history"
	"github.com/pleszr/skyegpt/internal/model"
	"github.com/pleszr/skyegpt/internal/retriever"
	"github.com/pleszr/skyegpt/pkg/logger"
)

// SearchToolName is the function tool the answer agent may invoke to ground
// its answer in the documentation index.
const SearchToolName = "search_documentation"

// maxToolRounds caps how many tool-call rounds one turn may run.
const maxToolRounds = 5

// OpenAIProducer is an AnswerProducer backed by OpenAI chat completions with
// a retrieval function tool.
type OpenAIProducer struct {
	client    *openai.Client
	retriever retriever.Retriever
	history   *history.Manager
	prompt    PromptDefinition
	model     string
	logger    *logger.Logger
}

// NewOpenAIProducer creates an answer producer using the given API key and
// model. Tool results are stashed in the history manager's ephemeral context
// map for the evaluation endpoints.
func NewOpenAIProducer(
	apiKey, model string,
	ret retriever.Retriever,
	hist *history.Manager,
	log *logger.Logger,
) (*OpenAIProducer, error) {
	if apiKey == "" {
		return nil, errors.New("OpenAI API key is required")
	}
	return &OpenAIProducer{
		client:    openai.NewClient(apiKey),
		retriever: ret,
		history:   hist,
		prompt:    ResponderPrompt,
		model:     model,
		logger:    log,
	}, nil
}

// Stream starts answer generation for the question against the prior
// history snapshot. Chunks arrive via the returned stream's Recv.
func (p *OpenAIProducer) Stream(ctx context.Context, question string, hist *model.Conversation) (AnswerStream, error) {
	s := &openaiStream{
		producer:       p,
		conversationID: hist.ID,
		chunks:         make(chan string, 64),
		done:           make(chan struct{}),
	}
	go s.run(ctx, question, hist.Messages)
	return s, nil
}

// openaiStream runs the tool-call loop in a goroutine and hands text deltas
// to Recv through a channel.
type openaiStream struct {
	producer       *OpenAIProducer
	conversationID string

	chunks chan string
	done   chan struct{}
	err    error
	delta  *model.Conversation
}

func (s *openaiStream) Recv() (string, error) {
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

func (s *openaiStream) Delta() *model.Conversation {
	<-s.done
	return s.delta
}

func (s *openaiStream) run(ctx context.Context, question string, priorHistory []model.Message) {
	defer close(s.done)
	defer close(s.chunks)

	p := s.producer
	userPrompt := p.prompt.UserPrompt(question)

	delta := model.NewConversation(s.conversationID)
	requestParts := []model.Part{}
	if len(priorHistory) == 0 {
		requestParts = append(requestParts, model.InstructionsPart(p.prompt.Instructions))
	}
	requestParts = append(requestParts, model.UserPromptPart(userPrompt))
	delta.Messages = append(delta.Messages, model.NewRequestMessage(requestParts...))

	messages := providerMessages(p.prompt.Instructions, priorHistory)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: userPrompt,
	})

	var answer string
	for round := 0; ; round++ {
		if round >= maxToolRounds {
			s.err = &apperr.ResponseGenerationError{Message: "tool round limit exceeded"}
			return
		}

		text, toolCalls, err := s.streamRound(ctx, messages)
		if err != nil {
			s.err = classifyProviderError(err)
			return
		}
		answer += text

		if len(toolCalls) == 0 {
			break
		}

		assistantMsg := openai.ChatCompletionMessage{
			Role:      openai.ChatMessageRoleAssistant,
			ToolCalls: toolCalls,
		}
		messages = append(messages, assistantMsg)

		var callParts, returnParts []model.Part
		for _, call := range toolCalls {
			callParts = append(callParts, model.ToolCallPart(call.Function.Name, call.Function.Arguments))

			result, err := s.invokeTool(ctx, call)
			if err != nil {
				s.err = classifyProviderError(err)
				return
			}
			returnParts = append(returnParts, model.ToolReturnPart(call.Function.Name, result))

			messages = append(messages, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				ToolCallID: call.ID,
				Content:    result,
			})

			if s.conversationID != "" {
				p.history.AppendContext(s.conversationID, history.ContextEntry{
					ToolArgs:   call.Function.Arguments,
					ToolResult: result,
				})
			}
		}
		delta.Messages = append(delta.Messages, model.NewResponseMessage(callParts...))
		delta.Messages = append(delta.Messages, model.NewRequestMessage(returnParts...))
	}

	delta.Messages = append(delta.Messages, model.NewResponseMessage(model.TextPart(answer)))
	s.delta = delta
}

// streamRound runs one streaming completion, forwarding text deltas and
// accumulating tool call deltas. Returns the round's text and any tool calls
// requested.
func (s *openaiStream) streamRound(ctx context.Context, messages []openai.ChatCompletionMessage) (string, []openai.ToolCall, error) {
	p := s.producer
	stream, err := p.client.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model:       p.model,
		Messages:    messages,
		Temperature: p.prompt.Temperature,
		Stream:      true,
		Tools: []openai.Tool{{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        SearchToolName,
				Description: "Search the documentation. It is a semantic vector database.",
				Parameters: json.RawMessage(`{
					"type": "object",
					"properties": {
						"query": {
							"type": "string",
							"description": "the question to find the relevant information for"
						}
					},
					"required": ["query"]
				}`),
			},
		}},
	})
	if err != nil {
		return "", nil, err
	}
	defer stream.Close()

	var text string
	pending := map[int]*openai.ToolCall{}

	for {
		response, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", nil, err
		}
		if len(response.Choices) == 0 {
			continue
		}

		choice := response.Choices[0]
		if choice.Delta.Content != "" {
			text += choice.Delta.Content
			select {
			case s.chunks <- choice.Delta.Content:
			case <-ctx.Done():
				return "", nil, ctx.Err()
			}
		}
		for _, tc := range choice.Delta.ToolCalls {
			index := 0
			if tc.Index != nil {
				index = *tc.Index
			}
			call, ok := pending[index]
			if !ok {
				call = &openai.ToolCall{Type: openai.ToolTypeFunction}
				pending[index] = call
			}
			if tc.ID != "" {
				call.ID = tc.ID
			}
			if tc.Function.Name != "" {
				call.Function.Name = tc.Function.Name
			}
			call.Function.Arguments += tc.Function.Arguments
		}
	}

	indexes := make([]int, 0, len(pending))
	for i := range pending {
		indexes = append(indexes, i)
	}
	sort.Ints(indexes)

	var toolCalls []openai.ToolCall
	for _, i := range indexes {
		toolCalls = append(toolCalls, *pending[i])
	}
	return text, toolCalls, nil
}

func (s *openaiStream) invokeTool(ctx context.Context, call openai.ToolCall) (string, error) {
	p := s.producer
	if call.Function.Name != SearchToolName {
		return "", &apperr.ResponseGenerationError{Message: "unknown tool " + call.Function.Name}
	}

	var args struct {
		Query string `json:"query"`
	}
	if err := json.Unmarshal([]byte(call.Function.Arguments), &args); err != nil {
		return "", &apperr.ResponseGenerationError{Message: "invalid tool arguments", Err: err}
	}

	p.logger.Info("running retrieval tool", zap.String("query", args.Query))
	return p.retriever.Search(ctx, args.Query)
}

// providerMessages converts stored history into provider chat messages. Tool
// parts are skipped: their payloads are archived after the turn and provider
// tool protocols require ids the store does not keep.
func providerMessages(instructions string, priorHistory []model.Message) []openai.ChatCompletionMessage {
	messages := []openai.ChatCompletionMessage{{
		Role:    openai.ChatMessageRoleSystem,
		Content: instructions,
	}}
	for _, msg := range priorHistory {
		for _, part := range msg.Parts {
			switch part.Kind {
			case model.PartKindUserPrompt:
				messages = append(messages, openai.ChatCompletionMessage{
					Role:    openai.ChatMessageRoleUser,
					Content: part.Content,
				})
			case model.PartKindText:
				messages = append(messages, openai.ChatCompletionMessage{
					Role:    openai.ChatMessageRoleAssistant,
					Content: part.Content,
				})
			case model.PartKindInstructions, model.PartKindToolCall, model.PartKindToolReturn:
			}
		}
	}
	return messages
}

// classifyProviderError maps provider failures onto the error taxonomy.
func classifyProviderError(err error) error {
	var usage *apperr.UsageLimitExceededError
	if errors.As(err, &usage) {
		return err
	}
	var gen *apperr.ResponseGenerationError
	if errors.As(err, &gen) {
		return err
	}
	var collection *apperr.CollectionNotFoundError
	if errors.As(err, &collection) {
		return err
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode == http.StatusTooManyRequests {
		return &apperr.UsageLimitExceededError{Message: apiErr.Message}
	}
	return &apperr.ResponseGenerationError{Message: "answer generation failed", Err: err}
}
