package model

import (
	"encoding/json"
	"fmt"
)

// MessageKind distinguishes messages sent to the model from messages
// produced by it.
type MessageKind string

const (
	MessageKindRequest  MessageKind = "request"
	MessageKindResponse MessageKind = "response"
)

// PartKind is the discriminator for message parts.
type PartKind string

const (
	PartKindInstructions PartKind = "instructions"
	PartKindUserPrompt   PartKind = "user_prompt"
	PartKindText         PartKind = "text"
	PartKindToolCall     PartKind = "tool_call"
	PartKindToolReturn   PartKind = "tool_return"
)

// ContentArchivedMessage replaces tool return payloads once a turn has been
// answered, so stored conversations stay small.
const ContentArchivedMessage = "content archived for space saving purposes"

// Part is one piece of a message. Exactly one shape per kind:
//
//	instructions  Content holds system-level instructions
//	user_prompt   Content holds the rendered user prompt
//	text          Content holds model-generated text
//	tool_call     ToolName + Arguments (serialized JSON)
//	tool_return   ToolName + Content (tool output, archived after use)
type Part struct {
	Kind      PartKind `json:"kind"`
	Content   string   `json:"content,omitempty"`
	ToolName  string   `json:"tool_name,omitempty"`
	Arguments string   `json:"arguments,omitempty"`
}

// Message is a single entry in a conversation's history.
type Message struct {
	Kind  MessageKind `json:"kind"`
	Parts []Part      `json:"parts"`
}

// NewRequestMessage builds a request message from the given parts.
func NewRequestMessage(parts ...Part) Message {
	return Message{Kind: MessageKindRequest, Parts: parts}
}

// NewResponseMessage builds a response message from the given parts.
func NewResponseMessage(parts ...Part) Message {
	return Message{Kind: MessageKindResponse, Parts: parts}
}

// InstructionsPart returns an instructions part.
func InstructionsPart(content string) Part {
	return Part{Kind: PartKindInstructions, Content: content}
}

// UserPromptPart returns a user prompt part.
func UserPromptPart(content string) Part {
	return Part{Kind: PartKindUserPrompt, Content: content}
}

// TextPart returns a model text part.
func TextPart(content string) Part {
	return Part{Kind: PartKindText, Content: content}
}

// ToolCallPart returns a tool call part with serialized arguments.
func ToolCallPart(toolName, arguments string) Part {
	return Part{Kind: PartKindToolCall, ToolName: toolName, Arguments: arguments}
}

// ToolReturnPart returns a tool return part carrying the tool output.
func ToolReturnPart(toolName, content string) Part {
	return Part{Kind: PartKindToolReturn, ToolName: toolName, Content: content}
}

// Archive replaces tool return content with the archival placeholder. Tool
// name and arguments are preserved for audit. Calling Archive on an already
// archived message is a no-op.
func (m *Message) Archive() {
	for i := range m.Parts {
		switch m.Parts[i].Kind {
		case PartKindToolReturn:
			m.Parts[i].Content = ContentArchivedMessage
		case PartKindInstructions, PartKindUserPrompt, PartKindText, PartKindToolCall:
		}
	}
}

// Text concatenates the content of all text parts.
func (m Message) Text() string {
	var out string
	for _, p := range m.Parts {
		if p.Kind == PartKindText {
			out += p.Content
		}
	}
	return out
}

// UnmarshalJSON validates the kind discriminators while decoding.
func (m *Message) UnmarshalJSON(data []byte) error {
	type alias Message
	var raw alias
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch raw.Kind {
	case MessageKindRequest, MessageKindResponse:
	default:
		return fmt.Errorf("unknown message kind %q", raw.Kind)
	}
	for _, p := range raw.Parts {
		switch p.Kind {
		case PartKindInstructions, PartKindUserPrompt, PartKindText, PartKindToolCall, PartKindToolReturn:
		default:
			return fmt.Errorf("unknown part kind %q", p.Kind)
		}
	}
	*m = Message(raw)
	return nil
}
