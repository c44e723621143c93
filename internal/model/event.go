package model

// StreamEventType is the type of an event emitted to streaming clients.
type StreamEventType string

const (
	// EventProgressText carries a JSON array of short progress strings shown
	// while the answer is being generated.
	EventProgressText StreamEventType = "progress_text"
	// EventAnswerChunk carries one raw text fragment of the answer.
	EventAnswerChunk StreamEventType = "answer_chunk"
	// EventError carries a terminal error payload {"detail": "..."}.
	EventError StreamEventType = "error"
)

// StreamEvent is the unit the stream multiplexer emits: a typed payload
// destined for the SSE writer.
type StreamEvent struct {
	Type StreamEventType
	Data string
}
