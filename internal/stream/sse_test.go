package stream

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pleszr/skyegpt/internal/model"
)

func TestFormatEvent(t *testing.T) {
	tests := []struct {
		name  string
		event model.StreamEvent
		want  string
	}{
		{
			name:  "answer chunk",
			event: model.StreamEvent{Type: model.EventAnswerChunk, Data: "hello"},
			want:  "event: answer_chunk\ndata: hello\n\n",
		},
		{
			name:  "embedded newlines are escaped",
			event: model.StreamEvent{Type: model.EventAnswerChunk, Data: "line one\nline two"},
			want:  "event: answer_chunk\ndata: line one\\nline two\n\n",
		},
		{
			name:  "progress text payload",
			event: model.StreamEvent{Type: model.EventProgressText, Data: `["a","b"]`},
			want:  "event: progress_text\ndata: [\"a\",\"b\"]\n\n",
		},
		{
			name:  "error payload",
			event: model.StreamEvent{Type: model.EventError, Data: `{"detail":"Error: Internal error"}`},
			want:  "event: error\ndata: {\"detail\":\"Error: Internal error\"}\n\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatEvent(tt.event))
		})
	}
}

func TestWriteHeaders(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteHeaders(rec)

	assert.Equal(t, MediaTypeSSE, rec.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache", rec.Header().Get("Cache-Control"))
	assert.Equal(t, "no", rec.Header().Get("X-Accel-Buffering"))
}
