package history

import (
	"container/list"
	"sync"

	"github.com/pleszr/skyegpt/internal/apperr"
)

// defaultContextCap bounds how many conversations can hold ephemeral context
// at once. The source of this state is per-turn tool invocations; it is a
// debugging aid for the evaluation endpoints, never the record of truth, so
// least-recently-used eviction is acceptable.
const defaultContextCap = 1024

// ContextEntry stashes one tool invocation's arguments and result for a
// conversation.
type ContextEntry struct {
	ToolArgs   string `json:"tool_args"`
	ToolResult string `json:"tool_result"`
}

// contextMap is a lock-protected, size-bounded map from conversation id to
// context entries with LRU eviction at the conversation level.
type contextMap struct {
	mu      sync.Mutex
	cap     int
	order   *list.List               // conversation ids, most recent at back
	entries map[string]*list.Element // id -> element whose Value is *contextBucket
}

type contextBucket struct {
	id      string
	entries []ContextEntry
}

func newContextMap(cap int) *contextMap {
	return &contextMap{
		cap:     cap,
		order:   list.New(),
		entries: make(map[string]*list.Element),
	}
}

func (c *contextMap) append(id string, entry ContextEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[id]; ok {
		c.order.MoveToBack(el)
		bucket := el.Value.(*contextBucket)
		bucket.entries = append(bucket.entries, entry)
		return
	}

	if len(c.entries) >= c.cap {
		oldest := c.order.Front()
		if oldest != nil {
			c.order.Remove(oldest)
			delete(c.entries, oldest.Value.(*contextBucket).id)
		}
	}

	el := c.order.PushBack(&contextBucket{id: id, entries: []ContextEntry{entry}})
	c.entries[id] = el
}

func (c *contextMap) get(id string) []ContextEntry {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[id]
	if !ok {
		return nil
	}
	c.order.MoveToBack(el)
	bucket := el.Value.(*contextBucket)
	out := make([]ContextEntry, len(bucket.entries))
	copy(out, bucket.entries)
	return out
}

// AppendContext stashes a tool invocation context entry for a conversation.
func (m *Manager) AppendContext(id string, entry ContextEntry) error {
	if id == "" {
		return &apperr.StoreManagementError{Op: "append context", Err: errEmptyID}
	}
	m.contexts.append(id, entry)
	return nil
}

// Context returns a copy of the stashed context entries for a conversation,
// or nil when there are none.
func (m *Manager) Context(id string) []ContextEntry {
	return m.contexts.get(id)
}
