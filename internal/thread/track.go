package thread

// Tracker assigns tool session indices for a single turn.
//
// A session spans a tool_call and its eventual tool_result. At most one
// session is open at any instant. The index of a new session is the count
// of prior tool_call thinking items, read exactly once when the session
// opens; repeated events for the same tool call and any thinking chunks
// produced while the session is open reuse the already-assigned index
// without recomputing the count. Recomputing on a later branch is what
// used to renumber sessions mid-call.
//
// Tracker is per-turn mutable state. It is owned by the in-flight Turn
// and must not be shared across turns.
type Tracker struct {
	toolCalls  int
	open       bool
	openIndex  int
	openToolID string
}

// NewTracker seeds the tool-call count from thinking items already
// recorded in the turn.
func NewTracker(prior []ThinkingItem) *Tracker {
	t := &Tracker{}
	for _, item := range prior {
		if item.Type == ItemToolCall {
			t.toolCalls++
		}
	}
	return t
}

// OnToolCall returns the session index for the given tool call, opening a
// new session when needed. Subsequent events carrying the same tool ID
// (argument streaming, completion) reuse the open session's index.
func (t *Tracker) OnToolCall(toolID string) int {
	if t.open && toolID == t.openToolID {
		return t.openIndex
	}
	// A new call while another session is open closes the old one
	// unresolved; vendors never interleave two live tool calls.
	index := t.toolCalls
	t.toolCalls++
	t.open = true
	t.openIndex = index
	t.openToolID = toolID
	return index
}

// OnToolResult closes the open session and returns its index. A result
// with no matching open session reports ok=false and changes nothing.
func (t *Tracker) OnToolResult(toolID string) (index int, ok bool) {
	if !t.open {
		return 0, false
	}
	if toolID != "" && toolID != t.openToolID {
		return 0, false
	}
	t.open = false
	return t.openIndex, true
}

// Open returns the index of the currently open session, or nil. Thinking
// and thinking_result chunks produced while a session is open are tagged
// with this index.
func (t *Tracker) Open() *int {
	if !t.open {
		return nil
	}
	index := t.openIndex
	return &index
}

// Close force-closes any open session. Called on turn completion, error,
// or cancellation; the session ends unresolved.
func (t *Tracker) Close() {
	t.open = false
}

// ToolCalls reports how many sessions have been opened in this turn.
func (t *Tracker) ToolCalls() int {
	return t.toolCalls
}
