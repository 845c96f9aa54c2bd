// ABOUTME: Per-agent memory ring holding the last few exchanges.
// ABOUTME: Feeds the agent-local side of Prepare's merge.

package contextwin

import "github.com/2389/agentchat/internal/store"

// DefaultMemoryLength is how many entries an agent memory retains.
const DefaultMemoryLength = 10

// Memory is a bounded ring of an agent's recent exchanges. Oldest entries
// are evicted first. Not safe for concurrent use; the chat service serializes
// access.
type Memory struct {
	max  int
	msgs []store.Message
}

// NewMemory creates a memory ring. A max of 0 takes DefaultMemoryLength.
func NewMemory(max int) *Memory {
	if max == 0 {
		max = DefaultMemoryLength
	}
	return &Memory{max: max}
}

// Append records a message, evicting the oldest entry when full.
func (m *Memory) Append(msg store.Message) {
	m.msgs = append(m.msgs, msg)
	if len(m.msgs) > m.max {
		m.msgs = m.msgs[1:]
	}
}

// Messages returns a copy of the retained entries, oldest first.
func (m *Memory) Messages() []store.Message {
	out := make([]store.Message, len(m.msgs))
	copy(out, m.msgs)
	return out
}

// Clear drops all retained entries.
func (m *Memory) Clear() {
	m.msgs = nil
}
