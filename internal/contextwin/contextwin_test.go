// ABOUTME: Tests for context window preparation and the agent memory ring.
// ABOUTME: Covers dedup, ordering, budget trimming, and determinism.

package contextwin

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/agentchat/internal/store"
)

func msg(role, content string, ts time.Time) store.Message {
	return store.Message{Role: role, Content: content, Timestamp: ts}
}

func TestPrepare_DedupKeepsLatestTimestamp(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	global := []store.Message{
		msg(store.RoleUser, "hello", base),
		msg(store.RoleAssistant, "hi there", base.Add(time.Second)),
	}
	memory := []store.Message{
		// Same (role, content) as the global entry, later timestamp.
		msg(store.RoleAssistant, "hi there", base.Add(time.Minute)),
	}

	got := Prepare(global, memory, Budget{})
	require.Len(t, got, 2)
	assert.Equal(t, "hello", got[0].Content)
	assert.Equal(t, "hi there", got[1].Content)
	assert.Equal(t, base.Add(time.Minute), got[1].Timestamp, "duplicate keeps the later instance")
}

func TestPrepare_SortsChronologically(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	global := []store.Message{
		msg(store.RoleAssistant, "second", base.Add(2*time.Second)),
		msg(store.RoleUser, "first", base),
		msg(store.RoleUser, "third", base.Add(4*time.Second)),
	}

	got := Prepare(global, nil, Budget{})
	require.Len(t, got, 3)
	for i := 1; i < len(got); i++ {
		assert.False(t, got[i].Timestamp.Before(got[i-1].Timestamp),
			"messages out of order at %d", i)
	}
	assert.Equal(t, "first", got[0].Content)
}

func TestPrepare_CapsMessageCount(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	var global []store.Message
	for i := 0; i < 25; i++ {
		global = append(global, msg(store.RoleUser, fmt.Sprintf("m%d", i), base.Add(time.Duration(i)*time.Second)))
	}

	got := Prepare(global, nil, Budget{})
	require.Len(t, got, DefaultMaxMessages)
	assert.Equal(t, "m15", got[0].Content, "keeps the most recent entries")
	assert.Equal(t, "m24", got[len(got)-1].Content)
}

func TestPrepare_BudgetTrimDropsOlderHalf(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	// 200 distinct messages, each large enough that the serialized estimate
	// blows well past the ceiling.
	var global []store.Message
	for i := 0; i < 200; i++ {
		content := fmt.Sprintf("m%03d %s", i, strings.Repeat("x", 100))
		global = append(global, msg(store.RoleUser, content, base.Add(time.Duration(i)*time.Second)))
	}

	got := Prepare(global, nil, Budget{})
	require.LessOrEqual(t, len(got), DefaultMaxMessages)

	// Everything kept must come from the most recent half of the sorted set.
	for _, m := range got {
		assert.True(t, !m.Timestamp.Before(base.Add(100*time.Second)),
			"kept message %q from the older half", m.Content[:5])
	}
}

func TestPrepare_HalvingUsesFloorDivision(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	var global []store.Message
	for i := 0; i < 5; i++ {
		content := fmt.Sprintf("m%d %s", i, strings.Repeat("y", 2000))
		global = append(global, msg(store.RoleUser, content, base.Add(time.Duration(i)*time.Second)))
	}

	got := Prepare(global, nil, Budget{})
	// floor(5/2) = 2 survive the halving, below the count cap.
	require.Len(t, got, 2)
	assert.Contains(t, got[0].Content, "m3")
	assert.Contains(t, got[1].Content, "m4")
}

func TestPrepare_UnderBudgetIsUntouched(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	global := []store.Message{
		msg(store.RoleUser, "short", base),
		msg(store.RoleAssistant, "also short", base.Add(time.Second)),
	}

	got := Prepare(global, nil, Budget{})
	require.Len(t, got, 2)
}

func TestPrepare_Deterministic(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	var global, memory []store.Message
	for i := 0; i < 40; i++ {
		global = append(global, msg(store.RoleUser, fmt.Sprintf("g%d", i), base.Add(time.Duration(i)*time.Second)))
		memory = append(memory, msg(store.RoleAssistant, fmt.Sprintf("a%d", i), base.Add(time.Duration(i)*time.Second+500*time.Millisecond)))
	}

	first := Prepare(global, memory, Budget{})
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, Prepare(global, memory, Budget{}))
	}
}

func TestPrepare_EmptyInputs(t *testing.T) {
	assert.Empty(t, Prepare(nil, nil, Budget{}))
}

func TestMemory_EvictsOldest(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	mem := NewMemory(3)
	for i := 0; i < 5; i++ {
		mem.Append(msg(store.RoleAssistant, fmt.Sprintf("r%d", i), base.Add(time.Duration(i)*time.Second)))
	}

	got := mem.Messages()
	require.Len(t, got, 3)
	assert.Equal(t, "r2", got[0].Content)
	assert.Equal(t, "r4", got[2].Content)

	mem.Clear()
	assert.Empty(t, mem.Messages())
}

func TestMemory_MessagesReturnsCopy(t *testing.T) {
	mem := NewMemory(0)
	mem.Append(msg(store.RoleAssistant, "reply", time.Now()))

	got := mem.Messages()
	got[0].Content = "mutated"
	assert.Equal(t, "reply", mem.Messages()[0].Content)
}
