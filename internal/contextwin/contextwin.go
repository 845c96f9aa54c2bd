// ABOUTME: Pure merge/dedup/trim of message history into a bounded context window.
// ABOUTME: Deterministic by construction; all trimming drops older entries first.

package contextwin

import (
	"encoding/json"
	"sort"

	"github.com/2389/agentchat/internal/store"
)

// Defaults for the context budget.
const (
	// DefaultTokenCeiling is the estimated-token ceiling before the older
	// half of the context is dropped.
	DefaultTokenCeiling = 2000

	// DefaultMaxMessages caps how many messages are sent per request.
	DefaultMaxMessages = 10

	// charsPerToken is the serialization-size approximation: 1 token ≈ 4 chars.
	charsPerToken = 4
)

// Budget bounds the prepared context. Zero fields take the package defaults.
type Budget struct {
	TokenCeiling int
	MaxMessages  int
}

func (b Budget) withDefaults() Budget {
	if b.TokenCeiling == 0 {
		b.TokenCeiling = DefaultTokenCeiling
	}
	if b.MaxMessages == 0 {
		b.MaxMessages = DefaultMaxMessages
	}
	return b
}

// Prepare merges global history with an agent's local memory and returns the
// bounded, chronologically ordered context to send with a completion request.
//
// The pipeline is fixed: dedup by (role, content) keeping the latest
// timestamp, sort ascending, halve if the token estimate exceeds the ceiling,
// then keep at most MaxMessages of the most recent entries.
func Prepare(global, memory []store.Message, budget Budget) []store.Message {
	budget = budget.withDefaults()

	merged := make([]store.Message, 0, len(global)+len(memory))
	merged = append(merged, global...)
	merged = append(merged, memory...)

	deduped := dedupe(merged)

	sort.SliceStable(deduped, func(i, j int) bool {
		return deduped[i].Timestamp.Before(deduped[j].Timestamp)
	})

	if estimateTokens(deduped) > budget.TokenCeiling {
		// Hard cutoff: keep the most recent half, chronological order intact.
		deduped = deduped[len(deduped)-len(deduped)/2:]
	}

	if len(deduped) > budget.MaxMessages {
		deduped = deduped[len(deduped)-budget.MaxMessages:]
	}
	return deduped
}

// dedupe collapses messages sharing (role, content), keeping the instance
// with the latest timestamp.
func dedupe(msgs []store.Message) []store.Message {
	type key struct {
		role    string
		content string
	}

	latest := make(map[key]store.Message, len(msgs))
	order := make([]key, 0, len(msgs))
	for _, msg := range msgs {
		k := key{msg.Role, msg.Content}
		existing, seen := latest[k]
		if !seen {
			order = append(order, k)
			latest[k] = msg
			continue
		}
		if msg.Timestamp.After(existing.Timestamp) {
			latest[k] = msg
		}
	}

	out := make([]store.Message, 0, len(order))
	for _, k := range order {
		out = append(out, latest[k])
	}
	return out
}

// contextEntry is the wire-shaped view used only for size estimation.
type contextEntry struct {
	Role      string `json:"role"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
}

// estimateTokens serializes the context and estimates tokens at 4 chars each.
func estimateTokens(msgs []store.Message) int {
	entries := make([]contextEntry, len(msgs))
	for i, msg := range msgs {
		entries[i] = contextEntry{
			Role:      msg.Role,
			Content:   msg.Content,
			Timestamp: msg.Timestamp.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
		}
	}
	data, err := json.Marshal(entries)
	if err != nil {
		// Marshal of plain strings cannot fail; treat as over budget anyway.
		return int(^uint(0) >> 1)
	}
	return len(data) / charsPerToken
}
