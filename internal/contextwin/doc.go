// Package contextwin bounds the message history sent with a completion
// request.
//
// Prepare merges the conversation's authoritative history with an agent's
// short private memory, collapses duplicate (role, content) pairs keeping the
// latest timestamp, sorts chronologically, and trims the result to a token
// estimate ceiling and a maximum message count. It is a pure function:
// identical inputs always produce identical output.
//
// Token counts are estimated from the serialized context at roughly four
// characters per token. When the estimate exceeds the ceiling, the older half
// of the context is dropped outright; there is no summarization.
package contextwin
