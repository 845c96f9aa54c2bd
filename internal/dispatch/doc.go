// Package dispatch turns a user message plus bounded context into a
// validated model reply under retry, timeout, and backoff policy.
//
// # State machine
//
// Each Process call runs an explicit state machine:
//
//	Idle → Sending → (Success | Retrying | Failed)
//
// Sending builds the completion envelope (system prompt, ordered context,
// user message) and invokes the transport under a per-attempt deadline.
// Transport failures and invalid replies move through Retrying — with a
// linear backoff of attempt × base delay — until the retry ceiling, then
// Failed. A deadline expiry moves straight to Failed with a Timeout
// classification.
//
// # Errors
//
// Process never returns a raw transport error: terminal failures are always
// a *dispatch.Error carrying the classification kind, the attempt count, and
// the deepest human-readable message found in the failure chain.
//
// The dispatcher is stateless between calls and safe for concurrent use
// across conversations; the chat service prevents concurrent dispatches for
// the same conversation.
package dispatch
