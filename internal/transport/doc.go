// Package transport talks to the remote chat-completion service.
//
// # Overview
//
// The Transport interface is the only seam the dispatch layer sees:
//
//	type Transport interface {
//		CreateChatCompletion(ctx context.Context, messages []ChatMessage) (*Completion, error)
//	}
//
// Client implements it against OpenAI-style HTTP endpoints. Two modes are
// supported, selected by config:
//
//   - "openai": POST {base_url}/chat/completions with a bearer API key
//   - "custom": POST {custom_url}{deployment}/chat/completions?api-version=N
//     with client_id/client_secret headers (enterprise proxy deployments)
//
// Requests carry only (role, content) pairs; timestamps and agent tags never
// reach the wire.
//
// # Errors
//
// Non-2xx responses produce *APIError carrying the HTTP status and the
// deepest error message the response body offered. Context cancellation and
// deadline expiry propagate unchanged so callers can classify timeouts.
package transport
