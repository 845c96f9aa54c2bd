// ABOUTME: Transport interface, wire types, and error shapes for completions.
// ABOUTME: Dispatch depends on this seam; HTTP details live in the Client.

package transport

import (
	"context"
	"errors"
	"fmt"
)

// ErrMissingCredential indicates the transport was configured without the
// credential its mode requires.
var ErrMissingCredential = errors.New("completion API credential not configured")

// ChatMessage is one (role, content) pair as sent to the completion service.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Usage reports token consumption for one completion.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

// Completion is a successful completion result.
type Completion struct {
	Reply string
	Model string
	Usage Usage
}

// Transport sends one ordered message sequence to the completion service and
// returns the model's reply. Implementations must honor ctx cancellation.
type Transport interface {
	CreateChatCompletion(ctx context.Context, messages []ChatMessage) (*Completion, error)
}

// APIError is a failure reported by the completion service. Message holds
// the most specific human-readable text extracted from the response body.
type APIError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("completion API error (status %d): %s", e.StatusCode, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("completion API error (status %d): %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("completion API error (status %d)", e.StatusCode)
}

func (e *APIError) Unwrap() error { return e.Err }
