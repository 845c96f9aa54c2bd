// ABOUTME: Completion dispatcher: envelope build, retry ladder, and reply validation.
// ABOUTME: Explicit Idle/Sending/Retrying/Failed states with a typed terminal error.

package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/2389/agentchat/internal/profile"
	"github.com/2389/agentchat/internal/store"
	"github.com/2389/agentchat/internal/transport"
)

// Policy defaults.
const (
	DefaultMaxRetries  = 3
	DefaultTimeout     = 30 * time.Second
	DefaultBackoffBase = time.Second

	// MaxReplyLength bounds assistant replies; a reply this long or longer
	// is rejected as malformed.
	MaxReplyLength = 4000
)

// State identifies a dispatch state machine state.
type State int

const (
	StateIdle State = iota
	StateSending
	StateRetrying
	StateSuccess
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSending:
		return "sending"
	case StateRetrying:
		return "retrying"
	case StateSuccess:
		return "success"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Kind classifies a terminal dispatch failure.
type Kind int

const (
	// KindTimeout: the per-attempt deadline elapsed before a response.
	KindTimeout Kind = iota
	// KindTransportFailure: the transport call failed (network, non-2xx,
	// malformed body).
	KindTransportFailure
	// KindInvalidResponse: the transport succeeded but the reply failed
	// validation (empty, or at/over the length bound).
	KindInvalidResponse
)

func (k Kind) String() string {
	switch k {
	case KindTimeout:
		return "timeout"
	case KindTransportFailure:
		return "transport_failure"
	case KindInvalidResponse:
		return "invalid_response_format"
	default:
		return "unknown"
	}
}

// Error is the typed terminal failure of one dispatch.
type Error struct {
	Kind     Kind
	AgentID  string
	Attempts int
	Msg      string
	Err      error
}

func (e *Error) Error() string {
	if e.Kind == KindTimeout {
		return fmt.Sprintf("%s agent timeout: Response took too long", e.AgentID)
	}
	return fmt.Sprintf("%s agent error after %d retries: %s", e.AgentID, e.Attempts, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// errInvalidReply marks a validation failure inside the retry ladder.
var errInvalidReply = errors.New("Invalid response format")

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithMaxRetries sets the attempt ceiling.
func WithMaxRetries(n int) Option {
	return func(d *Dispatcher) { d.maxRetries = n }
}

// WithTimeout sets the per-attempt deadline.
func WithTimeout(t time.Duration) Option {
	return func(d *Dispatcher) { d.timeout = t }
}

// WithBackoffBase sets the linear backoff unit (delay = attempt × base).
func WithBackoffBase(b time.Duration) Option {
	return func(d *Dispatcher) { d.backoffBase = b }
}

// WithSleep replaces the backoff sleep, letting tests use a fake clock.
func WithSleep(fn func(context.Context, time.Duration) error) Option {
	return func(d *Dispatcher) { d.sleep = fn }
}

// WithTransitionHook registers a callback invoked on every state change.
func WithTransitionHook(fn func(State)) Option {
	return func(d *Dispatcher) { d.onTransition = fn }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) { d.logger = logger }
}

// Dispatcher owns the retry/timeout/backoff policy around one transport.
// It holds no per-call state and never touches conversation storage.
type Dispatcher struct {
	transport    transport.Transport
	maxRetries   int
	timeout      time.Duration
	backoffBase  time.Duration
	sleep        func(context.Context, time.Duration) error
	onTransition func(State)
	logger       *slog.Logger
}

// New creates a Dispatcher with the default policy.
func New(t transport.Transport, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		transport:   t,
		maxRetries:  DefaultMaxRetries,
		timeout:     DefaultTimeout,
		backoffBase: DefaultBackoffBase,
		sleep:       sleepCtx,
		logger:      slog.Default().With("component", "dispatch"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Process requests one validated reply for the user message, parametrized by
// the agent profile and the prepared context. It resolves to the reply text
// or a *Error; no other error shape escapes the retry ladder, except a
// caller cancellation which propagates as ctx.Err().
func (d *Dispatcher) Process(ctx context.Context, prof profile.Profile, userMessage string, mergedContext []store.Message) (string, error) {
	envelope := buildEnvelope(prof, userMessage, mergedContext)
	logger := d.logger.With("agent", prof.ID)

	state := StateIdle
	transition := func(next State) {
		logger.Debug("dispatch state", "from", state, "to", next)
		state = next
		if d.onTransition != nil {
			d.onTransition(next)
		}
	}

	var attempt int
	for {
		transition(StateSending)
		attempt++

		reply, err := d.attempt(ctx, envelope)
		if err == nil {
			transition(StateSuccess)
			logger.Debug("dispatch succeeded", "attempts", attempt, "reply_len", len(reply))
			return reply, nil
		}
		// Caller cancellation is not a dispatch outcome.
		if ctx.Err() != nil {
			return "", ctx.Err()
		}

		if errors.Is(err, context.DeadlineExceeded) {
			// A deadline expiry consumes the attempt but is terminal.
			transition(StateFailed)
			logger.Warn("dispatch timed out", "attempt", attempt, "timeout", d.timeout)
			return "", &Error{
				Kind:     KindTimeout,
				AgentID:  prof.ID,
				Attempts: attempt,
				Msg:      "Response took too long",
				Err:      err,
			}
		}

		if attempt >= d.maxRetries {
			transition(StateFailed)
			terminal := &Error{
				Kind:     classify(err),
				AgentID:  prof.ID,
				Attempts: attempt,
				Msg:      deepestMessage(err),
				Err:      err,
			}
			logger.Warn("dispatch failed",
				"attempts", attempt,
				"kind", terminal.Kind,
				"error", terminal.Msg)
			return "", terminal
		}

		transition(StateRetrying)
		delay := time.Duration(attempt) * d.backoffBase
		logger.Debug("dispatch retrying", "attempt", attempt, "delay", delay, "error", err)
		if serr := d.sleep(ctx, delay); serr != nil {
			return "", serr
		}
	}
}

// attempt makes one transport call under the per-attempt deadline and
// validates the reply.
func (d *Dispatcher) attempt(ctx context.Context, envelope []transport.ChatMessage) (string, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	completion, err := d.transport.CreateChatCompletion(attemptCtx, envelope)
	if err != nil {
		return "", err
	}
	if !validReply(completion.Reply) {
		return "", fmt.Errorf("%w: reply length %d", errInvalidReply, len(completion.Reply))
	}
	return completion.Reply, nil
}

// validReply accepts non-empty replies strictly shorter than MaxReplyLength.
func validReply(reply string) bool {
	return len(reply) > 0 && len(reply) < MaxReplyLength
}

// buildEnvelope assembles the wire messages: system prompt, ordered context,
// then the user message. The user message is skipped when an identical user
// turn already sits at the tail of the context, avoiding a duplicated turn
// when the caller appended it to history before preparing the window.
func buildEnvelope(prof profile.Profile, userMessage string, mergedContext []store.Message) []transport.ChatMessage {
	envelope := make([]transport.ChatMessage, 0, len(mergedContext)+2)
	envelope = append(envelope, transport.ChatMessage{
		Role:    store.RoleSystem,
		Content: prof.SystemPrompt(),
	})
	for _, msg := range mergedContext {
		envelope = append(envelope, transport.ChatMessage{Role: msg.Role, Content: msg.Content})
	}

	if n := len(mergedContext); n > 0 {
		tail := mergedContext[n-1]
		if tail.Role == store.RoleUser && tail.Content == userMessage {
			return envelope
		}
	}
	return append(envelope, transport.ChatMessage{Role: store.RoleUser, Content: userMessage})
}

// classify maps a retry-ladder error to its terminal kind.
func classify(err error) Kind {
	if errors.Is(err, errInvalidReply) {
		return KindInvalidResponse
	}
	return KindTransportFailure
}

// deepestMessage walks the failure chain for the most specific
// human-readable message, preferring API error payload messages over
// wrapper text.
func deepestMessage(err error) string {
	msg := err.Error()
	for e := err; e != nil; e = errors.Unwrap(e) {
		var apiErr *transport.APIError
		if errors.As(e, &apiErr) && apiErr.Message != "" {
			msg = apiErr.Message
		}
		if errors.Is(e, errInvalidReply) {
			msg = errInvalidReply.Error()
		}
	}
	return msg
}
