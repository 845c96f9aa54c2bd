// ABOUTME: Conversation state service: in-memory view synced with the repository.
// ABOUTME: Owns create/select/delete/retitle/send plus the write-ahead send ordering.

package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/2389/agentchat/internal/contextwin"
	"github.com/2389/agentchat/internal/dedupe"
	"github.com/2389/agentchat/internal/profile"
	"github.com/2389/agentchat/internal/session"
	"github.com/2389/agentchat/internal/store"
)

// DefaultTitle is assigned to conversations that have no user content yet.
const DefaultTitle = "New Chat"

// titleRunes bounds auto-derived conversation titles.
const titleRunes = 30

var (
	// ErrNotConfigured means the completion transport was never wired up,
	// usually because its credential is missing from the environment.
	ErrNotConfigured = errors.New("completion transport not configured")

	// ErrBusy rejects a send while another send is still in flight.
	ErrBusy = errors.New("a message is already being processed")

	// ErrDuplicateSend rejects a resubmission of the text that is
	// still in flight.
	ErrDuplicateSend = errors.New("duplicate message submission")

	// ErrNoSelection means a send was attempted with no current
	// conversation or no selected agent.
	ErrNoSelection = errors.New("no conversation or agent selected")
)

// Completer produces an assistant reply for a user message given the
// merged context window. Implemented by dispatch.Dispatcher.
type Completer interface {
	Process(ctx context.Context, prof profile.Profile, userMessage string, merged []store.Message) (string, error)
}

// Service is the single writer for one owner's conversation state.
type Service struct {
	repo      store.Repository
	boundary  session.Boundary
	completer Completer
	recent    *dedupe.Cache
	budget    contextwin.Budget
	logger    *slog.Logger
	now       func() time.Time

	mu            sync.Mutex
	profiles      []profile.Profile
	memories      map[string]*contextwin.Memory
	conversations []*store.Conversation
	currentID     string
	selectedID    string
	processing    bool
	lastErr       error
}

// Option configures a Service.
type Option func(*Service)

// WithBudget overrides the default context window budget.
func WithBudget(b contextwin.Budget) Option {
	return func(s *Service) { s.budget = b }
}

// WithLogger sets the logger. Defaults to slog.Default.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithClock overrides the time source for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithDedupeCache overrides the resubmission cache.
func WithDedupeCache(c *dedupe.Cache) Option {
	return func(s *Service) { s.recent = c }
}

// New creates a conversation service. A nil completer is allowed so the
// rest of the application can come up without a model credential; the
// misconfiguration surfaces from Initialize as ErrNotConfigured rather
// than at construction.
func New(repo store.Repository, boundary session.Boundary, completer Completer, opts ...Option) *Service {
	s := &Service{
		repo:      repo,
		boundary:  boundary,
		completer: completer,
		recent:    dedupe.New(30*time.Second, 256),
		budget: contextwin.Budget{
			TokenCeiling: contextwin.DefaultTokenCeiling,
			MaxMessages:  contextwin.DefaultMaxMessages,
		},
		logger:   slog.Default(),
		now:      time.Now,
		memories: make(map[string]*contextwin.Memory),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "chat")
	return s
}

// Initialize registers the agent profiles, loads the owner's conversations
// from the repository, and selects the first one. When the owner has no
// conversations yet, one is created. A missing completion transport is
// recorded as the service error and returned; it does not panic past
// startup.
func (s *Service) Initialize(ctx context.Context, registry []profile.Profile) error {
	if s.completer == nil {
		s.setErr(ErrNotConfigured)
		s.logger.Error("initialize failed", "error", ErrNotConfigured)
		return ErrNotConfigured
	}
	if len(registry) == 0 {
		err := fmt.Errorf("initialize: empty agent registry")
		s.setErr(err)
		return err
	}

	s.mu.Lock()
	s.profiles = registry
	s.selectedID = registry[0].ID
	for _, p := range registry {
		if _, ok := s.memories[p.ID]; !ok {
			s.memories[p.ID] = contextwin.NewMemory(contextwin.DefaultMaxMessages)
		}
	}
	s.mu.Unlock()

	ownerID := s.boundary.CurrentOwnerID()
	if ownerID == "" {
		s.logger.Info("initialized without owner", "agents", len(registry))
		return nil
	}

	convs, err := s.repo.List(ctx, ownerID)
	if err != nil {
		err = fmt.Errorf("loading conversations: %w", err)
		s.setErr(err)
		return err
	}
	if len(convs) == 0 {
		conv, err := s.create(ctx, ownerID)
		if err != nil {
			s.setErr(err)
			return err
		}
		convs = append(convs, conv)
	}

	s.mu.Lock()
	s.conversations = convs
	s.currentID = convs[0].ID
	s.mu.Unlock()

	s.logger.Info("initialized",
		"agents", len(registry),
		"conversations", len(convs),
		"current", convs[0].ID)
	return nil
}

// create persists a fresh empty conversation. Callers admit it into the
// local view only after this succeeds.
func (s *Service) create(ctx context.Context, ownerID string) (*store.Conversation, error) {
	now := s.now().UTC()
	conv := &store.Conversation{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		Title:     DefaultTitle,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Insert(ctx, conv); err != nil {
		return nil, fmt.Errorf("creating conversation: %w", err)
	}
	return conv, nil
}

// CreateConversation persists a fresh conversation and selects it. The
// local view only changes after the insert succeeds, so a failed create
// never leaves a phantom entry.
func (s *Service) CreateConversation(ctx context.Context) (*store.Conversation, error) {
	ownerID := s.boundary.CurrentOwnerID()
	if ownerID == "" {
		return nil, session.ErrInvalidCredentials
	}
	conv, err := s.create(ctx, ownerID)
	if err != nil {
		s.setErr(err)
		s.logger.Error("create conversation failed", "error", err)
		return nil, err
	}

	s.mu.Lock()
	s.conversations = append(s.conversations, conv)
	s.currentID = conv.ID
	s.mu.Unlock()

	s.logger.Info("conversation created", "conversation_id", conv.ID)
	return conv.Clone(), nil
}

// SelectConversation makes id current and refreshes its cached copy from
// the repository, picking up writes made by other sessions. Conversations
// belonging to a different owner are reported as not found.
func (s *Service) SelectConversation(ctx context.Context, id string) error {
	conv, err := s.repo.Get(ctx, s.boundary.CurrentOwnerID(), id)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			s.setErr(err)
		}
		return fmt.Errorf("selecting conversation %s: %w", id, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	replaced := false
	for i, existing := range s.conversations {
		if existing.ID == id {
			s.conversations[i] = conv
			replaced = true
			break
		}
	}
	if !replaced {
		s.conversations = append(s.conversations, conv)
	}
	s.currentID = id
	return nil
}

// DeleteConversation removes a conversation, repository first. When the
// current conversation is deleted, selection fails over to the next
// remaining one; deleting the last conversation creates and selects a
// fresh empty one so there is always somewhere to type.
func (s *Service) DeleteConversation(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, s.boundary.CurrentOwnerID(), id); err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			s.setErr(err)
		}
		s.logger.Warn("delete conversation failed", "conversation_id", id, "error", err)
		return fmt.Errorf("deleting conversation %s: %w", id, err)
	}

	s.mu.Lock()
	idx := -1
	for i, conv := range s.conversations {
		if conv.ID == id {
			idx = i
			break
		}
	}
	if idx >= 0 {
		s.conversations = append(s.conversations[:idx], s.conversations[idx+1:]...)
	}
	wasCurrent := s.currentID == id
	if wasCurrent {
		switch {
		case idx >= 0 && idx < len(s.conversations):
			s.currentID = s.conversations[idx].ID
		case len(s.conversations) > 0:
			s.currentID = s.conversations[len(s.conversations)-1].ID
		default:
			s.currentID = ""
		}
	}
	needFresh := wasCurrent && len(s.conversations) == 0
	s.mu.Unlock()

	s.logger.Info("conversation deleted", "conversation_id", id)

	if !needFresh {
		return nil
	}
	ownerID := s.boundary.CurrentOwnerID()
	if ownerID == "" {
		return nil
	}
	conv, err := s.create(ctx, ownerID)
	if err != nil {
		s.setErr(err)
		return err
	}
	s.mu.Lock()
	s.conversations = append(s.conversations, conv)
	s.currentID = conv.ID
	s.mu.Unlock()
	return nil
}

// UpdateTitle renames a conversation. The repository write happens first;
// the cached copy is only updated on success.
func (s *Service) UpdateTitle(ctx context.Context, id, title string) error {
	if err := s.repo.UpdateTitle(ctx, s.boundary.CurrentOwnerID(), id, title); err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			s.setErr(err)
		}
		return fmt.Errorf("updating title for %s: %w", id, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, conv := range s.conversations {
		if conv.ID == id {
			conv.Title = title
			conv.UpdatedAt = s.now().UTC()
			break
		}
	}
	return nil
}

// SetSelectedAgent switches the active agent profile.
func (s *Service) SetSelectedAgent(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := profile.Find(s.profiles, id); err != nil {
		return fmt.Errorf("selecting agent %s: %w", id, err)
	}
	s.selectedID = id
	return nil
}

// Conversations returns a snapshot of the cached conversations.
func (s *Service) Conversations() []*store.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*store.Conversation, len(s.conversations))
	for i, conv := range s.conversations {
		out[i] = conv.Clone()
	}
	return out
}

// Conversation returns a snapshot of one cached conversation.
func (s *Service) Conversation(id string) (*store.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, conv := range s.conversations {
		if conv.ID == id {
			return conv.Clone(), nil
		}
	}
	return nil, store.ErrNotFound
}

// CurrentConversationID returns the selected conversation's id, or ""
// when nothing is selected.
func (s *Service) CurrentConversationID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentID
}

// SelectedAgentID returns the active agent profile id.
func (s *Service) SelectedAgentID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selectedID
}

// Profiles returns the registered agent profiles.
func (s *Service) Profiles() []profile.Profile {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]profile.Profile, len(s.profiles))
	copy(out, s.profiles)
	return out
}

// Processing reports whether a send is in flight.
func (s *Service) Processing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.processing
}

// Err returns the most recent operation error, or nil.
func (s *Service) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// ClearErr resets the service error field.
func (s *Service) ClearErr() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastErr = nil
}

func (s *Service) setErr(err error) {
	s.mu.Lock()
	s.lastErr = err
	s.mu.Unlock()
}
