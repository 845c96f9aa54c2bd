// ABOUTME: Repository interfaces and data types for agentchat persistence.
// ABOUTME: Defines Conversation, Message, Account and the storage contracts.

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicateConversation is returned when inserting a conversation whose ID
// already exists.
var ErrDuplicateConversation = errors.New("conversation already exists")

// ErrDuplicateAccount is returned when an account with the same email exists.
var ErrDuplicateAccount = errors.New("account already exists")

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Message is a single immutable message within a conversation. AgentID is set
// only on assistant messages and identifies which agent produced the reply.
type Message struct {
	ID        string
	Role      string
	Content   string
	AgentID   string
	Timestamp time.Time
}

// Conversation is a titled, ordered, append-only sequence of messages owned
// by one account. Messages are kept sorted by timestamp ascending.
type Conversation struct {
	ID        string
	OwnerID   string
	Title     string
	Messages  []Message
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Clone returns a deep copy so callers can hand out conversation snapshots
// without exposing the backing message slice.
func (c *Conversation) Clone() *Conversation {
	cp := *c
	cp.Messages = make([]Message, len(c.Messages))
	copy(cp.Messages, c.Messages)
	return &cp
}

// Repository defines conversation persistence scoped by owner identity.
// Messages are append-only: there is no way to edit or remove one.
type Repository interface {
	// List returns all conversations for an owner, oldest first, with
	// messages loaded.
	List(ctx context.Context, ownerID string) ([]*Conversation, error)

	// Get returns one conversation with its full message history. Lookup
	// is scoped by owner: a conversation belonging to someone else is
	// ErrNotFound.
	Get(ctx context.Context, ownerID, id string) (*Conversation, error)

	// Insert creates a conversation. Returns ErrDuplicateConversation if the
	// ID is taken.
	Insert(ctx context.Context, conv *Conversation) error

	// AppendMessage durably appends one message and bumps the conversation's
	// updated_at.
	AppendMessage(ctx context.Context, conversationID string, msg Message) error

	// UpdateTitle sets a new title. Returns ErrNotFound for unknown IDs or
	// conversations owned by someone else.
	UpdateTitle(ctx context.Context, ownerID, id, title string) error

	// Delete removes a conversation and its messages. Returns ErrNotFound
	// for unknown IDs or conversations owned by someone else.
	Delete(ctx context.Context, ownerID, id string) error
}

// Account is a sign-in identity. Conversations are scoped to an account ID.
type Account struct {
	ID           string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// AccountStore defines account persistence for the session layer.
type AccountStore interface {
	CreateAccount(ctx context.Context, account *Account) error
	GetAccountByEmail(ctx context.Context, email string) (*Account, error)
}
