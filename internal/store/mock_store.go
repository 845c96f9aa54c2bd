// ABOUTME: In-memory Repository implementation for testing.
// ABOUTME: Supports per-call failure injection to exercise partial-failure paths.

package store

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MockRepository is an in-memory Repository for tests. Zero value is not
// usable; create with NewMockRepository.
//
// Set the Fail* fields to make the corresponding operation return that error.
type MockRepository struct {
	mu            sync.RWMutex
	conversations map[string]*Conversation

	FailList    error
	FailGet     error
	FailInsert  error
	FailAppend  error
	FailTitle   error
	FailDelete  error
	AppendCalls int
}

// NewMockRepository creates an empty MockRepository.
func NewMockRepository() *MockRepository {
	return &MockRepository{
		conversations: make(map[string]*Conversation),
	}
}

// Seed inserts a conversation directly, bypassing failure injection.
func (m *MockRepository) Seed(conv *Conversation) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.conversations[conv.ID] = conv.Clone()
}

func (m *MockRepository) List(ctx context.Context, ownerID string) ([]*Conversation, error) {
	if m.FailList != nil {
		return nil, m.FailList
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var convs []*Conversation
	for _, conv := range m.conversations {
		if conv.OwnerID == ownerID {
			convs = append(convs, conv.Clone())
		}
	}
	sort.Slice(convs, func(i, j int) bool {
		if convs[i].CreatedAt.Equal(convs[j].CreatedAt) {
			return convs[i].ID < convs[j].ID
		}
		return convs[i].CreatedAt.Before(convs[j].CreatedAt)
	})
	return convs, nil
}

func (m *MockRepository) Get(ctx context.Context, ownerID, id string) (*Conversation, error) {
	if m.FailGet != nil {
		return nil, m.FailGet
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	conv, ok := m.conversations[id]
	if !ok || conv.OwnerID != ownerID {
		return nil, ErrNotFound
	}
	return conv.Clone(), nil
}

func (m *MockRepository) Insert(ctx context.Context, conv *Conversation) error {
	if m.FailInsert != nil {
		return m.FailInsert
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.conversations[conv.ID]; exists {
		return ErrDuplicateConversation
	}
	m.conversations[conv.ID] = conv.Clone()
	return nil
}

func (m *MockRepository) AppendMessage(ctx context.Context, conversationID string, msg Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.AppendCalls++
	if m.FailAppend != nil {
		return m.FailAppend
	}
	conv, ok := m.conversations[conversationID]
	if !ok {
		return ErrNotFound
	}
	conv.Messages = append(conv.Messages, msg)
	conv.UpdatedAt = msg.Timestamp
	return nil
}

func (m *MockRepository) UpdateTitle(ctx context.Context, ownerID, id, title string) error {
	if m.FailTitle != nil {
		return m.FailTitle
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	conv, ok := m.conversations[id]
	if !ok || conv.OwnerID != ownerID {
		return ErrNotFound
	}
	conv.Title = title
	conv.UpdatedAt = time.Now()
	return nil
}

func (m *MockRepository) Delete(ctx context.Context, ownerID, id string) error {
	if m.FailDelete != nil {
		return m.FailDelete
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if conv, ok := m.conversations[id]; !ok || conv.OwnerID != ownerID {
		return ErrNotFound
	}
	delete(m.conversations, id)
	return nil
}
