// ABOUTME: Send flow: optimistic append, write-ahead persist, dispatch,
// ABOUTME: then the assistant reply or an inline system-role error message.

package chat

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/2389/agentchat/internal/contextwin"
	"github.com/2389/agentchat/internal/profile"
	"github.com/2389/agentchat/internal/store"
)

// persistTimeout bounds best-effort writes made after dispatch resolves.
const persistTimeout = 5 * time.Second

// SendMessage runs one user turn in the current conversation.
func (s *Service) SendMessage(ctx context.Context, text string) error {
	s.mu.Lock()
	id := s.currentID
	s.mu.Unlock()
	if id == "" {
		return ErrNoSelection
	}
	return s.SendMessageTo(ctx, id, text)
}

// SendMessageTo runs one user turn against the selected agent in the named
// conversation. Addressing the conversation explicitly keeps a send pinned
// to its target even when another session reselects in between.
//
// Ordering: the user message is appended to the local view and persisted
// BEFORE the completion call, so it survives a dispatch failure or a crash.
// On success the assistant reply is appended and persisted; on failure a
// system-role error message is appended to the transcript instead and the
// service error field is set. Either way the dedupe entry is released once
// the turn resolves, so a deliberate repeat of the same text goes through.
//
// Overlapping sends are rejected with ErrBusy; resubmitting the text of
// the still-in-flight send returns ErrDuplicateSend.
func (s *Service) SendMessageTo(ctx context.Context, conversationID, text string) error {
	s.mu.Lock()
	if s.selectedID == "" {
		s.mu.Unlock()
		return ErrNoSelection
	}
	conv := s.findLocked(conversationID)
	if conv == nil {
		s.mu.Unlock()
		return fmt.Errorf("conversation %s: %w", conversationID, store.ErrNotFound)
	}
	prof, err := profile.Find(s.profiles, s.selectedID)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("selected agent: %w", err)
	}
	if s.recent.CheckAndMark(conv.ID, text) {
		s.mu.Unlock()
		s.logger.Warn("duplicate submission dropped", "conversation_id", conv.ID)
		return ErrDuplicateSend
	}
	if s.processing {
		s.recent.Forget(conv.ID, text)
		s.mu.Unlock()
		return ErrBusy
	}

	s.processing = true
	s.lastErr = nil

	userMsg := store.Message{
		ID:        uuid.NewString(),
		Role:      store.RoleUser,
		Content:   text,
		Timestamp: s.now().UTC(),
	}
	conv.Messages = append(conv.Messages, userMsg)
	retitled := ""
	if conv.Title == DefaultTitle {
		retitled = deriveTitle(text)
		conv.Title = retitled
	}
	convID := conv.ID
	memory := s.memories[prof.ID]
	transcript := make([]store.Message, len(conv.Messages))
	copy(transcript, conv.Messages)
	s.mu.Unlock()

	// Record first, then act: a model failure must not lose the user's text.
	if err := s.repo.AppendMessage(ctx, convID, userMsg); err != nil {
		err = fmt.Errorf("persisting user message: %w", err)
		s.rollbackUserMessage(convID, userMsg.ID, retitled)
		s.recent.Forget(convID, text)
		s.setErr(err)
		s.setProcessing(false)
		s.logger.Error("send aborted", "conversation_id", convID, "error", err)
		return err
	}
	if retitled != "" {
		if err := s.repo.UpdateTitle(ctx, s.boundary.CurrentOwnerID(), convID, retitled); err != nil {
			s.logger.Warn("auto-title persist failed",
				"conversation_id", convID, "error", err)
		}
	}

	merged := contextwin.Prepare(transcript, memory.Messages(), s.budget)

	reply, dispatchErr := s.completer.Process(ctx, prof, text, merged)

	if dispatchErr != nil {
		sysMsg := store.Message{
			ID:        uuid.NewString(),
			Role:      store.RoleSystem,
			Content:   "Error: " + dispatchErr.Error(),
			Timestamp: s.now().UTC(),
		}
		s.mu.Lock()
		s.processing = false
		s.lastErr = dispatchErr
		if conv := s.findLocked(convID); conv != nil {
			conv.Messages = append(conv.Messages, sysMsg)
		}
		s.mu.Unlock()
		s.recent.Forget(convID, text)
		s.persistBestEffort(convID, sysMsg)
		s.logger.Error("dispatch failed",
			"conversation_id", convID,
			"agent", prof.ID,
			"error", dispatchErr)
		return dispatchErr
	}

	assistantMsg := store.Message{
		ID:        uuid.NewString(),
		Role:      store.RoleAssistant,
		Content:   reply,
		AgentID:   prof.ID,
		Timestamp: s.now().UTC(),
	}
	s.mu.Lock()
	s.processing = false
	if conv := s.findLocked(convID); conv != nil {
		conv.Messages = append(conv.Messages, assistantMsg)
	}
	s.mu.Unlock()
	// Release the dedupe entry: it guards against double-submits of an
	// in-flight turn, not against saying the same thing twice.
	s.recent.Forget(convID, text)
	memory.Append(userMsg)
	memory.Append(assistantMsg)
	s.persistBestEffort(convID, assistantMsg)
	s.logger.Info("message processed",
		"conversation_id", convID,
		"agent", prof.ID,
		"reply_chars", len(reply))
	return nil
}

// findLocked returns the cached conversation or nil. Caller holds the lock.
func (s *Service) findLocked(id string) *store.Conversation {
	for _, conv := range s.conversations {
		if conv.ID == id {
			return conv
		}
	}
	return nil
}

// rollbackUserMessage undoes the optimistic append after a failed
// write-ahead persist, restoring the default title if it was just derived.
func (s *Service) rollbackUserMessage(convID, msgID, retitled string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv := s.findLocked(convID)
	if conv == nil {
		return
	}
	for i, msg := range conv.Messages {
		if msg.ID == msgID {
			conv.Messages = append(conv.Messages[:i], conv.Messages[i+1:]...)
			break
		}
	}
	if retitled != "" && conv.Title == retitled {
		conv.Title = DefaultTitle
	}
}

// persistBestEffort writes a post-dispatch message with its own deadline,
// detached from the caller's context so a cancelled send still records its
// outcome. Failures are logged, never surfaced: the user message is already
// durable and the local view already shows the outcome.
func (s *Service) persistBestEffort(convID string, msg store.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := s.repo.AppendMessage(ctx, convID, msg); err != nil {
		s.logger.Warn("post-dispatch persist failed",
			"conversation_id", convID,
			"role", msg.Role,
			"error", err)
	}
}

func (s *Service) setProcessing(v bool) {
	s.mu.Lock()
	s.processing = v
	s.mu.Unlock()
}

// deriveTitle takes the leading runes of the first user message.
func deriveTitle(text string) string {
	runes := []rune(text)
	if len(runes) <= titleRunes {
		return text
	}
	return string(runes[:titleRunes])
}
