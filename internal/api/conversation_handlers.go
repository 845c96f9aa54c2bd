// ABOUTME: Conversation HTTP handlers: list, create, read, delete, retitle,
// ABOUTME: send messages, select agents, and export transcripts.

package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/2389/agentchat/internal/store"
)

// AgentResponse is one entry in GET /api/agents.
type AgentResponse struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	ShortName   string `json:"short_name,omitempty"`
	Description string `json:"description"`
	Selected    bool   `json:"selected"`
}

// SelectAgentRequest is the JSON request body for PUT /api/agents/selected.
type SelectAgentRequest struct {
	AgentID string `json:"agent_id"`
}

// StateResponse is the JSON response for GET /api/state.
type StateResponse struct {
	CurrentConversationID string `json:"current_conversation_id"`
	SelectedAgentID       string `json:"selected_agent_id"`
	Processing            bool   `json:"processing"`
	Error                 string `json:"error,omitempty"`
}

// ConversationSummary is one entry in GET /api/conversations.
type ConversationSummary struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	MessageCount int    `json:"message_count"`
	LastMessage  string `json:"last_message,omitempty"`
	Current      bool   `json:"current"`
	CreatedAt    string `json:"created_at"`
	UpdatedAt    string `json:"updated_at"`
}

// MessageResponse is a single transcript entry.
type MessageResponse struct {
	ID        string `json:"id"`
	Role      string `json:"role"`
	Content   string `json:"content"`
	AgentID   string `json:"agent_id,omitempty"`
	Timestamp string `json:"timestamp"`
}

// ConversationResponse is the JSON response for a full conversation.
type ConversationResponse struct {
	ID        string            `json:"id"`
	Title     string            `json:"title"`
	Messages  []MessageResponse `json:"messages"`
	CreatedAt string            `json:"created_at"`
	UpdatedAt string            `json:"updated_at"`
}

// UpdateTitleRequest is the JSON request body for PUT /api/conversations/{id}/title.
type UpdateTitleRequest struct {
	Title string `json:"title"`
}

// SendRequest is the JSON request body for POST /api/conversations/{id}/messages.
// AgentID optionally switches the selected agent before sending.
type SendRequest struct {
	Content string `json:"content"`
	AgentID string `json:"agent_id,omitempty"`
}

// handleListAgents handles GET /api/agents.
func (s *Server) handleListAgents(w http.ResponseWriter, r *http.Request) {
	svc, ok := s.service(w, r)
	if !ok {
		return
	}

	selected := svc.SelectedAgentID()
	profiles := svc.Profiles()
	response := make([]AgentResponse, len(profiles))
	for i, p := range profiles {
		response[i] = AgentResponse{
			ID:          p.ID,
			DisplayName: p.DisplayName,
			ShortName:   p.ShortName,
			Description: p.Description,
			Selected:    p.ID == selected,
		}
	}
	s.writeJSON(w, http.StatusOK, response)
}

// handleSelectAgent handles PUT /api/agents/selected.
func (s *Server) handleSelectAgent(w http.ResponseWriter, r *http.Request) {
	var req SelectAgentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.AgentID == "" {
		s.sendJSONError(w, http.StatusBadRequest, "agent_id is required")
		return
	}

	svc, ok := s.service(w, r)
	if !ok {
		return
	}
	if err := svc.SetSelectedAgent(req.AgentID); err != nil {
		s.sendJSONError(w, http.StatusNotFound, fmt.Sprintf("unknown agent %q", req.AgentID))
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"selected_agent_id": req.AgentID})
}

// handleState handles GET /api/state.
func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	svc, ok := s.service(w, r)
	if !ok {
		return
	}
	resp := StateResponse{
		CurrentConversationID: svc.CurrentConversationID(),
		SelectedAgentID:       svc.SelectedAgentID(),
		Processing:            svc.Processing(),
	}
	if err := svc.Err(); err != nil {
		resp.Error = err.Error()
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// handleListConversations handles GET /api/conversations.
func (s *Server) handleListConversations(w http.ResponseWriter, r *http.Request) {
	svc, ok := s.service(w, r)
	if !ok {
		return
	}

	current := svc.CurrentConversationID()
	convs := svc.Conversations()
	response := make([]ConversationSummary, len(convs))
	for i, conv := range convs {
		summary := ConversationSummary{
			ID:           conv.ID,
			Title:        conv.Title,
			MessageCount: len(conv.Messages),
			Current:      conv.ID == current,
			CreatedAt:    conv.CreatedAt.Format(time.RFC3339),
			UpdatedAt:    conv.UpdatedAt.Format(time.RFC3339),
		}
		if n := len(conv.Messages); n > 0 {
			summary.LastMessage = preview(conv.Messages[n-1].Content)
		}
		response[i] = summary
	}
	s.writeJSON(w, http.StatusOK, response)
}

// handleCreateConversation handles POST /api/conversations.
func (s *Server) handleCreateConversation(w http.ResponseWriter, r *http.Request) {
	svc, ok := s.service(w, r)
	if !ok {
		return
	}
	conv, err := svc.CreateConversation(r.Context())
	if err != nil {
		s.sendChatError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, conversationResponse(conv))
}

// handleGetConversation handles GET /api/conversations/{id}. Selecting
// refreshes the cached copy from the repository before returning it.
func (s *Server) handleGetConversation(w http.ResponseWriter, r *http.Request) {
	svc, ok := s.service(w, r)
	if !ok {
		return
	}
	id := r.PathValue("id")
	if err := svc.SelectConversation(r.Context(), id); err != nil {
		s.sendChatError(w, err)
		return
	}
	conv, err := svc.Conversation(id)
	if err != nil {
		s.sendChatError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, conversationResponse(conv))
}

// handleDeleteConversation handles DELETE /api/conversations/{id}.
func (s *Server) handleDeleteConversation(w http.ResponseWriter, r *http.Request) {
	svc, ok := s.service(w, r)
	if !ok {
		return
	}
	if err := svc.DeleteConversation(r.Context(), r.PathValue("id")); err != nil {
		s.sendChatError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleUpdateTitle handles PUT /api/conversations/{id}/title.
func (s *Server) handleUpdateTitle(w http.ResponseWriter, r *http.Request) {
	var req UpdateTitleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Title == "" {
		s.sendJSONError(w, http.StatusBadRequest, "title is required")
		return
	}

	svc, ok := s.service(w, r)
	if !ok {
		return
	}
	id := r.PathValue("id")
	if err := svc.UpdateTitle(r.Context(), id, req.Title); err != nil {
		s.sendChatError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"id": id, "title": req.Title})
}

// handleSendMessage handles POST /api/conversations/{id}/messages. The
// conversation is selected first to refresh its cached copy, then the send
// is addressed to the path's id directly so a concurrent reselect cannot
// reroute it. On a dispatch failure the transcript already carries the
// inline error message, so the full conversation is returned alongside the
// error status by a follow-up GET.
func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	var req SendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Content == "" {
		s.sendJSONError(w, http.StatusBadRequest, "content is required")
		return
	}

	svc, ok := s.service(w, r)
	if !ok {
		return
	}
	id := r.PathValue("id")
	if err := svc.SelectConversation(r.Context(), id); err != nil {
		s.sendChatError(w, err)
		return
	}
	if req.AgentID != "" {
		if err := svc.SetSelectedAgent(req.AgentID); err != nil {
			s.sendJSONError(w, http.StatusNotFound, fmt.Sprintf("unknown agent %q", req.AgentID))
			return
		}
	}

	if err := svc.SendMessageTo(r.Context(), id, req.Content); err != nil {
		s.sendChatError(w, err)
		return
	}

	conv, err := svc.Conversation(id)
	if err != nil {
		s.sendChatError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, conversationResponse(conv))
}

// handleExport handles GET /api/conversations/{id}/export?format=markdown|html.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	svc, ok := s.service(w, r)
	if !ok {
		return
	}
	id := r.PathValue("id")
	if err := svc.SelectConversation(r.Context(), id); err != nil {
		s.sendChatError(w, err)
		return
	}
	conv, err := svc.Conversation(id)
	if err != nil {
		s.sendChatError(w, err)
		return
	}

	format := r.URL.Query().Get("format")
	switch format {
	case "", "markdown":
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		w.Write(s.renderer.Markdown(conv))
	case "html":
		page, err := s.renderer.HTML(conv)
		if err != nil {
			s.logger.Error("transcript render failed", "conversation_id", id, "error", err)
			s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write(page)
	default:
		s.sendJSONError(w, http.StatusBadRequest, "format must be markdown or html")
	}
}

func conversationResponse(conv *store.Conversation) ConversationResponse {
	resp := ConversationResponse{
		ID:        conv.ID,
		Title:     conv.Title,
		Messages:  make([]MessageResponse, len(conv.Messages)),
		CreatedAt: conv.CreatedAt.Format(time.RFC3339),
		UpdatedAt: conv.UpdatedAt.Format(time.RFC3339),
	}
	for i, msg := range conv.Messages {
		resp.Messages[i] = MessageResponse{
			ID:        msg.ID,
			Role:      msg.Role,
			Content:   msg.Content,
			AgentID:   msg.AgentID,
			Timestamp: msg.Timestamp.Format(time.RFC3339),
		}
	}
	return resp
}

// preview truncates message content for conversation list entries.
func preview(content string) string {
	const max = 80
	runes := []rune(content)
	if len(runes) <= max {
		return content
	}
	return string(runes[:max]) + "…"
}
