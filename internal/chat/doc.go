// Package chat provides the conversation state service that UIs talk to.
//
// # Overview
//
// The chat service keeps an in-memory view of one owner's conversations
// consistent with the durable repository under create, select, delete,
// retitle, and send operations. It orchestrates the context window manager
// and the completion dispatcher; it is the only component that mutates
// conversation state.
//
// # Service
//
//	svc := chat.New(repo, boundary, completer, opts...)
//	err := svc.Initialize(ctx, profile.Builtin())
//
// Commands:
//
//   - CreateConversation: persist first, admit locally only on success
//   - SelectConversation(id): pull-on-select refresh from the repository
//   - DeleteConversation(id): delete remotely first, fail selection over
//   - UpdateTitle(id, title): persist then reflect, never optimistic
//   - SetSelectedAgent(id): switch the active agent profile
//   - SendMessageTo(id, text): the central operation, see below;
//     SendMessage(text) addresses it to the current conversation
//
// Reactive reads: Conversations, CurrentConversationID, SelectedAgentID,
// Processing, Err.
//
// # Send ordering
//
// Key principle: record first, then act. The user's message is appended
// optimistically and persisted BEFORE the completion call, so it survives a
// model failure or a client crash. On success the assistant reply is
// appended and persisted; on a classified dispatch failure a system-role
// error message is appended to the transcript instead, persisted
// best-effort, and the service error field is set. The processing flag
// rejects overlapping sends for the same service; a TTL dedupe cache drops
// resubmissions of the text still in flight, and is released once the turn
// resolves so deliberate repeats go through.
//
// # Concurrency
//
// All state lives behind one mutex, released during repository and
// completion I/O. The processing flag — not the mutex — is what serializes
// sends; callers observing Processing() == true must not send again.
package chat
