// Package store provides persistent storage for agentchat using SQLite.
//
// # Architecture
//
// Two interfaces cover the storage surface:
//
//   - Repository: conversation and message persistence, scoped by owner ID
//   - AccountStore: sign-in accounts for the session layer
//
// SQLiteStore implements both in a single struct. MockRepository implements
// Repository in memory for unit tests, with injectable per-call failures.
//
// # Data Models
//
//   - Conversation: titled, append-only message sequence owned by an account
//   - Message: immutable (role, content, timestamp) triple; assistant
//     messages additionally carry the agent ID that produced them
//   - Account: email + bcrypt password hash identity
//
// # SQLite Configuration
//
// The store uses SQLite with WAL mode for concurrent reads:
//
//	PRAGMA journal_mode=WAL;
//	PRAGMA foreign_keys=ON;
//
// The schema is created on open. Message rows cascade-delete with their
// conversation. Timestamps are stored as RFC 3339 UTC strings.
//
// # Error Handling
//
//   - ErrNotFound: requested entity does not exist, or belongs to a
//     different owner (by-id lookups never reveal foreign conversations)
//   - ErrDuplicateConversation: conversation ID already taken
//   - ErrDuplicateAccount: email already registered
//
// All methods accept context.Context for cancellation support.
package store
