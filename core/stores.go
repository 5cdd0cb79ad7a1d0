package core

import (
	"context"
	"time"
)

// SessionInfo is the persisted metadata binding a session id to the profile
// chosen on its first message.
type SessionInfo struct {
	ID        string    `json:"id"`
	Profile   string    `json:"profile"`
	CreatedAt time.Time `json:"created_at"`
}

// SessionStore persists per-session conversation history and metadata under
// a TTL measured from the last write. Implementations decide the TTL; an
// expired or unknown session id reads as empty history.
type SessionStore interface {
	// AppendTurns appends turns to the session's history in order,
	// refreshing the TTL.
	AppendTurns(ctx context.Context, sessionID string, turns ...Message) error

	// History returns the ordered turns for a session. Unknown or expired
	// ids yield an empty slice, not an error.
	History(ctx context.Context, sessionID string) ([]Message, error)

	// PutInfo stores the session metadata, refreshing the TTL.
	PutInfo(ctx context.Context, info SessionInfo) error

	// Info returns the session metadata or ErrSessionNotFound.
	Info(ctx context.Context, sessionID string) (SessionInfo, error)

	// List returns metadata for all live sessions.
	List(ctx context.Context) ([]SessionInfo, error)

	// Delete removes the session's history and metadata. Deleting an
	// unknown id is not an error.
	Delete(ctx context.Context, sessionID string) error
}

// ProfileStore resolves profile names to configurations.
type ProfileStore interface {
	// Resolve returns the profile for name, or an error wrapping
	// ErrProfileNotFound when it exists nowhere.
	Resolve(ctx context.Context, name string) (Profile, error)
}

// Passage is one retrieved document fragment.
type Passage struct {
	ID       string
	Content  string
	Score    float32
	Metadata map[string]string
}

// Retriever queries an external document index for the retrieval-augmented
// agent variant.
type Retriever interface {
	// Query returns up to k passages relevant to query from the named
	// collection, most relevant first.
	Query(ctx context.Context, collection, query string, k int) ([]Passage, error)
}
