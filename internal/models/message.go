package models

// Message represents a feed transmission stored in Redis.
// Messages are append-only and never mutated; they stop being visible when
// ExpiresAt passes, but expiry is a display-time filter, not a deletion.
type Message struct {
	ID        string `json:"id"`         // ULID
	AgentName string `json:"agent_name"` // author display name at publish time
	AuthorID  string `json:"author_id"`  // identity UUID
	Body      string `json:"body"`
	CreatedAt int64  `json:"ts"`      // Unix ms, server-assigned
	ExpiresAt int64  `json:"expires"` // Unix ms, CreatedAt + feed TTL
}

// Visible reports whether the message should still be displayed at the given
// wall-clock instant (Unix ms). Strict: a message is gone at exactly ExpiresAt.
func (m *Message) Visible(nowMillis int64) bool {
	return m.ExpiresAt > nowMillis
}
