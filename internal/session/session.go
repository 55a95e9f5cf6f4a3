// Package session holds conversation state for chatrelay: an in-memory
// registry of sessions, each owning an append-only transcript.
package session

import "time"

// Role identifies the speaker of a Turn.
type Role string

// Roles written by the store. Providers may also accept "system".
const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Turn is one message in a conversation.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Session is a snapshot of one conversation. History is a copy; mutating
// it does not affect the store.
type Session struct {
	ID         string
	History    []Turn
	CreatedAt  time.Time
	LastActive time.Time
}

// Info summarizes a session for listings.
type Info struct {
	ID         string    `json:"id"`
	CreatedAt  time.Time `json:"created_at"`
	LastActive time.Time `json:"last_active"`
	Turns      int       `json:"turns"`
}
