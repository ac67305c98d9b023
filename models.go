package main

import "time"

// User represents a user in the system. One row per (email, provider) pair;
// PasswordHash is set only for provider "local".
type User struct {
	ID           string
	Email        string
	Provider     string
	PasswordHash *string
	Active       bool
	CreatedAt    time.Time
}

// Interaction is one persisted AI exchange row: the user prompt and the
// assistant reply are stored as two rows sharing a model identifier.
type Interaction struct {
	ID        string
	UserID    string
	Model     string
	Role      string // "user" or "assistant"
	Content   string
	CreatedAt time.Time
}

// AdviceItem is a single parsed and scored coaching advice.
type AdviceItem struct {
	Text  string  `json:"text"`
	Score float64 `json:"score"`
}

// Identity is the provider-verified identity extracted during an OAuth
// callback: a stable subject plus the email reported by the provider
// (may be empty when the user withholds the permission).
type Identity struct {
	Subject string
	Email   string
}
