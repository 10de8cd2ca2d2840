package model

import "time"

type User struct {
	ID           int       `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Profile carries per-user settings. The LLM API key is stored
// AES-256-GCM encrypted; APIKeyEnc never leaves the server.
type Profile struct {
	UserID    int       `json:"user_id"`
	APIKeyEnc string    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
