package models

import "time"

// Prompt is a single entry in the prompt library.
type Prompt struct {
	ID            int64     `json:"id"`
	Title         string    `json:"title"`
	Description   string    `json:"description,omitempty"`
	Content       string    `json:"content"`
	CategoryID    *int64    `json:"category_id,omitempty"`
	Tags          []string  `json:"tags"`
	OwnerID       string    `json:"owner_id"`
	ForkedFromID  *int64    `json:"forked_from_id,omitempty"`
	IsPublic      bool      `json:"is_public"`
	IsFeatured    bool      `json:"is_featured"`
	VoteCount     int       `json:"vote_count"`
	FavoriteCount int       `json:"favorite_count"`
	ForkCount     int       `json:"fork_count"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Category groups prompts; PromptCount is denormalized at read time.
type Category struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Slug        string `json:"slug"`
	PromptCount int    `json:"prompt_count"`
}

// APIKey maps a hashed bearer key to the user it authenticates.
type APIKey struct {
	ID                 string
	KeyHash            string
	KeyPrefix          string
	UserID             string
	RateLimitPerMinute int
	IsActive           bool
	LastUsedAt         *time.Time
	CreatedAt          time.Time
}

// PlaygroundRun records a single playground generation attempt.
type PlaygroundRun struct {
	ID               string
	UserID           *string
	Model            string
	Provider         string
	LatencyMs        int
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
	ErrorKind        *string
	ErrorMessage     *string
	CreatedAt        time.Time
}
