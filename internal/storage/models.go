package storage

import "time"

type ProviderKey struct {
	WorkspaceID string
	Provider    string
	EncKey      string
	UpdatedAt   time.Time
}

type FeatureSettings struct {
	WorkspaceID string
	Feature     string
	Model       string
	MaxTokens   int
	Prompt      string
	UpdatedAt   time.Time
}

type ActivityEntry struct {
	ID          int64
	WorkspaceID string
	Message     string
	Severity    string
	CreatedAt   time.Time
}
