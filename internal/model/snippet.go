// Package model defines the snippet, user and catalog types shared by every
// layer. They carry JSON tags for the API and no behaviour beyond small helpers.
package model

import "time"

// Snippet represents a saved code snippet and its sharing state.
//
// VISIBILITY FIELDS:
// IsPublic, InCommunity and PublicExpiresAt are never written directly by
// handlers. They are changed only through the visibility package, which keeps
// IsPublic equal to "link active OR community-published".
//
// PublicExpiresAt is a pointer because "no link" (nil) and "expired link"
// (non-nil, in the past) are different states that must both survive a round
// trip through the database and JSON.
type Snippet struct {
	ID          string   `json:"id"`
	UserID      string   `json:"userId"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Code        string   `json:"code"`
	Language    string   `json:"language"`
	Category    string   `json:"category"`
	Tags        []string `json:"tags"`
	UsageCount  int64    `json:"usageCount"`
	IsFavorite  bool     `json:"isFavorite"`

	IsPublic        bool       `json:"isPublic"`
	InCommunity     bool       `json:"inCommunity"`
	PublicExpiresAt *time.Time `json:"publicExpiresAt"`

	// OriginalID points at the snippet this one was cloned from.
	OriginalID string `json:"originalId,omitempty"`

	// Version increases on every write; used for optional If-Match checks.
	Version int64 `json:"version"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// IsOwnedBy reports whether userID owns the snippet.
func (s *Snippet) IsOwnedBy(userID string) bool {
	return userID != "" && s.UserID == userID
}
