// Package model defines the data structures used throughout the application.
package model

import "time"

// User represents a registered user account.
//
// Two ways to sign in exist: GitHub OAuth and email/password. A GitHub account
// has GitHubID set; a local account has PasswordHash set. GitHubID is a pointer
// so that local accounts store NULL and the UNIQUE constraint on github_id
// still holds for GitHub accounts.
type User struct {
	ID           string    `json:"id"`
	GitHubID     *int64    `json:"githubId,omitempty"`
	Login        string    `json:"login"`
	Email        string    `json:"email"`
	AvatarURL    string    `json:"avatarUrl"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}
