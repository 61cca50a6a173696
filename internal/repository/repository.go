// Package repository defines the persistence interfaces the services depend on.
// Concrete implementations live in sub-packages (sqlite/).
package repository

import (
	"context"
	"time"

	"github.com/sakif/snippet-vault/internal/model"
	"github.com/sakif/snippet-vault/internal/visibility"
)

// ListOptions filters and paginates snippet listings.
type ListOptions struct {
	Limit  int
	Offset int

	// OwnerID restricts the listing to one user's snippets.
	OwnerID string
	// CommunityOnly restricts the listing to the community catalog.
	CommunityOnly bool
	// Search is a case-insensitive substring match on the title.
	Search       string
	FavoriteOnly bool
	Category     string
}

// Page is one page of a listing plus the total number of matches.
type Page struct {
	Snippets []model.Snippet
	Total    int
}

// SnippetRepository stores snippets.
type SnippetRepository interface {
	Create(ctx context.Context, snippet *model.Snippet) error
	// CreateBatch inserts all snippets or, on any failure, none of them.
	CreateBatch(ctx context.Context, snippets []*model.Snippet) error
	GetByID(ctx context.Context, id string) (*model.Snippet, error)
	List(ctx context.Context, opts ListOptions) (*Page, error)
	// Update overwrites the content fields (never the visibility fields).
	Update(ctx context.Context, snippet *model.Snippet) error
	// UpdateVisibility writes only the fields set in patch. When
	// expectedVersion is > 0 the write only succeeds if the stored version
	// still matches; otherwise it returns apperror.ErrConflict.
	UpdateVisibility(ctx context.Context, id string, patch visibility.Patch, expectedVersion int64) (*model.Snippet, error)
	SetFavorite(ctx context.Context, id string, favorite bool) error
	IncrementUsage(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
	// ListByOwner returns every snippet of a user, newest first (export, stats).
	ListByOwner(ctx context.Context, ownerID string) ([]model.Snippet, error)
	// ClearLapsedLinks sets is_public = false on snippets whose link expired
	// at or before now and that are not in the community. The expiry itself is
	// kept. Returns the ids it changed.
	ClearLapsedLinks(ctx context.Context, now time.Time) ([]string, error)
}

// UserRepository stores user accounts.
type UserRepository interface {
	// Upsert creates or updates a GitHub-backed user keyed on GitHubID.
	Upsert(ctx context.Context, user *model.User) error
	// CreateUser inserts a local (email/password) account.
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	UpdatePassword(ctx context.Context, id, passwordHash string) error
}
