// Package service holds the business rules. Handlers translate HTTP into
// calls on these services; services talk to storage only through the
// repository interfaces, so tests swap in in-memory fakes.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/sakif/snippet-vault/internal/apperror"
	"github.com/sakif/snippet-vault/internal/cache"
	"github.com/sakif/snippet-vault/internal/clock"
	"github.com/sakif/snippet-vault/internal/model"
	"github.com/sakif/snippet-vault/internal/repository"
	"github.com/sakif/snippet-vault/internal/visibility"
)

const (
	MaxTitleLength       = 200
	MaxDescriptionLength = 2000
	MaxCodeLength        = 100000
	MaxTags              = 20
	MaxTagLength         = 32

	// PageSize is the number of snippets per dashboard or explore page.
	PageSize = 12

	// MaxImportItems bounds one import request.
	MaxImportItems = 500
)

// SnippetInput is the user-editable content of a snippet.
type SnippetInput struct {
	Title       string
	Description string
	Code        string
	Language    string
	Category    string
	Tags        []string
}

// ListQuery selects one page of a listing. Page is 1-based.
type ListQuery struct {
	Page         int
	Search       string
	FavoriteOnly bool
	Category     string
}

// ListResult is one page plus the paging metadata the UI needs.
type ListResult struct {
	Snippets []model.Snippet `json:"snippets"`
	Total    int             `json:"total"`
	Page     int             `json:"page"`
	PageSize int             `json:"pageSize"`
	HasNext  bool            `json:"hasNext"`
}

// SnippetService owns snippet content: CRUD, listings, favorites, clone,
// public fetch and import/export. Visibility changes go through
// VisibilityService.
type SnippetService struct {
	repo   repository.SnippetRepository
	cache  cache.SnippetCache
	clock  clock.Clock
	logger *slog.Logger
}

func NewSnippetService(repo repository.SnippetRepository, c cache.SnippetCache, clk clock.Clock, logger *slog.Logger) *SnippetService {
	return &SnippetService{
		repo:   repo,
		cache:  c,
		clock:  clk,
		logger: logger,
	}
}

// Create saves a new private snippet owned by ownerID.
func (s *SnippetService) Create(ctx context.Context, ownerID string, in SnippetInput) (*model.Snippet, error) {
	in, err := normalizeInput(in)
	if err != nil {
		return nil, err
	}

	snippet := &model.Snippet{UserID: ownerID}
	in.applyTo(snippet)

	if err := s.repo.Create(ctx, snippet); err != nil {
		s.logger.Error("failed to create snippet", slog.String("owner", ownerID), slog.String("error", err.Error()))
		return nil, storeErr("creating snippet", err)
	}

	s.logger.Info("snippet created", slog.String("id", snippet.ID), slog.String("owner", ownerID))
	return snippet, nil
}

// Get returns a snippet the caller may see: their own, or any snippet that
// is currently public. Anything else looks like it does not exist.
func (s *SnippetService) Get(ctx context.Context, callerID, id string) (*model.Snippet, error) {
	snippet, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !s.canView(snippet, callerID) {
		return nil, apperror.NotFound("snippet", id)
	}
	return snippet, nil
}

// Update replaces the content of a snippet the caller owns. Visibility is
// untouched.
func (s *SnippetService) Update(ctx context.Context, callerID, id string, in SnippetInput) (*model.Snippet, error) {
	in, err := normalizeInput(in)
	if err != nil {
		return nil, err
	}

	snippet, err := s.loadOwned(ctx, callerID, id)
	if err != nil {
		return nil, err
	}
	in.applyTo(snippet)

	if err := s.repo.Update(ctx, snippet); err != nil {
		s.logger.Error("failed to update snippet", slog.String("id", id), slog.String("error", err.Error()))
		return nil, storeErr("updating snippet", err)
	}

	s.invalidate(ctx, id)
	s.logger.Info("snippet updated", slog.String("id", id))
	return snippet, nil
}

// Delete removes a snippet the caller owns. Clones of it are unaffected.
func (s *SnippetService) Delete(ctx context.Context, callerID, id string) error {
	if _, err := s.loadOwned(ctx, callerID, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return storeErr("deleting snippet", err)
	}

	s.invalidate(ctx, id)
	s.logger.Info("snippet deleted", slog.String("id", id))
	return nil
}

// SetFavorite toggles the owner's favorite flag.
func (s *SnippetService) SetFavorite(ctx context.Context, callerID, id string, favorite bool) (*model.Snippet, error) {
	snippet, err := s.loadOwned(ctx, callerID, id)
	if err != nil {
		return nil, err
	}
	if err := s.repo.SetFavorite(ctx, id, favorite); err != nil {
		return nil, storeErr("updating favorite", err)
	}
	s.invalidate(ctx, id)
	snippet.IsFavorite = favorite
	return snippet, nil
}

// List returns one page of the owner's snippets, newest first.
func (s *SnippetService) List(ctx context.Context, ownerID string, q ListQuery) (*ListResult, error) {
	return s.list(ctx, repository.ListOptions{
		OwnerID:      ownerID,
		Search:       q.Search,
		FavoriteOnly: q.FavoriteOnly,
		Category:     q.Category,
	}, q.Page)
}

// Explore returns one page of the community catalog. Link expiry plays no
// part here; catalog membership is the only criterion.
func (s *SnippetService) Explore(ctx context.Context, q ListQuery) (*ListResult, error) {
	return s.list(ctx, repository.ListOptions{
		CommunityOnly: true,
		Search:        q.Search,
		Category:      q.Category,
	}, q.Page)
}

func (s *SnippetService) list(ctx context.Context, opts repository.ListOptions, page int) (*ListResult, error) {
	if page < 1 {
		page = 1
	}
	if opts.Category != "" && !model.IsKnownCategory(opts.Category) {
		return nil, apperror.ValidationFailed("category", fmt.Sprintf("unknown category %q", opts.Category))
	}
	opts.Search = strings.TrimSpace(opts.Search)
	opts.Limit = PageSize
	opts.Offset = (page - 1) * PageSize

	res, err := s.repo.List(ctx, opts)
	if err != nil {
		s.logger.Error("failed to list snippets", slog.String("error", err.Error()))
		return nil, storeErr("listing snippets", err)
	}

	return &ListResult{
		Snippets: res.Snippets,
		Total:    res.Total,
		Page:     page,
		PageSize: PageSize,
		HasNext:  opts.Offset+len(res.Snippets) < res.Total,
	}, nil
}

// Clone copies a snippet the caller can see into a new private snippet owned
// by the caller.
func (s *SnippetService) Clone(ctx context.Context, callerID, id string) (*model.Snippet, error) {
	src, err := s.Get(ctx, callerID, id)
	if err != nil {
		return nil, err
	}

	clone, err := visibility.CloneForNewOwner(src, callerID)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, clone); err != nil {
		return nil, storeErr("cloning snippet", err)
	}

	s.logger.Info("snippet cloned",
		slog.String("source", src.ID),
		slog.String("clone", clone.ID),
		slog.String("owner", callerID),
	)
	return clone, nil
}

// GetPublic serves a snippet to anyone holding its id, provided it is public
// right now, and counts the view unless viewerID is the owner. viewerID is
// empty for anonymous requests. Cached copies are re-checked against the
// clock so an expired link stops serving even before the cache entry ages out.
func (s *SnippetService) GetPublic(ctx context.Context, viewerID, id string) (*model.Snippet, error) {
	now := s.clock.Now()

	snippet, err := s.cache.Get(ctx, id)
	if err != nil {
		s.logger.Warn("public cache read failed", slog.String("id", id), slog.String("error", err.Error()))
		snippet = nil
	}
	dirty := snippet == nil
	if snippet == nil {
		if snippet, err = s.load(ctx, id); err != nil {
			return nil, err
		}
	}

	if !visibility.IsVisible(visibility.StateOf(snippet), now) {
		return nil, apperror.NotFound("snippet", id)
	}

	if !snippet.IsOwnedBy(viewerID) {
		// A failed counter update must not block the read.
		if err := s.repo.IncrementUsage(ctx, id); err != nil {
			s.logger.Warn("failed to count snippet usage", slog.String("id", id), slog.String("error", err.Error()))
		} else {
			snippet.UsageCount++
			dirty = true
		}
	}

	// The cached copy carries the counter too, so it is rewritten after
	// every counted view.
	if dirty {
		if err := s.cache.Set(ctx, snippet); err != nil {
			s.logger.Warn("public cache write failed", slog.String("id", id), slog.String("error", err.Error()))
		}
	}
	return snippet, nil
}

// Export returns every snippet the owner has.
func (s *SnippetService) Export(ctx context.Context, ownerID string) ([]model.Snippet, error) {
	snippets, err := s.repo.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, storeErr("exporting snippets", err)
	}
	return snippets, nil
}

// Import creates one private snippet per item. Every item is validated
// before anything is written and the batch is stored atomically, so a bad
// item or a store failure leaves nothing behind.
func (s *SnippetService) Import(ctx context.Context, ownerID string, items []SnippetInput) ([]model.Snippet, error) {
	if len(items) == 0 {
		return nil, apperror.ValidationFailed("snippets", "nothing to import")
	}
	if len(items) > MaxImportItems {
		return nil, apperror.ValidationFailed("snippets",
			fmt.Sprintf("at most %d snippets can be imported at once", MaxImportItems))
	}

	normalized := make([]SnippetInput, len(items))
	for i, item := range items {
		in, err := normalizeInput(item)
		if err != nil {
			var appErr *apperror.AppError
			if errors.As(err, &appErr) {
				return nil, apperror.ValidationFailed(fmt.Sprintf("snippets[%d].%s", i, appErr.Field), appErr.Message)
			}
			return nil, err
		}
		normalized[i] = in
	}

	batch := make([]*model.Snippet, len(normalized))
	for i, in := range normalized {
		batch[i] = &model.Snippet{UserID: ownerID}
		in.applyTo(batch[i])
	}
	if err := s.repo.CreateBatch(ctx, batch); err != nil {
		s.logger.Error("import aborted",
			slog.String("owner", ownerID),
			slog.Int("items", len(batch)),
			slog.String("error", err.Error()),
		)
		return nil, storeErr("importing snippets", err)
	}

	created := make([]model.Snippet, len(batch))
	for i, snippet := range batch {
		created[i] = *snippet
	}

	s.logger.Info("snippets imported", slog.String("owner", ownerID), slog.Int("count", len(created)))
	return created, nil
}

func (s *SnippetService) load(ctx context.Context, id string) (*model.Snippet, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, apperror.ValidationFailed("id", "snippet ID is required")
	}
	snippet, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, storeErr("loading snippet", err)
	}
	return snippet, nil
}

// loadOwned returns NotFound for snippets the caller cannot see and
// Forbidden for public snippets owned by someone else.
func (s *SnippetService) loadOwned(ctx context.Context, callerID, id string) (*model.Snippet, error) {
	snippet, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if snippet.IsOwnedBy(callerID) {
		return snippet, nil
	}
	if s.canView(snippet, callerID) {
		return nil, apperror.Forbidden("only the owner can modify this snippet")
	}
	return nil, apperror.NotFound("snippet", id)
}

func (s *SnippetService) canView(snippet *model.Snippet, callerID string) bool {
	return snippet.IsOwnedBy(callerID) || visibility.IsVisible(visibility.StateOf(snippet), s.clock.Now())
}

func (s *SnippetService) invalidate(ctx context.Context, id string) {
	if err := s.cache.Invalidate(ctx, id); err != nil {
		s.logger.Warn("cache invalidation failed", slog.String("id", id), slog.String("error", err.Error()))
	}
}

// normalizeInput trims and validates content and fills in defaults.
func normalizeInput(in SnippetInput) (SnippetInput, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.Language = strings.ToLower(strings.TrimSpace(in.Language))
	in.Category = strings.ToLower(strings.TrimSpace(in.Category))

	if in.Title == "" {
		return in, apperror.ValidationFailed("title", "title is required")
	}
	if utf8.RuneCountInString(in.Title) > MaxTitleLength {
		return in, apperror.ValidationFailed("title", fmt.Sprintf("title must be %d characters or less", MaxTitleLength))
	}
	if utf8.RuneCountInString(in.Description) > MaxDescriptionLength {
		return in, apperror.ValidationFailed("description",
			fmt.Sprintf("description must be %d characters or less", MaxDescriptionLength))
	}
	if strings.TrimSpace(in.Code) == "" {
		return in, apperror.ValidationFailed("code", "code is required")
	}
	if len(in.Code) > MaxCodeLength {
		return in, apperror.ValidationFailed("code", fmt.Sprintf("code must be %d bytes or less", MaxCodeLength))
	}

	if in.Language == "" {
		in.Language = model.DefaultLanguage
	} else if !model.IsKnownLanguage(in.Language) {
		return in, apperror.ValidationFailed("language", fmt.Sprintf("unknown language %q", in.Language))
	}
	if in.Category == "" {
		in.Category = model.DefaultCategory
	} else if !model.IsKnownCategory(in.Category) {
		return in, apperror.ValidationFailed("category", fmt.Sprintf("unknown category %q", in.Category))
	}

	tags, err := normalizeTags(in.Tags)
	if err != nil {
		return in, err
	}
	in.Tags = tags
	return in, nil
}

// normalizeTags trims, lower-cases and de-duplicates tags, keeping first
// occurrence order. Empty tags are dropped.
func normalizeTags(raw []string) ([]string, error) {
	tags := make([]string, 0, len(raw))
	seen := make(map[string]bool, len(raw))
	for _, t := range raw {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		if utf8.RuneCountInString(t) > MaxTagLength {
			return nil, apperror.ValidationFailed("tags", fmt.Sprintf("tag %q is longer than %d characters", t, MaxTagLength))
		}
		seen[t] = true
		tags = append(tags, t)
	}
	if len(tags) > MaxTags {
		return nil, apperror.ValidationFailed("tags", fmt.Sprintf("at most %d tags are allowed", MaxTags))
	}
	return tags, nil
}

func (in SnippetInput) applyTo(s *model.Snippet) {
	s.Title = in.Title
	s.Description = in.Description
	s.Code = in.Code
	s.Language = in.Language
	s.Category = in.Category
	s.Tags = in.Tags
}

// storeErr passes domain errors (not found, conflict) through unchanged and
// marks anything else as a persistence failure.
func storeErr(op string, err error) error {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return err
	}
	return apperror.Persistence(op, err)
}
