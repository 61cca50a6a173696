package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sakif/snippet-vault/internal/apperror"
	"github.com/sakif/snippet-vault/internal/clock"
	"github.com/sakif/snippet-vault/internal/model"
	"github.com/sakif/snippet-vault/internal/repository"
	"github.com/sakif/snippet-vault/internal/visibility"
)

// =========================================================================
// FAKE SNIPPET REPOSITORY
// =========================================================================
//
// fakeSnippetRepo keeps snippets in a map and mimics the SQLite repository
// closely enough for the services: copies in and out, version bumps, partial
// visibility writes. Set failWith to make every call fail.

type fakeSnippetRepo struct {
	mu       sync.Mutex
	clock    clock.Clock
	snippets map[string]*model.Snippet
	nextID   int
	seq      int // creation order, for newest-first listings
	order    map[string]int

	failWith error
	// visibilityCalls counts UpdateVisibility calls, so tests can assert a
	// rejected operation never reached the store.
	visibilityCalls int
	lastPatch       visibility.Patch
}

func newFakeSnippetRepo(clk clock.Clock) *fakeSnippetRepo {
	return &fakeSnippetRepo{
		clock:    clk,
		snippets: make(map[string]*model.Snippet),
		order:    make(map[string]int),
	}
}

func cloneSnippet(s *model.Snippet) *model.Snippet {
	c := *s
	c.Tags = append([]string(nil), s.Tags...)
	if s.PublicExpiresAt != nil {
		t := *s.PublicExpiresAt
		c.PublicExpiresAt = &t
	}
	return &c
}

func (f *fakeSnippetRepo) Create(_ context.Context, s *model.Snippet) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return f.failWith
	}
	f.nextID++
	f.seq++
	s.ID = fmt.Sprintf("snip-%d", f.nextID)
	s.CreatedAt = f.clock.Now()
	s.UpdatedAt = s.CreatedAt
	s.Version = 1
	if s.Tags == nil {
		s.Tags = []string{}
	}
	f.snippets[s.ID] = cloneSnippet(s)
	f.order[s.ID] = f.seq
	return nil
}

func (f *fakeSnippetRepo) CreateBatch(ctx context.Context, snippets []*model.Snippet) error {
	f.mu.Lock()
	fail := f.failWith
	f.mu.Unlock()
	if fail != nil {
		return fail
	}
	for _, s := range snippets {
		if err := f.Create(ctx, s); err != nil {
			return err
		}
	}
	return nil
}

// put stores a snippet as-is, for arranging test state.
func (f *fakeSnippetRepo) put(s *model.Snippet) *model.Snippet {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	if s.Version == 0 {
		s.Version = 1
	}
	f.snippets[s.ID] = cloneSnippet(s)
	f.order[s.ID] = f.seq
	return s
}

func (f *fakeSnippetRepo) GetByID(_ context.Context, id string) (*model.Snippet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	s, ok := f.snippets[id]
	if !ok {
		return nil, apperror.NotFound("snippet", id)
	}
	return cloneSnippet(s), nil
}

func (f *fakeSnippetRepo) List(_ context.Context, opts repository.ListOptions) (*repository.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}

	var matches []*model.Snippet
	for _, s := range f.snippets {
		switch {
		case opts.OwnerID != "" && s.UserID != opts.OwnerID:
		case opts.CommunityOnly && !s.InCommunity:
		case opts.FavoriteOnly && !s.IsFavorite:
		case opts.Category != "" && s.Category != opts.Category:
		case opts.Search != "" && !strings.Contains(strings.ToLower(s.Title), strings.ToLower(opts.Search)):
		default:
			matches = append(matches, s)
		}
	}
	sort.Slice(matches, func(i, j int) bool { return f.order[matches[i].ID] > f.order[matches[j].ID] })

	page := &repository.Page{Snippets: []model.Snippet{}, Total: len(matches)}
	if opts.Offset < len(matches) {
		matches = matches[opts.Offset:]
		if opts.Limit > 0 && opts.Limit < len(matches) {
			matches = matches[:opts.Limit]
		}
		for _, s := range matches {
			page.Snippets = append(page.Snippets, *cloneSnippet(s))
		}
	}
	return page, nil
}

func (f *fakeSnippetRepo) Update(_ context.Context, s *model.Snippet) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return f.failWith
	}
	stored, ok := f.snippets[s.ID]
	if !ok {
		return apperror.NotFound("snippet", s.ID)
	}
	stored.Title, stored.Description, stored.Code = s.Title, s.Description, s.Code
	stored.Language, stored.Category = s.Language, s.Category
	stored.Tags = append([]string(nil), s.Tags...)
	stored.Version++
	stored.UpdatedAt = f.clock.Now()
	s.Version = stored.Version
	s.UpdatedAt = stored.UpdatedAt
	return nil
}

func (f *fakeSnippetRepo) UpdateVisibility(_ context.Context, id string, p visibility.Patch, expectedVersion int64) (*model.Snippet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.visibilityCalls++
	f.lastPatch = p
	if f.failWith != nil {
		return nil, f.failWith
	}
	stored, ok := f.snippets[id]
	if !ok {
		return nil, apperror.NotFound("snippet", id)
	}
	if expectedVersion > 0 && stored.Version != expectedVersion {
		return nil, apperror.Conflict("snippet", id)
	}
	p.Apply(stored)
	stored.Version++
	stored.UpdatedAt = f.clock.Now()
	return cloneSnippet(stored), nil
}

func (f *fakeSnippetRepo) SetFavorite(_ context.Context, id string, favorite bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return f.failWith
	}
	s, ok := f.snippets[id]
	if !ok {
		return apperror.NotFound("snippet", id)
	}
	s.IsFavorite = favorite
	return nil
}

func (f *fakeSnippetRepo) IncrementUsage(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return f.failWith
	}
	s, ok := f.snippets[id]
	if !ok {
		return apperror.NotFound("snippet", id)
	}
	s.UsageCount++
	return nil
}

func (f *fakeSnippetRepo) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return f.failWith
	}
	if _, ok := f.snippets[id]; !ok {
		return apperror.NotFound("snippet", id)
	}
	delete(f.snippets, id)
	return nil
}

func (f *fakeSnippetRepo) ListByOwner(ctx context.Context, ownerID string) ([]model.Snippet, error) {
	page, err := f.List(ctx, repository.ListOptions{OwnerID: ownerID})
	if err != nil {
		return nil, err
	}
	return page.Snippets, nil
}

func (f *fakeSnippetRepo) ClearLapsedLinks(_ context.Context, now time.Time) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	var ids []string
	for id, s := range f.snippets {
		if s.IsPublic && !s.InCommunity && s.PublicExpiresAt != nil && !s.PublicExpiresAt.After(now) {
			s.IsPublic = false
			s.Version++
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// stored returns the raw stored copy, bypassing failWith.
func (f *fakeSnippetRepo) stored(id string) *model.Snippet {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.snippets[id]; ok {
		return cloneSnippet(s)
	}
	return nil
}

// =========================================================================
// FAKE USER REPOSITORY
// =========================================================================

type fakeUserRepo struct {
	mu      sync.Mutex
	users   map[string]*model.User
	byGHID  map[int64]string
	byEmail map[string]string
	nextID  int

	failWith error
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{
		users:   make(map[string]*model.User),
		byGHID:  make(map[int64]string),
		byEmail: make(map[string]string),
	}
}

func (f *fakeUserRepo) Upsert(_ context.Context, u *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return f.failWith
	}
	if u.GitHubID == nil {
		return apperror.ValidationFailed("githubId", "GitHub ID is required")
	}
	if id, ok := f.byGHID[*u.GitHubID]; ok {
		existing := f.users[id]
		existing.Login, existing.Email, existing.AvatarURL = u.Login, u.Email, u.AvatarURL
		*u = *existing
		return nil
	}
	f.nextID++
	u.ID = fmt.Sprintf("user-%d", f.nextID)
	stored := *u
	f.users[u.ID] = &stored
	f.byGHID[*u.GitHubID] = u.ID
	return nil
}

func (f *fakeUserRepo) CreateUser(_ context.Context, u *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return f.failWith
	}
	if _, taken := f.byEmail[u.Email]; taken {
		return apperror.Conflict("user", u.Email)
	}
	f.nextID++
	u.ID = fmt.Sprintf("user-%d", f.nextID)
	stored := *u
	f.users[u.ID] = &stored
	f.byEmail[u.Email] = u.ID
	return nil
}

func (f *fakeUserRepo) GetUserByID(_ context.Context, id string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	u, ok := f.users[id]
	if !ok {
		return nil, apperror.NotFound("user", id)
	}
	c := *u
	return &c, nil
}

func (f *fakeUserRepo) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	id, ok := f.byEmail[email]
	if !ok {
		return nil, apperror.NotFound("user", email)
	}
	c := *f.users[id]
	return &c, nil
}

func (f *fakeUserRepo) UpdatePassword(_ context.Context, id, hash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return f.failWith
	}
	u, ok := f.users[id]
	if !ok {
		return apperror.NotFound("user", id)
	}
	u.PasswordHash = hash
	return nil
}

// =========================================================================
// SHARED HELPERS
// =========================================================================

var (
	testNow   = time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
	errDBDown = errors.New("database is locked")
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func ptrTime(t time.Time) *time.Time { return &t }
