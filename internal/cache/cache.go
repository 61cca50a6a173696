// Package cache holds the read-through cache for publicly served snippets
// and the invalidation hook services call after every mutation.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/sakif/snippet-vault/internal/clock"
	"github.com/sakif/snippet-vault/internal/model"
)

// Invalidator drops whatever is cached for one snippet.
type Invalidator interface {
	Invalidate(ctx context.Context, snippetID string) error
}

// SnippetCache caches snippets served on the public share endpoints.
// Get returns (nil, nil) on a miss.
type SnippetCache interface {
	Invalidator
	Get(ctx context.Context, id string) (*model.Snippet, error)
	Set(ctx context.Context, s *model.Snippet) error
}

// Noop satisfies SnippetCache without caching anything.
type Noop struct{}

func (Noop) Invalidate(context.Context, string) error { return nil }
func (Noop) Get(context.Context, string) (*model.Snippet, error) { return nil, nil }
func (Noop) Set(context.Context, *model.Snippet) error { return nil }

type memoryEntry struct {
	snippet   model.Snippet
	expiresAt time.Time
}

// Memory is a process-local SnippetCache with a fixed TTL. It is used when
// no Redis URL is configured.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	ttl     time.Duration
	clock   clock.Clock
}

func NewMemory(ttl time.Duration, c clock.Clock) *Memory {
	return &Memory{
		entries: make(map[string]memoryEntry),
		ttl:     ttl,
		clock:   c,
	}
}

func (m *Memory) Get(_ context.Context, id string) (*model.Snippet, error) {
	m.mu.RLock()
	e, ok := m.entries[id]
	m.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	if !m.clock.Now().Before(e.expiresAt) {
		m.mu.Lock()
		delete(m.entries, id)
		m.mu.Unlock()
		return nil, nil
	}
	s := e.snippet
	s.Tags = append([]string(nil), e.snippet.Tags...)
	return &s, nil
}

func (m *Memory) Set(_ context.Context, s *model.Snippet) error {
	cp := *s
	cp.Tags = append([]string(nil), s.Tags...)

	m.mu.Lock()
	m.entries[s.ID] = memoryEntry{snippet: cp, expiresAt: m.clock.Now().Add(m.ttl)}
	m.mu.Unlock()
	return nil
}

func (m *Memory) Invalidate(_ context.Context, id string) error {
	m.mu.Lock()
	delete(m.entries, id)
	m.mu.Unlock()
	return nil
}

// Len reports the number of entries, expired ones included.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Recorder records invalidated ids. Handy in tests.
type Recorder struct {
	mu  sync.Mutex
	ids []string
	Err error
}

func (r *Recorder) Invalidate(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids = append(r.ids, id)
	return r.Err
}

// IDs returns a copy of every id passed to Invalidate, in call order.
func (r *Recorder) IDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.ids...)
}
