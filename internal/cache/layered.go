package cache

import (
	"context"
	"errors"

	"github.com/sakif/snippet-vault/internal/model"
)

// Layered puts a process-local cache in front of a shared one. Reads try
// Local first and fill it from Shared on a hit; writes and invalidations go
// to both. Other instances learn about invalidations through the shared
// backend and call EvictLocal.
type Layered struct {
	Local  *Memory
	Shared SnippetCache
}

func (l *Layered) Get(ctx context.Context, id string) (*model.Snippet, error) {
	if s, _ := l.Local.Get(ctx, id); s != nil {
		return s, nil
	}
	s, err := l.Shared.Get(ctx, id)
	if err != nil || s == nil {
		return nil, err
	}
	_ = l.Local.Set(ctx, s)
	return s, nil
}

func (l *Layered) Set(ctx context.Context, s *model.Snippet) error {
	_ = l.Local.Set(ctx, s)
	return l.Shared.Set(ctx, s)
}

// Invalidate always clears the local entry, even if the shared backend fails.
func (l *Layered) Invalidate(ctx context.Context, id string) error {
	return errors.Join(l.Local.Invalidate(ctx, id), l.Shared.Invalidate(ctx, id))
}

// EvictLocal drops id from the local tier only. It is the callback for
// invalidations published by other instances.
func (l *Layered) EvictLocal(id string) {
	_ = l.Local.Invalidate(context.Background(), id)
}
