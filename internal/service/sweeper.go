package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/sakif/snippet-vault/internal/cache"
	"github.com/sakif/snippet-vault/internal/clock"
	"github.com/sakif/snippet-vault/internal/repository"
)

// ExpirySweeper periodically rewrites is_public for snippets whose share
// link has lapsed and that are not in the community, so the stored flag
// catches up with the derived one. Expiry timestamps are kept.
//
// Reads never depend on the sweeper: public access is always decided from
// the expiry at request time.
type ExpirySweeper struct {
	repo     repository.SnippetRepository
	cache    cache.Invalidator
	clock    clock.Clock
	interval time.Duration
	logger   *slog.Logger
}

func NewExpirySweeper(repo repository.SnippetRepository, inv cache.Invalidator, clk clock.Clock, interval time.Duration, logger *slog.Logger) *ExpirySweeper {
	return &ExpirySweeper{
		repo:     repo,
		cache:    inv,
		clock:    clk,
		interval: interval,
		logger:   logger,
	}
}

// Run sweeps once immediately and then every interval until ctx is done.
func (s *ExpirySweeper) Run(ctx context.Context) {
	s.logger.Info("expiry sweeper started", slog.Duration("interval", s.interval))

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if _, err := s.SweepOnce(ctx); err != nil && ctx.Err() == nil {
			s.logger.Error("expiry sweep failed", slog.String("error", err.Error()))
		}
		select {
		case <-ctx.Done():
			s.logger.Info("expiry sweeper stopped")
			return
		case <-ticker.C:
		}
	}
}

// SweepOnce clears lapsed links and returns how many snippets changed.
func (s *ExpirySweeper) SweepOnce(ctx context.Context) (int, error) {
	ids, err := s.repo.ClearLapsedLinks(ctx, s.clock.Now())
	if err != nil {
		return 0, storeErr("sweeping lapsed links", err)
	}
	for _, id := range ids {
		if err := s.cache.Invalidate(ctx, id); err != nil {
			s.logger.Warn("cache invalidation failed", slog.String("id", id), slog.String("error", err.Error()))
		}
	}
	if len(ids) > 0 {
		s.logger.Info("lapsed share links unpublished", slog.Int("count", len(ids)))
	}
	return len(ids), nil
}
