package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/sakif/snippet-vault/internal/apperror"
	"github.com/sakif/snippet-vault/internal/cache"
	"github.com/sakif/snippet-vault/internal/clock"
	"github.com/sakif/snippet-vault/internal/model"
	"github.com/sakif/snippet-vault/internal/repository"
	"github.com/sakif/snippet-vault/internal/visibility"
)

// Confirmation messages returned with each visibility change.
const (
	MsgLinkIssued  = "Share link created"
	MsgLinkRevoked = "Share link revoked"
	MsgPublished   = "Published to the community"
	MsgRetracted   = "Removed from the community"
)

// VisibilityResult is the outcome of a visibility operation.
type VisibilityResult struct {
	Snippet *model.Snippet  `json:"snippet"`
	View    visibility.View `json:"visibility"`
	Message string          `json:"message"`
	// Days is the link lifetime actually applied after clamping (IssueLink only).
	Days int `json:"days,omitempty"`
}

// VisibilityService applies the sharing state machine to stored snippets.
// Each operation is one read, one pure transition and one partial write.
// Nothing is retried: on failure the stored record is still the effective
// state and the error goes back to the caller.
type VisibilityService struct {
	repo   repository.SnippetRepository
	cache  cache.Invalidator
	clock  clock.Clock
	logger *slog.Logger
}

func NewVisibilityService(repo repository.SnippetRepository, inv cache.Invalidator, clk clock.Clock, logger *slog.Logger) *VisibilityService {
	return &VisibilityService{
		repo:   repo,
		cache:  inv,
		clock:  clk,
		logger: logger,
	}
}

// IssueLink creates or replaces the share link for days (clamped to
// visibility.MaxLinkDays). Non-positive days fail with ErrInvalidInput before
// the store is touched.
//
// expectedVersion > 0 makes the write conditional on the stored version.
func (v *VisibilityService) IssueLink(ctx context.Context, callerID, id string, days int, expectedVersion int64) (*VisibilityResult, error) {
	clamped, err := visibility.ClampLinkDays(days)
	if err != nil {
		return nil, err
	}

	res, err := v.apply(ctx, callerID, id, expectedVersion, "issuing share link", func(st visibility.State, now time.Time) (visibility.Patch, error) {
		return visibility.IssueLink(st, clamped, now)
	})
	if err != nil {
		return nil, err
	}
	res.Message = MsgLinkIssued
	res.Days = clamped
	return res, nil
}

// RevokeLink removes the share link. A community snippet stays public.
func (v *VisibilityService) RevokeLink(ctx context.Context, callerID, id string, expectedVersion int64) (*VisibilityResult, error) {
	res, err := v.apply(ctx, callerID, id, expectedVersion, "revoking share link", func(st visibility.State, _ time.Time) (visibility.Patch, error) {
		return visibility.RevokeLink(st), nil
	})
	if err != nil {
		return nil, err
	}
	res.Message = MsgLinkRevoked
	return res, nil
}

// Publish lists the snippet in the community catalog.
func (v *VisibilityService) Publish(ctx context.Context, callerID, id string, expectedVersion int64) (*VisibilityResult, error) {
	res, err := v.apply(ctx, callerID, id, expectedVersion, "publishing snippet", func(st visibility.State, _ time.Time) (visibility.Patch, error) {
		return visibility.Publish(st), nil
	})
	if err != nil {
		return nil, err
	}
	res.Message = MsgPublished
	return res, nil
}

// Retract removes the snippet from the catalog. An active link keeps it
// public.
func (v *VisibilityService) Retract(ctx context.Context, callerID, id string, expectedVersion int64) (*VisibilityResult, error) {
	res, err := v.apply(ctx, callerID, id, expectedVersion, "retracting snippet", func(st visibility.State, now time.Time) (visibility.Patch, error) {
		return visibility.Retract(st, now), nil
	})
	if err != nil {
		return nil, err
	}
	res.Message = MsgRetracted
	return res, nil
}

// State returns the current sharing view of a snippet the caller owns.
func (v *VisibilityService) State(ctx context.Context, callerID, id string) (*VisibilityResult, error) {
	snippet, err := v.loadOwned(ctx, callerID, id)
	if err != nil {
		return nil, err
	}
	return &VisibilityResult{Snippet: snippet, View: visibility.ViewOf(snippet, v.clock.Now())}, nil
}

type transition func(st visibility.State, now time.Time) (visibility.Patch, error)

func (v *VisibilityService) apply(ctx context.Context, callerID, id string, expectedVersion int64, op string, next transition) (*VisibilityResult, error) {
	snippet, err := v.loadOwned(ctx, callerID, id)
	if err != nil {
		return nil, err
	}
	if expectedVersion > 0 && snippet.Version != expectedVersion {
		return nil, apperror.Conflict("snippet", id)
	}

	now := v.clock.Now()
	patch, err := next(visibility.StateOf(snippet), now)
	if err != nil {
		return nil, err
	}

	updated, err := v.repo.UpdateVisibility(ctx, id, patch, expectedVersion)
	if err != nil {
		v.logger.Error("visibility update failed",
			slog.String("id", id),
			slog.String("op", op),
			slog.String("error", err.Error()),
		)
		return nil, storeErr(op, err)
	}

	if err := v.cache.Invalidate(ctx, id); err != nil {
		v.logger.Warn("cache invalidation failed", slog.String("id", id), slog.String("error", err.Error()))
	}

	view := visibility.ViewOf(updated, now)
	v.logger.Info("snippet visibility changed",
		slog.String("id", id),
		slog.String("op", op),
		slog.Any("fields", patch.Fields()),
		slog.String("link", string(view.LinkState)),
		slog.Bool("public", view.IsPublic),
	)
	return &VisibilityResult{Snippet: updated, View: view}, nil
}

// loadOwned only reveals existence to the owner.
func (v *VisibilityService) loadOwned(ctx context.Context, callerID, id string) (*model.Snippet, error) {
	if id == "" {
		return nil, apperror.ValidationFailed("id", "snippet ID is required")
	}
	snippet, err := v.repo.GetByID(ctx, id)
	if err != nil {
		return nil, storeErr("loading snippet", err)
	}
	if !snippet.IsOwnedBy(callerID) {
		if visibility.IsVisible(visibility.StateOf(snippet), v.clock.Now()) {
			return nil, apperror.Forbidden("only the owner can change sharing")
		}
		return nil, apperror.NotFound("snippet", id)
	}
	return snippet, nil
}
