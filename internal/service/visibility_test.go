package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/snippet-vault/internal/apperror"
	"github.com/sakif/snippet-vault/internal/cache"
	"github.com/sakif/snippet-vault/internal/clock"
	"github.com/sakif/snippet-vault/internal/model"
	"github.com/sakif/snippet-vault/internal/visibility"
)

type visibilityFixture struct {
	svc   *VisibilityService
	repo  *fakeSnippetRepo
	inv   *cache.Recorder
	clock *clock.Mock
}

func newVisibilityFixture(t *testing.T) *visibilityFixture {
	t.Helper()
	mc := clock.NewMock(testNow)
	repo := newFakeSnippetRepo(mc)
	inv := &cache.Recorder{}
	repo.put(&model.Snippet{ID: "s1", UserID: "alice", Title: "t", Code: "c"})
	return &visibilityFixture{
		svc:   NewVisibilityService(repo, inv, mc, discardLogger()),
		repo:  repo,
		inv:   inv,
		clock: mc,
	}
}

func TestVisibility_IssueLink(t *testing.T) {
	f := newVisibilityFixture(t)

	res, err := f.svc.IssueLink(context.Background(), "alice", "s1", 7, 0)
	require.NoError(t, err)

	assert.Equal(t, MsgLinkIssued, res.Message)
	assert.Equal(t, 7, res.Days)
	assert.Equal(t, visibility.LinkActive, res.View.LinkState)
	assert.Equal(t, "/share/s1", res.View.SharePath)
	assert.Equal(t, int64(7*24*3600), res.View.ExpiresInSeconds)

	stored := f.repo.stored("s1")
	assert.True(t, stored.IsPublic)
	assert.False(t, stored.InCommunity)
	require.NotNil(t, stored.PublicExpiresAt)
	assert.True(t, stored.PublicExpiresAt.Equal(testNow.Add(7*24*time.Hour)))

	assert.Equal(t, []string{"s1"}, f.inv.IDs())
}

func TestVisibility_IssueLinkClamps(t *testing.T) {
	f := newVisibilityFixture(t)

	res, err := f.svc.IssueLink(context.Background(), "alice", "s1", 100, 0)
	require.NoError(t, err)
	assert.Equal(t, visibility.MaxLinkDays, res.Days)
	assert.True(t, f.repo.stored("s1").PublicExpiresAt.Equal(testNow.Add(15*24*time.Hour)))
}

func TestVisibility_IssueLinkInvalidDaysNeverTouchesStore(t *testing.T) {
	for _, days := range []int{0, -3} {
		f := newVisibilityFixture(t)
		f.repo.failWith = errDBDown

		_, err := f.svc.IssueLink(context.Background(), "alice", "s1", days, 0)

		assert.ErrorIs(t, err, apperror.ErrInvalidInput)
		assert.Zero(t, f.repo.visibilityCalls)
		assert.Empty(t, f.inv.IDs())
	}
}

func TestVisibility_RevokeKeepsCommunity(t *testing.T) {
	f := newVisibilityFixture(t)
	ctx := context.Background()

	_, err := f.svc.Publish(ctx, "alice", "s1", 0)
	require.NoError(t, err)
	_, err = f.svc.IssueLink(ctx, "alice", "s1", 3, 0)
	require.NoError(t, err)

	res, err := f.svc.RevokeLink(ctx, "alice", "s1", 0)
	require.NoError(t, err)

	assert.Equal(t, MsgLinkRevoked, res.Message)
	stored := f.repo.stored("s1")
	assert.Nil(t, stored.PublicExpiresAt)
	assert.True(t, stored.InCommunity)
	assert.True(t, stored.IsPublic)
	assert.Equal(t, visibility.LinkNone, res.View.LinkState)
}

func TestVisibility_RetractKeepsActiveLink(t *testing.T) {
	f := newVisibilityFixture(t)
	ctx := context.Background()

	_, _ = f.svc.IssueLink(ctx, "alice", "s1", 2, 0)
	_, _ = f.svc.Publish(ctx, "alice", "s1", 0)

	res, err := f.svc.Retract(ctx, "alice", "s1", 0)
	require.NoError(t, err)

	assert.Equal(t, MsgRetracted, res.Message)
	stored := f.repo.stored("s1")
	assert.False(t, stored.InCommunity)
	assert.True(t, stored.IsPublic, "active link keeps it public")
	assert.NotNil(t, stored.PublicExpiresAt)
}

func TestVisibility_RetractAfterLinkLapsed(t *testing.T) {
	f := newVisibilityFixture(t)
	ctx := context.Background()

	_, _ = f.svc.IssueLink(ctx, "alice", "s1", 1, 0)
	_, _ = f.svc.Publish(ctx, "alice", "s1", 0)
	f.clock.Advance(25 * time.Hour)

	res, err := f.svc.Retract(ctx, "alice", "s1", 0)
	require.NoError(t, err)

	stored := f.repo.stored("s1")
	assert.False(t, stored.IsPublic)
	assert.NotNil(t, stored.PublicExpiresAt, "expired link stays observable")
	assert.Equal(t, visibility.LinkExpired, res.View.LinkState)
}

func TestVisibility_PatchesOnlyTouchTheirChannel(t *testing.T) {
	f := newVisibilityFixture(t)
	ctx := context.Background()

	_, _ = f.svc.Publish(ctx, "alice", "s1", 0)
	assert.Equal(t, []string{"is_public", "in_community"}, f.repo.lastPatch.Fields())

	_, _ = f.svc.IssueLink(ctx, "alice", "s1", 1, 0)
	assert.Equal(t, []string{"is_public", "public_expires_at"}, f.repo.lastPatch.Fields())
}

func TestVisibility_Ownership(t *testing.T) {
	f := newVisibilityFixture(t)
	ctx := context.Background()

	_, err := f.svc.Publish(ctx, "bob", "s1", 0)
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	_, err = f.svc.Publish(ctx, "alice", "s1", 0)
	require.NoError(t, err)

	_, err = f.svc.Retract(ctx, "bob", "s1", 0)
	assert.ErrorIs(t, err, apperror.ErrForbidden)
	assert.True(t, f.repo.stored("s1").InCommunity)

	_, err = f.svc.Publish(ctx, "alice", "missing", 0)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestVisibility_VersionMismatch(t *testing.T) {
	f := newVisibilityFixture(t)
	ctx := context.Background()

	res, err := f.svc.Publish(ctx, "alice", "s1", 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.Snippet.Version)

	_, err = f.svc.Retract(ctx, "alice", "s1", 1)
	assert.ErrorIs(t, err, apperror.ErrConflict)
	assert.True(t, f.repo.stored("s1").InCommunity)
}

func TestVisibility_StoreFailure(t *testing.T) {
	f := newVisibilityFixture(t)
	ctx := context.Background()
	before := f.repo.stored("s1")

	// load succeeds, the write fails
	failing := &failingWriteRepo{fakeSnippetRepo: f.repo}
	svc := NewVisibilityService(failing, f.inv, f.clock, discardLogger())

	_, err := svc.Publish(ctx, "alice", "s1", 0)

	assert.ErrorIs(t, err, apperror.ErrPersistence)
	assert.ErrorIs(t, err, errDBDown)
	assert.Equal(t, before.InCommunity, f.repo.stored("s1").InCommunity)
	assert.Empty(t, f.inv.IDs(), "no invalidation without a write")
}

func TestVisibility_InvalidationFailureDoesNotFailOperation(t *testing.T) {
	f := newVisibilityFixture(t)
	f.inv.Err = errDBDown

	_, err := f.svc.Publish(context.Background(), "alice", "s1", 0)
	assert.NoError(t, err)
}

func TestVisibility_State(t *testing.T) {
	f := newVisibilityFixture(t)

	res, err := f.svc.State(context.Background(), "alice", "s1")
	require.NoError(t, err)
	assert.Equal(t, visibility.LinkNone, res.View.LinkState)
	assert.False(t, res.View.IsPublic)
}

// failingWriteRepo reads normally but fails every visibility write.
type failingWriteRepo struct {
	*fakeSnippetRepo
}

func (r *failingWriteRepo) UpdateVisibility(context.Context, string, visibility.Patch, int64) (*model.Snippet, error) {
	return nil, errDBDown
}
