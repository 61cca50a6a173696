package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/snippet-vault/internal/apperror"
	"github.com/sakif/snippet-vault/internal/cache"
	"github.com/sakif/snippet-vault/internal/clock"
	"github.com/sakif/snippet-vault/internal/executor"
	"github.com/sakif/snippet-vault/internal/model"
)

type fakeExecutor struct {
	languages map[string]bool
	got       executor.Request
	err       error
}

func (f *fakeExecutor) Supports(language string) bool { return f.languages[language] }

func (f *fakeExecutor) Execute(_ context.Context, req executor.Request) (*executor.Result, error) {
	f.got = req
	if f.err != nil {
		return nil, f.err
	}
	return &executor.Result{Stdout: "ok\n", Duration: 5 * time.Millisecond}, nil
}

func newRunFixture(t *testing.T, exec executor.Executor) (*RunService, *fakeSnippetRepo) {
	t.Helper()
	mc := clock.NewMock(testNow)
	repo := newFakeSnippetRepo(mc)
	snippets := NewSnippetService(repo, cache.Noop{}, mc, discardLogger())
	return NewRunService(snippets, exec, discardLogger()), repo
}

func TestRun(t *testing.T) {
	exec := &fakeExecutor{languages: map[string]bool{"python": true}}
	svc, repo := newRunFixture(t, exec)
	repo.put(&model.Snippet{ID: "py", UserID: "alice", Language: "python", Code: "print('ok')"})
	repo.put(&model.Snippet{ID: "sql", UserID: "alice", Language: "sql", Code: "select 1"})

	res, err := svc.Run(context.Background(), "alice", "py")
	require.NoError(t, err)
	assert.Equal(t, "ok\n", res.Stdout)
	assert.Equal(t, executor.Request{Language: "python", Code: "print('ok')"}, exec.got)

	_, err = svc.Run(context.Background(), "alice", "sql")
	assert.ErrorIs(t, err, apperror.ErrValidation)

	_, err = svc.Run(context.Background(), "bob", "py")
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestRun_Disabled(t *testing.T) {
	svc, _ := newRunFixture(t, nil)

	assert.False(t, svc.Enabled())
	_, err := svc.Run(context.Background(), "alice", "py")
	assert.ErrorIs(t, err, ErrExecutorDisabled)
}

func TestRun_ExecutorError(t *testing.T) {
	boom := errors.New("daemon gone")
	svc, repo := newRunFixture(t, &fakeExecutor{languages: map[string]bool{"bash": true}, err: boom})
	repo.put(&model.Snippet{ID: "sh", UserID: "alice", Language: "bash", Code: "echo"})

	_, err := svc.Run(context.Background(), "alice", "sh")
	assert.ErrorIs(t, err, boom)
}
