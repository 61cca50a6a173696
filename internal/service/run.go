package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sakif/snippet-vault/internal/apperror"
	"github.com/sakif/snippet-vault/internal/executor"
)

// ErrExecutorDisabled is returned when no sandbox is configured.
var ErrExecutorDisabled = errors.New("code execution is not enabled on this server")

// RunService executes snippets the caller can see in the sandbox.
type RunService struct {
	snippets *SnippetService
	exec     executor.Executor
	logger   *slog.Logger
}

// NewRunService accepts a nil executor; every Run then fails with
// ErrExecutorDisabled.
func NewRunService(snippets *SnippetService, exec executor.Executor, logger *slog.Logger) *RunService {
	return &RunService{snippets: snippets, exec: exec, logger: logger}
}

// Enabled reports whether a sandbox is available.
func (r *RunService) Enabled() bool {
	return r.exec != nil
}

// Run executes a stored snippet.
func (r *RunService) Run(ctx context.Context, callerID, id string) (*executor.Result, error) {
	if r.exec == nil {
		return nil, ErrExecutorDisabled
	}
	snippet, err := r.snippets.Get(ctx, callerID, id)
	if err != nil {
		return nil, err
	}
	if !r.exec.Supports(snippet.Language) {
		return nil, apperror.ValidationFailed("language",
			fmt.Sprintf("snippets in %q cannot be run", snippet.Language))
	}

	res, err := r.exec.Execute(ctx, executor.Request{Language: snippet.Language, Code: snippet.Code})
	if err != nil {
		r.logger.Error("execution failed", slog.String("id", id), slog.String("error", err.Error()))
		return nil, fmt.Errorf("running snippet %s: %w", id, err)
	}

	r.logger.Info("snippet executed",
		slog.String("id", id),
		slog.String("language", snippet.Language),
		slog.Int("exitCode", res.ExitCode),
		slog.Duration("duration", res.Duration),
	)
	return res, nil
}
