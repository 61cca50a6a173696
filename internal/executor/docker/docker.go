package docker

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"

	"github.com/sakif/snippet-vault/internal/executor"
)

// Executor implements executor.Executor with one container pool per runtime.
type Executor struct {
	cli      *client.Client
	config   Config
	logger   *slog.Logger
	runtimes map[string]Runtime
	pools    map[string]*Pool
}

// New connects to the Docker daemon, pulls every runtime image and starts
// the pools. It fails if the daemon is unreachable.
func New(cfg Config, logger *slog.Logger) (*Executor, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}

	e := &Executor{
		cli:      cli,
		config:   cfg,
		logger:   logger,
		runtimes: make(map[string]Runtime, len(cfg.Runtimes)),
		pools:    make(map[string]*Pool, len(cfg.Runtimes)),
	}

	for _, rt := range cfg.Runtimes {
		if err := e.pullImage(rt.Image); err != nil {
			e.Close()
			return nil, err
		}
		pool := NewPool(cli, rt.Image, cfg, logger.With(slog.String("language", rt.Language)))
		pool.Start()
		e.runtimes[rt.Language] = rt
		e.pools[rt.Language] = pool
	}

	return e, nil
}

func (e *Executor) pullImage(ref string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	e.logger.Info("ensuring docker image is available", slog.String("image", ref))
	reader, err := e.cli.ImagePull(ctx, ref, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("failed to pull image %s: %w", ref, err)
	}
	defer reader.Close()
	// the pull only completes once the progress stream is drained
	io.Copy(io.Discard, reader)
	return nil
}

// Close stops every pool and the docker client.
func (e *Executor) Close() error {
	for _, p := range e.pools {
		p.Stop()
	}
	return e.cli.Close()
}

func (e *Executor) Supports(language string) bool {
	_, ok := e.runtimes[language]
	return ok
}

// Execute runs req.Code in a fresh pre-warmed container for req.Language.
// The container is discarded afterwards.
func (e *Executor) Execute(ctx context.Context, req executor.Request) (*executor.Result, error) {
	rt, ok := e.runtimes[req.Language]
	if !ok {
		return nil, fmt.Errorf("%w: %s", executor.ErrUnsupportedLanguage, req.Language)
	}
	start := time.Now()

	containerID, err := e.pools[req.Language].GetContainer(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get container from pool: %w", err)
	}
	defer func() {
		cleanupCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := e.cli.ContainerRemove(cleanupCtx, containerID, container.RemoveOptions{Force: true}); err != nil {
			e.logger.Error("failed to remove container", slog.String("id", containerID), slog.String("error", err.Error()))
		}
	}()

	executeCtx, executeCancel := context.WithTimeout(ctx, e.config.Timeout)
	defer executeCancel()

	execResp, err := e.cli.ContainerExecCreate(executeCtx, containerID, container.ExecOptions{
		AttachStdout: true,
		AttachStderr: true,
		Cmd:          rt.Command(req.Code),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create exec: %w", err)
	}

	attachResp, err := e.cli.ContainerExecAttach(executeCtx, execResp.ID, container.ExecStartOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to attach to exec: %w", err)
	}
	defer attachResp.Close()

	stdout := newCappedBuffer(e.config.MaxOutputBytes)
	stderr := newCappedBuffer(e.config.MaxOutputBytes)

	done := make(chan struct{})
	go func() {
		_, _ = stdcopy.StdCopy(stdout, stderr, attachResp.Reader)
		close(done)
	}()

	exitCode := 0
	select {
	case <-done:
		inspect, err := e.cli.ContainerExecInspect(ctx, execResp.ID)
		if err == nil {
			exitCode = inspect.ExitCode
		}
	case <-executeCtx.Done():
		exitCode = executor.TimeoutExitCode
		stderr.WriteString("\nExecution timed out.\n")
	}

	return &executor.Result{
		Stdout:    stdout.String(),
		Stderr:    stderr.String(),
		ExitCode:  exitCode,
		Duration:  time.Since(start),
		Truncated: stdout.truncated || stderr.truncated,
	}, nil
}
