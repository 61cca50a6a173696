// Package executor runs snippet code in an isolated sandbox.
package executor

import (
	"context"
	"errors"
	"time"
)

// ErrUnsupportedLanguage is returned when no runtime exists for a language.
var ErrUnsupportedLanguage = errors.New("executor: unsupported language")

// TimeoutExitCode is reported when a run is killed for exceeding its time
// limit, matching coreutils timeout(1).
const TimeoutExitCode = 124

// Request is one run of a snippet.
type Request struct {
	Language string `json:"language"`
	Code     string `json:"code"`
}

// Result is the captured output of a run.
type Result struct {
	Stdout    string        `json:"stdout"`
	Stderr    string        `json:"stderr"`
	ExitCode  int           `json:"exitCode"`
	Duration  time.Duration `json:"duration"`
	Truncated bool          `json:"truncated,omitempty"`
}

// Executor runs code in an isolated environment.
type Executor interface {
	Execute(ctx context.Context, req Request) (*Result, error)
	// Supports reports whether a runtime is configured for language.
	Supports(language string) bool
}
