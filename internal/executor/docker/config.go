package docker

import (
	"time"
)

// Runtime describes how one language is executed.
type Runtime struct {
	Language string
	Image    string
	// Command builds the exec argv for the given source code.
	Command func(code string) []string
}

// Config holds the sandbox limits shared by every runtime.
type Config struct {
	Runtimes []Runtime
	// MemoryLimit is the container memory cap in bytes.
	MemoryLimit int64
	// CPULimit is the number of CPUs a container may use.
	CPULimit float64
	Timeout  time.Duration
	// PoolSize is the number of pre-warmed containers kept per runtime.
	PoolSize int
	// MaxOutputBytes caps stdout and stderr separately.
	MaxOutputBytes int
}

// DefaultRuntimes covers the catalog languages that run without a compile step.
func DefaultRuntimes() []Runtime {
	return []Runtime{
		{
			Language: "python",
			Image:    "python:3.12-alpine",
			Command:  func(code string) []string { return []string{"python", "-c", code} },
		},
		{
			Language: "javascript",
			Image:    "node:22-alpine",
			Command:  func(code string) []string { return []string{"node", "-e", code} },
		},
		{
			Language: "bash",
			Image:    "bash:5.2",
			Command:  func(code string) []string { return []string{"bash", "-c", code} },
		},
	}
}

func DefaultConfig() Config {
	return Config{
		Runtimes:       DefaultRuntimes(),
		MemoryLimit:    128 * 1024 * 1024,
		CPULimit:       0.5,
		Timeout:        5 * time.Second,
		PoolSize:       2,
		MaxOutputBytes: 64 * 1024,
	}
}
