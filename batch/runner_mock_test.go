package batch

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"mp4conv/config"

	"github.com/stretchr/testify/require"
)

// mockRunner is a fake encoder: it records every invocation and writes a
// placeholder file at the output path (the last argument).
type mockRunner struct {
	mu      sync.Mutex
	calls   [][]string
	runFunc func(ctx context.Context, args []string) (string, error)
}

func (m *mockRunner) Run(ctx context.Context, args []string) (string, error) {
	m.mu.Lock()
	m.calls = append(m.calls, append([]string(nil), args...))
	m.mu.Unlock()

	if m.runFunc != nil {
		return m.runFunc(ctx, args)
	}
	return "mock output", writeOutput(args)
}

func (m *mockRunner) Calls() [][]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]string(nil), m.calls...)
}

func writeOutput(args []string) error {
	return os.WriteFile(args[len(args)-1], []byte("mp4"), 0o644)
}

func testConfig() *config.Config {
	return &config.Config{VideoCodec: "libx264", AudioCodec: "aac"}
}

func newTestExecutor(t *testing.T, runner ProcessRunner) *Executor {
	t.Helper()
	e := NewExecutor(testConfig(), runner)
	e.lockDir = t.TempDir()
	return e
}

// touch creates empty files under dir and returns their absolute paths.
func touch(t *testing.T, dir string, names ...string) []string {
	t.Helper()
	paths := make([]string, len(names))
	for i, n := range names {
		p := filepath.Join(dir, n)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, nil, 0o644))
		paths[i] = p
	}
	return paths
}

func dirNames(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}
