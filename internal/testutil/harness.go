package testutil

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vk/flowplan/internal/app"
)

// SafeBuffer is a thread-safe buffer for capturing log output in tests.
type SafeBuffer struct {
	b  bytes.Buffer
	mu sync.Mutex
}

// Write implements the io.Writer interface for SafeBuffer.
func (b *SafeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.Write(p)
}

// String implements the fmt.Stringer interface for SafeBuffer.
func (b *SafeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.String()
}

// HarnessResult holds the outcomes of an integration test run.
type HarnessResult struct {
	LogOutput string
	Output    string
	Plans     []*app.Plan
	Err       error
	Dir       string
}

// Plan returns the plan of the named flow, failing the test if it is absent.
func (r *HarnessResult) Plan(t *testing.T, flow string) *app.Plan {
	t.Helper()
	for _, p := range r.Plans {
		if p.Flow == flow {
			return p
		}
	}
	require.FailNow(t, "flow not planned", "flow %q", flow)
	return nil
}

// WriteFiles writes files (relative path to content) below a fresh temporary
// directory and returns it.
func WriteFiles(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return dir
}

// RunIntegrationTest provides a standardized harness for running integration tests
// using a default background context.
func RunIntegrationTest(t *testing.T, files map[string]string, cfg app.Config) *HarnessResult {
	t.Helper()
	return RunIntegrationTestWithContext(context.Background(), t, files, cfg)
}

// RunIntegrationTestWithContext writes files to a temporary directory, plans
// every flow found there with cfg and renders the report. Definition paths in
// cfg default to that directory.
func RunIntegrationTestWithContext(ctx context.Context, t *testing.T, files map[string]string, cfg app.Config) *HarnessResult {
	t.Helper()

	dir := WriteFiles(t, files)
	if len(cfg.DefinitionPaths) == 0 {
		cfg.DefinitionPaths = []string{dir}
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "debug"
	}

	appConfig, err := app.NewConfig(cfg)
	require.NoError(t, err)

	logBuffer := &SafeBuffer{}
	var out bytes.Buffer
	result := &HarnessResult{Dir: dir}

	testApp, err := app.NewApp(&out, logBuffer, appConfig, nil)
	if err == nil {
		result.Plans, err = testApp.Plan(ctx)
	}
	if err == nil {
		err = testApp.Run(ctx)
	}
	result.Err = err
	result.Output = out.String()
	result.LogOutput = logBuffer.String()

	if os.Getenv("FLOWPLAN_TEST_LOGS") == "true" {
		t.Logf("--- Full Log Output for %s ---\n%s", t.Name(), result.LogOutput)
	}
	return result
}
