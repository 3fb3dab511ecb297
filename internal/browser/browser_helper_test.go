// internal/browser/browser_helper_test.go
package browser

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"golang.org/x/sync/semaphore"

	"github.com/rmvrefund/rmv-refund/internal/config"
)

var (
	// globalProcessSemaphore limits the number of concurrent browser processes across all tests.
	globalProcessSemaphore     *semaphore.Weighted
	globalProcessSemaphoreOnce sync.Once
)

const (
	maxTestConcurrency        = 2
	defaultBrowserTestTimeout = 90 * time.Second
	semaphoreAcquireTimeout   = 30 * time.Second
	shutdownTimeout           = 15 * time.Second
)

func getGlobalProcessSemaphore() *semaphore.Weighted {
	globalProcessSemaphoreOnce.Do(func() {
		globalProcessSemaphore = semaphore.NewWeighted(maxTestConcurrency)
	})
	return globalProcessSemaphore
}

// findChrome reports whether a Chrome binary is reachable, either through
// RMV_BROWSER_EXEC_PATH or one of the names chromedp looks for.
func findChrome() (string, bool) {
	if p := os.Getenv("RMV_BROWSER_EXEC_PATH"); p != "" {
		return p, true
	}
	for _, name := range []string{"google-chrome", "google-chrome-stable", "chromium", "chromium-browser", "chrome", "headless-shell"} {
		if p, err := exec.LookPath(name); err == nil {
			return p, true
		}
	}
	return "", false
}

// testFixture is a sandboxed browser session for one test.
type testFixture struct {
	Config  config.BrowserConfig
	Manager *Manager
	Session *Session
	Logger  *zap.Logger
	RootCtx context.Context
}

// newTestFixture starts a headless Chrome with short budgets. It skips the
// test under -short or when no browser is installed.
func newTestFixture(t *testing.T, configurators ...func(*config.BrowserConfig)) *testFixture {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping browser integration test in short mode")
	}
	execPath, ok := findChrome()
	if !ok {
		t.Skip("no Chrome binary found")
	}

	logger := zaptest.NewLogger(t).With(zap.String("test", t.Name()))

	deadline, ok := t.Deadline()
	if !ok {
		deadline = time.Now().Add(defaultBrowserTestTimeout)
	}
	rootCtx, rootCancel := context.WithDeadline(context.Background(), deadline.Add(-time.Second))
	t.Cleanup(rootCancel)

	cfg := config.NewDefaultConfig().Browser()
	cfg.Headless = true
	cfg.ExecPath = execPath
	cfg.UserDataDir = t.TempDir()
	cfg.ShortTimeout = 3 * time.Second
	cfg.LongTimeout = 5 * time.Second
	cfg.CookieBannerTimeout = time.Second
	cfg.PollInterval = 50 * time.Millisecond
	for _, configure := range configurators {
		configure(&cfg)
	}

	sem := getGlobalProcessSemaphore()
	acquireCtx, acquireCancel := context.WithTimeout(rootCtx, semaphoreAcquireTimeout)
	err := sem.Acquire(acquireCtx, 1)
	acquireCancel()
	require.NoError(t, err, "failed to acquire browser semaphore")
	t.Cleanup(func() { sem.Release(1) })

	manager := NewManager(rootCtx, logger, cfg)
	t.Cleanup(func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := manager.Shutdown(shutdownCtx); err != nil {
			t.Logf("Warning: error during browser manager shutdown: %v", err)
		}
	})

	session, err := manager.NewSession(rootCtx)
	require.NoError(t, err, "failed to start browser session")

	return &testFixture{
		Config:  cfg,
		Manager: manager,
		Session: session,
		Logger:  logger,
		RootCtx: rootCtx,
	}
}

// createStaticTestServer returns a server that serves the given HTML content.
func createStaticTestServer(t *testing.T, htmlContent string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprintln(w, htmlContent)
	}))
	t.Cleanup(server.Close)
	return server
}
