// internal/browser/manager.go
package browser

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/rmvrefund/rmv-refund/api/schemas"
	"github.com/rmvrefund/rmv-refund/internal/config"
)

const shutdownGracePeriod = 10 * time.Second

// Manager owns the Chrome process for one claim run. The process is started
// lazily by NewSession, and a Manager hands out at most one session.
type Manager struct {
	logger *zap.Logger
	cfg    config.BrowserConfig

	// allocatorCtx manages the browser process. The session's tab context is derived from it.
	allocatorCtx    context.Context
	allocatorCancel context.CancelFunc

	mu      sync.Mutex
	session *Session
	closed  bool
}

// NewManager prepares the exec allocator. No process is started yet.
func NewManager(ctx context.Context, logger *zap.Logger, cfg config.BrowserConfig) *Manager {
	m := &Manager{
		logger: logger.Named("browser_manager"),
		cfg:    cfg,
	}
	m.allocatorCtx, m.allocatorCancel = chromedp.NewExecAllocator(ctx, AllocatorOptions(cfg)...)
	return m
}

// allocatorFlags collects the command line switches passed to Chrome. A
// boolean false removes a switch that chromedp would otherwise set.
func allocatorFlags(cfg config.BrowserConfig) map[string]interface{} {
	flags := map[string]interface{}{
		"headless":           cfg.Headless,
		"disable-gpu":        cfg.Headless,
		"disable-extensions": true,
		"lang":               "de-DE",
	}

	// Add custom arguments from the config file.
	for _, arg := range cfg.Args {
		key, value, found := strings.Cut(strings.TrimPrefix(arg, "--"), "=")
		if key == "" {
			continue
		}
		if found {
			flags[key] = value
		} else {
			flags[key] = true
		}
	}

	// Flags required for running inside containers (e.g., Docker on Linux).
	if runtime.GOOS == "linux" {
		for _, name := range []string{"no-sandbox", "disable-dev-shm-usage", "disable-setuid-sandbox"} {
			if _, set := flags[name]; !set {
				flags[name] = true
			}
		}
	}
	return flags
}

// AllocatorOptions assembles the exec allocator options for cfg on top of
// chromedp's defaults.
func AllocatorOptions(cfg config.BrowserConfig) []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)

	for name, value := range allocatorFlags(cfg) {
		opts = append(opts, chromedp.Flag(name, value))
	}
	if cfg.WindowWidth > 0 && cfg.WindowHeight > 0 {
		opts = append(opts, chromedp.WindowSize(cfg.WindowWidth, cfg.WindowHeight))
	}
	if cfg.UserDataDir != "" {
		opts = append(opts, chromedp.UserDataDir(cfg.UserDataDir))
	}
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}
	return opts
}

// NewSession starts Chrome, opens its first tab and returns the session
// bound to it. Launch failures are navigation errors.
func (m *Manager) NewSession(ctx context.Context) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, fmt.Errorf("browser manager is shut down")
	}
	if m.session != nil {
		return nil, fmt.Errorf("a browser session is already open for this run")
	}

	m.logger.Info("Launching browser...", zap.Bool("headless", m.cfg.Headless))
	tabCtx, tabCancel := chromedp.NewContext(m.allocatorCtx,
		chromedp.WithErrorf(m.logger.Sugar().Debugf),
	)

	// The first Run allocates the process and binds it to the context it is
	// given, so it must get the tab context itself. The launch budget is
	// enforced from outside.
	launchCtx, launchCancel := context.WithTimeout(ctx, m.cfg.NavigationTimeout)
	defer launchCancel()

	launched := make(chan error, 1)
	go func() { launched <- chromedp.Run(tabCtx) }()

	var err error
	select {
	case err = <-launched:
	case <-launchCtx.Done():
		tabCancel()
		<-launched
		err = launchCtx.Err()
	}
	if err != nil {
		tabCancel()
		if ctx.Err() != nil {
			return nil, fmt.Errorf("browser launch canceled: %w", ctx.Err())
		}
		return nil, schemas.NewClaimError(schemas.KindNavigation, "launch browser", "",
			fmt.Errorf("browser failed to start or respond: %w", err))
	}

	s := newSession(tabCtx, tabCancel, m.cfg, m.logger)
	s.onClose = func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.session = nil
	}
	m.session = s
	m.logger.Info("Browser launched successfully and is responsive.")
	return s, nil
}

// Shutdown closes an open session and terminates the browser process.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	s := m.session
	m.closed = true
	m.mu.Unlock()

	var err error
	if s != nil {
		err = s.Close(ctx)
	}

	m.logger.Debug("Shutting down browser process...")
	m.allocatorCancel()
	select {
	case <-m.allocatorCtx.Done():
	case <-ctx.Done():
		m.logger.Warn("Shutdown deadline exceeded while waiting for the browser to exit.", zap.Error(ctx.Err()))
	}
	return err
}
