// internal/browser/session.go
// Session is the single live browser tab of a claim run. Every method bounds
// its own wait with the configured short (or, for WaitForText, long) budget
// and reports failures as *schemas.ClaimError so the caller can tell a page
// that never loaded from an element that never appeared. Nothing here
// retries an action once it has fired.
package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/rmvrefund/rmv-refund/api/schemas"
	"github.com/rmvrefund/rmv-refund/internal/config"
)

// Session drives one chromedp tab.
type Session struct {
	// ctx is the tab context; it carries the CDP target.
	ctx    context.Context
	cancel context.CancelFunc
	cfg    config.BrowserConfig
	logger *zap.Logger

	onClose   func()
	closeOnce sync.Once
}

func newSession(ctx context.Context, cancel context.CancelFunc, cfg config.BrowserConfig, logger *zap.Logger) *Session {
	return &Session{
		ctx:    ctx,
		cancel: cancel,
		cfg:    cfg,
		logger: logger.Named("session"),
	}
}

// run executes actions on the tab, canceled by either the operation context or the session.
func (s *Session) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := CombineContext(s.ctx, ctx)
	defer cancel()
	return chromedp.Run(runCtx, actions...)
}

// fail turns a chromedp or wait error into the error the caller sees. A
// canceled parent context is passed through unchanged so interrupts are not
// mistaken for site failures.
func (s *Session) fail(ctx, opCtx context.Context, timeoutKind, failKind schemas.ErrorKind, op, selector string, budget time.Duration, err error) error {
	if ctx.Err() != nil {
		return fmt.Errorf("%s canceled: %w", op, ctx.Err())
	}
	if s.ctx.Err() != nil {
		return schemas.NewClaimError(schemas.KindNavigation, op, selector,
			fmt.Errorf("browser session is closed: %w", err))
	}
	if errors.Is(opCtx.Err(), context.DeadlineExceeded) {
		return schemas.NewClaimError(timeoutKind, op, selector,
			fmt.Errorf("not ready after %v: %w", budget, err))
	}
	return schemas.NewClaimError(failKind, op, selector, err)
}

// Open loads url in the tab.
func (s *Session) Open(ctx context.Context, url string) error {
	s.logger.Info("Opening claim form.", zap.String("url", url))

	opCtx, cancel := context.WithTimeout(ctx, s.cfg.NavigationTimeout)
	defer cancel()

	if err := s.run(opCtx, chromedp.Navigate(url)); err != nil {
		return s.fail(ctx, opCtx, schemas.KindNavigation, schemas.KindNavigation, "open", "", s.cfg.NavigationTimeout,
			fmt.Errorf("could not load %s: %w", url, err))
	}
	return nil
}

// AcceptCookieBanner clicks the consent button if it shows up within the
// cookie banner budget. A missing banner is not an error; only cancellation
// is reported.
func (s *Session) AcceptCookieBanner(ctx context.Context, selector string) error {
	if s.cfg.CookieBannerTimeout <= 0 {
		return nil
	}
	opCtx, cancel := context.WithTimeout(ctx, s.cfg.CookieBannerTimeout)
	defer cancel()

	if _, err := s.poll(opCtx, selector, clickable); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("cookie banner canceled: %w", ctx.Err())
		}
		s.logger.Debug("No cookie banner shown.", zap.String("selector", selector))
		return nil
	}
	if err := s.run(opCtx, chromedp.Click(selector, chromedp.ByQuery, chromedp.NodeVisible)); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("cookie banner canceled: %w", ctx.Err())
		}
		s.logger.Debug("Cookie banner could not be dismissed.", zap.Error(err))
		return nil
	}
	s.logger.Debug("Cookie banner accepted.")
	return nil
}

// Click clicks the first element matching selector as it is now, without
// waiting for it to appear.
func (s *Session) Click(ctx context.Context, selector string) error {
	s.logger.Debug("Clicking element.", zap.String("selector", selector))

	opCtx, cancel := context.WithTimeout(ctx, s.cfg.ShortTimeout)
	defer cancel()

	var nodes []*cdp.Node
	if err := s.run(opCtx, chromedp.Nodes(selector, &nodes, chromedp.ByQuery, chromedp.AtLeast(0))); err != nil {
		return s.fail(ctx, opCtx, schemas.KindTimeout, schemas.KindElementNotFound, "click", selector, s.cfg.ShortTimeout, err)
	}
	if len(nodes) == 0 {
		return schemas.NewClaimError(schemas.KindElementNotFound, "click", selector, errors.New("no element matches"))
	}
	if err := s.run(opCtx, chromedp.MouseClickNode(nodes[0])); err != nil {
		return s.fail(ctx, opCtx, schemas.KindTimeout, schemas.KindElementNotFound, "click", selector, s.cfg.ShortTimeout, err)
	}
	return nil
}

// WaitAndClick waits until the element is clickable, scrolls it into view and clicks it.
func (s *Session) WaitAndClick(ctx context.Context, selector string) error {
	s.logger.Debug("Waiting to click element.", zap.String("selector", selector))

	opCtx, cancel := context.WithTimeout(ctx, s.cfg.ShortTimeout)
	defer cancel()

	if _, err := s.poll(opCtx, selector, clickable); err != nil {
		return s.fail(ctx, opCtx, schemas.KindTimeout, schemas.KindElementNotFound, "wait and click", selector, s.cfg.ShortTimeout, err)
	}
	err := s.run(opCtx,
		chromedp.ScrollIntoView(selector, chromedp.ByQuery),
		chromedp.Click(selector, chromedp.ByQuery, chromedp.NodeVisible),
	)
	if err != nil {
		return s.fail(ctx, opCtx, schemas.KindTimeout, schemas.KindElementNotFound, "wait and click", selector, s.cfg.ShortTimeout, err)
	}
	return nil
}

// TypeInto waits until the field is clickable, scrolls it into view, clears
// it and types value.
func (s *Session) TypeInto(ctx context.Context, selector, value string) error {
	s.logger.Debug("Typing into field.", zap.String("selector", selector))

	opCtx, cancel := context.WithTimeout(ctx, s.cfg.ShortTimeout)
	defer cancel()

	if _, err := s.poll(opCtx, selector, clickable); err != nil {
		return s.fail(ctx, opCtx, schemas.KindTimeout, schemas.KindElementNotFound, "type", selector, s.cfg.ShortTimeout, err)
	}

	var cleared bool
	err := s.run(opCtx,
		chromedp.ScrollIntoView(selector, chromedp.ByQuery),
		chromedp.Evaluate(clearFieldScript(selector), &cleared),
	)
	if err == nil && !cleared {
		err = errors.New("element disappeared before it could be cleared")
	}
	if err == nil {
		err = s.run(opCtx, chromedp.SendKeys(selector, value, chromedp.ByQuery))
	}
	if err != nil {
		return s.fail(ctx, opCtx, schemas.KindTimeout, schemas.KindElementNotFound, "type", selector, s.cfg.ShortTimeout, err)
	}
	return nil
}

// SelectOption picks the option with the given value in a <select>. Dependent
// selects fill their options late, so it waits for the option to exist.
func (s *Session) SelectOption(ctx context.Context, selector, value string) error {
	s.logger.Debug("Selecting option.", zap.String("selector", selector), zap.String("value", value))

	opCtx, cancel := context.WithTimeout(ctx, s.cfg.ShortTimeout)
	defer cancel()

	probe := func(ctx context.Context) (bool, error) {
		var ok bool
		err := s.run(ctx, chromedp.Evaluate(hasOptionScript(selector, value), &ok))
		return ok, err
	}
	if err := s.pollFunc(opCtx, selector, probe); err != nil {
		return s.fail(ctx, opCtx, schemas.KindTimeout, schemas.KindElementNotFound, "select", selector, s.cfg.ShortTimeout,
			fmt.Errorf("option %q not offered: %w", value, err))
	}

	var selected bool
	err := s.run(opCtx,
		chromedp.ScrollIntoView(selector, chromedp.ByQuery),
		chromedp.Evaluate(selectOptionScript(selector, value), &selected),
	)
	if err == nil && !selected {
		err = fmt.Errorf("option %q could not be selected", value)
	}
	if err != nil {
		return s.fail(ctx, opCtx, schemas.KindTimeout, schemas.KindElementNotFound, "select", selector, s.cfg.ShortTimeout, err)
	}
	return nil
}

// WaitVisible blocks until the element is rendered.
func (s *Session) WaitVisible(ctx context.Context, selector string) error {
	opCtx, cancel := context.WithTimeout(ctx, s.cfg.ShortTimeout)
	defer cancel()

	if _, err := s.poll(opCtx, selector, visible); err != nil {
		return s.fail(ctx, opCtx, schemas.KindTimeout, schemas.KindElementNotFound, "wait visible", selector, s.cfg.ShortTimeout, err)
	}
	return nil
}

// WaitForDisappearance blocks until no rendered element matches selector.
func (s *Session) WaitForDisappearance(ctx context.Context, selector string) error {
	opCtx, cancel := context.WithTimeout(ctx, s.cfg.ShortTimeout)
	defer cancel()

	if _, err := s.poll(opCtx, selector, gone); err != nil {
		return s.fail(ctx, opCtx, schemas.KindTimeout, schemas.KindTimeout, "wait for disappearance", selector, s.cfg.ShortTimeout, err)
	}
	return nil
}

// ReadText returns the rendered, trimmed text of the first matching element.
func (s *Session) ReadText(ctx context.Context, selector string) (string, error) {
	opCtx, cancel := context.WithTimeout(ctx, s.cfg.ShortTimeout)
	defer cancel()

	state, err := s.probe(opCtx, selector)
	if err != nil {
		return "", s.fail(ctx, opCtx, schemas.KindTimeout, schemas.KindElementNotFound, "read text", selector, s.cfg.ShortTimeout, err)
	}
	if !state.Present {
		return "", schemas.NewClaimError(schemas.KindElementNotFound, "read text", selector, errors.New("no element matches"))
	}
	return state.Text, nil
}

// ScrollIntoView scrolls the first matching element into the viewport.
func (s *Session) ScrollIntoView(ctx context.Context, selector string) error {
	opCtx, cancel := context.WithTimeout(ctx, s.cfg.ShortTimeout)
	defer cancel()

	state, err := s.probe(opCtx, selector)
	if err == nil && !state.Present {
		return schemas.NewClaimError(schemas.KindElementNotFound, "scroll into view", selector, errors.New("no element matches"))
	}
	if err == nil {
		err = s.run(opCtx, chromedp.ScrollIntoView(selector, chromedp.ByQuery))
	}
	if err != nil {
		return s.fail(ctx, opCtx, schemas.KindTimeout, schemas.KindElementNotFound, "scroll into view", selector, s.cfg.ShortTimeout, err)
	}
	return nil
}

// WaitForText waits with the long budget until the element is clickable and
// has non-empty text, scrolls it into view and returns the text.
func (s *Session) WaitForText(ctx context.Context, selector string) (string, error) {
	s.logger.Debug("Waiting for text.", zap.String("selector", selector), zap.Duration("budget", s.cfg.LongTimeout))

	opCtx, cancel := context.WithTimeout(ctx, s.cfg.LongTimeout)
	defer cancel()

	state, err := s.poll(opCtx, selector, func(st elementState) bool { return clickable(st) && st.Text != "" })
	if err == nil {
		err = s.run(opCtx, chromedp.ScrollIntoView(selector, chromedp.ByQuery))
	}
	if err != nil {
		return "", s.fail(ctx, opCtx, schemas.KindTimeout, schemas.KindElementNotFound, "wait for text", selector, s.cfg.LongTimeout, err)
	}
	return state.Text, nil
}

// Close closes the tab and with it the browser. It is safe to call more than once.
func (s *Session) Close(ctx context.Context) error {
	var err error
	s.closeOnce.Do(func() {
		done := make(chan error, 1)
		go func() { done <- chromedp.Cancel(s.ctx) }()

		grace, cancel := context.WithTimeout(ctx, shutdownGracePeriod)
		defer cancel()
		select {
		case err = <-done:
			if errors.Is(err, context.Canceled) {
				err = nil
			}
		case <-grace.Done():
			s.logger.Warn("Browser did not close in time; terminating.", zap.Duration("grace", shutdownGracePeriod))
		}
		s.cancel()
		if s.onClose != nil {
			s.onClose()
		}
		s.logger.Debug("Session closed.")
	})
	return err
}
