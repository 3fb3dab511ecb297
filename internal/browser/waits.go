// internal/browser/waits.go
package browser

import (
	"context"
	"errors"
	"fmt"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// elementState is a snapshot of the first element matching a selector.
type elementState struct {
	Present bool   `json:"present"`
	Visible bool   `json:"visible"`
	Enabled bool   `json:"enabled"`
	Text    string `json:"text"`
}

// Readiness predicates used by the waits.
func clickable(st elementState) bool { return st.Present && st.Visible && st.Enabled }
func visible(st elementState) bool   { return st.Present && st.Visible }
func gone(st elementState) bool      { return !st.Present || !st.Visible }

var errNeverReady = errors.New("condition never became true")

// probe takes one snapshot of selector.
func (s *Session) probe(ctx context.Context, selector string) (elementState, error) {
	var st elementState
	err := s.run(ctx, chromedp.Evaluate(probeScript(selector), &st))
	return st, err
}

// poll probes selector every poll interval until ready accepts the snapshot
// or ctx ends.
func (s *Session) poll(ctx context.Context, selector string, ready func(elementState) bool) (elementState, error) {
	var last elementState
	err := s.pollFunc(ctx, selector, func(ctx context.Context) (bool, error) {
		st, err := s.probe(ctx, selector)
		if err != nil {
			return false, err
		}
		last = st
		return ready(st), nil
	})
	return last, err
}

// pollFunc is the loop under every wait. Probe errors do not end the wait:
// while the page is navigating the old document's execution context is torn
// down and evaluation fails until the new one is ready.
func (s *Session) pollFunc(ctx context.Context, selector string, check func(context.Context) (bool, error)) error {
	limiter := rate.NewLimiter(rate.Every(s.cfg.PollInterval), 1)
	var lastErr error

	for {
		if err := limiter.Wait(ctx); err != nil {
			if ctx.Err() == nil {
				// The next tick would land after the deadline.
				<-ctx.Done()
			}
			return waitError(ctx.Err(), lastErr)
		}

		ok, err := check(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return waitError(ctx.Err(), err)
			}
			s.logger.Debug("Probe failed, retrying.", zap.String("selector", selector), zap.Error(err))
			lastErr = err
			continue
		}
		if ok {
			return nil
		}
		lastErr = nil
	}
}

func waitError(ctxErr, lastErr error) error {
	if lastErr != nil {
		return fmt.Errorf("%w (last probe error: %v)", ctxErr, lastErr)
	}
	return fmt.Errorf("%w: %w", errNeverReady, ctxErr)
}
