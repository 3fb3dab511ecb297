// internal/browser/context_utils.go
package browser

import (
	"context"
	"time"
)

// CombineContext creates a context derived from ctx1 that is canceled when
// either ctx1 or ctx2 is canceled. Values come from ctx1 only. chromedp keeps
// its target in the context values, so ctx1 must be the tab context and ctx2
// the per-operation deadline.
func CombineContext(ctx1, ctx2 context.Context) (context.Context, context.CancelFunc) {
	combinedCtx, cancel := context.WithCancel(ctx1)

	go func() {
		select {
		case <-ctx2.Done():
			cancel()
		case <-combinedCtx.Done():
		}
	}()

	return combinedCtx, cancel
}

// valueOnlyContext inherits values from its parent but none of its
// cancellation.
type valueOnlyContext struct {
	context.Context
}

func (valueOnlyContext) Deadline() (deadline time.Time, ok bool) { return }
func (valueOnlyContext) Done() <-chan struct{}                   { return nil }
func (valueOnlyContext) Err() error                              { return nil }

// Detach returns a context that keeps ctx's values but is never canceled.
// Browser shutdown uses it so Chrome is closed even after an interrupt.
func Detach(ctx context.Context) context.Context {
	return valueOnlyContext{ctx}
}
