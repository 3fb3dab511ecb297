// internal/refund/fakes_test.go
package refund

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/rmvrefund/rmv-refund/api/schemas"
)

// action is one recorded browser call.
type action struct {
	Op       string
	Selector string
	Value    string
}

// fakeBrowser records every call and answers reads from texts. An entry in
// failOn, keyed "op selector", makes that call fail. An entry in during
// runs inside that call and may return the error the call fails with.
type fakeBrowser struct {
	actions []action
	texts   map[string]string
	failOn  map[string]error
	during  map[string]func() error
}

func newFakeBrowser(texts map[string]string) *fakeBrowser {
	return &fakeBrowser{texts: texts, failOn: map[string]error{}, during: map[string]func() error{}}
}

func (f *fakeBrowser) record(op, selector, value string) error {
	f.actions = append(f.actions, action{Op: op, Selector: selector, Value: value})
	if fn, ok := f.during[op+" "+selector]; ok {
		if err := fn(); err != nil {
			return err
		}
	}
	return f.failOn[op+" "+selector]
}

func (f *fakeBrowser) Open(ctx context.Context, url string) error {
	return f.record("open", "", url)
}

func (f *fakeBrowser) AcceptCookieBanner(ctx context.Context, selector string) error {
	return f.record("cookies", selector, "")
}

func (f *fakeBrowser) Click(ctx context.Context, selector string) error {
	return f.record("click", selector, "")
}

func (f *fakeBrowser) WaitAndClick(ctx context.Context, selector string) error {
	return f.record("waitclick", selector, "")
}

func (f *fakeBrowser) TypeInto(ctx context.Context, selector, value string) error {
	return f.record("type", selector, value)
}

func (f *fakeBrowser) SelectOption(ctx context.Context, selector, value string) error {
	return f.record("select", selector, value)
}

func (f *fakeBrowser) WaitVisible(ctx context.Context, selector string) error {
	return f.record("visible", selector, "")
}

func (f *fakeBrowser) WaitForDisappearance(ctx context.Context, selector string) error {
	return f.record("gone", selector, "")
}

func (f *fakeBrowser) ReadText(ctx context.Context, selector string) (string, error) {
	if err := f.record("read", selector, ""); err != nil {
		return "", err
	}
	text, ok := f.texts[selector]
	if !ok {
		return "", schemas.NewClaimError(schemas.KindElementNotFound, "read text", selector, nil)
	}
	return text, nil
}

func (f *fakeBrowser) ScrollIntoView(ctx context.Context, selector string) error {
	return f.record("scroll", selector, "")
}

func (f *fakeBrowser) WaitForText(ctx context.Context, selector string) (string, error) {
	if err := f.record("waittext", selector, ""); err != nil {
		return "", err
	}
	return f.texts[selector], nil
}

// touched reports whether any recorded call used selector.
func (f *fakeBrowser) touched(selector string) bool {
	for _, a := range f.actions {
		if a.Selector == selector {
			return true
		}
	}
	return false
}

var _ Browser = (*fakeBrowser)(nil)

// mockConfirmer is a testify mock for Confirmer.
type mockConfirmer struct {
	mock.Mock
}

func (m *mockConfirmer) Confirm(ctx context.Context, question string) (bool, error) {
	args := m.Called(ctx, question)
	return args.Bool(0), args.Error(1)
}
