// File: cmd/helpers_test.go
package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rmvrefund/rmv-refund/internal/config"
	"github.com/rmvrefund/rmv-refund/internal/refund"
)

const testConfigTemplate = `
logger:
  level: error
journal:
  path: %JOURNAL%
ticket:
  ticket_type: "TT_JAHRESKARTE"
  expiry_date: "31.12.2024"
  customer_group: "ERW"
  ticket_detail: "TD_1"
  price_category: "PK_3"
personal:
  salutation: Herr
  first_name: Max
  last_name: Mustermann
  email: max@example.org
  phone: "0611 123456"
  street: Hauptstr. 1
  zip: "65183"
  city: Wiesbaden
general:
  guidelines_agreed: true
routes:
  work:
    start: Wiesbaden Hbf
    end: Frankfurt (Main) Hauptbahnhof
  home:
    start: Frankfurt (Main) Hauptbahnhof
    end: Wiesbaden Hbf
`

// testEnv is a config file plus the journal it points at, both in a temp dir.
type testEnv struct {
	configPath  string
	journalPath string
}

func newTestEnv(t *testing.T, extra string) testEnv {
	t.Helper()
	dir := t.TempDir()
	journalPath := filepath.Join(dir, "rmv.log")
	content := strings.ReplaceAll(testConfigTemplate, "%JOURNAL%", journalPath) + extra
	configPath := filepath.Join(dir, "rmv_config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0o600))
	return testEnv{configPath: configPath, journalPath: journalPath}
}

// newPristineRootCmd returns a fresh command tree for one execution.
func newPristineRootCmd() *cobra.Command {
	return NewRootCommand()
}

// executeCommand runs the root command with args and stdin, returning what
// was written to stdout and stderr.
func executeCommand(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	root := newPristineRootCmd()
	var out, errOut bytes.Buffer
	root.SetIn(strings.NewReader(stdin))
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

// scriptedBrowser plays the form: reads are answered in order, the
// confirmation page shows confirmation.
type scriptedBrowser struct {
	mu           sync.Mutex
	reads        []string
	confirmation string
	confirmErr   error
	typed        map[string]string
	opened       string
}

func newScriptedBrowser(date, departure, arrival, confirmation string) *scriptedBrowser {
	return &scriptedBrowser{
		reads:        []string{date, departure, arrival},
		confirmation: confirmation,
		typed:        map[string]string{},
	}
}

func (s *scriptedBrowser) Open(ctx context.Context, url string) error {
	s.opened = url
	return nil
}
func (s *scriptedBrowser) AcceptCookieBanner(ctx context.Context, selector string) error { return nil }
func (s *scriptedBrowser) Click(ctx context.Context, selector string) error              { return nil }
func (s *scriptedBrowser) WaitAndClick(ctx context.Context, selector string) error       { return nil }
func (s *scriptedBrowser) TypeInto(ctx context.Context, selector, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.typed[selector] = value
	return nil
}
func (s *scriptedBrowser) SelectOption(ctx context.Context, selector, value string) error {
	return nil
}
func (s *scriptedBrowser) WaitVisible(ctx context.Context, selector string) error          { return nil }
func (s *scriptedBrowser) WaitForDisappearance(ctx context.Context, selector string) error { return nil }
func (s *scriptedBrowser) ReadText(ctx context.Context, selector string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	text := s.reads[0]
	s.reads = s.reads[1:]
	return text, nil
}
func (s *scriptedBrowser) ScrollIntoView(ctx context.Context, selector string) error { return nil }
func (s *scriptedBrowser) WaitForText(ctx context.Context, selector string) (string, error) {
	if s.confirmErr != nil {
		return "", s.confirmErr
	}
	return s.confirmation, nil
}

func (s *scriptedBrowser) typedValues() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	values := make([]string, 0, len(s.typed))
	for _, v := range s.typed {
		values = append(values, v)
	}
	return values
}

// useBrowser swaps the Chrome launcher for b for the duration of the test
// and reports whether it was started.
func useBrowser(t *testing.T, b refund.Browser) *bool {
	t.Helper()
	started := false
	original := startBrowser
	startBrowser = func(ctx context.Context, logger *zap.Logger, cfg config.BrowserConfig) (refund.Browser, func(context.Context) error, error) {
		started = true
		return b, func(context.Context) error { return nil }, nil
	}
	t.Cleanup(func() { startBrowser = original })
	return &started
}
