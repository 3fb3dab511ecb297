// File: cmd/claim.go
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rmvrefund/rmv-refund/api/schemas"
	"github.com/rmvrefund/rmv-refund/internal/browser"
	"github.com/rmvrefund/rmv-refund/internal/config"
	"github.com/rmvrefund/rmv-refund/internal/journal"
	"github.com/rmvrefund/rmv-refund/internal/observability"
	"github.com/rmvrefund/rmv-refund/internal/prompt"
	"github.com/rmvrefund/rmv-refund/internal/refund"
)

const (
	dateLayout = "02.01.2006"
	timeLayout = "15:04"

	browserShutdownTimeout = 15 * time.Second
)

// startBrowser launches Chrome and opens the run's single tab. The returned
// function shuts both down. Replaced in tests.
var startBrowser = func(ctx context.Context, logger *zap.Logger, cfg config.BrowserConfig) (refund.Browser, func(context.Context) error, error) {
	manager := browser.NewManager(ctx, logger, cfg)
	session, err := manager.NewSession(ctx)
	if err != nil {
		shutdownCtx, cancel := context.WithTimeout(browser.Detach(ctx), browserShutdownTimeout)
		defer cancel()
		_ = manager.Shutdown(shutdownCtx)
		return nil, nil, err
	}
	return session, manager.Shutdown, nil
}

type claimOptions struct {
	route     string
	date      string
	time      string
	arrival   string
	cancelled bool
	submit    bool
	headless  bool
	noInput   bool
}

func newClaimCmd() *cobra.Command {
	opts := &claimOptions{}

	claimCmd := &cobra.Command{
		Use:   "claim",
		Short: "Fill in and submit a refund claim for one delayed journey",
		Long: `Opens the claim form in Chrome, fills in the journey, ticket and address
pages and submits the claim. Missing route, date, time and arrival values are
asked for unless --no-input is given. The outcome is printed and appended to
the journal.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := getConfigFromContext(cmd.Context())
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("headless") {
				cfg.SetBrowserHeadless(opts.headless)
			}
			return runClaim(cmd, cfg, opts)
		},
	}

	claimCmd.Flags().StringVarP(&opts.route, "route", "r", "", "Route name for the journey")
	claimCmd.Flags().StringVarP(&opts.date, "date", "d", "", "Departure date (dd.mm.yyyy)")
	claimCmd.Flags().StringVarP(&opts.time, "time", "t", "", "Departure time (hh:mm)")
	claimCmd.Flags().StringVarP(&opts.arrival, "arrival", "a", "", "Actual arrival time (hh:mm); empty if you did not travel")
	claimCmd.Flags().BoolVar(&opts.cancelled, "cancelled", false, "The train was cancelled")
	claimCmd.Flags().BoolVar(&opts.submit, "submit", false, "Submit without asking")
	claimCmd.Flags().BoolVar(&opts.headless, "headless", false, "Run Chrome without a window (overrides browser.headless)")
	claimCmd.Flags().BoolVar(&opts.noInput, "no-input", false, "Never prompt; missing values are an error")

	return claimCmd
}

func runClaim(cmd *cobra.Command, cfg *config.Config, opts *claimOptions) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	var p prompt.Prompter = prompt.NewTerminal(cmd.InOrStdin(), out)
	if opts.noInput {
		p = prompt.Static{}
	}

	req, err := resolveRequest(ctx, cfg, opts, p, cmd.Flags().Changed("arrival"))
	if err != nil {
		return err
	}
	personal, err := cfg.Personal().Profile()
	if err != nil {
		return err
	}

	settings := refund.Settings{
		URL:              cfg.Browser().URL,
		GuidelinesAgreed: cfg.General().GuidelinesAgreed,
		RunID:            uuid.NewString(),
	}
	if err := refund.Validate(settings, req, personal); err != nil {
		return err
	}
	logger := observability.ForRun(settings.RunID)
	logger.Info("Claiming refund",
		zap.String("from", req.StartStation),
		zap.String("to", req.EndStation),
		zap.String("date", req.Date),
		zap.String("time", req.Time))

	b, shutdown, err := startBrowser(ctx, logger, cfg.Browser())
	if err != nil {
		return err
	}
	defer func() {
		// Runs after an interrupt too; the browser must still be closed.
		shutdownCtx, cancel := context.WithTimeout(browser.Detach(ctx), browserShutdownTimeout)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			logger.Warn("Error during browser shutdown", zap.Error(err))
		}
	}()

	claim, err := refund.NewClaim(b, p, settings, req, cfg.Ticket(), personal, observability.GetLogger())
	if err != nil {
		return err
	}

	result, err := claim.Run(ctx)
	if err != nil {
		logger.Error("Claim failed", zap.Stringer("failed_at", claim.FailedAt()), zap.Error(err))
		return err
	}

	line := refund.FormatOutcome(req, result)
	fmt.Fprintln(out, line)
	writeJournal(cfg.Journal(), logger, journal.Entry{
		Time:    time.Now(),
		RunID:   result.RunID,
		Line:    line,
		Request: req,
		Result:  result,
	}, cmd.ErrOrStderr())
	return nil
}

// writeJournal records the outcome. A journal failure does not change the
// outcome of a run that already reached the site.
func writeJournal(cfg config.JournalConfig, logger *zap.Logger, e journal.Entry, errOut io.Writer) {
	w, err := journal.Open(cfg, logger)
	if err == nil {
		err = w.Append(e)
		if cerr := w.Close(); err == nil {
			err = cerr
		}
	}
	if err != nil {
		logger.Error("Failed to write journal", zap.String("path", cfg.Path), zap.Error(err))
		fmt.Fprintf(errOut, "Warning: the outcome was not written to %s: %v\n", cfg.Path, err)
	}
}

// resolveRequest fills in the journey from flags, the route table and, for
// anything missing, the prompter.
func resolveRequest(ctx context.Context, cfg *config.Config, opts *claimOptions, p prompt.Prompter, arrivalGiven bool) (schemas.JourneyRequest, error) {
	routeName, err := ask(ctx, p, opts.route, "Route")
	if err != nil {
		return schemas.JourneyRequest{}, err
	}
	route, err := cfg.Route(routeName)
	if err != nil {
		return schemas.JourneyRequest{}, err
	}

	date, err := ask(ctx, p, opts.date, "Date")
	if err != nil {
		return schemas.JourneyRequest{}, err
	}
	if err := checkFormat("date", date, dateLayout, "dd.mm.yyyy"); err != nil {
		return schemas.JourneyRequest{}, err
	}

	departure, err := ask(ctx, p, opts.time, "Time")
	if err != nil {
		return schemas.JourneyRequest{}, err
	}
	if err := checkFormat("time", departure, timeLayout, "hh:mm"); err != nil {
		return schemas.JourneyRequest{}, err
	}

	arrival := strings.TrimSpace(opts.arrival)
	if !arrivalGiven && !opts.noInput {
		// An empty answer means the journey was not taken.
		arrival, err = p.Ask(ctx, "Arrival", "")
		if err != nil && !errors.Is(err, io.EOF) {
			return schemas.JourneyRequest{}, err
		}
	}
	if arrival != "" {
		if err := checkFormat("arrival", arrival, timeLayout, "hh:mm"); err != nil {
			return schemas.JourneyRequest{}, err
		}
	}

	return schemas.JourneyRequest{
		StartStation: route.Start,
		EndStation:   route.End,
		Date:         date,
		Time:         departure,
		ArrivalTime:  arrival,
		WasCancelled: opts.cancelled,
		AutoSubmit:   opts.submit,
	}, nil
}

// ask returns the flag value, or prompts for it when it is empty.
func ask(ctx context.Context, p prompt.Prompter, value, label string) (string, error) {
	if v := strings.TrimSpace(value); v != "" {
		return v, nil
	}
	v, err := p.Ask(ctx, label, "")
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	if v == "" {
		return "", schemas.NewClaimError(schemas.KindConfiguration, "read input", "",
			fmt.Errorf("%s is required", strings.ToLower(label)))
	}
	return v, nil
}

// checkFormat rejects values the form would never show verbatim. The site
// compares the strings exactly, so "1.3.2024" is as wrong as "32.01.2024".
func checkFormat(name, value, layout, human string) error {
	t, err := time.Parse(layout, value)
	if err != nil || t.Format(layout) != value {
		return schemas.NewClaimError(schemas.KindConfiguration, "read input", "",
			fmt.Errorf("%s %q must be in the format %s", name, value, human))
	}
	return nil
}
