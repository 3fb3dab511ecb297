// File: cmd/history.go
package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rmvrefund/rmv-refund/api/schemas"
	"github.com/rmvrefund/rmv-refund/internal/journal"
)

func newHistoryCmd() *cobra.Command {
	var (
		count  int
		follow bool
	)

	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Show the most recent journaled claims",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := getConfigFromContext(cmd.Context())
			if err != nil {
				return err
			}
			if count < 0 {
				return schemas.NewClaimError(schemas.KindConfiguration, "history", "",
					fmt.Errorf("-n must not be negative, got %d", count))
			}
			out := cmd.OutOrStdout()
			path := cfg.Journal().Path

			lines, err := journal.Recent(path, count)
			switch {
			case errors.Is(err, journal.ErrNoJournal):
				fmt.Fprintf(cmd.ErrOrStderr(), "No claims journaled yet (%s).\n", path)
			case err != nil:
				return err
			}
			for _, line := range lines {
				fmt.Fprintln(out, journal.Display(line))
			}

			if !follow {
				return nil
			}
			return journal.Follow(cmd.Context(), path, func(line string) error {
				_, err := fmt.Fprintln(out, journal.Display(line))
				return err
			})
		},
	}

	historyCmd.Flags().IntVarP(&count, "lines", "n", 10, "Number of entries to show")
	historyCmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep printing new entries until interrupted")
	return historyCmd
}
