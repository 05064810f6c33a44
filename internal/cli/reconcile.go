package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/eshaffer321/freight-reconcile/internal/domain/matcher"
)

// Output formats for the reconcile command
const (
	FormatTable = "table"
	FormatJSON  = "json"
	FormatXLSX  = "xlsx"
)

// ReconcileFlags holds the CLI flags for the reconcile command.
type ReconcileFlags struct {
	Format          string
	Output          string // file path, empty = stdout
	ConfirmMinScore int    // 0 = suggest only
}

func newReconcileCommand(global *GlobalFlags) *cobra.Command {
	flags := &ReconcileFlags{}

	cmd := &cobra.Command{
		Use:   "reconcile <statement.csv>",
		Short: "Suggest matches for a bank statement against the configured store",
		Long: `Reads a bank statement CSV (header row, then date,amount,description)
and prints up to three ranked candidate obligations per transaction.

With --confirm-min-score, the best candidate of each transaction is settled
when its score reaches the threshold and beats the runner-up.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, global)
			if err != nil {
				return err
			}
			logger := newLogger(cfg, global, "reconcile")

			matcherCfg, err := cfg.Reconciliation.MatcherConfig()
			if err != nil {
				return err
			}

			raw, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read statement: %w", err)
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Reconciliation.RequestTimeout)
			defer cancel()

			store, err := OpenStore(ctx, cfg.Storage, logger)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			m := matcher.NewMatcher(matcherCfg, store, logger)
			return RunReconcile(ctx, m, string(raw), flags, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&flags.Format, "format", "f", FormatTable, "Output format: table, json or xlsx")
	cmd.Flags().StringVarP(&flags.Output, "output", "o", "", "Write output to file instead of stdout")
	cmd.Flags().IntVar(&flags.ConfirmMinScore, "confirm-min-score", 0, "Settle unambiguous best candidates scoring at least this much (0 = off)")

	return cmd
}

// RunReconcile matches raw against the store and writes the suggestions in
// the requested format to stdout or flags.Output.
func RunReconcile(ctx context.Context, m *matcher.Matcher, raw string, flags *ReconcileFlags, stdout io.Writer) error {
	switch flags.Format {
	case FormatTable, FormatJSON, FormatXLSX:
	default:
		return fmt.Errorf("unknown format %q", flags.Format)
	}
	if flags.ConfirmMinScore < 0 || flags.ConfirmMinScore > 100 {
		return fmt.Errorf("--confirm-min-score must be between 0 and 100")
	}

	suggestions, err := m.ProcessStatement(ctx, raw)
	if err != nil {
		return err
	}
	statementID := uuid.NewString()

	var confirmed []matcher.Obligation
	if flags.ConfirmMinScore > 0 {
		confirmed, err = confirmBest(ctx, m, statementID, suggestions, flags.ConfirmMinScore)
		if err != nil {
			return err
		}
	}

	write := func(w io.Writer) error {
		switch flags.Format {
		case FormatJSON:
			return WriteSuggestionsJSON(w, statementID, suggestions)
		case FormatXLSX:
			return WriteSuggestionsXLSX(w, suggestions)
		default:
			PrintSuggestions(w, suggestions)
			PrintConfirmed(w, confirmed)
			return nil
		}
	}

	if flags.Output == "" {
		return write(stdout)
	}

	f, err := os.Create(flags.Output)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	return closeOutput(f, write(f))
}

// closeOutput closes an output file, reporting the close error when the
// write itself succeeded.
func closeOutput(c io.Closer, err error) error {
	if cerr := c.Close(); cerr != nil && err == nil {
		return fmt.Errorf("close output: %w", cerr)
	}
	return err
}

// confirmBest settles the top candidate of each suggestion when it scores at
// least minScore and strictly beats the second candidate. Obligations already
// settled by an earlier line are skipped.
func confirmBest(ctx context.Context, m *matcher.Matcher, statementID string, suggestions []matcher.MatchSuggestion, minScore int) ([]matcher.Obligation, error) {
	var confirmed []matcher.Obligation
	for _, s := range suggestions {
		if len(s.Candidates) == 0 {
			continue
		}
		best := s.Candidates[0]
		if best.Score < minScore {
			continue
		}
		if len(s.Candidates) > 1 && s.Candidates[1].Score == best.Score {
			continue
		}

		updated, err := m.ConfirmMatch(ctx, matcher.Confirmation{
			Transaction:  s.Transaction,
			ObligationID: best.Obligation.ID,
			Kind:         best.Obligation.Kind,
			StatementID:  statementID,
			ConfirmedBy:  "cli",
		})
		if errors.Is(err, matcher.ErrConflict) {
			continue
		}
		if err != nil {
			return confirmed, err
		}
		confirmed = append(confirmed, *updated)
	}
	return confirmed, nil
}
