package cli

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/ca-shen98/knoba/internal/core/domain"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recently processed batches",
	RunE:  runHistory,
}

var historyPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Drop old batch records",
	RunE:  runHistoryPrune,
}

var retryCmd = &cobra.Command{
	Use:   "retry [batch-id]",
	Short: "Re-submit a batch from history",
	Long: `Re-submits a recorded batch. Without an ID, the most recent failed
batch is retried. Re-running a batch converges to the same state.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRetry,
}

func init() {
	historyCmd.Flags().IntP("limit", "n", 20, "maximum records to show")
	historyPruneCmd.Flags().Int("keep", 100, "records to keep")
	historyCmd.AddCommand(historyPruneCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(retryCmd)
}

func runHistory(cmd *cobra.Command, _ []string) error {
	if journal == nil {
		return unavailable("batch history")
	}
	limit, err := cmd.Flags().GetInt("limit")
	if err != nil {
		return fmt.Errorf("getting limit flag: %w", err)
	}

	records, err := journal.Recent(cmd.Context(), limit)
	if err != nil {
		return fmt.Errorf("reading history: %w", err)
	}
	if len(records) == 0 {
		cmd.Println("No batches recorded.")
		return nil
	}

	for i := range records {
		r := &records[i]
		status := "ok"
		if !r.Success {
			status = "FAILED"
		}
		cmd.Printf("#%d  %s  %-6s  %d upserts, %d removes  (%s)\n",
			r.ID, r.StartedAt.Local().Format("2006-01-02 15:04:05"), status,
			len(r.Batch.Upserts), len(r.Batch.Removes), r.Duration().Round(time.Millisecond))
		if r.Success {
			cmd.Printf("     created %d, updated %d, references %d, deleted %d, failed writes %d\n",
				r.Created, r.ContentUpdated, r.ReferencesUpdated, r.Deleted, r.FailedPropagations)
		} else {
			cmd.Printf("     error: %s\n", r.Error)
		}
	}
	return nil
}

func runHistoryPrune(cmd *cobra.Command, _ []string) error {
	if journal == nil {
		return unavailable("batch history")
	}
	keep, err := cmd.Flags().GetInt("keep")
	if err != nil {
		return fmt.Errorf("getting keep flag: %w", err)
	}
	if keep < 0 {
		return fmt.Errorf("%w: keep must not be negative", domain.ErrInvalidInput)
	}
	if err := journal.Prune(cmd.Context(), keep); err != nil {
		return fmt.Errorf("pruning history: %w", err)
	}
	cmd.Printf("Kept the %d most recent batches.\n", keep)
	return nil
}

func runRetry(cmd *cobra.Command, args []string) error {
	if err := requireReconciler(); err != nil {
		return err
	}
	if journal == nil {
		return unavailable("batch history")
	}

	var (
		rec *domain.BatchRecord
		err error
	)
	if len(args) == 1 {
		id, perr := strconv.ParseInt(args[0], 10, 64)
		if perr != nil {
			return fmt.Errorf("%w: invalid batch id %q", domain.ErrInvalidInput, args[0])
		}
		rec, err = journal.Get(cmd.Context(), id)
	} else {
		rec, err = journal.LastFailed(cmd.Context())
		if errors.Is(err, domain.ErrNotFound) {
			cmd.Println("No failed batches to retry.")
			return nil
		}
	}
	if err != nil {
		return fmt.Errorf("reading history: %w", err)
	}

	cmd.Printf("Retrying batch #%d...\n", rec.ID)
	return runAndPrint(cmd, rec.Batch)
}
