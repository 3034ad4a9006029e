package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/spf13/cobra"

	"github.com/ca-shen98/knoba/internal/core/domain"
)

var upsertCmd = &cobra.Command{
	Use:   "upsert <location>...",
	Short: "Reconcile locations whose content changed",
	Long: `Fetches the current content of each location, matches every paragraph
against existing content blocks, and propagates edited blocks to the other
locations that share them.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runUpsert,
}

var removeCmd = &cobra.Command{
	Use:   "remove <location>...",
	Short: "Detach deleted locations from their content blocks",
	Long: `Forgets each location and deletes content blocks no other location
references. Nothing is written to external systems.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRemove,
}

var batchCmd = &cobra.Command{
	Use:   "batch <file>...",
	Short: "Process batches from JSON files",
	Long: `Processes one or more batch files of the form

  {"upsertLocations": ["fs_/a.md"], "removeLocations": ["notion_abc"]}

Use "-" to read a batch from stdin. Multiple files are processed
concurrently on the worker pool.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(upsertCmd)
	rootCmd.AddCommand(removeCmd)
	rootCmd.AddCommand(batchCmd)
}

func runUpsert(cmd *cobra.Command, args []string) error {
	locs, err := parseLocations(args)
	if err != nil {
		return err
	}
	return runAndPrint(cmd, domain.Batch{Upserts: locs})
}

func runRemove(cmd *cobra.Command, args []string) error {
	locs, err := parseLocations(args)
	if err != nil {
		return err
	}
	return runAndPrint(cmd, domain.Batch{Removes: locs})
}

func runAndPrint(cmd *cobra.Command, batch domain.Batch) error {
	if err := requireReconciler(); err != nil {
		return err
	}
	result, err := submitBatch(cmd.Context(), batch)
	if err != nil {
		return fmt.Errorf("batch failed: %w", err)
	}
	printResult(cmd, result)
	return nil
}

func runBatch(cmd *cobra.Command, files []string) error {
	if err := requireReconciler(); err != nil {
		return err
	}

	batches := make([]domain.Batch, len(files))
	for i, name := range files {
		b, err := readBatchFile(name, cmd.InOrStdin())
		if err != nil {
			return err
		}
		batches[i] = b
	}

	results := make([]*domain.BatchResult, len(batches))
	errs := make([]error, len(batches))
	var wg sync.WaitGroup
	for i := range batches {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = submitBatch(cmd.Context(), batches[i])
			if errs[i] != nil {
				errs[i] = fmt.Errorf("%s: %w", files[i], errs[i])
			}
		}(i)
	}
	wg.Wait()

	for i, name := range files {
		if errs[i] != nil {
			continue
		}
		cmd.Printf("%s:\n", name)
		printResult(cmd, results[i])
	}
	return errors.Join(errs...)
}

// submitBatch runs a batch on the worker pool, or inline when there is none.
func submitBatch(ctx context.Context, batch domain.Batch) (*domain.BatchResult, error) {
	if batchSubmitter == nil {
		return reconciler.Process(ctx, batch)
	}
	done, err := batchSubmitter.Submit(ctx, batch)
	if err != nil {
		return nil, err
	}
	select {
	case out := <-done:
		return out.Result, out.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func readBatchFile(name string, stdin io.Reader) (domain.Batch, error) {
	var r io.Reader
	if name == "-" {
		r = stdin
	} else {
		f, err := os.Open(name)
		if err != nil {
			return domain.Batch{}, fmt.Errorf("opening batch file: %w", err)
		}
		defer f.Close()
		r = f
	}

	var batch domain.Batch
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&batch); err != nil {
		return domain.Batch{}, fmt.Errorf("%w: decoding %s: %w", domain.ErrInvalidInput, name, err)
	}
	if batch.IsEmpty() {
		return domain.Batch{}, fmt.Errorf("%w: %s names no locations", domain.ErrInvalidInput, name)
	}
	if err := batch.Validate(); err != nil {
		return domain.Batch{}, fmt.Errorf("%s: %w", name, err)
	}
	return batch, nil
}

func parseLocations(args []string) ([]domain.Location, error) {
	locs := make([]domain.Location, 0, len(args))
	for _, a := range args {
		loc, err := domain.ParseLocation(a)
		if err != nil {
			return nil, err
		}
		locs = append(locs, loc)
	}
	return locs, nil
}

func printResult(cmd *cobra.Command, result *domain.BatchResult) {
	if result == nil {
		result = &domain.BatchResult{}
	}
	cmd.Printf("  Created:            %d\n", len(result.Created))
	cmd.Printf("  Content updated:    %d\n", len(result.ContentUpdated))
	cmd.Printf("  References updated: %d\n", len(result.ReferencesUpdated))
	cmd.Printf("  Deleted:            %d\n", len(result.Deleted))
	cmd.Printf("  Mappings written:   %d\n", result.MappingsWritten)

	applied := 0
	for _, p := range result.Propagations {
		if p.Status == domain.WriteApplied {
			applied++
		}
	}
	failed := result.FailedPropagations()
	cmd.Printf("  Propagated:         %d applied, %d failed\n", applied, len(failed))
	for _, p := range failed {
		cmd.Printf("    FAILED %s (block %s): %v\n", p.Location, p.BlockID, p.Err)
	}
}
