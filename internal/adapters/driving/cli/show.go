package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ca-shen98/knoba/internal/core/domain"
)

var showCmd = &cobra.Command{
	Use:   "show <location>",
	Short: "Show the content blocks a location references",
	Args:  cobra.ExactArgs(1),
	RunE:  runShow,
}

func init() {
	rootCmd.AddCommand(showCmd)
}

func runShow(cmd *cobra.Command, args []string) error {
	if err := requireReconciler(); err != nil {
		return err
	}
	loc, err := domain.ParseLocation(args[0])
	if err != nil {
		return err
	}

	ids, err := reconciler.Mapping(cmd.Context(), loc)
	if errors.Is(err, domain.ErrNotFound) {
		cmd.Printf("%s is not tracked.\n", loc)
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading mapping: %w", err)
	}

	blocks, err := reconciler.Blocks(cmd.Context(), ids)
	if err != nil {
		return fmt.Errorf("fetching blocks: %w", err)
	}

	cmd.Printf("%s references %d block(s)\n", loc, len(ids))
	for i, id := range ids {
		cmd.Println()
		b, ok := blocks[id]
		if !ok {
			cmd.Printf("[%d] %s (missing from index)\n", i+1, id)
			continue
		}
		cmd.Printf("[%d] %s\n", i+1, id)
		cmd.Printf("    Shared by: %s\n", strings.Join(b.Locations.Strings(), ", "))
		cmd.Printf("    Content:   %s\n", preview(b.Content, 200))
	}
	return nil
}

// preview flattens s to one line and truncates it to at most n runes.
func preview(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
