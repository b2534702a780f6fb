package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recently answered questions",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		history, err := openHistory(rootLog)
		if err != nil {
			return err
		}
		if history == nil {
			return fmt.Errorf("answer history is disabled")
		}
		defer history.Close()

		entries, err := history.Recent(ctx, historyLimit)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Println("No answers logged yet.")
			return nil
		}

		for _, e := range entries {
			fmt.Printf("[%s] %-5s %s\n", e.CreatedAt.Local().Format(time.DateTime), e.Tool, e.Query)
			fmt.Printf("    %s\n", firstLine(strings.TrimSpace(e.Answer)))
		}
		return nil
	},
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "number of entries to show")
}
