package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show knowledge base and backend status",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		p, err := buildPipeline(ctx, rootLog, nil)
		if err != nil {
			return err
		}
		defer p.FlushTracing()
		defer p.Qdrant.Close()

		count, err := p.Knowledge.Count(ctx)
		if err != nil {
			return err
		}

		fmt.Printf("Provider:       %s (%s)\n", p.Provider.Backend, p.Provider.ModelName())
		fmt.Printf("Documents:      %d\n", count)
		fmt.Printf("Web search:     %s\n", enabledStr(p.Web.Configured()))

		if history, err := openHistory(rootLog); err == nil && history != nil {
			defer history.Close()
			if n, err := history.Count(ctx); err == nil {
				fmt.Printf("Answers logged: %d\n", n)
			}
		}
		return nil
	},
}

func enabledStr(b bool) string {
	if b {
		return "enabled"
	}
	return "disabled"
}
