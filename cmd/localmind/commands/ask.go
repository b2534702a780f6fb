package commands

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/localmind/localmind/internal/agent"
	"github.com/localmind/localmind/internal/store"
)

var (
	askWebOnly bool
	askSources bool
	askQuiet   bool
)

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Answer a single question and exit",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		query := strings.Join(args, " ")

		p, err := buildPipeline(ctx, rootLog, nil)
		if err != nil {
			return err
		}
		defer p.FlushTracing()
		defer p.Qdrant.Close()

		opts := &agent.Options{
			WebOnly: askWebOnly,
			OnToken: func(token string) { fmt.Print(token) },
		}
		if !askQuiet {
			opts.OnProgress = func(status string, details ...string) {
				line := status
				if len(details) > 0 {
					line += " (" + strings.Join(details, ", ") + ")"
				}
				fmt.Fprintln(os.Stderr, line)
			}
		}

		ans, err := p.Agent.Answer(ctx, query, opts)
		if err != nil {
			return err
		}
		fmt.Println()

		if askSources && len(ans.Sources) > 0 {
			fmt.Println("\nSources:")
			for i, s := range ans.Sources {
				switch s.Type {
				case "web":
					fmt.Printf("%d. [web] %s — %s\n", i+1, s.Title, s.URL)
				default:
					fmt.Printf("%d. [local] %s\n", i+1, firstLine(s.Content))
				}
			}
		}
		if !askQuiet {
			fmt.Fprintf(os.Stderr, "\ntool=%s duration=%s\n", ans.Tool, ans.Duration.Round(10*time.Millisecond))
		}

		if history, err := openHistory(rootLog); err == nil && history != nil {
			defer history.Close()
			_ = history.Append(ctx, store.Entry{
				Query:    query,
				Tool:     string(ans.Tool),
				Answer:   ans.Answer,
				Duration: ans.Duration,
			})
		}
		return nil
	},
}

// firstLine returns the first line of s, shortened for terminal display.
func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if len(s) > 80 {
		s = s[:80] + "…"
	}
	return s
}

func init() {
	askCmd.Flags().BoolVar(&askWebOnly, "web", false, "force web search, skip classification")
	askCmd.Flags().BoolVar(&askSources, "sources", true, "print the source list after the answer")
	askCmd.Flags().BoolVarP(&askQuiet, "quiet", "q", false, "suppress progress output")
}
