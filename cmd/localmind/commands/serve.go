package commands

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/localmind/localmind/internal/provider"
	"github.com/localmind/localmind/internal/server"
	"github.com/localmind/localmind/internal/store"
)

var (
	serveHost string
	servePort int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the localmind HTTP server",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)

		p, err := buildPipeline(ctx, rootLog, reg)
		if err != nil {
			return err
		}
		defer p.FlushTracing()
		defer p.Qdrant.Close()

		history, err := openHistory(rootLog)
		if err != nil {
			return err
		}
		if history != nil {
			defer history.Close()
		}

		pingers := []server.Pinger{&server.QdrantPinger{Store: p.Qdrant}}
		if hc := provider.NewHealthCheck(p.Provider); hc != nil {
			pingers = append(pingers, &server.ModelPinger{
				BackendName: string(p.Provider.Backend),
				Checker:     hc,
			})
		}
		if history != nil {
			pingers = append(pingers, &server.HistoryPinger{Log: history})
		}

		srv, err := server.New(p.Agent, p.Knowledge, p.Web, &server.Config{
			Host:     serveHost,
			Port:     servePort,
			Logger:   rootLog,
			Pingers:  pingers,
			APIKey:   os.Getenv("LOCALMIND_API_KEY"),
			Registry: reg,
			Provider: string(p.Provider.Backend),
			Model:    p.Provider.ModelName(),
			History:  history,
		})
		if err != nil {
			return err
		}

		return srv.Start(ctx)
	},
}

// openHistory opens the answer log unless disabled. A nil return with nil
// error means history is off.
func openHistory(log *slog.Logger) (store.AnswerLog, error) {
	path := os.Getenv("LOCALMIND_HISTORY_DB")
	if path == "disabled" {
		log.Info("answer history disabled")
		return nil, nil
	}
	if path == "" {
		var err error
		path, err = store.DefaultDBPath()
		if err != nil {
			return nil, err
		}
	}
	h, err := store.Open(path)
	if err != nil {
		return nil, err
	}
	log.Info("answer history enabled", slog.String("path", path))
	return h, nil
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "127.0.0.1", "address to bind")
	serveCmd.Flags().IntVar(&servePort, "port", 8080, "port to listen on")
}
