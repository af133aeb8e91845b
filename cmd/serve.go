package cmd

import (
	"context"
	"errors"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Tiliavir/hamster-panel/internal/daemon"
	"github.com/Tiliavir/hamster-panel/internal/server"
)

var serveListen string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the panel over HTTP",
	Long: `Serve status and commands over HTTP:

  GET  /status   current label, activity and totals
  GET  /facts    today's facts
  POST /facts    start an activity, body {"name": "..."}
  POST /stop     stop the running activity`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveListen, "listen", "", "Listen address (overrides config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()
	a := openApp(ctx)
	defer a.Close()

	addr := a.cfg.Server.Listen
	if serveListen != "" {
		addr = serveListen
	}

	g, ctx := errgroup.WithContext(ctx)
	triggers := daemon.RefreshTriggers(ctx, a.tracker.Signals(), nil)
	g.Go(func() error {
		return a.ledger.Run(ctx, a.interval(), triggers)
	})
	g.Go(func() error {
		return server.Serve(ctx, addr, a.panel, a.log)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
