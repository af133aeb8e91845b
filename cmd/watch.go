package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Tiliavir/hamster-panel/internal/daemon"
	"github.com/Tiliavir/hamster-panel/internal/ledger"
	"github.com/Tiliavir/hamster-panel/internal/panel"
	"github.com/Tiliavir/hamster-panel/internal/timecalc"
)

var watchJSON bool

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print the panel label whenever it changes",
	Long: `Keep the panel label up to date on stdout, one line per change.
Meant for status bars (waybar, polybar, i3blocks). Refreshes on every
tracker signal and at the configured interval.`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().BoolVar(&watchJSON, "json", false, "Print one JSON object per line")
}

// watchLine is the --json output.
type watchLine struct {
	Label string    `json:"text"`
	Total string    `json:"tooltip"`
	Class string    `json:"class"`
	At    time.Time `json:"fetched_at"`
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()
	a := openApp(ctx)
	defer a.Close()

	g, ctx := errgroup.WithContext(ctx)
	triggers := daemon.RefreshTriggers(ctx, a.tracker.Signals(), func() {
		a.log.Debugw("toggle requested; no menu to open")
	})
	g.Go(func() error {
		return a.ledger.Run(ctx, a.interval(), triggers)
	})
	g.Go(func() error {
		return printLabels(ctx, a, os.Stdout)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// printLabels writes a line whenever the label text changes. The label also
// advances each minute without a new snapshot, so it is re-rendered on a
// ticker too.
func printLabels(ctx context.Context, a *app, out io.Writer) error {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	enc := json.NewEncoder(out)

	var last string
	emit := func(snap *ledger.Snapshot) error {
		now := a.panel.Now()
		label := panel.Label(snap, now)
		if label == last {
			return nil
		}
		last = label
		if !watchJSON {
			_, err := fmt.Fprintln(out, label)
			return err
		}
		class := "idle"
		if _, ok := ledger.CurrentActivity(snap); ok {
			class = "active"
		}
		return enc.Encode(watchLine{
			Label: label,
			Total: "Today " + timecalc.FormatDuration(ledger.TotalMinutes(snap, now)),
			Class: class,
			At:    snap.FetchedAt,
		})
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case snap := <-a.ledger.Changes():
			if err := emit(snap); err != nil {
				return err
			}
		case <-ticker.C:
			if err := emit(a.ledger.Snapshot()); err != nil {
				return err
			}
		}
	}
}
