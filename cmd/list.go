package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Tiliavir/hamster-panel/internal/panel"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List today's activities",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

func runList(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()
	a := openApp(ctx)
	defer a.Close()

	snap := a.mustRefresh(ctx)
	now := a.panel.Now()

	fmt.Println(panel.RenderList(panel.Rows(snap, now)))
	if len(snap.Facts) > 0 {
		fmt.Println()
		fmt.Println(panel.RenderTotals(snap, now))
	}
	if snap.Skipped > 0 {
		a.log.Warnw("malformed facts skipped", "count", snap.Skipped)
	}
	return nil
}
