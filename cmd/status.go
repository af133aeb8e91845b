package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Tiliavir/hamster-panel/internal/ledger"
	"github.com/Tiliavir/hamster-panel/internal/panel"
	"github.com/Tiliavir/hamster-panel/internal/timecalc"
)

var statusLabel bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the running activity",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().BoolVar(&statusLabel, "label", false, "Print only the one-line panel label")
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()
	a := openApp(ctx)
	defer a.Close()

	snap := a.mustRefresh(ctx)
	now := a.panel.Now()

	if statusLabel {
		fmt.Println(panel.Label(snap, now))
		return nil
	}

	if cur, ok := ledger.CurrentActivity(snap); ok {
		fmt.Println("Running:")
		fmt.Printf("  Activity: %s\n", cur.Name)
		if cur.Category != "" {
			fmt.Printf("  Category: %s\n", cur.Category)
		}
		fmt.Printf("  Since: %s\n", cur.StartIn(a.loc).Format("15:04"))
		fmt.Printf("  Elapsed: %s\n", timecalc.FormatDuration(ledger.ElapsedMinutes(cur, now)))
		return nil
	}

	fmt.Println("No activity.")
	fmt.Printf("Today: %s logged.\n", timecalc.FormatDuration(ledger.TotalMinutes(snap, now)))
	return nil
}
