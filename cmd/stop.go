package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running activity",
	Args:  cobra.NoArgs,
	RunE:  runStop,
}

func runStop(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()
	a := openApp(ctx)
	defer a.Close()

	a.mustRefresh(ctx)
	fact, stopped, err := a.panel.Stop(ctx)
	if err != nil {
		a.Close()
		exitErr(exitCode(err), err)
	}
	if !stopped {
		fmt.Println("No activity to stop.")
		return nil
	}

	elapsed := int64(fact.End.Sub(fact.Start).Seconds())
	fmt.Printf("Stopped %q. Elapsed: %s\n", fact.Name, formatElapsed(elapsed))
	return nil
}

func formatElapsed(seconds int64) string {
	if seconds < 0 {
		seconds = 0
	}
	h := seconds / 3600
	m := (seconds % 3600) / 60
	s := seconds % 60
	if h > 0 {
		return fmt.Sprintf("%dh %dm %ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm %ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}
