package cmd

import (
	"github.com/spf13/cobra"

	"github.com/Tiliavir/hamster-panel/internal/panel"
)

var menuCmd = &cobra.Command{
	Use:   "menu",
	Short: "Open the interactive panel menu",
	Long: `Open a terminal menu showing the running activity and today's facts.
Type an activity and press enter to start it, ctrl+s stops tracking.`,
	Args: cobra.NoArgs,
	RunE: runMenu,
}

func runMenu(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()
	a := openApp(ctx)
	defer a.Close()

	return panel.RunMenu(ctx, a.panel, a.interval(), a.tracker.Signals())
}
