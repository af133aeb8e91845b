package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Tiliavir/hamster-panel/internal/ledger"
)

var startCmd = &cobra.Command{
	Use:   "start <activity>",
	Short: "Start tracking an activity",
	Long: `Start tracking an activity now. The argument uses Hamster's fact syntax:

  activity@category, description #tag

Whatever is running is stopped by the tracker.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runStart,
}

func runStart(cmd *cobra.Command, args []string) error {
	name := strings.Join(args, " ")
	if strings.TrimSpace(name) == "" {
		fmt.Fprintln(os.Stderr, ledger.ErrEmptyActivity)
		os.Exit(1)
	}

	ctx, cancel := signalContext()
	defer cancel()
	a := openApp(ctx)
	defer a.Close()

	snap := a.mustRefresh(ctx)
	if cur, ok := ledger.CurrentActivity(snap); ok {
		fmt.Fprintf(os.Stderr, "Warning: stopping %q.\n", cur.Name)
	}

	id, err := a.panel.Start(ctx, name)
	if err != nil {
		a.Close()
		exitErr(exitCode(err), err)
	}
	a.log.Debugw("fact added", "id", id)
	fmt.Printf("Started %q at %s\n", name, a.panel.Now().In(a.loc).Format("15:04"))
	return nil
}
