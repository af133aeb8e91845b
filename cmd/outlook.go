package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Tiliavir/hamster-panel/internal/msgraph"
	"github.com/Tiliavir/hamster-panel/internal/timecalc"
)

var (
	outlookSyncDryRun  bool
	outlookSyncProject string
	outlookSyncTZ      string
)

var outlookCmd = &cobra.Command{
	Use:   "outlook",
	Short: "Outlook calendar integration",
}

var outlookSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Import today's finished Outlook meetings as facts",
	Long: `Import today's Outlook calendar events that are already over as closed
facts tagged #outlook. Events that are still running or lie ahead are left
for a later run; events imported before are skipped.`,
	Args: cobra.NoArgs,
	RunE: runOutlookSync,
}

func init() {
	outlookSyncCmd.Flags().BoolVar(&outlookSyncDryRun, "dry-run", false, "Print planned operations without writing")
	outlookSyncCmd.Flags().StringVar(&outlookSyncProject, "project", "", "Category for imported events (default from config)")
	outlookSyncCmd.Flags().StringVar(&outlookSyncTZ, "timezone", "", "IANA timezone for event times (default from config)")
	outlookCmd.AddCommand(outlookSyncCmd)
}

func runOutlookSync(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()
	a := openApp(ctx)
	defer a.Close()

	project := a.cfg.Outlook.DefaultProject
	if outlookSyncProject != "" {
		project = outlookSyncProject
	}

	// Graph needs a zone name; without one it answers in UTC.
	timezone := a.cfg.Timezone
	if outlookSyncTZ != "" {
		timezone = outlookSyncTZ
	}
	eventLoc := time.UTC
	if timezone != "" {
		loc, err := timecalc.LoadLocation(timezone)
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid --timezone %q: %v\n", timezone, err)
			a.Close()
			os.Exit(1)
		}
		eventLoc = loc
	}

	now := a.panel.Now()
	from, to := msgraph.TodayWindow(now, a.loc)

	dryTag := ""
	if outlookSyncDryRun {
		dryTag = " [dry-run]"
	}
	fmt.Printf("Syncing Outlook events for %s%s...\n", from.Format("2006-01-02"), dryTag)
	fmt.Println()

	tokenPath, err := msgraph.DefaultTokenPath()
	if err != nil {
		a.Close()
		exitErr(2, err)
	}
	auth := msgraph.NewAuth(a.cfg.Outlook.TenantID, a.cfg.Outlook.ClientID, tokenPath, os.Stdout, a.log)
	httpClient, err := auth.HTTPClient(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Authentication failed: %v\n", err)
		a.Close()
		os.Exit(1)
	}

	events, err := msgraph.NewClient(httpClient, "").GetCalendarView(ctx, from, to, timezone)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to fetch calendar events: %v\n", err)
		a.Close()
		os.Exit(2)
	}

	result, err := msgraph.SyncEvents(ctx, a.tracker, events, msgraph.SyncOptions{
		Project:  project,
		Location: eventLoc,
		Now:      now,
		DryRun:   outlookSyncDryRun,
		Out:      os.Stdout,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Sync error: %v\n", err)
		a.Close()
		os.Exit(2)
	}

	fmt.Println()
	fmt.Println("Summary:")
	fmt.Printf("  %d imported\n", result.Imported)
	fmt.Printf("  %d skipped\n", result.Skipped)
	fmt.Printf("  %d pending\n", result.Pending)
	if result.Errors > 0 {
		fmt.Printf("  %d errors\n", result.Errors)
		a.Close()
		os.Exit(2)
	}
	return nil
}
