package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Tiliavir/hamster-panel/internal/adapter/mysql"
)

var publishDSN string

var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Upsert today's facts into a MySQL table",
	Long: `Copy today's facts into the hamster_facts table of a MySQL database.
Facts are keyed by id, so publishing again updates rows in place. The
table is created on first use.`,
	Args: cobra.NoArgs,
	RunE: runPublish,
}

func init() {
	publishCmd.Flags().StringVar(&publishDSN, "dsn", "", "MySQL DSN (overrides config and HAMSTER_PANEL_MYSQL_DSN)")
}

func runPublish(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()
	a := openApp(ctx)
	defer a.Close()

	dsn := a.cfg.MySQL.DSN
	if publishDSN != "" {
		dsn = publishDSN
	}
	if dsn == "" {
		fmt.Fprintln(os.Stderr, "No MySQL DSN configured. Set mysql.dsn in the config file or pass --dsn.")
		a.Close()
		os.Exit(1)
	}

	snap := a.mustRefresh(ctx)

	sink, err := mysql.NewClient(ctx, dsn, a.log)
	if err != nil {
		a.Close()
		exitErr(2, err)
	}
	defer sink.Close()

	if err := sink.Migrate(ctx); err != nil {
		sink.Close()
		a.Close()
		exitErr(2, err)
	}
	if err := sink.SyncFacts(ctx, snap.Facts); err != nil {
		sink.Close()
		a.Close()
		exitErr(2, err)
	}
	fmt.Printf("Published %d facts to %s.\n", len(snap.Facts), mysql.Table)
	return nil
}
