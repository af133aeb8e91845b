package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Tiliavir/hamster-panel/internal/ledger"
	"github.com/Tiliavir/hamster-panel/internal/model"
	"github.com/Tiliavir/hamster-panel/internal/timecalc"
)

var exportFormat string

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export today's facts to stdout",
	Args:  cobra.NoArgs,
	RunE:  runExport,
}

func init() {
	exportCmd.Flags().StringVar(&exportFormat, "format", "csv", "Output format: csv, json, md, yaml")
}

func runExport(cmd *cobra.Command, args []string) error {
	switch exportFormat {
	case "csv", "json", "md", "yaml":
	default:
		fmt.Fprintf(os.Stderr, "unknown --format %q (want csv, json, md or yaml)\n", exportFormat)
		os.Exit(1)
	}

	ctx, cancel := signalContext()
	defer cancel()
	a := openApp(ctx)
	defer a.Close()

	snap := a.mustRefresh(ctx)
	if err := writeExport(os.Stdout, exportFormat, snap, a.panel.Now()); err != nil {
		a.Close()
		exitErr(2, err)
	}
	return nil
}

func writeExport(w io.Writer, format string, snap *ledger.Snapshot, now time.Time) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		facts := snap.Facts
		if facts == nil {
			facts = []model.Fact{}
		}
		return enc.Encode(facts)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(snap.Facts); err != nil {
			return fmt.Errorf("encoding YAML: %w", err)
		}
		return enc.Close()
	case "md":
		return writeMarkdown(w, snap, now)
	default:
		return writeCSV(w, snap, now)
	}
}

func writeCSV(w io.Writer, snap *ledger.Snapshot, now time.Time) error {
	if _, err := fmt.Fprintln(w, "date,activity,category,description,tags,start,end,duration_minutes"); err != nil {
		return err
	}
	for _, f := range snap.Facts {
		end := ""
		if f.End != nil {
			end = f.EndIn(snap.Location).Format(time.RFC3339)
		}
		_, err := fmt.Fprintf(w, "%s,%s,%s,%s,%s,%s,%s,%d\n",
			csvEscape(f.Date.Format("2006-01-02")),
			csvEscape(f.Name),
			csvEscape(f.Category),
			csvEscape(f.Description),
			csvEscape(strings.Join(f.Tags, " ")),
			csvEscape(f.StartIn(snap.Location).Format(time.RFC3339)),
			csvEscape(end),
			ledger.ElapsedMinutes(f, now),
		)
		if err != nil {
			return err
		}
	}
	return nil
}

func writeMarkdown(w io.Writer, snap *ledger.Snapshot, now time.Time) error {
	var b strings.Builder
	b.WriteString("| Time | Activity | Category | Duration |\n")
	b.WriteString("|------|----------|----------|----------|\n")
	for _, f := range snap.Facts {
		fmt.Fprintf(&b, "| %s | %s | %s | %s |\n",
			timecalc.ClockSpan(f.Start, f.End, snap.Location),
			mdEscape(f.Name),
			mdEscape(f.Category),
			timecalc.FormatDuration(ledger.ElapsedMinutes(f, now)),
		)
	}
	fmt.Fprintf(&b, "\n**Total:** %s\n", timecalc.FormatDuration(ledger.TotalMinutes(snap, now)))
	_, err := io.WriteString(w, b.String())
	return err
}

func mdEscape(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

// csvEscape wraps a field in quotes if it contains a comma, quote, or newline.
func csvEscape(s string) string {
	if !strings.ContainsAny(s, ",\"\n\r") {
		return s
	}
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
