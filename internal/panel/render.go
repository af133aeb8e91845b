package panel

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/Tiliavir/hamster-panel/internal/ledger"
	"github.com/Tiliavir/hamster-panel/internal/timecalc"
)

// IdleLabel is shown when nothing is being tracked.
const IdleLabel = "No activity"

// Label is the one-line panel text: "<name> HH:MM" or IdleLabel.
func Label(snap *ledger.Snapshot, now time.Time) string {
	cur, ok := ledger.CurrentActivity(snap)
	if !ok {
		return IdleLabel
	}
	return cur.Name + " " + timecalc.FormatDuration(ledger.ElapsedMinutes(cur, now))
}

// Row is one line of today's activity list.
type Row struct {
	Span     string `json:"span"`
	Name     string `json:"name"`
	Category string `json:"category,omitempty"`
	Duration string `json:"duration"`
	Open     bool   `json:"open"`
}

// Rows lists today's facts in start order.
func Rows(snap *ledger.Snapshot, now time.Time) []Row {
	if snap == nil {
		return nil
	}
	rows := make([]Row, 0, len(snap.Facts))
	for _, f := range snap.Facts {
		rows = append(rows, Row{
			Span:     timecalc.ClockSpan(f.Start, f.End, snap.Location),
			Name:     f.Name,
			Category: f.Category,
			Duration: timecalc.FormatDurationHuman(ledger.ElapsedMinutes(f, now)),
			Open:     f.IsOpen(),
		})
	}
	return rows
}

// RenderList draws rows as aligned columns, highlighting the running fact.
func RenderList(rows []Row) string {
	if len(rows) == 0 {
		return dimStyle.Render("Nothing tracked today.")
	}
	nameWidth := 0
	for _, r := range rows {
		nameWidth = max(nameWidth, lipgloss.Width(r.Name))
	}
	var sb strings.Builder
	for i, r := range rows {
		line := fmt.Sprintf("%-13s  %-*s  %s", r.Span, nameWidth, r.Name, r.Duration)
		if r.Open {
			line = activeStyle.Render(line)
		}
		sb.WriteString(line)
		if i < len(rows)-1 {
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}

// RenderTotals draws the per-category summary line used when idle.
func RenderTotals(snap *ledger.Snapshot, now time.Time) string {
	totals := ledger.CategoryTotals(snap, now)
	if len(totals) == 0 {
		return ""
	}
	parts := make([]string, 0, len(totals))
	for _, t := range totals {
		cat := t.Category
		if cat == "" {
			cat = "Unsorted"
		}
		parts = append(parts, fmt.Sprintf("%s: %s", cat, timecalc.FormatDurationHuman(t.Minutes)))
	}
	return fmt.Sprintf("Total %s (%s)",
		timecalc.FormatDuration(ledger.TotalMinutes(snap, now)), strings.Join(parts, ", "))
}
