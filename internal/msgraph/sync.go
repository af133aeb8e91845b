package msgraph

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/Tiliavir/hamster-panel/internal/daemon"
	"github.com/Tiliavir/hamster-panel/internal/ledger"
	"github.com/Tiliavir/hamster-panel/internal/timecalc"
)

// ImportTag is added to every imported fact.
const ImportTag = "outlook"

const untitled = "(no subject)"

// SyncResult holds counters for a sync operation.
type SyncResult struct {
	Imported int
	Skipped  int
	Pending  int
	Errors   int
}

// SyncOptions configures a sync run.
type SyncOptions struct {
	// Project becomes the category of imported facts.
	Project string
	// Location interprets event times and picks "today".
	Location *time.Location
	// Now decides which events are over; later ones are left for the next run.
	Now    time.Time
	DryRun bool
	// Out receives one progress line per event.
	Out io.Writer
}

// PlannedFact is a calendar event translated into a closed fact.
type PlannedFact struct {
	Activity   string
	FactString string
	Start      time.Time
	End        time.Time
}

// Minutes is the planned fact's length.
func (p PlannedFact) Minutes() int64 {
	return int64(p.End.Sub(p.Start) / time.Minute)
}

// parseGraphTime parses a Graph API dateTime string in loc.
// Graph returns times like "2026-02-27T09:00:00.0000000" without a zone suffix
// when a Prefer: outlook.timezone header is set.
func parseGraphTime(dt string, loc *time.Location) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, dt); err == nil {
		return t, nil
	}
	if loc == nil {
		loc = time.UTC
	}
	for _, layout := range []string{
		"2006-01-02T15:04:05.0000000",
		"2006-01-02T15:04:05",
	} {
		if t, err := time.ParseInLocation(layout, dt, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse graph time %q", dt)
}

// shouldSkip returns true if the event should not be imported.
func shouldSkip(event CalendarEvent) bool {
	switch {
	case event.IsCancelled, event.IsAllDay:
		return true
	case event.Sensitivity == "private":
		return true
	case event.ShowAs == "free":
		return true
	case event.Start.DateTime == "" || event.End.DateTime == "":
		return true
	}
	return false
}

// factText collapses whitespace and removes the characters that carry
// meaning in a fact string.
func factText(s string, drop string) string {
	s = strings.Map(func(r rune) rune {
		if strings.ContainsRune(drop, r) {
			return ' '
		}
		return r
	}, s)
	return strings.Join(strings.Fields(s), " ")
}

// MapEvent converts a Graph CalendarEvent into the fact that records it:
// "<subject>@<project>, <preview / location> #outlook".
func MapEvent(event CalendarEvent, loc *time.Location, project string) (PlannedFact, error) {
	start, err := parseGraphTime(event.Start.DateTime, loc)
	if err != nil {
		return PlannedFact{}, fmt.Errorf("parsing start time: %w", err)
	}
	end, err := parseGraphTime(event.End.DateTime, loc)
	if err != nil {
		return PlannedFact{}, fmt.Errorf("parsing end time: %w", err)
	}
	if end.Before(start) {
		return PlannedFact{}, fmt.Errorf("event %q ends before it starts", event.Subject)
	}

	activity := factText(event.Subject, ",#@")
	if activity == "" {
		activity = untitled
	}
	var sb strings.Builder
	sb.WriteString(activity)
	if p := factText(project, ",#@"); p != "" {
		sb.WriteString("@" + p)
	}
	var notes []string
	if s := factText(event.BodyPreview, "#"); s != "" {
		notes = append(notes, s)
	}
	if s := factText(event.Location.DisplayName, "#"); s != "" {
		notes = append(notes, s)
	}
	if len(notes) > 0 {
		sb.WriteString(", " + strings.Join(notes, " / "))
	}
	sb.WriteString(" #" + ImportTag)

	return PlannedFact{
		Activity:   activity,
		FactString: sb.String(),
		Start:      start.UTC(),
		End:        end.UTC(),
	}, nil
}

func factKey(name string, start time.Time) string {
	return fmt.Sprintf("%s|%d", name, start.Unix())
}

// SyncEvents adds every finished, importable event to the tracker as a
// closed fact. Events already present today with the same name and start
// are skipped, so repeated runs are idempotent.
func SyncEvents(ctx context.Context, tr daemon.Tracker, events []CalendarEvent, opts SyncOptions) (SyncResult, error) {
	var result SyncResult
	out := opts.Out
	if out == nil {
		out = io.Discard
	}
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}

	records, err := tr.GetTodaysFacts(ctx)
	if err != nil {
		return result, fmt.Errorf("loading today's facts: %w", err)
	}
	snap := ledger.Ingest(records, opts.Location)
	seen := make(map[string]bool, len(snap.Facts))
	for _, f := range snap.Facts {
		seen[factKey(f.Name, f.Start)] = true
	}

	for _, event := range events {
		if shouldSkip(event) {
			continue
		}
		planned, err := MapEvent(event, opts.Location, opts.Project)
		if err != nil {
			fmt.Fprintf(out, "  ! Error mapping event %q: %v\n", event.Subject, err)
			result.Errors++
			continue
		}
		if planned.End.After(now) {
			fmt.Fprintf(out, "  … Pending:  %s (not over yet)\n", planned.Activity)
			result.Pending++
			continue
		}
		key := factKey(planned.Activity, planned.Start)
		if seen[key] {
			fmt.Fprintf(out, "  – Skipped:  %s (already tracked)\n", planned.Activity)
			result.Skipped++
			continue
		}
		if !opts.DryRun {
			_, err := tr.AddFact(ctx, planned.FactString,
				timecalc.ToEpoch(planned.Start), timecalc.ToEpoch(planned.End), false)
			if err != nil {
				fmt.Fprintf(out, "  ! Error saving %q: %v\n", planned.Activity, err)
				result.Errors++
				continue
			}
		}
		seen[key] = true
		fmt.Fprintf(out, "  ✓ Imported: %s (%s)\n", planned.Activity, timecalc.FormatDuration(planned.Minutes()))
		result.Imported++
	}
	return result, nil
}

// TodayWindow returns the [start, end) range of now's day in loc.
func TodayWindow(now time.Time, loc *time.Location) (time.Time, time.Time) {
	day := timecalc.StartOfDay(now.In(loc))
	return day, day.AddDate(0, 0, 1)
}
