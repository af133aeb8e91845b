// Package ledger turns the daemon's fact records into immutable snapshots
// and answers the queries a panel needs: what is running, for how long, and
// what was done today.
package ledger

import (
	"sort"
	"strings"
	"time"

	"github.com/Tiliavir/hamster-panel/internal/model"
	"github.com/Tiliavir/hamster-panel/internal/timecalc"
)

// Snapshot is an immutable view of today's facts. Never modify a Snapshot
// after it has been returned by Ingest.
type Snapshot struct {
	// Facts are ordered by start time ascending.
	Facts []model.Fact
	// Location is the zone used for display.
	Location *time.Location
	// Skipped counts records that failed to decode; Malformed holds why.
	Skipped   int
	Malformed []error
	FetchedAt time.Time
}

// Empty returns a snapshot with no facts.
func Empty(loc *time.Location) *Snapshot {
	if loc == nil {
		loc = time.Local
	}
	return &Snapshot{Location: loc}
}

// Ingest decodes records into a new snapshot. Malformed records are skipped
// and reported; the rest still make it into the snapshot.
func Ingest(records []model.RawRecord, loc *time.Location) *Snapshot {
	snap := Empty(loc)
	snap.Facts = make([]model.Fact, 0, len(records))
	for i, rec := range records {
		rf, err := DecodeRecord(i, rec)
		if err != nil {
			snap.Skipped++
			snap.Malformed = append(snap.Malformed, err)
			continue
		}
		snap.Facts = append(snap.Facts, rf.Fact())
	}
	sort.SliceStable(snap.Facts, func(i, j int) bool {
		a, b := snap.Facts[i], snap.Facts[j]
		if !a.Start.Equal(b.Start) {
			return a.Start.Before(b.Start)
		}
		// An open fact sorts after a closed one with the same start.
		return !a.IsOpen() && b.IsOpen()
	})
	return snap
}

// CurrentActivity returns the last fact if and only if it is still open.
// Earlier open facts never count as current.
func CurrentActivity(snap *Snapshot) (model.Fact, bool) {
	if snap == nil || len(snap.Facts) == 0 {
		return model.Fact{}, false
	}
	last := snap.Facts[len(snap.Facts)-1]
	if !last.IsOpen() {
		return model.Fact{}, false
	}
	return last, true
}

// ElapsedMinutes returns the fact's duration in whole minutes, truncated
// toward zero. Open facts are measured up to now. Both ends are absolute
// instants, so daylight-saving shifts in the display zone do not matter.
func ElapsedMinutes(f model.Fact, now time.Time) int64 {
	end := now
	if f.End != nil {
		end = *f.End
	}
	d := end.UTC().Sub(f.Start.UTC())
	if d < 0 {
		return 0
	}
	return int64(d / time.Minute)
}

// TotalMinutes sums ElapsedMinutes over every fact in the snapshot.
func TotalMinutes(snap *Snapshot, now time.Time) int64 {
	if snap == nil {
		return 0
	}
	var total int64
	for _, f := range snap.Facts {
		total += ElapsedMinutes(f, now)
	}
	return total
}

// CategoryTotal is the time spent in one category.
type CategoryTotal struct {
	Category string
	Minutes  int64
}

// CategoryTotals groups today's minutes by category, largest first.
// Facts without a category are grouped under "".
func CategoryTotals(snap *Snapshot, now time.Time) []CategoryTotal {
	if snap == nil {
		return nil
	}
	byCat := map[string]int64{}
	for _, f := range snap.Facts {
		byCat[f.Category] += ElapsedMinutes(f, now)
	}
	out := make([]CategoryTotal, 0, len(byCat))
	for c, m := range byCat {
		out = append(out, CategoryTotal{Category: c, Minutes: m})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Minutes != out[j].Minutes {
			return out[i].Minutes > out[j].Minutes
		}
		return out[i].Category < out[j].Category
	})
	return out
}

// AddFactCommand asks the daemon to start a new activity.
type AddFactCommand struct {
	Name       string
	StartEpoch int64
	// EndEpoch is always 0: the new fact is open and carries no category.
	EndEpoch int64
	// Temporary is the daemon's historic-edit flag; new activities are not.
	Temporary bool
}

// StopCommand asks the daemon to close the open fact.
type StopCommand struct {
	FactID   int64
	EndEpoch int64
}

// AppendActivity builds the request that starts name at now. The ledger is
// not touched; callers refresh after the daemon has accepted the request.
func AppendActivity(name string, now time.Time) (AddFactCommand, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return AddFactCommand{}, ErrEmptyActivity
	}
	return AddFactCommand{
		Name:       name,
		StartEpoch: timecalc.ToEpoch(now),
	}, nil
}

// StopCurrent builds the request that closes the current activity at now,
// or returns ErrNoOpenActivity.
func StopCurrent(snap *Snapshot, now time.Time) (StopCommand, error) {
	cur, ok := CurrentActivity(snap)
	if !ok {
		return StopCommand{}, ErrNoOpenActivity
	}
	return StopCommand{FactID: cur.ID, EndEpoch: timecalc.ToEpoch(now)}, nil
}
