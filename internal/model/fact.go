package model

import "time"

// RawRecord is one fact as delivered by the tracking daemon, a fixed-arity
// positional tuple:
//
//	[id, startEpoch, endEpoch, description, name, activityId, category, tags, dateEpoch, durationSeconds]
//
// endEpoch == 0 marks an open fact.
type RawRecord []any

// RawRecordArity is the number of fields in a RawRecord.
const RawRecordArity = 10

// Fact represents a single tracked activity interval.
// Start and End are UTC instants; use StartIn/EndIn for display.
type Fact struct {
	ID          int64      `json:"id" yaml:"id"`
	Name        string     `json:"name" yaml:"name"`
	Description string     `json:"description" yaml:"description"`
	Start       time.Time  `json:"start" yaml:"start"`
	End         *time.Time `json:"end" yaml:"end"`
	ActivityID  int64      `json:"activity_id" yaml:"activity_id"`
	Category    string     `json:"category" yaml:"category"`
	Tags        []string   `json:"tags" yaml:"tags"`
	// Date is the calendar day the daemon attributes the fact to, stored as
	// midnight UTC of that day. It may differ from Start's day near midnight.
	Date time.Time `json:"date" yaml:"date"`
	// DaemonSeconds is the duration reported by the daemon at fetch time.
	DaemonSeconds int64 `json:"daemon_seconds" yaml:"daemon_seconds"`
}

// IsOpen reports whether the fact is still being tracked.
func (f Fact) IsOpen() bool {
	return f.End == nil
}

// StartIn returns the start time in loc.
func (f Fact) StartIn(loc *time.Location) time.Time {
	return f.Start.In(loc)
}

// EndIn returns the end time in loc, or the zero time for an open fact.
func (f Fact) EndIn(loc *time.Location) time.Time {
	if f.End == nil {
		return time.Time{}
	}
	return f.End.In(loc)
}

// Record encodes the fact back into the daemon's positional tuple.
func (f Fact) Record() RawRecord {
	var end int64
	if f.End != nil {
		end = f.End.Unix()
	}
	tags := f.Tags
	if tags == nil {
		tags = []string{}
	}
	var date int64
	if !f.Date.IsZero() {
		date = f.Date.Unix()
	}
	return RawRecord{
		f.ID,
		f.Start.Unix(),
		end,
		f.Description,
		f.Name,
		f.ActivityID,
		f.Category,
		tags,
		date,
		f.DaemonSeconds,
	}
}

// DayFile is the top-level structure stored in each daily JSON file of the
// file-backed tracker.
type DayFile struct {
	Date  string `json:"date"`
	Facts []Fact `json:"facts"`
}
