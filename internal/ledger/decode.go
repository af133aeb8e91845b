package ledger

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/Tiliavir/hamster-panel/internal/model"
	"github.com/Tiliavir/hamster-panel/internal/timecalc"
)

// Positions inside a model.RawRecord.
const (
	fieldID = iota
	fieldStart
	fieldEnd
	fieldDescription
	fieldName
	fieldActivityID
	fieldCategory
	fieldTags
	fieldDate
	fieldDuration
)

var fieldNames = [model.RawRecordArity]string{
	"id", "startEpoch", "endEpoch", "description", "name",
	"activityId", "category", "tags", "dateEpoch", "durationSeconds",
}

// RawFact is a daemon record with its positional fields named.
type RawFact struct {
	ID              int64
	StartEpoch      int64
	EndEpoch        int64
	Description     string
	Name            string
	ActivityID      int64
	Category        string
	Tags            []string
	DateEpoch       int64
	DurationSeconds int64
}

// DecodeRecord validates rec and names its fields. index is only used in
// the returned error.
func DecodeRecord(index int, rec model.RawRecord) (RawFact, error) {
	if len(rec) != model.RawRecordArity {
		return RawFact{}, &MalformedRecordError{
			Index:  index,
			Reason: fmt.Sprintf("expected %d fields, got %d", model.RawRecordArity, len(rec)),
		}
	}
	bad := func(pos int, reason string) error {
		return &MalformedRecordError{Index: index, Field: fieldNames[pos], Reason: reason}
	}

	var rf RawFact
	var ok bool

	if rf.ID, ok = asInt(rec[fieldID]); !ok {
		return RawFact{}, bad(fieldID, describe(rec[fieldID]))
	}
	if rf.StartEpoch, ok = asInt(rec[fieldStart]); !ok {
		return RawFact{}, bad(fieldStart, describe(rec[fieldStart]))
	}
	if rf.EndEpoch, ok = asInt(rec[fieldEnd]); !ok {
		return RawFact{}, bad(fieldEnd, describe(rec[fieldEnd]))
	}
	name, isString := rec[fieldName].(string)
	if !isString {
		return RawFact{}, bad(fieldName, describe(rec[fieldName]))
	}
	if strings.TrimSpace(name) == "" {
		return RawFact{}, bad(fieldName, "empty")
	}
	rf.Name = name

	if v := rec[fieldDescription]; v != nil {
		if rf.Description, ok = v.(string); !ok {
			return RawFact{}, bad(fieldDescription, describe(v))
		}
	}
	if v := rec[fieldActivityID]; v != nil {
		if rf.ActivityID, ok = asInt(v); !ok {
			return RawFact{}, bad(fieldActivityID, describe(v))
		}
	}
	if v := rec[fieldCategory]; v != nil {
		if rf.Category, ok = asCategory(v); !ok {
			return RawFact{}, bad(fieldCategory, describe(v))
		}
	}
	if v := rec[fieldTags]; v != nil {
		if rf.Tags, ok = asStrings(v); !ok {
			return RawFact{}, bad(fieldTags, describe(v))
		}
	}
	if v := rec[fieldDate]; v != nil {
		if rf.DateEpoch, ok = asInt(v); !ok {
			return RawFact{}, bad(fieldDate, describe(v))
		}
	}
	if v := rec[fieldDuration]; v != nil {
		if rf.DurationSeconds, ok = asInt(v); !ok {
			return RawFact{}, bad(fieldDuration, describe(v))
		}
	}
	return rf, nil
}

// Fact converts the decoded record into a model.Fact with UTC times.
func (rf RawFact) Fact() model.Fact {
	f := model.Fact{
		ID:            rf.ID,
		Name:          rf.Name,
		Description:   rf.Description,
		Start:         timecalc.FromEpoch(rf.StartEpoch),
		ActivityID:    rf.ActivityID,
		Category:      rf.Category,
		Tags:          dedupeTags(rf.Tags),
		DaemonSeconds: rf.DurationSeconds,
	}
	if rf.EndEpoch != 0 {
		end := timecalc.FromEpoch(rf.EndEpoch)
		f.End = &end
	}
	if rf.DateEpoch != 0 {
		f.Date = timecalc.FromEpoch(rf.DateEpoch)
	}
	return f
}

// asInt accepts every integer kind plus integral float64, which is what a
// JSON transport produces.
func asInt(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		if n > math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	case float64:
		// float64(math.MaxInt64) rounds up to 2^63, one past the range.
		if n != math.Trunc(n) || n >= math.MaxInt64 || n < math.MinInt64 {
			return 0, false
		}
		return int64(n), true
	}
	return 0, false
}

func asCategory(v any) (string, bool) {
	if s, ok := v.(string); ok {
		return s, true
	}
	if n, ok := asInt(v); ok {
		return strconv.FormatInt(n, 10), true
	}
	return "", false
}

func asStrings(v any) ([]string, bool) {
	switch s := v.(type) {
	case []string:
		return s, true
	case []any:
		out := make([]string, 0, len(s))
		for _, item := range s {
			str, ok := item.(string)
			if !ok {
				return nil, false
			}
			out = append(out, str)
		}
		return out, true
	}
	return nil, false
}

// dedupeTags drops repeated tags; tags are a set.
func dedupeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

func describe(v any) string {
	if v == nil {
		return "missing"
	}
	return fmt.Sprintf("unexpected type %T", v)
}
