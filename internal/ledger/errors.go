package ledger

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedRecord matches every *MalformedRecordError.
	ErrMalformedRecord = errors.New("malformed fact record")
	// ErrNoOpenActivity is returned by StopCurrent when nothing is being
	// tracked. Callers treat it as a no-op.
	ErrNoOpenActivity = errors.New("no activity is being tracked")
	// ErrEmptyActivity is returned by AppendActivity for a blank name.
	ErrEmptyActivity = errors.New("activity name is empty")
)

// MalformedRecordError describes why a single raw record was skipped.
type MalformedRecordError struct {
	Index  int
	Field  string
	Reason string
}

func (e *MalformedRecordError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("record %d: %s", e.Index, e.Reason)
	}
	return fmt.Sprintf("record %d: field %s: %s", e.Index, e.Field, e.Reason)
}

func (e *MalformedRecordError) Is(target error) bool {
	return target == ErrMalformedRecord
}
