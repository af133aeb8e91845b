package timecalc

import (
	"fmt"
	"strings"
	"time"
)

// FormatDuration formats minutes as zero-padded HH:MM. Hours do not wrap at
// a day boundary, so 1500 renders as "25:00".
func FormatDuration(minutes int64) string {
	if minutes < 0 {
		minutes = 0
	}
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// FormatDurationHuman formats minutes as "2h 5min", "1h" or "5min".
// Zero minutes read as "Just started".
func FormatDurationHuman(minutes int64) string {
	if minutes <= 0 {
		return "Just started"
	}
	h := minutes / 60
	m := minutes % 60
	var parts []string
	if h > 0 {
		parts = append(parts, fmt.Sprintf("%dh", h))
	}
	if m > 0 {
		parts = append(parts, fmt.Sprintf("%dmin", m))
	}
	return strings.Join(parts, " ")
}

// FromEpoch converts daemon epoch seconds (UTC) into a UTC time.
func FromEpoch(sec int64) time.Time {
	return time.Unix(sec, 0).UTC()
}

// ToEpoch converts t into UTC epoch seconds for the daemon.
func ToEpoch(t time.Time) int64 {
	return t.UTC().Unix()
}

// DateEpoch returns midnight UTC of t's calendar day in loc, the encoding the
// daemon uses for a fact's attributed date.
func DateEpoch(t time.Time, loc *time.Location) int64 {
	l := t.In(loc)
	return time.Date(l.Year(), l.Month(), l.Day(), 0, 0, 0, 0, time.UTC).Unix()
}

// ClockSpan formats a start/end pair as "09:00 - 10:30". An open interval
// renders as "09:00 - ".
func ClockSpan(start time.Time, end *time.Time, loc *time.Location) string {
	s := start.In(loc).Format("15:04") + " - "
	if end != nil {
		s += end.In(loc).Format("15:04")
	}
	return s
}

// StartOfDay returns 00:00:00 of the same day.
func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// SameDay reports whether two times fall on the same calendar day.
func SameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// LoadLocation resolves an IANA zone name; empty means time.Local.
func LoadLocation(name string) (*time.Location, error) {
	if name == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("unknown timezone %q: %w", name, err)
	}
	return loc, nil
}
