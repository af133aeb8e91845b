package mysql

import (
	"context"
	"testing"
	"time"

	"github.com/Tiliavir/hamster-panel/internal/model"
)

func TestFactArgs(t *testing.T) {
	start := time.Date(2026, 2, 27, 9, 0, 0, 0, time.UTC)
	end := start.Add(90 * time.Minute)
	now := start.Add(3 * time.Hour)
	day := time.Date(2026, 2, 27, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		fact     model.Fact
		wantStop any
		wantDay  any
		wantTags string
		wantDur  int64
	}{
		{
			name:     "closed",
			fact:     model.Fact{ID: 1, Name: "Mail", Start: start, End: &end, Date: day, Tags: []string{"admin"}},
			wantStop: end,
			wantDay:  "2026-02-27",
			wantTags: `["admin"]`,
			wantDur:  5400,
		},
		{
			name:     "open without date",
			fact:     model.Fact{ID: 2, Name: "Coding", Start: end},
			wantStop: nil,
			wantDay:  nil,
			wantTags: `[]`,
			wantDur:  5400,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := factArgs(tt.fact, now)
			if len(args) != 10 {
				t.Fatalf("got %d args, want 10", len(args))
			}
			if args[4] != tt.wantTags {
				t.Errorf("tags = %v, want %v", args[4], tt.wantTags)
			}
			if args[6] != tt.wantStop {
				t.Errorf("stop = %v, want %v", args[6], tt.wantStop)
			}
			if args[7] != tt.wantDay {
				t.Errorf("day = %v, want %v", args[7], tt.wantDay)
			}
			if args[8] != tt.wantDur {
				t.Errorf("duration = %v, want %d", args[8], tt.wantDur)
			}
		})
	}
}

func TestNewClientRequiresDSN(t *testing.T) {
	if _, err := NewClient(context.Background(), "", nil); err == nil {
		t.Error("expected error for empty DSN")
	}
}
