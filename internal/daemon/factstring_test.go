package daemon

import (
	"reflect"
	"testing"
)

func TestParseFactString(t *testing.T) {
	tests := []struct {
		in   string
		want FactInput
	}{
		{"Coding", FactInput{Activity: "Coding"}},
		{"Coding@Work", FactInput{Activity: "Coding", Category: "Work"}},
		{"Coding@Work, fixing the parser", FactInput{Activity: "Coding", Category: "Work", Description: "fixing the parser"}},
		{"Coding@Work, review #go #oss", FactInput{Activity: "Coding", Category: "Work", Description: "review", Tags: []string{"go", "oss"}}},
		{"  Mail  #admin", FactInput{Activity: "Mail", Tags: []string{"admin"}}},
		{"user@example.com@Inbox", FactInput{Activity: "user@example.com", Category: "Inbox"}},
		{"C# port", FactInput{Activity: "C# port"}},
	}
	for _, tt := range tests {
		got := ParseFactString(tt.in)
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("ParseFactString(%q) = %+v, want %+v", tt.in, got, tt.want)
		}
	}
}
