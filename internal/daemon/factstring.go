package daemon

import "strings"

// FactInput is a fact string split into its parts. The syntax is the one the
// Hamster service accepts: "activity@category, description #tag #tag".
type FactInput struct {
	Activity    string
	Category    string
	Description string
	Tags        []string
}

func ParseFactString(s string) FactInput {
	fields := strings.Fields(s)
	var tags []string
	for len(fields) > 0 {
		last := fields[len(fields)-1]
		if len(last) < 2 || last[0] != '#' {
			break
		}
		tags = append([]string{last[1:]}, tags...)
		fields = fields[:len(fields)-1]
	}

	head, desc, _ := strings.Cut(strings.Join(fields, " "), ",")
	in := FactInput{Activity: head, Description: strings.TrimSpace(desc), Tags: tags}
	if i := strings.LastIndex(head, "@"); i >= 0 {
		in.Activity = head[:i]
		in.Category = strings.TrimSpace(head[i+1:])
	}
	in.Activity = strings.TrimSpace(in.Activity)
	return in
}
