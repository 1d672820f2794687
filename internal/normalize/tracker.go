package normalize

import (
	"sort"
	"strings"
)

// Tracker accumulates raw values that no synonym table or parser could map,
// per field. The merge report surfaces the most frequent ones so the tables
// can be extended deliberately.
type Tracker struct {
	counts map[string]map[string]int
}

// NewTracker returns an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{counts: make(map[string]map[string]int)}
}

// Add records one unmapped raw value for a field. Values are keyed
// case-insensitively.
func (t *Tracker) Add(field, raw string) {
	key := strings.ToLower(strings.TrimSpace(raw))
	if t.counts[field] == nil {
		t.counts[field] = make(map[string]int)
	}
	t.counts[field][key]++
}

// Len reports the number of distinct (field, value) pairs tracked.
func (t *Tracker) Len() int {
	n := 0
	for _, vals := range t.counts {
		n += len(vals)
	}
	return n
}

// Fields returns the tracked field names, sorted.
func (t *Tracker) Fields() []string {
	fields := make([]string, 0, len(t.counts))
	for f := range t.counts {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return fields
}

// ValueCount is one unmapped value and how many records carried it.
type ValueCount struct {
	Value string
	Count int
}

// Top returns the n most frequent unmapped values for a field, most frequent
// first; ties break alphabetically for stable reports.
func (t *Tracker) Top(field string, n int) []ValueCount {
	vals := t.counts[field]
	out := make([]ValueCount, 0, len(vals))
	for v, c := range vals {
		out = append(out, ValueCount{Value: v, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Value < out[j].Value
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}
