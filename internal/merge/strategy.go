package merge

import (
	"math"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/cases"

	"github.com/verdantlab/flora-cli/internal/model"
)

// applyStrategy resolves the normalized candidates under the rule's strategy.
// Every strategy consults only the sources named in the priority list, in
// order. Unknown strategies fall back to priority.
func applyStrategy(s model.Strategy, values map[string]Value, priority []string) (Value, error) {
	switch s {
	case model.StrategyUnion:
		return applyUnion(values, priority), nil
	case model.StrategyLongest:
		return applyLongest(values, priority), nil
	case model.StrategyAverage:
		return applyAverage(values, priority)
	default:
		return applyPriority(values, priority), nil
	}
}

// applyPriority returns the first source's value in priority order.
func applyPriority(values map[string]Value, priority []string) Value {
	for _, src := range priority {
		if v, ok := values[src]; ok {
			return v
		}
	}
	return nil
}

// applyUnion concatenates list values in priority order, deduplicating on a
// case-folded, trimmed key. First-seen casing and order win. Non-list values
// are ignored.
func applyUnion(values map[string]Value, priority []string) Value {
	fold := cases.Fold()
	var merged []string
	seen := make(map[string]bool)
	for _, src := range priority {
		list, ok := values[src].([]string)
		if !ok {
			continue
		}
		for _, item := range list {
			trimmed := strings.TrimSpace(item)
			key := fold.String(trimmed)
			if key == "" || seen[key] {
				continue
			}
			seen[key] = true
			merged = append(merged, trimmed)
		}
	}
	if len(merged) == 0 {
		return nil
	}
	return merged
}

// applyLongest returns the longest string value. Ties keep the earlier source
// in priority order; non-string values are ignored.
func applyLongest(values map[string]Value, priority []string) Value {
	best := ""
	found := false
	for _, src := range priority {
		s, ok := values[src].(string)
		if !ok || s == "" {
			continue
		}
		if !found || len(s) > len(best) {
			best = s
			found = true
		}
	}
	if !found {
		return nil
	}
	return best
}

// applyAverage returns the mean of the numeric values: an int when every
// contributing value is int, otherwise rounded to two decimals. A non-numeric
// value is an error; average is only meaningful on numeric columns.
func applyAverage(values map[string]Value, priority []string) (Value, error) {
	var sum float64
	n := 0
	allInt := true
	for _, src := range priority {
		v, ok := values[src]
		if !ok {
			continue
		}
		switch x := v.(type) {
		case int:
			sum += float64(x)
		case float64:
			sum += x
			allInt = false
		default:
			return nil, eris.Errorf("average: non-numeric value %T", v)
		}
		n++
	}
	if n == 0 {
		return nil, nil
	}
	avg := sum / float64(n)
	if allInt {
		return int(math.Round(avg)), nil
	}
	return math.Round(avg*100) / 100, nil
}
