package model

import "time"

// Strategy selects how a field's candidate values are reconciled.
type Strategy string

const (
	StrategyPriority Strategy = "priority" // first non-null in source-priority order
	StrategyUnion    Strategy = "union"    // deduplicated list union (list fields only)
	StrategyLongest  Strategy = "longest"  // longest string wins
	StrategyAverage  Strategy = "average"  // numeric mean
)

// Valid reports whether s is a known strategy.
func (s Strategy) Valid() bool {
	switch s {
	case StrategyPriority, StrategyUnion, StrategyLongest, StrategyAverage:
		return true
	}
	return false
}

// DefaultPriority is the source order used when a rule does not specify one.
var DefaultPriority = []string{string(SourcePermapeople), string(SourcePerenual)}

// Rule configures merging for one canonical field. Rules are stored in
// Postgres and reloaded at the start of every merge run.
type Rule struct {
	ID             int64     `json:"id"`
	FieldName      string    `json:"field_name"`
	Strategy       Strategy  `json:"strategy"`
	SourcePriority []string  `json:"source_priority,omitempty"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Priority returns the rule's source order, falling back to DefaultPriority.
func (r *Rule) Priority() []string {
	if len(r.SourcePriority) > 0 {
		return r.SourcePriority
	}
	return DefaultPriority
}
