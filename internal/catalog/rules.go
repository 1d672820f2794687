package catalog

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/verdantlab/flora-cli/internal/db"
	"github.com/verdantlab/flora-cli/internal/model"
)

// Rules returns all merge rules ordered by field name. The merge engine loads
// them fresh at the start of every run, so edits take effect without a restart.
func (c *Catalog) Rules(ctx context.Context) ([]model.Rule, error) {
	rows, err := c.pool.Query(ctx,
		`SELECT id, field_name, strategy, source_priority, updated_at
		 FROM flora.merge_rules ORDER BY field_name`)
	if err != nil {
		return nil, eris.Wrap(err, "catalog: query merge rules")
	}
	defer rows.Close()

	var rules []model.Rule
	for rows.Next() {
		var r model.Rule
		var strategy string
		if err := rows.Scan(&r.ID, &r.FieldName, &strategy, &r.SourcePriority, &r.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "catalog: scan merge rule")
		}
		r.Strategy = model.Strategy(strategy)
		rules = append(rules, r)
	}
	return rules, rows.Err()
}

// UpsertRules writes rules keyed by field_name, inserting new rows and
// updating existing ones. Returns the number of rows written.
func (c *Catalog) UpsertRules(ctx context.Context, rules []model.Rule) (int64, error) {
	if len(rules) == 0 {
		return 0, nil
	}
	now := time.Now().UTC()
	rows := make([][]any, len(rules))
	for i, r := range rules {
		prio := r.SourcePriority
		if prio == nil {
			prio = []string{} // column is NOT NULL
		}
		rows[i] = []any{r.FieldName, string(r.Strategy), prio, now}
	}
	n, err := db.BulkUpsert(ctx, c.pool, db.UpsertConfig{
		Table:        "flora.merge_rules",
		Columns:      []string{"field_name", "strategy", "source_priority", "updated_at"},
		ConflictKeys: []string{"field_name"},
	}, rows)
	if err != nil {
		return 0, eris.Wrap(err, "catalog: upsert merge rules")
	}
	return n, nil
}
