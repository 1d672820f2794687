package catalog

import (
	"context"
	"fmt"
	"sync"

	"github.com/rotisserie/eris"
	"golang.org/x/sync/errgroup"

	"github.com/verdantlab/flora-cli/internal/model"
)

// coverageConcurrency bounds the parallel count queries so a wide field list
// doesn't drain the pool.
const coverageConcurrency = 4

var plantColSet = func() map[string]bool {
	s := make(map[string]bool, len(plantCols))
	for _, col := range plantCols {
		s[col] = true
	}
	return s
}()

// PlantFieldCoverage counts non-null values per canonical column.
func (c *Catalog) PlantFieldCoverage(ctx context.Context, cols []string) (map[string]int64, error) {
	return c.fieldCoverage(ctx, "flora.plants", cols, func(col string) bool {
		return plantColSet[col]
	})
}

// PermapeopleFieldCoverage counts non-null values per raw catalog column.
func (c *Catalog) PermapeopleFieldCoverage(ctx context.Context, cols []string) (map[string]int64, error) {
	var zero model.PermapeopleRecord
	return c.fieldCoverage(ctx, "flora.source_permapeople", cols, func(col string) bool {
		return zero.Field(col) != nil
	})
}

func (c *Catalog) fieldCoverage(ctx context.Context, table string, cols []string, allowed func(string) bool) (map[string]int64, error) {
	counts := make(map[string]int64, len(cols))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(coverageConcurrency)
	for _, col := range cols {
		if !allowed(col) {
			return nil, eris.Errorf("catalog: unknown %s column %q", table, col)
		}
		col := col
		g.Go(func() error {
			var n int64
			sql := fmt.Sprintf("SELECT count(*) FROM %s WHERE %s IS NOT NULL", table, col)
			if err := c.pool.QueryRow(gctx, sql).Scan(&n); err != nil {
				return eris.Wrapf(err, "catalog: coverage count %s.%s", table, col)
			}
			mu.Lock()
			counts[col] = n
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return counts, nil
}
