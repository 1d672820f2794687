package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verdantlab/flora-cli/internal/model"
)

func TestRules_ScansPriority(t *testing.T) {
	c, mock := newMockCatalog(t)

	updated := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`FROM flora\.merge_rules ORDER BY field_name`).
		WillReturnRows(pgxmock.NewRows([]string{"id", "field_name", "strategy", "source_priority", "updated_at"}).
			AddRow(int64(3), "common_name", "priority", []string{"perenual", "permapeople"}, updated).
			AddRow(int64(9), "hardiness_zones", "union", []string{"permapeople"}, updated).
			AddRow(int64(12), "water_needs", "priority", []string{}, updated))

	rules, err := c.Rules(context.Background())
	require.NoError(t, err)
	require.Len(t, rules, 3)

	assert.Equal(t, "common_name", rules[0].FieldName)
	assert.Equal(t, model.StrategyPriority, rules[0].Strategy)
	assert.Equal(t, []string{"perenual", "permapeople"}, rules[0].SourcePriority)

	assert.Equal(t, model.StrategyUnion, rules[1].Strategy)

	// An empty priority array falls back to the default order.
	assert.Empty(t, rules[2].SourcePriority)
	assert.Equal(t, model.DefaultPriority, rules[2].Priority())

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRules_QueryError(t *testing.T) {
	c, mock := newMockCatalog(t)

	mock.ExpectQuery(`FROM flora\.merge_rules`).WillReturnError(pgx.ErrTxClosed)

	_, err := c.Rules(context.Background())
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertRules_FullFlow(t *testing.T) {
	c, mock := newMockCatalog(t)

	rules := []model.Rule{
		{FieldName: "description", Strategy: model.StrategyLongest, SourcePriority: []string{"permapeople", "perenual"}},
		{FieldName: "water_needs", Strategy: model.StrategyPriority}, // nil priority becomes an empty array
	}

	mock.ExpectBegin()
	mock.ExpectExec("CREATE TEMP TABLE").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_flora_merge_rules"},
		[]string{"field_name", "strategy", "source_priority", "updated_at"}).
		WillReturnResult(2)
	mock.ExpectExec("INSERT INTO").WillReturnResult(pgxmock.NewResult("INSERT", 2))
	mock.ExpectCommit()
	mock.ExpectRollback()

	n, err := c.UpsertRules(context.Background(), rules)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertRules_Empty(t *testing.T) {
	c, mock := newMockCatalog(t)

	n, err := c.UpsertRules(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
