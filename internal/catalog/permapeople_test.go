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

func intPtr(n int) *int { return &n }

// Every listed data column must be mapped on the record struct: insert and
// scan deref Field without checking.
func TestPermapeopleDataCols_AllMapped(t *testing.T) {
	var zero model.PermapeopleRecord
	for _, col := range permapeopleDataCols {
		assert.NotNilf(t, zero.Field(col), "column %q missing from PermapeopleRecord.Field", col)
	}
	assert.Len(t, permapeopleDataCols, 54)
}

func permapeopleRow() ([]string, []any) {
	cols := []string{
		"id", "permapeople_id", "plant_id", "scientific_name", "common_name",
		"description", "image_url", "slug", "version",
	}
	cols = append(cols, permapeopleDataCols...)
	cols = append(cols, "fetched_at")

	vals := []any{
		int64(1), int64(777), (*int64)(nil), strPtr("Mentha spicata"),
		strPtr("Spearmint"), (*string)(nil), (*string)(nil),
		strPtr("mentha-spicata"), intPtr(3),
	}
	for _, col := range permapeopleDataCols {
		switch col {
		case "water_requirement":
			vals = append(vals, strPtr("Moist"))
		case "soil_ph":
			vals = append(vals, strPtr("6.0 - 7.5"))
		default:
			vals = append(vals, (*string)(nil))
		}
	}
	fetched := time.Date(2026, 2, 24, 4, 0, 0, 0, time.UTC)
	vals = append(vals, fetched)
	return cols, vals
}

func TestGetPermapeople_Found(t *testing.T) {
	c, mock := newMockCatalog(t)

	cols, vals := permapeopleRow()
	mock.ExpectQuery(`FROM flora\.source_permapeople WHERE permapeople_id = \$1`).
		WithArgs(int64(777)).
		WillReturnRows(pgxmock.NewRows(cols).AddRow(vals...))

	rec, err := c.GetPermapeople(context.Background(), mock, 777)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, int64(777), rec.PermapeopleID)
	assert.Nil(t, rec.PlantID)
	require.NotNil(t, rec.Version)
	assert.Equal(t, 3, *rec.Version)
	require.NotNil(t, rec.WaterRequirement)
	assert.Equal(t, "Moist", *rec.WaterRequirement)
	require.NotNil(t, rec.SoilPH)
	assert.Equal(t, "6.0 - 7.5", *rec.SoilPH)
	assert.Nil(t, rec.HardinessZone)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetPermapeople_NotFound(t *testing.T) {
	c, mock := newMockCatalog(t)

	mock.ExpectQuery(`FROM flora\.source_permapeople WHERE permapeople_id = \$1`).
		WithArgs(int64(778)).
		WillReturnError(pgx.ErrNoRows)

	rec, err := c.GetPermapeople(context.Background(), mock, 778)
	require.NoError(t, err)
	assert.Nil(t, rec)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertPermapeople(t *testing.T) {
	c, mock := newMockCatalog(t)

	rec := &model.PermapeopleRecord{
		PermapeopleID:  777,
		PlantID:        int64Ptr(42),
		ScientificName: strPtr("Mentha spicata"),
		CommonName:     strPtr("Spearmint"),
		Version:        intPtr(3),
	}

	mock.ExpectExec(`INSERT INTO flora\.source_permapeople \(permapeople_id, plant_id, scientific_name, common_name`).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := c.InsertPermapeople(context.Background(), mock, rec)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdatePermapeople_NamedColumns(t *testing.T) {
	c, mock := newMockCatalog(t)

	rec := &model.PermapeopleRecord{
		PermapeopleID:    777,
		Version:          intPtr(4),
		WaterRequirement: strPtr("Moist"),
		HardinessZone:    strPtr("5 - 9"),
	}

	mock.ExpectExec(`UPDATE flora\.source_permapeople SET water_requirement = \$1, hardiness_zone = \$2, version = \$3, fetched_at = now\(\) WHERE permapeople_id = \$4`).
		WithArgs(strPtr("Moist"), strPtr("5 - 9"), intPtr(4), int64(777)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := c.UpdatePermapeople(context.Background(), mock, rec, []string{"water_requirement", "hardiness_zone"})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdatePermapeople_UnmappedColumn(t *testing.T) {
	c, mock := newMockCatalog(t)

	rec := &model.PermapeopleRecord{PermapeopleID: 777}
	err := c.UpdatePermapeople(context.Background(), mock, rec, []string{"drop_table"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unmapped permapeople column")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdatePermapeople_NoColumnsStillBumpsVersion(t *testing.T) {
	c, mock := newMockCatalog(t)

	rec := &model.PermapeopleRecord{PermapeopleID: 777, Version: intPtr(5)}

	mock.ExpectExec(`UPDATE flora\.source_permapeople SET version = \$1, fetched_at = now\(\) WHERE permapeople_id = \$2`).
		WithArgs(intPtr(5), int64(777)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := c.UpdatePermapeople(context.Background(), mock, rec, nil)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMaxPermapeopleFetchedAt(t *testing.T) {
	c, mock := newMockCatalog(t)

	ts := time.Date(2026, 2, 23, 9, 30, 0, 0, time.UTC)
	mock.ExpectQuery(`SELECT max\(fetched_at\) FROM flora\.source_permapeople`).
		WillReturnRows(pgxmock.NewRows([]string{"max"}).AddRow(&ts))

	got, err := c.MaxPermapeopleFetchedAt(context.Background())
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, ts.Equal(*got))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMaxPermapeopleFetchedAt_EmptyTable(t *testing.T) {
	c, mock := newMockCatalog(t)

	mock.ExpectQuery(`SELECT max\(fetched_at\) FROM flora\.source_permapeople`).
		WillReturnRows(pgxmock.NewRows([]string{"max"}).AddRow(nil))

	got, err := c.MaxPermapeopleFetchedAt(context.Background())
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCountPermapeopleMatched(t *testing.T) {
	c, mock := newMockCatalog(t)

	mock.ExpectQuery(`SELECT count\(\*\) FROM flora\.source_permapeople WHERE plant_id IS NOT NULL`).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(4100)))

	n, err := c.CountPermapeopleMatched(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(4100), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
