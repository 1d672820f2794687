package catalog

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verdantlab/flora-cli/internal/model"
)

func newMockCatalog(t *testing.T) (*Catalog, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return New(mock), mock
}

func strPtr(s string) *string { return &s }

func int64Ptr(n int64) *int64 { return &n }

func TestFindByScientificName_Found(t *testing.T) {
	c, mock := newMockCatalog(t)

	mock.ExpectQuery(`SELECT id, common_name, scientific_name FROM flora\.plants\s+WHERE lower\(scientific_name\) = lower\(\$1\)`).
		WithArgs("mentha spicata").
		WillReturnRows(pgxmock.NewRows([]string{"id", "common_name", "scientific_name"}).
			AddRow(int64(7), "Spearmint", strPtr("Mentha spicata")))

	ref, err := c.FindByScientificName(context.Background(), mock, "mentha spicata")
	require.NoError(t, err)
	require.NotNil(t, ref)
	assert.Equal(t, int64(7), ref.ID)
	assert.Equal(t, "Spearmint", ref.CommonName)
	require.NotNil(t, ref.ScientificName)
	assert.Equal(t, "Mentha spicata", *ref.ScientificName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindByScientificName_NotFound(t *testing.T) {
	c, mock := newMockCatalog(t)

	mock.ExpectQuery(`SELECT id, common_name, scientific_name FROM flora\.plants`).
		WithArgs("No such plant").
		WillReturnError(pgx.ErrNoRows)

	ref, err := c.FindByScientificName(context.Background(), mock, "No such plant")
	require.NoError(t, err)
	assert.Nil(t, ref)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindByName_ScientificWins(t *testing.T) {
	c, mock := newMockCatalog(t)

	// Scientific-name hit means the common-name query never runs.
	mock.ExpectQuery(`lower\(scientific_name\) = lower\(\$1\)`).
		WithArgs("Ocimum basilicum").
		WillReturnRows(pgxmock.NewRows([]string{"id", "common_name", "scientific_name"}).
			AddRow(int64(3), "Basil", strPtr("Ocimum basilicum")))

	ref, err := c.FindByName(context.Background(), mock, "Ocimum basilicum", "Basil")
	require.NoError(t, err)
	require.NotNil(t, ref)
	assert.Equal(t, int64(3), ref.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindByName_FallsBackToCommonName(t *testing.T) {
	c, mock := newMockCatalog(t)

	mock.ExpectQuery(`lower\(scientific_name\) = lower\(\$1\)`).
		WithArgs("Ocimum basilicum").
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery(`lower\(common_name\) = lower\(\$1\)`).
		WithArgs("Basil").
		WillReturnRows(pgxmock.NewRows([]string{"id", "common_name", "scientific_name"}).
			AddRow(int64(3), "Basil", nil))

	ref, err := c.FindByName(context.Background(), mock, "Ocimum basilicum", "Basil")
	require.NoError(t, err)
	require.NotNil(t, ref)
	assert.Equal(t, int64(3), ref.ID)
	assert.Nil(t, ref.ScientificName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindByName_BothEmpty(t *testing.T) {
	c, mock := newMockCatalog(t)

	ref, err := c.FindByName(context.Background(), mock, "  ", "")
	require.NoError(t, err)
	assert.Nil(t, ref)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateStub(t *testing.T) {
	c, mock := newMockCatalog(t)

	p := &model.Plant{
		CommonName:     "Spearmint",
		ScientificName: strPtr("Mentha spicata"),
		ImageURL:       strPtr("https://img.example/spearmint.jpg"),
		Source:         model.SourcePerenual,
		ExternalID:     strPtr("123"),
		DataSources:    []string{"perenual"},
	}

	mock.ExpectQuery(`INSERT INTO flora\.plants`).
		WithArgs(
			"Spearmint", strPtr("Mentha spicata"), (*string)(nil),
			strPtr("https://img.example/spearmint.jpg"), "perenual",
			strPtr("123"), false, []string{"perenual"},
		).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(42)))

	id, err := c.CreateStub(context.Background(), mock, p)
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPerenualSeen(t *testing.T) {
	c, mock := newMockCatalog(t)

	mock.ExpectQuery(`SELECT id FROM flora\.source_perenual WHERE perenual_id = \$1`).
		WithArgs(int64(555)).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(9)))

	seen, err := c.PerenualSeen(context.Background(), mock, 555)
	require.NoError(t, err)
	assert.True(t, seen)

	mock.ExpectQuery(`SELECT id FROM flora\.source_perenual WHERE perenual_id = \$1`).
		WithArgs(int64(556)).
		WillReturnError(pgx.ErrNoRows)

	seen, err = c.PerenualSeen(context.Background(), mock, 556)
	require.NoError(t, err)
	assert.False(t, seen)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertPerenual(t *testing.T) {
	c, mock := newMockCatalog(t)

	rec := &model.PerenualRecord{
		PerenualID:     555,
		PlantID:        int64Ptr(42),
		CommonName:     strPtr("Spearmint"),
		ScientificName: strPtr("Mentha spicata"),
	}

	mock.ExpectExec(`INSERT INTO flora\.source_perenual`).
		WithArgs(int64(555), int64Ptr(42), strPtr("Spearmint"), strPtr("Mentha spicata"), (*string)(nil)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := c.InsertPerenual(context.Background(), mock, rec)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCountPlants(t *testing.T) {
	c, mock := newMockCatalog(t)

	mock.ExpectQuery(`SELECT count\(\*\) FROM flora\.plants`).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(12500)))

	n, err := c.CountPlants(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(12500), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
