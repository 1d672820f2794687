package merge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verdantlab/flora-cli/internal/model"
	"github.com/verdantlab/flora-cli/internal/normalize"
)

func strPtr(s string) *string { return &s }

// ppRecord builds a permapeople record with the given column values set
// through the same accessor the merge path reads them back through.
func ppRecord(t *testing.T, cols map[string]string) *model.PermapeopleRecord {
	t.Helper()
	rec := &model.PermapeopleRecord{ID: 1, PermapeopleID: 100}
	for col, val := range cols {
		f := rec.Field(col)
		require.NotNil(t, f, "unknown permapeople column %s", col)
		v := val
		*f = &v
	}
	return rec
}

func TestFields_OrderedAndUnique(t *testing.T) {
	fields := Fields()
	require.Len(t, fields, 52)

	assert.Equal(t, "common_name", fields[0])
	assert.Equal(t, "scientific_name", fields[1])
	assert.Equal(t, "image_url", fields[2])
	assert.Equal(t, "description", fields[3])
	assert.Equal(t, "powo_url", fields[len(fields)-1])

	seen := make(map[string]bool, len(fields))
	for _, f := range fields {
		assert.False(t, seen[f], "duplicate field %s", f)
		seen[f] = true
	}
}

// Every permapeople column a binding names must resolve on the record type.
// A renamed or dropped column fails here instead of silently reading nil at
// merge time.
func TestBindings_PermapeopleColumnsResolve(t *testing.T) {
	var zero model.PermapeopleRecord
	for _, b := range bindings {
		if b.permapeople == "" {
			continue
		}
		assert.NotNil(t, zero.Field(b.permapeople),
			"binding %s names unknown permapeople column %s", b.field, b.permapeople)
	}
}

func TestBindings_EveryFieldIndexed(t *testing.T) {
	for _, b := range bindings {
		assert.Same(t, b, bindingIndex[b.field])
	}
	assert.Len(t, bindingIndex, len(bindings))
}

func TestRawValues_BothSources(t *testing.T) {
	b := bindingIndex["common_name"]
	row := &model.PlantWithSources{
		Perenual:    &model.PerenualRecord{CommonName: strPtr("Mint")},
		Permapeople: ppRecord(t, map[string]string{"common_name": "Spearmint"}),
	}

	raw := b.rawValues(row)
	assert.Equal(t, map[string]string{"perenual": "Mint", "permapeople": "Spearmint"}, raw)
}

func TestRawValues_MissingRowsAndBlanks(t *testing.T) {
	b := bindingIndex["common_name"]

	assert.Empty(t, b.rawValues(&model.PlantWithSources{}))

	// Whitespace-only values read as absent.
	row := &model.PlantWithSources{
		Perenual:    &model.PerenualRecord{CommonName: strPtr("   ")},
		Permapeople: ppRecord(t, map[string]string{"common_name": "Spearmint"}),
	}
	assert.Equal(t, map[string]string{"permapeople": "Spearmint"}, b.rawValues(row))
}

func TestRawValues_PermapeopleOnlyField(t *testing.T) {
	b := bindingIndex["water_needs"]
	row := &model.PlantWithSources{
		Perenual:    &model.PerenualRecord{CommonName: strPtr("Mint")},
		Permapeople: ppRecord(t, map[string]string{"water_requirement": "moist"}),
	}
	// The perenual row carries no water column, so only permapeople reports.
	assert.Equal(t, map[string]string{"permapeople": "moist"}, b.rawValues(row))
}

func TestNormalizeRaw_PassThroughWithoutParser(t *testing.T) {
	b := bindingIndex["description"]
	tracker := normalize.NewTracker()

	got := b.normalizeRaw(map[string]string{"permapeople": "A fragrant herb."}, tracker)
	assert.Equal(t, map[string]Value{"permapeople": "A fragrant herb."}, got)
	assert.Zero(t, tracker.Len())
}

func TestNormalizeRaw_ParsesAndTracksMisses(t *testing.T) {
	b := bindingIndex["water_needs"]
	tracker := normalize.NewTracker()

	got := b.normalizeRaw(map[string]string{"permapeople": "moist", "perenual": "boggy"}, tracker)

	// "moist" maps to medium; "boggy" is unmapped, excluded, and tracked.
	assert.Equal(t, map[string]Value{"permapeople": "medium"}, got)
	require.Equal(t, 1, tracker.Len())
	top := tracker.Top("water_needs", 1)
	assert.Equal(t, "boggy", top[0].Value)
}

func TestNormalizeRaw_TypedParsers(t *testing.T) {
	tracker := normalize.NewTracker()

	got := bindingIndex["height_inches"].normalizeRaw(map[string]string{"permapeople": "1.5m"}, tracker)
	assert.Equal(t, map[string]Value{"permapeople": 59.1}, got)

	got = bindingIndex["spacing_inches"].normalizeRaw(map[string]string{"permapeople": "30"}, tracker)
	assert.Equal(t, map[string]Value{"permapeople": 11.8}, got)

	got = bindingIndex["hardiness_zones"].normalizeRaw(map[string]string{"permapeople": "5-7"}, tracker)
	assert.Equal(t, map[string]Value{"permapeople": []string{"5", "6", "7"}}, got)

	got = bindingIndex["germination_days_min"].normalizeRaw(map[string]string{"permapeople": "1-2 weeks"}, tracker)
	assert.Equal(t, map[string]Value{"permapeople": 7}, got)

	got = bindingIndex["edible"].normalizeRaw(map[string]string{"permapeople": "Yes"}, tracker)
	assert.Equal(t, map[string]Value{"permapeople": true}, got)

	assert.Zero(t, tracker.Len())
}

func TestTextField_WriteAndSkip(t *testing.T) {
	b := bindingIndex["description"]
	p := &model.Plant{}

	val, changed, err := b.apply(p, "A fragrant herb.")
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, "A fragrant herb.", val)
	require.NotNil(t, p.Description)
	assert.Equal(t, "A fragrant herb.", *p.Description)

	// Same value again is a no-op.
	_, changed, err = b.apply(p, "A fragrant herb.")
	require.NoError(t, err)
	assert.False(t, changed)

	_, _, err = b.apply(p, 42)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "text column")
}

func TestCommonNameField_WriteAndSkip(t *testing.T) {
	b := bindingIndex["common_name"]
	p := &model.Plant{CommonName: "Mint"}

	val, changed, err := b.apply(p, "Spearmint")
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, "Spearmint", val)
	assert.Equal(t, "Spearmint", p.CommonName)

	_, changed, err = b.apply(p, "Spearmint")
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestIntField_WriteAndSkip(t *testing.T) {
	b := bindingIndex["days_to_maturity"]
	p := &model.Plant{}

	val, changed, err := b.apply(p, 65)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, 65, val)
	require.NotNil(t, p.DaysToMaturity)
	assert.Equal(t, 65, *p.DaysToMaturity)

	_, changed, err = b.apply(p, 65)
	require.NoError(t, err)
	assert.False(t, changed)

	// An average over a float leaks a float64; integer columns refuse it.
	_, _, err = b.apply(p, 65.5)
	require.Error(t, err)
}

func TestFloatField_AcceptsInt(t *testing.T) {
	b := bindingIndex["soil_ph_min"]
	p := &model.Plant{}

	val, changed, err := b.apply(p, 6)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, float64(6), val)
	require.NotNil(t, p.SoilPHMin)
	assert.Equal(t, float64(6), *p.SoilPHMin)

	_, changed, err = b.apply(p, 6.0)
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestBoolField_WriteAndSkip(t *testing.T) {
	b := bindingIndex["edible"]
	p := &model.Plant{}

	val, changed, err := b.apply(p, true)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, true, val)
	require.NotNil(t, p.Edible)
	assert.True(t, *p.Edible)

	_, changed, err = b.apply(p, true)
	require.NoError(t, err)
	assert.False(t, changed)

	_, _, err = b.apply(p, "yes")
	require.Error(t, err)
}

func TestListField_WriteAndSkip(t *testing.T) {
	b := bindingIndex["hardiness_zones"]
	p := &model.Plant{HardinessZones: []string{"5a", "5b"}}

	_, changed, err := b.apply(p, []string{"5a", "5b"})
	require.NoError(t, err)
	assert.False(t, changed)

	val, changed, err := b.apply(p, []string{"5a", "5b", "6a"})
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, []string{"5a", "5b", "6a"}, val)
	assert.Equal(t, []string{"5a", "5b", "6a"}, p.HardinessZones)
}
