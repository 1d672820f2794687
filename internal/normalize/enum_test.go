package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWater(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw  string
		want string
		ok   bool
	}{
		{"dry", "low", true},
		{"Low/Average", "low", true},
		{"moist", "medium", true},
		{"moist, well-drained, dry", "medium", true},
		{"dry-wet", "medium", true},
		{"wet", "high", true},
		{"moist; wet", "high", true},
		{" Wet to Moist ", "high", true},
		{"damp", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			t.Parallel()
			got, ok := Water(tt.raw)
			require.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestSun(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw  string
		want string
		ok   bool
	}{
		{"Full sun", "full_sun", true},
		{"partial sun/shade", "partial_shade", true},
		{"full sun, partial sun/shade", "partial_shade", true},
		{"full shade, full sun, partial sun/shade", "partial_shade", true},
		{"partial sun/shade, full shade", "full_shade", true},
		{"full shade", "full_shade", true},
		{"bright indirect", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			t.Parallel()
			got, ok := Sun(tt.raw)
			require.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestPlantType(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw  string
		want string
		ok   bool
	}{
		{"Annual", "annual", true},
		{"perennial", "perennial", true},
		{"biennial", "biennial", true},
		{"annual, biennial", "annual", true},
		{"annual, perennial", "annual", true},
		{"biennial, perennial", "perennial", true},
		{"evergreen", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			t.Parallel()
			got, ok := PlantType(tt.raw)
			require.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestTracker(t *testing.T) {
	t.Parallel()

	tr := NewTracker()
	assert.Equal(t, 0, tr.Len())
	assert.Empty(t, tr.Fields())

	tr.Add("water_needs", "Damp")
	tr.Add("water_needs", "damp ")
	tr.Add("water_needs", "boggy")
	tr.Add("sun_requirement", "dappled")

	assert.Equal(t, 3, tr.Len())
	assert.Equal(t, []string{"sun_requirement", "water_needs"}, tr.Fields())

	top := tr.Top("water_needs", 3)
	require.Len(t, top, 2)
	assert.Equal(t, ValueCount{Value: "damp", Count: 2}, top[0])
	assert.Equal(t, ValueCount{Value: "boggy", Count: 1}, top[1])

	// Ties break alphabetically for stable reports.
	tr.Add("water_needs", "boggy")
	top = tr.Top("water_needs", 1)
	require.Len(t, top, 1)
	assert.Equal(t, "boggy", top[0].Value)

	assert.Empty(t, tr.Top("unknown_field", 3))
}
