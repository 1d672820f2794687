package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMeasurement(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw  string
		def  Unit
		want float64
		ok   bool
	}{
		{"1m", UnitMeters, 39.4, true},
		{"100cm", UnitMeters, 39.4, true},
		{"12in", UnitMeters, 12.0, true},
		{"1.5m", UnitMeters, 59.1, true},
		{"3ft", UnitMeters, 36.0, true},
		{"30cm", UnitCentimeters, 11.8, true},
		{"12-18 inches", UnitCentimeters, 15.0, true},
		{"0.7-1.5m", UnitMeters, 43.3, true},
		{"30x30cm", UnitCentimeters, 11.8, true}, // first dimension, bare after split
		{"2.5 cm", UnitCentimeters, 1.0, true},
		{`6"`, UnitCentimeters, 6.0, true},
		{"2'", UnitMeters, 24.0, true},
		{"6’", UnitMeters, 72.0, true}, // curly quote feet marker
		{"1.2", UnitMeters, 47.2, true},
		{"45", UnitCentimeters, 17.7, true},
		{"tall", UnitMeters, 0, false},
		{"...", UnitMeters, 0, false},
		{"", UnitMeters, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			t.Parallel()
			got, ok := Measurement(tt.raw, tt.def)
			require.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.InDelta(t, tt.want, got, 0.1)
			}
		})
	}
}

func TestHardinessZones(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw  string
		want []string
		ok   bool
	}{
		{"7a-9b", []string{"7a", "7b", "8a", "8b", "9a", "9b"}, true},
		{"2-11", []string{"2", "3", "4", "5", "6", "7", "8", "9", "10", "11"}, true},
		{"14", nil, false}, // out of range
		{"9b to 11", []string{"9b", "10a", "10b", "11a", "11b"}, true},
		{"7", []string{"7"}, true},
		{"9B", []string{"9b"}, true},
		{`"7-9"`, []string{"7", "8", "9"}, true},
		{"5 - 7", []string{"5", "6", "7"}, true},
		{"7a-7a", []string{"7a"}, true},
		{"7b-7a", nil, false}, // backwards within one zone
		{"0-2", []string{"0", "1", "2"}, true},
		{"11-5", nil, false}, // start past end
		{"2-14", nil, false},
		{"", nil, false},
		{"tropical", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			t.Parallel()
			got, ok := HardinessZones(tt.raw)
			require.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestSoilPH(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw      string
		min, max float64
		ok       bool
	}{
		{"6.0-6.8", 6.0, 6.8, true},
		{">6.5", 6.5, 6.5, true},
		{"≥6", 6.0, 6.0, true},
		{"< 7.5", 7.5, 7.5, true},
		{"6.5", 6.5, 6.5, true},
		{"5.5–7.0", 5.5, 7.0, true}, // en dash
		{"5.5—7.0", 5.5, 7.0, true}, // em dash
		{"acidic", 0, 0, false},
		{"", 0, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			t.Parallel()
			lo, hi, ok := SoilPH(tt.raw)
			require.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.InDelta(t, tt.min, lo, 0.001)
				assert.InDelta(t, tt.max, hi, 0.001)
			}
		})
	}
}

func TestSoilPHMinMax(t *testing.T) {
	t.Parallel()

	lo, ok := SoilPHMin("6.0-6.8")
	require.True(t, ok)
	assert.InDelta(t, 6.0, lo, 0.001)

	hi, ok := SoilPHMax("6.0-6.8")
	require.True(t, ok)
	assert.InDelta(t, 6.8, hi, 0.001)

	_, ok = SoilPHMin("n/a")
	assert.False(t, ok)
}

func TestDays(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw  string
		want int
		ok   bool
	}{
		{"60-70", 65, true},
		{"40 (leaves)", 40, true},
		{"75-90 days", 82, true}, // floor average
		{"90", 90, true},
		{"approx 90", 0, false},
		{"", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			t.Parallel()
			got, ok := Days(tt.raw)
			require.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestGerminationTime(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw      string
		min, max int
		ok       bool
	}{
		{"7-21 days", 7, 21, true},
		{"2-8 weeks", 14, 56, true},
		{"1 month", 30, 30, true},
		{"10", 10, 10, true},
		{"14-21", 14, 21, true},
		{"2.5 weeks", 17, 17, true}, // truncates after multiply
		{"soon", 0, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			t.Parallel()
			lo, hi, ok := GerminationTime(tt.raw)
			require.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.min, lo)
				assert.Equal(t, tt.max, hi)
			}
		})
	}
}

func TestGerminationTemp(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw      string
		min, max float64
		ok       bool
	}{
		{"65-75F", 65, 75, true},
		{"18-24°C", 64.4, 75.2, true},
		{"70F (21C)", 70, 70, true}, // Fahrenheit reading wins
		{"15-20", 59, 68, true},     // bare range assumed Celsius
		{"21C", 69.8, 69.8, true},
		{"warm", 0, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			t.Parallel()
			lo, hi, ok := GerminationTemp(tt.raw)
			require.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.InDelta(t, tt.min, lo, 0.001)
				assert.InDelta(t, tt.max, hi, 0.001)
			}
		})
	}
}

func TestBool(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw  string
		want bool
		ok   bool
	}{
		{"true", true, true},
		{"Yes", true, true},
		{"FALSE", false, true},
		{"no", false, true},
		{" yes ", true, true},
		{"maybe", false, false},
		{"", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			t.Parallel()
			got, ok := Bool(tt.raw)
			require.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestInt(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw  string
		want int
		ok   bool
	}{
		{"6", 6, true},
		{"6 weeks", 6, true},
		{"-2", -2, true},
		{"4-6", 4, true}, // leading integer only
		{"none", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			t.Parallel()
			got, ok := Int(tt.raw)
			require.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestList(t *testing.T) {
	t.Parallel()

	got, ok := List("aphids, slugs,  snails")
	require.True(t, ok)
	assert.Equal(t, []string{"aphids", "slugs", "snails"}, got)

	got, ok = List("aphids")
	require.True(t, ok)
	assert.Equal(t, []string{"aphids"}, got)

	_, ok = List(" , ,")
	assert.False(t, ok)

	_, ok = List("")
	assert.False(t, ok)
}
