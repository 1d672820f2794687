package normalize

import "strings"

// Static synonym tables for enum fields. Lookups are keyed by the lower-cased,
// trimmed raw value; anything absent is a miss for the caller to track, never
// a guess.

var waterMap = map[string]string{
	"dry":                      "low",
	"low":                      "low",
	"low/average":              "low",
	"moist":                    "medium",
	"average to moist":         "medium",
	"moist, well-drained, dry": "medium",
	"moist, dry":               "medium",
	"dry, moist":               "medium",
	"dry-wet":                  "medium",
	"dry, moist, wet":          "medium",
	"dry, moist, wet, water":   "medium",
	"wet, dry":                 "medium",
	"wet":                      "high",
	"water":                    "high",
	"moist, wet":               "high",
	"wet, water":               "high",
	"wet, moist":               "high",
	"moist, wet, water":        "high",
	"wet to moist":             "high",
	"moist; wet":               "high",
}

var sunMap = map[string]string{
	"full sun":                                      "full_sun",
	"full sun, partial sun/shade":                   "partial_shade",
	"partial sun/shade, full sun":                   "partial_shade",
	"full sun, partial sun/shade, full shade":       "partial_shade",
	"partial sun/shade, full sun, full shade":       "partial_shade",
	"full shade, full sun, partial sun/shade":       "partial_shade",
	"full sun,partial sun/shade, partial sun/shade": "partial_shade",
	"partial sun/shade":                             "partial_shade",
	"partial sun/shade, full shade":                 "full_shade",
	"full shade, partial sun/shade":                 "full_shade",
	"full shade":                                    "full_shade",
}

var plantTypeMap = map[string]string{
	"annual":              "annual",
	"perennial":           "perennial",
	"biennial":            "biennial",
	"annual, biennial":    "annual",
	"annual, perennial":   "annual",
	"biennial, perennial": "perennial",
}

func lookup(m map[string]string, raw string) (string, bool) {
	v, ok := m[strings.ToLower(strings.TrimSpace(raw))]
	return v, ok
}

// Water maps raw watering descriptions to low/medium/high.
func Water(raw string) (string, bool) { return lookup(waterMap, raw) }

// Sun maps raw light descriptions to full_sun/partial_shade/full_shade.
// Mixed-exposure combinations resolve to the middle ground.
func Sun(raw string) (string, bool) { return lookup(sunMap, raw) }

// PlantType maps raw life-cycle descriptions to a canonical plant type.
// Multi-cycle combinations resolve to the shorter cycle.
func PlantType(raw string) (string, bool) { return lookup(plantTypeMap, raw) }
