// Package normalize converts raw source strings into canonical typed values.
// All functions are pure and total: unparseable input returns ok=false, never
// an error and never a guess.
package normalize

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Unit is the assumed unit for bare numeric measurements. Height and width
// columns default to meters, spacing and depth to centimeters.
type Unit string

const (
	UnitMeters      Unit = "m"
	UnitCentimeters Unit = "cm"
)

var (
	measurementRe = regexp.MustCompile(`(?i)^([\d.]+)\s*(?:-\s*([\d.]+))?\s*(cm|m|inches|inch|in|"|'|feet|ft)?`)
	zoneRangeRe   = regexp.MustCompile(`(?i)^(\d+[ab]?)\s*-\s*(\d+[ab]?)$`)
	zoneSingleRe  = regexp.MustCompile(`(?i)^(\d+[ab]?)$`)
	daysRangeRe   = regexp.MustCompile(`^(\d+)\s*-\s*(\d+)`)
	daysSingleRe  = regexp.MustCompile(`^(\d+)`)
	phGTRe        = regexp.MustCompile(`^[>≥]\s*([\d.]+)`)
	phLTRe        = regexp.MustCompile(`^[<≤]\s*([\d.]+)`)
	phRangeRe     = regexp.MustCompile(`^([\d.]+)\s*-\s*([\d.]+)`)
	germRangeRe   = regexp.MustCompile(`^([\d.]+)\s*-\s*([\d.]+)\s*(days?|weeks?|months?)?`)
	germSingleRe  = regexp.MustCompile(`^([\d.]+)\s*(days?|weeks?|months?)?`)
	tempFRe       = regexp.MustCompile(`([\d.]+)\s*-?\s*([\d.]+)?\s*°?\s*[fF]`)
	tempCRe       = regexp.MustCompile(`([\d.]+)\s*-?\s*([\d.]+)?\s*°?\s*[cC]`)
	bareRangeRe   = regexp.MustCompile(`^([\d.]+)\s*-\s*([\d.]+)`)
	intRe         = regexp.MustCompile(`^-?\d+`)

	curlyQuotes = strings.NewReplacer("’", "'", "‘", "'")
	dashes      = strings.NewReplacer("–", "-", "—", "-")
)

func round1(v float64) float64 { return math.Round(v*10) / 10 }

// Measurement parses a measurement string to inches. Handles "1.5m",
// "0.7-1.5m", "3ft", "30cm", "12-18 inches", and "30x30cm" (first dimension
// only). Ranges average their endpoints. Bare numbers assume def.
func Measurement(raw string, def Unit) (float64, bool) {
	raw = curlyQuotes.Replace(strings.TrimSpace(raw))
	if low := strings.ToLower(raw); strings.Contains(low, "x") {
		raw = strings.TrimSpace(strings.SplitN(low, "x", 2)[0])
	}

	m := measurementRe.FindStringSubmatch(raw)
	if m == nil {
		return 0, false
	}
	v1, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	v2 := v1
	if m[2] != "" {
		if v2, err = strconv.ParseFloat(m[2], 64); err != nil {
			return 0, false
		}
	}
	avg := (v1 + v2) / 2
	unit := strings.TrimRight(strings.ToLower(m[3]), ".")

	switch unit {
	case "cm":
		return round1(avg / 2.54), true
	case "m":
		return round1(avg * 39.3701), true
	case "inches", "inch", "in", `"`:
		return round1(avg), true
	case "'", "feet", "ft":
		return round1(avg * 12), true
	default:
		if def == UnitCentimeters {
			return round1(avg / 2.54), true
		}
		return round1(avg * 39.3701), true
	}
}

// SoilPH parses "6.0-6.8" into a (min, max) range. Inequalities (">6.5",
// "< 6") and single values collapse to a zero-width range. En and em dashes
// are treated as hyphens.
func SoilPH(raw string) (float64, float64, bool) {
	raw = dashes.Replace(strings.TrimSpace(raw))

	if m := phGTRe.FindStringSubmatch(raw); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			return v, v, true
		}
		return 0, 0, false
	}
	if m := phLTRe.FindStringSubmatch(raw); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			return v, v, true
		}
		return 0, 0, false
	}
	if m := phRangeRe.FindStringSubmatch(raw); m != nil {
		lo, err1 := strconv.ParseFloat(m[1], 64)
		hi, err2 := strconv.ParseFloat(m[2], 64)
		if err1 != nil || err2 != nil {
			return 0, 0, false
		}
		return lo, hi, true
	}
	if v, err := strconv.ParseFloat(raw, 64); err == nil {
		return v, v, true
	}
	return 0, 0, false
}

// SoilPHMin returns only the low end of the parsed pH range.
func SoilPHMin(raw string) (float64, bool) {
	lo, _, ok := SoilPH(raw)
	return lo, ok
}

// SoilPHMax returns only the high end of the parsed pH range.
func SoilPHMax(raw string) (float64, bool) {
	_, hi, ok := SoilPH(raw)
	return hi, ok
}

const maxZone = 13

func parseZoneEndpoint(s string) (int, string, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	sub := ""
	if s != "" && (s[len(s)-1] == 'a' || s[len(s)-1] == 'b') {
		sub = string(s[len(s)-1])
		s = s[:len(s)-1]
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, "", false
	}
	return n, sub, true
}

func expandZoneRange(sNum int, sSub string, eNum int, eSub string) []string {
	if sSub == "" && eSub == "" {
		out := make([]string, 0, eNum-sNum+1)
		for z := sNum; z <= eNum; z++ {
			out = append(out, strconv.Itoa(z))
		}
		return out
	}
	// Bare start means 'a', bare end means 'b'.
	if sSub == "" {
		sSub = "a"
	}
	if eSub == "" {
		eSub = "b"
	}
	var out []string
	for z := sNum; z <= eNum; z++ {
		for _, sub := range []string{"a", "b"} {
			if z == sNum && sub < sSub {
				continue
			}
			if z == eNum && sub > eSub {
				continue
			}
			out = append(out, strconv.Itoa(z)+sub)
		}
	}
	return out
}

// HardinessZones parses "2-11", "7a-9b", or "9b to 11" into the full list of
// covered zone strings. Zones outside 0-13 are rejected rather than clamped.
func HardinessZones(raw string) ([]string, bool) {
	raw = strings.TrimSpace(raw)
	raw = strings.Trim(raw, `"'`)
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, false
	}
	raw = strings.ReplaceAll(raw, " to ", "-")
	raw = strings.ReplaceAll(raw, " - ", "-")

	if m := zoneRangeRe.FindStringSubmatch(raw); m != nil {
		sNum, sSub, ok1 := parseZoneEndpoint(m[1])
		eNum, eSub, ok2 := parseZoneEndpoint(m[2])
		if ok1 && ok2 && 0 <= sNum && sNum <= eNum && eNum <= maxZone {
			// An inverted sub-letter span like "7b-7a" expands to nothing;
			// reject it like any other backwards range.
			if zones := expandZoneRange(sNum, sSub, eNum, eSub); len(zones) > 0 {
				return zones, true
			}
		}
		return nil, false
	}

	if m := zoneSingleRe.FindStringSubmatch(raw); m != nil {
		n, _, ok := parseZoneEndpoint(m[1])
		if !ok || n > maxZone {
			return nil, false
		}
		return []string{strings.ToLower(m[1])}, true
	}

	return nil, false
}

// Days parses day counts, averaging ranges: "60-70" is 65, "40 (leaves)" is 40.
func Days(raw string) (int, bool) {
	raw = strings.TrimSpace(raw)
	if m := daysRangeRe.FindStringSubmatch(raw); m != nil {
		lo, _ := strconv.Atoi(m[1])
		hi, _ := strconv.Atoi(m[2])
		return (lo + hi) / 2, true
	}
	if m := daysSingleRe.FindStringSubmatch(raw); m != nil {
		n, _ := strconv.Atoi(m[1])
		return n, true
	}
	return 0, false
}

var germUnitDays = map[string]int{"day": 1, "week": 7, "month": 30}

func germMultiplier(unit string) int {
	unit = strings.TrimRight(unit, "s")
	if unit == "" {
		return 1
	}
	if mult, ok := germUnitDays[unit]; ok {
		return mult
	}
	return 1
}

// GerminationTime parses "7-21 days" or "2-8 weeks" into a (min, max) day
// range. A bare value yields a zero-width range; the unit defaults to days.
func GerminationTime(raw string) (int, int, bool) {
	raw = strings.ToLower(strings.TrimSpace(raw))

	if m := germRangeRe.FindStringSubmatch(raw); m != nil {
		v1, err1 := strconv.ParseFloat(m[1], 64)
		v2, err2 := strconv.ParseFloat(m[2], 64)
		if err1 != nil || err2 != nil {
			return 0, 0, false
		}
		mult := germMultiplier(m[3])
		return int(v1 * float64(mult)), int(v2 * float64(mult)), true
	}

	if m := germSingleRe.FindStringSubmatch(raw); m != nil {
		v, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			return 0, 0, false
		}
		mult := germMultiplier(m[2])
		days := int(v * float64(mult))
		return days, days, true
	}

	return 0, 0, false
}

// GerminationDaysMin returns the low end of the germination range in days.
func GerminationDaysMin(raw string) (int, bool) {
	lo, _, ok := GerminationTime(raw)
	return lo, ok
}

// GerminationDaysMax returns the high end of the germination range in days.
func GerminationDaysMax(raw string) (int, bool) {
	_, hi, ok := GerminationTime(raw)
	return hi, ok
}

func cToF(c float64) float64 { return c*9/5 + 32 }

// GerminationTemp parses a germination temperature into a (min, max) range in
// Fahrenheit. An explicit °F reading anywhere in the string wins; °C readings
// and bare ranges are assumed Celsius and converted.
func GerminationTemp(raw string) (float64, float64, bool) {
	raw = strings.TrimSpace(raw)

	if m := tempFRe.FindStringSubmatch(raw); m != nil {
		lo, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			return 0, 0, false
		}
		hi := lo
		if m[2] != "" {
			if hi, err = strconv.ParseFloat(m[2], 64); err != nil {
				return 0, 0, false
			}
		}
		return round1(lo), round1(hi), true
	}

	if m := tempCRe.FindStringSubmatch(raw); m != nil {
		lo, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			return 0, 0, false
		}
		hi := lo
		if m[2] != "" {
			if hi, err = strconv.ParseFloat(m[2], 64); err != nil {
				return 0, 0, false
			}
		}
		return round1(cToF(lo)), round1(cToF(hi)), true
	}

	if m := bareRangeRe.FindStringSubmatch(raw); m != nil {
		lo, err1 := strconv.ParseFloat(m[1], 64)
		hi, err2 := strconv.ParseFloat(m[2], 64)
		if err1 != nil || err2 != nil {
			return 0, 0, false
		}
		return round1(cToF(lo)), round1(cToF(hi)), true
	}

	return 0, 0, false
}

// GerminationTempMinF returns the low end of the temperature range in °F.
func GerminationTempMinF(raw string) (float64, bool) {
	lo, _, ok := GerminationTemp(raw)
	return lo, ok
}

// GerminationTempMaxF returns the high end of the temperature range in °F.
func GerminationTempMaxF(raw string) (float64, bool) {
	_, hi, ok := GerminationTemp(raw)
	return hi, ok
}

// Bool parses true/yes and false/no, case-insensitively.
func Bool(raw string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "true", "yes":
		return true, true
	case "false", "no":
		return false, true
	}
	return false, false
}

// Int parses a leading optionally-signed integer: "6 weeks" is 6.
func Int(raw string) (int, bool) {
	raw = strings.TrimSpace(raw)
	m := intRe.FindString(raw)
	if m == "" {
		return 0, false
	}
	n, err := strconv.Atoi(m)
	if err != nil {
		return 0, false
	}
	return n, true
}

// List splits a comma-separated string, trimming items and dropping empties.
func List(raw string) ([]string, bool) {
	var items []string
	for _, part := range strings.Split(raw, ",") {
		if s := strings.TrimSpace(part); s != "" {
			items = append(items, s)
		}
	}
	if len(items) == 0 {
		return nil, false
	}
	return items, true
}
