// Package merge reconciles canonical plants from their linked source records.
// Every canonical column the engine manages has a binding: where each source
// stores the raw value, an optional parser from internal/normalize, and a
// typed writer that only touches the plant when the resolved value differs.
// Per-field rules pick the strategy and source order; runs are recorded in the
// ledger and summarized in an email report.
package merge

import (
	"slices"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/verdantlab/flora-cli/internal/model"
	"github.com/verdantlab/flora-cli/internal/normalize"
)

// Value is a normalized merge candidate or resolved result: one of string,
// []string, int, float64, or bool.
type Value any

// normFunc parses a raw source string into a typed Value. ok=false is a
// parser miss, tracked for the report and excluded from resolution.
type normFunc func(raw string) (Value, bool)

// applyFunc writes a resolved value onto the plant. It returns the SQL value
// for the column update and whether the plant actually changed; a value of
// the wrong dynamic type is an error, surfaced as a per-record failure.
type applyFunc func(p *model.Plant, v Value) (sqlVal any, changed bool, err error)

// binding ties one canonical column to its source columns, parser, and typed
// writer. The permapeople side is addressed by column name through
// model.PermapeopleRecord.Field; the perenual side by direct accessor.
type binding struct {
	field       string
	perenual    func(*model.PerenualRecord) *string
	permapeople string
	norm        normFunc
	apply       applyFunc
}

// rawValues collects the raw source strings for this binding. Missing source
// rows, null columns, and whitespace-only values all read as absent.
func (b *binding) rawValues(row *model.PlantWithSources) map[string]string {
	vals := make(map[string]string, 2)
	if b.perenual != nil && row.Perenual != nil {
		if s := b.perenual(row.Perenual); s != nil && strings.TrimSpace(*s) != "" {
			vals[string(model.SourcePerenual)] = *s
		}
	}
	if b.permapeople != "" && row.Permapeople != nil {
		if f := row.Permapeople.Field(b.permapeople); f != nil && *f != nil && strings.TrimSpace(**f) != "" {
			vals[string(model.SourcePermapeople)] = **f
		}
	}
	return vals
}

// normalizeRaw runs the binding's parser over each raw value. Parser misses
// are recorded on the tracker and excluded; bindings without a parser pass
// the raw string through.
func (b *binding) normalizeRaw(raw map[string]string, tracker *normalize.Tracker) map[string]Value {
	out := make(map[string]Value, len(raw))
	for src, rv := range raw {
		if b.norm == nil {
			out[src] = rv
			continue
		}
		v, ok := b.norm(rv)
		if !ok {
			tracker.Add(b.field, rv)
			continue
		}
		out[src] = v
	}
	return out
}

// norm adapts a typed normalize function to the binding signature.
func norm[T any](f func(string) (T, bool)) normFunc {
	return func(raw string) (Value, bool) {
		v, ok := f(raw)
		if !ok {
			return nil, false
		}
		return v, true
	}
}

// Height, width and similar long measurements default to meters upstream;
// spacing and planting depth default to centimeters.
func measureMeters(raw string) (float64, bool) {
	return normalize.Measurement(raw, normalize.UnitMeters)
}

func measureCentimeters(raw string) (float64, bool) {
	return normalize.Measurement(raw, normalize.UnitCentimeters)
}

func textField(get func(*model.Plant) **string) applyFunc {
	return func(p *model.Plant, v Value) (any, bool, error) {
		s, ok := v.(string)
		if !ok {
			return nil, false, eris.Errorf("cannot write %T to a text column", v)
		}
		f := get(p)
		if *f != nil && **f == s {
			return nil, false, nil
		}
		*f = &s
		return s, true, nil
	}
}

func intField(get func(*model.Plant) **int) applyFunc {
	return func(p *model.Plant, v Value) (any, bool, error) {
		n, ok := v.(int)
		if !ok {
			return nil, false, eris.Errorf("cannot write %T to an integer column", v)
		}
		f := get(p)
		if *f != nil && **f == n {
			return nil, false, nil
		}
		*f = &n
		return n, true, nil
	}
}

// floatField also accepts int: an average over all-integer inputs resolves
// to int even when the column is numeric.
func floatField(get func(*model.Plant) **float64) applyFunc {
	return func(p *model.Plant, v Value) (any, bool, error) {
		var x float64
		switch n := v.(type) {
		case float64:
			x = n
		case int:
			x = float64(n)
		default:
			return nil, false, eris.Errorf("cannot write %T to a numeric column", v)
		}
		f := get(p)
		if *f != nil && **f == x {
			return nil, false, nil
		}
		*f = &x
		return x, true, nil
	}
}

func boolField(get func(*model.Plant) **bool) applyFunc {
	return func(p *model.Plant, v Value) (any, bool, error) {
		bv, ok := v.(bool)
		if !ok {
			return nil, false, eris.Errorf("cannot write %T to a boolean column", v)
		}
		f := get(p)
		if *f != nil && **f == bv {
			return nil, false, nil
		}
		*f = &bv
		return bv, true, nil
	}
}

func listField(get func(*model.Plant) *[]string) applyFunc {
	return func(p *model.Plant, v Value) (any, bool, error) {
		list, ok := v.([]string)
		if !ok {
			return nil, false, eris.Errorf("cannot write %T to a list column", v)
		}
		f := get(p)
		if slices.Equal(*f, list) {
			return nil, false, nil
		}
		*f = list
		return list, true, nil
	}
}

// bindings lists every merge-managed canonical column. The order is the
// report order for coverage tables. common_name, scientific_name and
// image_url arrive from both sources; everything else is permapeople-only.
var bindings = []*binding{
	{
		field:       "common_name",
		perenual:    func(r *model.PerenualRecord) *string { return r.CommonName },
		permapeople: "common_name",
		apply: func(p *model.Plant, v Value) (any, bool, error) {
			s, ok := v.(string)
			if !ok {
				return nil, false, eris.Errorf("cannot write %T to a text column", v)
			}
			if p.CommonName == s {
				return nil, false, nil
			}
			p.CommonName = s
			return s, true, nil
		},
	},
	{
		field:       "scientific_name",
		perenual:    func(r *model.PerenualRecord) *string { return r.ScientificName },
		permapeople: "scientific_name",
		apply:       textField(func(p *model.Plant) **string { return &p.ScientificName }),
	},
	{
		field:       "image_url",
		perenual:    func(r *model.PerenualRecord) *string { return r.ImageURL },
		permapeople: "image_url",
		apply:       textField(func(p *model.Plant) **string { return &p.ImageURL }),
	},
	{
		field:       "description",
		permapeople: "description",
		apply:       textField(func(p *model.Plant) **string { return &p.Description }),
	},
	{
		field:       "plant_type",
		permapeople: "life_cycle",
		norm:        norm(normalize.PlantType),
		apply:       textField(func(p *model.Plant) **string { return &p.PlantType }),
	},
	{
		field:       "water_needs",
		permapeople: "water_requirement",
		norm:        norm(normalize.Water),
		apply:       textField(func(p *model.Plant) **string { return &p.WaterNeeds }),
	},
	{
		field:       "sun_requirement",
		permapeople: "light_requirement",
		norm:        norm(normalize.Sun),
		apply:       textField(func(p *model.Plant) **string { return &p.SunRequirement }),
	},
	{
		field:       "hardiness_zones",
		permapeople: "hardiness_zone",
		norm:        norm(normalize.HardinessZones),
		apply:       listField(func(p *model.Plant) *[]string { return &p.HardinessZones }),
	},
	{
		field:       "days_to_maturity",
		permapeople: "days_to_maturity",
		norm:        norm(normalize.Days),
		apply:       intField(func(p *model.Plant) **int { return &p.DaysToMaturity }),
	},
	{
		field:       "spacing_inches",
		permapeople: "spacing",
		norm:        norm(measureCentimeters),
		apply:       floatField(func(p *model.Plant) **float64 { return &p.SpacingInches }),
	},
	{
		field:       "planting_depth_inches",
		permapeople: "seed_planting_depth",
		norm:        norm(measureCentimeters),
		apply:       floatField(func(p *model.Plant) **float64 { return &p.PlantingDepthInches }),
	},
	{
		field:       "common_pests",
		permapeople: "pests",
		norm:        norm(normalize.List),
		apply:       listField(func(p *model.Plant) *[]string { return &p.CommonPests }),
	},
	{
		field:       "common_diseases",
		permapeople: "diseases",
		norm:        norm(normalize.List),
		apply:       listField(func(p *model.Plant) *[]string { return &p.CommonDiseases }),
	},
	{
		field:       "height_inches",
		permapeople: "height",
		norm:        norm(measureMeters),
		apply:       floatField(func(p *model.Plant) **float64 { return &p.HeightInches }),
	},
	{
		field:       "width_inches",
		permapeople: "width",
		norm:        norm(measureMeters),
		apply:       floatField(func(p *model.Plant) **float64 { return &p.WidthInches }),
	},
	{
		field:       "soil_type",
		permapeople: "soil_type",
		apply:       textField(func(p *model.Plant) **string { return &p.SoilType }),
	},
	{
		field:       "soil_ph_min",
		permapeople: "soil_ph",
		norm:        norm(normalize.SoilPHMin),
		apply:       floatField(func(p *model.Plant) **float64 { return &p.SoilPHMin }),
	},
	{
		field:       "soil_ph_max",
		permapeople: "soil_ph",
		norm:        norm(normalize.SoilPHMax),
		apply:       floatField(func(p *model.Plant) **float64 { return &p.SoilPHMax }),
	},
	{
		field:       "growth_rate",
		permapeople: "growth",
		apply:       textField(func(p *model.Plant) **string { return &p.GrowthRate }),
	},
	{
		field:       "life_cycle",
		permapeople: "life_cycle",
		apply:       textField(func(p *model.Plant) **string { return &p.LifeCycle }),
	},
	{
		field:       "drought_resistant",
		permapeople: "drought_resistant",
		norm:        norm(normalize.Bool),
		apply:       boolField(func(p *model.Plant) **bool { return &p.DroughtResistant }),
	},
	{
		field:       "days_to_harvest",
		permapeople: "days_to_harvest",
		norm:        norm(normalize.Days),
		apply:       intField(func(p *model.Plant) **int { return &p.DaysToHarvest }),
	},
	{
		field:       "propagation_method",
		permapeople: "propagation_method",
		apply:       textField(func(p *model.Plant) **string { return &p.PropagationMethod }),
	},
	{
		field:       "germination_days_min",
		permapeople: "germination_time",
		norm:        norm(normalize.GerminationDaysMin),
		apply:       intField(func(p *model.Plant) **int { return &p.GerminationDaysMin }),
	},
	{
		field:       "germination_days_max",
		permapeople: "germination_time",
		norm:        norm(normalize.GerminationDaysMax),
		apply:       intField(func(p *model.Plant) **int { return &p.GerminationDaysMax }),
	},
	{
		field:       "germination_temp_min_f",
		permapeople: "germination_temperature",
		norm:        norm(normalize.GerminationTempMinF),
		apply:       floatField(func(p *model.Plant) **float64 { return &p.GerminationTempMinF }),
	},
	{
		field:       "germination_temp_max_f",
		permapeople: "germination_temperature",
		norm:        norm(normalize.GerminationTempMaxF),
		apply:       floatField(func(p *model.Plant) **float64 { return &p.GerminationTempMaxF }),
	},
	{
		field:       "sow_outdoors",
		permapeople: "sow_outdoors",
		apply:       textField(func(p *model.Plant) **string { return &p.SowOutdoors }),
	},
	{
		field:       "sow_indoors",
		permapeople: "sow_indoors",
		apply:       textField(func(p *model.Plant) **string { return &p.SowIndoors }),
	},
	{
		field:       "start_indoors_weeks",
		permapeople: "start_indoors_weeks",
		norm:        norm(normalize.Int),
		apply:       intField(func(p *model.Plant) **int { return &p.StartIndoorsWeeks }),
	},
	{
		field:       "start_outdoors_weeks",
		permapeople: "start_outdoors_weeks",
		norm:        norm(normalize.Int),
		apply:       intField(func(p *model.Plant) **int { return &p.StartOutdoorsWeeks }),
	},
	{
		field:       "plant_transplant",
		permapeople: "plant_transplant",
		apply:       textField(func(p *model.Plant) **string { return &p.PlantTransplant }),
	},
	{
		field:       "plant_cuttings",
		permapeople: "plant_cuttings",
		apply:       textField(func(p *model.Plant) **string { return &p.PlantCuttings }),
	},
	{
		field:       "plant_division",
		permapeople: "plant_division",
		apply:       textField(func(p *model.Plant) **string { return &p.PlantDivision }),
	},
	{
		field:       "native_to",
		permapeople: "native_to",
		apply:       textField(func(p *model.Plant) **string { return &p.NativeTo }),
	},
	{
		field:       "habitat",
		permapeople: "habitat",
		apply:       textField(func(p *model.Plant) **string { return &p.Habitat }),
	},
	{
		field:       "family",
		permapeople: "family",
		apply:       textField(func(p *model.Plant) **string { return &p.Family }),
	},
	{
		field:       "genus",
		permapeople: "genus",
		apply:       textField(func(p *model.Plant) **string { return &p.Genus }),
	},
	{
		field:       "edible",
		permapeople: "edible",
		norm:        norm(normalize.Bool),
		apply:       boolField(func(p *model.Plant) **bool { return &p.Edible }),
	},
	{
		field:       "edible_parts",
		permapeople: "edible_parts",
		apply:       textField(func(p *model.Plant) **string { return &p.EdibleParts }),
	},
	{
		field:       "edible_uses",
		permapeople: "edible_uses",
		apply:       textField(func(p *model.Plant) **string { return &p.EdibleUses }),
	},
	{
		field:       "medicinal",
		permapeople: "medicinal",
		apply:       textField(func(p *model.Plant) **string { return &p.Medicinal }),
	},
	{
		field:       "medicinal_parts",
		permapeople: "medicinal_parts",
		apply:       textField(func(p *model.Plant) **string { return &p.MedicinalParts }),
	},
	{
		field:       "utility",
		permapeople: "utility",
		apply:       textField(func(p *model.Plant) **string { return &p.Utility }),
	},
	{
		field:       "warning",
		permapeople: "warning",
		apply:       textField(func(p *model.Plant) **string { return &p.Warning }),
	},
	{
		field:       "pollination",
		permapeople: "pollination",
		apply:       textField(func(p *model.Plant) **string { return &p.Pollination }),
	},
	{
		field:       "nitrogen_fixing",
		permapeople: "nitrogen_fixing",
		norm:        norm(normalize.Bool),
		apply:       boolField(func(p *model.Plant) **bool { return &p.NitrogenFixing }),
	},
	{
		field:       "root_type",
		permapeople: "root_type",
		apply:       textField(func(p *model.Plant) **string { return &p.RootType }),
	},
	{
		field:       "root_depth",
		permapeople: "root_depth",
		apply:       textField(func(p *model.Plant) **string { return &p.RootDepth }),
	},
	{
		field:       "wikipedia_url",
		permapeople: "wikipedia_url",
		apply:       textField(func(p *model.Plant) **string { return &p.WikipediaURL }),
	},
	{
		field:       "pfaf_url",
		permapeople: "pfaf_url",
		apply:       textField(func(p *model.Plant) **string { return &p.PfafURL }),
	},
	{
		field:       "powo_url",
		permapeople: "powo_url",
		apply:       textField(func(p *model.Plant) **string { return &p.PowoURL }),
	},
}

var bindingIndex = func() map[string]*binding {
	m := make(map[string]*binding, len(bindings))
	for _, b := range bindings {
		m[b.field] = b
	}
	return m
}()

// Fields returns the canonical columns the merge engine manages, in report
// order. Coverage queries and the completion report iterate this list.
func Fields() []string {
	out := make([]string, len(bindings))
	for i, b := range bindings {
		out[i] = b.field
	}
	return out
}
