// Package model defines the canonical plant record, per-source records, merge
// rules, and the run ledger row shared across the pipeline.
package model

import (
	"strings"
	"time"
)

// Source identifies where a record originated.
type Source string

const (
	SourcePerenual    Source = "perenual"
	SourcePermapeople Source = "permapeople"
	SourceUser        Source = "user"
)

// PlantType values for the canonical plant_type column.
const (
	PlantTypeAnnual    = "annual"
	PlantTypePerennial = "perennial"
	PlantTypeBiennial  = "biennial"
	PlantTypeShrub     = "shrub"
	PlantTypeTree      = "tree"
	PlantTypeHerb      = "herb"
	PlantTypeVegetable = "vegetable"
	PlantTypeFruit     = "fruit"
	PlantTypeBulb      = "bulb"
	PlantTypeOther     = "other"
)

// Sun requirement values.
const (
	SunFull         = "full_sun"
	SunPartialShade = "partial_shade"
	SunFullShade    = "full_shade"
)

// Water needs values.
const (
	WaterLow    = "low"
	WaterMedium = "medium"
	WaterHigh   = "high"
)

// Plant is the canonical record: one row per species, reconciled from all
// linked source records. Field values are only written by the merge engine;
// the origin pair (Source, ExternalID) is set once at creation.
type Plant struct {
	ID             int64   `json:"id"`
	CommonName     string  `json:"common_name"`
	ScientificName *string `json:"scientific_name,omitempty"`
	Description    *string `json:"description,omitempty"`
	ImageURL       *string `json:"image_url,omitempty"`

	PlantType      *string `json:"plant_type,omitempty"`
	SunRequirement *string `json:"sun_requirement,omitempty"`
	WaterNeeds     *string `json:"water_needs,omitempty"`
	SoilType       *string `json:"soil_type,omitempty"`
	GrowthRate     *string `json:"growth_rate,omitempty"`
	LifeCycle      *string `json:"life_cycle,omitempty"`

	DaysToMaturity      *int     `json:"days_to_maturity,omitempty"`
	DaysToHarvest       *int     `json:"days_to_harvest,omitempty"`
	SpacingInches       *float64 `json:"spacing_inches,omitempty"`
	PlantingDepthInches *float64 `json:"planting_depth_inches,omitempty"`
	HeightInches        *float64 `json:"height_inches,omitempty"`
	WidthInches         *float64 `json:"width_inches,omitempty"`
	SoilPHMin           *float64 `json:"soil_ph_min,omitempty"`
	SoilPHMax           *float64 `json:"soil_ph_max,omitempty"`
	GerminationDaysMin  *int     `json:"germination_days_min,omitempty"`
	GerminationDaysMax  *int     `json:"germination_days_max,omitempty"`
	GerminationTempMinF *float64 `json:"germination_temp_min_f,omitempty"`
	GerminationTempMaxF *float64 `json:"germination_temp_max_f,omitempty"`
	StartIndoorsWeeks   *int     `json:"start_indoors_weeks,omitempty"`
	StartOutdoorsWeeks  *int     `json:"start_outdoors_weeks,omitempty"`

	SowIndoors        *string `json:"sow_indoors,omitempty"`
	SowOutdoors       *string `json:"sow_outdoors,omitempty"`
	PlantTransplant   *string `json:"plant_transplant,omitempty"`
	PlantCuttings     *string `json:"plant_cuttings,omitempty"`
	PlantDivision     *string `json:"plant_division,omitempty"`
	PropagationMethod *string `json:"propagation_method,omitempty"`

	Edible           *bool   `json:"edible,omitempty"`
	EdibleParts      *string `json:"edible_parts,omitempty"`
	EdibleUses       *string `json:"edible_uses,omitempty"`
	Medicinal        *string `json:"medicinal,omitempty"`
	MedicinalParts   *string `json:"medicinal_parts,omitempty"`
	Utility          *string `json:"utility,omitempty"`
	Warning          *string `json:"warning,omitempty"`
	Pollination      *string `json:"pollination,omitempty"`
	DroughtResistant *bool   `json:"drought_resistant,omitempty"`
	NitrogenFixing   *bool   `json:"nitrogen_fixing,omitempty"`

	HardinessZones []string `json:"hardiness_zones,omitempty"`
	CommonPests    []string `json:"common_pests,omitempty"`
	CommonDiseases []string `json:"common_diseases,omitempty"`

	NativeTo     *string `json:"native_to,omitempty"`
	Habitat      *string `json:"habitat,omitempty"`
	Family       *string `json:"family,omitempty"`
	Genus        *string `json:"genus,omitempty"`
	RootType     *string `json:"root_type,omitempty"`
	RootDepth    *string `json:"root_depth,omitempty"`
	WikipediaURL *string `json:"wikipedia_url,omitempty"`
	PfafURL      *string `json:"pfaf_url,omitempty"`
	PowoURL      *string `json:"powo_url,omitempty"`

	DataSources   []string  `json:"data_sources,omitempty"`
	Source        Source    `json:"source"`
	ExternalID    *string   `json:"external_id,omitempty"`
	IsUserDefined bool      `json:"is_user_defined"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// DisplayName prefers the scientific name and falls back to the common name.
func (p *Plant) DisplayName() string {
	if p.ScientificName != nil && strings.TrimSpace(*p.ScientificName) != "" {
		return *p.ScientificName
	}
	return p.CommonName
}

// PlantWithSources is one merge-batch row: a canonical plant joined with its
// linked source records (nil when the source has no record for it).
type PlantWithSources struct {
	Plant       Plant
	Perenual    *PerenualRecord
	Permapeople *PermapeopleRecord
}

// HasSources reports whether any source record is linked.
func (r *PlantWithSources) HasSources() bool {
	return r.Perenual != nil || r.Permapeople != nil
}
