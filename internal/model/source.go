package model

import "time"

// PerenualRecord is a near-verbatim row from the Perenual species list. The
// free tier only exposes naming and imagery; care fields arrive from other
// sources at merge time.
type PerenualRecord struct {
	ID             int64     `json:"id"`
	PerenualID     int64     `json:"perenual_id"`
	PlantID        *int64    `json:"plant_id,omitempty"`
	CommonName     *string   `json:"common_name,omitempty"`
	ScientificName *string   `json:"scientific_name,omitempty"`
	ImageURL       *string   `json:"image_url,omitempty"`
	FetchedAt      time.Time `json:"fetched_at"`
}

// PermapeopleRecord is a near-verbatim row from the Permapeople catalog. The
// upstream key/value data block is flattened into typed-as-text columns;
// normalization happens at merge time, never here. Version is the upstream
// revision counter and FetchedAt doubles as the update-detection watermark.
type PermapeopleRecord struct {
	ID             int64   `json:"id"`
	PermapeopleID  int64   `json:"permapeople_id"`
	PlantID        *int64  `json:"plant_id,omitempty"`
	ScientificName *string `json:"scientific_name,omitempty"`
	CommonName     *string `json:"common_name,omitempty"`
	Description    *string `json:"description,omitempty"`
	ImageURL       *string `json:"image_url,omitempty"`
	Slug           *string `json:"slug,omitempty"`
	Version        *int    `json:"version,omitempty"`

	WaterRequirement        *string `json:"water_requirement,omitempty"`
	LightRequirement        *string `json:"light_requirement,omitempty"`
	HardinessZone           *string `json:"hardiness_zone,omitempty"`
	Growth                  *string `json:"growth,omitempty"`
	SoilType                *string `json:"soil_type,omitempty"`
	SoilPH                  *string `json:"soil_ph,omitempty"`
	Layer                   *string `json:"layer,omitempty"`
	Edible                  *string `json:"edible,omitempty"`
	EdibleParts             *string `json:"edible_parts,omitempty"`
	EdibleUses              *string `json:"edible_uses,omitempty"`
	Family                  *string `json:"family,omitempty"`
	Genus                   *string `json:"genus,omitempty"`
	Height                  *string `json:"height,omitempty"`
	Width                   *string `json:"width,omitempty"`
	Spacing                 *string `json:"spacing,omitempty"`
	LifeCycle               *string `json:"life_cycle,omitempty"`
	DaysToHarvest           *string `json:"days_to_harvest,omitempty"`
	DaysToMaturity          *string `json:"days_to_maturity,omitempty"`
	PropagationMethod       *string `json:"propagation_method,omitempty"`
	PropagationCuttings     *string `json:"propagation_cuttings,omitempty"`
	PropagationDirectSowing *string `json:"propagation_direct_sowing,omitempty"`
	PropagationTransplant   *string `json:"propagation_transplanting,omitempty"`
	GerminationTime         *string `json:"germination_time,omitempty"`
	GerminationTemperature  *string `json:"germination_temperature,omitempty"`
	SowOutdoors             *string `json:"sow_outdoors,omitempty"`
	SowIndoors              *string `json:"sow_indoors,omitempty"`
	StartIndoorsWeeks       *string `json:"start_indoors_weeks,omitempty"`
	StartOutdoorsWeeks      *string `json:"start_outdoors_weeks,omitempty"`
	PlantTransplant         *string `json:"plant_transplant,omitempty"`
	PlantCuttings           *string `json:"plant_cuttings,omitempty"`
	PlantDivision           *string `json:"plant_division,omitempty"`
	SeedPlantingDepth       *string `json:"seed_planting_depth,omitempty"`
	SeedViability           *string `json:"seed_viability,omitempty"`
	SeedWeightPer1000G      *string `json:"seed_weight_per_1000_g,omitempty"`
	NitrogenFixing          *string `json:"nitrogen_fixing,omitempty"`
	NitrogenUsage           *string `json:"nitrogen_usage,omitempty"`
	DroughtResistant        *string `json:"drought_resistant,omitempty"`
	NativeTo                *string `json:"native_to,omitempty"`
	IntroducedInto          *string `json:"introduced_into,omitempty"`
	Habitat                 *string `json:"habitat,omitempty"`
	RootType                *string `json:"root_type,omitempty"`
	RootDepth               *string `json:"root_depth,omitempty"`
	Leaves                  *string `json:"leaves,omitempty"`
	Pests                   *string `json:"pests,omitempty"`
	Diseases                *string `json:"diseases,omitempty"`
	Pollination             *string `json:"pollination,omitempty"`
	Medicinal               *string `json:"medicinal,omitempty"`
	MedicinalParts          *string `json:"medicinal_parts,omitempty"`
	Utility                 *string `json:"utility,omitempty"`
	WarningNote             *string `json:"warning,omitempty"`
	AlternateName           *string `json:"alternate_name,omitempty"`
	WikipediaURL            *string `json:"wikipedia_url,omitempty"`
	PfafURL                 *string `json:"pfaf_url,omitempty"`
	PowoURL                 *string `json:"powo_url,omitempty"`

	FetchedAt time.Time `json:"fetched_at"`
}

// Field returns a pointer to the text column's field on the record, or nil
// for unmapped names. Keeping the mapping in one switch makes a renamed or
// dropped column a compile error here rather than a silent nil downstream.
// Identity and non-text columns (id, permapeople_id, plant_id, version,
// fetched_at) are deliberately not addressable.
func (r *PermapeopleRecord) Field(col string) **string {
	switch col {
	case "scientific_name":
		return &r.ScientificName
	case "common_name":
		return &r.CommonName
	case "description":
		return &r.Description
	case "image_url":
		return &r.ImageURL
	case "slug":
		return &r.Slug
	case "water_requirement":
		return &r.WaterRequirement
	case "light_requirement":
		return &r.LightRequirement
	case "hardiness_zone":
		return &r.HardinessZone
	case "growth":
		return &r.Growth
	case "soil_type":
		return &r.SoilType
	case "soil_ph":
		return &r.SoilPH
	case "layer":
		return &r.Layer
	case "edible":
		return &r.Edible
	case "edible_parts":
		return &r.EdibleParts
	case "edible_uses":
		return &r.EdibleUses
	case "family":
		return &r.Family
	case "genus":
		return &r.Genus
	case "height":
		return &r.Height
	case "width":
		return &r.Width
	case "spacing":
		return &r.Spacing
	case "life_cycle":
		return &r.LifeCycle
	case "days_to_harvest":
		return &r.DaysToHarvest
	case "days_to_maturity":
		return &r.DaysToMaturity
	case "propagation_method":
		return &r.PropagationMethod
	case "propagation_cuttings":
		return &r.PropagationCuttings
	case "propagation_direct_sowing":
		return &r.PropagationDirectSowing
	case "propagation_transplanting":
		return &r.PropagationTransplant
	case "germination_time":
		return &r.GerminationTime
	case "germination_temperature":
		return &r.GerminationTemperature
	case "sow_outdoors":
		return &r.SowOutdoors
	case "sow_indoors":
		return &r.SowIndoors
	case "start_indoors_weeks":
		return &r.StartIndoorsWeeks
	case "start_outdoors_weeks":
		return &r.StartOutdoorsWeeks
	case "plant_transplant":
		return &r.PlantTransplant
	case "plant_cuttings":
		return &r.PlantCuttings
	case "plant_division":
		return &r.PlantDivision
	case "seed_planting_depth":
		return &r.SeedPlantingDepth
	case "seed_viability":
		return &r.SeedViability
	case "seed_weight_per_1000_g":
		return &r.SeedWeightPer1000G
	case "nitrogen_fixing":
		return &r.NitrogenFixing
	case "nitrogen_usage":
		return &r.NitrogenUsage
	case "drought_resistant":
		return &r.DroughtResistant
	case "native_to":
		return &r.NativeTo
	case "introduced_into":
		return &r.IntroducedInto
	case "habitat":
		return &r.Habitat
	case "root_type":
		return &r.RootType
	case "root_depth":
		return &r.RootDepth
	case "leaves":
		return &r.Leaves
	case "pests":
		return &r.Pests
	case "diseases":
		return &r.Diseases
	case "pollination":
		return &r.Pollination
	case "medicinal":
		return &r.Medicinal
	case "medicinal_parts":
		return &r.MedicinalParts
	case "utility":
		return &r.Utility
	case "warning":
		return &r.WarningNote
	case "alternate_name":
		return &r.AlternateName
	case "wikipedia_url":
		return &r.WikipediaURL
	case "pfaf_url":
		return &r.PfafURL
	case "powo_url":
		return &r.PowoURL
	}
	return nil
}
