package scoring

import "strings"

// Config holds every conversion factor used by the ledger.
type Config struct {
	// TaskCO2PerPoint is kg of CO2 credited per point of a completed task.
	TaskCO2PerPoint float64 `mapstructure:"task_co2_per_point"`
	// ManualCO2PerUnit is kg of CO2 credited per recycled unit of a manual entry.
	ManualCO2PerUnit float64 `mapstructure:"manual_co2_per_unit"`
	// DefaultUnitPoints applies to materials missing from Materials.
	DefaultUnitPoints int            `mapstructure:"default_unit_points"`
	Materials         map[string]int `mapstructure:"materials"`
}

// DefaultConfig returns the canonical values.
func DefaultConfig() Config {
	return Config{
		TaskCO2PerPoint:   0.05,
		ManualCO2PerUnit:  0.15,
		DefaultUnitPoints: 5,
		Materials: map[string]int{
			"plastic": 10,
			"glass":   15,
			"paper":   5,
			"metal":   20,
		},
	}
}

// NormalizeMaterial trims and lower-cases a material tag.
func NormalizeMaterial(material string) string {
	return strings.ToLower(strings.TrimSpace(material))
}

// UnitPoints returns the per-unit value for a material and whether the
// material is known.
func (c Config) UnitPoints(material string) (int, bool) {
	if p, ok := c.Materials[NormalizeMaterial(material)]; ok {
		return p, true
	}
	return c.DefaultUnitPoints, false
}

// TaskCO2 is the CO2 credited for a completed task worth points.
func (c Config) TaskCO2(points int) float64 {
	return float64(points) * c.TaskCO2PerPoint
}

// ManualCO2 is the CO2 credited for quantity recycled units.
func (c Config) ManualCO2(quantity int) float64 {
	return float64(quantity) * c.ManualCO2PerUnit
}

// MaterialIcon maps a material to a task icon category.
func MaterialIcon(material string) string {
	switch NormalizeMaterial(material) {
	case "plastic":
		return "plastic"
	case "glass":
		return "glass"
	case "metal":
		return "can"
	case "paper", "cardboard":
		return "box"
	default:
		return "recycle"
	}
}
