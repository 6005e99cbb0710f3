package desert

import (
	"fmt"

	"github.com/carescope-ai/platform/pkg/common/models"
	"github.com/carescope-ai/platform/pkg/geo"
)

// defaultPopulationEstimate stands in for regions missing from the state
// population table.
const defaultPopulationEstimate = 500000

// Config controls desert classification. CapabilityMinimum is the
// capability factor below which a region with claiming facilities is
// still considered a capability desert.
type Config struct {
	CapabilityMinimum float64
}

// Typologist classifies (region, specialty) pairs into desert types from
// reachability scores and mismatch findings. A pair can carry several
// types at once; pairs with none are not deserts and are omitted.
type Typologist struct {
	cfg Config
}

func NewTypologist(cfg Config) *Typologist {
	if cfg.CapabilityMinimum <= 0 {
		cfg.CapabilityMinimum = 0.5
	}
	return &Typologist{cfg: cfg}
}

// Classify walks the scored (region, specialty) pairs and types each one:
//   - geographic: no facility in the region claims the specialty.
//   - capability: claiming facilities exist but the capability factor is
//     below the configured minimum.
//   - skill: at least one claiming facility has a critical mismatch, so
//     claims outrun verified infrastructure.
//
// Types and recommendations are ranked skill, capability, geographic;
// verification concerns outrank procurement, which outranks construction.
// Output preserves the (region, specialty) order of the input scores.
func (t *Typologist) Classify(scores []models.ReachabilityScore, mismatches []models.Mismatch) []models.DesertClassification {
	criticalCounts := make(map[string]int)
	for _, m := range mismatches {
		if m.Severity == models.SeverityCritical {
			criticalCounts[m.Region+"|"+m.Specialty]++
		}
	}

	var classifications []models.DesertClassification
	for _, score := range scores {
		var types []models.DesertType
		var gaps []string
		var recommendations []string

		criticalClaims := criticalCounts[score.Region+"|"+score.Specialty]
		if score.FacilityCount > 0 && criticalClaims > 0 {
			types = append(types, models.DesertSkill)
			gaps = append(gaps, fmt.Sprintf("%d facilities claim %s with critical equipment gaps", criticalClaims, score.Specialty))
			recommendations = append(recommendations, fmt.Sprintf("Verify %s claims through licensing and infrastructure audit", score.Specialty))
		}
		if score.FacilityCount > 0 && score.CapabilityFactor < t.cfg.CapabilityMinimum {
			types = append(types, models.DesertCapability)
			gaps = append(gaps, fmt.Sprintf("Only %d of %d claiming facilities have required infrastructure", score.VerifiedCount, score.FacilityCount))
			recommendations = append(recommendations, fmt.Sprintf("Equipment procurement program to upgrade %s capacity", score.Specialty))
		}
		if score.FacilityCount == 0 {
			types = append(types, models.DesertGeographic)
			gaps = append(gaps, fmt.Sprintf("No facilities in %s claim %s", score.Region, score.Specialty))
			recommendations = append(recommendations, fmt.Sprintf("Establish %s center in %s", score.Specialty, score.Region))
		}

		if len(types) == 0 {
			continue
		}

		classifications = append(classifications, models.DesertClassification{
			Region:             score.Region,
			Specialty:          score.Specialty,
			Types:              types,
			Severity:           severityFor(types, score.CombinedScore),
			PopulationEstimate: populationFor(score.Region),
			Gaps:               gaps,
			Recommendations:    recommendations,
		})
	}
	return classifications
}

// severityFor grades a desert: more concurrent types and lower combined
// access both push the grade up.
func severityFor(types []models.DesertType, combined float64) models.DesertSeverity {
	score := float64(len(types))*20 + (1.0-combined)*100
	switch {
	case score > 70:
		return models.DesertSevere
	case score > 40:
		return models.DesertModerate
	default:
		return models.DesertMild
	}
}

func populationFor(region string) int {
	if estimate := geo.PopulationEstimate(region); estimate > 0 {
		return estimate
	}
	return defaultPopulationEstimate
}
