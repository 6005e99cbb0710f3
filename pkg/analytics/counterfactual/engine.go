package counterfactual

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/carescope-ai/platform/pkg/analytics/desert"
	"github.com/carescope-ai/platform/pkg/analytics/reachability"
	"github.com/carescope-ai/platform/pkg/common/models"
	"github.com/carescope-ai/platform/pkg/knowledge"
)

// Engine answers "what if we added these facilities" questions by scoring
// the same scope twice, once against the baseline facility set and once
// against baseline plus the hypothetical additions. The baseline set and
// its scores are never mutated; every computation runs on derived copies.
type Engine struct {
	base        *knowledge.Base
	scorer      *reachability.Scorer
	typologist  *desert.Typologist
	granularity string
}

func NewEngine(base *knowledge.Base, scorer *reachability.Scorer, typologist *desert.Typologist, granularity string) *Engine {
	if granularity == "" {
		granularity = models.GranularityState
	}
	return &Engine{base: base, scorer: scorer, typologist: typologist, granularity: granularity}
}

// Simulate recomputes reachability over a fixed scope with the additions
// applied. Additions are hypothetical and carry no mismatches, so they
// always count as capable. The scope is resolved once over the union set,
// which keeps the baseline and recomputed score lists aligned
// pair-for-pair even when an addition opens a brand new region.
func (e *Engine) Simulate(ctx context.Context, baseline []models.Facility, mismatches []models.Mismatch, additions []models.Facility, regions, specialties []string) (*models.CounterfactualScenario, error) {
	augmented := make([]models.Facility, 0, len(baseline)+len(additions))
	augmented = append(augmented, baseline...)
	augmented = append(augmented, additions...)

	regions, specialties = e.resolveScope(augmented, regions, specialties)

	before, err := e.scorer.Score(ctx, baseline, mismatches, regions, specialties)
	if err != nil {
		return nil, err
	}
	after, err := e.scorer.Score(ctx, augmented, mismatches, regions, specialties)
	if err != nil {
		return nil, err
	}

	afterByPair := make(map[string]models.ReachabilityScore, len(after))
	for _, score := range after {
		afterByPair[score.Region+"|"+score.Specialty] = score
	}

	deltas := make([]models.ScoreDelta, 0, len(before))
	for _, b := range before {
		a := afterByPair[b.Region+"|"+b.Specialty]
		deltas = append(deltas, models.ScoreDelta{
			Region:    b.Region,
			Specialty: b.Specialty,
			Before:    b.CombinedScore,
			After:     a.CombinedScore,
			Delta:     a.CombinedScore - b.CombinedScore,
		})
	}

	resolved, introduced := desertDiff(
		e.typologist.Classify(before, mismatches),
		e.typologist.Classify(after, mismatches),
	)

	return &models.CounterfactualScenario{
		ScenarioID:        uuid.New().String(),
		Description:       fmt.Sprintf("what-if scenario with %d added facilities", len(additions)),
		Additions:         additions,
		Baseline:          before,
		Recomputed:        after,
		Deltas:            deltas,
		ResolvedDeserts:   resolved,
		IntroducedDeserts: introduced,
	}, nil
}

func (e *Engine) resolveScope(facilities []models.Facility, regions, specialties []string) ([]string, []string) {
	if len(regions) == 0 {
		seen := make(map[string]struct{})
		for _, facility := range facilities {
			seen[models.RegionOf(facility, e.granularity)] = struct{}{}
		}
		for region := range seen {
			regions = append(regions, region)
		}
		sort.Strings(regions)
	}
	if len(specialties) == 0 {
		seen := make(map[string]struct{})
		for _, facility := range facilities {
			for _, claim := range facility.Capabilities {
				canonical, err := e.base.ResolveSpecialty(claim)
				if err != nil {
					continue
				}
				seen[canonical] = struct{}{}
			}
		}
		for specialty := range seen {
			specialties = append(specialties, specialty)
		}
		sort.Strings(specialties)
	}
	return regions, specialties
}

// desertDiff reports desert types present before but not after (resolved)
// and types present after but not before (introduced).
func desertDiff(before, after []models.DesertClassification) ([]string, []string) {
	beforeTypes := typesByPair(before)
	afterTypes := typesByPair(after)

	var resolved, introduced []string
	for pair, types := range beforeTypes {
		for desertType := range types {
			if _, still := afterTypes[pair][desertType]; !still {
				resolved = append(resolved, describeDesert(pair, desertType))
			}
		}
	}
	for pair, types := range afterTypes {
		for desertType := range types {
			if _, existed := beforeTypes[pair][desertType]; !existed {
				introduced = append(introduced, describeDesert(pair, desertType))
			}
		}
	}
	sort.Strings(resolved)
	sort.Strings(introduced)
	return resolved, introduced
}

func typesByPair(classifications []models.DesertClassification) map[string]map[models.DesertType]struct{} {
	byPair := make(map[string]map[models.DesertType]struct{}, len(classifications))
	for _, c := range classifications {
		types := make(map[models.DesertType]struct{}, len(c.Types))
		for _, desertType := range c.Types {
			types[desertType] = struct{}{}
		}
		byPair[c.Region+"|"+c.Specialty] = types
	}
	return byPair
}

func describeDesert(pair string, desertType models.DesertType) string {
	region, specialty, _ := strings.Cut(pair, "|")
	return fmt.Sprintf("%s desert in %s for %s", desertType, region, specialty)
}
