package mismatch

import (
	"context"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/carescope-ai/platform/pkg/common/models"
	"github.com/carescope-ai/platform/pkg/knowledge"
)

// Config controls mismatch detection parallelism and region keying.
type Config struct {
	Workers           int
	RegionGranularity string
}

// Detector compares each facility's claimed specialties against the
// knowledge base's equipment requirements and reports the gaps.
type Detector struct {
	base *knowledge.Base
	cfg  Config
}

func New(base *knowledge.Base, cfg Config) *Detector {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.RegionGranularity == "" {
		cfg.RegionGranularity = models.GranularityState
	}
	return &Detector{base: base, cfg: cfg}
}

// Result carries detected mismatches plus the evaluation tally surfaced in
// result citations. Notes record claims skipped for unrecognized
// specialties.
type Result struct {
	Mismatches []models.Mismatch
	Evaluated  int
	Skipped    int
	Notes      []string
}

type outcome struct {
	mismatches []models.Mismatch
	evaluated  int
	skipped    int
	notes      []string
}

// Detect evaluates every facility claim in scope. Facilities are processed
// in parallel and merged in (facility id, specialty) order, so output is
// deterministic for a given input. An empty specialties filter evaluates
// all claims.
func (d *Detector) Detect(ctx context.Context, facilities []models.Facility, specialties []string) (*Result, error) {
	filter := make(map[string]struct{}, len(specialties))
	for _, specialty := range specialties {
		filter[specialty] = struct{}{}
	}

	outcomes := make([]outcome, len(facilities))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.cfg.Workers)
	for i, facility := range facilities {
		i, facility := i, facility
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			outcomes[i] = d.evaluateFacility(facility, filter)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := &Result{}
	for _, out := range outcomes {
		result.Mismatches = append(result.Mismatches, out.mismatches...)
		result.Evaluated += out.evaluated
		result.Skipped += out.skipped
		result.Notes = append(result.Notes, out.notes...)
	}
	sort.Slice(result.Mismatches, func(i, j int) bool {
		if result.Mismatches[i].FacilityID != result.Mismatches[j].FacilityID {
			return result.Mismatches[i].FacilityID < result.Mismatches[j].FacilityID
		}
		return result.Mismatches[i].Specialty < result.Mismatches[j].Specialty
	})
	sort.Strings(result.Notes)
	return result, nil
}

func (d *Detector) evaluateFacility(facility models.Facility, filter map[string]struct{}) outcome {
	var out outcome
	if len(facility.Capabilities) == 0 {
		return out
	}

	equipment := d.base.NormalizeSet(facility.Equipment)
	seen := make(map[string]struct{}, len(facility.Capabilities))

	for _, claim := range facility.Capabilities {
		canonical, err := d.base.ResolveSpecialty(claim)
		if err != nil {
			out.skipped++
			out.notes = append(out.notes, fmt.Sprintf("facility %s claims unrecognized specialty %q", facility.ID, claim))
			continue
		}
		if _, dup := seen[canonical]; dup {
			continue
		}
		seen[canonical] = struct{}{}
		if len(filter) > 0 {
			if _, ok := filter[canonical]; !ok {
				continue
			}
		}

		out.evaluated++
		reqs, err := d.base.RequirementsFor(canonical)
		if err != nil {
			continue
		}

		m := models.Mismatch{
			FacilityID:         facility.ID,
			FacilityName:       facility.Name,
			Region:             models.RegionOf(facility, d.cfg.RegionGranularity),
			Specialty:          canonical,
			MissingCritical:    d.missing(equipment, reqs.Critical),
			MissingRequired:    d.missing(equipment, reqs.Required),
			MissingRecommended: d.missing(equipment, reqs.Recommended),
		}
		m.Severity = severityFor(m)
		if m.Severity == models.SeverityNone {
			continue
		}
		out.mismatches = append(out.mismatches, m)
	}
	return out
}

func (d *Detector) missing(equipment map[string]struct{}, required []string) []string {
	var missing []string
	for _, item := range required {
		if !d.base.HasEquipment(equipment, item) {
			missing = append(missing, item)
		}
	}
	return missing
}

// severityFor ranks a gap by its worst missing category. Any missing
// critical item makes the claim critical regardless of the other
// categories.
func severityFor(m models.Mismatch) models.Severity {
	switch {
	case len(m.MissingCritical) > 0:
		return models.SeverityCritical
	case len(m.MissingRequired) > 0:
		return models.SeverityModerate
	case len(m.MissingRecommended) > 0:
		return models.SeverityMinor
	default:
		return models.SeverityNone
	}
}
