package reachability

import (
	"context"
	"fmt"
	"math"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/carescope-ai/platform/pkg/analytics"
	"github.com/carescope-ai/platform/pkg/common/models"
	"github.com/carescope-ai/platform/pkg/geo"
	"github.com/carescope-ai/platform/pkg/knowledge"
)

// decayDistanceKm controls how fast a facility's geographic contribution
// falls off with distance from the regional claimant centroid.
const decayDistanceKm = 30.0

const weightTolerance = 1e-9

// Config controls reachability scoring. GeographicWeight and
// CapabilityWeight must each lie in [0, 1] and sum to exactly 1.0;
// anything else is rejected, never renormalized.
type Config struct {
	GeographicWeight   float64
	CapabilityWeight   float64
	LowAccessThreshold float64
	Workers            int
	RegionGranularity  string
}

// Scorer computes per-region, per-specialty access scores from facility
// positions and mismatch findings.
type Scorer struct {
	base *knowledge.Base
	cfg  Config
}

func NewScorer(base *knowledge.Base, cfg Config) (*Scorer, error) {
	for _, weight := range []float64{cfg.GeographicWeight, cfg.CapabilityWeight} {
		if weight < 0 || weight > 1 {
			return nil, &analytics.ConfigurationError{
				Field:  "reachability weights",
				Reason: fmt.Sprintf("must lie in [0, 1], got %.4f", weight),
			}
		}
	}
	if math.Abs(cfg.GeographicWeight+cfg.CapabilityWeight-1.0) > weightTolerance {
		return nil, &analytics.ConfigurationError{
			Field:  "reachability weights",
			Reason: fmt.Sprintf("must sum to 1.0, got %.4f", cfg.GeographicWeight+cfg.CapabilityWeight),
		}
	}
	if cfg.LowAccessThreshold <= 0 {
		cfg.LowAccessThreshold = 0.4
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.RegionGranularity == "" {
		cfg.RegionGranularity = models.GranularityState
	}
	return &Scorer{base: base, cfg: cfg}, nil
}

type claimant struct {
	facilityID string
	hasCoords  bool
	lat        float64
	lon        float64
	capable    bool
}

// Score produces one ReachabilityScore per (region, specialty) pair in
// scope, sorted by region then specialty. Regions with no claiming
// facilities still appear, scored zero. Empty regions or specialties
// derive the scope from the facilities themselves.
func (s *Scorer) Score(ctx context.Context, facilities []models.Facility, mismatches []models.Mismatch, regions, specialties []string) ([]models.ReachabilityScore, error) {
	flagged := make(map[string]struct{}, len(mismatches))
	for _, m := range mismatches {
		if m.Severity == models.SeverityModerate || m.Severity == models.SeverityCritical {
			flagged[m.FacilityID+"|"+m.Specialty] = struct{}{}
		}
	}

	claimants := make(map[string]map[string][]claimant)
	for _, facility := range facilities {
		seen := make(map[string]struct{}, len(facility.Capabilities))
		for _, claim := range facility.Capabilities {
			canonical, err := s.base.ResolveSpecialty(claim)
			if err != nil {
				continue
			}
			if _, dup := seen[canonical]; dup {
				continue
			}
			seen[canonical] = struct{}{}

			c := claimant{facilityID: facility.ID}
			if facility.Latitude != nil && facility.Longitude != nil {
				c.hasCoords = true
				c.lat = *facility.Latitude
				c.lon = *facility.Longitude
			}
			_, hasGap := flagged[facility.ID+"|"+canonical]
			c.capable = !hasGap

			region := models.RegionOf(facility, s.cfg.RegionGranularity)
			if claimants[region] == nil {
				claimants[region] = make(map[string][]claimant)
			}
			claimants[region][canonical] = append(claimants[region][canonical], c)
		}
	}

	if len(regions) == 0 {
		for region := range claimants {
			regions = append(regions, region)
		}
		sort.Strings(regions)
	}
	if len(specialties) == 0 {
		seen := make(map[string]struct{})
		for _, bySpecialty := range claimants {
			for specialty := range bySpecialty {
				seen[specialty] = struct{}{}
			}
		}
		for specialty := range seen {
			specialties = append(specialties, specialty)
		}
		sort.Strings(specialties)
	}

	type pair struct {
		region    string
		specialty string
	}
	pairs := make([]pair, 0, len(regions)*len(specialties))
	for _, region := range regions {
		for _, specialty := range specialties {
			pairs = append(pairs, pair{region: region, specialty: specialty})
		}
	}

	scores := make([]models.ReachabilityScore, len(pairs))
	raws := make([]float64, len(pairs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Workers)
	for i, p := range pairs {
		i, p := i, p
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			group := claimants[p.region][p.specialty]
			capable := 0
			for _, c := range group {
				if c.capable {
					capable++
				}
			}
			capability := 0.0
			if len(group) > 0 {
				capability = float64(capable) / float64(len(group))
			}
			raws[i] = geographicRaw(group)
			scores[i] = models.ReachabilityScore{
				Region:           p.region,
				Specialty:        p.specialty,
				CapabilityFactor: capability,
				FacilityCount:    len(group),
				VerifiedCount:    capable,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Geographic factors are relative: the densest region per specialty
	// scores 1.0 and the rest scale against it.
	maxRaw := make(map[string]float64, len(specialties))
	for i, p := range pairs {
		if raws[i] > maxRaw[p.specialty] {
			maxRaw[p.specialty] = raws[i]
		}
	}
	for i, p := range pairs {
		geographic := 0.0
		if best := maxRaw[p.specialty]; best > 0 {
			geographic = raws[i] / best
		}
		scores[i].GeographicFactor = geographic
		scores[i].CombinedScore = s.cfg.GeographicWeight*geographic + s.cfg.CapabilityWeight*scores[i].CapabilityFactor
		scores[i].LowAccess = scores[i].CombinedScore < s.cfg.LowAccessThreshold
	}

	sort.Slice(scores, func(i, j int) bool {
		if scores[i].Region != scores[j].Region {
			return scores[i].Region < scores[j].Region
		}
		return scores[i].Specialty < scores[j].Specialty
	})
	return scores, nil
}

// geographicRaw sums per-facility coverage contributions for one region
// and specialty. Facilities decay exponentially with distance from the
// claimant centroid; facilities without coordinates contribute a neutral
// 1.0 rather than being dropped.
func geographicRaw(group []claimant) float64 {
	if len(group) == 0 {
		return 0
	}

	var sumLat, sumLon float64
	coordCount := 0
	for _, c := range group {
		if c.hasCoords {
			sumLat += c.lat
			sumLon += c.lon
			coordCount++
		}
	}
	if coordCount == 0 {
		return float64(len(group))
	}

	centLat := sumLat / float64(coordCount)
	centLon := sumLon / float64(coordCount)

	raw := 0.0
	for _, c := range group {
		if !c.hasCoords {
			raw += 1.0
			continue
		}
		distance := geo.Haversine(c.lat, c.lon, centLat, centLon)
		raw += math.Exp(-distance / decayDistanceKm)
	}
	return raw
}
