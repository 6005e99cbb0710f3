package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/carescope-ai/platform/pkg/analytics"
	"github.com/carescope-ai/platform/pkg/analytics/contradiction"
	"github.com/carescope-ai/platform/pkg/analytics/counterfactual"
	"github.com/carescope-ai/platform/pkg/analytics/desert"
	"github.com/carescope-ai/platform/pkg/analytics/mismatch"
	"github.com/carescope-ai/platform/pkg/analytics/reachability"
	"github.com/carescope-ai/platform/pkg/common/logger"
	"github.com/carescope-ai/platform/pkg/common/models"
	"github.com/carescope-ai/platform/pkg/knowledge"
)

// ErrPipelineCancelled marks a run stopped by context cancellation. The
// returned AnalysisContext still carries every stage that completed,
// flagged partial.
var ErrPipelineCancelled = errors.New("pipeline cancelled")

// Config bundles the tunables shared by the analytics stages. Zero
// values fall back to documented defaults; negative values are rejected.
type Config struct {
	RegionGranularity  string
	GeographicWeight   float64
	CapabilityWeight   float64
	LowAccessThreshold float64
	CapabilityMinimum  float64
	ClusterThreshold   int
	Workers            int
}

// Pipeline executes analytics stages over in-memory facility snapshots.
// It is immutable after construction and safe for concurrent runs.
type Pipeline struct {
	detector   *mismatch.Detector
	scorer     *reachability.Scorer
	grapher    *contradiction.Grapher
	typologist *desert.Typologist
	engine     *counterfactual.Engine
}

// New wires the five stages against a shared knowledge base. Invalid
// settings surface as ConfigurationError before any stage can run.
func New(base *knowledge.Base, cfg Config) (*Pipeline, error) {
	switch cfg.RegionGranularity {
	case "", models.GranularityState, models.GranularityCity:
	default:
		return nil, &analytics.ConfigurationError{
			Field:  "region_granularity",
			Reason: fmt.Sprintf("must be %q or %q, got %q", models.GranularityState, models.GranularityCity, cfg.RegionGranularity),
		}
	}
	if cfg.LowAccessThreshold < 0 {
		return nil, &analytics.ConfigurationError{Field: "low_access_threshold", Reason: "must not be negative"}
	}
	if cfg.CapabilityMinimum < 0 {
		return nil, &analytics.ConfigurationError{Field: "capability_minimum", Reason: "must not be negative"}
	}
	if cfg.ClusterThreshold < 0 {
		return nil, &analytics.ConfigurationError{Field: "cluster_threshold", Reason: "must not be negative"}
	}
	if cfg.Workers < 0 {
		return nil, &analytics.ConfigurationError{Field: "workers", Reason: "must not be negative"}
	}

	scorer, err := reachability.NewScorer(base, reachability.Config{
		GeographicWeight:   cfg.GeographicWeight,
		CapabilityWeight:   cfg.CapabilityWeight,
		LowAccessThreshold: cfg.LowAccessThreshold,
		Workers:            cfg.Workers,
		RegionGranularity:  cfg.RegionGranularity,
	})
	if err != nil {
		return nil, err
	}
	typologist := desert.NewTypologist(desert.Config{CapabilityMinimum: cfg.CapabilityMinimum})

	return &Pipeline{
		detector:   mismatch.New(base, mismatch.Config{Workers: cfg.Workers, RegionGranularity: cfg.RegionGranularity}),
		scorer:     scorer,
		grapher:    contradiction.NewGrapher(cfg.ClusterThreshold),
		typologist: typologist,
		engine:     counterfactual.NewEngine(base, scorer, typologist, cfg.RegionGranularity),
	}, nil
}

// AnalysisContext carries one query's working state through the stages.
// Each run owns its own context; stages append their output and never
// mutate earlier sections, so downstream stages read stable data.
type AnalysisContext struct {
	Facilities []models.Facility
	Scope      models.Scope
	Additions  []models.Facility
	Mismatches []models.Mismatch
	Scores     []models.ReachabilityScore
	Graph      *models.ContradictionGraph
	Deserts    []models.DesertClassification
	Scenario   *models.CounterfactualScenario
	Citations  []models.Citation
	Notes      []string
	Executed   []string
	Partial    bool
}

// Result flattens the context into the wire-level analysis result.
func (ac *AnalysisContext) Result() models.AnalysisResult {
	return models.AnalysisResult{
		Mismatches: ac.Mismatches,
		Scores:     ac.Scores,
		Graph:      ac.Graph,
		Deserts:    ac.Deserts,
		Scenario:   ac.Scenario,
		Citations:  ac.Citations,
		Notes:      ac.Notes,
		Executed:   ac.Executed,
		Partial:    ac.Partial,
	}
}

// Run executes the given stages in order over a facility snapshot.
// Malformed records are screened out and counted rather than aborting
// the run. Cancellation is honored between stages: a cancelled run
// returns the completed portion flagged partial, wrapped in
// ErrPipelineCancelled.
func (p *Pipeline) Run(ctx context.Context, facilities []models.Facility, stages []Stage, scope models.Scope, additions []models.Facility) (*AnalysisContext, error) {
	if len(stages) == 0 {
		stages = []Stage{StageMismatch}
	}

	ac := &AnalysisContext{Scope: scope, Additions: additions}
	var screened int
	ac.Facilities, screened = screenFacilities(facilities)
	if screened > 0 {
		ac.Notes = append(ac.Notes, fmt.Sprintf("skipped %d facility records with missing id or state", screened))
	}

	logger.WithFields(logrus.Fields{
		"stages":     StageNames(stages),
		"facilities": len(ac.Facilities),
		"skipped":    screened,
	}).Info("Starting analysis pipeline")

	for _, stage := range stages {
		if err := ctx.Err(); err != nil {
			ac.Partial = true
			return ac, fmt.Errorf("%w after %d of %d stages: %v", ErrPipelineCancelled, len(ac.Executed), len(stages), err)
		}
		if err := p.runStage(ctx, stage, ac, screened); err != nil {
			ac.Partial = true
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return ac, fmt.Errorf("%w during %s stage: %v", ErrPipelineCancelled, stage, err)
			}
			return ac, fmt.Errorf("%s stage: %w", stage, err)
		}
		ac.Executed = append(ac.Executed, string(stage))
	}

	logger.WithFields(logrus.Fields{
		"executed":   ac.Executed,
		"mismatches": len(ac.Mismatches),
		"scores":     len(ac.Scores),
		"deserts":    len(ac.Deserts),
	}).Info("Analysis pipeline completed")
	return ac, nil
}

func (p *Pipeline) runStage(ctx context.Context, stage Stage, ac *AnalysisContext, screened int) error {
	switch stage {
	case StageMismatch:
		result, err := p.detector.Detect(ctx, ac.Facilities, ac.Scope.Specialties)
		if err != nil {
			return err
		}
		ac.Mismatches = result.Mismatches
		ac.Notes = append(ac.Notes, result.Notes...)
		ac.Citations = append(ac.Citations, models.Citation{
			Stage:       string(stage),
			RecordCount: len(ac.Facilities),
			Skipped:     screened + result.Skipped,
		})
	case StageReachability:
		scores, err := p.scorer.Score(ctx, ac.Facilities, ac.Mismatches, ac.Scope.Regions, ac.Scope.Specialties)
		if err != nil {
			return err
		}
		ac.Scores = scores
		ac.Citations = append(ac.Citations, models.Citation{Stage: string(stage), RecordCount: len(ac.Facilities)})
	case StageContradiction:
		ac.Graph = p.grapher.Build(ac.Mismatches)
		ac.Citations = append(ac.Citations, models.Citation{Stage: string(stage), RecordCount: len(ac.Mismatches)})
	case StageDesert:
		ac.Deserts = p.typologist.Classify(ac.Scores, ac.Mismatches)
		ac.Citations = append(ac.Citations, models.Citation{Stage: string(stage), RecordCount: len(ac.Scores)})
	case StageCounterfactual:
		scenario, err := p.engine.Simulate(ctx, ac.Facilities, ac.Mismatches, ac.Additions, ac.Scope.Regions, ac.Scope.Specialties)
		if err != nil {
			return err
		}
		ac.Scenario = scenario
		ac.Citations = append(ac.Citations, models.Citation{Stage: string(stage), RecordCount: len(ac.Facilities)})
	default:
		return &analytics.ConfigurationError{Field: "stages", Reason: fmt.Sprintf("unknown stage %q", stage)}
	}
	return nil
}

// screenFacilities drops records no stage can use. A malformed row is
// counted and surfaced in the run notes instead of failing the query.
func screenFacilities(facilities []models.Facility) ([]models.Facility, int) {
	valid := make([]models.Facility, 0, len(facilities))
	skipped := 0
	for _, facility := range facilities {
		if facility.ID == "" || facility.State == "" {
			skipped++
			continue
		}
		valid = append(valid, facility)
	}
	return valid, skipped
}
