package counterfactual

import (
	"context"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/carescope-ai/platform/pkg/analytics/desert"
	"github.com/carescope-ai/platform/pkg/analytics/reachability"
	"github.com/carescope-ai/platform/pkg/common/models"
	"github.com/carescope-ai/platform/pkg/knowledge"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	base := knowledge.NewBase(knowledge.DefaultCatalog(), 0.85)
	scorer, err := reachability.NewScorer(base, reachability.Config{
		GeographicWeight:   0.5,
		CapabilityWeight:   0.5,
		LowAccessThreshold: 0.4,
		Workers:            2,
	})
	if err != nil {
		t.Fatalf("failed to create scorer: %v", err)
	}
	return NewEngine(base, scorer, desert.NewTypologist(desert.Config{}), models.GranularityState)
}

func TestSimulateZeroAdditionsZeroDeltas(t *testing.T) {
	engine := newTestEngine(t)
	baseline := []models.Facility{
		{ID: "ca-1", State: "CA", Capabilities: []string{"cardiology"}},
	}

	scenario, err := engine.Simulate(context.Background(), baseline, nil, nil, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(scenario.Deltas) != 1 {
		t.Fatalf("expected 1 delta, got %d", len(scenario.Deltas))
	}
	for _, delta := range scenario.Deltas {
		if delta.Delta != 0 {
			t.Fatalf("expected zero delta without additions, got %+v", delta)
		}
	}
	if len(scenario.ResolvedDeserts) != 0 || len(scenario.IntroducedDeserts) != 0 {
		t.Fatalf("expected no desert changes, got %v / %v", scenario.ResolvedDeserts, scenario.IntroducedDeserts)
	}
}

func TestSimulateAdditionResolvesGeographicDesert(t *testing.T) {
	engine := newTestEngine(t)
	baseline := []models.Facility{
		{ID: "ca-1", State: "CA", Capabilities: []string{"cardiology"}},
	}
	additions := []models.Facility{
		{ID: "wy-new", Name: "Frontier Cardiac Center", State: "WY", Capabilities: []string{"cardiology"}},
	}

	scenario, err := engine.Simulate(context.Background(), baseline, nil, additions, []string{"CA", "WY"}, []string{"cardiology"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var wyDelta *models.ScoreDelta
	for i := range scenario.Deltas {
		if scenario.Deltas[i].Region == "WY" {
			wyDelta = &scenario.Deltas[i]
		}
	}
	if wyDelta == nil {
		t.Fatal("expected a WY delta")
	}
	if wyDelta.Before != 0 {
		t.Fatalf("expected WY baseline of 0, got %f", wyDelta.Before)
	}
	if math.Abs(wyDelta.After-1.0) > 1e-9 || math.Abs(wyDelta.Delta-1.0) > 1e-9 {
		t.Fatalf("expected WY to reach full access, got %+v", wyDelta)
	}

	want := []string{"geographic desert in WY for cardiology"}
	if diff := cmp.Diff(want, scenario.ResolvedDeserts); diff != "" {
		t.Fatalf("resolved deserts mismatch (-want +got):\n%s", diff)
	}
	if len(scenario.IntroducedDeserts) != 0 {
		t.Fatalf("additions should not introduce deserts, got %v", scenario.IntroducedDeserts)
	}
}

func TestSimulateDoesNotMutateBaseline(t *testing.T) {
	engine := newTestEngine(t)
	baseline := []models.Facility{
		{ID: "ca-1", State: "CA", Capabilities: []string{"cardiology"}},
	}
	original := make([]models.Facility, len(baseline))
	copy(original, baseline)

	additions := []models.Facility{
		{ID: "nv-new", State: "NV", Capabilities: []string{"cardiology"}},
	}

	scenario, err := engine.Simulate(context.Background(), baseline, nil, additions, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff(original, baseline); diff != "" {
		t.Fatalf("baseline mutated (-want +got):\n%s", diff)
	}

	// Scope derives from the union, so the new region is scored in both runs.
	if len(scenario.Baseline) != 2 || len(scenario.Recomputed) != 2 {
		t.Fatalf("expected union scope of 2 pairs, got %d/%d", len(scenario.Baseline), len(scenario.Recomputed))
	}
}
