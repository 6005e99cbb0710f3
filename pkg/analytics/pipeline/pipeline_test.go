package pipeline

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/carescope-ai/platform/pkg/analytics"
	"github.com/carescope-ai/platform/pkg/common/models"
	"github.com/carescope-ai/platform/pkg/knowledge"
)

func newTestPipeline(t *testing.T) *Pipeline {
	t.Helper()
	p, err := New(knowledge.NewBase(knowledge.DefaultCatalog(), 0.85), Config{
		GeographicWeight: 0.5,
		CapabilityWeight: 0.5,
		Workers:          2,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return p
}

func neuroEquipment() []string {
	return []string{
		"ICU", "operating room", "operating microscope", "anesthesia machine",
		"CT scan", "surgical instruments", "autoclave", "ventilator",
		"MRI", "neuromonitoring equipment",
	}
}

func withoutItems(equipment []string, drop ...string) []string {
	dropped := make(map[string]struct{}, len(drop))
	for _, item := range drop {
		dropped[item] = struct{}{}
	}
	kept := make([]string, 0, len(equipment))
	for _, item := range equipment {
		if _, ok := dropped[item]; !ok {
			kept = append(kept, item)
		}
	}
	return kept
}

func approxEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	base := knowledge.NewBase(knowledge.DefaultCatalog(), 0.85)

	cases := []struct {
		name string
		cfg  Config
	}{
		{"granularity", Config{GeographicWeight: 0.5, CapabilityWeight: 0.5, RegionGranularity: "county"}},
		{"negative threshold", Config{GeographicWeight: 0.5, CapabilityWeight: 0.5, LowAccessThreshold: -0.1}},
		{"negative minimum", Config{GeographicWeight: 0.5, CapabilityWeight: 0.5, CapabilityMinimum: -1}},
		{"weights", Config{GeographicWeight: 0.7, CapabilityWeight: 0.5}},
	}
	for _, tc := range cases {
		_, err := New(base, tc.cfg)
		if err == nil {
			t.Fatalf("%s: expected configuration error", tc.name)
		}
		if !analytics.IsConfigurationError(err) {
			t.Fatalf("%s: expected ConfigurationError, got %T: %v", tc.name, err, err)
		}
	}
}

func TestRunFullPipeline(t *testing.T) {
	p := newTestPipeline(t)
	facilities := []models.Facility{
		{ID: "fac-a", Name: "Bay General", State: "CA", Capabilities: []string{"neurosurgery"}, Equipment: neuroEquipment()},
		{ID: "fac-b", Name: "Valley Medical", State: "CA", Capabilities: []string{"neurosurgery"}, Equipment: withoutItems(neuroEquipment(), "ICU")},
		{ID: "fac-c", Name: "Sierra Neuro Center", State: "CA", Capabilities: []string{"neurosurgery"}, Equipment: withoutItems(neuroEquipment(), "ICU", "operating microscope")},
	}
	additions := []models.Facility{
		{ID: "new-wy", Name: "Frontier Medical", State: "WY", Capabilities: []string{"neurosurgery"}, Equipment: neuroEquipment()},
	}
	scope := models.Scope{Regions: []string{"CA", "WY"}, Specialties: []string{"neurosurgery"}}
	stages := []Stage{StageMismatch, StageReachability, StageContradiction, StageDesert, StageCounterfactual}

	ac, err := p.Run(context.Background(), facilities, stages, scope, additions)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if ac.Partial {
		t.Fatal("completed run flagged partial")
	}
	wantExecuted := []string{"mismatch", "reachability", "contradiction", "desert", "counterfactual"}
	if diff := cmp.Diff(wantExecuted, ac.Executed); diff != "" {
		t.Fatalf("executed stages mismatch (-want +got):\n%s", diff)
	}

	if len(ac.Mismatches) != 2 {
		t.Fatalf("expected 2 mismatches, got %d", len(ac.Mismatches))
	}
	if ac.Mismatches[0].FacilityID != "fac-b" || ac.Mismatches[1].FacilityID != "fac-c" {
		t.Fatalf("unexpected mismatch order: %s, %s", ac.Mismatches[0].FacilityID, ac.Mismatches[1].FacilityID)
	}

	if len(ac.Scores) != 2 {
		t.Fatalf("expected 2 scores, got %d", len(ac.Scores))
	}
	ca, wy := ac.Scores[0], ac.Scores[1]
	if ca.Region != "CA" || wy.Region != "WY" {
		t.Fatalf("unexpected score regions: %s, %s", ca.Region, wy.Region)
	}
	if ca.FacilityCount != 3 || ca.VerifiedCount != 1 {
		t.Errorf("CA counts = %d/%d, want 3/1", ca.FacilityCount, ca.VerifiedCount)
	}
	if !approxEqual(ca.CapabilityFactor, 1.0/3.0) || !approxEqual(ca.GeographicFactor, 1.0) {
		t.Errorf("CA factors = %.4f/%.4f", ca.CapabilityFactor, ca.GeographicFactor)
	}
	if wy.FacilityCount != 0 || wy.CombinedScore != 0 || !wy.LowAccess {
		t.Errorf("WY score = %+v, want zero-facility region flagged low access", wy)
	}

	if len(ac.Graph.Edges) != 1 || len(ac.Graph.Clusters) != 1 {
		t.Fatalf("graph = %d edges, %d clusters, want 1 and 1", len(ac.Graph.Edges), len(ac.Graph.Clusters))
	}
	cluster := ac.Graph.Clusters[0]
	if cluster.Size != 2 || cluster.Classification != models.ClusterIsolated {
		t.Errorf("cluster = size %d %s, want size 2 isolated", cluster.Size, cluster.Classification)
	}

	if len(ac.Deserts) != 2 {
		t.Fatalf("expected 2 desert classifications, got %d", len(ac.Deserts))
	}
	wantCATypes := []models.DesertType{models.DesertSkill, models.DesertCapability}
	if diff := cmp.Diff(wantCATypes, ac.Deserts[0].Types); diff != "" {
		t.Errorf("CA desert types mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]models.DesertType{models.DesertGeographic}, ac.Deserts[1].Types); diff != "" {
		t.Errorf("WY desert types mismatch (-want +got):\n%s", diff)
	}

	if ac.Scenario == nil {
		t.Fatal("expected counterfactual scenario")
	}
	wantResolved := []string{"geographic desert in WY for neurosurgery"}
	if diff := cmp.Diff(wantResolved, ac.Scenario.ResolvedDeserts); diff != "" {
		t.Errorf("resolved deserts mismatch (-want +got):\n%s", diff)
	}
	if len(ac.Scenario.IntroducedDeserts) != 0 {
		t.Errorf("unexpected introduced deserts: %v", ac.Scenario.IntroducedDeserts)
	}
	wyDelta := ac.Scenario.Deltas[1]
	if wyDelta.Region != "WY" || !approxEqual(wyDelta.After, 0.5*(1.0/3.0)+0.5) {
		t.Errorf("WY delta = %+v", wyDelta)
	}

	wantCitations := []models.Citation{
		{Stage: "mismatch", RecordCount: 3},
		{Stage: "reachability", RecordCount: 3},
		{Stage: "contradiction", RecordCount: 2},
		{Stage: "desert", RecordCount: 2},
		{Stage: "counterfactual", RecordCount: 3},
	}
	if diff := cmp.Diff(wantCitations, ac.Citations); diff != "" {
		t.Errorf("citations mismatch (-want +got):\n%s", diff)
	}
}

func TestRunDefaultsToMismatchStage(t *testing.T) {
	p := newTestPipeline(t)
	facilities := []models.Facility{
		{ID: "fac-1", State: "TX", Capabilities: []string{"neurosurgery"}, Equipment: withoutItems(neuroEquipment(), "ICU")},
	}

	ac, err := p.Run(context.Background(), facilities, nil, models.Scope{}, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if diff := cmp.Diff([]string{"mismatch"}, ac.Executed); diff != "" {
		t.Fatalf("executed stages mismatch (-want +got):\n%s", diff)
	}
	if len(ac.Mismatches) != 1 || ac.Scores != nil || ac.Graph != nil {
		t.Errorf("default run produced unexpected outputs: %+v", ac.Result())
	}
}

func TestRunScreensMalformedRecords(t *testing.T) {
	p := newTestPipeline(t)
	facilities := []models.Facility{
		{ID: "fac-1", State: "TX", Capabilities: []string{"neurosurgery"}, Equipment: neuroEquipment()},
		{ID: "", State: "TX", Capabilities: []string{"neurosurgery"}},
		{ID: "fac-3", State: "", Capabilities: []string{"cardiology"}},
	}

	ac, err := p.Run(context.Background(), facilities, []Stage{StageMismatch}, models.Scope{}, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(ac.Facilities) != 1 {
		t.Fatalf("expected 1 screened facility, got %d", len(ac.Facilities))
	}
	if len(ac.Notes) != 1 || !strings.Contains(ac.Notes[0], "skipped 2 facility records") {
		t.Errorf("unexpected notes: %v", ac.Notes)
	}
	if len(ac.Citations) != 1 || ac.Citations[0].Skipped != 2 {
		t.Errorf("unexpected citations: %+v", ac.Citations)
	}
}

func TestRunCancelledReturnsPartialResult(t *testing.T) {
	p := newTestPipeline(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	facilities := []models.Facility{
		{ID: "fac-1", State: "CA", Capabilities: []string{"neurosurgery"}, Equipment: neuroEquipment()},
	}
	ac, err := p.Run(ctx, facilities, []Stage{StageMismatch, StageReachability}, models.Scope{}, nil)
	if !errors.Is(err, ErrPipelineCancelled) {
		t.Fatalf("expected ErrPipelineCancelled, got %v", err)
	}
	if ac == nil || !ac.Partial {
		t.Fatal("expected partial analysis context")
	}
	if len(ac.Executed) != 0 {
		t.Errorf("expected no executed stages, got %v", ac.Executed)
	}
}
