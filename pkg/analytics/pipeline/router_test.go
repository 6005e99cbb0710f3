package pipeline

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/carescope-ai/platform/pkg/analytics"
)

func TestResolveStagesKeywords(t *testing.T) {
	cases := []struct {
		query string
		want  []Stage
	}{
		{"Which facilities claim neurosurgery without ICU?", []Stage{StageMismatch}},
		{"How accessible is cardiology in rural areas?", []Stage{StageMismatch, StageReachability}},
		{"Are there systemic data quality issues in the registry?", []Stage{StageMismatch, StageContradiction}},
		{"Where are the cardiac care deserts?", []Stage{StageMismatch, StageReachability, StageDesert}},
		{"What if we open a new facility in Wyoming?", []Stage{StageMismatch, StageReachability, StageCounterfactual}},
		{"Map coverage gaps and contradictions across states", []Stage{StageMismatch, StageReachability, StageContradiction, StageDesert}},
	}
	for _, tc := range cases {
		if diff := cmp.Diff(tc.want, ResolveStages(tc.query)); diff != "" {
			t.Errorf("ResolveStages(%q) mismatch (-want +got):\n%s", tc.query, diff)
		}
	}
}

func TestResolveStagesDefaultsToMismatch(t *testing.T) {
	got := ResolveStages("Show me everything about Texas hospitals")
	want := []Stage{StageMismatch}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("default route mismatch (-want +got):\n%s", diff)
	}
}

func TestParseStagesClosesDependencies(t *testing.T) {
	got, err := ParseStages([]string{"desert"})
	if err != nil {
		t.Fatalf("ParseStages: %v", err)
	}
	want := []Stage{StageMismatch, StageReachability, StageDesert}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("closure mismatch (-want +got):\n%s", diff)
	}
}

func TestParseStagesNormalizesNames(t *testing.T) {
	got, err := ParseStages([]string{" Counterfactual ", "mismatch"})
	if err != nil {
		t.Fatalf("ParseStages: %v", err)
	}
	want := []Stage{StageMismatch, StageReachability, StageCounterfactual}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("normalized parse mismatch (-want +got):\n%s", diff)
	}
}

func TestParseStagesEmptyDefaultsToMismatch(t *testing.T) {
	got, err := ParseStages(nil)
	if err != nil {
		t.Fatalf("ParseStages: %v", err)
	}
	if diff := cmp.Diff([]Stage{StageMismatch}, got); diff != "" {
		t.Errorf("empty parse mismatch (-want +got):\n%s", diff)
	}
}

func TestParseStagesRejectsUnknownStage(t *testing.T) {
	_, err := ParseStages([]string{"forecasting"})
	if err == nil {
		t.Fatal("expected error for unknown stage")
	}
	if !analytics.IsConfigurationError(err) {
		t.Fatalf("expected ConfigurationError, got %T: %v", err, err)
	}
}
