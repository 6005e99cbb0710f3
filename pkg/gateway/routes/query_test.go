package routes

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/carescope-ai/platform/pkg/common/models"
)

func TestBuildAttributions(t *testing.T) {
	citations := []models.Citation{
		{Stage: "mismatch", RecordCount: 42},
		{Stage: "reachability", RecordCount: 42},
		{Stage: "contradiction", RecordCount: 7},
		{Stage: "desert", RecordCount: 19},
		{Stage: "counterfactual", RecordCount: 42},
	}

	want := []string{
		"Infrastructure mismatch detection (42 facilities, US Gov Dataset)",
		"Reachability scoring (42 facilities, US Gov Dataset)",
		"Contradiction pattern analysis (7 cases, US Gov Dataset)",
		"Medical desert classification (19 scored pairs, US Gov Dataset)",
		"Counterfactual simulation (42 facilities, US Gov Dataset)",
	}
	if diff := cmp.Diff(want, BuildAttributions(citations)); diff != "" {
		t.Fatalf("attribution mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildAttributionsReportsSkippedRecords(t *testing.T) {
	got := BuildAttributions([]models.Citation{
		{Stage: "mismatch", RecordCount: 40, Skipped: 2},
	})
	want := []string{"Infrastructure mismatch detection (40 facilities, US Gov Dataset), 2 records skipped"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("attribution mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildAttributionsUnknownStage(t *testing.T) {
	got := BuildAttributions([]models.Citation{
		{Stage: "audit", RecordCount: 3},
	})
	want := []string{"audit analysis (3 records, US Gov Dataset)"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("attribution mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildAttributionsEmpty(t *testing.T) {
	if got := BuildAttributions(nil); len(got) != 0 {
		t.Fatalf("expected no attributions, got %v", got)
	}
}
