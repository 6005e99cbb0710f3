package mismatch

import (
	"context"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/carescope-ai/platform/pkg/common/models"
	"github.com/carescope-ai/platform/pkg/knowledge"
)

func newTestDetector(t *testing.T) *Detector {
	t.Helper()
	return New(knowledge.NewBase(knowledge.DefaultCatalog(), 0.85), Config{Workers: 2})
}

func fullNeuroEquipment() []string {
	return []string{
		"ICU", "operating room", "operating microscope", "anesthesia machine",
		"CT scan", "surgical instruments", "autoclave", "ventilator",
		"MRI", "neuromonitoring equipment",
	}
}

func dropItems(items []string, remove ...string) []string {
	removed := make(map[string]struct{}, len(remove))
	for _, item := range remove {
		removed[item] = struct{}{}
	}
	var out []string
	for _, item := range items {
		if _, ok := removed[item]; !ok {
			out = append(out, item)
		}
	}
	return out
}

func TestDetectFlagsMissingCriticalEquipment(t *testing.T) {
	detector := newTestDetector(t)
	facilities := []models.Facility{
		{ID: "fac-c", Name: "Sierra Neuro Center", State: "CA", Capabilities: []string{"neurosurgery"}, Equipment: dropItems(fullNeuroEquipment(), "ICU", "operating microscope")},
		{ID: "fac-a", Name: "Bay General", State: "CA", Capabilities: []string{"neurosurgery"}, Equipment: fullNeuroEquipment()},
		{ID: "fac-b", Name: "Valley Medical", State: "CA", Capabilities: []string{"neurosurgery"}, Equipment: dropItems(fullNeuroEquipment(), "ICU")},
	}

	result, err := detector.Detect(context.Background(), facilities, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Evaluated != 3 {
		t.Fatalf("expected 3 evaluated claims, got %d", result.Evaluated)
	}
	if len(result.Mismatches) != 2 {
		t.Fatalf("expected 2 mismatches, got %d", len(result.Mismatches))
	}

	first, second := result.Mismatches[0], result.Mismatches[1]
	if first.FacilityID != "fac-b" || second.FacilityID != "fac-c" {
		t.Fatalf("expected ordering by facility id, got %s then %s", first.FacilityID, second.FacilityID)
	}
	if first.Severity != models.SeverityCritical || second.Severity != models.SeverityCritical {
		t.Fatalf("expected critical severity, got %s and %s", first.Severity, second.Severity)
	}
	if diff := cmp.Diff([]string{"ICU"}, first.MissingCritical); diff != "" {
		t.Fatalf("missing critical mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"ICU", "operating microscope"}, second.MissingCritical); diff != "" {
		t.Fatalf("missing critical mismatch (-want +got):\n%s", diff)
	}
}

func TestDetectSeverityByWorstCategory(t *testing.T) {
	detector := newTestDetector(t)
	facilities := []models.Facility{
		{ID: "fac-1", State: "TX", Capabilities: []string{"neurosurgery"}, Equipment: dropItems(fullNeuroEquipment(), "ventilator")},
		{ID: "fac-2", State: "TX", Capabilities: []string{"neurosurgery"}, Equipment: dropItems(fullNeuroEquipment(), "MRI", "neuromonitoring equipment")},
		{ID: "fac-3", State: "TX", Capabilities: []string{"neurosurgery"}, Equipment: dropItems(fullNeuroEquipment(), "ICU", "ventilator", "MRI")},
	}

	result, err := detector.Detect(context.Background(), facilities, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Mismatches) != 3 {
		t.Fatalf("expected 3 mismatches, got %d", len(result.Mismatches))
	}
	if got := result.Mismatches[0].Severity; got != models.SeverityModerate {
		t.Errorf("missing required only should be moderate, got %s", got)
	}
	if got := result.Mismatches[1].Severity; got != models.SeverityMinor {
		t.Errorf("missing recommended only should be minor, got %s", got)
	}
	if got := result.Mismatches[2].Severity; got != models.SeverityCritical {
		t.Errorf("any missing critical should be critical, got %s", got)
	}
}

func TestDetectEmptyInventoryIsCritical(t *testing.T) {
	detector := newTestDetector(t)
	facilities := []models.Facility{
		{ID: "fac-bare", State: "NV", Capabilities: []string{"cardiology"}},
	}

	result, err := detector.Detect(context.Background(), facilities, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Mismatches) != 1 {
		t.Fatalf("expected 1 mismatch, got %d", len(result.Mismatches))
	}
	m := result.Mismatches[0]
	if m.Severity != models.SeverityCritical {
		t.Fatalf("expected critical severity, got %s", m.Severity)
	}
	if len(m.MissingCritical) != 2 || len(m.MissingRequired) != 3 {
		t.Fatalf("expected every cardiology requirement missing, got %v / %v", m.MissingCritical, m.MissingRequired)
	}
}

func TestDetectSkipsUnknownSpecialty(t *testing.T) {
	detector := newTestDetector(t)
	facilities := []models.Facility{
		{ID: "fac-1", State: "CA", Capabilities: []string{"neurosurgery", "podiatry"}, Equipment: fullNeuroEquipment()},
	}

	result, err := detector.Detect(context.Background(), facilities, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Skipped != 1 || result.Evaluated != 1 {
		t.Fatalf("expected 1 skipped and 1 evaluated, got %d and %d", result.Skipped, result.Evaluated)
	}
	if len(result.Mismatches) != 0 {
		t.Fatalf("expected no mismatches, got %v", result.Mismatches)
	}
	if len(result.Notes) != 1 || !strings.Contains(result.Notes[0], "podiatry") {
		t.Fatalf("expected a note about the skipped claim, got %v", result.Notes)
	}
}

func TestDetectDeduplicatesResolvedClaims(t *testing.T) {
	detector := newTestDetector(t)
	facilities := []models.Facility{
		{ID: "fac-1", State: "CA", Capabilities: []string{"neurosurgery", "brain surgery"}, Equipment: dropItems(fullNeuroEquipment(), "ICU")},
	}

	result, err := detector.Detect(context.Background(), facilities, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Evaluated != 1 {
		t.Fatalf("expected aliased claims to evaluate once, got %d", result.Evaluated)
	}
	if len(result.Mismatches) != 1 {
		t.Fatalf("expected 1 mismatch, got %d", len(result.Mismatches))
	}
}

func TestDetectSpecialtyFilter(t *testing.T) {
	detector := newTestDetector(t)
	facilities := []models.Facility{
		{ID: "fac-1", State: "CA", Capabilities: []string{"neurosurgery", "cardiology"}},
	}

	result, err := detector.Detect(context.Background(), facilities, []string{"cardiology"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Mismatches) != 1 {
		t.Fatalf("expected 1 mismatch, got %d", len(result.Mismatches))
	}
	if result.Mismatches[0].Specialty != "cardiology" {
		t.Fatalf("expected cardiology mismatch only, got %s", result.Mismatches[0].Specialty)
	}
}

func TestDetectCancelledContext(t *testing.T) {
	detector := newTestDetector(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	facilities := []models.Facility{
		{ID: "fac-1", State: "CA", Capabilities: []string{"neurosurgery"}},
	}
	if _, err := detector.Detect(ctx, facilities, nil); err == nil {
		t.Fatal("expected error from cancelled context")
	}
}
