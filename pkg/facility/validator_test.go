package facility

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/carescope-ai/platform/pkg/common/models"
)

func floatPtr(v float64) *float64 { return &v }

func TestNormalizeCanonicalizesFacility(t *testing.T) {
	v := NewValidator(nil)
	got, err := v.Normalize(models.Facility{
		ID:           " fac-1 ",
		Name:         "  Bay General ",
		State:        "california",
		City:         " Los Angeles ",
		FacilityType: " Hospital ",
		Capabilities: []string{"Neurosurgery", " neurosurgery ", "", "cardiology"},
		Equipment:    []string{"CT scan", "ct scan", "MRI"},
	})
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	want := models.Facility{
		ID:           "fac-1",
		Name:         "Bay General",
		State:        "CA",
		City:         "Los Angeles",
		FacilityType: "hospital",
		Capabilities: []string{"Neurosurgery", "cardiology"},
		Equipment:    []string{"CT scan", "MRI"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("normalized facility mismatch (-want +got):\n%s", diff)
	}
}

func TestNormalizeRejectsMissingName(t *testing.T) {
	v := NewValidator(nil)
	_, err := v.Normalize(models.Facility{Name: "   ", State: "CA"})
	if !IsValidationError(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestNormalizeRejectsUnknownState(t *testing.T) {
	v := NewValidator(nil)
	_, err := v.Normalize(models.Facility{Name: "Clinic", State: "ZZ"})
	if !IsValidationError(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestNormalizeRejectsHalfCoordinates(t *testing.T) {
	v := NewValidator(nil)
	_, err := v.Normalize(models.Facility{Name: "Clinic", State: "CA", Latitude: floatPtr(34.05)})
	if !IsValidationError(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestNormalizeRejectsOutOfRangeCoordinates(t *testing.T) {
	v := NewValidator(nil)
	_, err := v.Normalize(models.Facility{
		Name:      "Clinic",
		State:     "CA",
		Latitude:  floatPtr(95),
		Longitude: floatPtr(-118.24),
	})
	if !IsValidationError(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestValidateSourceAllowlist(t *testing.T) {
	v := NewValidator([]string{"registry", "survey"})
	if err := v.ValidateSource("Registry"); err != nil {
		t.Fatalf("allowed source rejected: %v", err)
	}
	if err := v.ValidateSource("scraper"); !IsValidationError(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if err := v.ValidateSource(""); !IsValidationError(err) {
		t.Fatalf("expected validation error for empty source, got %v", err)
	}
}

func TestValidateSourceOpenWhenUnconfigured(t *testing.T) {
	v := NewValidator(nil)
	if err := v.ValidateSource("anything"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
