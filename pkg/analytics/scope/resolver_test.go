package scope

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/carescope-ai/platform/pkg/common/models"
	"github.com/carescope-ai/platform/pkg/knowledge"
)

func newTestResolver() *Resolver {
	return NewResolver(knowledge.NewBase(knowledge.DefaultCatalog(), 0.85))
}

func TestParseExpressionClauses(t *testing.T) {
	clauses, err := ParseExpression("state = CA and specialty in (neurosurgery, cardiology)")
	if err != nil {
		t.Fatalf("ParseExpression: %v", err)
	}
	want := []Clause{
		{Field: "state", Operator: "=", Value: "CA"},
		{Field: "specialty", Operator: "in", Value: "(neurosurgery, cardiology)"},
	}
	if diff := cmp.Diff(want, clauses); diff != "" {
		t.Errorf("clauses mismatch (-want +got):\n%s", diff)
	}
}

func TestParseExpressionMalformedClause(t *testing.T) {
	if _, err := ParseExpression("state CA"); err == nil {
		t.Fatal("expected error for clause without operator")
	}
	if _, err := ParseExpression("specialty instead of this"); err == nil {
		t.Fatal("expected error for embedded operator token")
	}
}

func TestFromExpressionNormalizesValues(t *testing.T) {
	got, err := newTestResolver().FromExpression("State = california and Specialty = Brain Surgery")
	if err != nil {
		t.Fatalf("FromExpression: %v", err)
	}
	want := models.Scope{Regions: []string{"CA"}, Specialties: []string{"neurosurgery"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("scope mismatch (-want +got):\n%s", diff)
	}
}

func TestFromExpressionInLists(t *testing.T) {
	got, err := newTestResolver().FromExpression("state in (texas, CA) and specialty in (neurosurgery, cardiology)")
	if err != nil {
		t.Fatalf("FromExpression: %v", err)
	}
	want := models.Scope{
		Regions:     []string{"CA", "TX"},
		Specialties: []string{"cardiology", "neurosurgery"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("scope mismatch (-want +got):\n%s", diff)
	}
}

func TestFromExpressionRegionLabelPassthrough(t *testing.T) {
	got, err := newTestResolver().FromExpression("region = Los Angeles, CA")
	if err != nil {
		t.Fatalf("FromExpression: %v", err)
	}
	if diff := cmp.Diff([]string{"Los Angeles, CA"}, got.Regions); diff != "" {
		t.Errorf("regions mismatch (-want +got):\n%s", diff)
	}
}

func TestFromExpressionRejectsUnknownValues(t *testing.T) {
	resolver := newTestResolver()
	if _, err := resolver.FromExpression("state = atlantis"); err == nil {
		t.Fatal("expected error for unknown state")
	}
	if _, err := resolver.FromExpression("country = US"); err == nil {
		t.Fatal("expected error for unknown field")
	}
	_, err := resolver.FromExpression("specialty = podiatry")
	if !knowledge.IsUnknownSpecialty(err) {
		t.Fatalf("expected UnknownSpecialtyError, got %v", err)
	}
}

func TestFromQueryExtractsRegionsAndSpecialties(t *testing.T) {
	got := newTestResolver().FromQuery("How accessible is neurosurgery in California and Texas?")
	want := models.Scope{Regions: []string{"CA", "TX"}, Specialties: []string{"neurosurgery"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("scope mismatch (-want +got):\n%s", diff)
	}
}
