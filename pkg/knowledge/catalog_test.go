package knowledge

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultCatalogCoversCoreSpecialties(t *testing.T) {
	cat := DefaultCatalog()
	if len(cat.Specialties) != 12 {
		t.Fatalf("expected 12 specialties, got %d", len(cat.Specialties))
	}
	neuro, ok := cat.Specialties["neurosurgery"]
	if !ok {
		t.Fatal("expected neurosurgery entry")
	}
	if len(neuro.Critical) != 4 || neuro.Critical[0] != "ICU" {
		t.Fatalf("unexpected neurosurgery critical list: %v", neuro.Critical)
	}
	if cat.Procedures["hip replacement"] != "orthopedic surgery" {
		t.Fatalf("unexpected procedure mapping: %q", cat.Procedures["hip replacement"])
	}
	if cat.Synonyms["operating theatre"] != "operating room" {
		t.Fatalf("unexpected synonym target: %q", cat.Synonyms["operating theatre"])
	}
}

func TestLoadEmptyPathUsesDefault(t *testing.T) {
	cat, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cat.Specialties) == 0 {
		t.Fatal("expected default catalog")
	}
}

func TestLoadMissingFileFallsBackToDefault(t *testing.T) {
	cat, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatal("expected read error")
	}
	if len(cat.Specialties) == 0 {
		t.Fatal("expected default catalog alongside the error")
	}
}

func TestLoadParsesCatalogFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	content := `specialties:
  teleradiology:
    critical: ["PACS workstation"]
    required: ["radiology viewer"]
    recommended: []
synonyms:
  pacs: "PACS workstation"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write catalog: %v", err)
	}

	cat, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	reqs, ok := cat.Specialties["teleradiology"]
	if !ok {
		t.Fatal("expected teleradiology entry")
	}
	if len(reqs.Critical) != 1 || reqs.Critical[0] != "PACS workstation" {
		t.Fatalf("unexpected critical list: %v", reqs.Critical)
	}
	if cat.Synonyms["pacs"] != "PACS workstation" {
		t.Fatalf("unexpected synonym: %q", cat.Synonyms["pacs"])
	}
}

func TestLoadRejectsEmptyCatalog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	if err := os.WriteFile(path, []byte("synonyms: {}\n"), 0o644); err != nil {
		t.Fatalf("failed to write catalog: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for catalog without specialties")
	}
}
