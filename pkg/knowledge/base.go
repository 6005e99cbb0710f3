package knowledge

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// UnknownSpecialtyError marks a specialty with no catalog entry and no fuzzy
// match. Callers degrade to "no requirements asserted" and record a
// data-quality note; it never aborts a pipeline run.
type UnknownSpecialtyError struct {
	Specialty string
}

func (e *UnknownSpecialtyError) Error() string {
	return fmt.Sprintf("no requirements known for specialty %q", e.Specialty)
}

func IsUnknownSpecialty(err error) bool {
	var unknown *UnknownSpecialtyError
	return errors.As(err, &unknown)
}

// Base is the medical knowledge base: requirement lookup plus equipment
// name normalization against a fixed vocabulary. Read-only after
// construction, safe for concurrent use.
type Base struct {
	catalog     Catalog
	threshold   float64
	specialties []string
	vocabulary  []string
	synonyms    map[string]string
	canonical   map[string]string
}

func NewBase(cat Catalog, threshold float64) *Base {
	if threshold <= 0 {
		threshold = 0.85
	}

	base := &Base{
		catalog:   normalizeCatalog(cat),
		threshold: threshold,
		synonyms:  make(map[string]string),
		canonical: make(map[string]string),
	}

	for name := range base.catalog.Specialties {
		base.specialties = append(base.specialties, name)
	}
	sort.Strings(base.specialties)

	addCanonical := func(display string) {
		cleaned := cleanName(display)
		if cleaned == "" {
			return
		}
		if _, ok := base.canonical[cleaned]; !ok {
			base.canonical[cleaned] = display
			base.vocabulary = append(base.vocabulary, cleaned)
		}
	}

	for _, name := range base.specialties {
		reqs := base.catalog.Specialties[name]
		for _, item := range reqs.Critical {
			addCanonical(item)
		}
		for _, item := range reqs.Required {
			addCanonical(item)
		}
		for _, item := range reqs.Recommended {
			addCanonical(item)
		}
	}

	for variant, target := range base.catalog.Synonyms {
		addCanonical(target)
		base.synonyms[cleanName(variant)] = target
	}
	sort.Strings(base.vocabulary)

	return base
}

// normalizeCatalog rewrites catalog keys into cleaned form so lookups are
// insensitive to casing and punctuation in external catalog files.
func normalizeCatalog(cat Catalog) Catalog {
	out := Catalog{
		Specialties: make(map[string]Requirements, len(cat.Specialties)),
		Procedures:  make(map[string]string, len(cat.Procedures)),
		Synonyms:    make(map[string]string, len(cat.Synonyms)),
		Keywords:    make(map[string][]string, len(cat.Keywords)),
	}
	for name, reqs := range cat.Specialties {
		out.Specialties[cleanName(name)] = reqs
	}
	for proc, specialty := range cat.Procedures {
		out.Procedures[cleanName(proc)] = cleanName(specialty)
	}
	for variant, target := range cat.Synonyms {
		out.Synonyms[variant] = target
	}
	for name, words := range cat.Keywords {
		normalized := make([]string, 0, len(words))
		for _, word := range words {
			normalized = append(normalized, strings.ToLower(word))
		}
		out.Keywords[cleanName(name)] = normalized
	}
	return out
}

// ResolveSpecialty maps a raw specialty reference to its canonical catalog
// name. The lookup order is exact name, procedure alias, partial
// containment, then Jaro-Winkler fuzzy match against known specialties at
// the configured threshold. Unresolvable references return
// UnknownSpecialtyError.
func (b *Base) ResolveSpecialty(specialty string) (string, error) {
	key := cleanName(specialty)
	if key == "" {
		return "", &UnknownSpecialtyError{Specialty: specialty}
	}

	if _, ok := b.catalog.Specialties[key]; ok {
		return key, nil
	}

	if mapped, ok := b.catalog.Procedures[key]; ok {
		if _, ok := b.catalog.Specialties[mapped]; ok {
			return mapped, nil
		}
	}

	for _, name := range b.specialties {
		if strings.Contains(key, name) || strings.Contains(name, key) {
			return name, nil
		}
	}

	bestScore := 0.0
	bestName := ""
	for _, name := range b.specialties {
		if score := jaroWinkler(key, name); score > bestScore {
			bestScore = score
			bestName = name
		}
	}
	if bestScore >= b.threshold {
		return bestName, nil
	}

	return "", &UnknownSpecialtyError{Specialty: specialty}
}

// RequirementsFor resolves a specialty and returns its equipment
// requirements.
func (b *Base) RequirementsFor(specialty string) (Requirements, error) {
	name, err := b.ResolveSpecialty(specialty)
	if err != nil {
		return Requirements{}, err
	}
	return b.catalog.Specialties[name], nil
}

// NormalizeEquipment maps a raw equipment name to its canonical vocabulary
// entry: case/punctuation cleanup, then synonym lookup, then the best
// Jaro-Winkler vocabulary match at the configured threshold. Names that
// match nothing pass through in cleaned form and are treated as present
// but unrecognized, never dropped.
func (b *Base) NormalizeEquipment(name string) string {
	cleaned := cleanName(name)
	if cleaned == "" {
		return ""
	}

	if canon, ok := b.synonyms[cleaned]; ok {
		return canon
	}
	if display, ok := b.canonical[cleaned]; ok {
		return display
	}

	bestScore := 0.0
	bestEntry := ""
	for _, entry := range b.vocabulary {
		if score := jaroWinkler(cleaned, entry); score > bestScore {
			bestScore = score
			bestEntry = entry
		}
	}
	if bestScore >= b.threshold {
		return b.canonical[bestEntry]
	}

	return cleaned
}

// NormalizeSet normalizes a full equipment inventory into a set keyed by
// cleaned canonical form.
func (b *Base) NormalizeSet(items []string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, item := range items {
		if normalized := cleanName(b.NormalizeEquipment(item)); normalized != "" {
			set[normalized] = struct{}{}
		}
	}
	return set
}

// HasEquipment reports whether a normalized inventory satisfies one
// requirement, by exact membership or partial containment in either
// direction ("ICU" satisfies "ICU beds").
func (b *Base) HasEquipment(set map[string]struct{}, requirement string) bool {
	req := cleanName(requirement)
	if req == "" {
		return false
	}
	if _, ok := set[req]; ok {
		return true
	}
	for item := range set {
		if strings.Contains(item, req) || strings.Contains(req, item) {
			return true
		}
	}
	return false
}

// SpecialtiesFromText extracts specialty references from free text by
// specialty name, procedure alias, and trigger keyword. Longer names match
// first so "neurosurgery" is never consumed as "surgery". Output is sorted
// and deduplicated.
func (b *Base) SpecialtiesFromText(text string) []string {
	lower := strings.ToLower(text)
	found := make(map[string]struct{})

	type alias struct {
		term      string
		specialty string
	}
	aliases := make([]alias, 0, len(b.specialties)+len(b.catalog.Procedures))
	for _, name := range b.specialties {
		aliases = append(aliases, alias{term: name, specialty: name})
	}
	for proc, specialty := range b.catalog.Procedures {
		// A procedure that is itself a specialty resolves as that specialty.
		if _, ok := b.catalog.Specialties[proc]; ok {
			continue
		}
		aliases = append(aliases, alias{term: proc, specialty: specialty})
	}
	sort.Slice(aliases, func(i, j int) bool {
		if len(aliases[i].term) != len(aliases[j].term) {
			return len(aliases[i].term) > len(aliases[j].term)
		}
		return aliases[i].term < aliases[j].term
	})

	for _, a := range aliases {
		if strings.Contains(lower, a.term) {
			found[a.specialty] = struct{}{}
			lower = strings.ReplaceAll(lower, a.term, " ")
		}
	}

	for _, specialty := range b.specialties {
		for _, keyword := range b.catalog.Keywords[specialty] {
			if strings.Contains(lower, keyword) {
				found[specialty] = struct{}{}
				break
			}
		}
	}

	out := make([]string, 0, len(found))
	for specialty := range found {
		out = append(out, specialty)
	}
	sort.Strings(out)
	return out
}

// Specialties returns the sorted specialty names known to the catalog.
func (b *Base) Specialties() []string {
	out := make([]string, len(b.specialties))
	copy(out, b.specialties)
	return out
}

// Vocabulary returns the sorted canonical equipment names.
func (b *Base) Vocabulary() []string {
	out := make([]string, 0, len(b.vocabulary))
	for _, cleaned := range b.vocabulary {
		out = append(out, b.canonical[cleaned])
	}
	sort.Strings(out)
	return out
}

var (
	punctPattern = regexp.MustCompile(`[^a-z0-9 ]+`)
	spacePattern = regexp.MustCompile(`\s+`)
)

func cleanName(name string) string {
	lower := strings.ToLower(strings.TrimSpace(name))
	lower = punctPattern.ReplaceAllString(lower, " ")
	return strings.TrimSpace(spacePattern.ReplaceAllString(lower, " "))
}
