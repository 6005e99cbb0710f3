package scope

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/carescope-ai/platform/pkg/common/models"
	"github.com/carescope-ai/platform/pkg/geo"
	"github.com/carescope-ai/platform/pkg/knowledge"
)

// Clause is one field constraint from an explicit scope expression.
type Clause struct {
	Field    string
	Operator string
	Value    string
}

var (
	andRegex    = regexp.MustCompile(`(?i)\s+and\s+`)
	clauseRegex = regexp.MustCompile(`(?i)^([a-z_]+)\s*(=|\bin\b)\s*(\(.*\)|.+)$`)
)

// ParseExpression tokenizes an expression like
// "state = CA and specialty in (neurosurgery, cardiology)". Values keep
// their original case; normalization happens during resolution.
func ParseExpression(input string) ([]Clause, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, nil
	}

	var clauses []Clause
	for _, part := range andRegex.Split(input, -1) {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		match := clauseRegex.FindStringSubmatch(part)
		if len(match) < 4 {
			return nil, fmt.Errorf("malformed scope clause %q", part)
		}
		clauses = append(clauses, Clause{
			Field:    strings.ToLower(match[1]),
			Operator: strings.ToLower(match[2]),
			Value:    strings.TrimSpace(match[3]),
		})
	}
	return clauses, nil
}

// Resolver turns queries and scope expressions into canonical scopes.
type Resolver struct {
	base *knowledge.Base
}

func NewResolver(base *knowledge.Base) *Resolver {
	return &Resolver{base: base}
}

// FromQuery extracts the regions and specialties a free-text query
// mentions. Either list may come back empty; downstream stages treat an
// empty list as "derive from the data".
func (r *Resolver) FromQuery(query string) models.Scope {
	return models.Scope{
		Regions:     geo.ExtractStates(query),
		Specialties: r.base.SpecialtiesFromText(query),
	}
}

// FromExpression resolves an explicit scope expression. States normalize
// to postal codes and specialties to canonical catalog names; anything
// unrecognized is an error rather than a silent drop.
func (r *Resolver) FromExpression(expr string) (models.Scope, error) {
	clauses, err := ParseExpression(expr)
	if err != nil {
		return models.Scope{}, err
	}

	regions := make(map[string]struct{})
	specialties := make(map[string]struct{})
	for _, clause := range clauses {
		for _, value := range clauseValues(clause) {
			switch clause.Field {
			case "state":
				code, ok := geo.NormalizeState(value)
				if !ok {
					return models.Scope{}, fmt.Errorf("unknown state %q", value)
				}
				regions[code] = struct{}{}
			case "region":
				// Raw region labels pass through so city-level scopes
				// ("Los Angeles, CA") stay expressible.
				regions[value] = struct{}{}
			case "specialty":
				canonical, err := r.base.ResolveSpecialty(value)
				if err != nil {
					return models.Scope{}, err
				}
				specialties[canonical] = struct{}{}
			default:
				return models.Scope{}, fmt.Errorf("unknown scope field %q", clause.Field)
			}
		}
	}

	return models.Scope{Regions: sortedKeys(regions), Specialties: sortedKeys(specialties)}, nil
}

// clauseValues expands an "in" list; "=" keeps its value whole so
// comma-bearing labels survive.
func clauseValues(clause Clause) []string {
	if clause.Operator != "in" {
		if clause.Value == "" {
			return nil
		}
		return []string{clause.Value}
	}
	var values []string
	for _, value := range strings.Split(strings.Trim(clause.Value, "()"), ",") {
		value = strings.TrimSpace(value)
		if value != "" {
			values = append(values, value)
		}
	}
	return values
}

func sortedKeys(set map[string]struct{}) []string {
	if len(set) == 0 {
		return nil
	}
	keys := make([]string, 0, len(set))
	for key := range set {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
