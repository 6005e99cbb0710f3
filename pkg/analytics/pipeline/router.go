package pipeline

import (
	"fmt"
	"strings"

	"github.com/carescope-ai/platform/pkg/analytics"
)

// Stage identifies one analytics pipeline stage.
type Stage string

const (
	StageMismatch       Stage = "mismatch"
	StageReachability   Stage = "reachability"
	StageContradiction  Stage = "contradiction"
	StageDesert         Stage = "desert"
	StageCounterfactual Stage = "counterfactual"
)

// canonicalOrder is the only execution order stages ever run in. Routing
// produces a subset of this sequence.
var canonicalOrder = []Stage{StageMismatch, StageReachability, StageContradiction, StageDesert, StageCounterfactual}

// dependencies lists the upstream stages each stage consumes, already
// transitively closed.
var dependencies = map[Stage][]Stage{
	StageReachability:   {StageMismatch},
	StageContradiction:  {StageMismatch},
	StageDesert:         {StageMismatch, StageReachability},
	StageCounterfactual: {StageMismatch, StageReachability},
}

type routingRule struct {
	stage    Stage
	keywords []string
}

var routingRules = []routingRule{
	{StageMismatch, []string{"claim", "without", "lack", "missing", "mismatch", "infrastructure", "equipment", "capability"}},
	{StageReachability, []string{"access", "reachable", "reachability", "coverage"}},
	{StageContradiction, []string{"contradiction", "inconsistent", "pattern", "systemic", "data quality", "widespread", "common issue"}},
	{StageDesert, []string{"desert", "underserved", "gap", "cold spot", "no access", "no coverage", "poorest coverage"}},
	{StageCounterfactual, []string{"what if", "new facility", "simulate", "hypothetical"}},
}

// ResolveStages maps a free-text query onto the ordered stage list to
// run. Keyword matching happens exactly once, here; execution dispatches
// on the resolved identifiers, never on the query text. Queries with no
// analytics trigger default to mismatch detection.
func ResolveStages(query string) []Stage {
	lower := strings.ToLower(query)
	requested := make(map[Stage]struct{})
	for _, rule := range routingRules {
		for _, keyword := range rule.keywords {
			if strings.Contains(lower, keyword) {
				requested[rule.stage] = struct{}{}
				break
			}
		}
	}
	if len(requested) == 0 {
		requested[StageMismatch] = struct{}{}
	}
	return ordered(requested)
}

// ParseStages validates an explicit stage list and returns it
// dependency-closed in canonical order. An empty list defaults to
// mismatch detection.
func ParseStages(names []string) ([]Stage, error) {
	known := make(map[Stage]struct{}, len(canonicalOrder))
	for _, stage := range canonicalOrder {
		known[stage] = struct{}{}
	}

	requested := make(map[Stage]struct{}, len(names))
	for _, name := range names {
		stage := Stage(strings.ToLower(strings.TrimSpace(name)))
		if _, ok := known[stage]; !ok {
			return nil, &analytics.ConfigurationError{Field: "stages", Reason: fmt.Sprintf("unknown stage %q", name)}
		}
		requested[stage] = struct{}{}
	}
	if len(requested) == 0 {
		requested[StageMismatch] = struct{}{}
	}
	return ordered(requested), nil
}

func ordered(requested map[Stage]struct{}) []Stage {
	for stage := range requested {
		for _, dep := range dependencies[stage] {
			requested[dep] = struct{}{}
		}
	}
	stages := make([]Stage, 0, len(requested))
	for _, stage := range canonicalOrder {
		if _, ok := requested[stage]; ok {
			stages = append(stages, stage)
		}
	}
	return stages
}

// StageNames renders a stage list for logs and persisted runs.
func StageNames(stages []Stage) []string {
	names := make([]string, len(stages))
	for i, stage := range stages {
		names[i] = string(stage)
	}
	return names
}
